// Package cluster creates, describes, awaits and deletes the Redshift
// cluster that hosts the warehouse.
package cluster

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"dwhctl/pkg/errors"
	"dwhctl/pkg/models"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/redshift"
	"github.com/aws/aws-sdk-go/service/redshift/redshiftiface"
	"github.com/sirupsen/logrus"
)

// ErrClusterAlreadyExists is returned by Create when the identifier is taken.
// Matching is by error code, so errors.Is works on wrapped copies.
var ErrClusterAlreadyExists = errors.New(errors.ErrCodeClusterAlreadyExists, "Cluster already exists")

// PollFunc observes each status check while waiting
type PollFunc func(attempt int, d *Descriptor)

// Provisioner manages one cluster identified by its spec
type Provisioner struct {
	api  redshiftiface.RedshiftAPI
	spec Spec
	log  logrus.FieldLogger
	last *Descriptor
}

// New creates a provisioner over the given API client
func New(api redshiftiface.RedshiftAPI, spec Spec, log logrus.FieldLogger) *Provisioner {
	return &Provisioner{
		api:  api,
		spec: spec,
		log:  log.WithFields(logrus.Fields{"component": "cluster", "cluster": spec.Identifier}),
	}
}

// NewFromConfig builds a Redshift client from the configured key pair
func NewFromConfig(cfg *models.Config, log logrus.FieldLogger) (*Provisioner, error) {
	sess, err := session.NewSession(&aws.Config{
		Region:      aws.String(cfg.AWS.Region),
		Credentials: credentials.NewStaticCredentials(cfg.AWS.Key, cfg.AWS.Secret, ""),
	})
	if err != nil {
		return nil, errors.ProvisioningError(errors.ErrCodeProvisionFailed, "Failed to create AWS session", err).
			WithContext("region", cfg.AWS.Region)
	}
	return New(redshift.New(sess), SpecFrom(cfg), log), nil
}

// Identifier returns the managed cluster identifier
func (p *Provisioner) Identifier() string {
	return p.spec.Identifier
}

// Last returns the most recently fetched descriptor, or nil
func (p *Provisioner) Last() *Descriptor {
	return p.last
}

// Create requests a new cluster. An existing identifier yields
// ErrClusterAlreadyExists.
func (p *Provisioner) Create(ctx context.Context) (*Descriptor, error) {
	p.log.WithFields(logrus.Fields{
		"node_type": p.spec.NodeType,
		"num_nodes": p.spec.NumNodes,
	}).Info("Creating cluster")

	out, err := p.api.CreateClusterWithContext(ctx, p.spec.createInput())
	if err != nil {
		if isAWSCode(err, redshift.ErrCodeClusterAlreadyExistsFault) {
			return nil, errors.Wrap(err, ErrClusterAlreadyExists.Code, ErrClusterAlreadyExists.Message).
				WithContext("cluster", p.spec.Identifier)
		}
		return nil, errors.ProvisioningError(errors.ErrCodeProvisionFailed, "Failed to create cluster", err).
			WithContext("cluster", p.spec.Identifier)
	}

	if out.Cluster != nil {
		p.last = descriptorFrom(out.Cluster)
	}
	return p.last, nil
}

// Describe fetches the cluster. A cluster the provider does not know is
// reported as (nil, nil).
func (p *Provisioner) Describe(ctx context.Context) (*Descriptor, error) {
	out, err := p.api.DescribeClustersWithContext(ctx, &redshift.DescribeClustersInput{
		ClusterIdentifier: aws.String(p.spec.Identifier),
	})
	if err != nil {
		if isAWSCode(err, redshift.ErrCodeClusterNotFoundFault) {
			p.last = nil
			return nil, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.Wrap(ctxErr, errors.ErrCodeCanceled, "Canceled while describing cluster")
		}
		return nil, errors.ProvisioningError(errors.ErrCodeProvisionFailed, "Failed to describe cluster", err).
			WithContext("cluster", p.spec.Identifier).
			AsRecoverable()
	}

	if len(out.Clusters) == 0 {
		p.last = nil
		return nil, nil
	}

	p.last = descriptorFrom(out.Clusters[0])
	return p.last, nil
}

// AwaitAvailable polls at a fixed interval until the cluster is available,
// reaches a failure state, disappears, or timeout elapses.
func (p *Provisioner) AwaitAvailable(ctx context.Context, interval, timeout time.Duration, onPoll PollFunc) (*Descriptor, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	for attempt := 1; ; attempt++ {
		d, err := p.Describe(waitCtx)
		if err != nil {
			if waitCtx.Err() != nil && ctx.Err() == nil {
				return nil, p.timeoutError(timeout, attempt)
			}
			return nil, err
		}

		if onPoll != nil {
			onPoll(attempt, d)
		}

		switch {
		case d == nil:
			return nil, errors.ProvisioningError(errors.ErrCodeClusterNotFound,
				"Cluster disappeared while waiting for it to become available", nil).
				WithContext("cluster", p.spec.Identifier)
		case d.Available():
			p.log.WithFields(logrus.Fields{
				"host":    d.Host,
				"elapsed": time.Since(start).Round(time.Second),
			}).Info("Cluster available")
			return d, nil
		case d.Failed():
			return nil, errors.ProvisioningError(errors.ErrCodeClusterFailed,
				fmt.Sprintf("Cluster entered status %q", d.Status), nil).
				WithContext("cluster", p.spec.Identifier).
				WithContext("status", d.Status)
		}

		p.log.WithFields(logrus.Fields{"status": d.Status, "attempt": attempt}).Info("Waiting for cluster")

		select {
		case <-time.After(interval):
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, errors.Wrap(ctx.Err(), errors.ErrCodeCanceled, "Canceled while waiting for cluster")
			}
			return nil, p.timeoutError(timeout, attempt)
		}
	}
}

// Delete removes the cluster without a final snapshot
func (p *Provisioner) Delete(ctx context.Context) (*Descriptor, error) {
	p.log.Warn("Deleting cluster")

	out, err := p.api.DeleteClusterWithContext(ctx, &redshift.DeleteClusterInput{
		ClusterIdentifier:        aws.String(p.spec.Identifier),
		SkipFinalClusterSnapshot: aws.Bool(true),
	})
	if err != nil {
		if isAWSCode(err, redshift.ErrCodeClusterNotFoundFault) {
			return nil, errors.ProvisioningError(errors.ErrCodeClusterNotFound, "Cluster not found", err).
				WithContext("cluster", p.spec.Identifier)
		}
		return nil, errors.ProvisioningError(errors.ErrCodeDeleteFailed, "Failed to delete cluster", err).
			WithContext("cluster", p.spec.Identifier)
	}

	if out.Cluster != nil {
		p.last = descriptorFrom(out.Cluster)
	}
	return p.last, nil
}

func (p *Provisioner) timeoutError(timeout time.Duration, attempts int) error {
	return errors.ProvisioningError(errors.ErrCodeProvisionTimeout,
		fmt.Sprintf("Cluster not available after %s", timeout), nil).
		WithContext("cluster", p.spec.Identifier).
		WithContext("attempts", attempts).
		WithSuggestions("Raise pipeline.poll_timeout or check the cluster in the AWS console")
}

func isAWSCode(err error, code string) bool {
	var aerr awserr.Error
	return stderrors.As(err, &aerr) && aerr.Code() == code
}
