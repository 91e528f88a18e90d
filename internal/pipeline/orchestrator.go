// Package pipeline runs the fixed provision, reset, load and verify
// sequence against one warehouse.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"dwhctl/internal/cluster"
	"dwhctl/internal/load"
	"dwhctl/internal/report"
	"dwhctl/internal/verify"
	"dwhctl/internal/warehouse"
	"dwhctl/pkg/errors"
	"dwhctl/pkg/models"

	"github.com/sirupsen/logrus"
)

// State is a step of the run
type State string

const (
	StateDiscover       State = "discover"
	StateProvision      State = "provision"
	StateReady          State = "ready"
	StateResetSchema    State = "reset_schema"
	StateCheckExistence State = "check_existence"
	StateDecide         State = "decide"
	StateLoad           State = "load"
	StateVerify         State = "verify"
	StateReport         State = "report"
)

// Provisioner finds or creates the cluster
type Provisioner interface {
	Describe(ctx context.Context) (*cluster.Descriptor, error)
	Create(ctx context.Context) (*cluster.Descriptor, error)
	AwaitAvailable(ctx context.Context, interval, timeout time.Duration, onPoll cluster.PollFunc) (*cluster.Descriptor, error)
}

// Observer records step timings and the outcome
type Observer interface {
	ObserveStep(step string, d time.Duration, err error)
	ObserveCounts(counts map[string]int64)
	ObserveVerdict(passed, loaded bool, finished time.Time)
}

// Publisher emits the finished report
type Publisher interface {
	Publish(r *report.LoadReport) error
}

// Options tune a run
type Options struct {
	Policy         verify.Policy
	Expected       verify.ExpectedCounts
	TxMode         warehouse.TxMode
	PollInterval   time.Duration
	PollTimeout    time.Duration
	StepRetries    int
	StepRetryDelay time.Duration
	// NoProvision fails instead of creating a missing cluster
	NoProvision bool
}

// OptionsFrom derives run options from the configuration
func OptionsFrom(cfg *models.Config) (Options, error) {
	policy, err := verify.ParsePolicy(cfg.Pipeline.ExistencePolicy)
	if err != nil {
		return Options{}, err
	}
	expected, err := verify.ExpectedFrom(cfg.Expected)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Policy:         policy,
		Expected:       expected,
		TxMode:         warehouse.TxMode(cfg.Pipeline.TransactionMode),
		PollInterval:   cfg.Pipeline.PollInterval,
		PollTimeout:    cfg.Pipeline.PollTimeout,
		StepRetries:    cfg.Pipeline.StepRetries,
		StepRetryDelay: cfg.Pipeline.StepRetryDelay,
	}, nil
}

// Orchestrator drives one run. It holds no state between runs apart from
// the trace of the last one.
type Orchestrator struct {
	cfg         *models.Config
	opts        Options
	provisioner Provisioner
	connect     Connector
	observer    Observer
	publisher   Publisher
	onPoll      cluster.PollFunc
	log         logrus.FieldLogger
	now         func() time.Time
	trace       []State
}

// New creates an orchestrator
func New(cfg *models.Config, opts Options, provisioner Provisioner, connect Connector, log logrus.FieldLogger) *Orchestrator {
	return &Orchestrator{
		cfg:         cfg,
		opts:        opts,
		provisioner: provisioner,
		connect:     connect,
		log:         log.WithField("component", "pipeline"),
		now:         time.Now,
	}
}

// WithObserver attaches a metrics observer
func (o *Orchestrator) WithObserver(obs Observer) *Orchestrator {
	o.observer = obs
	return o
}

// WithPublisher attaches the report sink
func (o *Orchestrator) WithPublisher(p Publisher) *Orchestrator {
	o.publisher = p
	return o
}

// WithPollObserver is called on every cluster status check
func (o *Orchestrator) WithPollObserver(fn cluster.PollFunc) *Orchestrator {
	o.onPoll = fn
	return o
}

// Trace returns the states entered by the last run, in order
func (o *Orchestrator) Trace() []State {
	return append([]State(nil), o.trace...)
}

// Run executes the full sequence and returns the report. A count mismatch
// is not an error here; it is carried in the report verdict.
func (o *Orchestrator) Run(ctx context.Context) (*report.LoadReport, error) {
	o.trace = nil
	rep := report.New(o.now())
	rep.Policy = string(o.opts.Policy)
	rep.TxMode = string(o.opts.TxMode)
	log := o.log.WithField("run_id", rep.RunID)

	desc, provisioned, err := o.ensureCluster(ctx)
	if err != nil {
		return nil, err
	}
	rep.Provisioned = provisioned
	rep.Cluster = o.clusterInfo(desc)

	wh, err := o.ready(ctx, desc)
	if err != nil {
		return nil, err
	}
	defer o.close(wh)

	o.enter(StateResetSchema)
	if err := o.step(ctx, string(StateResetSchema), wh.Schema.Reset); err != nil {
		return nil, err
	}

	o.enter(StateCheckExistence)
	var before verify.Counts
	err = o.step(ctx, string(StateCheckExistence), func(ctx context.Context) error {
		before, err = wh.Checker.Counts(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	rep.Before = before

	o.enter(StateDecide)
	needsLoad := o.opts.Policy.NeedsLoad(before)
	log.WithFields(logrus.Fields{
		"policy":       o.opts.Policy,
		"existing_sum": before.LoadDependentSum(),
		"empty":        before.EmptyLoadDependent(),
		"load":         needsLoad,
	}).Info("Existence check")

	if needsLoad {
		o.enter(StateLoad)
		start := o.now()
		if err := o.step(ctx, load.StepCopy, wh.Staging.Copy); err != nil {
			return nil, err
		}
		if err := o.step(ctx, load.StepTransform, wh.Transformer.Transform); err != nil {
			return nil, err
		}
		rep.RecordLoad(o.now().Sub(start))
		log.WithField("duration", rep.LoadDuration.Round(time.Millisecond)).Info("Load complete")
	}

	o.enter(StateVerify)
	var after verify.Counts
	err = o.step(ctx, string(StateVerify), func(ctx context.Context) error {
		after, err = wh.Checker.Counts(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := diagnose(ctx, wh.Checker, rep, log); err != nil {
		return nil, err
	}

	rep.Finish(after, o.opts.Expected, o.now())
	if o.observer != nil {
		o.observer.ObserveCounts(after)
		o.observer.ObserveVerdict(rep.Passed, rep.Loaded, rep.FinishedAt)
	}

	o.enter(StateReport)
	log.WithFields(logrus.Fields{
		"passed":     rep.Passed,
		"loaded":     rep.Loaded,
		"mismatches": verify.Tables(rep.Mismatches),
	}).Info("Run finished")

	if o.publisher != nil {
		if err := o.publisher.Publish(rep); err != nil {
			return rep, errors.Wrap(err, errors.ErrCodeInternal, "Failed to publish report")
		}
	}
	return rep, nil
}

// diagnose runs the checks that never affect the verdict. Their failures
// become report warnings; only cancellation stops the run.
func diagnose(ctx context.Context, checker ExistenceChecker, rep *report.LoadReport, log logrus.FieldLogger) error {
	dups, err := checker.DuplicateKeys(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.WithError(err).Warn("Duplicate key check failed")
		rep.AddWarning(fmt.Sprintf("duplicate key check failed: %v", err))
	} else {
		rep.Duplicates = dups
	}

	ts, err := checker.EarliestEvent(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.WithError(err).Warn("Earliest event lookup failed")
		rep.AddWarning(fmt.Sprintf("earliest event lookup failed: %v", err))
	} else if ts > 0 {
		parts := load.DecomposeEpoch(ts)
		rep.FirstEvent = &parts
	}
	return nil
}

// Reset finds the cluster and recreates the schema without loading
func (o *Orchestrator) Reset(ctx context.Context) error {
	o.trace = nil

	desc, _, err := o.ensureCluster(ctx)
	if err != nil {
		return err
	}
	wh, err := o.ready(ctx, desc)
	if err != nil {
		return err
	}
	defer o.close(wh)

	o.enter(StateResetSchema)
	return o.step(ctx, string(StateResetSchema), wh.Schema.Reset)
}

// Provision finds or creates the cluster and waits until it is available
func (o *Orchestrator) Provision(ctx context.Context) (*cluster.Descriptor, bool, error) {
	o.trace = nil
	return o.ensureCluster(ctx)
}

// ensureCluster runs Discover and, when the cluster is absent, Provision.
// The bool reports whether this run requested the cluster.
func (o *Orchestrator) ensureCluster(ctx context.Context) (*cluster.Descriptor, bool, error) {
	o.enter(StateDiscover)
	start := o.now()
	desc, err := o.provisioner.Describe(ctx)
	o.observe(string(StateDiscover), o.now().Sub(start), err)
	if err != nil {
		return nil, false, err
	}

	provisioned := false
	if desc == nil {
		if o.opts.NoProvision {
			return nil, false, errors.ProvisioningError(errors.ErrCodeClusterNotFound,
				"Cluster does not exist and provisioning is disabled", nil).
				WithContext("cluster", o.cfg.Cluster.DBIdentifier).
				WithSuggestions("Run 'dwhctl provision' or drop --no-provision")
		}

		o.enter(StateProvision)
		start = o.now()
		_, err := o.provisioner.Create(ctx)
		switch {
		case err == nil:
			provisioned = true
		case errors.HasCode(err, errors.ErrCodeClusterAlreadyExists):
			o.log.Info("Cluster already exists, waiting for it")
		default:
			o.observe(string(StateProvision), o.now().Sub(start), err)
			return nil, false, err
		}
	} else {
		o.log.WithField("status", desc.Status).Info("Found existing cluster")
		start = o.now()
	}

	if !desc.Available() {
		desc, err = o.provisioner.AwaitAvailable(ctx, o.opts.PollInterval, o.opts.PollTimeout, o.onPoll)
		o.observe(string(StateProvision), o.now().Sub(start), err)
		if err != nil {
			return nil, provisioned, err
		}
	}

	return desc, provisioned, nil
}

// ready connects to the database behind an available cluster
func (o *Orchestrator) ready(ctx context.Context, desc *cluster.Descriptor) (*Warehouse, error) {
	o.enter(StateReady)
	host, port := desc.Endpoint()
	cfg := warehouse.ConfigFrom(o.cfg.Cluster, host, port)
	o.log.WithField("endpoint", cfg.String()).Debug("Connecting")

	wh, err := o.connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return wh, nil
}

// step runs fn as one named step with optional bounded retries. Retries
// are only safe when the step is transactional.
func (o *Orchestrator) step(ctx context.Context, name string, fn func(context.Context) error) error {
	start := o.now()

	retries := o.opts.StepRetries
	if retries > 0 && o.opts.TxMode == warehouse.TxPerStatement {
		o.log.WithField("step", name).Warn("Step retries disabled in statement transaction mode")
		retries = 0
	}

	retry := errors.DefaultRetryConfig()
	retry.MaxRetries = retries
	retry.InitialDelay = o.opts.StepRetryDelay
	retry.MaxDelay = 4 * o.opts.StepRetryDelay
	retry.OnRetry = func(attempt int, delay time.Duration, err error) {
		o.log.WithError(err).WithFields(logrus.Fields{
			"step":    name,
			"attempt": attempt,
			"delay":   delay,
		}).Warn("Retrying step")
	}

	err := errors.Retry(ctx, retry, fn)
	o.observe(name, o.now().Sub(start), err)
	return err
}

func (o *Orchestrator) enter(state State) {
	o.trace = append(o.trace, state)
	o.log.WithField("state", state).Debug("Entering state")
}

func (o *Orchestrator) observe(step string, d time.Duration, err error) {
	if o.observer != nil {
		o.observer.ObserveStep(step, d, err)
	}
}

func (o *Orchestrator) close(wh *Warehouse) {
	if err := wh.Close(); err != nil {
		o.log.WithError(err).Warn("Failed to close warehouse connection")
	}
}

// clusterInfo prefers live endpoint values and falls back to configuration
func (o *Orchestrator) clusterInfo(desc *cluster.Descriptor) report.ClusterInfo {
	info := report.ClusterInfo{
		Endpoint:   o.cfg.Cluster.Host,
		Port:       o.cfg.Cluster.DBPort,
		Identifier: o.cfg.Cluster.DBIdentifier,
		User:       o.cfg.Cluster.DBUser,
		IAMRole:    o.cfg.IAMRole.ARN,
		Database:   o.cfg.Cluster.DBName,
	}
	if desc == nil {
		return info
	}
	info.Status = desc.Status
	if host, port := desc.Endpoint(); host != "" {
		info.Endpoint = host
		if port > 0 {
			info.Port = port
		}
	}
	if len(desc.IAMRoles) > 0 {
		info.IAMRole = desc.IAMRoles[0]
	}
	if desc.MasterUser != "" {
		info.User = desc.MasterUser
	}
	return info
}
