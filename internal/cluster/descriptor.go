package cluster

import (
	"time"

	"dwhctl/pkg/models"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/redshift"
)

// Cluster statuses reported by the provider
const (
	StatusAvailable = "available"
	StatusCreating  = "creating"
	StatusDeleting  = "deleting"
	StatusModifying = "modifying"
	StatusRebooting = "rebooting"
	StatusResizing  = "resizing"
)

// statuses from which a cluster never becomes available on its own
var failedStatuses = map[string]bool{
	StatusDeleting:            true,
	"failed":                  true,
	"final-snapshot":          true,
	"hardware-failure":        true,
	"incompatible-hsm":        true,
	"incompatible-network":    true,
	"incompatible-parameters": true,
	"incompatible-restore":    true,
	"storage-full":            true,
}

// Descriptor is a snapshot of the cluster as last described by the provider
type Descriptor struct {
	Identifier string    `yaml:"identifier"`
	Status     string    `yaml:"status"`
	Host       string    `yaml:"host,omitempty"`
	Port       int       `yaml:"port,omitempty"`
	DBName     string    `yaml:"db_name"`
	MasterUser string    `yaml:"master_user"`
	IAMRoles   []string  `yaml:"iam_roles,omitempty"`
	NodeType   string    `yaml:"node_type"`
	NumNodes   int       `yaml:"num_nodes"`
	CreatedAt  time.Time `yaml:"created_at,omitempty"`
}

// Available reports whether the cluster accepts connections
func (d *Descriptor) Available() bool {
	return d != nil && d.Status == StatusAvailable
}

// Failed reports whether the cluster is in a state it cannot recover from
func (d *Descriptor) Failed() bool {
	return d != nil && failedStatuses[d.Status]
}

// Endpoint returns host and port, empty until the provider assigns one
func (d *Descriptor) Endpoint() (string, int) {
	if d == nil {
		return "", 0
	}
	return d.Host, d.Port
}

func descriptorFrom(c *redshift.Cluster) *Descriptor {
	d := &Descriptor{
		Identifier: aws.StringValue(c.ClusterIdentifier),
		Status:     aws.StringValue(c.ClusterStatus),
		DBName:     aws.StringValue(c.DBName),
		MasterUser: aws.StringValue(c.MasterUsername),
		NodeType:   aws.StringValue(c.NodeType),
		NumNodes:   int(aws.Int64Value(c.NumberOfNodes)),
		CreatedAt:  aws.TimeValue(c.ClusterCreateTime),
	}
	if c.Endpoint != nil {
		d.Host = aws.StringValue(c.Endpoint.Address)
		d.Port = int(aws.Int64Value(c.Endpoint.Port))
	}
	for _, role := range c.IamRoles {
		d.IAMRoles = append(d.IAMRoles, aws.StringValue(role.IamRoleArn))
	}
	return d
}

// Spec is the desired cluster shape
type Spec struct {
	Identifier  string
	ClusterType string
	NodeType    string
	NumNodes    int
	DBName      string
	User        string
	Password    string
	Port        int
	IAMRoles    []string
}

// SpecFrom builds the cluster shape from the run configuration
func SpecFrom(cfg *models.Config) Spec {
	return Spec{
		Identifier:  cfg.Cluster.DBIdentifier,
		ClusterType: cfg.Cluster.ClusterType,
		NodeType:    cfg.Cluster.NodeType,
		NumNodes:    cfg.Cluster.NumNodes,
		DBName:      cfg.Cluster.DBName,
		User:        cfg.Cluster.DBUser,
		Password:    cfg.Cluster.DBPassword,
		Port:        cfg.Cluster.DBPort,
		IAMRoles:    []string{cfg.IAMRole.ARN},
	}
}

func (s Spec) createInput() *redshift.CreateClusterInput {
	input := &redshift.CreateClusterInput{
		ClusterIdentifier:  aws.String(s.Identifier),
		ClusterType:        aws.String(s.ClusterType),
		NodeType:           aws.String(s.NodeType),
		DBName:             aws.String(s.DBName),
		MasterUsername:     aws.String(s.User),
		MasterUserPassword: aws.String(s.Password),
		IamRoles:           aws.StringSlice(s.IAMRoles),
	}
	// the provider rejects a node count for single-node clusters
	if s.ClusterType != "single-node" {
		input.NumberOfNodes = aws.Int64(int64(s.NumNodes))
	}
	if s.Port > 0 {
		input.Port = aws.Int64(int64(s.Port))
	}
	return input
}
