package models

import "time"

// Config is the complete run configuration. It is built once at startup and
// passed explicitly to every component constructor.
type Config struct {
	AWS      AWS              `mapstructure:"aws" yaml:"aws"`
	Cluster  Cluster          `mapstructure:"cluster" yaml:"cluster"`
	IAMRole  IAMRole          `mapstructure:"iam_role" yaml:"iam_role"`
	S3       S3               `mapstructure:"s3" yaml:"s3"`
	Pipeline Pipeline         `mapstructure:"pipeline" yaml:"pipeline"`
	Report   Report           `mapstructure:"report" yaml:"report"`
	Log      Log              `mapstructure:"log" yaml:"log"`
	Expected map[string]int64 `mapstructure:"expected" yaml:"expected,omitempty"`
}

// AWS holds the access key pair used for the cluster management API.
type AWS struct {
	Key    string `mapstructure:"key" yaml:"key"`
	Secret string `mapstructure:"secret" yaml:"secret"`
	Region string `mapstructure:"region" yaml:"region"`
}

// Cluster describes the cluster to provision and how to reach its database.
type Cluster struct {
	ClusterType  string `mapstructure:"cluster_type" yaml:"cluster_type"`
	NumNodes     int    `mapstructure:"num_nodes" yaml:"num_nodes"`
	NodeType     string `mapstructure:"node_type" yaml:"node_type"`
	Host         string `mapstructure:"host" yaml:"host"`
	DBIdentifier string `mapstructure:"db_identifier" yaml:"db_identifier"`
	DBName       string `mapstructure:"db_name" yaml:"db_name"`
	DBUser       string `mapstructure:"db_user" yaml:"db_user"`
	DBPassword   string `mapstructure:"db_password" yaml:"db_password"`
	DBPort       int    `mapstructure:"db_port" yaml:"db_port"`
	SSLMode      string `mapstructure:"ssl_mode" yaml:"ssl_mode,omitempty"`
}

// IAMRole is the role attached to the cluster for reading from S3.
type IAMRole struct {
	ARN string `mapstructure:"arn" yaml:"arn"`
}

// S3 holds the source locations consumed by the bulk copy.
type S3 struct {
	LogData     string `mapstructure:"log_data" yaml:"log_data"`
	LogJSONPath string `mapstructure:"log_jsonpath" yaml:"log_jsonpath"`
	SongData    string `mapstructure:"song_data" yaml:"song_data"`
}

// Pipeline tunes the orchestration.
type Pipeline struct {
	PollInterval     time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	PollTimeout      time.Duration `mapstructure:"poll_timeout" yaml:"poll_timeout"`
	ExistencePolicy  string        `mapstructure:"existence_policy" yaml:"existence_policy"` // "sum" or "per-table"
	TransactionMode  string        `mapstructure:"transaction_mode" yaml:"transaction_mode"` // "step" or "statement"
	StepRetries      int           `mapstructure:"step_retries" yaml:"step_retries"`
	StepRetryDelay   time.Duration `mapstructure:"step_retry_delay" yaml:"step_retry_delay"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout" yaml:"statement_timeout"`
}

// Report controls where the run report is persisted.
type Report struct {
	Path        string `mapstructure:"path" yaml:"path"`
	YAMLPath    string `mapstructure:"yaml_path" yaml:"yaml_path"`
	MetricsPath string `mapstructure:"metrics_path" yaml:"metrics_path"`
}

// Log configures the process logger.
type Log struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
	File   string `mapstructure:"file" yaml:"file"`
}
