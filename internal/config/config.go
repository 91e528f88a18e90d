package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dwhctl/internal/common"
	"dwhctl/pkg/errors"
	"dwhctl/pkg/models"

	"github.com/spf13/viper"
	"gopkg.in/ini.v1"
)

const (
	// EnvPrefix prefixes every environment override, e.g. DWH_CLUSTER_HOST
	EnvPrefix = "DWH"
	// DefaultConfigFile is read from the working directory when no path is given
	DefaultConfigFile = "dwh.cfg"

	PolicySum      = "sum"
	PolicyPerTable = "per-table"

	TxModeStep      = "step"
	TxModeStatement = "statement"
)

// SSLModes lists the accepted cluster.ssl_mode values
var SSLModes = []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}

// durationKeys accept Go durations ("90s", "5m") or bare integers, read as seconds
var durationKeys = []string{
	"pipeline.poll_interval",
	"pipeline.poll_timeout",
	"pipeline.step_retry_delay",
	"pipeline.statement_timeout",
}

// RequiredKeys lists every setting that must be present before any remote call.
var RequiredKeys = []string{
	"aws.key",
	"aws.secret",
	"cluster.cluster_type",
	"cluster.num_nodes",
	"cluster.node_type",
	"cluster.host",
	"cluster.db_identifier",
	"cluster.db_name",
	"cluster.db_user",
	"cluster.db_password",
	"cluster.db_port",
	"iam_role.arn",
	"s3.log_data",
	"s3.log_jsonpath",
	"s3.song_data",
}

var optionalKeys = []string{
	"aws.region",
	"cluster.ssl_mode",
	"pipeline.poll_interval",
	"pipeline.poll_timeout",
	"pipeline.existence_policy",
	"pipeline.transaction_mode",
	"pipeline.step_retries",
	"pipeline.step_retry_delay",
	"pipeline.statement_timeout",
	"report.path",
	"report.yaml_path",
	"report.metrics_path",
	"log.level",
	"log.format",
	"log.file",
}

// GetConfigFile resolves the config file path: explicit flag, then
// $DWH_CONFIG, then ./dwh.cfg.
func GetConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if configFile := os.Getenv(EnvPrefix + "_CONFIG"); configFile != "" {
		return configFile
	}
	return DefaultConfigFile
}

// Load reads, validates and resolves the configuration at path. Secrets are
// decrypted or fetched from the keyring using the given resolver.
func Load(path string, secrets *SecretResolver) (*models.Config, error) {
	v := newViper()

	if path != "" {
		if err := readFile(v, path); err != nil {
			return nil, err
		}
	}

	var missing []string
	for _, key := range RequiredKeys {
		if strings.TrimSpace(v.GetString(key)) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, errors.MissingConfigError(missing).WithContext("file", path)
	}

	if err := normalizeDurations(v); err != nil {
		return nil, err
	}

	var cfg models.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to decode configuration").
			WithContext("file", path)
	}

	if secrets != nil {
		if err := secrets.ResolveConfig(&cfg); err != nil {
			return nil, err
		}
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks value ranges and enumerations after decoding.
func Validate(cfg *models.Config) error {
	if cfg.Cluster.NumNodes < 1 {
		return errors.ConfigError("Number of nodes must be at least 1", "cluster.num_nodes")
	}
	if cfg.Cluster.DBPort < 1 || cfg.Cluster.DBPort > 65535 {
		return errors.ConfigError(fmt.Sprintf("Invalid port %d", cfg.Cluster.DBPort), "cluster.db_port")
	}
	if !strings.HasPrefix(cfg.IAMRole.ARN, "arn:") {
		return errors.ConfigError("IAM role must be an ARN", "iam_role.arn")
	}
	for key, location := range map[string]string{
		"s3.log_data":     cfg.S3.LogData,
		"s3.log_jsonpath": cfg.S3.LogJSONPath,
		"s3.song_data":    cfg.S3.SongData,
	} {
		if !strings.HasPrefix(strings.Trim(location, `'"`), "s3://") {
			return errors.ConfigError(fmt.Sprintf("%s must be an s3:// location", key), key)
		}
	}

	if cfg.Cluster.SSLMode != "" && !contains(SSLModes, cfg.Cluster.SSLMode) {
		return errors.ConfigError(
			fmt.Sprintf("Unknown SSL mode %q (want one of %s)", cfg.Cluster.SSLMode, strings.Join(SSLModes, ", ")),
			"cluster.ssl_mode")
	}

	switch cfg.Pipeline.ExistencePolicy {
	case PolicySum, PolicyPerTable:
	default:
		return errors.ConfigError(
			fmt.Sprintf("Unknown existence policy %q (want %q or %q)", cfg.Pipeline.ExistencePolicy, PolicySum, PolicyPerTable),
			"pipeline.existence_policy")
	}

	switch cfg.Pipeline.TransactionMode {
	case TxModeStep, TxModeStatement:
	default:
		return errors.ConfigError(
			fmt.Sprintf("Unknown transaction mode %q (want %q or %q)", cfg.Pipeline.TransactionMode, TxModeStep, TxModeStatement),
			"pipeline.transaction_mode")
	}

	if cfg.Pipeline.PollInterval <= 0 {
		return errors.ConfigError("Poll interval must be positive", "pipeline.poll_interval")
	}
	if cfg.Pipeline.PollTimeout < cfg.Pipeline.PollInterval {
		return errors.ConfigError("Poll timeout must not be shorter than the poll interval", "pipeline.poll_timeout")
	}
	if cfg.Pipeline.StepRetries < 0 {
		return errors.ConfigError("Step retries cannot be negative", "pipeline.step_retries")
	}

	for table, count := range cfg.Expected {
		if count < 0 {
			return errors.ConfigError(fmt.Sprintf("Expected count for %s cannot be negative", table), "expected."+table)
		}
	}

	return nil
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("aws.region", "us-west-2")
	v.SetDefault("cluster.ssl_mode", "require")
	v.SetDefault("pipeline.poll_interval", 60*time.Second)
	v.SetDefault("pipeline.poll_timeout", 30*time.Minute)
	v.SetDefault("pipeline.existence_policy", PolicySum)
	v.SetDefault("pipeline.transaction_mode", TxModeStep)
	v.SetDefault("pipeline.step_retries", 0)
	v.SetDefault("pipeline.step_retry_delay", 30*time.Second)
	v.SetDefault("pipeline.statement_timeout", time.Duration(0))
	v.SetDefault("report.path", "etl.log")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Bind explicitly so env-only keys survive Unmarshal
	for _, key := range append(append([]string{}, RequiredKeys...), optionalKeys...) {
		_ = v.BindEnv(key)
	}

	return v
}

// normalizeDurations rewrites bare integers as seconds and rejects anything
// time.ParseDuration cannot read, naming the key and the expected format.
func normalizeDurations(v *viper.Viper) error {
	for _, key := range durationKeys {
		raw, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
			v.Set(key, time.Duration(secs)*time.Second)
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return errors.ConfigError(
				fmt.Sprintf("Invalid duration %q for %s (use seconds or a unit suffix, e.g. 60, 90s or 5m)", raw, key),
				key)
		}
		v.Set(key, d)
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func readFile(v *viper.Viper, path string) error {
	cleaned, err := common.CleanPath(path)
	if err != nil {
		return errors.ConfigError(fmt.Sprintf("Invalid config path: %v", err), "config")
	}

	if _, err := os.Stat(cleaned); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigNotFound, "Config file not found").
			WithContext("file", cleaned).
			WithSeverity(errors.SeverityCritical).
			WithSuggestions("Pass --config or set DWH_CONFIG")
	}

	switch strings.ToLower(filepath.Ext(cleaned)) {
	case ".cfg", ".ini":
		values, err := readINI(cleaned)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to parse INI config").
				WithContext("file", cleaned)
		}
		if err := v.MergeConfigMap(values); err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to merge INI config").
				WithContext("file", cleaned)
		}
	default:
		v.SetConfigFile(cleaned)
		if err := v.ReadInConfig(); err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to read config").
				WithContext("file", cleaned)
		}
	}

	return nil
}

// readINI turns the [SECTION] KEY=value layout into nested lower-cased maps.
func readINI(path string) (map[string]interface{}, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, err
	}

	values := make(map[string]interface{})
	for _, section := range file.Sections() {
		if section.Name() == ini.DefaultSection {
			continue
		}
		entries := make(map[string]interface{}, len(section.Keys()))
		for _, key := range section.Keys() {
			entries[strings.ToLower(key.Name())] = key.String()
		}
		values[strings.ToLower(section.Name())] = entries
	}

	return values, nil
}
