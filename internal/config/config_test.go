package config

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"dwhctl/internal/testutil"
	"dwhctl/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadINI(t *testing.T) {
	path := testutil.WriteFile(t, "dwh.cfg", testutil.SampleINI)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "AKIAEXAMPLE", cfg.AWS.Key)
	assert.Equal(t, "us-west-2", cfg.AWS.Region)
	assert.Equal(t, "multi-node", cfg.Cluster.ClusterType)
	assert.Equal(t, 4, cfg.Cluster.NumNodes)
	assert.Equal(t, 5439, cfg.Cluster.DBPort)
	assert.Equal(t, "dwhcluster", cfg.Cluster.DBIdentifier)
	assert.Equal(t, "arn:aws:iam::123456789012:role/dwhRole", cfg.IAMRole.ARN)
	assert.Contains(t, cfg.S3.LogData, "s3://udacity-dend/log_data")

	// Defaults
	assert.Equal(t, 60*time.Second, cfg.Pipeline.PollInterval)
	assert.Equal(t, 30*time.Minute, cfg.Pipeline.PollTimeout)
	assert.Equal(t, PolicySum, cfg.Pipeline.ExistencePolicy)
	assert.Equal(t, TxModeStep, cfg.Pipeline.TransactionMode)
	assert.Equal(t, "etl.log", cfg.Report.Path)
}

func TestLoadYAMLWithOverrides(t *testing.T) {
	path := testutil.WriteFile(t, "dwh.yaml", `
aws: {key: k, secret: s, region: eu-west-1}
cluster:
  cluster_type: single-node
  num_nodes: 1
  node_type: dc2.large
  host: localhost
  db_identifier: dev
  db_name: dev
  db_user: dev
  db_password: dev
  db_port: 5439
iam_role: {arn: "arn:aws:iam::1:role/r"}
s3:
  log_data: s3://bucket/log_data
  log_jsonpath: s3://bucket/paths.json
  song_data: s3://bucket/song_data
pipeline:
  poll_interval: 5s
  poll_timeout: 1m
  existence_policy: per-table
expected:
  users: 10
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "eu-west-1", cfg.AWS.Region)
	assert.Equal(t, 5*time.Second, cfg.Pipeline.PollInterval)
	assert.Equal(t, PolicyPerTable, cfg.Pipeline.ExistencePolicy)
	assert.Equal(t, int64(10), cfg.Expected["users"])
}

func TestLoadMissingKeys(t *testing.T) {
	path := testutil.WriteFile(t, "dwh.cfg", `
[CLUSTER]
HOST=localhost
`)

	_, err := Load(path, nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigMissing))
	assert.Equal(t, errors.ExitConfig, errors.ExitCode(err))
	assert.Contains(t, err.Error(), "iam_role.arn")
	assert.NotContains(t, err.Error(), "cluster.host,")
}

func TestLoadEnvironmentOverride(t *testing.T) {
	path := testutil.WriteFile(t, "dwh.cfg", testutil.SampleINI)
	t.Setenv("DWH_CLUSTER_DB_NAME", "fromenv")
	t.Setenv("DWH_PIPELINE_TRANSACTION_MODE", "statement")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "fromenv", cfg.Cluster.DBName)
	assert.Equal(t, TxModeStatement, cfg.Pipeline.TransactionMode)
}

func TestLoadBareIntegerDurations(t *testing.T) {
	path := testutil.WriteFile(t, "dwh.cfg", testutil.SampleINI+`
[PIPELINE]
POLL_INTERVAL=60
POLL_TIMEOUT=1800
STEP_RETRY_DELAY=5m
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, cfg.Pipeline.PollInterval)
	assert.Equal(t, 30*time.Minute, cfg.Pipeline.PollTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Pipeline.StepRetryDelay)
	assert.Equal(t, "require", cfg.Cluster.SSLMode)
}

func TestLoadInvalidDurationNamesFormat(t *testing.T) {
	path := testutil.WriteFile(t, "dwh.cfg", testutil.SampleINI+`
[PIPELINE]
POLL_INTERVAL=1 minute
`)

	_, err := Load(path, nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))
	assert.Equal(t, errors.ExitConfig, errors.ExitCode(err))
	assert.Contains(t, err.Error(), "pipeline.poll_interval")
	assert.Contains(t, err.Error(), "90s or 5m")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.cfg"), nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigNotFound))
}

func TestValidate(t *testing.T) {
	base := func(t *testing.T) string { return testutil.WriteFile(t, "dwh.cfg", testutil.SampleINI) }

	tests := []struct {
		name string
		env  map[string]string
		key  string
	}{
		{"bad policy", map[string]string{"DWH_PIPELINE_EXISTENCE_POLICY": "any"}, "pipeline.existence_policy"},
		{"bad tx mode", map[string]string{"DWH_PIPELINE_TRANSACTION_MODE": "never"}, "pipeline.transaction_mode"},
		{"bad arn", map[string]string{"DWH_IAM_ROLE_ARN": "dwhRole"}, "iam_role.arn"},
		{"bad s3", map[string]string{"DWH_S3_SONG_DATA": "/tmp/songs"}, "s3.song_data"},
		{"timeout below interval", map[string]string{"DWH_PIPELINE_POLL_TIMEOUT": "1s"}, "pipeline.poll_timeout"},
		{"bad ssl mode", map[string]string{"DWH_CLUSTER_SSL_MODE": "sometimes"}, "cluster.ssl_mode"},
		{"bad duration", map[string]string{"DWH_PIPELINE_POLL_INTERVAL": "a minute"}, "pipeline.poll_interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := base(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(path, nil)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestEncryptDecrypt(t *testing.T) {
	sealed, err := Encrypt("Passw0rd", "correct horse")
	require.NoError(t, err)
	assert.True(t, IsEncrypted(sealed))

	plain, err := Decrypt(sealed, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "Passw0rd", plain)

	_, err = Decrypt(sealed, "wrong")
	assert.Error(t, err)

	_, err = Encrypt("x", "")
	assert.Error(t, err)
}

func TestSecretResolver(t *testing.T) {
	sealed, err := Encrypt("Passw0rd", "pp")
	require.NoError(t, err)

	resolver := &SecretResolver{
		passphrase: "pp",
		keyringGet: func(service, user string) (string, error) {
			if service == KeyringService && user == "aws-secret" {
				return "from-keyring", nil
			}
			return "", fmt.Errorf("not found")
		},
	}

	got, err := resolver.Resolve(sealed)
	require.NoError(t, err)
	assert.Equal(t, "Passw0rd", got)

	got, err = resolver.Resolve("keyring:aws-secret")
	require.NoError(t, err)
	assert.Equal(t, "from-keyring", got)

	got, err = resolver.Resolve("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", got)

	_, err = resolver.Resolve("keyring:missing")
	assert.Error(t, err)

	_, err = resolver.WithPassphrase("").Resolve(sealed)
	assert.Error(t, err)
}

func TestLoadResolvesSecrets(t *testing.T) {
	sealed, err := Encrypt("Sup3rSecret", "pp")
	require.NoError(t, err)

	t.Setenv("DWH_CLUSTER_DB_PASSWORD", sealed)
	path := testutil.WriteFile(t, "dwh.cfg", testutil.SampleINI)

	cfg, err := Load(path, (&SecretResolver{keyringGet: nil}).WithPassphrase("pp"))
	require.NoError(t, err)
	assert.Equal(t, "Sup3rSecret", cfg.Cluster.DBPassword)
}

func TestGetConfigFile(t *testing.T) {
	assert.Equal(t, "explicit.cfg", GetConfigFile("explicit.cfg"))

	t.Setenv("DWH_CONFIG", "/etc/dwh/dwh.cfg")
	assert.Equal(t, "/etc/dwh/dwh.cfg", GetConfigFile(""))

	t.Setenv("DWH_CONFIG", "")
	assert.Equal(t, DefaultConfigFile, GetConfigFile(""))
}
