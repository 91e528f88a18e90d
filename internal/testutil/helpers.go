// Package testutil provides fixtures shared by the package tests.
package testutil

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dwhctl/pkg/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

// SampleINI is a complete config file in the INI layout
const SampleINI = `
[AWS]
KEY=AKIAEXAMPLE
SECRET=secret-value

[CLUSTER]
CLUSTER_TYPE=multi-node
NUM_NODES=4
NODE_TYPE=dc2.large
HOST=dwhcluster.abc123.us-west-2.redshift.amazonaws.com
DB_IDENTIFIER=dwhcluster
DB_NAME=dwh
DB_USER=dwhuser
DB_PASSWORD=Passw0rd
DB_PORT=5439

[IAM_ROLE]
ARN=arn:aws:iam::123456789012:role/dwhRole

[S3]
LOG_DATA='s3://udacity-dend/log_data'
LOG_JSONPATH='s3://udacity-dend/log_json_path.json'
SONG_DATA='s3://udacity-dend/song_data'
`

// WriteFile writes content to name inside a fresh temp dir and returns the path
func WriteFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// NewSQLMock returns a mock database matching statements exactly. It is
// closed when the test ends.
func NewSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

// Config returns a valid configuration equal to SampleINI with defaults applied
func Config() *models.Config {
	return &models.Config{
		AWS: models.AWS{
			Key:    "AKIAEXAMPLE",
			Secret: "secret-value",
			Region: "us-west-2",
		},
		Cluster: models.Cluster{
			ClusterType:  "multi-node",
			NumNodes:     4,
			NodeType:     "dc2.large",
			Host:         "dwhcluster.abc123.us-west-2.redshift.amazonaws.com",
			DBIdentifier: "dwhcluster",
			DBName:       "dwh",
			DBUser:       "dwhuser",
			DBPassword:   "Passw0rd",
			DBPort:       5439,
			SSLMode:      "require",
		},
		IAMRole: models.IAMRole{ARN: "arn:aws:iam::123456789012:role/dwhRole"},
		S3: models.S3{
			LogData:     "s3://udacity-dend/log_data",
			LogJSONPath: "s3://udacity-dend/log_json_path.json",
			SongData:    "s3://udacity-dend/song_data",
		},
		Pipeline: models.Pipeline{
			PollInterval:    60 * time.Second,
			PollTimeout:     30 * time.Minute,
			ExistencePolicy: "sum",
			TransactionMode: "step",
			StepRetryDelay:  30 * time.Second,
		},
		Report: models.Report{Path: "etl.log"},
		Log:    models.Log{Level: "info", Format: "text"},
	}
}
