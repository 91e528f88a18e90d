package warehouse

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dwhctl/internal/testutil"
	"dwhctl/pkg/models"
)

func newMockRunner(t *testing.T, mode TxMode) (*Runner, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := testutil.NewSQLMock(t)

	logger, _ := test.NewNullLogger()
	return NewRunner(db, mode, time.Minute, logger), mock
}

func TestTableOrders(t *testing.T) {
	assert.Equal(t,
		[]string{"staging_events", "staging_songs", "songplays", "users", "songs", "artists", "times"},
		Names(DropOrder()))
	assert.Equal(t,
		[]string{"staging_events", "staging_songs", "users", "songs", "artists", "times", "songplays"},
		Names(CreateOrder()))
	assert.Equal(t,
		[]string{"songplays", "users", "songs", "artists", "times"},
		LoadDependentNames())
	assert.Equal(t, []string{"users", "songs", "artists", "times"}, Names(Dimensions()))
}

func TestTableSQL(t *testing.T) {
	users, ok := Lookup(Users)
	require.True(t, ok)

	assert.Equal(t, "DROP TABLE IF EXISTS users", users.DropSQL())
	assert.Equal(t, "SELECT COUNT(*) FROM users", users.CountSQL())
	assert.Contains(t, users.DuplicateKeySQL(), "GROUP BY user_id HAVING COUNT(*) > 1")
	assert.Contains(t, users.DDL, "CREATE TABLE IF NOT EXISTS users")

	songplays, _ := Lookup(Songplays)
	assert.Empty(t, songplays.DuplicateKeySQL())
	assert.Contains(t, songplays.DDL, "IDENTITY(0,1)")
	assert.Contains(t, songplays.DDL, "REFERENCES users(user_id)")
	assert.Contains(t, songplays.DDL, "REFERENCES songs(song_id)")
	assert.Contains(t, songplays.DDL, "REFERENCES artists(artist_id)")
	// epoch BIGINT cannot reference the TIMESTAMP key of times
	assert.Contains(t, songplays.DDL, "start_time  BIGINT NOT NULL,")
	assert.NotContains(t, songplays.DDL, "REFERENCES times")

	_, ok = Lookup("nope")
	assert.False(t, ok)
}

func TestRunnerStepCommits(t *testing.T) {
	runner, mock := newMockRunner(t, TxPerStep)

	mock.ExpectBegin()
	mock.ExpectExec("DROP TABLE IF EXISTS users").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DROP TABLE IF EXISTS songs").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := runner.Run(context.Background(), "drop", []Statement{
		{Table: Users, SQL: "DROP TABLE IF EXISTS users"},
		{Table: Songs, SQL: "DROP TABLE IF EXISTS songs"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunnerStepRollsBack(t *testing.T) {
	runner, mock := newMockRunner(t, TxPerStep)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT users").WillReturnResult(sqlmock.NewResult(0, 107))
	mock.ExpectExec("INSERT songs").WillReturnError(fmt.Errorf("permission denied for relation songs"))
	mock.ExpectRollback()

	err := runner.Run(context.Background(), "transform", []Statement{
		{Table: Users, SQL: "INSERT users"},
		{Table: Songs, SQL: "INSERT songs"},
		{Table: Artists, SQL: "INSERT artists"},
	})
	require.Error(t, err)

	var stmtErr *StatementError
	require.ErrorAs(t, err, &stmtErr)
	assert.Equal(t, "transform", stmtErr.Step)
	assert.Equal(t, Songs, stmtErr.Table)
	assert.Equal(t, 1, stmtErr.Index)
	assert.True(t, stmtErr.RolledBack)
	assert.Contains(t, err.Error(), "permission denied")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunnerStatementMode(t *testing.T) {
	runner, mock := newMockRunner(t, TxPerStatement)
	assert.Equal(t, TxPerStatement, runner.Mode())

	mock.ExpectExec("COPY a").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("COPY b").WillReturnError(fmt.Errorf("Load into table 'b' failed. Check 'stl_load_errors'"))

	err := runner.Run(context.Background(), "copy", []Statement{
		{Table: StagingEvents, SQL: "COPY a"},
		{Table: StagingSongs, SQL: "COPY b"},
	})

	var stmtErr *StatementError
	require.ErrorAs(t, err, &stmtErr)
	assert.Equal(t, StagingSongs, stmtErr.Table)
	assert.False(t, stmtErr.RolledBack)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunnerCommitFailure(t *testing.T) {
	runner, mock := newMockRunner(t, TxPerStep)

	mock.ExpectBegin()
	mock.ExpectExec("CREATE x").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit().WillReturnError(fmt.Errorf("serializable isolation violation"))

	err := runner.Run(context.Background(), "create", []Statement{{Table: Users, SQL: "CREATE x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunnerQueryInt64(t *testing.T) {
	runner, mock := newMockRunner(t, TxPerStep)

	mock.ExpectQuery("SELECT COUNT(*) FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(107))

	n, err := runner.QueryInt64(context.Background(), "SELECT COUNT(*) FROM users")
	require.NoError(t, err)
	assert.Equal(t, int64(107), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfigFrom(t *testing.T) {
	cluster := models.Cluster{Host: "configured", DBPort: 5439, DBName: "dwh", DBUser: "u", DBPassword: "p"}

	cfg := ConfigFrom(cluster, "", 0)
	assert.Equal(t, "configured", cfg.Host)
	assert.Equal(t, 5439, cfg.Port)

	cfg = ConfigFrom(cluster, "dwhcluster.abc.redshift.amazonaws.com", 5440)
	assert.Equal(t, "dwhcluster.abc.redshift.amazonaws.com", cfg.Host)
	assert.Equal(t, 5440, cfg.Port)
	assert.Contains(t, cfg.String(), "password=***")
}

func TestConnConfigCarriesTLSForEndpoint(t *testing.T) {
	endpoint := "dwhcluster.abc123.us-west-2.redshift.amazonaws.com"
	cfg := ConfigFrom(testutil.Config().Cluster, endpoint, 5439)

	connConfig, err := ConnConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, endpoint, connConfig.Host)
	assert.Equal(t, uint16(5439), connConfig.Port)
	assert.Equal(t, "dwh", connConfig.Database)
	assert.Equal(t, "dwhuser", connConfig.User)
	assert.Equal(t, "Passw0rd", connConfig.Password)
	assert.Equal(t, 30*time.Second, connConfig.ConnectTimeout)

	require.NotNil(t, connConfig.TLSConfig)
	assert.Equal(t, endpoint, connConfig.TLSConfig.ServerName)
	for _, fallback := range connConfig.Fallbacks {
		assert.Equal(t, endpoint, fallback.Host)
		assert.NotNil(t, fallback.TLSConfig, "require mode must not fall back to plaintext")
	}
}

func TestConnConfigQuotesAwkwardValues(t *testing.T) {
	cfg := Config{
		Host:     "localhost",
		Port:     5439,
		Database: "dwh",
		User:     "dwh user",
		Password: `it's a p\ss`,
		SSLMode:  "disable",
	}

	connConfig, err := ConnConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "dwh user", connConfig.User)
	assert.Equal(t, `it's a p\ss`, connConfig.Password)
	assert.Nil(t, connConfig.TLSConfig)
	assert.NotContains(t, cfg.String(), "p\\ss")
}

func TestConnConfigDefaultsToRequire(t *testing.T) {
	cluster := testutil.Config().Cluster
	cluster.SSLMode = ""

	cfg := ConfigFrom(cluster, "", 0)
	assert.Equal(t, DefaultSSLMode, cfg.SSLMode)
	assert.Contains(t, cfg.DSN(), "sslmode=require")
	assert.Contains(t, cfg.DSN(), "connect_timeout=30")
}
