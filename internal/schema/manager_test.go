package schema

import (
	"context"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dwhctl/internal/warehouse"
	"dwhctl/pkg/errors"
)

type recordingRunner struct {
	steps  []string
	tables map[string][]string
	failOn string
}

func (r *recordingRunner) Run(_ context.Context, step string, stmts []warehouse.Statement) error {
	r.steps = append(r.steps, step)
	if r.tables == nil {
		r.tables = make(map[string][]string)
	}
	for i, s := range stmts {
		r.tables[step] = append(r.tables[step], s.Table)
		if step+":"+s.Table == r.failOn {
			return &warehouse.StatementError{Step: step, Table: s.Table, Index: i, SQL: s.SQL,
				RolledBack: true, Err: fmt.Errorf("syntax error")}
		}
	}
	return nil
}

func TestResetOrder(t *testing.T) {
	runner := &recordingRunner{}
	logger, _ := test.NewNullLogger()

	require.NoError(t, NewManager(runner, logger).Reset(context.Background()))

	assert.Equal(t, []string{StepDrop, StepCreate}, runner.steps)
	assert.Equal(t,
		[]string{"staging_events", "staging_songs", "songplays", "users", "songs", "artists", "times"},
		runner.tables[StepDrop])
	assert.Equal(t,
		[]string{"staging_events", "staging_songs", "users", "songs", "artists", "times", "songplays"},
		runner.tables[StepCreate])
}

func TestDropStatementsIdempotent(t *testing.T) {
	for _, s := range DropStatements() {
		assert.Contains(t, s.SQL, "IF EXISTS")
	}
	for _, s := range CreateStatements() {
		assert.Contains(t, s.SQL, "CREATE TABLE IF NOT EXISTS "+s.Table)
	}
}

func TestResetStopsOnDropFailure(t *testing.T) {
	runner := &recordingRunner{failOn: "drop:users"}
	logger, _ := test.NewNullLogger()

	err := NewManager(runner, logger).Reset(context.Background())
	require.Error(t, err)

	assert.Equal(t, []string{StepDrop}, runner.steps)
	assert.True(t, errors.HasCode(err, errors.ErrCodeSchemaFailed))
	assert.Equal(t, errors.ExitSchema, errors.ExitCode(err))
	assert.Contains(t, err.Error(), "users")
}

func TestCreateFailureNamesTable(t *testing.T) {
	runner := &recordingRunner{failOn: "create:songplays"}
	logger, _ := test.NewNullLogger()

	err := NewManager(runner, logger).Create(context.Background())
	require.Error(t, err)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "songplays", appErr.Context["table"])
	assert.Equal(t, 6, appErr.Context["statement_index"])
}
