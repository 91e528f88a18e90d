package warehouse

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"dwhctl/pkg/errors"

	"github.com/sirupsen/logrus"
)

// TxMode selects how a step's statements are committed
type TxMode string

const (
	// TxPerStep wraps every step in one transaction and rolls back on failure
	TxPerStep TxMode = "step"
	// TxPerStatement runs every statement in autocommit
	TxPerStatement TxMode = "statement"
)

// Statement is one SQL statement aimed at a single table
type Statement struct {
	Table string
	SQL   string
}

// StatementError identifies the statement that failed within a step
type StatementError struct {
	Step       string
	Table      string
	Index      int
	SQL        string
	RolledBack bool
	Err        error
}

func (e *StatementError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("%s: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Step, e.Table, e.Err)
}

func (e *StatementError) Unwrap() error {
	return e.Err
}

// Runner executes ordered statement lists against the warehouse
type Runner struct {
	db      *sql.DB
	mode    TxMode
	timeout time.Duration
	log     logrus.FieldLogger
}

// NewRunner creates a runner. A zero timeout leaves statements bounded only
// by the caller's context.
func NewRunner(db *sql.DB, mode TxMode, timeout time.Duration, log logrus.FieldLogger) *Runner {
	if mode == "" {
		mode = TxPerStep
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Runner{db: db, mode: mode, timeout: timeout, log: log}
}

// Mode returns the transaction mode
func (r *Runner) Mode() TxMode {
	return r.mode
}

// Run executes stmts in order on a dedicated connection and stops at the
// first failure. The connection is returned to the pool on every path.
func (r *Runner) Run(ctx context.Context, step string, stmts []Statement) error {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return &StatementError{Step: step, Index: -1, Err: err}
	}
	defer conn.Close()

	if r.mode == TxPerStatement {
		return r.runAutocommit(ctx, conn, step, stmts)
	}
	return r.runInTx(ctx, conn, step, stmts)
}

func (r *Runner) runAutocommit(ctx context.Context, conn *sql.Conn, step string, stmts []Statement) error {
	for i, stmt := range stmts {
		if err := r.exec(ctx, conn, step, i, stmt); err != nil {
			return &StatementError{Step: step, Table: stmt.Table, Index: i, SQL: stmt.SQL, Err: err}
		}
	}
	return nil
}

func (r *Runner) runInTx(ctx context.Context, conn *sql.Conn, step string, stmts []Statement) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return &StatementError{Step: step, Index: -1, Err: err}
	}

	for i, stmt := range stmts {
		if err := r.exec(ctx, tx, step, i, stmt); err != nil {
			stmtErr := &StatementError{Step: step, Table: stmt.Table, Index: i, SQL: stmt.SQL, Err: err}
			if rbErr := tx.Rollback(); rbErr != nil {
				r.log.WithError(rbErr).WithField("step", step).Warn("Rollback failed")
			} else {
				stmtErr.RolledBack = true
			}
			return stmtErr
		}
	}

	if err := tx.Commit(); err != nil {
		return &StatementError{Step: step, Index: len(stmts), Err: fmt.Errorf("commit: %w", err)}
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (r *Runner) exec(ctx context.Context, e execer, step string, index int, stmt Statement) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	log := r.log.WithFields(logrus.Fields{"step": step, "table": stmt.Table, "index": index})
	log.Debug("Executing statement")

	start := time.Now()
	if _, err := e.ExecContext(ctx, stmt.SQL); err != nil {
		log.WithError(err).Error("Statement failed")
		return err
	}
	log.WithField("duration", time.Since(start).Round(time.Millisecond)).Info("Statement complete")
	return nil
}

// QueryInt64 runs a single-value query, such as a row count
func (r *Runner) QueryInt64(ctx context.Context, query string) (int64, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var n int64
	if err := r.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// WrapError converts a runner failure into an AppError carrying code. The
// failing table and statement index are attached as context.
func WrapError(err error, code errors.ErrorCode, action string) error {
	if err == nil {
		return nil
	}

	var stmtErr *StatementError
	if !stderrors.As(err, &stmtErr) {
		return errors.Wrap(err, code, action)
	}

	msg := action
	if stmtErr.Table != "" {
		msg = fmt.Sprintf("%s on %s", action, stmtErr.Table)
	}
	appErr := errors.SQLError(code, msg, stmtErr.SQL, stmtErr.Err).
		WithContext("step", stmtErr.Step).
		WithContext("rolled_back", stmtErr.RolledBack)
	if stmtErr.Table != "" {
		_ = appErr.WithContext("table", stmtErr.Table)
	}
	if stmtErr.Index >= 0 {
		_ = appErr.WithContext("statement_index", stmtErr.Index)
	}
	return appErr
}
