// Package schema drops and recreates the seven managed tables.
package schema

import (
	"context"

	"dwhctl/internal/warehouse"
	"dwhctl/pkg/errors"

	"github.com/sirupsen/logrus"
)

// Step names used in logs and metrics
const (
	StepDrop   = "drop"
	StepCreate = "create"
)

// Runner executes an ordered statement list
type Runner interface {
	Run(ctx context.Context, step string, stmts []warehouse.Statement) error
}

// Manager resets the warehouse schema
type Manager struct {
	runner Runner
	log    logrus.FieldLogger
}

// NewManager creates a schema manager
func NewManager(runner Runner, log logrus.FieldLogger) *Manager {
	return &Manager{runner: runner, log: log.WithField("component", "schema")}
}

// DropStatements returns one idempotent drop per table in drop order
func DropStatements() []warehouse.Statement {
	tables := warehouse.DropOrder()
	stmts := make([]warehouse.Statement, len(tables))
	for i, t := range tables {
		stmts[i] = warehouse.Statement{Table: t.Name, SQL: t.DropSQL()}
	}
	return stmts
}

// CreateStatements returns one create per table in dependency order
func CreateStatements() []warehouse.Statement {
	tables := warehouse.CreateOrder()
	stmts := make([]warehouse.Statement, len(tables))
	for i, t := range tables {
		stmts[i] = warehouse.Statement{Table: t.Name, SQL: t.DDL}
	}
	return stmts
}

// Drop removes all managed tables. Absent tables are not an error.
func (m *Manager) Drop(ctx context.Context) error {
	m.log.Info("Dropping tables")
	if err := m.runner.Run(ctx, StepDrop, DropStatements()); err != nil {
		return warehouse.WrapError(err, errors.ErrCodeSchemaFailed, "Failed to drop table")
	}
	return nil
}

// Create creates all managed tables
func (m *Manager) Create(ctx context.Context) error {
	m.log.Info("Creating tables")
	if err := m.runner.Run(ctx, StepCreate, CreateStatements()); err != nil {
		return warehouse.WrapError(err, errors.ErrCodeSchemaFailed, "Failed to create table")
	}
	return nil
}

// Reset drops then creates every table. After success all seven tables
// exist and are empty.
func (m *Manager) Reset(ctx context.Context) error {
	if err := m.Drop(ctx); err != nil {
		return err
	}
	return m.Create(ctx)
}
