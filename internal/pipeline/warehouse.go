package pipeline

import (
	"context"

	"dwhctl/internal/load"
	"dwhctl/internal/schema"
	"dwhctl/internal/verify"
	"dwhctl/internal/warehouse"
	"dwhctl/pkg/models"

	"github.com/sirupsen/logrus"
)

// SchemaManager resets the managed tables
type SchemaManager interface {
	Reset(ctx context.Context) error
}

// StagingLoader copies raw data into staging
type StagingLoader interface {
	Copy(ctx context.Context) error
}

// Transformer fills the star schema from staging
type Transformer interface {
	Transform(ctx context.Context) error
}

// ExistenceChecker reads live table state
type ExistenceChecker interface {
	Counts(ctx context.Context) (verify.Counts, error)
	DuplicateKeys(ctx context.Context) (map[string]int64, error)
	EarliestEvent(ctx context.Context) (int64, error)
}

// Warehouse bundles the components bound to one open connection
type Warehouse struct {
	Schema      SchemaManager
	Staging     StagingLoader
	Transformer Transformer
	Checker     ExistenceChecker
	Close       func() error
}

// Connector opens the warehouse at the given endpoint
type Connector func(ctx context.Context, cfg warehouse.Config) (*Warehouse, error)

// Connect returns a Connector that opens a pgx connection and wires the
// SQL components over a single runner
func Connect(cfg *models.Config, log logrus.FieldLogger) Connector {
	return func(ctx context.Context, whCfg warehouse.Config) (*Warehouse, error) {
		db, err := warehouse.Open(ctx, whCfg)
		if err != nil {
			return nil, err
		}

		runner := warehouse.NewRunner(db, warehouse.TxMode(cfg.Pipeline.TransactionMode),
			cfg.Pipeline.StatementTimeout, log)

		return &Warehouse{
			Schema:      schema.NewManager(runner, log),
			Staging:     load.NewStagingLoader(runner, cfg, log),
			Transformer: load.NewTransformer(runner, log),
			Checker:     verify.NewChecker(runner, log),
			Close:       db.Close,
		}, nil
	}
}
