// Package load bulk-copies the raw JSON into staging and transforms it into
// the star schema.
package load

import (
	"context"
	"fmt"
	"strings"

	"dwhctl/internal/warehouse"
	"dwhctl/pkg/errors"
	"dwhctl/pkg/models"

	"github.com/sirupsen/logrus"
)

// Step names used in logs and metrics
const (
	StepCopy      = "copy"
	StepTransform = "transform"
)

// jsonAuto lets the warehouse map JSON fields to columns by name
const jsonAuto = "auto"

// Runner executes an ordered statement list
type Runner interface {
	Run(ctx context.Context, step string, stmts []warehouse.Statement) error
}

// Source describes where a staging table is copied from
type Source struct {
	Table    string
	Location string
	// JSONPaths is an explicit path-mapping file, or "auto"
	JSONPaths string
}

// StagingLoader issues one COPY per staging table
type StagingLoader struct {
	runner  Runner
	sources []Source
	roleARN string
	region  string
	log     logrus.FieldLogger
}

// SourcesFrom builds the two copy sources from the configured locations
func SourcesFrom(s3 models.S3) []Source {
	return []Source{
		{Table: warehouse.StagingEvents, Location: s3.LogData, JSONPaths: s3.LogJSONPath},
		{Table: warehouse.StagingSongs, Location: s3.SongData, JSONPaths: jsonAuto},
	}
}

// NewStagingLoader creates a loader for the configured sources
func NewStagingLoader(runner Runner, cfg *models.Config, log logrus.FieldLogger) *StagingLoader {
	return &StagingLoader{
		runner:  runner,
		sources: SourcesFrom(cfg.S3),
		roleARN: cfg.IAMRole.ARN,
		region:  cfg.AWS.Region,
		log:     log.WithField("component", "staging"),
	}
}

// Statements renders the COPY statements in load order
func (l *StagingLoader) Statements() []warehouse.Statement {
	stmts := make([]warehouse.Statement, len(l.sources))
	for i, src := range l.sources {
		stmts[i] = warehouse.Statement{Table: src.Table, SQL: CopySQL(src, l.roleARN, l.region)}
	}
	return stmts
}

// Copy loads both staging tables. Malformed records are handled by the
// warehouse's own load tolerance.
func (l *StagingLoader) Copy(ctx context.Context) error {
	for _, src := range l.sources {
		l.log.WithFields(logrus.Fields{"table": src.Table, "source": Unquote(src.Location)}).Info("Copying")
	}
	if err := l.runner.Run(ctx, StepCopy, l.Statements()); err != nil {
		return warehouse.WrapError(err, errors.ErrCodeCopyFailed, "Failed to copy")
	}
	return nil
}

// CopySQL renders one COPY statement
func CopySQL(src Source, roleARN, region string) string {
	return fmt.Sprintf("COPY %s FROM %s CREDENTIALS %s FORMAT AS JSON %s REGION %s",
		src.Table,
		QuoteLiteral(src.Location),
		QuoteLiteral("aws_iam_role="+Unquote(roleARN)),
		QuoteLiteral(src.JSONPaths),
		QuoteLiteral(region))
}

// Unquote strips one pair of surrounding single or double quotes, which the
// INI layout allows around locations.
func Unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// QuoteLiteral renders s as a single-quoted SQL literal
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(Unquote(s), "'", "''") + "'"
}
