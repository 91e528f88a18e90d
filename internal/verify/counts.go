// Package verify counts rows in the managed tables, decides whether a load
// is needed and checks the outcome against the expected counts.
package verify

import (
	"context"
	"fmt"
	"sort"

	"dwhctl/internal/warehouse"
	"dwhctl/pkg/errors"

	"github.com/sirupsen/logrus"
)

// Counts maps table name to row count
type Counts map[string]int64

// LoadDependentSum totals the fact and dimension tables
func (c Counts) LoadDependentSum() int64 {
	var sum int64
	for _, name := range warehouse.LoadDependentNames() {
		sum += c[name]
	}
	return sum
}

// EmptyLoadDependent lists the fact and dimension tables without rows
func (c Counts) EmptyLoadDependent() []string {
	var empty []string
	for _, name := range warehouse.LoadDependentNames() {
		if c[name] == 0 {
			empty = append(empty, name)
		}
	}
	return empty
}

// Loaded counts tables holding at least one row
func (c Counts) Loaded() int {
	n := 0
	for _, t := range warehouse.All() {
		if c[t.Name] > 0 {
			n++
		}
	}
	return n
}

// Querier runs single-value queries
type Querier interface {
	QueryInt64(ctx context.Context, query string) (int64, error)
}

// Checker reads live row counts. Nothing is cached between calls.
type Checker struct {
	q   Querier
	log logrus.FieldLogger
}

// NewChecker creates a checker
func NewChecker(q Querier, log logrus.FieldLogger) *Checker {
	return &Checker{q: q, log: log.WithField("component", "verify")}
}

// Counts returns the row count of each of the seven tables
func (c *Checker) Counts(ctx context.Context) (Counts, error) {
	counts := make(Counts, len(warehouse.All()))
	for _, t := range warehouse.All() {
		n, err := c.q.QueryInt64(ctx, t.CountSQL())
		if err != nil {
			return nil, errors.SQLError(errors.ErrCodeCountFailed,
				fmt.Sprintf("Failed to count rows in %s", t.Name), t.CountSQL(), err).
				WithContext("table", t.Name)
		}
		counts[t.Name] = n
		c.log.WithFields(logrus.Fields{"table": t.Name, "rows": n}).Debug("Counted")
	}
	return counts, nil
}

// DuplicateKeys counts repeated natural-key values per dimension table.
// The warehouse does not enforce primary keys, so repeated loads can
// introduce duplicates that row counts alone do not reveal.
func (c *Checker) DuplicateKeys(ctx context.Context) (map[string]int64, error) {
	dups := make(map[string]int64)
	for _, t := range warehouse.Dimensions() {
		n, err := c.q.QueryInt64(ctx, t.DuplicateKeySQL())
		if err != nil {
			return nil, errors.SQLError(errors.ErrCodeCountFailed,
				fmt.Sprintf("Failed to audit keys in %s", t.Name), t.DuplicateKeySQL(), err).
				WithContext("table", t.Name)
		}
		dups[t.Name] = n
		if n > 0 {
			c.log.WithFields(logrus.Fields{"table": t.Name, "key": t.NaturalKey, "duplicates": n}).
				Warn("Duplicate natural keys")
		}
	}
	return dups, nil
}

const earliestEventSQL = "SELECT COALESCE(MIN(ts), 0) FROM staging_events"

// EarliestEvent returns the smallest event epoch in staging, or 0 when
// staging is empty
func (c *Checker) EarliestEvent(ctx context.Context) (int64, error) {
	ts, err := c.q.QueryInt64(ctx, earliestEventSQL)
	if err != nil {
		return 0, errors.SQLError(errors.ErrCodeCountFailed, "Failed to read earliest event", earliestEventSQL, err)
	}
	return ts, nil
}

// sortedNames returns the keys of m in canonical table order, followed by
// any unknown names alphabetically
func sortedNames(m map[string]int64) []string {
	var names []string
	seen := make(map[string]bool)
	for _, t := range warehouse.All() {
		if _, ok := m[t.Name]; ok {
			names = append(names, t.Name)
			seen[t.Name] = true
		}
	}
	var extra []string
	for name := range m {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}
