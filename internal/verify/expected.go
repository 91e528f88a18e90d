package verify

import (
	"fmt"

	"dwhctl/internal/warehouse"
	"dwhctl/pkg/errors"
)

// ExpectedCounts is the reference row count per table for the fixed dataset
type ExpectedCounts map[string]int64

// DefaultExpected returns the counts of the reference dataset
func DefaultExpected() ExpectedCounts {
	return ExpectedCounts{
		warehouse.StagingEvents: 8056,
		warehouse.StagingSongs:  14896,
		warehouse.Songplays:     1144,
		warehouse.Users:         107,
		warehouse.Songs:         14896,
		warehouse.Artists:       10025,
		warehouse.Times:         8023,
	}
}

// ExpectedFrom applies configured overrides to the defaults
func ExpectedFrom(overrides map[string]int64) (ExpectedCounts, error) {
	expected := DefaultExpected()
	for name, n := range overrides {
		if _, ok := warehouse.Lookup(name); !ok {
			return nil, errors.ConfigError(fmt.Sprintf("Unknown table %q in expected counts", name), "expected."+name)
		}
		expected[name] = n
	}
	return expected, nil
}

// Mismatch is a table whose count differs from the expected value
type Mismatch struct {
	Table    string `yaml:"table"`
	Expected int64  `yaml:"expected"`
	Actual   int64  `yaml:"actual"`
}

// Delta is actual minus expected
func (m Mismatch) Delta() int64 {
	return m.Actual - m.Expected
}

// Compare returns every table whose count is not exactly the expected one,
// in canonical order
func Compare(expected ExpectedCounts, actual Counts) []Mismatch {
	var out []Mismatch
	for _, name := range sortedNames(expected) {
		if got := actual[name]; got != expected[name] {
			out = append(out, Mismatch{Table: name, Expected: expected[name], Actual: got})
		}
	}
	return out
}

// Tables lists the mismatched table names
func Tables(mismatches []Mismatch) []string {
	names := make([]string, len(mismatches))
	for i, m := range mismatches {
		names[i] = m.Table
	}
	return names
}
