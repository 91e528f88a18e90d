package verify

import (
	"fmt"

	"dwhctl/pkg/errors"
)

// Policy decides whether the load step runs
type Policy string

const (
	// PolicySum loads only when the fact and dimension tables are all empty
	PolicySum Policy = "sum"
	// PolicyPerTable loads when any fact or dimension table is empty
	PolicyPerTable Policy = "per-table"
)

// ParsePolicy validates a policy name. Empty selects PolicySum.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicySum:
		return PolicySum, nil
	case PolicyPerTable:
		return PolicyPerTable, nil
	default:
		return "", errors.ConfigError(fmt.Sprintf("Unknown existence policy %q", s), "pipeline.existence_policy")
	}
}

// NeedsLoad applies the policy to the current counts
func (p Policy) NeedsLoad(c Counts) bool {
	if p == PolicyPerTable {
		return len(c.EmptyLoadDependent()) > 0
	}
	return c.LoadDependentSum() == 0
}
