// Package report builds the end-of-run summary and persists it.
package report

import (
	"fmt"
	"strings"
	"time"

	"dwhctl/internal/load"
	"dwhctl/internal/verify"
	"dwhctl/internal/warehouse"

	"github.com/google/uuid"
)

// ClusterInfo identifies the cluster the run used
type ClusterInfo struct {
	Endpoint   string `yaml:"endpoint"`
	Port       int    `yaml:"port"`
	Identifier string `yaml:"identifier"`
	User       string `yaml:"user"`
	IAMRole    string `yaml:"iam_role"`
	Status     string `yaml:"status,omitempty"`
	Database   string `yaml:"database"`
}

// LoadReport is the outcome of one pipeline run
type LoadReport struct {
	RunID        string                `yaml:"run_id"`
	StartedAt    time.Time             `yaml:"started_at"`
	FinishedAt   time.Time             `yaml:"finished_at"`
	Cluster      ClusterInfo           `yaml:"cluster"`
	Provisioned  bool                  `yaml:"provisioned"`
	Policy       string                `yaml:"policy"`
	TxMode       string                `yaml:"transaction_mode"`
	Before       verify.Counts         `yaml:"counts_before,omitempty"`
	Loaded       bool                  `yaml:"loaded"`
	LoadDuration time.Duration         `yaml:"-"`
	LoadSeconds  float64               `yaml:"load_seconds,omitempty"`
	Counts       verify.Counts         `yaml:"counts"`
	Expected     verify.ExpectedCounts `yaml:"expected"`
	Mismatches   []verify.Mismatch     `yaml:"mismatches,omitempty"`
	Duplicates   map[string]int64      `yaml:"duplicate_keys,omitempty"`
	FirstEvent   *load.TimeParts       `yaml:"first_event,omitempty"`
	Warnings     []string              `yaml:"warnings,omitempty"`
	Passed       bool                  `yaml:"passed"`
}

// New starts a report with a fresh run id
func New(started time.Time) *LoadReport {
	return &LoadReport{
		RunID:     uuid.NewString(),
		StartedAt: started,
	}
}

// RecordLoad marks that the copy and transform steps ran
func (r *LoadReport) RecordLoad(d time.Duration) {
	r.Loaded = true
	r.LoadDuration = d
	r.LoadSeconds = d.Seconds()
}

// Finish records the final counts and computes the verdict. The verdict
// passes only when every table matches its expected count exactly.
func (r *LoadReport) Finish(counts verify.Counts, expected verify.ExpectedCounts, finished time.Time) {
	r.Counts = counts
	r.Expected = expected
	r.Mismatches = verify.Compare(expected, counts)
	r.Passed = len(r.Mismatches) == 0
	r.FinishedAt = finished
}

// AddWarning records a diagnostic that failed without affecting the verdict
func (r *LoadReport) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// TablesLoaded counts tables holding rows
func (r *LoadReport) TablesLoaded() int {
	return r.Counts.Loaded()
}

// DuplicateTotal sums the duplicate natural keys found
func (r *LoadReport) DuplicateTotal() int64 {
	var n int64
	for _, d := range r.Duplicates {
		n += d
	}
	return n
}

// Text renders the report as plain text, the format appended to the
// report file
func (r *LoadReport) Text() string {
	var b strings.Builder

	fmt.Fprintf(&b, "\n============ Run %s ============\n", r.RunID)
	fmt.Fprintf(&b, "Started=%s\n", r.StartedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Finished=%s\n", r.FinishedAt.UTC().Format(time.RFC3339))

	b.WriteString("\n============ Redshift Cluster ============\n")
	fmt.Fprintf(&b, "RedshiftClusterEndPoint=%s\n", r.Cluster.Endpoint)
	fmt.Fprintf(&b, "RedshiftIdentifier=%s\n", r.Cluster.Identifier)
	fmt.Fprintf(&b, "RedshiftUser=%s\n", r.Cluster.User)
	fmt.Fprintf(&b, "RedshiftIAMRole=%s\n", r.Cluster.IAMRole)

	b.WriteString("\n========== Redshift database ==========\n")
	for _, t := range warehouse.All() {
		fmt.Fprintf(&b, " %s: %d\n", tableLabel(t), r.Counts[t.Name])
	}
	if r.Loaded {
		fmt.Fprintf(&b, " Time taken to load data: %s\n", r.LoadDuration.Round(time.Millisecond))
	} else {
		fmt.Fprintf(&b, " Load skipped (policy %s)\n", r.Policy)
	}
	if r.FirstEvent != nil {
		fmt.Fprintf(&b, " First event: %s\n", describeTime(*r.FirstEvent))
	}

	b.WriteString("\n========== Test results ==========\n")
	fmt.Fprintf(&b, " Result: %d out of %d tables loaded\n", r.TablesLoaded(), len(warehouse.All()))
	for _, m := range r.Mismatches {
		fmt.Fprintf(&b, " Mismatch %s: expected %d, got %d\n", m.Table, m.Expected, m.Actual)
	}
	if n := r.DuplicateTotal(); n > 0 {
		fmt.Fprintf(&b, " Duplicate natural keys: %d\n", n)
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, " Warning: %s\n", w)
	}
	fmt.Fprintf(&b, " Test passed: %t\n", r.Passed)

	return b.String()
}

func tableLabel(t warehouse.Table) string {
	switch t.Role {
	case warehouse.RoleFact:
		return "Fact table " + t.Name
	case warehouse.RoleDimension:
		return "Dimension table " + t.Name
	default:
		return "Staging table " + t.Name
	}
}

func describeTime(p load.TimeParts) string {
	return fmt.Sprintf("%s (hour %d, day %d, week %d, month %d, year %d, weekday %d)",
		p.StartTime.Format("2006-01-02 15:04:05"), p.Hour, p.Day, p.Week, p.Month, p.Year, p.Weekday)
}
