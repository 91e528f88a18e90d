package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"dwhctl/internal/verify"
	"dwhctl/internal/warehouse"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

// Render prints the counts table and verdict for a terminal
func Render(w io.Writer, r *LoadReport, useColor bool) {
	fmt.Fprintf(w, "\nRun %s\n", r.RunID)
	fmt.Fprintf(w, "Cluster %s (%s) as %s\n", r.Cluster.Identifier, r.Cluster.Endpoint, r.Cluster.User)
	if r.Loaded {
		fmt.Fprintf(w, "Loaded in %s\n\n", r.LoadDuration.Round(time.Millisecond))
	} else {
		fmt.Fprintf(w, "Load skipped by %s policy\n\n", r.Policy)
	}

	RenderCounts(w, r.Counts, r.Expected, useColor)

	for _, t := range warehouse.Dimensions() {
		if n := r.Duplicates[t.Name]; n > 0 {
			msg := fmt.Sprintf("%s has %d duplicate %s values", t.Name, n, t.NaturalKey)
			if useColor {
				msg = color.YellowString(msg)
			}
			fmt.Fprintln(w, msg)
		}
	}

	for _, warning := range r.Warnings {
		msg := "warning: " + warning
		if useColor {
			msg = color.YellowString(msg)
		}
		fmt.Fprintln(w, msg)
	}

	verdict := fmt.Sprintf("%d out of %d tables loaded. Test passed: %t",
		r.TablesLoaded(), len(warehouse.All()), r.Passed)
	if useColor {
		if r.Passed {
			verdict = color.New(color.FgGreen, color.Bold).Sprint(verdict)
		} else {
			verdict = color.New(color.FgRed, color.Bold).Sprint(verdict)
		}
	}
	fmt.Fprintf(w, "\n%s\n", verdict)
}

// RenderCounts prints one row per table with its count, the expected count
// and whether they match
func RenderCounts(w io.Writer, counts verify.Counts, expected verify.ExpectedCounts, useColor bool) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Table", "Role", "Rows", "Expected", "Status"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	mismatched := make(map[string]bool)
	for _, m := range verify.Compare(expected, counts) {
		mismatched[m.Table] = true
	}

	for _, t := range warehouse.All() {
		status := "OK"
		if mismatched[t.Name] {
			status = "MISMATCH"
		}
		if useColor {
			if mismatched[t.Name] {
				status = color.RedString(status)
			} else {
				status = color.GreenString(status)
			}
		}
		table.Append([]string{
			t.Name,
			string(t.Role),
			strconv.FormatInt(counts[t.Name], 10),
			strconv.FormatInt(expected[t.Name], 10),
			status,
		})
	}
	table.Render()
}
