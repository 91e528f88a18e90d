package cmd

import (
	"fmt"

	"dwhctl/internal/cluster"
	"dwhctl/internal/pipeline"
	"dwhctl/internal/report"
	"dwhctl/internal/ui"
	"dwhctl/internal/verify"
	"dwhctl/internal/warehouse"

	"github.com/spf13/cobra"
)

var statusNoCounts bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the cluster state and current table counts",
	Long: `Describe the cluster and, when it is available, count the rows in every
table and compare them with the expected counts. Nothing is modified.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusNoCounts, "no-counts", false, "skip connecting to the database")
}

func runStatus(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	prov, err := cluster.NewFromConfig(e.cfg, e.log)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	desc, err := prov.Describe(ctx)
	if err != nil {
		return err
	}
	if desc == nil {
		e.ui.Warning(fmt.Sprintf("Cluster %s does not exist", prov.Identifier()))
		return nil
	}
	printDescriptor(e, desc)

	if statusNoCounts {
		return nil
	}
	if !desc.Available() {
		e.ui.Info("Cluster is not available; skipping table counts")
		return nil
	}

	expected, err := verify.ExpectedFrom(e.cfg.Expected)
	if err != nil {
		return err
	}

	host, port := desc.Endpoint()
	wh, err := pipeline.Connect(e.cfg, e.log)(ctx, warehouse.ConfigFrom(e.cfg.Cluster, host, port))
	if err != nil {
		return err
	}
	defer wh.Close()

	counts, err := wh.Checker.Counts(ctx)
	if err != nil {
		return err
	}

	if !quiet {
		e.ui.Section("Redshift database")
		report.RenderCounts(cmd.OutOrStdout(), counts, expected, ui.ColorEnabled())
	}
	return nil
}
