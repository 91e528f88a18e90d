package cmd

import (
	"fmt"
	"os"

	"dwhctl/internal/cluster"
	"dwhctl/internal/config"
	"dwhctl/internal/observability"
	"dwhctl/internal/pipeline"
	"dwhctl/internal/report"
	"dwhctl/internal/ui"
	"dwhctl/internal/verify"
	"dwhctl/pkg/errors"

	"github.com/spf13/cobra"
)

var (
	runPolicy      string
	runNoProvision bool
	runReportPath  string
	runYAMLPath    string
	runResetOnly   bool
	runYes         bool
)

// Replaced in tests
var (
	stdinInteractive = func() bool { return ui.IsTerminal(os.Stdin) }
	confirmReset     = ui.Confirm
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Provision, reset, load and verify the warehouse",
	Long: `Run the full pipeline: find or create the cluster, wait until it is
available, drop and recreate every table, load when the existence policy says
the tables are empty, then count every table and compare with the expected
row counts.

The report is printed, appended to the report file and, when configured,
written as YAML. A count mismatch exits with status 6 after the report is
written.

Every run drops the tables first. On a terminal you are asked to confirm
unless --yes is given.`,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runPolicy, "policy", "", "existence policy: sum or per-table (default from config)")
	runCmd.Flags().BoolVar(&runNoProvision, "no-provision", false, "fail instead of creating a missing cluster")
	runCmd.Flags().StringVar(&runReportPath, "report", "", "file the text report is appended to (default from config)")
	runCmd.Flags().StringVar(&runYAMLPath, "report-yaml", "", "file the YAML report is written to")
	runCmd.Flags().BoolVar(&runResetOnly, "reset-only", false, "only drop and recreate the tables")
	runCmd.Flags().BoolVarP(&runYes, "yes", "y", false, "skip the confirmation before tables are dropped")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	if runPolicy != "" {
		e.cfg.Pipeline.ExistencePolicy = runPolicy
	}
	if runReportPath != "" {
		e.cfg.Report.Path = runReportPath
	}
	if runYAMLPath != "" {
		e.cfg.Report.YAMLPath = runYAMLPath
	}
	if err := config.Validate(e.cfg); err != nil {
		return err
	}

	opts, err := pipeline.OptionsFrom(e.cfg)
	if err != nil {
		return err
	}
	opts.NoProvision = runNoProvision

	prov, err := cluster.NewFromConfig(e.cfg, e.log)
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()
	orch := pipeline.New(e.cfg, opts, prov, pipeline.Connect(e.cfg, e.log), e.log).
		WithObserver(metrics).
		WithPollObserver(e.ui.ClusterPoller())

	ctx := cmd.Context()

	if !runYes && stdinInteractive() {
		ok, err := confirmReset(
			fmt.Sprintf("Drop and recreate every table on %s?", prov.Identifier()), false)
		if err != nil {
			return err
		}
		if !ok {
			e.ui.Warning("Run aborted, no tables were dropped")
			return nil
		}
	}

	if runResetOnly {
		if err := orch.Reset(ctx); err != nil {
			return err
		}
		e.ui.Success(fmt.Sprintf("Schema reset on %s", prov.Identifier()))
		return nil
	}

	publisher := report.NewPublisher(cmd.OutOrStdout(), ui.ColorEnabled(), e.cfg.Report)
	if quiet {
		publisher.Out = nil
	}
	orch.WithPublisher(publisher)

	rep, runErr := orch.Run(ctx)

	if path := e.cfg.Report.MetricsPath; path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			e.log.WithError(err).WithField("path", path).Warn("Failed to write metrics textfile")
		}
	}

	if runErr != nil {
		return runErr
	}
	if !rep.Passed {
		return errors.VerificationError(verify.Tables(rep.Mismatches)).
			WithContext("run_id", rep.RunID)
	}
	return nil
}
