package cmd

import (
	"fmt"

	"dwhctl/internal/cluster"
	"dwhctl/internal/ui"

	"github.com/spf13/cobra"
)

var teardownYes bool

var teardownCmd = &cobra.Command{
	Use:   "teardown",
	Short: "Delete the cluster without a final snapshot",
	Long: `Delete the cluster named by cluster.db_identifier. No final snapshot is
taken, so all loaded data is lost. You are asked to type the identifier
unless --yes is given.`,
	RunE: runTeardown,
}

func init() {
	rootCmd.AddCommand(teardownCmd)
	teardownCmd.Flags().BoolVarP(&teardownYes, "yes", "y", false, "skip the confirmation prompt")
}

func runTeardown(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	prov, err := cluster.NewFromConfig(e.cfg, e.log)
	if err != nil {
		return err
	}

	if !teardownYes {
		ok, err := ui.ConfirmIdentifier(
			fmt.Sprintf("This deletes cluster %s and all of its data.", prov.Identifier()),
			prov.Identifier())
		if err != nil {
			return err
		}
		if !ok {
			e.ui.Warning("Teardown aborted")
			return nil
		}
	}

	desc, err := prov.Delete(cmd.Context())
	if err != nil {
		return err
	}

	status := cluster.StatusDeleting
	if desc != nil {
		status = desc.Status
	}
	e.ui.Success(fmt.Sprintf("Deletion of %s requested (status %s)", prov.Identifier(), ui.StatusColor(status)))
	return nil
}
