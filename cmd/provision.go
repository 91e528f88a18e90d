package cmd

import (
	"fmt"
	"strings"

	"dwhctl/internal/cluster"
	"dwhctl/internal/pipeline"

	"github.com/spf13/cobra"
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Create the cluster if needed and wait until it is available",
	RunE:  runProvision,
}

func init() {
	rootCmd.AddCommand(provisionCmd)
}

func runProvision(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	opts, err := pipeline.OptionsFrom(e.cfg)
	if err != nil {
		return err
	}
	prov, err := cluster.NewFromConfig(e.cfg, e.log)
	if err != nil {
		return err
	}

	orch := pipeline.New(e.cfg, opts, prov, pipeline.Connect(e.cfg, e.log), e.log).
		WithPollObserver(e.ui.ClusterPoller())

	e.ui.StartProgress(fmt.Sprintf("Waiting for %s", prov.Identifier()))
	desc, created, err := orch.Provision(cmd.Context())
	if err != nil {
		e.ui.StopProgress(false, "Cluster not available")
		return err
	}
	e.ui.StopProgress(true, "Cluster available")

	if created {
		e.ui.Info("Cluster was created by this run")
	}
	printDescriptor(e, desc)
	return nil
}

func printDescriptor(e *env, d *cluster.Descriptor) {
	host, port := d.Endpoint()
	e.ui.Section("Redshift Cluster")
	e.ui.KeyValue("Identifier", d.Identifier)
	e.ui.KeyValue("Status", d.Status)
	e.ui.KeyValue("Endpoint", host)
	e.ui.KeyValue("Port", fmt.Sprint(port))
	e.ui.KeyValue("Database", d.DBName)
	e.ui.KeyValue("User", d.MasterUser)
	e.ui.KeyValue("Nodes", fmt.Sprintf("%d x %s", d.NumNodes, d.NodeType))
	if len(d.IAMRoles) > 0 {
		e.ui.KeyValue("IAM roles", strings.Join(d.IAMRoles, ", "))
	}
}
