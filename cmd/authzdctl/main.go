// Command authzdctl is a thin operator CLI over the coordinator's HTTP
// facade (cmd/coordinator): one subcommand per wire operation, talking
// plain JSON over --coordinator.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var coordinatorAddr string

	root := &cobra.Command{
		Use:          "authzdctl",
		Short:        "Operator CLI for the authzd coordinator",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&coordinatorAddr, "coordinator", "http://127.0.0.1:8080", "coordinator base URL")

	root.AddCommand(newUserCmd(&coordinatorAddr))
	root.AddCommand(newGroupCmd(&coordinatorAddr))
	root.AddCommand(newEntityCmd(&coordinatorAddr))
	root.AddCommand(newCheckCmd(&coordinatorAddr))

	return root
}
