// Package cmd wires the meshbft CLI: a cobra root command with a single
// "run" subcommand that starts a gossiping IBFT replica.
package cmd

import "github.com/spf13/cobra"

// New builds the meshbft root command.
func New() *cobra.Command {
	root := &cobra.Command{
		Use:           "meshbft",
		Short:         "Runs a gossip-networked IBFT replica",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(runCmd())

	return root
}
