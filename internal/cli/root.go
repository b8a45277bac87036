// Package cli implements the sessionmesh command line interface.
package cli

import (
	"github.com/spf13/cobra"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	Verbose bool
}

// NewRootCommand creates the root command for the sessionmesh CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "sessionmesh",
		Short: "sessionmesh - deterministic session substrate for agent workflows",
		Long: "sessionmesh bundles versioned state, an append-only trajectory and an\n" +
			"artifact store behind a single session object, with a dispatcher that\n" +
			"routes capability calls to registered agents.",
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewDemoCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewPlanCommand(opts))

	return cmd
}
