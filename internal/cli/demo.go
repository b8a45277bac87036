package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sessionmesh/sessionmesh"
	"github.com/sessionmesh/sessionmesh/agents"
	"github.com/sessionmesh/sessionmesh/core"
	"github.com/sessionmesh/sessionmesh/logging"
)

// NewDemoCommand runs the built-in reverse/uppercase pipeline against a fresh
// session, optionally saving the result for later inspection.
func NewDemoCommand(root *RootOptions) *cobra.Command {
	var (
		text string
		save string
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the built-in reverse/uppercase pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			mesh, err := sessionmesh.New(func(o *sessionmesh.Options) {
				o.Agents = []core.Agent{agents.NewReverseAgent(), agents.NewUppercaseAgent()}
				if root.Verbose {
					o.Logger = logging.NewSlogLogger(logging.LogLevelDebug, "text", os.Stderr)
				}
			})
			if err != nil {
				return err
			}

			sess := mesh.Session()
			if _, err := sess.Set("text", text); err != nil {
				return err
			}

			result := mesh.Run([]core.CapabilityCall{
				{Capability: "reverse", Params: map[string]any{"key": "text"}},
				{Capability: "uppercase", Params: map[string]any{"key": "text"}},
			})
			if !result.Success {
				return fmt.Errorf("pipeline failed at step %d: %s", result.FailedAt, result.Err.Message)
			}

			final, _ := sess.Get("text")
			fmt.Fprintf(cmd.OutOrStdout(), "session %s\n", sess.ID())
			fmt.Fprintf(cmd.OutOrStdout(), "input:  %s\n", text)
			fmt.Fprintf(cmd.OutOrStdout(), "output: %v\n", final)
			fmt.Fprintf(cmd.OutOrStdout(), "state version %d, %d trajectory entries\n",
				sess.StateVersion(), sess.TrajectoryLen())

			if save != "" {
				if err := mesh.Save(save); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "saved to %s\n", save)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&text, "text", "hello world", "input text")
	cmd.Flags().StringVar(&save, "save", "", "save the session to this path")

	return cmd
}
