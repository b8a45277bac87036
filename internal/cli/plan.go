package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sessionmesh/sessionmesh/agents"
	"github.com/sessionmesh/sessionmesh/dispatch"
	"github.com/sessionmesh/sessionmesh/llm/ollama"
	"github.com/sessionmesh/sessionmesh/logging"
	"github.com/sessionmesh/sessionmesh/planner"
)

// NewPlanCommand plans a prompt against the built-in capabilities using a
// local Ollama server and prints the resulting call sequence without
// executing it.
func NewPlanCommand(root *RootOptions) *cobra.Command {
	var (
		baseURL string
		model   string
	)

	cmd := &cobra.Command{
		Use:   "plan <prompt>",
		Short: "Generate a capability call plan with a local Ollama model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := dispatch.New()
			if err := d.Register(agents.NewReverseAgent()); err != nil {
				return err
			}
			if err := d.Register(agents.NewUppercaseAgent()); err != nil {
				return err
			}

			provider := ollama.New(func(o *ollama.Options) {
				o.BaseURL = baseURL
				o.Model = model
			})
			p := planner.New(provider, func(o *planner.Options) {
				o.Capabilities = d.Capabilities()
				if root.Verbose {
					o.Logger = logging.NewSlogLogger(logging.LogLevelDebug, "text", os.Stderr)
				}
			})

			result := p.Plan(cmd.Context(), args[0], nil)
			if !result.Success {
				return fmt.Errorf("planning failed: %s", result.Err.Message)
			}

			encoded, err := json.MarshalIndent(result.Calls, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", ollama.DefaultBaseURL, "Ollama server URL")
	cmd.Flags().StringVar(&model, "model", ollama.DefaultModel, "model name")

	return cmd
}
