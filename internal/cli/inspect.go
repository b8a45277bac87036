package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sessionmesh/sessionmesh/core"
	"github.com/sessionmesh/sessionmesh/store"
)

// NewInspectCommand prints the metadata, state, artifacts and trajectory of a
// saved session file.
func NewInspectCommand(root *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print the contents of a saved session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := store.Load(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "session %s\n", sess.ID())
			fmt.Fprintf(out, "state version %d, %d trajectory entries, max artifact size %d\n",
				sess.StateVersion(), sess.TrajectoryLen(), sess.MaxArtifactSize())

			fmt.Fprintln(out, "\nstate:")
			for _, key := range sess.Keys() {
				v, _ := sess.Get(key)
				encoded, err := json.Marshal(v)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "  %s = %s\n", key, encoded)
			}

			if names := sess.ListArtifacts(); len(names) > 0 {
				fmt.Fprintln(out, "\nartifacts:")
				for _, name := range names {
					size, _ := sess.ArtifactSize(name)
					fmt.Fprintf(out, "  %s (%d bytes)\n", name, size)
				}
			}

			fmt.Fprintln(out, "\ntrajectory:")
			for _, e := range sess.Trajectory(core.TrajectoryFilter{Limit: limit}) {
				content, err := json.Marshal(e.Content)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "  %4d %s %-22s %-12s %s\n",
					e.SeqNum, e.Timestamp.Format("15:04:05.000"), e.EntryType, e.AgentID, content)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "show only the newest N entries (0 = all)")

	return cmd
}
