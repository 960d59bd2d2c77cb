package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/specialistvlad/toucan/internal/app"
	"github.com/spf13/cobra"
)

func newWorkflowCommand(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Save and restore the current workflow snapshot",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "save <workflow.json>",
			Short: "Store a workflow file as the current snapshot",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := o.openApp(cmd)
				if err != nil {
					return err
				}
				defer a.Close()

				snap, err := a.SaveWorkflow(a.Context(), args[0])
				if err != nil {
					return err
				}
				p := o.printer()
				defer p.close()
				body := map[string]any{"version": snap.Version, "savedAt": snap.SavedAt, "nodes": len(snap.Graph.Nodes), "edges": len(snap.Graph.Edges)}
				return p.print(body, func(w io.Writer) {
					printf(w, "Saved %d node(s) and %d edge(s) at %s.\n", len(snap.Graph.Nodes), len(snap.Graph.Edges), snap.SavedAt)
				})
			},
		},
		&cobra.Command{
			Use:   "restore [file]",
			Short: "Write the stored workflow to a file or stdout",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := o.openApp(cmd)
				if err != nil {
					return err
				}
				defer a.Close()

				g, err := a.RestoreWorkflow(a.Context())
				if errors.Is(err, app.ErrNothingSaved) {
					return &ExitError{Code: 1, Message: "No saved workflow."}
				}
				if err != nil {
					return err
				}

				data, err := json.MarshalIndent(g, "", "  ")
				if err != nil {
					return fmt.Errorf("encode workflow: %w", err)
				}
				data = append(data, '\n')
				if len(args) == 0 {
					_, err = o.outW.Write(data)
					return err
				}
				if err := os.WriteFile(args[0], data, 0o600); err != nil {
					return fmt.Errorf("write workflow: %w", err)
				}
				printf(o.errW, "Restored workflow to %s.\n", args[0])
				return nil
			},
		},
	)
	return cmd
}
