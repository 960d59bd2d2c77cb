package cli

import (
	"io"

	"github.com/spf13/cobra"
)

func newInterruptCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "interrupt <prompt-id>",
		Short: "Ask the backend to stop a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res := a.Interrupt(a.Context(), args[0])
			if !res.OK {
				return &ExitError{Code: 1, Message: res.Message}
			}

			p := o.printer()
			defer p.close()
			body := map[string]any{"promptId": args[0], "interrupted": true}
			return p.print(body, func(w io.Writer) { printf(w, "Interrupt requested for %s.\n", args[0]) })
		},
	}
}
