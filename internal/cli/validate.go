package cli

import (
	"fmt"
	"io"

	"github.com/specialistvlad/toucan/internal/app"
	"github.com/spf13/cobra"
)

func newValidateCommand(o *options) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "validate <workflow.json>",
		Short: "Check a workflow's connections and inputs without queueing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			p := o.printer()
			defer p.close()

			if watch {
				return a.WatchValidate(a.Context(), args[0], func(report app.Report, err error) {
					if err != nil {
						printf(o.errW, "%v\n", err)
						return
					}
					_ = p.print(report, func(w io.Writer) { printReport(w, report) })
				})
			}

			report, err := a.ValidateFile(a.Context(), args[0])
			if err != nil {
				return err
			}
			if err := p.print(report, func(w io.Writer) { printReport(w, report) }); err != nil {
				return err
			}
			if !report.OK() {
				return &ExitError{Code: 1, Message: fmt.Sprintf("%s has %d problem(s).", report.Path, len(report.Errors))}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "validate again whenever the file changes")
	return cmd
}

func printReport(w io.Writer, r app.Report) {
	printf(w, "%s: %d node(s), %d edge(s)\n", r.Path, r.Nodes, r.Edges)
	for _, e := range r.Errors {
		printf(w, "  error: %s\n", e)
	}
	for _, warn := range r.Warnings {
		printf(w, "  warning: %s\n", warn)
	}
	if r.OK() {
		printf(w, "  ok\n")
	}
}
