package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/specialistvlad/toucan/internal/app"
	"github.com/specialistvlad/toucan/internal/execution"
	"github.com/specialistvlad/toucan/internal/session"
	"github.com/spf13/cobra"
)

type queueResult struct {
	Status   session.QueueStatus `json:"status" yaml:"status"`
	Message  string              `json:"message" yaml:"message"`
	PromptID string              `json:"promptId,omitempty" yaml:"promptId,omitempty"`
	Number   int                 `json:"number,omitempty" yaml:"number,omitempty"`
	Errors   []string            `json:"errors,omitempty" yaml:"errors,omitempty"`
	Warnings []string            `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Final    *execution.State    `json:"final,omitempty" yaml:"final,omitempty"`
}

func newQueueCommand(o *options) *cobra.Command {
	var (
		yes    bool
		follow bool
	)
	cmd := &cobra.Command{
		Use:   "queue <workflow.json>",
		Short: "Compile a workflow and submit it to the backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			p := o.printer()
			defer p.close()

			opts := app.QueueOptions{Confirm: o.confirm(yes), Follow: follow}
			if follow && o.output == "text" {
				opts.OnState = stateLogger(o.outW, a.OutputURLs)
			}

			outcome, err := a.Queue(a.Context(), args[0], opts)
			interrupted := errors.Is(err, context.Canceled)
			if err != nil && !interrupted {
				return err
			}

			res := queueResult{
				Status:   outcome.Status,
				Message:  outcome.Message(),
				PromptID: outcome.Result.PromptID,
				Number:   outcome.Result.Number,
				Errors:   outcome.Errors,
				Warnings: outcome.Warnings,
			}
			if follow && outcome.Status == session.QueueSubmitted {
				final := a.Monitor().State()
				res.Final = &final
			}
			if err := p.print(res, func(w io.Writer) { printf(w, "%s\n", res.Message) }); err != nil {
				return err
			}

			switch {
			case interrupted:
				return &ExitError{Code: 130, Message: "Interrupted."}
			case outcome.Status != session.QueueSubmitted:
				return &ExitError{Code: 1, Message: "Workflow was not queued (" + string(outcome.Status) + ")."}
			case res.Final != nil && res.Final.Phase != execution.PhaseIdle:
				return &ExitError{Code: 1, Message: "Run ended with phase " + string(res.Final.Phase) + "."}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "run despite warnings without asking")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "follow the run until it finishes; Ctrl-C interrupts it")
	return cmd
}

// confirm asks on stdin unless yes is set.
func (o *options) confirm(yes bool) session.Confirm {
	if yes {
		return func([]string) bool { return true }
	}
	return func(warnings []string) bool {
		printf(o.errW, "%s [y/N] ", session.WarningPrompt(warnings))
		line, _ := bufio.NewReader(o.in).ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		}
		return false
	}
}
