package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/specialistvlad/toucan/internal/execution"
	"github.com/spf13/cobra"
)

func newMonitorCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Follow the backend's execution events until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := o.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			p := o.printer()
			defer p.close()

			onState := stateLogger(o.outW, a.OutputURLs)
			if o.output != "text" {
				onState = func(s execution.State) { _ = p.print(s, nil) }
			}
			return a.Watch(a.Context(), onState)
		},
	}
}

// stateLogger prints one line per visible change, followed by the view URLs
// of images once a run goes idle.
func stateLogger(w io.Writer, outputURLs func(execution.State) []string) func(execution.State) {
	var last string
	printed := map[string]bool{}
	return func(s execution.State) {
		line := summarize(s)
		if line != last {
			last = line
			printf(w, "%s\n", line)
		}
		if s.Active() || outputURLs == nil {
			return
		}
		for _, u := range outputURLs(s) {
			if !printed[u] {
				printed[u] = true
				printf(w, "  output %s\n", u)
			}
		}
	}
}

func summarize(s execution.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", s.Phase)
	if s.PromptID != "" {
		fmt.Fprintf(&b, " prompt=%s", s.PromptID)
	}
	if s.CurrentNodeID != "" {
		fmt.Fprintf(&b, " node=%s", s.CurrentNodeID)
		if p, ok := s.NodeProgress[s.CurrentNodeID]; ok && p.Max > 0 {
			fmt.Fprintf(&b, " %.0f/%.0f", p.Value, p.Max)
		}
	}
	if s.QueueKnown {
		fmt.Fprintf(&b, " queue=%d", s.QueueRemaining)
	}
	counts := s.Counts()
	for _, st := range slices.Sorted(maps.Keys(counts)) {
		fmt.Fprintf(&b, " %s=%d", st, counts[st])
	}
	for _, id := range slices.Sorted(maps.Keys(s.NodeErrors)) {
		fmt.Fprintf(&b, "\n  error in %s: %s", id, s.NodeErrors[id])
	}
	return b.String()
}
