package cli

import (
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newCatalogCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog [query]",
		Short: "List the backend's node types, optionally fuzzy-filtered",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.Catalog(a.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			p := o.printer()
			defer p.close()
			return p.print(entries, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				printf(tw, "NAME\tDISPLAY NAME\tCATEGORY\n")
				for _, e := range entries {
					printf(tw, "%s\t%s\t%s\n", e.Name, e.DisplayName, e.Category)
				}
				_ = tw.Flush()
			})
		},
	}
}
