package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newProfilesCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List disease profiles and their measures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := a.catalog()
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(catalog.List())
			}

			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tINFECTION\tRECOVERY\tMORTALITY\tMEASURES")
			for _, p := range catalog.List() {
				ids := make([]string, 0, len(p.Measures))
				for _, m := range p.Measures {
					ids = append(ids, m.ID)
				}
				fmt.Fprintf(tw, "%s\t%g\t%g\t%g\t%s\n",
					p.Name, p.InfectionRate, p.RecoveryRate, p.MortalityRate, strings.Join(ids, ","))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full catalog as JSON")
	return cmd
}
