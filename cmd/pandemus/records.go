package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"pandemus/internal/model"
	"pandemus/internal/scenario"
)

func (a *app) printJSON(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid simulation id %q", arg)
	}
	return id, nil
}

func newSaveCmd(a *app) *cobra.Command {
	var (
		flags scenarioFlags
		name  string
	)

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Run a scenario and store it on pandemus-api",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := a.factorMode()
			if err != nil {
				return err
			}
			catalog, err := a.catalog()
			if err != nil {
				return err
			}
			resp, err := scenario.Run(catalog, flags.request(), mode, a.logger)
			if err != nil {
				return err
			}

			record := model.FromSeries(name, resp.Series)
			created, err := a.client().Create(cmd.Context(), &model.CreateSimulationRequest{
				Name:      record.Name,
				Days:      record.Days,
				Infected:  record.Infected,
				Dead:      record.Dead,
				Recovered: record.Recovered,
			})
			if err != nil {
				return err
			}
			a.logger.Info("Simulation saved", "simulation_id", created.ID)
			return a.printJSON(created)
		},
	}

	flags.register(cmd, true)
	cmd.Flags().StringVarP(&name, "name", "n", "", "record name (3 to 255 characters)")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored simulations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sims, err := a.client().List(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return a.printJSON(sims)
			}

			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tDAYS\tCREATED")
			for _, sim := range sims {
				name := "-"
				if sim.Name != nil {
					name = *sim.Name
				}
				fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", sim.ID, name, sim.Days, sim.CreatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get [id]",
		Short: "Print one stored simulation as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			sim, err := a.client().Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.printJSON(sim)
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete one stored simulation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			sim, err := a.client().Delete(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "deleted simulation %d\n", sim.ID)
			return nil
		},
	}
}
