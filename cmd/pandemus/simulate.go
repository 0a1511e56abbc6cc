package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"pandemus/internal/epidemic"
	"pandemus/internal/export"
	"pandemus/internal/model"
	"pandemus/internal/scenario"
)

// scenarioFlags are shared by simulate, compare and save.
type scenarioFlags struct {
	profile    string
	sequence   []string
	measure    string
	days       int
	population int
	infected   int
}

func (f *scenarioFlags) register(cmd *cobra.Command, withMeasure bool) {
	cmd.Flags().StringVarP(&f.profile, "profile", "p", "", "disease profile (default baseline)")
	cmd.Flags().StringSliceVar(&f.sequence, "sequence", nil, "measures applied in order first (they stack under --factor-mode compound)")
	if withMeasure {
		cmd.Flags().StringVarP(&f.measure, "measure", "m", "", "public health measure to apply")
	}
	cmd.Flags().IntVarP(&f.days, "days", "d", epidemic.DefaultHorizonDays, "number of simulated days")
	cmd.Flags().IntVar(&f.population, "population", 0, "initial population (default 1000000)")
	cmd.Flags().IntVar(&f.infected, "infected", 0, "initially infected (default 10)")
}

func (f *scenarioFlags) request() model.RunScenarioRequest {
	return model.RunScenarioRequest{
		Profile:           f.profile,
		Sequence:          f.sequence,
		Measure:           f.measure,
		InitialPopulation: f.population,
		InitialInfected:   f.infected,
		Days:              f.days,
	}
}

// output resolves --format and --out into a writer. The returned close func
// must be called once writing is done.
func (a *app) output(format, path string) (export.Format, io.Writer, func() error, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return "", nil, nil, err
	}
	if path == "" {
		return f, a.out, func() error { return nil }, nil
	}
	w, err := export.Create(path)
	if err != nil {
		return "", nil, nil, err
	}
	return f, w, w.Close, nil
}

func newSimulateCmd(a *app) *cobra.Command {
	var (
		flags  scenarioFlags
		format string
		out    string
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run one scenario and print the daily series",
		Long: `Runs the SIRD model for the chosen profile and measure and prints one
row per day.

Example:
  pandemus simulate --profile covid --measure lockdown --days 120 --format csv --out covid.csv.zst`,
		Args: cobra.NoArgs,
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

			f, w, closeOut, err := a.output(format, out)
			if err != nil {
				return err
			}
			if err := export.WriteSeries(w, f, resp.Series); err != nil {
				closeOut()
				return fmt.Errorf("failed to write series: %w", err)
			}
			if err := closeOut(); err != nil {
				return err
			}

			a.logger.Info("Scenario simulated",
				"profile", resp.Summary.Profile,
				"measure", resp.Summary.Measure,
				"peak_day", resp.Summary.PeakDay,
				"peak_infected", resp.Summary.PeakInfected)
			return nil
		},
	}

	flags.register(cmd, true)
	cmd.Flags().StringVarP(&format, "format", "f", string(export.FormatTable), "output format: table, json or csv")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write to file instead of stdout (.zst compresses)")
	return cmd
}

func newCompareCmd(a *app) *cobra.Command {
	var (
		flags    scenarioFlags
		measures []string
		format   string
		out      string
	)

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare peak and deaths across measures",
		Long: `Runs the same profile once per measure, each on its own simulator, and
prints one summary row per measure. Without --measures every measure of the
profile is compared.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := a.factorMode()
			if err != nil {
				return err
			}
			catalog, err := a.catalog()
			if err != nil {
				return err
			}
			summaries, err := scenario.Compare(catalog, flags.request(), measures, mode, a.logger)
			if err != nil {
				return err
			}

			f, w, closeOut, err := a.output(format, out)
			if err != nil {
				return err
			}
			if err := export.WriteSummaries(w, f, summaries); err != nil {
				closeOut()
				return fmt.Errorf("failed to write summaries: %w", err)
			}
			return closeOut()
		},
	}

	flags.register(cmd, false)
	cmd.Flags().StringSliceVar(&measures, "measures", nil, "comma separated measures to compare")
	cmd.Flags().StringVarP(&format, "format", "f", string(export.FormatTable), "output format: table, json or csv")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write to file instead of stdout (.zst compresses)")
	return cmd
}
