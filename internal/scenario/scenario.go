// Package scenario runs the epidemic simulator for a profile from the catalog.
package scenario

import (
	"fmt"
	"log/slog"

	"pandemus/internal/epidemic"
	"pandemus/internal/model"
	"pandemus/internal/profiles"
)

// Simulator resolves the profile named in req and builds a simulator with the
// request's population anchors and horizon. Zero fields take defaults.
func Simulator(catalog *profiles.Catalog, req model.RunScenarioRequest, mode epidemic.FactorMode, logger *slog.Logger) (*epidemic.Simulator, error) {
	name := req.Profile
	if name == "" {
		name = profiles.DefaultProfile
	}
	profile, ok := catalog.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown profile %q", epidemic.ErrInvalidParameter, name)
	}

	params := epidemic.DefaultParameters()
	if req.InitialPopulation != 0 {
		params.InitialPopulation = req.InitialPopulation
	}
	if req.InitialInfected != 0 {
		params.InitialInfected = req.InitialInfected
	}
	days := req.Days
	if days == 0 {
		days = epidemic.DefaultHorizonDays
	}

	return epidemic.New(params, days,
		epidemic.WithProfile(profile.VirusProfile()),
		epidemic.WithFactorMode(mode),
		epidemic.WithLogger(logger))
}

// Run computes the scenario of req and returns the series with its summary,
// final-day stats and the factors in effect. The measures of req.Sequence and
// then req.Measure are applied in order to the same simulator.
func Run(catalog *profiles.Catalog, req model.RunScenarioRequest, mode epidemic.FactorMode, logger *slog.Logger) (*model.RunScenarioResponse, error) {
	sim, err := Simulator(catalog, req, mode, logger)
	if err != nil {
		return nil, err
	}
	steps := req.Sequence
	if req.Measure != "" {
		steps = append(append([]string(nil), steps...), req.Measure)
	}
	for _, measure := range steps {
		if err := sim.ApplyMeasure(measure); err != nil {
			return nil, err
		}
	}

	series := sim.Series()
	stats, err := sim.Stats(series.Days - 1)
	if err != nil {
		return nil, err
	}
	return &model.RunScenarioResponse{
		Series:  series,
		Summary: sim.Summary(),
		Stats:   stats,
		Factors: sim.Factors(),
	}, nil
}

// Compare runs req once per measure, each on an independent simulator that
// first applies req.Sequence, and returns the summaries in the order given. An empty list compares every
// measure of the profile.
func Compare(catalog *profiles.Catalog, req model.RunScenarioRequest, measures []string, mode epidemic.FactorMode, logger *slog.Logger) ([]epidemic.Summary, error) {
	if len(measures) == 0 {
		name := req.Profile
		if name == "" {
			name = profiles.DefaultProfile
		}
		profile, ok := catalog.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown profile %q", epidemic.ErrInvalidParameter, name)
		}
		for _, m := range profile.Measures {
			measures = append(measures, m.ID)
		}
	}

	summaries := make([]epidemic.Summary, 0, len(measures))
	for _, measure := range measures {
		r := req
		r.Measure = measure
		resp, err := Run(catalog, r, mode, logger)
		if err != nil {
			return nil, fmt.Errorf("measure %q: %w", measure, err)
		}
		summaries = append(summaries, resp.Summary)
	}
	return summaries, nil
}
