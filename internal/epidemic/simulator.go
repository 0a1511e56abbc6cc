package epidemic

import (
	"fmt"
	"io"
	"log/slog"
)

// FactorMode controls how ApplyMeasure combines a new effect with the active one.
type FactorMode int

const (
	// FactorModeOverwrite replaces the active factors with the measure's factors.
	FactorModeOverwrite FactorMode = iota
	// FactorModeCompound multiplies the measure's factors onto the active ones,
	// so repeated measures stack.
	FactorModeCompound
)

func (m FactorMode) String() string {
	switch m {
	case FactorModeOverwrite:
		return "overwrite"
	case FactorModeCompound:
		return "compound"
	default:
		return fmt.Sprintf("FactorMode(%d)", int(m))
	}
}

// ParseFactorMode parses "overwrite" or "compound".
func ParseFactorMode(s string) (FactorMode, error) {
	switch s {
	case "", "overwrite":
		return FactorModeOverwrite, nil
	case "compound":
		return FactorModeCompound, nil
	default:
		return 0, fmt.Errorf("%w: factor mode %q", ErrInvalidParameter, s)
	}
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithProfile replaces the base rates and the intervention registry with those of profile.
func WithProfile(profile VirusProfile) Option {
	return func(s *Simulator) {
		s.profile = profile
	}
}

// WithFactorMode selects how successive measures combine.
func WithFactorMode(mode FactorMode) Option {
	return func(s *Simulator) {
		s.mode = mode
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Simulator) {
		s.logger = logger
	}
}

// Simulator owns the parameters and intervention state of one scenario and
// derives its daily series. The series is recomputed from day 0 on every
// change. A Simulator is not safe for concurrent use; independent scenarios
// use independent instances.
type Simulator struct {
	params  Parameters
	horizon int
	profile VirusProfile
	mode    FactorMode
	logger  *slog.Logger

	effect  InterventionEffect
	measure string
	series  Series
}

// New validates params and builds a simulator whose series is already computed.
func New(params Parameters, horizonDays int, opts ...Option) (*Simulator, error) {
	s := &Simulator{
		params:  params,
		horizon: horizonDays,
		profile: VirusProfile{
			Name:          "custom",
			InfectionRate: params.InfectionRate,
			RecoveryRate:  params.RecoveryRate,
			MortalityRate: params.MortalityRate,
			Interventions: DefaultRegistry(),
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if err := checkHorizon(horizonDays); err != nil {
		return nil, err
	}
	if err := s.profile.Validate(); err != nil {
		return nil, err
	}
	s.profile.Interventions = s.profile.Interventions.Clone()
	s.params.InfectionRate = s.profile.InfectionRate
	s.params.RecoveryRate = s.profile.RecoveryRate
	s.params.MortalityRate = s.profile.MortalityRate
	if err := s.params.Validate(); err != nil {
		return nil, err
	}

	if err := s.Reset(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reset restores neutral factors and recomputes the series from the day-0 anchors.
func (s *Simulator) Reset() error {
	return s.recompute(NoEffect, MeasureNone)
}

// ApplyMeasure activates the measure registered under id and recomputes the
// whole horizon as if it had been in effect since day 1. An unknown id leaves
// the simulator unchanged.
func (s *Simulator) ApplyMeasure(id string) error {
	effect, err := s.profile.Interventions.Lookup(id)
	if err != nil {
		return err
	}
	if s.mode == FactorModeCompound {
		effect = InterventionEffect{
			InfectionFactor: s.effect.InfectionFactor * effect.InfectionFactor,
			RecoveryFactor:  s.effect.RecoveryFactor * effect.RecoveryFactor,
		}
	}
	return s.recompute(effect, id)
}

// SelectProfile switches to another disease and resets the scenario.
func (s *Simulator) SelectProfile(profile VirusProfile) error {
	if err := profile.Validate(); err != nil {
		return err
	}
	params := s.params
	params.InfectionRate = profile.InfectionRate
	params.RecoveryRate = profile.RecoveryRate
	params.MortalityRate = profile.MortalityRate

	series, err := Run(params, s.horizon, NoEffect, MeasureNone)
	if err != nil {
		return err
	}

	profile.Interventions = profile.Interventions.Clone()
	s.profile = profile
	s.params = params
	s.effect = NoEffect
	s.measure = MeasureNone
	s.series = series
	s.logger.Debug("Virus profile selected", "profile", profile.Name)
	return nil
}

func (s *Simulator) recompute(effect InterventionEffect, measure string) error {
	series, err := Run(s.params, s.horizon, effect, measure)
	if err != nil {
		return err
	}
	s.effect = effect
	s.measure = measure
	s.series = series

	if len(series.Capped) > 0 {
		s.logger.Warn("Infected outflow capped",
			"profile", s.profile.Name,
			"measure", measure,
			"capped_days", len(series.Capped))
	}
	s.logger.Debug("Series recomputed",
		"profile", s.profile.Name,
		"measure", measure,
		"infection_factor", effect.InfectionFactor,
		"recovery_factor", effect.RecoveryFactor,
		"days", s.horizon)
	return nil
}

// Series returns a copy of the current series.
func (s *Simulator) Series() Series {
	return s.series.Clone()
}

// Stats returns the summary of the zero-based day index.
func (s *Simulator) Stats(day int) (DayStats, error) {
	return s.series.Stats(day)
}

// Summary returns the headline numbers of the current series.
func (s *Simulator) Summary() Summary {
	peakDay, peak := s.series.Peak()
	final, _ := s.series.Stats(s.series.Days - 1)
	return Summary{
		Profile:      s.profile.Name,
		Measure:      s.measure,
		PeakDay:      peakDay + 1,
		PeakInfected: peak,
		Final:        final,
		CappedDays:   len(s.series.Capped),
	}
}

// Parameters returns the active parameters, with rates of the selected profile.
func (s *Simulator) Parameters() Parameters { return s.params }

// Horizon returns the number of simulated days.
func (s *Simulator) Horizon() int { return s.horizon }

// Profile returns the selected profile.
func (s *Simulator) Profile() VirusProfile {
	p := s.profile
	p.Interventions = p.Interventions.Clone()
	return p
}

// ActiveMeasure returns the identifier of the measure in effect.
func (s *Simulator) ActiveMeasure() string { return s.measure }

// Factors returns the active intervention factors.
func (s *Simulator) Factors() InterventionEffect { return s.effect }
