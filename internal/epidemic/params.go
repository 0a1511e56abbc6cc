package epidemic

import (
	"errors"
	"fmt"
	"math"
)

// Error kinds reported by the simulator. Callers match them with errors.Is.
var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrUnknownMeasure   = errors.New("unknown measure")
	ErrDayOutOfRange    = fmt.Errorf("%w: day out of range", ErrInvalidParameter)
)

const (
	// DefaultHorizonDays is the number of simulated days when none is given.
	DefaultHorizonDays = 100
	// MaxHorizonDays bounds the series length of a single run.
	MaxHorizonDays = 3650
	// MeasureNone is the identifier of the no-intervention measure.
	MeasureNone = "none"
)

// Parameters holds the population anchors and intrinsic per-day rates.
type Parameters struct {
	InitialPopulation int     `json:"initialPopulation" yaml:"initial_population"`
	InitialInfected   int     `json:"initialInfected" yaml:"initial_infected"`
	InfectionRate     float64 `json:"baseInfectionRate" yaml:"infection_rate"`
	RecoveryRate      float64 `json:"baseRecoveryRate" yaml:"recovery_rate"`
	MortalityRate     float64 `json:"baseMortalityRate" yaml:"mortality_rate"`
}

// DefaultParameters returns the stock scenario: one million people, ten infected.
func DefaultParameters() Parameters {
	return Parameters{
		InitialPopulation: 1000000,
		InitialInfected:   10,
		InfectionRate:     0.3,
		RecoveryRate:      0.1,
		MortalityRate:     0.02,
	}
}

func checkHorizon(days int) error {
	if days < 1 || days > MaxHorizonDays {
		return fmt.Errorf("%w: horizon must be between 1 and %d days, got %d", ErrInvalidParameter, MaxHorizonDays, days)
	}
	return nil
}

// Validate checks population anchors and rates.
func (p Parameters) Validate() error {
	if p.InitialPopulation <= 0 {
		return fmt.Errorf("%w: initial population must be > 0, got %d", ErrInvalidParameter, p.InitialPopulation)
	}
	if p.InitialInfected <= 0 {
		return fmt.Errorf("%w: initial infected must be > 0, got %d", ErrInvalidParameter, p.InitialInfected)
	}
	if p.InitialInfected > p.InitialPopulation {
		return fmt.Errorf("%w: initial infected %d exceeds population %d", ErrInvalidParameter, p.InitialInfected, p.InitialPopulation)
	}
	return validateRates(p.InfectionRate, p.RecoveryRate, p.MortalityRate)
}

func validateRates(infection, recovery, mortality float64) error {
	if err := checkNonNegative("infection rate", infection); err != nil {
		return err
	}
	if err := checkNonNegative("recovery rate", recovery); err != nil {
		return err
	}
	return checkNonNegative("mortality rate", mortality)
}

func checkNonNegative(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("%w: %s must be a non-negative finite number, got %v", ErrInvalidParameter, name, v)
	}
	return nil
}

// InterventionEffect scales transmission and recovery while a measure is active.
type InterventionEffect struct {
	InfectionFactor float64 `json:"infectionFactor" yaml:"infection_factor"`
	RecoveryFactor  float64 `json:"recoveryFactor" yaml:"recovery_factor"`
}

// NoEffect leaves both rates untouched.
var NoEffect = InterventionEffect{InfectionFactor: 1.0, RecoveryFactor: 1.0}

// Validate rejects negative or non-finite factors.
func (e InterventionEffect) Validate() error {
	if err := checkNonNegative("infection factor", e.InfectionFactor); err != nil {
		return err
	}
	return checkNonNegative("recovery factor", e.RecoveryFactor)
}

// Registry maps a measure identifier to its effect.
type Registry map[string]InterventionEffect

// DefaultRegistry returns the five stock measures.
func DefaultRegistry() Registry {
	return Registry{
		MeasureNone:   NoEffect,
		"masks":       {InfectionFactor: 0.7, RecoveryFactor: 1.0},
		"distancing":  {InfectionFactor: 0.5, RecoveryFactor: 1.0},
		"lockdown":    {InfectionFactor: 0.2, RecoveryFactor: 1.0},
		"vaccination": {InfectionFactor: 1.0, RecoveryFactor: 1.4},
	}
}

// Lookup returns the effect registered for id.
func (r Registry) Lookup(id string) (InterventionEffect, error) {
	effect, ok := r[id]
	if !ok {
		return InterventionEffect{}, fmt.Errorf("%w: %q", ErrUnknownMeasure, id)
	}
	return effect, nil
}

// Clone returns an independent copy.
func (r Registry) Clone() Registry {
	out := make(Registry, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Validate checks every registered effect.
func (r Registry) Validate() error {
	if len(r) == 0 {
		return fmt.Errorf("%w: intervention registry is empty", ErrInvalidParameter)
	}
	for id, effect := range r {
		if id == "" {
			return fmt.Errorf("%w: empty measure identifier", ErrInvalidParameter)
		}
		if err := effect.Validate(); err != nil {
			return fmt.Errorf("measure %q: %w", id, err)
		}
	}
	return nil
}

// VirusProfile bundles disease-specific rates with the measures that apply to it.
type VirusProfile struct {
	Name          string   `json:"name"`
	InfectionRate float64  `json:"baseInfectionRate"`
	RecoveryRate  float64  `json:"baseRecoveryRate"`
	MortalityRate float64  `json:"baseMortalityRate"`
	Interventions Registry `json:"interventions"`
	// DisplayCeiling is the upper bound of a chart axis. It is never read by the model.
	DisplayCeiling int `json:"displayCeiling,omitempty"`
}

// BaselineProfile carries the default rates and registry.
func BaselineProfile() VirusProfile {
	p := DefaultParameters()
	return VirusProfile{
		Name:          "baseline",
		InfectionRate: p.InfectionRate,
		RecoveryRate:  p.RecoveryRate,
		MortalityRate: p.MortalityRate,
		Interventions: DefaultRegistry(),
	}
}

// Validate checks the rates and registry of the profile.
func (vp VirusProfile) Validate() error {
	if vp.Name == "" {
		return fmt.Errorf("%w: profile name is required", ErrInvalidParameter)
	}
	if err := validateRates(vp.InfectionRate, vp.RecoveryRate, vp.MortalityRate); err != nil {
		return fmt.Errorf("profile %q: %w", vp.Name, err)
	}
	if err := vp.Interventions.Validate(); err != nil {
		return fmt.Errorf("profile %q: %w", vp.Name, err)
	}
	return nil
}
