package epidemic

import (
	"fmt"
	"math"
)

// Snapshot is the compartment state of a single day.
type Snapshot struct {
	Susceptible int
	Infected    int
	Recovered   int
	Dead        int
}

// Total is the population accounted for across all compartments.
func (s Snapshot) Total() int {
	return s.Susceptible + s.Infected + s.Recovered + s.Dead
}

// Rates are the intrinsic per-day rates per infected individual.
type Rates struct {
	Infection float64
	Recovery  float64
	Mortality float64
}

// Transition is the flow between compartments computed for one day.
type Transition struct {
	NewInfections int
	NewRecoveries int
	NewDeaths     int
	// Capped is set when recoveries plus deaths had to be limited to the
	// infected available that day.
	Capped bool
}

// Step advances prev by one day. Only prev is read; all flows are floored to
// whole people and new infections never exceed the remaining susceptibles.
func Step(prev Snapshot, population int, rates Rates, effect InterventionEffect) (Snapshot, Transition) {
	infected := float64(prev.Infected)
	pressure := float64(prev.Susceptible) / float64(population)

	var t Transition
	t.NewInfections, _ = flow(infected*rates.Infection*effect.InfectionFactor*pressure, prev.Susceptible)

	// Outflow is bounded by what is available so infected never goes negative.
	available := prev.Infected + t.NewInfections
	var deathsCapped, recoveriesCapped bool
	t.NewDeaths, deathsCapped = flow(infected*rates.Mortality, available)
	t.NewRecoveries, recoveriesCapped = flow(infected*rates.Recovery*effect.RecoveryFactor, available-t.NewDeaths)
	t.Capped = deathsCapped || recoveriesCapped

	next := Snapshot{
		Susceptible: prev.Susceptible - t.NewInfections,
		Infected:    available - t.NewRecoveries - t.NewDeaths,
		Recovered:   prev.Recovered + t.NewRecoveries,
		Dead:        prev.Dead + t.NewDeaths,
	}
	return next, t
}

// flow floors amount to whole people and limits it to limit. The comparison
// happens before the int conversion, so products beyond the int range clamp
// instead of wrapping. capped reports whether limit was applied.
func flow(amount float64, limit int) (n int, capped bool) {
	if math.IsNaN(amount) || amount < 1 {
		return 0, false
	}
	whole := math.Floor(amount)
	if whole > float64(limit) {
		return limit, true
	}
	return int(whole), false
}

// Series is the full daily time series of one scenario. Every slice has
// length Days and is indexed by day starting at 0.
type Series struct {
	Days        int      `json:"days"`
	Susceptible []int    `json:"susceptible"`
	Infected    []int    `json:"infected"`
	Recovered   []int    `json:"recovered"`
	Dead        []int    `json:"dead"`
	Living      []int    `json:"livingPopulation"`
	Measures    []string `json:"activeMeasure"`
	// Capped lists the days on which outflow from infected was limited.
	Capped []int `json:"cappedDays,omitempty"`
}

func newSeries(days int) Series {
	return Series{
		Days:        days,
		Susceptible: make([]int, days),
		Infected:    make([]int, days),
		Recovered:   make([]int, days),
		Dead:        make([]int, days),
		Living:      make([]int, days),
		Measures:    make([]string, days),
	}
}

func (s *Series) set(day int, snap Snapshot, population int, measure string) {
	s.Susceptible[day] = snap.Susceptible
	s.Infected[day] = snap.Infected
	s.Recovered[day] = snap.Recovered
	s.Dead[day] = snap.Dead
	s.Living[day] = population - snap.Dead
	s.Measures[day] = measure
}

// Snapshot returns the compartments of day.
func (s Series) Snapshot(day int) Snapshot {
	return Snapshot{
		Susceptible: s.Susceptible[day],
		Infected:    s.Infected[day],
		Recovered:   s.Recovered[day],
		Dead:        s.Dead[day],
	}
}

// Clone returns a deep copy.
func (s Series) Clone() Series {
	out := Series{
		Days:        s.Days,
		Susceptible: append([]int(nil), s.Susceptible...),
		Infected:    append([]int(nil), s.Infected...),
		Recovered:   append([]int(nil), s.Recovered...),
		Dead:        append([]int(nil), s.Dead...),
		Living:      append([]int(nil), s.Living...),
		Measures:    append([]string(nil), s.Measures...),
	}
	if len(s.Capped) > 0 {
		out.Capped = append([]int(nil), s.Capped...)
	}
	return out
}

// Stats returns the single-day summary for the zero-based day index.
func (s Series) Stats(day int) (DayStats, error) {
	if day < 0 || day >= s.Days {
		return DayStats{}, fmt.Errorf("%w: %d not in [0,%d)", ErrDayOutOfRange, day, s.Days)
	}
	return DayStats{
		Day:         day + 1,
		Infected:    s.Infected[day],
		Dead:        s.Dead[day],
		Recovered:   s.Recovered[day],
		Susceptible: s.Susceptible[day],
		Living:      s.Living[day],
	}, nil
}

// Peak returns the day index and value of the highest infected count. Ties
// resolve to the earliest day.
func (s Series) Peak() (day, infected int) {
	for d, v := range s.Infected {
		if v > infected {
			day, infected = d, v
		}
	}
	return day, infected
}

// DayStats is the stats panel view of one day. Day is 1-based.
type DayStats struct {
	Day         int `json:"day"`
	Infected    int `json:"infected"`
	Dead        int `json:"dead"`
	Recovered   int `json:"recovered"`
	Susceptible int `json:"susceptible"`
	Living      int `json:"livingPopulation"`
}

// Summary condenses a series into headline numbers.
type Summary struct {
	Profile      string   `json:"profile"`
	Measure      string   `json:"measure"`
	PeakDay      int      `json:"peakDay"`
	PeakInfected int      `json:"peakInfected"`
	Final        DayStats `json:"final"`
	CappedDays   int      `json:"cappedDays"`
}

// Run computes a whole series from day 0 under a single constant effect.
func Run(params Parameters, horizonDays int, effect InterventionEffect, measure string) (Series, error) {
	if err := checkHorizon(horizonDays); err != nil {
		return Series{}, err
	}
	if err := params.Validate(); err != nil {
		return Series{}, err
	}
	if err := effect.Validate(); err != nil {
		return Series{}, err
	}

	rates := Rates{
		Infection: params.InfectionRate,
		Recovery:  params.RecoveryRate,
		Mortality: params.MortalityRate,
	}

	series := newSeries(horizonDays)
	snap := Snapshot{
		Susceptible: params.InitialPopulation - params.InitialInfected,
		Infected:    params.InitialInfected,
	}
	series.set(0, snap, params.InitialPopulation, measure)

	for day := 1; day < horizonDays; day++ {
		var t Transition
		snap, t = Step(snap, params.InitialPopulation, rates, effect)
		if t.Capped {
			series.Capped = append(series.Capped, day)
		}
		series.set(day, snap, params.InitialPopulation, measure)
	}
	return series, nil
}
