package model

import (
	"time"

	"pandemus/internal/epidemic"
)

// Simulation is a persisted snapshot of a simulated series.
type Simulation struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Name      *string   `json:"name"`
	Days      int       `json:"days"`
	Infected  []float64 `json:"infected"`
	Dead      []float64 `json:"dead"`
	Recovered []float64 `json:"recovered"`
}

// CreateSimulationRequest is the body of POST /api/simulation/create.
type CreateSimulationRequest struct {
	Name      *string   `json:"name,omitempty"`
	CreatedAt *string   `json:"createdAt,omitempty"`
	Days      int       `json:"days"`
	Infected  []float64 `json:"infected"`
	Dead      []float64 `json:"dead"`
	Recovered []float64 `json:"recovered"`
}

// FieldError describes one rejected request field.
type FieldError struct {
	Type     string `json:"type"`
	Msg      string `json:"msg"`
	Path     string `json:"path"`
	Location string `json:"location"`
}

// RunScenarioRequest is the body of POST /api/scenario/run. Zero values fall
// back to the defaults of the selected profile. Sequence lists measures applied
// one after another before Measure; under the compound factor mode their
// factors multiply.
type RunScenarioRequest struct {
	Profile           string   `json:"profile,omitempty"`
	Sequence          []string `json:"sequence,omitempty"`
	Measure           string   `json:"measure,omitempty"`
	InitialPopulation int      `json:"initialPopulation,omitempty"`
	InitialInfected   int      `json:"initialInfected,omitempty"`
	Days              int      `json:"days,omitempty"`
	Save              bool     `json:"save,omitempty"`
	Name              string   `json:"name,omitempty"`
}

// RunScenarioResponse carries the computed series and, when saved, the record.
type RunScenarioResponse struct {
	Series  epidemic.Series             `json:"series"`
	Summary epidemic.Summary            `json:"summary"`
	Stats   epidemic.DayStats           `json:"stats"`
	Factors epidemic.InterventionEffect `json:"factors"`
	Saved   *Simulation                 `json:"saved,omitempty"`
}

// FromSeries builds an unsaved record from the infected, dead and recovered
// curves of series.
func FromSeries(name string, series epidemic.Series) *Simulation {
	sim := &Simulation{
		Days:      series.Days,
		Infected:  toFloats(series.Infected),
		Dead:      toFloats(series.Dead),
		Recovered: toFloats(series.Recovered),
	}
	if name != "" {
		sim.Name = &name
	}
	return sim
}

func toFloats(values []int) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out
}

// CompareScenarioRequest is the body of POST /api/scenario/compare.
type CompareScenarioRequest struct {
	RunScenarioRequest
	Measures []string `json:"measures,omitempty"`
}
