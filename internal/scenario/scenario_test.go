package scenario

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pandemus/internal/epidemic"
	"pandemus/internal/model"
	"pandemus/internal/profiles"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testCatalog(t *testing.T) *profiles.Catalog {
	t.Helper()
	loader, err := profiles.NewLoader("", testLogger())
	require.NoError(t, err)
	catalog, err := loader.Load()
	require.NoError(t, err)
	return catalog
}

func TestRun_DefaultsMatchBaseline(t *testing.T) {
	resp, err := Run(testCatalog(t), model.RunScenarioRequest{}, epidemic.FactorModeOverwrite, testLogger())
	require.NoError(t, err)

	assert.Equal(t, epidemic.DefaultHorizonDays, resp.Series.Days)
	assert.Equal(t, 11, resp.Series.Infected[1])
	assert.Equal(t, "baseline", resp.Summary.Profile)
	assert.Equal(t, epidemic.MeasureNone, resp.Summary.Measure)
	assert.Equal(t, epidemic.DefaultHorizonDays, resp.Stats.Day)
}

func TestRun_Overrides(t *testing.T) {
	resp, err := Run(testCatalog(t), model.RunScenarioRequest{
		Profile:           "ebola",
		Measure:           "isolation",
		InitialPopulation: 5000,
		InitialInfected:   3,
		Days:              30,
	}, epidemic.FactorModeOverwrite, testLogger())
	require.NoError(t, err)

	assert.Equal(t, 30, resp.Series.Days)
	assert.Equal(t, 3, resp.Series.Infected[0])
	assert.Equal(t, 4997, resp.Series.Susceptible[0])
	assert.Equal(t, "ebola", resp.Summary.Profile)
	assert.Equal(t, "isolation", resp.Summary.Measure)
}

func TestRun_Errors(t *testing.T) {
	catalog := testCatalog(t)

	_, err := Run(catalog, model.RunScenarioRequest{Profile: "smallpox"}, epidemic.FactorModeOverwrite, testLogger())
	require.ErrorIs(t, err, epidemic.ErrInvalidParameter)

	_, err = Run(catalog, model.RunScenarioRequest{Measure: "prayer"}, epidemic.FactorModeOverwrite, testLogger())
	require.ErrorIs(t, err, epidemic.ErrUnknownMeasure)

	_, err = Run(catalog, model.RunScenarioRequest{InitialPopulation: 5, InitialInfected: 6}, epidemic.FactorModeOverwrite, testLogger())
	require.ErrorIs(t, err, epidemic.ErrInvalidParameter)

	// Measures are scoped to the profile.
	_, err = Run(catalog, model.RunScenarioRequest{Profile: "ebola", Measure: "lockdown"}, epidemic.FactorModeOverwrite, testLogger())
	require.ErrorIs(t, err, epidemic.ErrUnknownMeasure)
}

func TestCompare(t *testing.T) {
	catalog := testCatalog(t)

	summaries, err := Compare(catalog, model.RunScenarioRequest{}, []string{"none", "lockdown"}, epidemic.FactorModeOverwrite, testLogger())
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "none", summaries[0].Measure)
	assert.Equal(t, "lockdown", summaries[1].Measure)
	assert.Less(t, summaries[1].PeakInfected, summaries[0].PeakInfected)

	all, err := Compare(catalog, model.RunScenarioRequest{Profile: "influenza"}, nil, epidemic.FactorModeOverwrite, testLogger())
	require.NoError(t, err)
	assert.Len(t, all, 4)

	_, err = Compare(catalog, model.RunScenarioRequest{}, []string{"none", "bogus"}, epidemic.FactorModeOverwrite, testLogger())
	require.ErrorIs(t, err, epidemic.ErrUnknownMeasure)
}

func TestRun_SequenceFactorModes(t *testing.T) {
	catalog := testCatalog(t)
	req := model.RunScenarioRequest{Sequence: []string{"masks"}, Measure: "masks"}

	overwrite, err := Run(catalog, req, epidemic.FactorModeOverwrite, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 0.7, overwrite.Factors.InfectionFactor)

	compound, err := Run(catalog, req, epidemic.FactorModeCompound, testLogger())
	require.NoError(t, err)
	assert.InDelta(t, 0.49, compound.Factors.InfectionFactor, 1e-9)
	assert.Equal(t, "masks", compound.Summary.Measure)
	assert.Less(t, compound.Summary.PeakInfected, overwrite.Summary.PeakInfected)

	// The caller's sequence is not extended by Measure.
	assert.Equal(t, []string{"masks"}, req.Sequence)

	_, err = Run(catalog, model.RunScenarioRequest{Sequence: []string{"masks", "prayer"}}, epidemic.FactorModeCompound, testLogger())
	require.ErrorIs(t, err, epidemic.ErrUnknownMeasure)
}

func TestRun_HorizonLimit(t *testing.T) {
	_, err := Run(testCatalog(t), model.RunScenarioRequest{Days: epidemic.MaxHorizonDays + 1}, epidemic.FactorModeOverwrite, testLogger())
	require.ErrorIs(t, err, epidemic.ErrInvalidParameter)
}

func TestCompare_AppliesSequenceFirst(t *testing.T) {
	catalog := testCatalog(t)

	summaries, err := Compare(catalog, model.RunScenarioRequest{Sequence: []string{"distancing"}}, []string{"none", "masks"}, epidemic.FactorModeCompound, testLogger())
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	plain, err := Compare(catalog, model.RunScenarioRequest{}, []string{"masks"}, epidemic.FactorModeCompound, testLogger())
	require.NoError(t, err)
	assert.Less(t, summaries[1].PeakInfected, plain[0].PeakInfected)
}
