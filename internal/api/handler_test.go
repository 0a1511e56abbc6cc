package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pandemus/internal/epidemic"
	"pandemus/internal/events"
	"pandemus/internal/metrics"
	"pandemus/internal/model"
	"pandemus/internal/profiles"
	"pandemus/internal/store"
)

// MockNATSConn is a mock NATS connection
type MockNATSConn struct {
	publishedMessages []struct {
		subject string
		data    []byte
	}
}

func (m *MockNATSConn) Publish(subject string, data []byte) error {
	m.publishedMessages = append(m.publishedMessages, struct {
		subject string
		data    []byte
	}{subject: subject, data: data})
	return nil
}

// FailingStore returns an error from every operation
type FailingStore struct{}

var errBroken = errors.New("connection refused")

func (FailingStore) Create(context.Context, *model.Simulation) (*model.Simulation, error) {
	return nil, errBroken
}
func (FailingStore) List(context.Context) ([]*model.Simulation, error) { return nil, errBroken }
func (FailingStore) Get(context.Context, int64) (*model.Simulation, error) {
	return nil, errBroken
}
func (FailingStore) Delete(context.Context, int64) (*model.Simulation, error) {
	return nil, errBroken
}
func (FailingStore) Health(context.Context) error { return errBroken }
func (FailingStore) Close() error                  { return nil }

type testServer struct {
	handler *Handler
	nats    *MockNATSConn
	metrics *metrics.Metrics
}

func newTestServer(t *testing.T, st store.SimulationStore, opts ...Option) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	if st == nil {
		mem, err := store.NewMemoryStore(100, logger)
		require.NoError(t, err)
		st = mem
	}

	loader, err := profiles.NewLoader("", logger)
	require.NoError(t, err)
	catalog, err := loader.Load()
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	nc := &MockNATSConn{}

	opts = append([]Option{WithGatherer(reg)}, opts...)
	h, err := NewHandler(st, catalog, events.NewNotifier(nc, m, logger), m, logger, opts...)
	require.NoError(t, err)

	return &testServer{handler: h, nats: nc, metrics: m}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

const validBody = `{
	"name": "Minha Simulação",
	"days": 3,
	"infected": [10, 20, 30],
	"dead": [0, 1, 2],
	"recovered": [0, 5, 10]
}`

func TestHandler_Root(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodGet, "/api", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Pandemus backend"}`, w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestHandler_Preflight(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodOptions, "/api/simulation/create", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "DELETE")
}

func TestHandler_SimulationLifecycle(t *testing.T) {
	s := newTestServer(t, nil)

	t.Run("create", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/simulation/create", validBody)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var created model.Simulation
		require.NoError(t, json.Unmarshal(decode(t, w)["created"], &created))
		assert.Equal(t, int64(1), created.ID)
		assert.Equal(t, "Minha Simulação", *created.Name)
		assert.Equal(t, []float64{10, 20, 30}, created.Infected)
		assert.False(t, created.CreatedAt.IsZero())

		require.Len(t, s.nats.publishedMessages, 1)
		assert.Equal(t, events.SubjectCreated, s.nats.publishedMessages[0].subject)
		assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.SimulationsCreated))
	})

	t.Run("list", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/simulation/list", "")
		require.Equal(t, http.StatusOK, w.Code)

		var sims []model.Simulation
		require.NoError(t, json.Unmarshal(decode(t, w)["simulations"], &sims))
		require.Len(t, sims, 1)
		assert.Equal(t, 3, sims[0].Days)
	})

	t.Run("get", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/simulation/1", "")
		require.Equal(t, http.StatusOK, w.Code)

		var sim model.Simulation
		require.NoError(t, json.Unmarshal(decode(t, w)["simulation"], &sim))
		assert.Equal(t, int64(1), sim.ID)
	})

	t.Run("delete", func(t *testing.T) {
		w := s.do(t, http.MethodDelete, "/api/simulation/1/delete", "")
		require.Equal(t, http.StatusOK, w.Code)

		var sim model.Simulation
		require.NoError(t, json.Unmarshal(decode(t, w)["deleted"], &sim))
		assert.Equal(t, int64(1), sim.ID)

		require.Len(t, s.nats.publishedMessages, 2)
		assert.Equal(t, events.SubjectDeleted, s.nats.publishedMessages[1].subject)
	})

	t.Run("get after delete", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/simulation/1", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error":"Simulation not found"}`, w.Body.String())
	})

	t.Run("delete after delete", func(t *testing.T) {
		w := s.do(t, http.MethodDelete, "/api/simulation/1/delete", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error":"Simulation does not exist"}`, w.Body.String())
	})

	t.Run("empty list", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/simulation/list", "")
		assert.JSONEq(t, `{"simulations":[]}`, w.Body.String())
	})
}

func TestHandler_CreateWithDate(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/api/simulation/create",
		`{"createdAt":"2023-08-25","days":1,"infected":[1],"dead":[0],"recovered":[0]}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created model.Simulation
	require.NoError(t, json.Unmarshal(decode(t, w)["created"], &created))
	assert.Equal(t, "2023-08-25", created.CreatedAt.Format("2006-01-02"))
	assert.Nil(t, created.Name)
}

func TestHandler_CreateValidation(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/api/simulation/create", `{"days":2,"infected":[1,2],"dead":[0],"recovered":[0,0]}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var errs []model.FieldError
	require.NoError(t, json.Unmarshal(decode(t, w)["errors"], &errs))
	require.Len(t, errs, 1)
	assert.Equal(t, model.FieldError{Type: "field", Msg: "Array length must match days", Path: "dead", Location: "body"}, errs[0])

	w = s.do(t, http.MethodPost, "/api/simulation/create", `{"days":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, float64(2), testutil.ToFloat64(s.metrics.ValidationFailures))
	assert.Empty(t, s.nats.publishedMessages)
}

func TestHandler_InvalidID(t *testing.T) {
	s := newTestServer(t, nil)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/simulation/abc"},
		{http.MethodDelete, "/api/simulation/abc/delete"},
	} {
		w := s.do(t, tc.method, tc.path, "")
		require.Equal(t, http.StatusBadRequest, w.Code, tc.path)

		var errs []model.FieldError
		require.NoError(t, json.Unmarshal(decode(t, w)["error"], &errs))
		require.Len(t, errs, 1)
		assert.Equal(t, "id must be a non-empty integer", errs[0].Msg)
	}
}

func TestHandler_StoreFailures(t *testing.T) {
	s := newTestServer(t, FailingStore{})

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodPost, "/api/simulation/create", validBody},
		{http.MethodGet, "/api/simulation/list", ""},
		{http.MethodGet, "/api/simulation/1", ""},
		{http.MethodDelete, "/api/simulation/1/delete", ""},
	} {
		w := s.do(t, tc.method, tc.path, tc.body)
		assert.Equal(t, http.StatusInternalServerError, w.Code, tc.path)
		assert.JSONEq(t, `{"error":"Internal server error"}`, w.Body.String())
	}

	w := s.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandler_Profiles(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodGet, "/api/profiles", "")
	require.Equal(t, http.StatusOK, w.Code)

	var list []profiles.Profile
	require.NoError(t, json.Unmarshal(decode(t, w)["profiles"], &list))
	require.Len(t, list, 4)
	assert.Equal(t, "baseline", list[0].Name)
}

func TestHandler_RunScenario(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/api/scenario/run", `{"profile":"baseline","measure":"lockdown"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp model.RunScenarioResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 100, resp.Series.Days)
	assert.Equal(t, "lockdown", resp.Summary.Measure)
	assert.Equal(t, 10, resp.Summary.PeakInfected)
	assert.Nil(t, resp.Saved)
	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.ScenarioRuns.WithLabelValues("baseline", "lockdown")))

	// An empty body runs the default scenario.
	w = s.do(t, http.MethodPost, "/api/scenario/run", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestHandler_RunScenarioAndSave(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/api/scenario/run", `{"profile":"covid","days":30,"save":true,"name":"covid 30 days"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp model.RunScenarioResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Saved)
	assert.Equal(t, 30, resp.Saved.Days)
	assert.Len(t, resp.Saved.Infected, 30)
	assert.Equal(t, float64(resp.Series.Infected[29]), resp.Saved.Infected[29])

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/simulation/%d", resp.Saved.ID), "")
	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, s.nats.publishedMessages, 1)

	// Names are held to the same rules as posted records.
	w = s.do(t, http.MethodPost, "/api/scenario/run", `{"save":true,"name":"ab"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_RunScenarioErrors(t *testing.T) {
	s := newTestServer(t, nil)

	for _, body := range []string{
		`{"measure":"not-a-real-measure"}`,
		`{"profile":"smallpox"}`,
		`{"initialPopulation":10,"initialInfected":20}`,
		`{"days":-1}`,
		`{"days":5000000}`,
		`{"profile":`,
	} {
		w := s.do(t, http.MethodPost, "/api/scenario/run", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}

	w := s.do(t, http.MethodPost, "/api/scenario/run", `{"measure":"not-a-real-measure"}`)
	assert.True(t, strings.Contains(w.Body.String(), "unknown measure"), w.Body.String())
}

func TestHandler_RunScenarioFactorModes(t *testing.T) {
	body := `{"sequence":["masks"],"measure":"masks","days":60}`

	factors := func(s *testServer) epidemic.InterventionEffect {
		w := s.do(t, http.MethodPost, "/api/scenario/run", body)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var resp model.RunScenarioResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		return resp.Factors
	}

	overwrite := factors(newTestServer(t, nil))
	assert.Equal(t, 0.7, overwrite.InfectionFactor)

	compound := factors(newTestServer(t, nil, WithFactorMode(epidemic.FactorModeCompound)))
	assert.InDelta(t, 0.49, compound.InfectionFactor, 1e-9)
	assert.Equal(t, 1.0, compound.RecoveryFactor)
}

func TestHandler_CompareScenarios(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/api/scenario/compare", `{"measures":["none","lockdown"]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var summaries []struct {
		Measure      string `json:"measure"`
		PeakInfected int    `json:"peakInfected"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w)["summaries"], &summaries))
	require.Len(t, summaries, 2)
	assert.Less(t, summaries[1].PeakInfected, summaries[0].PeakInfected)

	w = s.do(t, http.MethodPost, "/api/scenario/compare", `{"measures":["bogus"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/scenario/compare", `{"days":5000000}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "horizon must be between 1 and 3650 days")
}

func TestHandler_HealthAndMetrics(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, w.Code)

	s.do(t, http.MethodPost, "/api/simulation/create", validBody)
	w = s.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "simulations_created_total 1")
}

func TestHandler_UnknownRoute(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodGet, "/api/nothing/here", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
