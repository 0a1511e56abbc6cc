package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2"

	"pandemus/internal/model"
)

// MemoryStore keeps up to capacity simulations in memory, evicting the oldest.
type MemoryStore struct {
	mu       sync.Mutex
	records  *lru.Cache[int64, *model.Simulation]
	nextID   int64
	capacity int
	deleting bool
	logger   *slog.Logger
	now      func() time.Time
}

// NewMemoryStore creates a new in-memory simulation store
func NewMemoryStore(capacity int, logger *slog.Logger) (*MemoryStore, error) {
	s := &MemoryStore{
		capacity: capacity,
		logger:   logger,
		now:      time.Now,
	}
	records, err := lru.NewWithEvict[int64, *model.Simulation](capacity, func(id int64, _ *model.Simulation) {
		if s.deleting {
			return
		}
		s.logger.Info("Removed oldest simulation due to capacity limit", "simulation_id", id)
	})
	if err != nil {
		return nil, err
	}
	s.records = records
	return s, nil
}

// Create stores a copy of sim under the next id
func (s *MemoryStore) Create(ctx context.Context, sim *model.Simulation) (*model.Simulation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	stored := clone(sim)
	stored.ID = s.nextID
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now().UTC()
	}
	s.records.Add(stored.ID, stored)

	s.logger.Debug("Simulation stored", "simulation_id", stored.ID, "days", stored.Days)
	return clone(stored), nil
}

// List returns all simulations ordered by id
func (s *MemoryStore) List(ctx context.Context) ([]*model.Simulation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sims := make([]*model.Simulation, 0, s.records.Len())
	for _, id := range s.records.Keys() {
		if sim, ok := s.records.Peek(id); ok {
			sims = append(sims, clone(sim))
		}
	}
	sort.Slice(sims, func(i, j int) bool { return sims[i].ID < sims[j].ID })
	return sims, nil
}

// Get returns the simulation with id
func (s *MemoryStore) Get(ctx context.Context, id int64) (*model.Simulation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sim, ok := s.records.Peek(id)
	if !ok {
		return nil, ErrNotFound
	}
	return clone(sim), nil
}

// Delete removes the simulation with id
func (s *MemoryStore) Delete(ctx context.Context, id int64) (*model.Simulation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sim, ok := s.records.Peek(id)
	if !ok {
		return nil, ErrNotFound
	}
	s.deleting = true
	s.records.Remove(id)
	s.deleting = false
	return clone(sim), nil
}

// Health always succeeds for the in-memory store
func (s *MemoryStore) Health(ctx context.Context) error { return nil }

// Close is a no-op
func (s *MemoryStore) Close() error { return nil }

func clone(sim *model.Simulation) *model.Simulation {
	out := *sim
	if sim.Name != nil {
		name := *sim.Name
		out.Name = &name
	}
	out.Infected = append([]float64(nil), sim.Infected...)
	out.Dead = append([]float64(nil), sim.Dead...)
	out.Recovered = append([]float64(nil), sim.Recovered...)
	return &out
}
