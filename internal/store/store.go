// Package store persists simulation records.
package store

import (
	"context"
	"errors"

	"pandemus/internal/model"
)

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("simulation not found")

// SimulationStore defines the interface for storing and retrieving simulations
type SimulationStore interface {
	// Create assigns an id (and a creation time when unset) and stores sim
	Create(ctx context.Context, sim *model.Simulation) (*model.Simulation, error)
	// List returns all simulations ordered by id
	List(ctx context.Context) ([]*model.Simulation, error)
	// Get returns the simulation with id or ErrNotFound
	Get(ctx context.Context, id int64) (*model.Simulation, error)
	// Delete removes the simulation with id and returns it, or ErrNotFound
	Delete(ctx context.Context, id int64) (*model.Simulation, error)
	// Health reports whether the backing storage is reachable
	Health(ctx context.Context) error
	// Close releases resources
	Close() error
}
