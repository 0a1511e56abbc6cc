// Package events announces simulation changes on NATS.
package events

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"pandemus/internal/model"
)

// Subjects published by the Notifier.
const (
	SubjectCreated = "simulation.created"
	SubjectDeleted = "simulation.deleted"
)

// Publisher defines the interface for publishing NATS messages
type Publisher interface {
	Publish(subject string, data []byte) error
}

var _ Publisher = (*nats.Conn)(nil)

// NoopPublisher drops every message. It is used when NATS is disabled.
type NoopPublisher struct{}

// Publish implements Publisher.
func (NoopPublisher) Publish(string, []byte) error { return nil }

// ErrorCounter is notified of failed publishes.
type ErrorCounter interface {
	IncrementNatsPublishErrors()
}

// Event is the payload published for every change.
type Event struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	SimulationID int64     `json:"simulation_id"`
	Name         *string   `json:"name,omitempty"`
	Days         int       `json:"days"`
	Timestamp    time.Time `json:"timestamp"`
}

// Notifier publishes simulation lifecycle events. Failures are logged and
// counted; they never propagate to the caller.
type Notifier struct {
	publisher Publisher
	errors    ErrorCounter
	logger    *slog.Logger
	now       func() time.Time
}

// NewNotifier creates a notifier. errors may be nil.
func NewNotifier(publisher Publisher, errors ErrorCounter, logger *slog.Logger) *Notifier {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	return &Notifier{
		publisher: publisher,
		errors:    errors,
		logger:    logger,
		now:       time.Now,
	}
}

// Created announces a newly stored simulation.
func (n *Notifier) Created(sim *model.Simulation) {
	n.publish(SubjectCreated, sim)
}

// Deleted announces a removed simulation.
func (n *Notifier) Deleted(sim *model.Simulation) {
	n.publish(SubjectDeleted, sim)
}

func (n *Notifier) publish(subject string, sim *model.Simulation) {
	event := Event{
		ID:           uuid.NewString(),
		Type:         subject,
		SimulationID: sim.ID,
		Name:         sim.Name,
		Days:         sim.Days,
		Timestamp:    n.now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		n.logger.Error("Failed to marshal simulation event", "error", err)
		return
	}

	if err := n.publisher.Publish(subject, data); err != nil {
		n.logger.Error("Failed to publish simulation event", "subject", subject, "simulation_id", sim.ID, "error", err)
		if n.errors != nil {
			n.errors.IncrementNatsPublishErrors()
		}
		return
	}
	n.logger.Info("Published simulation event", "subject", subject, "simulation_id", sim.ID, "event_id", event.ID)
}
