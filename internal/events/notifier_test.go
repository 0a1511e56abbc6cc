package events

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"pandemus/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type message struct {
	subject string
	data    []byte
}

// MockPublisher records published messages and can be told to fail.
type MockPublisher struct {
	messages []message
	err      error
}

func (m *MockPublisher) Publish(subject string, data []byte) error {
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, message{subject: subject, data: data})
	return nil
}

type countingErrors struct{ n int }

func (c *countingErrors) IncrementNatsPublishErrors() { c.n++ }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNotifier_PublishesEnvelopes(t *testing.T) {
	pub := &MockPublisher{}
	n := NewNotifier(pub, nil, testLogger())

	name := "Simulação A"
	sim := &model.Simulation{ID: 7, Name: &name, Days: 100}
	n.Created(sim)
	n.Deleted(sim)

	require.Len(t, pub.messages, 2)
	assert.Equal(t, SubjectCreated, pub.messages[0].subject)
	assert.Equal(t, SubjectDeleted, pub.messages[1].subject)

	var event Event
	require.NoError(t, json.Unmarshal(pub.messages[0].data, &event))
	assert.Equal(t, SubjectCreated, event.Type)
	assert.Equal(t, int64(7), event.SimulationID)
	assert.Equal(t, 100, event.Days)
	require.NotNil(t, event.Name)
	assert.Equal(t, name, *event.Name)
	_, err := uuid.Parse(event.ID)
	assert.NoError(t, err)
	assert.False(t, event.Timestamp.IsZero())
}

func TestNotifier_CountsFailures(t *testing.T) {
	pub := &MockPublisher{err: errors.New("nats: connection closed")}
	counter := &countingErrors{}
	n := NewNotifier(pub, counter, testLogger())

	n.Created(&model.Simulation{ID: 1, Days: 1})

	assert.Empty(t, pub.messages)
	assert.Equal(t, 1, counter.n)
}

func TestNotifier_NilPublisherIsNoop(t *testing.T) {
	n := NewNotifier(nil, nil, testLogger())
	assert.NotPanics(t, func() { n.Created(&model.Simulation{ID: 1, Days: 1}) })
}
