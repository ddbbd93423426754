package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backoffice/internal/events"
	"github.com/noah-isme/backoffice/internal/store"
)

type stubStore struct {
	lastTopic   string
	lastPayload json.RawMessage
	event       store.DomainEventRow
}

func (s *stubStore) InsertDomainEvent(_ context.Context, topic string, aggregateID uuid.UUID, payload json.RawMessage) (store.DomainEventRow, error) {
	s.lastTopic = topic
	s.lastPayload = payload
	if s.event.ID == uuid.Nil {
		s.event.ID = uuid.New()
	}
	s.event.Topic = topic
	s.event.AggregateID = aggregateID
	s.event.Payload = payload
	if s.event.OccurredAt.IsZero() {
		s.event.OccurredAt = time.Now()
	}
	return s.event, nil
}

type captureScheduler struct {
	events []store.DomainEventRow
}

func (c *captureScheduler) Schedule(_ context.Context, event store.DomainEventRow) error {
	c.events = append(c.events, event)
	return nil
}

type captureNotifier struct {
	events []store.DomainEventRow
}

func (c *captureNotifier) Notify(_ context.Context, event store.DomainEventRow) error {
	c.events = append(c.events, event)
	return nil
}

func TestEmitPersistsEvent(t *testing.T) {
	st := &stubStore{}
	scheduler := &captureScheduler{}
	notifier := &captureNotifier{}
	bus := events.Bus{
		Store:     st,
		Scheduler: scheduler,
		Notifiers: []events.Notifier{notifier},
	}

	aggregate := uuid.New()
	payload := map[string]any{"orderId": "123"}
	ctx := context.Background()
	event, err := bus.Emit(ctx, events.TopicOrderCreated, aggregate, payload)
	require.NoError(t, err)
	require.Equal(t, events.TopicOrderCreated, st.lastTopic)
	require.JSONEq(t, `{"orderId":"123"}`, string(st.lastPayload))
	require.Len(t, scheduler.events, 1)
	require.Len(t, notifier.events, 1)
	require.Equal(t, event.ID, scheduler.events[0].ID)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(event.Payload, &decoded))
	require.Equal(t, "123", decoded["orderId"])
}

func TestEmitRejectsMissingAggregate(t *testing.T) {
	bus := events.Bus{Store: &stubStore{}}
	_, err := bus.Emit(context.Background(), events.TopicOrderPaid, uuid.Nil, nil)
	require.Error(t, err)
}

func TestEmitRejectsInvalidPayload(t *testing.T) {
	bus := events.Bus{Store: &stubStore{}}
	_, err := bus.Emit(context.Background(), events.TopicOrderPaid, uuid.New(), json.RawMessage("{not json"))
	require.Error(t, err)
}
