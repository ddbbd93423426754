package events

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backoffice/internal/store"
)

func TestWebhookNotifierSignsAndDelivers(t *testing.T) {
	t.Parallel()

	event := store.DomainEventRow{
		ID:          uuid.New(),
		TenantID:    uuid.New(),
		Topic:       "document.totals_calculated",
		AggregateID: uuid.New(),
		Payload:     json.RawMessage(`{"grandTotalGrossAmount":"24.00"}`),
		OccurredAt:  time.Now().UTC(),
	}

	var gotSignature, gotTimestamp string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get("X-Signature")
		gotTimestamp = r.Header.Get("X-Timestamp")
		require.Equal(t, event.ID.String(), r.Header.Get("X-Event-ID"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		gotBody = body
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	fixed := time.Unix(1700000000, 0)
	notifier := NewWebhookNotifier(srv.URL, "s3cret", time.Second)
	notifier.now = func() time.Time { return fixed }

	require.NoError(t, notifier.Notify(context.Background(), event))
	require.Equal(t, "1700000000", gotTimestamp)
	require.Equal(t, ComputeSignature("s3cret", fixed.Unix(), event.ID.String(), gotBody), gotSignature)

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(gotBody, &envelope))
	require.Equal(t, event.Topic, envelope["topic"])
	require.Equal(t, event.AggregateID.String(), envelope["aggregateId"])
}

func TestWebhookNotifierRejectsFailureStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	notifier := NewWebhookNotifier(srv.URL, "s3cret", time.Second)
	err := notifier.Notify(context.Background(), store.DomainEventRow{ID: uuid.New()})
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")
}
