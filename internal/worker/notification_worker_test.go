package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/interfix/helpdesk/internal/config"
	"github.com/interfix/helpdesk/internal/events"
	"github.com/interfix/helpdesk/internal/observability"
	"github.com/interfix/helpdesk/internal/service"
)

func TestWebhookWorkerDeliversPublishedEvents(t *testing.T) {
	received := make(chan events.Event, 1)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var ev events.Event
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&ev))
		received <- ev
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	metrics := observability.NewMetrics()
	w := NewWebhookWorker(srv.URL, WebhookOptions{MaxElapsed: 5 * time.Second}, zap.NewNop(), metrics)
	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	notifications := service.NewNotificationService(dispatcher, zap.NewNop(), config.NotificationConfig{WebhookURL: srv.URL}, w)
	StartNotificationWorker(notifications)

	id := int64(42)
	require.NoError(t, dispatcher.Publish(ctx, events.Event{ID: "ev-1", Type: events.EventTicketCreated, TicketID: &id}))

	select {
	case ev := <-received:
		assert.Equal(t, "ev-1", ev.ID)
		assert.Equal(t, events.EventTicketCreated, ev.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("webhook not delivered")
	}
	require.Eventually(t, func() bool { return metrics.Count(metricWebhookSent) == 1 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	w.Wait()

	assert.Equal(t, int32(2), calls.Load())
}

func TestWebhookWorkerDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	w := NewWebhookWorker(srv.URL, WebhookOptions{}, zap.NewNop(), nil)
	err := w.deliver(context.Background(), events.Event{ID: "x"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestEnqueueReportsFullQueue(t *testing.T) {
	w := NewWebhookWorker("http://unused", WebhookOptions{QueueSize: 1}, nil, nil)
	assert.True(t, w.Enqueue(events.Event{ID: "a"}))
	assert.False(t, w.Enqueue(events.Event{ID: "b"}))
}
