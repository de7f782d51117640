package worker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/supportdesk-io/supportdesk/internal/config"
	"github.com/supportdesk-io/supportdesk/internal/events"
	"github.com/supportdesk-io/supportdesk/internal/service"
)

func TestNotificationWorkerDeliversAsync(t *testing.T) {
	got := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get("X-Webhook-Event")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	svc := service.NewNotificationService(dispatcher, zap.NewNop(), config.NotificationConfig{
		WebhookURL: server.URL,
	})
	w := StartNotificationWorker(svc, zap.NewNop(), 8, 1)
	defer w.Stop()

	err := dispatcher.Publish(context.Background(), events.Event{
		ID:        "evt-1",
		Type:      events.EventTicketCreated,
		TicketID:  "ticket-1",
		Timestamp: time.Now().UTC(),
		Payload:   events.TicketCreatedPayload{Number: 1, Subject: "Hello"},
	})
	require.NoError(t, err)

	select {
	case eventType := <-got:
		assert.Equal(t, string(events.EventTicketCreated), eventType)
	case <-time.After(2 * time.Second):
		t.Fatal("webhook was not delivered")
	}
}

func TestStartNotificationWorkerNilService(t *testing.T) {
	w := StartNotificationWorker(nil, zap.NewNop(), 0, 0)
	assert.Nil(t, w)
	w.Stop()
}
