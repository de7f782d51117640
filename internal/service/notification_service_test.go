package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/supportdesk-io/supportdesk/internal/config"
	"github.com/supportdesk-io/supportdesk/internal/domain"
	"github.com/supportdesk-io/supportdesk/internal/events"
)

func newNotificationService(cfg config.NotificationConfig) *NotificationService {
	return NewNotificationService(events.NewInMemoryDispatcher(zap.NewNop()), zap.NewNop(), cfg)
}

func sampleEvent(eventType events.EventType, payload interface{}) events.Event {
	return events.Event{
		ID:        "evt-1",
		Type:      eventType,
		TicketID:  "ticket-1",
		Actor:     events.Actor{UserID: "user-1", Role: domain.RoleAgent},
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

func TestComposeNotification(t *testing.T) {
	svc := newNotificationService(config.NotificationConfig{})

	t.Run("ticket created goes to email and webhook", func(t *testing.T) {
		notif, ok := svc.Compose(sampleEvent(events.EventTicketCreated, events.TicketCreatedPayload{
			Number:   42,
			Subject:  "Printer on fire",
			Priority: domain.TicketPriorityHigh,
			Channel:  domain.ChannelWeb,
		}))
		require.True(t, ok)
		assert.Equal(t, "[#42] New ticket: Printer on fire", notif.Subject)
		assert.Contains(t, notif.Body, "#42")
		assert.True(t, notif.Email)
		assert.True(t, notif.Webhook)
	})

	t.Run("status change goes to webhook only", func(t *testing.T) {
		notif, ok := svc.Compose(sampleEvent(events.EventTicketStatusChanged, events.TicketStatusChangedPayload{
			OldStatus: domain.TicketStatusOpen,
			NewStatus: domain.TicketStatusSolved,
		}))
		require.True(t, ok)
		assert.False(t, notif.Email)
		assert.True(t, notif.Webhook)
		assert.Contains(t, notif.Subject, "OPEN")
		assert.Contains(t, notif.Subject, "SOLVED")
	})

	t.Run("unassignment names the queue", func(t *testing.T) {
		notif, ok := svc.Compose(sampleEvent(events.EventTicketAssigned, events.TicketAssignedPayload{AssigneeID: nil}))
		require.True(t, ok)
		assert.Equal(t, "Ticket unassigned", notif.Subject)
		assert.True(t, notif.Webhook)
		assert.False(t, notif.Email)
	})

	t.Run("public comment goes to email only", func(t *testing.T) {
		notif, ok := svc.Compose(sampleEvent(events.EventCommentAdded, events.CommentAddedPayload{
			CommentID:   "comment-1",
			IsInternal:  false,
			BodyPreview: "Have you tried turning it off and on again?",
		}))
		require.True(t, ok)
		assert.True(t, notif.Email)
		assert.False(t, notif.Webhook)
		assert.Equal(t, "Have you tried turning it off and on again?", notif.Body)
	})

	t.Run("internal note is suppressed", func(t *testing.T) {
		_, ok := svc.Compose(sampleEvent(events.EventCommentAdded, events.CommentAddedPayload{
			CommentID:  "comment-2",
			IsInternal: true,
		}))
		assert.False(t, ok)
	})

	t.Run("escalation goes everywhere", func(t *testing.T) {
		notif, ok := svc.Compose(sampleEvent(events.EventChatEscalated, events.ChatEscalatedPayload{
			ChatSessionID: "chat-1",
			TicketNumber:  7,
		}))
		require.True(t, ok)
		assert.True(t, notif.Email)
		assert.True(t, notif.Webhook)
		assert.Equal(t, "[#7] Chat escalated to ticket", notif.Subject)
	})

	t.Run("unknown payload produces nothing", func(t *testing.T) {
		_, ok := svc.Compose(sampleEvent(events.EventTicketCreated, struct{ X int }{X: 1}))
		assert.False(t, ok)
	})
}

func TestDeliverWebhook(t *testing.T) {
	type received struct {
		event     events.EventType
		signature string
		body      []byte
	}

	t.Run("posts signed event envelope", func(t *testing.T) {
		got := make(chan received, 1)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			got <- received{
				event:     events.EventType(r.Header.Get("X-Webhook-Event")),
				signature: r.Header.Get("X-Webhook-Signature"),
				body:      body,
			}
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		svc := newNotificationService(config.NotificationConfig{
			WebhookURL:    server.URL,
			WebhookSecret: "hook-secret",
		})
		event := sampleEvent(events.EventTicketCreated, events.TicketCreatedPayload{Number: 42, Subject: "Printer on fire"})
		require.NoError(t, svc.deliverWebhook(context.Background(), Notification{Event: event}))

		req := <-got
		assert.Equal(t, events.EventTicketCreated, req.event)

		mac := hmac.New(sha256.New, []byte("hook-secret"))
		mac.Write(req.body)
		assert.Equal(t, "sha256="+hex.EncodeToString(mac.Sum(nil)), req.signature)

		var envelope struct {
			ID       string `json:"id"`
			Type     string `json:"type"`
			TicketID string `json:"ticket_id"`
		}
		require.NoError(t, json.Unmarshal(req.body, &envelope))
		assert.Equal(t, "evt-1", envelope.ID)
		assert.Equal(t, string(events.EventTicketCreated), envelope.Type)
		assert.Equal(t, "ticket-1", envelope.TicketID)
	})

	t.Run("no signature header without a secret", func(t *testing.T) {
		got := make(chan string, 1)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got <- r.Header.Get("X-Webhook-Signature")
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		svc := newNotificationService(config.NotificationConfig{WebhookURL: server.URL})
		event := sampleEvent(events.EventTicketAssigned, events.TicketAssignedPayload{})
		require.NoError(t, svc.deliverWebhook(context.Background(), Notification{Event: event}))
		assert.Empty(t, <-got)
	})

	t.Run("non-2xx response is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		svc := newNotificationService(config.NotificationConfig{WebhookURL: server.URL})
		event := sampleEvent(events.EventTicketCreated, events.TicketCreatedPayload{})
		err := svc.deliverWebhook(context.Background(), Notification{Event: event})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
	})

	t.Run("unconfigured webhook is a no-op", func(t *testing.T) {
		svc := newNotificationService(config.NotificationConfig{})
		event := sampleEvent(events.EventTicketCreated, events.TicketCreatedPayload{})
		require.NoError(t, svc.deliverWebhook(context.Background(), Notification{Event: event}))
	})
}

func TestDeliverEmailDisabled(t *testing.T) {
	svc := newNotificationService(config.NotificationConfig{EmailFrom: "noreply@example.com"})
	event := sampleEvent(events.EventTicketCreated, events.TicketCreatedPayload{})
	require.NoError(t, svc.deliverEmail(Notification{Event: event, Subject: "s", Body: "b"}))
}
