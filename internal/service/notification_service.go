package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/supportdesk-io/supportdesk/internal/config"
	"github.com/supportdesk-io/supportdesk/internal/events"
)

// Notification is one composed outbound message. Email and Webhook
// select the transports the event is routed to.
type Notification struct {
	Event   events.Event
	Subject string
	Body    string
	Email   bool
	Webhook bool
}

// NotificationSink accepts composed notifications for delivery. The
// worker package provides one backed by a queue so delivery never runs
// on the request goroutine.
type NotificationSink func(Notification)

// NotificationService turns domain events into outbound notifications:
// an email to the triage inbox and/or a signed webhook call.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	client     *http.Client
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
		client:     &http.Client{Timeout: cfg.SendTimeout()},
	}
}

// RegisterHandlers subscribes to the event stream. Composed
// notifications are handed to sink; delivery happens elsewhere.
func (n *NotificationService) RegisterHandlers(sink NotificationSink) {
	if n.dispatcher == nil || sink == nil {
		return
	}
	handler := func(_ context.Context, event events.Event) error {
		notif, ok := n.Compose(event)
		if !ok {
			return nil
		}
		n.logger.Info("notification queued",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.String("subject", notif.Subject))
		sink(notif)
		return nil
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, handler)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, handler)
	n.dispatcher.Subscribe(events.EventTicketAssigned, handler)
	n.dispatcher.Subscribe(events.EventCommentAdded, handler)
	n.dispatcher.Subscribe(events.EventChatEscalated, handler)
}

// Compose builds the outbound message for an event and decides its
// routing. The second return is false when the event produces no
// notification at all.
func (n *NotificationService) Compose(event events.Event) (Notification, bool) {
	notif := Notification{Event: event}
	switch payload := event.Payload.(type) {
	case events.TicketCreatedPayload:
		notif.Subject = fmt.Sprintf("[#%d] New ticket: %s", payload.Number, payload.Subject)
		notif.Body = fmt.Sprintf("Ticket #%d opened via %s with %s priority.",
			payload.Number, payload.Channel, payload.Priority)
		notif.Email = true
		notif.Webhook = true
	case events.TicketStatusChangedPayload:
		notif.Subject = fmt.Sprintf("Ticket status: %s -> %s", payload.OldStatus, payload.NewStatus)
		notif.Body = fmt.Sprintf("Ticket %s moved from %s to %s.",
			event.TicketID, payload.OldStatus, payload.NewStatus)
		notif.Webhook = true
	case events.TicketAssignedPayload:
		if payload.AssigneeID == nil {
			notif.Subject = "Ticket unassigned"
			notif.Body = fmt.Sprintf("Ticket %s returned to the queue.", event.TicketID)
		} else {
			notif.Subject = "Ticket assigned"
			notif.Body = fmt.Sprintf("Ticket %s assigned to %s.", event.TicketID, *payload.AssigneeID)
		}
		notif.Webhook = true
	case events.CommentAddedPayload:
		// Internal notes never leave the system.
		if payload.IsInternal {
			return Notification{}, false
		}
		notif.Subject = "New reply on ticket"
		notif.Body = payload.BodyPreview
		notif.Email = true
	case events.ChatEscalatedPayload:
		notif.Subject = fmt.Sprintf("[#%d] Chat escalated to ticket", payload.TicketNumber)
		notif.Body = fmt.Sprintf("Chat session %s was escalated to ticket #%d.",
			payload.ChatSessionID, payload.TicketNumber)
		notif.Email = true
		notif.Webhook = true
	default:
		return Notification{}, false
	}
	return notif, true
}

// Deliver sends one notification over each transport it is routed to.
// Failures are logged, never propagated; the activity log is the
// durable record.
func (n *NotificationService) Deliver(ctx context.Context, notif Notification) {
	if notif.Email {
		if err := n.deliverEmail(notif); err != nil {
			n.logger.Warn("email notification failed",
				zap.String("event_id", notif.Event.ID),
				zap.String("event_type", string(notif.Event.Type)),
				zap.Error(err))
		}
	}
	if notif.Webhook {
		if err := n.deliverWebhook(ctx, notif); err != nil {
			n.logger.Warn("webhook notification failed",
				zap.String("event_id", notif.Event.ID),
				zap.String("event_type", string(notif.Event.Type)),
				zap.Error(err))
		}
	}
}

func (n *NotificationService) deliverEmail(notif Notification) error {
	if n.cfg.SMTPAddr == "" || n.cfg.EmailTo == "" {
		return nil
	}
	headers := []string{
		"From: " + n.cfg.EmailFrom,
		"To: " + n.cfg.EmailTo,
		"Subject: " + notif.Subject,
		"Content-Type: text/plain; charset=UTF-8",
	}
	msg := strings.Join(headers, "\r\n") + "\r\n\r\n" + notif.Body + "\r\n"
	return smtp.SendMail(n.cfg.SMTPAddr, n.smtpAuth(), n.cfg.EmailFrom, []string{n.cfg.EmailTo}, []byte(msg))
}

func (n *NotificationService) smtpAuth() smtp.Auth {
	if n.cfg.SMTPUser == "" || n.cfg.SMTPPassword == "" {
		return nil
	}
	host := n.cfg.SMTPAddr
	if h, _, err := net.SplitHostPort(n.cfg.SMTPAddr); err == nil {
		host = h
	}
	return smtp.PlainAuth("", n.cfg.SMTPUser, n.cfg.SMTPPassword, host)
}

func (n *NotificationService) deliverWebhook(ctx context.Context, notif Notification) error {
	if n.cfg.WebhookURL == "" {
		return nil
	}
	payload, err := json.Marshal(notif.Event)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Event", string(notif.Event.Type))
	if n.cfg.WebhookSecret != "" {
		req.Header.Set("X-Webhook-Signature", signPayload(payload, n.cfg.WebhookSecret))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint returned %s", resp.Status)
	}
	return nil
}

// signPayload computes the HMAC-SHA256 signature consumers use to
// verify webhook authenticity.
func signPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
