package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/supportdesk-io/supportdesk/internal/service"
)

// NotificationWorker drains composed notifications on background
// goroutines so SMTP and webhook latency never block a request.
type NotificationWorker struct {
	notifications *service.NotificationService
	logger        *zap.Logger
	queue         chan service.Notification
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// StartNotificationWorker subscribes the notification service to the
// event stream and starts the delivery pool.
func StartNotificationWorker(notifications *service.NotificationService, logger *zap.Logger, queueSize, workers int) *NotificationWorker {
	if notifications == nil {
		return nil
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	if workers <= 0 {
		workers = 2
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &NotificationWorker{
		notifications: notifications,
		logger:        logger,
		queue:         make(chan service.Notification, queueSize),
		cancel:        cancel,
	}
	for i := 0; i < workers; i++ {
		w.wg.Add(1)
		go w.run(ctx)
	}
	notifications.RegisterHandlers(w.enqueue)
	return w
}

func (w *NotificationWorker) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case notif := <-w.queue:
			w.notifications.Deliver(ctx, notif)
		case <-ctx.Done():
			return
		}
	}
}

// enqueue never blocks the emitting request. When the queue is full the
// notification is dropped; the activity log still holds the record.
func (w *NotificationWorker) enqueue(notif service.Notification) {
	select {
	case w.queue <- notif:
	default:
		w.logger.Warn("notification queue full, dropping",
			zap.String("event_id", notif.Event.ID),
			zap.String("event_type", string(notif.Event.Type)))
	}
}

// Stop interrupts delivery and waits for the pool to exit.
func (w *NotificationWorker) Stop() {
	if w == nil {
		return
	}
	w.cancel()
	w.wg.Wait()
}
