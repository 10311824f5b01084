package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-chat/internal/events"
	"github.com/spec-kit/marketplace-chat/internal/service"
)

const defaultQueueSize = 256

type job struct {
	event   events.Event
	handler events.EventHandler
}

// NotificationWorker runs chat notifications off the request path. Publishers
// only enqueue; a full queue drops the notification with a warning.
type NotificationWorker struct {
	queue    chan job
	timeout  time.Duration
	logger   *zap.Logger
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopChan chan struct{}
	mu       sync.RWMutex
	stopped  bool
}

// Config contains notification worker settings.
type Config struct {
	QueueSize  int
	JobTimeout time.Duration
}

// NewNotificationWorker creates a worker with a bounded queue.
func NewNotificationWorker(cfg Config, logger *zap.Logger) *NotificationWorker {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{
		queue:    make(chan job, cfg.QueueSize),
		timeout:  cfg.JobTimeout,
		logger:   logger.With(zap.String("component", "notification-worker")),
		stopChan: make(chan struct{}),
	}
}

// StartNotificationWorker subscribes the notification handlers through the
// worker queue and starts draining it.
func StartNotificationWorker(ctx context.Context, dispatcher events.Dispatcher, notifications *service.NotificationService, w *NotificationWorker) {
	if dispatcher == nil || notifications == nil || w == nil {
		return
	}
	for eventType, handler := range notifications.Handlers() {
		dispatcher.Subscribe(eventType, w.enqueue(handler))
	}
	w.Start(ctx)
}

func (w *NotificationWorker) enqueue(handler events.EventHandler) events.EventHandler {
	return func(_ context.Context, event events.Event) error {
		w.mu.RLock()
		defer w.mu.RUnlock()
		if w.stopped {
			return nil
		}
		select {
		case w.queue <- job{event: event, handler: handler}:
		default:
			w.logger.Warn("notification queue full, dropping event",
				zap.String("event_type", string(event.Type)),
				zap.String("room_id", event.RoomID))
		}
		return nil
	}
}

// Start launches the drain loop.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
}

func (w *NotificationWorker) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		case <-w.stopChan:
			w.drain()
			return
		case j := <-w.queue:
			w.process(j)
		}
	}
}

func (w *NotificationWorker) drain() {
	for {
		select {
		case j := <-w.queue:
			w.process(j)
		default:
			return
		}
	}
}

func (w *NotificationWorker) process(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	if err := j.handler(ctx, j.event); err != nil {
		w.logger.Warn("notification failed",
			zap.String("event_type", string(j.event.Type)),
			zap.String("room_id", j.event.RoomID),
			zap.Error(err))
	}
}

// Stop stops accepting events, processes what is queued and waits for the loop.
func (w *NotificationWorker) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.stopped = true
		w.mu.Unlock()
		close(w.stopChan)
	})
	w.wg.Wait()
}
