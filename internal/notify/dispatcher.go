// Package notify fans domain notifications out to delivery sinks. Dispatch
// is fire-and-forget: the core hands a notification off and never blocks on
// delivery.
package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/greenroomhq/greenroom/model"
)

// Sink delivers one notification to a channel (log, email, websocket).
type Sink interface {
	Deliver(ctx context.Context, n model.Notification) error
}

// AsyncDispatcher buffers notifications on a channel and delivers them from a
// single worker goroutine. When the buffer is full the notification is
// dropped with a warning rather than blocking the caller.
type AsyncDispatcher struct {
	logger *zap.Logger
	sinks  []Sink
	queue  chan model.Notification

	// mu guards closed so no Dispatch can be sending while Close closes
	// the queue.
	mu     sync.RWMutex
	closed bool

	closeOnce sync.Once
	done      chan struct{}
}

// NewAsyncDispatcher creates a dispatcher with the given buffer size and
// starts its delivery worker.
func NewAsyncDispatcher(logger *zap.Logger, buffer int, sinks ...Sink) *AsyncDispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	d := &AsyncDispatcher{
		logger: logger,
		sinks:  sinks,
		queue:  make(chan model.Notification, buffer),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

// Dispatch implements model.Dispatcher.
func (d *AsyncDispatcher) Dispatch(n model.Notification) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn("dispatcher closed, dropping notification",
			zap.String("type", n.Type),
			zap.String("recipient", n.Recipient),
		)
		return
	}
	select {
	case d.queue <- n:
	default:
		d.logger.Warn("notification queue full, dropping",
			zap.String("type", n.Type),
			zap.String("recipient", n.Recipient),
		)
	}
}

// Close drains the queue and stops the worker. Dispatch calls after Close
// are dropped.
func (d *AsyncDispatcher) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
		close(d.queue)
		<-d.done
	})
}

func (d *AsyncDispatcher) run() {
	defer close(d.done)
	for n := range d.queue {
		for _, sink := range d.sinks {
			if err := sink.Deliver(context.Background(), n); err != nil {
				d.logger.Error("notification delivery failed",
					zap.String("type", n.Type),
					zap.String("recipient", n.Recipient),
					zap.Error(err),
				)
			}
		}
	}
}

// LogSink writes notifications to the structured log. The default sink when
// no delivery channel is configured.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a log-backed sink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Deliver implements Sink.
func (s *LogSink) Deliver(_ context.Context, n model.Notification) error {
	s.logger.Info("notification",
		zap.String("recipient", n.Recipient),
		zap.String("type", n.Type),
		zap.String("title", n.Title),
		zap.String("message", n.Message),
		zap.Any("data", n.Data),
	)
	return nil
}

// CaptureSink retains delivered notifications in memory. For tests.
type CaptureSink struct {
	mu   sync.Mutex
	seen []model.Notification
}

// NewCaptureSink creates an empty capture sink.
func NewCaptureSink() *CaptureSink {
	return &CaptureSink{}
}

// Deliver implements Sink.
func (s *CaptureSink) Deliver(_ context.Context, n model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, n)
	return nil
}

// Seen returns a copy of the delivered notifications.
func (s *CaptureSink) Seen() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Notification, len(s.seen))
	copy(out, s.seen)
	return out
}
