package notify

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/greenroomhq/greenroom/model"
)

func TestAsyncDispatcher_delivers(t *testing.T) {
	capture := NewCaptureSink()
	d := NewAsyncDispatcher(zap.NewNop(), 8, capture)

	for i := 0; i < 3; i++ {
		d.Dispatch(model.Notification{
			Recipient: "user-omar",
			Type:      model.NotifyDeadlineReminder,
			Title:     "Deadline approaching",
		})
	}
	d.Close()

	seen := capture.Seen()
	if len(seen) != 3 {
		t.Fatalf("delivered = %d, want 3", len(seen))
	}
	if seen[0].Recipient != "user-omar" || seen[0].Type != model.NotifyDeadlineReminder {
		t.Errorf("notification = %+v", seen[0])
	}
}

func TestAsyncDispatcher_dropsWhenFull(t *testing.T) {
	block := make(chan struct{})
	slow := sinkFunc(func(n model.Notification) error {
		<-block
		return nil
	})
	d := NewAsyncDispatcher(zap.NewNop(), 1, slow)

	// First fills the worker, second fills the buffer, third drops. None
	// of the calls may block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 3; i++ {
			d.Dispatch(model.Notification{Type: model.NotifyStepStarted})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked on a full queue")
	}

	close(block)
	d.Close()
}

type sinkFunc func(model.Notification) error

func (f sinkFunc) Deliver(_ context.Context, n model.Notification) error {
	return f(n)
}

func TestAsyncDispatcher_dispatchAfterClose(t *testing.T) {
	capture := NewCaptureSink()
	d := NewAsyncDispatcher(zap.NewNop(), 8, capture)

	d.Dispatch(model.Notification{Recipient: "user-omar", Type: model.NotifyDeadlineReminder})
	d.Close()

	// Must drop silently, not panic on the closed queue.
	d.Dispatch(model.Notification{Recipient: "user-omar", Type: model.NotifyDeadlineReminder})

	if got := len(capture.Seen()); got != 1 {
		t.Fatalf("delivered = %d, want 1", got)
	}
}
