package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/garyjia/workflow-approval/internal/domain/event"
)

// mockLogger implements Logger for testing
type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

func newTestEvent() *event.Event {
	return event.NewEvent(event.TypeRequestApproved, "req-1", nil)
}

func TestDispatch(t *testing.T) {
	t.Run("runs handlers in registration order", func(t *testing.T) {
		d := NewDispatcher()
		var order []int

		d.SubscribeNamed(event.TypeRequestApproved, "h1", "", func(ctx context.Context, evt *event.Event) error {
			order = append(order, 1)
			return nil
		})
		d.SubscribeNamed(event.TypeRequestApproved, "h2", "", func(ctx context.Context, evt *event.Event) error {
			order = append(order, 2)
			return nil
		})

		if err := d.Dispatch(context.Background(), newTestEvent()); err != nil {
			t.Fatalf("dispatch failed: %v", err)
		}
		if len(order) != 2 || order[0] != 1 || order[1] != 2 {
			t.Errorf("expected handlers to run in order [1, 2], got %v", order)
		}
	})

	t.Run("ignores other event types", func(t *testing.T) {
		d := NewDispatcher()
		called := false
		d.SubscribeNamed(event.TypeRequestRejected, "h3", "", func(ctx context.Context, evt *event.Event) error {
			called = true
			return nil
		})

		if err := d.Dispatch(context.Background(), newTestEvent()); err != nil {
			t.Fatalf("dispatch failed: %v", err)
		}
		if called {
			t.Error("handler for a different type should not run")
		}
	})

	t.Run("failing handler does not stop the rest", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		expectedErr := errors.New("lark unavailable")
		called := false

		d.SubscribeNamed(event.TypeRequestApproved, "lark", "", func(ctx context.Context, evt *event.Event) error {
			return expectedErr
		})
		d.SubscribeNamed(event.TypeRequestApproved, "nats", "", func(ctx context.Context, evt *event.Event) error {
			called = true
			return nil
		})

		err := d.Dispatch(context.Background(), newTestEvent())
		if !errors.Is(err, expectedErr) {
			t.Errorf("expected error to wrap %v, got %v", expectedErr, err)
		}
		if !called {
			t.Error("second handler should still run")
		}
		if logger.ErrorCount() != 1 {
			t.Errorf("expected 1 logged error, got %d", logger.ErrorCount())
		}
	})

	t.Run("recovers from handler panic", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		d.SubscribeNamed(event.TypeRequestApproved, "h4", "", func(ctx context.Context, evt *event.Event) error {
			panic("boom")
		})

		if err := d.Dispatch(context.Background(), newTestEvent()); err == nil {
			t.Fatal("expected error from panic recovery")
		}
		if logger.ErrorCount() == 0 {
			t.Error("expected panic to be logged")
		}
	})

	t.Run("closed dispatcher refuses events", func(t *testing.T) {
		d := NewDispatcher()
		if err := d.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}
		if err := d.Dispatch(context.Background(), newTestEvent()); !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	})
}

func TestListHandlers(t *testing.T) {
	d := NewDispatcher()
	noop := func(ctx context.Context, evt *event.Event) error { return nil }

	d.SubscribeNamed(event.TypeRequestCreated, "notify", "notify initiator", noop)
	d.SubscribeNamed(event.TypeRequestCreated, "forward", "forward to bus", noop)

	handlers := d.ListHandlers(event.TypeRequestCreated)
	if len(handlers) != 2 {
		t.Fatalf("expected 2 handlers, got %d", len(handlers))
	}
	if handlers[0].Name != "notify" || handlers[0].Description != "notify initiator" || handlers[0].Handler != nil {
		t.Errorf("unexpected handler info: %+v", handlers[0])
	}
	if handlers[1].Name != "forward" {
		t.Errorf("expected forward second, got %+v", handlers[1])
	}

	if got := d.ListHandlers(event.TypeRequestArchived); len(got) != 0 {
		t.Errorf("expected no handlers, got %+v", got)
	}
}

func TestDispatchAsyncAndClose(t *testing.T) {
	d := NewDispatcher()
	var completed atomic.Int32

	for i := 0; i < 3; i++ {
		d.SubscribeNamed(event.TypeRequestStepOverdue, "h5", "", func(ctx context.Context, evt *event.Event) error {
			time.Sleep(20 * time.Millisecond)
			completed.Add(1)
			return nil
		})
	}

	d.DispatchAsync(context.Background(), event.NewEvent(event.TypeRequestStepOverdue, "req-1", nil))
	if err := d.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if completed.Load() != 3 {
		t.Errorf("expected Close to wait for 3 handlers, got %d", completed.Load())
	}

	if err := d.Close(); err == nil {
		t.Error("expected error on second close")
	}

	d.DispatchAsync(context.Background(), event.NewEvent(event.TypeRequestStepOverdue, "req-1", nil))
	time.Sleep(20 * time.Millisecond)
	if completed.Load() != 3 {
		t.Error("no handler should run after close")
	}
}

func TestConcurrentSubscribeAndDispatch(t *testing.T) {
	d := NewDispatcher()
	var called atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			d.SubscribeNamed(event.TypeRequestCreated, fmt.Sprintf("h-%d", id), "", func(ctx context.Context, evt *event.Event) error {
				called.Add(1)
				return nil
			})
		}(i)
	}
	wg.Wait()

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = d.Dispatch(context.Background(), event.NewEvent(event.TypeRequestCreated, "req-1", nil))
		}()
	}
	wg.Wait()

	if called.Load() != 100 {
		t.Errorf("expected 100 handler calls, got %d", called.Load())
	}
}
