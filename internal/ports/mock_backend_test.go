package ports

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tvheadless/pvrcore/internal/domain"
)

// TestMockBackend_BuilderPattern demonstrates using the builder pattern
func TestMockBackend_BuilderPattern(t *testing.T) {
	start := time.Now().UTC().Truncate(time.Second).Add(time.Hour)
	mock := NewMockBackend(1).WithTimers([]domain.Timer{
		{ClientID: 1, ClientIndex: 7, Title: "Test Timer", Start: start, Stop: start.Add(time.Hour)},
	})

	if mock.ID() != 1 {
		t.Errorf("Expected client id 1, got %d", mock.ID())
	}

	timers, err := mock.Timers(context.Background())
	if err != nil {
		t.Fatalf("Timers failed: %v", err)
	}
	if len(timers) != 1 {
		t.Fatalf("Expected 1 timer, got %d", len(timers))
	}
	if timers[0].Title != "Test Timer" {
		t.Errorf("Expected 'Test Timer', got %s", timers[0].Title)
	}

	// The snapshot is a copy; mutating it must not leak into the mock.
	timers[0].Title = "mutated"
	again, _ := mock.Timers(context.Background())
	if again[0].Title != "Test Timer" {
		t.Error("Timers must return an independent copy")
	}
}

// TestMockBackend_Recording demonstrates the request accessors
func TestMockBackend_Recording(t *testing.T) {
	mock := NewMockBackend(1)
	ctx := context.Background()

	timer := domain.Timer{ClientID: 1, ClientIndex: domain.PendingClientIndex, Title: "New"}
	if err := mock.AddTimer(ctx, &timer); err != nil {
		t.Fatalf("AddTimer failed: %v", err)
	}
	if err := mock.DeleteTimer(ctx, 7, false); err != nil {
		t.Fatalf("DeleteTimer failed: %v", err)
	}

	added := mock.AddedTimers()
	if len(added) != 1 || added[0].Title != "New" {
		t.Errorf("Expected one recorded add, got %v", added)
	}
	deleted := mock.DeletedIndexes()
	if len(deleted) != 1 || deleted[0] != 7 {
		t.Errorf("Expected deleted index 7, got %v", deleted)
	}
}

// TestMockBackend_FunctionFields demonstrates function field customization
func TestMockBackend_FunctionFields(t *testing.T) {
	t.Run("CustomTimers", func(t *testing.T) {
		mock := &MockBackend{
			ClientID: 1,
			TimersFunc: func(ctx context.Context) ([]domain.Timer, error) {
				return []domain.Timer{{ClientID: 1, ClientIndex: 42, Title: "Custom"}}, nil
			},
		}

		timers, err := mock.Timers(context.Background())
		if err != nil {
			t.Fatalf("Timers failed: %v", err)
		}
		if timers[0].ClientIndex != 42 {
			t.Errorf("Expected custom index 42, got %d", timers[0].ClientIndex)
		}
	})

	t.Run("CustomErrorBehavior", func(t *testing.T) {
		mock := &MockBackend{
			ClientID: 1,
			TimersFunc: func(ctx context.Context) ([]domain.Timer, error) {
				return nil, domain.ErrBackendRequest
			},
		}

		_, err := mock.Timers(context.Background())
		if !errors.Is(err, domain.ErrBackendRequest) {
			t.Errorf("Expected ErrBackendRequest, got %v", err)
		}
	})
}

func TestStaticRegistry(t *testing.T) {
	one := NewMockBackend(1)
	two := NewMockBackend(2)
	registry := NewStaticRegistry(one, two)

	if b, ok := registry.Backend(2); !ok || b.ID() != 2 {
		t.Errorf("Expected backend 2, got %v (ok=%v)", b, ok)
	}
	if _, ok := registry.Backend(9); ok {
		t.Error("Unknown client id must not resolve")
	}
	if got := len(registry.Backends()); got != 2 {
		t.Errorf("Expected 2 backends, got %d", got)
	}
}

func TestMockResolver(t *testing.T) {
	resolver := &MockResolver{Channels: []domain.Channel{
		{ClientID: 1, UID: 10, Number: 1, Name: "One"},
	}}

	if ch, ok := resolver.ChannelByClient(1, 10); !ok || ch.Name != "One" {
		t.Errorf("Expected channel One, got %v (ok=%v)", ch, ok)
	}
	if _, ok := resolver.ChannelByClient(1, 99); ok {
		t.Error("Unknown uid must not resolve")
	}
	if _, ok := resolver.ChannelByClient(2, 10); ok {
		t.Error("Wrong client id must not resolve")
	}
}

func TestMockGate(t *testing.T) {
	gate := &MockGate{LockedNumbers: map[int]bool{3: true}}

	if gate.Allowed(domain.Channel{Number: 3}) {
		t.Error("Locked channel must not be allowed")
	}
	if !gate.Allowed(domain.Channel{Number: 1}) {
		t.Error("Unlocked channel must be allowed")
	}
}

func TestMockNotifierBatches(t *testing.T) {
	notifier := &MockNotifier{}
	notifier.QueueNotifications([]string{"a", "b"})
	notifier.QueueNotifications([]string{"c"})

	if got := len(notifier.Batches()); got != 2 {
		t.Fatalf("Expected 2 batches, got %d", got)
	}
	lines := notifier.Lines()
	if len(lines) != 3 || lines[2] != "c" {
		t.Errorf("Expected flattened lines [a b c], got %v", lines)
	}
}
