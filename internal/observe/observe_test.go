package observe

import (
	"sync"
	"testing"
)

type recordingObserver struct {
	Watcher
	mu       sync.Mutex
	messages []string
}

func (r *recordingObserver) Notify(o *Observable, message string) {
	r.mu.Lock()
	r.messages = append(r.messages, message)
	r.mu.Unlock()
}

func (r *recordingObserver) received() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.messages))
	copy(out, r.messages)
	return out
}

// TestNotifyCoalescing tests the edge-triggered delivery contract
func TestNotifyCoalescing(t *testing.T) {
	t.Run("TwoSetChangedOneDelivery", func(t *testing.T) {
		o := NewObservable("test")
		obs := &recordingObserver{}
		o.RegisterObserver(obs)

		o.SetChanged()
		o.SetChanged()
		o.NotifyObservers("changed")

		if got := obs.received(); len(got) != 1 || got[0] != "changed" {
			t.Errorf("Expected exactly one delivery, got %v", got)
		}
	})

	t.Run("NoSetChangedNoDelivery", func(t *testing.T) {
		o := NewObservable("test")
		obs := &recordingObserver{}
		o.RegisterObserver(obs)

		o.NotifyObservers("changed")

		if got := obs.received(); len(got) != 0 {
			t.Errorf("Expected no delivery without SetChanged, got %v", got)
		}
	})

	t.Run("FlagClearedAfterDelivery", func(t *testing.T) {
		o := NewObservable("test")
		obs := &recordingObserver{}
		o.RegisterObserver(obs)

		o.SetChanged()
		o.NotifyObservers("first")
		o.NotifyObservers("second")

		if got := obs.received(); len(got) != 1 || got[0] != "first" {
			t.Errorf("Second notify without SetChanged should not deliver, got %v", got)
		}
	})

	t.Run("AllObserversReceive", func(t *testing.T) {
		o := NewObservable("test")
		first := &recordingObserver{}
		second := &recordingObserver{}
		o.RegisterObserver(first)
		o.RegisterObserver(second)

		o.SetChanged()
		o.NotifyObservers("changed")

		if len(first.received()) != 1 || len(second.received()) != 1 {
			t.Error("Every registered observer should receive the message")
		}
	})
}

// TestRegistration tests idempotence and deregistration
func TestRegistration(t *testing.T) {
	t.Run("DoubleRegisterIsNoOp", func(t *testing.T) {
		o := NewObservable("test")
		obs := &recordingObserver{}

		first := o.RegisterObserver(obs)
		second := o.RegisterObserver(obs)
		if first != second {
			t.Error("Re-registering should return the existing subscription id")
		}

		o.SetChanged()
		o.NotifyObservers("changed")
		if got := obs.received(); len(got) != 1 {
			t.Errorf("Double registration must not cause double delivery, got %v", got)
		}
	})

	t.Run("IsObserving", func(t *testing.T) {
		o := NewObservable("test")
		obs := &recordingObserver{}

		if o.IsObserving(obs) {
			t.Error("Unregistered observer should not be observing")
		}
		o.RegisterObserver(obs)
		if !o.IsObserving(obs) {
			t.Error("Registered observer should be observing")
		}
		o.UnregisterObserver(obs)
		if o.IsObserving(obs) {
			t.Error("Unregistered observer should no longer be observing")
		}
	})

	t.Run("UnregisterUnknownIsNoOp", func(t *testing.T) {
		o := NewObservable("test")
		o.UnregisterObserver(&recordingObserver{})
	})
}

// TestBidirectionalTeardown tests that either side can be torn down first
func TestBidirectionalTeardown(t *testing.T) {
	t.Run("ObserverSideFirst", func(t *testing.T) {
		first := NewObservable("first")
		second := NewObservable("second")
		obs := &recordingObserver{}
		first.RegisterObserver(obs)
		second.RegisterObserver(obs)

		obs.StopObserving(obs)

		if first.IsObserving(obs) || second.IsObserving(obs) {
			t.Error("StopObserving should deregister from every observable")
		}

		first.SetChanged()
		first.NotifyObservers("changed")
		if len(obs.received()) != 0 {
			t.Error("Stopped observer should receive nothing")
		}
	})

	t.Run("ObservableSideFirst", func(t *testing.T) {
		o := NewObservable("test")
		obs := &recordingObserver{}
		o.RegisterObserver(obs)

		o.Close()

		if o.IsObserving(obs) {
			t.Error("Close should drop every observer")
		}

		// The observer side also forgot the observable; StopObserving has
		// nothing left to do and must not blow up.
		obs.StopObserving(obs)
	})

	t.Run("StopTwiceIsSafe", func(t *testing.T) {
		o := NewObservable("test")
		obs := &recordingObserver{}
		o.RegisterObserver(obs)
		obs.StopObserving(obs)
		obs.StopObserving(obs)
	})
}

// TestConcurrentAccess tests registration and delivery under concurrency
func TestConcurrentAccess(t *testing.T) {
	o := NewObservable("test")

	const goroutines = 16
	var wg sync.WaitGroup
	wg.Add(goroutines * 2)

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			obs := &recordingObserver{}
			o.RegisterObserver(obs)
			obs.StopObserving(obs)
		}()
		go func() {
			defer wg.Done()
			o.SetChanged()
			o.NotifyObservers("changed")
		}()
	}

	wg.Wait()
}
