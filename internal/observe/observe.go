// Package observe provides a small one-to-many change-notification
// primitive. An Observable carries a "changed" flag; notifications are
// edge-triggered, so any number of SetChanged calls between two
// NotifyObservers calls collapse into a single delivery.
//
// Delivery is synchronous on the caller's goroutine and runs under the
// Observable's lock. An Observer's Notify callback must therefore not
// register, unregister, or otherwise re-enter the Observable it is being
// notified by, and must not take a lock that the notifying caller already
// holds.
package observe

import (
	"sync"

	"github.com/google/uuid"
)

// Observer receives change notifications from Observables it is
// registered on. Observers are compared by identity; register pointer
// receivers.
type Observer interface {
	Notify(o *Observable, message string)
}

// tracker is implemented by observers that want two-way registration
// bookkeeping, so that either side can be torn down first. Watcher
// provides it for embedding.
type tracker interface {
	trackObservable(o *Observable)
	untrackObservable(o *Observable)
}

type subscription struct {
	id  string
	obs Observer
}

// Observable is a source of change notifications. The zero value is not
// usable; create instances with NewObservable.
type Observable struct {
	name string

	mu      sync.Mutex
	changed bool
	subs    []subscription
}

// NewObservable creates a named Observable. The name only shows up in logs
// of whoever embeds it.
func NewObservable(name string) *Observable {
	return &Observable{name: name}
}

// Name returns the observable's name
func (o *Observable) Name() string {
	return o.name
}

// RegisterObserver adds obs to the delivery list and returns the
// subscription id. Registering an already-registered observer is a no-op
// and returns the existing id.
func (o *Observable) RegisterObserver(obs Observer) string {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, sub := range o.subs {
		if sub.obs == obs {
			return sub.id
		}
	}

	id := uuid.NewString()
	o.subs = append(o.subs, subscription{id: id, obs: obs})
	if t, ok := obs.(tracker); ok {
		t.trackObservable(o)
	}
	return id
}

// UnregisterObserver removes obs from the delivery list. Unknown observers
// are ignored.
func (o *Observable) UnregisterObserver(obs Observer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.unregisterLocked(obs)
}

func (o *Observable) unregisterLocked(obs Observer) {
	for i, sub := range o.subs {
		if sub.obs == obs {
			o.subs = append(o.subs[:i], o.subs[i+1:]...)
			if t, ok := obs.(tracker); ok {
				t.untrackObservable(o)
			}
			return
		}
	}
}

// IsObserving reports whether obs is currently registered
func (o *Observable) IsObserving(obs Observer) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, sub := range o.subs {
		if sub.obs == obs {
			return true
		}
	}
	return false
}

// SetChanged marks the observable as changed. The next NotifyObservers call
// will deliver; further SetChanged calls before that are coalesced.
func (o *Observable) SetChanged() {
	o.mu.Lock()
	o.changed = true
	o.mu.Unlock()
}

// NotifyObservers delivers message to every registered observer iff the
// changed flag is set, then clears it. Without a preceding SetChanged this
// is a no-op.
func (o *Observable) NotifyObservers(message string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.changed {
		return
	}
	for _, sub := range o.subs {
		sub.obs.Notify(o, message)
	}
	o.changed = false
}

// Close unregisters every observer, removing the registration from both
// sides. The observable can be registered on again afterwards.
func (o *Observable) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, sub := range o.subs {
		if t, ok := sub.obs.(tracker); ok {
			t.untrackObservable(o)
		}
	}
	o.subs = nil
}

// Watcher records which observables an observer is registered on. Embed it
// in an Observer implementation to get StopObserving, which deregisters
// from every observable in one call; the symmetric bookkeeping keeps
// teardown order irrelevant.
type Watcher struct {
	mu       sync.Mutex
	observed map[*Observable]struct{}
}

func (w *Watcher) trackObservable(o *Observable) {
	w.mu.Lock()
	if w.observed == nil {
		w.observed = make(map[*Observable]struct{})
	}
	w.observed[o] = struct{}{}
	w.mu.Unlock()
}

func (w *Watcher) untrackObservable(o *Observable) {
	w.mu.Lock()
	delete(w.observed, o)
	w.mu.Unlock()
}

// StopObserving deregisters the embedding observer from every observable it
// is registered on.
func (w *Watcher) StopObserving(self Observer) {
	w.mu.Lock()
	observed := make([]*Observable, 0, len(w.observed))
	for o := range w.observed {
		observed = append(observed, o)
	}
	w.observed = nil
	w.mu.Unlock()

	for _, o := range observed {
		o.UnregisterObserver(self)
	}
}
