package ports

import (
	"context"

	"github.com/tvheadless/pvrcore/internal/domain"
)

// TimerBackend defines the interface for a single backend client: an
// independent source of timer data identified by a stable integer id.
type TimerBackend interface {
	// ID returns the backend's stable client id
	ID() int

	// Timers retrieves the backend's full timer snapshot. The snapshot is
	// authoritative for this backend for one refresh cycle.
	Timers(ctx context.Context) ([]domain.Timer, error)

	// AddTimer asks the backend to schedule a new timer
	AddTimer(ctx context.Context, timer *domain.Timer) error

	// DeleteTimer asks the backend to drop a timer. When force is set, a
	// currently recording timer is stopped and dropped as well.
	DeleteTimer(ctx context.Context, clientIndex int, force bool) error
}

// BackendRegistry resolves backend clients by id and enumerates them for a
// full refresh.
type BackendRegistry interface {
	// Backend resolves a client id; ok is false for unknown ids
	Backend(clientID int) (TimerBackend, bool)

	// Backends returns every registered backend
	Backends() []TimerBackend
}

// ChannelResolver maps a backend's channel reference to a channel known to
// the surrounding system.
type ChannelResolver interface {
	// ChannelByClient resolves (clientID, channelUID); ok is false when the
	// channel is unknown
	ChannelByClient(clientID, channelUID int) (domain.Channel, bool)
}

// GuideSource provides the programme running right now on a channel
type GuideSource interface {
	// NowOn returns the live programme on the channel; ok is false when no
	// guide data exists for "now"
	NowOn(channel domain.Channel) (domain.Programme, bool)
}

// ParentalGate decides whether the current viewer may act on a channel
type ParentalGate interface {
	// Allowed reports whether the channel is not parental-lock-restricted
	Allowed(channel domain.Channel) bool
}

// Notifier receives batches of user-facing notification lines. Called
// outside the timer collection's lock; implementations may block briefly.
type Notifier interface {
	QueueNotifications(lines []string)
}
