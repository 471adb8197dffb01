package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tvheadless/pvrcore/internal/domain"
	"github.com/tvheadless/pvrcore/internal/ports"
)

// simWorld wires a small simulated backend so the daemon can run without a
// real tuner service: one client, a handful of channels, a rolling guide
// and a timer list that confirms added timers with real indexes.
type simWorld struct {
	backend  *simBackend
	registry ports.BackendRegistry
	resolver ports.ChannelResolver
	guide    ports.GuideSource
	gate     ports.ParentalGate
}

func newSimWorld() *simWorld {
	channels := []domain.Channel{
		{ClientID: 1, UID: 10, Number: 1, Name: "Das Erste HD"},
		{ClientID: 1, UID: 11, Number: 2, Name: "ZDF HD"},
		{ClientID: 1, UID: 12, Number: 3, Name: "arte HD"},
		{ClientID: 1, UID: 20, Number: 90, Name: "Deutschlandfunk", Radio: true},
	}

	backend := &simBackend{clientID: 1, nextIndex: 1}
	now := time.Now().UTC().Truncate(time.Second)
	backend.timers = []domain.Timer{
		{
			ClientID:    1,
			ClientIndex: backend.takeIndex(),
			Title:       "Tagesschau",
			Channel:     channels[0],
			Start:       now.Add(2 * time.Hour),
			Stop:        now.Add(2*time.Hour + 20*time.Minute),
			MarginStart: 2 * time.Minute,
			State:       domain.TimerStateScheduled,
		},
	}

	return &simWorld{
		backend:  backend,
		registry: ports.NewStaticRegistry(backend),
		resolver: &ports.MockResolver{Channels: channels},
		guide: &ports.MockGuide{
			NowOnFunc: func(channel domain.Channel) (domain.Programme, bool) {
				start := time.Now().Truncate(30 * time.Minute)
				return domain.Programme{
					Title:         "Now on " + channel.Name,
					ChannelNumber: channel.Number,
					Radio:         channel.Radio,
					Start:         start,
					Stop:          start.Add(30 * time.Minute),
				}, true
			},
		},
		gate: &ports.MockGate{},
	}
}

// simBackend is an in-process TimerBackend. Added timers are confirmed
// immediately with the next free index, so a later refresh picks them up
// the way a real backend's snapshot would.
type simBackend struct {
	clientID int

	mu        sync.Mutex
	nextIndex int
	timers    []domain.Timer
}

var _ ports.TimerBackend = (*simBackend)(nil)

func (b *simBackend) takeIndex() int {
	idx := b.nextIndex
	b.nextIndex++
	return idx
}

func (b *simBackend) ID() int {
	return b.clientID
}

func (b *simBackend) Timers(ctx context.Context) ([]domain.Timer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.Timer, len(b.timers))
	copy(out, b.timers)
	return out, nil
}

func (b *simBackend) AddTimer(ctx context.Context, timer *domain.Timer) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	confirmed := *timer
	confirmed.ClientIndex = b.takeIndex()
	b.timers = append(b.timers, confirmed)
	return nil
}

func (b *simBackend) DeleteTimer(ctx context.Context, clientIndex int, force bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.timers {
		if b.timers[i].ClientIndex == clientIndex {
			b.timers = append(b.timers[:i], b.timers[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

// logNotifier is the presentation sink for the daemon: notification batches
// go to the log instead of a UI.
type logNotifier struct {
	logger *slog.Logger
}

var _ ports.Notifier = (*logNotifier)(nil)

func (n *logNotifier) QueueNotifications(lines []string) {
	for _, line := range lines {
		n.logger.Info("timer notification", slog.String("message", line))
	}
}
