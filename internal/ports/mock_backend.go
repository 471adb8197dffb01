package ports

import (
	"context"
	"sync"

	"github.com/tvheadless/pvrcore/internal/domain"
)

// MockBackend is a flexible test double for TimerBackend with function field
// customization. This is the canonical mock implementation used across all
// tests.
//
// Usage with function fields (maximum flexibility):
//
//	mock := &ports.MockBackend{
//	    ClientID: 1,
//	    TimersFunc: func(ctx context.Context) ([]domain.Timer, error) {
//	        return nil, errors.New("backend down")
//	    },
//	}
//
// Usage with builder pattern (convenience):
//
//	mock := ports.NewMockBackend(1).
//	    WithTimers([]domain.Timer{{ClientID: 1, ClientIndex: 7, Title: "Test"}})
type MockBackend struct {
	ClientID int

	// Function fields for custom behavior
	TimersFunc      func(ctx context.Context) ([]domain.Timer, error)
	AddTimerFunc    func(ctx context.Context, timer *domain.Timer) error
	DeleteTimerFunc func(ctx context.Context, clientIndex int, force bool) error

	// Data fields for builder pattern
	mu      sync.RWMutex
	timers  []domain.Timer
	added   []domain.Timer
	deleted []int
}

var _ TimerBackend = (*MockBackend)(nil)

// NewMockBackend creates a new mock with default behavior. Use builder
// methods to configure data or set function fields directly for custom
// behavior.
func NewMockBackend(clientID int) *MockBackend {
	return &MockBackend{ClientID: clientID}
}

// WithTimers sets the snapshot returned by Timers
func (m *MockBackend) WithTimers(timers []domain.Timer) *MockBackend {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timers = timers
	return m
}

// ID returns the mock's client id
func (m *MockBackend) ID() int {
	return m.ClientID
}

// Timers returns the configured snapshot or delegates to TimersFunc
func (m *MockBackend) Timers(ctx context.Context) ([]domain.Timer, error) {
	if m.TimersFunc != nil {
		return m.TimersFunc(ctx)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Timer, len(m.timers))
	copy(out, m.timers)
	return out, nil
}

// AddTimer records the request or delegates to AddTimerFunc
func (m *MockBackend) AddTimer(ctx context.Context, timer *domain.Timer) error {
	if m.AddTimerFunc != nil {
		return m.AddTimerFunc(ctx, timer)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.added = append(m.added, *timer)
	return nil
}

// DeleteTimer records the request or delegates to DeleteTimerFunc
func (m *MockBackend) DeleteTimer(ctx context.Context, clientIndex int, force bool) error {
	if m.DeleteTimerFunc != nil {
		return m.DeleteTimerFunc(ctx, clientIndex, force)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, clientIndex)
	return nil
}

// AddedTimers returns the timers passed to AddTimer so far
func (m *MockBackend) AddedTimers() []domain.Timer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Timer, len(m.added))
	copy(out, m.added)
	return out
}

// DeletedIndexes returns the client indexes passed to DeleteTimer so far
func (m *MockBackend) DeletedIndexes() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]int, len(m.deleted))
	copy(out, m.deleted)
	return out
}

// StaticRegistry is a BackendRegistry over a fixed backend list
type StaticRegistry struct {
	backends []TimerBackend
}

var _ BackendRegistry = (*StaticRegistry)(nil)

// NewStaticRegistry creates a registry holding the given backends
func NewStaticRegistry(backends ...TimerBackend) *StaticRegistry {
	return &StaticRegistry{backends: backends}
}

// Backend resolves a client id
func (r *StaticRegistry) Backend(clientID int) (TimerBackend, bool) {
	for _, b := range r.backends {
		if b.ID() == clientID {
			return b, true
		}
	}
	return nil, false
}

// Backends returns every registered backend
func (r *StaticRegistry) Backends() []TimerBackend {
	out := make([]TimerBackend, len(r.backends))
	copy(out, r.backends)
	return out
}

// MockResolver is a ChannelResolver backed by a static channel list
type MockResolver struct {
	Channels []domain.Channel
}

var _ ChannelResolver = (*MockResolver)(nil)

// ChannelByClient resolves (clientID, channelUID) against the channel list
func (r *MockResolver) ChannelByClient(clientID, channelUID int) (domain.Channel, bool) {
	for _, ch := range r.Channels {
		if ch.ClientID == clientID && ch.UID == channelUID {
			return ch, true
		}
	}
	return domain.Channel{}, false
}

// MockGuide is a GuideSource returning a fixed programme per channel number
type MockGuide struct {
	NowOnFunc func(channel domain.Channel) (domain.Programme, bool)
}

var _ GuideSource = (*MockGuide)(nil)

// NowOn delegates to NowOnFunc; without one there is never guide data
func (g *MockGuide) NowOn(channel domain.Channel) (domain.Programme, bool) {
	if g.NowOnFunc != nil {
		return g.NowOnFunc(channel)
	}
	return domain.Programme{}, false
}

// MockGate is a ParentalGate with a configurable set of locked channels
type MockGate struct {
	LockedNumbers map[int]bool
}

var _ ParentalGate = (*MockGate)(nil)

// Allowed reports whether the channel number is not in the locked set
func (g *MockGate) Allowed(channel domain.Channel) bool {
	return !g.LockedNumbers[channel.Number]
}

// MockNotifier collects queued notification batches
type MockNotifier struct {
	mu      sync.Mutex
	batches [][]string
}

var _ Notifier = (*MockNotifier)(nil)

// QueueNotifications records one batch
func (n *MockNotifier) QueueNotifications(lines []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	batch := make([]string, len(lines))
	copy(batch, lines)
	n.batches = append(n.batches, batch)
}

// Batches returns every batch queued so far
func (n *MockNotifier) Batches() [][]string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([][]string, len(n.batches))
	copy(out, n.batches)
	return out
}

// Lines returns every queued line across all batches in order
func (n *MockNotifier) Lines() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, b := range n.batches {
		out = append(out, b...)
	}
	return out
}
