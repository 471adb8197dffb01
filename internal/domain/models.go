package domain

import "time"

// Channel is the reference a timer holds to the channel it records from.
// A channel is owned by exactly one backend client; UID is that client's
// own identifier for it.
type Channel struct {
	ClientID int
	UID      int
	Number   int
	Name     string
	Radio    bool
}

// Programme represents an electronic programme guide entry
type Programme struct {
	Title         string
	Summary       string
	ChannelNumber int
	Radio         bool
	Start         time.Time
	Stop          time.Time
}

// TimerState describes where a timer is in its lifecycle
type TimerState int

const (
	TimerStateNew TimerState = iota
	TimerStateScheduled
	TimerStateRecording
	TimerStateCompleted
	TimerStateAborted
	TimerStateCancelled
	TimerStateConflict
	TimerStateError
)

// String returns a human-readable state name
func (s TimerState) String() string {
	switch s {
	case TimerStateNew:
		return "new"
	case TimerStateScheduled:
		return "scheduled"
	case TimerStateRecording:
		return "recording"
	case TimerStateCompleted:
		return "completed"
	case TimerStateAborted:
		return "aborted"
	case TimerStateCancelled:
		return "cancelled"
	case TimerStateConflict:
		return "conflict"
	case TimerStateError:
		return "error"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the state denotes a finished timer that will
// never record again.
func (s TimerState) IsTerminal() bool {
	switch s {
	case TimerStateCompleted, TimerStateAborted, TimerStateCancelled, TimerStateError:
		return true
	default:
		return false
	}
}

// PendingClientIndex marks a locally created timer that the owning backend
// has not yet confirmed with a real index.
const PendingClientIndex = -1

// Timer represents a single scheduled recording entry.
//
// A timer is identified by (ClientID, ClientIndex); the pair is unique per
// backend and immutable after creation. ClientIndex == PendingClientIndex
// means the entry awaits confirmation from its backend.
type Timer struct {
	ClientID    int
	ClientIndex int

	Title       string
	Summary     string
	Channel     Channel
	Start       time.Time
	Stop        time.Time
	MarginStart time.Duration
	State       TimerState
	Repeating   bool
	Path        string // set once the recording is materialized
}

// UpdateKind classifies a single-entry push from a backend
type UpdateKind int

const (
	// UpdateNew announces a timer the backend has not reported before.
	UpdateNew UpdateKind = iota
	// UpdateReplace carries new field values for a known timer.
	UpdateReplace
	// UpdateDelete announces that the backend dropped a timer.
	UpdateDelete
	// UpdateResponse acknowledges a request this process issued itself.
	UpdateResponse
)

// String returns a human-readable update kind name
func (k UpdateKind) String() string {
	switch k {
	case UpdateNew:
		return "new"
	case UpdateReplace:
		return "replace"
	case UpdateDelete:
		return "delete"
	case UpdateResponse:
		return "response"
	default:
		return "unknown"
	}
}
