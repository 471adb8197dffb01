package domain

import (
	"fmt"
	"time"
)

// StartKey returns the collection bucket key for this timer. Start times are
// compared at whole-second resolution in UTC; timers sharing one instant
// share one bucket.
func (t *Timer) StartKey() time.Time {
	return t.Start.UTC().Truncate(time.Second)
}

// IsActive reports whether the timer is upcoming or currently recording.
// A scheduled timer whose stop time has passed no longer counts as active.
func (t *Timer) IsActive() bool {
	switch t.State {
	case TimerStateRecording:
		return true
	case TimerStateNew, TimerStateScheduled:
		return t.Stop.After(time.Now())
	default:
		return false
	}
}

// IsRecording reports whether the timer is recording right now
func (t *Timer) IsRecording() bool {
	return t.State == TimerStateRecording
}

// Equal reports whether two entries denote the same timer occurrence:
// identity matches and the [start, stop] window matches. Used to locate an
// exact duplicate during delete-by-value lookups.
func (t *Timer) Equal(other *Timer) bool {
	if other == nil {
		return false
	}
	return t.ClientID == other.ClientID &&
		t.ClientIndex == other.ClientIndex &&
		t.Start.Equal(other.Start) &&
		t.Stop.Equal(other.Stop)
}

// UpdateEntry merges the fields of other into t and reports whether anything
// materially changed. Identity is never taken from other; a partial update
// carrying the same identity must not be able to corrupt it.
func (t *Timer) UpdateEntry(other *Timer) bool {
	changed := false

	if t.State != other.State {
		t.State = other.State
		changed = true
	}
	if t.Title != other.Title {
		t.Title = other.Title
		changed = true
	}
	if t.Summary != other.Summary {
		t.Summary = other.Summary
		changed = true
	}
	if t.Channel != other.Channel {
		t.Channel = other.Channel
		changed = true
	}
	if !t.Start.Equal(other.Start) {
		t.Start = other.Start
		changed = true
	}
	if !t.Stop.Equal(other.Stop) {
		t.Stop = other.Stop
		changed = true
	}
	if t.MarginStart != other.MarginStart {
		t.MarginStart = other.MarginStart
		changed = true
	}
	if t.Repeating != other.Repeating {
		t.Repeating = other.Repeating
		changed = true
	}
	if other.Path != "" && t.Path != other.Path {
		t.Path = other.Path
		changed = true
	}

	return changed
}

// NotificationText derives a human-readable message for the timer's current
// state. Purely derived, no side effects.
func (t *Timer) NotificationText() string {
	switch t.State {
	case TimerStateRecording:
		return fmt.Sprintf("Recording started: '%s'", t.Title)
	case TimerStateCompleted:
		return fmt.Sprintf("Recording completed: '%s'", t.Title)
	case TimerStateAborted, TimerStateCancelled:
		return fmt.Sprintf("Recording stopped: '%s'", t.Title)
	case TimerStateConflict:
		return fmt.Sprintf("Timer conflict: '%s'", t.Title)
	case TimerStateError:
		return fmt.Sprintf("Timer error: '%s'", t.Title)
	default:
		return fmt.Sprintf("Timer scheduled: '%s'", t.Title)
	}
}

// RemovalNotificationText derives the message for a timer that disappeared
// from every backend, distinguishing a finished recording from one that was
// deleted while still upcoming.
func (t *Timer) RemovalNotificationText(now time.Time) string {
	if !t.Stop.After(now) {
		return fmt.Sprintf("Timer finished: '%s'", t.Title)
	}
	return fmt.Sprintf("Timer deleted: '%s'", t.Title)
}
