package domain

import (
	"strings"
	"testing"
	"time"
)

// TestTimerIsActive tests the active/upcoming classification
func TestTimerIsActive(t *testing.T) {
	future := time.Now().Add(time.Hour)
	past := time.Now().Add(-time.Hour)

	t.Run("ScheduledUpcoming", func(t *testing.T) {
		timer := Timer{State: TimerStateScheduled, Start: future, Stop: future.Add(time.Hour)}
		if !timer.IsActive() {
			t.Error("Upcoming scheduled timer should be active")
		}
	})

	t.Run("ScheduledExpired", func(t *testing.T) {
		timer := Timer{State: TimerStateScheduled, Start: past.Add(-time.Hour), Stop: past}
		if timer.IsActive() {
			t.Error("Scheduled timer whose stop time passed should not be active")
		}
	})

	t.Run("Recording", func(t *testing.T) {
		timer := Timer{State: TimerStateRecording, Start: past, Stop: future}
		if !timer.IsActive() {
			t.Error("Recording timer should be active")
		}
		if !timer.IsRecording() {
			t.Error("Recording timer should report IsRecording")
		}
	})

	t.Run("TerminalStates", func(t *testing.T) {
		for _, state := range []TimerState{TimerStateCompleted, TimerStateAborted, TimerStateCancelled, TimerStateError} {
			timer := Timer{State: state, Start: future, Stop: future.Add(time.Hour)}
			if timer.IsActive() {
				t.Errorf("Timer in state %v should not be active", state)
			}
			if timer.IsRecording() {
				t.Errorf("Timer in state %v should not report IsRecording", state)
			}
			if !state.IsTerminal() {
				t.Errorf("State %v should be terminal", state)
			}
		}
	})
}

// TestTimerUpdateEntry tests the field-by-field merge
func TestTimerUpdateEntry(t *testing.T) {
	start := time.Date(2026, 9, 1, 20, 15, 0, 0, time.UTC)

	base := func() Timer {
		return Timer{
			ClientID:    1,
			ClientIndex: 7,
			Title:       "Tagesschau",
			Channel:     Channel{ClientID: 1, UID: 10, Number: 1, Name: "Das Erste"},
			Start:       start,
			Stop:        start.Add(20 * time.Minute),
			State:       TimerStateScheduled,
		}
	}

	t.Run("NoChange", func(t *testing.T) {
		timer := base()
		other := base()
		if timer.UpdateEntry(&other) {
			t.Error("Merging an identical entry should report no change")
		}
	})

	t.Run("StateChange", func(t *testing.T) {
		timer := base()
		other := base()
		other.State = TimerStateRecording
		if !timer.UpdateEntry(&other) {
			t.Error("State change should be reported")
		}
		if timer.State != TimerStateRecording {
			t.Errorf("Expected state recording, got %v", timer.State)
		}
	})

	t.Run("IdentityPreserved", func(t *testing.T) {
		timer := base()
		other := base()
		other.ClientID = 99
		other.ClientIndex = 42
		other.Title = "Changed"
		if !timer.UpdateEntry(&other) {
			t.Error("Title change should be reported")
		}
		if timer.ClientID != 1 || timer.ClientIndex != 7 {
			t.Errorf("Identity must never be overwritten, got (%d, %d)", timer.ClientID, timer.ClientIndex)
		}
	})

	t.Run("PathSetOnce", func(t *testing.T) {
		timer := base()
		timer.Path = "/video/tagesschau.ts"
		other := base()
		if timer.UpdateEntry(&other) {
			t.Error("Empty path in update should not clear the materialized path")
		}
		if timer.Path != "/video/tagesschau.ts" {
			t.Errorf("Path should be kept, got %q", timer.Path)
		}
	})

	t.Run("WindowChange", func(t *testing.T) {
		timer := base()
		other := base()
		other.Stop = other.Stop.Add(10 * time.Minute)
		if !timer.UpdateEntry(&other) {
			t.Error("Stop time change should be reported")
		}
		if !timer.Stop.Equal(start.Add(30 * time.Minute)) {
			t.Errorf("Stop time should be merged, got %v", timer.Stop)
		}
	})
}

// TestTimerEqual tests delete-by-value equality
func TestTimerEqual(t *testing.T) {
	start := time.Date(2026, 9, 1, 20, 15, 0, 0, time.UTC)
	a := Timer{ClientID: 1, ClientIndex: 7, Start: start, Stop: start.Add(time.Hour)}

	t.Run("Equal", func(t *testing.T) {
		b := a
		b.Title = "different title does not matter"
		if !a.Equal(&b) {
			t.Error("Same identity and window should be equal")
		}
	})

	t.Run("DifferentIdentity", func(t *testing.T) {
		b := a
		b.ClientIndex = 8
		if a.Equal(&b) {
			t.Error("Different client index should not be equal")
		}
	})

	t.Run("DifferentWindow", func(t *testing.T) {
		b := a
		b.Stop = b.Stop.Add(time.Minute)
		if a.Equal(&b) {
			t.Error("Different stop time should not be equal")
		}
	})

	t.Run("Nil", func(t *testing.T) {
		if a.Equal(nil) {
			t.Error("Nil is never equal")
		}
	})
}

// TestTimerStartKey tests bucket key resolution
func TestTimerStartKey(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	timer := Timer{Start: time.Date(2026, 9, 1, 21, 15, 0, 500_000_000, loc)}
	key := timer.StartKey()

	if key.Location() != time.UTC {
		t.Errorf("Bucket key should be UTC, got %v", key.Location())
	}
	if key.Nanosecond() != 0 {
		t.Error("Bucket key should be truncated to whole seconds")
	}
	if !key.Equal(time.Date(2026, 9, 1, 20, 15, 0, 0, time.UTC)) {
		t.Errorf("Unexpected bucket key %v", key)
	}
}

// TestNotificationText tests the derived notification strings
func TestNotificationText(t *testing.T) {
	timer := Timer{Title: "Tatort"}

	cases := []struct {
		state TimerState
		want  string
	}{
		{TimerStateRecording, "started"},
		{TimerStateCompleted, "completed"},
		{TimerStateAborted, "stopped"},
		{TimerStateCancelled, "stopped"},
		{TimerStateConflict, "conflict"},
		{TimerStateError, "error"},
		{TimerStateScheduled, "scheduled"},
	}
	for _, tc := range cases {
		timer.State = tc.state
		got := timer.NotificationText()
		if !strings.Contains(got, tc.want) || !strings.Contains(got, "Tatort") {
			t.Errorf("State %v: got %q, want it to mention %q and the title", tc.state, got, tc.want)
		}
	}
}

// TestRemovalNotificationText tests finished-versus-deleted phrasing
func TestRemovalNotificationText(t *testing.T) {
	now := time.Now()

	t.Run("Finished", func(t *testing.T) {
		timer := Timer{Title: "Tatort", Stop: now.Add(-time.Minute)}
		if got := timer.RemovalNotificationText(now); !strings.Contains(got, "finished") {
			t.Errorf("Past stop time should read as finished, got %q", got)
		}
	})

	t.Run("Deleted", func(t *testing.T) {
		timer := Timer{Title: "Tatort", Stop: now.Add(time.Minute)}
		if got := timer.RemovalNotificationText(now); !strings.Contains(got, "deleted") {
			t.Errorf("Future stop time should read as deleted, got %q", got)
		}
	})
}

// TestStateAndKindStrings tests the enum string helpers
func TestStateAndKindStrings(t *testing.T) {
	if TimerStateRecording.String() != "recording" {
		t.Errorf("Unexpected state string %q", TimerStateRecording.String())
	}
	if TimerState(99).String() != "unknown" {
		t.Errorf("Out-of-range state should stringify as unknown")
	}
	if UpdateDelete.String() != "delete" {
		t.Errorf("Unexpected kind string %q", UpdateDelete.String())
	}
	if UpdateKind(99).String() != "unknown" {
		t.Errorf("Out-of-range kind should stringify as unknown")
	}
}
