package services

import (
	"sync"
	"time"
)

// PowerSettings carries the resolved power-management configuration the
// wake scheduler consumes.
type PowerSettings struct {
	// DailyWakeup enables the fixed daily wake time policy
	DailyWakeup bool

	// DailyWakeupHour and DailyWakeupMinute are the wall-clock time of the
	// daily wake, anchored to the current day.
	DailyWakeupHour   int
	DailyWakeupMinute int

	// PrewakeMargin is subtracted from the next timer's start time so the
	// device is up before the recording begins.
	PrewakeMargin time.Duration

	// BackendIdle is the minimum span the device stays awake; a wake is
	// never scheduled closer than this when the next timer is still far
	// out, deferring the precise decision to a later recomputation.
	BackendIdle time.Duration
}

// WakeupService derives the next device wake-up instant from the timer
// collection and the daily wake policy.
type WakeupService struct {
	timers *TimerService

	mu       sync.RWMutex
	settings PowerSettings

	// now is swappable for tests
	now func() time.Time
}

// NewWakeupService creates a wake scheduler over the timer collection
func NewWakeupService(timers *TimerService, settings PowerSettings) *WakeupService {
	return &WakeupService{
		timers:   timers,
		settings: settings,
		now:      time.Now,
	}
}

// ApplySettings swaps the power settings at runtime
func (s *WakeupService) ApplySettings(settings PowerSettings) {
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
}

func (s *WakeupService) currentSettings() PowerSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// NextWakeupTime computes the next wake-up instant from two independent
// sources: the next active, non-recording timer's start time reduced by the
// prewake margin (floored at now + backend idle time), and the daily wake
// time re-anchored to today (advanced a day once it has effectively
// passed). The earlier candidate wins. ok is false when neither source
// yields a wake time; callers must not interpret the zero instant as "wake
// immediately".
func (s *WakeupService) NextWakeupTime() (wakeup time.Time, ok bool) {
	settings := s.currentSettings()
	now := s.now()

	if timer, found := s.timers.NextActiveTimer(); found {
		start := timer.Start
		floor := now.Add(settings.BackendIdle)
		if start.Add(-settings.BackendIdle).After(now) {
			wakeup = start.Add(-settings.PrewakeMargin)
			// A prewake margin larger than the idle span must not pull the
			// wake below the floor.
			if wakeup.Before(floor) {
				wakeup = floor
			}
		} else {
			wakeup = floor
		}
		ok = true
	}

	if settings.DailyWakeup {
		daily := time.Date(now.Year(), now.Month(), now.Day(),
			settings.DailyWakeupHour, settings.DailyWakeupMinute, 0, 0, now.Location())
		if daily.Add(-settings.BackendIdle).Before(now) {
			daily = daily.AddDate(0, 0, 1)
		}
		if !ok || daily.Before(wakeup) {
			wakeup = daily
			ok = true
		}
	}

	return wakeup, ok
}
