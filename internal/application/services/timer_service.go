package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tvheadless/pvrcore/internal/domain"
	"github.com/tvheadless/pvrcore/internal/observe"
	"github.com/tvheadless/pvrcore/internal/ports"
)

// MessageTimersReset is the observable message raised after every completed
// refresh cycle.
const MessageTimersReset = "timers-reset"

// DefaultInstantRecordDuration is used for instant timers when the
// configured duration is zero.
const DefaultInstantRecordDuration = 120 * time.Minute

// TimerSettings carries the resolved configuration values the timer
// collection consumes. Values can be swapped at runtime via ApplySettings.
type TimerSettings struct {
	// Notifications enables queueing of user-facing notification batches
	// after a refresh cycle.
	Notifications bool

	// InstantRecordDuration is the default window length for instant timers
	// created without guide data.
	InstantRecordDuration time.Duration
}

type timerIdentity struct {
	clientID, clientIndex int
}

// TimerService holds the authoritative in-memory set of scheduled timers
// aggregated from every backend client. Entries are bucketed by start time;
// the identity (clientID, clientIndex) is unique across the whole
// collection.
//
// All mutation and scans run under one collection-wide lock. Calls to
// external collaborators (backend requests, the notifier, logging of
// refresh results) happen outside it.
//
// TimerService is an Observable: it raises MessageTimersReset after each
// refresh cycle that changed the collection. Observer callbacks run
// synchronously and must not call back into the service.
type TimerService struct {
	*observe.Observable
	observe.Watcher

	registry ports.BackendRegistry
	resolver ports.ChannelResolver
	guide    ports.GuideSource
	gate     ports.ParentalGate
	notifier ports.Notifier
	logger   *slog.Logger

	started atomic.Bool

	settingsMu sync.RWMutex
	settings   TimerSettings

	// trigger carries refresh requests raised from observer callbacks; the
	// owning loop drains it. Buffered so Notify never blocks.
	trigger chan struct{}

	mu         sync.Mutex
	refreshing bool
	tags       map[time.Time][]*domain.Timer
}

// NewTimerService creates the timer collection. All collaborators are
// required except guide and gate, which may be nil when instant timers are
// not used, and notifier, which may be nil to discard notifications.
func NewTimerService(registry ports.BackendRegistry, resolver ports.ChannelResolver, guide ports.GuideSource, gate ports.ParentalGate, notifier ports.Notifier, logger *slog.Logger, settings TimerSettings) *TimerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TimerService{
		Observable: observe.NewObservable("pvr timers"),
		registry:   registry,
		resolver:   resolver,
		guide:      guide,
		gate:       gate,
		notifier:   notifier,
		logger:     logger,
		settings:   settings,
		trigger:    make(chan struct{}, 1),
		tags:       make(map[time.Time][]*domain.Timer),
	}
}

// ApplySettings swaps the resolved configuration values at runtime
func (s *TimerService) ApplySettings(settings TimerSettings) {
	s.settingsMu.Lock()
	s.settings = settings
	s.settingsMu.Unlock()
}

func (s *TimerService) currentSettings() TimerSettings {
	s.settingsMu.RLock()
	defer s.settingsMu.RUnlock()
	return s.settings
}

// SetStarted marks system startup as complete. Before that, refresh cycles
// queue no notifications and pushed updates other than acknowledgements are
// ignored.
func (s *TimerService) SetStarted() {
	s.started.Store(true)
}

// Started reports whether system startup has completed
func (s *TimerService) Started() bool {
	return s.started.Load()
}

// Load performs the initial refresh and, when guideEvents is not nil,
// registers the service as its observer so guide changes re-trigger a
// timers update. It returns the number of timers loaded.
func (s *TimerService) Load(ctx context.Context, guideEvents *observe.Observable) (int, error) {
	s.Unload()
	if guideEvents != nil {
		guideEvents.RegisterObserver(s)
	}
	if err := s.RefreshTimers(ctx); err != nil {
		return 0, err
	}
	return s.NumTimers(), nil
}

// Unload deregisters from every observed source and discards all entries
func (s *TimerService) Unload() {
	s.StopObserving(s)
	s.mu.Lock()
	s.tags = make(map[time.Time][]*domain.Timer)
	s.mu.Unlock()
}

// Notify implements observe.Observer: a change in an observed source (the
// programme guide) requests a fresh timers update. The request is queued,
// never executed on the notifying goroutine.
func (s *TimerService) Notify(o *observe.Observable, message string) {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// RefreshRequests exposes the queue of refresh requests raised by observed
// sources. The owning loop should drain it and call RefreshTimers.
func (s *TimerService) RefreshRequests() <-chan struct{} {
	return s.trigger
}

// RefreshTimers fetches every backend's full timer snapshot and reconciles
// it into the collection: entries present in the snapshot are inserted or
// updated in place, entries that disappeared from every backend are
// removed. One MessageTimersReset notification is raised per cycle, and the
// accumulated notification strings are queued as a batch when enabled.
//
// A second refresh while one is in flight is not performed and reports
// domain.ErrRefreshInProgress; it is safe to retry later. A backend whose
// snapshot fetch fails contributes zero timers this cycle and never aborts
// the refresh.
func (s *TimerService) RefreshTimers(ctx context.Context) error {
	s.mu.Lock()
	if s.refreshing {
		s.mu.Unlock()
		return domain.ErrRefreshInProgress
	}
	s.refreshing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.refreshing = false
		s.mu.Unlock()
	}()

	s.logger.Debug("updating timers")

	var snapshot []domain.Timer
	for _, backend := range s.registry.Backends() {
		timers, err := backend.Timers(ctx)
		if err != nil {
			s.logger.Warn("backend snapshot failed",
				slog.Int("client", backend.ID()),
				slog.Any("error", err))
			continue
		}
		snapshot = append(snapshot, timers...)
	}

	var notes []string
	s.mu.Lock()
	added, updated := s.addEntriesFromLocked(snapshot, &notes)
	removed := s.removeEntriesNotInLocked(snapshot, &notes)
	s.mu.Unlock()

	if added+updated+removed > 0 {
		s.logger.Debug("timers reconciled",
			slog.Int("added", added),
			slog.Int("updated", updated),
			slog.Int("removed", removed))
	}

	s.NotifyObservers(MessageTimersReset)

	if len(notes) > 0 && s.currentSettings().Notifications && s.notifier != nil {
		s.notifier.QueueNotifications(notes)
	}

	return nil
}

// addEntriesFromLocked is the add/update pass of the reconciliation: every
// snapshot entry is either merged into its existing counterpart or inserted
// as a new entry. Caller holds s.mu.
func (s *TimerService) addEntriesFromLocked(snapshot []domain.Timer, notes *[]string) (added, updated int) {
	for i := range snapshot {
		entry := &snapshot[i]

		existing := s.byClientLocked(entry.ClientID, entry.ClientIndex)
		if existing != nil {
			oldKey := existing.StartKey()
			stateChanged := existing.State != entry.State
			if existing.UpdateEntry(entry) {
				if newKey := existing.StartKey(); !newKey.Equal(oldKey) {
					s.rebucketLocked(oldKey, existing)
				}
				if stateChanged && s.started.Load() {
					*notes = append(*notes, existing.NotificationText())
				}
				s.SetChanged()
				updated++
			}
			continue
		}

		copied := *entry
		s.insertLocked(&copied)
		if s.started.Load() {
			*notes = append(*notes, copied.NotificationText())
		}
		s.SetChanged()
		added++
	}
	return added, updated
}

// removeEntriesNotInLocked is the removal pass: an entry no backend reports
// anymore has disappeared and is dropped, with a notification
// distinguishing a finished recording from a deleted timer. Caller holds
// s.mu.
func (s *TimerService) removeEntriesNotInLocked(snapshot []domain.Timer, notes *[]string) (removed int) {
	present := make(map[timerIdentity]struct{}, len(snapshot))
	for i := range snapshot {
		present[timerIdentity{snapshot[i].ClientID, snapshot[i].ClientIndex}] = struct{}{}
	}

	now := time.Now()
	for key, bucket := range s.tags {
		for i := len(bucket) - 1; i >= 0; i-- {
			entry := bucket[i]
			if _, ok := present[timerIdentity{entry.ClientID, entry.ClientIndex}]; ok {
				continue
			}

			if s.started.Load() {
				*notes = append(*notes, entry.RemovalNotificationText(now))
			}

			bucket = append(bucket[:i], bucket[i+1:]...)
			s.SetChanged()
			removed++
		}

		if len(bucket) == 0 {
			delete(s.tags, key)
		} else {
			s.tags[key] = bucket
		}
	}
	return removed
}

func (s *TimerService) insertLocked(entry *domain.Timer) {
	key := entry.StartKey()
	s.tags[key] = append(s.tags[key], entry)
}

// rebucketLocked moves an entry whose start time changed from its old
// bucket into the one keyed by its current start time.
func (s *TimerService) rebucketLocked(oldKey time.Time, entry *domain.Timer) {
	bucket := s.tags[oldKey]
	for i, t := range bucket {
		if t == entry {
			bucket = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(bucket) == 0 {
		delete(s.tags, oldKey)
	} else {
		s.tags[oldKey] = bucket
	}
	s.insertLocked(entry)
}

func (s *TimerService) byClientLocked(clientID, clientIndex int) *domain.Timer {
	for _, bucket := range s.tags {
		for _, entry := range bucket {
			if entry.ClientID == clientID && entry.ClientIndex == clientIndex {
				return entry
			}
		}
	}
	return nil
}

// sortedKeysLocked returns the bucket keys in start-time order. Caller
// holds s.mu.
func (s *TimerService) sortedKeysLocked() []time.Time {
	keys := make([]time.Time, 0, len(s.tags))
	for key := range s.tags {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
	return keys
}

// TimerFilter narrows the result of Timers. Zero values mean "no filter";
// channel number and client id only participate when positive.
type TimerFilter struct {
	ActiveOnly    bool
	RecordingOnly bool
	ChannelNumber int
	ClientID      int
}

// Timers returns copies of the matching entries in start-time order;
// entries sharing one start time keep insertion order.
func (s *TimerService) Timers(filter TimerFilter) []domain.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()

	var results []domain.Timer
	for _, key := range s.sortedKeysLocked() {
		for _, entry := range s.tags[key] {
			if filter.ActiveOnly && !entry.IsActive() {
				continue
			}
			if filter.RecordingOnly && !entry.IsRecording() {
				continue
			}
			if filter.ChannelNumber > 0 && entry.Channel.Number != filter.ChannelNumber {
				continue
			}
			if filter.ClientID > 0 && entry.ClientID != filter.ClientID {
				continue
			}
			results = append(results, *entry)
		}
	}
	return results
}

// ActiveTimers returns every upcoming or recording timer
func (s *TimerService) ActiveTimers() []domain.Timer {
	return s.Timers(TimerFilter{ActiveOnly: true})
}

// ActiveRecordings returns every currently recording timer
func (s *TimerService) ActiveRecordings() []domain.Timer {
	return s.Timers(TimerFilter{RecordingOnly: true})
}

// NumTimers returns the total number of entries
func (s *TimerService) NumTimers() int {
	return len(s.Timers(TimerFilter{}))
}

// NumActiveTimers returns the number of active entries
func (s *TimerService) NumActiveTimers() int {
	return len(s.Timers(TimerFilter{ActiveOnly: true}))
}

// IsRecording reports whether any timer is recording right now
func (s *TimerService) IsRecording() bool {
	return len(s.Timers(TimerFilter{RecordingOnly: true})) > 0
}

// NextActiveTimer returns the first timer, in start-time order, that is
// active and not currently recording.
func (s *TimerService) NextActiveTimer() (domain.Timer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range s.sortedKeysLocked() {
		for _, entry := range s.tags[key] {
			if entry.IsActive() && !entry.IsRecording() {
				return *entry, true
			}
		}
	}
	return domain.Timer{}, false
}

// ByClient looks an entry up by its (clientID, clientIndex) identity
func (s *TimerService) ByClient(clientID, clientIndex int) (domain.Timer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry := s.byClientLocked(clientID, clientIndex); entry != nil {
		return *entry, true
	}
	return domain.Timer{}, false
}

// TimerAt returns an entry from the bucket keyed by start. A clientIndex of
// -1 selects the first entry in the bucket.
func (s *TimerService) TimerAt(start time.Time, clientIndex int) (domain.Timer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, ok := s.tags[start.UTC().Truncate(time.Second)]
	if !ok || len(bucket) == 0 {
		return domain.Timer{}, false
	}
	if clientIndex == -1 {
		return *bucket[0], true
	}
	for _, entry := range bucket {
		if entry.ClientIndex == clientIndex {
			return *entry, true
		}
	}
	return domain.Timer{}, false
}

// Match finds a timer whose channel and radio flag match the programme and
// whose window fully contains the programme's window. Used to detect that a
// programme already has a recording scheduled.
func (s *TimerService) Match(prog domain.Programme) (domain.Timer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range s.sortedKeysLocked() {
		for _, entry := range s.tags[key] {
			if entry.Channel.Number != prog.ChannelNumber || entry.Channel.Radio != prog.Radio {
				continue
			}
			if entry.Start.After(prog.Start) || entry.Stop.Before(prog.Stop) {
				continue
			}
			return *entry, true
		}
	}
	return domain.Timer{}, false
}

// ChannelHasTimers reports whether any timer records from the channel
func (s *TimerService) ChannelHasTimers(channel domain.Channel) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, bucket := range s.tags {
		for _, entry := range bucket {
			if entry.Channel.Number == channel.Number && entry.Channel.Radio == channel.Radio {
				return true
			}
		}
	}
	return false
}

// IsRecordingOnChannel reports whether a recording is running on the channel
func (s *TimerService) IsRecordingOnChannel(channel domain.Channel) bool {
	return len(s.Timers(TimerFilter{
		RecordingOnly: true,
		ChannelNumber: channel.Number,
		ClientID:      channel.ClientID,
	})) > 0
}

// DeleteTimersOnChannel removes every timer on the channel from the
// collection and issues a best-effort delete request to the originating
// backend for each. The local removal happens regardless of whether a
// backend confirms; the next refresh restores an entry the backend still
// has. Repeating timers are skipped unless deleteRepeating is set; with
// currentlyActiveOnly only timers inside their recording window right now
// are touched. Reports whether any entry was removed.
func (s *TimerService) DeleteTimersOnChannel(ctx context.Context, channel domain.Channel, deleteRepeating, currentlyActiveOnly bool) bool {
	now := time.Now()

	s.mu.Lock()
	var victims []*domain.Timer
	for key, bucket := range s.tags {
		for i := len(bucket) - 1; i >= 0; i-- {
			entry := bucket[i]

			if currentlyActiveOnly && (now.Before(entry.Start) || now.After(entry.Stop)) {
				continue
			}
			if !deleteRepeating && entry.Repeating {
				continue
			}
			if entry.Channel.Number != channel.Number || entry.Channel.Radio != channel.Radio {
				continue
			}

			victims = append(victims, entry)
			bucket = append(bucket[:i], bucket[i+1:]...)
			s.SetChanged()
		}
		if len(bucket) == 0 {
			delete(s.tags, key)
		} else {
			s.tags[key] = bucket
		}
	}
	s.mu.Unlock()

	for _, entry := range victims {
		backend, ok := s.registry.Backend(entry.ClientID)
		if !ok {
			s.logger.Warn("no backend for deleted timer", slog.Int("client", entry.ClientID))
			continue
		}
		if err := backend.DeleteTimer(ctx, entry.ClientIndex, true); err != nil {
			s.logger.Warn("backend delete failed",
				slog.Int("client", entry.ClientID),
				slog.Int("index", entry.ClientIndex),
				slog.Any("error", err))
		}
	}

	return len(victims) > 0
}

// CreateInstantTimer builds a timer that records the channel starting right
// now. Title, summary and stop time come from the live guide programme when
// one exists; otherwise a default window of the configured instant-record
// duration is synthesized. The start margin is always cleared and the start
// time pinned to now.
//
// On a parental-locked channel the operation fails closed. With startTimer
// set the entry is registered with the originating backend; if that request
// fails the entry is discarded and an error wrapping
// domain.ErrBackendRequest is returned. The collection itself is never
// mutated here; the entry enters it once the backend confirms it.
func (s *TimerService) CreateInstantTimer(ctx context.Context, channel domain.Channel, startTimer bool) (*domain.Timer, error) {
	if s.gate != nil && !s.gate.Allowed(channel) {
		return nil, domain.ErrParentalLocked
	}

	now := time.Now().UTC().Truncate(time.Second)

	timer := &domain.Timer{
		ClientID:    channel.ClientID,
		ClientIndex: domain.PendingClientIndex,
		Title:       channel.Name,
		Channel:     channel,
		State:       domain.TimerStateNew,
		Start:       now,
		Path:        "pvr://timers/new",
	}

	var haveGuide bool
	if s.guide != nil {
		if prog, ok := s.guide.NowOn(channel); ok {
			timer.Title = prog.Title
			timer.Summary = prog.Summary
			timer.Stop = prog.Stop
			haveGuide = true
		}
	}

	if !haveGuide || !timer.Stop.After(now) {
		duration := s.currentSettings().InstantRecordDuration
		if duration <= 0 {
			duration = DefaultInstantRecordDuration
		}
		timer.Stop = now.Add(duration)
	}

	if timer.Summary == "" {
		timer.Summary = fmt.Sprintf("%s from %s to %s",
			timer.Start.Local().Format("2006-01-02"),
			timer.Start.Local().Format("15:04"),
			timer.Stop.Local().Format("15:04"))
	}

	// Instant timers never pre-roll.
	timer.MarginStart = 0

	if startTimer {
		backend, ok := s.registry.Backend(channel.ClientID)
		if !ok {
			return nil, fmt.Errorf("%w: unknown client %d", domain.ErrBackendRequest, channel.ClientID)
		}
		if err := backend.AddTimer(ctx, timer); err != nil {
			s.logger.Error("unable to add an instant timer on the client",
				slog.Int("client", channel.ClientID),
				slog.Any("error", err))
			return nil, fmt.Errorf("%w: %v", domain.ErrBackendRequest, err)
		}
	}

	return timer, nil
}
