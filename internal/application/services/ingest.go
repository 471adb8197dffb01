package services

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/tvheadless/pvrcore/internal/domain"
)

// TimerUpdate is a single-entry push from a backend: a new, replaced or
// deleted timer, or an acknowledgement (response) of a request this process
// issued itself.
type TimerUpdate struct {
	Kind        domain.UpdateKind
	ClientID    int
	ClientIndex int
	ChannelUID  int

	Title       string
	Summary     string
	Start       time.Time
	Stop        time.Time
	MarginStart time.Duration
	State       domain.TimerState
	Repeating   bool
	Path        string
}

// UpdateFromClient maps one inbound update into a collection mutation.
//
// Invalid updates (unknown client, unresolvable channel) are logged and
// dropped without mutating anything. Before system startup completes, only
// acknowledgements are processed, so that locally initiated requests can
// still complete. New, replace and response updates are all upserts; a
// delete removes the first entry in the start-time bucket that is
// value-equal to the payload and is a no-op when none exists.
//
// Changes applied here mark the collection changed but raise no immediate
// notification; delivery is coalesced into the next refresh cycle.
func (s *TimerService) UpdateFromClient(update TimerUpdate) error {
	if _, ok := s.registry.Backend(update.ClientID); !ok {
		s.logger.Warn("timer update from unknown client", slog.Int("client", update.ClientID))
		return fmt.Errorf("%w: unknown client %d", domain.ErrInvalidInput, update.ClientID)
	}

	channel, ok := s.resolver.ChannelByClient(update.ClientID, update.ChannelUID)
	if !ok {
		s.logger.Warn("timer update for unknown channel",
			slog.Int("client", update.ClientID),
			slog.Int("channel_uid", update.ChannelUID))
		return fmt.Errorf("%w: unknown channel %d on client %d", domain.ErrInvalidInput, update.ChannelUID, update.ClientID)
	}

	if !s.started.Load() && update.Kind != domain.UpdateResponse {
		return nil
	}

	entry := domain.Timer{
		ClientID:    update.ClientID,
		ClientIndex: update.ClientIndex,
		Title:       update.Title,
		Summary:     update.Summary,
		Channel:     channel,
		Start:       update.Start,
		Stop:        update.Stop,
		MarginStart: update.MarginStart,
		State:       update.State,
		Repeating:   update.Repeating,
		Path:        update.Path,
	}

	switch update.Kind {
	case domain.UpdateNew, domain.UpdateReplace, domain.UpdateResponse:
		s.upsert(&entry)
		return nil
	case domain.UpdateDelete:
		s.removeEqual(&entry)
		return nil
	default:
		s.logger.Warn("timer update with unknown kind", slog.Int("kind", int(update.Kind)))
		return fmt.Errorf("%w: update kind %d", domain.ErrInvalidInput, update.Kind)
	}
}

// upsert merges the entry into its existing counterpart or inserts a copy,
// bucketed by start time.
func (s *TimerService) upsert(entry *domain.Timer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.byClientLocked(entry.ClientID, entry.ClientIndex)
	if existing == nil {
		copied := *entry
		s.insertLocked(&copied)
		s.SetChanged()
		return
	}

	oldKey := existing.StartKey()
	if existing.UpdateEntry(entry) {
		if newKey := existing.StartKey(); !newKey.Equal(oldKey) {
			s.rebucketLocked(oldKey, existing)
		}
		s.SetChanged()
	}
}

// removeEqual drops the first entry in the start-time bucket that is
// value-equal to the payload. Absent bucket or entry means the timer is
// already gone; nothing to do.
func (s *TimerService) removeEqual(entry *domain.Timer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := entry.StartKey()
	bucket, ok := s.tags[key]
	if !ok {
		return
	}

	for i, candidate := range bucket {
		if candidate.Equal(entry) {
			bucket = append(bucket[:i], bucket[i+1:]...)
			if len(bucket) == 0 {
				delete(s.tags, key)
			} else {
				s.tags[key] = bucket
			}
			s.SetChanged()
			return
		}
	}
}
