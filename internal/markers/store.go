// Package markers owns the chronologically sorted marker list bound to the
// chart surface.
package markers

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/argo-console/internal/logger"
	"github.com/rxtech-lab/argo-console/internal/types"
	"github.com/rxtech-lab/argo-console/pkg/errors"
	"go.uber.org/zap"
)

// Store maintains the chart's trade markers. The list it hands out is always
// ascending by effective time, which the chart surface requires, and marker
// IDs are stable for the markers' whole lifetime even when their time is
// edited.
//
// Store is not safe for concurrent use; all mutation happens on the session
// dispatch queue.
type Store struct {
	granularity types.Granularity
	markers     []types.Marker
	logger      *logger.Logger
}

// NewStore creates an empty store. A nil logger falls back to a no-op logger.
func NewStore(log *logger.Logger) *Store {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Store{
		granularity: types.GranularityDaily,
		markers:     nil,
		logger:      log,
	}
}

// FromEvents rebuilds the marker list from a batch of trade events (live
// events or a terminal result's history). Events without a stable identity
// get one synthesized; events whose timestamp cannot be keyed are skipped.
// Marker times are normalized per granularity: date-only for daily charts so
// markers align with daily bar keys, an absolute instant otherwise.
func (s *Store) FromEvents(events []types.TradeEvent, g types.Granularity) {
	s.granularity = g
	s.markers = make([]types.Marker, 0, len(events))

	for i := range events {
		ev := &events[i]

		t, err := s.effectiveTime(ev.Timestamp)
		if err != nil {
			s.logger.Debug("skipping marker with unkeyable timestamp",
				zap.String("timestamp", ev.Timestamp),
				zap.String("event_id", ev.EventID),
			)

			continue
		}

		id := ev.EventID
		if id == "" {
			id = uuid.NewString()
		}

		s.markers = append(s.markers, types.Marker{
			ID:    id,
			Time:  t,
			Side:  ev.Side,
			Qty:   ev.Qty,
			Price: ev.Price,
			Label: labelFor(ev),
			Style: types.StyleForSide(ev.Side),
		})
	}

	s.sortAscending()
}

// BulkReplace atomically discards and rebuilds the entire marker set at the
// store's current granularity. Used when the terminal result arrives or when
// switching instruments.
func (s *Store) BulkReplace(events []types.TradeEvent) {
	s.FromEvents(events, s.granularity)
}

// EditTime moves the marker with the given id to a new time, renormalizes it
// and re-sorts the list. An unknown id returns ErrCodeMarkerNotFound; the
// list is left untouched in that case.
func (s *Store) EditTime(id string, newTime time.Time) error {
	for i := range s.markers {
		if s.markers[i].ID != id {
			continue
		}

		s.markers[i].Time = s.normalize(newTime)
		s.sortAscending()

		return nil
	}

	return errors.Newf(errors.ErrCodeMarkerNotFound, "no marker with id %q", id)
}

// Markers returns the markers ascending by effective time.
func (s *Store) Markers() []types.Marker {
	out := make([]types.Marker, len(s.markers))
	copy(out, s.markers)

	return out
}

// Len returns the number of markers.
func (s *Store) Len() int {
	return len(s.markers)
}

// Clear discards every marker.
func (s *Store) Clear() {
	s.markers = nil
}

func (s *Store) effectiveTime(raw string) (time.Time, error) {
	key, err := types.NormalizeTimestamp(raw, s.granularity)
	if err != nil {
		return time.Time{}, err
	}

	return key.Time()
}

// normalize truncates an instant to the store's granularity.
func (s *Store) normalize(t time.Time) time.Time {
	if s.granularity == types.GranularityDaily {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}

	return t.Truncate(time.Second)
}

// sortAscending keeps the hard external precondition: the chart surface only
// accepts markers in ascending time order. The sort is stable so same-bar
// markers keep their event order.
func (s *Store) sortAscending() {
	sort.SliceStable(s.markers, func(i, j int) bool {
		return s.markers[i].Time.Before(s.markers[j].Time)
	})
}

func labelFor(ev *types.TradeEvent) string {
	switch ev.Side {
	case types.TradeSideBuy, types.TradeSideSell:
		return fmt.Sprintf("%s %d @ %.0f", ev.Side, ev.Qty, ev.Price)
	default:
		if ev.EventType != "" {
			return ev.EventType
		}

		return "HOLD"
	}
}
