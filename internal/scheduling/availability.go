package scheduling

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/careinbox/careinbox/internal/calendar"
	"github.com/careinbox/careinbox/internal/clock"
	"github.com/careinbox/careinbox/internal/observability/metrics"
	"github.com/careinbox/careinbox/pkg/logging"
)

// listEventsMax bounds how many upcoming events a derivation pass fetches.
const listEventsMax = 200

// BusyInterval is an absolute time range occupied by an existing calendar
// entry. Used only transiently during derivation.
type BusyInterval struct {
	Start time.Time
	End   time.Time
}

// AvailabilityStore owns the set of free 30-minute slots. The set is the
// single source of truth between derivation passes and is always rebuilt
// wholesale, never patched incrementally.
type AvailabilityStore struct {
	mu    sync.Mutex
	slots map[string]struct{}

	backend calendar.Backend
	clock   clock.Clock
	metrics *metrics.SchedulingMetrics
	logger  *logging.Logger
	tracer  trace.Tracer
}

// NewAvailabilityStore creates an empty store backed by the given calendar.
func NewAvailabilityStore(backend calendar.Backend, clk clock.Clock, m *metrics.SchedulingMetrics, logger *logging.Logger) *AvailabilityStore {
	if backend == nil {
		panic("scheduling: calendar backend cannot be nil")
	}
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AvailabilityStore{
		slots:   make(map[string]struct{}),
		backend: backend,
		clock:   clk,
		metrics: m,
		logger:  logger,
		tracer:  otel.Tracer("careinbox.internal.scheduling.availability"),
	}
}

// Derive recomputes the full slot set for the next windowDays days,
// starting one hour after "now" snapped to the top of the hour. Any
// 30-minute grid cell overlapping a fetched busy interval is excluded.
// All-day and malformed calendar entries are skipped, not treated as busy.
func (s *AvailabilityStore) Derive(ctx context.Context, windowDays int) error {
	ctx, span := s.tracer.Start(ctx, "scheduling.derive_availability")
	defer span.End()

	started := time.Now()
	if windowDays <= 0 {
		windowDays = 7
	}

	nowLocal := s.clock.Now().In(ClinicZone)
	start := nowLocal.Add(time.Hour)
	start = time.Date(start.Year(), start.Month(), start.Day(), start.Hour(), 0, 0, 0, ClinicZone)

	events, err := s.backend.ListEvents(ctx, listEventsMax)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("scheduling: failed to fetch calendar events: %w", err)
	}
	busy := busyIntervals(events)

	fresh := make(map[string]struct{}, windowDays*slotsPerDay)
	for day := 0; day < windowDays; day++ {
		d := start.AddDate(0, 0, day)
		dayStart := time.Date(d.Year(), d.Month(), d.Day(), openingHour, 0, 0, 0, ClinicZone)
		for cell := 0; cell < slotsPerDay; cell++ {
			slotStart := dayStart.Add(time.Duration(cell) * SlotDuration)
			if slotStart.Before(start) {
				continue
			}
			slotEnd := slotStart.Add(SlotDuration)
			if overlapsAny(slotStart, slotEnd, busy) {
				continue
			}
			fresh[slotStart.Format(SlotFormat)] = struct{}{}
		}
	}

	s.mu.Lock()
	s.slots = fresh
	s.mu.Unlock()

	s.metrics.ObserveDerive(time.Since(started).Seconds())
	s.logger.Debug("availability derived", "slots", len(fresh), "window_days", windowDays)
	return nil
}

// busyIntervals extracts (start, end) pairs from calendar events, skipping
// entries without explicit start/end timestamps.
func busyIntervals(events []calendar.Event) []BusyInterval {
	intervals := make([]BusyInterval, 0, len(events))
	for _, ev := range events {
		if ev.Start.DateTime == "" || ev.End.DateTime == "" {
			continue
		}
		start, err := parseEventTime(ev.Start.DateTime)
		if err != nil {
			continue
		}
		end, err := parseEventTime(ev.End.DateTime)
		if err != nil {
			continue
		}
		intervals = append(intervals, BusyInterval{Start: start.UTC(), End: end.UTC()})
	}
	return intervals
}

func parseEventTime(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05Z0700", value)
}

// overlapsAny applies the half-open interval test: a slot is busy when
// slotStart < busyEnd && slotEnd > busyStart. Touching boundaries do not
// overlap.
func overlapsAny(slotStart, slotEnd time.Time, busy []BusyInterval) bool {
	for _, b := range busy {
		if slotStart.Before(b.End) && slotEnd.After(b.Start) {
			return true
		}
	}
	return false
}

// Contains reports whether the slot is currently free.
func (s *AvailabilityStore) Contains(slot string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.slots[slot]
	return ok
}

// Add reinserts a slot, used as the compensating action when a booking
// fails after the slot was taken.
func (s *AvailabilityStore) Add(slot string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[slot] = struct{}{}
}

// TakeIfAvailable atomically removes the slot if it is free. Under
// concurrent reservation attempts on one slot at most one caller wins.
func (s *AvailabilityStore) TakeIfAvailable(slot string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.slots[slot]; !ok {
		return false
	}
	delete(s.slots, slot)
	return true
}

// Suggest returns the chronologically earliest free slots, at most limit.
func (s *AvailabilityStore) Suggest(limit int) []string {
	if limit <= 0 {
		limit = 5
	}
	s.mu.Lock()
	keys := make([]string, 0, len(s.slots))
	for slot := range s.slots {
		keys = append(keys, slot)
	}
	s.mu.Unlock()

	// Canonical keys share one offset, so lexicographic order is
	// chronological order.
	sort.Strings(keys)
	if len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}

// Len returns the number of currently free slots.
func (s *AvailabilityStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}
