package scheduling

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/careinbox/careinbox/internal/calendar"
	"github.com/careinbox/careinbox/internal/clock"
)

// fixedNow pins "now" to Sunday 2025-09-28 09:00 UTC-4, so derivation
// windows start exactly at 10:00 local.
var fixedNow = time.Date(2025, 9, 28, 9, 0, 0, 0, ClinicZone)

type fakeBackend struct {
	mu      sync.Mutex
	events  []calendar.Event
	addErr  error
	nextID  int
	deleted []string
}

func (f *fakeBackend) ListEvents(_ context.Context, _ int64) ([]calendar.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]calendar.Event, len(f.events))
	copy(out, f.events)
	return out, nil
}

func (f *fakeBackend) AddEvent(_ context.Context, title, description string, start, end time.Time, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return "", f.addErr
	}
	f.nextID++
	id := fmt.Sprintf("evt-%d", f.nextID)
	f.events = append(f.events, calendar.Event{
		ID:          id,
		Summary:     title,
		Description: description,
		Start:       calendar.EventTime{DateTime: start.UTC().Format(time.RFC3339)},
		End:         calendar.EventTime{DateTime: end.UTC().Format(time.RFC3339)},
	})
	return id, nil
}

func (f *fakeBackend) DeleteEvent(_ context.Context, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, eventID)
	return nil
}

func (f *fakeBackend) addBusy(start, end time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.events = append(f.events, calendar.Event{
		ID:    fmt.Sprintf("evt-%d", f.nextID),
		Start: calendar.EventTime{DateTime: start.UTC().Format(time.RFC3339)},
		End:   calendar.EventTime{DateTime: end.UTC().Format(time.RFC3339)},
	})
}

func eventWithDates(start, end string) calendar.Event {
	return calendar.Event{
		Start: calendar.EventTime{Date: start},
		End:   calendar.EventTime{Date: end},
	}
}

func eventWithDateTimes(start, end string) calendar.Event {
	return calendar.Event{
		Start: calendar.EventTime{DateTime: start},
		End:   calendar.EventTime{DateTime: end},
	}
}

func newTestStore(backend *fakeBackend) *AvailabilityStore {
	return NewAvailabilityStore(backend, clock.NewFixed(fixedNow), nil, nil)
}

func newTestManager(store *AvailabilityStore, backend *fakeBackend) *ReservationManager {
	return NewReservationManager(store, backend, clock.NewFixed(fixedNow), ReservationConfig{
		Location:   "MHacks Clinic",
		Provider:   "Dr. Yimmy Yapper",
		WindowDays: 7,
	}, nil, nil)
}
