// Package calendar defines the contract for the clinic's durable calendar
// and implements it against Google Calendar. The calendar is the source of
// truth for bookings; all in-memory availability is derived from it.
package calendar

import (
	"context"
	"time"
)

// EventTime mirrors the calendar wire shape: timed entries carry DateTime,
// all-day entries carry only Date.
type EventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
}

// Event is a calendar entry as seen by the scheduling engine.
type Event struct {
	ID          string    `json:"id"`
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Start       EventTime `json:"start"`
	End         EventTime `json:"end"`
}

// Backend abstracts the external calendar service.
type Backend interface {
	// ListEvents returns upcoming events, at most max, ordered by start time.
	ListEvents(ctx context.Context, max int64) ([]Event, error)
	// AddEvent creates an event and returns its calendar id.
	AddEvent(ctx context.Context, title, description string, start, end time.Time, tz string) (string, error)
	// DeleteEvent removes an event by id.
	DeleteEvent(ctx context.Context, eventID string) error
}
