package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/careinbox/careinbox/internal/clock"
	"github.com/careinbox/careinbox/pkg/logging"
)

// naiveLayout is the timestamp format the events API expects when a
// separate TimeZone field is supplied.
const naiveLayout = "2006-01-02T15:04:05"

// GoogleConfig controls how the Google Calendar backend is constructed.
// Credential acquisition (OAuth flows, token files) happens outside this
// package; callers either point at a credentials file or hand over an
// already-authorized HTTP client.
type GoogleConfig struct {
	CalendarID      string
	CredentialsFile string
	HTTPClient      *http.Client
	Clock           clock.Clock
	Logger          *logging.Logger
}

// GoogleBackend implements Backend against the Google Calendar API.
type GoogleBackend struct {
	service    *gcal.Service
	calendarID string
	clock      clock.Clock
	logger     *logging.Logger
}

// NewGoogleBackend creates a Backend for the configured calendar.
func NewGoogleBackend(ctx context.Context, cfg GoogleConfig) (*GoogleBackend, error) {
	var opts []option.ClientOption
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	} else if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	service, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar: failed to create google calendar service: %w", err)
	}

	calendarID := strings.TrimSpace(cfg.CalendarID)
	if calendarID == "" {
		calendarID = "primary"
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.System{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	return &GoogleBackend{
		service:    service,
		calendarID: calendarID,
		clock:      clk,
		logger:     logger,
	}, nil
}

// ListEvents returns upcoming events ordered by start time.
func (b *GoogleBackend) ListEvents(ctx context.Context, max int64) ([]Event, error) {
	if max <= 0 {
		max = 10
	}
	timeMin := b.clock.Now().UTC().Format(time.RFC3339)

	result, err := b.service.Events.List(b.calendarID).
		TimeMin(timeMin).
		MaxResults(max).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("calendar: failed to list events: %w", err)
	}

	events := make([]Event, 0, len(result.Items))
	for _, item := range result.Items {
		ev := Event{
			ID:          item.Id,
			Summary:     item.Summary,
			Description: item.Description,
		}
		if item.Start != nil {
			ev.Start = EventTime{DateTime: item.Start.DateTime, Date: item.Start.Date}
		}
		if item.End != nil {
			ev.End = EventTime{DateTime: item.End.DateTime, Date: item.End.Date}
		}
		events = append(events, ev)
	}
	return events, nil
}

// AddEvent creates a calendar event and returns its id.
func (b *GoogleBackend) AddEvent(ctx context.Context, title, description string, start, end time.Time, tz string) (string, error) {
	if tz == "" {
		tz = "UTC"
	}
	event := &gcal.Event{
		Summary:     title,
		Description: description,
		Start: &gcal.EventDateTime{
			DateTime: start.Format(naiveLayout),
			TimeZone: tz,
		},
		End: &gcal.EventDateTime{
			DateTime: end.Format(naiveLayout),
			TimeZone: tz,
		},
	}

	created, err := b.service.Events.Insert(b.calendarID, event).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("calendar: failed to create event: %w", err)
	}
	if created == nil || created.Id == "" {
		return "", errors.New("calendar: event created without an id")
	}

	b.logger.Info("calendar event created", "event_id", created.Id, "summary", title)
	return created.Id, nil
}

// DeleteEvent removes an event by id.
func (b *GoogleBackend) DeleteEvent(ctx context.Context, eventID string) error {
	if strings.TrimSpace(eventID) == "" {
		return errors.New("calendar: event id is required")
	}
	if err := b.service.Events.Delete(b.calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("calendar: failed to delete event %s: %w", eventID, err)
	}
	return nil
}
