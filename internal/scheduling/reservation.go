package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/careinbox/careinbox/internal/calendar"
	"github.com/careinbox/careinbox/internal/clock"
	"github.com/careinbox/careinbox/internal/observability/metrics"
	"github.com/careinbox/careinbox/pkg/logging"
)

// ErrSlotUnavailable is returned when the requested slot is no longer in
// the availability set at reservation time.
var ErrSlotUnavailable = errors.New("scheduling: slot is not available")

// ErrBookingFailed is returned when the calendar backend rejects the
// event; the slot has already been reinserted into the availability set.
var ErrBookingFailed = errors.New("scheduling: failed to create calendar event")

// createdAtFormat matches the second-precision timestamps stored on
// appointments and emergency records.
const createdAtFormat = "2006-01-02T15:04:05-07:00"

// Appointment is an immutable record of a successful booking. The calendar
// event is the durable copy; this map exists for auditing within the
// process lifetime.
type Appointment struct {
	ConfirmationID  string `json:"confirmation_id"`
	Slot            string `json:"slot"`
	Patient         string `json:"patient"`
	Reason          string `json:"reason"`
	Location        string `json:"location"`
	Provider        string `json:"provider"`
	DurationMinutes int    `json:"duration_minutes"`
	CreatedAt       string `json:"created_at"`
	CalendarEventID string `json:"calendar_event_id"`
}

// ReservationManager turns free slots into booked appointments through the
// calendar backend, rolling the slot back on failure.
type ReservationManager struct {
	store      *AvailabilityStore
	backend    calendar.Backend
	clock      clock.Clock
	metrics    *metrics.SchedulingMetrics
	logger     *logging.Logger
	tracer     trace.Tracer
	location   string
	provider   string
	windowDays int

	mu           sync.Mutex
	counter      int64
	appointments map[string]Appointment
}

// ReservationConfig carries the clinic identity stamped onto appointments.
type ReservationConfig struct {
	Location   string
	Provider   string
	WindowDays int
}

// NewReservationManager creates a manager over the given availability
// store and calendar backend.
func NewReservationManager(store *AvailabilityStore, backend calendar.Backend, clk clock.Clock, cfg ReservationConfig, m *metrics.SchedulingMetrics, logger *logging.Logger) *ReservationManager {
	if store == nil {
		panic("scheduling: availability store cannot be nil")
	}
	if backend == nil {
		panic("scheduling: calendar backend cannot be nil")
	}
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 7
	}
	return &ReservationManager{
		store:        store,
		backend:      backend,
		clock:        clk,
		metrics:      m,
		logger:       logger,
		tracer:       otel.Tracer("careinbox.internal.scheduling.reservation"),
		location:     cfg.Location,
		provider:     cfg.Provider,
		windowDays:   cfg.WindowDays,
		appointments: make(map[string]Appointment),
	}
}

// Reserve books the given canonical slot. The check-and-remove against the
// availability set is atomic, so concurrent attempts on one slot yield at
// most one booking. On backend failure the slot is reinserted and no
// appointment record is created.
func (m *ReservationManager) Reserve(ctx context.Context, slot, patientName, reason string) (Appointment, error) {
	ctx, span := m.tracer.Start(ctx, "scheduling.reserve")
	defer span.End()
	span.SetAttributes(attribute.String("careinbox.slot", slot))

	if !m.store.TakeIfAvailable(slot) {
		m.metrics.ObserveBooking("conflict")
		return Appointment{}, ErrSlotUnavailable
	}

	slotStart, err := ParseSlotKey(slot)
	if err != nil {
		m.store.Add(slot)
		span.RecordError(err)
		return Appointment{}, fmt.Errorf("scheduling: invalid slot key %q: %w", slot, err)
	}

	// The calendar backend gets naive UTC timestamps plus an explicit UTC
	// zone, sidestepping double timezone conversion on its side.
	startUTC := slotStart.UTC()
	endUTC := startUTC.Add(SlotDuration)

	eventID, err := m.backend.AddEvent(ctx,
		fmt.Sprintf("Appointment with %s", patientName),
		fmt.Sprintf("Reason: %s", reason),
		startUTC, endUTC, "UTC",
	)
	if err != nil {
		m.store.Add(slot)
		m.metrics.ObserveBooking("backend_error")
		span.RecordError(err)
		m.logger.Error("calendar booking failed, slot released", "slot", slot, "error", err)
		return Appointment{}, fmt.Errorf("%w: %v", ErrBookingFailed, err)
	}

	m.mu.Lock()
	m.counter++
	appointment := Appointment{
		ConfirmationID:  fmt.Sprintf("CONF-%04d", m.counter),
		Slot:            slot,
		Patient:         patientName,
		Reason:          reason,
		Location:        m.location,
		Provider:        m.provider,
		DurationMinutes: int(SlotDuration / time.Minute),
		CreatedAt:       m.clock.Now().In(ClinicZone).Format(createdAtFormat),
		CalendarEventID: eventID,
	}
	m.appointments[appointment.ConfirmationID] = appointment
	m.mu.Unlock()

	// Refresh so the store reflects the newly busy interval. The booking
	// already succeeded, so a failed refresh is logged, not returned.
	if err := m.store.Derive(ctx, m.windowDays); err != nil {
		m.logger.Warn("availability refresh after booking failed", "error", err)
	}

	m.metrics.ObserveBooking("booked")
	m.logger.Info("appointment booked",
		"confirmation_id", appointment.ConfirmationID,
		"slot", slot,
		"calendar_event_id", eventID,
	)
	return appointment, nil
}

// Appointments returns a snapshot of all appointments booked during this
// process lifetime.
func (m *ReservationManager) Appointments() map[string]Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Appointment, len(m.appointments))
	for id, a := range m.appointments {
		out[id] = a
	}
	return out
}

// AppointmentCount returns the number of booked appointments.
func (m *ReservationManager) AppointmentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.appointments)
}
