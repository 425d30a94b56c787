package scheduling

import (
	"context"
	"errors"
	"sort"

	"github.com/careinbox/careinbox/pkg/logging"
)

// Statuses returned to the agent runtime by the scheduling tool.
const (
	StatusBooked          = "booked"
	StatusUnavailable     = "unavailable"
	StatusAwaitingPatient = "awaiting_patient"
	StatusError           = "error"
)

// alternativeLimit caps how many fallback slots a response carries.
const alternativeLimit = 5

// ScheduleRequest is the tool input supplied by the agent runtime.
type ScheduleRequest struct {
	PatientName    string   `json:"patient_name"`
	Reason         string   `json:"reason"`
	PreferredSlots []string `json:"preferred_slots,omitempty"`
	Confirmed      bool     `json:"confirmed"`
}

// ScheduleResult is the tool output the agent interprets to decide whether
// to confirm the booking or keep the conversation going. The patient only
// ever sees plain-language replies built from Note and Alternatives.
type ScheduleResult struct {
	Status         string       `json:"status"`
	Appointment    *Appointment `json:"appointment,omitempty"`
	RequestedSlots []string     `json:"requested_slots"`
	InvalidSlots   []string     `json:"invalid_slots"`
	Alternatives   []string     `json:"alternatives"`
	Note           string       `json:"note"`
}

// Tool is the scheduling decision logic invoked by the agent runtime. Pure
// orchestration over the availability store and reservation manager.
type Tool struct {
	store        *AvailabilityStore
	reservations *ReservationManager
	windowDays   int
	logger       *logging.Logger
}

// NewTool wires the decision logic over its collaborators.
func NewTool(store *AvailabilityStore, reservations *ReservationManager, windowDays int, logger *logging.Logger) *Tool {
	if store == nil {
		panic("scheduling: availability store cannot be nil")
	}
	if reservations == nil {
		panic("scheduling: reservation manager cannot be nil")
	}
	if windowDays <= 0 {
		windowDays = 7
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Tool{
		store:        store,
		reservations: reservations,
		windowDays:   windowDays,
		logger:       logger,
	}
}

// Decide re-derives availability, classifies the requested slots, and
// either reserves, proposes alternatives, or asks the patient to choose.
func (t *Tool) Decide(ctx context.Context, req ScheduleRequest) ScheduleResult {
	t.logger.Info("schedule_appointment invoked",
		"patient", req.PatientName,
		"preferred_slots", len(req.PreferredSlots),
		"confirmed", req.Confirmed,
	)

	// Fresh-state precondition: derivation may be arbitrarily stale by the
	// time the agent decides to call the tool.
	if err := t.store.Derive(ctx, t.windowDays); err != nil {
		t.logger.Error("availability derivation failed", "error", err)
		return ScheduleResult{
			Status:         StatusError,
			RequestedSlots: []string{},
			InvalidSlots:   []string{},
			Alternatives:   t.store.Suggest(alternativeLimit),
			Note:           "Calendar error while checking availability; please choose another time.",
		}
	}

	available, unavailable, invalid := t.classify(req.PreferredSlots)

	// No candidate times at all: present top choices and wait for a pick.
	if len(req.PreferredSlots) == 0 {
		return ScheduleResult{
			Status:         StatusAwaitingPatient,
			RequestedSlots: []string{},
			InvalidSlots:   []string{},
			Alternatives:   t.store.Suggest(alternativeLimit),
			Note:           "Present options to patient and wait for their pick.",
		}
	}

	if req.Confirmed && len(available) == 0 {
		return ScheduleResult{
			Status:         StatusUnavailable,
			RequestedSlots: unavailable,
			InvalidSlots:   invalid,
			Alternatives:   t.store.Suggest(alternativeLimit),
			Note:           "Requested slot unavailable; offered alternatives.",
		}
	}

	if req.Confirmed {
		sort.Strings(available)
		chosen := available[0]
		appointment, err := t.reservations.Reserve(ctx, chosen, req.PatientName, req.Reason)
		if err != nil {
			t.logger.Error("reservation failed", "slot", chosen, "error", err)
			if errors.Is(err, ErrSlotUnavailable) {
				return ScheduleResult{
					Status:         StatusUnavailable,
					RequestedSlots: []string{chosen},
					InvalidSlots:   invalid,
					Alternatives:   t.store.Suggest(alternativeLimit),
					Note:           "Requested slot unavailable; offered alternatives.",
				}
			}
			return ScheduleResult{
				Status:         StatusError,
				RequestedSlots: []string{},
				InvalidSlots:   invalid,
				Alternatives:   t.store.Suggest(alternativeLimit),
				Note:           "Calendar error while booking; please choose another time.",
			}
		}
		return ScheduleResult{
			Status:         StatusBooked,
			Appointment:    &appointment,
			RequestedSlots: []string{},
			InvalidSlots:   invalid,
			Alternatives:   []string{},
			Note:           "Confirmed requested time.",
		}
	}

	if len(unavailable) > 0 {
		return ScheduleResult{
			Status:         StatusUnavailable,
			RequestedSlots: unavailable,
			InvalidSlots:   invalid,
			Alternatives:   t.store.Suggest(alternativeLimit),
			Note:           "Requested slots are already booked.",
		}
	}

	// Unconfirmed but viable: echo the normalized candidates back so the
	// agent can ask the patient to confirm. No reservation happens here.
	return ScheduleResult{
		Status:         StatusAwaitingPatient,
		RequestedSlots: available,
		InvalidSlots:   invalid,
		Alternatives:   t.store.Suggest(alternativeLimit),
		Note:           "Present options to patient and wait for their pick.",
	}
}

// classify normalizes each candidate and partitions into available, taken,
// and invalid (inputs that normalize to nothing).
func (t *Tool) classify(candidates []string) (available, unavailable, invalid []string) {
	available = []string{}
	unavailable = []string{}
	invalid = []string{}
	for _, raw := range candidates {
		normalized := NormalizeSlot(raw)
		if normalized == "" {
			invalid = append(invalid, raw)
			continue
		}
		if t.store.Contains(normalized) {
			available = append(available, normalized)
		} else {
			unavailable = append(unavailable, normalized)
		}
	}
	return available, unavailable, invalid
}
