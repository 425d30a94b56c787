package emergency

import (
	"encoding/json"
	"net/http"

	"github.com/careinbox/careinbox/internal/clock"
	"github.com/careinbox/careinbox/internal/scheduling"
	"github.com/careinbox/careinbox/pkg/logging"
)

// Handler exposes the emergency flag over HTTP for staff dashboards.
type Handler struct {
	state  *State
	clock  clock.Clock
	logger *logging.Logger
}

// NewHandler creates a new emergency handler
func NewHandler(state *State, clk clock.Clock, logger *logging.Logger) *Handler {
	if clk == nil {
		clk = clock.System{}
	}
	return &Handler{
		state:  state,
		clock:  clk,
		logger: logger,
	}
}

// Status handles GET /emergency/status requests
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.state.Snapshot())
}

// ResetResponse is the response for resetting the emergency flag
type ResetResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Reset handles POST /emergency/reset requests
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	h.state.Reset()
	h.logger.Info("emergency state reset")

	writeJSON(w, http.StatusOK, ResetResponse{
		Status:    "emergency_state_reset",
		Timestamp: h.clock.Now().In(scheduling.ClinicZone).Format(timestampLayout),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
