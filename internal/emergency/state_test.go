package emergency

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careinbox/careinbox/internal/clock"
	"github.com/careinbox/careinbox/pkg/logging"
)

var testInstant = time.Date(2025, 9, 28, 10, 0, 0, 0, time.FixedZone("UTC-4", -4*60*60))

func TestStateInitiallyInactive(t *testing.T) {
	state := NewState()

	snap := state.Snapshot()
	assert.False(t, snap.EmergencyActive)
	assert.Nil(t, snap.Timestamp)
	assert.Nil(t, snap.LastThreadID)
	assert.Nil(t, snap.Message)
	assert.False(t, state.Active())
}

func TestStateActivateAndSnapshot(t *testing.T) {
	state := NewState()
	state.Activate("thread-9", "Chest pain reported", testInstant)

	snap := state.Snapshot()
	assert.True(t, snap.EmergencyActive)
	require.NotNil(t, snap.Timestamp)
	assert.Equal(t, "2025-09-28T10:00:00-04:00", *snap.Timestamp)
	require.NotNil(t, snap.LastThreadID)
	assert.Equal(t, "thread-9", *snap.LastThreadID)
	require.NotNil(t, snap.Message)
	assert.Equal(t, "Chest pain reported", *snap.Message)
}

func TestStateLatestActivationWins(t *testing.T) {
	state := NewState()
	state.Activate("thread-1", "first", testInstant)
	state.Activate("thread-2", "second", testInstant.Add(time.Minute))

	snap := state.Snapshot()
	assert.Equal(t, "thread-2", *snap.LastThreadID)
	assert.Equal(t, "second", *snap.Message)
}

func TestStateResetClearsFlagButKeepsLog(t *testing.T) {
	state := NewState()
	state.Activate("thread-1", "urgent", testInstant)
	state.RecordFlagged("thread-1", FlaggedResponse{
		Timestamp: "2025-09-28T10:00:00-04:00",
		MessageID: "msg-1",
		EventID:   "evt-1",
		Message:   "urgent",
	})

	state.Reset()

	snap := state.Snapshot()
	assert.False(t, snap.EmergencyActive)
	assert.Nil(t, snap.Timestamp)
	assert.Len(t, state.Flagged("thread-1"), 1)
}

func TestStateFlaggedReturnsCopy(t *testing.T) {
	state := NewState()
	state.RecordFlagged("thread-1", FlaggedResponse{MessageID: "msg-1"})

	got := state.Flagged("thread-1")
	got[0].MessageID = "tampered"
	assert.Equal(t, "msg-1", state.Flagged("thread-1")[0].MessageID)

	assert.Nil(t, state.Flagged("thread-unknown"))
}

func TestStateConcurrentActivation(t *testing.T) {
	state := NewState()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			state.Activate("thread-1", "urgent", testInstant)
			state.RecordFlagged("thread-1", FlaggedResponse{MessageID: "m"})
		}()
	}
	wg.Wait()

	assert.True(t, state.Active())
	assert.Len(t, state.Flagged("thread-1"), 32)
}

func TestHandlerStatus(t *testing.T) {
	state := NewState()
	state.Activate("thread-4", "stroke signs", testInstant)
	handler := NewHandler(state, clock.NewFixed(testInstant), logging.Default())

	rec := httptest.NewRecorder()
	handler.Status(rec, httptest.NewRequest(http.MethodGet, "/emergency/status", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var snap Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.True(t, snap.EmergencyActive)
	assert.Equal(t, "thread-4", *snap.LastThreadID)
}

func TestHandlerStatusInactiveHasNullFields(t *testing.T) {
	handler := NewHandler(NewState(), clock.NewFixed(testInstant), logging.Default())

	rec := httptest.NewRecorder()
	handler.Status(rec, httptest.NewRequest(http.MethodGet, "/emergency/status", nil))

	assert.JSONEq(t, `{"emergency_active":false,"timestamp":null,"last_thread_id":null,"message":null}`, rec.Body.String())
}

func TestHandlerResetRendersClinicTime(t *testing.T) {
	// A UTC clock still yields a clinic-offset timestamp in the response.
	utcInstant := time.Date(2025, 9, 28, 14, 0, 0, 0, time.UTC)
	handler := NewHandler(NewState(), clock.NewFixed(utcInstant), logging.Default())

	rec := httptest.NewRecorder()
	handler.Reset(rec, httptest.NewRequest(http.MethodPost, "/emergency/reset", nil))

	var resp ResetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2025-09-28T10:00:00-04:00", resp.Timestamp)
}

func TestHandlerReset(t *testing.T) {
	state := NewState()
	state.Activate("thread-4", "urgent", testInstant)
	handler := NewHandler(state, clock.NewFixed(testInstant), logging.Default())

	rec := httptest.NewRecorder()
	handler.Reset(rec, httptest.NewRequest(http.MethodPost, "/emergency/reset", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp ResetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "emergency_state_reset", resp.Status)
	assert.Equal(t, "2025-09-28T10:00:00-04:00", resp.Timestamp)
	assert.False(t, state.Active())
}
