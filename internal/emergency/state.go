// Package emergency tracks the clinic-wide human-review flag and the log
// of responses the agent refused to send.
package emergency

import (
	"sync"
	"time"
)

const timestampLayout = "2006-01-02T15:04:05-07:00"

// Snapshot is the externally visible emergency state.
type Snapshot struct {
	EmergencyActive bool    `json:"emergency_active"`
	Timestamp       *string `json:"timestamp"`
	LastThreadID    *string `json:"last_thread_id"`
	Message         *string `json:"message"`
}

// FlaggedResponse records a reply the agent withheld because it flagged
// the thread for human review.
type FlaggedResponse struct {
	Timestamp string `json:"timestamp"`
	MessageID string `json:"message_id"`
	EventID   string `json:"event_id"`
	Message   string `json:"message"`
}

// State holds the emergency flag plus per-thread flagged responses. All
// methods are safe for concurrent use.
type State struct {
	mu       sync.Mutex
	active   bool
	at       time.Time
	threadID string
	message  string
	flagged  map[string][]FlaggedResponse
}

func NewState() *State {
	return &State{flagged: make(map[string][]FlaggedResponse)}
}

// Activate raises the flag. Later activations overwrite the snapshot so
// staff always see the most recent incident.
func (s *State) Activate(threadID, message string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = true
	s.at = now
	s.threadID = threadID
	s.message = message
}

// RecordFlagged appends a withheld response to the thread's review log.
func (s *State) RecordFlagged(threadID string, resp FlaggedResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flagged[threadID] = append(s.flagged[threadID], resp)
}

// Reset clears the flag. Flagged-response logs survive a reset so staff
// can still audit what was withheld.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
	s.at = time.Time{}
	s.threadID = ""
	s.message = ""
}

// Snapshot returns the current state. Inactive snapshots carry null
// timestamp, thread id, and message.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return Snapshot{}
	}
	ts := s.at.Format(timestampLayout)
	thread := s.threadID
	msg := s.message
	return Snapshot{
		EmergencyActive: true,
		Timestamp:       &ts,
		LastThreadID:    &thread,
		Message:         &msg,
	}
}

// Flagged returns a copy of the withheld responses for a thread.
func (s *State) Flagged(threadID string) []FlaggedResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.flagged[threadID]
	if len(entries) == 0 {
		return nil
	}
	out := make([]FlaggedResponse, len(entries))
	copy(out, entries)
	return out
}

// Active reports whether the flag is currently raised.
func (s *State) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}
