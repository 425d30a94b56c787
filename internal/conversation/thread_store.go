package conversation

import "sync"

// ThreadStore keeps per-thread message history in memory for the process
// lifetime. Histories are never destroyed; a thread's context grows until
// the process exits and is rebuilt from scratch after a restart.
type ThreadStore struct {
	mu      sync.RWMutex
	threads map[string][]ChatMessage
}

// NewThreadStore creates an empty store.
func NewThreadStore() *ThreadStore {
	return &ThreadStore{
		threads: make(map[string][]ChatMessage),
	}
}

// History returns a copy of the thread's message history, empty for
// unknown threads.
func (s *ThreadStore) History(threadID string) []ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.threads[threadID]
	out := make([]ChatMessage, len(history))
	copy(out, history)
	return out
}

// Replace swaps in the full updated history for a thread after an agent
// run.
func (s *ThreadStore) Replace(threadID string, history []ChatMessage) {
	stored := make([]ChatMessage, len(history))
	copy(stored, history)
	s.mu.Lock()
	s.threads[threadID] = stored
	s.mu.Unlock()
}

// Len returns the number of tracked threads.
func (s *ThreadStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.threads)
}
