package conversation

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThreadStoreUnknownThread(t *testing.T) {
	store := NewThreadStore()
	assert.Empty(t, store.History("thread-1"))
	assert.Equal(t, 0, store.Len())
}

func TestThreadStoreReplaceAndHistory(t *testing.T) {
	store := NewThreadStore()
	history := []ChatMessage{
		{Role: ChatRoleUser, Content: "I need an appointment"},
		{Role: ChatRoleAssistant, Content: "Here are some times"},
	}
	store.Replace("thread-1", history)

	got := store.History("thread-1")
	assert.Equal(t, history, got)

	// Mutating the returned slice must not leak into the store.
	got[0].Content = "tampered"
	assert.Equal(t, "I need an appointment", store.History("thread-1")[0].Content)
}

func TestThreadStoreIsolation(t *testing.T) {
	store := NewThreadStore()
	store.Replace("thread-1", []ChatMessage{{Role: ChatRoleUser, Content: "a"}})
	store.Replace("thread-2", []ChatMessage{{Role: ChatRoleUser, Content: "b"}})

	assert.Len(t, store.History("thread-1"), 1)
	assert.Equal(t, "b", store.History("thread-2")[0].Content)
	assert.Equal(t, 2, store.Len())
}

func TestThreadStoreConcurrentAccess(t *testing.T) {
	store := NewThreadStore()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("thread-%d", n%4)
			store.Replace(id, []ChatMessage{{Role: ChatRoleUser, Content: "x"}})
			_ = store.History(id)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 4, store.Len())
}
