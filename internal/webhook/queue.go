package webhook

import (
	"sync"

	"github.com/careinbox/careinbox/pkg/logging"
)

const defaultQueueBuffer = 128

// threadQueues serializes work per conversation thread. Deliveries for the
// same thread run in acceptance order on a dedicated goroutine; different
// threads proceed independently.
type threadQueues struct {
	mu     sync.Mutex
	buffer int
	queues map[string]chan func()
	wg     sync.WaitGroup
	closed bool
	logger *logging.Logger
}

func newThreadQueues(buffer int, logger *logging.Logger) *threadQueues {
	if buffer <= 0 {
		buffer = defaultQueueBuffer
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &threadQueues{
		buffer: buffer,
		queues: make(map[string]chan func()),
		logger: logger,
	}
}

// Enqueue schedules fn on the thread's queue. It returns false when the
// queue is full or the dispatcher is shutting down; the delivery is
// dropped rather than blocking the webhook handler.
func (q *threadQueues) Enqueue(threadID string, fn func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	ch, ok := q.queues[threadID]
	if !ok {
		ch = make(chan func(), q.buffer)
		q.queues[threadID] = ch
		q.wg.Add(1)
		go q.drain(threadID, ch)
	}

	// The send stays under the lock: Close also closes channels under it,
	// so a racing Close can never turn this into a send on a closed channel.
	select {
	case ch <- fn:
		return true
	default:
		q.logger.Warn("thread queue full, dropping delivery", "thread_id", threadID)
		return false
	}
}

func (q *threadQueues) drain(threadID string, ch chan func()) {
	defer q.wg.Done()
	for fn := range ch {
		fn()
	}
}

// Close stops accepting work and waits for in-flight deliveries to finish.
func (q *threadQueues) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	for _, ch := range q.queues {
		close(ch)
	}
	q.mu.Unlock()
	q.wg.Wait()
}
