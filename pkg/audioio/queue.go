package audioio

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultQueueCapacity is the default number of queued chunks.
const DefaultQueueCapacity = 128

// DefaultPollInterval is how long consumers sleep on an empty queue.
const DefaultPollInterval = 10 * time.Millisecond

// Queue is a fixed-capacity FIFO of PCM chunks. It never blocks: Enqueue on
// a full queue drops the chunk and Dequeue on an empty queue reports false.
//
// Each slot owns a byte buffer that is reused across chunks, so a queue in
// steady state does not allocate.
type Queue struct {
	mu    sync.Mutex
	slots [][]byte
	head  int
	tail  int
	count int

	dropped  atomic.Int64
	enqueued atomic.Int64
}

// NewQueue returns a queue holding at most capacity chunks.
// A non-positive capacity selects DefaultQueueCapacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{slots: make([][]byte, capacity)}
}

// Enqueue copies chunk into the next free slot. It returns false, and counts
// a drop, when the queue is full.
func (q *Queue) Enqueue(chunk []byte) bool {
	q.mu.Lock()
	if q.count == len(q.slots) {
		q.mu.Unlock()
		q.dropped.Add(1)
		return false
	}
	q.slots[q.tail] = append(q.slots[q.tail][:0], chunk...)
	q.tail = (q.tail + 1) % len(q.slots)
	q.count++
	q.mu.Unlock()

	q.enqueued.Add(1)
	return true
}

// Dequeue copies the oldest chunk into dst (reusing its capacity) and
// returns it. It returns dst[:0], false when the queue is empty.
func (q *Queue) Dequeue(dst []byte) ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return dst[:0], false
	}
	dst = append(dst[:0], q.slots[q.head]...)
	q.head = (q.head + 1) % len(q.slots)
	q.count--
	return dst, true
}

// Len returns the number of queued chunks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return len(q.slots)
}

// Clear discards all queued chunks, keeping slot buffers for reuse.
// It returns the number of chunks discarded.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.count
	q.head, q.tail, q.count = 0, 0, 0
	return n
}

// Reset discards all queued chunks and releases slot buffers.
func (q *Queue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range q.slots {
		q.slots[i] = nil
	}
	q.head, q.tail, q.count = 0, 0, 0
}

// Dropped returns the number of chunks rejected because the queue was full.
func (q *Queue) Dropped() int64 {
	return q.dropped.Load()
}

// Enqueued returns the number of chunks accepted.
func (q *Queue) Enqueued() int64 {
	return q.enqueued.Load()
}
