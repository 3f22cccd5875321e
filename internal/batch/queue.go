package batch

import (
	"time"

	"github.com/gogpu/blit/gpucore"
)

// DefaultCapacity is the default number of requests held before the owner
// must flush.
const DefaultCapacity = 65536

// Recorder receives a flushed batch.
type Recorder interface {
	// Prepare makes every remap table referenced by the batch resident.
	Prepare() error

	// Record records count packed requests as one batched draw.
	Record(words []uint32, count int) error
}

// Queue is an ordered, append-only list of requests accumulated between
// flush points.
//
// Queue is not safe for concurrent use. Flush is a synchronization point:
// no request may be enqueued while it runs.
type Queue struct {
	requests []Request
	words    []uint32
	capacity int

	stats Stats
	now   func() time.Time
}

// NewQueue creates a queue holding at most capacity requests.
// A capacity <= 0 selects DefaultCapacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	initial := capacity
	if initial > 1024 {
		initial = 1024
	}
	return &Queue{
		requests: make([]Request, 0, initial),
		words:    make([]uint32, 0, initial*gpucore.RequestWords),
		capacity: capacity,
		now:      time.Now,
	}
}

// Enqueue appends r. It returns false without appending when the queue is
// full; the owner must flush and retry.
func (q *Queue) Enqueue(r Request) bool {
	if len(q.requests) >= q.capacity {
		return false
	}
	q.requests = append(q.requests, r)
	return true
}

// Len returns the number of queued requests.
func (q *Queue) Len() int { return len(q.requests) }

// Cap returns the queue capacity.
func (q *Queue) Cap() int { return q.capacity }

// Full reports whether the next Enqueue would fail.
func (q *Queue) Full() bool { return len(q.requests) >= q.capacity }

// Requests returns the queued requests in enqueue order.
// The slice is only valid until the next Enqueue, Flush or Reset.
func (q *Queue) Requests() []Request { return q.requests }

// Reset discards all queued requests without recording them.
func (q *Queue) Reset() {
	q.requests = q.requests[:0]
}

// Flush hands the queued requests to rec as one batch and clears the queue.
// Flushing an empty queue does nothing. On error the queue is left intact.
func (q *Queue) Flush(rec Recorder) (int, error) {
	n := len(q.requests)
	if n == 0 {
		return 0, nil
	}
	start := q.now()

	if err := rec.Prepare(); err != nil {
		return 0, err
	}

	q.words = q.words[:0]
	for i := range q.requests {
		q.words = q.requests[i].AppendWords(q.words)
	}
	if err := rec.Record(q.words, n); err != nil {
		return 0, err
	}

	q.requests = q.requests[:0]
	q.stats.record(n, q.now().Sub(start))
	return n, nil
}

// Stats returns the cumulative flush counters.
func (q *Queue) Stats() Stats { return q.stats }
