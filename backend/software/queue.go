package software

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/blit/gpucore"
)

type submission struct {
	value uint64
	cmds  []command
	label string
}

// Queue executes submitted command lists on the CPU.
//
// In automatic mode a submission executes and signals immediately. In
// manual mode submissions stay pending until Signal or SignalAll executes
// them, which lets tests hold a fence open and observe the engine block.
type Queue struct {
	exec  *executor
	trace *Trace

	mu        sync.Mutex
	manual    bool
	lost      bool
	submitted uint64
	completed uint64
	pending   []submission
	changed   chan struct{}
	onWait    func(value uint64)
}

func newQueue(exec *executor, trace *Trace, manual bool) *Queue {
	return &Queue{exec: exec, trace: trace, manual: manual, changed: make(chan struct{})}
}

// Submit enqueues a closed command list.
func (q *Queue) Submit(cl gpucore.CommandList, value uint64) error {
	list, ok := cl.(*CommandList)
	if !ok {
		return fmt.Errorf("software: foreign command list %T", cl)
	}
	if !list.closed {
		return fmt.Errorf("software: submitting open command list %q", list.label)
	}

	q.mu.Lock()
	if q.lost {
		q.mu.Unlock()
		return gpucore.ErrDeviceLost
	}
	if value <= q.submitted {
		q.mu.Unlock()
		return fmt.Errorf("software: fence value %d not above %d", value, q.submitted)
	}
	q.submitted = value
	q.pending = append(q.pending, submission{value: value, cmds: list.snapshot(), label: list.label})
	q.trace.add(EventSubmit, value, list.label)
	manual := q.manual
	q.mu.Unlock()

	if !manual {
		q.Signal(value)
	}
	return nil
}

// Completed returns the highest signalled value.
func (q *Queue) Completed() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.completed
}

// Submitted returns the highest submitted value.
func (q *Queue) Submitted() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.submitted
}

// Signal executes every pending submission up to value and signals it.
// Values above the last submission are clamped to it.
func (q *Queue) Signal(value uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if value > q.submitted {
		value = q.submitted
	}
	n := 0
	for _, s := range q.pending {
		if s.value > value {
			break
		}
		q.exec.run(s.cmds)
		q.completed = s.value
		q.trace.add(EventSignal, s.value, s.label)
		n++
	}
	if n == 0 {
		return
	}
	q.pending = q.pending[n:]
	close(q.changed)
	q.changed = make(chan struct{})
}

// SignalAll executes and signals every pending submission.
func (q *Queue) SignalAll() {
	q.Signal(q.Submitted())
}

// OnWait registers fn to run whenever Wait is about to block on value.
// fn runs on the waiting goroutine and may call Signal.
func (q *Queue) OnWait(fn func(value uint64)) {
	q.mu.Lock()
	q.onWait = fn
	q.mu.Unlock()
}

// SetManual switches between manual and automatic completion. Switching
// to automatic signals everything pending.
func (q *Queue) SetManual(manual bool) {
	q.mu.Lock()
	q.manual = manual
	q.mu.Unlock()
	if !manual {
		q.SignalAll()
	}
}

// Lose marks the device lost: pending work never completes and later
// submissions fail with gpucore.ErrDeviceLost.
func (q *Queue) Lose() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.lost = true
	q.pending = nil
	close(q.changed)
	q.changed = make(chan struct{})
}

// Wait blocks until value is signalled, timeout elapses or ctx is done.
func (q *Queue) Wait(ctx context.Context, value uint64, timeout time.Duration) (bool, error) {
	q.mu.Lock()
	if q.completed >= value {
		q.mu.Unlock()
		return true, nil
	}
	hook := q.onWait
	q.mu.Unlock()

	if hook != nil {
		hook(value)
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	for {
		q.mu.Lock()
		if q.completed >= value {
			q.mu.Unlock()
			return true, nil
		}
		if q.lost {
			q.mu.Unlock()
			return false, gpucore.ErrDeviceLost
		}
		changed := q.changed
		q.mu.Unlock()

		select {
		case <-changed:
		case <-expired:
			return false, nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}
