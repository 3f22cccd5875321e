package frame

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/blit/gpucore"
)

// DefaultSlots is the default number of frames in flight.
const DefaultSlots = 3

// DefaultFenceTimeout bounds every fence wait unless configured otherwise.
const DefaultFenceTimeout = 5 * time.Second

var (
	// ErrFenceTimeout is returned when the GPU does not signal in time.
	ErrFenceTimeout = errors.New("frame: fence wait timed out")

	// ErrNotRecording is returned when submitting a slot that is not recording.
	ErrNotRecording = errors.New("frame: slot is not recording")
)

// Ring is a fixed ring of frame slots gated by fence tokens.
//
// A slot is only reset after the token of its previous submission has been
// observed as completed. Tokens increase by one per submission, starting
// at 1.
//
// Ring is not safe for concurrent use.
type Ring struct {
	queue   gpucore.Queue
	slots   []*Slot
	current int
	token   uint64
	timeout time.Duration

	onAcquire func(*Slot) error
}

// NewRing creates a ring over slots. None of the slots is current until
// Acquire or Start is called. timeout bounds fence waits; 0 waits forever.
func NewRing(q gpucore.Queue, slots []*Slot, timeout time.Duration) (*Ring, error) {
	if len(slots) < 2 {
		return nil, fmt.Errorf("frame: need at least 2 slots, got %d", len(slots))
	}
	return &Ring{queue: q, slots: slots, timeout: timeout}, nil
}

// OnAcquire registers fn to run after a slot was reset and before it starts
// recording.
func (r *Ring) OnAcquire(fn func(*Slot) error) { r.onAcquire = fn }

// Start acquires slot 0.
func (r *Ring) Start(ctx context.Context) error { return r.Acquire(ctx, 0) }

// Len returns the number of slots.
func (r *Ring) Len() int { return len(r.slots) }

// Slot returns slot i.
func (r *Ring) Slot(i int) *Slot { return r.slots[i] }

// Current returns the recording slot.
func (r *Ring) Current() *Slot { return r.slots[r.current] }

// Index returns the index of the recording slot.
func (r *Ring) Index() int { return r.current }

// LastToken returns the token of the most recent submission.
func (r *Ring) LastToken() uint64 { return r.token }

// Acquire makes slot i current. It blocks until the slot's previous
// submission has completed, then resets the slot's arena and command list.
func (r *Ring) Acquire(ctx context.Context, i int) error {
	s := r.slots[i]
	if s.state == StateSubmitted {
		if err := r.wait(ctx, s.fence); err != nil {
			return err
		}
		s.state = StateCompleted
	}
	s.state = StateIdle

	if s.Arena != nil {
		s.Arena.Reset()
	}
	if s.List != nil {
		if err := s.List.Reset(); err != nil {
			return fmt.Errorf("reset command list %d: %w", i, err)
		}
	}
	r.current = i
	if r.onAcquire != nil {
		if err := r.onAcquire(s); err != nil {
			return err
		}
	}
	s.state = StateRecording
	return nil
}

// Submit closes the current slot's command list and hands it to the queue
// with the next token.
func (r *Ring) Submit() (uint64, error) {
	s := r.Current()
	if s.state != StateRecording {
		return 0, fmt.Errorf("%w: slot %d is %s", ErrNotRecording, s.index, s.state)
	}
	if err := s.List.Close(); err != nil {
		return 0, fmt.Errorf("close command list %d: %w", s.index, err)
	}
	r.token++
	if err := r.queue.Submit(s.List, r.token); err != nil {
		return 0, fmt.Errorf("submit slot %d: %w", s.index, err)
	}
	s.fence = r.token
	s.state = StateSubmitted
	return r.token, nil
}

// Advance moves to the next slot, blocking until its previous use is done.
func (r *Ring) Advance(ctx context.Context) error {
	return r.Acquire(ctx, (r.current+1)%len(r.slots))
}

// Resubmit submits the current slot, waits for it and reopens it for
// recording. The slot's arena keeps its contents.
func (r *Ring) Resubmit(ctx context.Context) error {
	if _, err := r.Submit(); err != nil {
		return err
	}
	s := r.Current()
	if err := r.wait(ctx, s.fence); err != nil {
		return err
	}
	s.state = StateCompleted
	if err := s.List.Reset(); err != nil {
		return fmt.Errorf("reset command list %d: %w", s.index, err)
	}
	if r.onAcquire != nil {
		if err := r.onAcquire(s); err != nil {
			return err
		}
	}
	s.state = StateRecording
	return nil
}

// WaitIdle blocks until every submitted slot has completed.
func (r *Ring) WaitIdle(ctx context.Context) error {
	for _, s := range r.slots {
		if s.state != StateSubmitted {
			continue
		}
		if err := r.wait(ctx, s.fence); err != nil {
			return err
		}
		s.state = StateCompleted
	}
	return nil
}

// Poll marks submitted slots whose token has been signalled as completed.
func (r *Ring) Poll() {
	done := r.queue.Completed()
	for _, s := range r.slots {
		if s.state == StateSubmitted && s.fence <= done {
			s.state = StateCompleted
		}
	}
}

// InFlight polls the queue and returns the number of slots whose
// submission has not completed.
func (r *Ring) InFlight() int {
	r.Poll()
	n := 0
	for _, s := range r.slots {
		if s.state == StateSubmitted {
			n++
		}
	}
	return n
}

func (r *Ring) wait(ctx context.Context, value uint64) error {
	if r.queue.Completed() >= value {
		return nil
	}
	ok, err := r.queue.Wait(ctx, value, r.timeout)
	if err != nil {
		return fmt.Errorf("wait for fence %d: %w", value, err)
	}
	if !ok {
		return fmt.Errorf("%w: value %d after %v", ErrFenceTimeout, value, r.timeout)
	}
	return nil
}
