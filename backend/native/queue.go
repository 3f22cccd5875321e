//go:build !nogpu

package native

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/blit/gpucore"
)

// waitSlice bounds one HAL fence wait so cancellation is noticed promptly.
const waitSlice = 10 * time.Millisecond

// Queue encodes command lists into compute passes and tracks each
// submission with its own HAL fence. Submissions complete in order.
type Queue struct {
	dev   *Device
	pipes *pipelineSet

	mu        sync.Mutex
	lost      bool
	submitted uint64
	completed uint64
	inflight  []*submission
}

func newQueue(dev *Device, pipes *pipelineSet) *Queue {
	return &Queue{dev: dev, pipes: pipes}
}

// Submit encodes and submits a closed command list.
func (q *Queue) Submit(cl gpucore.CommandList, value uint64) error {
	list, ok := cl.(*CommandList)
	if !ok {
		return fmt.Errorf("native: foreign command list %T", cl)
	}
	if !list.closed {
		return fmt.Errorf("native: submitting open command list %q", list.label)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.lost {
		return gpucore.ErrDeviceLost
	}
	if value <= q.submitted {
		return fmt.Errorf("native: fence value %d not above %d", value, q.submitted)
	}

	device := q.dev.gpu.device
	sub := &submission{device: device, value: value, label: list.label}
	enc := &encoder{dev: q.dev, sub: sub, pipes: q.pipes}
	if err := enc.encode(list.cmds); err != nil {
		sub.release()
		return err
	}
	fence, err := device.CreateFence()
	if err != nil {
		sub.release()
		return fmt.Errorf("native: create fence: %w", err)
	}
	sub.fence = fence

	q.dev.gpu.mu.Lock()
	err = q.dev.gpu.queue.Submit([]hal.CommandBuffer{sub.cmdBuf}, fence, 1)
	q.dev.gpu.mu.Unlock()
	if err != nil {
		sub.release()
		q.lose()
		return fmt.Errorf("%w: submit %q: %v", gpucore.ErrDeviceLost, list.label, err)
	}
	q.submitted = value
	q.inflight = append(q.inflight, sub)
	slogger().Debug("native: submitted", "label", list.label, "value", value, "passes", len(enc.passes))
	return nil
}

// poll retires every submission whose fence has signalled. It waits up to
// timeout for the oldest one. q.mu must be held.
func (q *Queue) poll(timeout time.Duration) error {
	for len(q.inflight) > 0 {
		s := q.inflight[0]
		ok, err := q.dev.gpu.device.Wait(s.fence, 1, timeout)
		if err != nil {
			q.lose()
			return fmt.Errorf("%w: wait %q: %v", gpucore.ErrDeviceLost, s.label, err)
		}
		if !ok {
			return nil
		}
		q.completed = s.value
		s.release()
		q.inflight[0] = nil
		q.inflight = q.inflight[1:]
		timeout = 0
	}
	return nil
}

// lose marks the device lost and drops every pending submission.
// q.mu must be held.
func (q *Queue) lose() {
	if q.lost {
		return
	}
	q.lost = true
	for _, s := range q.inflight {
		s.release()
	}
	q.inflight = nil
	slogger().Error("native: device lost", "submitted", q.submitted, "completed", q.completed)
}

// Completed returns the highest signalled value.
func (q *Queue) Completed() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.lost {
		_ = q.poll(0)
	}
	return q.completed
}

// Submitted returns the highest submitted value.
func (q *Queue) Submitted() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.submitted
}

// Wait blocks until value is signalled, timeout elapses or ctx is done. It
// waits on HAL fences in short slices and checks ctx between them.
func (q *Queue) Wait(ctx context.Context, value uint64, timeout time.Duration) (bool, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
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
		slice := waitSlice
		if !deadline.IsZero() {
			slice = min(slice, max(time.Until(deadline), 0))
		}
		err := q.poll(slice)
		done := q.completed >= value
		idle := len(q.inflight) == 0
		q.mu.Unlock()

		switch {
		case err != nil:
			return false, err
		case done:
			return true, nil
		}
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return false, nil
		}
		if idle {
			// value not submitted yet
			time.Sleep(slice)
		}
	}
}

// release waits briefly for outstanding work and frees its resources.
func (q *Queue) release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.lost {
		_ = q.poll(readbackTimeout)
	}
	for _, s := range q.inflight {
		s.release()
	}
	q.inflight = nil
}
