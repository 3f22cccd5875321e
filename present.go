package blit

import (
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/blit/gpucore"
	"github.com/gogpu/blit/internal/frame"
	"github.com/gogpu/blit/internal/remap"
	"github.com/gogpu/blit/internal/surface"
)

// recorder records flushed batches into the current slot.
type recorder struct{ e *Engine }

func (r *recorder) Prepare() error {
	e := r.e
	s := e.ring.Current()
	if off, data := s.Arena.Dirty(); len(data) > 0 {
		if err := e.dev.WriteBuffer(s.Remap, uint64(off), data); err != nil {
			return fmt.Errorf("upload remap tables: %w", err)
		}
		s.Arena.MarkUploaded()
	}
	if _, err := e.palette.Upload(e.dev, s); err != nil {
		return fmt.Errorf("upload palette: %w", err)
	}
	return nil
}

func (r *recorder) Record(words []uint32, count int) error {
	e := r.e
	l := e.ring.Current().List
	if e.opts.drawPath == DrawPathPerRequest {
		for i := 0; i < count; i++ {
			l.Draw(words[i*gpucore.RequestWords : (i+1)*gpucore.RequestWords])
			l.Barrier()
		}
		return nil
	}
	l.DrawBatch(words, count)
	return nil
}

// Flush records every queued request into the current frame. Nothing is
// submitted until Present.
func (e *Engine) Flush() error {
	if err := e.usable(); err != nil {
		return err
	}
	return e.flush()
}

func (e *Engine) flush() error {
	start := time.Now()
	n, err := e.queue.Flush(&e.rec)
	if err != nil {
		return e.fail(err)
	}
	if n > 0 {
		ms := max(time.Since(start).Seconds()*1000, 1e-3)
		Logger().Debug("blit: flush", "requests", n, "path", e.opts.drawPath.String(),
			"requests_per_ms", float64(n)/ms)
	}
	return nil
}

// Present flushes, composites the planes into the current back buffer,
// submits the frame and moves to the next frame slot. It blocks only when
// that slot's previous frame is still on the GPU.
func (e *Engine) Present() error {
	if err := e.usable(); err != nil {
		return err
	}
	if err := e.flush(); err != nil {
		return err
	}
	s := e.ring.Current()
	if _, err := e.palette.Upload(e.dev, s); err != nil {
		return e.fail(fmt.Errorf("upload palette: %w", err))
	}
	e.surface.RecordComposite(s.List, e.opts.shaderMode)

	token, err := e.ring.Submit()
	if err != nil {
		return e.fail(err)
	}
	if err := e.surface.Present(); err != nil {
		return e.fail(fmt.Errorf("present: %w", err))
	}
	e.frames++
	if n := e.sprites.Trim(token); n > 0 {
		Logger().Debug("blit: evicted sprites", "sprites", n, "fence", token)
	}
	Logger().Debug("blit: frame submitted",
		"frame", e.frames,
		"slot", s.Index(),
		"fence", token,
		"remap_bytes", s.Arena.Used())

	if err := e.ring.Advance(e.opts.ctx); err != nil {
		return e.fail(err)
	}
	return nil
}

// drain submits the current frame and waits for every frame in flight.
// The current slot is recording again afterwards.
func (e *Engine) drain() error {
	if err := e.flush(); err != nil {
		return err
	}
	if err := e.ring.Resubmit(e.opts.ctx); err != nil {
		return e.fail(err)
	}
	if err := e.ring.WaitIdle(e.opts.ctx); err != nil {
		return e.fail(err)
	}
	return nil
}

// Resize changes the surface size. Every frame in flight completes before
// the old targets are destroyed. It reports whether anything was
// recreated; an unchanged size is a no-op unless force is set.
func (e *Engine) Resize(width, height int, force bool) (bool, error) {
	if err := e.usable(); err != nil {
		return false, err
	}
	changed, err := e.surface.Resize(width, height, force, e.drain)
	switch {
	case err == nil:
	case errors.Is(err, surface.ErrInvalidSize):
		return false, fmt.Errorf("blit: %w", err)
	case e.err != nil:
		return false, e.err
	default:
		return false, e.fail(err)
	}
	if !changed {
		return false, nil
	}

	surface.MarkDirty(e.slots())
	s := e.ring.Current()
	if err := s.List.Reset(); err != nil {
		return false, e.fail(err)
	}
	e.bind(s)
	Logger().Info("blit: surface resized", "width", width, "height", height)
	return true, nil
}

// ScrollBuffer moves the pixels of region by (dx, dy) on both planes.
// Pixels moved in from outside the region keep their previous contents.
// It returns region shrunk by the delta: the part now holding moved pixels.
// Everything else in region needs redrawing.
func (e *Engine) ScrollBuffer(region Rect, dx, dy int) (Rect, error) {
	if err := e.usable(); err != nil {
		return Rect{}, err
	}
	if err := e.flush(); err != nil {
		return Rect{}, err
	}
	steps := surface.PlanScroll(region, e.surface.Bounds(), dx, dy)
	if len(steps) == 0 {
		return region, nil
	}
	surface.RecordScroll(e.ring.Current().List, steps)
	Logger().Debug("blit: scroll", "region", region, "dx", dx, "dy", dy, "dispatches", len(steps))
	return surface.ShrinkDirty(region, dx, dy), nil
}

// CopyRegionToHostMemory submits recorded work, waits for it and copies a
// region of the video plane into dst as packed RGBA rows pitch bytes
// apart.
func (e *Engine) CopyRegionToHostMemory(dst []byte, x, y, width, height, pitch int) error {
	if err := e.usable(); err != nil {
		return err
	}
	if err := e.flush(); err != nil {
		return err
	}
	if err := e.ring.Resubmit(e.opts.ctx); err != nil {
		return e.fail(err)
	}
	if err := e.surface.ReadVideo(dst, x, y, width, height, pitch); err != nil {
		return fmt.Errorf("blit: %w", err)
	}
	return nil
}

// WaitForGPU submits recorded work and blocks until the GPU has finished
// everything submitted so far.
func (e *Engine) WaitForGPU() error {
	if err := e.usable(); err != nil {
		return err
	}
	return e.drain()
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	st := Stats{
		Frames:    e.frames,
		LastFence: e.ring.LastToken(),
		InFlight:  e.ring.InFlight(),
		Pending:   e.queue.Len(),
		Batch:     e.queue.Stats(),
		Sprites:   e.sprites.Stats(),
		Dropped:   e.dropped,
	}
	st.Remap = sumArenaStats(e.slots(), e.ring.Current())
	return st
}

func sumArenaStats(slots []*frame.Slot, current *frame.Slot) remap.Stats {
	var sum remap.Stats
	for _, s := range slots {
		a := s.Arena.Stats()
		sum.Writes += a.Writes
		sum.Hits += a.Hits
		sum.Collisions += a.Collisions
		sum.HighWatermark = max(sum.HighWatermark, a.HighWatermark)
	}
	sum.Used = current.Arena.Used()
	return sum
}
