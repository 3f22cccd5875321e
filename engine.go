package blit

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/gogpu/blit/backend"
	"github.com/gogpu/blit/gpucore"
	"github.com/gogpu/blit/internal/batch"
	"github.com/gogpu/blit/internal/cache"
	"github.com/gogpu/blit/internal/frame"
	"github.com/gogpu/blit/internal/remap"
	"github.com/gogpu/blit/internal/sprite"
	"github.com/gogpu/blit/internal/surface"
)

// Default surface size.
const (
	DefaultWidth  = 640
	DefaultHeight = 480
)

// remapTableCacheSize bounds the provider tables kept between frames.
const remapTableCacheSize = 256

// Rect is a pixel rectangle; Max is exclusive.
type Rect = image.Rectangle

// Engine batches blit requests and drives a substrate with several frames
// in flight.
//
// An Engine is used from a single goroutine. Enqueue methods never block
// and return nothing; a request the engine cannot draw is dropped and
// counted in Stats. Present, Resize, WaitForGPU and CopyRegionToHostMemory
// may block on the GPU.
type Engine struct {
	sub           gpucore.Substrate
	dev           gpucore.Device
	opts          options
	ownsSubstrate bool

	ring    *frame.Ring
	queue   *batch.Queue
	sprites *sprite.Table
	surface *surface.Manager
	palette surface.Palette
	rec     recorder

	// provider tables by palette, nil without a RemapProvider
	remapTables *cache.Cache[PaletteID, []byte]

	frames  uint64
	dropped DropStats
	warned  [dropReasons]bool
	err     error
	closed  bool
}

// New creates an engine on sub. The caller keeps ownership of sub and
// closes it after the engine.
func New(sub gpucore.Substrate, opts ...Option) (*Engine, error) {
	if sub == nil {
		return nil, errors.New("blit: nil substrate")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	width, height := o.width, o.height
	if width == 0 && height == 0 {
		width, height = DefaultWidth, DefaultHeight
	}

	e := &Engine{
		sub:     sub,
		dev:     sub.Device(),
		opts:    o,
		queue:   batch.NewQueue(o.batchCapacity),
		sprites: sprite.NewTable(sub.Device(), sprite.Config{MaxSprites: o.maxSprites, Budget: o.spriteBudget}),
		surface: surface.NewManager(sub.Device(), sub.Swapchain()),
	}
	e.rec.e = e
	if o.remapProvider != nil {
		e.remapTables = cache.New[PaletteID, []byte](remapTableCacheSize)
	}

	if _, err := e.surface.Resize(width, height, true, nil); err != nil {
		if errors.Is(err, surface.ErrInvalidSize) {
			return nil, fmt.Errorf("blit: %w", err)
		}
		return nil, fmt.Errorf("blit: create surface: %w", &fatalError{kind: ErrSurfaceCreation, cause: err})
	}

	slots := make([]*frame.Slot, o.slots)
	for i := range slots {
		s, err := e.newSlot(i)
		if err != nil {
			e.releaseSlots(slots)
			e.surface.Close()
			return nil, fmt.Errorf("blit: create frame slot %d: %w", i, err)
		}
		slots[i] = s
	}
	ring, err := frame.NewRing(sub.Queue(), slots, o.fenceTimeout)
	if err != nil {
		e.releaseSlots(slots)
		e.surface.Close()
		return nil, fmt.Errorf("blit: %w", err)
	}
	e.ring = ring
	surface.MarkDirty(slots)
	ring.OnAcquire(e.onAcquire)
	if err := ring.Start(o.ctx); err != nil {
		e.releaseSlots(slots)
		e.surface.Close()
		return nil, fmt.Errorf("blit: start frame ring: %w", err)
	}

	trackSubstrate(sub)
	Logger().Info("blit: engine created",
		"substrate", sub.Name(),
		"width", width, "height", height,
		"slots", o.slots,
		"batch_capacity", e.queue.Cap(),
		"draw_path", o.drawPath.String(),
		"shader_mode", o.shaderMode.String())
	return e, nil
}

// Open creates the substrate named by cfg.Backend, or the best registered
// one when it is empty, and an engine on it. Options in opts override the
// ones derived from cfg. The engine owns the substrate and closes it.
func Open(cfg *Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfgOpts, err := cfg.Options()
	if err != nil {
		return nil, err
	}

	var sub backend.Substrate
	if cfg.Backend == "" {
		sub, err = backend.Default(cfg.BackendConfig())
	} else {
		sub, err = backend.Get(cfg.Backend, cfg.BackendConfig())
	}
	if err != nil {
		return nil, fmt.Errorf("blit: open substrate: %w", err)
	}

	e, err := New(sub, append(cfgOpts, opts...)...)
	if err != nil {
		_ = sub.Close()
		return nil, err
	}
	e.ownsSubstrate = true
	return e, nil
}

func (e *Engine) newSlot(i int) (*frame.Slot, error) {
	arena, err := remap.New(e.opts.remapCapacity, e.opts.verifyRemap)
	if err != nil {
		return nil, err
	}
	list, err := e.dev.CreateCommandList(fmt.Sprintf("slot_%d", i))
	if err != nil {
		return nil, fmt.Errorf("create command list: %w", err)
	}
	s := frame.NewSlot(i, list, arena)
	s.Remap, err = e.dev.CreateBuffer(&gpucore.BufferDescriptor{
		Label: fmt.Sprintf("remap_%d", i),
		Size:  uint64(arena.Capacity()),
		Usage: gpucore.BufferUsageStorage | gpucore.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create remap buffer: %w", err)
	}
	s.Palette, err = e.dev.CreateBuffer(&gpucore.BufferDescriptor{
		Label: fmt.Sprintf("palette_%d", i),
		Size:  gpucore.PaletteSize,
		Usage: gpucore.BufferUsageStorage | gpucore.BufferUsageCopyDst,
	})
	if err != nil {
		e.dev.DestroyBuffer(s.Remap)
		return nil, fmt.Errorf("create palette buffer: %w", err)
	}
	return s, nil
}

func (e *Engine) releaseSlots(slots []*frame.Slot) {
	for _, s := range slots {
		if s == nil {
			continue
		}
		e.dev.DestroyBuffer(s.Remap)
		e.dev.DestroyBuffer(s.Palette)
	}
}

func (e *Engine) slots() []*frame.Slot {
	out := make([]*frame.Slot, e.ring.Len())
	for i := range out {
		out[i] = e.ring.Slot(i)
	}
	return out
}

// onAcquire prepares a slot whose previous submission has completed.
func (e *Engine) onAcquire(s *frame.Slot) error {
	if n := e.sprites.Reclaim(e.sub.Queue().Completed()); n > 0 {
		Logger().Debug("blit: reclaimed sprite textures", "textures", n)
	}
	e.bind(s)
	return nil
}

func (e *Engine) bind(s *frame.Slot) {
	w, h := e.surface.Size()
	s.List.Bind(e.surface.Bindings(s.Palette, s.Remap))
	s.List.SetPassConstants(gpucore.PassConstants{
		Width:      uint16(w),
		Height:     uint16(h),
		FrameIndex: uint32(e.frames),
	})
}

// usable returns the error every call must report, if any.
func (e *Engine) usable() error {
	if e.closed {
		return ErrClosed
	}
	return e.err
}

// fail makes err sticky. Errors implying a fatal condition are tagged with
// the matching public sentinel.
func (e *Engine) fail(err error) error {
	if e.err != nil {
		return e.err
	}
	if kind := classify(err); kind != nil {
		err = &fatalError{kind: kind, cause: err}
	}
	e.err = err
	Logger().Error("blit: engine failed", "err", err)
	return err
}

// Err returns the sticky error, or nil while the engine is healthy.
func (e *Engine) Err() error { return e.err }

// Substrate returns the substrate the engine drives.
func (e *Engine) Substrate() gpucore.Substrate { return e.sub }

// Size returns the current surface size.
func (e *Engine) Size() (width, height int) { return e.surface.Size() }

// UpdatePalette sets palette entries starting at first. Every frame slot
// picks up the change before its next draw.
func (e *Engine) UpdatePalette(colours []color.RGBA, first int) {
	if e.closed {
		return
	}
	e.palette.Update(colours, first, e.slots())
}

// Close waits for submitted work and releases every resource. It returns
// nil when called again.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true

	var errs []error
	if e.err == nil {
		if err := e.ring.WaitIdle(e.opts.ctx); err != nil {
			errs = append(errs, fmt.Errorf("blit: wait for GPU: %w", err))
		}
	}
	e.queue.Reset()
	e.sprites.Close()
	e.releaseSlots(e.slots())
	e.surface.Close()
	untrackSubstrate(e.sub)
	if e.ownsSubstrate {
		if err := e.sub.Close(); err != nil {
			errs = append(errs, fmt.Errorf("blit: close substrate: %w", err))
		}
	}
	return errors.Join(errs...)
}
