package blit

import (
	"context"
	"time"

	"github.com/gogpu/blit/gpucore"
	"github.com/gogpu/blit/internal/batch"
	"github.com/gogpu/blit/internal/frame"
	"github.com/gogpu/blit/internal/remap"
	"github.com/gogpu/blit/internal/sprite"
)

// DrawPath selects how a flushed batch is recorded.
type DrawPath uint8

const (
	// DrawPathBatched records one instanced draw per flush.
	DrawPathBatched DrawPath = iota

	// DrawPathPerRequest records one draw per request with a barrier after
	// each. It is slower and exists for debugging ordering problems.
	DrawPathPerRequest
)

// String returns the path name.
func (p DrawPath) String() string {
	if p == DrawPathPerRequest {
		return "per_request"
	}
	return "batched"
}

// PaletteID names a recolouring palette known to the caller.
type PaletteID uint32

// RemapProvider returns the 256-byte remap table of pal, or nil when pal
// has none.
type RemapProvider func(pal PaletteID) []byte

// Option configures an Engine during creation.
//
// Example:
//
//	e, err := blit.New(sub,
//		blit.WithSlots(3),
//		blit.WithShaderMode(gpucore.ShaderModeRemap),
//	)
type Option func(*options)

// options holds optional configuration for Engine creation.
type options struct {
	ctx           context.Context
	slots         int
	remapCapacity int
	fenceTimeout  time.Duration
	batchCapacity int
	drawPath      DrawPath
	shaderMode    gpucore.ShaderMode
	verifyRemap   bool
	maxSprites    int
	spriteBudget  int64
	remapProvider RemapProvider
	width         int
	height        int
}

// defaultOptions returns the default engine options.
func defaultOptions() options {
	return options{
		ctx:           context.Background(),
		slots:         frame.DefaultSlots,
		remapCapacity: remap.DefaultCapacity,
		fenceTimeout:  frame.DefaultFenceTimeout,
		batchCapacity: batch.DefaultCapacity,
		drawPath:      DrawPathBatched,
		shaderMode:    gpucore.ShaderModeRemap,
		verifyRemap:   true,
		maxSprites:    sprite.DefaultMaxSprites,
	}
}

// WithContext sets the context every blocking wait observes.
// Cancelling it aborts the wait in progress and leaves the engine failed
// with the context error.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.ctx = ctx
		}
	}
}

// WithSlots sets the number of frames in flight. Values below 2 are
// raised to 2.
func WithSlots(n int) Option {
	return func(o *options) {
		o.slots = max(n, 2)
	}
}

// WithRemapCapacity sets the per-slot remap arena size in bytes. It must be
// a positive multiple of 256.
func WithRemapCapacity(bytes int) Option {
	return func(o *options) {
		o.remapCapacity = bytes
	}
}

// WithFenceTimeout bounds every fence wait. A timeout is fatal
// (ErrDeviceLost). 0 waits forever.
func WithFenceTimeout(d time.Duration) Option {
	return func(o *options) {
		o.fenceTimeout = max(d, 0)
	}
}

// WithBatchCapacity sets how many requests accumulate before the engine
// flushes on its own.
func WithBatchCapacity(n int) Option {
	return func(o *options) {
		o.batchCapacity = n
	}
}

// WithDrawPath selects batched or per-request recording.
func WithDrawPath(p DrawPath) Option {
	return func(o *options) {
		o.drawPath = p
	}
}

// WithShaderMode selects how Present composites the planes.
func WithShaderMode(m gpucore.ShaderMode) Option {
	return func(o *options) {
		o.shaderMode = m
	}
}

// WithVerifyRemapContent controls whether remap dedup compares table bytes
// on a hash hit. Disabling it trusts the 64-bit hash alone.
func WithVerifyRemapContent(verify bool) Option {
	return func(o *options) {
		o.verifyRemap = verify
	}
}

// WithMaxSprites limits the number of sprite handles.
func WithMaxSprites(n int) Option {
	return func(o *options) {
		o.maxSprites = n
	}
}

// WithSpriteBudget enables sprite eviction once resident sprite texels
// exceed bytes. 0 disables eviction.
func WithSpriteBudget(bytes int64) Option {
	return func(o *options) {
		o.spriteBudget = max(bytes, 0)
	}
}

// WithRemapProvider sets the source of colour mapping tables.
func WithRemapProvider(p RemapProvider) Option {
	return func(o *options) {
		o.remapProvider = p
	}
}

// WithSize sets the initial surface size. The default is DefaultWidth x
// DefaultHeight.
func WithSize(width, height int) Option {
	return func(o *options) {
		o.width, o.height = width, height
	}
}
