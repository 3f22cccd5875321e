package blit

import (
	"errors"
	"fmt"

	"github.com/gogpu/blit/gpucore"
	"github.com/gogpu/blit/internal/frame"
	"github.com/gogpu/blit/internal/remap"
	"github.com/gogpu/blit/internal/sprite"
	"github.com/gogpu/blit/internal/surface"
)

// Fatal errors. Once an engine returns one of these it keeps returning it;
// the caller must Close the engine and create a new one.
var (
	// ErrRemapArenaExhausted means a frame used more distinct remap tables
	// than the per-slot arena holds.
	ErrRemapArenaExhausted = errors.New("blit: remap arena exhausted")

	// ErrSurfaceCreation means the output targets or the swapchain could
	// not be created.
	ErrSurfaceCreation = errors.New("blit: surface creation failed")

	// ErrDeviceLost means the GPU stopped signalling fences or reported
	// device loss.
	ErrDeviceLost = errors.New("blit: device lost")
)

// Other errors.
var (
	// ErrClosed is returned by calls on a closed engine.
	ErrClosed = errors.New("blit: engine closed")

	// ErrInvalidSize is returned for zero or negative surface sizes.
	ErrInvalidSize = surface.ErrInvalidSize

	// ErrSpriteTableFull is returned when no more sprite handles are left.
	ErrSpriteTableFull = sprite.ErrTableFull
)

// classify maps an internal error onto the fatal sentinel it implies, or
// returns nil when err is not fatal.
func classify(err error) error {
	switch {
	case errors.Is(err, remap.ErrArenaExhausted):
		return ErrRemapArenaExhausted
	case errors.Is(err, surface.ErrTargetCreation):
		return ErrSurfaceCreation
	case errors.Is(err, frame.ErrFenceTimeout), errors.Is(err, gpucore.ErrDeviceLost):
		return ErrDeviceLost
	default:
		return nil
	}
}

// fatalError keeps both the public sentinel and the cause reachable
// through errors.Is.
type fatalError struct {
	kind  error
	cause error
}

func (e *fatalError) Error() string { return fmt.Sprintf("%v: %v", e.kind, e.cause) }

func (e *fatalError) Unwrap() []error { return []error{e.kind, e.cause} }
