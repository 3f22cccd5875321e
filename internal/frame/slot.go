package frame

import (
	"fmt"

	"github.com/gogpu/blit/gpucore"
	"github.com/gogpu/blit/internal/remap"
)

// State is the lifecycle state of a frame slot.
type State uint8

// Slot states. A slot cycles Idle → Recording → Submitted → Completed → Idle.
const (
	StateIdle State = iota
	StateRecording
	StateSubmitted
	StateCompleted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateSubmitted:
		return "submitted"
	case StateCompleted:
		return "completed"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Slot is one rotating set of per-frame resources.
//
// Nothing in a slot may be written while the slot is Submitted: the GPU may
// still be reading its arena and buffers.
type Slot struct {
	index int
	state State
	fence uint64

	// List records this slot's work.
	List gpucore.CommandList
	// Arena holds the remap tables uploaded for this slot's frame.
	Arena *remap.Arena
	// Remap is the upload buffer mirrored from Arena.
	Remap gpucore.BufferID
	// Palette is the slot's copy of the palette.
	Palette gpucore.BufferID
	// PaletteDirty is set when Palette lags the host palette.
	PaletteDirty bool
}

// NewSlot creates an idle slot.
func NewSlot(index int, list gpucore.CommandList, arena *remap.Arena) *Slot {
	return &Slot{index: index, List: list, Arena: arena}
}

// Index returns the slot's position in the ring.
func (s *Slot) Index() int { return s.index }

// State returns the slot state.
func (s *Slot) State() State { return s.state }

// Fence returns the token of the slot's last submission, 0 if none.
func (s *Slot) Fence() uint64 { return s.fence }
