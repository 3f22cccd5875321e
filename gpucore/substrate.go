package gpucore

import (
	"context"
	"image"
	"time"
)

// Device creates, fills and destroys substrate resources.
//
// Writes through Device are visible to work submitted after the call.
// Callers must not write a resource that submitted, uncompleted work still
// reads; the engine guarantees this with per-slot resources.
type Device interface {
	// CreateBuffer creates a buffer.
	CreateBuffer(desc *BufferDescriptor) (BufferID, error)

	// WriteBuffer copies data into a buffer at offset.
	WriteBuffer(id BufferID, offset uint64, data []byte) error

	// DestroyBuffer releases a buffer. Unknown IDs are ignored.
	DestroyBuffer(id BufferID)

	// CreateTexture creates a 2D texture.
	CreateTexture(desc *TextureDescriptor) (TextureID, error)

	// WriteTexture replaces the whole texture contents.
	// bytesPerRow is the row pitch of data.
	WriteTexture(id TextureID, data []byte, bytesPerRow uint32) error

	// ReadTexture copies a region of a completed texture into dst.
	// RGBA8 textures are read as packed RGBA, R8 textures as one byte per pixel.
	ReadTexture(id TextureID, rect image.Rectangle, dst []byte, pitch int) error

	// DestroyTexture releases a texture. Unknown IDs are ignored.
	DestroyTexture(id TextureID)

	// SetSpriteDescriptor points sprite descriptor slot at a texture.
	// InvalidID clears the slot.
	SetSpriteDescriptor(slot uint32, id TextureID) error

	// CreateCommandList creates a command list in the recording state.
	CreateCommandList(label string) (CommandList, error)
}

// CommandList records blit work for one frame slot.
//
// Methods other than Reset and Close record commands; they do not execute
// anything until the list is submitted. Slices passed to recording methods
// are copied, so callers may reuse them.
type CommandList interface {
	// Reset discards recorded commands and releases per-recording
	// resources. It must only be called after the list's last submission
	// has completed.
	Reset() error

	// Bind sets the resources used by subsequent draws and dispatches.
	Bind(b Bindings)

	// SetPassConstants sets the per-flush constants.
	SetPassConstants(c PassConstants)

	// DrawBatch records one instanced draw with one instance per request.
	// words holds count packed requests of RequestWords each.
	DrawBatch(words []uint32, count int)

	// Draw records a single-request draw.
	Draw(words []uint32)

	// Dispatch records a compute dispatch over a groupsX x groupsY grid.
	Dispatch(k Kernel, args ScrollArgs, groupsX, groupsY uint32)

	// Barrier records a full memory barrier between prior and later work.
	Barrier()

	// Composite records the final pass into a back buffer.
	Composite(target TextureID, mode ShaderMode)

	// Close ends recording. A closed list can be submitted.
	Close() error
}

// Queue executes command lists and signals completion.
type Queue interface {
	// Submit enqueues a closed command list. The queue signals value once the
	// list has finished executing. Values must increase monotonically.
	Submit(cl CommandList, value uint64) error

	// Completed returns the highest signalled value.
	Completed() uint64

	// Wait blocks until value has been signalled, the timeout elapses or ctx
	// is cancelled. It returns false on timeout. A zero timeout waits without
	// bound.
	Wait(ctx context.Context, value uint64, timeout time.Duration) (bool, error)
}

// Swapchain is the presentable multi-buffered surface.
type Swapchain interface {
	// BufferCount returns the number of back buffers.
	BufferCount() int

	// CurrentIndex returns the back buffer to render into.
	CurrentIndex() int

	// BackBuffer returns the texture of back buffer index.
	BackBuffer(index int) TextureID

	// Resize recreates the back buffers. The caller guarantees no submitted
	// work still references them.
	Resize(width, height int) error

	// Present shows the current back buffer and advances CurrentIndex.
	Present() error
}

// Substrate bundles the collaborators an engine runs on.
type Substrate interface {
	// Name returns the substrate identifier (e.g. "software", "native").
	Name() string

	Device() Device
	Queue() Queue
	Swapchain() Swapchain

	// Close releases all substrate resources.
	Close() error
}
