package backend

import (
	"errors"

	"github.com/gogpu/blit/gpucore"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not available.
	ErrBackendNotAvailable = errors.New("backend: not available")
)

// Backend name constants.
const (
	// BackendSoftware is the name of the CPU substrate.
	BackendSoftware = "software"
	// BackendNative is the name of the Pure Go GPU substrate (gogpu/wgpu).
	BackendNative = "native"
)

// Config is passed to substrate factories.
type Config struct {
	// Width and Height size the swapchain. Zero selects the factory default.
	Width, Height int

	// Buffers is the number of swapchain back buffers. Zero selects 2.
	Buffers int

	// Workers is the number of CPU goroutines a substrate may use for
	// per-pixel work. Substrates that run on a GPU ignore it.
	Workers int
}

// Substrate is the set of GPU collaborators an engine runs on.
type Substrate = gpucore.Substrate

// Factory opens a substrate.
type Factory func(cfg Config) (Substrate, error)
