//go:build !nogpu

package native

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/gogpu/blit/backend"
	"github.com/gogpu/blit/gpucore"
)

// Default swapchain settings.
const (
	DefaultWidth   = 640
	DefaultHeight  = 480
	DefaultBuffers = 2
)

// ErrNoHAL is returned when a provider does not expose HAL objects.
var ErrNoHAL = errors.New("native: provider does not expose HAL device and queue")

func init() {
	backend.Register(backend.BackendNative, func(cfg backend.Config) (backend.Substrate, error) {
		return Open(WithSize(cfg.Width, cfg.Height), WithBuffers(cfg.Buffers))
	})
}

// Option configures a Substrate.
type Option func(*options)

type options struct {
	width, height int
	buffers       int
	spirv         bool
}

func defaultOptions() options {
	return options{width: DefaultWidth, height: DefaultHeight, buffers: DefaultBuffers}
}

// WithSize sets the initial swapchain size. Non-positive values keep the
// default.
func WithSize(width, height int) Option {
	return func(o *options) {
		if width > 0 && height > 0 {
			o.width, o.height = width, height
		}
	}
}

// WithBuffers sets the number of back buffers. Values below 2 keep the
// default.
func WithBuffers(n int) Option {
	return func(o *options) {
		if n >= 2 {
			o.buffers = n
		}
	}
}

// WithSPIRV compiles the kernels to SPIR-V with naga instead of handing
// WGSL to the HAL.
func WithSPIRV() Option {
	return func(o *options) {
		o.spirv = true
	}
}

// Substrate executes blit work on a GPU through wgpu HAL.
type Substrate struct {
	gpu   *gpu
	dev   *Device
	queue *Queue
	sc    *Swapchain
	pipes *pipelineSet

	// owned only when opened standalone
	instance hal.Instance
	owned    bool
	adapter  string
}

// NewFromHAL creates a substrate on a device and queue owned by the
// caller. Close leaves them alive.
func NewFromHAL(device hal.Device, queue hal.Queue, opts ...Option) (*Substrate, error) {
	if device == nil || queue == nil {
		return nil, fmt.Errorf("native: nil HAL device or queue")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	g := &gpu{device: device, queue: queue}
	s := &Substrate{gpu: g, dev: newDevice(g)}
	if err := s.dev.createDummies(); err != nil {
		s.dev.release()
		return nil, err
	}
	pipes, err := newPipelineSet(device, o.spirv)
	if err != nil {
		s.dev.release()
		return nil, err
	}
	s.pipes = pipes
	s.queue = newQueue(s.dev, pipes)
	sc, err := newSwapchain(s.dev, o.buffers, o.width, o.height)
	if err != nil {
		pipes.destroy()
		s.dev.release()
		return nil, fmt.Errorf("native: create swapchain: %w", err)
	}
	s.sc = sc
	slogger().Debug("native: substrate created",
		"width", o.width, "height", o.height, "buffers", o.buffers, "spirv", o.spirv)
	return s, nil
}

// NewFromProvider creates a substrate on the device of a host application
// such as gogpu. The provider must also implement HalDevice() any and
// HalQueue() any returning hal.Device and hal.Queue.
func NewFromProvider(provider gpucontext.DeviceProvider, opts ...Option) (*Substrate, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHAL
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok {
		return nil, fmt.Errorf("%w: HalDevice returned %T", ErrNoHAL, hp.HalDevice())
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok {
		return nil, fmt.Errorf("%w: HalQueue returned %T", ErrNoHAL, hp.HalQueue())
	}
	return NewFromHAL(device, queue, opts...)
}

// Open creates a standalone Vulkan device, preferring discrete and
// integrated GPUs, and builds a substrate that owns it.
func Open(opts ...Option) (*Substrate, error) {
	vk, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("%w: vulkan backend not available", backend.ErrBackendNotAvailable)
	}
	instance, err := vk.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("native: create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("%w: no GPU adapters found", backend.ErrBackendNotAvailable)
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("native: open device: %w", err)
	}
	s, err := NewFromHAL(openDev.Device, openDev.Queue, opts...)
	if err != nil {
		openDev.Device.Destroy()
		instance.Destroy()
		return nil, err
	}
	s.instance = instance
	s.owned = true
	s.adapter = selected.Info.Name
	slogger().Info("native: GPU opened", "adapter", s.adapter)
	return s, nil
}

// Name returns "native".
func (s *Substrate) Name() string { return backend.BackendNative }

// Device returns the device.
func (s *Substrate) Device() gpucore.Device { return s.dev }

// Queue returns the queue.
func (s *Substrate) Queue() gpucore.Queue { return s.queue }

// Swapchain returns the swapchain.
func (s *Substrate) Swapchain() gpucore.Swapchain { return s.sc }

// NativeDevice returns the concrete device.
func (s *Substrate) NativeDevice() *Device { return s.dev }

// NativeQueue returns the concrete queue.
func (s *Substrate) NativeQueue() *Queue { return s.queue }

// NativeSwapchain returns the concrete swapchain.
func (s *Substrate) NativeSwapchain() *Swapchain { return s.sc }

// Adapter returns the adapter name of a standalone device, or "" for a
// borrowed one.
func (s *Substrate) Adapter() string { return s.adapter }

// SetLogger sets the logger used by the native substrate.
func (s *Substrate) SetLogger(l *slog.Logger) { setLogger(l) }

// Close waits for outstanding work and releases every resource. A borrowed
// device is left open.
func (s *Substrate) Close() error {
	s.queue.release()
	s.pipes.destroy()
	s.dev.release()
	if s.owned {
		s.gpu.device.Destroy()
		s.instance.Destroy()
		s.owned = false
	}
	return nil
}
