package software

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/blit/backend"
	"github.com/gogpu/blit/gpucore"
	"github.com/gogpu/blit/internal/parallel"
)

// Default swapchain settings.
const (
	DefaultWidth   = 640
	DefaultHeight  = 480
	DefaultBuffers = 2
)

func init() {
	backend.Register(backend.BackendSoftware, func(cfg backend.Config) (backend.Substrate, error) {
		return New(WithSize(cfg.Width, cfg.Height), WithBuffers(cfg.Buffers), WithWorkers(cfg.Workers))
	})
}

// Option configures a Substrate.
type Option func(*options)

type options struct {
	width, height int
	buffers       int
	manual        bool
	workers       int
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

// WithManualCompletion makes the queue hold every submission until the
// caller signals it with Queue.Signal or Queue.SignalAll.
func WithManualCompletion() Option {
	return func(o *options) {
		o.manual = true
	}
}

// WithWorkers composites on n goroutines. Values below 2 composite on the
// queue's goroutine, which is the default.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// Substrate executes blit work on the CPU.
//
// It is deterministic and needs no GPU, which makes it the reference for
// the native substrate and the default in tests.
type Substrate struct {
	trace *Trace
	dev   *Device
	queue *Queue
	sc    *Swapchain
	pool  *parallel.Pool
}

// New creates a software substrate.
func New(opts ...Option) (*Substrate, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	trace := &Trace{}
	dev := newDevice(trace)
	sc, err := newSwapchain(dev, trace, o.buffers, o.width, o.height)
	if err != nil {
		return nil, fmt.Errorf("software: create swapchain: %w", err)
	}
	var pool *parallel.Pool
	if o.workers > 1 {
		pool = parallel.NewPool(o.workers)
	}
	s := &Substrate{
		trace: trace,
		dev:   dev,
		queue: newQueue(newExecutor(dev, trace, pool), trace, o.manual),
		sc:    sc,
		pool:  pool,
	}
	slogger().Debug("software: substrate created",
		"width", o.width, "height", o.height, "buffers", o.buffers,
		"manual", o.manual, "workers", pool.Workers())
	return s, nil
}

// Name returns "software".
func (s *Substrate) Name() string { return backend.BackendSoftware }

// Device returns the device.
func (s *Substrate) Device() gpucore.Device { return s.dev }

// Queue returns the queue.
func (s *Substrate) Queue() gpucore.Queue { return s.queue }

// Swapchain returns the swapchain.
func (s *Substrate) Swapchain() gpucore.Swapchain { return s.sc }

// SoftwareDevice returns the concrete device.
func (s *Substrate) SoftwareDevice() *Device { return s.dev }

// SoftwareQueue returns the concrete queue, which tests use to control
// fence completion.
func (s *Substrate) SoftwareQueue() *Queue { return s.queue }

// SoftwareSwapchain returns the concrete swapchain.
func (s *Substrate) SoftwareSwapchain() *Swapchain { return s.sc }

// Trace returns the activity trace.
func (s *Substrate) Trace() *Trace { return s.trace }

// SetLogger sets the logger used by the software substrate.
func (s *Substrate) SetLogger(l *slog.Logger) { setLogger(l) }

// Close releases every resource.
func (s *Substrate) Close() error {
	s.pool.Close()
	s.sc.release()
	s.dev.release()
	return nil
}
