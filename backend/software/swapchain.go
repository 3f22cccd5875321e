package software

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/gogpu/blit/gpucore"
)

// Swapchain is a ring of RGBA8 back buffers in host memory.
type Swapchain struct {
	dev     *Device
	trace   *Trace
	buffers []gpucore.TextureID
	current int
	shown   int
	width   int
	height  int
}

func newSwapchain(dev *Device, trace *Trace, count, width, height int) (*Swapchain, error) {
	sc := &Swapchain{dev: dev, trace: trace, buffers: make([]gpucore.TextureID, count), shown: -1}
	if err := sc.Resize(width, height); err != nil {
		return nil, err
	}
	return sc, nil
}

// BufferCount returns the number of back buffers.
func (s *Swapchain) BufferCount() int { return len(s.buffers) }

// CurrentIndex returns the back buffer to render into.
func (s *Swapchain) CurrentIndex() int { return s.current }

// BackBuffer returns the texture of back buffer i.
func (s *Swapchain) BackBuffer(i int) gpucore.TextureID { return s.buffers[i] }

// Resize recreates the back buffers.
func (s *Swapchain) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("software: invalid swapchain size %dx%d", width, height)
	}
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	for i, id := range s.buffers {
		if id != gpucore.InvalidID {
			s.dev.destroyTextureLocked(id)
		}
		s.buffers[i] = s.dev.createTextureLocked(&gpucore.TextureDescriptor{
			Label:  fmt.Sprintf("back_buffer_%d", i),
			Width:  uint32(width),
			Height: uint32(height),
			Format: gpucore.TexelFormatRGBA8,
			Usage:  gpucore.TextureUsagePresent | gpucore.TextureUsageStorage | gpucore.TextureUsageCopySrc,
		})
	}
	s.width, s.height = width, height
	s.current, s.shown = 0, -1
	s.trace.add(EventSwapchainResize, uint64(width)<<32|uint64(height), "")
	return nil
}

// Present shows the current back buffer and moves to the next one.
func (s *Swapchain) Present() error {
	s.trace.add(EventPresent, uint64(s.current), "")
	s.shown = s.current
	s.current = (s.current + 1) % len(s.buffers)
	return nil
}

// Presented returns a copy of the most recently presented back buffer, or
// nil before the first Present. Callers read it once the composite that
// wrote it has completed.
func (s *Swapchain) Presented() *image.RGBA {
	if s.shown < 0 {
		return nil
	}
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	t, ok := s.dev.textures[s.buffers[s.shown]]
	if !ok {
		return nil
	}
	img := image.NewRGBA(t.bounds())
	draw.Draw(img, img.Bounds(), t.image(), image.Point{}, draw.Src)
	return img
}

func (s *Swapchain) release() {
	for i := range s.buffers {
		s.buffers[i] = gpucore.InvalidID
	}
}
