//go:build !nogpu

package native

import (
	"fmt"
	"image"

	"github.com/gogpu/blit/gpucore"
)

// Swapchain is a ring of offscreen RGBA8 back buffers. A host that owns a
// window surface copies the presented buffer out with Presented or
// PresentedTexture.
type Swapchain struct {
	dev     *Device
	buffers []gpucore.TextureID
	current int
	shown   int
	width   int
	height  int
}

func newSwapchain(dev *Device, count, width, height int) (*Swapchain, error) {
	sc := &Swapchain{dev: dev, buffers: make([]gpucore.TextureID, count), shown: -1}
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
		return fmt.Errorf("native: invalid swapchain size %dx%d", width, height)
	}
	for i, id := range s.buffers {
		if id != gpucore.InvalidID {
			s.dev.DestroyTexture(id)
			s.buffers[i] = gpucore.InvalidID
		}
		tex, err := s.dev.CreateTexture(&gpucore.TextureDescriptor{
			Label:  fmt.Sprintf("back_buffer_%d", i),
			Width:  uint32(width),
			Height: uint32(height),
			Format: gpucore.TexelFormatRGBA8,
			Usage:  gpucore.TextureUsagePresent | gpucore.TextureUsageStorage | gpucore.TextureUsageCopySrc,
		})
		if err != nil {
			return fmt.Errorf("native: create back buffer %d: %w", i, err)
		}
		s.buffers[i] = tex
	}
	s.width, s.height = width, height
	s.current, s.shown = 0, -1
	slogger().Debug("native: swapchain resized", "width", width, "height", height, "buffers", len(s.buffers))
	return nil
}

// Present marks the current back buffer as shown and moves to the next
// one.
func (s *Swapchain) Present() error {
	s.shown = s.current
	s.current = (s.current + 1) % len(s.buffers)
	return nil
}

// PresentedTexture returns the most recently presented back buffer, or
// InvalidID before the first Present.
func (s *Swapchain) PresentedTexture() gpucore.TextureID {
	if s.shown < 0 {
		return gpucore.InvalidID
	}
	return s.buffers[s.shown]
}

// Presented reads the most recently presented back buffer into host
// memory. It returns nil before the first Present. Callers read it once
// the composite that wrote it has completed.
func (s *Swapchain) Presented() (*image.RGBA, error) {
	id := s.PresentedTexture()
	if id == gpucore.InvalidID {
		return nil, nil
	}
	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	if err := s.dev.ReadTexture(id, img.Rect, img.Pix, img.Stride); err != nil {
		return nil, err
	}
	return img, nil
}
