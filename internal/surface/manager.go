package surface

import (
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/blit/gpucore"
)

var (
	// ErrInvalidSize is returned for zero or negative surface dimensions.
	ErrInvalidSize = errors.New("surface: invalid size")

	// ErrTargetCreation is returned when a target or the swapchain cannot
	// be (re)created.
	ErrTargetCreation = errors.New("surface: target creation failed")

	// ErrOutOfBounds is returned for read-back regions outside the surface.
	ErrOutOfBounds = errors.New("surface: region out of bounds")
)

// Targets are the render targets blits draw into.
type Targets struct {
	Video       gpucore.TextureID // RGBA8
	Anim        gpucore.TextureID // R8 palette indices
	BackupVideo gpucore.TextureID
	BackupAnim  gpucore.TextureID
}

// Manager owns the output targets and the swapchain they are presented to.
//
// Manager does not synchronise with the GPU itself. Callers drain all
// in-flight work before Resize destroys anything, and the drain callback
// passed to Resize is where that happens.
type Manager struct {
	dev gpucore.Device
	sc  gpucore.Swapchain

	width, height int
	targets       Targets
}

// NewManager creates a manager with no targets. Call Resize to create them.
func NewManager(dev gpucore.Device, sc gpucore.Swapchain) *Manager {
	return &Manager{dev: dev, sc: sc}
}

// Size returns the current surface size.
func (m *Manager) Size() (width, height int) { return m.width, m.height }

// Bounds returns the surface rectangle.
func (m *Manager) Bounds() image.Rectangle { return image.Rect(0, 0, m.width, m.height) }

// Targets returns the current targets.
func (m *Manager) Targets() Targets { return m.targets }

// Bindings returns the resource set draws use with the given per-slot
// buffers.
func (m *Manager) Bindings(palette, remap gpucore.BufferID) gpucore.Bindings {
	return gpucore.Bindings{
		Video:       m.targets.Video,
		Anim:        m.targets.Anim,
		BackupVideo: m.targets.BackupVideo,
		BackupAnim:  m.targets.BackupAnim,
		Palette:     palette,
		Remap:       remap,
	}
}

// Resize recreates the targets and swapchain at width x height.
//
// It returns false without doing anything when the size is unchanged and
// force is false. Otherwise drain is called first; it must return only
// once no submitted work references the current targets.
func (m *Manager) Resize(width, height int, force bool, drain func() error) (bool, error) {
	if width <= 0 || height <= 0 {
		return false, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	if !force && width == m.width && height == m.height {
		return false, nil
	}
	if drain != nil {
		if err := drain(); err != nil {
			return false, err
		}
	}

	m.destroyTargets()
	if err := m.sc.Resize(width, height); err != nil {
		return false, fmt.Errorf("%w: swapchain %dx%d: %w", ErrTargetCreation, width, height, err)
	}
	if err := m.createTargets(width, height); err != nil {
		return false, err
	}
	m.width, m.height = width, height
	return true, nil
}

func (m *Manager) createTargets(width, height int) error {
	descs := []struct {
		dst    *gpucore.TextureID
		label  string
		format gpucore.TexelFormat
	}{
		{&m.targets.Video, "video", gpucore.TexelFormatRGBA8},
		{&m.targets.Anim, "anim", gpucore.TexelFormatR8},
		{&m.targets.BackupVideo, "backup_video", gpucore.TexelFormatRGBA8},
		{&m.targets.BackupAnim, "backup_anim", gpucore.TexelFormatR8},
	}
	for _, d := range descs {
		id, err := m.dev.CreateTexture(&gpucore.TextureDescriptor{
			Label:  d.label,
			Width:  uint32(width),
			Height: uint32(height),
			Format: d.format,
			Usage: gpucore.TextureUsageSampled | gpucore.TextureUsageStorage |
				gpucore.TextureUsageCopySrc | gpucore.TextureUsageCopyDst,
		})
		if err != nil {
			m.destroyTargets()
			return fmt.Errorf("%w: %s %dx%d: %w", ErrTargetCreation, d.label, width, height, err)
		}
		*d.dst = id
	}
	return nil
}

func (m *Manager) destroyTargets() {
	for _, id := range []*gpucore.TextureID{
		&m.targets.Video, &m.targets.Anim, &m.targets.BackupVideo, &m.targets.BackupAnim,
	} {
		if *id != gpucore.InvalidID {
			m.dev.DestroyTexture(*id)
			*id = gpucore.InvalidID
		}
	}
}

// RecordComposite records the final pass into the current back buffer.
func (m *Manager) RecordComposite(cl gpucore.CommandList, mode gpucore.ShaderMode) {
	cl.Barrier()
	cl.Composite(m.sc.BackBuffer(m.sc.CurrentIndex()), mode)
}

// Present shows the current back buffer.
func (m *Manager) Present() error {
	return m.sc.Present()
}

// ReadVideo copies a region of the video plane into dst as packed RGBA.
// The caller guarantees all work writing the region has completed.
func (m *Manager) ReadVideo(dst []byte, x, y, width, height, pitch int) error {
	r := image.Rect(x, y, x+width, y+height)
	if width <= 0 || height <= 0 || !r.In(m.Bounds()) {
		return fmt.Errorf("%w: %v in %dx%d", ErrOutOfBounds, r, m.width, m.height)
	}
	if pitch < width*4 {
		return fmt.Errorf("surface: pitch %d too small for width %d", pitch, width)
	}
	if need := pitch*(height-1) + width*4; len(dst) < need {
		return fmt.Errorf("surface: destination holds %d bytes, need %d", len(dst), need)
	}
	return m.dev.ReadTexture(m.targets.Video, r, dst, pitch)
}

// Close destroys the targets.
func (m *Manager) Close() {
	m.destroyTargets()
	m.width, m.height = 0, 0
}
