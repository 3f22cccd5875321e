//go:build !nogpu

package native

import (
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/blit/gpucore"
)

// readbackTimeout bounds the fence wait of a texture read.
const readbackTimeout = 5 * time.Second

// gpu is the HAL device and queue shared by the substrate's parts.
type gpu struct {
	device hal.Device
	queue  hal.Queue

	// mu serializes queue access.
	mu sync.Mutex
}

// submitAndWait submits one command buffer with a private fence and blocks
// until it completes.
func (g *gpu) submitAndWait(cmdBuf hal.CommandBuffer, timeout time.Duration) error {
	fence, err := g.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer g.device.DestroyFence(fence)

	g.mu.Lock()
	err = g.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1)
	g.mu.Unlock()
	if err != nil {
		return fmt.Errorf("%w: submit: %v", gpucore.ErrDeviceLost, err)
	}
	ok, err := g.device.Wait(fence, 1, timeout)
	if err != nil {
		return fmt.Errorf("%w: wait: %v", gpucore.ErrDeviceLost, err)
	}
	if !ok {
		return fmt.Errorf("%w: readback timed out after %v", gpucore.ErrDeviceLost, timeout)
	}
	return nil
}

type buffer struct {
	buf  hal.Buffer
	size uint64
}

// texture is a storage buffer holding width*height texels of
// wordsPerTexel u32 each.
type texture struct {
	buf           hal.Buffer
	desc          gpucore.TextureDescriptor
	wordsPerTexel int
}

func (t *texture) texels() int { return int(t.desc.Width) * int(t.desc.Height) }

func (t *texture) size() uint64 { return uint64(t.texels()*t.wordsPerTexel) * 4 }

func (t *texture) bounds() image.Rectangle {
	return image.Rect(0, 0, int(t.desc.Width), int(t.desc.Height))
}

// wordsPerTexel returns how many u32 a texel of format f occupies.
func wordsPerTexel(f gpucore.TexelFormat) int {
	return (f.BytesPerTexel() + 3) / 4
}

// Device maps substrate IDs to HAL buffers.
type Device struct {
	gpu *gpu

	mu          sync.RWMutex
	nextID      uint64
	buffers     map[gpucore.BufferID]*buffer
	textures    map[gpucore.TextureID]*texture
	descriptors map[uint32]gpucore.TextureID

	// placeholders for unbound bindings, one per slot so no two writable
	// bindings alias
	dummies [bindingCount]hal.Buffer
}

func newDevice(g *gpu) *Device {
	return &Device{
		gpu:         g,
		buffers:     make(map[gpucore.BufferID]*buffer),
		textures:    make(map[gpucore.TextureID]*texture),
		descriptors: make(map[uint32]gpucore.TextureID),
	}
}

func (d *Device) createDummies() error {
	for i := range d.dummies {
		buf, err := d.gpu.device.CreateBuffer(&hal.BufferDescriptor{
			Label: fmt.Sprintf("unbound_%d", i),
			Size:  16,
			Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("native: create placeholder buffer: %w", err)
		}
		d.dummies[i] = buf
	}
	return nil
}

// CreateBuffer creates a storage buffer. The size is rounded up to whole
// words.
func (d *Device) CreateBuffer(desc *gpucore.BufferDescriptor) (gpucore.BufferID, error) {
	if desc.Size == 0 {
		return gpucore.InvalidID, fmt.Errorf("native: buffer %q has zero size", desc.Label)
	}
	size := (desc.Size + 3) &^ 3
	usage := gputypes.BufferUsageStorage
	if desc.Usage&gpucore.BufferUsageCopyDst != 0 {
		usage |= gputypes.BufferUsageCopyDst
	}
	if desc.Usage&gpucore.BufferUsageCopySrc != 0 {
		usage |= gputypes.BufferUsageCopySrc
	}
	buf, err := d.gpu.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create buffer %q: %w", desc.Label, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	id := gpucore.BufferID(d.nextID)
	d.buffers[id] = &buffer{buf: buf, size: size}
	return id, nil
}

// WriteBuffer copies data into a buffer. Offset and length must be
// multiples of 4.
func (d *Device) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	d.mu.RLock()
	b, ok := d.buffers[id]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("native: unknown buffer %d", id)
	}
	if offset%4 != 0 || len(data)%4 != 0 {
		return fmt.Errorf("native: unaligned write of %d bytes at %d", len(data), offset)
	}
	if offset+uint64(len(data)) > b.size {
		return fmt.Errorf("native: write of %d bytes at %d overflows buffer %d (%d bytes)",
			len(data), offset, id, b.size)
	}
	d.gpu.mu.Lock()
	d.gpu.queue.WriteBuffer(b.buf, offset, data)
	d.gpu.mu.Unlock()
	return nil
}

// DestroyBuffer releases a buffer.
func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	d.mu.Lock()
	b, ok := d.buffers[id]
	delete(d.buffers, id)
	d.mu.Unlock()
	if ok {
		d.gpu.device.DestroyBuffer(b.buf)
	}
}

// CreateTexture creates a zeroed texel buffer.
func (d *Device) CreateTexture(desc *gpucore.TextureDescriptor) (gpucore.TextureID, error) {
	if err := desc.Validate(); err != nil {
		return gpucore.InvalidID, err
	}
	t := &texture{desc: *desc, wordsPerTexel: wordsPerTexel(desc.Format)}
	buf, err := d.gpu.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  t.size(),
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create texture %q: %w", desc.Label, err)
	}
	t.buf = buf
	// HAL buffers are not guaranteed to start zeroed.
	d.gpu.mu.Lock()
	d.gpu.queue.WriteBuffer(buf, 0, make([]byte, t.size()))
	d.gpu.mu.Unlock()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	id := gpucore.TextureID(d.nextID)
	d.textures[id] = t
	return id, nil
}

// WriteTexture replaces a texture's contents, widening each texel to whole
// words.
func (d *Device) WriteTexture(id gpucore.TextureID, data []byte, bytesPerRow uint32) error {
	t, err := d.texture(id)
	if err != nil {
		return err
	}
	bpp := t.desc.Format.BytesPerTexel()
	w, h := int(t.desc.Width), int(t.desc.Height)
	stride := w * bpp
	pitch := int(bytesPerRow)
	if pitch < stride {
		return fmt.Errorf("native: row pitch %d below texture stride %d", pitch, stride)
	}
	if len(data) < pitch*(h-1)+stride {
		return fmt.Errorf("native: %d bytes too short for texture %d", len(data), id)
	}

	slot := t.wordsPerTexel * 4
	words := make([]byte, t.size())
	for y := 0; y < h; y++ {
		row := data[y*pitch : y*pitch+stride]
		out := words[y*w*slot:]
		for x := 0; x < w; x++ {
			copy(out[x*slot:x*slot+bpp], row[x*bpp:(x+1)*bpp])
		}
	}
	d.gpu.mu.Lock()
	d.gpu.queue.WriteBuffer(t.buf, 0, words)
	d.gpu.mu.Unlock()
	return nil
}

// ReadTexture copies rect of an RGBA8 or R8 texture into dst. It copies
// the rows of rect into a staging buffer and waits for the copy.
func (d *Device) ReadTexture(id gpucore.TextureID, rect image.Rectangle, dst []byte, pitch int) error {
	t, err := d.texture(id)
	if err != nil {
		return err
	}
	if !rect.In(t.bounds()) {
		return fmt.Errorf("native: read %v outside texture %v", rect, t.bounds())
	}
	var bpp int
	switch t.desc.Format {
	case gpucore.TexelFormatRGBA8:
		bpp = 4
	case gpucore.TexelFormatR8:
		bpp = 1
	default:
		return fmt.Errorf("native: cannot read texture format %s", t.desc.Format)
	}
	if rect.Empty() {
		return nil
	}

	rowBytes := uint64(t.desc.Width) * 4
	offset := uint64(rect.Min.Y) * rowBytes
	size := uint64(rect.Dy()) * rowBytes
	staging, err := d.gpu.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "readback_staging",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("native: create staging buffer: %w", err)
	}
	defer d.gpu.device.DestroyBuffer(staging)

	encoder, err := d.gpu.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "readback"})
	if err != nil {
		return fmt.Errorf("native: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("readback"); err != nil {
		return fmt.Errorf("native: begin encoding: %w", err)
	}
	encoder.CopyBufferToBuffer(t.buf, staging, []hal.BufferCopy{
		{SrcOffset: offset, DstOffset: 0, Size: size},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("native: end encoding: %w", err)
	}
	defer d.gpu.device.FreeCommandBuffer(cmdBuf)

	if err := d.gpu.submitAndWait(cmdBuf, readbackTimeout); err != nil {
		return fmt.Errorf("native: read texture %d: %w", id, err)
	}
	readback := make([]byte, size)
	d.gpu.mu.Lock()
	err = d.gpu.queue.ReadBuffer(staging, 0, readback)
	d.gpu.mu.Unlock()
	if err != nil {
		return fmt.Errorf("native: read staging buffer: %w", err)
	}

	for y := 0; y < rect.Dy(); y++ {
		row := readback[uint64(y)*rowBytes:]
		out := dst[y*pitch:]
		for x := 0; x < rect.Dx(); x++ {
			src := row[(rect.Min.X+x)*4:]
			copy(out[x*bpp:(x+1)*bpp], src[:bpp])
		}
	}
	return nil
}

// DestroyTexture releases a texture.
func (d *Device) DestroyTexture(id gpucore.TextureID) {
	d.mu.Lock()
	t, ok := d.textures[id]
	delete(d.textures, id)
	d.mu.Unlock()
	if ok {
		d.gpu.device.DestroyBuffer(t.buf)
	}
}

// SetSpriteDescriptor points a descriptor slot at a texture. Slots are
// resolved when a command list is submitted.
func (d *Device) SetSpriteDescriptor(slot uint32, id gpucore.TextureID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if id == gpucore.InvalidID {
		delete(d.descriptors, slot)
		return nil
	}
	if _, ok := d.textures[id]; !ok {
		return fmt.Errorf("native: descriptor %d: unknown texture %d", slot, id)
	}
	d.descriptors[slot] = id
	return nil
}

// CreateCommandList creates an empty recording list.
func (d *Device) CreateCommandList(label string) (gpucore.CommandList, error) {
	return &CommandList{label: label}, nil
}

// LiveTextures returns the number of textures not yet destroyed.
func (d *Device) LiveTextures() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.textures)
}

// LiveBuffers returns the number of buffers not yet destroyed.
func (d *Device) LiveBuffers() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.buffers)
}

func (d *Device) texture(id gpucore.TextureID) (*texture, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.textures[id]
	if !ok {
		return nil, fmt.Errorf("native: unknown texture %d", id)
	}
	return t, nil
}

// sprite resolves a descriptor slot.
func (d *Device) sprite(slot uint32) *texture {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.textures[d.descriptors[slot]]
}

// release destroys every remaining resource.
func (d *Device) release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, b := range d.buffers {
		d.gpu.device.DestroyBuffer(b.buf)
		delete(d.buffers, id)
	}
	for id, t := range d.textures {
		d.gpu.device.DestroyBuffer(t.buf)
		delete(d.textures, id)
	}
	clear(d.descriptors)
	for i, b := range d.dummies {
		if b != nil {
			d.gpu.device.DestroyBuffer(b)
			d.dummies[i] = nil
		}
	}
}
