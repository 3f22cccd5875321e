package software

import (
	"fmt"
	"image"
	"sync"

	"golang.org/x/image/draw"

	"github.com/gogpu/blit/gpucore"
)

// texture is host memory laid out as rows of BytesPerTexel texels.
type texture struct {
	desc   gpucore.TextureDescriptor
	pix    []byte
	stride int
}

// image returns a view of RGBA8 and R8 textures for x/image/draw.
func (t *texture) image() draw.Image {
	r := image.Rect(0, 0, int(t.desc.Width), int(t.desc.Height))
	switch t.desc.Format {
	case gpucore.TexelFormatRGBA8:
		return &image.RGBA{Pix: t.pix, Stride: t.stride, Rect: r}
	case gpucore.TexelFormatR8:
		return &image.Gray{Pix: t.pix, Stride: t.stride, Rect: r}
	default:
		return nil
	}
}

func (t *texture) bounds() image.Rectangle {
	return image.Rect(0, 0, int(t.desc.Width), int(t.desc.Height))
}

// Device keeps every resource in host memory.
//
// All state is guarded by one mutex, shared with the executor, so a test
// goroutine signalling fences never races the engine goroutine.
type Device struct {
	mu    sync.Mutex
	trace *Trace

	nextID      uint64
	buffers     map[gpucore.BufferID][]byte
	textures    map[gpucore.TextureID]*texture
	descriptors map[uint32]gpucore.TextureID
}

func newDevice(trace *Trace) *Device {
	return &Device{
		trace:       trace,
		buffers:     make(map[gpucore.BufferID][]byte),
		textures:    make(map[gpucore.TextureID]*texture),
		descriptors: make(map[uint32]gpucore.TextureID),
	}
}

// CreateBuffer allocates a zeroed buffer.
func (d *Device) CreateBuffer(desc *gpucore.BufferDescriptor) (gpucore.BufferID, error) {
	if desc.Size == 0 {
		return gpucore.InvalidID, fmt.Errorf("software: buffer %q has zero size", desc.Label)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	id := gpucore.BufferID(d.nextID)
	d.buffers[id] = make([]byte, desc.Size)
	return id, nil
}

// WriteBuffer copies data into a buffer.
func (d *Device) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("software: unknown buffer %d", id)
	}
	if offset+uint64(len(data)) > uint64(len(buf)) {
		return fmt.Errorf("software: write of %d bytes at %d overflows buffer %d (%d bytes)",
			len(data), offset, id, len(buf))
	}
	copy(buf[offset:], data)
	return nil
}

// DestroyBuffer releases a buffer.
func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.buffers[id]; ok {
		delete(d.buffers, id)
		d.trace.add(EventDestroyBuffer, uint64(id), "")
	}
}

// CreateTexture allocates a zeroed texture.
func (d *Device) CreateTexture(desc *gpucore.TextureDescriptor) (gpucore.TextureID, error) {
	if err := desc.Validate(); err != nil {
		return gpucore.InvalidID, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.createTextureLocked(desc), nil
}

func (d *Device) createTextureLocked(desc *gpucore.TextureDescriptor) gpucore.TextureID {
	stride := int(desc.Width) * desc.Format.BytesPerTexel()
	d.nextID++
	id := gpucore.TextureID(d.nextID)
	d.textures[id] = &texture{
		desc:   *desc,
		pix:    make([]byte, stride*int(desc.Height)),
		stride: stride,
	}
	d.trace.add(EventCreateTexture, uint64(id), desc.Label)
	return id
}

// WriteTexture replaces a texture's contents.
func (d *Device) WriteTexture(id gpucore.TextureID, data []byte, bytesPerRow uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("software: unknown texture %d", id)
	}
	pitch := int(bytesPerRow)
	if pitch < t.stride {
		return fmt.Errorf("software: row pitch %d below texture stride %d", pitch, t.stride)
	}
	h := int(t.desc.Height)
	if len(data) < pitch*(h-1)+t.stride {
		return fmt.Errorf("software: %d bytes too short for texture %d", len(data), id)
	}
	for y := 0; y < h; y++ {
		copy(t.pix[y*t.stride:(y+1)*t.stride], data[y*pitch:])
	}
	return nil
}

// ReadTexture copies rect of an RGBA8 or R8 texture into dst.
func (d *Device) ReadTexture(id gpucore.TextureID, rect image.Rectangle, dst []byte, pitch int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("software: unknown texture %d", id)
	}
	if !rect.In(t.bounds()) {
		return fmt.Errorf("software: read %v outside texture %v", rect, t.bounds())
	}
	src := t.image()
	size := image.Rect(0, 0, rect.Dx(), rect.Dy())
	var out draw.Image
	switch t.desc.Format {
	case gpucore.TexelFormatRGBA8:
		out = &image.RGBA{Pix: dst, Stride: pitch, Rect: size}
	case gpucore.TexelFormatR8:
		out = &image.Gray{Pix: dst, Stride: pitch, Rect: size}
	default:
		return fmt.Errorf("software: cannot read texture format %s", t.desc.Format)
	}
	draw.Draw(out, size, src, rect.Min, draw.Src)
	return nil
}

// DestroyTexture releases a texture.
func (d *Device) DestroyTexture(id gpucore.TextureID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyTextureLocked(id)
}

func (d *Device) destroyTextureLocked(id gpucore.TextureID) {
	if _, ok := d.textures[id]; ok {
		delete(d.textures, id)
		d.trace.add(EventDestroyTexture, uint64(id), "")
	}
}

// SetSpriteDescriptor points a descriptor slot at a texture.
func (d *Device) SetSpriteDescriptor(slot uint32, id gpucore.TextureID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if id == gpucore.InvalidID {
		delete(d.descriptors, slot)
		return nil
	}
	if _, ok := d.textures[id]; !ok {
		return fmt.Errorf("software: descriptor %d: unknown texture %d", slot, id)
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
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.textures)
}

// LiveBuffers returns the number of buffers not yet destroyed.
func (d *Device) LiveBuffers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buffers)
}

func (d *Device) release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	clear(d.buffers)
	clear(d.textures)
	clear(d.descriptors)
}
