//go:build !nogpu

package native

import (
	"encoding/binary"
	"fmt"
	"image"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/blit/gpucore"
	"github.com/gogpu/blit/internal/batch"
)

const (
	// paramsStride is the distance between per-pass uniform blocks; it
	// satisfies the minimum uniform offset alignment of every backend.
	paramsStride = 256

	// paramsSize is the bound size of one uniform block.
	paramsSize = 64

	tileSize      = 8
	lineGroupSize = 64
)

// pass is one compute dispatch with its bound buffers.
type pass struct {
	kernel           kernel
	params           [paramsSize / 4]uint32
	buffers          [bindingCount]hal.Buffer
	groupsX, groupsY uint32
}

// submission owns the HAL objects of one submitted command list until its
// fence signals.
type submission struct {
	device     hal.Device
	value      uint64
	label      string
	fence      hal.Fence
	cmdBuf     hal.CommandBuffer
	params     hal.Buffer
	scratch    []hal.Buffer
	bindGroups []hal.BindGroup
}

// release destroys every tracked resource.
func (s *submission) release() {
	if s.fence != nil {
		s.device.DestroyFence(s.fence)
	}
	if s.cmdBuf != nil {
		s.device.FreeCommandBuffer(s.cmdBuf)
	}
	for _, g := range s.bindGroups {
		s.device.DestroyBindGroup(g)
	}
	for _, b := range s.scratch {
		s.device.DestroyBuffer(b)
	}
	if s.params != nil {
		s.device.DestroyBuffer(s.params)
	}
}

// encoder turns recorded commands into compute passes.
type encoder struct {
	dev   *Device
	sub   *submission
	pipes *pipelineSet

	constants               gpucore.PassConstants
	video, anim             *texture
	backupVideo, backupAnim *texture
	palette, remap          hal.Buffer

	passes []pass
}

func (e *encoder) bind(b gpucore.Bindings) {
	d := e.dev
	d.mu.RLock()
	defer d.mu.RUnlock()
	e.video = d.textures[b.Video]
	e.anim = d.textures[b.Anim]
	e.backupVideo = d.textures[b.BackupVideo]
	e.backupAnim = d.textures[b.BackupAnim]
	e.palette, e.remap = nil, nil
	if p, ok := d.buffers[b.Palette]; ok {
		e.palette = p.buf
	}
	if r, ok := d.buffers[b.Remap]; ok {
		e.remap = r.buf
	}
}

func bufferOf(t *texture) hal.Buffer {
	if t == nil {
		return nil
	}
	return t.buf
}

func groups(n, size int) uint32 {
	return uint32((n + size - 1) / size)
}

// request appends the pass of one packed request, or nothing when the
// request cannot touch any pixel.
func (e *encoder) request(words []uint32) {
	if e.video == nil || e.anim == nil {
		return
	}
	r := batch.Unpack(words)
	p := pass{kernel: kernelBlit}
	p.params[0] = e.video.desc.Width
	p.params[1] = e.video.desc.Height
	p.params[2] = e.constants.FrameIndex
	copy(p.params[4:8], words[:4])
	p.params[8] = words[4]
	p.buffers[bindVideo] = e.video.buf
	p.buffers[bindAnim] = e.anim.buf
	p.buffers[bindPalette] = e.palette

	if r.Type == batch.TypeLine {
		dx := abs(int(r.Right) - int(r.Left))
		dy := abs(int(r.Bottom) - int(r.Top))
		pen := max(int(r.Zoom), 1)
		p.kernel = kernelLine
		p.groupsX = groups(max(dx, dy)+1, lineGroupSize)
		p.groupsY = uint32(pen * pen)
		e.passes = append(e.passes, p)
		return
	}

	rect := image.Rect(int(r.Left), int(r.Top), int(r.Right)+1, int(r.Bottom)+1).Intersect(e.video.bounds())
	if rect.Empty() {
		return
	}
	p.params[9] = uint32(rect.Min.X)
	p.params[10] = uint32(rect.Min.Y)
	p.groupsX = groups(rect.Dx(), tileSize)
	p.groupsY = groups(rect.Dy(), tileSize)
	p.buffers[bindBackupVideo] = bufferOf(e.backupVideo)
	p.buffers[bindBackupAnim] = bufferOf(e.backupAnim)
	p.buffers[bindRemap] = e.remap

	if r.Type == batch.TypeSprite {
		if r.Sprite == batch.NoSprite || int(r.Zoom) >= gpucore.SpriteLevels {
			return
		}
		src := e.dev.sprite(uint32(r.Sprite)*gpucore.SpriteLevels + uint32(r.Zoom))
		if src == nil {
			return
		}
		p.params[12] = src.desc.Width
		p.params[13] = src.desc.Height
		p.params[14] = uint32(src.desc.Format)
		p.params[15] = 1
		p.buffers[bindSprite] = src.buf
	}
	e.passes = append(e.passes, p)
}

// scroll appends the gather and scatter passes of one scroll step.
func (e *encoder) scroll(k gpucore.Kernel, a gpucore.ScrollArgs) error {
	if e.video == nil || e.anim == nil {
		return nil
	}
	rect := image.Rect(int(a.Left), int(a.Top), int(a.Left+a.Width), int(a.Top+a.Height)).
		Intersect(e.video.bounds()).Intersect(e.anim.bounds())
	if rect.Empty() {
		return nil
	}
	scratch, err := e.dev.gpu.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "scroll_scratch",
		Size:  uint64(rect.Dx()*rect.Dy()) * 2 * 4,
		Usage: gputypes.BufferUsageStorage,
	})
	if err != nil {
		return fmt.Errorf("native: create scroll scratch: %w", err)
	}
	e.sub.scratch = append(e.sub.scratch, scratch)

	var p pass
	p.params = [paramsSize / 4]uint32{
		uint32(rect.Min.X), uint32(rect.Min.Y), uint32(rect.Dx()), uint32(rect.Dy()),
		uint32(a.DX), uint32(a.DY), uint32(k), e.video.desc.Width,
	}
	p.buffers[bindVideo] = e.video.buf
	p.buffers[bindAnim] = e.anim.buf
	p.buffers[bindBackupVideo] = scratch
	p.groupsX = groups(rect.Dx(), tileSize)
	p.groupsY = groups(rect.Dy(), tileSize)

	p.kernel = kernelScrollGather
	e.passes = append(e.passes, p)
	p.kernel = kernelScrollScatter
	e.passes = append(e.passes, p)
	return nil
}

func (e *encoder) composite(target gpucore.TextureID, mode gpucore.ShaderMode) {
	dst, err := e.dev.texture(target)
	if err != nil || e.video == nil || e.anim == nil {
		return
	}
	rect := dst.bounds().Intersect(e.video.bounds())
	if rect.Empty() {
		return
	}
	p := pass{
		kernel:  kernelComposite,
		groupsX: groups(rect.Dx(), tileSize),
		groupsY: groups(rect.Dy(), tileSize),
	}
	p.params[0] = uint32(rect.Dx())
	p.params[1] = uint32(rect.Dy())
	p.params[2] = uint32(mode)
	p.params[4] = e.video.desc.Width
	p.params[5] = dst.desc.Width
	p.buffers[bindVideo] = e.video.buf
	p.buffers[bindAnim] = e.anim.buf
	p.buffers[bindBackupVideo] = dst.buf
	p.buffers[bindPalette] = e.palette
	e.passes = append(e.passes, p)
}

// collect walks the recorded commands and builds the pass list.
func (e *encoder) collect(cmds []command) error {
	for i := range cmds {
		c := &cmds[i]
		switch c.op {
		case opBind:
			e.bind(c.bindings)
		case opConstants:
			e.constants = c.constants
		case opDraw:
			for n := 0; n < c.count; n++ {
				e.request(c.words[n*gpucore.RequestWords : (n+1)*gpucore.RequestWords])
			}
		case opDispatch:
			if err := e.scroll(c.kernel, c.args); err != nil {
				return err
			}
		case opComposite:
			e.composite(c.target, c.mode)
		}
	}
	return nil
}

// uploadParams writes every pass's uniform block into one buffer.
func (e *encoder) uploadParams() error {
	if len(e.passes) == 0 {
		return nil
	}
	size := uint64(len(e.passes)) * paramsStride
	buf, err := e.dev.gpu.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "pass_params",
		Size:  size,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("native: create params buffer: %w", err)
	}
	e.sub.params = buf

	data := make([]byte, size)
	for i := range e.passes {
		block := data[i*paramsStride:]
		for j, w := range e.passes[i].params {
			binary.LittleEndian.PutUint32(block[j*4:], w)
		}
	}
	e.dev.gpu.mu.Lock()
	e.dev.gpu.queue.WriteBuffer(buf, 0, data)
	e.dev.gpu.mu.Unlock()
	return nil
}

// bindGroup creates the bind group of pass i, substituting placeholders
// for unbound resources.
func (e *encoder) bindGroup(i int) (hal.BindGroup, error) {
	p := &e.passes[i]
	layout := layoutEntries(p.kernel)
	entries := make([]gputypes.BindGroupEntry, 0, len(layout))
	for _, l := range layout {
		if l.Binding == bindParams {
			entries = append(entries, gputypes.BindGroupEntry{
				Binding: bindParams,
				Resource: gputypes.BufferBinding{
					Buffer: e.sub.params.NativeHandle(),
					Offset: uint64(i) * paramsStride,
					Size:   paramsSize,
				},
			})
			continue
		}
		buf := p.buffers[l.Binding]
		if buf == nil {
			buf = e.dev.dummies[l.Binding]
		}
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  l.Binding,
			Resource: gputypes.BufferBinding{Buffer: buf.NativeHandle(), Offset: 0, Size: 0},
		})
	}
	return e.dev.gpu.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   p.kernel.String(),
		Layout:  e.pipes.bgLayouts[p.kernel],
		Entries: entries,
	})
}

// encode records every pass into a command buffer stored in the
// submission.
func (e *encoder) encode(cmds []command) error {
	if err := e.collect(cmds); err != nil {
		return err
	}
	if err := e.uploadParams(); err != nil {
		return err
	}

	enc, err := e.dev.gpu.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: e.sub.label})
	if err != nil {
		return fmt.Errorf("native: create command encoder: %w", err)
	}
	if err := enc.BeginEncoding(e.sub.label); err != nil {
		return fmt.Errorf("native: begin encoding: %w", err)
	}
	for i := range e.passes {
		bg, err := e.bindGroup(i)
		if err != nil {
			enc.DiscardEncoding()
			return fmt.Errorf("native: create bind group for %s: %w", e.passes[i].kernel, err)
		}
		e.sub.bindGroups = append(e.sub.bindGroups, bg)

		p := &e.passes[i]
		cp := enc.BeginComputePass(&hal.ComputePassDescriptor{Label: p.kernel.String()})
		cp.SetPipeline(e.pipes.pipelines[p.kernel])
		cp.SetBindGroup(0, bg, nil)
		cp.Dispatch(p.groupsX, p.groupsY, 1)
		cp.End()
	}
	cmdBuf, err := enc.EndEncoding()
	if err != nil {
		return fmt.Errorf("native: end encoding: %w", err)
	}
	e.sub.cmdBuf = cmdBuf
	return nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
