package software

import (
	"image"

	"golang.org/x/image/draw"

	"github.com/gogpu/blit/gpucore"
	"github.com/gogpu/blit/internal/batch"
	"github.com/gogpu/blit/internal/parallel"
)

// executor runs recorded commands against device memory. It mirrors the
// blit, scroll and composite kernels of the native substrate.
type executor struct {
	dev   *Device
	trace *Trace
	// pool splits composite rows; nil composites inline.
	pool *parallel.Pool

	bindings  gpucore.Bindings
	constants gpucore.PassConstants

	// resolved for the current bindings
	video, anim             *texture
	backupVideo, backupAnim *texture
	palette, remap          []byte
}

func newExecutor(dev *Device, trace *Trace, pool *parallel.Pool) *executor {
	return &executor{dev: dev, trace: trace, pool: pool}
}

func (e *executor) run(cmds []command) {
	e.dev.mu.Lock()
	defer e.dev.mu.Unlock()

	for i := range cmds {
		c := &cmds[i]
		switch c.op {
		case opBind:
			e.bind(c.bindings)
		case opConstants:
			e.constants = c.constants
		case opDraw:
			for n := 0; n < c.count; n++ {
				w := c.words[n*gpucore.RequestWords : (n+1)*gpucore.RequestWords]
				e.request(batch.Unpack(w))
			}
			e.trace.add(EventDraw, uint64(c.count), "")
		case opDispatch:
			e.scroll(c.kernel, c.args)
			e.trace.add(EventDispatch, 0, c.kernel.String())
		case opBarrier:
			e.trace.add(EventBarrier, 0, "")
		case opComposite:
			e.composite(c.target, c.mode)
			e.trace.add(EventComposite, uint64(c.target), c.mode.String())
		}
	}
}

func (e *executor) bind(b gpucore.Bindings) {
	e.bindings = b
	e.video = e.dev.textures[b.Video]
	e.anim = e.dev.textures[b.Anim]
	e.backupVideo = e.dev.textures[b.BackupVideo]
	e.backupAnim = e.dev.textures[b.BackupAnim]
	e.palette = e.dev.buffers[b.Palette]
	e.remap = e.dev.buffers[b.Remap]
}

// clip returns the request bounds clipped to the video plane.
func (e *executor) clip(r batch.Request) image.Rectangle {
	if e.video == nil || e.anim == nil {
		return image.Rectangle{}
	}
	rect := image.Rect(int(r.Left), int(r.Top), int(r.Right)+1, int(r.Bottom)+1)
	return rect.Intersect(e.video.bounds())
}

func (e *executor) request(r batch.Request) {
	switch r.Type {
	case batch.TypeRectangle:
		e.fill(e.clip(r), r.Colour)
	case batch.TypeColourMappingRectangle:
		e.colourMap(e.clip(r), r)
	case batch.TypeCopyToBackup:
		e.copyPlanes(e.clip(r), e.backupVideo, e.backupAnim, e.video, e.anim)
	case batch.TypeCopyFromBackup:
		e.copyPlanes(e.clip(r), e.video, e.anim, e.backupVideo, e.backupAnim)
	case batch.TypeSprite:
		e.sprite(e.clip(r), r)
	case batch.TypeLine:
		e.line(r)
	}
}

// paletteColour returns entry m as opaque RGB.
func (e *executor) paletteColour(m uint8) [3]byte {
	o := int(m) * 4
	if o+3 > len(e.palette) {
		return [3]byte{}
	}
	return [3]byte{e.palette[o], e.palette[o+1], e.palette[o+2]}
}

// remapTable returns the table at offset, or nil when unbound.
func (e *executor) remapTable(offset uint32) []byte {
	end := int(offset) + gpucore.RemapTableSize
	if end > len(e.remap) {
		return nil
	}
	return e.remap[offset:end]
}

func remapIndex(table []byte, m uint8) uint8 {
	if table == nil {
		return m
	}
	return table[m]
}

func (e *executor) videoAt(x, y int) []byte {
	o := y*e.video.stride + x*4
	return e.video.pix[o : o+4 : o+4]
}

func (e *executor) animAt(x, y int) *byte {
	return &e.anim.pix[y*e.anim.stride+x]
}

func (e *executor) setIndex(x, y int, m uint8) {
	*e.animAt(x, y) = m
	c := e.paletteColour(m)
	px := e.videoAt(x, y)
	px[0], px[1], px[2], px[3] = c[0], c[1], c[2], 0xFF
}

func (e *executor) darken(x, y int) {
	px := e.videoAt(x, y)
	px[0] = uint8(uint16(px[0]) * 3 / 4)
	px[1] = uint8(uint16(px[1]) * 3 / 4)
	px[2] = uint8(uint16(px[2]) * 3 / 4)
}

func (e *executor) fill(rect image.Rectangle, colour uint8) {
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			e.setIndex(x, y, colour)
		}
	}
}

// remapExisting applies a transparency remap to what is already on screen:
// animated pixels are recoloured through table, the rest darken.
func (e *executor) remapExisting(x, y int, table []byte) {
	a := e.animAt(x, y)
	if *a != 0 && table != nil {
		e.setIndex(x, y, table[*a])
		return
	}
	e.darken(x, y)
}

func (e *executor) colourMap(rect image.Rectangle, r batch.Request) {
	var table []byte
	if r.Mode.NeedsRemap() {
		table = e.remapTable(r.RemapOffset)
	}
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			e.remapExisting(x, y, table)
		}
	}
}

func (e *executor) copyPlanes(rect image.Rectangle, dstVideo, dstAnim, srcVideo, srcAnim *texture) {
	if rect.Empty() || dstVideo == nil || dstAnim == nil || srcVideo == nil || srcAnim == nil {
		return
	}
	draw.Draw(dstVideo.image(), rect, srcVideo.image(), rect.Min, draw.Src)
	draw.Draw(dstAnim.image(), rect, srcAnim.image(), rect.Min, draw.Src)
}

// texel decodes one sprite texel.
type texel struct {
	r, g, b, a, m uint8
	rgb           bool
}

func decodeTexel(t *texture, x, y int) texel {
	o := y*t.stride + x*t.desc.Format.BytesPerTexel()
	p := t.pix[o:]
	switch t.desc.Format {
	case gpucore.TexelFormatRG8:
		return texel{m: p[0], a: p[1]}
	case gpucore.TexelFormatRGBA8:
		return texel{r: p[0], g: p[1], b: p[2], a: p[3], rgb: true}
	case gpucore.TexelFormatRGBA8M:
		return texel{r: p[0], g: p[1], b: p[2], a: p[3], m: p[4], rgb: true}
	default:
		return texel{}
	}
}

func blend(src, dst, a uint8) uint8 {
	return uint8((uint16(src)*uint16(a) + uint16(dst)*uint16(255-a) + 127) / 255)
}

// put writes a sprite texel: palette texels mark the animation plane and
// take their colour from the palette unless they carry their own RGB.
func (e *executor) put(x, y int, t texel) {
	rgb := [3]byte{t.r, t.g, t.b}
	if t.m != 0 {
		*e.animAt(x, y) = t.m
		if !t.rgb {
			rgb = e.paletteColour(t.m)
		}
	} else if t.a == 0xFF {
		*e.animAt(x, y) = 0
	}
	px := e.videoAt(x, y)
	px[0] = blend(rgb[0], px[0], t.a)
	px[1] = blend(rgb[1], px[1], t.a)
	px[2] = blend(rgb[2], px[2], t.a)
	px[3] = 0xFF
}

func (e *executor) sprite(rect image.Rectangle, r batch.Request) {
	if rect.Empty() || r.Sprite == batch.NoSprite || int(r.Zoom) >= gpucore.SpriteLevels {
		return
	}
	slot := uint32(r.Sprite)*gpucore.SpriteLevels + uint32(r.Zoom)
	src, ok := e.dev.textures[e.dev.descriptors[slot]]
	if !ok {
		return
	}
	var table []byte
	if r.Mode.NeedsRemap() {
		table = e.remapTable(r.RemapOffset)
	}
	sb := src.bounds()

	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		sy := y - int(r.Top) + int(r.SkipTop)
		for x := rect.Min.X; x < rect.Max.X; x++ {
			sx := x - int(r.Left) + int(r.SkipLeft)
			if !image.Pt(sx, sy).In(sb) {
				continue
			}
			t := decodeTexel(src, sx, sy)
			if t.a == 0 {
				continue
			}
			switch r.Mode {
			case batch.ModeNormal:
				e.put(x, y, t)
			case batch.ModeColourRemap:
				if t.m != 0 {
					if t.m = remapIndex(table, t.m); t.m == 0 {
						continue
					}
					t.rgb = false
				}
				e.put(x, y, t)
			case batch.ModeTransparent:
				e.darken(x, y)
			case batch.ModeTransparentRemap:
				e.remapExisting(x, y, table)
			case batch.ModeCrashRemap:
				if t.m == 0 {
					grey := uint8((uint16(t.r)*77 + uint16(t.g)*151 + uint16(t.b)*28) >> 8)
					t.r, t.g, t.b = grey, grey, grey
				} else {
					t.m = remapIndex(table, t.m)
					t.rgb = false
				}
				e.put(x, y, t)
			case batch.ModeBlackRemap:
				e.put(x, y, texel{a: t.a, rgb: true})
			}
		}
	}
}

// line draws from corner to corner of the request bounds with a square
// pen of width Zoom, skipping every other run of SkipLeft pixels.
func (e *executor) line(r batch.Request) {
	if e.video == nil || e.anim == nil {
		return
	}
	x0, y0, x1, y1 := int(r.Left), int(r.Top), int(r.Right), int(r.Bottom)
	if r.SkipTop&batch.LineAntiDiagonal != 0 {
		x0, x1 = x1, x0
	}
	width := max(int(r.Zoom), 1)
	dash := int(r.SkipLeft)
	bounds := e.video.bounds()

	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := sign(x1-x0), sign(y1-y0)
	errv := dx + dy
	for step := 0; ; step++ {
		if dash <= 0 || (step/dash)%2 == 0 {
			pen := image.Rect(x0-(width-1)/2, y0-(width-1)/2, x0+width/2+1, y0+width/2+1)
			e.fill(pen.Intersect(bounds), r.Colour)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * errv
		if e2 >= dy {
			errv += dy
			x0 += sx
		}
		if e2 <= dx {
			errv += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	}
	return 0
}

func (e *executor) scroll(k gpucore.Kernel, a gpucore.ScrollArgs) {
	for _, t := range []*texture{e.video, e.anim} {
		if t == nil {
			continue
		}
		rect := image.Rect(int(a.Left), int(a.Top), int(a.Left+a.Width), int(a.Top+a.Height)).Intersect(t.bounds())
		if rect.Empty() {
			continue
		}
		switch k {
		case gpucore.KernelScrollX:
			shiftRows(t, rect, int(a.DX))
		case gpucore.KernelScrollY:
			shiftColumns(t, rect, int(a.DY))
		}
	}
}

// shiftRows moves each row of rect right by d texels. Texels shifted in
// from outside rect keep their old value.
func shiftRows(t *texture, rect image.Rectangle, d int) {
	bpp := t.desc.Format.BytesPerTexel()
	w := rect.Dx()
	if d == 0 || abs(d) >= w {
		return
	}
	n := (w - abs(d)) * bpp
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		row := t.pix[y*t.stride+rect.Min.X*bpp : y*t.stride+rect.Max.X*bpp]
		if d > 0 {
			copy(row[d*bpp:], row[:n])
		} else {
			copy(row, row[-d*bpp:])
		}
	}
}

// shiftColumns moves each column of rect down by d texels.
func shiftColumns(t *texture, rect image.Rectangle, d int) {
	bpp := t.desc.Format.BytesPerTexel()
	h := rect.Dy()
	if d == 0 || abs(d) >= h {
		return
	}
	span := rect.Dx() * bpp
	rowAt := func(y int) []byte {
		o := y*t.stride + rect.Min.X*bpp
		return t.pix[o : o+span]
	}
	if d > 0 {
		for y := rect.Max.Y - 1; y >= rect.Min.Y+d; y-- {
			copy(rowAt(y), rowAt(y-d))
		}
	} else {
		for y := rect.Min.Y; y < rect.Max.Y+d; y++ {
			copy(rowAt(y), rowAt(y-d))
		}
	}
}

func (e *executor) composite(target gpucore.TextureID, mode gpucore.ShaderMode) {
	dst, ok := e.dev.textures[target]
	if !ok || e.video == nil || e.anim == nil {
		return
	}
	rect := dst.bounds().Intersect(e.video.bounds())
	e.pool.Rows(rect.Min.Y, rect.Max.Y, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := rect.Min.X; x < rect.Max.X; x++ {
				src := e.videoAt(x, y)
				c := [3]byte{src[0], src[1], src[2]}
				m := *e.animAt(x, y)
				switch mode {
				case gpucore.ShaderModeRemap:
					if m != 0 {
						c = e.paletteColour(m)
					}
				case gpucore.ShaderModePalette:
					c = e.paletteColour(m)
				}
				o := y*dst.stride + x*4
				dst.pix[o], dst.pix[o+1], dst.pix[o+2], dst.pix[o+3] = c[0], c[1], c[2], 0xFF
			}
		}
	})
}
