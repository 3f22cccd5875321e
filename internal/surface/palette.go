package surface

import (
	"fmt"
	"image/color"

	"github.com/gogpu/blit/gpucore"
	"github.com/gogpu/blit/internal/frame"
)

// PaletteEntries is the number of palette colours.
const PaletteEntries = gpucore.PaletteSize / 4

// Palette is the host copy of the 256-entry palette. Each frame slot holds
// its own GPU copy, refreshed when the slot's PaletteDirty flag is set.
type Palette struct {
	data [gpucore.PaletteSize]byte
}

// Update writes colours starting at entry first and marks every slot
// dirty. Colours past the last entry are ignored.
func (p *Palette) Update(colours []color.RGBA, first int, slots []*frame.Slot) {
	if first < 0 || first >= PaletteEntries {
		return
	}
	for i, c := range colours {
		n := first + i
		if n >= PaletteEntries {
			break
		}
		copy(p.data[n*4:], []byte{c.R, c.G, c.B, c.A})
	}
	MarkDirty(slots)
}

// At returns entry i.
func (p *Palette) At(i uint8) color.RGBA {
	o := int(i) * 4
	return color.RGBA{R: p.data[o], G: p.data[o+1], B: p.data[o+2], A: p.data[o+3]}
}

// Bytes returns the packed palette. The slice aliases the palette.
func (p *Palette) Bytes() []byte { return p.data[:] }

// Upload writes the palette into the slot's buffer if it is dirty and
// reports whether it did.
func (p *Palette) Upload(dev gpucore.Device, s *frame.Slot) (bool, error) {
	if !s.PaletteDirty {
		return false, nil
	}
	if err := dev.WriteBuffer(s.Palette, 0, p.data[:]); err != nil {
		return false, fmt.Errorf("upload palette for slot %d: %w", s.Index(), err)
	}
	s.PaletteDirty = false
	return true, nil
}

// MarkDirty flags every slot's palette copy as stale.
func MarkDirty(slots []*frame.Slot) {
	for _, s := range slots {
		s.PaletteDirty = true
	}
}
