package sprite

import (
	"github.com/gogpu/blit/gpucore"
)

// encoded is one level ready for upload.
type encoded struct {
	format      gpucore.TexelFormat
	width       uint32
	height      uint32
	bytesPerRow uint32
	data        []byte
}

// Encode converts a level into the texel layout the blit kernels expect.
//
//	palette, palette+alpha  RG8     m | a<<8
//	rgb, rgb+alpha          RGBA8   r g b a
//	rgb+palette (+alpha)    RGBA8M  r g b a m 0 0 0
//
// Levels without an alpha channel are opaque wherever they carry colour.
func Encode(l *Level) (gpucore.TexelFormat, []byte, error) {
	e, err := encode(l)
	if err != nil {
		return 0, nil, err
	}
	return e.format, e.data, nil
}

func encode(l *Level) (encoded, error) {
	if err := l.Validate(); err != nil {
		return encoded{}, err
	}

	var format gpucore.TexelFormat
	switch {
	case l.Colours&ColourRGB == 0:
		format = gpucore.TexelFormatRG8
	case l.Colours&ColourPalette == 0:
		format = gpucore.TexelFormatRGBA8
	default:
		format = gpucore.TexelFormatRGBA8M
	}

	hasAlpha := l.Colours&ColourAlpha != 0
	bpt := format.BytesPerTexel()
	data := make([]byte, len(l.Pixels)*bpt)

	for i, p := range l.Pixels {
		a := p.A
		if !hasAlpha {
			a = 0xFF
			if format == gpucore.TexelFormatRG8 && p.M == 0 {
				a = 0
			}
		}
		d := data[i*bpt:]
		switch format {
		case gpucore.TexelFormatRG8:
			d[0] = p.M
			d[1] = a
		case gpucore.TexelFormatRGBA8:
			d[0], d[1], d[2], d[3] = p.R, p.G, p.B, a
		case gpucore.TexelFormatRGBA8M:
			d[0], d[1], d[2], d[3] = p.R, p.G, p.B, a
			d[4] = p.M
		}
	}

	return encoded{
		format:      format,
		width:       uint32(l.Width),
		height:      uint32(l.Height),
		bytesPerRow: uint32(l.Width * bpt),
		data:        data,
	}, nil
}
