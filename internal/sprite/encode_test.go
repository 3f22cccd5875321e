package sprite

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gogpu/blit/gpucore"
)

func TestEncodeFormats(t *testing.T) {
	px := Pixel{R: 1, G: 2, B: 3, A: 128, M: 9}
	tests := []struct {
		name    string
		colours Colours
		format  gpucore.TexelFormat
		texel   []byte
	}{
		{"palette", ColourPalette, gpucore.TexelFormatRG8, []byte{9, 0xFF}},
		{"palette alpha", ColourPalette | ColourAlpha, gpucore.TexelFormatRG8, []byte{9, 128}},
		{"rgb", ColourRGB, gpucore.TexelFormatRGBA8, []byte{1, 2, 3, 0xFF}},
		{"rgba", ColourRGB | ColourAlpha, gpucore.TexelFormatRGBA8, []byte{1, 2, 3, 128}},
		{"rgba palette", ColourRGB | ColourAlpha | ColourPalette, gpucore.TexelFormatRGBA8M, []byte{1, 2, 3, 128, 9, 0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format, data, err := Encode(solidLevel(2, 1, tt.colours, px))
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if format != tt.format {
				t.Errorf("format = %s, want %s", format, tt.format)
			}
			want := append(append([]byte(nil), tt.texel...), tt.texel...)
			if !bytes.Equal(data, want) {
				t.Errorf("data = %v, want %v", data, want)
			}
		})
	}
}

func TestEncodePaletteWithoutAlphaIsTransparentAtZero(t *testing.T) {
	l := &Level{Width: 2, Height: 1, Colours: ColourPalette, Pixels: []Pixel{{M: 0}, {M: 5}}}
	_, data, err := Encode(l)
	if err != nil {
		t.Fatal(err)
	}
	if want := []byte{0, 0, 5, 0xFF}; !bytes.Equal(data, want) {
		t.Errorf("data = %v, want %v", data, want)
	}
}

func TestEncodeValidation(t *testing.T) {
	tests := []struct {
		name string
		l    *Level
	}{
		{"empty", &Level{Colours: ColourRGB}},
		{"short pixels", &Level{Width: 2, Height: 2, Colours: ColourRGB, Pixels: make([]Pixel, 3)}},
		{"alpha only", solidLevel(1, 1, ColourAlpha, Pixel{})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := Encode(tt.l); err == nil {
				t.Error("Encode() succeeded, want error")
			}
		})
	}
	if _, _, err := Encode(solidLevel(1, 1, 0, Pixel{})); !errors.Is(err, ErrComposition) {
		t.Errorf("Encode(no channels) error = %v, want %v", err, ErrComposition)
	}
}

func TestColoursString(t *testing.T) {
	if got := (ColourRGB | ColourAlpha | ColourPalette).String(); got != "rgb|a|m" {
		t.Errorf("String() = %q", got)
	}
	if got := Colours(0).String(); got != "none" {
		t.Errorf("String() = %q", got)
	}
}
