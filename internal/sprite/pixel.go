package sprite

import (
	"errors"
	"fmt"

	"github.com/gogpu/blit/gpucore"
)

// MaxLevels is the number of detail levels a sprite can carry.
const MaxLevels = gpucore.SpriteLevels

// Colours describes which channels of a sprite level carry data.
type Colours uint8

// Colour channel bits.
const (
	ColourRGB     Colours = 1 << 0
	ColourAlpha   Colours = 1 << 1
	ColourPalette Colours = 1 << 2
)

// String returns a compact channel list such as "rgb|a|m".
func (c Colours) String() string {
	if c == 0 {
		return "none"
	}
	s := ""
	add := func(part string) {
		if s != "" {
			s += "|"
		}
		s += part
	}
	if c&ColourRGB != 0 {
		add("rgb")
	}
	if c&ColourAlpha != 0 {
		add("a")
	}
	if c&ColourPalette != 0 {
		add("m")
	}
	return s
}

// Kind distinguishes sprites by how many detail levels they carry.
type Kind uint8

const (
	// KindNormal sprites carry every detail level present in the collection.
	KindNormal Kind = iota
	// KindFont sprites carry only level 0.
	KindFont
)

// Pixel is one decoded sprite pixel. M is the palette index; 0 means "no
// palette colour".
type Pixel struct {
	R, G, B, A, M uint8
}

// Level is one detail level of a sprite.
type Level struct {
	Width, Height int
	Colours       Colours
	// Pixels are row-major, Width*Height long.
	Pixels []Pixel
}

// Validate reports whether the level can be encoded.
func (l *Level) Validate() error {
	if l.Width <= 0 || l.Height <= 0 {
		return fmt.Errorf("sprite: empty level %dx%d", l.Width, l.Height)
	}
	if len(l.Pixels) != l.Width*l.Height {
		return fmt.Errorf("sprite: level %dx%d has %d pixels", l.Width, l.Height, len(l.Pixels))
	}
	if l.Colours&(ColourRGB|ColourPalette) == 0 {
		return fmt.Errorf("%w: %s", ErrComposition, l.Colours)
	}
	return nil
}

// Collection is the set of detail levels of one sprite. Absent levels are nil.
type Collection struct {
	Kind   Kind
	Levels [MaxLevels]*Level
}

// levels returns the detail levels the table creates textures for.
func (c *Collection) levels() []int {
	if c.Kind == KindFont {
		if c.Levels[0] == nil {
			return nil
		}
		return []int{0}
	}
	var out []int
	for z, l := range c.Levels {
		if l != nil {
			out = append(out, z)
		}
	}
	return out
}

var (
	// ErrComposition is returned for levels without colour or palette data.
	ErrComposition = errors.New("sprite: unsupported colour composition")

	// ErrNoLevels is returned for collections without any usable level.
	ErrNoLevels = errors.New("sprite: collection has no levels")

	// ErrTableFull is returned once the table holds its maximum handle count.
	ErrTableFull = errors.New("sprite: table full")

	// ErrUnknownHandle is returned for handles the table never issued.
	ErrUnknownHandle = errors.New("sprite: unknown handle")
)
