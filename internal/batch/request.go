package batch

import (
	"fmt"
	"math"

	"github.com/gogpu/blit/gpucore"
)

// Type is the kind of a blit request.
type Type uint8

// Request types. The first five are drawn as a rectangle; lines are not.
const (
	TypeRectangle Type = iota
	TypeColourMappingRectangle
	TypeCopyToBackup
	TypeCopyFromBackup
	TypeSprite
	TypeLine

	typeCount
)

// String returns the type name.
func (t Type) String() string {
	switch t {
	case TypeRectangle:
		return "rectangle"
	case TypeColourMappingRectangle:
		return "colour_mapping_rectangle"
	case TypeCopyToBackup:
		return "copy_to_backup"
	case TypeCopyFromBackup:
		return "copy_from_backup"
	case TypeSprite:
		return "sprite"
	case TypeLine:
		return "line"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// Mode selects the shader-side remap and blend behaviour of a request.
type Mode uint8

// Blitter modes.
const (
	ModeNormal Mode = iota
	ModeColourRemap
	ModeTransparent
	ModeTransparentRemap
	ModeCrashRemap
	ModeBlackRemap

	modeCount
)

// NeedsRemap reports whether requests in this mode read a remap table.
func (m Mode) NeedsRemap() bool {
	switch m {
	case ModeColourRemap, ModeTransparentRemap, ModeCrashRemap, ModeBlackRemap:
		return true
	default:
		return false
	}
}

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeColourRemap:
		return "colour_remap"
	case ModeTransparent:
		return "transparent"
	case ModeTransparentRemap:
		return "transparent_remap"
	case ModeCrashRemap:
		return "crash_remap"
	case ModeBlackRemap:
		return "black_remap"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// Packed field widths.
const (
	spriteBits = 17
	spriteMask = 1<<spriteBits - 1
	zoomMask   = 0xF
	typeMask   = 0x7
	modeMask   = 0x7
)

// NoSprite marks a request that does not reference a sprite.
const NoSprite int32 = -1

// MaxSprite is the highest sprite handle the packed format can carry.
// The all-ones value is reserved for NoSprite.
const MaxSprite = spriteMask - 1

// MaxZoom is the highest zoom level the packed format can carry.
const MaxZoom = zoomMask

// Line flags carried in SkipTop of line requests.
const (
	// LineAntiDiagonal marks a line running from the top-right corner of its
	// bounds to the bottom-left one.
	LineAntiDiagonal int16 = 1 << 0
)

// Request is one queued drawing operation.
//
// Bounds are inclusive and always in destination surface coordinates.
// Line requests reuse fields: the bounds are the line's bounding box,
// SkipLeft is the dash length (0 for solid), SkipTop holds line flags and
// Zoom is the stroke width.
type Request struct {
	Left, Top, Right, Bottom int16
	SkipLeft, SkipTop        int16

	Colour uint8
	Type   Type
	Sprite int32
	Zoom   uint8
	Mode   Mode

	// RemapOffset is a byte offset into the current slot's remap arena.
	// Only meaningful when Mode.NeedsRemap().
	RemapOffset uint32
}

// Width returns the request width in pixels.
func (r Request) Width() int { return int(r.Right) - int(r.Left) + 1 }

// Height returns the request height in pixels.
func (r Request) Height() int { return int(r.Bottom) - int(r.Top) + 1 }

// Validate reports whether the request can be packed.
func (r Request) Validate() error {
	if r.Right < r.Left || r.Bottom < r.Top {
		return fmt.Errorf("batch: empty bounds (%d,%d)-(%d,%d)", r.Left, r.Top, r.Right, r.Bottom)
	}
	if r.Type >= typeCount {
		return fmt.Errorf("batch: unknown request type %d", r.Type)
	}
	if r.Mode >= modeCount {
		return fmt.Errorf("batch: unknown blitter mode %d", r.Mode)
	}
	if r.Zoom > MaxZoom {
		return fmt.Errorf("batch: zoom %d out of range", r.Zoom)
	}
	if r.Sprite != NoSprite && (r.Sprite < 0 || r.Sprite > MaxSprite) {
		return fmt.Errorf("batch: sprite handle %d out of range", r.Sprite)
	}
	if r.RemapOffset%gpucore.RemapTableSize != 0 {
		return fmt.Errorf("batch: remap offset %d not table aligned", r.RemapOffset)
	}
	return nil
}

// Pack writes the request into dst in wire layout.
// dst must hold at least gpucore.RequestWords words.
func (r Request) Pack(dst []uint32) {
	_ = dst[gpucore.RequestWords-1]

	sprite := uint32(spriteMask)
	if r.Sprite != NoSprite {
		sprite = uint32(r.Sprite) & spriteMask
	}

	dst[0] = uint32(uint16(r.Left)) | uint32(uint16(r.Top))<<16
	dst[1] = uint32(uint16(r.Right)) | uint32(uint16(r.Bottom))<<16
	dst[2] = uint32(uint16(r.SkipLeft)) | uint32(uint16(r.SkipTop))<<16
	dst[3] = uint32(r.Colour) |
		(uint32(r.Type)&typeMask)<<8 |
		sprite<<11 |
		(uint32(r.Zoom)&zoomMask)<<28
	dst[4] = uint32(r.Mode)&modeMask | (r.RemapOffset/gpucore.RemapTableSize)<<3
}

// AppendWords appends the packed request to dst.
func (r Request) AppendWords(dst []uint32) []uint32 {
	var w [gpucore.RequestWords]uint32
	r.Pack(w[:])
	return append(dst, w[:]...)
}

// Unpack decodes one packed request.
func Unpack(words []uint32) Request {
	_ = words[gpucore.RequestWords-1]

	sprite := int32((words[3] >> 11) & spriteMask)
	if sprite == spriteMask {
		sprite = NoSprite
	}
	return Request{
		Left:        int16(uint16(words[0])),
		Top:         int16(uint16(words[0] >> 16)),
		Right:       int16(uint16(words[1])),
		Bottom:      int16(uint16(words[1] >> 16)),
		SkipLeft:    int16(uint16(words[2])),
		SkipTop:     int16(uint16(words[2] >> 16)),
		Colour:      uint8(words[3]),
		Type:        Type((words[3] >> 8) & typeMask),
		Sprite:      sprite,
		Zoom:        uint8((words[3] >> 28) & zoomMask),
		Mode:        Mode(words[4] & modeMask),
		RemapOffset: (words[4] >> 3) * gpucore.RemapTableSize,
	}
}

// FitsCoord reports whether v can be carried by a packed coordinate.
func FitsCoord(v int) bool {
	return v >= math.MinInt16 && v <= math.MaxInt16
}
