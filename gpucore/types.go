package gpucore

import (
	"errors"
	"fmt"
)

// Resource IDs
//
// These opaque IDs represent substrate resources. Each substrate keeps its
// own mapping between IDs and backend objects.

// BufferID is an opaque handle to a GPU buffer.
type BufferID uint64

// TextureID is an opaque handle to a GPU texture.
type TextureID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

// ErrDeviceLost is returned by substrates when the device stops executing
// work. It is never recoverable for the session that observed it.
var ErrDeviceLost = errors.New("gpucore: device lost")

// RequestWords is the number of uint32 words in one packed blit request.
const RequestWords = 5

// RemapTableSize is the size in bytes of one colour remap table.
const RemapTableSize = 256

// SpriteLevels is the number of detail levels per sprite descriptor block.
// Sprite level z of handle h lives in descriptor slot h*SpriteLevels+z.
const SpriteLevels = 6

// PaletteSize is the size in bytes of the palette buffer (256 RGBA entries).
const PaletteSize = 256 * 4

// BufferUsage is a bitmask specifying how a buffer will be used.
type BufferUsage uint32

// Buffer usage flags.
const (
	// BufferUsageCopySrc indicates the buffer can be read back.
	BufferUsageCopySrc BufferUsage = 1 << 0

	// BufferUsageCopyDst indicates the buffer can be written from the host.
	BufferUsageCopyDst BufferUsage = 1 << 1

	// BufferUsageStorage indicates the buffer is read by shaders.
	BufferUsageStorage BufferUsage = 1 << 2
)

// TextureUsage is a bitmask specifying how a texture will be used.
type TextureUsage uint32

// Texture usage flags.
const (
	// TextureUsageSampled indicates the texture is read by blit shaders.
	TextureUsageSampled TextureUsage = 1 << 0

	// TextureUsageStorage indicates the texture is written by blit shaders.
	TextureUsageStorage TextureUsage = 1 << 1

	// TextureUsageCopySrc indicates the texture can be read back.
	TextureUsageCopySrc TextureUsage = 1 << 2

	// TextureUsageCopyDst indicates the texture can be written from the host.
	TextureUsageCopyDst TextureUsage = 1 << 3

	// TextureUsagePresent indicates the texture is a swapchain back buffer.
	TextureUsagePresent TextureUsage = 1 << 4
)

// TexelFormat is the element format of a texture.
//
// Sprite formats are a contract between the sprite table and the blit
// kernels: the table encodes texels in exactly this layout and the kernels
// decode it.
type TexelFormat uint32

// Texel formats.
const (
	// TexelFormatR8 is one palette index per texel (animation plane).
	TexelFormatR8 TexelFormat = iota + 1

	// TexelFormatRG8 is a little-endian uint16 per texel: m | a<<8.
	TexelFormatRG8

	// TexelFormatRGBA8 is 8-bit RGBA, non-premultiplied.
	TexelFormatRGBA8

	// TexelFormatRGBA8M is 8 bytes per texel: r, g, b, a, m, 0, 0, 0.
	TexelFormatRGBA8M
)

// BytesPerTexel returns the texel size in bytes, or 0 for unknown formats.
func (f TexelFormat) BytesPerTexel() int {
	switch f {
	case TexelFormatR8:
		return 1
	case TexelFormatRG8:
		return 2
	case TexelFormatRGBA8:
		return 4
	case TexelFormatRGBA8M:
		return 8
	default:
		return 0
	}
}

// String returns the format name.
func (f TexelFormat) String() string {
	switch f {
	case TexelFormatR8:
		return "R8"
	case TexelFormatRG8:
		return "RG8"
	case TexelFormatRGBA8:
		return "RGBA8"
	case TexelFormatRGBA8M:
		return "RGBA8M"
	default:
		return fmt.Sprintf("TexelFormat(%d)", uint32(f))
	}
}

// BufferDescriptor describes a buffer to create.
type BufferDescriptor struct {
	Label string
	Size  uint64
	Usage BufferUsage
}

// TextureDescriptor describes a 2D texture to create.
type TextureDescriptor struct {
	Label  string
	Width  uint32
	Height uint32
	Format TexelFormat
	Usage  TextureUsage
}

// Validate reports whether the descriptor can be created.
func (d *TextureDescriptor) Validate() error {
	if d.Width == 0 || d.Height == 0 {
		return fmt.Errorf("gpucore: texture %q has empty size %dx%d", d.Label, d.Width, d.Height)
	}
	if d.Format.BytesPerTexel() == 0 {
		return fmt.Errorf("gpucore: texture %q has unknown format %s", d.Label, d.Format)
	}
	return nil
}

// Bindings is the resource set a command list draws with.
// Zero IDs mean "unbound".
type Bindings struct {
	Video       TextureID
	Anim        TextureID
	BackupVideo TextureID
	BackupAnim  TextureID
	Palette     BufferID
	Remap       BufferID
}

// PassConstants are set once per flush.
type PassConstants struct {
	Width      uint16
	Height     uint16
	FrameIndex uint32
}

// Words returns the constants in shader layout: {width | height<<16, frame}.
func (c PassConstants) Words() [2]uint32 {
	return [2]uint32{uint32(c.Width) | uint32(c.Height)<<16, c.FrameIndex}
}

// Kernel selects a compute kernel for Dispatch.
type Kernel uint8

// Compute kernels.
const (
	// KernelScrollX shifts each row of a region horizontally.
	// Dispatched as (1, height).
	KernelScrollX Kernel = iota

	// KernelScrollY shifts each column of a region vertically.
	// Dispatched as (width, 1).
	KernelScrollY
)

// String returns the kernel name.
func (k Kernel) String() string {
	switch k {
	case KernelScrollX:
		return "scroll_x"
	case KernelScrollY:
		return "scroll_y"
	default:
		return fmt.Sprintf("Kernel(%d)", uint8(k))
	}
}

// ScrollArgs are the inline constants of the scroll kernels.
type ScrollArgs struct {
	Left, Top, Width, Height int32
	DX, DY                   int32
	SurfaceWidth             int32
	SurfaceHeight            int32
}

// Words returns the arguments in shader layout.
func (a ScrollArgs) Words() [8]uint32 {
	return [8]uint32{
		uint32(a.Left), uint32(a.Top), uint32(a.Width), uint32(a.Height),
		uint32(a.DX), uint32(a.DY), uint32(a.SurfaceWidth), uint32(a.SurfaceHeight),
	}
}

// ShaderMode selects how the composite pass combines the video and
// animation planes into the back buffer.
type ShaderMode uint32

// Composite modes.
const (
	// ShaderModeRemap resolves nonzero animation indices through the palette
	// and uses the video colour elsewhere.
	ShaderModeRemap ShaderMode = 0

	// ShaderModePalette resolves every pixel through the palette.
	ShaderModePalette ShaderMode = 1

	// ShaderModeProgram shows the video plane unchanged.
	ShaderModeProgram ShaderMode = 2
)

// String returns the mode name.
func (m ShaderMode) String() string {
	switch m {
	case ShaderModeRemap:
		return "remap"
	case ShaderModePalette:
		return "palette"
	case ShaderModeProgram:
		return "program"
	default:
		return fmt.Sprintf("ShaderMode(%d)", uint32(m))
	}
}

// ParseShaderMode parses a mode name as returned by String.
func ParseShaderMode(s string) (ShaderMode, error) {
	switch s {
	case "remap", "":
		return ShaderModeRemap, nil
	case "palette":
		return ShaderModePalette, nil
	case "program":
		return ShaderModeProgram, nil
	default:
		return 0, fmt.Errorf("gpucore: unknown shader mode %q", s)
	}
}
