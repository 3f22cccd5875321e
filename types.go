package blit

import (
	"github.com/gogpu/blit/internal/batch"
	"github.com/gogpu/blit/internal/remap"
	"github.com/gogpu/blit/internal/sprite"
)

// Sprite types.
type (
	// SpriteHandle identifies a sprite created with CreateGPUSprite.
	SpriteHandle = sprite.Handle
	// SpriteCollection is the set of detail levels of one sprite.
	SpriteCollection = sprite.Collection
	// SpriteLevel is one detail level.
	SpriteLevel = sprite.Level
	// SpritePixel is one decoded sprite pixel.
	SpritePixel = sprite.Pixel
	// SpriteKind tells normal sprites from font glyphs.
	SpriteKind = sprite.Kind
	// SpriteColours describes which channels a level carries.
	SpriteColours = sprite.Colours
)

// Sprite kinds and channel flags.
const (
	SpriteKindNormal = sprite.KindNormal
	SpriteKindFont   = sprite.KindFont

	ColourRGB     = sprite.ColourRGB
	ColourAlpha   = sprite.ColourAlpha
	ColourPalette = sprite.ColourPalette
)

// MaxSpriteLevels is the number of detail levels a sprite may carry.
const MaxSpriteLevels = sprite.MaxLevels

// RemapTableSize is the size of a remap table in bytes.
const RemapTableSize = remap.TableSize

// BlitterMode selects how sprite texels are remapped and blended.
type BlitterMode = batch.Mode

// Blitter modes.
const (
	ModeNormal           = batch.ModeNormal
	ModeColourRemap      = batch.ModeColourRemap
	ModeTransparent      = batch.ModeTransparent
	ModeTransparentRemap = batch.ModeTransparentRemap
	ModeCrashRemap       = batch.ModeCrashRemap
	ModeBlackRemap       = batch.ModeBlackRemap
)

// Stats is a snapshot of engine counters. They are diagnostic only.
type Stats struct {
	// Frames is the number of presented frames.
	Frames uint64
	// LastFence is the fence value of the most recent submission.
	LastFence uint64
	// InFlight is the number of frame slots the GPU has not finished.
	InFlight int
	// Pending is the number of queued, unflushed requests.
	Pending int
	Batch   batch.Stats
	// Remap sums the counters of every slot arena. Used is the current
	// slot; HighWatermark is the largest of any slot.
	Remap   remap.Stats
	Sprites sprite.Stats
	Dropped DropStats
}

// DropStats counts requests the engine refused to draw.
type DropStats struct {
	// OutOfRange requests had coordinates the packed format cannot carry.
	OutOfRange uint64
	// Invalid requests had empty bounds, a bad zoom level or a missing
	// remap table.
	Invalid uint64
	// NonResident requests referenced an unknown or evicted sprite level.
	NonResident uint64
}

// Total returns the number of dropped requests.
func (d DropStats) Total() uint64 { return d.OutOfRange + d.Invalid + d.NonResident }
