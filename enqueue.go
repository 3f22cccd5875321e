package blit

import (
	"math"

	"github.com/gogpu/blit/internal/batch"
	"github.com/gogpu/blit/internal/remap"
)

type dropReason uint8

const (
	dropOutOfRange dropReason = iota
	dropInvalid
	dropNonResident

	dropReasons
)

func (r dropReason) String() string {
	switch r {
	case dropOutOfRange:
		return "coordinates out of range"
	case dropInvalid:
		return "invalid request"
	default:
		return "sprite not resident"
	}
}

// drop counts a refused request. Each reason is logged once per engine.
func (e *Engine) drop(reason dropReason, typ batch.Type) {
	switch reason {
	case dropOutOfRange:
		e.dropped.OutOfRange++
	case dropInvalid:
		e.dropped.Invalid++
	case dropNonResident:
		e.dropped.NonResident++
	}
	if !e.warned[reason] {
		e.warned[reason] = true
		Logger().Warn("blit: dropping request", "reason", reason.String(), "type", typ.String())
	}
}

// rect builds a request over inclusive bounds, or drops it.
func (e *Engine) rect(typ batch.Type, left, top, right, bottom int) (batch.Request, bool) {
	if right < left || bottom < top {
		e.drop(dropInvalid, typ)
		return batch.Request{}, false
	}
	if !batch.FitsCoord(left) || !batch.FitsCoord(top) || !batch.FitsCoord(right) || !batch.FitsCoord(bottom) {
		e.drop(dropOutOfRange, typ)
		return batch.Request{}, false
	}
	return batch.Request{
		Left:   int16(left),
		Top:    int16(top),
		Right:  int16(right),
		Bottom: int16(bottom),
		Type:   typ,
		Sprite: batch.NoSprite,
	}, true
}

// enqueue appends r, flushing first when the queue is full. table, when
// non-nil, is reserved in the current slot's arena after that flush so
// the offset lands in the batch that reads it.
func (e *Engine) enqueue(r batch.Request, table []byte) {
	if e.closed || e.err != nil {
		return
	}
	if err := r.Validate(); err != nil {
		e.drop(dropInvalid, r.Type)
		return
	}
	if e.queue.Full() {
		if err := e.flush(); err != nil {
			return
		}
	}
	if table != nil {
		off, err := e.ring.Current().Arena.Reserve(table)
		if err != nil {
			_ = e.fail(err)
			return
		}
		r.RemapOffset = off
	}
	e.queue.Enqueue(r)
}

// EnqueueFillRect fills the inclusive rectangle with palette colour.
func (e *Engine) EnqueueFillRect(left, top, right, bottom int, colour uint8) {
	r, ok := e.rect(batch.TypeRectangle, left, top, right, bottom)
	if !ok {
		return
	}
	r.Colour = colour
	e.enqueue(r, nil)
}

// FillRectWH fills a width x height rectangle at (x, y).
func (e *Engine) FillRectWH(x, y, width, height int, colour uint8) {
	if width <= 0 || height <= 0 {
		e.drop(dropInvalid, batch.TypeRectangle)
		return
	}
	e.EnqueueFillRect(x, y, x+width-1, y+height-1, colour)
}

// EnqueueDrawLine draws a line from (x0, y0) to (x1, y1), both ends
// inclusive. width is the pen size in pixels (1 to 15). A positive dash
// alternates dash pixels on and dash pixels off.
func (e *Engine) EnqueueDrawLine(x0, y0, x1, y1 int, colour uint8, width, dash int) {
	r, ok := e.rect(batch.TypeLine, min(x0, x1), min(y0, y1), max(x0, x1), max(y0, y1))
	if !ok {
		return
	}
	r.Colour = colour
	r.Zoom = uint8(min(max(width, 1), batch.MaxZoom))
	r.SkipLeft = int16(min(max(dash, 0), math.MaxInt16))
	if (x1 < x0) != (y1 < y0) && x0 != x1 && y0 != y1 {
		r.SkipTop = batch.LineAntiDiagonal
	}
	e.enqueue(r, nil)
}

// EnqueueColourMappingRect recolours a width x height rectangle through the
// remap table of pal. Without a table the area is darkened.
func (e *Engine) EnqueueColourMappingRect(x, y, width, height int, pal PaletteID) {
	if width <= 0 || height <= 0 {
		e.drop(dropInvalid, batch.TypeColourMappingRectangle)
		return
	}
	r, ok := e.rect(batch.TypeColourMappingRectangle, x, y, x+width-1, y+height-1)
	if !ok {
		return
	}
	r.Mode = batch.ModeTransparent
	table := e.remapTable(pal)
	if table != nil {
		r.Mode = batch.ModeTransparentRemap
	}
	e.enqueue(r, table)
}

// remapTable returns the provider table of pal, or nil when there is no
// provider or it has no valid table. Results are cached per palette.
func (e *Engine) remapTable(pal PaletteID) []byte {
	if e.remapTables == nil {
		return nil
	}
	t := e.remapTables.GetOrCreate(pal, func() []byte {
		t := e.opts.remapProvider(pal)
		if len(t) != remap.TableSize {
			return nil
		}
		return t
	})
	return t
}

// InvalidateRemapTables forgets every table obtained from the remap
// provider. Call it when the provider starts returning different tables.
func (e *Engine) InvalidateRemapTables() {
	if e.remapTables != nil {
		e.remapTables.Clear()
	}
}

// SpriteBlit describes one sprite draw.
type SpriteBlit struct {
	Handle SpriteHandle
	// Dest is the destination rectangle; Max is exclusive.
	Dest Rect
	// SkipLeft and SkipTop offset the first sampled texel, for sprites
	// clipped at the left or top edge.
	SkipLeft, SkipTop int
	// Zoom is the detail level to sample.
	Zoom int
	Mode BlitterMode
	// Remap is the 256-byte table used by the remapping modes.
	Remap []byte
}

// EnqueueSpriteBlit draws a sprite level. Requests naming an unknown or
// evicted level are dropped.
func (e *Engine) EnqueueSpriteBlit(b SpriteBlit) {
	if b.Dest.Empty() || b.Zoom < 0 || b.Zoom >= MaxSpriteLevels || b.SkipLeft < 0 || b.SkipTop < 0 {
		e.drop(dropInvalid, batch.TypeSprite)
		return
	}
	if !batch.FitsCoord(b.SkipLeft) || !batch.FitsCoord(b.SkipTop) {
		e.drop(dropOutOfRange, batch.TypeSprite)
		return
	}
	if _, ok := e.sprites.Texture(b.Handle, b.Zoom); !ok {
		e.drop(dropNonResident, batch.TypeSprite)
		return
	}
	var table []byte
	if b.Mode.NeedsRemap() {
		if len(b.Remap) != remap.TableSize {
			e.drop(dropInvalid, batch.TypeSprite)
			return
		}
		table = b.Remap
	}
	r, ok := e.rect(batch.TypeSprite, b.Dest.Min.X, b.Dest.Min.Y, b.Dest.Max.X-1, b.Dest.Max.Y-1)
	if !ok {
		return
	}
	r.Sprite = int32(b.Handle)
	r.Zoom = uint8(b.Zoom)
	r.Mode = b.Mode
	r.SkipLeft = int16(b.SkipLeft)
	r.SkipTop = int16(b.SkipTop)
	e.sprites.Touch(b.Handle)
	e.enqueue(r, table)
}

// EnqueueCopyToBackup copies a rectangle of both planes into the backup
// planes.
func (e *Engine) EnqueueCopyToBackup(x, y, width, height int) {
	e.backup(batch.TypeCopyToBackup, x, y, width, height)
}

// EnqueueCopyFromBackup restores a rectangle of both planes from the
// backup planes.
func (e *Engine) EnqueueCopyFromBackup(x, y, width, height int) {
	e.backup(batch.TypeCopyFromBackup, x, y, width, height)
}

func (e *Engine) backup(typ batch.Type, x, y, width, height int) {
	if width <= 0 || height <= 0 {
		e.drop(dropInvalid, typ)
		return
	}
	if r, ok := e.rect(typ, x, y, x+width-1, y+height-1); ok {
		e.enqueue(r, nil)
	}
}
