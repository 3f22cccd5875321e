package remap

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/gogpu/blit/gpucore"
)

// TableSize is the size of one remap table in bytes.
const TableSize = gpucore.RemapTableSize

// DefaultCapacity is the default per-slot arena size (64 MiB).
const DefaultCapacity = 64 << 20

var (
	// ErrArenaExhausted is returned when a table does not fit in the arena.
	ErrArenaExhausted = errors.New("remap: arena exhausted")

	// ErrTableSize is returned for tables that are not exactly TableSize bytes.
	ErrTableSize = errors.New("remap: table must be 256 bytes")
)

// Stats holds arena counters. Writes, Hits and Collisions cover the
// lifetime of the arena; Used is the current frame.
type Stats struct {
	// Writes is the number of tables copied into the arena.
	Writes uint64
	// Hits is the number of reservations answered from the cache.
	Hits uint64
	// Collisions counts hash matches whose content differed.
	Collisions uint64
	// Used is the current write cursor in bytes.
	Used int
	// HighWatermark is the largest cursor ever reached.
	HighWatermark int
}

// Arena is a linear byte arena of remap tables for one frame slot.
//
// Identical tables reserved within one frame share a single offset. The
// cache and cursor are frame scoped: Reset must be called when the slot is
// reacquired, and never while submitted work may still read the arena.
//
// Arena keeps a host mirror of the written range; the owner uploads the
// range returned by Dirty before submitting work that reads it.
type Arena struct {
	buf      []byte
	capacity int
	cursor   int
	uploaded int

	// hash -> offsets with that hash, oldest first
	cache  map[uint64][]uint32
	verify bool
	hash   func([]byte) uint64

	stats Stats
}

// New creates an arena of capacity bytes. capacity must be a positive
// multiple of TableSize. When verify is true a cache hit is only accepted if
// the stored bytes equal the table; otherwise the hash alone decides.
func New(capacity int, verify bool) (*Arena, error) {
	if capacity <= 0 || capacity%TableSize != 0 {
		return nil, fmt.Errorf("remap: capacity %d must be a positive multiple of %d", capacity, TableSize)
	}
	return &Arena{
		capacity: capacity,
		cache:    make(map[uint64][]uint32),
		verify:   verify,
		hash:     Hash,
	}, nil
}

// Reserve returns the arena offset holding table, copying it in if no
// identical table was reserved since the last Reset.
func (a *Arena) Reserve(table []byte) (uint32, error) {
	if len(table) != TableSize {
		return 0, ErrTableSize
	}

	h := a.hash(table)
	offsets := a.cache[h]
	for _, off := range offsets {
		if !a.verify || bytes.Equal(a.buf[off:int(off)+TableSize], table) {
			a.stats.Hits++
			return off, nil
		}
		a.stats.Collisions++
	}

	if a.cursor+TableSize > a.capacity {
		return 0, fmt.Errorf("%w: %d of %d bytes used", ErrArenaExhausted, a.cursor, a.capacity)
	}

	off := uint32(a.cursor)
	a.buf = append(a.buf, table...)
	a.cursor += TableSize
	a.cache[h] = append(offsets, off)

	a.stats.Writes++
	if a.cursor > a.stats.HighWatermark {
		a.stats.HighWatermark = a.cursor
	}
	return off, nil
}

// Dirty returns the written range not yet uploaded.
// data aliases the arena mirror and is valid until the next Reserve or Reset.
func (a *Arena) Dirty() (offset int, data []byte) {
	return a.uploaded, a.buf[a.uploaded:a.cursor]
}

// MarkUploaded records that everything written so far has been uploaded.
func (a *Arena) MarkUploaded() {
	a.uploaded = a.cursor
}

// Reset empties the arena for a new frame.
func (a *Arena) Reset() {
	a.buf = a.buf[:0]
	a.cursor = 0
	a.uploaded = 0
	clear(a.cache)
}

// Used returns the number of bytes written this frame.
func (a *Arena) Used() int { return a.cursor }

// Capacity returns the arena size in bytes.
func (a *Arena) Capacity() int { return a.capacity }

// Bytes returns the table stored at offset.
func (a *Arena) Bytes(offset uint32) ([]byte, bool) {
	end := int(offset) + TableSize
	if int(offset)%TableSize != 0 || end > a.cursor {
		return nil, false
	}
	return a.buf[offset:end], true
}

// Stats returns the arena counters.
func (a *Arena) Stats() Stats {
	s := a.stats
	s.Used = a.cursor
	return s
}
