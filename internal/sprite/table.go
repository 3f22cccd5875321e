package sprite

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/gogpu/blit/gpucore"
)

// Handle identifies a sprite. Handles are assigned sequentially from 0 and
// stay valid for the lifetime of the table.
type Handle int32

// DefaultMaxSprites is the default handle limit.
const DefaultMaxSprites = 100000

// HardLimit is the largest handle count the packed request format allows.
const HardLimit = 1<<17 - 1

// DescriptorSlot returns the substrate descriptor slot of a sprite level.
func DescriptorSlot(h Handle, level int) uint32 {
	return uint32(h)*MaxLevels + uint32(level)
}

// Config configures a Table.
type Config struct {
	// MaxSprites limits the number of handles. Values <= 0 select
	// DefaultMaxSprites; values above HardLimit are clamped.
	MaxSprites int

	// Budget is the resident texel byte budget. 0 disables eviction and
	// keeps every sprite resident forever.
	Budget int64
}

// Stats holds table counters.
type Stats struct {
	Sprites       int
	Resident      int
	ResidentBytes int64
	Pending       int
	Evictions     uint64
	Restores      uint64
}

type entry struct {
	textures [MaxLevels]gpucore.TextureID
	bytes    int64
	resident bool
	node     *residencyNode
}

// retired textures wait until the fence value they were last used under
// has completed.
type retired struct {
	handle   Handle
	textures [MaxLevels]gpucore.TextureID
	after    uint64
}

// Table maps sprite handles to per-detail-level textures.
//
// Textures are immutable once created, so any frame slot may read them.
// With a budget the table evicts least recently blitted sprites at frame
// boundaries (Trim) and destroys their textures once the GPU is done with
// them (Reclaim). Evicted handles keep their identity and can be restored.
//
// Table is not safe for concurrent use.
type Table struct {
	dev gpucore.Device
	cfg Config

	entries       []entry
	lru           residency
	residentBytes int64
	retired       []retired

	evictions uint64
	restores  uint64
}

// NewTable creates an empty table creating textures on dev.
func NewTable(dev gpucore.Device, cfg Config) *Table {
	if cfg.MaxSprites <= 0 {
		cfg.MaxSprites = DefaultMaxSprites
	}
	if cfg.MaxSprites > HardLimit {
		cfg.MaxSprites = HardLimit
	}
	return &Table{dev: dev, cfg: cfg}
}

// Create uploads every level of c and returns the new handle, which equals
// the previous table length.
func (t *Table) Create(c *Collection) (Handle, error) {
	if len(t.entries) >= t.cfg.MaxSprites {
		return -1, fmt.Errorf("%w: %d sprites", ErrTableFull, len(t.entries))
	}
	h := Handle(len(t.entries))

	textures, size, err := t.upload(h, c)
	if err != nil {
		return -1, err
	}

	e := entry{textures: textures, bytes: size, resident: true}
	if t.cfg.Budget > 0 {
		e.node = t.lru.push(h)
	}
	t.entries = append(t.entries, e)
	t.residentBytes += size
	return h, nil
}

// Restore re-uploads the levels of an evicted sprite under its old handle.
// Restoring a resident sprite does nothing.
func (t *Table) Restore(h Handle, c *Collection) error {
	if !t.valid(h) {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	e := &t.entries[h]
	if e.resident {
		return nil
	}

	textures, size, err := t.upload(h, c)
	if err != nil {
		return err
	}
	e.textures = textures
	e.bytes = size
	e.resident = true
	if t.cfg.Budget > 0 {
		e.node = t.lru.push(h)
	}
	t.residentBytes += size
	t.restores++
	return nil
}

// upload encodes the levels of c in parallel and creates one texture per
// level. Descriptors are published only after every level succeeded.
func (t *Table) upload(h Handle, c *Collection) ([MaxLevels]gpucore.TextureID, int64, error) {
	var textures [MaxLevels]gpucore.TextureID
	if c == nil {
		return textures, 0, ErrNoLevels
	}
	levels := c.levels()
	if len(levels) == 0 {
		return textures, 0, ErrNoLevels
	}

	var enc [MaxLevels]encoded
	var g errgroup.Group
	for _, z := range levels {
		g.Go(func() error {
			e, err := encode(c.Levels[z])
			if err != nil {
				return fmt.Errorf("sprite %d level %d: %w", h, z, err)
			}
			enc[z] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return textures, 0, err
	}

	var size int64
	for _, z := range levels {
		e := enc[z]
		id, err := t.dev.CreateTexture(&gpucore.TextureDescriptor{
			Label:  fmt.Sprintf("sprite_%d_z%d", h, z),
			Width:  e.width,
			Height: e.height,
			Format: e.format,
			Usage:  gpucore.TextureUsageSampled | gpucore.TextureUsageCopyDst,
		})
		if err != nil {
			t.destroy(textures)
			return [MaxLevels]gpucore.TextureID{}, 0, fmt.Errorf("create sprite %d level %d: %w", h, z, err)
		}
		textures[z] = id
		if err := t.dev.WriteTexture(id, e.data, e.bytesPerRow); err != nil {
			t.destroy(textures)
			return [MaxLevels]gpucore.TextureID{}, 0, fmt.Errorf("write sprite %d level %d: %w", h, z, err)
		}
		size += int64(len(e.data))
	}

	for _, z := range levels {
		if err := t.dev.SetSpriteDescriptor(DescriptorSlot(h, z), textures[z]); err != nil {
			for _, zz := range levels {
				_ = t.dev.SetSpriteDescriptor(DescriptorSlot(h, zz), gpucore.InvalidID)
			}
			t.destroy(textures)
			return [MaxLevels]gpucore.TextureID{}, 0, fmt.Errorf("publish sprite %d level %d: %w", h, z, err)
		}
	}
	return textures, size, nil
}

func (t *Table) destroy(textures [MaxLevels]gpucore.TextureID) {
	for _, id := range textures {
		if id != gpucore.InvalidID {
			t.dev.DestroyTexture(id)
		}
	}
}

func (t *Table) valid(h Handle) bool {
	return h >= 0 && int(h) < len(t.entries)
}

// Texture returns the texture of a resident sprite level.
func (t *Table) Texture(h Handle, level int) (gpucore.TextureID, bool) {
	if !t.valid(h) || level < 0 || level >= MaxLevels {
		return gpucore.InvalidID, false
	}
	e := &t.entries[h]
	if !e.resident || e.textures[level] == gpucore.InvalidID {
		return gpucore.InvalidID, false
	}
	return e.textures[level], true
}

// Touch marks h as just used. It only matters when eviction is enabled.
func (t *Table) Touch(h Handle) {
	if t.cfg.Budget <= 0 || !t.valid(h) {
		return
	}
	if e := &t.entries[h]; e.resident {
		t.lru.touch(e.node)
	}
}

// Trim evicts least recently used sprites until the resident bytes fit the
// budget. after is the fence value of the last submission that may have
// read them; their textures are destroyed by Reclaim once it completes.
// It returns the number of evicted sprites.
func (t *Table) Trim(after uint64) int {
	if t.cfg.Budget <= 0 {
		return 0
	}
	n := 0
	for t.residentBytes > t.cfg.Budget {
		h, ok := t.lru.oldest()
		if !ok {
			break
		}
		e := &t.entries[h]
		t.retired = append(t.retired, retired{handle: h, textures: e.textures, after: after})
		t.residentBytes -= e.bytes
		e.textures = [MaxLevels]gpucore.TextureID{}
		e.bytes = 0
		e.resident = false
		e.node = nil
		t.evictions++
		n++
	}
	return n
}

// Reclaim destroys retired textures whose fence value has completed and
// clears the descriptors of sprites that were not restored meanwhile.
// It returns the number of textures destroyed.
func (t *Table) Reclaim(completed uint64) int {
	n := 0
	kept := t.retired[:0]
	for _, r := range t.retired {
		if r.after > completed {
			kept = append(kept, r)
			continue
		}
		restored := t.entries[r.handle].resident
		for z, id := range r.textures {
			if id == gpucore.InvalidID {
				continue
			}
			if !restored {
				_ = t.dev.SetSpriteDescriptor(DescriptorSlot(r.handle, z), gpucore.InvalidID)
			}
			t.dev.DestroyTexture(id)
			n++
		}
	}
	t.retired = kept
	return n
}

// Len returns the number of handles ever created.
func (t *Table) Len() int { return len(t.entries) }

// Stats returns the table counters.
func (t *Table) Stats() Stats {
	resident := 0
	for i := range t.entries {
		if t.entries[i].resident {
			resident++
		}
	}
	return Stats{
		Sprites:       len(t.entries),
		Resident:      resident,
		ResidentBytes: t.residentBytes,
		Pending:       len(t.retired),
		Evictions:     t.evictions,
		Restores:      t.restores,
	}
}

// Close destroys every texture the table owns. The caller guarantees no
// submitted work still reads them.
func (t *Table) Close() {
	for i := range t.entries {
		t.destroy(t.entries[i].textures)
		t.entries[i] = entry{}
	}
	for _, r := range t.retired {
		t.destroy(r.textures)
	}
	t.retired = nil
	t.lru = residency{}
	t.residentBytes = 0
}
