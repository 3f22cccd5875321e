package blit

import (
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/gogpu/blit/backend/software"
	"github.com/gogpu/blit/internal/remap"
)

// testPalette maps index i to (i, 255-i, 0).
func testPalette() []color.RGBA {
	p := make([]color.RGBA, 256)
	for i := range p {
		p[i] = color.RGBA{R: uint8(i), G: uint8(255 - i), A: 255}
	}
	return p
}

func newTestEngine(t *testing.T, w, h int, sopts []software.Option, opts ...Option) (*Engine, *software.Substrate) {
	t.Helper()
	sub, err := software.New(append([]software.Option{software.WithSize(w, h)}, sopts...)...)
	if err != nil {
		t.Fatal(err)
	}
	base := []Option{WithSize(w, h), WithRemapCapacity(16 * RemapTableSize)}
	e, err := New(sub, append(base, opts...)...)
	if err != nil {
		sub.Close()
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		e.Close()
		sub.Close()
	})
	e.UpdatePalette(testPalette(), 0)
	return e, sub
}

// signalOnWait makes a manual queue complete whatever is waited for.
func signalOnWait(sub *software.Substrate) {
	q := sub.SoftwareQueue()
	q.OnWait(func(v uint64) { q.Signal(v) })
}

func pixel(t *testing.T, e *Engine, x, y int) [4]byte {
	t.Helper()
	var px [4]byte
	if err := e.CopyRegionToHostMemory(px[:], x, y, 1, 1, 4); err != nil {
		t.Fatalf("CopyRegionToHostMemory(%d, %d) error = %v", x, y, err)
	}
	return px
}

func pt(x, y int) image.Point { return image.Pt(x, y) }

func rgba(i uint8) [4]byte { return [4]byte{i, 255 - i, 0, 255} }

func table(seed byte) []byte {
	b := make([]byte, RemapTableSize)
	for i := range b {
		b[i] = seed + byte(i)
	}
	return b
}

// tables hands out a distinct table per palette id.
func tables(pal PaletteID) []byte { return table(byte(pal)) }

// solidSprite is a 2x2 palette sprite of colour m; it encodes to 8 bytes.
func solidSprite(m uint8) *SpriteCollection {
	px := make([]SpritePixel, 4)
	for i := range px {
		px[i] = SpritePixel{M: m, A: 255}
	}
	return &SpriteCollection{Levels: [MaxSpriteLevels]*SpriteLevel{
		{Width: 2, Height: 2, Colours: ColourPalette, Pixels: px},
	}}
}

func TestOverlappingFillsLastWins(t *testing.T) {
	e, _ := newTestEngine(t, 32, 32, nil)

	e.EnqueueFillRect(0, 0, 9, 9, 1)
	e.EnqueueFillRect(5, 5, 14, 14, 2)
	e.FillRectWH(12, 12, 4, 4, 3)

	tests := []struct {
		x, y int
		want [4]byte
	}{
		{2, 2, rgba(1)},
		{7, 7, rgba(2)},
		{13, 13, rgba(3)},
		{14, 5, rgba(2)},
		{20, 20, [4]byte{}},
	}
	for _, tt := range tests {
		if got := pixel(t, e, tt.x, tt.y); got != tt.want {
			t.Errorf("pixel(%d, %d) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestPerRequestPathMatchesBatched(t *testing.T) {
	for _, path := range []DrawPath{DrawPathBatched, DrawPathPerRequest} {
		t.Run(path.String(), func(t *testing.T) {
			e, sub := newTestEngine(t, 16, 16, nil, WithDrawPath(path))
			e.EnqueueFillRect(0, 0, 7, 7, 4)
			e.EnqueueFillRect(4, 4, 11, 11, 9)
			if got := pixel(t, e, 5, 5); got != rgba(9) {
				t.Errorf("pixel = %v, want %v", got, rgba(9))
			}
			draws := sub.Trace().Filter(software.EventDraw)
			want := 1
			if path == DrawPathPerRequest {
				want = 2
			}
			if len(draws) != want {
				t.Errorf("%d draws recorded, want %d", len(draws), want)
			}
		})
	}
}

func TestRemapDedupAcrossFrames(t *testing.T) {
	e, _ := newTestEngine(t, 16, 16, nil, WithRemapProvider(tables))

	e.EnqueueColourMappingRect(0, 0, 4, 4, 1)
	e.EnqueueColourMappingRect(4, 4, 4, 4, 1)
	reqs := e.queue.Requests()
	if len(reqs) != 2 || reqs[0].RemapOffset != reqs[1].RemapOffset {
		t.Fatalf("requests = %+v, want two sharing an offset", reqs)
	}
	if s := e.ring.Current().Arena.Stats(); s.Writes != 1 || s.Hits != 1 {
		t.Errorf("arena stats = %+v, want 1 write and 1 hit", s)
	}

	if err := e.Present(); err != nil {
		t.Fatal(err)
	}
	e.EnqueueColourMappingRect(0, 0, 4, 4, 1)
	if s := e.ring.Current().Arena.Stats(); s.Writes != 1 || s.Hits != 0 {
		t.Errorf("next frame arena stats = %+v, want a fresh write", s)
	}
	if s := e.Stats().Remap; s.Writes != 2 {
		t.Errorf("total writes = %d, want 2", s.Writes)
	}
}

func TestRemapProviderCalledOncePerPalette(t *testing.T) {
	calls := make(map[PaletteID]int)
	provider := func(pal PaletteID) []byte {
		calls[pal]++
		if pal == 9 {
			return []byte{1, 2, 3}
		}
		return table(byte(pal))
	}
	e, _ := newTestEngine(t, 8, 8, nil, WithRemapProvider(provider))

	for range 3 {
		e.EnqueueColourMappingRect(0, 0, 2, 2, 1)
		e.EnqueueColourMappingRect(0, 0, 2, 2, 9)
	}
	if calls[1] != 1 || calls[9] != 1 {
		t.Errorf("provider calls = %v, want one per palette", calls)
	}
	if r := e.queue.Requests()[1]; r.Mode != ModeTransparent {
		t.Errorf("short table mode = %s, want %s", r.Mode, ModeTransparent)
	}

	e.InvalidateRemapTables()
	e.EnqueueColourMappingRect(0, 0, 2, 2, 1)
	if calls[1] != 2 {
		t.Errorf("provider calls for palette 1 after invalidate = %d, want 2", calls[1])
	}
}

func TestColourMappingWithoutTableDarkens(t *testing.T) {
	e, _ := newTestEngine(t, 8, 8, nil)
	e.EnqueueFillRect(0, 0, 7, 7, 0)
	e.EnqueueColourMappingRect(0, 0, 8, 8, 5)
	if r := e.queue.Requests()[1]; r.Mode != ModeTransparent {
		t.Errorf("mode = %s, want %s", r.Mode, ModeTransparent)
	}
	// palette[0] is (0, 255, 0); darkened by 3/4.
	if got, want := pixel(t, e, 3, 3), [4]byte{0, 191, 0, 255}; got != want {
		t.Errorf("pixel = %v, want %v", got, want)
	}
}

func TestArenaExhaustedIsSticky(t *testing.T) {
	e, _ := newTestEngine(t, 8, 8, nil,
		WithRemapCapacity(2*RemapTableSize),
		WithRemapProvider(tables))

	e.EnqueueColourMappingRect(0, 0, 2, 2, 1)
	e.EnqueueColourMappingRect(0, 0, 2, 2, 2)
	if err := e.Err(); err != nil {
		t.Fatalf("Err() at exact capacity = %v", err)
	}

	e.EnqueueColourMappingRect(0, 0, 2, 2, 3)
	err := e.Err()
	if !errors.Is(err, ErrRemapArenaExhausted) || !errors.Is(err, remap.ErrArenaExhausted) {
		t.Fatalf("Err() = %v, want %v", err, ErrRemapArenaExhausted)
	}
	if got := e.Flush(); !errors.Is(got, ErrRemapArenaExhausted) {
		t.Errorf("Flush() = %v, want sticky error", got)
	}
	if got := e.Present(); !errors.Is(got, ErrRemapArenaExhausted) {
		t.Errorf("Present() = %v, want sticky error", got)
	}
	if _, got := e.Resize(16, 16, false); !errors.Is(got, ErrRemapArenaExhausted) {
		t.Errorf("Resize() = %v, want sticky error", got)
	}
}

func TestSlotNotResetBeforeSignal(t *testing.T) {
	e, sub := newTestEngine(t, 8, 8, []software.Option{software.WithManualCompletion()},
		WithSlots(2), WithRemapProvider(tables))
	q := sub.SoftwareQueue()
	slot0 := e.ring.Slot(0)

	e.EnqueueColourMappingRect(0, 0, 2, 2, 1)
	if err := e.Present(); err != nil { // slot 1 was never used
		t.Fatal(err)
	}

	var waited []uint64
	q.OnWait(func(v uint64) {
		if slot0.Arena.Used() == 0 {
			t.Error("slot 0 arena reset while its frame was in flight")
		}
		waited = append(waited, v)
		q.Signal(v)
	})
	if err := e.Present(); err != nil {
		t.Fatal(err)
	}
	if len(waited) != 1 || waited[0] != 1 {
		t.Errorf("waited for %v, want [1]", waited)
	}
	if slot0.Arena.Used() != 0 {
		t.Error("slot 0 arena not reset after reacquire")
	}
	// Later waits (Close) may legitimately find slot 0 reset.
	signalOnWait(sub)
}

func TestFenceTimeoutIsDeviceLost(t *testing.T) {
	e, _ := newTestEngine(t, 8, 8, []software.Option{software.WithManualCompletion()},
		WithSlots(2), WithFenceTimeout(10*time.Millisecond))

	if err := e.Present(); err != nil {
		t.Fatal(err)
	}
	err := e.Present()
	if !errors.Is(err, ErrDeviceLost) {
		t.Fatalf("Present() = %v, want %v", err, ErrDeviceLost)
	}
	if got := e.Flush(); !errors.Is(got, ErrDeviceLost) {
		t.Errorf("Flush() after timeout = %v, want sticky error", got)
	}
}

func TestLostDeviceIsFatal(t *testing.T) {
	e, sub := newTestEngine(t, 8, 8, nil)
	sub.SoftwareQueue().Lose()
	if err := e.Present(); !errors.Is(err, ErrDeviceLost) {
		t.Errorf("Present() on lost device = %v, want %v", err, ErrDeviceLost)
	}
}

func TestSpriteHandlesAndBlits(t *testing.T) {
	e, _ := newTestEngine(t, 16, 16, nil)

	for want := SpriteHandle(0); want < 3; want++ {
		h, err := e.CreateGPUSprite(solidSprite(uint8(10 + want)))
		if err != nil {
			t.Fatal(err)
		}
		if h != want {
			t.Errorf("CreateGPUSprite() = %d, want %d", h, want)
		}
	}

	e.EnqueueSpriteBlit(SpriteBlit{Handle: 0, Dest: Rect{Max: pt(2, 2)}})
	for i := 0; i < 5; i++ {
		if _, err := e.CreateGPUSprite(solidSprite(40)); err != nil {
			t.Fatal(err)
		}
	}
	e.EnqueueSpriteBlit(SpriteBlit{Handle: 0, Dest: Rect{Min: pt(4, 4), Max: pt(6, 6)}})
	e.EnqueueSpriteBlit(SpriteBlit{Handle: 2, Dest: Rect{Min: pt(8, 8), Max: pt(10, 10)}})

	for _, tt := range []struct {
		x, y int
		want [4]byte
	}{{1, 1, rgba(10)}, {5, 5, rgba(10)}, {9, 9, rgba(12)}} {
		if got := pixel(t, e, tt.x, tt.y); got != tt.want {
			t.Errorf("pixel(%d, %d) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestFullQueueFlushesWithinFrame(t *testing.T) {
	e, _ := newTestEngine(t, 8, 8, nil, WithBatchCapacity(2), WithRemapProvider(tables))

	e.EnqueueFillRect(0, 0, 7, 7, 5)
	for p := 1; p <= 6; p++ {
		e.EnqueueColourMappingRect(p, 0, 1, 1, PaletteID(p))
	}

	st := e.Stats()
	if st.Batch.Flushes != 3 || st.Pending != 1 {
		t.Errorf("flushes = %d, pending = %d, want 3 and 1", st.Batch.Flushes, st.Pending)
	}
	if st.Remap.Writes != 6 {
		t.Errorf("remap writes = %d, want 6", st.Remap.Writes)
	}
	if used := e.ring.Current().Arena.Used(); used != 6*RemapTableSize {
		t.Errorf("arena used = %d, want %d", used, 6*RemapTableSize)
	}
	if st.Frames != 0 {
		t.Errorf("auto-flush presented %d frames", st.Frames)
	}

	// table(p) maps index 5 to 5+p.
	for p := 1; p <= 6; p++ {
		if got, want := pixel(t, e, p, 0), rgba(uint8(5+p)); got != want {
			t.Errorf("pixel(%d, 0) = %v, want %v", p, got, want)
		}
	}
	if got := pixel(t, e, 7, 0); got != rgba(5) {
		t.Errorf("pixel(7, 0) = %v, want %v", got, rgba(5))
	}
}

func TestSpriteEvictionLifecycle(t *testing.T) {
	e, sub := newTestEngine(t, 8, 8, []software.Option{software.WithManualCompletion()},
		WithSpriteBudget(16))
	q := sub.SoftwareQueue()

	var handles []SpriteHandle
	for m := uint8(10); m < 13; m++ {
		h, err := e.CreateGPUSprite(solidSprite(m))
		if err != nil {
			t.Fatal(err)
		}
		handles = append(handles, h)
	}
	for i, h := range handles {
		e.EnqueueSpriteBlit(SpriteBlit{Handle: h, Dest: Rect{Min: pt(2*i, 0), Max: pt(2*i+2, 2)}})
	}
	if err := e.Present(); err != nil {
		t.Fatal(err)
	}

	// Three 8-byte sprites exceed 16 bytes: the least recently blitted goes,
	// but its textures outlive the frame that still reads them.
	st := e.Stats().Sprites
	if st.Evictions != 1 || st.Pending != 1 {
		t.Fatalf("sprite stats = %+v, want 1 eviction pending", st)
	}
	if e.SpriteResident(handles[0], 0) {
		t.Error("evicted sprite still resident")
	}
	if es := e.Stats(); es.InFlight != 1 || es.LastFence != 1 {
		t.Errorf("in flight = %d, last fence = %d, want 1 and 1", es.InFlight, es.LastFence)
	}
	q.SignalAll()
	signalOnWait(sub)
	if got := pixel(t, e, 0, 0); got != rgba(10) {
		t.Errorf("evicted sprite in its own frame = %v, want %v", got, rgba(10))
	}

	e.EnqueueSpriteBlit(SpriteBlit{Handle: handles[0], Dest: Rect{Min: pt(0, 4), Max: pt(2, 6)}})
	if got := e.Stats().Dropped.NonResident; got != 1 {
		t.Errorf("NonResident drops = %d, want 1", got)
	}

	if err := e.Present(); err != nil {
		t.Fatal(err)
	}
	if st := e.Stats().Sprites; st.Pending != 0 {
		t.Errorf("pending after fence completed = %d, want 0", st.Pending)
	}

	if err := e.RestoreGPUSprite(handles[0], solidSprite(20)); err != nil {
		t.Fatal(err)
	}
	e.EnqueueSpriteBlit(SpriteBlit{Handle: handles[0], Dest: Rect{Min: pt(4, 4), Max: pt(6, 6)}})
	if got := pixel(t, e, 5, 5); got != rgba(20) {
		t.Errorf("restored sprite = %v, want %v", got, rgba(20))
	}
	if st := e.Stats().Sprites; st.Restores != 1 {
		t.Errorf("restores = %d, want 1", st.Restores)
	}
}

func TestDroppedRequests(t *testing.T) {
	e, _ := newTestEngine(t, 8, 8, nil)

	e.EnqueueFillRect(0, 0, 40000, 4, 1)                                                         // out of range
	e.FillRectWH(0, 0, 0, 4, 1)                                                                  // empty
	e.EnqueueSpriteBlit(SpriteBlit{Handle: 7, Dest: Rect{Max: pt(2, 2)}})                        // unknown sprite
	e.EnqueueSpriteBlit(SpriteBlit{Handle: 0, Dest: Rect{Max: pt(2, 2)}, Zoom: MaxSpriteLevels}) // bad level

	got := e.Stats().Dropped
	want := DropStats{OutOfRange: 1, Invalid: 2, NonResident: 1}
	if got != want {
		t.Errorf("Dropped = %+v, want %+v", got, want)
	}
	if got.Total() != 4 {
		t.Errorf("Total() = %d, want 4", got.Total())
	}
	if e.queue.Len() != 0 {
		t.Errorf("%d dropped requests queued", e.queue.Len())
	}
	if err := e.Err(); err != nil {
		t.Errorf("Err() = %v after drops", err)
	}
}

func TestResizeWaitsForFramesInFlight(t *testing.T) {
	e, sub := newTestEngine(t, 8, 8, []software.Option{software.WithManualCompletion()})
	signalOnWait(sub)

	for i := 0; i < 2; i++ {
		e.EnqueueFillRect(0, 0, 3, 3, uint8(i))
		if err := e.Present(); err != nil {
			t.Fatal(err)
		}
	}
	e.EnqueueFillRect(0, 0, 3, 3, 7)
	sub.Trace().Reset()

	changed, err := e.Resize(16, 12, false)
	if err != nil || !changed {
		t.Fatalf("Resize() = %v, %v; want true, nil", changed, err)
	}

	events := sub.Trace().Filter(software.EventSignal, software.EventDestroyTexture)
	firstDestroy := -1
	var lastSignal uint64
	for i, ev := range events {
		switch ev.Kind {
		case software.EventDestroyTexture:
			if firstDestroy < 0 {
				firstDestroy = i
			}
		case software.EventSignal:
			if firstDestroy >= 0 {
				t.Errorf("signal %d after the first destroy", ev.Value)
			}
			lastSignal = ev.Value
		}
	}
	if firstDestroy < 0 {
		t.Fatal("no texture destroyed by Resize")
	}
	if submitted := sub.SoftwareQueue().Submitted(); lastSignal != submitted {
		t.Errorf("last signal before destroy = %d, want %d", lastSignal, submitted)
	}
	if w, h := e.Size(); w != 16 || h != 12 {
		t.Errorf("Size() = %dx%d, want 16x12", w, h)
	}
	if got := pixel(t, e, 15, 11); got != ([4]byte{}) {
		t.Errorf("new target pixel = %v, want cleared", got)
	}
}

func TestResizeNoopAndInvalid(t *testing.T) {
	e, sub := newTestEngine(t, 8, 8, nil)
	sub.Trace().Reset()

	if changed, err := e.Resize(8, 8, false); changed || err != nil {
		t.Errorf("Resize(same) = %v, %v; want false, nil", changed, err)
	}
	if n := len(sub.Trace().Filter(software.EventDestroyTexture)); n != 0 {
		t.Errorf("same-size Resize destroyed %d textures", n)
	}
	if changed, err := e.Resize(8, 8, true); !changed || err != nil {
		t.Errorf("Resize(same, force) = %v, %v; want true, nil", changed, err)
	}
	if _, err := e.Resize(0, 8, false); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("Resize(0, 8) error = %v, want %v", err, ErrInvalidSize)
	}
	if err := e.Err(); err != nil {
		t.Errorf("invalid size left the engine failed: %v", err)
	}
}

func TestScrollDecomposition(t *testing.T) {
	tests := []struct {
		name   string
		dx, dy int
		want   []string
	}{
		{"dx only", 3, 0, []string{"barrier", "scroll_x", "barrier"}},
		{"dy only", 0, -2, []string{"barrier", "scroll_y", "barrier"}},
		{"both", 2, 1, []string{"barrier", "scroll_x", "barrier", "scroll_y", "barrier"}},
		{"none", 0, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, sub := newTestEngine(t, 16, 16, nil)
			sub.Trace().Reset()

			if _, err := e.ScrollBuffer(Rect{Max: pt(16, 16)}, tt.dx, tt.dy); err != nil {
				t.Fatal(err)
			}
			if err := e.WaitForGPU(); err != nil {
				t.Fatal(err)
			}
			var got []string
			for _, ev := range sub.Trace().Filter(software.EventBarrier, software.EventDispatch) {
				if ev.Kind == software.EventBarrier {
					got = append(got, "barrier")
				} else {
					got = append(got, ev.Detail)
				}
			}
			if len(got) != len(tt.want) {
				t.Fatalf("commands = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("commands = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestScrollMovesPixels(t *testing.T) {
	e, _ := newTestEngine(t, 16, 8, nil)
	e.EnqueueFillRect(2, 0, 2, 7, 6)

	valid, err := e.ScrollBuffer(Rect{Max: pt(16, 8)}, 5, 0)
	if err != nil {
		t.Fatal(err)
	}
	if want := (Rect{Min: pt(5, 0), Max: pt(16, 8)}); valid != want {
		t.Errorf("ScrollBuffer() = %v, want %v", valid, want)
	}
	if got := pixel(t, e, 7, 3); got != rgba(6) {
		t.Errorf("scrolled pixel = %v, want %v", got, rgba(6))
	}
}

func TestPresentComposites(t *testing.T) {
	e, sub := newTestEngine(t, 8, 8, nil)
	e.EnqueueFillRect(0, 0, 7, 7, 20)
	if err := e.Present(); err != nil {
		t.Fatal(err)
	}
	img := sub.SoftwareSwapchain().Presented()
	if img == nil {
		t.Fatal("nothing presented")
	}
	want := color.RGBA{R: 20, G: 235, A: 255}
	if got := img.RGBAAt(4, 4); got != want {
		t.Errorf("presented pixel = %v, want %v", got, want)
	}
	if e.Stats().Frames != 1 {
		t.Errorf("Frames = %d, want 1", e.Stats().Frames)
	}
}

func TestUpdatePaletteReachesEverySlot(t *testing.T) {
	e, _ := newTestEngine(t, 4, 4, nil)
	for i := 0; i < e.ring.Len(); i++ {
		if !e.ring.Slot(i).PaletteDirty {
			t.Errorf("slot %d palette not dirty after UpdatePalette", i)
		}
	}
	e.EnqueueFillRect(0, 0, 3, 3, 1)
	e.UpdatePalette([]color.RGBA{{R: 9, G: 8, B: 7, A: 255}}, 1)
	if got, want := pixel(t, e, 0, 0), [4]byte{9, 8, 7, 255}; got != want {
		t.Errorf("pixel = %v, want %v", got, want)
	}
}

func TestCopyRegionValidation(t *testing.T) {
	e, _ := newTestEngine(t, 8, 8, nil)
	dst := make([]byte, 16)
	if err := e.CopyRegionToHostMemory(dst, 6, 6, 4, 1, 16); err == nil {
		t.Error("CopyRegionToHostMemory() outside the surface succeeded")
	}
	if err := e.CopyRegionToHostMemory(dst, 0, 0, 2, 2, 8); err != nil {
		t.Errorf("CopyRegionToHostMemory() error = %v", err)
	}
	if err := e.Err(); err != nil {
		t.Errorf("read-back error left the engine failed: %v", err)
	}
}

func TestCloseReleasesResources(t *testing.T) {
	e, sub := newTestEngine(t, 8, 8, nil)
	if _, err := e.CreateGPUSprite(&SpriteCollection{Levels: [MaxSpriteLevels]*SpriteLevel{
		{Width: 1, Height: 1, Colours: ColourRGB, Pixels: []SpritePixel{{R: 1}}},
	}}); err != nil {
		t.Fatal(err)
	}
	before := sub.SoftwareSwapchain().BufferCount()

	if err := e.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	dev := sub.SoftwareDevice()
	if n := dev.LiveBuffers(); n != 0 {
		t.Errorf("%d buffers alive after Close", n)
	}
	if n := dev.LiveTextures(); n != before {
		t.Errorf("%d textures alive after Close, want the %d back buffers", n, before)
	}
	if err := e.Present(); !errors.Is(err, ErrClosed) {
		t.Errorf("Present() after Close = %v, want %v", err, ErrClosed)
	}
}

func TestOpenOwnsSubstrate(t *testing.T) {
	cfg, err := ParseConfig([]byte("backend: software\nwidth: 32\nheight: 16\nengine:\n  slots: 2\n"))
	if err != nil {
		t.Fatal(err)
	}
	e, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if w, h := e.Size(); w != 32 || h != 16 {
		t.Errorf("Size() = %dx%d, want 32x16", w, h)
	}
	if e.ring.Len() != 2 {
		t.Errorf("slots = %d, want 2", e.ring.Len())
	}
	if e.Substrate().Name() != "software" {
		t.Errorf("substrate = %q", e.Substrate().Name())
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open(&Config{Backend: "missing"}); err == nil {
		t.Error("Open() with unknown backend succeeded")
	}
}
