//go:build !nogpu

package native

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"testing"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/blit/backend"
	"github.com/gogpu/blit/gpucore"
	"github.com/gogpu/blit/internal/batch"
)

func createNoopDevice(t *testing.T) (hal.Device, hal.Queue) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		openDev.Device.Destroy()
		instance.Destroy()
	})
	return openDev.Device, openDev.Queue
}

func newTestSubstrate(t *testing.T, w, h int) *Substrate {
	t.Helper()
	device, queue := createNoopDevice(t)
	s, err := NewFromHAL(device, queue, WithSize(w, h))
	if err != nil {
		t.Fatalf("NewFromHAL: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// planes creates a bound set of planes on s.
func planes(t *testing.T, s *Substrate, w, h int) gpucore.Bindings {
	t.Helper()
	tex := func(label string, f gpucore.TexelFormat) gpucore.TextureID {
		id, err := s.Device().CreateTexture(&gpucore.TextureDescriptor{
			Label: label, Width: uint32(w), Height: uint32(h), Format: f,
		})
		if err != nil {
			t.Fatal(err)
		}
		return id
	}
	buf := func(label string, size uint64) gpucore.BufferID {
		id, err := s.Device().CreateBuffer(&gpucore.BufferDescriptor{
			Label: label, Size: size, Usage: gpucore.BufferUsageStorage | gpucore.BufferUsageCopyDst,
		})
		if err != nil {
			t.Fatal(err)
		}
		return id
	}
	return gpucore.Bindings{
		Video:       tex("video", gpucore.TexelFormatRGBA8),
		Anim:        tex("anim", gpucore.TexelFormatR8),
		BackupVideo: tex("backup_video", gpucore.TexelFormatRGBA8),
		BackupAnim:  tex("backup_anim", gpucore.TexelFormatR8),
		Palette:     buf("palette", gpucore.PaletteSize),
		Remap:       buf("remap", 4*gpucore.RemapTableSize),
	}
}

func words(reqs ...batch.Request) []uint32 {
	var w []uint32
	for _, r := range reqs {
		w = r.AppendWords(w)
	}
	return w
}

func TestNewFromHAL(t *testing.T) {
	s := newTestSubstrate(t, 64, 32)

	if s.Name() != backend.BackendNative {
		t.Errorf("Name() = %q, want %q", s.Name(), backend.BackendNative)
	}
	for k := kernel(0); k < kernelCount; k++ {
		if s.pipes.pipelines[k] == nil {
			t.Errorf("pipeline %s not created", k)
		}
	}
	if got := s.Swapchain().BufferCount(); got != DefaultBuffers {
		t.Errorf("BufferCount() = %d, want %d", got, DefaultBuffers)
	}
	if got := s.NativeDevice().LiveTextures(); got != DefaultBuffers {
		t.Errorf("LiveTextures() = %d, want %d back buffers", got, DefaultBuffers)
	}
	if s.Adapter() != "" {
		t.Errorf("borrowed device reports adapter %q", s.Adapter())
	}
}

func TestNewFromHALRejectsNil(t *testing.T) {
	if _, err := NewFromHAL(nil, nil); err == nil {
		t.Fatal("NewFromHAL(nil, nil) succeeded")
	}
}

type plainProvider struct{}

func (plainProvider) Device() gpucontext.Device   { return nil }
func (plainProvider) Queue() gpucontext.Queue     { return nil }
func (plainProvider) Adapter() gpucontext.Adapter { return nil }

func (plainProvider) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatUndefined
}

type halProvider struct {
	plainProvider
	device hal.Device
	queue  hal.Queue
}

func (p halProvider) HalDevice() any { return p.device }
func (p halProvider) HalQueue() any  { return p.queue }

func TestNewFromProvider(t *testing.T) {
	if _, err := NewFromProvider(plainProvider{}); !errors.Is(err, ErrNoHAL) {
		t.Fatalf("plain provider: err = %v, want ErrNoHAL", err)
	}
	if _, err := NewFromProvider(halProvider{}); !errors.Is(err, ErrNoHAL) {
		t.Fatalf("provider with nil HAL objects: err = %v, want ErrNoHAL", err)
	}

	device, queue := createNoopDevice(t)
	s, err := NewFromProvider(halProvider{device: device, queue: queue}, WithSize(16, 16), WithBuffers(3))
	if err != nil {
		t.Fatalf("NewFromProvider: %v", err)
	}
	defer s.Close()
	if got := s.Swapchain().BufferCount(); got != 3 {
		t.Errorf("BufferCount() = %d, want 3", got)
	}
}

func TestRegisteredAsNative(t *testing.T) {
	if !backend.IsRegistered(backend.BackendNative) {
		t.Fatal("native backend not registered")
	}
}

func TestWriteBufferRules(t *testing.T) {
	s := newTestSubstrate(t, 8, 8)
	dev := s.Device()
	id, err := dev.CreateBuffer(&gpucore.BufferDescriptor{Label: "b", Size: 10})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		id      gpucore.BufferID
		offset  uint64
		data    []byte
		wantErr bool
	}{
		{"aligned", id, 4, make([]byte, 8), false},
		{"rounded size", id, 8, make([]byte, 4), false},
		{"unaligned offset", id, 2, make([]byte, 4), true},
		{"unaligned length", id, 0, make([]byte, 3), true},
		{"overflow", id, 8, make([]byte, 8), true},
		{"unknown", id + 100, 0, make([]byte, 4), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := dev.WriteBuffer(tt.id, tt.offset, tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("WriteBuffer() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if _, err := dev.CreateBuffer(&gpucore.BufferDescriptor{Label: "empty"}); err == nil {
		t.Error("zero-size buffer created")
	}
	dev.DestroyBuffer(id)
	dev.DestroyBuffer(id)
	if got := s.NativeDevice().LiveBuffers(); got != 0 {
		t.Errorf("LiveBuffers() = %d, want 0", got)
	}
}

func TestWordsPerTexel(t *testing.T) {
	tests := []struct {
		format gpucore.TexelFormat
		want   int
	}{
		{gpucore.TexelFormatR8, 1},
		{gpucore.TexelFormatRG8, 1},
		{gpucore.TexelFormatRGBA8, 1},
		{gpucore.TexelFormatRGBA8M, 2},
	}
	for _, tt := range tests {
		if got := wordsPerTexel(tt.format); got != tt.want {
			t.Errorf("wordsPerTexel(%s) = %d, want %d", tt.format, got, tt.want)
		}
	}
}

func TestTextureLifecycle(t *testing.T) {
	s := newTestSubstrate(t, 8, 8)
	dev := s.Device()
	before := s.NativeDevice().LiveTextures()

	id, err := dev.CreateTexture(&gpucore.TextureDescriptor{
		Label: "sprite", Width: 3, Height: 2, Format: gpucore.TexelFormatRGBA8M,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := dev.WriteTexture(id, make([]byte, 3*8*2), 3*8); err != nil {
		t.Errorf("WriteTexture: %v", err)
	}
	if err := dev.WriteTexture(id, make([]byte, 10), 3*8); err == nil {
		t.Error("short WriteTexture succeeded")
	}
	if err := dev.WriteTexture(id, make([]byte, 48), 4); err == nil {
		t.Error("WriteTexture with pitch below stride succeeded")
	}
	if err := dev.ReadTexture(id, image.Rect(0, 0, 1, 1), make([]byte, 8), 8); err == nil {
		t.Error("ReadTexture of RGBA8M succeeded")
	}

	if err := dev.SetSpriteDescriptor(12, id); err != nil {
		t.Fatal(err)
	}
	if s.NativeDevice().sprite(12) == nil {
		t.Error("descriptor 12 not resolved")
	}
	if err := dev.SetSpriteDescriptor(12, gpucore.InvalidID); err != nil {
		t.Fatal(err)
	}
	if s.NativeDevice().sprite(12) != nil {
		t.Error("cleared descriptor still resolves")
	}
	if err := dev.SetSpriteDescriptor(1, id+100); err == nil {
		t.Error("descriptor to unknown texture accepted")
	}

	dev.DestroyTexture(id)
	if got := s.NativeDevice().LiveTextures(); got != before {
		t.Errorf("LiveTextures() = %d, want %d", got, before)
	}
}

func TestReadTextureBounds(t *testing.T) {
	s := newTestSubstrate(t, 8, 8)
	b := planes(t, s, 8, 8)

	if err := s.Device().ReadTexture(b.Video, image.Rect(6, 6, 10, 10), make([]byte, 64), 16); err == nil {
		t.Error("read outside texture succeeded")
	}
	if err := s.Device().ReadTexture(b.Video, image.Rect(2, 2, 4, 4), make([]byte, 16), 8); err != nil {
		t.Errorf("ReadTexture: %v", err)
	}
}

// collect builds the pass list of a recorded list without submitting it.
func collect(t *testing.T, s *Substrate, l *CommandList) *encoder {
	t.Helper()
	sub := &submission{device: s.gpu.device}
	t.Cleanup(sub.release)
	e := &encoder{dev: s.dev, sub: sub, pipes: s.pipes}
	if err := e.collect(l.cmds); err != nil {
		t.Fatalf("collect: %v", err)
	}
	return e
}

func TestEncodeRequests(t *testing.T) {
	s := newTestSubstrate(t, 20, 10)
	b := planes(t, s, 20, 10)
	l := &CommandList{label: "t"}

	// Without bindings nothing can be drawn.
	l.Draw(words(batch.Request{Left: 0, Top: 0, Right: 3, Bottom: 3, Sprite: batch.NoSprite}))
	l.Bind(b)
	l.DrawBatch(words(
		batch.Request{Left: -4, Top: 2, Right: 9, Bottom: 20, Colour: 7, Sprite: batch.NoSprite},
		batch.Request{Left: 30, Top: 0, Right: 40, Bottom: 5, Sprite: batch.NoSprite},
		batch.Request{Left: 0, Top: 0, Right: 19, Bottom: 3, Type: batch.TypeLine, Zoom: 3, Sprite: batch.NoSprite},
	), 3)

	e := collect(t, s, l)
	if len(e.passes) != 2 {
		t.Fatalf("got %d passes, want 2", len(e.passes))
	}

	fill := e.passes[0]
	if fill.kernel != kernelBlit {
		t.Errorf("pass 0 kernel = %s, want blit", fill.kernel)
	}
	// clipped to x 0..9, y 2..9
	if fill.params[9] != 0 || fill.params[10] != 2 {
		t.Errorf("origin = (%d, %d), want (0, 2)", fill.params[9], fill.params[10])
	}
	if fill.groupsX != 2 || fill.groupsY != 1 {
		t.Errorf("groups = %dx%d, want 2x1", fill.groupsX, fill.groupsY)
	}
	if fill.params[0] != 20 || fill.params[1] != 10 {
		t.Errorf("surface = %dx%d, want 20x10", fill.params[0], fill.params[1])
	}

	line := e.passes[1]
	if line.kernel != kernelLine {
		t.Errorf("pass 1 kernel = %s, want line", line.kernel)
	}
	if line.groupsX != 1 || line.groupsY != 9 {
		t.Errorf("line groups = %dx%d, want 1x9", line.groupsX, line.groupsY)
	}
}

func TestEncodeSprites(t *testing.T) {
	s := newTestSubstrate(t, 16, 16)
	b := planes(t, s, 16, 16)
	tex, err := s.Device().CreateTexture(&gpucore.TextureDescriptor{
		Label: "sprite", Width: 4, Height: 5, Format: gpucore.TexelFormatRG8,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Device().SetSpriteDescriptor(2*gpucore.SpriteLevels+1, tex); err != nil {
		t.Fatal(err)
	}

	l := &CommandList{label: "t"}
	l.Bind(b)
	l.DrawBatch(words(
		batch.Request{Left: 1, Top: 1, Right: 4, Bottom: 5, Type: batch.TypeSprite, Sprite: 2, Zoom: 1},
		batch.Request{Left: 1, Top: 1, Right: 4, Bottom: 5, Type: batch.TypeSprite, Sprite: 2, Zoom: 0},
		batch.Request{Left: 1, Top: 1, Right: 4, Bottom: 5, Type: batch.TypeSprite, Sprite: 3, Zoom: 1},
	), 3)

	e := collect(t, s, l)
	if len(e.passes) != 1 {
		t.Fatalf("got %d passes, want 1 (missing levels skipped)", len(e.passes))
	}
	p := e.passes[0]
	want := [4]uint32{4, 5, uint32(gpucore.TexelFormatRG8), 1}
	if got := [4]uint32{p.params[12], p.params[13], p.params[14], p.params[15]}; got != want {
		t.Errorf("sprite params = %v, want %v", got, want)
	}
	if p.buffers[bindSprite] == nil {
		t.Error("sprite buffer not bound")
	}
}

func TestEncodeScrollAndComposite(t *testing.T) {
	s := newTestSubstrate(t, 16, 16)
	b := planes(t, s, 16, 16)

	l := &CommandList{label: "t"}
	l.Bind(b)
	l.Dispatch(gpucore.KernelScrollX, gpucore.ScrollArgs{Left: 4, Top: 4, Width: 20, Height: 4, DX: 2}, 1, 4)
	l.Barrier()
	l.Dispatch(gpucore.KernelScrollY, gpucore.ScrollArgs{Left: 40, Top: 0, Width: 4, Height: 4, DY: 1}, 4, 1)
	l.Composite(s.Swapchain().BackBuffer(0), gpucore.ShaderModePalette)

	e := collect(t, s, l)
	var kernels []kernel
	for _, p := range e.passes {
		kernels = append(kernels, p.kernel)
	}
	want := []kernel{kernelScrollGather, kernelScrollScatter, kernelComposite}
	if len(kernels) != len(want) {
		t.Fatalf("kernels = %v, want %v", kernels, want)
	}
	for i := range want {
		if kernels[i] != want[i] {
			t.Errorf("kernel %d = %s, want %s", i, kernels[i], want[i])
		}
	}
	// region clipped to the 12 columns inside the surface
	if got := e.passes[0].params[2]; got != 12 {
		t.Errorf("scroll width = %d, want 12", got)
	}
	if len(e.sub.scratch) != 1 {
		t.Errorf("scratch buffers = %d, want 1", len(e.sub.scratch))
	}
	if got := e.passes[2].params[2]; got != uint32(gpucore.ShaderModePalette) {
		t.Errorf("composite mode = %d, want palette", got)
	}
}

func TestSubmitAndWait(t *testing.T) {
	s := newTestSubstrate(t, 16, 16)
	b := planes(t, s, 16, 16)
	q := s.Queue()

	cl, err := s.Device().CreateCommandList("frame")
	if err != nil {
		t.Fatal(err)
	}
	cl.Bind(b)
	cl.SetPassConstants(gpucore.PassConstants{Width: 16, Height: 16})
	cl.DrawBatch(words(batch.Request{Left: 0, Top: 0, Right: 7, Bottom: 7, Colour: 3, Sprite: batch.NoSprite}), 1)
	cl.Composite(s.Swapchain().BackBuffer(s.Swapchain().CurrentIndex()), gpucore.ShaderModeRemap)

	if err := q.Submit(cl, 1); err == nil {
		t.Error("open list submitted")
	}
	if err := cl.Close(); err != nil {
		t.Fatal(err)
	}
	if err := q.Submit(cl, 1); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := q.Submit(cl, 1); err == nil {
		t.Error("repeated fence value accepted")
	}

	ok, err := q.Wait(context.Background(), 1, time.Second)
	if err != nil || !ok {
		t.Fatalf("Wait() = %v, %v", ok, err)
	}
	if got := q.Completed(); got != 1 {
		t.Errorf("Completed() = %d, want 1", got)
	}
	if n := len(s.NativeQueue().inflight); n != 0 {
		t.Errorf("%d submissions still tracked", n)
	}

	if err := s.Swapchain().Present(); err != nil {
		t.Fatal(err)
	}
	img, err := s.NativeSwapchain().Presented()
	if err != nil {
		t.Fatalf("Presented: %v", err)
	}
	if img == nil || img.Bounds() != image.Rect(0, 0, 16, 16) {
		t.Errorf("Presented() bounds = %v", img)
	}
}

func TestWaitHonoursContext(t *testing.T) {
	s := newTestSubstrate(t, 8, 8)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// value 5 was never submitted
	ok, err := s.Queue().Wait(ctx, 5, 0)
	if ok || !errors.Is(err, context.Canceled) {
		t.Fatalf("Wait() = %v, %v; want false, context.Canceled", ok, err)
	}
	ok, err = s.Queue().Wait(context.Background(), 5, 20*time.Millisecond)
	if ok || err != nil {
		t.Fatalf("Wait() = %v, %v; want timeout", ok, err)
	}
}

func TestClosedListRejectsRecording(t *testing.T) {
	l := &CommandList{label: "t"}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	l.Barrier()
	if err := l.Close(); !errors.Is(err, ErrListClosed) {
		t.Fatalf("Close() = %v, want ErrListClosed", err)
	}
	if err := l.Reset(); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("Close() after Reset = %v", err)
	}
}

func TestSwapchainResize(t *testing.T) {
	s := newTestSubstrate(t, 8, 8)
	sc := s.NativeSwapchain()
	old := sc.BackBuffer(0)

	if err := sc.Resize(0, 4); err == nil {
		t.Error("Resize(0, 4) succeeded")
	}
	if err := sc.Resize(32, 24); err != nil {
		t.Fatal(err)
	}
	if sc.BackBuffer(0) == old {
		t.Error("back buffer not recreated")
	}
	if sc.CurrentIndex() != 0 || sc.PresentedTexture() != gpucore.InvalidID {
		t.Error("resize did not reset presentation state")
	}
	if got := s.NativeDevice().LiveTextures(); got != DefaultBuffers {
		t.Errorf("LiveTextures() = %d, want %d", got, DefaultBuffers)
	}
}

func TestLayoutsMatchShaders(t *testing.T) {
	for k := kernel(0); k < kernelCount; k++ {
		src := k.source()
		if src == "" {
			t.Errorf("%s: empty shader source", k)
			continue
		}
		entries := layoutEntries(k)
		if got := strings.Count(src, "@binding("); got != len(entries) {
			t.Errorf("%s: shader declares %d bindings, layout has %d", k, got, len(entries))
		}
		for _, e := range entries {
			if !strings.Contains(src, fmt.Sprintf("@binding(%d)", e.Binding)) {
				t.Errorf("%s: layout binding %d missing from shader", k, e.Binding)
			}
		}
		if !strings.Contains(src, "fn main(") {
			t.Errorf("%s: no main entry point", k)
		}
	}
}

func TestCompileComposite(t *testing.T) {
	words, err := compileSPIRV(kernelComposite.source())
	if err != nil {
		t.Fatalf("compileSPIRV: %v", err)
	}
	if len(words) == 0 || words[0] != 0x07230203 {
		t.Fatalf("missing SPIR-V magic number")
	}
}

func TestCloseReleasesEverything(t *testing.T) {
	device, queue := createNoopDevice(t)
	s, err := NewFromHAL(device, queue, WithSize(8, 8))
	if err != nil {
		t.Fatal(err)
	}
	planes(t, s, 8, 8)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if s.NativeDevice().LiveTextures() != 0 || s.NativeDevice().LiveBuffers() != 0 {
		t.Error("resources survived Close")
	}
	for k := kernel(0); k < kernelCount; k++ {
		if s.pipes.pipelines[k] != nil {
			t.Errorf("pipeline %s survived Close", k)
		}
	}
}
