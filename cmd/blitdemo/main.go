// Command blitdemo renders a few frames with the blit engine and saves the
// last one as a PNG.
package main

import (
	"flag"
	"image"
	"image/color"
	"image/png"
	"log"
	"log/slog"
	"os"

	"golang.org/x/image/draw"

	"github.com/gogpu/blit"
	_ "github.com/gogpu/blit/backend/native"
	_ "github.com/gogpu/blit/backend/software"
)

func main() {
	var (
		config  = flag.String("config", "", "YAML config file")
		name    = flag.String("backend", "", "substrate name (software, native); empty picks the best")
		width   = flag.Int("width", 640, "surface width")
		height  = flag.Int("height", 480, "surface height")
		frames  = flag.Int("frames", 30, "frames to render")
		output  = flag.String("output", "blitdemo.png", "output file")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	blit.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg := &blit.Config{}
	if *config != "" {
		var err error
		if cfg, err = blit.LoadConfig(*config); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	if *name != "" {
		cfg.Backend = *name
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		cfg.Width, cfg.Height = *width, *height
	}

	e, err := blit.Open(cfg, blit.WithRemapProvider(shadeTable))
	if err != nil {
		log.Fatalf("Failed to open engine: %v", err)
	}
	defer e.Close()

	e.UpdatePalette(rampPalette(), 0)
	ball, err := e.CreateGPUSprite(ballSprite(32))
	if err != nil {
		log.Fatalf("Failed to create sprite: %v", err)
	}

	w, h := e.Size()
	for f := 0; f < *frames; f++ {
		drawFrame(e, ball, f, w, h)
		if err := e.Present(); err != nil {
			log.Fatalf("Present failed: %v", err)
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	if err := e.CopyRegionToHostMemory(img.Pix, 0, 0, w, h, img.Stride); err != nil {
		log.Fatalf("Readback failed: %v", err)
	}
	if err := savePNG(*output, img); err != nil {
		log.Fatalf("Failed to save: %v", err)
	}

	st := e.Stats()
	log.Printf("Demo saved to %s (%dx%d, %s, %d frames, %d remap hits)\n",
		*output, w, h, e.Substrate().Name(), st.Frames, st.Remap.Hits)
}

func drawFrame(e *blit.Engine, ball blit.SpriteHandle, f, w, h int) {
	// Horizontal bands, scrolled left one pixel per frame.
	if f == 0 {
		for y := 0; y < h; y += 8 {
			e.FillRectWH(0, y, w, 8, uint8(16+y*200/h))
		}
	}
	if _, err := e.ScrollBuffer(image.Rect(0, 0, w, h/2), -1, 0); err != nil {
		log.Fatalf("Scroll failed: %v", err)
	}

	e.EnqueueDrawLine(0, h-1, w-1, h/2, 250, 3, 0)
	e.EnqueueDrawLine(0, h/2, w-1, h-1, 240, 1, 4)
	e.EnqueueColourMappingRect(w/4, h/4, w/2, h/8, 1)

	x := (f * 7) % max(w-32, 1)
	y := h/2 + (f*5)%max(h/2-32, 1)
	e.EnqueueSpriteBlit(blit.SpriteBlit{Handle: ball, Dest: image.Rect(x, y, x+32, y+32)})
	e.EnqueueSpriteBlit(blit.SpriteBlit{Handle: ball, Dest: image.Rect(w-x-16, y, w-x, y+16), Zoom: 1})
}

// rampPalette is a blue to orange ramp.
func rampPalette() []color.RGBA {
	pal := make([]color.RGBA, 256)
	for i := range pal {
		pal[i] = color.RGBA{R: uint8(i), G: uint8(i / 2), B: uint8(255 - i), A: 255}
	}
	return pal
}

// shadeTable maps every index a quarter of the ramp down.
func shadeTable(pal blit.PaletteID) []byte {
	if pal != 1 {
		return nil
	}
	table := make([]byte, blit.RemapTableSize)
	for i := range table {
		table[i] = uint8(max(i-64, 1))
	}
	return table
}

// ballSprite draws a shaded disc and derives the smaller detail levels by
// scaling it down.
func ballSprite(size int) *blit.SpriteCollection {
	src := image.NewRGBA(image.Rect(0, 0, size, size))
	r := float64(size) / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx, dy := float64(x)+0.5-r, float64(y)+0.5-r
			if dx*dx+dy*dy > r*r {
				continue
			}
			shade := uint8(255 - (dx+dy+2*r)*48/r)
			src.SetRGBA(x, y, color.RGBA{R: shade, G: shade / 3, B: 40, A: 255})
		}
	}

	c := &blit.SpriteCollection{Kind: blit.SpriteKindNormal}
	for z := 0; z < blit.MaxSpriteLevels && size>>z >= 2; z++ {
		n := size >> z
		dst := image.NewRGBA(image.Rect(0, 0, n, n))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
		c.Levels[z] = levelFrom(dst)
	}
	return c
}

func levelFrom(img *image.RGBA) *blit.SpriteLevel {
	b := img.Bounds()
	l := &blit.SpriteLevel{
		Width:   b.Dx(),
		Height:  b.Dy(),
		Colours: blit.ColourRGB | blit.ColourAlpha,
		Pixels:  make([]blit.SpritePixel, 0, b.Dx()*b.Dy()),
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.RGBAAt(x, y)
			l.Pixels = append(l.Pixels, blit.SpritePixel{R: c.R, G: c.G, B: c.B, A: c.A})
		}
	}
	return l
}

func savePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
