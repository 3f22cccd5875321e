// Package blit is a frame-pipelined 2D blit engine for palette-based
// renderers.
//
// # Overview
//
// A producer enqueues fills, lines, colour mapping rectangles, sprite blits
// and backup copies. The engine collects them into one ordered batch, packs
// every request into five 32-bit words and records the batch as a single
// instanced draw. Present composites the video and animation planes into a
// swapchain back buffer and submits the frame.
//
// # Quick Start
//
//	import (
//		"github.com/gogpu/blit"
//		_ "github.com/gogpu/blit/backend/software"
//	)
//
//	e, err := blit.Open(&blit.Config{Width: 640, Height: 480})
//	if err != nil {
//		return err
//	}
//	defer e.Close()
//
//	e.UpdatePalette(colours, 0)
//	e.EnqueueFillRect(0, 0, 639, 479, 1)
//	e.EnqueueDrawLine(0, 0, 639, 479, 15, 1, 0)
//	if err := e.Present(); err != nil {
//		return err
//	}
//
// # Frames in flight
//
// The engine rotates over a fixed ring of frame slots (three by default).
// Each slot owns its command list, palette buffer and remap arena. A slot is
// only reused after the fence value of its previous submission completed,
// so the GPU never reads a table the host is overwriting.
//
// # Remap tables
//
// Remapping requests carry a 256-byte table. Identical tables within one
// frame are stored once in the slot's arena and share an offset.
//
// # Errors
//
// Enqueue methods never fail; requests the engine cannot draw are dropped
// and counted in [Stats]. Running out of remap arena, failing to create the
// surface and losing the device are fatal: the engine returns the error
// from every later call and must be closed.
//
// # Substrates
//
// The engine drives a [gpucore.Substrate]. backend/software executes on the
// CPU and is used for tests; backend/native records gogpu/wgpu HAL compute
// passes. Substrates register themselves with the backend package when
// imported.
package blit

// Version is the module version.
const Version = "0.1.0"
