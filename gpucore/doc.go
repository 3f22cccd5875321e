// Package gpucore defines the collaborator contracts of the blit engine.
//
// The engine never talks to a graphics API directly. It records work through
// the interfaces in this package, and a substrate implements them:
//   - backend/software executes everything on the CPU
//   - backend/native drives gogpu/wgpu HAL compute pipelines
//
//	               +-----------------+
//	               |   blit.Engine   |
//	               +--------+--------+
//	                        |
//	               +--------v--------+
//	               |     gpucore     |
//	               | Device / Queue  |
//	               | CommandList /   |
//	               | Swapchain       |
//	               +--------+--------+
//	                        |
//	         +--------------+--------------+
//	         |                             |
//	+--------v--------+          +--------v--------+
//	|    software     |          |     native      |
//	|  (image.RGBA)   |          |  (hal.Device)   |
//	+-----------------+          +-----------------+
//
// # Resource IDs
//
// Resources are referenced by opaque uint64 IDs ([BufferID], [TextureID]).
// The zero value is never a valid resource.
//
// # Packed requests
//
// Blit requests cross the boundary as [RequestWords] little-endian uint32
// words each. The layout is owned by internal/batch; substrates decode it
// with the same field widths.
//
// # Fences
//
// [Queue] signals a monotonically increasing value per submission. The
// engine gates reuse of every per-slot resource on those values.
package gpucore
