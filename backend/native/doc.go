// Package native runs the blit engine on a GPU through gogpu/wgpu HAL.
//
// Every plane, back buffer and sprite texture is a storage buffer of one
// u32 per texel (two for RGBA8M sprites), and all work runs as compute
// passes: one pass per blit request, two per scroll step and one per
// composite. Pass boundaries order storage writes, so recorded barriers
// need no extra commands.
//
// A substrate either borrows a device from a host application
// (NewFromHAL, NewFromProvider) or opens a standalone Vulkan device (Open).
// Importing the package registers the "native" backend:
//
//	import _ "github.com/gogpu/blit/backend/native"
//
// Build with the nogpu tag to exclude it.
package native
