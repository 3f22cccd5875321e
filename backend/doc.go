// Package backend provides the substrate registry.
//
// A substrate bundles the GPU collaborators the blit engine drives: a
// device, a queue with fence tokens and a swapchain. Substrates register a
// factory from their package init and are selected by name or priority.
//
//	import _ "github.com/gogpu/blit/backend/software"
//
//	sub, err := backend.Default(backend.Config{Width: 640, Height: 480})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer sub.Close()
//
// # Available Substrates
//
// - "software": deterministic CPU execution (always available when imported)
// - "native": compute kernels on gogpu/wgpu HAL (requires a Vulkan device)
package backend
