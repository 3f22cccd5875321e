//go:build !nogpu

package native

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
)

//go:embed shaders/blit.wgsl
var blitShaderWGSL string

//go:embed shaders/line.wgsl
var lineShaderWGSL string

//go:embed shaders/scroll_gather.wgsl
var scrollGatherShaderWGSL string

//go:embed shaders/scroll_scatter.wgsl
var scrollScatterShaderWGSL string

//go:embed shaders/composite.wgsl
var compositeShaderWGSL string

// kernel identifies one compute pipeline.
type kernel int

const (
	kernelBlit kernel = iota
	kernelLine
	kernelScrollGather
	kernelScrollScatter
	kernelComposite

	kernelCount
)

// String returns the kernel name used in labels.
func (k kernel) String() string {
	switch k {
	case kernelBlit:
		return "blit"
	case kernelLine:
		return "line"
	case kernelScrollGather:
		return "scroll_gather"
	case kernelScrollScatter:
		return "scroll_scatter"
	case kernelComposite:
		return "composite"
	default:
		return fmt.Sprintf("kernel(%d)", int(k))
	}
}

// source returns the embedded WGSL of k.
func (k kernel) source() string {
	switch k {
	case kernelBlit:
		return blitShaderWGSL
	case kernelLine:
		return lineShaderWGSL
	case kernelScrollGather:
		return scrollGatherShaderWGSL
	case kernelScrollScatter:
		return scrollScatterShaderWGSL
	case kernelComposite:
		return compositeShaderWGSL
	default:
		return ""
	}
}

// Binding slots shared by the kernels. Each kernel declares the subset it
// uses in its WGSL.
const (
	bindParams      = 0
	bindVideo       = 1
	bindAnim        = 2
	bindBackupVideo = 3 // scratch for scroll kernels, target for composite
	bindBackupAnim  = 4
	bindPalette     = 5
	bindRemap       = 6
	bindSprite      = 7

	bindingCount = 8
)

// layoutEntries returns the bind group layout entries of k. They match the
// @group(0) @binding(N) declarations of the kernel's shader exactly.
func layoutEntries(k kernel) []gputypes.BindGroupLayoutEntry {
	uniform := gputypes.BindGroupLayoutEntry{
		Binding:    bindParams,
		Visibility: gputypes.ShaderStageCompute,
		Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
	}
	storageRO := func(binding uint32) gputypes.BindGroupLayoutEntry {
		return gputypes.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage},
		}
	}
	storageRW := func(binding uint32) gputypes.BindGroupLayoutEntry {
		return gputypes.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage},
		}
	}

	switch k {
	case kernelBlit:
		return []gputypes.BindGroupLayoutEntry{
			uniform,
			storageRW(bindVideo), storageRW(bindAnim),
			storageRW(bindBackupVideo), storageRW(bindBackupAnim),
			storageRO(bindPalette), storageRO(bindRemap), storageRO(bindSprite),
		}
	case kernelLine:
		return []gputypes.BindGroupLayoutEntry{
			uniform, storageRW(bindVideo), storageRW(bindAnim), storageRO(bindPalette),
		}
	case kernelScrollGather, kernelScrollScatter:
		return []gputypes.BindGroupLayoutEntry{
			uniform, storageRW(bindVideo), storageRW(bindAnim), storageRW(bindBackupVideo),
		}
	case kernelComposite:
		return []gputypes.BindGroupLayoutEntry{
			uniform, storageRO(bindVideo), storageRO(bindAnim),
			storageRW(bindBackupVideo), storageRO(bindPalette),
		}
	default:
		return nil
	}
}

// compileSPIRV compiles WGSL to SPIR-V words.
func compileSPIRV(src string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(src)
	if err != nil {
		return nil, err
	}
	if len(spirvBytes)%4 != 0 {
		return nil, fmt.Errorf("SPIR-V output is %d bytes, not a whole number of words", len(spirvBytes))
	}

	// SPIR-V is little-endian 32-bit words
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return words, nil
}

// ValidateShaders compiles every kernel with naga and reports the ones that
// fail.
func ValidateShaders() error {
	var errs []error
	for k := kernel(0); k < kernelCount; k++ {
		if _, err := compileSPIRV(k.source()); err != nil {
			errs = append(errs, fmt.Errorf("native: compile %s: %w", k, err))
		}
	}
	return errors.Join(errs...)
}
