//go:build !nogpu

package native

import (
	"fmt"

	"github.com/gogpu/wgpu/hal"
)

// pipelineSet holds one compute pipeline per kernel.
type pipelineSet struct {
	device hal.Device

	modules         [kernelCount]hal.ShaderModule
	bgLayouts       [kernelCount]hal.BindGroupLayout
	pipelineLayouts [kernelCount]hal.PipelineLayout
	pipelines       [kernelCount]hal.ComputePipeline
}

// newPipelineSet creates every kernel pipeline. With spirv set the WGSL is
// compiled to SPIR-V with naga first; otherwise the HAL receives WGSL.
func newPipelineSet(device hal.Device, spirv bool) (*pipelineSet, error) {
	p := &pipelineSet{device: device}
	for k := kernel(0); k < kernelCount; k++ {
		if err := p.create(k, spirv); err != nil {
			p.destroy()
			return nil, err
		}
	}
	slogger().Debug("native: pipelines created", "kernels", int(kernelCount), "spirv", spirv)
	return p, nil
}

func (p *pipelineSet) create(k kernel, spirv bool) error {
	label := "blit_" + k.String()

	src := hal.ShaderSource{WGSL: k.source()}
	if spirv {
		words, err := compileSPIRV(k.source())
		if err != nil {
			return fmt.Errorf("native: compile %s: %w", k, err)
		}
		src = hal.ShaderSource{SPIRV: words}
	}
	module, err := p.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: src,
	})
	if err != nil {
		return fmt.Errorf("native: create shader module for %s: %w", k, err)
	}
	p.modules[k] = module

	bgLayout, err := p.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   label + "_bgl",
		Entries: layoutEntries(k),
	})
	if err != nil {
		return fmt.Errorf("native: create bind group layout for %s: %w", k, err)
	}
	p.bgLayouts[k] = bgLayout

	pipelineLayout, err := p.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            label + "_pl",
		BindGroupLayouts: []hal.BindGroupLayout{bgLayout},
	})
	if err != nil {
		return fmt.Errorf("native: create pipeline layout for %s: %w", k, err)
	}
	p.pipelineLayouts[k] = pipelineLayout

	pipeline, err := p.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  label,
		Layout: pipelineLayout,
		Compute: hal.ComputeState{
			Module:     module,
			EntryPoint: "main",
		},
	})
	if err != nil {
		return fmt.Errorf("native: create compute pipeline for %s: %w", k, err)
	}
	p.pipelines[k] = pipeline
	return nil
}

// destroy releases whatever was created, in reverse dependency order.
func (p *pipelineSet) destroy() {
	for k := kernel(0); k < kernelCount; k++ {
		if p.pipelines[k] != nil {
			p.device.DestroyComputePipeline(p.pipelines[k])
			p.pipelines[k] = nil
		}
		if p.pipelineLayouts[k] != nil {
			p.device.DestroyPipelineLayout(p.pipelineLayouts[k])
			p.pipelineLayouts[k] = nil
		}
		if p.bgLayouts[k] != nil {
			p.device.DestroyBindGroupLayout(p.bgLayouts[k])
			p.bgLayouts[k] = nil
		}
		if p.modules[k] != nil {
			p.device.DestroyShaderModule(p.modules[k])
			p.modules[k] = nil
		}
	}
}
