// Package shader compiles shader sources into the SPIR-V words HAL shader
// modules consume and tears down render pipeline objects in order.
package shader

import (
	"errors"
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// ErrMisaligned is returned for SPIR-V byte code whose length is not a
// multiple of four.
var ErrMisaligned = errors.New("shader: SPIR-V length is not a multiple of 4")

// CompileWGSL compiles WGSL source to SPIR-V words.
func CompileWGSL(source string) ([]uint32, error) {
	code, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("shader: compile WGSL: %w", err)
	}
	return Words(code)
}

// Words converts little-endian SPIR-V bytes into 32-bit words.
func Words(code []byte) ([]uint32, error) {
	if len(code) == 0 {
		return nil, errors.New("shader: empty SPIR-V")
	}
	if len(code)%4 != 0 {
		return nil, fmt.Errorf("%w (%d bytes)", ErrMisaligned, len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = uint32(code[i*4]) |
			uint32(code[i*4+1])<<8 |
			uint32(code[i*4+2])<<16 |
			uint32(code[i*4+3])<<24
	}
	return words, nil
}

// Module creates a HAL shader module. wgsl may be empty when only SPIR-V is
// available.
func Module(device hal.Device, label, wgsl string, spirv []uint32) (hal.ShaderModule, error) {
	return device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label: label,
		Source: hal.ShaderSource{
			WGSL:  wgsl,
			SPIRV: spirv,
		},
	})
}

// PipelineResources groups the native objects behind one render pipeline.
type PipelineResources struct {
	Device         hal.Device
	Pipeline       hal.RenderPipeline
	PipelineLayout hal.PipelineLayout
	BindLayouts    []hal.BindGroupLayout
}

// Destroy releases the objects in dependency order. Nil members are skipped,
// so a partially built set can be destroyed on error paths.
func (r *PipelineResources) Destroy() {
	if r.Device == nil {
		return
	}
	if r.Pipeline != nil {
		r.Device.DestroyRenderPipeline(r.Pipeline)
	}
	if r.PipelineLayout != nil {
		r.Device.DestroyPipelineLayout(r.PipelineLayout)
	}
	for _, l := range r.BindLayouts {
		if l != nil {
			r.Device.DestroyBindGroupLayout(l)
		}
	}
}
