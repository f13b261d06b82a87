// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucmd

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpucmd/internal/shader"
)

// ShaderStage selects the pipeline stage a shader runs in.
type ShaderStage int

const (
	// StageVertex is the vertex stage.
	StageVertex ShaderStage = iota
	// StageFragment is the fragment stage.
	StageFragment
)

// String returns the stage name.
func (s ShaderStage) String() string {
	switch s {
	case StageVertex:
		return "Vertex"
	case StageFragment:
		return "Fragment"
	default:
		return fmt.Sprintf("ShaderStage(%d)", int(s))
	}
}

func (s ShaderStage) visibility() gputypes.ShaderStages {
	if s == StageFragment {
		return gputypes.ShaderStageFragment
	}
	return gputypes.ShaderStageVertex
}

// ShaderDesc describes a shader module and the resources it declares.
//
// Resource slots follow a fixed layout: the vertex stage reads bind group
// 0 and the fragment stage bind group 1. Within a group, sampled texture i
// sits at binding 2i with its sampler at 2i+1, storage buffers follow, then
// uniform buffers.
type ShaderDesc struct {
	Label string
	Stage ShaderStage

	// Exactly one of SPIRV or WGSL is set. WGSL is compiled to SPIR-V.
	SPIRV []byte
	WGSL  string

	// EntryPoint defaults to "main".
	EntryPoint string

	NumSamplers       uint32
	NumStorageBuffers uint32
	NumUniformBuffers uint32
}

// Shader is a compiled shader module.
type Shader struct {
	lifetime

	module     hal.ShaderModule
	stage      ShaderStage
	entryPoint string
	counts     bindingCounts
}

// bindingCounts is the number of resources one stage declares.
type bindingCounts struct {
	samplers uint32
	storage  uint32
	uniforms uint32
}

func (c bindingCounts) storageBase() uint32 { return 2 * c.samplers }
func (c bindingCounts) uniformBase() uint32 { return 2*c.samplers + c.storage }

// CreateShader compiles and loads a shader module.
func (d *Device) CreateShader(desc ShaderDesc) (*Shader, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	if desc.Stage != StageVertex && desc.Stage != StageFragment {
		return nil, creationFailed("shader", fmt.Errorf("unknown stage %v", desc.Stage))
	}

	var (
		words []uint32
		err   error
	)
	switch {
	case desc.WGSL != "" && desc.SPIRV != nil:
		return nil, creationFailed("shader", errors.New("both WGSL and SPIR-V given"))
	case desc.WGSL != "":
		words, err = shader.CompileWGSL(desc.WGSL)
	default:
		words, err = shader.Words(desc.SPIRV)
	}
	if err != nil {
		return nil, creationFailed("shader", err)
	}

	label := d.objectLabel("shader", desc.Label)
	module, err := shader.Module(d.hal, label, desc.WGSL, words)
	if err != nil {
		return nil, creationFailed("shader", err)
	}

	entry := desc.EntryPoint
	if entry == "" {
		entry = "main"
	}
	s := &Shader{
		module:     module,
		stage:      desc.Stage,
		entryPoint: entry,
		counts: bindingCounts{
			samplers: desc.NumSamplers,
			storage:  desc.NumStorageBuffers,
			uniforms: desc.NumUniformBuffers,
		},
	}
	s.init(d, label, func() { d.hal.DestroyShaderModule(module) })

	Logger().Debug("gpucmd: shader created",
		"label", desc.Label, "stage", desc.Stage, "words", len(words))
	return s, nil
}

// Stage returns the pipeline stage.
func (s *Shader) Stage() ShaderStage { return s.stage }

// EntryPoint returns the entry point name.
func (s *Shader) EntryPoint() string { return s.entryPoint }

// Retain adds a reference.
func (s *Shader) Retain() error { return s.retain() }

// Release drops a reference. Pipelines built from the shader keep their own
// reference, so a shader may be released right after pipeline creation.
func (s *Shader) Release() {
	if s != nil {
		s.release()
	}
}
