// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucmd

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpucmd/format"
	"github.com/gogpu/gpucmd/internal/shader"
)

// VertexAttribute describes one vertex shader input.
type VertexAttribute struct {
	Location uint32
	Slot     uint32
	Format   gputypes.VertexFormat
	Offset   uint32
}

// VertexBufferDesc describes the vertex buffer bound at Slot.
type VertexBufferDesc struct {
	Slot  uint32
	Pitch uint32
	// InstanceRate advances the buffer per instance instead of per vertex.
	InstanceRate bool
}

// BlendState configures color blending of the single color target.
type BlendState struct {
	Enable bool

	// EnableColorWriteMask restricts writes to WriteMask. Otherwise all
	// channels are written.
	EnableColorWriteMask bool
	WriteMask            format.ColorComponents

	SrcColor gputypes.BlendFactor
	DstColor gputypes.BlendFactor
	ColorOp  gputypes.BlendOperation
	SrcAlpha gputypes.BlendFactor
	DstAlpha gputypes.BlendFactor
	AlphaOp  gputypes.BlendOperation
}

// DefaultAlphaBlend returns straight alpha blending.
func DefaultAlphaBlend() BlendState {
	return BlendState{
		Enable:   true,
		SrcColor: gputypes.BlendFactorSrcAlpha,
		DstColor: gputypes.BlendFactorOneMinusSrcAlpha,
		ColorOp:  gputypes.BlendOperationAdd,
		SrcAlpha: gputypes.BlendFactorOne,
		DstAlpha: gputypes.BlendFactorOneMinusSrcAlpha,
		AlphaOp:  gputypes.BlendOperationAdd,
	}
}

func (b BlendState) writeMask() gputypes.ColorWriteMask {
	if b.EnableColorWriteMask {
		return b.WriteMask.WriteMask()
	}
	return gputypes.ColorWriteMaskAll
}

func (b BlendState) native() *gputypes.BlendState {
	if !b.Enable {
		return nil
	}
	op := func(o gputypes.BlendOperation) gputypes.BlendOperation {
		if o == gputypes.BlendOperationUndefined {
			return gputypes.BlendOperationAdd
		}
		return o
	}
	return &gputypes.BlendState{
		Color: gputypes.BlendComponent{SrcFactor: b.SrcColor, DstFactor: b.DstColor, Operation: op(b.ColorOp)},
		Alpha: gputypes.BlendComponent{SrcFactor: b.SrcAlpha, DstFactor: b.DstAlpha, Operation: op(b.AlphaOp)},
	}
}

// PipelineDesc describes a graphics pipeline with one color target.
type PipelineDesc struct {
	Label string

	// TargetFormat is the color target format. Use Device.SwapchainFormat
	// for pipelines that draw to swapchain images.
	TargetFormat gputypes.TextureFormat

	VertexShader   *Shader
	FragmentShader *Shader

	VertexBuffers    []VertexBufferDesc
	VertexAttributes []VertexAttribute

	Primitive gputypes.PrimitiveTopology
	Blend     BlendState
}

// Pipeline is an immutable graphics pipeline.
type Pipeline struct {
	lifetime

	raw          hal.RenderPipeline
	groupLayouts [2]hal.BindGroupLayout
	targetFormat gputypes.TextureFormat

	// counts holds the resources of the vertex (0) and fragment (1) stage.
	counts [2]bindingCounts
	// slots lists the vertex buffer slots the pipeline reads.
	slots []uint32
}

// CreatePipeline builds a graphics pipeline. The pipeline holds references
// to both shaders until it is destroyed.
func (d *Device) CreatePipeline(desc PipelineDesc) (*Pipeline, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	vs, fs := desc.VertexShader, desc.FragmentShader
	if vs == nil || fs == nil {
		return nil, fmt.Errorf("%w: pipeline needs a vertex and a fragment shader", ErrNilResource)
	}
	if vs.stage != StageVertex || fs.stage != StageFragment {
		return nil, creationFailed("pipeline", fmt.Errorf("shader stages %v/%v", vs.stage, fs.stage))
	}
	if desc.TargetFormat == gputypes.TextureFormatUndefined {
		return nil, creationFailed("pipeline", errors.New("target format is undefined"))
	}
	buffers, slots, err := vertexLayouts(desc.VertexBuffers, desc.VertexAttributes)
	if err != nil {
		return nil, creationFailed("pipeline", err)
	}

	if err := vs.retain(); err != nil {
		return nil, err
	}
	if err := fs.retain(); err != nil {
		vs.release()
		return nil, err
	}

	label := d.objectLabel("pipeline", desc.Label)
	res := &shader.PipelineResources{Device: d.hal}
	fail := func(what string, err error) (*Pipeline, error) {
		res.Destroy()
		vs.release()
		fs.release()
		return nil, creationFailed(what, err)
	}

	p := &Pipeline{
		targetFormat: desc.TargetFormat,
		counts:       [2]bindingCounts{vs.counts, fs.counts},
		slots:        slots,
	}
	for i, s := range []*Shader{vs, fs} {
		layout, err := d.hal.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("%s group %d", label, i),
			Entries: layoutEntries(s.counts, s.stage.visibility()),
		})
		if err != nil {
			return fail("bind group layout", err)
		}
		p.groupLayouts[i] = layout
		res.BindLayouts = append(res.BindLayouts, layout)
	}

	res.PipelineLayout, err = d.hal.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            label,
		BindGroupLayouts: p.groupLayouts[:],
	})
	if err != nil {
		return fail("pipeline layout", err)
	}

	res.Pipeline, err = d.hal.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  label,
		Layout: res.PipelineLayout,
		Vertex: hal.VertexState{
			Module:     vs.module,
			EntryPoint: vs.entryPoint,
			Buffers:    buffers,
		},
		Primitive: gputypes.PrimitiveState{
			Topology:  desc.Primitive,
			FrontFace: gputypes.FrontFaceCCW,
			CullMode:  gputypes.CullModeNone,
		},
		Multisample: gputypes.DefaultMultisampleState(),
		Fragment: &hal.FragmentState{
			Module:     fs.module,
			EntryPoint: fs.entryPoint,
			Targets: []gputypes.ColorTargetState{{
				Format:    desc.TargetFormat,
				Blend:     desc.Blend.native(),
				WriteMask: desc.Blend.writeMask(),
			}},
		},
	})
	if err != nil {
		return fail("pipeline", err)
	}
	p.raw = res.Pipeline

	p.init(d, label, func() {
		res.Destroy()
		vs.release()
		fs.release()
	})
	Logger().Debug("gpucmd: pipeline created",
		"label", desc.Label, "target", desc.TargetFormat.String(), "vertex_buffers", len(slots))
	return p, nil
}

// vertexLayouts places buffer layouts by slot. Slots without a description
// are marked unused. Every attribute must reference a described slot.
func vertexLayouts(bufs []VertexBufferDesc, attrs []VertexAttribute) ([]gputypes.VertexBufferLayout, []uint32, error) {
	if len(bufs) == 0 {
		if len(attrs) > 0 {
			return nil, nil, errors.New("vertex attributes without vertex buffers")
		}
		return nil, nil, nil
	}
	var maxSlot uint32
	for _, b := range bufs {
		maxSlot = max(maxSlot, b.Slot)
	}
	layouts := make([]gputypes.VertexBufferLayout, maxSlot+1)
	for i := range layouts {
		layouts[i].StepMode = gputypes.VertexStepModeVertexBufferNotUsed
	}
	slots := make([]uint32, 0, len(bufs))
	for _, b := range bufs {
		l := &layouts[b.Slot]
		if l.StepMode != gputypes.VertexStepModeVertexBufferNotUsed {
			return nil, nil, fmt.Errorf("vertex buffer slot %d described twice", b.Slot)
		}
		l.ArrayStride = uint64(b.Pitch)
		l.StepMode = gputypes.VertexStepModeVertex
		if b.InstanceRate {
			l.StepMode = gputypes.VertexStepModeInstance
		}
		slots = append(slots, b.Slot)
	}
	for _, a := range attrs {
		if a.Slot > maxSlot || layouts[a.Slot].StepMode == gputypes.VertexStepModeVertexBufferNotUsed {
			return nil, nil, fmt.Errorf("attribute %d references undescribed slot %d", a.Location, a.Slot)
		}
		layouts[a.Slot].Attributes = append(layouts[a.Slot].Attributes, gputypes.VertexAttribute{
			Format:         a.Format,
			Offset:         uint64(a.Offset),
			ShaderLocation: a.Location,
		})
	}
	return layouts, slots, nil
}

// layoutEntries lays out one stage's bind group: texture/sampler pairs,
// then storage buffers, then uniform buffers.
func layoutEntries(c bindingCounts, vis gputypes.ShaderStages) []gputypes.BindGroupLayoutEntry {
	entries := make([]gputypes.BindGroupLayoutEntry, 0, 2*c.samplers+c.storage+c.uniforms)
	for i := range c.samplers {
		entries = append(entries,
			gputypes.BindGroupLayoutEntry{
				Binding:    2 * i,
				Visibility: vis,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			gputypes.BindGroupLayoutEntry{
				Binding:    2*i + 1,
				Visibility: vis,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			})
	}
	for i := range c.storage {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    c.storageBase() + i,
			Visibility: vis,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage},
		})
	}
	for i := range c.uniforms {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    c.uniformBase() + i,
			Visibility: vis,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		})
	}
	return entries
}

// TargetFormat returns the color target format.
func (p *Pipeline) TargetFormat() gputypes.TextureFormat { return p.targetFormat }

// Retain adds a reference.
func (p *Pipeline) Retain() error { return p.retain() }

// Release drops a reference.
func (p *Pipeline) Release() {
	if p != nil {
		p.release()
	}
}
