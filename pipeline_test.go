package gpucmd

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpucmd/format"
	"github.com/gogpu/gpucmd/internal/quad"
	"github.com/gogpu/gpucmd/internal/shader"
)

func quadShaders(t *testing.T, d *Device) (vs, fs *Shader) {
	t.Helper()
	vs, err := d.CreateShader(ShaderDesc{Label: "quad vs", Stage: StageVertex, WGSL: quad.VertexWGSL})
	if err != nil {
		t.Fatalf("CreateShader(vertex): %v", err)
	}
	t.Cleanup(vs.Release)
	fs, err = d.CreateShader(ShaderDesc{Label: "quad fs", Stage: StageFragment, WGSL: quad.FragmentWGSL, NumSamplers: 1})
	if err != nil {
		t.Fatalf("CreateShader(fragment): %v", err)
	}
	t.Cleanup(fs.Release)
	return vs, fs
}

func quadPipelineDesc(vs, fs *Shader, target gputypes.TextureFormat) PipelineDesc {
	attrs := make([]VertexAttribute, len(quad.Attributes))
	for i, a := range quad.Attributes {
		attrs[i] = VertexAttribute{Location: a.Location, Slot: 0, Format: a.Format, Offset: a.Offset}
	}
	return PipelineDesc{
		Label:            "quad",
		TargetFormat:     target,
		VertexShader:     vs,
		FragmentShader:   fs,
		VertexBuffers:    []VertexBufferDesc{{Slot: 0, Pitch: quad.Stride}},
		VertexAttributes: attrs,
		Primitive:        gputypes.PrimitiveTopologyTriangleList,
		Blend:            DefaultAlphaBlend(),
	}
}

func newQuadPipeline(t *testing.T, d *Device, target gputypes.TextureFormat) *Pipeline {
	t.Helper()
	vs, fs := quadShaders(t, d)
	p, err := d.CreatePipeline(quadPipelineDesc(vs, fs, target))
	if err != nil {
		t.Fatalf("CreatePipeline: %v", err)
	}
	t.Cleanup(p.Release)
	return p
}

func TestCreateShader(t *testing.T) {
	d := newTestDevice(t)
	spirv, err := shader.CompileWGSL(quad.VertexWGSL)
	if err != nil {
		t.Fatalf("CompileWGSL: %v", err)
	}
	code := make([]byte, 4*len(spirv))
	for i, w := range spirv {
		code[4*i], code[4*i+1], code[4*i+2], code[4*i+3] = byte(w), byte(w>>8), byte(w>>16), byte(w>>24)
	}

	tests := []struct {
		name    string
		desc    ShaderDesc
		wantErr error
	}{
		{"wgsl", ShaderDesc{Stage: StageVertex, WGSL: quad.VertexWGSL}, nil},
		{"spirv", ShaderDesc{Stage: StageVertex, SPIRV: code, EntryPoint: "main"}, nil},
		{"both sources", ShaderDesc{Stage: StageVertex, WGSL: quad.VertexWGSL, SPIRV: code}, ErrCreationFailed},
		{"no source", ShaderDesc{Stage: StageFragment}, ErrCreationFailed},
		{"misaligned spirv", ShaderDesc{Stage: StageVertex, SPIRV: code[:len(code)-1]}, shader.ErrMisaligned},
		{"bad wgsl", ShaderDesc{Stage: StageFragment, WGSL: "fn main( {"}, ErrCreationFailed},
		{"unknown stage", ShaderDesc{Stage: ShaderStage(7), WGSL: quad.VertexWGSL}, ErrCreationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := d.CreateShader(tt.desc)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("CreateShader() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateShader() error = %v", err)
			}
			defer s.Release()
			if s.EntryPoint() != "main" {
				t.Errorf("EntryPoint() = %q, want main", s.EntryPoint())
			}
			if s.Stage() != tt.desc.Stage {
				t.Errorf("Stage() = %v, want %v", s.Stage(), tt.desc.Stage)
			}
		})
	}
}

func TestCreatePipelineValidation(t *testing.T) {
	d := newTestDevice(t)
	vs, fs := quadShaders(t, d)
	rgba := gputypes.TextureFormatRGBA8Unorm

	tests := []struct {
		name   string
		modify func(*PipelineDesc)
		want   error
	}{
		{"nil vertex shader", func(p *PipelineDesc) { p.VertexShader = nil }, ErrNilResource},
		{"nil fragment shader", func(p *PipelineDesc) { p.FragmentShader = nil }, ErrNilResource},
		{"swapped stages", func(p *PipelineDesc) { p.VertexShader, p.FragmentShader = fs, vs }, ErrCreationFailed},
		{"undefined target", func(p *PipelineDesc) { p.TargetFormat = gputypes.TextureFormatUndefined }, ErrCreationFailed},
		{"attribute without buffer", func(p *PipelineDesc) { p.VertexBuffers = nil }, ErrCreationFailed},
		{"attribute on missing slot", func(p *PipelineDesc) { p.VertexAttributes[0].Slot = 3 }, ErrCreationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc := quadPipelineDesc(vs, fs, rgba)
			tt.modify(&desc)
			p, err := d.CreatePipeline(desc)
			if !errors.Is(err, tt.want) {
				t.Errorf("CreatePipeline() error = %v, want %v", err, tt.want)
			}
			if p != nil {
				t.Error("CreatePipeline() returned a pipeline on failure")
			}
		})
	}

	// Failed creations must not leak shader references.
	if vs.refs != 1 || fs.refs != 1 {
		t.Errorf("shader refs = %d/%d after failed creations, want 1/1", vs.refs, fs.refs)
	}
}

func TestPipelineHoldsShaders(t *testing.T) {
	d := newTestDevice(t)
	vs, err := d.CreateShader(ShaderDesc{Stage: StageVertex, WGSL: quad.VertexWGSL})
	if err != nil {
		t.Fatalf("CreateShader(vertex): %v", err)
	}
	fs, err := d.CreateShader(ShaderDesc{Stage: StageFragment, WGSL: quad.FragmentWGSL, NumSamplers: 1})
	if err != nil {
		t.Fatalf("CreateShader(fragment): %v", err)
	}
	p, err := d.CreatePipeline(quadPipelineDesc(vs, fs, gputypes.TextureFormatBGRA8Unorm))
	if err != nil {
		t.Fatalf("CreatePipeline: %v", err)
	}
	if p.TargetFormat() != gputypes.TextureFormatBGRA8Unorm {
		t.Errorf("TargetFormat() = %v", p.TargetFormat())
	}

	vs.Release()
	fs.Release()
	if !vs.alive() || !fs.alive() {
		t.Fatal("shaders destroyed while a pipeline uses them")
	}
	p.Release()
	if vs.alive() || fs.alive() {
		t.Error("shaders alive after the pipeline was released")
	}
}

func TestVertexLayouts(t *testing.T) {
	f2 := gputypes.VertexFormatFloat32x2
	tests := []struct {
		name      string
		bufs      []VertexBufferDesc
		attrs     []VertexAttribute
		wantSlots []uint32
		wantSteps []gputypes.VertexStepMode
		wantErr   bool
	}{
		{name: "none"},
		{
			name:      "single",
			bufs:      []VertexBufferDesc{{Slot: 0, Pitch: 8}},
			attrs:     []VertexAttribute{{Location: 0, Slot: 0, Format: f2}},
			wantSlots: []uint32{0},
			wantSteps: []gputypes.VertexStepMode{gputypes.VertexStepModeVertex},
		},
		{
			name:      "gap and instance",
			bufs:      []VertexBufferDesc{{Slot: 2, Pitch: 8, InstanceRate: true}, {Slot: 0, Pitch: 8}},
			attrs:     []VertexAttribute{{Location: 0, Slot: 0, Format: f2}, {Location: 1, Slot: 2, Format: f2}},
			wantSlots: []uint32{2, 0},
			wantSteps: []gputypes.VertexStepMode{
				gputypes.VertexStepModeVertex,
				gputypes.VertexStepModeVertexBufferNotUsed,
				gputypes.VertexStepModeInstance,
			},
		},
		{
			name:    "duplicate slot",
			bufs:    []VertexBufferDesc{{Slot: 1, Pitch: 8}, {Slot: 1, Pitch: 16}},
			wantErr: true,
		},
		{
			name:    "attribute on gap",
			bufs:    []VertexBufferDesc{{Slot: 2, Pitch: 8}},
			attrs:   []VertexAttribute{{Location: 0, Slot: 1, Format: f2}},
			wantErr: true,
		},
		{
			name:    "attributes without buffers",
			attrs:   []VertexAttribute{{Location: 0, Format: f2}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			layouts, slots, err := vertexLayouts(tt.bufs, tt.attrs)
			if (err != nil) != tt.wantErr {
				t.Fatalf("vertexLayouts() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(slots) != len(tt.wantSlots) {
				t.Fatalf("slots = %v, want %v", slots, tt.wantSlots)
			}
			for i := range slots {
				if slots[i] != tt.wantSlots[i] {
					t.Errorf("slots = %v, want %v", slots, tt.wantSlots)
				}
			}
			if len(layouts) != len(tt.wantSteps) {
				t.Fatalf("len(layouts) = %d, want %d", len(layouts), len(tt.wantSteps))
			}
			for i, l := range layouts {
				if l.StepMode != tt.wantSteps[i] {
					t.Errorf("layout %d StepMode = %v, want %v", i, l.StepMode, tt.wantSteps[i])
				}
			}
		})
	}
}

func TestLayoutEntries(t *testing.T) {
	c := bindingCounts{samplers: 2, storage: 1, uniforms: 2}
	entries := layoutEntries(c, gputypes.ShaderStageFragment)
	if len(entries) != 7 {
		t.Fatalf("len(entries) = %d, want 7", len(entries))
	}
	for i, e := range entries {
		if e.Binding != uint32(i) {
			t.Errorf("entry %d binding = %d, want %d", i, e.Binding, i)
		}
		if e.Visibility != gputypes.ShaderStageFragment {
			t.Errorf("entry %d visibility = %v", i, e.Visibility)
		}
	}
	for _, i := range []int{0, 2} {
		if entries[i].Texture == nil || entries[i+1].Sampler == nil {
			t.Errorf("bindings %d/%d are not a texture/sampler pair", i, i+1)
		}
	}
	if b := entries[4].Buffer; b == nil || b.Type != gputypes.BufferBindingTypeReadOnlyStorage {
		t.Errorf("binding 4 = %+v, want read-only storage", entries[4])
	}
	for _, i := range []int{5, 6} {
		if b := entries[i].Buffer; b == nil || b.Type != gputypes.BufferBindingTypeUniform {
			t.Errorf("binding %d = %+v, want uniform", i, entries[i])
		}
	}

	if got := layoutEntries(bindingCounts{}, gputypes.ShaderStageVertex); len(got) != 0 {
		t.Errorf("empty counts produced %d entries", len(got))
	}
}

func TestBlendState(t *testing.T) {
	if got := (BlendState{}).native(); got != nil {
		t.Errorf("disabled blend native() = %+v, want nil", got)
	}

	b := DefaultAlphaBlend()
	b.AlphaOp = gputypes.BlendOperationUndefined
	n := b.native()
	if n == nil {
		t.Fatal("enabled blend native() = nil")
	}
	if n.Color.SrcFactor != gputypes.BlendFactorSrcAlpha || n.Color.DstFactor != gputypes.BlendFactorOneMinusSrcAlpha {
		t.Errorf("color component = %+v", n.Color)
	}
	if n.Alpha.Operation != gputypes.BlendOperationAdd {
		t.Errorf("undefined alpha op became %v, want Add", n.Alpha.Operation)
	}

	if got := (BlendState{}).writeMask(); got != gputypes.ColorWriteMaskAll {
		t.Errorf("default writeMask() = %v, want All", got)
	}
	masked := BlendState{EnableColorWriteMask: true, WriteMask: format.ColorR | format.ColorA}
	if got, want := masked.writeMask(), gputypes.ColorWriteMaskRed|gputypes.ColorWriteMaskAlpha; got != want {
		t.Errorf("masked writeMask() = %v, want %v", got, want)
	}
}
