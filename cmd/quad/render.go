package main

import (
	"fmt"
	"io"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpucmd"
	"github.com/gogpu/gpucmd/format"
	"github.com/gogpu/gpucmd/imageload"
	"github.com/gogpu/gpucmd/internal/quad"
)

// run presents cfg.Frames frames and captures one offscreen frame into
// cfg.Output.
func run(cfg Config, stdout io.Writer) error {
	var window gpucmd.Window
	if cfg.Frames > 0 {
		window = gpucontext.NullWindowProvider{W: cfg.Width, H: cfg.Height, SF: 1}
	}
	d, err := gpucmd.Open(window, gpucmd.WithBackend(cfg.Backend), gpucmd.WithLabel("quad"))
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()

	info := d.AdapterInfo()
	fmt.Fprintf(stdout, "backend %s, adapter %q (%s)\n", d.BackendName(), info.Name, info.DeviceType)

	s, err := newScene(d, cfg)
	if err != nil {
		return err
	}
	defer s.release()

	presented := 0
	for range cfg.Frames {
		drawn, err := d.Frame(cfg.Clear.gpu(), s.drawer(d))
		if err != nil {
			return fmt.Errorf("quad: frame %d: %w", presented, err)
		}
		if drawn {
			presented++
		}
	}
	if cfg.Frames > 0 {
		fmt.Fprintf(stdout, "presented %d of %d frames (%v)\n", presented, cfg.Frames, d.SwapchainFormat())
	}

	if cfg.Output == "" {
		return nil
	}
	if err := s.capture(d, cfg); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s (%dx%d)\n", cfg.Output, cfg.Width, cfg.Height)
	return nil
}

// scene holds the device objects of the quad. Pipelines are built per
// target format on first use.
type scene struct {
	vs, fs    *gpucmd.Shader
	vertices  *gpucmd.Buffer
	indices   *gpucmd.Buffer
	texture   *gpucmd.Texture
	blend     gpucmd.BlendState
	pipelines map[gputypes.TextureFormat]*gpucmd.Pipeline
}

func newScene(d *gpucmd.Device, cfg Config) (_ *scene, err error) {
	s := &scene{
		blend:     cfg.blend(),
		pipelines: make(map[gputypes.TextureFormat]*gpucmd.Pipeline),
	}
	defer func() {
		if err != nil {
			s.release()
		}
	}()

	if s.vs, err = d.CreateShader(gpucmd.ShaderDesc{
		Label: "quad vs",
		Stage: gpucmd.StageVertex,
		WGSL:  quad.VertexWGSL,
	}); err != nil {
		return nil, err
	}
	if s.fs, err = d.CreateShader(gpucmd.ShaderDesc{
		Label:       "quad fs",
		Stage:       gpucmd.StageFragment,
		WGSL:        quad.FragmentWGSL,
		NumSamplers: 1,
	}); err != nil {
		return nil, err
	}

	vertices, indices := quad.Vertices(), quad.Indices()
	if s.vertices, err = d.CreateBuffer(gpucmd.BufferVertex, uint32(len(vertices)*quad.Stride)); err != nil {
		return nil, err
	}
	if s.indices, err = d.CreateBuffer(gpucmd.BufferIndex, uint32(len(indices)*4)); err != nil {
		return nil, err
	}
	up, err := d.CreateTransferBuffer(gpucmd.TransferUpload, s.vertices.Size())
	if err != nil {
		return nil, err
	}
	defer up.Release()
	if err = gpucmd.WriteSlice(up, s.vertices, vertices); err != nil {
		return nil, fmt.Errorf("quad: upload vertices: %w", err)
	}
	if err = gpucmd.WriteSlice(up, s.indices, indices); err != nil {
		return nil, fmt.Errorf("quad: upload indices: %w", err)
	}

	if cfg.Texture != "" {
		s.texture, err = d.CreateTextureFromFile(cfg.Texture, format.AccessSampler)
	} else {
		const size = 64
		s.texture, err = d.CreateTexture(gpucmd.TextureDesc{
			Label:  "checker",
			Format: gputypes.TextureFormatRGBA8Unorm,
			Width:  size,
			Height: size,
		}, quad.Checker(size, 8))
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *scene) pipeline(d *gpucmd.Device, target gputypes.TextureFormat) (*gpucmd.Pipeline, error) {
	if p, ok := s.pipelines[target]; ok {
		return p, nil
	}
	attrs := make([]gpucmd.VertexAttribute, len(quad.Attributes))
	for i, a := range quad.Attributes {
		attrs[i] = gpucmd.VertexAttribute{Location: a.Location, Format: a.Format, Offset: a.Offset}
	}
	p, err := d.CreatePipeline(gpucmd.PipelineDesc{
		Label:            "quad " + target.String(),
		TargetFormat:     target,
		VertexShader:     s.vs,
		FragmentShader:   s.fs,
		VertexBuffers:    []gpucmd.VertexBufferDesc{{Pitch: quad.Stride}},
		VertexAttributes: attrs,
		Primitive:        gputypes.PrimitiveTopologyTriangleList,
		Blend:            s.blend,
	})
	if err != nil {
		return nil, err
	}
	s.pipelines[target] = p
	return p, nil
}

// drawer returns the draw callback for passes on d.
func (s *scene) drawer(d *gpucmd.Device) func(*gpucmd.RenderPass) error {
	return func(p *gpucmd.RenderPass) error {
		pl, err := s.pipeline(d, p.Target().Format())
		if err != nil {
			return err
		}
		if err := p.BindPipeline(pl); err != nil {
			return err
		}
		if err := p.BindVertexBuffer(0, s.vertices, 0); err != nil {
			return err
		}
		if err := p.BindIndexBuffer(s.indices, 0, gpucmd.Index32); err != nil {
			return err
		}
		if err := p.BindFragmentSamplers(0, s.texture); err != nil {
			return err
		}
		return p.DrawIndexed(uint32(len(quad.Indices())), 0, 0)
	}
}

// capture renders one frame into an offscreen target and saves it.
func (s *scene) capture(d *gpucmd.Device, cfg Config) error {
	f, err := cfg.targetFormat()
	if err != nil {
		return err
	}
	w, h := uint32(cfg.Width), uint32(cfg.Height)
	target, err := d.CreateTexture(gpucmd.TextureDesc{
		Label:  "capture",
		Format: f,
		Access: format.AccessRenderTarget,
		Width:  w,
		Height: h,
	}, nil)
	if err != nil {
		return err
	}
	defer target.Release()

	cb, err := d.AcquireCommandBuffer()
	if err != nil {
		return err
	}
	defer cb.Close()
	pass, err := cb.BeginRenderPass(target, cfg.Clear.gpu())
	if err != nil {
		return err
	}
	if err := s.drawer(d)(pass); err != nil {
		pass.Close()
		_ = cb.Cancel()
		return err
	}
	if err := pass.End(); err != nil {
		return err
	}
	if err := cb.Submit(); err != nil {
		return err
	}

	size, _ := format.ImageSize(f, w, h)
	down, err := d.CreateTransferBuffer(gpucmd.TransferDownload, uint32(size))
	if err != nil {
		return err
	}
	defer down.Release()
	data, err := down.ReadTexture(target)
	if err != nil {
		return err
	}
	if f == gputypes.TextureFormatBGRA8Unorm {
		for i := 0; i+3 < len(data); i += 4 {
			data[i], data[i+2] = data[i+2], data[i]
		}
	}

	px := &imageload.Pixels{Width: cfg.Width, Height: cfg.Height, Source: imageload.LayoutRGBA8, Data: data}
	return px.Save(cfg.Output)
}

func (s *scene) release() {
	for _, p := range s.pipelines {
		p.Release()
	}
	clear(s.pipelines)
	s.vs.Release()
	s.fs.Release()
	s.vertices.Release()
	s.indices.Release()
	s.texture.Release()
}
