// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucmd

import (
	"fmt"
	"image"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// IndexSize is the width of the indices in an index buffer.
type IndexSize int

const (
	// Index32 selects 32-bit indices. It is the zero value.
	Index32 IndexSize = iota
	// Index16 selects 16-bit indices.
	Index16
)

func (s IndexSize) format() gputypes.IndexFormat {
	if s == Index16 {
		return gputypes.IndexFormatUint16
	}
	return gputypes.IndexFormatUint32
}

// Viewport maps normalized device coordinates onto the render target.
type Viewport struct {
	X, Y, W, H         float32
	MinDepth, MaxDepth float32
}

// stage indices into RenderPass.stages and bind group numbers.
const (
	vertexGroup   = 0
	fragmentGroup = 1
)

// stageBindings holds the resources bound for one shader stage.
type stageBindings struct {
	samplers []*Texture
	storage  []*Buffer
	uniforms []*Buffer
	dirty    bool
}

// RenderPass records draws into one color target.
//
// The target is cleared when the pass begins and stored when it ends.
// Resource bindings are collected on the pass and turned into bind groups
// right before each draw that follows a change.
type RenderPass struct {
	cb     *CommandBuffer
	enc    hal.RenderPassEncoder
	target *Texture
	ended  bool

	pipeline    *Pipeline
	vertexBufs  map[uint32]*Buffer
	indexBuffer *Buffer
	stages      [2]stageBindings
}

// BeginRenderPass opens a render pass that clears target to clear.
// Owned targets still in use by earlier work are cycled first.
func (cb *CommandBuffer) BeginRenderPass(target *Texture, clear gputypes.Color) (*RenderPass, error) {
	if cb == nil {
		return nil, ErrNilResource
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err := cb.checkAcquired(); err != nil {
		return nil, err
	}
	if cb.pass != nil {
		return nil, ErrPassOpen
	}
	if target == nil {
		return nil, ErrNilResource
	}

	target.mu.Lock()
	if err := target.cycleIfBusy(); err != nil {
		target.mu.Unlock()
		return nil, err
	}
	view := target.view
	target.mu.Unlock()

	if err := cb.track(&target.lifetime); err != nil {
		return nil, err
	}
	enc := cb.encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: cb.label,
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: clear,
		}},
	})
	p := &RenderPass{
		cb:         cb,
		enc:        enc,
		target:     target,
		vertexBufs: make(map[uint32]*Buffer),
	}
	cb.pass = p
	return p, nil
}

// End ends the pass. A second call returns ErrAlreadyEnded.
func (p *RenderPass) End() error {
	p.cb.mu.Lock()
	defer p.cb.mu.Unlock()
	if p.ended {
		return ErrAlreadyEnded
	}
	p.endLocked()
	p.cb.pass = nil
	return nil
}

// Close ends the pass if it is still open.
func (p *RenderPass) Close() {
	if p == nil {
		return
	}
	if err := p.End(); err != nil && err != ErrAlreadyEnded {
		Logger().Warn("gpucmd: implicit render pass end failed", "err", err)
	}
}

func (p *RenderPass) endLocked() {
	p.ended = true
	p.enc.End()
}

// Ended reports whether End has been called.
func (p *RenderPass) Ended() bool {
	p.cb.mu.Lock()
	defer p.cb.mu.Unlock()
	return p.ended
}

// Target returns the color target.
func (p *RenderPass) Target() *Texture { return p.target }

// lock takes cb.mu and fails on an ended pass. On success the caller must
// unlock cb.mu.
func (p *RenderPass) lock() error {
	p.cb.mu.Lock()
	if p.ended {
		p.cb.mu.Unlock()
		return ErrAlreadyEnded
	}
	return nil
}

// BindPipeline selects the pipeline for following draws.
func (p *RenderPass) BindPipeline(pl *Pipeline) error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.cb.mu.Unlock()
	if pl == nil {
		return ErrNilResource
	}
	if err := p.cb.track(&pl.lifetime); err != nil {
		return err
	}
	p.enc.SetPipeline(pl.raw)
	p.pipeline = pl
	p.stages[vertexGroup].dirty = true
	p.stages[fragmentGroup].dirty = true
	return nil
}

// BindVertexBuffer binds buf at slot, starting offset bytes in.
func (p *RenderPass) BindVertexBuffer(slot uint32, buf *Buffer, offset uint32) error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.cb.mu.Unlock()
	if buf == nil {
		return ErrNilResource
	}
	if offset >= buf.size {
		return fmt.Errorf("%w: vertex buffer offset %d, size %d", ErrSizeMismatch, offset, buf.size)
	}
	if err := p.cb.track(&buf.lifetime); err != nil {
		return err
	}
	p.enc.SetVertexBuffer(slot, buf.native(), uint64(offset))
	p.vertexBufs[slot] = buf
	return nil
}

// BindIndexBuffer binds buf as the index buffer for DrawIndexed.
func (p *RenderPass) BindIndexBuffer(buf *Buffer, offset uint32, size IndexSize) error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.cb.mu.Unlock()
	if buf == nil {
		return ErrNilResource
	}
	if offset >= buf.size {
		return fmt.Errorf("%w: index buffer offset %d, size %d", ErrSizeMismatch, offset, buf.size)
	}
	if err := p.cb.track(&buf.lifetime); err != nil {
		return err
	}
	p.enc.SetIndexBuffer(buf.native(), size.format(), uint64(offset))
	p.indexBuffer = buf
	return nil
}

// BindVertexSamplers binds textures and their samplers to the vertex
// stage, starting at slot first.
func (p *RenderPass) BindVertexSamplers(first uint32, tex ...*Texture) error {
	return p.bindSamplers(vertexGroup, first, tex)
}

// BindFragmentSamplers binds textures and their samplers to the fragment
// stage, starting at slot first.
func (p *RenderPass) BindFragmentSamplers(first uint32, tex ...*Texture) error {
	return p.bindSamplers(fragmentGroup, first, tex)
}

// BindVertexStorageBuffers binds read-only storage buffers to the vertex
// stage, starting at slot first.
func (p *RenderPass) BindVertexStorageBuffers(first uint32, bufs ...*Buffer) error {
	return p.bindBuffers(vertexGroup, first, bufs, false)
}

// BindFragmentStorageBuffers binds read-only storage buffers to the
// fragment stage, starting at slot first.
func (p *RenderPass) BindFragmentStorageBuffers(first uint32, bufs ...*Buffer) error {
	return p.bindBuffers(fragmentGroup, first, bufs, false)
}

// BindVertexUniformBuffers binds uniform buffers to the vertex stage.
func (p *RenderPass) BindVertexUniformBuffers(first uint32, bufs ...*Buffer) error {
	return p.bindBuffers(vertexGroup, first, bufs, true)
}

// BindFragmentUniformBuffers binds uniform buffers to the fragment stage.
func (p *RenderPass) BindFragmentUniformBuffers(first uint32, bufs ...*Buffer) error {
	return p.bindBuffers(fragmentGroup, first, bufs, true)
}

func (p *RenderPass) bindSamplers(group int, first uint32, tex []*Texture) error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.cb.mu.Unlock()
	for _, t := range tex {
		if t == nil {
			return ErrNilResource
		}
		if t.swapchain {
			return fmt.Errorf("%w: swapchain images cannot be sampled", ErrIncompleteBindings)
		}
	}
	for _, t := range tex {
		if err := p.cb.track(&t.lifetime); err != nil {
			return err
		}
	}
	st := &p.stages[group]
	st.samplers = place(st.samplers, first, tex)
	st.dirty = true
	return nil
}

func (p *RenderPass) bindBuffers(group int, first uint32, bufs []*Buffer, uniform bool) error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.cb.mu.Unlock()
	for _, b := range bufs {
		if b == nil {
			return ErrNilResource
		}
		if b.kind != BufferUniform {
			return fmt.Errorf("%w: %v buffer bound as shader storage", ErrIncompleteBindings, b.kind)
		}
	}
	for _, b := range bufs {
		if err := p.cb.track(&b.lifetime); err != nil {
			return err
		}
	}
	st := &p.stages[group]
	if uniform {
		st.uniforms = place(st.uniforms, first, bufs)
	} else {
		st.storage = place(st.storage, first, bufs)
	}
	st.dirty = true
	return nil
}

// place writes items into s starting at first, growing s as needed.
func place[T any](s []*T, first uint32, items []*T) []*T {
	if end := int(first) + len(items); end > len(s) {
		s = append(s, make([]*T, end-len(s))...)
	}
	copy(s[first:], items)
	return s
}

// SetViewport sets the viewport for following draws.
func (p *RenderPass) SetViewport(v Viewport) error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.cb.mu.Unlock()
	p.enc.SetViewport(v.X, v.Y, v.W, v.H, v.MinDepth, v.MaxDepth)
	return nil
}

// SetScissor limits following draws to r, clipped to the target.
func (p *RenderPass) SetScissor(r image.Rectangle) error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.cb.mu.Unlock()
	r = r.Canon().Intersect(image.Rect(0, 0, int(p.target.width), int(p.target.height)))
	p.enc.SetScissorRect(uint32(r.Min.X), uint32(r.Min.Y), uint32(r.Dx()), uint32(r.Dy()))
	return nil
}

// DrawIndexed draws indexCount indices of the bound index buffer as one
// instance. vertexOffset is added to every index.
func (p *RenderPass) DrawIndexed(indexCount, firstIndex uint32, vertexOffset int32) error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.cb.mu.Unlock()
	if err := p.prepareDraw(true); err != nil {
		return err
	}
	p.enc.DrawIndexed(indexCount, 1, firstIndex, vertexOffset, 0)
	p.cb.draws = append(p.cb.draws, DrawCall{
		Indexed:       true,
		IndexCount:    indexCount,
		InstanceCount: 1,
		FirstIndex:    firstIndex,
		VertexOffset:  vertexOffset,
	})
	return nil
}

// DrawPrimitives draws vertexCount vertices without an index buffer.
func (p *RenderPass) DrawPrimitives(vertexCount, firstVertex uint32) error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.cb.mu.Unlock()
	if err := p.prepareDraw(false); err != nil {
		return err
	}
	p.enc.Draw(vertexCount, 1, firstVertex, 0)
	p.cb.draws = append(p.cb.draws, DrawCall{
		VertexCount:   vertexCount,
		InstanceCount: 1,
		FirstVertex:   firstVertex,
	})
	return nil
}

// prepareDraw validates bindings against the pipeline and flushes changed
// bind groups. The caller holds cb.mu.
func (p *RenderPass) prepareDraw(indexed bool) error {
	pl := p.pipeline
	if pl == nil {
		return ErrNoPipeline
	}
	for _, slot := range pl.slots {
		if p.vertexBufs[slot] == nil {
			return fmt.Errorf("%w: vertex buffer slot %d", ErrIncompleteBindings, slot)
		}
	}
	if indexed && p.indexBuffer == nil {
		return fmt.Errorf("%w: no index buffer", ErrIncompleteBindings)
	}
	for g := range p.stages {
		if err := p.stages[g].complete(pl.counts[g]); err != nil {
			return fmt.Errorf("%w: %s stage: %v", ErrIncompleteBindings, groupName(g), err)
		}
	}
	for g := range p.stages {
		if p.stages[g].dirty {
			if err := p.flushGroup(g); err != nil {
				return err
			}
		}
	}
	return nil
}

func groupName(g int) string {
	if g == vertexGroup {
		return "vertex"
	}
	return "fragment"
}

// complete reports the first slot the pipeline declares that is unbound.
func (st *stageBindings) complete(c bindingCounts) error {
	for i := range c.samplers {
		if int(i) >= len(st.samplers) || st.samplers[i] == nil {
			return fmt.Errorf("sampler %d unbound", i)
		}
	}
	for i := range c.storage {
		if int(i) >= len(st.storage) || st.storage[i] == nil {
			return fmt.Errorf("storage buffer %d unbound", i)
		}
	}
	for i := range c.uniforms {
		if int(i) >= len(st.uniforms) || st.uniforms[i] == nil {
			return fmt.Errorf("uniform buffer %d unbound", i)
		}
	}
	return nil
}

// flushGroup creates a bind group for stage g from the current bindings and
// sets it. The group is destroyed after the submission completes.
func (p *RenderPass) flushGroup(g int) error {
	d := p.cb.device
	pl := p.pipeline
	c := pl.counts[g]
	st := &p.stages[g]

	entries := make([]gputypes.BindGroupEntry, 0, 2*c.samplers+c.storage+c.uniforms)
	for i := range c.samplers {
		_, view, sampler := st.samplers[i].natives()
		entries = append(entries,
			gputypes.BindGroupEntry{Binding: 2 * i, Resource: gputypes.TextureViewBinding{TextureView: view.NativeHandle()}},
			gputypes.BindGroupEntry{Binding: 2*i + 1, Resource: gputypes.SamplerBinding{Sampler: sampler.NativeHandle()}})
	}
	for i := range c.storage {
		b := st.storage[i]
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  c.storageBase() + i,
			Resource: gputypes.BufferBinding{Buffer: b.native().NativeHandle(), Size: uint64(b.size)},
		})
	}
	for i := range c.uniforms {
		b := st.uniforms[i]
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  c.uniformBase() + i,
			Resource: gputypes.BufferBinding{Buffer: b.native().NativeHandle(), Size: uint64(b.size)},
		})
	}

	group, err := d.hal.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   fmt.Sprintf("%s %s group", p.cb.label, groupName(g)),
		Layout:  pl.groupLayouts[g],
		Entries: entries,
	})
	if err != nil {
		return creationFailed("bind group", err)
	}
	p.cb.deferTransient(func() { d.hal.DestroyBindGroup(group) })
	p.enc.SetBindGroup(uint32(g), group, nil)
	st.dirty = false
	return nil
}
