// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucmd

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpucmd/format"
)

// TransferLocation is a byte offset into a transfer buffer.
type TransferLocation struct {
	Buffer *TransferBuffer
	Offset uint32
}

// BufferRegion is a byte range of a device-resident buffer.
type BufferRegion struct {
	Buffer *Buffer
	Offset uint32
	Size   uint32
}

// TextureRegion is a rectangle of one mip level of a texture.
// A zero W or H extends the region to the texture edge.
type TextureRegion struct {
	Texture  *Texture
	MipLevel uint32
	X, Y     uint32
	W, H     uint32
}

// extent resolves zero sizes against the texture dimensions.
func (r TextureRegion) extent() (w, h uint32) {
	w, h = r.W, r.H
	if w == 0 && r.Texture.width > r.X {
		w = r.Texture.width - r.X
	}
	if h == 0 && r.Texture.height > r.Y {
		h = r.Texture.height - r.Y
	}
	return w, h
}

// CopyPass brackets transfer commands within a command buffer.
//
// Lifecycle:
//  1. Created by CommandBuffer.BeginCopyPass()
//  2. Record uploads and downloads
//  3. Call End() exactly once (Close ends it if still open)
type CopyPass struct {
	cb    *CommandBuffer
	ended bool
}

// BeginCopyPass opens a copy pass. Only one pass may be open at a time.
func (cb *CommandBuffer) BeginCopyPass() (*CopyPass, error) {
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
	p := &CopyPass{cb: cb}
	cb.pass = p
	return p, nil
}

// End ends the pass. A second call returns ErrAlreadyEnded.
func (p *CopyPass) End() error {
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
func (p *CopyPass) Close() {
	if p == nil {
		return
	}
	if err := p.End(); err != nil && err != ErrAlreadyEnded {
		Logger().Warn("gpucmd: implicit copy pass end failed", "err", err)
	}
}

// endLocked implements pass. Copies are recorded directly on the command
// encoder, so ending only closes the scope.
func (p *CopyPass) endLocked() {
	p.ended = true
}

// Ended reports whether End has been called.
func (p *CopyPass) Ended() bool {
	p.cb.mu.Lock()
	defer p.cb.mu.Unlock()
	return p.ended
}

// checkOpen returns ErrAlreadyEnded on an ended pass. The caller holds cb.mu.
func (p *CopyPass) checkOpen() error {
	if p.ended {
		return ErrAlreadyEnded
	}
	return nil
}

// UploadToBuffer copies dst.Size bytes from the transfer buffer into dst.
// With cycle set, a destination still in use is swapped for a fresh
// allocation instead of being overwritten under in-flight work.
func (p *CopyPass) UploadToBuffer(src TransferLocation, dst BufferRegion, cycle bool) error {
	p.cb.mu.Lock()
	defer p.cb.mu.Unlock()
	if err := p.checkOpen(); err != nil {
		return err
	}
	tb, buf := src.Buffer, dst.Buffer
	if tb == nil || buf == nil {
		return ErrNilResource
	}
	if tb.dir != TransferUpload {
		return fmt.Errorf("%w: upload from a %v buffer", ErrWrongDirection, tb.dir)
	}
	if err := checkRange(src.Offset, dst.Size, tb.size, ErrCapacityExceeded); err != nil {
		return err
	}
	if err := checkRange(dst.Offset, dst.Size, buf.size, ErrSizeMismatch); err != nil {
		return err
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()
	buf.mu.Lock()
	defer buf.mu.Unlock()

	if cycle {
		if err := buf.cycleIfBusy(); err != nil {
			return err
		}
	}
	if err := p.track(&tb.lifetime, &buf.lifetime); err != nil {
		return err
	}
	p.cb.encoder.CopyBufferToBuffer(tb.raw, buf.raw, []hal.BufferCopy{{
		SrcOffset: uint64(src.Offset),
		DstOffset: uint64(dst.Offset),
		Size:      uint64(dst.Size),
	}})
	return nil
}

// UploadToTexture copies tightly packed rows from the transfer buffer into
// the texture region.
func (p *CopyPass) UploadToTexture(src TransferLocation, dst TextureRegion, cycle bool) error {
	p.cb.mu.Lock()
	defer p.cb.mu.Unlock()
	if err := p.checkOpen(); err != nil {
		return err
	}
	tb, tex := src.Buffer, dst.Texture
	if tb == nil || tex == nil {
		return ErrNilResource
	}
	if tb.dir != TransferUpload {
		return fmt.Errorf("%w: upload from a %v buffer", ErrWrongDirection, tb.dir)
	}
	copyDesc, err := textureCopy(src, dst)
	if err != nil {
		return err
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()
	tex.mu.Lock()
	defer tex.mu.Unlock()

	if cycle {
		if err := tex.cycleIfBusy(); err != nil {
			return err
		}
	}
	if err := p.track(&tb.lifetime, &tex.lifetime); err != nil {
		return err
	}
	copyDesc.TextureBase.Texture = tex.raw
	p.cb.encoder.CopyBufferToTexture(tb.raw, tex.raw, []hal.BufferTextureCopy{copyDesc})
	return nil
}

// DownloadFromBuffer copies src.Size bytes of the buffer into the transfer
// buffer. The bytes are readable after the submission completes.
func (p *CopyPass) DownloadFromBuffer(src BufferRegion, dst TransferLocation) error {
	p.cb.mu.Lock()
	defer p.cb.mu.Unlock()
	if err := p.checkOpen(); err != nil {
		return err
	}
	buf, tb := src.Buffer, dst.Buffer
	if tb == nil || buf == nil {
		return ErrNilResource
	}
	if tb.dir != TransferDownload {
		return fmt.Errorf("%w: download into a %v buffer", ErrWrongDirection, tb.dir)
	}
	if err := checkRange(src.Offset, src.Size, buf.size, ErrSizeMismatch); err != nil {
		return err
	}
	if err := checkRange(dst.Offset, src.Size, tb.size, ErrCapacityExceeded); err != nil {
		return err
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()
	buf.mu.Lock()
	defer buf.mu.Unlock()

	if err := p.track(&tb.lifetime, &buf.lifetime); err != nil {
		return err
	}
	p.cb.encoder.CopyBufferToBuffer(buf.raw, tb.raw, []hal.BufferCopy{{
		SrcOffset: uint64(src.Offset),
		DstOffset: uint64(dst.Offset),
		Size:      uint64(src.Size),
	}})
	return nil
}

// DownloadFromTexture copies the texture region into the transfer buffer as
// tightly packed rows.
func (p *CopyPass) DownloadFromTexture(src TextureRegion, dst TransferLocation) error {
	p.cb.mu.Lock()
	defer p.cb.mu.Unlock()
	if err := p.checkOpen(); err != nil {
		return err
	}
	tex, tb := src.Texture, dst.Buffer
	if tb == nil || tex == nil {
		return ErrNilResource
	}
	if tb.dir != TransferDownload {
		return fmt.Errorf("%w: download into a %v buffer", ErrWrongDirection, tb.dir)
	}
	copyDesc, err := textureCopy(dst, src)
	if err != nil {
		return err
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()
	tex.mu.Lock()
	defer tex.mu.Unlock()

	if err := p.track(&tb.lifetime, &tex.lifetime); err != nil {
		return err
	}
	copyDesc.TextureBase.Texture = tex.raw
	p.cb.encoder.CopyTextureToBuffer(tex.raw, tb.raw, []hal.BufferTextureCopy{copyDesc})
	return nil
}

// track records every resource in the owning command buffer.
// The caller holds cb.mu.
func (p *CopyPass) track(ls ...*lifetime) error {
	for _, l := range ls {
		if err := p.cb.track(l); err != nil {
			return err
		}
	}
	return nil
}

// textureCopy validates a texture region against the texture and the
// transfer buffer and builds the HAL copy description. Rows are tightly
// packed: BytesPerRow is W times the texel size.
func textureCopy(loc TransferLocation, r TextureRegion) (hal.BufferTextureCopy, error) {
	tex := r.Texture
	bpp, ok := format.BytesPerPixel(tex.format)
	if !ok {
		return hal.BufferTextureCopy{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, tex.format)
	}
	w, h := r.extent()
	if w == 0 || h == 0 || uint64(r.X)+uint64(w) > uint64(tex.width) || uint64(r.Y)+uint64(h) > uint64(tex.height) {
		return hal.BufferTextureCopy{}, fmt.Errorf("%w: region %d,%d %dx%d outside %dx%d texture",
			ErrSizeMismatch, r.X, r.Y, w, h, tex.width, tex.height)
	}
	size := uint64(w) * uint64(h) * uint64(bpp)
	if uint64(loc.Offset)+size > uint64(loc.Buffer.size) {
		return hal.BufferTextureCopy{}, fmt.Errorf("%w: %d bytes at offset %d, transfer buffer holds %d",
			ErrCapacityExceeded, size, loc.Offset, loc.Buffer.size)
	}
	return hal.BufferTextureCopy{
		BufferLayout: hal.ImageDataLayout{
			Offset:       uint64(loc.Offset),
			BytesPerRow:  w * bpp,
			RowsPerImage: h,
		},
		TextureBase: hal.ImageCopyTexture{
			MipLevel: r.MipLevel,
			Origin:   hal.Origin3D{X: r.X, Y: r.Y},
			Aspect:   gputypes.TextureAspectAll,
		},
		Size: hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}, nil
}

// checkRange reports sentinel when offset+size exceeds limit.
func checkRange(offset, size, limit uint32, sentinel error) error {
	if uint64(offset)+uint64(size) > uint64(limit) {
		return fmt.Errorf("%w: %d bytes at offset %d, size is %d", sentinel, size, offset, limit)
	}
	return nil
}
