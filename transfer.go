// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucmd

import (
	"fmt"
	"unsafe"

	"github.com/gogpu/gpucmd/format"
)

// WriteBuffer stages data and uploads it to the start of buf on a command
// buffer of its own, which is submitted before returning.
func (tb *TransferBuffer) WriteBuffer(buf *Buffer, data []byte) error {
	if err := tb.checkWrite(buf, len(data)); err != nil {
		return err
	}
	cb, err := tb.device.AcquireCommandBuffer()
	if err != nil {
		return err
	}
	defer cb.Close()
	if err := tb.WriteBufferCmd(cb, buf, data); err != nil {
		_ = cb.Cancel()
		return err
	}
	return cb.Submit()
}

// WriteBufferCmd stages data and records its upload to the start of buf in
// cb. The caller submits cb, which allows batching several uploads.
//
// The staging memory is cycled when it is still in use, so one transfer
// buffer can feed several uploads recorded in the same command buffer. The
// staged bytes cannot be overwritten by a concurrent upload through tb
// before the copy is recorded.
func (tb *TransferBuffer) WriteBufferCmd(cb *CommandBuffer, buf *Buffer, data []byte) error {
	if err := tb.checkWrite(buf, len(data)); err != nil {
		return err
	}
	if cb == nil {
		return ErrNilResource
	}
	if len(data) == 0 {
		return nil
	}
	tb.xfer.Lock()
	defer tb.xfer.Unlock()
	if err := tb.stage(data); err != nil {
		return err
	}

	pass, err := cb.BeginCopyPass()
	if err != nil {
		return err
	}
	defer pass.Close()
	err = pass.UploadToBuffer(
		TransferLocation{Buffer: tb},
		BufferRegion{Buffer: buf, Size: uint32(len(data))},
		true,
	)
	if err != nil {
		return err
	}
	Logger().Debug("gpucmd: buffer upload recorded", "bytes", len(data), "buffer", buf.kind)
	return pass.End()
}

// WriteSlice uploads the memory of s to buf like WriteBuffer. T must be a
// plain value type without pointers.
func WriteSlice[T any](tb *TransferBuffer, buf *Buffer, s []T) error {
	return tb.WriteBuffer(buf, sliceBytes(s))
}

// WriteSliceCmd records the upload of s to buf like WriteBufferCmd.
func WriteSliceCmd[T any](tb *TransferBuffer, cb *CommandBuffer, buf *Buffer, s []T) error {
	return tb.WriteBufferCmd(cb, buf, sliceBytes(s))
}

// sliceBytes views the backing array of s as bytes without copying.
func sliceBytes[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), len(s)*int(unsafe.Sizeof(zero)))
}

// WriteTexture uploads a full image to tex and submits. data must hold
// exactly Width*Height*BytesPerPixel bytes, tightly packed.
func (tb *TransferBuffer) WriteTexture(tex *Texture, data []byte) error {
	if tb == nil || tex == nil {
		return ErrNilResource
	}
	if tb.dir != TransferUpload {
		return fmt.Errorf("%w: write through a %v buffer", ErrWrongDirection, tb.dir)
	}
	size, err := textureBytes(tex)
	if err != nil {
		return err
	}
	if uint64(len(data)) != size {
		return fmt.Errorf("%w: texture %dx%d %v needs %d bytes, got %d",
			ErrSizeMismatch, tex.width, tex.height, tex.format, size, len(data))
	}
	if size > uint64(tb.size) {
		return fmt.Errorf("%w: %d bytes, transfer buffer holds %d", ErrCapacityExceeded, size, tb.size)
	}
	tb.xfer.Lock()
	defer tb.xfer.Unlock()
	if err := tb.stage(data); err != nil {
		return err
	}

	cb, err := tb.device.AcquireCommandBuffer()
	if err != nil {
		return err
	}
	defer cb.Close()
	pass, err := cb.BeginCopyPass()
	if err != nil {
		return err
	}
	if err := pass.UploadToTexture(TransferLocation{Buffer: tb}, TextureRegion{Texture: tex}, true); err != nil {
		pass.Close()
		_ = cb.Cancel()
		return err
	}
	if err := pass.End(); err != nil {
		return err
	}
	return cb.Submit()
}

// ReadBuffer copies the whole of buf back to host memory. It blocks until
// the device has finished the copy.
func (tb *TransferBuffer) ReadBuffer(buf *Buffer) ([]byte, error) {
	if tb == nil || buf == nil {
		return nil, ErrNilResource
	}
	if tb.dir != TransferDownload {
		return nil, fmt.Errorf("%w: read through a %v buffer", ErrWrongDirection, tb.dir)
	}
	if buf.size > tb.size {
		return nil, fmt.Errorf("%w: buffer holds %d bytes, transfer buffer %d",
			ErrCapacityExceeded, buf.size, tb.size)
	}
	return tb.download(buf.size, func(p *CopyPass) error {
		return p.DownloadFromBuffer(BufferRegion{Buffer: buf, Size: buf.size}, TransferLocation{Buffer: tb})
	})
}

// ReadTexture copies the whole of tex back to host memory as tightly packed
// rows. It blocks until the device has finished the copy.
func (tb *TransferBuffer) ReadTexture(tex *Texture) ([]byte, error) {
	if tb == nil || tex == nil {
		return nil, ErrNilResource
	}
	if tb.dir != TransferDownload {
		return nil, fmt.Errorf("%w: read through a %v buffer", ErrWrongDirection, tb.dir)
	}
	size, err := textureBytes(tex)
	if err != nil {
		return nil, err
	}
	if size > uint64(tb.size) {
		return nil, fmt.Errorf("%w: texture needs %d bytes, transfer buffer holds %d",
			ErrCapacityExceeded, size, tb.size)
	}
	return tb.download(uint32(size), func(p *CopyPass) error {
		return p.DownloadFromTexture(TextureRegion{Texture: tex}, TransferLocation{Buffer: tb})
	})
}

// download records one copy into tb, waits for it and returns the first n
// bytes of the staging memory.
func (tb *TransferBuffer) download(n uint32, record func(*CopyPass) error) ([]byte, error) {
	tb.xfer.Lock()
	defer tb.xfer.Unlock()
	cb, err := tb.device.AcquireCommandBuffer()
	if err != nil {
		return nil, err
	}
	defer cb.Close()
	pass, err := cb.BeginCopyPass()
	if err != nil {
		return nil, err
	}
	if err := record(pass); err != nil {
		pass.Close()
		_ = cb.Cancel()
		return nil, err
	}
	if err := pass.End(); err != nil {
		return nil, err
	}
	fence, err := cb.SubmitAndAcquireFence()
	if err != nil {
		return nil, err
	}
	defer fence.Release()
	if err := fence.Wait(); err != nil {
		return nil, err
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()
	mapped, err := tb.mapLocked(false)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, mapped[:n])
	if err := tb.unmapLocked(); err != nil {
		return nil, err
	}
	Logger().Debug("gpucmd: download complete", "bytes", n, "submission", fence.Submission())
	return out, nil
}

// checkWrite validates an upload of n bytes into buf before anything is
// mapped or recorded.
func (tb *TransferBuffer) checkWrite(buf *Buffer, n int) error {
	if tb == nil || buf == nil {
		return ErrNilResource
	}
	if tb.dir != TransferUpload {
		return fmt.Errorf("%w: write through a %v buffer", ErrWrongDirection, tb.dir)
	}
	if uint64(n) > uint64(buf.size) {
		return fmt.Errorf("%w: %d bytes into a %d byte buffer", ErrSizeMismatch, n, buf.size)
	}
	if uint64(n) > uint64(tb.size) {
		return fmt.Errorf("%w: %d bytes, transfer buffer holds %d", ErrCapacityExceeded, n, tb.size)
	}
	return nil
}

// stage copies data to the start of the staging memory, cycling it first
// when it is still in use.
func (tb *TransferBuffer) stage(data []byte) error {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	mapped, err := tb.mapLocked(true)
	if err != nil {
		return err
	}
	copy(mapped, data)
	return tb.unmapLocked()
}

// textureBytes is the tightly packed size of the whole texture.
func textureBytes(tex *Texture) (uint64, error) {
	size, ok := format.ImageSize(tex.format, tex.width, tex.height)
	if !ok {
		return 0, fmt.Errorf("%w: %v", ErrUnsupportedFormat, tex.format)
	}
	return size, nil
}
