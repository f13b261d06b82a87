// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucmd

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// TransferDirection is the fixed role of a transfer buffer.
type TransferDirection int

const (
	// TransferUpload stages host data for copies into device resources.
	TransferUpload TransferDirection = iota
	// TransferDownload receives copies out of device resources for host reads.
	TransferDownload
)

// String returns the direction name.
func (t TransferDirection) String() string {
	switch t {
	case TransferUpload:
		return "Upload"
	case TransferDownload:
		return "Download"
	default:
		return fmt.Sprintf("TransferDirection(%d)", int(t))
	}
}

func (t TransferDirection) usage() (gputypes.BufferUsage, bool) {
	switch t {
	case TransferUpload:
		return gputypes.BufferUsageMapWrite | gputypes.BufferUsageCopySrc, true
	case TransferDownload:
		return gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst, true
	default:
		return 0, false
	}
}

// TransferBuffer is host-visible staging memory with a fixed direction.
// All host and device data movement goes through one.
//
// Lock order: xfer is taken before any command buffer lock. A
// TransferBuffer's mu is taken before the mutex of the Buffer or Texture on
// the other side of a copy.
type TransferBuffer struct {
	lifetime

	// xfer serializes the convenience transfers (WriteBuffer, WriteTexture,
	// ReadBuffer, ReadTexture). An upload holds it from staging until the
	// copy is recorded, a download from recording until the data is read
	// back.
	xfer sync.Mutex

	mu     sync.Mutex
	raw    hal.Buffer
	dir    TransferDirection
	size   uint32
	mapped bool
}

// CreateTransferBuffer allocates a staging buffer of size bytes.
func (d *Device) CreateTransferBuffer(dir TransferDirection, size uint32) (*TransferBuffer, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	if _, ok := dir.usage(); !ok {
		return nil, creationFailed("transfer buffer", fmt.Errorf("unknown direction %v", dir))
	}
	if size == 0 {
		return nil, creationFailed("transfer buffer", errors.New("size is zero"))
	}

	tb := &TransferBuffer{dir: dir, size: size}
	raw, err := tb.allocate(d)
	if err != nil {
		return nil, err
	}
	tb.raw = raw
	tb.init(d, d.objectLabel("transfer buffer", dir.String()), func() {
		d.hal.DestroyBuffer(raw)
	})
	return tb, nil
}

func (tb *TransferBuffer) allocate(d *Device) (hal.Buffer, error) {
	usage, _ := tb.dir.usage()
	raw, err := d.hal.CreateBuffer(&hal.BufferDescriptor{
		Label: d.objectLabel("transfer buffer", tb.dir.String()),
		Size:  uint64(tb.size),
		Usage: usage,
	})
	if err != nil {
		return nil, creationFailed("transfer buffer", err)
	}
	return raw, nil
}

// Size returns the capacity in bytes.
func (tb *TransferBuffer) Size() uint32 { return tb.size }

// Direction returns the fixed transfer direction.
func (tb *TransferBuffer) Direction() TransferDirection { return tb.dir }

// Retain adds a reference.
func (tb *TransferBuffer) Retain() error { return tb.retain() }

// Release drops a reference.
func (tb *TransferBuffer) Release() {
	if tb != nil {
		tb.release()
	}
}

// Map maps the whole buffer into host memory. For an upload buffer with
// cycle set, an allocation still in use by the GPU or by an unsubmitted
// command buffer is swapped for a fresh one first, so earlier copies keep
// reading the bytes they were recorded with.
//
// The returned slice is valid until Unmap. Download buffers must only be
// mapped after the submission that filled them has completed.
func (tb *TransferBuffer) Map(cycle bool) ([]byte, error) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.mapLocked(cycle)
}

func (tb *TransferBuffer) mapLocked(cycle bool) ([]byte, error) {
	if !tb.alive() {
		return nil, ErrReleased
	}
	if tb.mapped {
		return nil, fmt.Errorf("%w: already mapped", ErrMapFailed)
	}
	if cycle && tb.dir == TransferUpload {
		if err := tb.cycleIfBusy(); err != nil {
			return nil, err
		}
	}

	m, err := tb.device.hal.MapBuffer(tb.raw, 0, uint64(tb.size))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMapFailed, err)
	}
	if m.Ptr == nil {
		return nil, fmt.Errorf("%w: backend returned no memory", ErrMapFailed)
	}
	tb.mapped = true
	return unsafe.Slice((*byte)(m.Ptr), int(tb.size)), nil
}

// Unmap releases the host mapping.
func (tb *TransferBuffer) Unmap() error {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.unmapLocked()
}

func (tb *TransferBuffer) unmapLocked() error {
	if !tb.mapped {
		return nil
	}
	tb.mapped = false
	if err := tb.device.hal.UnmapBuffer(tb.raw); err != nil {
		return fmt.Errorf("%w: unmap: %w", ErrMapFailed, err)
	}
	return nil
}

// cycleIfBusy swaps in a fresh allocation when the current one is in use.
// The caller holds tb.mu.
func (tb *TransferBuffer) cycleIfBusy() error {
	if !tb.alive() {
		return ErrReleased
	}
	d := tb.device
	if !tb.busy(d.completed()) {
		return nil
	}
	raw, err := tb.allocate(d)
	if err != nil {
		return err
	}
	old := tb.raw
	tb.raw = raw
	tb.retire(func() { d.hal.DestroyBuffer(old) })
	tb.rebind(func() { d.hal.DestroyBuffer(raw) })
	Logger().Debug("gpucmd: transfer buffer cycled", "direction", tb.dir, "size", tb.size)
	return nil
}
