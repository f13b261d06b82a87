// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucmd

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// BufferKind is the role of a device-resident buffer.
type BufferKind int

const (
	// BufferVertex holds vertex data.
	BufferVertex BufferKind = iota
	// BufferIndex holds 16 or 32-bit indices.
	BufferIndex
	// BufferUniform holds read-only shader data, bound as a storage or
	// uniform buffer.
	BufferUniform
)

// String returns the kind name.
func (k BufferKind) String() string {
	switch k {
	case BufferVertex:
		return "Vertex"
	case BufferIndex:
		return "Index"
	case BufferUniform:
		return "Uniform"
	default:
		return fmt.Sprintf("BufferKind(%d)", int(k))
	}
}

// usage maps the kind onto HAL usage flags. Every buffer can be a copy
// source and destination so uploads and read-backs work for all kinds.
func (k BufferKind) usage() (gputypes.BufferUsage, bool) {
	base := gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc
	switch k {
	case BufferVertex:
		return base | gputypes.BufferUsageVertex, true
	case BufferIndex:
		return base | gputypes.BufferUsageIndex, true
	case BufferUniform:
		return base | gputypes.BufferUsageStorage | gputypes.BufferUsageUniform, true
	default:
		return 0, false
	}
}

// Buffer is a device-resident vertex, index or uniform buffer.
//
// Buffers are reference counted: Release drops the creator's reference and
// the native buffer is destroyed once no command buffer or in-flight
// submission uses it.
type Buffer struct {
	lifetime

	mu   sync.Mutex
	raw  hal.Buffer
	kind BufferKind
	size uint32
}

// CreateBuffer allocates a device-resident buffer of size bytes.
func (d *Device) CreateBuffer(kind BufferKind, size uint32) (*Buffer, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	usage, ok := kind.usage()
	if !ok {
		return nil, creationFailed("buffer", fmt.Errorf("unknown kind %v", kind))
	}
	if size == 0 {
		return nil, creationFailed("buffer", errors.New("size is zero"))
	}

	b := &Buffer{kind: kind, size: size}
	raw, err := b.allocate(d, usage)
	if err != nil {
		return nil, err
	}
	b.raw = raw
	b.init(d, d.objectLabel("buffer", kind.String()), func() {
		d.hal.DestroyBuffer(raw)
	})
	Logger().Debug("gpucmd: buffer created", "kind", kind, "size", size)
	return b, nil
}

func (b *Buffer) allocate(d *Device, usage gputypes.BufferUsage) (hal.Buffer, error) {
	raw, err := d.hal.CreateBuffer(&hal.BufferDescriptor{
		Label: d.objectLabel("buffer", b.kind.String()),
		Size:  uint64(b.size),
		Usage: usage,
	})
	if err != nil {
		return nil, creationFailed("buffer", err)
	}
	return raw, nil
}

// Size returns the buffer size in bytes.
func (b *Buffer) Size() uint32 { return b.size }

// Kind returns the buffer role.
func (b *Buffer) Kind() BufferKind { return b.kind }

// Retain adds a reference. It returns ErrReleased after the last reference
// has been dropped.
func (b *Buffer) Retain() error { return b.retain() }

// Release drops a reference.
func (b *Buffer) Release() {
	if b != nil {
		b.release()
	}
}

// native returns the current allocation.
func (b *Buffer) native() hal.Buffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.raw
}

// cycleIfBusy swaps in a fresh allocation when the current one is still
// used by the GPU or by an unsubmitted command buffer. The caller holds
// b.mu. Contents of the new allocation are undefined.
func (b *Buffer) cycleIfBusy() error {
	if !b.alive() {
		return ErrReleased
	}
	d := b.device
	if !b.busy(d.completed()) {
		return nil
	}
	usage, _ := b.kind.usage()
	raw, err := b.allocate(d, usage)
	if err != nil {
		return err
	}
	old := b.raw
	b.raw = raw
	b.retire(func() { d.hal.DestroyBuffer(old) })
	b.rebind(func() { d.hal.DestroyBuffer(raw) })

	Logger().Debug("gpucmd: buffer cycled", "kind", b.kind, "size", b.size)
	return nil
}
