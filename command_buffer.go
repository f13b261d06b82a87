// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucmd

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/wgpu/hal"
)

// CommandBufferState represents the state of a command buffer.
type CommandBufferState int

const (
	// CommandBufferAcquired means the buffer is recording.
	CommandBufferAcquired CommandBufferState = iota

	// CommandBufferSubmitted means the buffer was handed to the queue.
	CommandBufferSubmitted

	// CommandBufferCancelled means the recorded work was discarded.
	CommandBufferCancelled

	// CommandBufferFailed means the backend rejected the submission.
	CommandBufferFailed
)

// String returns the string representation of CommandBufferState.
func (s CommandBufferState) String() string {
	switch s {
	case CommandBufferAcquired:
		return "Acquired"
	case CommandBufferSubmitted:
		return "Submitted"
	case CommandBufferCancelled:
		return "Cancelled"
	case CommandBufferFailed:
		return "Failed"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// DrawCall is one draw recorded by a render pass.
type DrawCall struct {
	// Indexed is true for DrawIndexed, false for DrawPrimitives.
	Indexed bool

	IndexCount    uint32
	VertexCount   uint32
	InstanceCount uint32
	FirstIndex    uint32
	FirstVertex   uint32
	VertexOffset  int32
}

// pass is the open copy or render pass of a command buffer.
type pass interface {
	// endLocked ends the pass. The caller holds the command buffer mutex.
	endLocked()
}

// CommandBuffer is a single-use recording and submission unit.
//
// Thread Safety:
// CommandBuffer is NOT safe for concurrent use. Record, submit and cancel
// from a single goroutine.
//
// Lifecycle:
//  1. Created by Device.AcquireCommandBuffer()
//  2. Open and end copy or render passes
//  3. Finalize exactly once with Submit, SubmitAndAcquireFence or Cancel
//
// Close finalizes a buffer that is still Acquired: it submits when a
// swapchain image was acquired (the surface must get its image back) and
// cancels otherwise. Use it with defer right after acquiring.
//
// State Machine:
//
//	Acquired -> Submit() -> Submitted
//	Acquired -> Cancel() -> Cancelled
//	Acquired -> Submit() with backend error -> Failed
type CommandBuffer struct {
	// mu protects all fields below, including the state of open passes.
	mu sync.Mutex

	device  *Device
	encoder hal.CommandEncoder
	label   string
	state   CommandBufferState

	// pass is the currently open pass, if any.
	pass pass

	// tracked holds every resource recorded into this buffer, once each.
	tracked    []*lifetime
	trackedSet map[*lifetime]struct{}

	// swapchain is the image acquired for this buffer, if any.
	swapchain      *Texture
	surfaceTexture hal.SurfaceTexture

	// transient objects are destroyed once the submission completes.
	transient []func()

	draws []DrawCall
}

// AcquireCommandBuffer begins recording a new command buffer.
func (d *Device) AcquireCommandBuffer() (*CommandBuffer, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	d.maintain()

	label := d.objectLabel("command buffer", "")
	enc, err := d.hal.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, creationFailed("command encoder", err)
	}
	if err := enc.BeginEncoding(label); err != nil {
		enc.Destroy()
		return nil, creationFailed("command encoder", err)
	}
	return &CommandBuffer{
		device:     d,
		encoder:    enc,
		label:      label,
		trackedSet: make(map[*lifetime]struct{}),
	}, nil
}

// State returns the current state.
func (cb *CommandBuffer) State() CommandBufferState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// HasSwapchain reports whether a swapchain image was acquired for this
// buffer.
func (cb *CommandBuffer) HasSwapchain() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.swapchain != nil
}

// Label returns the debug label.
func (cb *CommandBuffer) Label() string { return cb.label }

// DrawCalls returns a copy of every draw recorded by render passes on this
// buffer, in recording order.
func (cb *CommandBuffer) DrawCalls() []DrawCall {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	out := make([]DrawCall, len(cb.draws))
	copy(out, cb.draws)
	return out
}

// Submit ends recording and hands the buffer to the device queue. When a
// swapchain image was acquired it is presented right after the submission.
func (cb *CommandBuffer) Submit() error {
	_, err := cb.submit()
	return err
}

// SubmitAndAcquireFence submits like Submit and returns a Fence that is
// signaled when the device has finished this submission.
func (cb *CommandBuffer) SubmitAndAcquireFence() (*Fence, error) {
	idx, err := cb.submit()
	if err != nil {
		return nil, err
	}
	return &Fence{device: cb.device, index: idx}, nil
}

func (cb *CommandBuffer) submit() (uint64, error) {
	if cb == nil {
		return 0, ErrNilResource
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err := cb.checkAcquired(); err != nil {
		return 0, err
	}
	d := cb.device
	if d.closed.Load() {
		cb.fail(true)
		return 0, submitFailed(ErrDeviceClosed)
	}
	cb.endOpenPass("submit")

	raw, err := cb.encoder.EndEncoding()
	if err != nil {
		cb.fail(false)
		return 0, submitFailed(err)
	}
	idx, err := d.submit(raw, cb.surfaceTexture)
	if err != nil {
		d.hal.FreeCommandBuffer(raw)
		cb.fail(false)
		return 0, submitFailed(err)
	}

	cb.state = CommandBufferSubmitted
	enc := cb.encoder
	cb.transient = append(cb.transient, func() {
		d.hal.FreeCommandBuffer(raw)
		enc.Destroy()
	})
	cb.finish(idx, true)
	d.maintain()

	Logger().Debug("gpucmd: command buffer submitted",
		"submission", idx, "draws", len(cb.draws), "swapchain", cb.swapchain != nil)
	return idx, nil
}

// Cancel discards the recorded work without executing it. An acquired
// swapchain image is handed back to the surface unpresented.
func (cb *CommandBuffer) Cancel() error {
	if cb == nil {
		return ErrNilResource
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err := cb.checkAcquired(); err != nil {
		return err
	}
	cb.endOpenPass("cancel")
	cb.discard(true)
	cb.state = CommandBufferCancelled
	cb.finish(0, false)
	return nil
}

// Close finalizes the buffer if it is still Acquired: submit when it holds
// a swapchain image, cancel otherwise. Errors are logged, never returned.
// Close on a finalized buffer does nothing.
func (cb *CommandBuffer) Close() {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	state, hasSwapchain := cb.state, cb.swapchain != nil
	cb.mu.Unlock()
	if state != CommandBufferAcquired {
		return
	}

	action, err := "cancel", error(nil)
	if hasSwapchain {
		action = "submit"
		err = cb.Submit()
	} else {
		err = cb.Cancel()
	}
	if err != nil {
		Logger().Warn("gpucmd: implicit command buffer finalize failed",
			"label", cb.label, "action", action, "err", err)
	}
}

// checkAcquired returns ErrAlreadyUsed unless the buffer is recording.
// The caller must hold cb.mu.
func (cb *CommandBuffer) checkAcquired() error {
	if cb.state != CommandBufferAcquired {
		return fmt.Errorf("%w (state %v)", ErrAlreadyUsed, cb.state)
	}
	return nil
}

// endOpenPass ends a pass the caller forgot. The caller must hold cb.mu.
func (cb *CommandBuffer) endOpenPass(reason string) {
	if cb.pass == nil {
		return
	}
	if cb.device.closed.Load() {
		cb.pass = nil
		return
	}
	Logger().Warn("gpucmd: pass still open, ending it", "label", cb.label, "on", reason)
	cb.pass.endLocked()
	cb.pass = nil
}

// discard drops recorded work (unless encoding already ended) and the
// swapchain image. Nothing native is touched once the device is closed.
// The caller must hold cb.mu.
func (cb *CommandBuffer) discard(encoding bool) {
	d := cb.device
	if d.closed.Load() {
		return
	}
	if encoding {
		cb.encoder.DiscardEncoding()
	}
	if cb.surfaceTexture != nil {
		d.surface.DiscardTexture(cb.surfaceTexture)
	}
	cb.transient = append(cb.transient, cb.encoder.Destroy)
}

// fail flips the buffer to Failed after a backend error.
// The caller must hold cb.mu.
func (cb *CommandBuffer) fail(encoding bool) {
	cb.endOpenPass("failure")
	cb.discard(encoding)
	cb.state = CommandBufferFailed
	cb.finish(0, false)
}

// finish closes every tracked use and schedules transient objects for
// destruction once submission completes (immediately when not submitted).
// The caller must hold cb.mu.
func (cb *CommandBuffer) finish(submission uint64, submitted bool) {
	d := cb.device
	for _, l := range cb.tracked {
		l.endUse(submission, submitted)
	}
	cb.tracked = nil
	clear(cb.trackedSet)

	for _, fn := range cb.transient {
		d.deferDestroy(submission, cb.label, fn)
	}
	cb.transient = nil

	if cb.swapchain != nil {
		// The image goes back to the surface; later use reports ErrReleased.
		cb.swapchain.release()
	}
	cb.surfaceTexture = nil
}

// track records that this buffer uses the resource, taking a reference
// until the buffer is finalized. The caller must hold cb.mu.
func (cb *CommandBuffer) track(l *lifetime) error {
	if _, ok := cb.trackedSet[l]; ok {
		return nil
	}
	if err := l.beginUse(); err != nil {
		return err
	}
	cb.trackedSet[l] = struct{}{}
	cb.tracked = append(cb.tracked, l)
	return nil
}

// deferTransient schedules fn to run once this buffer's submission has completed.
// The caller must hold cb.mu.
func (cb *CommandBuffer) deferTransient(fn func()) {
	cb.transient = append(cb.transient, fn)
}

// submit hands one command buffer to the queue and presents the surface
// texture when one is given. Presentation errors do not fail the
// submission: an outdated or lost surface is reconfigured on the next
// acquire.
func (d *Device) submit(raw hal.CommandBuffer, st hal.SurfaceTexture) (uint64, error) {
	d.submitMu.Lock()
	defer d.submitMu.Unlock()

	idx, err := d.queue.Submit([]hal.CommandBuffer{raw})
	if err != nil {
		return 0, err
	}
	if st != nil {
		if perr := d.queue.Present(d.surface, st, nil); perr != nil {
			d.presentFailed(perr)
		}
	}
	return idx, nil
}

func (d *Device) presentFailed(err error) {
	Logger().Warn("gpucmd: present failed", "err", err)
	if errors.Is(err, hal.ErrSurfaceOutdated) || errors.Is(err, hal.ErrSurfaceLost) {
		d.mu.Lock()
		d.needsConfig = true
		d.mu.Unlock()
	}
}
