// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucmd

import (
	"context"
	"sync/atomic"
	"time"
)

// Fence is signaled when the device has finished one submission.
type Fence struct {
	device   *Device
	index    uint64
	released atomic.Bool
}

// Fence polling backoff bounds.
const (
	fencePollMin = 50 * time.Microsecond
	fencePollMax = 2 * time.Millisecond
)

// Submission returns the submission index the fence waits for.
func (f *Fence) Submission() uint64 { return f.index }

// Signaled reports whether the submission has completed. A closed device
// has completed all work.
func (f *Fence) Signaled() bool {
	return f.device.completed() >= f.index
}

// Wait blocks until the submission has completed.
func (f *Fence) Wait() error {
	return f.WaitContext(context.Background())
}

// WaitContext blocks until the submission has completed or ctx is done.
func (f *Fence) WaitContext(ctx context.Context) error {
	if f == nil {
		return ErrNilResource
	}
	if f.released.Load() {
		return ErrReleased
	}
	delay := fencePollMin
	for !f.Signaled() {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay = min(delay*2, fencePollMax)
	}
	f.device.maintain()
	return nil
}

// Release marks the fence as no longer needed. Waiting on a released fence
// returns ErrReleased.
func (f *Fence) Release() {
	if f != nil {
		f.released.Store(true)
	}
}
