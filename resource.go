// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucmd

import "sync"

// lifetime tracks the reference count and GPU usage of a device resource.
//
// Every shared handle (Buffer, TransferBuffer, Texture, Shader, Pipeline)
// embeds a lifetime. The native objects are destroyed exactly once, after
// the last reference is dropped AND the last submission that used them has
// completed on the device.
//
// A command buffer that records a resource holds an extra reference and an
// open use until it is submitted or cancelled. Allocations replaced by
// cycling are retired: they are destroyed with the same completion rules as
// a released resource, without affecting the handle itself.
type lifetime struct {
	mu       sync.Mutex
	device   *Device
	label    string
	refs     int32
	openUses int32
	lastUse  uint64
	retired  []retiredAlloc
	destroy  func()
}

// retiredAlloc is an allocation replaced by cycling, with the last
// submission known to have used it.
type retiredAlloc struct {
	lastUse uint64
	fn      func()
}

func (l *lifetime) init(d *Device, label string, destroy func()) {
	l.device = d
	l.label = label
	l.refs = 1
	l.destroy = destroy
}

// retain adds a reference. It fails once the count has reached zero.
func (l *lifetime) retain() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.refs <= 0 {
		return ErrReleased
	}
	l.refs++
	return nil
}

// release drops a reference. The native destroy runs (or is queued) when
// the count reaches zero. Extra calls are ignored.
func (l *lifetime) release() {
	l.mu.Lock()
	if l.refs <= 0 {
		l.mu.Unlock()
		return
	}
	l.refs--
	if l.refs > 0 {
		l.mu.Unlock()
		return
	}
	fn := l.destroy
	l.destroy = nil
	last := l.lastUse
	l.mu.Unlock()

	if fn != nil {
		l.device.deferDestroy(last, l.label, fn)
	}
}

// rebind points the final destroy at a replacement allocation. It has no
// effect once the resource has been released.
func (l *lifetime) rebind(destroy func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.destroy != nil {
		l.destroy = destroy
	}
}

// alive reports whether the resource still has references.
func (l *lifetime) alive() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.refs > 0
}

// busy reports whether the current allocation is referenced by an unsubmitted
// command buffer or by a submission the device has not finished.
func (l *lifetime) busy(completed uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.openUses > 0 || l.lastUse > completed
}

// beginUse records one open command buffer use and takes a reference.
func (l *lifetime) beginUse() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.refs <= 0 {
		return ErrReleased
	}
	l.refs++
	l.openUses++
	return nil
}

// endUse closes a use opened by beginUse. A submitted use advances lastUse to
// the submission index. Retired allocations are handed to the destroy queue
// once no command buffer records them anymore. The reference taken by
// beginUse is dropped last.
func (l *lifetime) endUse(submission uint64, submitted bool) {
	l.mu.Lock()
	l.openUses--
	if submitted && submission > l.lastUse {
		l.lastUse = submission
	}
	var retired []retiredAlloc
	if l.openUses == 0 {
		retired = l.retired
		l.retired = nil
	}
	last := l.lastUse
	l.mu.Unlock()

	for _, r := range retired {
		l.device.deferDestroy(max(r.lastUse, last), l.label+" (cycled)", r.fn)
	}
	l.release()
}

// retire schedules destruction of an allocation that cycling replaced.
// The replacement starts with no submission history.
func (l *lifetime) retire(fn func()) {
	l.mu.Lock()
	last := l.lastUse
	l.lastUse = 0
	if l.openUses > 0 {
		l.retired = append(l.retired, retiredAlloc{lastUse: last, fn: fn})
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()
	l.device.deferDestroy(last, l.label+" (cycled)", fn)
}
