// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucmd

import "sync"

// deferredDestroy is a native release held back until the submission that
// last used the object has completed.
type deferredDestroy struct {
	submission uint64
	label      string
	fn         func()
}

// destroyQueue defers native destruction of released objects until the
// device reports their last submission complete.
//
// Usage:
//  1. On Release: push(lastUse, label, fn)
//  2. On Submit and on command buffer acquisition: triage(PollCompleted())
//  3. On Device.Close: flush()
//
// Safe for concurrent use.
type destroyQueue struct {
	mu      sync.Mutex
	pending []deferredDestroy
}

// push schedules fn to run once submission has completed.
func (q *destroyQueue) push(submission uint64, label string, fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, deferredDestroy{submission: submission, label: label, fn: fn})
}

// triage runs every entry whose submission is at or below completed and
// returns how many ran. Callbacks run without the queue lock held.
func (q *destroyQueue) triage(completed uint64) int {
	q.mu.Lock()
	var ready []deferredDestroy
	kept := q.pending[:0]
	for _, e := range q.pending {
		if e.submission <= completed {
			ready = append(ready, e)
		} else {
			kept = append(kept, e)
		}
	}
	clear(q.pending[len(kept):])
	q.pending = kept
	q.mu.Unlock()

	for _, e := range ready {
		e.fn()
	}
	return len(ready)
}

// flush runs every pending entry regardless of completion.
// The caller must have waited for the device to go idle.
func (q *destroyQueue) flush() int {
	q.mu.Lock()
	all := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, e := range all {
		e.fn()
	}
	return len(all)
}

// len returns the number of pending entries.
func (q *destroyQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
