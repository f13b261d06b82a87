// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucmd

import (
	"errors"
	"fmt"
)

// Lifecycle errors.
var (
	// ErrAlreadyUsed is returned when a command buffer is submitted or
	// cancelled after it has already reached a terminal state.
	ErrAlreadyUsed = errors.New("gpucmd: command buffer has already been used")

	// ErrAlreadyEnded is returned when a copy or render pass is ended twice,
	// or when a command is recorded into an ended pass.
	ErrAlreadyEnded = errors.New("gpucmd: pass has already ended")

	// ErrPassOpen is returned when a second pass is begun on a command buffer
	// whose previous pass has not ended.
	ErrPassOpen = errors.New("gpucmd: another pass is still open on this command buffer")

	// ErrReleased is returned when a released resource is used.
	ErrReleased = errors.New("gpucmd: resource has been released")

	// ErrDeviceClosed is returned by operations on a closed device.
	ErrDeviceClosed = errors.New("gpucmd: device is closed")

	// ErrNilResource is returned when a required handle argument is nil.
	ErrNilResource = errors.New("gpucmd: resource is nil")
)

// Transfer errors.
var (
	// ErrSizeMismatch is returned when the data length does not fit the
	// destination (larger than a buffer, or not exactly a texture's size).
	ErrSizeMismatch = errors.New("gpucmd: data size does not match destination")

	// ErrCapacityExceeded is returned when a device resource is larger than
	// the transfer buffer used to move it.
	ErrCapacityExceeded = errors.New("gpucmd: resource is larger than transfer buffer")

	// ErrWrongDirection is returned when an upload is attempted through a
	// download transfer buffer or vice versa.
	ErrWrongDirection = errors.New("gpucmd: transfer buffer has the wrong direction")

	// ErrMapFailed is returned when a transfer buffer cannot be mapped.
	ErrMapFailed = errors.New("gpucmd: failed to map transfer buffer")
)

// Backend errors.
var (
	// ErrCreationFailed is returned when the backend rejects a create call.
	ErrCreationFailed = errors.New("gpucmd: resource creation failed")

	// ErrSubmitFailed is returned when the backend rejects a submission.
	ErrSubmitFailed = errors.New("gpucmd: command buffer submission failed")

	// ErrUnsupportedFormat is returned for pixel layouts or texture formats
	// the transfer path cannot size.
	ErrUnsupportedFormat = errors.New("gpucmd: unsupported texture format")

	// ErrIncompleteBindings is returned by a draw when the bound pipeline
	// declares a sampler or storage slot that has nothing bound to it.
	ErrIncompleteBindings = errors.New("gpucmd: pipeline bindings are incomplete")

	// ErrNoPipeline is returned by a draw when no pipeline is bound.
	ErrNoPipeline = errors.New("gpucmd: no pipeline bound")
)

// creationFailed wraps a backend error so that both ErrCreationFailed and
// the backend's own sentinel match with errors.Is.
func creationFailed(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrCreationFailed, what, err)
}

// submitFailed wraps a backend submission error.
func submitFailed(err error) error {
	return fmt.Errorf("%w: %w", ErrSubmitFailed, err)
}
