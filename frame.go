// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucmd

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// Frame renders one frame to the window: it acquires a command buffer and a
// swapchain image, clears the image to clear, calls draw inside the render
// pass and submits, which presents the image.
//
// Frame returns false with a nil error when there is no image to render
// into this frame (zero-size window, surface not ready). An error from draw
// cancels the frame and is returned unchanged.
func (d *Device) Frame(clear gputypes.Color, draw func(*RenderPass) error) (bool, error) {
	cb, err := d.AcquireCommandBuffer()
	if err != nil {
		return false, err
	}
	defer cb.Close()

	target, ok, err := d.AcquireSwapchain(cb)
	if err != nil {
		_ = cb.Cancel()
		return false, err
	}
	if !ok {
		return false, cb.Cancel()
	}

	pass, err := cb.BeginRenderPass(target, clear)
	if err != nil {
		_ = cb.Cancel()
		return false, fmt.Errorf("gpucmd: frame: %w", err)
	}
	if draw != nil {
		if err := draw(pass); err != nil {
			_ = cb.Cancel()
			return false, err
		}
	}
	if err := pass.End(); err != nil {
		_ = cb.Cancel()
		return false, err
	}
	if err := cb.Submit(); err != nil {
		return false, err
	}
	return true, nil
}
