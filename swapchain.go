// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucmd

import (
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// AcquireSwapchain returns the window image to render into for cb.
//
// It returns (nil, false, nil) when there is no image this frame: the device
// is headless, the window has zero area, or the surface timed out, is not
// ready or is outdated. Callers skip the frame in that case.
//
// The image is owned by the surface. It is presented when cb is submitted
// and handed back unpresented when cb is cancelled. Acquiring twice for the
// same command buffer returns the same image.
func (d *Device) AcquireSwapchain(cb *CommandBuffer) (*Texture, bool, error) {
	if err := d.checkOpen(); err != nil {
		return nil, false, err
	}
	if cb == nil {
		return nil, false, ErrNilResource
	}
	if cb.device != d {
		return nil, false, errors.New("gpucmd: command buffer belongs to another device")
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err := cb.checkAcquired(); err != nil {
		return nil, false, err
	}
	if cb.swapchain != nil {
		return cb.swapchain, true, nil
	}
	if d.surface == nil || d.window == nil {
		return nil, false, nil
	}

	w, h := physicalSize(d.window)
	if w == 0 || h == 0 {
		return nil, false, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if ok, err := d.configureLocked(w, h); !ok || err != nil {
		return nil, false, err
	}

	acquired, err := d.surface.AcquireTexture(nil)
	switch {
	case err == nil:
	case errors.Is(err, hal.ErrTimeout), errors.Is(err, hal.ErrNotReady):
		Logger().Debug("gpucmd: swapchain image not ready", "err", err)
		return nil, false, nil
	case errors.Is(err, hal.ErrSurfaceOutdated):
		d.needsConfig = true
		Logger().Debug("gpucmd: swapchain outdated")
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("gpucmd: acquire swapchain: %w", err)
	}
	if acquired.Suboptimal {
		d.needsConfig = true
	}

	st := acquired.Texture
	view, err := d.hal.CreateTextureView(st, &hal.TextureViewDescriptor{
		Label:           d.objectLabel("swapchain view", ""),
		Format:          d.surfaceFormat,
		Dimension:       gputypes.TextureViewDimension2D,
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   1,
		ArrayLayerCount: 1,
	})
	if err != nil {
		d.surface.DiscardTexture(st)
		return nil, false, creationFailed("swapchain view", err)
	}

	t := &Texture{
		raw:       st,
		view:      view,
		format:    d.surfaceFormat,
		width:     w,
		height:    h,
		swapchain: true,
	}
	t.init(d, d.objectLabel("swapchain", ""), nil)
	if err := cb.track(&t.lifetime); err != nil {
		d.hal.DestroyTextureView(view)
		d.surface.DiscardTexture(st)
		return nil, false, err
	}
	cb.deferTransient(func() { d.hal.DestroyTextureView(view) })
	cb.swapchain = t
	cb.surfaceTexture = st
	return t, true, nil
}

// configureLocked (re)configures the surface when the size changed or a
// present reported it stale. It reports false when the surface cannot hold
// an image at this size. The caller holds d.mu.
func (d *Device) configureLocked(w, h uint32) (bool, error) {
	if !d.needsConfig && w == d.configuredW && h == d.configuredH {
		return true, nil
	}
	err := d.surface.Configure(d.hal, &hal.SurfaceConfiguration{
		Width:       w,
		Height:      h,
		Format:      d.surfaceFormat,
		Usage:       gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
		PresentMode: d.presentMode,
		AlphaMode:   d.alphaMode,
	})
	if errors.Is(err, hal.ErrZeroArea) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("gpucmd: configure surface %dx%d: %w", w, h, err)
	}
	d.configuredW, d.configuredH = w, h
	d.needsConfig = false
	Logger().Info("gpucmd: surface configured",
		"width", w, "height", h, "format", d.surfaceFormat.String(), "present_mode", d.presentMode)
	return true, nil
}

// physicalSize converts the window's logical size to pixels.
func physicalSize(w Window) (uint32, uint32) {
	lw, lh := w.Size()
	if lw <= 0 || lh <= 0 {
		return 0, 0
	}
	scale := w.ScaleFactor()
	if scale <= 0 {
		scale = 1
	}
	return uint32(math.Round(float64(lw) * scale)), uint32(math.Round(float64(lh) * scale))
}
