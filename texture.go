// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucmd

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpucmd/format"
	"github.com/gogpu/gpucmd/imageload"
)

// TextureDesc describes a 2D texture.
type TextureDesc struct {
	Label  string
	Format gputypes.TextureFormat
	Access format.TextureAccess
	Width  uint32
	Height uint32
}

// Texture is a device-resident 2D image with a view and a default sampler.
//
// Textures returned by AcquireSwapchain belong to the presentation surface:
// ShouldDestroy reports false, they have no sampler, and Release never
// destroys anything. They are valid only until the acquiring command buffer
// is submitted or cancelled.
type Texture struct {
	lifetime

	mu      sync.Mutex
	raw     hal.Texture
	view    hal.TextureView
	sampler hal.Sampler

	format    gputypes.TextureFormat
	access    format.TextureAccess
	width     uint32
	height    uint32
	swapchain bool
}

// CreateTexture allocates a texture with a linear, repeating sampler and
// uploads pixels when non-nil. pixels must hold exactly
// Width*Height*BytesPerPixel(Format) bytes. On any failure nothing created
// by the call survives.
func (d *Device) CreateTexture(desc TextureDesc, pixels []byte) (*Texture, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	if desc.Width == 0 || desc.Height == 0 {
		return nil, creationFailed("texture", fmt.Errorf("zero extent %dx%d", desc.Width, desc.Height))
	}
	if pixels != nil {
		size, ok := format.ImageSize(desc.Format, desc.Width, desc.Height)
		if !ok {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, desc.Format)
		}
		if uint64(len(pixels)) != size {
			return nil, fmt.Errorf("%w: texture %dx%d %v needs %d bytes, got %d",
				ErrSizeMismatch, desc.Width, desc.Height, desc.Format, size, len(pixels))
		}
	}

	t := &Texture{
		format: desc.Format,
		access: desc.Access,
		width:  desc.Width,
		height: desc.Height,
	}
	label := d.objectLabel("texture", desc.Label)
	if err := t.allocate(d, label); err != nil {
		return nil, err
	}

	sampler, err := d.hal.CreateSampler(&hal.SamplerDescriptor{
		Label:        label,
		AddressModeU: gputypes.AddressModeRepeat,
		AddressModeV: gputypes.AddressModeRepeat,
		AddressModeW: gputypes.AddressModeRepeat,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeLinear,
		LodMaxClamp:  32,
		Anisotropy:   1,
	})
	if err != nil {
		destroyTexture(d, t.raw, t.view, nil)()
		return nil, creationFailed("sampler", err)
	}
	t.sampler = sampler
	t.init(d, label, destroyTexture(d, t.raw, t.view, sampler))

	if pixels != nil {
		if err := t.upload(pixels); err != nil {
			t.Release()
			return nil, err
		}
	}

	Logger().Debug("gpucmd: texture created",
		"label", desc.Label, "format", desc.Format.String(),
		"width", desc.Width, "height", desc.Height, "access", desc.Access)
	return t, nil
}

// upload stages pixels through a temporary upload transfer buffer.
func (t *Texture) upload(pixels []byte) error {
	tb, err := t.device.CreateTransferBuffer(TransferUpload, uint32(len(pixels)))
	if err != nil {
		return err
	}
	defer tb.Release()
	return tb.WriteTexture(t, pixels)
}

// allocate creates the native texture and its view.
func (t *Texture) allocate(d *Device, label string) error {
	raw, err := d.hal.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          hal.Extent3D{Width: t.width, Height: t.height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        t.format,
		Usage:         t.access.Usage(),
	})
	if err != nil {
		return creationFailed("texture", err)
	}
	view, err := d.hal.CreateTextureView(raw, &hal.TextureViewDescriptor{
		Label:           label,
		Format:          t.format,
		Dimension:       gputypes.TextureViewDimension2D,
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   1,
		ArrayLayerCount: 1,
	})
	if err != nil {
		d.hal.DestroyTexture(raw)
		return creationFailed("texture view", err)
	}
	t.raw = raw
	t.view = view
	return nil
}

func destroyTexture(d *Device, raw hal.Texture, view hal.TextureView, sampler hal.Sampler) func() {
	return func() {
		d.hal.DestroyTextureView(view)
		d.hal.DestroyTexture(raw)
		if sampler != nil {
			d.hal.DestroySampler(sampler)
		}
	}
}

// CreateTextureFromFile decodes an image file into an RGBA8Unorm texture.
// Only 8-bit RGB and RGBA images are accepted; RGB is expanded to RGBA.
func (d *Device) CreateTextureFromFile(path string, access format.TextureAccess) (*Texture, error) {
	px, err := imageload.Load(path, imageload.Options{})
	if err != nil {
		return nil, decodeError(err)
	}
	return d.createTextureFromPixels(px, path, access)
}

// CreateTextureFromImage converts img into an RGBA8Unorm texture.
func (d *Device) CreateTextureFromImage(img image.Image, access format.TextureAccess) (*Texture, error) {
	px, err := imageload.FromImage(img, imageload.Options{})
	if err != nil {
		return nil, decodeError(err)
	}
	return d.createTextureFromPixels(px, "", access)
}

func (d *Device) createTextureFromPixels(px *imageload.Pixels, label string, access format.TextureAccess) (*Texture, error) {
	return d.CreateTexture(TextureDesc{
		Label:  label,
		Format: gputypes.TextureFormatRGBA8Unorm,
		Access: access,
		Width:  uint32(px.Width),
		Height: uint32(px.Height),
	}, px.Data)
}

func decodeError(err error) error {
	if errors.Is(err, imageload.ErrUnsupportedLayout) {
		return fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
	}
	return err
}

// Format returns the pixel format.
func (t *Texture) Format() gputypes.TextureFormat { return t.format }

// Access returns the access mode the texture was created for.
func (t *Texture) Access() format.TextureAccess { return t.access }

// Width returns the width in pixels.
func (t *Texture) Width() uint32 { return t.width }

// Height returns the height in pixels.
func (t *Texture) Height() uint32 { return t.height }

// ShouldDestroy reports whether the texture owns its native objects.
// It is false exactly for swapchain images.
func (t *Texture) ShouldDestroy() bool { return !t.swapchain }

// HasSampler reports whether the texture carries a sampler and can be
// bound with BindFragmentSamplers or BindVertexSamplers.
func (t *Texture) HasSampler() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sampler != nil
}

// Retain adds a reference.
func (t *Texture) Retain() error { return t.retain() }

// Release drops a reference. It never destroys a swapchain image.
func (t *Texture) Release() {
	if t != nil {
		t.release()
	}
}

// natives returns the current texture, view and sampler.
func (t *Texture) natives() (hal.Texture, hal.TextureView, hal.Sampler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.raw, t.view, t.sampler
}

// cycleIfBusy swaps in a fresh texture and view when the current ones are
// in use. Swapchain images never cycle. The sampler is kept. The caller
// holds t.mu.
func (t *Texture) cycleIfBusy() error {
	if t.swapchain {
		return nil
	}
	if !t.alive() {
		return ErrReleased
	}
	d := t.device
	if !t.busy(d.completed()) {
		return nil
	}
	oldRaw, oldView := t.raw, t.view
	if err := t.allocate(d, t.label); err != nil {
		return err
	}
	t.retire(destroyTexture(d, oldRaw, oldView, nil))
	t.rebind(destroyTexture(d, t.raw, t.view, t.sampler))
	Logger().Debug("gpucmd: texture cycled", "label", t.label)
	return nil
}
