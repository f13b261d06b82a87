// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package format

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// TextureAccess names how a texture is used by the graphics pipeline.
type TextureAccess int

const (
	// AccessSampler is a texture sampled by shaders.
	AccessSampler TextureAccess = iota
	// AccessRenderTarget is a color attachment.
	AccessRenderTarget
	// AccessDepthStencil is a depth/stencil attachment.
	AccessDepthStencil
	// AccessGraphicsStorage is a storage texture read by graphics shaders.
	AccessGraphicsStorage
)

// String returns the string representation of TextureAccess.
func (a TextureAccess) String() string {
	switch a {
	case AccessSampler:
		return "Sampler"
	case AccessRenderTarget:
		return "RenderTarget"
	case AccessDepthStencil:
		return "DepthStencil"
	case AccessGraphicsStorage:
		return "GraphicsStorage"
	default:
		return fmt.Sprintf("Unknown(%d)", int(a))
	}
}

// Usage returns the texture usage flags for a. Every access kind also
// carries copy source and destination so the transfer path can reach it.
func (a TextureAccess) Usage() gputypes.TextureUsage {
	const transfer = gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst
	switch a {
	case AccessRenderTarget:
		return gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding | transfer
	case AccessDepthStencil:
		return gputypes.TextureUsageRenderAttachment | transfer
	case AccessGraphicsStorage:
		return gputypes.TextureUsageStorageBinding | transfer
	default:
		return gputypes.TextureUsageTextureBinding | transfer
	}
}
