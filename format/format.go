// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package format holds the translation tables between gpucmd's vocabulary
// and gputypes: texel sizes for the transfer path, texture access kinds,
// and the named color-channel write mask used by pipeline blend state.
package format

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
)

// bytesPerPixel lists the texel size of every format the transfer path can
// move. Block-compressed formats are absent: their rows are measured in
// blocks, not texels. So are the depth formats without a fixed copy layout
// (Depth24Plus and the combined depth-stencil formats).
var bytesPerPixel = map[gputypes.TextureFormat]uint32{
	gputypes.TextureFormatR8Unorm: 1,
	gputypes.TextureFormatR8Snorm: 1,
	gputypes.TextureFormatR8Uint:  1,
	gputypes.TextureFormatR8Sint:  1,

	gputypes.TextureFormatR16Unorm: 2,
	gputypes.TextureFormatR16Snorm: 2,
	gputypes.TextureFormatR16Uint:  2,
	gputypes.TextureFormatR16Sint:  2,
	gputypes.TextureFormatR16Float: 2,
	gputypes.TextureFormatRG8Unorm: 2,
	gputypes.TextureFormatRG8Snorm: 2,
	gputypes.TextureFormatRG8Uint:  2,
	gputypes.TextureFormatRG8Sint:  2,

	gputypes.TextureFormatR32Float:       4,
	gputypes.TextureFormatR32Uint:        4,
	gputypes.TextureFormatR32Sint:        4,
	gputypes.TextureFormatRG16Unorm:      4,
	gputypes.TextureFormatRG16Snorm:      4,
	gputypes.TextureFormatRG16Uint:       4,
	gputypes.TextureFormatRG16Sint:       4,
	gputypes.TextureFormatRG16Float:      4,
	gputypes.TextureFormatRGBA8Unorm:     4,
	gputypes.TextureFormatRGBA8UnormSrgb: 4,
	gputypes.TextureFormatRGBA8Snorm:     4,
	gputypes.TextureFormatRGBA8Uint:      4,
	gputypes.TextureFormatRGBA8Sint:      4,
	gputypes.TextureFormatBGRA8Unorm:     4,
	gputypes.TextureFormatBGRA8UnormSrgb: 4,
	gputypes.TextureFormatRGB10A2Uint:    4,
	gputypes.TextureFormatRGB10A2Unorm:   4,
	gputypes.TextureFormatRG11B10Ufloat:  4,
	gputypes.TextureFormatRGB9E5Ufloat:   4,

	gputypes.TextureFormatRG32Float:    8,
	gputypes.TextureFormatRG32Uint:     8,
	gputypes.TextureFormatRG32Sint:     8,
	gputypes.TextureFormatRGBA16Unorm:  8,
	gputypes.TextureFormatRGBA16Snorm:  8,
	gputypes.TextureFormatRGBA16Uint:   8,
	gputypes.TextureFormatRGBA16Sint:   8,
	gputypes.TextureFormatRGBA16Float:  8,
	gputypes.TextureFormatRGBA32Float:  16,
	gputypes.TextureFormatRGBA32Uint:   16,
	gputypes.TextureFormatRGBA32Sint:   16,

	gputypes.TextureFormatStencil8:     1,
	gputypes.TextureFormatDepth16Unorm: 2,
	gputypes.TextureFormatDepth32Float: 4,
}

// BytesPerPixel returns the number of bytes one texel of f occupies in a
// tightly packed transfer buffer. The second result is false for formats
// the transfer path cannot size: block-compressed formats (BC, ETC2, EAC,
// ASTC), Depth24Plus, the combined depth-stencil formats and Undefined.
func BytesPerPixel(f gputypes.TextureFormat) (uint32, bool) {
	n, ok := bytesPerPixel[f]
	return n, ok
}

// ImageSize returns the tightly packed byte size of a w x h image of f.
func ImageSize(f gputypes.TextureFormat, w, h uint32) (uint64, bool) {
	bpp, ok := BytesPerPixel(f)
	if !ok {
		return 0, false
	}
	return uint64(w) * uint64(h) * uint64(bpp), true
}

// lastFormat bounds the enumeration used to build the name table.
const lastFormat = gputypes.TextureFormatASTC12x12UnormSrgb

var formatsByName = func() map[string]gputypes.TextureFormat {
	m := make(map[string]gputypes.TextureFormat, int(lastFormat))
	for f := gputypes.TextureFormatR8Unorm; f <= lastFormat; f++ {
		m[strings.ToLower(f.String())] = f
	}
	return m
}()

// ParseTextureFormat resolves a format name such as "RGBA8Unorm" or
// "bgra8unorm-srgb". Matching ignores case, '-' and '_'.
func ParseTextureFormat(name string) (gputypes.TextureFormat, error) {
	key := strings.ToLower(strings.NewReplacer("-", "", "_", "").Replace(strings.TrimSpace(name)))
	if f, ok := formatsByName[key]; ok {
		return f, nil
	}
	return gputypes.TextureFormatUndefined, fmt.Errorf("format: unknown texture format %q", name)
}
