// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package imageload decodes image files into tightly packed RGBA8 pixels
// ready for a texture upload.
//
// Supported containers: PNG, JPEG, GIF, BMP, TIFF and WebP. Only 8-bit RGB
// and RGBA pixel layouts are accepted; RGB images are expanded to RGBA with
// an opaque alpha channel. Grayscale, 16-bit and CMYK images are rejected
// with ErrUnsupportedLayout.
package imageload

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // register GIF decoder
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder
)

// Decode errors.
var (
	// ErrUnsupportedLayout is returned when the decoded pixel layout is
	// neither 8-bit RGB nor 8-bit RGBA.
	ErrUnsupportedLayout = errors.New("imageload: unsupported pixel layout")

	// ErrEmptyData is returned when image data is empty.
	ErrEmptyData = errors.New("imageload: empty data")
)

// Layout is the pixel layout of a decoded image.
type Layout int

const (
	// LayoutUnsupported is any layout other than RGB8 and RGBA8.
	LayoutUnsupported Layout = iota
	// LayoutRGB8 is 8-bit RGB without alpha.
	LayoutRGB8
	// LayoutRGBA8 is 8-bit RGB with alpha.
	LayoutRGBA8
)

// String returns the string representation of Layout.
func (l Layout) String() string {
	switch l {
	case LayoutRGB8:
		return "RGB8"
	case LayoutRGBA8:
		return "RGBA8"
	default:
		return "Unsupported"
	}
}

// DetectLayout classifies img by its concrete type.
func DetectLayout(img image.Image) Layout {
	switch img.(type) {
	case *image.RGBA, *image.NRGBA, *image.Paletted:
		return LayoutRGBA8
	case *image.YCbCr:
		return LayoutRGB8
	default:
		return LayoutUnsupported
	}
}

// Pixels is a decoded image in tightly packed, non-premultiplied RGBA8.
type Pixels struct {
	Width  int
	Height int

	// Source is the layout the image was decoded from.
	Source Layout

	// Data holds Width*Height*4 bytes, rows top to bottom.
	Data []byte
}

// Options configures decoding.
type Options struct {
	// MaxSize caps the larger image dimension. Larger images are scaled
	// down preserving aspect ratio. Zero means no limit.
	MaxSize int
}

// Load decodes the image at path.
func Load(path string, opts Options) (*Pixels, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("imageload: open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Decode(f, opts)
}

// LoadBytes decodes an image held in memory.
func LoadBytes(data []byte, opts Options) (*Pixels, error) {
	if len(data) == 0 {
		return nil, ErrEmptyData
	}
	return Decode(bytes.NewReader(data), opts)
}

// Decode decodes an image from r, auto-detecting the container format.
func Decode(r io.Reader, opts Options) (*Pixels, error) {
	img, name, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("imageload: decode: %w", err)
	}
	p, err := FromImage(img, opts)
	if err != nil {
		return nil, fmt.Errorf("imageload: %s: %w", name, err)
	}
	return p, nil
}

// FromImage converts img into RGBA8 pixels.
func FromImage(img image.Image, opts Options) (*Pixels, error) {
	layout := DetectLayout(img)
	if layout == LayoutUnsupported {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedLayout, img)
	}

	b := img.Bounds()
	w, h := fitSize(b.Dx(), b.Dy(), opts.MaxSize)
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))

	switch src := img.(type) {
	case *image.NRGBA:
		if w == b.Dx() && h == b.Dy() {
			for y := range h {
				off := (b.Min.Y+y-src.Rect.Min.Y)*src.Stride + (b.Min.X-src.Rect.Min.X)*4
				copy(dst.Pix[y*dst.Stride:y*dst.Stride+w*4], src.Pix[off:off+w*4])
			}
			break
		}
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	default:
		if w == b.Dx() && h == b.Dy() {
			draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
			break
		}
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	}

	return &Pixels{Width: w, Height: h, Source: layout, Data: dst.Pix}, nil
}

// fitSize scales w x h down so that neither side exceeds max.
func fitSize(w, h, limit int) (int, int) {
	if limit <= 0 || (w <= limit && h <= limit) {
		return w, h
	}
	if w >= h {
		return limit, max(1, h*limit/w)
	}
	return max(1, w*limit/h), limit
}

// Image returns the pixels as an *image.NRGBA sharing p.Data.
func (p *Pixels) Image() *image.NRGBA {
	return &image.NRGBA{
		Pix:    p.Data,
		Stride: p.Width * 4,
		Rect:   image.Rect(0, 0, p.Width, p.Height),
	}
}

// Save encodes p to path. The container is chosen by extension: ".jpg" and
// ".jpeg" write JPEG, anything else writes PNG.
func (p *Pixels) Save(path string) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("imageload: create file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(f, p.Image(), &jpeg.Options{Quality: 95})
	default:
		err = png.Encode(f, p.Image())
	}
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("imageload: encode: %w", err)
	}
	return f.Close()
}
