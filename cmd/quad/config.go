package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gogpu/gputypes"
	"github.com/pelletier/go-toml/v2"

	"github.com/gogpu/gpucmd"
	"github.com/gogpu/gpucmd/format"
)

// Color is an RGBA color with channels in [0, 1].
type Color struct {
	R float64 `toml:"r"`
	G float64 `toml:"g"`
	B float64 `toml:"b"`
	A float64 `toml:"a"`
}

func (c Color) gpu() gputypes.Color {
	return gputypes.Color{R: c.R, G: c.G, B: c.B, A: c.A}
}

// Config is the demo configuration. A TOML file sets any subset of the
// fields; the rest keep their defaults.
//
//	backend = "software"
//	width = 320
//	height = 240
//	frames = 3
//	format = "rgba8unorm"
//	output = "quad.png"
//	texture = "gopher.png"
//	blend = true
//	write_mask = "rgb"
//	clear = { r = 0.1, g = 0.1, b = 0.15, a = 1.0 }
type Config struct {
	// Backend names the HAL backend. Empty picks the best available one.
	Backend string `toml:"backend"`

	Width  int `toml:"width"`
	Height int `toml:"height"`

	// Frames is the number of frames presented before the capture. Zero
	// opens a headless device.
	Frames int `toml:"frames"`

	// Format is the offscreen target format: RGBA8Unorm or BGRA8Unorm.
	Format string `toml:"format"`

	// Output is the image written from the offscreen target. Empty skips
	// the capture.
	Output string `toml:"output"`

	// Texture is an image file sampled by the quad. Empty uses a
	// generated checkerboard.
	Texture string `toml:"texture"`

	Blend     bool   `toml:"blend"`
	WriteMask string `toml:"write_mask"`

	Clear Color `toml:"clear"`
}

// Default returns the configuration used when no file or flag overrides it.
func Default() Config {
	return Config{
		Width:     320,
		Height:    240,
		Frames:    1,
		Format:    "rgba8unorm",
		Output:    "quad.png",
		Blend:     true,
		WriteMask: "rgba",
		Clear:     Color{R: 0.1, G: 0.1, B: 0.15, A: 1},
	}
}

// maxExtent bounds the window and target size.
const maxExtent = 16384

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error
	if c.Width <= 0 || c.Height <= 0 || c.Width > maxExtent || c.Height > maxExtent {
		errs = append(errs, fmt.Errorf("size %dx%d out of range 1..%d", c.Width, c.Height, maxExtent))
	}
	if c.Frames < 0 {
		errs = append(errs, fmt.Errorf("frames %d is negative", c.Frames))
	}
	if _, err := c.targetFormat(); err != nil {
		errs = append(errs, err)
	}
	if _, err := format.ParseColorComponents(c.WriteMask); err != nil {
		errs = append(errs, err)
	}
	for _, ch := range []float64{c.Clear.R, c.Clear.G, c.Clear.B, c.Clear.A} {
		if ch < 0 || ch > 1 {
			errs = append(errs, fmt.Errorf("clear color %+v has a channel outside [0, 1]", c.Clear))
			break
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("quad: invalid config: %w", err)
	}
	return nil
}

func (c Config) targetFormat() (gputypes.TextureFormat, error) {
	f, err := format.ParseTextureFormat(c.Format)
	if err != nil {
		return f, err
	}
	switch f {
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatBGRA8Unorm:
		return f, nil
	default:
		return gputypes.TextureFormatUndefined, fmt.Errorf("target format %v is not RGBA8Unorm or BGRA8Unorm", f)
	}
}

// blend returns the pipeline blend state.
func (c Config) blend() gpucmd.BlendState {
	var b gpucmd.BlendState
	if c.Blend {
		b = gpucmd.DefaultAlphaBlend()
	}
	mask, _ := format.ParseColorComponents(c.WriteMask)
	if mask != format.ColorAll {
		b.EnableColorWriteMask = true
		b.WriteMask = mask
	}
	return b
}

// LoadConfig reads the TOML file at path over the defaults. Unknown keys
// are an error.
func LoadConfig(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return cfg, fmt.Errorf("quad: open config: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return cfg, fmt.Errorf("quad: %s: %w\n%s", path, err, strict.String())
		}
		return cfg, fmt.Errorf("quad: %s: %w", path, err)
	}
	return cfg, nil
}
