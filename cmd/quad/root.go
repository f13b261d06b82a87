package main

import (
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gogpu/gpucmd"
	"github.com/gogpu/gpucmd/backend"
)

// flagValues holds the command-line overrides. A flag only replaces the
// config value when it was set explicitly.
type flagValues struct {
	config    string
	verbose   bool
	backend   string
	width     int
	height    int
	frames    int
	format    string
	output    string
	texture   string
	blend     bool
	writeMask string
}

func (f *flagValues) apply(changed func(string) bool, c *Config) {
	if changed("backend") {
		c.Backend = f.backend
	}
	if changed("width") {
		c.Width = f.width
	}
	if changed("height") {
		c.Height = f.height
	}
	if changed("frames") {
		c.Frames = f.frames
	}
	if changed("format") {
		c.Format = f.format
	}
	if changed("output") {
		c.Output = f.output
	}
	if changed("texture") {
		c.Texture = f.texture
	}
	if changed("blend") {
		c.Blend = f.blend
	}
	if changed("write-mask") {
		c.WriteMask = f.writeMask
	}
}

func newRootCmd() *cobra.Command {
	var f flagValues
	def := Default()

	cmd := &cobra.Command{
		Use:   "quad",
		Short: "Render a textured quad with gpucmd",
		Long: `Quad opens a gpucmd device, presents a few frames of a textured,
vertex-colored quad to an in-memory window and captures one more frame
from an offscreen render target into an image file.

Settings come from the defaults, then the --config TOML file, then flags.`,
		Version:      "0.1.0",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := Default()
			if f.config != "" {
				var err error
				if cfg, err = LoadConfig(f.config); err != nil {
					return err
				}
			}
			f.apply(cmd.Flags().Changed, &cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			if f.verbose {
				gpucmd.SetLogger(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
					Level: slog.LevelDebug,
				})))
				defer gpucmd.SetLogger(nil)
			}
			return run(cfg, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.config, "config", "c", "", "TOML config file")
	flags.BoolVarP(&f.verbose, "verbose", "v", false, "log device activity to stderr")
	flags.StringVar(&f.backend, "backend", def.Backend, "HAL backend (available: "+strings.Join(backend.Available(), ", ")+")")
	flags.IntVar(&f.width, "width", def.Width, "window and target width")
	flags.IntVar(&f.height, "height", def.Height, "window and target height")
	flags.IntVar(&f.frames, "frames", def.Frames, "frames to present before the capture, 0 for headless")
	flags.StringVar(&f.format, "format", def.Format, "offscreen target format")
	flags.StringVarP(&f.output, "output", "o", def.Output, "output image, empty to skip the capture")
	flags.StringVar(&f.texture, "texture", def.Texture, "image sampled by the quad, empty for a checkerboard")
	flags.BoolVar(&f.blend, "blend", def.Blend, "enable alpha blending")
	flags.StringVar(&f.writeMask, "write-mask", def.WriteMask, "color channels written, e.g. rgba, rgb, none")
	return cmd
}
