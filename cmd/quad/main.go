// Command quad draws a textured, vertex-colored quad with gpucmd.
//
// It presents a number of frames to an in-memory window, then renders the
// quad once more into an offscreen target and writes it to an image file:
//
//	quad --backend software --width 320 --height 240 --output quad.png
//	quad --config quad.toml --frames 60
package main

import (
	"os"

	_ "github.com/gogpu/wgpu/hal/allbackends"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
