package gpucmd

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Option configures a Device during Open.
// Use functional options to customize device selection.
//
// Example:
//
//	// Best available backend, window surface
//	d, err := gpucmd.Open(win)
//
//	// Force the CPU backend with an sRGB swapchain
//	d, err := gpucmd.Open(win,
//		gpucmd.WithBackend("software"),
//		gpucmd.WithSurfaceFormat(gputypes.TextureFormatBGRA8UnormSrgb))
type Option func(*options)

// options holds optional configuration for Open.
type options struct {
	backend       string
	surfaceFormat gputypes.TextureFormat
	presentMode   hal.PresentMode
	label         string
}

// defaultOptions returns the default device options.
func defaultOptions() options {
	return options{
		backend:       "", // Resolved through backend.Default
		surfaceFormat: gputypes.TextureFormatUndefined,
		presentMode:   hal.PresentModeFifo,
		label:         "gpucmd",
	}
}

// WithBackend selects a backend by registry name ("vulkan", "metal",
// "dx12", "gl", "software", "noop"). Hardware backends must be linked in,
// usually with a blank import of github.com/gogpu/wgpu/hal/allbackends.
func WithBackend(name string) Option {
	return func(o *options) {
		o.backend = name
	}
}

// WithSurfaceFormat requests a swapchain format. It is honored only when the
// surface reports support for it; otherwise BGRA8Unorm is preferred, then
// the first supported format.
func WithSurfaceFormat(f gputypes.TextureFormat) Option {
	return func(o *options) {
		o.surfaceFormat = f
	}
}

// WithPresentMode sets the swapchain present mode. Fifo (vsync) is the
// default and is the only mode every surface must support.
func WithPresentMode(m hal.PresentMode) Option {
	return func(o *options) {
		o.presentMode = m
	}
}

// WithLabel sets the debug label prefix used for native objects.
func WithLabel(label string) Option {
	return func(o *options) {
		o.label = label
	}
}
