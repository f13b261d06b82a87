// Package gpucmd provides GPU command recording and resource lifetime
// management on top of the gogpu/wgpu HAL.
//
// # Overview
//
// gpucmd wraps a retained-mode GPU API in owned Go handles. Devices create
// buffers, textures, shaders and pipelines. Work is recorded into single-use
// command buffers through copy passes and render passes, then submitted to
// the device queue. Every native object is destroyed exactly once, after its
// last reference is dropped and the device has finished every submission
// that used it.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/gpucmd"
//	    _ "github.com/gogpu/wgpu/hal/allbackends"
//	)
//
//	dev, err := gpucmd.Open(window)
//	if err != nil {
//	    return err
//	}
//	defer dev.Close()
//
//	drawn, err := dev.Frame(gputypes.Color{A: 1}, func(p *gpucmd.RenderPass) error {
//	    if err := p.BindPipeline(pipeline); err != nil {
//	        return err
//	    }
//	    // bind buffers and samplers ...
//	    return p.DrawIndexed(6, 0, 0)
//	})
//
// # Lifecycle Rules
//
//   - A CommandBuffer is finalized exactly once by Submit,
//     SubmitAndAcquireFence or Cancel. Further calls return ErrAlreadyUsed.
//   - A pass is ended exactly once. Only one pass is open per command buffer.
//   - Close on a command buffer or pass is the scoped form: it finalizes
//     whatever is still open and logs instead of returning errors.
//   - Resource handles are reference counted. Release drops a reference;
//     destruction waits for in-flight submissions.
//
// # Data Movement
//
// All host and device transfers go through a TransferBuffer with a fixed
// direction. Uploads use TransferUpload buffers, read-backs use
// TransferDownload buffers, and a mismatch is reported as ErrWrongDirection
// before any memory is mapped.
//
// # Backends
//
// Backends register themselves with package backend. The software and noop
// backends are always available; GPU backends are linked in by importing
// github.com/gogpu/wgpu/hal/allbackends.
//
// # Logging
//
// gpucmd is silent by default. Use SetLogger to route diagnostics to a
// log/slog handler.
package gpucmd

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0
)
