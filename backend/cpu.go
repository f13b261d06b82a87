package backend

import (
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
	"github.com/gogpu/wgpu/hal/software"
)

// The CPU backends both report gputypes.BackendEmpty, so they are
// registered here by name instead of going through the HAL registry.
func init() {
	Register(Software, func() hal.Backend { return software.API{} })
	Register(Noop, func() hal.Backend { return noop.API{} })
}
