// Package backend maps backend names to wgpu HAL backends.
//
// The gpucmd device is backend-agnostic: it drives a hal.Backend picked
// from this registry by name. The CPU backends are registered on import:
//
//	import _ "github.com/gogpu/gpucmd/backend"
//
// GPU backends (Vulkan, Metal, DX12, GL) are resolved through the wgpu HAL
// registry, so a program that wants them imports the wgpu driver set:
//
//	import _ "github.com/gogpu/wgpu/hal/allbackends"
//
// # Backend Selection
//
// Use Default() to get the best available backend, or Get() to request
// a specific backend by name:
//
//	name, b := backend.Default()
//
//	b, err := backend.Get("software")
//
// # Available Backends
//
//   - "vulkan", "metal", "dx12", "gl": hardware backends, when linked in
//   - "software": CPU rasterizer with real byte storage (always available)
//   - "noop": validates calls and keeps buffer bytes, draws nothing
package backend
