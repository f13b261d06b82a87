package backend

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Backend name constants.
const (
	// Software is the CPU rasterizer backend.
	Software = "software"
	// Noop is the validation-only backend.
	Noop = "noop"
	// Vulkan is the Vulkan backend.
	Vulkan = "vulkan"
	// Metal is the Metal backend.
	Metal = "metal"
	// DX12 is the Direct3D 12 backend.
	DX12 = "dx12"
	// GL is the OpenGL / GLES backend.
	GL = "gl"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not available.
	ErrBackendNotAvailable = errors.New("backend: not available")
)

// Factory creates a HAL backend.
type Factory func() hal.Backend

// registry holds registered backends.
var (
	registryMu sync.RWMutex
	backends   = make(map[string]Factory)
	// Priority order for backend selection (first available wins).
	// Hardware backends first, software is the fallback.
	backendPriority = []string{Vulkan, Metal, DX12, GL, Software}
)

// halVariants maps hardware backend names to the wgpu HAL registry.
var halVariants = map[string]gputypes.Backend{
	Vulkan: gputypes.BackendVulkan,
	Metal:  gputypes.BackendMetal,
	DX12:   gputypes.BackendDX12,
	GL:     gputypes.BackendGL,
}

// Register registers a backend factory with the given name.
// This is typically called from init() functions.
// If a backend with the same name is already registered, it will be replaced.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = factory
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// Available returns the sorted names of all usable backends: registered
// factories plus hardware backends linked into the wgpu HAL registry.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends)+len(halVariants))
	for name := range backends {
		names = append(names, name)
	}
	for name, variant := range halVariants {
		if _, ok := backends[name]; ok {
			continue
		}
		if _, ok := hal.GetBackend(variant); ok {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// IsRegistered checks if a backend with the given name is usable.
func IsRegistered(name string) bool {
	_, err := Get(name)
	return err == nil
}

// Get returns a backend by name.
// Returns ErrBackendNotAvailable if the backend is neither registered here
// nor linked into the wgpu HAL registry.
func Get(name string) (hal.Backend, error) {
	registryMu.RLock()
	factory, ok := backends[name]
	registryMu.RUnlock()

	if ok {
		if b := factory(); b != nil {
			return b, nil
		}
	}
	if variant, known := halVariants[name]; known {
		if b, ok := hal.GetBackend(variant); ok {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrBackendNotAvailable, name)
}

// Default returns the best available backend based on priority.
// Priority order: vulkan > metal > dx12 > gl > software.
// Returns an empty name and nil if no backend is available.
func Default() (string, hal.Backend) {
	for _, name := range backendPriority {
		if b, err := Get(name); err == nil {
			Logger().Debug("backend: selected", "name", name)
			return name, b
		}
	}

	// Fallback: first available in name order.
	for _, name := range Available() {
		if b, err := Get(name); err == nil {
			return name, b
		}
	}

	return "", nil
}

// MustDefault returns the default backend or panics.
func MustDefault() (string, hal.Backend) {
	name, b := Default()
	if b == nil {
		panic("backend: no backend available")
	}
	return name, b
}
