package backend

import (
	"errors"
	"slices"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

func TestRegistryCPUBackendsAutoRegistered(t *testing.T) {
	for _, name := range []string{Software, Noop} {
		if !IsRegistered(name) {
			t.Errorf("%s backend should be auto-registered", name)
		}
		b, err := Get(name)
		if err != nil {
			t.Fatalf("Get(%q) error = %v", name, err)
		}
		if b.Variant() != gputypes.BackendEmpty {
			t.Errorf("Get(%q).Variant() = %v, want BackendEmpty", name, b.Variant())
		}
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	_, err := Get("nonexistent")
	if !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("Get(nonexistent) error = %v, want ErrBackendNotAvailable", err)
	}
}

func TestRegistryRegisterAndUnregister(t *testing.T) {
	const name = "test-backend"
	Register(name, func() hal.Backend { return noop.API{} })
	t.Cleanup(func() { Unregister(name) })

	if !slices.Contains(Available(), name) {
		t.Errorf("Available() = %v, missing %q", Available(), name)
	}

	Unregister(name)
	if IsRegistered(name) {
		t.Error("backend should not be registered after Unregister")
	}
}

func TestRegistryAvailableSorted(t *testing.T) {
	names := Available()
	if !slices.IsSorted(names) {
		t.Errorf("Available() = %v, want sorted", names)
	}
	if !slices.Contains(names, Software) {
		t.Errorf("Available() = %v, missing software", names)
	}
}

func TestRegistryDefault(t *testing.T) {
	name, b := Default()
	if b == nil {
		t.Fatal("Default() returned nil with software registered")
	}
	if !slices.Contains(backendPriority, name) && !slices.Contains(Available(), name) {
		t.Errorf("Default() name = %q, not an available backend", name)
	}
}

func TestRegistryDefaultFallsBackToSoftware(t *testing.T) {
	// No hardware backend is linked into this test binary.
	name, _ := Default()
	if name != Software {
		t.Errorf("Default() = %q, want %q", name, Software)
	}
}

func TestRegistryNilFactory(t *testing.T) {
	const name = "nil-backend"
	Register(name, func() hal.Backend { return nil })
	t.Cleanup(func() { Unregister(name) })

	if _, err := Get(name); !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("Get(nil factory) error = %v, want ErrBackendNotAvailable", err)
	}
}
