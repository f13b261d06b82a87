// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucmd

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpucmd/backend"
)

// Window is the presentation target a Device renders to.
// A nil Window opens a headless device without a swapchain.
type Window = gpucontext.WindowProvider

// NativeWindow is a Window that exposes platform handles for surface
// creation (HWND, NSView/CAMetalLayer, X11 or Wayland display and window).
// Windows that do not implement it get a surface with zero handles, which
// the software backend renders into memory.
type NativeWindow interface {
	Window
	NativeHandles() (display, window uintptr)
}

// Device is the logical GPU connection. It creates every resource handle,
// acquires command buffers and owns the window surface.
//
// Thread Safety:
// Device methods are safe for concurrent use. Command buffers and passes
// acquired from it are not; each must be driven by one goroutine.
//
// Lifecycle:
// Open once, Close last. Close waits for the device to go idle and destroys
// every object whose release was deferred.
type Device struct {
	mu sync.Mutex

	label       string
	backendName string

	instance hal.Instance
	adapter  hal.Adapter
	info     gputypes.AdapterInfo
	limits   gputypes.Limits
	hal      hal.Device
	queue    hal.Queue

	// Swapchain state, guarded by mu.
	window        Window
	surface       hal.Surface
	surfaceFormat gputypes.TextureFormat
	presentMode   hal.PresentMode
	alphaMode     hal.CompositeAlphaMode
	configuredW   uint32
	configuredH   uint32
	needsConfig   bool

	destroyQueue destroyQueue

	// submitMu serializes queue submission and presentation.
	submitMu sync.Mutex

	closed atomic.Bool
}

// Open creates a device on the selected backend. When window is non-nil a
// surface is created for it and the swapchain format is negotiated.
func Open(window Window, opts ...Option) (*Device, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	name := o.backend
	var api hal.Backend
	if name == "" {
		name, api = backend.Default()
		if api == nil {
			return nil, creationFailed("device", backend.ErrBackendNotAvailable)
		}
	} else {
		var err error
		if api, err = backend.Get(name); err != nil {
			return nil, creationFailed("device", err)
		}
	}

	d := &Device{
		label:       o.label,
		backendName: name,
		window:      window,
		presentMode: o.presentMode,
		alphaMode:   hal.CompositeAlphaModeOpaque,
	}
	if err := d.init(api, o); err != nil {
		d.destroyNative()
		return nil, err
	}

	Logger().Info("gpucmd: device opened",
		"backend", d.backendName,
		"adapter", d.info.Name,
		"type", d.info.DeviceType.String(),
		"surface_format", d.surfaceFormat.String())
	return d, nil
}

func (d *Device) init(api hal.Backend, o options) error {
	instance, err := api.CreateInstance(&hal.InstanceDescriptor{Backends: gputypes.BackendsAll})
	if err != nil {
		return creationFailed("instance", err)
	}
	d.instance = instance

	if d.window != nil {
		var display, handle uintptr
		if nw, ok := d.window.(NativeWindow); ok {
			display, handle = nw.NativeHandles()
		}
		surface, err := instance.CreateSurface(display, handle)
		if err != nil {
			return creationFailed("surface", err)
		}
		d.surface = surface
	}

	adapters := instance.EnumerateAdapters(d.surface)
	if len(adapters) == 0 {
		return creationFailed("adapter", errors.New("no adapters found"))
	}
	exposed := pickAdapter(adapters)
	d.adapter = exposed.Adapter
	d.info = exposed.Info
	d.limits = exposed.Capabilities.Limits

	opened, err := d.adapter.Open(0, d.limits)
	if err != nil {
		return creationFailed("device", err)
	}
	d.hal = opened.Device
	d.queue = opened.Queue

	if d.surface != nil {
		d.surfaceFormat = chooseSurfaceFormat(d.adapter.SurfaceCapabilities(d.surface), o.surfaceFormat)
		d.needsConfig = true
	}
	return nil
}

// pickAdapter prefers discrete GPUs, then integrated ones, then whatever
// the backend exposes first.
func pickAdapter(adapters []hal.ExposedAdapter) hal.ExposedAdapter {
	rank := func(t gputypes.DeviceType) int {
		switch t {
		case gputypes.DeviceTypeDiscreteGPU:
			return 0
		case gputypes.DeviceTypeIntegratedGPU:
			return 1
		case gputypes.DeviceTypeVirtualGPU:
			return 2
		default:
			return 3
		}
	}
	best := adapters[0]
	for _, a := range adapters[1:] {
		if rank(a.Info.DeviceType) < rank(best.Info.DeviceType) {
			best = a
		}
	}
	return best
}

// chooseSurfaceFormat honors the requested format when the surface supports
// it, then prefers BGRA8Unorm, then takes the first reported format.
func chooseSurfaceFormat(caps *hal.SurfaceCapabilities, want gputypes.TextureFormat) gputypes.TextureFormat {
	if caps == nil || len(caps.Formats) == 0 {
		if want != gputypes.TextureFormatUndefined {
			return want
		}
		return gputypes.TextureFormatBGRA8Unorm
	}
	for _, pref := range []gputypes.TextureFormat{want, gputypes.TextureFormatBGRA8Unorm} {
		if pref == gputypes.TextureFormatUndefined {
			continue
		}
		for _, f := range caps.Formats {
			if f == pref {
				return f
			}
		}
	}
	return caps.Formats[0]
}

// Close waits for the device to go idle, runs every deferred destruction
// and releases the surface, device, adapter and instance.
// Closing a closed device is a no-op.
func (d *Device) Close() error {
	if d == nil || !d.closed.CompareAndSwap(false, true) {
		return nil
	}

	var err error
	if werr := d.hal.WaitIdle(); werr != nil {
		err = fmt.Errorf("gpucmd: wait idle: %w", werr)
	}
	if n := d.destroyQueue.flush(); n > 0 {
		Logger().Debug("gpucmd: flushed deferred destroys", "count", n)
	}

	d.mu.Lock()
	if d.surface != nil && d.configuredW != 0 {
		d.surface.Unconfigure(d.hal)
	}
	d.mu.Unlock()

	d.destroyNative()
	Logger().Info("gpucmd: device closed", "backend", d.backendName)
	return err
}

// destroyNative releases whatever init managed to create, in reverse order.
func (d *Device) destroyNative() {
	if d.hal != nil {
		d.hal.Destroy()
		d.hal = nil
	}
	if d.surface != nil {
		d.surface.Destroy()
		d.surface = nil
	}
	if d.adapter != nil {
		d.adapter.Destroy()
		d.adapter = nil
	}
	if d.instance != nil {
		d.instance.Destroy()
		d.instance = nil
	}
}

// checkOpen returns ErrDeviceClosed after Close.
func (d *Device) checkOpen() error {
	if d == nil {
		return ErrNilResource
	}
	if d.closed.Load() {
		return ErrDeviceClosed
	}
	return nil
}

// completed returns the highest submission index the device has finished.
// A closed device has finished everything.
func (d *Device) completed() uint64 {
	if d.closed.Load() {
		return math.MaxUint64
	}
	return d.queue.PollCompleted()
}

// deferDestroy runs fn now if the device has finished submission,
// otherwise queues it. After Close the native objects are already gone
// with the device and fn is dropped.
func (d *Device) deferDestroy(submission uint64, label string, fn func()) {
	if d.closed.Load() {
		return
	}
	if submission <= d.completed() {
		fn()
		return
	}
	d.destroyQueue.push(submission, label, fn)
	Logger().Debug("gpucmd: destroy deferred", "label", label, "submission", submission)
}

// maintain runs every deferred destroy whose submission has completed.
func (d *Device) maintain() {
	if d.destroyQueue.len() == 0 {
		return
	}
	d.destroyQueue.triage(d.completed())
}

// BackendName returns the registry name of the backend the device runs on.
func (d *Device) BackendName() string { return d.backendName }

// AdapterInfo returns the description of the selected adapter.
func (d *Device) AdapterInfo() gputypes.AdapterInfo { return d.info }

// Limits returns the limits the device was opened with.
func (d *Device) Limits() gputypes.Limits { return d.limits }

// HalDevice returns the underlying HAL device for interop.
// The caller must not destroy it.
func (d *Device) HalDevice() hal.Device { return d.hal }

// HalQueue returns the underlying HAL queue for interop.
func (d *Device) HalQueue() hal.Queue { return d.queue }

// SwapchainFormat returns the texture format of swapchain images, or
// TextureFormatUndefined for a headless device.
func (d *Device) SwapchainFormat() gputypes.TextureFormat {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.surfaceFormat
}

// Provider exposes the device to gogpu ecosystem packages that accept a
// gpucontext.DeviceProvider.
func (d *Device) Provider() gpucontext.DeviceProvider {
	return deviceProvider{d: d}
}

// deviceProvider implements gpucontext.DeviceProvider over a Device.
type deviceProvider struct {
	d *Device
}

func (p deviceProvider) Device() gpucontext.Device { return p.d.hal }
func (p deviceProvider) Queue() gpucontext.Queue   { return p.d.queue }

func (p deviceProvider) SurfaceFormat() gputypes.TextureFormat {
	return p.d.SwapchainFormat()
}

func (p deviceProvider) Adapter() gpucontext.Adapter { return p.d.adapter }

func (p deviceProvider) AdapterInfo() gpucontext.AdapterInfo {
	t := gpucontext.AdapterTypeUnknown
	switch p.d.info.DeviceType {
	case gputypes.DeviceTypeDiscreteGPU:
		t = gpucontext.AdapterTypeDiscrete
	case gputypes.DeviceTypeIntegratedGPU:
		t = gpucontext.AdapterTypeIntegrated
	case gputypes.DeviceTypeCPU:
		t = gpucontext.AdapterTypeSoftware
	}
	return gpucontext.AdapterInfo{Name: p.d.info.Name, Type: t}
}

var _ gpucontext.DeviceProvider = deviceProvider{}

// objectLabel joins the device label with an object name for native debug labels.
func (d *Device) objectLabel(kind, name string) string {
	if name == "" {
		return d.label + ": " + kind
	}
	return d.label + ": " + kind + " " + name
}
