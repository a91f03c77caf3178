package camcorder

import (
	"sync"

	"github.com/teslashibe/go-camcorder/internal/log"
)

// HardwareCameraSession owns the binding between a physical lens, the
// preview surface, and the capture pipeline. It is responsible for opening,
// reconfiguring on a lens switch, and releasing hardware resources.
type HardwareCameraSession struct {
	platform Platform
	exposure *ExposureMonitor

	mu      sync.Mutex
	device  Device
	lens    Lens
	quality Quality
}

// NewHardwareCameraSession creates an unbound session over the platform.
// Telemetry from every bound device feeds the exposure monitor.
func NewHardwareCameraSession(platform Platform, exposure *ExposureMonitor) *HardwareCameraSession {
	return &HardwareCameraSession{
		platform: platform,
		exposure: exposure,
	}
}

// Open binds preview and capture to the requested lens at the fixed 16:9
// sensor framing. If the requested lens is physically absent but the other
// is present, the session silently falls back to the available lens; that
// substitution is policy, not an error. Fails with ErrHardwareUnavailable
// when neither camera exists.
func (s *HardwareCameraSession) Open(lens Lens, quality Quality) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.platform == nil {
		return ErrHardwareUnavailable
	}

	bound := lens
	if !s.platform.HasLens(bound) {
		if !s.platform.HasLens(bound.Other()) {
			return ErrHardwareUnavailable
		}
		log.Info("requested lens unavailable, falling back",
			"requested", lens.String(), "bound", bound.Other().String())
		bound = bound.Other()
	}

	device, err := s.platform.OpenDevice(bound, quality)
	if err != nil {
		return opErr("open device", err)
	}

	device.OnTelemetry(s.exposure.Update)
	s.device = device
	s.lens = bound
	s.quality = quality
	return nil
}

// SwitchLens unbinds the current device and rebinds to the new lens,
// reusing the session's preview identity where the platform allows so the
// preview does not blank. Flash and screen-flash overrides must be cleared
// by the caller before switching.
func (s *HardwareCameraSession) SwitchLens(lens Lens) error {
	s.mu.Lock()
	current := s.device
	quality := s.quality
	s.mu.Unlock()

	if current == nil {
		return ErrNotInitialized
	}
	if current.Lens() == lens {
		return nil
	}

	// Stale telemetry from the old sensor would skew the darkness check.
	s.exposure.Reset()

	if err := current.Close(); err != nil {
		log.Warn("closing device for lens switch failed", "error", err)
	}

	s.mu.Lock()
	s.device = nil
	s.mu.Unlock()

	return s.Open(lens, quality)
}

// Device returns the bound device, or nil when the session is closed.
func (s *HardwareCameraSession) Device() Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device
}

// Lens returns the currently bound lens.
func (s *HardwareCameraSession) Lens() Lens {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lens
}

// HasFlash reports whether torch-equivalent behavior is available on the
// bound lens: a physical flash unit, or the screen-flash feature on the
// front lens.
func (s *HardwareCameraSession) HasFlash(screenFlashEnabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device == nil {
		return false
	}
	if s.device.HasTorch() {
		return true
	}
	return s.lens == LensFront && screenFlashEnabled
}

// Release is idempotent: it unbinds the device and drops the preview
// surface. Brightness restoration is handled by the controller, which
// restores unconditionally rather than trusting session state.
func (s *HardwareCameraSession) Release() {
	s.mu.Lock()
	device := s.device
	s.device = nil
	s.mu.Unlock()

	if device == nil {
		return
	}
	if err := device.Close(); err != nil {
		log.Warn("device close failed", "error", err)
	}
}
