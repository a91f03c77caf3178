package camcorder

import (
	"errors"
	"sync"
	"time"

	"github.com/teslashibe/go-camcorder/internal/log"
)

// ReleaseGrace is how long the serializing executor keeps draining after
// release, so in-flight hardware callbacks land instead of being rejected.
const ReleaseGrace = 500 * time.Millisecond

// Controller is the façade composing the camera session, exposure monitor,
// flash policy engine, and recording session. It owns overall lifecycle
// sequencing and exposes the public operation surface.
type Controller struct {
	platform   Platform
	brightness BrightnessControl

	disp     *dispatcher
	exposure *ExposureMonitor
	flash    *FlashController
	session  *HardwareCameraSession
	rec      *RecordingSession

	mu          sync.RWMutex
	initialized bool
	screenFlash bool
	zoom        float64
	released    bool

	// OnStateChange, when set, receives a fresh snapshot after every
	// state-affecting operation. Set before Initialize.
	OnStateChange func(CameraState)
}

// New creates an uninitialized controller over the injected platform
// capability, display-brightness surface, and permission checker.
func New(platform Platform, brightness BrightnessControl, perms PermissionChecker) *Controller {
	disp := newDispatcher()
	exposure := NewExposureMonitor()
	flash := NewFlashController(brightness, exposure)
	return &Controller{
		platform:   platform,
		brightness: brightness,
		disp:       disp,
		exposure:   exposure,
		flash:      flash,
		session:    NewHardwareCameraSession(platform, exposure),
		rec:        NewRecordingSession(flash, perms, disp),
	}
}

// Initialize detects camera availability, opens the requested lens (falling
// back to the other lens if the requested one is absent), and arms the
// flash policy engine. The returned snapshot reports the actually-bound
// lens.
func (c *Controller) Initialize(lens Lens, quality Quality, enableScreenFlash bool) (CameraState, error) {
	if err := c.session.Open(lens, quality); err != nil {
		return CameraState{}, err
	}

	device := c.session.Device()
	c.flash.Bind(device, enableScreenFlash)

	minZoom, _ := device.ZoomRange()

	c.mu.Lock()
	c.initialized = true
	c.screenFlash = enableScreenFlash
	c.zoom = clampZoom(1.0, device)
	if c.zoom < minZoom {
		c.zoom = minZoom
	}
	c.mu.Unlock()

	log.Info("camera initialized",
		"lens", c.session.Lens().String(), "quality", quality.String())
	return c.notify(), nil
}

// SwitchCamera unbinds and rebinds to the other lens while reusing the
// preview where the platform allows. Any active flash or screen-flash
// override is disabled first; a stale override on the wrong lens is a
// correctness bug.
func (c *Controller) SwitchCamera(lens Lens) (CameraState, error) {
	if !c.isInitialized() {
		return CameraState{}, ErrNotInitialized
	}
	if c.rec.Recording() {
		return CameraState{}, ErrAlreadyRecording
	}

	c.flash.ClearOverride()
	if dev := c.session.Device(); dev != nil && dev.HasTorch() {
		if err := dev.SetTorch(false); err != nil {
			log.Warn("disabling torch before lens switch failed", "error", err)
		}
	}
	c.flash.Unbind()

	if err := c.session.SwitchLens(lens); err != nil {
		return CameraState{}, err
	}

	c.mu.RLock()
	screenFlash := c.screenFlash
	c.mu.RUnlock()
	device := c.session.Device()
	c.flash.Bind(device, screenFlash)

	c.mu.Lock()
	c.zoom = clampZoom(c.zoom, device)
	c.mu.Unlock()

	return c.notify(), nil
}

// SetFlashMode applies a flash mode. Returns false on an unbound
// controller instead of failing the caller's flow.
func (c *Controller) SetFlashMode(mode FlashMode) bool {
	ok := c.flash.SetMode(mode)
	if ok {
		c.notify()
	}
	return ok
}

// SetFocusPoint requests focus metering at normalized coordinates.
func (c *Controller) SetFocusPoint(x, y float64) bool {
	device := c.session.Device()
	if device == nil || !device.SupportsFocusPoint() || !normalized(x, y) {
		return false
	}
	if err := device.SetFocusPoint(x, y); err != nil {
		log.Warn("focus point failed", "error", err)
		return false
	}
	return true
}

// SetExposurePoint requests exposure metering at normalized coordinates.
func (c *Controller) SetExposurePoint(x, y float64) bool {
	device := c.session.Device()
	if device == nil || !device.SupportsExposurePoint() || !normalized(x, y) {
		return false
	}
	if err := device.SetExposurePoint(x, y); err != nil {
		log.Warn("exposure point failed", "error", err)
		return false
	}
	return true
}

// SetZoomLevel applies a zoom ratio, silently clamped to the device range.
func (c *Controller) SetZoomLevel(ratio float64) bool {
	device := c.session.Device()
	if device == nil {
		return false
	}
	ratio = clampZoom(ratio, device)
	if err := device.SetZoom(ratio); err != nil {
		log.Warn("zoom failed", "ratio", ratio, "error", err)
		return false
	}
	c.mu.Lock()
	c.zoom = ratio
	c.mu.Unlock()
	c.notify()
	return true
}

// StartRecording begins a recording attempt. Setup failures return
// synchronously; cb resolves once the first encoded frame is confirmed, or
// with an error if the attempt dies before that.
func (c *Controller) StartRecording(opts RecordingOptions, cb StartCallback) error {
	if !c.isInitialized() {
		return ErrNotInitialized
	}
	err := c.rec.Start(c.session.Device(), opts, func(startErr error) {
		if cb != nil {
			cb(startErr)
		}
		c.notify()
	})
	if err == nil {
		c.notify()
	}
	return err
}

// StopRecording requests a manual stop; cb resolves with the finalized
// result or error.
func (c *Controller) StopRecording(cb StopCallback) error {
	return c.rec.Stop(func(result *RecordingResult, err error) {
		if cb != nil {
			cb(result, err)
		}
		c.notify()
	})
}

// SetAutoStopListener registers the callback invoked exactly once per
// automatically-terminated attempt.
func (c *Controller) SetAutoStopListener(cb StopCallback) {
	c.rec.SetAutoStopListener(func(result *RecordingResult, err error) {
		if cb != nil {
			cb(result, err)
		}
		c.notify()
	})
}

// PausePreview prepares for backgrounding. The screen-brightness override
// is force-cleared regardless of internal tracking, so a no-longer
// applicable override cannot survive backgrounding.
func (c *Controller) PausePreview() {
	// The requested mode survives in the flash controller, so
	// ResumePreview can re-apply it.
	c.flash.ClearOverride()
	c.notify()
}

// ResumePreview restores the preview after backgrounding. The previous
// torch request is re-applied only if the lens is still the front lens and
// the requested mode is still torch.
func (c *Controller) ResumePreview() (CameraState, error) {
	if !c.isInitialized() {
		return CameraState{}, ErrNotInitialized
	}
	if c.session.Lens() == LensFront && c.flash.Mode() == FlashTorch {
		c.flash.SetMode(FlashTorch)
	}
	return c.notify(), nil
}

// Device exposes the currently bound device for platform-specific wiring
// such as preview taps. Nil before Initialize and after Release.
func (c *Controller) Device() Device {
	return c.session.Device()
}

// State returns a snapshot recomputed from live controller fields.
func (c *Controller) State() CameraState {
	c.mu.RLock()
	initialized := c.initialized
	screenFlash := c.screenFlash
	zoom := c.zoom
	c.mu.RUnlock()

	st := CameraState{
		Initialized:    initialized,
		Recording:      c.rec.Recording(),
		FlashMode:      c.flash.Mode(),
		Lens:           c.session.Lens(),
		Zoom:           zoom,
		HasFlash:       c.session.HasFlash(screenFlash),
		HasFrontCamera: c.platform.HasLens(LensFront),
		HasBackCamera:  c.platform.HasLens(LensBack),
	}
	if device := c.session.Device(); device != nil {
		st.MinZoom, st.MaxZoom = device.ZoomRange()
		w, h := device.PreviewSize()
		if w > 0 {
			st.AspectRatio = float64(h) / float64(w)
		}
		st.SupportsFocusPoint = device.SupportsFocusPoint()
		st.SupportsExposurePoint = device.SupportsExposurePoint()
		st.PreviewID = device.PreviewID()
	}
	return st
}

// Release is the terminal operation: it stops any active recording
// best-effort, force-clears screen brightness, unbinds all hardware
// handles, and defers executor shutdown by a short grace period so
// in-flight callbacks drain.
func (c *Controller) Release() {
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return
	}
	c.released = true
	c.initialized = false
	c.mu.Unlock()

	// Best-effort stop; the finalize outcome is ignored.
	if err := c.rec.Stop(func(*RecordingResult, error) {}); err != nil && !errors.Is(err, ErrNotRecording) {
		log.Warn("stop during release failed", "error", err)
	}

	c.flash.ClearOverride()
	if dev := c.session.Device(); dev != nil && dev.HasTorch() {
		if err := dev.SetTorch(false); err != nil {
			log.Warn("disabling torch during release failed", "error", err)
		}
	}
	c.flash.Unbind()

	// Defensive restore: not conditional on any internal flag.
	if err := c.brightness.Restore(); err != nil {
		log.Warn("brightness restore during release failed", "error", err)
	}

	c.session.Release()
	c.disp.Close(ReleaseGrace)
	log.Info("camera released")
}

// isInitialized reports lifecycle state.
func (c *Controller) isInitialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.initialized && !c.released
}

// notify recomputes the snapshot and pushes it to the state listener.
func (c *Controller) notify() CameraState {
	st := c.State()
	if c.OnStateChange != nil {
		c.OnStateChange(st)
	}
	return st
}

// normalized reports whether both coordinates are in [0, 1].
func normalized(x, y float64) bool {
	return x >= 0 && x <= 1 && y >= 0 && y <= 1
}

// clampZoom restricts ratio to the device's supported range.
func clampZoom(ratio float64, device Device) float64 {
	min, max := device.ZoomRange()
	if ratio < min {
		return min
	}
	if ratio > max {
		return max
	}
	return ratio
}
