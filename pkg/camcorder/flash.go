package camcorder

import (
	"sync"

	"github.com/teslashibe/go-camcorder/internal/log"
)

// engagedKind records which mechanism auto-flash enabled for the current
// attempt, so stop reverses exactly that mechanism and nothing else.
type engagedKind int

const (
	engagedNone engagedKind = iota
	engagedTorch
	engagedScreen
)

// FlashController translates the requested flash mode, the active lens, and
// the darkness signal into concrete hardware actions: physical torch
// on/off, or the synthetic screen-brightness override for lenses without a
// flash unit.
type FlashController struct {
	brightness BrightnessControl
	exposure   *ExposureMonitor

	mu                sync.Mutex
	device            Device
	mode              FlashMode
	screenFlashOn     bool // screen-brightness override currently applied
	autoEngaged       engagedKind
	screenFlashPolicy bool // front-lens screen-flash feature enabled
}

// NewFlashController creates a flash policy engine over the given display
// brightness surface and exposure monitor.
func NewFlashController(brightness BrightnessControl, exposure *ExposureMonitor) *FlashController {
	return &FlashController{
		brightness: brightness,
		exposure:   exposure,
	}
}

// Bind attaches the active camera device. The screen-flash feature flag
// comes from controller initialization.
func (f *FlashController) Bind(device Device, screenFlashEnabled bool) {
	f.mu.Lock()
	f.device = device
	f.screenFlashPolicy = screenFlashEnabled
	f.mu.Unlock()
}

// Unbind detaches the device. Any standing override must already have been
// cleared by the caller (lens switch, release).
func (f *FlashController) Unbind() {
	f.mu.Lock()
	f.device = nil
	f.mu.Unlock()
}

// Mode returns the currently requested flash mode.
func (f *FlashController) Mode() FlashMode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode
}

// OverrideActive reports whether the screen-brightness override is applied.
func (f *FlashController) OverrideActive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.screenFlashOn
}

// SetMode applies a user-requested flash mode. Returns false when no active
// camera device exists; an unbound controller is a no-op rather than a
// failure in the caller's flow.
func (f *FlashController) SetMode(mode FlashMode) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.device == nil {
		return false
	}
	f.mode = mode

	if f.device.Lens() == LensFront {
		switch mode {
		case FlashTorch:
			f.applyScreenFlashLocked(true)
		default:
			// auto arms detection at the next recording start; everything
			// else just clears any standing override.
			f.applyScreenFlashLocked(false)
		}
		return true
	}

	switch mode {
	case FlashTorch:
		f.setTorchLocked(true)
	case FlashAuto:
		f.setTorchLocked(false)
	default:
		f.setTorchLocked(false)
	}
	return true
}

// OnRecordingStart runs the auto-flash decision for one attempt. The
// darkness predicate is consulted exactly once, here; no retroactive check
// occurs later in the recording.
func (f *FlashController) OnRecordingStart(lens Lens) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.mode != FlashAuto {
		return
	}
	if !f.exposure.IsDark(lens) {
		return
	}

	hasTorch := f.device != nil && f.device.HasTorch()
	if lens == LensFront && !hasTorch {
		if !f.screenFlashPolicy {
			return
		}
		f.applyScreenFlashLocked(true)
		f.autoEngaged = engagedScreen
		log.Debug("auto-flash engaged", "mechanism", "screen", "lens", lens.String())
		return
	}
	f.setTorchLocked(true)
	f.autoEngaged = engagedTorch
	log.Debug("auto-flash engaged", "mechanism", "torch", "lens", lens.String())
}

// OnRecordingStop reverses exactly the mechanism auto-flash engaged for the
// finished attempt. Manual torch/mode settings set outside the auto-flash
// path are untouched.
func (f *FlashController) OnRecordingStop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.autoEngaged {
	case engagedTorch:
		f.setTorchLocked(false)
	case engagedScreen:
		f.applyScreenFlashLocked(false)
	}
	f.autoEngaged = engagedNone
}

// ClearOverride unconditionally restores system brightness and drops the
// override flag. Called on pause, release, and lens switch regardless of
// internal tracking; a stale override on the wrong lens is a correctness
// bug.
func (f *FlashController) ClearOverride() {
	f.mu.Lock()
	f.screenFlashOn = false
	f.autoEngaged = engagedNone
	f.mu.Unlock()

	if err := f.brightness.Restore(); err != nil {
		// Non-fatal: recording must not be blocked by a brightness failure.
		log.Warn("brightness restore failed", "error", err)
	}
}

// applyScreenFlashLocked sets or restores the display brightness override.
// Callers hold f.mu.
func (f *FlashController) applyScreenFlashLocked(on bool) {
	f.screenFlashOn = on
	var err error
	if on {
		err = f.brightness.SetMaximum()
	} else {
		err = f.brightness.Restore()
	}
	if err != nil {
		log.Warn("screen flash brightness change failed", "on", on, "error", err)
	}
}

// setTorchLocked drives the physical torch. Callers hold f.mu.
func (f *FlashController) setTorchLocked(on bool) {
	if f.device == nil || !f.device.HasTorch() {
		return
	}
	if err := f.device.SetTorch(on); err != nil {
		log.Warn("torch change failed", "on", on, "error", err)
	}
}
