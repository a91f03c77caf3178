package camcorder

// Platform is the injected camera capability the controller depends on.
//
// The interfaces here follow the Interface Segregation Principle: each
// collaborator exposes only the surface the controller actually uses, so a
// test double can satisfy them with deterministic synthetic callbacks.

// Platform enumerates lenses and opens devices.
type Platform interface {
	// HasLens reports whether the lens physically exists.
	HasLens(lens Lens) bool

	// OpenDevice binds preview and capture to the requested lens at the
	// given quality preset. The lens is assumed present; callers handle
	// fallback before opening.
	OpenDevice(lens Lens, quality Quality) (Device, error)
}

// Device is a bound camera: preview surface, capture pipeline, and the
// hardware controls scoped to one lens.
type Device interface {
	// Lens returns the lens this device is bound to.
	Lens() Lens

	// PreviewID identifies the preview surface/texture.
	PreviewID() string

	// PreviewSize returns the bound preview dimensions in pixels.
	PreviewSize() (width, height int)

	// HasTorch reports whether a physical flash unit is present.
	HasTorch() bool

	// SetTorch enables or disables the physical torch.
	SetTorch(on bool) error

	// ZoomRange returns the supported zoom ratio bounds.
	ZoomRange() (min, max float64)

	// SetZoom applies a zoom ratio. The caller clamps to ZoomRange.
	SetZoom(ratio float64) error

	// SupportsFocusPoint reports whether tap-to-focus metering works.
	SupportsFocusPoint() bool

	// SupportsExposurePoint reports whether exposure metering works.
	SupportsExposurePoint() bool

	// SetFocusPoint requests focus metering at normalized coordinates.
	SetFocusPoint(x, y float64) error

	// SetExposurePoint requests exposure metering at normalized coordinates.
	SetExposurePoint(x, y float64) error

	// OnTelemetry registers the per-frame exposure telemetry sink. The
	// device calls fn on its own capture thread; last write wins.
	OnTelemetry(fn func(sample ExposureSample))

	// NewRecorder builds a recorder writing to path. The recorder is armed
	// but not started.
	NewRecorder(path string, withAudio bool) (Recorder, error)

	// Close releases the device binding and the preview surface.
	Close() error
}

// Recorder is the platform video recorder with the three-event lifecycle
// Start, Status, Finalize. Events for one recorder are delivered in that
// relative order and never reordered.
type Recorder interface {
	// Start begins recording. Events are delivered asynchronously to fn on
	// the platform's recording thread.
	Start(fn func(ev RecordEvent)) error

	// Stop requests finalization. Idempotent: a second call is a no-op.
	Stop() error
}

// BrightnessControl is the display-brightness surface used for the
// screen-flash workaround on lenses without a physical flash unit.
type BrightnessControl interface {
	// SetMaximum overrides the display to full brightness.
	SetMaximum() error

	// Restore writes the override-none sentinel, returning brightness to
	// system/automatic control. Idempotent, safe to call redundantly.
	Restore() error
}

// PermissionChecker reports runtime permission state. Consulted once at
// recording start.
type PermissionChecker interface {
	AudioGranted() bool
}

// StaticPermissions is a PermissionChecker with fixed answers, for
// platforms without a runtime permission model.
type StaticPermissions struct {
	Audio bool
}

// AudioGranted reports the fixed audio permission.
func (p StaticPermissions) AudioGranted() bool { return p.Audio }

// Ensure the static checker satisfies the interface.
var _ PermissionChecker = StaticPermissions{}
