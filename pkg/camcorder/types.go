// Package camcorder implements the on-device camera recording controller:
// camera session lifecycle, the recording start/stop protocol, the
// flash/exposure policy engine, and resource teardown.
//
// The controller talks to hardware through the small platform interfaces in
// platform.go, so the state machine can be driven by a real device
// (pkg/gocvcam) or by deterministic synthetic callbacks (mock.go) in tests.
package camcorder

import (
	"fmt"
	"time"
)

// Lens selects the physical camera.
type Lens int

const (
	// LensBack is the rear-facing camera.
	LensBack Lens = iota
	// LensFront is the user-facing camera.
	LensFront
)

// String returns the lens name.
func (l Lens) String() string {
	if l == LensFront {
		return "front"
	}
	return "back"
}

// MarshalText implements encoding.TextMarshaler for JSON state snapshots.
func (l Lens) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// ParseLens converts a lens name to a Lens.
func ParseLens(s string) (Lens, error) {
	switch s {
	case "front":
		return LensFront, nil
	case "back":
		return LensBack, nil
	}
	return LensBack, fmt.Errorf("camcorder: unknown lens %q", s)
}

// Other returns the opposite lens.
func (l Lens) Other() Lens {
	if l == LensFront {
		return LensBack
	}
	return LensFront
}

// FlashMode is the user-requested flash behavior.
type FlashMode int

const (
	// FlashOff disables all flash behavior.
	FlashOff FlashMode = iota
	// FlashAuto decides once, at recording start, whether to engage flash
	// based on the exposure-darkness heuristic.
	FlashAuto
	// FlashOn requests single-shot flash behavior where supported.
	FlashOn
	// FlashTorch requests continuous illumination: the physical torch on the
	// back lens, or the screen-brightness override on the front lens.
	FlashTorch
)

// String returns the mode name.
func (m FlashMode) String() string {
	switch m {
	case FlashAuto:
		return "auto"
	case FlashOn:
		return "on"
	case FlashTorch:
		return "torch"
	}
	return "off"
}

// MarshalText implements encoding.TextMarshaler for JSON state snapshots.
func (m FlashMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ParseFlashMode converts a mode name to a FlashMode.
func ParseFlashMode(s string) (FlashMode, error) {
	switch s {
	case "off":
		return FlashOff, nil
	case "auto":
		return FlashAuto, nil
	case "on":
		return FlashOn, nil
	case "torch":
		return FlashTorch, nil
	}
	return FlashOff, fmt.Errorf("camcorder: unknown flash mode %q", s)
}

// Quality is the requested capture quality preset.
type Quality int

const (
	QualityLow Quality = iota
	QualitySD
	QualityHD
	QualityFullHD
	QualityUHD
)

// Resolution returns the target capture resolution for the preset.
func (q Quality) Resolution() (width, height int) {
	switch q {
	case QualityLow:
		return 640, 360
	case QualitySD:
		return 854, 480
	case QualityFullHD:
		return 1920, 1080
	case QualityUHD:
		return 3840, 2160
	default:
		return 1280, 720
	}
}

// String returns the preset name.
func (q Quality) String() string {
	switch q {
	case QualityLow:
		return "low"
	case QualitySD:
		return "sd"
	case QualityFullHD:
		return "1080p"
	case QualityUHD:
		return "4k"
	default:
		return "720p"
	}
}

// ParseQuality converts a preset name to a Quality.
func ParseQuality(s string) (Quality, error) {
	switch s {
	case "low":
		return QualityLow, nil
	case "sd":
		return QualitySD, nil
	case "hd", "720p", "":
		return QualityHD, nil
	case "fullhd", "1080p":
		return QualityFullHD, nil
	case "uhd", "4k":
		return QualityUHD, nil
	}
	return QualityHD, fmt.Errorf("camcorder: unknown quality %q", s)
}

// SensorAspectRatio is the fixed capture-side sensor framing (16:9).
// UI-level crop ratios are reconciled by the consuming layer, not here.
const SensorAspectRatio = 16.0 / 9.0

// CameraState is an immutable snapshot of the controller, recomputed on
// demand from live fields. It has no independent persistence.
type CameraState struct {
	Initialized bool      `json:"initialized"`
	Recording   bool      `json:"recording"`
	FlashMode   FlashMode `json:"flash_mode"`
	Lens        Lens      `json:"lens"`

	Zoom    float64 `json:"zoom"`
	MinZoom float64 `json:"min_zoom"`
	MaxZoom float64 `json:"max_zoom"`

	// AspectRatio is height/width of the bound preview.
	AspectRatio float64 `json:"aspect_ratio"`

	HasFlash       bool `json:"has_flash"`
	HasFrontCamera bool `json:"has_front_camera"`
	HasBackCamera  bool `json:"has_back_camera"`

	SupportsFocusPoint    bool `json:"supports_focus_point"`
	SupportsExposurePoint bool `json:"supports_exposure_point"`

	// PreviewID identifies the bound preview surface/texture.
	PreviewID string `json:"preview_id"`
}

// RecordingResult is the outcome of a finalized recording attempt.
type RecordingResult struct {
	Path       string `json:"path"`
	DurationMs int64  `json:"duration_ms"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
}

// RecordingOptions configures a single recording attempt.
type RecordingOptions struct {
	// Dir is the output directory, resolved by the caller's storage policy.
	Dir string

	// MaxDuration bounds the recording; zero means unbounded. When the bound
	// elapses the attempt is stopped automatically and the auto-stop
	// listener is notified.
	MaxDuration time.Duration
}

// StartCallback resolves a start request. A nil error means the first
// encoded frame was confirmed and recording is live.
type StartCallback func(err error)

// StopCallback resolves a stop request with the finalized result or an
// error. Exactly one of result/err is non-nil.
type StopCallback func(result *RecordingResult, err error)

// ExposureSample is a rolling ISO + exposure-time pair from per-frame
// capture telemetry.
type ExposureSample struct {
	ISO          int
	ExposureTime time.Duration
}
