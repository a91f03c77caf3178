package camcorder

import (
	"errors"
	"os"
	"sync"
	"time"
)

// MockPlatform implements Platform for testing and offline development.
// All behavior can be customized via function fields; defaults model a
// device with both lenses, a back torch, and no front flash unit.
type MockPlatform struct {
	// Front and Back control lens presence.
	Front bool
	Back  bool

	// OpenFunc overrides device creation. If nil, a default MockDevice is
	// returned.
	OpenFunc func(lens Lens, quality Quality) (Device, error)

	mu      sync.Mutex
	devices []*MockDevice
}

// NewMockPlatform creates a platform with both lenses present.
func NewMockPlatform() *MockPlatform {
	return &MockPlatform{Front: true, Back: true}
}

// HasLens reports configured lens presence.
func (p *MockPlatform) HasLens(lens Lens) bool {
	if lens == LensFront {
		return p.Front
	}
	return p.Back
}

// OpenDevice returns a device for the lens.
func (p *MockPlatform) OpenDevice(lens Lens, quality Quality) (Device, error) {
	if p.OpenFunc != nil {
		return p.OpenFunc(lens, quality)
	}
	d := NewMockDevice(lens, quality)
	p.mu.Lock()
	p.devices = append(p.devices, d)
	p.mu.Unlock()
	return d, nil
}

// LastDevice returns the most recently opened default device, or nil.
func (p *MockPlatform) LastDevice() *MockDevice {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.devices) == 0 {
		return nil
	}
	return p.devices[len(p.devices)-1]
}

// MockDevice implements Device with recorded calls and synthetic telemetry.
type MockDevice struct {
	LensValue Lens
	Quality   Quality

	// Torch models a physical flash unit; front devices default to none.
	Torch bool

	// FocusSupported and ExposureSupported gate metering calls.
	FocusSupported    bool
	ExposureSupported bool

	// NewRecorderFunc overrides recorder creation. If nil, a MockRecorder
	// backed by a real file at path is returned.
	NewRecorderFunc func(path string, withAudio bool) (Recorder, error)

	mu        sync.Mutex
	torchOn   bool
	zoom      float64
	closed    bool
	telemetry func(ExposureSample)
	recorders []*MockRecorder

	// Call log for verification.
	TorchCalls []bool
	ZoomCalls  []float64
}

// NewMockDevice creates a device bound to lens. Back devices carry a torch.
func NewMockDevice(lens Lens, quality Quality) *MockDevice {
	return &MockDevice{
		LensValue:         lens,
		Quality:           quality,
		Torch:             lens == LensBack,
		FocusSupported:    true,
		ExposureSupported: true,
		zoom:              1.0,
	}
}

// Lens returns the bound lens.
func (d *MockDevice) Lens() Lens { return d.LensValue }

// PreviewID returns a stable synthetic surface identifier.
func (d *MockDevice) PreviewID() string { return "mock-preview-" + d.LensValue.String() }

// PreviewSize returns the preset resolution.
func (d *MockDevice) PreviewSize() (int, int) { return d.Quality.Resolution() }

// HasTorch reports the configured physical flash unit.
func (d *MockDevice) HasTorch() bool { return d.Torch }

// SetTorch records and applies the torch state.
func (d *MockDevice) SetTorch(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.Torch {
		return errors.New("mock: no torch unit")
	}
	d.torchOn = on
	d.TorchCalls = append(d.TorchCalls, on)
	return nil
}

// TorchOn reports the current torch state.
func (d *MockDevice) TorchOn() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.torchOn
}

// ZoomRange returns a fixed 1x-8x range.
func (d *MockDevice) ZoomRange() (float64, float64) { return 1.0, 8.0 }

// SetZoom records and applies the zoom ratio.
func (d *MockDevice) SetZoom(ratio float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.zoom = ratio
	d.ZoomCalls = append(d.ZoomCalls, ratio)
	return nil
}

// Zoom returns the applied zoom ratio.
func (d *MockDevice) Zoom() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.zoom
}

// SupportsFocusPoint reports metering support.
func (d *MockDevice) SupportsFocusPoint() bool { return d.FocusSupported }

// SupportsExposurePoint reports metering support.
func (d *MockDevice) SupportsExposurePoint() bool { return d.ExposureSupported }

// SetFocusPoint accepts any normalized point.
func (d *MockDevice) SetFocusPoint(x, y float64) error { return nil }

// SetExposurePoint accepts any normalized point.
func (d *MockDevice) SetExposurePoint(x, y float64) error { return nil }

// OnTelemetry registers the telemetry sink.
func (d *MockDevice) OnTelemetry(fn func(ExposureSample)) {
	d.mu.Lock()
	d.telemetry = fn
	d.mu.Unlock()
}

// EmitTelemetry pushes a synthetic exposure sample to the registered sink.
func (d *MockDevice) EmitTelemetry(sample ExposureSample) {
	d.mu.Lock()
	fn := d.telemetry
	d.mu.Unlock()
	if fn != nil {
		fn(sample)
	}
}

// NewRecorder builds a recorder for path.
func (d *MockDevice) NewRecorder(path string, withAudio bool) (Recorder, error) {
	if d.NewRecorderFunc != nil {
		return d.NewRecorderFunc(path, withAudio)
	}
	r := &MockRecorder{Path: path}
	d.mu.Lock()
	d.recorders = append(d.recorders, r)
	d.mu.Unlock()
	return r, nil
}

// LastRecorder returns the most recently built default recorder, or nil.
func (d *MockDevice) LastRecorder() *MockRecorder {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.recorders) == 0 {
		return nil
	}
	return d.recorders[len(d.recorders)-1]
}

// Close marks the device released.
func (d *MockDevice) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (d *MockDevice) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// MockRecorder implements Recorder with caller-driven synthetic events.
// Tests drive the three-event lifecycle explicitly via the Emit helpers.
type MockRecorder struct {
	Path string

	// StartFunc, if set, overrides Start.
	StartFunc func(fn func(RecordEvent)) error

	// StopFunc, if set, overrides Stop.
	StopFunc func() error

	mu        sync.Mutex
	events    func(RecordEvent)
	started   bool
	stopCalls int
}

// Start registers the event sink.
func (r *MockRecorder) Start(fn func(RecordEvent)) error {
	if r.StartFunc != nil {
		return r.StartFunc(fn)
	}
	r.mu.Lock()
	r.events = fn
	r.started = true
	r.mu.Unlock()
	return nil
}

// Stop records the stop request. Idempotent like the platform recorder.
func (r *MockRecorder) Stop() error {
	if r.StopFunc != nil {
		return r.StopFunc()
	}
	r.mu.Lock()
	r.stopCalls++
	r.mu.Unlock()
	return nil
}

// StopCalls returns how many times Stop was requested.
func (r *MockRecorder) StopCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopCalls
}

// EmitStart delivers the hardware-level Start event.
func (r *MockRecorder) EmitStart() {
	r.emit(RecordEvent{Kind: EventStart})
}

// EmitStatus delivers a Status event with the given recorded duration.
func (r *MockRecorder) EmitStatus(recorded time.Duration) {
	r.emit(RecordEvent{Kind: EventStatus, RecordedDuration: recorded})
}

// EmitFinalize writes data to the output file (if any) and delivers the
// terminal Finalize event.
func (r *MockRecorder) EmitFinalize(data []byte, failure error) {
	if len(data) > 0 {
		if err := os.WriteFile(r.Path, data, 0o644); err != nil {
			failure = err
		}
	}
	r.emit(RecordEvent{Kind: EventFinalize, Err: failure})
}

func (r *MockRecorder) emit(ev RecordEvent) {
	r.mu.Lock()
	fn := r.events
	r.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

// MockBrightness implements BrightnessControl with a recorded level.
// Level -1 models the override-none sentinel (system-controlled).
type MockBrightness struct {
	mu           sync.Mutex
	level        float64
	SetCalls     int
	RestoreCalls int

	// SetMaximumErr and RestoreErr inject failures.
	SetMaximumErr error
	RestoreErr    error
}

// NewMockBrightness creates a brightness surface under system control.
func NewMockBrightness() *MockBrightness {
	return &MockBrightness{level: -1}
}

// SetMaximum overrides the display to full brightness.
func (b *MockBrightness) SetMaximum() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.SetMaximumErr != nil {
		return b.SetMaximumErr
	}
	b.level = 1.0
	b.SetCalls++
	return nil
}

// Restore writes the override-none sentinel.
func (b *MockBrightness) Restore() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.RestoreErr != nil {
		return b.RestoreErr
	}
	b.level = -1
	b.RestoreCalls++
	return nil
}

// SystemControlled reports whether brightness is back under system control.
func (b *MockBrightness) SystemControlled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.level == -1
}

// Maxed reports whether the override is applied.
func (b *MockBrightness) Maxed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.level == 1.0
}

// Interface assertions for the mock doubles.
var (
	_ Platform          = (*MockPlatform)(nil)
	_ Device            = (*MockDevice)(nil)
	_ Recorder          = (*MockRecorder)(nil)
	_ BrightnessControl = (*MockBrightness)(nil)
)
