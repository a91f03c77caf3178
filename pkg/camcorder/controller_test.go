package camcorder

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func newController(platform *MockPlatform) (*Controller, *MockBrightness) {
	brightness := NewMockBrightness()
	return New(platform, brightness, StaticPermissions{Audio: true}), brightness
}

func TestController_InitializeFrontFallsBackToBack(t *testing.T) {
	// No front camera, back present; the controller silently
	// substitutes and reports the actually-bound lens.
	platform := &MockPlatform{Front: false, Back: true}
	ctrl, _ := newController(platform)
	defer ctrl.Release()

	state, err := ctrl.Initialize(LensFront, QualityHD, true)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if state.Lens != LensBack {
		t.Errorf("bound lens = %s, want back", state.Lens)
	}
	if !state.Initialized {
		t.Error("state not marked initialized")
	}
	if state.HasFrontCamera {
		t.Error("state reports a front camera that does not exist")
	}
}

func TestController_InitializeNoCameras(t *testing.T) {
	platform := &MockPlatform{Front: false, Back: false}
	ctrl, _ := newController(platform)

	_, err := ctrl.Initialize(LensBack, QualityHD, false)
	if !errors.Is(err, ErrHardwareUnavailable) {
		t.Fatalf("got %v, want ErrHardwareUnavailable", err)
	}
}

func TestController_StateSnapshot(t *testing.T) {
	platform := NewMockPlatform()
	ctrl, _ := newController(platform)
	defer ctrl.Release()

	if _, err := ctrl.Initialize(LensFront, QualityFullHD, true); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	state := ctrl.State()
	if state.Lens != LensFront {
		t.Errorf("lens = %s, want front", state.Lens)
	}
	if !state.HasFlash {
		t.Error("front lens with screen flash enabled must report flash available")
	}
	if state.MinZoom != 1.0 || state.MaxZoom != 8.0 {
		t.Errorf("zoom range = [%v, %v], want [1, 8]", state.MinZoom, state.MaxZoom)
	}
	want := 1080.0 / 1920.0
	if state.AspectRatio != want {
		t.Errorf("aspect ratio = %v, want %v", state.AspectRatio, want)
	}
	if state.PreviewID == "" {
		t.Error("snapshot missing preview identifier")
	}
}

func TestController_ZoomClamped(t *testing.T) {
	platform := NewMockPlatform()
	ctrl, _ := newController(platform)
	defer ctrl.Release()
	if _, err := ctrl.Initialize(LensBack, QualityHD, false); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	device := platform.LastDevice()

	if !ctrl.SetZoomLevel(100) {
		t.Fatal("SetZoomLevel failed")
	}
	if device.Zoom() != 8.0 {
		t.Errorf("zoom = %v, want clamped 8.0", device.Zoom())
	}

	ctrl.SetZoomLevel(0.1)
	if device.Zoom() != 1.0 {
		t.Errorf("zoom = %v, want clamped 1.0", device.Zoom())
	}

	if ctrl.State().Zoom != 1.0 {
		t.Errorf("snapshot zoom = %v, want 1.0", ctrl.State().Zoom)
	}
}

func TestController_FocusPointValidation(t *testing.T) {
	platform := NewMockPlatform()
	ctrl, _ := newController(platform)
	defer ctrl.Release()
	if _, err := ctrl.Initialize(LensBack, QualityHD, false); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if !ctrl.SetFocusPoint(0.5, 0.5) {
		t.Error("valid focus point rejected")
	}
	if ctrl.SetFocusPoint(1.5, 0.5) {
		t.Error("out-of-range focus point accepted")
	}
	if ctrl.SetExposurePoint(-0.1, 0.5) {
		t.Error("out-of-range exposure point accepted")
	}
}

func TestController_SwitchCameraClearsOverride(t *testing.T) {
	platform := NewMockPlatform()
	ctrl, brightness := newController(platform)
	defer ctrl.Release()
	if _, err := ctrl.Initialize(LensFront, QualityHD, true); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	// Active screen-flash override on the front lens.
	ctrl.SetFlashMode(FlashTorch)
	if !brightness.Maxed() {
		t.Fatal("torch mode did not raise brightness")
	}

	state, err := ctrl.SwitchCamera(LensBack)
	if err != nil {
		t.Fatalf("SwitchCamera failed: %v", err)
	}
	if state.Lens != LensBack {
		t.Errorf("lens = %s, want back", state.Lens)
	}
	if !brightness.SystemControlled() {
		t.Error("stale screen override survived the lens switch")
	}
}

func TestController_SwitchCameraWhileRecording(t *testing.T) {
	platform := NewMockPlatform()
	ctrl, _ := newController(platform)
	defer ctrl.Release()
	if _, err := ctrl.Initialize(LensBack, QualityHD, false); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if err := ctrl.StartRecording(RecordingOptions{Dir: t.TempDir()}, nil); err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}
	if _, err := ctrl.SwitchCamera(LensFront); !errors.Is(err, ErrAlreadyRecording) {
		t.Errorf("got %v, want ErrAlreadyRecording", err)
	}
}

func TestController_PausePreviewRestoresBrightness(t *testing.T) {
	// Pause always restores system brightness, with or without a prior
	// override, and is safe to call redundantly.
	platform := NewMockPlatform()
	ctrl, brightness := newController(platform)
	defer ctrl.Release()
	if _, err := ctrl.Initialize(LensFront, QualityHD, true); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	ctrl.PausePreview()
	ctrl.PausePreview()
	if !brightness.SystemControlled() {
		t.Error("brightness not system-controlled after pause")
	}
	if brightness.RestoreCalls < 2 {
		t.Errorf("expected unconditional restores, got %d", brightness.RestoreCalls)
	}
}

func TestController_ResumeReappliesFrontTorch(t *testing.T) {
	platform := NewMockPlatform()
	ctrl, brightness := newController(platform)
	defer ctrl.Release()
	if _, err := ctrl.Initialize(LensFront, QualityHD, true); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	ctrl.SetFlashMode(FlashTorch)
	ctrl.PausePreview()
	if brightness.Maxed() {
		t.Fatal("pause left the override active")
	}

	if _, err := ctrl.ResumePreview(); err != nil {
		t.Fatalf("ResumePreview failed: %v", err)
	}
	if !brightness.Maxed() {
		t.Error("resume did not re-apply the front torch override")
	}
}

func TestController_ResumeDoesNotReapplyNonTorch(t *testing.T) {
	platform := NewMockPlatform()
	ctrl, brightness := newController(platform)
	defer ctrl.Release()
	if _, err := ctrl.Initialize(LensFront, QualityHD, true); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	ctrl.SetFlashMode(FlashAuto)
	ctrl.PausePreview()
	if _, err := ctrl.ResumePreview(); err != nil {
		t.Fatalf("ResumePreview failed: %v", err)
	}
	if brightness.Maxed() {
		t.Error("resume applied an override although mode is not torch")
	}
}

func TestController_ReleaseIdempotentAndRestores(t *testing.T) {
	// Release always leaves brightness system-controlled.
	platform := NewMockPlatform()
	ctrl, brightness := newController(platform)
	if _, err := ctrl.Initialize(LensFront, QualityHD, true); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	ctrl.SetFlashMode(FlashTorch)
	device := platform.LastDevice()

	ctrl.Release()
	ctrl.Release()

	if !brightness.SystemControlled() {
		t.Error("release did not restore system brightness")
	}
	if !device.Closed() {
		t.Error("release did not close the device")
	}
	if ctrl.State().Initialized {
		t.Error("controller still initialized after release")
	}
	if _, err := ctrl.ResumePreview(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("operation after release: got %v, want ErrNotInitialized", err)
	}
}

func TestController_ReleaseStopsActiveRecording(t *testing.T) {
	platform := NewMockPlatform()
	ctrl, _ := newController(platform)
	if _, err := ctrl.Initialize(LensBack, QualityHD, false); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	startCh := make(chan error, 1)
	if err := ctrl.StartRecording(RecordingOptions{Dir: t.TempDir()}, func(err error) { startCh <- err }); err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}
	rec := platform.LastDevice().LastRecorder()
	rec.EmitStart()
	rec.EmitStatus(10 * time.Millisecond)
	if err := <-startCh; err != nil {
		t.Fatalf("start failed: %v", err)
	}

	ctrl.Release()
	if rec.StopCalls() == 0 {
		t.Error("release did not issue a best-effort recorder stop")
	}
}

func TestController_EndToEndRecording(t *testing.T) {
	platform := NewMockPlatform()
	ctrl, _ := newController(platform)
	defer ctrl.Release()
	if _, err := ctrl.Initialize(LensBack, QualityHD, false); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	var stateChanges atomic.Int32
	ctrl.OnStateChange = func(CameraState) { stateChanges.Add(1) }

	startCh := make(chan error, 1)
	if err := ctrl.StartRecording(RecordingOptions{Dir: t.TempDir()}, func(err error) { startCh <- err }); err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}
	if !ctrl.State().Recording {
		t.Error("snapshot not recording after start")
	}

	rec := platform.LastDevice().LastRecorder()
	rec.EmitStart()
	rec.EmitStatus(40 * time.Millisecond)
	if err := <-startCh; err != nil {
		t.Fatalf("start failed: %v", err)
	}

	stopCh := make(chan *RecordingResult, 1)
	if err := ctrl.StopRecording(func(result *RecordingResult, err error) {
		if err != nil {
			t.Errorf("stop failed: %v", err)
		}
		stopCh <- result
	}); err != nil {
		t.Fatalf("StopRecording failed: %v", err)
	}
	rec.EmitFinalize([]byte("video-bytes"), nil)

	select {
	case result := <-stopCh:
		if result == nil || result.Path == "" {
			t.Fatal("missing recording result")
		}
	case <-time.After(time.Second):
		t.Fatal("stop never resolved")
	}

	waitUntil(t, time.Second, func() bool { return !ctrl.State().Recording }, "recording flag to clear")
	if stateChanges.Load() == 0 {
		t.Error("no state change notifications were delivered")
	}
}
