package camcorder

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type recFixture struct {
	session    *RecordingSession
	device     *MockDevice
	brightness *MockBrightness
	exposure   *ExposureMonitor
	flash      *FlashController
	disp       *dispatcher
	dir        string
}

func newRecFixture(t *testing.T, lens Lens) *recFixture {
	t.Helper()
	exposure := NewExposureMonitor()
	brightness := NewMockBrightness()
	flash := NewFlashController(brightness, exposure)
	device := NewMockDevice(lens, QualityHD)
	flash.Bind(device, true)
	disp := newDispatcher()
	t.Cleanup(func() { disp.Close(0) })

	return &recFixture{
		session:    NewRecordingSession(flash, StaticPermissions{Audio: true}, disp),
		device:     device,
		brightness: brightness,
		exposure:   exposure,
		flash:      flash,
		disp:       disp,
		dir:        t.TempDir(),
	}
}

// start begins an attempt and returns the channel carrying the start
// resolution plus the armed recorder.
func (f *recFixture) start(t *testing.T, opts RecordingOptions) (chan error, *MockRecorder) {
	t.Helper()
	if opts.Dir == "" {
		opts.Dir = f.dir
	}
	startCh := make(chan error, 1)
	if err := f.session.Start(f.device, opts, func(err error) { startCh <- err }); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	rec := f.device.LastRecorder()
	if rec == nil {
		t.Fatal("no recorder was built")
	}
	return startCh, rec
}

func TestRecording_FirstFrameResolvesStart(t *testing.T) {
	f := newRecFixture(t, LensBack)
	startCh, rec := f.start(t, RecordingOptions{})

	rec.EmitStart()
	select {
	case <-startCh:
		t.Fatal("start resolved before first-frame confirmation")
	case <-time.After(20 * time.Millisecond):
	}

	// Zero-duration status is not a first frame.
	rec.EmitStatus(0)
	select {
	case <-startCh:
		t.Fatal("start resolved on a zero-duration status")
	case <-time.After(20 * time.Millisecond):
	}

	rec.EmitStatus(33 * time.Millisecond)
	select {
	case err := <-startCh:
		if err != nil {
			t.Fatalf("start resolved with error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("start never resolved after first frame")
	}
}

func TestRecording_SecondStartFailsFast(t *testing.T) {
	// A second start while one attempt is in flight fails with
	// ErrAlreadyRecording and leaves the in-flight attempt untouched.
	f := newRecFixture(t, LensBack)
	startCh, rec := f.start(t, RecordingOptions{})

	for i := 0; i < 3; i++ {
		err := f.session.Start(f.device, RecordingOptions{Dir: f.dir}, func(error) {
			t.Error("second start's callback must never resolve")
		})
		if !errors.Is(err, ErrAlreadyRecording) {
			t.Fatalf("second start: got %v, want ErrAlreadyRecording", err)
		}
	}

	// The original attempt still completes normally.
	rec.EmitStart()
	rec.EmitStatus(10 * time.Millisecond)
	select {
	case err := <-startCh:
		if err != nil {
			t.Fatalf("in-flight attempt was disturbed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("in-flight attempt never resolved")
	}
}

func TestRecording_PermissionDenied(t *testing.T) {
	f := newRecFixture(t, LensBack)
	f.session = NewRecordingSession(f.flash, StaticPermissions{Audio: false}, f.disp)

	err := f.session.Start(f.device, RecordingOptions{Dir: f.dir}, nil)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("got %v, want ErrPermissionDenied", err)
	}
	if f.session.Recording() {
		t.Error("session recording after a denied start")
	}
}

func TestRecording_NilDevice(t *testing.T) {
	f := newRecFixture(t, LensBack)
	err := f.session.Start(nil, RecordingOptions{Dir: f.dir}, nil)
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("got %v, want ErrNotInitialized", err)
	}
}

func TestRecording_ManualStop(t *testing.T) {
	f := newRecFixture(t, LensBack)
	startCh, rec := f.start(t, RecordingOptions{})
	rec.EmitStart()
	rec.EmitStatus(10 * time.Millisecond)
	if err := <-startCh; err != nil {
		t.Fatalf("start failed: %v", err)
	}

	stopCh := make(chan *RecordingResult, 1)
	err := f.session.Stop(func(result *RecordingResult, err error) {
		if err != nil {
			t.Errorf("stop resolved with error: %v", err)
		}
		stopCh <- result
	})
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if rec.StopCalls() == 0 {
		t.Fatal("platform stop was never issued")
	}

	rec.EmitStatus(500 * time.Millisecond)
	rec.EmitFinalize([]byte("video-bytes"), nil)

	select {
	case result := <-stopCh:
		if result.Path != rec.Path {
			t.Errorf("result path = %q, want %q", result.Path, rec.Path)
		}
		if result.DurationMs != 500 {
			t.Errorf("duration = %dms, want 500", result.DurationMs)
		}
		if result.Width != 1280 || result.Height != 720 {
			t.Errorf("resolution = %dx%d, want 1280x720", result.Width, result.Height)
		}
	case <-time.After(time.Second):
		t.Fatal("stop never resolved")
	}
	if f.session.Recording() {
		t.Error("session still recording after finalize")
	}
}

func TestRecording_StopBeforeFirstFrame(t *testing.T) {
	// Stop immediately after start, before any status event.
	f := newRecFixture(t, LensBack)
	startCh, rec := f.start(t, RecordingOptions{})

	stopCh := make(chan error, 1)
	if err := f.session.Stop(func(result *RecordingResult, err error) { stopCh <- err }); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	// No frames were encoded; the file stays empty.
	rec.EmitFinalize(nil, nil)

	select {
	case err := <-startCh:
		if !errors.Is(err, ErrStoppedBeforeFirstFrame) {
			t.Errorf("start error = %v, want ErrStoppedBeforeFirstFrame", err)
		}
	case <-time.After(time.Second):
		t.Fatal("start callback never resolved")
	}
	select {
	case err := <-stopCh:
		if !errors.Is(err, ErrFinalizeFailed) {
			t.Errorf("stop error = %v, want ErrFinalizeFailed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("stop callback never resolved")
	}
}

func TestRecording_StopDuringRecorderStartIsDeferred(t *testing.T) {
	// A stop landing while the platform recorder is still starting must not
	// be lost: it defers until Start has wired the recorder, then the
	// platform stop is issued against the started recorder.
	f := newRecFixture(t, LensBack)

	stopCh := make(chan error, 1)
	var stopReqErr error
	var rec *MockRecorder
	f.device.NewRecorderFunc = func(path string, withAudio bool) (Recorder, error) {
		rec = &MockRecorder{Path: path}
		rec.StartFunc = func(fn func(RecordEvent)) error {
			// The stop request arrives mid-Start, before the session has
			// published the recorder.
			stopReqErr = f.session.Stop(func(result *RecordingResult, err error) { stopCh <- err })
			rec.mu.Lock()
			rec.events = fn
			rec.started = true
			rec.mu.Unlock()
			return nil
		}
		return rec, nil
	}

	startCh := make(chan error, 1)
	if err := f.session.Start(f.device, RecordingOptions{Dir: f.dir}, func(err error) { startCh <- err }); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if stopReqErr != nil {
		t.Fatalf("stop during start failed: %v", stopReqErr)
	}
	if rec.StopCalls() == 0 {
		t.Fatal("deferred stop never reached the recorder")
	}

	// No frames were encoded; the file stays empty.
	rec.EmitFinalize(nil, nil)

	select {
	case err := <-startCh:
		if !errors.Is(err, ErrStoppedBeforeFirstFrame) {
			t.Errorf("start error = %v, want ErrStoppedBeforeFirstFrame", err)
		}
	case <-time.After(time.Second):
		t.Fatal("start callback never resolved")
	}
	select {
	case err := <-stopCh:
		if !errors.Is(err, ErrFinalizeFailed) {
			t.Errorf("stop error = %v, want ErrFinalizeFailed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("stop callback never resolved")
	}
	if f.session.Recording() {
		t.Error("session still recording after the deferred stop finalized")
	}
}

func TestRecording_AutoStop(t *testing.T) {
	// The max-duration timer stops the attempt; the auto-stop
	// listener fires exactly once; a late manual stop gets ErrNotRecording.
	f := newRecFixture(t, LensBack)

	var autoCount atomic.Int32
	resultCh := make(chan *RecordingResult, 1)
	f.session.SetAutoStopListener(func(result *RecordingResult, err error) {
		autoCount.Add(1)
		if err != nil {
			t.Errorf("auto-stop resolved with error: %v", err)
		}
		resultCh <- result
	})

	startCh, rec := f.start(t, RecordingOptions{MaxDuration: 30 * time.Millisecond})
	rec.EmitStart()
	rec.EmitStatus(5 * time.Millisecond)
	if err := <-startCh; err != nil {
		t.Fatalf("start failed: %v", err)
	}

	waitUntil(t, time.Second, func() bool { return rec.StopCalls() > 0 }, "auto-stop to reach the recorder")
	rec.EmitStatus(30 * time.Millisecond)
	rec.EmitFinalize([]byte("video-bytes"), nil)

	select {
	case result := <-resultCh:
		if result == nil {
			t.Fatal("auto-stop delivered a nil result")
		}
	case <-time.After(time.Second):
		t.Fatal("auto-stop listener never fired")
	}

	// The race loser is a no-op.
	err := f.session.Stop(func(*RecordingResult, error) {
		t.Error("late manual stop callback must not resolve")
	})
	if !errors.Is(err, ErrNotRecording) {
		t.Errorf("late stop: got %v, want ErrNotRecording", err)
	}

	time.Sleep(50 * time.Millisecond)
	if n := autoCount.Load(); n != 1 {
		t.Errorf("auto-stop listener fired %d times, want exactly 1", n)
	}
}

func TestRecording_ManualStopWinsRace(t *testing.T) {
	// A manual stop claiming the attempt first makes the auto-stop timer a
	// no-op; only the manual callback resolves.
	f := newRecFixture(t, LensBack)
	f.session.SetAutoStopListener(func(*RecordingResult, error) {
		t.Error("auto-stop listener must not fire after a manual stop won")
	})

	startCh, rec := f.start(t, RecordingOptions{MaxDuration: 40 * time.Millisecond})
	rec.EmitStart()
	rec.EmitStatus(5 * time.Millisecond)
	if err := <-startCh; err != nil {
		t.Fatalf("start failed: %v", err)
	}

	stopCh := make(chan struct{})
	if err := f.session.Stop(func(*RecordingResult, error) { close(stopCh) }); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	rec.EmitFinalize([]byte("video-bytes"), nil)

	select {
	case <-stopCh:
	case <-time.After(time.Second):
		t.Fatal("manual stop never resolved")
	}

	// Let the (cleared) timer window pass.
	time.Sleep(80 * time.Millisecond)
}

func TestRecording_EmptyOutputIsFinalizeFailed(t *testing.T) {
	// A reported-successful stop with an empty file surfaces as
	// ErrFinalizeFailed, never as success.
	f := newRecFixture(t, LensBack)
	startCh, rec := f.start(t, RecordingOptions{})
	rec.EmitStart()
	rec.EmitStatus(10 * time.Millisecond)
	<-startCh

	stopCh := make(chan error, 1)
	if err := f.session.Stop(func(result *RecordingResult, err error) {
		if result != nil {
			t.Error("empty output produced a result")
		}
		stopCh <- err
	}); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	rec.EmitFinalize(nil, nil)

	select {
	case err := <-stopCh:
		if !errors.Is(err, ErrFinalizeFailed) {
			t.Errorf("got %v, want ErrFinalizeFailed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("stop never resolved")
	}
}

func TestRecording_PlatformErrorSurfacesThroughStop(t *testing.T) {
	f := newRecFixture(t, LensBack)
	startCh, rec := f.start(t, RecordingOptions{})
	rec.EmitStart()
	rec.EmitStatus(10 * time.Millisecond)
	<-startCh

	stopCh := make(chan error, 1)
	if err := f.session.Stop(func(_ *RecordingResult, err error) { stopCh <- err }); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	rec.EmitFinalize(nil, errTest)

	select {
	case err := <-stopCh:
		if !errors.Is(err, errTest) {
			t.Errorf("stop error = %v, want wrapped %v", err, errTest)
		}
	case <-time.After(time.Second):
		t.Fatal("stop never resolved")
	}
}

func TestRecording_RecorderBuildFailureIsSynchronous(t *testing.T) {
	f := newRecFixture(t, LensBack)
	f.device.NewRecorderFunc = func(path string, withAudio bool) (Recorder, error) {
		return nil, errTest
	}

	err := f.session.Start(f.device, RecordingOptions{Dir: f.dir}, func(error) {
		t.Error("start callback must not resolve on synchronous failure")
	})
	if !errors.Is(err, errTest) {
		t.Fatalf("got %v, want wrapped %v", err, errTest)
	}
	if f.session.Recording() {
		t.Error("session recording after failed setup")
	}

	// The session is reusable after the failed attempt.
	f.device.NewRecorderFunc = nil
	if err := f.session.Start(f.device, RecordingOptions{Dir: f.dir}, nil); err != nil {
		t.Fatalf("restart after failed setup: %v", err)
	}
}

func TestRecording_SetupFailureResolvesClaimedStop(t *testing.T) {
	// A stop claims the attempt mid-Start, then the recorder fails to
	// start. No finalize event will ever arrive, so the unwind must resolve
	// the claimed stop callback itself.
	f := newRecFixture(t, LensBack)

	stopCh := make(chan error, 1)
	f.device.NewRecorderFunc = func(path string, withAudio bool) (Recorder, error) {
		return &MockRecorder{
			Path: path,
			StartFunc: func(fn func(RecordEvent)) error {
				if err := f.session.Stop(func(_ *RecordingResult, err error) { stopCh <- err }); err != nil {
					t.Errorf("stop during start failed: %v", err)
				}
				return errTest
			},
		}, nil
	}

	err := f.session.Start(f.device, RecordingOptions{Dir: f.dir}, nil)
	if !errors.Is(err, errTest) {
		t.Fatalf("got %v, want wrapped %v", err, errTest)
	}

	select {
	case err := <-stopCh:
		if !errors.Is(err, ErrFinalizeFailed) {
			t.Errorf("stop error = %v, want ErrFinalizeFailed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("claimed stop never resolved after the failed setup")
	}
	if f.session.Recording() {
		t.Error("session recording after failed setup")
	}
}

func TestRecording_SetupFailureUndoesAutoFlash(t *testing.T) {
	// Auto-flash engages before the recorder is built; a build failure must
	// reverse it.
	f := newRecFixture(t, LensBack)
	f.flash.SetMode(FlashAuto)
	f.exposure.Update(ExposureSample{ISO: 1000, ExposureTime: 50 * time.Millisecond})
	f.device.NewRecorderFunc = func(string, bool) (Recorder, error) { return nil, errTest }

	_ = f.session.Start(f.device, RecordingOptions{Dir: f.dir}, nil)
	if f.device.TorchOn() {
		t.Error("torch left on after a failed recorder build")
	}
}

func TestRecording_SpontaneousFinalizeTearsDownFlash(t *testing.T) {
	// A platform failure finalizes without any stop request; auto-flash
	// teardown must still run.
	f := newRecFixture(t, LensBack)
	f.flash.SetMode(FlashAuto)
	f.exposure.Update(ExposureSample{ISO: 1000, ExposureTime: 50 * time.Millisecond})

	startCh, rec := f.start(t, RecordingOptions{})
	rec.EmitStart()
	rec.EmitStatus(10 * time.Millisecond)
	<-startCh
	if !f.device.TorchOn() {
		t.Fatal("auto-flash did not engage")
	}

	rec.EmitFinalize(nil, errTest)
	waitUntil(t, time.Second, func() bool { return !f.session.Recording() }, "finalize to land")
	if f.device.TorchOn() {
		t.Error("spontaneous finalize left the auto-engaged torch on")
	}
}
