package camcorder

import (
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-camcorder/internal/log"
	"github.com/teslashibe/go-camcorder/pkg/camcorder/storage"
)

// recState is the explicit recording state machine:
//
//	Idle -> Starting -> AwaitingFirstFrame -> Active -> Stopping -> Idle
//
// Each state carries exactly the callbacks legal for it via the attempt
// struct; callback slots are consumed on resolve, so resolving twice is
// structurally impossible.
type recState int

const (
	stateIdle recState = iota
	stateStarting
	stateAwaitingFirstFrame
	stateActive
	stateStopping
)

// stopOrigin records which stop path claimed the attempt.
type stopOrigin int

const (
	stopNone stopOrigin = iota
	stopManual
	stopAuto
)

// attempt is one start-to-finalize recording cycle. At most one attempt is
// live at a time.
type attempt struct {
	id          string
	path        string
	maxDuration time.Duration

	width  int
	height int

	// startedAt is captured at first-frame confirmation, not at the start
	// request.
	startedAt    time.Time
	trulyStarted bool

	// recordedDuration tracks the encoder's reported output duration.
	recordedDuration time.Duration

	recorder Recorder

	// stopPending defers the platform stop when a stop request raced the
	// recorder still being built.
	stopPending bool

	// Pending callback slots, consumed on resolve.
	startCB StartCallback
	stopCB  StopCallback
	origin  stopOrigin

	autoStopTimer *time.Timer
}

// RecordingSession governs recording attempts: start request, encoder
// armed, first-frame confirmation, active recording, stop (manual or
// auto-timeout), and the finalized result or failure.
type RecordingSession struct {
	flash *FlashController
	perms PermissionChecker
	disp  *dispatcher

	mu         sync.Mutex
	state      recState
	att        *attempt
	onAutoStop StopCallback
}

// NewRecordingSession creates an idle session. Recorder events are funneled
// through disp so they never interleave with each other.
func NewRecordingSession(flash *FlashController, perms PermissionChecker, disp *dispatcher) *RecordingSession {
	return &RecordingSession{
		flash: flash,
		perms: perms,
		disp:  disp,
	}
}

// SetAutoStopListener registers the callback notified exactly once per
// automatically-terminated attempt. Auto-stop takes no caller callback
// directly.
func (s *RecordingSession) SetAutoStopListener(cb StopCallback) {
	s.mu.Lock()
	s.onAutoStop = cb
	s.mu.Unlock()
}

// Recording reports whether an attempt is in flight.
func (s *RecordingSession) Recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != stateIdle
}

// Start begins a recording attempt on the bound device. Precondition
// failures and resource-setup errors are reported synchronously; cb is
// resolved asynchronously once the first encoded frame is confirmed, or
// with an error if the attempt dies before that.
func (s *RecordingSession) Start(device Device, opts RecordingOptions, cb StartCallback) error {
	if device == nil {
		return ErrNotInitialized
	}

	s.mu.Lock()
	if s.state != stateIdle {
		s.mu.Unlock()
		// Fail fast without touching the in-flight attempt's callbacks.
		return ErrAlreadyRecording
	}
	if !s.perms.AudioGranted() {
		s.mu.Unlock()
		return ErrPermissionDenied
	}

	path, err := storage.NewRecordingPath(opts.Dir)
	if err != nil {
		s.mu.Unlock()
		return opErr("create output file", err)
	}

	w, h := device.PreviewSize()
	att := &attempt{
		id:          uuid.New().String(),
		path:        path,
		maxDuration: opts.MaxDuration,
		width:       w,
		height:      h,
		startCB:     cb,
	}
	s.att = att
	s.state = stateStarting
	s.mu.Unlock()

	// Auto-flash decides here, before the recorder starts, using the
	// freshest exposure sample.
	s.flash.OnRecordingStart(device.Lens())

	rec, err := device.NewRecorder(path, true)
	if err != nil {
		s.abortSetup(att)
		return opErr("build recorder", err)
	}

	handler := func(ev RecordEvent) {
		s.disp.Do(func() { s.onEvent(att, ev) })
	}
	if err := rec.Start(handler); err != nil {
		s.abortSetup(att)
		return opErr("start recorder", err)
	}

	// The recorder is published only after Start wired the handler. A stop
	// arriving before this point finds recorder nil, defers via
	// stopPending, and is issued here against the now-started recorder.
	s.mu.Lock()
	att.recorder = rec
	stopNow := att.stopPending
	att.stopPending = false
	s.mu.Unlock()
	if stopNow {
		if err := rec.Stop(); err != nil {
			log.Warn("recorder stop failed", "attempt", att.id, "error", err)
		}
	}

	log.Debug("recording starting", "attempt", att.id, "path", path)
	return nil
}

// abortSetup unwinds a failed start before any recorder event could fire.
// A stop that claimed the attempt during setup is resolved here; no
// finalize event will ever arrive to do it.
func (s *RecordingSession) abortSetup(att *attempt) {
	s.flash.OnRecordingStop()
	s.mu.Lock()
	var stopCB StopCallback
	if s.att == att {
		stopCB = att.stopCB
		att.stopCB = nil
		s.att = nil
		s.state = stateIdle
	}
	s.mu.Unlock()
	if stopCB != nil {
		stopCB(nil, ErrFinalizeFailed)
	}
	if err := os.Remove(att.path); err != nil && !os.IsNotExist(err) {
		log.Warn("removing aborted output failed", "path", att.path, "error", err)
	}
}

// Stop requests a manual stop. cb is resolved once the recorder finalizes.
// Returns ErrNotRecording when no attempt is in flight or another stop
// already claimed the attempt.
func (s *RecordingSession) Stop(cb StopCallback) error {
	s.mu.Lock()
	switch s.state {
	case stateStarting, stateAwaitingFirstFrame, stateActive:
	default:
		s.mu.Unlock()
		return ErrNotRecording
	}
	att := s.att
	att.stopCB = cb
	att.origin = stopManual
	s.state = stateStopping
	s.mu.Unlock()

	s.issueStop(att)
	return nil
}

// autoStop fires when the max-duration timer elapses. It loses quietly to a
// concurrent manual stop: whichever request reaches the recorder first is
// authoritative.
func (s *RecordingSession) autoStop(att *attempt) {
	s.mu.Lock()
	if s.att != att || s.state != stateActive {
		s.mu.Unlock()
		return
	}
	att.origin = stopAuto
	s.state = stateStopping
	s.mu.Unlock()

	log.Debug("auto-stop elapsed", "attempt", att.id)
	s.issueStop(att)
}

// issueStop tears down flash for the attempt and asks the platform to
// finalize. The recorder is idempotent to a second stop call. If the
// recorder is still being built, the stop is deferred until Start finishes
// wiring it.
func (s *RecordingSession) issueStop(att *attempt) {
	s.flash.OnRecordingStop()

	s.mu.Lock()
	rec := att.recorder
	if rec == nil {
		att.stopPending = true
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if err := rec.Stop(); err != nil {
		// Captured, not rethrown: the failure surfaces through finalize.
		log.Warn("recorder stop failed", "attempt", att.id, "error", err)
	}
}

// onEvent handles one recorder lifecycle event on the dispatcher goroutine.
// Events for a superseded attempt are ignored.
func (s *RecordingSession) onEvent(att *attempt, ev RecordEvent) {
	s.mu.Lock()
	if s.att != att {
		s.mu.Unlock()
		return
	}

	switch ev.Kind {
	case EventStart:
		if s.state == stateStarting {
			s.state = stateAwaitingFirstFrame
		}
		s.mu.Unlock()

	case EventStatus:
		att.recordedDuration = ev.RecordedDuration
		if s.state == stateAwaitingFirstFrame && ev.RecordedDuration > 0 {
			// First-frame confirmation: the true "recording started" signal.
			s.state = stateActive
			att.startedAt = time.Now()
			att.trulyStarted = true
			startCB := att.startCB
			att.startCB = nil
			if att.maxDuration > 0 {
				att.autoStopTimer = time.AfterFunc(att.maxDuration, func() {
					s.autoStop(att)
				})
			}
			s.mu.Unlock()
			if startCB != nil {
				startCB(nil)
			}
			return
		}
		s.mu.Unlock()

	case EventFinalize:
		s.finalizeLocked(att, ev)
	}
}

// finalizeLocked completes the attempt. Called with s.mu held; releases it.
func (s *RecordingSession) finalizeLocked(att *attempt, ev RecordEvent) {
	// (1) Clear the auto-stop timer if still pending.
	if att.autoStopTimer != nil {
		att.autoStopTimer.Stop()
		att.autoStopTimer = nil
	}

	// A spontaneous platform failure finalizes without either stop path
	// having run flash teardown.
	needFlashTeardown := s.state != stateStopping

	// (2) If the start callback was never resolved, the attempt died before
	// its first frame.
	startCB := att.startCB
	att.startCB = nil

	stopCB := att.stopCB
	att.stopCB = nil
	origin := att.origin
	onAutoStop := s.onAutoStop

	s.att = nil
	s.state = stateIdle
	s.mu.Unlock()

	if needFlashTeardown {
		s.flash.OnRecordingStop()
	}

	// (3) Compute the result. Validity is decided by the output file, not
	// by what the platform reported.
	result, err := att.result(ev)

	if startCB != nil {
		startCB(ErrStoppedBeforeFirstFrame)
	}

	// (4) Resolve exactly one pending stop channel.
	switch {
	case stopCB != nil:
		stopCB(result, err)
	case origin == stopAuto && onAutoStop != nil:
		onAutoStop(result, err)
	case err != nil:
		// Nobody asked for a stop and the start already resolved; the
		// failure still must not vanish silently.
		log.Error("recording failed with no pending callback",
			"attempt", att.id, "error", err)
	}

	if err != nil {
		log.Info("recording finalized", "attempt", att.id, "error", err)
	} else {
		log.Info("recording finalized", "attempt", att.id,
			"path", result.Path, "duration_ms", result.DurationMs)
	}
}

// result validates the finalized output. A recording is usable if and only
// if the output file exists and has nonzero size.
func (a *attempt) result(ev RecordEvent) (*RecordingResult, error) {
	info, statErr := os.Stat(a.path)
	usable := statErr == nil && info.Size() > 0

	if !usable {
		if ev.Err != nil {
			return nil, opErr("finalize", ev.Err)
		}
		return nil, ErrFinalizeFailed
	}
	if ev.Err != nil {
		// The file is usable despite the reported failure; keep it.
		log.Warn("platform reported finalize error but output is usable",
			"attempt", a.id, "error", ev.Err)
	}

	duration := a.recordedDuration
	if duration == 0 && a.trulyStarted {
		duration = time.Since(a.startedAt)
	}
	return &RecordingResult{
		Path:       a.path,
		DurationMs: duration.Milliseconds(),
		Width:      a.width,
		Height:     a.height,
	}, nil
}
