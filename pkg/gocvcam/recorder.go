package gocvcam

import (
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-camcorder/internal/log"
	"github.com/teslashibe/go-camcorder/pkg/camcorder"
)

// statusInterval paces progress events after the first encoded frame.
const statusInterval = 500 * time.Millisecond

// recorderQueueDepth buffers cloned frames between the capture pump and
// the encoder goroutine. Overflow drops frames rather than stalling capture.
const recorderQueueDepth = 8

// Recorder writes device frames to an MP4 container via OpenCV's
// VideoWriter and reports the start/status/finalize lifecycle.
type Recorder struct {
	device *Device
	path   string

	mu      sync.Mutex
	started bool
	stopped bool

	frames chan gocv.Mat
	done   chan struct{}
}

func newRecorder(d *Device, path string) *Recorder {
	return &Recorder{
		device: d,
		path:   path,
		frames: make(chan gocv.Mat, recorderQueueDepth),
		done:   make(chan struct{}),
	}
}

// Start opens the writer and begins draining device frames. Events are
// delivered to fn on the encoder goroutine.
func (r *Recorder) Start(fn func(ev camcorder.RecordEvent)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return fmt.Errorf("gocvcam: recorder already started")
	}

	w, h := r.device.PreviewSize()
	writer, err := gocv.VideoWriterFile(r.path, "mp4v", r.device.fps, w, h, true)
	if err != nil {
		return fmt.Errorf("gocvcam: open writer %s: %w", r.path, err)
	}
	if !writer.IsOpened() {
		writer.Close()
		return fmt.Errorf("gocvcam: writer did not open for %s", r.path)
	}

	r.started = true
	r.device.setSink(r.enqueue)
	go r.encode(writer, fn)
	return nil
}

// enqueue clones a capture frame into the encoder queue. Runs on the
// capture goroutine; drops when the encoder falls behind. The mutex
// prevents a send racing the queue close in Stop.
func (r *Recorder) enqueue(frame gocv.Mat) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	clone := frame.Clone()
	select {
	case r.frames <- clone:
	default:
		clone.Close()
		log.Debug("recorder queue full, dropping frame", "path", r.path)
	}
}

// encode drains the frame queue into the writer and emits lifecycle
// events. Exits when Stop closes the queue.
func (r *Recorder) encode(writer *gocv.VideoWriter, fn func(ev camcorder.RecordEvent)) {
	defer close(r.done)

	fn(camcorder.RecordEvent{Kind: camcorder.EventStart})

	var written int64
	var writeErr error
	lastStatus := time.Time{}

	for frame := range r.frames {
		if writeErr == nil {
			if err := writer.Write(frame); err != nil {
				writeErr = fmt.Errorf("gocvcam: write frame: %w", err)
				log.Error("recorder write failed", "path", r.path, "error", err)
			} else {
				written++
			}
		}
		frame.Close()

		// First frame confirms recording; after that, pace the updates.
		if written > 0 && (written == 1 || time.Since(lastStatus) >= statusInterval) {
			lastStatus = time.Now()
			fn(camcorder.RecordEvent{
				Kind:             camcorder.EventStatus,
				RecordedDuration: r.durationOf(written),
			})
		}
	}

	if err := writer.Close(); err != nil && writeErr == nil {
		writeErr = fmt.Errorf("gocvcam: close writer: %w", err)
	}

	fn(camcorder.RecordEvent{
		Kind:             camcorder.EventFinalize,
		RecordedDuration: r.durationOf(written),
		Err:              writeErr,
	})
}

// durationOf converts an encoded frame count to output duration.
func (r *Recorder) durationOf(frames int64) time.Duration {
	return time.Duration(float64(frames) / r.device.fps * float64(time.Second))
}

// Stop detaches from the device and finalizes the container. Idempotent.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started || r.stopped {
		return nil
	}
	r.stopped = true

	r.device.setSink(nil)
	close(r.frames)
	<-r.done
	return nil
}

var _ camcorder.Recorder = (*Recorder)(nil)
