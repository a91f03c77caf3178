package camcorder

import (
	"sync"
	"time"

	"github.com/teslashibe/go-camcorder/internal/log"
)

// RecordEventKind tags a recorder lifecycle event.
type RecordEventKind int

const (
	// EventStart signals the platform recorder has begun. Internal only:
	// the caller-facing start callback waits for the first encoded frame.
	EventStart RecordEventKind = iota
	// EventStatus carries encoder progress.
	EventStatus
	// EventFinalize is the terminal event: the output file is fully
	// written, successfully or with Err set.
	EventFinalize
)

// RecordEvent is one platform recorder lifecycle event.
type RecordEvent struct {
	Kind RecordEventKind

	// RecordedDuration is the encoded output duration so far (Status).
	// The first nonzero value is the true "recording started" signal.
	RecordedDuration time.Duration

	// Err is the platform failure on a Finalize event, if any.
	Err error
}

// dispatcher serializes hardware-callback work onto a single goroutine so
// recorder events and telemetry-driven transitions cannot interleave with
// each other. Public controller methods may still interleave with it.
type dispatcher struct {
	mu     sync.Mutex
	tasks  chan func()
	closed bool
	done   chan struct{}
}

func newDispatcher() *dispatcher {
	d := &dispatcher{
		tasks: make(chan func(), 64),
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *dispatcher) run() {
	defer close(d.done)
	for fn := range d.tasks {
		fn()
	}
}

// Do enqueues fn on the serializing queue. Work submitted after shutdown is
// dropped instead of panicking, so late hardware callbacks drain harmlessly.
func (d *dispatcher) Do(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		log.Debug("dispatcher: dropping task after shutdown")
		return
	}
	select {
	case d.tasks <- fn:
	default:
		log.Warn("dispatcher: queue full, dropping task")
	}
}

// Close shuts the queue down after a grace period, letting in-flight
// hardware callbacks land without rejected-after-shutdown errors.
func (d *dispatcher) Close(grace time.Duration) {
	go func() {
		if grace > 0 {
			time.Sleep(grace)
		}
		d.mu.Lock()
		if !d.closed {
			d.closed = true
			close(d.tasks)
		}
		d.mu.Unlock()
	}()
}

// Wait blocks until the run loop has drained after Close.
func (d *dispatcher) Wait() {
	<-d.done
}
