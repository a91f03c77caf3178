package camcorder

import (
	"sync"
	"time"
)

// Darkness thresholds. The front lens uses lower thresholds because the
// screen-flash workaround is less intrusive than the physical torch.
// Either threshold alone classifies the scene as dark.
const (
	FrontDarkISO      = 650
	FrontDarkExposure = 20 * time.Millisecond
	BackDarkISO       = 800
	BackDarkExposure  = 40 * time.Millisecond
)

// ExposureMonitor passively observes per-frame exposure telemetry from the
// active device. Updates are last-write-wins with no debouncing; readers
// may observe a slightly stale but monotonically-freshening value.
type ExposureMonitor struct {
	mu        sync.RWMutex
	sample    ExposureSample
	hasSample bool
}

// NewExposureMonitor creates an empty monitor.
func NewExposureMonitor() *ExposureMonitor {
	return &ExposureMonitor{}
}

// Update stores the latest telemetry sample.
func (m *ExposureMonitor) Update(sample ExposureSample) {
	m.mu.Lock()
	m.sample = sample
	m.hasSample = true
	m.mu.Unlock()
}

// Latest returns the freshest sample and whether any sample has arrived.
func (m *ExposureMonitor) Latest() (ExposureSample, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sample, m.hasSample
}

// Reset clears the stored sample, e.g. across a lens switch where stale
// telemetry from the previous sensor would mislead the darkness check.
func (m *ExposureMonitor) Reset() {
	m.mu.Lock()
	m.sample = ExposureSample{}
	m.hasSample = false
	m.mu.Unlock()
}

// IsDark classifies the scene using the freshest sample and lens-specific
// thresholds. Evaluated once per recording attempt, at the instant the
// start request arrives; auto-flash does not adapt mid-recording.
//
// Before the first sample arrives the scene reports as not dark, so a
// recording started on a cold monitor never engages auto-flash.
func (m *ExposureMonitor) IsDark(lens Lens) bool {
	sample, ok := m.Latest()
	if !ok {
		return false
	}
	if lens == LensFront {
		return sample.ISO >= FrontDarkISO || sample.ExposureTime >= FrontDarkExposure
	}
	return sample.ISO >= BackDarkISO || sample.ExposureTime >= BackDarkExposure
}
