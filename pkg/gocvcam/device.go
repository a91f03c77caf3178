package gocvcam

import (
	"fmt"
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-camcorder/internal/log"
	"github.com/teslashibe/go-camcorder/pkg/camcorder"
)

const (
	// defaultFPS is requested when the driver does not report a rate.
	defaultFPS = 30.0

	// maxDigitalZoom bounds the center-crop zoom. Beyond 4x webcam
	// footage is unusably soft.
	maxDigitalZoom = 4.0

	// previewInterval throttles JPEG preview encoding. Preview is for
	// monitoring, not playback, so ~10 fps is plenty.
	previewInterval = 100 * time.Millisecond
)

// frameSink receives cropped BGR frames on the capture goroutine. The Mat
// is only valid for the duration of the call; sinks must clone to retain.
type frameSink func(frame gocv.Mat)

// Device is one open V4L2 camera with a background capture pump. Frames
// fan out to the active recorder sink and the preview encoder.
type Device struct {
	lens   camcorder.Lens
	index  int
	width  int
	height int
	fps    float64

	cap *gocv.VideoCapture

	mu        sync.RWMutex
	zoom      float64
	telemetry func(camcorder.ExposureSample)
	sink      frameSink
	preview   func(jpeg []byte)

	stop chan struct{}
	done chan struct{}
}

func newDevice(lens camcorder.Lens, index int, cap *gocv.VideoCapture, w, h int, fps float64) *Device {
	return &Device{
		lens:   lens,
		index:  index,
		width:  w,
		height: h,
		fps:    fps,
		cap:    cap,
		zoom:   1.0,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// start launches the capture pump.
func (d *Device) start() {
	go d.pump()
}

// pump reads frames until the device closes. Runs on its own goroutine;
// everything downstream of it is the "capture thread".
func (d *Device) pump() {
	defer close(d.done)

	frame := gocv.NewMat()
	defer frame.Close()
	zoomed := gocv.NewMat()
	defer zoomed.Close()

	lastPreview := time.Time{}
	misses := 0

	for {
		select {
		case <-d.stop:
			return
		default:
		}

		if ok := d.cap.Read(&frame); !ok || frame.Empty() {
			misses++
			if misses%100 == 1 {
				log.Warn("camera read failed", "lens", d.lens.String(), "misses", misses)
			}
			time.Sleep(10 * time.Millisecond)
			continue
		}
		misses = 0

		d.mu.RLock()
		zoom := d.zoom
		telemetry := d.telemetry
		sink := d.sink
		preview := d.preview
		d.mu.RUnlock()

		out := frame
		if zoom > 1.0 {
			cropZoom(frame, &zoomed, zoom)
			out = zoomed
		}

		if telemetry != nil {
			telemetry(d.readExposure())
		}
		if sink != nil {
			sink(out)
		}
		if preview != nil && time.Since(lastPreview) >= previewInterval {
			lastPreview = time.Now()
			if buf, err := gocv.IMEncode(".jpg", out); err == nil {
				preview(buf.GetBytes())
				buf.Close()
			}
		}
	}
}

// readExposure samples the driver's exposure controls. Many UVC drivers
// report zero for both, which downstream treats as "not dark".
func (d *Device) readExposure() camcorder.ExposureSample {
	iso := int(d.cap.Get(gocv.VideoCaptureISOSpeed))
	// V4L2 exposure is in 100µs units.
	exp := time.Duration(d.cap.Get(gocv.VideoCaptureExposure)*100) * time.Microsecond
	return camcorder.ExposureSample{ISO: iso, ExposureTime: exp}
}

// cropZoom center-crops src by the zoom ratio and scales back to full size.
func cropZoom(src gocv.Mat, dst *gocv.Mat, zoom float64) {
	w, h := src.Cols(), src.Rows()
	cw := int(float64(w) / zoom)
	ch := int(float64(h) / zoom)
	if cw < 2 || ch < 2 {
		src.CopyTo(dst)
		return
	}
	x := (w - cw) / 2
	y := (h - ch) / 2
	region := src.Region(image.Rect(x, y, x+cw, y+ch))
	gocv.Resize(region, dst, image.Pt(w, h), 0, 0, gocv.InterpolationLinear)
	region.Close()
}

// Lens returns the bound lens.
func (d *Device) Lens() camcorder.Lens { return d.lens }

// PreviewID identifies the V4L2 node feeding the preview stream.
func (d *Device) PreviewID() string {
	return fmt.Sprintf("v4l2:/dev/video%d", d.index)
}

// PreviewSize returns the negotiated capture dimensions.
func (d *Device) PreviewSize() (int, int) { return d.width, d.height }

// HasTorch reports false: webcam-class hardware has no flash unit.
func (d *Device) HasTorch() bool { return false }

// SetTorch always fails; there is no torch to drive.
func (d *Device) SetTorch(on bool) error { return ErrUnsupported }

// ZoomRange returns the digital zoom bounds.
func (d *Device) ZoomRange() (min, max float64) { return 1.0, maxDigitalZoom }

// SetZoom updates the digital center-crop ratio.
func (d *Device) SetZoom(ratio float64) error {
	d.mu.Lock()
	d.zoom = ratio
	d.mu.Unlock()
	return nil
}

// SupportsFocusPoint reports false; UVC exposes no metering regions.
func (d *Device) SupportsFocusPoint() bool { return false }

// SupportsExposurePoint reports false; UVC exposes no metering regions.
func (d *Device) SupportsExposurePoint() bool { return false }

// SetFocusPoint is unsupported on this platform.
func (d *Device) SetFocusPoint(x, y float64) error { return ErrUnsupported }

// SetExposurePoint is unsupported on this platform.
func (d *Device) SetExposurePoint(x, y float64) error { return ErrUnsupported }

// OnTelemetry registers the exposure telemetry sink.
func (d *Device) OnTelemetry(fn func(camcorder.ExposureSample)) {
	d.mu.Lock()
	d.telemetry = fn
	d.mu.Unlock()
}

// OnPreviewFrame registers a JPEG preview consumer. Pass nil to stop
// preview encoding.
func (d *Device) OnPreviewFrame(fn func(jpeg []byte)) {
	d.mu.Lock()
	d.preview = fn
	d.mu.Unlock()
}

// NewRecorder arms a recorder writing MP4 to path. Audio capture is not
// available through OpenCV; withAudio is accepted and ignored.
func (d *Device) NewRecorder(path string, withAudio bool) (camcorder.Recorder, error) {
	if withAudio {
		log.Debug("audio requested but not supported, recording video only", "path", path)
	}
	return newRecorder(d, path), nil
}

// setSink installs or clears the recorder frame sink.
func (d *Device) setSink(fn frameSink) {
	d.mu.Lock()
	d.sink = fn
	d.mu.Unlock()
}

// Close stops the capture pump and releases the V4L2 handle.
func (d *Device) Close() error {
	select {
	case <-d.stop:
		return nil // already closed
	default:
		close(d.stop)
	}
	<-d.done
	return d.cap.Close()
}

var _ camcorder.Device = (*Device)(nil)
