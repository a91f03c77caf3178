// Package gocvcam implements the camcorder platform interfaces on top of
// OpenCV video capture. It targets Linux boards with one or two V4L2
// cameras: a "back" camera (the primary sensor) and an optional "front"
// camera. Webcam-class hardware has no flash unit and no metering points,
// so torch and tap-to-focus report unsupported and zoom is digital.
package gocvcam

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-camcorder/internal/log"
	"github.com/teslashibe/go-camcorder/pkg/camcorder"
)

// ErrUnsupported is returned for hardware controls V4L2 webcams lack.
var ErrUnsupported = errors.New("gocvcam: not supported by this camera")

// Platform maps lenses to V4L2 device indices. An index of -1 marks the
// lens as absent.
type Platform struct {
	back  int
	front int
}

// New creates a platform with the given V4L2 device indices. Pass -1 for
// a lens that does not exist on this board.
func New(backIndex, frontIndex int) *Platform {
	return &Platform{back: backIndex, front: frontIndex}
}

// HasLens reports whether a device index is configured for the lens.
func (p *Platform) HasLens(lens camcorder.Lens) bool {
	return p.index(lens) >= 0
}

// OpenDevice opens the V4L2 device for the lens at the requested quality.
func (p *Platform) OpenDevice(lens camcorder.Lens, quality camcorder.Quality) (camcorder.Device, error) {
	idx := p.index(lens)
	if idx < 0 {
		return nil, fmt.Errorf("gocvcam: no device index for lens %s", lens)
	}

	cap, err := gocv.OpenVideoCapture(idx)
	if err != nil {
		return nil, fmt.Errorf("gocvcam: open /dev/video%d: %w", idx, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("gocvcam: /dev/video%d did not open", idx)
	}

	w, h := quality.Resolution()
	cap.Set(gocv.VideoCaptureFrameWidth, float64(w))
	cap.Set(gocv.VideoCaptureFrameHeight, float64(h))
	cap.Set(gocv.VideoCaptureFPS, defaultFPS)

	// The driver may refuse the requested mode; report what it granted.
	gotW := int(cap.Get(gocv.VideoCaptureFrameWidth))
	gotH := int(cap.Get(gocv.VideoCaptureFrameHeight))
	if gotW > 0 && gotH > 0 {
		w, h = gotW, gotH
	}
	fps := cap.Get(gocv.VideoCaptureFPS)
	if fps <= 0 {
		fps = defaultFPS
	}

	log.Info("camera opened",
		"lens", lens.String(),
		"device", fmt.Sprintf("/dev/video%d", idx),
		"width", w, "height", h, "fps", fps)

	d := newDevice(lens, idx, cap, w, h, fps)
	d.start()
	return d, nil
}

func (p *Platform) index(lens camcorder.Lens) int {
	if lens == camcorder.LensFront {
		return p.front
	}
	return p.back
}

// Ensure the platform satisfies the injected interface.
var _ camcorder.Platform = (*Platform)(nil)
