// record - One-shot recording CLI
// Opens a camera, records for a fixed duration, prints the output path.
// With -fake it runs against the in-memory platform, useful for trying
// the recording pipeline on machines without a camera.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/teslashibe/go-camcorder/internal/config"
	"github.com/teslashibe/go-camcorder/internal/log"
	"github.com/teslashibe/go-camcorder/pkg/camcorder"
	"github.com/teslashibe/go-camcorder/pkg/camcorder/storage"
	"github.com/teslashibe/go-camcorder/pkg/gocvcam"
)

// recordPerms reports audio as granted: there is no runtime permission
// model on this platform, and the gocv shim records video-only anyway.
var recordPerms = camcorder.StaticPermissions{Audio: true}

func main() {
	lensName := flag.String("lens", "back", "Lens: back or front")
	qualityName := flag.String("quality", "720p", "Quality preset: low, sd, 720p, 1080p, 4k")
	seconds := flag.Float64("seconds", 5, "Recording duration in seconds")
	outDir := flag.String("out", "", "Output directory (default: user cache)")
	fake := flag.Bool("fake", false, "Use the in-memory platform instead of real hardware")
	flag.Parse()

	log.Init(config.LogLevel())

	lens, err := camcorder.ParseLens(*lensName)
	if err != nil {
		fatal(err)
	}
	quality, err := camcorder.ParseQuality(*qualityName)
	if err != nil {
		fatal(err)
	}
	if *seconds <= 0 {
		fatal(fmt.Errorf("seconds must be positive"))
	}

	dir := *outDir
	if dir == "" {
		dir = config.OutputDir("")
	}
	if dir == "" {
		if dir, err = (storage.CachePolicy{}).Dir(); err != nil {
			fatal(err)
		}
	}

	var platform camcorder.Platform
	var mock *camcorder.MockPlatform
	if *fake {
		mock = camcorder.NewMockPlatform()
		platform = mock
	} else {
		platform = gocvcam.New(config.BackDevice(), config.FrontDevice())
	}

	controller := camcorder.New(platform, gocvcam.NoopBrightness{}, recordPerms)
	defer controller.Release()

	if _, err := controller.Initialize(lens, quality, false); err != nil {
		fatal(err)
	}

	// Auto-stop carries the result; the duration cap does the stopping.
	done := make(chan error, 1)
	controller.SetAutoStopListener(func(result *camcorder.RecordingResult, err error) {
		if err != nil {
			done <- err
			return
		}
		fmt.Printf("recorded %s (%dms, %dx%d)\n",
			result.Path, result.DurationMs, result.Width, result.Height)
		done <- nil
	})

	opts := camcorder.RecordingOptions{
		Dir:         dir,
		MaxDuration: time.Duration(*seconds * float64(time.Second)),
	}
	started := make(chan error, 1)
	if err := controller.StartRecording(opts, func(err error) { started <- err }); err != nil {
		fatal(err)
	}

	if *fake {
		go driveFakeRecorder(mock)
	}

	if err := <-started; err != nil {
		fatal(err)
	}
	log.Info("recording", "seconds", *seconds)

	select {
	case err := <-done:
		if err != nil {
			fatal(err)
		}
	case <-time.After(opts.MaxDuration + 30*time.Second):
		fatal(fmt.Errorf("recording did not finalize"))
	}
}

// driveFakeRecorder emits a synthetic recorder lifecycle against the mock
// platform: start, ~10 status events per second, finalize once stopped.
func driveFakeRecorder(p *camcorder.MockPlatform) {
	var rec *camcorder.MockRecorder
	for i := 0; i < 100; i++ {
		if d := p.LastDevice(); d != nil {
			if rec = d.LastRecorder(); rec != nil {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	if rec == nil {
		return
	}

	rec.EmitStart()
	startedAt := time.Now()
	for rec.StopCalls() == 0 {
		time.Sleep(100 * time.Millisecond)
		rec.EmitStatus(time.Since(startedAt))
	}
	rec.EmitFinalize([]byte("fake mp4 payload"), nil)
}

func fatal(err error) {
	log.Error("record failed", "error", err)
	os.Exit(1)
}
