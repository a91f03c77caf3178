// camerad - Camera recording daemon
// Exposes the camera controller over HTTP and websocket, with JPEG
// preview streaming and MP4 recording to local storage.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-camcorder/internal/config"
	"github.com/teslashibe/go-camcorder/internal/log"
	"github.com/teslashibe/go-camcorder/pkg/camcorder"
	"github.com/teslashibe/go-camcorder/pkg/camcorder/storage"
	"github.com/teslashibe/go-camcorder/pkg/gocvcam"
	"github.com/teslashibe/go-camcorder/pkg/web"
)

func main() {
	port := flag.String("port", config.Port(), "HTTP listen port")
	backDev := flag.Int("back", config.BackDevice(), "V4L2 index for the back camera (-1 = absent)")
	frontDev := flag.Int("front", config.FrontDevice(), "V4L2 index for the front camera (-1 = absent)")
	lensName := flag.String("lens", "back", "Initial lens: back or front")
	qualityName := flag.String("quality", "720p", "Quality preset: low, sd, 720p, 1080p, 4k")
	screenFlash := flag.Bool("screen-flash", true, "Allow full-brightness screen flash on flashless lenses")
	outDir := flag.String("out", "", "Recording output directory (default: user cache)")
	audio := flag.Bool("audio", true, "Report audio permission as granted (no runtime permission model on this platform)")
	flag.Parse()

	log.Init(config.LogLevel())

	lens, err := camcorder.ParseLens(*lensName)
	if err != nil {
		log.Error("invalid lens", "error", err)
		os.Exit(1)
	}
	quality, err := camcorder.ParseQuality(*qualityName)
	if err != nil {
		log.Error("invalid quality", "error", err)
		os.Exit(1)
	}

	outputDir := *outDir
	if outputDir == "" {
		outputDir = config.OutputDir("")
	}
	if outputDir == "" {
		outputDir, err = (storage.CachePolicy{}).Dir()
		if err != nil {
			log.Error("no output directory available", "error", err)
			os.Exit(1)
		}
	}

	platform := gocvcam.New(*backDev, *frontDev)
	brightness := gocvcam.DetectBrightness()
	perms := camcorder.StaticPermissions{Audio: *audio}

	controller := camcorder.New(platform, brightness, perms)
	defer controller.Release()

	state, err := controller.Initialize(lens, quality, *screenFlash)
	if err != nil {
		log.Error("camera initialization failed", "error", err)
		os.Exit(1)
	}
	log.Info("camera ready",
		"lens", state.Lens,
		"flash", state.HasFlash,
		"preview", state.PreviewID)

	server := web.NewServer(*port, controller, outputDir)

	// Feed preview frames from the active device into the websocket hub.
	// Re-wired on every state change so lens switches keep streaming.
	wirePreview := func() {
		if d, ok := controller.Device().(*gocvcam.Device); ok {
			d.OnPreviewFrame(server.SendPreviewFrame)
		}
	}
	wirePreview()
	broadcast := controller.OnStateChange
	controller.OnStateChange = func(st camcorder.CameraState) {
		wirePreview()
		broadcast(st)
	}

	server.StartAsync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	<-ctx.Done()

	log.Info("shutting down")
	if err := server.Shutdown(); err != nil {
		log.Warn("server shutdown", "error", err)
	}
}
