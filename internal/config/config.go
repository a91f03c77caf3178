// Package config provides configuration helpers for go-camcorder commands.
package config

import (
	"os"
	"strconv"
)

// Default daemon configuration.
const (
	DefaultPort        = "8090"
	DefaultBackDevice  = 0
	DefaultFrontDevice = 1
)

// Port returns the control server port from CAMERA_PORT env var.
// Falls back to DefaultPort if not set.
func Port() string {
	if p := os.Getenv("CAMERA_PORT"); p != "" {
		return p
	}
	return DefaultPort
}

// BackDevice returns the back-lens capture device index from
// CAMERA_BACK_DEVICE. Falls back to DefaultBackDevice.
func BackDevice() int {
	return envInt("CAMERA_BACK_DEVICE", DefaultBackDevice)
}

// FrontDevice returns the front-lens capture device index from
// CAMERA_FRONT_DEVICE. Falls back to DefaultFrontDevice.
func FrontDevice() int {
	return envInt("CAMERA_FRONT_DEVICE", DefaultFrontDevice)
}

// OutputDir returns the recording output directory from CAMERA_OUTPUT_DIR.
// Falls back to the provided default if not set.
func OutputDir(defaultDir string) string {
	if dir := os.Getenv("CAMERA_OUTPUT_DIR"); dir != "" {
		return dir
	}
	return defaultDir
}

// LogLevel returns the log level from LOG_LEVEL env var or "info".
func LogLevel() string {
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		return lvl
	}
	return "info"
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
