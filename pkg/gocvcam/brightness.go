package gocvcam

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/teslashibe/go-camcorder/internal/log"
	"github.com/teslashibe/go-camcorder/pkg/camcorder"
)

const backlightRoot = "/sys/class/backlight"

// SysfsBrightness drives a Linux backlight device for the screen-flash
// workaround. SetMaximum saves the current level once; Restore writes it
// back and forgets it, so redundant restores are harmless.
type SysfsBrightness struct {
	dir string

	mu    sync.Mutex
	saved int
	held  bool
}

// NewSysfsBrightness binds the named backlight device, e.g.
// "intel_backlight".
func NewSysfsBrightness(name string) (*SysfsBrightness, error) {
	dir := filepath.Join(backlightRoot, name)
	if _, err := os.Stat(filepath.Join(dir, "brightness")); err != nil {
		return nil, fmt.Errorf("gocvcam: backlight %s: %w", name, err)
	}
	return &SysfsBrightness{dir: dir}, nil
}

// DetectBrightness returns the first available backlight device, or a
// no-op control when the board has none.
func DetectBrightness() camcorder.BrightnessControl {
	entries, err := os.ReadDir(backlightRoot)
	if err == nil {
		for _, e := range entries {
			if b, err := NewSysfsBrightness(e.Name()); err == nil {
				log.Info("backlight detected", "device", e.Name())
				return b
			}
		}
	}
	log.Info("no backlight device, screen flash will be a no-op")
	return NoopBrightness{}
}

// SetMaximum saves the current level and writes max_brightness.
func (b *SysfsBrightness) SetMaximum() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	cur, err := b.read("brightness")
	if err != nil {
		return err
	}
	max, err := b.read("max_brightness")
	if err != nil {
		return err
	}
	if !b.held {
		b.saved = cur
		b.held = true
	}
	return b.write(max)
}

// Restore puts the saved level back. A restore without a prior override
// is a no-op.
func (b *SysfsBrightness) Restore() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.held {
		return nil
	}
	b.held = false
	return b.write(b.saved)
}

func (b *SysfsBrightness) read(file string) (int, error) {
	data, err := os.ReadFile(filepath.Join(b.dir, file))
	if err != nil {
		return 0, fmt.Errorf("gocvcam: read %s: %w", file, err)
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("gocvcam: parse %s: %w", file, err)
	}
	return v, nil
}

func (b *SysfsBrightness) write(level int) error {
	path := filepath.Join(b.dir, "brightness")
	if err := os.WriteFile(path, []byte(strconv.Itoa(level)), 0o644); err != nil {
		return fmt.Errorf("gocvcam: write brightness: %w", err)
	}
	return nil
}

// NoopBrightness satisfies BrightnessControl on boards without a
// controllable display.
type NoopBrightness struct{}

// SetMaximum does nothing.
func (NoopBrightness) SetMaximum() error { return nil }

// Restore does nothing.
func (NoopBrightness) Restore() error { return nil }

var (
	_ camcorder.BrightnessControl = (*SysfsBrightness)(nil)
	_ camcorder.BrightnessControl = NoopBrightness{}
)
