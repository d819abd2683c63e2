package peerlink

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// MediaDevice is the capture device surface. Acquire returns a release
// function that stops every track it produced.
type MediaDevice interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// MediaController serializes access to the singleton capture device:
// overlapping acquisition calls would leak duplicate tracks, so toggles run
// one at a time.
type MediaController struct {
	device MediaDevice
	logger *slog.Logger

	mu      sync.Mutex
	enabled bool
	release func()
	lastErr string
}

func NewMediaController(device MediaDevice, logger *slog.Logger) *MediaController {
	return &MediaController{
		device: device,
		logger: logger,
	}
}

// SetEnabled toggles capture. On acquisition failure the previous state is
// kept, any partially-acquired track has been stopped by the device, and a
// user-visible status is recorded.
func (m *MediaController) SetEnabled(ctx context.Context, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.enabled == enabled {
		return nil
	}

	if !enabled {
		if m.release != nil {
			m.release()
			m.release = nil
		}
		m.enabled = false
		m.lastErr = ""
		return nil
	}

	release, err := m.device.Acquire(ctx)
	if err != nil {
		m.lastErr = "could not access camera or microphone"
		m.logger.WarnContext(ctx, "media acquisition failed", "error", err)
		return fmt.Errorf("failed to acquire media device: %w", err)
	}

	m.release = release
	m.enabled = true
	m.lastErr = ""

	return nil
}

func (m *MediaController) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.enabled
}

// Status returns the last user-visible media error, empty when healthy.
func (m *MediaController) Status() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.lastErr
}

// Stop releases the device. Part of room-exit cleanup; safe to call twice.
func (m *MediaController) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.release != nil {
		m.release()
		m.release = nil
	}
	m.enabled = false
}
