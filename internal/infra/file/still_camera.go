package file

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"sync"

	"anthem-kiosk/internal/app"
	"github.com/spf13/afero"
)

// StillCamera is a FrameSource backed by a still image on disk. It
// stands in for the mounted capture device during bring-up and in
// deployments where the hardware integration runs out of process.
type StillCamera struct {
	fs   afero.Fs
	path string

	mu      sync.Mutex
	frame   image.Image
	started bool
}

func NewStillCamera(fs afero.Fs, path string) *StillCamera {
	return &StillCamera{fs: fs, path: path}
}

func (c *StillCamera) Start(_ context.Context, _ app.Constraints) error {
	data, err := afero.ReadFile(c.fs, c.path)
	if err != nil {
		return fmt.Errorf("open still frame: %w", err)
	}
	frame, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode still frame: %w", err)
	}
	c.mu.Lock()
	c.frame = frame
	c.started = true
	c.mu.Unlock()
	return nil
}

func (c *StillCamera) Frame(_ context.Context) (image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started || c.frame == nil {
		return nil, fmt.Errorf("camera not started")
	}
	return c.frame, nil
}

func (c *StillCamera) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frame = nil
	c.started = false
}
