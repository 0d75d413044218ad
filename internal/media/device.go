package media

import (
	"image"
	"image/color"
	"sync"
)

// Device is a source of raw video frames. The real camera binding is
// platform-specific and injected by the caller; the synthetic device below
// keeps the client runnable on machines without a camera.
type Device interface {
	// Open claims the device. Returns ErrPermissionDenied or
	// ErrDeviceUnavailable when the camera cannot be used.
	Open() error

	// ReadFrame returns the most recent frame.
	ReadFrame() (image.Image, error)

	// Close releases the device. Must be safe to call more than once.
	Close() error
}

// SyntheticDevice produces a moving test pattern. Used when no camera
// binding is configured and by the practice command's dry-run mode.
type SyntheticDevice struct {
	mu   sync.Mutex
	open bool
	tick int
}

func NewSyntheticDevice() *SyntheticDevice {
	return &SyntheticDevice{}
}

func (d *SyntheticDevice) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = true
	return nil
}

func (d *SyntheticDevice) ReadFrame() (image.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return nil, ErrNotAcquired
	}

	d.tick++
	img := image.NewRGBA(image.Rect(0, 0, CaptureWidth, CaptureHeight))
	for y := 0; y < CaptureHeight; y++ {
		for x := 0; x < CaptureWidth; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8((x + d.tick) % 256),
				G: uint8((y + d.tick) % 256),
				B: uint8((x + y) % 256),
				A: 255,
			})
		}
	}
	return img, nil
}

func (d *SyntheticDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
	return nil
}
