package media

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"sync"

	"github.com/rs/zerolog/log"
)

// Outgoing frame geometry. Low resolution keeps per-frame size small while
// staying readable for sign recognition.
const (
	CaptureWidth  = 320
	CaptureHeight = 240
	jpegQuality   = 50
)

var (
	ErrPermissionDenied  = errors.New("camera permission denied")
	ErrDeviceUnavailable = errors.New("camera unavailable")
	ErrNotAcquired       = errors.New("camera not acquired")
)

// Capture owns the local camera. It is the only component allowed to stop
// the underlying device; consumers sample frames read-only via Snapshot.
type Capture struct {
	mu       sync.Mutex
	device   Device
	acquired bool
}

// NewCapture wraps a device. The device is not opened until Acquire.
func NewCapture(device Device) *Capture {
	return &Capture{device: device}
}

// Acquire requests camera access. Denial or absence of a camera surfaces as
// ErrPermissionDenied / ErrDeviceUnavailable; dependent components treat an
// unacquired camera as "cannot capture", never as a crash.
func (c *Capture) Acquire() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.acquired {
		return nil
	}
	if c.device == nil {
		return ErrDeviceUnavailable
	}
	if err := c.device.Open(); err != nil {
		return err
	}
	c.acquired = true
	log.Debug().Msg("camera acquired")
	return nil
}

// Acquired reports whether the camera is currently held.
func (c *Capture) Acquired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acquired
}

// Snapshot samples the current frame as a compressed JPEG.
func (c *Capture) Snapshot() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.acquired {
		return nil, ErrNotAcquired
	}

	frame, err := c.device.ReadFrame()
	if err != nil {
		return nil, err
	}

	return encodeJPEG(scale(frame, CaptureWidth, CaptureHeight))
}

// Release stops the device. Idempotent; must run on session teardown so the
// camera indicator is not leaked.
func (c *Capture) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.acquired {
		return
	}
	if err := c.device.Close(); err != nil {
		log.Warn().Err(err).Msg("closing camera device")
	}
	c.acquired = false
	log.Debug().Msg("camera released")
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// scale downsizes with nearest-neighbor sampling. Frames are cosmetic
// opponent feedback, so sampling quality is traded for speed.
func scale(src image.Image, w, h int) image.Image {
	b := src.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		sy := b.Min.Y + y*b.Dy()/h
		for x := 0; x < w; x++ {
			sx := b.Min.X + x*b.Dx()/w
			dst.Set(x, y, src.At(sx, sy))
		}
	}
	return dst
}
