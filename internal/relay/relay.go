// Package relay streams compressed camera stills to the opponent when no
// direct peer media path is in use, and receives the opponent's stills.
//
// Delivery is explicitly last-write-wins: frames are cosmetic feedback, no
// round-authoritative state flows through this channel, so there is no
// sequence check and no reordering buffer. A stale frame is simply
// overwritten by the next arrival.
package relay

import (
	"encoding/base64"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/signduel/cli/internal/media"
	"github.com/signduel/cli/internal/signaling"
)

// Sender is the outbound half of the signaling channel.
type Sender interface {
	SendMessage(*signaling.Message)
}

// DirectChannel is an optional peer-to-peer frame path. When Ready, frames
// bypass the signaling server entirely.
type DirectChannel interface {
	Ready() bool
	Send(frame []byte) error
}

// Relay periodically samples the local capture and pushes stills to the
// opponent. It never starts or stops the camera; that is Capture's job
// alone, so stopping the relay cannot break an overlapping local preview.
type Relay struct {
	clock    clockwork.Clock
	capture  *media.Capture
	send     Sender
	direct   DirectChannel
	roomID   string
	interval time.Duration

	mu      sync.Mutex
	stop    chan struct{}
	latest  []byte
	running bool
}

// Option configures a Relay.
type Option func(*Relay)

// WithClock substitutes the wall clock, for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(r *Relay) { r.clock = clock }
}

// WithDirectChannel routes frames peer-to-peer whenever the channel reports
// ready, falling back to signaling otherwise.
func WithDirectChannel(dc DirectChannel) Option {
	return func(r *Relay) { r.direct = dc }
}

// NewRelay builds a relay for one session.
func NewRelay(capture *media.Capture, send Sender, roomID string, interval time.Duration, opts ...Option) *Relay {
	r := &Relay{
		clock:    clockwork.NewRealClock(),
		capture:  capture,
		send:     send,
		roomID:   roomID,
		interval: interval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start begins the sampling loop. It refuses to run before the camera is
// acquired rather than silently streaming empty frames.
func (r *Relay) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.capture.Acquired() {
		return media.ErrNotAcquired
	}
	if r.running {
		return nil
	}
	r.running = true
	r.stop = make(chan struct{})

	go r.loop(r.stop)
	return nil
}

func (r *Relay) loop(stop chan struct{}) {
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			r.sample()
		}
	}
}

func (r *Relay) sample() {
	frame, err := r.capture.Snapshot()
	if err != nil {
		// Missing a cosmetic frame is not worth more than a debug line.
		log.Debug().Err(err).Msg("frame sample skipped")
		return
	}

	if r.direct != nil && r.direct.Ready() {
		if err := r.direct.Send(frame); err == nil {
			return
		}
		// Fall through to the signaling path on a send failure.
	}

	r.send.SendMessage(signaling.NewMessage(signaling.EventVideoFrame, signaling.FramePayload{
		RoomID: r.roomID,
		Frame:  base64.StdEncoding.EncodeToString(frame),
	}))
}

// HandleFrame stores an opponent frame arriving over signaling. The current
// frame is replaced unconditionally.
func (r *Relay) HandleFrame(p signaling.FramePayload) {
	frame, err := base64.StdEncoding.DecodeString(p.Frame)
	if err != nil {
		log.Warn().Err(err).Msg("undecodable opponent frame")
		return
	}
	r.setLatest(frame)
}

// HandleDirectFrame stores an opponent frame arriving over the peer channel.
func (r *Relay) HandleDirectFrame(frame []byte) {
	r.setLatest(frame)
}

func (r *Relay) setLatest(frame []byte) {
	r.mu.Lock()
	r.latest = frame
	r.mu.Unlock()
}

// Latest returns the most recently received opponent frame, or nil.
func (r *Relay) Latest() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest
}

// Stop ends the sampling loop and releases the ticker. Idempotent. The
// camera is deliberately left untouched.
func (r *Relay) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	r.running = false
	close(r.stop)
}
