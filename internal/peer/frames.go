package peer

import (
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"
)

const frameChannelLabel = "frames"

var ErrChannelNotOpen = errors.New("frame channel not open")

// frameMessage is the msgpack envelope for stills sent over the data channel.
type frameMessage struct {
	Type string `msgpack:"type"`
	Data []byte `msgpack:"data"`
}

// FrameChannel carries compressed stills directly between peers once the
// data channel is up. The relay prefers it over the websocket path but both
// sides stay last-write-wins, so either path can drop frames freely.
type FrameChannel struct {
	mu      sync.Mutex
	dc      *webrtc.DataChannel
	open    bool
	onFrame func([]byte)
}

func NewFrameChannel() *FrameChannel {
	return &FrameChannel{}
}

// create opens the channel on the initiator side. Unordered delivery with no
// retransmits: a lost frame is overwritten by the next one anyway.
func (f *FrameChannel) create(pc *webrtc.PeerConnection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dc != nil {
		return nil
	}

	ordered := false
	maxRetransmits := uint16(0)
	dc, err := pc.CreateDataChannel(frameChannelLabel, &webrtc.DataChannelInit{
		Ordered:        &ordered,
		MaxRetransmits: &maxRetransmits,
	})
	if err != nil {
		return err
	}
	f.attach(dc)
	return nil
}

// adopt takes ownership of the channel announced by the remote initiator.
func (f *FrameChannel) adopt(dc *webrtc.DataChannel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attach(dc)
}

// attach wires handlers. Callers hold f.mu.
func (f *FrameChannel) attach(dc *webrtc.DataChannel) {
	f.dc = dc

	dc.OnOpen(func() {
		f.mu.Lock()
		f.open = true
		f.mu.Unlock()
		log.Debug().Msg("frame channel open")
	})

	dc.OnClose(func() {
		f.mu.Lock()
		f.open = false
		f.mu.Unlock()
	})

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		var m frameMessage
		if err := msgpack.Unmarshal(msg.Data, &m); err != nil {
			log.Warn().Err(err).Msg("bad frame message")
			return
		}
		if m.Type != "frame" {
			return
		}
		f.mu.Lock()
		cb := f.onFrame
		f.mu.Unlock()
		if cb != nil {
			cb(m.Data)
		}
	})
}

// OnFrame registers the receive callback for opponent frames.
func (f *FrameChannel) OnFrame(cb func([]byte)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onFrame = cb
}

// Ready reports whether the channel is open for sending.
func (f *FrameChannel) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

// Send transmits one compressed still.
func (f *FrameChannel) Send(frame []byte) error {
	f.mu.Lock()
	dc, open := f.dc, f.open
	f.mu.Unlock()

	if !open || dc == nil {
		return ErrChannelNotOpen
	}

	data, err := msgpack.Marshal(frameMessage{Type: "frame", Data: frame})
	if err != nil {
		return err
	}
	return dc.Send(data)
}

func (f *FrameChannel) close() {
	f.mu.Lock()
	dc := f.dc
	f.open = false
	f.mu.Unlock()

	if dc != nil {
		dc.Close()
	}
}
