package peer

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/signduel/cli/internal/config"
	"github.com/signduel/cli/internal/signaling"
)

// PionConn adapts a pion PeerConnection to the Conn interface and owns the
// "frames" data channel used for direct frame delivery once p2p is up.
type PionConn struct {
	pc     *webrtc.PeerConnection
	frames *FrameChannel
}

// NewPionConn builds a peer connection from the configured ICE servers.
func NewPionConn(cfg *config.Config) (*PionConn, error) {
	iceServers := []webrtc.ICEServer{{URLs: cfg.GetSTUNServers()}}

	if turnServers := cfg.GetTURNServers(); turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: iceServers})
	if err != nil {
		return nil, err
	}

	return &PionConn{pc: pc, frames: NewFrameChannel()}, nil
}

// Bind wires pion callbacks to the negotiator and the signaling channel.
// Call once, before negotiation starts.
func (p *PionConn) Bind(n *Negotiator, send Sender, roomID string) {
	p.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		raw, err := json.Marshal(c.ToJSON())
		if err != nil {
			log.Warn().Err(err).Msg("encoding local ice candidate")
			return
		}
		send.SendMessage(signaling.NewMessage(signaling.EventCandidate, signaling.CandidatePayload{
			RoomID:    roomID,
			Candidate: raw,
		}))
	})

	p.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateConnected:
			n.MarkConnected()
		case webrtc.PeerConnectionStateFailed:
			// The only unrecoverable signal. Disconnected may
			// self-heal and must not reach MarkFailed.
			n.MarkFailed()
		case webrtc.PeerConnectionStateDisconnected:
			log.Warn().Msg("peer connection disconnected, waiting for recovery")
		default:
			log.Debug().Stringer("state", state).Msg("peer connection state")
		}
	})

	// The answerer adopts the initiator's frames channel.
	p.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() == frameChannelLabel {
			p.frames.adopt(dc)
		}
	})
}

// Frames returns the direct frame channel. It reports Ready only once the
// underlying data channel has opened.
func (p *PionConn) Frames() *FrameChannel {
	return p.frames
}

func (p *PionConn) CreateOffer() (signaling.Description, error) {
	// The initiator creates the frames channel up front so it rides the
	// initial offer.
	if err := p.frames.create(p.pc); err != nil {
		return signaling.Description{}, err
	}

	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return signaling.Description{}, err
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return signaling.Description{}, err
	}

	// Trickle ICE: return immediately, candidates flow via OnICECandidate.
	local := p.pc.LocalDescription()
	return signaling.Description{Type: local.Type.String(), SDP: local.SDP}, nil
}

func (p *PionConn) CreateAnswer() (signaling.Description, error) {
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return signaling.Description{}, err
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return signaling.Description{}, err
	}

	local := p.pc.LocalDescription()
	return signaling.Description{Type: local.Type.String(), SDP: local.SDP}, nil
}

func (p *PionConn) SetRemoteDescription(desc signaling.Description) error {
	var sdpType webrtc.SDPType
	switch desc.Type {
	case "offer":
		sdpType = webrtc.SDPTypeOffer
	case "answer":
		sdpType = webrtc.SDPTypeAnswer
	default:
		return fmt.Errorf("unexpected sdp type: %s", desc.Type)
	}

	return p.pc.SetRemoteDescription(webrtc.SessionDescription{Type: sdpType, SDP: desc.SDP})
}

func (p *PionConn) AddICECandidate(raw json.RawMessage) error {
	var ice webrtc.ICECandidateInit
	if err := json.Unmarshal(raw, &ice); err != nil {
		return fmt.Errorf("failed to parse ICE candidate: %w", err)
	}
	return p.pc.AddICECandidate(ice)
}

func (p *PionConn) Close() error {
	p.frames.close()
	return p.pc.Close()
}
