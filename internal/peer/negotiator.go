package peer

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/signduel/cli/internal/signaling"
)

// ConnectionState is the negotiator's private view of media setup progress.
type ConnectionState string

const (
	StateIdle      ConnectionState = "idle"
	StateOffering  ConnectionState = "offering"
	StateAnswering ConnectionState = "answering"
	StateConnected ConnectionState = "connected"
	StateFailed    ConnectionState = "failed"
)

var (
	ErrBadState = errors.New("unexpected negotiation state")
	ErrFailed   = errors.New("peer connection failed")
)

// Conn is the slice of a peer connection the negotiator drives. The pion
// wrapper in this package implements it; tests substitute a recorder.
type Conn interface {
	// CreateOffer builds an offer and stores it as the local description.
	CreateOffer() (signaling.Description, error)

	// CreateAnswer builds an answer against the current remote
	// description and stores it as the local description.
	CreateAnswer() (signaling.Description, error)

	// SetRemoteDescription stores the remote description.
	SetRemoteDescription(signaling.Description) error

	// AddICECandidate applies a remote candidate. Only the negotiator's
	// drain path may call it, and only after SetRemoteDescription.
	AddICECandidate(json.RawMessage) error

	Close() error
}

// Sender is the outbound half of the signaling channel.
type Sender interface {
	SendMessage(*signaling.Message)
}

// Negotiator drives offer/answer/candidate exchange for one session.
//
// Candidates that arrive before the remote description are buffered and
// drained in arrival order immediately after the description is accepted.
// The buffer and the remote-description flag are private and every candidate
// reaches the connection through the one guarded path below, so applying a
// candidate early is not expressible from outside this type.
type Negotiator struct {
	conn   Conn
	send   Sender
	roomID string

	mu        sync.Mutex
	state     ConnectionState
	remoteSet bool
	pending   []json.RawMessage

	lostOnce sync.Once
	onLost   func()
}

// NewNegotiator builds a negotiator in the idle state.
func NewNegotiator(conn Conn, send Sender, roomID string) *Negotiator {
	return &Negotiator{
		conn:   conn,
		send:   send,
		roomID: roomID,
		state:  StateIdle,
	}
}

// OnConnectionLost registers the session-fatal failure callback. It fires at
// most once, only when the connection reaches failed.
func (n *Negotiator) OnConnectionLost(cb func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onLost = cb
}

// State returns the current connection state.
func (n *Negotiator) State() ConnectionState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// StartOffer runs the initiator leg: create an offer, store it locally and
// transmit it. Only valid from idle.
func (n *Negotiator) StartOffer() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state != StateIdle {
		return ErrBadState
	}

	offer, err := n.conn.CreateOffer()
	if err != nil {
		return err
	}
	n.state = StateOffering

	n.send.SendMessage(signaling.NewMessage(signaling.EventOffer, signaling.OfferPayload{
		RoomID: n.roomID,
		Offer:  offer,
	}))
	return nil
}

// HandleOffer runs the answerer leg: store the remote offer, drain buffered
// candidates against it, then create and transmit the answer.
func (n *Negotiator) HandleOffer(p signaling.OfferPayload) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state != StateIdle {
		return ErrBadState
	}

	if err := n.acceptRemote(p.Offer); err != nil {
		return err
	}
	n.state = StateAnswering

	answer, err := n.conn.CreateAnswer()
	if err != nil {
		return err
	}

	n.send.SendMessage(signaling.NewMessage(signaling.EventAnswer, signaling.AnswerPayload{
		RoomID: n.roomID,
		Answer: answer,
	}))
	return nil
}

// HandleAnswer completes the initiator leg.
func (n *Negotiator) HandleAnswer(p signaling.AnswerPayload) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state != StateOffering {
		return ErrBadState
	}

	if err := n.acceptRemote(p.Answer); err != nil {
		return err
	}
	n.state = StateConnected
	return nil
}

// HandleCandidate buffers or applies one remote candidate. A rejected
// candidate is logged and absorbed; it never changes state.
func (n *Negotiator) HandleCandidate(p signaling.CandidatePayload) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.remoteSet {
		n.pending = append(n.pending, p.Candidate)
		return
	}
	if err := n.conn.AddICECandidate(p.Candidate); err != nil {
		log.Warn().Err(err).Msg("ice candidate rejected")
	}
}

// acceptRemote stores the remote description and drains the pending buffer
// in FIFO order, exactly once. Callers hold n.mu.
func (n *Negotiator) acceptRemote(desc signaling.Description) error {
	if err := n.conn.SetRemoteDescription(desc); err != nil {
		return err
	}
	n.remoteSet = true

	for _, c := range n.pending {
		if err := n.conn.AddICECandidate(c); err != nil {
			log.Warn().Err(err).Msg("buffered ice candidate rejected")
		}
	}
	n.pending = nil
	return nil
}

// MarkConnected records that transport-level connectivity is up. Called by
// the pion wrapper when the answerer's connection completes (the answerer
// has no remote-answer event to advance on).
func (n *Negotiator) MarkConnected() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state == StateAnswering || n.state == StateOffering {
		n.state = StateConnected
	}
}

// MarkFailed transitions to the terminal failed state and reports upward.
// Transient disconnects must NOT route here: they may self-heal and the
// wrapper only calls this on the unrecoverable failed signal.
func (n *Negotiator) MarkFailed() {
	n.mu.Lock()
	if n.state == StateFailed {
		n.mu.Unlock()
		return
	}
	n.state = StateFailed
	cb := n.onLost
	n.mu.Unlock()

	if cb != nil {
		n.lostOnce.Do(cb)
	}
}

// Close tears down the underlying connection.
func (n *Negotiator) Close() error {
	return n.conn.Close()
}
