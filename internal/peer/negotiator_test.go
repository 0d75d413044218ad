package peer

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/signduel/cli/internal/signaling"
)

// fakeConn records every operation in call order.
type fakeConn struct {
	mu         sync.Mutex
	ops        []string
	rejectCand bool
}

func (f *fakeConn) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, op)
}

func (f *fakeConn) CreateOffer() (signaling.Description, error) {
	f.record("create_offer")
	return signaling.Description{Type: "offer", SDP: "local-offer"}, nil
}

func (f *fakeConn) CreateAnswer() (signaling.Description, error) {
	f.record("create_answer")
	return signaling.Description{Type: "answer", SDP: "local-answer"}, nil
}

func (f *fakeConn) SetRemoteDescription(d signaling.Description) error {
	f.record("set_remote:" + d.Type)
	return nil
}

func (f *fakeConn) AddICECandidate(raw json.RawMessage) error {
	if f.rejectCand {
		return errors.New("rejected")
	}
	var c struct {
		Candidate string `json:"candidate"`
	}
	_ = json.Unmarshal(raw, &c)
	f.record("add_candidate:" + c.Candidate)
	return nil
}

func (f *fakeConn) Close() error {
	f.record("close")
	return nil
}

func (f *fakeConn) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ops...)
}

type fakeSender struct {
	mu   sync.Mutex
	sent []*signaling.Message
}

func (f *fakeSender) SendMessage(m *signaling.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, m)
}

func (f *fakeSender) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, m := range f.sent {
		out[i] = m.Type
	}
	return out
}

func candidate(id string) signaling.CandidatePayload {
	return signaling.CandidatePayload{
		RoomID:    "room-1",
		Candidate: json.RawMessage(fmt.Sprintf(`{"candidate":%q}`, id)),
	}
}

func TestEarlyCandidatesBufferedAndDrainedInOrder(t *testing.T) {
	conn := &fakeConn{}
	send := &fakeSender{}
	n := NewNegotiator(conn, send, "room-1")

	// Candidates arrive before any remote description exists.
	n.HandleCandidate(candidate("c1"))
	n.HandleCandidate(candidate("c2"))
	n.HandleCandidate(candidate("c3"))
	require.Empty(t, conn.calls(), "no candidate may touch the connection before the remote description")

	err := n.HandleOffer(signaling.OfferPayload{RoomID: "room-1", Offer: signaling.Description{Type: "offer", SDP: "x"}})
	require.NoError(t, err)

	// Remote description first, then every buffered candidate exactly
	// once in arrival order, then the answer.
	require.Equal(t, []string{
		"set_remote:offer",
		"add_candidate:c1",
		"add_candidate:c2",
		"add_candidate:c3",
		"create_answer",
	}, conn.calls())

	// A live candidate after the drain is applied directly.
	n.HandleCandidate(candidate("c4"))
	require.Equal(t, "add_candidate:c4", conn.calls()[len(conn.calls())-1])
}

func TestInitiatorLeg(t *testing.T) {
	conn := &fakeConn{}
	send := &fakeSender{}
	n := NewNegotiator(conn, send, "room-1")

	require.NoError(t, n.StartOffer())
	require.Equal(t, StateOffering, n.State())
	require.Equal(t, []string{signaling.EventOffer}, send.types())

	n.HandleCandidate(candidate("early"))

	err := n.HandleAnswer(signaling.AnswerPayload{RoomID: "room-1", Answer: signaling.Description{Type: "answer", SDP: "y"}})
	require.NoError(t, err)
	require.Equal(t, StateConnected, n.State())
	require.Equal(t, []string{"create_offer", "set_remote:answer", "add_candidate:early"}, conn.calls())
}

func TestAnswererSendsAnswer(t *testing.T) {
	conn := &fakeConn{}
	send := &fakeSender{}
	n := NewNegotiator(conn, send, "room-1")

	err := n.HandleOffer(signaling.OfferPayload{RoomID: "room-1", Offer: signaling.Description{Type: "offer", SDP: "x"}})
	require.NoError(t, err)
	require.Equal(t, StateAnswering, n.State())
	require.Equal(t, []string{signaling.EventAnswer}, send.types())

	n.MarkConnected()
	require.Equal(t, StateConnected, n.State())
}

func TestWrongStateTransitionsRejected(t *testing.T) {
	conn := &fakeConn{}
	n := NewNegotiator(conn, &fakeSender{}, "room-1")

	require.ErrorIs(t, n.HandleAnswer(signaling.AnswerPayload{}), ErrBadState)

	require.NoError(t, n.StartOffer())
	require.ErrorIs(t, n.StartOffer(), ErrBadState)
	require.ErrorIs(t, n.HandleOffer(signaling.OfferPayload{Offer: signaling.Description{Type: "offer"}}), ErrBadState)
}

func TestRejectedCandidateDoesNotChangeState(t *testing.T) {
	conn := &fakeConn{rejectCand: true}
	n := NewNegotiator(conn, &fakeSender{}, "room-1")

	require.NoError(t, n.HandleOffer(signaling.OfferPayload{Offer: signaling.Description{Type: "offer", SDP: "x"}}))
	n.HandleCandidate(candidate("bad"))
	require.Equal(t, StateAnswering, n.State())
}

func TestConnectionLostFiresOnceAndOnlyOnFailed(t *testing.T) {
	conn := &fakeConn{}
	n := NewNegotiator(conn, &fakeSender{}, "room-1")

	calls := 0
	n.OnConnectionLost(func() { calls++ })

	require.NoError(t, n.StartOffer())

	// A transient disconnect self-heals: the wrapper reports recovery,
	// never failure, and the callback stays silent.
	n.MarkConnected()
	require.Equal(t, StateConnected, n.State())
	require.Zero(t, calls)

	n.MarkFailed()
	n.MarkFailed()
	require.Equal(t, StateFailed, n.State())
	require.Equal(t, 1, calls)
}
