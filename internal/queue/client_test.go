package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/signduel/cli/internal/duel"
	"github.com/signduel/cli/internal/signaling"
)

type stubSource struct {
	ch chan *signaling.Message
}

func newStubSource() *stubSource {
	return &stubSource{ch: make(chan *signaling.Message, 16)}
}

func (s *stubSource) Incoming() <-chan *signaling.Message { return s.ch }

func (s *stubSource) emit(eventType string, payload any) {
	s.ch <- signaling.NewMessage(eventType, payload)
}

type recordingSender struct {
	mu   sync.Mutex
	sent []*signaling.Message
}

func (r *recordingSender) SendMessage(m *signaling.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, m)
}

func (r *recordingSender) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.sent))
	for i, m := range r.sent {
		out[i] = m.Type
	}
	return out
}

func newTestQueue(t *testing.T) (*Client, *recordingSender, *stubSource) {
	t.Helper()
	source := newStubSource()
	handler := signaling.NewHandler(source)
	go handler.Start()
	t.Cleanup(func() {
		handler.Close()
		close(source.ch)
	})

	send := &recordingSender{}
	return NewClient(send, handler), send, source
}

func TestEnterYieldsSessionOnMatch(t *testing.T) {
	qc, send, source := newTestQueue(t)

	progress := make(chan int, 8)
	type enterResult struct {
		session duel.Session
		err     error
	}
	done := make(chan enterResult, 1)
	go func() {
		s, err := qc.Enter(context.Background(), "p1", 1200, func(pos int) {
			progress <- pos
		})
		done <- enterResult{s, err}
	}()

	// Progress updates are observed before the terminal event lands.
	source.emit(signaling.EventQueueJoined, signaling.QueueJoinedPayload{Position: 3})
	require.Equal(t, 3, <-progress)
	source.emit(signaling.EventQueueJoined, signaling.QueueJoinedPayload{Position: 1})
	require.Equal(t, 1, <-progress)

	source.emit(signaling.EventMatchFound, signaling.MatchFoundPayload{
		RoomID:      "room-9",
		OpponentID:  "p2",
		IsInitiator: true,
	})

	res := <-done
	require.NoError(t, res.err)
	require.Equal(t, duel.Session{
		RoomID:        "room-9",
		OpponentID:    "p2",
		LocalPlayerID: "p1",
		IsInitiator:   true,
	}, res.session)
	require.Equal(t, []string{signaling.EventEnterQueue}, send.types())
}

func TestEnterSurfacesQueueRejection(t *testing.T) {
	qc, _, source := newTestQueue(t)

	source.emit(signaling.EventQueueError, signaling.QueueErrorPayload{Message: "already queued"})

	_, err := qc.Enter(context.Background(), "p1", 1200, nil)
	require.ErrorIs(t, err, duel.ErrQueueRejected)
	require.Contains(t, err.Error(), "already queued")
}

func TestEnterCancelledSendsLeave(t *testing.T) {
	qc, send, _ := newTestQueue(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := qc.Enter(ctx, "p1", 1200, nil)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, []string{signaling.EventEnterQueue, signaling.EventLeaveQueue}, send.types())
}

func TestEnterSurfacesTransportLoss(t *testing.T) {
	source := newStubSource()
	handler := signaling.NewHandler(source)
	go handler.Start()

	qc := NewClient(&recordingSender{}, handler)

	errc := make(chan error, 1)
	go func() {
		_, err := qc.Enter(context.Background(), "p1", 1200, nil)
		errc <- err
	}()

	source.emit(signaling.EventQueueJoined, signaling.QueueJoinedPayload{Position: 2})

	// The connection dies while we sit in the queue. Enter must return
	// the transport error instead of blocking on a dead handler.
	close(source.ch)

	select {
	case err := <-errc:
		require.ErrorIs(t, err, duel.ErrTransport)
	case <-time.After(time.Second):
		t.Fatal("Enter still blocked after the transport died")
	}
}

func TestLeaveAfterMatchIsNoop(t *testing.T) {
	qc, send, source := newTestQueue(t)

	source.emit(signaling.EventMatchFound, signaling.MatchFoundPayload{RoomID: "room-9", OpponentID: "p2"})
	_, err := qc.Enter(context.Background(), "p1", 1200, nil)
	require.NoError(t, err)

	// Leaving an already-matched client must not touch the live session.
	qc.Leave("p1")
	require.Equal(t, []string{signaling.EventEnterQueue}, send.types())
}
