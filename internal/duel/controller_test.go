package duel

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/signduel/cli/internal/signaling"
)

const (
	testRoom     = "room-1"
	testLocal    = "p1"
	testOpponent = "p2"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []*signaling.Message
}

func (r *recordingSender) SendMessage(m *signaling.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, m)
}

func (r *recordingSender) byType(eventType string) []*signaling.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*signaling.Message
	for _, m := range r.sent {
		if m.Type == eventType {
			out = append(out, m)
		}
	}
	return out
}

type stubCapture struct {
	frame []byte
	err   error
}

func (s *stubCapture) Snapshot() ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.frame, nil
}

func testSession() Session {
	return Session{
		RoomID:        testRoom,
		OpponentID:    testOpponent,
		LocalPlayerID: testLocal,
		IsInitiator:   true,
	}
}

func newTestController(t *testing.T) (*Controller, *recordingSender, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	send := &recordingSender{}
	capture := &stubCapture{frame: []byte("jpeg-bytes")}
	c := NewController(testSession(), send, capture, WithClock(clock))
	return c, send, clock
}

// advanceTo steps the fake clock and waits for the resulting timer callback
// to land the controller in the wanted phase.
func advanceTo(t *testing.T, c *Controller, clock *clockwork.FakeClock, step time.Duration, want RoundPhase) {
	t.Helper()
	clock.Advance(step)
	require.Eventually(t, func() bool { return c.Phase() == want },
		time.Second, time.Millisecond, "phase never reached %s", want)
}

func startRound(t *testing.T, c *Controller, clock *clockwork.FakeClock, number int, sign string) {
	t.Helper()
	c.HandleRoundStart(signaling.RoundStartPayload{RoundNumber: number, TargetSign: sign})
	require.Equal(t, PhaseCountdown, c.Phase())
}

// runCountdown drives the full 5..1 countdown into the drawing phase.
func runCountdown(t *testing.T, c *Controller, clock *clockwork.FakeClock) {
	t.Helper()
	for i := 0; i < 4; i++ {
		clock.Advance(time.Second)
		wantRemaining := 4 - i
		require.Eventually(t, func() bool {
			r, ok := c.CurrentRound()
			return ok && r.CountdownRemaining == wantRemaining
		}, time.Second, time.Millisecond, "countdown never reached %d", wantRemaining)
	}
	advanceTo(t, c, clock, time.Second, PhaseDrawing)
}

func TestFullRoundScenario(t *testing.T) {
	c, send, clock := newTestController(t)

	startRound(t, c, clock, 1, "B")
	runCountdown(t, c, clock)

	// The capture fires after the fixed draw delay.
	advanceTo(t, c, clock, 3000*time.Millisecond, PhaseAnalyzing)

	draws := send.byType(signaling.EventDrawMade)
	require.Len(t, draws, 1)

	var p signaling.DrawMadePayload
	require.NoError(t, json.Unmarshal(draws[0].Payload, &p))
	require.Equal(t, "B", p.TargetSign)
	require.Equal(t, testRoom, p.RoomID)
	require.Equal(t, testLocal, p.PlayerID)
	require.NotEmpty(t, p.Image)
}

func TestEarlyResultCancelsScheduledCapture(t *testing.T) {
	c, send, clock := newTestController(t)

	startRound(t, c, clock, 1, "B")
	runCountdown(t, c, clock)

	// The verdict lands 1ms before the capture timer would fire.
	clock.Advance(2999 * time.Millisecond)
	c.HandleRoundResult(signaling.RoundResultPayload{
		WinnerID: testOpponent,
		Scores:   map[string]int{testLocal: 0, testOpponent: 1},
	})
	require.Equal(t, PhaseResult, c.Phase())

	clock.Advance(10 * time.Millisecond)

	// The stale capture callback must observe the phase change and do
	// nothing: no submission, no phase regression.
	require.Never(t, func() bool {
		return len(send.byType(signaling.EventDrawMade)) > 0
	}, 50*time.Millisecond, 5*time.Millisecond)
	require.Equal(t, PhaseResult, c.Phase())
}

func TestRepeatedRoundStartResetsCleanly(t *testing.T) {
	c, send, clock := newTestController(t)

	startRound(t, c, clock, 1, "B")
	for _, want := range []int{4, 3} {
		clock.Advance(time.Second)
		require.Eventually(t, func() bool {
			r, _ := c.CurrentRound()
			return r.CountdownRemaining == want
		}, time.Second, time.Millisecond)
	}

	// Reconnect-induced replay of the same round_start.
	startRound(t, c, clock, 1, "B")
	r, ok := c.CurrentRound()
	require.True(t, ok)
	require.Equal(t, 5, r.CountdownRemaining, "countdown must restart from the top")

	runCountdown(t, c, clock)
	advanceTo(t, c, clock, 3000*time.Millisecond, PhaseAnalyzing)

	// Exactly one submission despite two round_starts: the first
	// round's timers were cancelled on re-entry.
	require.Len(t, send.byType(signaling.EventDrawMade), 1)
}

func TestReplayDistinctFromTiePoint(t *testing.T) {
	c, _, clock := newTestController(t)

	startRound(t, c, clock, 1, "A")
	c.HandleRoundResult(signaling.RoundResultPayload{
		WinnerID: "",
		IsReplay: true,
		Scores:   map[string]int{testLocal: 0, testOpponent: 0},
	})

	res, ok := c.LastResult()
	require.True(t, ok)
	require.True(t, res.IsReplay)
	require.Empty(t, res.WinnerID)
	require.Equal(t, map[string]int{testLocal: 0, testOpponent: 0}, c.Scores())

	// The redrawn round ends in a genuine tie: both players score.
	startRound(t, c, clock, 1, "A")
	c.HandleRoundResult(signaling.RoundResultPayload{
		WinnerID: "",
		IsReplay: false,
		Scores:   map[string]int{testLocal: 1, testOpponent: 1},
	})

	res, ok = c.LastResult()
	require.True(t, ok)
	require.False(t, res.IsReplay)
	require.Empty(t, res.WinnerID)
	require.Equal(t, map[string]int{testLocal: 1, testOpponent: 1}, c.Scores())
}

func TestMatchCompleteReportsWin(t *testing.T) {
	c, _, clock := newTestController(t)

	var got MatchOutcome
	notified := 0
	c.OnMatchComplete(func(o MatchOutcome) {
		got = o
		notified++
	})

	startRound(t, c, clock, 4, "C")
	c.HandleMatchComplete(signaling.MatchCompletePayload{
		WinnerID:    testLocal,
		FinalScores: map[string]int{testLocal: 3, testOpponent: 1},
	})

	require.Equal(t, 1, notified)
	require.True(t, got.LocalWon)
	require.Equal(t, map[string]int{testLocal: 3, testOpponent: 1}, got.FinalScores)

	// Terminal: a duplicate completion or a late round event is inert.
	c.HandleMatchComplete(signaling.MatchCompletePayload{WinnerID: testOpponent})
	require.Equal(t, 1, notified)
	c.HandleRoundStart(signaling.RoundStartPayload{RoundNumber: 5, TargetSign: "D"})
	_, active := c.CurrentRound()
	require.True(t, active)
	require.Equal(t, 4, mustRound(t, c).Number, "round_start after match_complete must be ignored")
}

func mustRound(t *testing.T, c *Controller) Round {
	t.Helper()
	r, ok := c.CurrentRound()
	require.True(t, ok)
	return r
}

func TestMatchCompleteSupersedesInFlightRound(t *testing.T) {
	c, send, clock := newTestController(t)

	startRound(t, c, clock, 1, "B")
	runCountdown(t, c, clock)

	c.HandleMatchComplete(signaling.MatchCompletePayload{
		WinnerID:    testOpponent,
		FinalScores: map[string]int{testLocal: 1, testOpponent: 3},
	})

	clock.Advance(3 * time.Second)
	require.Never(t, func() bool {
		return len(send.byType(signaling.EventDrawMade)) > 0
	}, 50*time.Millisecond, 5*time.Millisecond)
}

func TestResultWithoutActiveRoundIgnored(t *testing.T) {
	c, _, _ := newTestController(t)

	c.HandleRoundResult(signaling.RoundResultPayload{
		WinnerID: testLocal,
		Scores:   map[string]int{testLocal: 1},
	})

	require.Equal(t, PhaseWaiting, c.Phase())
	_, ok := c.LastResult()
	require.False(t, ok)
	require.Empty(t, c.Scores())
}

func TestResultNamingUnknownPlayerIgnored(t *testing.T) {
	c, _, clock := newTestController(t)

	startRound(t, c, clock, 1, "B")
	c.HandleRoundResult(signaling.RoundResultPayload{
		WinnerID: "ghost",
		Scores:   map[string]int{"ghost": 1},
	})

	require.Equal(t, PhaseCountdown, c.Phase())
	_, ok := c.LastResult()
	require.False(t, ok)
}

func TestUnacquiredCameraSkipsSubmissionButAdvances(t *testing.T) {
	clock := clockwork.NewFakeClock()
	send := &recordingSender{}
	capture := &stubCapture{err: errors.New("camera not acquired")}
	c := NewController(testSession(), send, capture, WithClock(clock))

	startRound(t, c, clock, 1, "B")
	runCountdown(t, c, clock)
	advanceTo(t, c, clock, 3000*time.Millisecond, PhaseAnalyzing)

	require.Empty(t, send.byType(signaling.EventDrawMade))
}

func TestContinueSendsReadyOnce(t *testing.T) {
	c, send, clock := newTestController(t)

	// Continue outside the result phase is a no-op.
	c.Continue()
	require.Empty(t, send.byType(signaling.EventPlayerReady))

	startRound(t, c, clock, 1, "B")
	c.HandleRoundResult(signaling.RoundResultPayload{
		WinnerID: testLocal,
		Scores:   map[string]int{testLocal: 1, testOpponent: 0},
	})

	c.Continue()
	c.Continue()

	ready := send.byType(signaling.EventPlayerReady)
	require.Len(t, ready, 1)

	var p signaling.PlayerReadyPayload
	require.NoError(t, json.Unmarshal(ready[0].Payload, &p))
	require.Equal(t, testRoom, p.RoomID)
	require.Equal(t, testLocal, p.PlayerID)

	// Still in result until the server speaks again.
	require.Equal(t, PhaseResult, c.Phase())
}
