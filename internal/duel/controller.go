package duel

import (
	"encoding/base64"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/signduel/cli/internal/signaling"
)

// Sender is the outbound half of the signaling channel.
type Sender interface {
	SendMessage(*signaling.Message)
}

// Snapshotter produces compressed stills for draw submission. *media.Capture
// satisfies it. An unacquired camera surfaces as a Snapshot error, which the
// draw path treats as "nothing to submit".
type Snapshotter interface {
	Snapshot() ([]byte, error)
}

const countdownTick = time.Second

// Controller is the round/match state machine for one session.
//
// Server events (round_start, round_result, match_complete) are
// authoritative and always win over locally scheduled timers: every timer
// callback re-checks the phase and round number it was scheduled under
// before acting, so a stale callback racing a newer event is a no-op.
type Controller struct {
	clock   clockwork.Clock
	send    Sender
	capture Snapshotter
	session Session

	countdownStart int
	drawDelay      time.Duration

	mu         sync.Mutex
	phase      RoundPhase
	round      *Round
	scores     map[string]int
	lastResult *Result
	outcome    *MatchOutcome
	readySent  bool
	complete   bool

	countdownTimer clockwork.Timer
	drawTimer      clockwork.Timer

	onPhase    func(Round)
	onResult   func(Result)
	onComplete func(MatchOutcome)
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithClock substitutes the wall clock, for tests.
func WithClock(clock clockwork.Clock) ControllerOption {
	return func(c *Controller) { c.clock = clock }
}

// WithTiming overrides countdown length and draw delay.
func WithTiming(countdownStart int, drawDelay time.Duration) ControllerOption {
	return func(c *Controller) {
		c.countdownStart = countdownStart
		c.drawDelay = drawDelay
	}
}

// NewController builds a controller in the waiting phase.
func NewController(session Session, send Sender, capture Snapshotter, opts ...ControllerOption) *Controller {
	c := &Controller{
		clock:          clockwork.NewRealClock(),
		send:           send,
		capture:        capture,
		session:        session,
		countdownStart: 5,
		drawDelay:      3000 * time.Millisecond,
		phase:          PhaseWaiting,
		scores:         map[string]int{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnPhaseChange registers a callback observing round/phase updates.
func (c *Controller) OnPhaseChange(cb func(Round)) { c.onPhase = cb }

// OnRoundResult registers a callback observing adjudicated rounds.
func (c *Controller) OnRoundResult(cb func(Result)) { c.onResult = cb }

// OnMatchComplete registers the terminal callback.
func (c *Controller) OnMatchComplete(cb func(MatchOutcome)) { c.onComplete = cb }

// HandleRoundStart enters the countdown for a new round. A repeated or
// superseding round_start resets cleanly: any timers from a previous round
// are cancelled before the new ones start, so duplicate submissions are
// structurally impossible.
func (c *Controller) HandleRoundStart(p signaling.RoundStartPayload) {
	c.mu.Lock()
	if c.complete {
		c.mu.Unlock()
		log.Warn().Err(ErrMatchOver).Int("round", p.RoundNumber).Msg("round_start ignored")
		return
	}

	c.cancelTimersLocked()

	c.round = &Round{
		Number:             p.RoundNumber,
		TargetSign:         p.TargetSign,
		CountdownRemaining: c.countdownStart,
		Phase:              PhaseCountdown,
	}
	c.phase = PhaseCountdown
	c.lastResult = nil
	c.readySent = false

	roundNum := p.RoundNumber
	c.countdownTimer = c.clock.AfterFunc(countdownTick, func() {
		c.tickCountdown(roundNum)
	})

	snapshot := *c.round
	c.mu.Unlock()

	c.notifyPhase(snapshot)
}

// tickCountdown decrements the countdown. It was scheduled under a specific
// round, and bails if that round is no longer counting down.
func (c *Controller) tickCountdown(roundNum int) {
	c.mu.Lock()
	if c.complete || c.round == nil || c.round.Number != roundNum || c.phase != PhaseCountdown {
		c.mu.Unlock()
		return
	}

	c.round.CountdownRemaining--
	if c.round.CountdownRemaining > 0 {
		c.countdownTimer = c.clock.AfterFunc(countdownTick, func() {
			c.tickCountdown(roundNum)
		})
		snapshot := *c.round
		c.mu.Unlock()
		c.notifyPhase(snapshot)
		return
	}

	// Countdown hit zero: draw! The capture fires after a fixed delay,
	// carrying the target captured now, not whatever is current later.
	c.phase = PhaseDrawing
	c.round.Phase = PhaseDrawing
	targetSign := c.round.TargetSign
	c.drawTimer = c.clock.AfterFunc(c.drawDelay, func() {
		c.fireDraw(roundNum, targetSign)
	})

	snapshot := *c.round
	c.mu.Unlock()
	c.notifyPhase(snapshot)
}

// fireDraw captures and submits the snapshot, if and only if the round is
// still in the drawing phase it was scheduled under.
func (c *Controller) fireDraw(roundNum int, targetSign string) {
	c.mu.Lock()
	if c.complete || c.round == nil || c.round.Number != roundNum || c.phase != PhaseDrawing {
		c.mu.Unlock()
		return
	}

	var msg *signaling.Message
	frame, err := c.capture.Snapshot()
	if err != nil {
		// An unacquired camera means "cannot submit", not a crash.
		// The server adjudicates on the opponent's submission alone.
		log.Warn().Err(err).Int("round", roundNum).Msg("no capture to submit")
	} else {
		msg = signaling.NewMessage(signaling.EventDrawMade, signaling.DrawMadePayload{
			Image:      base64.StdEncoding.EncodeToString(frame),
			TargetSign: targetSign,
			RoomID:     c.session.RoomID,
			PlayerID:   c.session.LocalPlayerID,
		})
	}

	c.phase = PhaseAnalyzing
	c.round.Phase = PhaseAnalyzing
	snapshot := *c.round
	c.mu.Unlock()

	if msg != nil {
		c.send.SendMessage(msg)
	}
	c.notifyPhase(snapshot)
}

// HandleRoundResult applies the server's verdict. Scores come from the
// authoritative score map, never local arithmetic. Out-of-order or malformed
// results are logged and dropped; the server will send a correcting event.
func (c *Controller) HandleRoundResult(p signaling.RoundResultPayload) {
	c.mu.Lock()
	if c.complete {
		c.mu.Unlock()
		log.Warn().Err(ErrMatchOver).Msg("round_result ignored")
		return
	}
	if c.round == nil {
		c.mu.Unlock()
		log.Warn().Err(ErrNoActiveRound).Msg("round_result dropped")
		return
	}
	if p.WinnerID != "" && p.WinnerID != c.session.LocalPlayerID && p.WinnerID != c.session.OpponentID {
		c.mu.Unlock()
		log.Warn().Err(ErrProtocol).Str("winner_id", p.WinnerID).Msg("round_result names unknown player")
		return
	}

	c.cancelTimersLocked()

	result := Result{
		WinnerID:  p.WinnerID,
		PerPlayer: make(map[string]PlayerOutcome, len(p.PlayerResults)),
		Scores:    make(map[string]int, len(p.Scores)),
		IsReplay:  p.IsReplay,
	}
	for id, pr := range p.PlayerResults {
		result.PerPlayer[id] = PlayerOutcome{DetectedSign: pr.DetectedSign, Matches: pr.Matches}
	}
	for id, s := range p.Scores {
		result.Scores[id] = s
		c.scores[id] = s
	}

	c.lastResult = &result
	c.phase = PhaseResult
	c.round.Phase = PhaseResult
	c.mu.Unlock()

	if c.onResult != nil {
		c.onResult(result)
	}
}

// Continue acknowledges the result screen and tells the server we are ready
// for the next round. The client stays in result until the server issues the
// next round_start or match_complete. Repeated calls send once.
func (c *Controller) Continue() {
	c.mu.Lock()
	if c.phase != PhaseResult || c.readySent || c.complete {
		c.mu.Unlock()
		return
	}
	c.readySent = true
	c.mu.Unlock()

	c.send.SendMessage(signaling.NewMessage(signaling.EventPlayerReady, signaling.PlayerReadyPayload{
		RoomID:   c.session.RoomID,
		PlayerID: c.session.LocalPlayerID,
	}))
}

// HandleMatchComplete ends the session. It supersedes any in-flight round
// and carries the authoritative final scores.
func (c *Controller) HandleMatchComplete(p signaling.MatchCompletePayload) {
	c.mu.Lock()
	if c.complete {
		c.mu.Unlock()
		return
	}
	c.complete = true
	c.cancelTimersLocked()

	for id, s := range p.FinalScores {
		c.scores[id] = s
	}
	outcome := MatchOutcome{
		WinnerID:    p.WinnerID,
		FinalScores: p.FinalScores,
		LocalWon:    p.WinnerID == c.session.LocalPlayerID,
	}
	c.outcome = &outcome
	c.mu.Unlock()

	if c.onComplete != nil {
		c.onComplete(outcome)
	}
}

// Phase returns the current round phase.
func (c *Controller) Phase() RoundPhase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// CurrentRound returns a copy of the live round, if any.
func (c *Controller) CurrentRound() (Round, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.round == nil {
		return Round{}, false
	}
	return *c.round, true
}

// Scores returns a copy of the authoritative score map.
func (c *Controller) Scores() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.scores))
	for id, s := range c.scores {
		out[id] = s
	}
	return out
}

// LastResult returns the most recent round verdict, if any.
func (c *Controller) LastResult() (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastResult == nil {
		return Result{}, false
	}
	return *c.lastResult, true
}

// Outcome returns the terminal match outcome, if the match has completed.
func (c *Controller) Outcome() (MatchOutcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outcome == nil {
		return MatchOutcome{}, false
	}
	return *c.outcome, true
}

// Close cancels all pending timers. Part of session teardown.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelTimersLocked()
}

func (c *Controller) cancelTimersLocked() {
	if c.countdownTimer != nil {
		c.countdownTimer.Stop()
		c.countdownTimer = nil
	}
	if c.drawTimer != nil {
		c.drawTimer.Stop()
		c.drawTimer = nil
	}
}

func (c *Controller) notifyPhase(r Round) {
	if c.onPhase != nil {
		c.onPhase(r)
	}
}
