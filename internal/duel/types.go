package duel

// Session is one matched pair of clients sharing a room. Built once from
// match_found, immutable afterward, and lent by reference to every component
// that needs it.
type Session struct {
	RoomID        string
	OpponentID    string
	LocalPlayerID string
	IsInitiator   bool
}

// RoundPhase is the client-local phase of the current round. Exactly one
// value at any time; advanced only by the Controller.
type RoundPhase string

const (
	PhaseWaiting   RoundPhase = "waiting"
	PhaseCountdown RoundPhase = "countdown"
	PhaseDrawing   RoundPhase = "drawing"
	PhaseAnalyzing RoundPhase = "analyzing"
	PhaseResult    RoundPhase = "result"
)

// Round is the live round. Created by round_start, mutated by local timers
// and round_result, superseded by the next round_start or ended by
// match_complete.
type Round struct {
	Number             int
	TargetSign         string
	CountdownRemaining int
	Phase              RoundPhase
}

// PlayerOutcome is one player's verdict within a round result.
type PlayerOutcome struct {
	DetectedSign string
	Matches      bool
}

// Result is the adjudicated outcome of a round. WinnerID is empty for both
// a tie-with-points (IsReplay false: both matched, both score) and a replay
// (IsReplay true: no adjudication, scores unchanged); the two must be
// presented distinctly.
type Result struct {
	WinnerID  string
	PerPlayer map[string]PlayerOutcome
	Scores    map[string]int
	IsReplay  bool
}

// MatchOutcome is delivered exactly once when the server ends the match.
type MatchOutcome struct {
	WinnerID    string
	FinalScores map[string]int
	LocalWon    bool
}
