package signaling

import "encoding/json"

// Message is the envelope for all WebSocket traffic between client and server.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Event type constants.
const (
	// client -> server
	EventEnterQueue  = "enter_queue"
	EventLeaveQueue  = "leave_queue"
	EventDrawMade    = "draw_made"
	EventPlayerReady = "player_ready"

	// server -> client
	EventQueueJoined   = "queue_joined"
	EventQueueError    = "queue_error"
	EventMatchFound    = "match_found"
	EventRoundStart    = "round_start"
	EventRoundResult   = "round_result"
	EventMatchComplete = "match_complete"

	// both directions
	EventOffer      = "webrtc_offer"
	EventAnswer     = "webrtc_answer"
	EventCandidate  = "webrtc_ice_candidate"
	EventVideoFrame = "video_frame"

	// session-independent classification
	EventTranslateSign     = "translate_sign"
	EventTranslationResult = "translation_result"
	EventTranslationError  = "translation_error"
)

// NewMessage builds a message, marshaling the payload. Payload types in this
// package are plain structs so marshaling cannot fail in practice; a failure
// yields a message with an empty payload.
func NewMessage(eventType string, payload any) *Message {
	raw, err := json.Marshal(payload)
	if err != nil {
		return &Message{Type: eventType}
	}
	return &Message{Type: eventType, Payload: raw}
}

// Decode unmarshals the payload into v.
func (m *Message) Decode(v any) error {
	if len(m.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}

// Description is an SDP session description carried over signaling.
// Kept transport-local so this package does not depend on pion.
type Description struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

type EnterQueuePayload struct {
	PlayerID string `json:"player_id"`
	Elo      int    `json:"elo"`
}

type LeaveQueuePayload struct {
	PlayerID string `json:"player_id"`
}

type QueueJoinedPayload struct {
	Position int `json:"position"`
}

type QueueErrorPayload struct {
	Message string `json:"message"`
}

type MatchFoundPayload struct {
	RoomID      string `json:"room_id"`
	OpponentID  string `json:"opponent_id"`
	IsInitiator bool   `json:"is_initiator"`
}

type OfferPayload struct {
	RoomID string      `json:"room_id"`
	Offer  Description `json:"offer"`
}

type AnswerPayload struct {
	RoomID string      `json:"room_id"`
	Answer Description `json:"answer"`
}

// CandidatePayload carries an ICE candidate verbatim; the peer layer owns
// its interpretation.
type CandidatePayload struct {
	RoomID    string          `json:"room_id"`
	Candidate json.RawMessage `json:"candidate"`
}

// FramePayload carries one base64-encoded JPEG still.
type FramePayload struct {
	RoomID string `json:"room_id"`
	Frame  string `json:"frame"`
}

type RoundStartPayload struct {
	RoundNumber int    `json:"round_number"`
	TargetSign  string `json:"target_sign"`
}

type DrawMadePayload struct {
	Image      string `json:"image"`
	TargetSign string `json:"target_sign"`
	RoomID     string `json:"room_id"`
	PlayerID   string `json:"player_id"`
}

// PlayerResult is one player's verdict within a round result.
type PlayerResult struct {
	DetectedSign string `json:"detected_sign"`
	Matches      bool   `json:"matches"`
}

// RoundResultPayload is the server's verdict for one round. WinnerID is
// empty when the round was a tie or a replay (JSON null decodes to "").
type RoundResultPayload struct {
	WinnerID      string                  `json:"winner_id"`
	PlayerResults map[string]PlayerResult `json:"player_results"`
	Scores        map[string]int          `json:"scores"`
	IsReplay      bool                    `json:"is_replay"`
}

type PlayerReadyPayload struct {
	RoomID   string `json:"room_id"`
	PlayerID string `json:"player_id"`
}

type MatchCompletePayload struct {
	WinnerID    string         `json:"winner_id"`
	FinalScores map[string]int `json:"final_scores"`
}

type TranslateSignPayload struct {
	Image       string   `json:"image"`
	SignHistory []string `json:"sign_history"`
}

type TranslationResultPayload struct {
	Sign        string  `json:"sign"`
	Confidence  float64 `json:"confidence"`
	CurrentWord string  `json:"current_word"`
	Translation string  `json:"translation"`
}
