package signaling

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// MessageSource is the receive side of a signaling connection. *Client
// satisfies it; tests feed a plain channel through a stub.
type MessageSource interface {
	Incoming() <-chan *Message
}

// Handler routes incoming signaling messages onto typed channels. Each
// consuming component reads exactly the channels it owns, so tearing one
// component down never disturbs another's subscription.
type Handler struct {
	source MessageSource

	QueueJoined   chan QueueJoinedPayload
	QueueError    chan QueueErrorPayload
	MatchFound    chan MatchFoundPayload
	Offer         chan OfferPayload
	Answer        chan AnswerPayload
	Candidate     chan CandidatePayload
	Frame         chan FramePayload
	RoundStart    chan RoundStartPayload
	RoundResult   chan RoundResultPayload
	MatchComplete chan MatchCompletePayload
	Translation   chan TranslationResultPayload
	TranslateErr  chan struct{}

	closeOnce sync.Once
	closed    chan struct{}
}

// Closed reports teardown or transport loss. Dispatches select against it so
// a component that stopped reading can never wedge the routing loop;
// consumers select against it to notice a dead connection.
func (h *Handler) Closed() <-chan struct{} { return h.closed }

// NewHandler creates a new message handler.
func NewHandler(source MessageSource) *Handler {
	return &Handler{
		source:        source,
		QueueJoined:   make(chan QueueJoinedPayload, 8),
		QueueError:    make(chan QueueErrorPayload, 1),
		MatchFound:    make(chan MatchFoundPayload, 1),
		Offer:         make(chan OfferPayload, 1),
		Answer:        make(chan AnswerPayload, 1),
		Candidate:     make(chan CandidatePayload, 32),
		Frame:         make(chan FramePayload, 1),
		RoundStart:    make(chan RoundStartPayload, 4),
		RoundResult:   make(chan RoundResultPayload, 4),
		MatchComplete: make(chan MatchCompletePayload, 1),
		Translation:   make(chan TranslationResultPayload, 8),
		TranslateErr:  make(chan struct{}, 1),
		closed:        make(chan struct{}),
	}
}

// Start consumes the source until it closes, routing each message. Run it in
// its own goroutine.
//
// The source channel closing means the transport is gone, whether by a local
// Close or a dropped connection. Start closes the handler so every consumer
// blocked on an event channel wakes and can surface the loss, instead of
// waiting forever on a dead connection.
func (h *Handler) Start() {
	for msg := range h.source.Incoming() {
		h.route(msg)
	}
	h.Close()
}

func (h *Handler) route(msg *Message) {
	switch msg.Type {

	case EventQueueJoined:
		dispatch(h, h.QueueJoined, msg)

	case EventQueueError:
		dispatch(h, h.QueueError, msg)

	case EventMatchFound:
		dispatch(h, h.MatchFound, msg)

	case EventOffer:
		dispatch(h, h.Offer, msg)

	case EventAnswer:
		dispatch(h, h.Answer, msg)

	case EventCandidate:
		dispatch(h, h.Candidate, msg)

	case EventVideoFrame:
		// Frames are cosmetic and last-write-wins; never let a slow
		// consumer stall round-authoritative events behind them.
		var p FramePayload
		if err := msg.Decode(&p); err != nil {
			log.Warn().Err(err).Str("event", msg.Type).Msg("bad payload")
			return
		}
		select {
		case h.Frame <- p:
		default:
			select {
			case <-h.Frame:
			default:
			}
			select {
			case h.Frame <- p:
			default:
			}
		}

	case EventRoundStart:
		dispatch(h, h.RoundStart, msg)

	case EventRoundResult:
		dispatch(h, h.RoundResult, msg)

	case EventMatchComplete:
		dispatch(h, h.MatchComplete, msg)

	case EventTranslationResult:
		dispatch(h, h.Translation, msg)

	case EventTranslationError:
		select {
		case h.TranslateErr <- struct{}{}:
		case <-h.closed:
		}

	default:
		log.Debug().Str("event", msg.Type).Msg("unhandled signaling event")
	}
}

func dispatch[T any](h *Handler, ch chan T, msg *Message) {
	var p T
	if err := msg.Decode(&p); err != nil {
		log.Warn().Err(err).Str("event", msg.Type).Msg("bad payload")
		return
	}
	select {
	case ch <- p:
	case <-h.closed:
	}
}

// Close unblocks any pending dispatches. Idempotent.
func (h *Handler) Close() {
	h.closeOnce.Do(func() { close(h.closed) })
}
