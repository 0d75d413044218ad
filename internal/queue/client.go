// Package queue implements the matchmaking handshake: one enter_queue
// attempt yields progress updates and exactly one terminal event, either a
// session assignment or a queue error.
package queue

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/signduel/cli/internal/duel"
	"github.com/signduel/cli/internal/signaling"
)

// Sender is the outbound half of the signaling channel.
type Sender interface {
	SendMessage(*signaling.Message)
}

// Client requests matchmaking over an existing signaling connection.
type Client struct {
	send    Sender
	handler *signaling.Handler

	mu      sync.Mutex
	matched bool
}

// NewClient builds a queue client on the shared handler.
func NewClient(send Sender, handler *signaling.Handler) *Client {
	return &Client{send: send, handler: handler}
}

// Enter joins matchmaking and blocks until a match is found, the server
// rejects the attempt, or ctx ends. onProgress (optional) observes
// queue_joined position updates. There is no automatic retry: a queue error
// terminates the attempt and the caller decides whether to call Enter again.
func (c *Client) Enter(ctx context.Context, playerID string, elo int, onProgress func(position int)) (duel.Session, error) {
	c.send.SendMessage(signaling.NewMessage(signaling.EventEnterQueue, signaling.EnterQueuePayload{
		PlayerID: playerID,
		Elo:      elo,
	}))

	for {
		select {
		case p := <-c.handler.QueueJoined:
			log.Debug().Int("position", p.Position).Msg("queued")
			if onProgress != nil {
				onProgress(p.Position)
			}

		case p := <-c.handler.MatchFound:
			c.mu.Lock()
			c.matched = true
			c.mu.Unlock()
			return duel.Session{
				RoomID:        p.RoomID,
				OpponentID:    p.OpponentID,
				LocalPlayerID: playerID,
				IsInitiator:   p.IsInitiator,
			}, nil

		case p := <-c.handler.QueueError:
			return duel.Session{}, duel.WrapError("enter queue", duel.ErrQueueRejected, p.Message)

		case <-c.handler.Closed():
			return duel.Session{}, duel.NewError("enter queue", duel.ErrTransport)

		case <-ctx.Done():
			c.Leave(playerID)
			return duel.Session{}, ctx.Err()
		}
	}
}

// Leave abandons matchmaking. Always safe to call: once a match has been
// found it is a no-op, so it cannot disturb an active session.
func (c *Client) Leave(playerID string) {
	c.mu.Lock()
	matched := c.matched
	c.mu.Unlock()
	if matched {
		return
	}

	c.send.SendMessage(signaling.NewMessage(signaling.EventLeaveQueue, signaling.LeaveQueuePayload{
		PlayerID: playerID,
	}))
}
