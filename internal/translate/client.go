// Package translate is the session-independent classification surface used
// by solo practice: submit a still plus recent sign history, receive the
// detected label and confidence. No room or round state is attached.
package translate

import (
	"context"
	"encoding/base64"
	"errors"

	"github.com/signduel/cli/internal/duel"
	"github.com/signduel/cli/internal/signaling"
)

var ErrClassification = errors.New("classification failed")

// Sender is the outbound half of the signaling channel.
type Sender interface {
	SendMessage(*signaling.Message)
}

// Client submits stills for classification.
type Client struct {
	send    Sender
	handler *signaling.Handler
}

func NewClient(send Sender, handler *signaling.Handler) *Client {
	return &Client{send: send, handler: handler}
}

// Translate classifies one frame. history is the accumulated sign sequence
// the server uses for word/sentence assembly.
func (c *Client) Translate(ctx context.Context, frame []byte, history []string) (signaling.TranslationResultPayload, error) {
	c.send.SendMessage(signaling.NewMessage(signaling.EventTranslateSign, signaling.TranslateSignPayload{
		Image:       base64.StdEncoding.EncodeToString(frame),
		SignHistory: history,
	}))

	select {
	case res := <-c.handler.Translation:
		return res, nil
	case <-c.handler.TranslateErr:
		return signaling.TranslationResultPayload{}, ErrClassification
	case <-c.handler.Closed():
		return signaling.TranslationResultPayload{}, duel.NewError("translate sign", duel.ErrTransport)
	case <-ctx.Done():
		return signaling.TranslationResultPayload{}, ctx.Err()
	}
}
