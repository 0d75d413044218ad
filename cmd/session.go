package cmd

import (
	"context"

	"github.com/signduel/cli/internal/config"
	"github.com/signduel/cli/internal/duel"
	"github.com/signduel/cli/internal/media"
	"github.com/signduel/cli/internal/peer"
	"github.com/signduel/cli/internal/relay"
	"github.com/signduel/cli/internal/signaling"
)

// ConnectionContext bundles the process-wide signaling connection shared by
// every component of a session.
type ConnectionContext struct {
	Client  *signaling.Client
	Handler *signaling.Handler
	Config  *config.Config
}

func NewConnectionContext(ctx context.Context, cfg *config.Config) (*ConnectionContext, error) {
	client := signaling.NewClient(cfg.WebSocketURL)
	if err := client.Connect(ctx); err != nil {
		return nil, duel.NewError("connect to server", err)
	}

	handler := signaling.NewHandler(client)
	go handler.Start()

	return &ConnectionContext{
		Client:  client,
		Handler: handler,
		Config:  cfg,
	}, nil
}

func (c *ConnectionContext) Close() {
	if c.Handler != nil {
		c.Handler.Close()
	}
	if c.Client != nil {
		c.Client.Close()
	}
}

// matchSession holds everything a live match owns. Teardown cancels pending
// timers, closes the peer connection, stops the frame relay and releases the
// camera; leaving any one behind is a defect (a leaked camera indicator, a
// stray timer firing into a dead session).
type matchSession struct {
	controller *duel.Controller
	negotiator *peer.Negotiator
	relay      *relay.Relay
	capture    *media.Capture
}

func (m *matchSession) teardown() {
	if m.controller != nil {
		m.controller.Close()
	}
	if m.negotiator != nil {
		m.negotiator.Close()
	}
	if m.relay != nil {
		m.relay.Stop()
	}
	if m.capture != nil {
		m.capture.Release()
	}
}

func LoadConfig(opts config.Options) (*config.Config, error) {
	cfg, err := config.Load(opts)
	if err != nil {
		return nil, duel.NewError("load config", err)
	}
	return cfg, nil
}
