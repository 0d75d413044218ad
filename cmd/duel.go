package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/signduel/cli/internal/config"
	"github.com/signduel/cli/internal/duel"
	"github.com/signduel/cli/internal/media"
	"github.com/signduel/cli/internal/peer"
	"github.com/signduel/cli/internal/queue"
	"github.com/signduel/cli/internal/relay"
	"github.com/signduel/cli/internal/ui"
)

var (
	flagDuelDomain   string
	flagDuelSTUN     string
	flagDuelTURN     string
	flagDuelTURNUser string
	flagDuelTURNPass string
	flagDuelElo      int
	flagDuelPlayer   string
)

var duelCmd = &cobra.Command{
	Use:     "duel",
	Aliases: []string{"d"},
	Short:   "Queue for a match and play it to completion",
	Long: `Join the matchmaking queue and play a full match.

Examples:
  signduel duel
  signduel duel --elo 1400
  signduel duel --player tex --domain duel.example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDuel()
	},
}

// reconnectAttempts bounds how often a dropped connection is retried before
// giving up with the transport error.
const reconnectAttempts = 2

func runDuel() error {
	cfg, err := LoadConfig(config.Options{
		Domain:     flagDuelDomain,
		STUNServer: flagDuelSTUN,
		TURNServer: flagDuelTURN,
		TURNUser:   flagDuelTURNUser,
		TURNPass:   flagDuelTURNPass,
		Elo:        flagDuelElo,
	})
	if err != nil {
		return err
	}

	playerID := flagDuelPlayer
	if playerID == "" {
		playerID = uuid.NewString()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	for attempt := 0; ; attempt++ {
		err := runSession(ctx, cfg, playerID)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, duel.ErrTransport) && attempt < reconnectAttempts && ctx.Err() == nil:
			// The server voids the room when a player drops, so
			// rejoining means a fresh connection and a fresh queue
			// entry, not resuming the old match.
			ui.PrintError("Connection lost, reconnecting...")
		default:
			return err
		}
	}
}

func runSession(ctx context.Context, cfg *config.Config, playerID string) error {
	fmt.Println()
	sp := ui.NewConnectionSpinner("Connecting to server...")
	sp.Start()
	conn, err := NewConnectionContext(ctx, cfg)
	if err != nil {
		sp.Error("Could not reach server")
		return err
	}
	sp.Success(fmt.Sprintf("Connected to %s", cfg.Domain))
	defer conn.Close()

	session, err := findMatch(ctx, conn, playerID, cfg.Elo)
	if err != nil {
		return err
	}

	return playMatch(ctx, conn, session)
}

func findMatch(ctx context.Context, conn *ConnectionContext, playerID string, elo int) (duel.Session, error) {
	sp := ui.NewWaitingSpinner("Lookin' for a duel...")
	sp.Start()
	defer sp.Stop()

	qc := queue.NewClient(conn.Client, conn.Handler)
	session, err := qc.Enter(ctx, playerID, elo, func(position int) {
		sp.UpdateMessage(fmt.Sprintf("Lookin' for a duel... position %d", position))
	})
	if err != nil {
		return duel.Session{}, err
	}
	sp.Success(fmt.Sprintf("Matched against %s (room %s)", session.OpponentID, session.RoomID))
	return session, nil
}

func playMatch(ctx context.Context, conn *ConnectionContext, session duel.Session) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Camera first. Denial degrades media features but never aborts the
	// match: the round machine runs, we just cannot submit captures.
	capture := media.NewCapture(media.NewSyntheticDevice())
	if err := capture.Acquire(); err != nil {
		if errors.Is(err, media.ErrPermissionDenied) || errors.Is(err, media.ErrDeviceUnavailable) {
			ui.PrintError(fmt.Sprintf("Camera unavailable: %v — you will not be able to submit draws", err))
		} else {
			return duel.NewError("acquire camera", err)
		}
	}

	pc, err := peer.NewPionConn(conn.Config)
	if err != nil {
		return duel.NewError("create peer connection", err)
	}

	negotiator := peer.NewNegotiator(pc, conn.Client, session.RoomID)
	connLost := make(chan struct{}, 1)
	negotiator.OnConnectionLost(func() {
		select {
		case connLost <- struct{}{}:
		default:
		}
	})
	pc.Bind(negotiator, conn.Client, session.RoomID)

	frameRelay := relay.NewRelay(capture, conn.Client, session.RoomID, conn.Config.FrameInterval,
		relay.WithDirectChannel(pc.Frames()))
	pc.Frames().OnFrame(frameRelay.HandleDirectFrame)

	if capture.Acquired() {
		if err := frameRelay.Start(); err != nil {
			log.Warn().Err(err).Msg("frame relay not started")
		}
	}

	controller := duel.NewController(session, conn.Client, capture,
		duel.WithTiming(conn.Config.CountdownStart, conn.Config.DrawDelay))
	registerMatchOutput(controller, session)

	m := &matchSession{
		controller: controller,
		negotiator: negotiator,
		relay:      frameRelay,
		capture:    capture,
	}
	defer m.teardown()

	if session.IsInitiator {
		if err := negotiator.StartOffer(); err != nil {
			return duel.NewError("start offer", err)
		}
	}

	done := make(chan duel.MatchOutcome, 1)
	controller.OnMatchComplete(func(outcome duel.MatchOutcome) {
		select {
		case done <- outcome:
		default:
		}
	})

	for {
		select {
		case p := <-conn.Handler.Offer:
			if err := negotiator.HandleOffer(p); err != nil {
				log.Warn().Err(err).Msg("offer rejected")
			}

		case p := <-conn.Handler.Answer:
			if err := negotiator.HandleAnswer(p); err != nil {
				log.Warn().Err(err).Msg("answer rejected")
			}

		case p := <-conn.Handler.Candidate:
			negotiator.HandleCandidate(p)

		case p := <-conn.Handler.Frame:
			frameRelay.HandleFrame(p)

		case p := <-conn.Handler.RoundStart:
			controller.HandleRoundStart(p)

		case p := <-conn.Handler.RoundResult:
			controller.HandleRoundResult(p)
			// Headless client: acknowledge the result screen right away.
			controller.Continue()

		case p := <-conn.Handler.MatchComplete:
			controller.HandleMatchComplete(p)

		case outcome := <-done:
			printMatchOutcome(outcome, session)
			return nil

		case <-conn.Handler.Closed():
			// A server that hangs up right after match_complete has
			// still completed the match; the outcome wins.
			select {
			case outcome := <-done:
				printMatchOutcome(outcome, session)
				return nil
			default:
			}
			ui.PrintError("Connection to server lost.")
			return duel.NewError("session", duel.ErrTransport)

		case <-connLost:
			ui.PrintError("Partner disconnected! Requeue to play again.")
			return duel.NewError("session", duel.ErrNegotiation)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// registerMatchOutput wires human-readable progress onto controller events.
func registerMatchOutput(controller *duel.Controller, session duel.Session) {
	controller.OnPhaseChange(func(r duel.Round) {
		switch r.Phase {
		case duel.PhaseCountdown:
			fmt.Printf("\r%s", ui.CountdownStyle.Render(fmt.Sprintf("Round %d [%s] — %d...", r.Number, r.TargetSign, r.CountdownRemaining)))
		case duel.PhaseDrawing:
			fmt.Printf("\r%s\n", ui.DrawStyle.Render(fmt.Sprintf("Round %d [%s] — DRAW!", r.Number, r.TargetSign)))
		case duel.PhaseAnalyzing:
			fmt.Println(ui.MutedStyle.Render("Judging..."))
		}
	})

	controller.OnRoundResult(func(res duel.Result) {
		switch {
		case res.IsReplay:
			fmt.Println(ui.WarningStyle.Render("No clear draw — round will be replayed, scores unchanged."))
		case res.WinnerID == "":
			fmt.Println(ui.WarningStyle.Render("Both drew true — tie point!"))
		case res.WinnerID == session.LocalPlayerID:
			fmt.Println(ui.SuccessStyle.Render("You won the round!"))
		default:
			fmt.Println(ui.ErrorStyle.Render("Opponent drew first."))
		}
		fmt.Println(ui.Scoreline(res.Scores[session.LocalPlayerID], res.Scores[session.OpponentID]))
	})
}

func printMatchOutcome(outcome duel.MatchOutcome, session duel.Session) {
	label := "Defeat"
	if outcome.LocalWon {
		label = "Victory"
	}
	fmt.Println()
	ui.RenderMatchSummary(ui.MatchSummary{
		Outcome:       label,
		Rounds:        outcome.FinalScores[session.LocalPlayerID] + outcome.FinalScores[session.OpponentID],
		LocalScore:    outcome.FinalScores[session.LocalPlayerID],
		OpponentScore: outcome.FinalScores[session.OpponentID],
		OpponentID:    session.OpponentID,
	})
}

func init() {
	rootCmd.AddCommand(duelCmd)

	duelCmd.Flags().StringVar(&flagDuelDomain, "domain", "", "Custom domain")
	duelCmd.Flags().StringVarP(&flagDuelSTUN, "stun", "s", "", "Custom STUN server")
	duelCmd.Flags().StringVarP(&flagDuelTURN, "turn", "t", "", "Custom TURN server")
	duelCmd.Flags().StringVar(&flagDuelTURNUser, "turn-user", "", "TURN username")
	duelCmd.Flags().StringVar(&flagDuelTURNPass, "turn-pass", "", "TURN password")
	duelCmd.Flags().IntVarP(&flagDuelElo, "elo", "e", 0, "Rating reported to matchmaking")
	duelCmd.Flags().StringVarP(&flagDuelPlayer, "player", "p", "", "Player id (random if omitted)")
}
