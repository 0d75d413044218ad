package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/signduel/cli/internal/config"
	"github.com/signduel/cli/internal/duel"
	"github.com/signduel/cli/internal/media"
	"github.com/signduel/cli/internal/translate"
	"github.com/signduel/cli/internal/ui"
)

var (
	flagPracticeDomain   string
	flagPracticeInterval time.Duration
)

var practiceCmd = &cobra.Command{
	Use:     "practice",
	Aliases: []string{"p"},
	Short:   "Classify your signs outside of a match",
	Long: `Stream camera stills to the classifier and print what it sees.
No opponent, no rounds, no rating at stake.

Examples:
  signduel practice
  signduel practice --interval 1s`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPractice()
	},
}

func runPractice() error {
	cfg, err := LoadConfig(config.Options{Domain: flagPracticeDomain})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

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

	capture := media.NewCapture(media.NewSyntheticDevice())
	if err := capture.Acquire(); err != nil {
		return duel.NewError("acquire camera", err)
	}
	defer capture.Release()

	tc := translate.NewClient(conn.Client, conn.Handler)
	var history []string

	fmt.Println(ui.MutedStyle.Render("Practicing — ctrl-c to stop."))
	ticker := time.NewTicker(flagPracticeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil

		case <-ticker.C:
			frame, err := capture.Snapshot()
			if err != nil {
				return duel.NewError("capture frame", err)
			}

			res, err := tc.Translate(ctx, frame, history)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				if errors.Is(err, duel.ErrTransport) {
					ui.PrintError("Connection to server lost.")
					return err
				}
				// A single failed classification is not fatal.
				continue
			}
			if res.Sign == "" || res.Sign == "NONE" {
				continue
			}

			history = append(history, res.Sign)
			fmt.Printf("%s %s (%.0f%%)", ui.SuccessStyle.Render(res.Sign), ui.MutedStyle.Render(res.Translation), res.Confidence*100)
			fmt.Println()
		}
	}
}

func init() {
	rootCmd.AddCommand(practiceCmd)

	practiceCmd.Flags().StringVar(&flagPracticeDomain, "domain", "", "Custom domain")
	practiceCmd.Flags().DurationVarP(&flagPracticeInterval, "interval", "i", 2*time.Second, "Delay between classification attempts")
}
