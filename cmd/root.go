package cmd

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/signduel/cli/internal/ui"
	"github.com/signduel/cli/internal/version"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "signduel",
	Short:   "Play timed sign-language duels against remote opponents from your terminal",
	Long:    `SignDuel is a command-line client for gesture-recognition duels. It queues you against an opponent of similar rating, streams camera stills between the two of you, and runs each round in lockstep: countdown, draw, and the server's verdict. A practice mode classifies signs outside of any match.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		os.Exit(0)
	}()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
