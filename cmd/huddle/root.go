package main

import (
	"fmt"
	"os"
	"time"

	"github.com/Wyydra/huddle/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	flagServer  string
	flagSTUN    []string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "huddle",
	Short: "Join multi-party video calls from the terminal",
	Long: `huddle talks to a huddle signaling relay. It creates rooms, inspects them
and joins calls as a full WebRTC participant.

Examples:
  huddle create --name Alice
  huddle room 6f1c0d2e-5b7a-4d8e-9c3f-2a1b0e9d8c7f
  huddle join 6f1c0d2e-5b7a-4d8e-9c3f-2a1b0e9d8c7f --name Bob`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(flagVerbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagServer, "server", "s", "", "relay base URL (env HUDDLE_SERVER, default "+config.DefaultServer+")")
	rootCmd.PersistentFlags().StringSliceVar(&flagSTUN, "stun", nil, "STUN server URLs (env HUDDLE_STUN)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log debug output to stderr")

	rootCmd.AddCommand(createCmd, roomCmd, joinCmd)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func setupLogging(verbose bool) {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
}

func loadConfig() (*config.ClientConfig, error) {
	return config.LoadClient(config.ClientOptions{Server: flagServer, STUN: flagSTUN})
}
