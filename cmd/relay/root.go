// cmd/relay/root.go
package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "Telemetry relay for line-protocol and Modbus sensor endpoints",
	Long: `sensor-relay polls remote sensor endpoints, validates and decrypts
their payloads, and forwards parsed readings to an HTTP backend.

Failed socket operations and failed deliveries are retried through two
bounded recovery queues; sustained failure sheds load and resyncs
against the backend's own state.`,
	PersistentPreRun: func(*cobra.Command, []string) {
		zerolog.TimeFieldFormat = time.RFC3339
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
		if verbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
