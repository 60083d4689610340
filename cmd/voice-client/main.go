package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/VoiceClient/cmd/voice-client/commands"
)

func main() {
	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	root := commands.RootCmd
	root.AddCommand(commands.NewJoinCmd())

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("voice-client failed")
		os.Exit(1)
	}
}
