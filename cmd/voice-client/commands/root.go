package commands

import (
	"github.com/spf13/cobra"
)

// RootCmd is the root command for the voice client.
var RootCmd = &cobra.Command{
	Use:           "voice-client",
	Short:         "Headless voice room client for a mediasoup-style relay",
	SilenceUsage:  true,
	SilenceErrors: true,
}
