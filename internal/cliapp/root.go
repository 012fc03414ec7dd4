// Package cliapp wires the signaling client, the peer-connection
// handshake, and the transfer engine into the beamline command-line
// tool.
package cliapp

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/beamline/beamline/internal/version"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:     "beamline",
	Short:   "Peer-to-peer encrypted file transfer over WebRTC",
	Long:    `beamline sends files directly between two machines over an encrypted WebRTC data channel, using a small signaling server only to exchange connection offers.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and runs it.
// Called once from cmd/beamline/main.go.
func Execute() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		for s := range sig {
			fmt.Println(s.String())
			os.Exit(0)
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
