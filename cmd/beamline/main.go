// Command beamline is a peer-to-peer encrypted file transfer CLI.
package main

import (
	"github.com/beamline/beamline/internal/cliapp"
	"github.com/beamline/beamline/internal/logging"
)

func main() {
	logging.Init()
	cliapp.Execute()
}
