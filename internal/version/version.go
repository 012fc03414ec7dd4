package version

// Version is the current version of the beamline CLI.
// Overridden at build time with:
//
//	go build -ldflags="-X 'github.com/beamline/beamline/internal/version.Version=v1.0.0'"
var Version = "dev"
