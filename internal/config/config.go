package config

import (
	"fmt"
	"os"
)

// Default configuration values (production).
const (
	DefaultSignalURL = "wss://signal.beamline.dev/ws"
	DefaultOrigin    = "https://beamline.dev"
	DefaultSTUN      = "stun:stun.l.google.com:19302"
	DefaultTURN      = "" // optional, empty by default
	DefaultTURNUser  = ""
	DefaultTURNPass  = ""
)

// Config holds client-side configuration: the signaling server address
// plus the ICE server set handed to internal/peerconn.
type Config struct {
	// SignalURL is the websocket URL of the signaling server.
	SignalURL string

	// Origin is the web app origin embedded in the deep-link URL shown
	// to the sender (see RoomLink).
	Origin string

	// ForceRelay, when true, restricts ICE gathering to TURN-relayed
	// candidates only.
	ForceRelay bool

	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
}

// Options carries CLI-flag overrides, the highest-priority source.
type Options struct {
	SignalURL  string
	Origin     string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool
}

// Load resolves configuration with priority: CLI flag > environment
// variable > compiled-in default.
func Load(opts Options) (*Config, error) {
	signalURL := firstNonEmpty(opts.SignalURL, os.Getenv("BEAMLINE_SIGNAL_URL"), DefaultSignalURL)
	origin := firstNonEmpty(opts.Origin, os.Getenv("BEAMLINE_ORIGIN"), DefaultOrigin)
	stunServer := firstNonEmpty(opts.STUNServer, os.Getenv("BEAMLINE_STUN_SERVER"), DefaultSTUN)
	turnServer := firstNonEmpty(opts.TURNServer, os.Getenv("BEAMLINE_TURN_SERVER"), DefaultTURN)
	turnUser := firstNonEmpty(opts.TURNUser, os.Getenv("BEAMLINE_TURN_USERNAME"), DefaultTURNUser)
	turnPass := firstNonEmpty(opts.TURNPass, os.Getenv("BEAMLINE_TURN_PASSWORD"), DefaultTURNPass)

	if signalURL == "" {
		return nil, fmt.Errorf("config: signaling server URL must not be empty")
	}

	return &Config{
		SignalURL:  signalURL,
		Origin:     origin,
		ForceRelay: opts.ForceRelay || ShouldForceRelay(),
		STUNServer: stunServer,
		TURNServer: turnServer,
		TURNUser:   turnUser,
		TURNPass:   turnPass,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// RoomLink builds the deep-link URL for a room code: {origin}?room={code}.
func (c *Config) RoomLink(roomID string) string {
	return fmt.Sprintf("%s?room=%s", c.Origin, roomID)
}

// STUNServers returns the STUN server URL list for pion's ICEServer config.
func (c *Config) STUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// TURNServers returns the TURN server URL list, or nil if none configured.
func (c *Config) TURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s?transport=udp", c.TURNServer),
		fmt.Sprintf("%s?transport=tcp", c.TURNServer),
	}
}

// TURNCredentials returns the TURN username/password pair.
func (c *Config) TURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
