package peerconn

import (
	"fmt"

	"github.com/beamline/beamline/internal/config"
	pion "github.com/pion/webrtc/v4"
)

// DataChannelLabel is the single data channel name both sides agree on.
const DataChannelLabel = "file-transfer"

// newPeerConnection builds a pion PeerConnection configured from cfg's ICE
// server set, optionally restricted to TURN relay candidates only.
func newPeerConnection(cfg *config.Config) (*pion.PeerConnection, error) {
	iceServers := []pion.ICEServer{{URLs: cfg.STUNServers()}}

	turnServers := cfg.TURNServers()
	if turnServers != nil {
		username, password := cfg.TURNCredentials()
		iceServers = append(iceServers, pion.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	policy := pion.ICETransportPolicyAll
	if turnServers != nil && cfg.ForceRelay {
		policy = pion.ICETransportPolicyRelay
	}

	pc, err := pion.NewPeerConnection(pion.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	})
	if err != nil {
		return nil, fmt.Errorf("peerconn: create peer connection: %w", err)
	}
	return pc, nil
}

// createDataChannel opens the ordered, reliable "file-transfer" channel.
// Called only by the initiator; the joiner receives its channel via
// OnDataChannel instead.
func createDataChannel(pc *pion.PeerConnection) (*pion.DataChannel, error) {
	ordered := true
	dc, err := pc.CreateDataChannel(DataChannelLabel, &pion.DataChannelInit{
		Ordered: &ordered,
	})
	if err != nil {
		return nil, fmt.Errorf("peerconn: create data channel: %w", err)
	}
	return dc, nil
}
