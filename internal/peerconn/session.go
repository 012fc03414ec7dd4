package peerconn

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/beamline/beamline/internal/config"
	"github.com/beamline/beamline/internal/rendezvous"
	pion "github.com/pion/webrtc/v4"
)

// Session drives the offer/answer/ICE handshake for one peer pairing and
// hands the opened data channel to its caller. One Session per room
// membership; not reusable across rooms.
type Session struct {
	cfg         *config.Config
	handler     *rendezvous.Handler
	isInitiator bool

	mu            sync.Mutex
	state         State
	pc            *pion.PeerConnection
	channel       *pion.DataChannel
	remoteDescSet bool
	pendingICE    []pion.ICECandidateInit

	// ChannelOpen receives the data channel exactly once, when either side
	// observes its open event.
	ChannelOpen chan *pion.DataChannel
	// Left fires when the peer disconnects (peer-left) or the peer
	// transport fails terminally.
	Left chan struct{}
	// Errors surfaces handshake failures that do not come from the
	// signaling server itself (SDP apply, offer/answer creation).
	Errors chan error
}

// NewSession creates a session bound to an already-connected signaling
// handler. isInitiator mirrors the isInitiator flag from room-created
// (true) or room-joined (false).
func NewSession(cfg *config.Config, handler *rendezvous.Handler, isInitiator bool) *Session {
	return &Session{
		cfg:         cfg,
		handler:     handler,
		isInitiator: isInitiator,
		state:       StateIdle,
		ChannelOpen: make(chan *pion.DataChannel, 1),
		Left:        make(chan struct{}, 1),
		Errors:      make(chan error, 8),
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Run drives the handshake event loop until ctx is cancelled or the
// handler's Signal or Error channel closes. A peer-left is reported via
// Left and tears the connection down, but does not end the loop.
func (s *Session) Run(ctx context.Context) {
	s.setState(StateConnecting)
	for {
		select {
		case <-ctx.Done():
			s.teardown()
			return

		case <-s.handler.PeerJoined:
			if s.isInitiator {
				if err := s.beginAsInitiator(); err != nil {
					s.reportError(fmt.Errorf("peerconn: begin handshake: %w", err))
				}
			}

		case payload, ok := <-s.handler.Signal:
			if !ok {
				return
			}
			s.handleSignal(payload)

		case <-s.handler.PeerLeft:
			s.teardown()
			s.setState(StateDisconnected)
			select {
			case s.Left <- struct{}{}:
			default:
			}

		case errPayload, ok := <-s.handler.Error:
			if !ok {
				return
			}
			s.reportError(fmt.Errorf("peerconn: signaling error %s: %s", errPayload.Code, errPayload.Message))
		}
	}
}

// Begin starts the offer side of the handshake immediately. Callers use
// it when they observed peer-joined themselves before constructing the
// session; Run also reacts to a later peer-joined, so the two paths
// cover both orderings. No-op for a joiner.
func (s *Session) Begin() error {
	if !s.isInitiator {
		return nil
	}
	return s.beginAsInitiator()
}

func (s *Session) reportError(err error) {
	select {
	case s.Errors <- err:
	default:
	}
}

func (s *Session) beginAsInitiator() error {
	pc, err := newPeerConnection(s.cfg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.pc = pc
	s.mu.Unlock()
	s.setupPeerConnectionHandlers(pc)

	dc, err := createDataChannel(pc)
	if err != nil {
		return err
	}
	s.setupDataChannelHandlers(dc)

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}

	s.handler.SendOffer(pc.LocalDescription().SDP)
	return nil
}

func (s *Session) handleSignal(payload *rendezvous.SignalPayload) {
	switch payload.Type {
	case rendezvous.TypeOffer:
		if s.isInitiator {
			return
		}
		if err := s.handleOffer(payload.SDP); err != nil {
			s.reportError(fmt.Errorf("peerconn: handle offer: %w", err))
		}

	case rendezvous.TypeAnswer:
		if !s.isInitiator {
			return
		}
		if err := s.handleAnswer(payload.SDP); err != nil {
			s.reportError(fmt.Errorf("peerconn: handle answer: %w", err))
		}

	case rendezvous.TypeICECandidate:
		s.handleICECandidate(payload)
	}
}

func (s *Session) handleOffer(sdp string) error {
	pc, err := newPeerConnection(s.cfg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.pc = pc
	s.mu.Unlock()
	s.setupPeerConnectionHandlers(pc)

	pc.OnDataChannel(func(dc *pion.DataChannel) {
		s.setupDataChannelHandlers(dc)
	})

	if err := pc.SetRemoteDescription(pion.SessionDescription{Type: pion.SDPTypeOffer, SDP: sdp}); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	s.markRemoteDescriptionSet(pc)

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}

	s.handler.SendAnswer(pc.LocalDescription().SDP)
	return nil
}

func (s *Session) handleAnswer(sdp string) error {
	s.mu.Lock()
	pc := s.pc
	s.mu.Unlock()
	if pc == nil {
		return fmt.Errorf("no peer connection for answer")
	}
	if err := pc.SetRemoteDescription(pion.SessionDescription{Type: pion.SDPTypeAnswer, SDP: sdp}); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	s.markRemoteDescriptionSet(pc)
	return nil
}

// markRemoteDescriptionSet drains any ICE candidates that arrived before
// the remote description was applied, in the order they were received.
func (s *Session) markRemoteDescriptionSet(pc *pion.PeerConnection) {
	s.mu.Lock()
	s.remoteDescSet = true
	pending := s.pendingICE
	s.pendingICE = nil
	s.mu.Unlock()

	for _, c := range pending {
		if err := pc.AddICECandidate(c); err != nil {
			slog.Warn("peerconn: failed to apply buffered ICE candidate", "error", err)
		}
	}
}

func (s *Session) handleICECandidate(payload *rendezvous.SignalPayload) {
	candidate := pion.ICECandidateInit{
		Candidate:     payload.Candidate,
		SDPMid:        &payload.SDPMid,
		SDPMLineIndex: toUint16Ptr(payload.SDPMLineIndex),
	}

	s.mu.Lock()
	pc := s.pc
	ready := s.remoteDescSet
	if !ready {
		s.pendingICE = append(s.pendingICE, candidate)
	}
	s.mu.Unlock()

	if !ready || pc == nil {
		return
	}
	if err := pc.AddICECandidate(candidate); err != nil {
		slog.Warn("peerconn: failed to apply ICE candidate", "error", err)
	}
}

func toUint16Ptr(v *int) *uint16 {
	if v == nil {
		return nil
	}
	u := uint16(*v)
	return &u
}

func (s *Session) setupPeerConnectionHandlers(pc *pion.PeerConnection) {
	pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		var mLineIndex *int
		if init.SDPMLineIndex != nil {
			v := int(*init.SDPMLineIndex)
			mLineIndex = &v
		}
		var mid string
		if init.SDPMid != nil {
			mid = *init.SDPMid
		}
		s.handler.SendICECandidate(init.Candidate, mid, mLineIndex)
	})

	pc.OnICEConnectionStateChange(func(state pion.ICEConnectionState) {
		switch state {
		case pion.ICEConnectionStateFailed, pion.ICEConnectionStateClosed:
			s.teardown()
			s.setState(StateFailed)
			select {
			case s.Left <- struct{}{}:
			default:
			}
		case pion.ICEConnectionStateDisconnected:
			// Recoverable: ICE may reconnect on its own, no teardown.
		}
	})
}

func (s *Session) setupDataChannelHandlers(dc *pion.DataChannel) {
	dc.OnOpen(func() {
		s.mu.Lock()
		s.channel = dc
		s.mu.Unlock()
		s.setState(StateConnected)
		select {
		case s.ChannelOpen <- dc:
		default:
		}
	})
}

// Channel returns the open data channel, or nil if not yet connected.
func (s *Session) Channel() *pion.DataChannel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel
}

// teardown closes the data channel and peer connection and discards the
// pending-ICE buffer. Idempotent.
func (s *Session) teardown() {
	s.mu.Lock()
	pc := s.pc
	dc := s.channel
	s.pc = nil
	s.channel = nil
	s.remoteDescSet = false
	s.pendingICE = nil
	s.mu.Unlock()

	if dc != nil {
		_ = dc.Close()
	}
	if pc != nil {
		_ = pc.Close()
	}
}

// Reset returns the session to idle after a teardown has already run,
// allowing the same Session value to drive a fresh handshake (e.g. a
// retried pairing in the same room).
func (s *Session) Reset() {
	s.teardown()
	s.setState(StateIdle)
}

// IsInitiator reports the role this session was constructed with.
func (s *Session) IsInitiator() bool {
	return s.isInitiator
}
