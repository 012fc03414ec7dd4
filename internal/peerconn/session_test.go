package peerconn

import (
	"testing"

	"github.com/beamline/beamline/internal/rendezvous"
)

func TestState_String(t *testing.T) {
	cases := map[State]string{
		StateIdle:         "idle",
		StateConnecting:   "connecting",
		StateConnected:    "connected",
		StateDisconnected: "disconnected",
		StateFailed:       "failed",
		State(99):         "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}

func TestHandleICECandidate_BuffersBeforeRemoteDescriptionSet(t *testing.T) {
	s := &Session{
		handler: rendezvous.NewHandler(nil),
	}

	s.handleICECandidate(&rendezvous.SignalPayload{Candidate: "candidate:1 a"})
	s.handleICECandidate(&rendezvous.SignalPayload{Candidate: "candidate:2 b"})

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pendingICE) != 2 {
		t.Fatalf("expected 2 buffered candidates, got %d", len(s.pendingICE))
	}
	if s.pendingICE[0].Candidate != "candidate:1 a" || s.pendingICE[1].Candidate != "candidate:2 b" {
		t.Fatalf("buffered candidates out of order: %+v", s.pendingICE)
	}
}

func TestHandleICECandidate_NoOpWithoutPeerConnectionOnceReady(t *testing.T) {
	s := &Session{
		handler:       rendezvous.NewHandler(nil),
		remoteDescSet: true,
	}
	// With remoteDescSet true but pc nil (handshake torn down concurrently),
	// handleICECandidate must not panic and must not buffer the candidate.
	s.handleICECandidate(&rendezvous.SignalPayload{Candidate: "candidate:3 c"})

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pendingICE) != 0 {
		t.Fatalf("expected no buffering once remote description is set, got %d", len(s.pendingICE))
	}
}

func TestToUint16Ptr(t *testing.T) {
	if toUint16Ptr(nil) != nil {
		t.Fatal("expected nil for nil input")
	}
	v := 3
	got := toUint16Ptr(&v)
	if got == nil || *got != 3 {
		t.Fatalf("expected pointer to 3, got %v", got)
	}
}
