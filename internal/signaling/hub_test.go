package signaling

import (
	"testing"
)

// newTestClient builds a Client with no real websocket connection; Hub
// logic never dereferences Conn directly, only Send/RoomID/ID, so this is
// sufficient to drive the Hub's message handlers in isolation.
func newTestClient(h *Hub) *Client {
	c := &Client{
		ID:   uniqueTestID(),
		Hub:  h,
		Send: make(chan *Message, 16),
	}
	h.Clients[c.ID] = c
	return c
}

var testIDCounter int

func uniqueTestID() string {
	testIDCounter++
	return "test-client-" + string(rune('a'+testIDCounter))
}

func drain(t *testing.T, ch chan *Message) *Message {
	t.Helper()
	select {
	case m := <-ch:
		return m
	default:
		t.Fatal("expected a message, got none")
		return nil
	}
}

func TestCreateRoom_AssignsCreatorAndRejectsDuplicate(t *testing.T) {
	h := NewHub()
	alice := newTestClient(h)

	h.handleCreateRoom(alice)

	msg := drain(t, alice.Send)
	if msg.Type != TypeRoomCreated {
		t.Fatalf("expected room-created, got %s", msg.Type)
	}
	if len(msg.RoomID) != roomCodeLength {
		t.Fatalf("expected %d-char room code, got %q", roomCodeLength, msg.RoomID)
	}
	if alice.RoomID != msg.RoomID {
		t.Fatalf("client RoomID not set")
	}
	room, ok := h.Rooms[msg.RoomID]
	if !ok || room.Creator != alice || len(room.Members) != 1 {
		t.Fatalf("room not created correctly: %+v", room)
	}

	// Creating again while already in a room must fail.
	h.handleCreateRoom(alice)
	errMsg := drain(t, alice.Send)
	if errMsg.Type != TypeError || errMsg.Code != ErrAlreadyInRoom {
		t.Fatalf("expected ALREADY_IN_ROOM, got %+v", errMsg)
	}
}

func TestJoinRoom_NormalizesCaseAndNotifiesBothSides(t *testing.T) {
	h := NewHub()
	alice := newTestClient(h)
	h.handleCreateRoom(alice)
	created := drain(t, alice.Send)

	bob := newTestClient(h)
	h.handleJoinRoom(bob, toLowerForTest(created.RoomID))

	joined := drain(t, bob.Send)
	if joined.Type != TypeRoomJoined || joined.IsInitiator == nil || *joined.IsInitiator {
		t.Fatalf("expected room-joined{isInitiator:false}, got %+v", joined)
	}
	if joined.RoomID != created.RoomID {
		t.Fatalf("joined room id mismatch: got %s want %s", joined.RoomID, created.RoomID)
	}

	peerJoined := drain(t, alice.Send)
	if peerJoined.Type != TypePeerJoined {
		t.Fatalf("expected peer-joined on creator side, got %+v", peerJoined)
	}

	room := h.Rooms[created.RoomID]
	if len(room.Members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(room.Members))
	}
}

func toLowerForTest(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func TestJoinRoom_FullRoomRejectsThirdClient(t *testing.T) {
	h := NewHub()
	alice := newTestClient(h)
	h.handleCreateRoom(alice)
	created := drain(t, alice.Send)

	bob := newTestClient(h)
	h.handleJoinRoom(bob, created.RoomID)
	drain(t, bob.Send)
	drain(t, alice.Send)

	carol := newTestClient(h)
	h.handleJoinRoom(carol, created.RoomID)
	errMsg := drain(t, carol.Send)
	if errMsg.Type != TypeError || errMsg.Code != ErrRoomFull {
		t.Fatalf("expected ROOM_FULL, got %+v", errMsg)
	}

	room := h.Rooms[created.RoomID]
	if len(room.Members) != 2 {
		t.Fatalf("membership changed on rejected join: %d", len(room.Members))
	}
}

func TestJoinRoom_UnknownCodeFails(t *testing.T) {
	h := NewHub()
	bob := newTestClient(h)
	h.handleJoinRoom(bob, "ZZZZZZ")
	errMsg := drain(t, bob.Send)
	if errMsg.Type != TypeError || errMsg.Code != ErrRoomNotFound {
		t.Fatalf("expected ROOM_NOT_FOUND, got %+v", errMsg)
	}
}

func TestRelay_RequiresTwoOccupants(t *testing.T) {
	h := NewHub()
	alice := newTestClient(h)
	h.handleCreateRoom(alice)
	drain(t, alice.Send)

	h.handleRelay(&Message{Type: TypeOffer, SDP: "v=0...", client: alice})
	errMsg := drain(t, alice.Send)
	if errMsg.Type != TypeError || errMsg.Code != ErrNoPeer {
		t.Fatalf("expected NO_PEER, got %+v", errMsg)
	}
}

func TestRelay_DeliversVerbatimToOtherOccupant(t *testing.T) {
	h := NewHub()
	alice := newTestClient(h)
	h.handleCreateRoom(alice)
	created := drain(t, alice.Send)

	bob := newTestClient(h)
	h.handleJoinRoom(bob, created.RoomID)
	drain(t, bob.Send)
	drain(t, alice.Send)

	h.handleRelay(&Message{Type: TypeOffer, SDP: "v=0 fake-sdp", client: alice})
	relayed := drain(t, bob.Send)
	if relayed.Type != TypeOffer || relayed.SDP != "v=0 fake-sdp" {
		t.Fatalf("relay not verbatim: %+v", relayed)
	}
}

func TestLeaveRoom_NotifiesPeerAndDeletesWhenEmpty(t *testing.T) {
	h := NewHub()
	alice := newTestClient(h)
	h.handleCreateRoom(alice)
	created := drain(t, alice.Send)

	bob := newTestClient(h)
	h.handleJoinRoom(bob, created.RoomID)
	drain(t, bob.Send)
	drain(t, alice.Send)

	h.leaveRoom(bob)
	peerLeft := drain(t, alice.Send)
	if peerLeft.Type != TypePeerLeft {
		t.Fatalf("expected peer-left, got %+v", peerLeft)
	}
	if _, exists := h.Rooms[created.RoomID]; !exists {
		t.Fatalf("room deleted too early: one member remains")
	}

	h.leaveRoom(alice)
	if _, exists := h.Rooms[created.RoomID]; exists {
		t.Fatalf("room should be deleted once empty")
	}

	// Idempotent: leaving again is a no-op, not a panic.
	h.leaveRoom(alice)
}

func TestUnknownMessageType_RepliesWithoutDisconnecting(t *testing.T) {
	h := NewHub()
	alice := newTestClient(h)
	h.handleMessage(&Message{Type: "bogus", client: alice})
	errMsg := drain(t, alice.Send)
	if errMsg.Type != TypeError || errMsg.Code != ErrUnknownMessage {
		t.Fatalf("expected UNKNOWN_MESSAGE, got %+v", errMsg)
	}
}

func TestRoomCodesAreUppercaseAndUnique(t *testing.T) {
	h := NewHub()
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := h.uniqueRoomCode()
		if err != nil {
			t.Fatal(err)
		}
		if seen[code] {
			t.Fatalf("duplicate room code generated: %s", code)
		}
		seen[code] = true
		for _, r := range code {
			if r >= 'a' && r <= 'z' {
				t.Fatalf("room code not uppercase: %s", code)
			}
		}
		// Reserve it so the next draw must avoid it.
		h.Rooms[code] = &Room{ID: code}
	}
}
