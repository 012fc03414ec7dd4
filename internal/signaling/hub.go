package signaling

import (
	"log"
	"strings"
)

// Hub is the single owner of all room and client state. Its Run loop is the
// only goroutine that ever reads or writes Rooms or Clients, which is what
// lets create/join/leave/relay be observed as serialized without a mutex
// (strategy (a) of the concurrency model: one task, one critical section
// per message).
type Hub struct {
	Rooms   map[string]*Room
	Clients map[string]*Client

	Register   chan *Client
	Unregister chan *Client
	Broadcast  chan *Message
}

func NewHub() *Hub {
	return &Hub{
		Rooms:      make(map[string]*Room),
		Clients:    make(map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan *Message),
	}
}

// Run is the hub's event loop. Start it in its own goroutine once.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.handleRegister(client)

		case client := <-h.Unregister:
			h.handleUnregister(client)

		case msg := <-h.Broadcast:
			h.handleMessage(msg)
		}
	}
}

func (h *Hub) handleRegister(c *Client) {
	h.Clients[c.ID] = c
	// "connected {clientId}" is sent by the caller (ServeWs) immediately
	// after accept, before Register is even dispatched, so it is not
	// re-sent here; see internal/server.ServeWs.
	log.Printf("signaling: client connected: %s", c.ID)
}

func (h *Hub) handleUnregister(c *Client) {
	delete(h.Clients, c.ID)
	h.leaveRoom(c)
	close(c.Send)
	log.Printf("signaling: client disconnected: %s", c.ID)
}

// leaveRoom is the shared implementation behind explicit leave-room and
// implicit leave-on-disconnect. Idempotent.
func (h *Hub) leaveRoom(c *Client) {
	if c.RoomID == "" {
		return
	}
	room, ok := h.Rooms[c.RoomID]
	c.RoomID = ""
	if !ok {
		return
	}

	peer := room.Peer(c)
	delete(room.Members, c)

	if len(room.Members) == 0 {
		delete(h.Rooms, room.ID)
		log.Printf("signaling: room deleted: %s", room.ID)
		return
	}

	if peer != nil {
		peer.Send <- &Message{Type: TypePeerLeft}
	}
}

func (h *Hub) handleMessage(msg *Message) {
	switch msg.Type {
	case TypeCreateRoom:
		h.handleCreateRoom(msg.client)
	case TypeJoinRoom:
		h.handleJoinRoom(msg.client, msg.RoomID)
	case TypeLeaveRoom:
		h.leaveRoom(msg.client)
	case TypeOffer, TypeAnswer, TypeICECandidate:
		h.handleRelay(msg)
	default:
		msg.client.Send <- newError(ErrUnknownMessage, "unknown message type: "+msg.Type)
	}
}

func (h *Hub) handleCreateRoom(c *Client) {
	if c.RoomID != "" {
		c.Send <- newError(ErrAlreadyInRoom, "already in a room")
		return
	}

	code, err := h.uniqueRoomCode()
	if err != nil {
		c.Send <- newError("INTERNAL_ERROR", "failed to allocate room code")
		return
	}

	room := newRoom(code, c)
	h.Rooms[code] = room
	c.RoomID = code

	c.Send <- &Message{Type: TypeRoomCreated, RoomID: code}
	log.Printf("signaling: room created: %s by %s", code, c.ID)
}

func (h *Hub) uniqueRoomCode() (string, error) {
	for {
		code, err := generateRoomCode()
		if err != nil {
			return "", err
		}
		if _, exists := h.Rooms[code]; !exists {
			return code, nil
		}
	}
}

func (h *Hub) handleJoinRoom(c *Client, roomID string) {
	if c.RoomID != "" {
		c.Send <- newError(ErrAlreadyInRoom, "already in a room")
		return
	}

	code := strings.ToUpper(roomID)
	room, ok := h.Rooms[code]
	if !ok {
		c.Send <- newError(ErrRoomNotFound, "no room with that code")
		return
	}
	if room.full() {
		c.Send <- newError(ErrRoomFull, "room already has two members")
		return
	}

	room.Members[c] = struct{}{}
	c.RoomID = code

	// room-joined must reach the joiner first; peer-joined to the creator
	// may race it, which is fine per the ordering contract.
	c.Send <- &Message{Type: TypeRoomJoined, RoomID: code, IsInitiator: boolPtr(false)}

	if creator := room.Peer(c); creator != nil {
		creator.Send <- &Message{Type: TypePeerJoined}
	}

	log.Printf("signaling: %s joined room %s", c.ID, code)
}

func (h *Hub) handleRelay(msg *Message) {
	c := msg.client
	if c.RoomID == "" {
		c.Send <- newError(ErrNotInRoom, "join a room first")
		return
	}

	room, ok := h.Rooms[c.RoomID]
	if !ok {
		c.Send <- newError(ErrNotInRoom, "join a room first")
		return
	}

	peer := room.Peer(c)
	if peer == nil {
		c.Send <- newError(ErrNoPeer, "no other peer in this room")
		return
	}

	// Relay verbatim: the type field (offer/answer/ice-candidate) and the
	// SDP/candidate payload are preserved exactly as received.
	relayed := *msg
	relayed.client = nil
	peer.Send <- &relayed
}
