package rendezvous

// RoomJoined carries the room a peer joined plus whether it is the
// initiator of the subsequent WebRTC offer/answer exchange.
type RoomJoined struct {
	RoomID      string
	IsInitiator bool
}

// SignalPayload is one relayed offer, answer, or ICE candidate.
type SignalPayload struct {
	Type          string
	SDP           string
	Candidate     string
	SDPMid        string
	SDPMLineIndex *int
}

// ErrorPayload is a relayed server error.
type ErrorPayload struct {
	Code    string
	Message string
}

// Handler routes incoming signaling messages onto typed channels so
// callers never switch on raw message types themselves.
type Handler struct {
	client *Client

	Connected   chan string // clientId assigned by the server
	RoomCreated chan string
	RoomJoined  chan *RoomJoined
	PeerJoined  chan struct{}
	PeerLeft    chan struct{}
	Signal      chan *SignalPayload
	Error       chan *ErrorPayload

	closed bool
	done   chan struct{} // closed once Start's dispatch loop returns
}

// NewHandler creates a handler bound to client. Call Start to begin
// dispatching; the caller drains the typed channels concurrently.
func NewHandler(client *Client) *Handler {
	return &Handler{
		client:      client,
		Connected:   make(chan string, 1),
		RoomCreated: make(chan string, 1),
		RoomJoined:  make(chan *RoomJoined, 1),
		PeerJoined:  make(chan struct{}, 1),
		PeerLeft:    make(chan struct{}, 1),
		Signal:      make(chan *SignalPayload, 32),
		Error:       make(chan *ErrorPayload, 4),
		done:        make(chan struct{}),
	}
}

// Start dispatches incoming messages until the client's Incoming channel
// closes. Runs until the underlying connection is torn down. Close must
// not be called until the client itself has been closed, so that this
// loop has stopped writing to the handler's output channels before they
// are closed out from under it.
func (h *Handler) Start() {
	defer close(h.done)
	for msg := range h.client.Incoming() {
		switch msg.Type {

		case TypeConnected:
			h.Connected <- msg.ClientID

		case TypeRoomCreated:
			h.RoomCreated <- msg.RoomID

		case TypeRoomJoined:
			h.RoomJoined <- &RoomJoined{
				RoomID:      msg.RoomID,
				IsInitiator: msg.IsInitiator != nil && *msg.IsInitiator,
			}

		case TypePeerJoined:
			h.PeerJoined <- struct{}{}

		case TypePeerLeft:
			h.PeerLeft <- struct{}{}

		case TypeOffer, TypeAnswer, TypeICECandidate:
			h.Signal <- &SignalPayload{
				Type:          msg.Type,
				SDP:           msg.SDP,
				Candidate:     msg.Candidate,
				SDPMid:        msg.SDPMid,
				SDPMLineIndex: msg.SDPMLineIndex,
			}

		case TypeError:
			h.Error <- &ErrorPayload{Code: msg.Code, Message: msg.Message}

		default:
			// Unknown message types are ignored rather than treated as fatal;
			// the server never sends one the client doesn't understand in
			// practice, but a forward-compatible server might.
		}
	}
}

// Close closes all handler channels. Idempotent. The caller must close
// the underlying Client first: this blocks until Start's dispatch loop
// has observed the client's Incoming channel close, so it can never race
// a send against these channels closing.
func (h *Handler) Close() {
	if h.closed {
		return
	}
	h.closed = true

	<-h.done

	close(h.Connected)
	close(h.RoomCreated)
	close(h.RoomJoined)
	close(h.PeerJoined)
	close(h.PeerLeft)
	close(h.Signal)
	close(h.Error)
}

// CreateRoom requests a new room from the server.
func (h *Handler) CreateRoom() {
	h.client.SendMessage(&Message{Type: TypeCreateRoom})
}

// JoinRoom requests to join an existing room.
func (h *Handler) JoinRoom(roomID string) {
	h.client.SendMessage(&Message{Type: TypeJoinRoom, RoomID: roomID})
}

// LeaveRoom leaves the current room.
func (h *Handler) LeaveRoom() {
	h.client.SendMessage(&Message{Type: TypeLeaveRoom})
}

// SendOffer relays an SDP offer to the peer.
func (h *Handler) SendOffer(sdp string) {
	h.client.SendMessage(&Message{Type: TypeOffer, SDP: sdp})
}

// SendAnswer relays an SDP answer to the peer.
func (h *Handler) SendAnswer(sdp string) {
	h.client.SendMessage(&Message{Type: TypeAnswer, SDP: sdp})
}

// SendICECandidate relays one trickled ICE candidate to the peer.
func (h *Handler) SendICECandidate(candidate, sdpMid string, sdpMLineIndex *int) {
	h.client.SendMessage(&Message{
		Type:          TypeICECandidate,
		Candidate:     candidate,
		SDPMid:        sdpMid,
		SDPMLineIndex: sdpMLineIndex,
	})
}
