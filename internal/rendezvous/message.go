package rendezvous

// Message mirrors internal/signaling.Message on the wire: same JSON shape,
// defined separately so the client half of the protocol does not import
// the server's package.
type Message struct {
	Type string `json:"type"`

	ClientID string `json:"clientId,omitempty"`

	RoomID      string `json:"roomId,omitempty"`
	IsInitiator *bool  `json:"isInitiator,omitempty"`

	SDP string `json:"sdp,omitempty"`

	Candidate     string `json:"candidate,omitempty"`
	SDPMid        string `json:"sdpMid,omitempty"`
	SDPMLineIndex *int   `json:"sdpMLineIndex,omitempty"`

	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Message type constants, identical to internal/signaling's.
const (
	TypeCreateRoom   = "create-room"
	TypeJoinRoom     = "join-room"
	TypeLeaveRoom    = "leave-room"
	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeICECandidate = "ice-candidate"

	TypeConnected   = "connected"
	TypeRoomCreated = "room-created"
	TypeRoomJoined  = "room-joined"
	TypePeerJoined  = "peer-joined"
	TypePeerLeft    = "peer-left"
	TypeError       = "error"
)
