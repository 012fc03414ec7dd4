package signaling

// Room pairs at most two clients under a shared 6-character code. A Room
// with zero members is never observable: the Hub deletes it the instant
// its last member leaves.
type Room struct {
	ID      string
	Creator *Client

	// Members holds 1 or 2 clients. Order is not meaningful; the peer of a
	// given client is simply "the other one."
	Members map[*Client]struct{}
}

func newRoom(id string, creator *Client) *Room {
	return &Room{
		ID:      id,
		Creator: creator,
		Members: map[*Client]struct{}{creator: {}},
	}
}

// Peer returns the other member of the room relative to c, or nil if c is
// the sole occupant.
func (r *Room) Peer(c *Client) *Client {
	for member := range r.Members {
		if member != c {
			return member
		}
	}
	return nil
}

func (r *Room) full() bool {
	return len(r.Members) >= 2
}
