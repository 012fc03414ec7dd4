package server

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/beamline/beamline/internal/signaling"
)

// upgrader configures the websocket upgrade. Origin checking is left
// permissive: the protocol's only authentication is possession of a room
// code, so there is no per-origin trust boundary to enforce here.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWs returns the HTTP handler for the single signaling endpoint. It
// upgrades the connection, assigns the client its ID, emits "connected"
// immediately (before registering with the Hub, so it is always the first
// frame the client observes), and starts the read/write pumps.
func ServeWs(hub *signaling.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("signaling: upgrade failed:", err)
			return
		}

		client := signaling.NewClient(hub, conn)

		if err := conn.WriteJSON(&signaling.Message{
			Type:     signaling.TypeConnected,
			ClientID: client.ID,
		}); err != nil {
			log.Println("signaling: failed to send connected message:", err)
			conn.Close()
			return
		}

		hub.Register <- client

		go client.WritePump()
		go client.ReadPump()
	}
}
