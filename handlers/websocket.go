package handlers

import (
	"net/http"

	"github.com/CrowderSoup/prioritease/services"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleWebSocket upgrades the connection and registers it as a session of the caller.
// Notifications and change events for the caller are pushed over it.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		writeError(w, http.StatusNotFound, "live updates are not configured")
		return
	}
	identity := identityFrom(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("Error upgrading to WebSocket: %v", err)
		return
	}

	client := services.NewClient(h.hub, conn, identity.ID)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
