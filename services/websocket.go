package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024
)

// Client is one connected WebSocket session of a user.
type Client struct {
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan []byte
	UserID uint
}

// WebSocketMessage is the standard message format for WebSocket communication.
type WebSocketMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// NewClient returns a session for userID on conn.
func NewClient(hub *Hub, conn *websocket.Conn, userID uint) *Client {
	return &Client{Hub: hub, Conn: conn, Send: make(chan []byte, 256), UserID: userID}
}

// ReadPump pumps messages from the WebSocket connection to the hub. Pings are answered
// with a pong to this session; anything else is relayed to the user's other sessions.
// Only the hub sends on or closes Send.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Printf("WebSocket error: %v", err)
			}
			break
		}

		var wsMessage WebSocketMessage
		if err := json.Unmarshal(message, &wsMessage); err != nil {
			c.Hub.logger.Printf("Error unmarshalling WebSocket message: %v", err)
			continue
		}

		if wsMessage.Type == "ping" {
			pong, err := json.Marshal(WebSocketMessage{
				Type: "pong",
				Data: map[string]string{"timestamp": time.Now().Format(time.RFC3339)},
			})
			if err == nil {
				c.Hub.reply(c, pong)
			}
			continue
		}

		c.Hub.relay(c, message)
	}
}

// WritePump pumps messages from the hub to the WebSocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current WebSocket message
			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte("\n"))
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type envelope struct {
	userID  uint
	message []byte
	exclude *Client
	// target, when set, is the only session the message goes to.
	target *Client
	// delivered receives the number of sessions the message was queued for.
	delivered chan int
}

// Hub keeps the connected sessions of every user. All session state is owned by Run.
type Hub struct {
	clients    map[uint]map[*Client]bool
	send       chan envelope
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	logger     *log.Logger
}

// NewHub creates a new hub instance.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		clients:    make(map[uint]map[*Client]bool),
		send:       make(chan envelope),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.Send)
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// SendToUser queues message on every session of userID and reports how many sessions
// received it. Zero means the user has no connected session.
func (h *Hub) SendToUser(ctx context.Context, userID uint, message WebSocketMessage) (int, error) {
	payload, err := json.Marshal(message)
	if err != nil {
		return 0, err
	}
	env := envelope{userID: userID, message: payload, delivered: make(chan int, 1)}
	select {
	case h.send <- env:
	case <-h.done:
		return 0, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case n := <-env.delivered:
		return n, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Publish sends message to the sessions of userID without waiting for the result.
func (h *Hub) Publish(userID uint, message WebSocketMessage) {
	payload, err := json.Marshal(message)
	if err != nil {
		h.logger.Printf("Error marshalling WebSocket message: %v", err)
		return
	}
	go func() {
		select {
		case h.send <- envelope{userID: userID, message: payload}:
		case <-h.done:
		}
	}()
}

// reply queues message for client alone. It is dropped if the session is gone.
func (h *Hub) reply(client *Client, message []byte) {
	select {
	case h.send <- envelope{userID: client.UserID, message: message, target: client}:
	case <-h.done:
	}
}

func (h *Hub) relay(from *Client, message []byte) {
	select {
	case h.send <- envelope{userID: from.UserID, message: message, exclude: from}:
	case <-h.done:
	}
}

// Run starts the hub's main loop. It returns when ctx is cancelled, closing every session.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		for _, sessions := range h.clients {
			for client := range sessions {
				close(client.Send)
			}
		}
		h.clients = map[uint]map[*Client]bool{}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			sessions := h.clients[client.UserID]
			if sessions == nil {
				sessions = make(map[*Client]bool)
				h.clients[client.UserID] = sessions
			}
			sessions[client] = true
			h.logger.Printf("Client connected: user %d (%d sessions)", client.UserID, len(sessions))
		case client := <-h.unregister:
			h.remove(client)
		case env := <-h.send:
			n := 0
			for client := range h.clients[env.userID] {
				if client == env.exclude || (env.target != nil && client != env.target) {
					continue
				}
				select {
				case client.Send <- env.message:
					n++
				default:
					h.logger.Printf("Client send buffer full, removing session of user %d", client.UserID)
					h.remove(client)
				}
			}
			if env.delivered != nil {
				env.delivered <- n
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	sessions, ok := h.clients[client.UserID]
	if !ok || !sessions[client] {
		return
	}
	delete(sessions, client)
	close(client.Send)
	if len(sessions) == 0 {
		delete(h.clients, client.UserID)
	}
	h.logger.Printf("Client disconnected: user %d", client.UserID)
}
