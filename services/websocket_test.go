package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/CrowderSoup/prioritease/database"
	"github.com/gorilla/websocket"
)

// startHub runs a hub and a server that registers every connection as userID.
func startHub(t *testing.T, userID uint) (*Hub, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(quietLogger)
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(hub, conn, userID)
		hub.Register(client)
		go client.WritePump()
		go client.ReadPump()
	}))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WebSocketMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg WebSocketMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
	return msg
}

// waitForSessions polls until userID has a connected session.
func waitForSessions(t *testing.T, hub *Hub, userID uint) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		n, err := hub.SendToUser(context.Background(), userID, WebSocketMessage{Type: "hello"})
		if err != nil {
			t.Fatalf("send: %v", err)
		}
		if n > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("user %d never connected", userID)
}

func TestHubSendToUser(t *testing.T) {
	hub, url := startHub(t, 7)
	conn := dial(t, url)
	waitForSessions(t, hub, 7)
	if msg := readMessage(t, conn); msg.Type != "hello" {
		t.Fatalf("expected hello, got %+v", msg)
	}

	n, err := hub.SendToUser(context.Background(), 8, WebSocketMessage{Type: "other"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no sessions for another user, got %d", n)
	}

	if err := conn.WriteJSON(WebSocketMessage{Type: "ping"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readMessage(t, conn); msg.Type != "pong" {
		t.Fatalf("expected pong, got %+v", msg)
	}
}

func TestLiveChannel(t *testing.T) {
	hub, url := startHub(t, 7)
	live := NewLiveChannel(hub)
	n := &database.Notification{ID: 3, UserID: 7, Type: database.TypeReminder}

	err := live.Deliver(context.Background(), n, &database.User{ID: 7})
	if !errors.Is(err, ErrNoRecipient) {
		t.Fatalf("expected no recipient before connecting, got %v", err)
	}

	conn := dial(t, url)
	waitForSessions(t, hub, 7)
	readMessage(t, conn)

	if err := live.Deliver(context.Background(), n, &database.User{ID: 7}); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if msg := readMessage(t, conn); msg.Type != "notification" {
		t.Fatalf("expected notification message, got %+v", msg)
	}
}

func TestSendToUserAfterShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(quietLogger)
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	n, err := hub.SendToUser(context.Background(), 1, WebSocketMessage{Type: "late"})
	if err != nil || n != 0 {
		t.Fatalf("expected no delivery after shutdown, got %d %v", n, err)
	}
}

// A session whose writer has stalled is dropped once its buffer overflows. Pinging it
// afterwards must not touch the closed send channel.
func TestPingAfterOverflowedSessionIsDropped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(quietLogger)
	go hub.Run(ctx)

	var connections atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(hub, conn, 7)
		hub.Register(client)
		if connections.Add(1) > 1 {
			go client.WritePump()
		}
		go client.ReadPump()
	}))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	stalled := dial(t, url)
	waitForCount(t, hub, 7, 1)
	live := dial(t, url)
	waitForCount(t, hub, 7, 2)

	for i := 0; i < 300; i++ {
		if err := stalled.WriteJSON(WebSocketMessage{Type: "ping"}); err != nil {
			t.Fatalf("write ping %d: %v", i, err)
		}
	}
	waitForCount(t, hub, 7, 1)

	if err := stalled.WriteJSON(WebSocketMessage{Type: "ping"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := stalled.WriteJSON(WebSocketMessage{Type: "after"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	// The relayed message proves the stalled session's reader survived the ping.
	for {
		msg := readMessage(t, live)
		if msg.Type == "pong" {
			t.Fatalf("pong of another session leaked: %+v", msg)
		}
		if msg.Type == "after" {
			break
		}
	}
}

// waitForCount polls until SendToUser reaches exactly want sessions of userID.
func waitForCount(t *testing.T, hub *Hub, userID uint, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		n, err := hub.SendToUser(context.Background(), userID, WebSocketMessage{Type: "hello"})
		if err != nil {
			t.Fatalf("send: %v", err)
		}
		if n == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("user %d never reached %d sessions", userID, want)
}
