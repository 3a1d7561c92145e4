package services

import (
	"context"
	"fmt"

	"github.com/CrowderSoup/prioritease/database"
)

// LiveChannel delivers notifications to the connected WebSocket sessions of a user.
type LiveChannel struct {
	hub *Hub
}

func NewLiveChannel(hub *Hub) *LiveChannel {
	return &LiveChannel{hub: hub}
}

func (c *LiveChannel) Name() string { return "websocket" }

func (c *LiveChannel) Deliver(ctx context.Context, n *database.Notification, u *database.User) error {
	sessions, err := c.hub.SendToUser(ctx, u.ID, WebSocketMessage{Type: "notification", Data: n})
	if err != nil {
		return err
	}
	if sessions == 0 {
		return fmt.Errorf("%w: user %d has no connected session", ErrNoRecipient, u.ID)
	}
	return nil
}
