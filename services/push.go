package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/CrowderSoup/prioritease/database"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// MessageSender sends a Telegram message. *tgbotapi.BotAPI implements it.
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// PushChannel delivers notifications through the Telegram Bot API. The device token
// registered by a user is the chat id to write to.
type PushChannel struct {
	sender MessageSender
}

// NewTelegramChannel connects to the Bot API with token.
func NewTelegramChannel(token string) (*PushChannel, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram api: %w", err)
	}
	return NewPushChannel(api), nil
}

func NewPushChannel(sender MessageSender) *PushChannel {
	return &PushChannel{sender: sender}
}

func (c *PushChannel) Name() string { return "push" }

func (c *PushChannel) Deliver(ctx context.Context, n *database.Notification, u *database.User) error {
	if u.DeviceToken == nil || strings.TrimSpace(*u.DeviceToken) == "" {
		return fmt.Errorf("%w: user %d has no device token", ErrNoRecipient, u.ID)
	}
	chatID, err := strconv.ParseInt(strings.TrimSpace(*u.DeviceToken), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: device token of user %d is not a chat id", ErrNoRecipient, u.ID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, pushText(n))
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := c.sender.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func pushText(n *database.Notification) string {
	var b strings.Builder
	kind := string(n.Type)
	if kind == "" {
		kind = string(database.TypeReminder)
	}
	fmt.Fprintf(&b, "<b>%s</b> %s", strings.ToUpper(kind[:1])+kind[1:],
		n.ScheduledTime.UTC().Format("2006-01-02 15:04 MST"))
	if n.Message != nil && *n.Message != "" {
		b.WriteString("\n")
		b.WriteString(escapeHTML(*n.Message))
	}
	return b.String()
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}
