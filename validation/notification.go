package validation

import (
	"strings"
	"time"
)

// MaxMessageLength is the longest accepted notification message.
const MaxMessageLength = 255

// NotificationTypes lists the accepted notification types. The first is the default.
var NotificationTypes = []string{"reminder", "deadline", "recurring", "urgent", "custom"}

// NotificationInput is a notification payload.
type NotificationInput struct {
	Task          uint
	ScheduledTime time.Time
	Message       *string
	Type          string
}

// NotificationCreate validates a new notification. ScheduledTime must be after now.
func NotificationCreate(b Bag, now time.Time) (NotificationInput, error) {
	raw, ok := b["task"]
	if !ok {
		return NotificationInput{}, fail("task", "is required")
	}
	task, err := ID("task", raw)
	if err != nil {
		return NotificationInput{}, err
	}
	in, err := b.notificationFields(now)
	if err != nil {
		return NotificationInput{}, err
	}
	if err := b.allowOnly("task", "scheduledTime", "message", "type"); err != nil {
		return NotificationInput{}, err
	}
	in.Task = task
	return in, nil
}

// NotificationUpdate validates a full notification update. The task cannot change.
func NotificationUpdate(b Bag, now time.Time) (NotificationInput, error) {
	in, err := b.notificationFields(now)
	if err != nil {
		return NotificationInput{}, err
	}
	if err := b.allowOnly("scheduledTime", "message", "type"); err != nil {
		return NotificationInput{}, err
	}
	return in, nil
}

func (b Bag) notificationFields(now time.Time) (NotificationInput, error) {
	var in NotificationInput

	raw, ok := b["scheduledTime"]
	if !ok {
		return in, fail("scheduledTime", "is required")
	}
	scheduled, err := parseDate("scheduledTime", raw)
	if err != nil {
		return in, err
	}
	if !scheduled.After(now) {
		return in, fail("scheduledTime", `must be greater than "now"`)
	}
	in.ScheduledTime = scheduled

	message, err := b.nullableString("message")
	if err != nil {
		return in, err
	}
	if message.Value != nil {
		if err := checkText("message", *message.Value, 0, MaxMessageLength); err != nil {
			return in, err
		}
	}
	in.Message = message.Value

	in.Type = NotificationTypes[0]
	if raw, ok := b["type"]; ok {
		s, ok := raw.(string)
		if !ok || !validType(s) {
			return in, fail("type", "must be one of [%s]", strings.Join(NotificationTypes, ", "))
		}
		in.Type = s
	}
	return in, nil
}

func validType(s string) bool {
	for _, t := range NotificationTypes {
		if t == s {
			return true
		}
	}
	return false
}
