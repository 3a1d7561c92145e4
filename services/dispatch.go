package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/CrowderSoup/prioritease/config"
	"github.com/CrowderSoup/prioritease/database"
)

// ErrNoRecipient is returned by a channel that has nowhere to deliver for a user.
// It counts as a failed attempt.
var ErrNoRecipient = errors.New("no recipient")

// Channel delivers notifications to a user.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, n *database.Notification, u *database.User) error
}

// Attempt is the outcome of one channel for one notification.
type Attempt struct {
	Channel   string `json:"channel"`
	Delivered bool   `json:"delivered"`
	Error     string `json:"error,omitempty"`
}

// DispatchResult is the outcome of dispatching one notification.
type DispatchResult struct {
	Notification *database.Notification `json:"notification"`
	Attempts     []Attempt              `json:"attempts"`
}

// DispatchStore is the storage used by Dispatcher.
type DispatchStore interface {
	FindNotification(ctx context.Context, id uint, f database.Filter) (*database.Notification, error)
	FindUser(ctx context.Context, id uint, enabled *bool) (*database.User, error)
	DueNotifications(ctx context.Context, now time.Time) ([]database.Notification, error)
	SetNotificationStatus(ctx context.Context, id uint, status database.NotificationStatus) (*database.Notification, error)
}

// Dispatcher attempts every channel for a notification and records a single status.
type Dispatcher struct {
	store    DispatchStore
	channels []Channel
	policy   string
	logger   *log.Logger
}

// NewDispatcher returns a dispatcher trying channels in order. policy decides how the
// attempts turn into a status: "last" uses the last channel, "any" needs one success and
// "all" needs every channel to succeed.
func NewDispatcher(store DispatchStore, policy string, logger *log.Logger, channels ...Channel) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	if policy == "" {
		policy = config.PolicyLast
	}
	return &Dispatcher{store: store, channels: channels, policy: policy, logger: logger}
}

// Dispatch delivers the enabled pending notification id.
func (d *Dispatcher) Dispatch(ctx context.Context, id uint) (*DispatchResult, error) {
	enabled := true
	n, err := d.store.FindNotification(ctx, id, database.Filter{Enabled: &enabled})
	if err != nil {
		return nil, err
	}
	return d.dispatch(ctx, n)
}

func (d *Dispatcher) dispatch(ctx context.Context, n *database.Notification) (*DispatchResult, error) {
	if n.Status != database.StatusPending {
		return nil, database.ErrNotPending
	}
	user, err := d.store.FindUser(ctx, n.UserID, nil)
	if err != nil {
		return nil, fmt.Errorf("load recipient of notification %d: %w", n.ID, err)
	}

	attempts := make([]Attempt, 0, len(d.channels))
	for _, ch := range d.channels {
		a := Attempt{Channel: ch.Name()}
		if err := ch.Deliver(ctx, n, user); err != nil {
			a.Error = err.Error()
			if !errors.Is(err, ErrNoRecipient) {
				d.logger.Printf("Channel %s failed for notification %d: %v", ch.Name(), n.ID, err)
			}
		} else {
			a.Delivered = true
		}
		attempts = append(attempts, a)
	}

	status := Aggregate(d.policy, attempts)
	updated, err := d.store.SetNotificationStatus(ctx, n.ID, status)
	if err != nil {
		return nil, err
	}
	return &DispatchResult{Notification: updated, Attempts: attempts}, nil
}

// DispatchDue dispatches every notification due at now. Failures of one notification do
// not stop the sweep.
func (d *Dispatcher) DispatchDue(ctx context.Context, now time.Time) ([]DispatchResult, error) {
	due, err := d.store.DueNotifications(ctx, now)
	if err != nil {
		return nil, err
	}

	results := []DispatchResult{}
	for i := range due {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := d.dispatch(ctx, &due[i])
		if errors.Is(err, database.ErrNotPending) || errors.Is(err, database.ErrNotFound) {
			continue
		}
		if err != nil {
			d.logger.Printf("Error dispatching notification %d: %v", due[i].ID, err)
			continue
		}
		results = append(results, *res)
	}
	return results, nil
}

// Aggregate turns channel attempts into a notification status under policy.
// Without attempts the notification failed.
func Aggregate(policy string, attempts []Attempt) database.NotificationStatus {
	if len(attempts) == 0 {
		return database.StatusFailed
	}
	ok := false
	switch policy {
	case config.PolicyAny:
		for _, a := range attempts {
			ok = ok || a.Delivered
		}
	case config.PolicyAll:
		ok = true
		for _, a := range attempts {
			ok = ok && a.Delivered
		}
	default:
		ok = attempts[len(attempts)-1].Delivered
	}
	if ok {
		return database.StatusSent
	}
	return database.StatusFailed
}
