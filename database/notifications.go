package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NotificationFilter narrows notification listings.
type NotificationFilter struct {
	Filter
	TaskID *uint
	Status *NotificationStatus
}

func (f NotificationFilter) apply(q *gorm.DB) *gorm.DB {
	q = f.Filter.apply(q)
	if f.TaskID != nil {
		q = q.Where("task_id = ?", *f.TaskID)
	}
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	return q
}

// NotificationChanges are the mutable fields of a notification.
type NotificationChanges struct {
	ScheduledTime time.Time
	Message       *string
	Type          NotificationType
}

// CreateNotification schedules a notification on an enabled task owned by userID.
//
// A disabled notification on the same task and time is re-enabled with the new message
// and type and keeps its id; reactivated reports that case. An enabled one is a conflict.
func (s *Store) CreateNotification(ctx context.Context, userID, taskID uint, changes NotificationChanges) (n *Notification, reactivated bool, err error) {
	n = &Notification{}
	scheduled := NormalizeScheduledTime(changes.ScheduledTime)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task Task
		if err := OwnedBy(userID).apply(tx).Where("id = ?", taskID).First(&task).Error; err != nil {
			return err
		}

		err := tx.Where("task_id = ? AND scheduled_time = ?", taskID, scheduled).First(n).Error
		switch {
		case err == nil:
			if n.Enabled {
				return ErrConflict
			}
			reactivated = true
			if err := tx.Model(n).Updates(map[string]any{
				"user_id": userID,
				"message": changes.Message,
				"type":    changes.Type,
				"status":  StatusPending,
				"enabled": true,
			}).Error; err != nil {
				return err
			}
			return tx.First(n, n.ID).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			*n = Notification{
				ScheduledTime: scheduled,
				TaskID:        taskID,
				UserID:        userID,
				Status:        StatusPending,
				Message:       changes.Message,
				Type:          changes.Type,
				Enabled:       true,
			}
			return tx.Omit(clause.Associations).Create(n).Error
		default:
			return err
		}
	})
	if err != nil {
		return nil, false, wrap("create notification", err)
	}
	return n, reactivated, nil
}

// ListNotifications returns the notifications matching f, by scheduled time.
func (s *Store) ListNotifications(ctx context.Context, f NotificationFilter) ([]Notification, error) {
	list := []Notification{}
	if err := f.apply(s.db.WithContext(ctx)).Order("scheduled_time ASC, id ASC").Find(&list).Error; err != nil {
		return nil, wrap("list notifications", err)
	}
	return list, nil
}

// FindNotification returns the notification with id if it matches f.
func (s *Store) FindNotification(ctx context.Context, id uint, f Filter) (*Notification, error) {
	var n Notification
	if err := f.apply(s.db.WithContext(ctx)).Where("id = ?", id).First(&n).Error; err != nil {
		return nil, wrap("find notification", err)
	}
	return &n, nil
}

// UpdateNotification overwrites an enabled notification owned by userID and puts it back
// in the pending state.
func (s *Store) UpdateNotification(ctx context.Context, id, userID uint, changes NotificationChanges) (*Notification, error) {
	var n Notification
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := OwnedBy(userID).apply(tx).Where("id = ?", id).First(&n).Error; err != nil {
			return err
		}
		if err := tx.Model(&n).Updates(map[string]any{
			"scheduled_time": NormalizeScheduledTime(changes.ScheduledTime),
			"message":        changes.Message,
			"type":           changes.Type,
			"status":         StatusPending,
		}).Error; err != nil {
			return err
		}
		return tx.First(&n, id).Error
	})
	if err != nil {
		return nil, wrap("update notification", err)
	}
	return &n, nil
}

// DisableNotification disables an enabled notification owned by userID.
func (s *Store) DisableNotification(ctx context.Context, id, userID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n Notification
		if err := OwnedBy(userID).apply(tx).Where("id = ?", id).First(&n).Error; err != nil {
			return err
		}
		return tx.Model(&n).Update("enabled", false).Error
	})
	return wrap("disable notification", err)
}

// DueNotifications returns the enabled pending notifications scheduled at or before now.
func (s *Store) DueNotifications(ctx context.Context, now time.Time) ([]Notification, error) {
	list := []Notification{}
	err := s.db.WithContext(ctx).
		Where("enabled = ? AND status = ? AND scheduled_time <= ?", true, StatusPending, NormalizeScheduledTime(now)).
		Order("scheduled_time ASC, id ASC").
		Find(&list).Error
	if err != nil {
		return nil, wrap("due notifications", err)
	}
	return list, nil
}

// SetNotificationStatus records the outcome of a dispatch. Only enabled pending
// notifications can move, so a second dispatch of the same row fails with ErrNotPending.
func (s *Store) SetNotificationStatus(ctx context.Context, id uint, status NotificationStatus) (*Notification, error) {
	var n Notification
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND enabled = ?", id, true).First(&n).Error; err != nil {
			return err
		}
		if n.Status != StatusPending {
			return ErrNotPending
		}
		if err := tx.Model(&n).Update("status", status).Error; err != nil {
			return err
		}
		n.Status = status
		return nil
	})
	if err != nil {
		return nil, wrap("set notification status", err)
	}
	return &n, nil
}
