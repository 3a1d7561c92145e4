package database

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Filter scopes list and find queries. A nil UserID means every owner;
// a nil Enabled means both states.
type Filter struct {
	UserID  *uint
	Enabled *bool
}

// OwnedBy is a filter matching the enabled rows of userID.
func OwnedBy(userID uint) Filter {
	enabled := true
	return Filter{UserID: &userID, Enabled: &enabled}
}

func (f Filter) apply(q *gorm.DB) *gorm.DB {
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.Enabled != nil {
		q = q.Where("enabled = ?", *f.Enabled)
	}
	return q
}

// UserChanges lists account fields to overwrite. Nil fields are left alone.
type UserChanges struct {
	Username     *string
	Email        *string
	PasswordHash *string
	Admin        *bool
}

// Register inserts a new account with its default task list.
//
// An enabled account with the same email is a conflict. Disabled accounts with the same
// email are deleted together with their notifications, tasks and lists first.
func (s *Store) Register(ctx context.Context, user *User) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []User
		if err := tx.Where("email = ?", user.Email).Find(&existing).Error; err != nil {
			return err
		}
		var stale []uint
		for _, u := range existing {
			if u.Enabled {
				return ErrConflict
			}
			stale = append(stale, u.ID)
		}
		if len(stale) > 0 {
			if err := purgeUsers(tx, stale); err != nil {
				return err
			}
		}

		user.ID = 0
		user.Enabled = true
		if err := tx.Omit(clause.Associations).Create(user).Error; err != nil {
			return err
		}
		list := TaskList{UserID: user.ID, Name: DefaultListName, Enabled: true}
		return tx.Omit(clause.Associations).Create(&list).Error
	})
	return wrap("register user", err)
}

// purgeUsers hard-deletes users and everything they own.
func purgeUsers(tx *gorm.DB, ids []uint) error {
	if err := tx.Where("user_id IN ?", ids).Delete(&Notification{}).Error; err != nil {
		return err
	}
	if err := tx.Where("user_id IN ?", ids).Delete(&Task{}).Error; err != nil {
		return err
	}
	if err := tx.Where("user_id IN ?", ids).Delete(&TaskList{}).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", ids).Delete(&User{}).Error
}

// FindUser returns the user with id. Only enabled users match unless enabled is nil or false.
func (s *Store) FindUser(ctx context.Context, id uint, enabled *bool) (*User, error) {
	q := s.db.WithContext(ctx).Where("id = ?", id)
	if enabled != nil {
		q = q.Where("enabled = ?", *enabled)
	}
	var user User
	if err := q.First(&user).Error; err != nil {
		return nil, wrap("find user", err)
	}
	return &user, nil
}

// FindUserByEmail returns the enabled user owning email.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("email = ? AND enabled = ?", email, true).First(&user).Error
	if err != nil {
		return nil, wrap("find user by email", err)
	}
	return &user, nil
}

// FindUsersByUsername returns the enabled users with username, oldest first.
func (s *Store) FindUsersByUsername(ctx context.Context, username string) ([]User, error) {
	var users []User
	err := s.db.WithContext(ctx).Where("username = ? AND enabled = ?", username, true).Order("id ASC").Find(&users).Error
	if err != nil {
		return nil, wrap("find users by username", err)
	}
	return users, nil
}

// ListUsers returns every user matching enabled, by id.
func (s *Store) ListUsers(ctx context.Context, enabled *bool) ([]User, error) {
	q := s.db.WithContext(ctx).Order("id ASC")
	if enabled != nil {
		q = q.Where("enabled = ?", *enabled)
	}
	users := []User{}
	if err := q.Find(&users).Error; err != nil {
		return nil, wrap("list users", err)
	}
	return users, nil
}

// UpdateUser applies changes to an enabled user.
func (s *Store) UpdateUser(ctx context.Context, id uint, changes UserChanges) (*User, error) {
	updates := map[string]any{}
	if changes.Username != nil {
		updates["username"] = *changes.Username
	}
	if changes.Email != nil {
		updates["email"] = *changes.Email
	}
	if changes.PasswordHash != nil {
		updates["password"] = *changes.PasswordHash
	}
	if changes.Admin != nil {
		updates["admin"] = *changes.Admin
	}
	return s.updateUser(ctx, "update user", id, updates)
}

// SetProfilePicture stores the picture path on an enabled user.
func (s *Store) SetProfilePicture(ctx context.Context, id uint, path string) (*User, error) {
	return s.updateUser(ctx, "set profile picture", id, map[string]any{"profile_picture": path})
}

// SetDeviceToken stores or clears the push device token of an enabled user.
func (s *Store) SetDeviceToken(ctx context.Context, id uint, token *string) (*User, error) {
	return s.updateUser(ctx, "set device token", id, map[string]any{"device_token": token})
}

func (s *Store) updateUser(ctx context.Context, op string, id uint, updates map[string]any) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND enabled = ?", id, true).First(&user).Error; err != nil {
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&user).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&user, id).Error
	})
	if err != nil {
		return nil, wrap(op, err)
	}
	return &user, nil
}

// IssueResetCode stores a password reset code on the enabled user owning email.
func (s *Store) IssueResetCode(ctx context.Context, email string, code int64, expiry time.Time) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("email = ? AND enabled = ?", email, true).First(&user).Error; err != nil {
			return err
		}
		user.ResetCode = &code
		user.ResetCodeExpiry = &expiry
		return tx.Model(&user).Updates(map[string]any{
			"reset_code":        code,
			"reset_code_expiry": expiry,
		}).Error
	})
	if err != nil {
		return nil, wrap("issue reset code", err)
	}
	return &user, nil
}

// RedeemResetCode replaces the password of the user owning email when code matches and
// has not expired at now. The code is cleared so it cannot be redeemed twice.
func (s *Store) RedeemResetCode(ctx context.Context, email string, code int64, passwordHash string, now time.Time) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user User
		if err := tx.Where("email = ? AND enabled = ?", email, true).First(&user).Error; err != nil {
			return err
		}
		if user.ResetCode == nil || *user.ResetCode != code {
			return ErrInvalidResetCode
		}
		if user.ResetCodeExpiry == nil || !now.Before(*user.ResetCodeExpiry) {
			return ErrExpiredResetCode
		}
		return tx.Model(&user).Updates(map[string]any{
			"password":          passwordHash,
			"reset_code":        nil,
			"reset_code_expiry": nil,
		}).Error
	})
	return wrap("redeem reset code", err)
}

// DisableUser disables an enabled user and everything it owns.
func (s *Store) DisableUser(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user User
		if err := tx.Where("id = ? AND enabled = ?", id, true).First(&user).Error; err != nil {
			return err
		}
		if err := tx.Model(&Notification{}).Where("user_id = ? AND enabled = ?", id, true).Update("enabled", false).Error; err != nil {
			return err
		}
		if err := tx.Model(&Task{}).Where("user_id = ? AND enabled = ?", id, true).Update("enabled", false).Error; err != nil {
			return err
		}
		if err := tx.Model(&TaskList{}).Where("user_id = ? AND enabled = ?", id, true).Update("enabled", false).Error; err != nil {
			return err
		}
		return tx.Model(&user).Update("enabled", false).Error
	})
	return wrap("disable user", err)
}
