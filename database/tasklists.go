package database

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateTaskList creates a list for userID, or re-enables a disabled list with the same
// name. reactivated reports which of the two happened.
func (s *Store) CreateTaskList(ctx context.Context, userID uint, name string) (list *TaskList, reactivated bool, err error) {
	list = &TaskList{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND name = ?", userID, name).
			Order("enabled DESC, id DESC").
			First(list).Error
		switch {
		case err == nil:
			if list.Enabled {
				return ErrConflict
			}
			reactivated = true
			if err := tx.Model(list).Update("enabled", true).Error; err != nil {
				return err
			}
			return tx.First(list, list.ID).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			*list = TaskList{UserID: userID, Name: name, Enabled: true}
			return tx.Omit(clause.Associations).Create(list).Error
		default:
			return err
		}
	})
	if err != nil {
		return nil, false, wrap("create task list", err)
	}
	return list, reactivated, nil
}

// ListTaskLists returns the lists matching f, by id.
func (s *Store) ListTaskLists(ctx context.Context, f Filter) ([]TaskList, error) {
	lists := []TaskList{}
	if err := f.apply(s.db.WithContext(ctx)).Order("id ASC").Find(&lists).Error; err != nil {
		return nil, wrap("list task lists", err)
	}
	return lists, nil
}

// FindTaskList returns the list with id if it matches f.
func (s *Store) FindTaskList(ctx context.Context, id uint, f Filter) (*TaskList, error) {
	var list TaskList
	if err := f.apply(s.db.WithContext(ctx)).Where("id = ?", id).First(&list).Error; err != nil {
		return nil, wrap("find task list", err)
	}
	return &list, nil
}

// RenameTaskList renames an enabled list owned by userID.
func (s *Store) RenameTaskList(ctx context.Context, id, userID uint, name string) (*TaskList, error) {
	var list TaskList
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := OwnedBy(userID).apply(tx).Where("id = ?", id).First(&list).Error; err != nil {
			return err
		}
		if list.Name == name {
			return nil
		}
		var taken int64
		if err := tx.Model(&TaskList{}).
			Where("user_id = ? AND name = ? AND enabled = ? AND id <> ?", userID, name, true, id).
			Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return ErrConflict
		}
		if err := tx.Model(&list).Update("name", name).Error; err != nil {
			return err
		}
		return tx.First(&list, id).Error
	})
	if err != nil {
		return nil, wrap("rename task list", err)
	}
	return &list, nil
}

// DisableTaskList disables an enabled list owned by userID and every enabled task in it.
func (s *Store) DisableTaskList(ctx context.Context, id, userID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var list TaskList
		if err := OwnedBy(userID).apply(tx).Where("id = ?", id).First(&list).Error; err != nil {
			return err
		}
		if err := tx.Model(&Task{}).Where("list_id = ? AND enabled = ?", id, true).Update("enabled", false).Error; err != nil {
			return err
		}
		return tx.Model(&list).Update("enabled", false).Error
	})
	return wrap("disable task list", err)
}
