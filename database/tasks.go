package database

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TaskFilter narrows task listings. Nil fields are not filtered on.
type TaskFilter struct {
	Filter
	ListID    *uint
	ParentID  *uint
	Done      *bool
	Favourite *bool
}

func (f TaskFilter) apply(q *gorm.DB) *gorm.DB {
	q = f.Filter.apply(q)
	if f.ListID != nil {
		q = q.Where("list_id = ?", *f.ListID)
	}
	if f.ParentID != nil {
		q = q.Where("parent_id = ?", *f.ParentID)
	}
	if f.Done != nil {
		q = q.Where("done = ?", *f.Done)
	}
	if f.Favourite != nil {
		q = q.Where("favourite = ?", *f.Favourite)
	}
	return q
}

// CreateTask inserts task for task.UserID. Parent and list, when set, must be enabled
// and belong to the same user.
func (s *Store) CreateTask(ctx context.Context, task *Task) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkTaskRefs(tx, task.UserID, task.ParentID, task.ListID); err != nil {
			return err
		}
		task.ID = 0
		task.Enabled = true
		return tx.Omit(clause.Associations).Create(task).Error
	})
	return wrap("create task", err)
}

// ListTasks returns the tasks matching f, by id.
func (s *Store) ListTasks(ctx context.Context, f TaskFilter) ([]Task, error) {
	tasks := []Task{}
	if err := f.apply(s.db.WithContext(ctx)).Order("id ASC").Find(&tasks).Error; err != nil {
		return nil, wrap("list tasks", err)
	}
	return tasks, nil
}

// FindTask returns the task with id if it matches f.
func (s *Store) FindTask(ctx context.Context, id uint, f Filter) (*Task, error) {
	var task Task
	if err := f.apply(s.db.WithContext(ctx)).Where("id = ?", id).First(&task).Error; err != nil {
		return nil, wrap("find task", err)
	}
	return &task, nil
}

// UpdateTask loads the enabled task id owned by userID, lets change modify it and saves
// the result. Parent and list are checked again only when change replaced them.
func (s *Store) UpdateTask(ctx context.Context, id, userID uint, change func(*Task)) (*Task, error) {
	var task Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := OwnedBy(userID).apply(tx).Where("id = ?", id).First(&task).Error; err != nil {
			return err
		}
		oldParent, oldList := task.ParentID, task.ListID
		change(&task)
		task.ID, task.UserID, task.Enabled = id, userID, true

		var parent, list *uint
		if !sameID(oldParent, task.ParentID) {
			parent = task.ParentID
		}
		if !sameID(oldList, task.ListID) {
			list = task.ListID
		}
		if parent != nil {
			if err := checkAncestry(tx, id, *parent); err != nil {
				return err
			}
		}
		if err := checkTaskRefs(tx, userID, parent, list); err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Save(&task).Error
	})
	if err != nil {
		return nil, wrap("update task", err)
	}
	return &task, nil
}

// DisableTask disables an enabled task owned by userID. Children and notifications are
// left as they are.
func (s *Store) DisableTask(ctx context.Context, id, userID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task Task
		if err := OwnedBy(userID).apply(tx).Where("id = ?", id).First(&task).Error; err != nil {
			return err
		}
		return tx.Model(&task).Update("enabled", false).Error
	})
	return wrap("disable task", err)
}

func checkTaskRefs(tx *gorm.DB, userID uint, parentID, listID *uint) error {
	if parentID != nil {
		var n int64
		if err := OwnedBy(userID).apply(tx.Model(&Task{})).Where("id = ?", *parentID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
	}
	if listID != nil {
		var n int64
		if err := OwnedBy(userID).apply(tx.Model(&TaskList{})).Where("id = ?", *listID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
	}
	return nil
}

// checkAncestry fails when taskID appears on the parent chain starting at parentID.
func checkAncestry(tx *gorm.DB, taskID, parentID uint) error {
	seen := map[uint]bool{}
	next := &parentID
	for next != nil {
		if *next == taskID {
			return ErrParentCycle
		}
		if seen[*next] {
			return nil
		}
		seen[*next] = true

		var row struct{ ParentID *uint }
		err := tx.Model(&Task{}).Select("parent_id").Where("id = ?", *next).Take(&row).Error
		if err != nil {
			if translate(err) == ErrNotFound {
				return nil
			}
			return err
		}
		next = row.ParentID
	}
	return nil
}

func sameID(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
