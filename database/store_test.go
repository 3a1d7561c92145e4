package database

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"), log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = Close(db) })
	return NewStore(db)
}

func mustRegister(t *testing.T, s *Store, username, email string) *User {
	t.Helper()
	u := &User{Username: username, Email: email, Password: "hash"}
	if err := s.Register(context.Background(), u); err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return u
}

func mustList(t *testing.T, s *Store, userID uint, name string) *TaskList {
	t.Helper()
	list, _, err := s.CreateTaskList(context.Background(), userID, name)
	if err != nil {
		t.Fatalf("create list %q: %v", name, err)
	}
	return list
}

func mustTask(t *testing.T, s *Store, task Task) *Task {
	t.Helper()
	if task.Difficulty == 0 {
		task.Difficulty = 1
	}
	if err := s.CreateTask(context.Background(), &task); err != nil {
		t.Fatalf("create task %q: %v", task.Title, err)
	}
	return &task
}

func mustNotification(t *testing.T, s *Store, userID, taskID uint, at time.Time) *Notification {
	t.Helper()
	n, _, err := s.CreateNotification(context.Background(), userID, taskID, NotificationChanges{
		ScheduledTime: at,
		Type:          TypeReminder,
	})
	if err != nil {
		t.Fatalf("create notification: %v", err)
	}
	return n
}

func countEnabled(t *testing.T, s *Store, model any, userID uint) int64 {
	t.Helper()
	var n int64
	if err := s.db.Model(model).Where("user_id = ? AND enabled = ?", userID, true).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestRegisterCreatesDefaultList(t *testing.T) {
	s := newTestStore(t)
	u := mustRegister(t, s, "alice", "a@x.com")

	lists, err := s.ListTaskLists(context.Background(), OwnedBy(u.ID))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(lists) != 1 || lists[0].Name != DefaultListName {
		t.Fatalf("expected default list, got %+v", lists)
	}
	if !u.Enabled || u.Admin {
		t.Fatalf("unexpected flags: enabled=%v admin=%v", u.Enabled, u.Admin)
	}
}

func TestRegisterConflictsWithEnabledEmail(t *testing.T) {
	s := newTestStore(t)
	mustRegister(t, s, "alice", "a@x.com")

	err := s.Register(context.Background(), &User{Username: "other", Email: "a@x.com", Password: "hash"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRegisterPurgesDisabledAccount(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	old := mustRegister(t, s, "alice", "a@x.com")
	mustRegister(t, s, "bob", "b@x.com")
	list := mustList(t, s, old.ID, "Groceries")
	task := mustTask(t, s, Task{UserID: old.ID, Title: "Buy milk", ListID: &list.ID})
	mustNotification(t, s, old.ID, task.ID, time.Now().Add(time.Hour))

	if err := s.DisableUser(ctx, old.ID); err != nil {
		t.Fatalf("disable: %v", err)
	}
	fresh := mustRegister(t, s, "alice2", "a@x.com")
	if fresh.ID == old.ID {
		t.Fatalf("expected a new id, got %d again", fresh.ID)
	}

	for _, model := range []any{&User{}, &TaskList{}, &Task{}, &Notification{}} {
		var n int64
		col := "user_id"
		if _, ok := model.(*User); ok {
			col = "id"
		}
		if err := s.db.Model(model).Where(col+" = ?", old.ID).Count(&n).Error; err != nil {
			t.Fatalf("count: %v", err)
		}
		if n != 0 {
			t.Fatalf("expected %T rows of the old account to be deleted, found %d", model, n)
		}
	}
}

func TestDisableUserCascadesToOwnedRowsOnly(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := mustRegister(t, s, "alice", "a@x.com")
	b := mustRegister(t, s, "bob", "b@x.com")
	later := time.Now().Add(time.Hour)
	for _, u := range []*User{a, b} {
		list := mustList(t, s, u.ID, "Work")
		task := mustTask(t, s, Task{UserID: u.ID, Title: "Report", ListID: &list.ID})
		mustNotification(t, s, u.ID, task.ID, later)
	}

	if err := s.DisableUser(ctx, a.ID); err != nil {
		t.Fatalf("disable: %v", err)
	}

	for _, model := range []any{&TaskList{}, &Task{}, &Notification{}} {
		if n := countEnabled(t, s, model, a.ID); n != 0 {
			t.Fatalf("expected no enabled %T for alice, got %d", model, n)
		}
	}
	if n := countEnabled(t, s, &TaskList{}, b.ID); n != 2 {
		t.Fatalf("expected bob's lists untouched, got %d", n)
	}
	if n := countEnabled(t, s, &Task{}, b.ID); n != 1 {
		t.Fatalf("expected bob's task untouched, got %d", n)
	}
	if n := countEnabled(t, s, &Notification{}, b.ID); n != 1 {
		t.Fatalf("expected bob's notification untouched, got %d", n)
	}
	if _, err := s.FindUser(ctx, a.ID, ptr(true)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected disabled user to be hidden, got %v", err)
	}
	if err := s.DisableUser(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected second disable to miss, got %v", err)
	}
}

func TestDisableTaskListCascadesToItsTasks(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := mustRegister(t, s, "alice", "a@x.com")
	groceries := mustList(t, s, u.ID, "Groceries")
	work := mustList(t, s, u.ID, "Work")
	mustTask(t, s, Task{UserID: u.ID, Title: "Buy milk", ListID: &groceries.ID})
	keep := mustTask(t, s, Task{UserID: u.ID, Title: "Report", ListID: &work.ID})

	if err := s.DisableTaskList(ctx, groceries.ID, u.ID); err != nil {
		t.Fatalf("disable list: %v", err)
	}

	tasks, err := s.ListTasks(ctx, TaskFilter{Filter: OwnedBy(u.ID)})
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != keep.ID {
		t.Fatalf("expected only the work task to stay enabled, got %+v", tasks)
	}
}

func TestCreateTaskListReactivates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := mustRegister(t, s, "alice", "a@x.com")
	list := mustList(t, s, u.ID, "Groceries")

	if _, _, err := s.CreateTaskList(ctx, u.ID, "Groceries"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err := s.DisableTaskList(ctx, list.ID, u.ID); err != nil {
		t.Fatalf("disable: %v", err)
	}
	again, reactivated, err := s.CreateTaskList(ctx, u.ID, "Groceries")
	if err != nil {
		t.Fatalf("recreate: %v", err)
	}
	if !reactivated || again.ID != list.ID || !again.Enabled {
		t.Fatalf("expected list %d reactivated, got %+v (reactivated=%v)", list.ID, again, reactivated)
	}

	other := mustRegister(t, s, "bob", "b@x.com")
	if _, reactivated, err := s.CreateTaskList(ctx, other.ID, "Groceries"); err != nil || reactivated {
		t.Fatalf("expected a fresh list for another user, got reactivated=%v err=%v", reactivated, err)
	}
}

func TestRenameTaskListConflict(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := mustRegister(t, s, "alice", "a@x.com")
	mustList(t, s, u.ID, "Home")
	work := mustList(t, s, u.ID, "Work")

	if _, err := s.RenameTaskList(ctx, work.ID, u.ID, "Home"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	renamed, err := s.RenameTaskList(ctx, work.ID, u.ID, "Office")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if renamed.Name != "Office" {
		t.Fatalf("expected new name, got %q", renamed.Name)
	}
}

func TestCreateTaskChecksReferences(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := mustRegister(t, s, "alice", "a@x.com")
	b := mustRegister(t, s, "bob", "b@x.com")
	foreignList := mustList(t, s, b.ID, "Bob's")
	foreignTask := mustTask(t, s, Task{UserID: b.ID, Title: "Bob's task"})
	disabled := mustTask(t, s, Task{UserID: a.ID, Title: "Old"})
	if err := s.DisableTask(ctx, disabled.ID, a.ID); err != nil {
		t.Fatalf("disable: %v", err)
	}

	cases := []struct {
		name string
		task Task
	}{
		{"foreign list", Task{ListID: &foreignList.ID}},
		{"foreign parent", Task{ParentID: &foreignTask.ID}},
		{"disabled parent", Task{ParentID: &disabled.ID}},
		{"missing list", Task{ListID: ptr(uint(9999))}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			task := tc.task
			task.UserID = a.ID
			task.Title = "Child"
			task.Difficulty = 1
			if err := s.CreateTask(ctx, &task); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected not found, got %v", err)
			}
		})
	}
}

func TestUpdateTaskRejectsCycles(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := mustRegister(t, s, "alice", "a@x.com")
	root := mustTask(t, s, Task{UserID: u.ID, Title: "Root"})
	child := mustTask(t, s, Task{UserID: u.ID, Title: "Child", ParentID: &root.ID})

	if _, err := s.UpdateTask(ctx, root.ID, u.ID, func(t *Task) { t.ParentID = &root.ID }); !errors.Is(err, ErrParentCycle) {
		t.Fatalf("expected self parent to fail, got %v", err)
	}
	if _, err := s.UpdateTask(ctx, root.ID, u.ID, func(t *Task) { t.ParentID = &child.ID }); !errors.Is(err, ErrParentCycle) {
		t.Fatalf("expected cycle to fail, got %v", err)
	}

	updated, err := s.UpdateTask(ctx, child.ID, u.ID, func(t *Task) {
		t.Done = true
		t.ParentID = nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.Done || updated.ParentID != nil {
		t.Fatalf("unexpected task after update: %+v", updated)
	}
}

func TestCreateNotificationReactivates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := mustRegister(t, s, "alice", "a@x.com")
	task := mustTask(t, s, Task{UserID: u.ID, Title: "Report"})
	at := time.Now().Add(time.Hour)
	first := mustNotification(t, s, u.ID, task.ID, at)

	if _, _, err := s.CreateNotification(ctx, u.ID, task.ID, NotificationChanges{ScheduledTime: at, Type: TypeReminder}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err := s.DisableNotification(ctx, first.ID, u.ID); err != nil {
		t.Fatalf("disable: %v", err)
	}

	msg := "updated"
	again, reactivated, err := s.CreateNotification(ctx, u.ID, task.ID, NotificationChanges{
		ScheduledTime: at,
		Message:       &msg,
		Type:          TypeUrgent,
	})
	if err != nil {
		t.Fatalf("recreate: %v", err)
	}
	if !reactivated || again.ID != first.ID {
		t.Fatalf("expected notification %d reactivated, got %d (reactivated=%v)", first.ID, again.ID, reactivated)
	}
	if again.Message == nil || *again.Message != msg || again.Type != TypeUrgent || again.Status != StatusPending {
		t.Fatalf("expected updated fields, got %+v", again)
	}
}

func TestCreateNotificationRequiresOwnedTask(t *testing.T) {
	s := newTestStore(t)
	a := mustRegister(t, s, "alice", "a@x.com")
	b := mustRegister(t, s, "bob", "b@x.com")
	task := mustTask(t, s, Task{UserID: b.ID, Title: "Bob's"})

	_, _, err := s.CreateNotification(context.Background(), a.ID, task.ID, NotificationChanges{
		ScheduledTime: time.Now().Add(time.Hour),
		Type:          TypeReminder,
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDueNotificationsAndStatus(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := mustRegister(t, s, "alice", "a@x.com")
	task := mustTask(t, s, Task{UserID: u.ID, Title: "Report"})
	now := time.Now()
	due := mustNotification(t, s, u.ID, task.ID, now.Add(time.Minute))
	mustNotification(t, s, u.ID, task.ID, now.Add(time.Hour))

	list, err := s.DueNotifications(ctx, now.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(list) != 1 || list[0].ID != due.ID {
		t.Fatalf("expected only the first notification due, got %+v", list)
	}

	n, err := s.SetNotificationStatus(ctx, due.ID, StatusSent)
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if n.Status != StatusSent {
		t.Fatalf("expected sent, got %s", n.Status)
	}
	if _, err := s.SetNotificationStatus(ctx, due.ID, StatusFailed); !errors.Is(err, ErrNotPending) {
		t.Fatalf("expected not pending, got %v", err)
	}

	list, err = s.DueNotifications(ctx, now.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected nothing due after dispatch, got %+v", list)
	}
}

func TestRedeemResetCode(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustRegister(t, s, "alice", "a@x.com")
	now := time.Now()

	if _, err := s.IssueResetCode(ctx, "a@x.com", 12345678, now.Add(15*time.Minute)); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := s.RedeemResetCode(ctx, "a@x.com", 87654321, "new", now); !errors.Is(err, ErrInvalidResetCode) {
		t.Fatalf("expected wrong code to fail, got %v", err)
	}
	if err := s.RedeemResetCode(ctx, "a@x.com", 12345678, "new", now.Add(16*time.Minute)); !errors.Is(err, ErrExpiredResetCode) {
		t.Fatalf("expected expired code to fail, got %v", err)
	}
	if err := s.RedeemResetCode(ctx, "a@x.com", 12345678, "new", now.Add(time.Minute)); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if err := s.RedeemResetCode(ctx, "a@x.com", 12345678, "newer", now.Add(2*time.Minute)); !errors.Is(err, ErrInvalidResetCode) {
		t.Fatalf("expected second redemption to fail, got %v", err)
	}

	u, err := s.FindUserByEmail(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if u.Password != "new" || u.ResetCode != nil {
		t.Fatalf("expected password replaced and code cleared, got %q %v", u.Password, u.ResetCode)
	}
}

func TestUpdateUserEmailConflict(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustRegister(t, s, "alice", "a@x.com")
	b := mustRegister(t, s, "bob", "b@x.com")

	email := "a@x.com"
	if _, err := s.UpdateUser(ctx, b.ID, UserChanges{Email: &email}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func ptr[T any](v T) *T {
	return &v
}
