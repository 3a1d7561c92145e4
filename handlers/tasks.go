package handlers

import (
	"errors"
	"net/http"

	"github.com/CrowderSoup/prioritease/database"
	"github.com/CrowderSoup/prioritease/validation"
)

// reference names the entities a task may point at in 404 messages.
const reference = "parent task or list"

// CreateTask creates a task for the scoped user.
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	bag, err := decodeBag(r)
	if err != nil {
		h.fail(w, r, "task", err)
		return
	}
	in, err := validation.TaskCreate(bag)
	if err != nil {
		h.fail(w, r, "task", err)
		return
	}
	owner := scopeFrom(r.Context()).owner
	task := &database.Task{UserID: owner}
	applyTaskInput(task, in)
	if err := h.store.CreateTask(r.Context(), task); err != nil {
		h.fail(w, r, reference, err)
		return
	}
	h.publish(owner, "task.created", task)
	writeJSON(w, http.StatusCreated, task)
}

// ListTasks lists the tasks in scope, optionally by list, parent, done and favourite.
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	base, err := scopeFrom(r.Context()).filter(r)
	if err != nil {
		h.fail(w, r, "task", err)
		return
	}
	f, err := taskFilter(r, base)
	if err != nil {
		h.fail(w, r, "task", err)
		return
	}
	tasks, err := h.store.ListTasks(r.Context(), f)
	if err != nil {
		h.fail(w, r, "task", err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func taskFilter(r *http.Request, base database.Filter) (database.TaskFilter, error) {
	q := r.URL.Query()
	f := database.TaskFilter{Filter: base}
	var err error
	if f.ListID, err = validation.OptionalID("list", q.Get("list")); err != nil {
		return f, err
	}
	if f.ParentID, err = validation.OptionalID("parent", q.Get("parent")); err != nil {
		return f, err
	}
	if f.Done, err = validation.OptionalBool("done", q.Get("done")); err != nil {
		return f, err
	}
	if f.Favourite, err = validation.OptionalBool("favourite", q.Get("favourite")); err != nil {
		return f, err
	}
	return f, nil
}

// GetTask returns one enabled task.
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, "task", err)
		return
	}
	task, err := h.store.FindTask(r.Context(), id, database.OwnedBy(scopeFrom(r.Context()).owner))
	if err != nil {
		h.fail(w, r, "task", err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// ReplaceTask overwrites every field of a task. Absent optional fields are reset.
func (h *Handler) ReplaceTask(w http.ResponseWriter, r *http.Request) {
	bag, err := decodeBag(r)
	if err != nil {
		h.fail(w, r, "task", err)
		return
	}
	in, err := validation.TaskCreate(bag)
	if err != nil {
		h.fail(w, r, "task", err)
		return
	}
	h.updateTask(w, r, func(t *database.Task) { applyTaskInput(t, in) })
}

// PatchTask changes the task fields present in the body.
func (h *Handler) PatchTask(w http.ResponseWriter, r *http.Request) {
	bag, err := decodeBag(r)
	if err != nil {
		h.fail(w, r, "task", err)
		return
	}
	patch, err := validation.TaskPatchInput(bag)
	if err != nil {
		h.fail(w, r, "task", err)
		return
	}
	h.updateTask(w, r, func(t *database.Task) { applyTaskPatch(t, patch) })
}

func (h *Handler) updateTask(w http.ResponseWriter, r *http.Request, change func(*database.Task)) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, "task", err)
		return
	}
	owner := scopeFrom(r.Context()).owner
	if _, err := h.store.FindTask(r.Context(), id, database.OwnedBy(owner)); err != nil {
		h.fail(w, r, "task", err)
		return
	}
	task, err := h.store.UpdateTask(r.Context(), id, owner, change)
	if err != nil {
		resource := reference
		if !errors.Is(err, database.ErrNotFound) {
			resource = "task"
		}
		h.fail(w, r, resource, err)
		return
	}
	h.publish(owner, "task.updated", task)
	writeJSON(w, http.StatusOK, task)
}

// DisableTask disables a single task.
func (h *Handler) DisableTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, "task", err)
		return
	}
	owner := scopeFrom(r.Context()).owner
	if err := h.store.DisableTask(r.Context(), id, owner); err != nil {
		h.fail(w, r, "task", err)
		return
	}
	task, err := h.store.FindTask(r.Context(), id, database.Filter{UserID: &owner})
	if err != nil {
		h.fail(w, r, "task", err)
		return
	}
	h.publish(owner, "task.disabled", task)
	writeJSON(w, http.StatusOK, task)
}

func applyTaskInput(t *database.Task, in validation.TaskInput) {
	t.Title = in.Title
	t.Details = in.Details
	t.Deadline = in.Deadline
	t.ParentID = in.Parent
	t.Difficulty = in.Difficulty
	t.Lat = in.Lat
	t.Lng = in.Lng
	t.ListID = in.List
	t.Favourite = in.Favourite
	t.Done = in.Done
}

func applyTaskPatch(t *database.Task, p validation.TaskPatch) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Details.Set {
		t.Details = p.Details.Value
	}
	if p.Deadline.Set {
		t.Deadline = p.Deadline.Value
	}
	if p.Parent.Set {
		t.ParentID = p.Parent.Value
	}
	if p.Difficulty != nil {
		t.Difficulty = *p.Difficulty
	}
	if p.Lat.Set {
		t.Lat = p.Lat.Value
		t.Lng = p.Lng.Value
	}
	if p.List.Set {
		t.ListID = p.List.Value
	}
	if p.Favourite != nil {
		t.Favourite = *p.Favourite
	}
	if p.Done != nil {
		t.Done = *p.Done
	}
}
