package handlers

import (
	"net/http"

	"github.com/CrowderSoup/prioritease/database"
	"github.com/CrowderSoup/prioritease/validation"
)

// CreateTaskList creates a list, or re-enables a disabled one with the same name.
func (h *Handler) CreateTaskList(w http.ResponseWriter, r *http.Request) {
	bag, err := decodeBag(r)
	if err != nil {
		h.fail(w, r, "task list", err)
		return
	}
	in, err := validation.TaskList(bag)
	if err != nil {
		h.fail(w, r, "task list", err)
		return
	}
	owner := scopeFrom(r.Context()).owner
	list, _, err := h.store.CreateTaskList(r.Context(), owner, in.Name)
	if err != nil {
		h.fail(w, r, "task list", err)
		return
	}
	h.publish(owner, "task_list.created", list)
	writeJSON(w, http.StatusCreated, list)
}

// ListTaskLists lists the lists in scope.
func (h *Handler) ListTaskLists(w http.ResponseWriter, r *http.Request) {
	f, err := scopeFrom(r.Context()).filter(r)
	if err != nil {
		h.fail(w, r, "task list", err)
		return
	}
	lists, err := h.store.ListTaskLists(r.Context(), f)
	if err != nil {
		h.fail(w, r, "task list", err)
		return
	}
	writeJSON(w, http.StatusOK, lists)
}

// GetTaskList returns one enabled list.
func (h *Handler) GetTaskList(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, "task list", err)
		return
	}
	list, err := h.store.FindTaskList(r.Context(), id, database.OwnedBy(scopeFrom(r.Context()).owner))
	if err != nil {
		h.fail(w, r, "task list", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// RenameTaskList replaces the name of a list.
func (h *Handler) RenameTaskList(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, "task list", err)
		return
	}
	bag, err := decodeBag(r)
	if err != nil {
		h.fail(w, r, "task list", err)
		return
	}
	in, err := validation.TaskList(bag)
	if err != nil {
		h.fail(w, r, "task list", err)
		return
	}
	owner := scopeFrom(r.Context()).owner
	list, err := h.store.RenameTaskList(r.Context(), id, owner, in.Name)
	if err != nil {
		h.fail(w, r, "task list", err)
		return
	}
	h.publish(owner, "task_list.updated", list)
	writeJSON(w, http.StatusOK, list)
}

// DisableTaskList disables a list and the tasks filed in it.
func (h *Handler) DisableTaskList(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, "task list", err)
		return
	}
	owner := scopeFrom(r.Context()).owner
	if err := h.store.DisableTaskList(r.Context(), id, owner); err != nil {
		h.fail(w, r, "task list", err)
		return
	}
	list, err := h.store.FindTaskList(r.Context(), id, database.Filter{UserID: &owner})
	if err != nil {
		h.fail(w, r, "task list", err)
		return
	}
	h.publish(owner, "task_list.disabled", list)
	writeJSON(w, http.StatusOK, list)
}
