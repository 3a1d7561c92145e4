package handlers

import (
	"errors"
	"net/http"

	"github.com/CrowderSoup/prioritease/database"
	"github.com/CrowderSoup/prioritease/validation"
)

// CreateNotification schedules a notification, reactivating a disabled one at the same
// time on the same task.
func (h *Handler) CreateNotification(w http.ResponseWriter, r *http.Request) {
	bag, err := decodeBag(r)
	if err != nil {
		h.fail(w, r, "notification", err)
		return
	}
	in, err := validation.NotificationCreate(bag, h.now())
	if err != nil {
		h.fail(w, r, "notification", err)
		return
	}
	owner := scopeFrom(r.Context()).owner
	n, _, err := h.store.CreateNotification(r.Context(), owner, in.Task, notificationChanges(in))
	if err != nil {
		resource := "notification"
		if errors.Is(err, database.ErrNotFound) {
			resource = "task"
		}
		h.fail(w, r, resource, err)
		return
	}
	h.publish(owner, "notification.created", n)
	writeJSON(w, http.StatusCreated, n)
}

// ListNotifications lists the notifications in scope, optionally by task and status.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	base, err := scopeFrom(r.Context()).filter(r)
	if err != nil {
		h.fail(w, r, "notification", err)
		return
	}
	f := database.NotificationFilter{Filter: base}
	if f.TaskID, err = validation.OptionalID("task", r.URL.Query().Get("task")); err != nil {
		h.fail(w, r, "notification", err)
		return
	}
	status, err := validation.OptionalStatus(r.URL.Query().Get("status"))
	if err != nil {
		h.fail(w, r, "notification", err)
		return
	}
	if status != nil {
		s := database.NotificationStatus(*status)
		f.Status = &s
	}
	list, err := h.store.ListNotifications(r.Context(), f)
	if err != nil {
		h.fail(w, r, "notification", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetNotification returns one enabled notification.
func (h *Handler) GetNotification(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, "notification", err)
		return
	}
	n, err := h.store.FindNotification(r.Context(), id, database.OwnedBy(scopeFrom(r.Context()).owner))
	if err != nil {
		h.fail(w, r, "notification", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// UpdateNotification reschedules a notification and makes it pending again.
func (h *Handler) UpdateNotification(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, "notification", err)
		return
	}
	bag, err := decodeBag(r)
	if err != nil {
		h.fail(w, r, "notification", err)
		return
	}
	in, err := validation.NotificationUpdate(bag, h.now())
	if err != nil {
		h.fail(w, r, "notification", err)
		return
	}
	owner := scopeFrom(r.Context()).owner
	n, err := h.store.UpdateNotification(r.Context(), id, owner, notificationChanges(in))
	if err != nil {
		h.fail(w, r, "notification", err)
		return
	}
	h.publish(owner, "notification.updated", n)
	writeJSON(w, http.StatusOK, n)
}

// DisableNotification disables a notification.
func (h *Handler) DisableNotification(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, "notification", err)
		return
	}
	owner := scopeFrom(r.Context()).owner
	if err := h.store.DisableNotification(r.Context(), id, owner); err != nil {
		h.fail(w, r, "notification", err)
		return
	}
	n, err := h.store.FindNotification(r.Context(), id, database.Filter{UserID: &owner})
	if err != nil {
		h.fail(w, r, "notification", err)
		return
	}
	h.publish(owner, "notification.disabled", n)
	writeJSON(w, http.StatusOK, n)
}

// DispatchNotification delivers a pending notification right away.
func (h *Handler) DispatchNotification(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, "notification", err)
		return
	}
	if h.dispatcher == nil {
		writeError(w, http.StatusNotFound, "notification dispatch is not configured")
		return
	}
	res, err := h.dispatcher.Dispatch(r.Context(), id)
	if err != nil {
		h.fail(w, r, "notification", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func notificationChanges(in validation.NotificationInput) database.NotificationChanges {
	return database.NotificationChanges{
		ScheduledTime: in.ScheduledTime,
		Message:       in.Message,
		Type:          database.NotificationType(in.Type),
	}
}
