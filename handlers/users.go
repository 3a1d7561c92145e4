package handlers

import (
	"errors"
	"net/http"
	"path"

	"github.com/CrowderSoup/prioritease/database"
	"github.com/CrowderSoup/prioritease/services"
	"github.com/CrowderSoup/prioritease/validation"
)

// Register handles self-service sign-up.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	bag, err := decodeBag(r)
	if err != nil {
		h.fail(w, r, "user", err)
		return
	}
	in, err := validation.Registration(bag)
	if err != nil {
		h.fail(w, r, "user", err)
		return
	}
	h.createUser(w, r, in, false)
}

// CreateUser provisions an account as an administrator.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	bag, err := decodeBag(r)
	if err != nil {
		h.fail(w, r, "user", err)
		return
	}
	in, err := validation.AdminUser(bag)
	if err != nil {
		h.fail(w, r, "user", err)
		return
	}
	h.createUser(w, r, in.UserInput, in.Admin)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request, in validation.UserInput, admin bool) {
	hash, err := services.HashPassword(in.Password)
	if err != nil {
		h.fail(w, r, "user", err)
		return
	}
	user := &database.User{Username: in.Username, Email: in.Email, Password: hash, Admin: admin}
	if err := h.store.Register(r.Context(), user); err != nil {
		h.fail(w, r, "email", err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// Login exchanges credentials for a token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	bag, err := decodeBag(r)
	if err != nil {
		h.fail(w, r, "user", err)
		return
	}
	creds, err := validation.Login(bag)
	if err != nil {
		h.fail(w, r, "user", err)
		return
	}
	token, user, err := h.auth.Login(r.Context(), creds)
	if err != nil {
		h.fail(w, r, "user", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": user})
}

// ForgotPassword mails a reset code.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	bag, err := decodeBag(r)
	if err != nil {
		h.fail(w, r, "user", err)
		return
	}
	email, err := validation.ForgotPassword(bag)
	if err != nil {
		h.fail(w, r, "user", err)
		return
	}
	if err := h.auth.ForgotPassword(r.Context(), email); err != nil {
		h.fail(w, r, "user", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "A reset code has been sent"})
}

// ResetPassword redeems a reset code.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	bag, err := decodeBag(r)
	if err != nil {
		h.fail(w, r, "user", err)
		return
	}
	in, err := validation.ResetPassword(bag)
	if err != nil {
		h.fail(w, r, "user", err)
		return
	}
	if err := h.auth.ResetPassword(r.Context(), in); err != nil {
		h.fail(w, r, "user", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Password has been reset"})
}

// GetUser returns the scoped user.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	enabled := true
	user, err := h.store.FindUser(r.Context(), scopeFrom(r.Context()).owner, &enabled)
	if err != nil {
		h.fail(w, r, "user", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// ListUsers lists every account.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	enabled, err := validation.Enabled(r.URL.Query().Get("enabled"))
	if err != nil {
		h.fail(w, r, "user", err)
		return
	}
	users, err := h.store.ListUsers(r.Context(), enabled)
	if err != nil {
		h.fail(w, r, "user", err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// ReplaceUser overwrites username, email and password of the caller.
func (h *Handler) ReplaceUser(w http.ResponseWriter, r *http.Request) {
	bag, err := decodeBag(r)
	if err != nil {
		h.fail(w, r, "user", err)
		return
	}
	in, err := validation.UserUpdate(bag)
	if err != nil {
		h.fail(w, r, "user", err)
		return
	}
	h.updateUser(w, r, validation.UserPatch{Username: &in.Username, Email: &in.Email, Password: &in.Password}, nil)
}

// AdminReplaceUser overwrites an account, including its admin flag.
func (h *Handler) AdminReplaceUser(w http.ResponseWriter, r *http.Request) {
	bag, err := decodeBag(r)
	if err != nil {
		h.fail(w, r, "user", err)
		return
	}
	in, err := validation.AdminUser(bag)
	if err != nil {
		h.fail(w, r, "user", err)
		return
	}
	h.updateUser(w, r, validation.UserPatch{Username: &in.Username, Email: &in.Email, Password: &in.Password}, &in.Admin)
}

// PatchUser changes some account fields of the scoped user.
func (h *Handler) PatchUser(w http.ResponseWriter, r *http.Request) {
	bag, err := decodeBag(r)
	if err != nil {
		h.fail(w, r, "user", err)
		return
	}
	patch, err := validation.UserPatchInput(bag)
	if err != nil {
		h.fail(w, r, "user", err)
		return
	}
	h.updateUser(w, r, patch, nil)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request, patch validation.UserPatch, admin *bool) {
	changes := database.UserChanges{Username: patch.Username, Email: patch.Email, Admin: admin}
	if patch.Password != nil {
		hash, err := services.HashPassword(*patch.Password)
		if err != nil {
			h.fail(w, r, "user", err)
			return
		}
		changes.PasswordHash = &hash
	}
	user, err := h.store.UpdateUser(r.Context(), scopeFrom(r.Context()).owner, changes)
	if errors.Is(err, database.ErrConflict) {
		h.fail(w, r, "email", err)
		return
	}
	if err != nil {
		h.fail(w, r, "user", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// DisableUser disables the scoped user and everything it owns.
func (h *Handler) DisableUser(w http.ResponseWriter, r *http.Request) {
	id := scopeFrom(r.Context()).owner
	if err := h.store.DisableUser(r.Context(), id); err != nil {
		h.fail(w, r, "user", err)
		return
	}
	user, err := h.store.FindUser(r.Context(), id, nil)
	if err != nil {
		h.fail(w, r, "user", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// SetDeviceToken registers or clears the push device token of the caller.
func (h *Handler) SetDeviceToken(w http.ResponseWriter, r *http.Request) {
	bag, err := decodeBag(r)
	if err != nil {
		h.fail(w, r, "user", err)
		return
	}
	token, err := validation.DeviceToken(bag)
	if err != nil {
		h.fail(w, r, "user", err)
		return
	}
	user, err := h.store.SetDeviceToken(r.Context(), scopeFrom(r.Context()).owner, token)
	if err != nil {
		h.fail(w, r, "user", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user, "deviceTokenSet": token != nil})
}

// UploadPicture stores a profile picture sent as the "picture" multipart field.
func (h *Handler) UploadPicture(w http.ResponseWriter, r *http.Request) {
	if h.pictures == nil {
		writeError(w, http.StatusNotFound, "picture storage is not configured")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, services.MaxPictureSize+maxBodySize)
	if err := r.ParseMultipartForm(services.MaxPictureSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, r, "picture", services.ErrPictureTooLarge)
			return
		}
		h.fail(w, r, "picture", &validation.Error{Field: "picture", Message: `"picture" must be a multipart file upload`})
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("picture")
	if err != nil {
		h.fail(w, r, "picture", &validation.Error{Field: "picture", Message: `"picture" is required`})
		return
	}
	defer file.Close()

	owner := scopeFrom(r.Context()).owner
	rel, err := h.pictures.Save(owner, file)
	if err != nil {
		h.fail(w, r, "picture", err)
		return
	}
	user, err := h.store.SetProfilePicture(r.Context(), owner, rel)
	if err != nil {
		h.fail(w, r, "user", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// GetPicture streams the caller's profile picture.
func (h *Handler) GetPicture(w http.ResponseWriter, r *http.Request) {
	enabled := true
	user, err := h.store.FindUser(r.Context(), scopeFrom(r.Context()).owner, &enabled)
	if err != nil {
		h.fail(w, r, "user", err)
		return
	}
	if h.pictures == nil || user.ProfilePicture == nil {
		h.fail(w, r, "picture", database.ErrNotFound)
		return
	}
	f, err := h.pictures.Open(*user.ProfilePicture)
	if err != nil {
		h.fail(w, r, "picture", database.ErrNotFound)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		h.fail(w, r, "picture", err)
		return
	}
	http.ServeContent(w, r, path.Base(*user.ProfilePicture), info.ModTime(), f)
}
