package handlers

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/CrowderSoup/prioritease/database"
	"github.com/CrowderSoup/prioritease/services"
	"github.com/CrowderSoup/prioritease/validation"
)

// maxBodySize bounds JSON request bodies.
const maxBodySize = 1 << 20

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// decodeBag reads a JSON object body. An empty body is an empty object.
func decodeBag(r *http.Request) (validation.Bag, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return nil, &validation.Error{Field: "value", Message: "could not read request body"}
	}
	if len(data) > maxBodySize {
		return nil, &validation.Error{Field: "value", Message: "request body is too large"}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return validation.Bag{}, nil
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var bag validation.Bag
	if err := decoder.Decode(&bag); err != nil || bag == nil {
		return nil, &validation.Error{Field: "value", Message: `"value" must be of type object`}
	}
	if decoder.More() {
		return nil, &validation.Error{Field: "value", Message: "unexpected extra JSON data"}
	}
	return bag, nil
}

// fail writes the response for err. resource names the entity in 404 and 409 messages.
// Unexpected errors are logged and answered with a generic 500.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, resource string, err error) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, database.ErrInvalidResetCode), errors.Is(err, database.ErrExpiredResetCode),
		errors.Is(err, database.ErrParentCycle),
		errors.Is(err, services.ErrPictureTooLarge), errors.Is(err, services.ErrPictureType):
		writeError(w, http.StatusBadRequest, rootMessage(err))
	case errors.Is(err, services.ErrUnauthenticated), errors.Is(err, services.ErrInvalidCredential),
		errors.Is(err, services.ErrSubjectNotFound):
		writeError(w, http.StatusUnauthorized, rootMessage(err))
	case errors.Is(err, services.ErrDisabled), errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, rootMessage(err))
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf("%s not found", resource))
	case errors.Is(err, database.ErrConflict):
		writeError(w, http.StatusConflict, fmt.Sprintf("%s already exists", resource))
	case errors.Is(err, database.ErrNotPending):
		writeError(w, http.StatusConflict, database.ErrNotPending.Error())
	default:
		h.logger.Printf("request %s %s failed: %v", r.Method, r.URL.Path, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// rootMessage returns the message of the package error in err, hiding wrapped details.
func rootMessage(err error) string {
	for _, known := range []error{
		database.ErrInvalidResetCode, database.ErrExpiredResetCode, database.ErrParentCycle,
		services.ErrPictureTooLarge, services.ErrPictureType,
		services.ErrUnauthenticated, services.ErrInvalidCredential, services.ErrSubjectNotFound,
		services.ErrDisabled, services.ErrForbidden,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return err.Error()
}

// statusRecorder remembers the status written through it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusRecorder) Write(data []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(data)
}

func (w *statusRecorder) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack lets WebSocket upgrades through the recorder.
func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	if w.status == 0 {
		w.status = http.StatusSwitchingProtocols
	}
	return hijacker.Hijack()
}
