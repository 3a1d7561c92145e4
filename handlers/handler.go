// Package handlers exposes the REST API over gorilla/mux.
package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/CrowderSoup/prioritease/database"
	"github.com/CrowderSoup/prioritease/services"
	"github.com/CrowderSoup/prioritease/validation"
	"github.com/gorilla/mux"
)

// Options wires the collaborators of a Handler. Hub, Dispatcher and Pictures are optional.
type Options struct {
	Store      *database.Store
	Auth       *services.AuthService
	Hub        *services.Hub
	Dispatcher *services.Dispatcher
	Pictures   *services.PictureStore
	Logger     *log.Logger
}

// Handler serves every API operation.
type Handler struct {
	store      *database.Store
	auth       *services.AuthService
	hub        *services.Hub
	dispatcher *services.Dispatcher
	pictures   *services.PictureStore
	logger     *log.Logger
	now        func() time.Time
}

func NewHandler(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		store:      opts.Store,
		auth:       opts.Auth,
		hub:        opts.Hub,
		dispatcher: opts.Dispatcher,
		pictures:   opts.Pictures,
		logger:     logger,
		now:        time.Now,
	}
}

// publish tells the owner's connected sessions about a change.
func (h *Handler) publish(userID uint, event string, data any) {
	if h.hub == nil {
		return
	}
	h.hub.Publish(userID, services.WebSocketMessage{Type: event, Data: data})
}

// pathID reads the {id} path variable.
func pathID(r *http.Request) (uint, error) {
	return validation.ID("id", mux.Vars(r)["id"])
}
