package handlers

import (
	"context"
	"log"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/CrowderSoup/prioritease/database"
	"github.com/CrowderSoup/prioritease/services"
	"github.com/CrowderSoup/prioritease/validation"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

type contextKey string

const (
	identityContextKey  contextKey = "identity"
	scopeContextKey     contextKey = "scope"
	requestIDContextKey contextKey = "request-id"
)

// scope is the owner a request acts for. all is set on admin listings across owners.
type scope struct {
	owner uint
	all   bool
}

// Authenticator turns a bearer token into a caller identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (services.Identity, error)
}

type AuthMiddleware struct {
	auth    Authenticator
	handler *Handler
}

func NewAuthMiddleware(auth Authenticator, h *Handler) *AuthMiddleware {
	return &AuthMiddleware{auth: auth, handler: h}
}

// Auth requires a valid bearer token. WebSocket upgrades may pass it as ?token= since
// browsers cannot set headers on them.
func (m *AuthMiddleware) Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			m.handler.fail(w, r, "user", err)
			return
		}

		identity, err := m.auth.Authenticate(r.Context(), token)
		if err != nil {
			m.handler.fail(w, r, "user", err)
			return
		}

		ctx := context.WithValue(r.Context(), identityContextKey, identity)
		ctx = context.WithValue(ctx, scopeContextKey, scope{owner: identity.ID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if websocket.IsWebSocketUpgrade(r) {
			return r.URL.Query().Get("token"), nil
		}
		return "", nil
	}

	authParts := strings.Fields(authHeader)
	if len(authParts) != 2 || !strings.EqualFold(authParts[0], "Bearer") {
		return "", services.ErrInvalidCredential
	}
	return authParts[1], nil
}

// RequireAdmin rejects callers without the admin flag.
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !services.Can(identityFrom(r.Context()), services.ActAdmin, 0) {
			m.handler.fail(w, r, "user", services.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ActAsPathUser scopes the request to the {userId} path variable. The user must exist
// and be enabled.
func (m *AuthMiddleware) ActAsPathUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := validation.ID("userId", mux.Vars(r)["userId"])
		if err != nil {
			m.handler.fail(w, r, "user", err)
			return
		}
		identity := identityFrom(r.Context())
		if !services.Can(identity, services.ActOwn, id) {
			m.handler.fail(w, r, "user", services.ErrForbidden)
			return
		}
		enabled := true
		if _, err := m.handler.store.FindUser(r.Context(), id, &enabled); err != nil {
			m.handler.fail(w, r, "user", err)
			return
		}
		ctx := context.WithValue(r.Context(), scopeContextKey, scope{owner: id})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AllOwners scopes admin listings to every owner.
func (m *AuthMiddleware) AllOwners(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), scopeContextKey, scope{all: true})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identityFrom(ctx context.Context) services.Identity {
	identity, _ := ctx.Value(identityContextKey).(services.Identity)
	return identity
}

func scopeFrom(ctx context.Context) scope {
	s, _ := ctx.Value(scopeContextKey).(scope)
	return s
}

// filter returns the read filter of the request scope. Admin listings across owners may
// narrow to one owner with ?user=.
func (s scope) filter(r *http.Request) (database.Filter, error) {
	enabled, err := validation.Enabled(r.URL.Query().Get("enabled"))
	if err != nil {
		return database.Filter{}, err
	}
	f := database.Filter{Enabled: enabled}
	if !s.all {
		owner := s.owner
		f.UserID = &owner
		return f, nil
	}
	if f.UserID, err = validation.OptionalID("user", r.URL.Query().Get("user")); err != nil {
		return database.Filter{}, err
	}
	return f, nil
}

// RequestLogger logs every request with a request id, also returned as X-Request-ID.
func RequestLogger(logger *log.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", id)

			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestIDContextKey, id)))
			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Printf("%s %s %d %s request_id=%s", r.Method, r.URL.Path, status, time.Since(start).Round(time.Microsecond), id)
		})
	}
}

// Recover turns panics into a 500 response.
func Recover(logger *log.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w}
			defer func() {
				if recovered := recover(); recovered != nil {
					logger.Printf("panic handling request %s %s: %v\n%s", r.Method, r.URL.Path, recovered, debug.Stack())
					if rec.status != 0 {
						return
					}
					writeError(rec, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(rec, r)
		})
	}
}
