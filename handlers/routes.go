package handlers

import (
	"net/http"
	"sort"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// Route describes one registered endpoint.
type Route struct {
	Path    string   `json:"path"`
	Methods []string `json:"methods"`
}

// NewRouter builds the API router wrapped in CORS handling.
func NewRouter(h *Handler, m *AuthMiddleware, allowedOrigins []string) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.Use(Recover(h.logger), RequestLogger(h.logger))

	api := r.PathPrefix("/api").Subrouter()

	// Public routes
	api.HandleFunc("/user/register", h.Register).Methods(http.MethodPost)
	api.HandleFunc("/user/login", h.Login).Methods(http.MethodPost)
	api.HandleFunc("/user/forgot-password", h.ForgotPassword).Methods(http.MethodPost)
	api.HandleFunc("/user/reset-password", h.ResetPassword).Methods(http.MethodPost)
	api.HandleFunc("/routes", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, Routes(r))
	}).Methods(http.MethodGet)

	// Routes acting on the caller
	secured := api.NewRoute().Subrouter()
	secured.Use(m.Auth)
	registerAccountRoutes(secured.PathPrefix("/user/me").Subrouter(), h)
	secured.HandleFunc("/user/ws", h.HandleWebSocket).Methods(http.MethodGet)
	registerResourceRoutes(secured, h)

	// Admin routes
	admin := secured.PathPrefix("/admin").Subrouter()
	admin.Use(m.RequireAdmin)
	admin.HandleFunc("/user", h.ListUsers).Methods(http.MethodGet)
	admin.HandleFunc("/user", h.CreateUser).Methods(http.MethodPost)

	all := admin.NewRoute().Subrouter()
	all.Use(m.AllOwners)
	all.HandleFunc("/task_list", h.ListTaskLists).Methods(http.MethodGet)
	all.HandleFunc("/task", h.ListTasks).Methods(http.MethodGet)
	all.HandleFunc("/notification", h.ListNotifications).Methods(http.MethodGet)
	admin.HandleFunc("/notification/{id}/dispatch", h.DispatchNotification).Methods(http.MethodPost)

	onBehalf := admin.PathPrefix("/user/{userId}").Subrouter()
	onBehalf.Use(m.ActAsPathUser)
	onBehalf.HandleFunc("", h.GetUser).Methods(http.MethodGet)
	onBehalf.HandleFunc("", h.AdminReplaceUser).Methods(http.MethodPut)
	onBehalf.HandleFunc("/disable", h.DisableUser).Methods(http.MethodPatch)
	registerResourceRoutes(onBehalf, h)

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
	})
	return c.Handler(r)
}

func registerAccountRoutes(me *mux.Router, h *Handler) {
	me.HandleFunc("", h.GetUser).Methods(http.MethodGet)
	me.HandleFunc("", h.ReplaceUser).Methods(http.MethodPut)
	me.HandleFunc("", h.PatchUser).Methods(http.MethodPatch)
	me.HandleFunc("/disable", h.DisableUser).Methods(http.MethodPatch)
	me.HandleFunc("/device-token", h.SetDeviceToken).Methods(http.MethodPut)
	me.HandleFunc("/picture", h.UploadPicture).Methods(http.MethodPost)
	me.HandleFunc("/picture", h.GetPicture).Methods(http.MethodGet)
}

// registerResourceRoutes adds the task list, task and notification routes. The owner
// comes from the request scope, so the same routes serve callers and administrators.
func registerResourceRoutes(r *mux.Router, h *Handler) {
	r.HandleFunc("/task_list", h.CreateTaskList).Methods(http.MethodPost)
	r.HandleFunc("/task_list", h.ListTaskLists).Methods(http.MethodGet)
	r.HandleFunc("/task_list/{id}", h.GetTaskList).Methods(http.MethodGet)
	r.HandleFunc("/task_list/{id}", h.RenameTaskList).Methods(http.MethodPut)
	r.HandleFunc("/task_list/{id}/disable", h.DisableTaskList).Methods(http.MethodPatch)

	r.HandleFunc("/task", h.CreateTask).Methods(http.MethodPost)
	r.HandleFunc("/task", h.ListTasks).Methods(http.MethodGet)
	r.HandleFunc("/task/{id}", h.GetTask).Methods(http.MethodGet)
	r.HandleFunc("/task/{id}", h.ReplaceTask).Methods(http.MethodPut)
	r.HandleFunc("/task/{id}", h.PatchTask).Methods(http.MethodPatch)
	r.HandleFunc("/task/{id}/disable", h.DisableTask).Methods(http.MethodPatch)

	r.HandleFunc("/notification", h.CreateNotification).Methods(http.MethodPost)
	r.HandleFunc("/notification", h.ListNotifications).Methods(http.MethodGet)
	r.HandleFunc("/notification/{id}", h.GetNotification).Methods(http.MethodGet)
	r.HandleFunc("/notification/{id}", h.UpdateNotification).Methods(http.MethodPut)
	r.HandleFunc("/notification/{id}/disable", h.DisableNotification).Methods(http.MethodPatch)
}

// Routes lists every endpoint of r with its methods, sorted by path.
func Routes(r *mux.Router) []Route {
	byPath := map[string][]string{}
	var paths []string
	_ = r.Walk(func(route *mux.Route, router *mux.Router, ancestors []*mux.Route) error {
		tpl, err := route.GetPathTemplate()
		if err != nil {
			return nil
		}
		methods, err := route.GetMethods()
		if err != nil {
			return nil
		}
		if _, seen := byPath[tpl]; !seen {
			paths = append(paths, tpl)
		}
		byPath[tpl] = append(byPath[tpl], methods...)
		return nil
	})

	sort.Strings(paths)
	routes := make([]Route, 0, len(paths))
	for _, p := range paths {
		methods := byPath[p]
		sort.Strings(methods)
		routes = append(routes, Route{Path: p, Methods: methods})
	}
	return routes
}
