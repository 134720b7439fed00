package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"chatterd/pkg/chat"
	"chatterd/pkg/store"
)

// API owns the HTTP account/contact/admin surface. The realtime engine
// is not involved here except as a notifier for profile broadcasts.
type API struct {
	store  *store.Store
	notify chat.Notifier
}

// New builds the API over its collaborators.
func New(st *store.Store, notify chat.Notifier) *API {
	return &API{store: st, notify: notify}
}

// Register mounts all /v1 routes on the router.
func (a *API) Register(r *mux.Router) {
	v1 := r.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/signup", a.signup).Methods(http.MethodPost)
	v1.HandleFunc("/login", a.login).Methods(http.MethodPost)

	v1.HandleFunc("/contacts", a.addContact).Methods(http.MethodPost)
	v1.HandleFunc("/contacts", a.listContacts).Methods(http.MethodGet)

	v1.HandleFunc("/profile/photo", a.updatePhoto).Methods(http.MethodPost)
	v1.HandleFunc("/profile/username", a.updateUsername).Methods(http.MethodPost)

	v1.HandleFunc("/admin/users", a.adminListUsers).Methods(http.MethodGet)
	v1.HandleFunc("/admin/users/{phone}", a.adminDeleteUser).Methods(http.MethodDelete)
	v1.HandleFunc("/admin/chats", a.adminListChats).Methods(http.MethodGet)
	v1.HandleFunc("/admin/chats/search", a.adminSearchChats).Methods(http.MethodGet)
}
