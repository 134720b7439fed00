package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"chatterd/pkg/logger"
	"chatterd/pkg/models"
	"chatterd/pkg/utils"
)

// requireAdmin authenticates the caller as an admin account via the
// phone/password query parameters. Admin tooling is trusted backend
// side; this mirrors the credential model of the account endpoints.
func (a *API) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	phone := r.URL.Query().Get("phone")
	password := r.URL.Query().Get("password")
	u, err := a.store.GetUser(phone)
	if err != nil || !u.IsAdmin || u.Password != password {
		utils.JSONError(w, http.StatusForbidden, "forbidden")
		return false
	}
	return true
}

func (a *API) adminListUsers(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(w, r) {
		return
	}
	users, err := a.store.ListUsers()
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	out := make([]models.PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	_ = utils.JSONWrite(w, http.StatusOK, out)
}

func (a *API) adminDeleteUser(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(w, r) {
		return
	}
	target := mux.Vars(r)["phone"]
	u, err := a.store.GetUser(target)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "user not found")
		return
	}
	if u.IsAdmin {
		utils.JSONError(w, http.StatusBadRequest, "cannot delete admin")
		return
	}
	if err := a.store.DeleteUser(target); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}
	// Scrub the deleted identity from every contact list.
	users, err := a.store.ListUsers()
	if err == nil {
		for _, other := range users {
			kept := other.Contacts[:0]
			changed := false
			for _, c := range other.Contacts {
				if c == target {
					changed = true
					continue
				}
				kept = append(kept, c)
			}
			if changed {
				other.Contacts = kept
				if err := a.store.SaveUser(other); err != nil {
					logger.Error("contact_scrub_failed", "phone", other.Phone, "error", err)
				}
			}
		}
	}
	logger.Info("user_deleted", "phone", target)
	_ = utils.JSONWrite(w, http.StatusOK, map[string]bool{"success": true})
}

func (a *API) adminListChats(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(w, r) {
		return
	}
	convs, err := a.store.ListConversations()
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, convs)
}

func (a *API) adminSearchChats(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(w, r) {
		return
	}
	q := r.URL.Query().Get("q")
	out := make([]models.Message, 0)
	if q != "" {
		msgs, err := a.store.SearchMessages(q)
		if err != nil {
			utils.JSONError(w, http.StatusInternalServerError, "search failed")
			return
		}
		out = msgs
	}
	_ = utils.JSONWrite(w, http.StatusOK, out)
}
