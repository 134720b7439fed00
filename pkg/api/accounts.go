package api

import (
	"errors"
	"net/http"

	"chatterd/pkg/chat"
	"chatterd/pkg/logger"
	"chatterd/pkg/models"
	"chatterd/pkg/store"
	"chatterd/pkg/utils"
	"chatterd/pkg/validation"
)

type signupRequest struct {
	Phone    string `json:"phone"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *API) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validation.ValidateSignup(req.Phone, req.Username, req.Password); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if a.store.IdentityExists(req.Phone) {
		utils.JSONError(w, http.StatusConflict, "phone number already registered")
		return
	}
	u := models.User{Phone: req.Phone, Username: req.Username, Password: req.Password}
	if err := a.store.SaveUser(u); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "failed to save user")
		return
	}
	logger.Info("user_registered", "phone", req.Phone)
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"user": u.Public()})
}

type loginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	u, err := a.store.GetUser(req.Phone)
	if err != nil || u.Password != req.Password {
		utils.JSONError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"user": u.Public()})
}

type addContactRequest struct {
	UserPhone    string `json:"user_phone"`
	ContactPhone string `json:"contact_phone"`
}

func (a *API) addContact(w http.ResponseWriter, r *http.Request) {
	var req addContactRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	contact, err := a.store.GetUser(req.ContactPhone)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "user not found")
		return
	}
	u, err := a.store.GetUser(req.UserPhone)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "user not found")
		return
	}
	found := false
	for _, c := range u.Contacts {
		if c == req.ContactPhone {
			found = true
			break
		}
	}
	if !found {
		u.Contacts = append(u.Contacts, req.ContactPhone)
		if err := a.store.SaveUser(u); err != nil {
			utils.JSONError(w, http.StatusInternalServerError, "failed to save user")
			return
		}
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"contact": contact.Public()})
}

func (a *API) listContacts(w http.ResponseWriter, r *http.Request) {
	phone := r.URL.Query().Get("user")
	out := make([]models.PublicUser, 0)
	u, err := a.store.GetUser(phone)
	if err != nil {
		// Unknown requester yields an empty list, not an error.
		_ = utils.JSONWrite(w, http.StatusOK, out)
		return
	}
	for _, c := range u.Contacts {
		cu, err := a.store.GetUser(c)
		if errors.Is(err, store.ErrNotFound) {
			out = append(out, models.PublicUser{Phone: c, Username: "Unknown"})
			continue
		} else if err != nil {
			utils.JSONError(w, http.StatusInternalServerError, "failed to load contacts")
			return
		}
		out = append(out, cu.Public())
	}
	_ = utils.JSONWrite(w, http.StatusOK, out)
}

type updatePhotoRequest struct {
	Phone      string `json:"phone"`
	ProfilePic string `json:"profile_pic"`
}

func (a *API) updatePhoto(w http.ResponseWriter, r *http.Request) {
	var req updatePhotoRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	u, err := a.store.GetUser(req.Phone)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "user not found")
		return
	}
	u.ProfilePic = req.ProfilePic
	if err := a.store.SaveUser(u); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "failed to save user")
		return
	}
	a.notify.Broadcast(chat.EventProfilePic, u.Public())
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"user": u.Public()})
}

type updateUsernameRequest struct {
	Phone    string `json:"phone"`
	Username string `json:"username"`
}

func (a *API) updateUsername(w http.ResponseWriter, r *http.Request) {
	var req updateUsernameRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validation.ValidateUsername(req.Username); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	u, err := a.store.GetUser(req.Phone)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "user not found")
		return
	}
	u.Username = req.Username
	if err := a.store.SaveUser(u); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "failed to save user")
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"user": u.Public()})
}
