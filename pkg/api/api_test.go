package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatterd/pkg/chat"
	"chatterd/pkg/models"
	"chatterd/pkg/store"
)

type broadcastRec struct {
	events []string
}

func (b *broadcastRec) ToUser(user, event string, data any) {}
func (b *broadcastRec) Broadcast(event string, data any)    { b.events = append(b.events, event) }

func newTestAPI(t *testing.T) (*mux.Router, *store.Store, *broadcastRec) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	rec := &broadcastRec{}
	r := mux.NewRouter()
	New(st, rec).Register(r)
	return r, st, rec
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSignupAndLogin(t *testing.T) {
	r, _, _ := newTestAPI(t)

	w := doJSON(t, r, http.MethodPost, "/v1/signup", map[string]string{
		"phone": "111222333", "username": "ana", "password": "secret",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		User models.PublicUser `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "111222333", resp.User.Phone)
	assert.Equal(t, "ana", resp.User.Username)
	assert.NotContains(t, w.Body.String(), "secret")

	// Duplicate phone is a conflict.
	w = doJSON(t, r, http.MethodPost, "/v1/signup", map[string]string{
		"phone": "111222333", "username": "other", "password": "x12345",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Bad phone is rejected before any store access.
	w = doJSON(t, r, http.MethodPost, "/v1/signup", map[string]string{
		"phone": "abc", "username": "ana", "password": "secret",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/v1/login", map[string]string{
		"phone": "111222333", "password": "secret",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/v1/login", map[string]string{
		"phone": "111222333", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, r, http.MethodPost, "/v1/login", map[string]string{
		"phone": "999999999", "password": "secret",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestContacts(t *testing.T) {
	r, st, _ := newTestAPI(t)
	require.NoError(t, st.SaveUser(models.User{Phone: "111", Username: "ana", Password: "pw"}))
	require.NoError(t, st.SaveUser(models.User{Phone: "222", Username: "ben", Password: "pw"}))

	w := doJSON(t, r, http.MethodPost, "/v1/contacts", map[string]string{
		"user_phone": "111", "contact_phone": "222",
	})
	require.Equal(t, http.StatusOK, w.Code)

	// Adding twice stays idempotent.
	w = doJSON(t, r, http.MethodPost, "/v1/contacts", map[string]string{
		"user_phone": "111", "contact_phone": "222",
	})
	require.Equal(t, http.StatusOK, w.Code)
	u, err := st.GetUser("111")
	require.NoError(t, err)
	assert.Equal(t, []string{"222"}, u.Contacts)

	// Unknown contact is a 404.
	w = doJSON(t, r, http.MethodPost, "/v1/contacts", map[string]string{
		"user_phone": "111", "contact_phone": "999",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodGet, "/v1/contacts?user=111", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var contacts []models.PublicUser
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &contacts))
	require.Len(t, contacts, 1)
	assert.Equal(t, "ben", contacts[0].Username)

	// Unknown requester gets an empty list, not an error.
	w = doJSON(t, r, http.MethodGet, "/v1/contacts?user=000", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestContactsSurviveDeletedEntry(t *testing.T) {
	r, st, _ := newTestAPI(t)
	require.NoError(t, st.SaveUser(models.User{Phone: "111", Contacts: []string{"gone"}}))

	w := doJSON(t, r, http.MethodGet, "/v1/contacts?user=111", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var contacts []models.PublicUser
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &contacts))
	require.Len(t, contacts, 1)
	assert.Equal(t, "Unknown", contacts[0].Username)
}

func TestProfileUpdates(t *testing.T) {
	r, st, rec := newTestAPI(t)
	require.NoError(t, st.SaveUser(models.User{Phone: "111", Username: "ana"}))

	w := doJSON(t, r, http.MethodPost, "/v1/profile/photo", map[string]string{
		"phone": "111", "profile_pic": "data:image/png;base64,xyz",
	})
	require.Equal(t, http.StatusOK, w.Code)
	u, err := st.GetUser("111")
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,xyz", u.ProfilePic)
	// Everyone is told the picture changed.
	assert.Contains(t, rec.events, chat.EventProfilePic)

	w = doJSON(t, r, http.MethodPost, "/v1/profile/username", map[string]string{
		"phone": "111", "username": "ana-renamed",
	})
	require.Equal(t, http.StatusOK, w.Code)
	u, err = st.GetUser("111")
	require.NoError(t, err)
	assert.Equal(t, "ana-renamed", u.Username)

	w = doJSON(t, r, http.MethodPost, "/v1/profile/username", map[string]string{
		"phone": "999", "username": "ghost",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminAuth(t *testing.T) {
	r, st, _ := newTestAPI(t)
	require.NoError(t, st.SaveUser(models.User{Phone: "900", Username: "admin", Password: "adm", IsAdmin: true}))
	require.NoError(t, st.SaveUser(models.User{Phone: "111", Password: "pw"}))

	w := doJSON(t, r, http.MethodGet, "/v1/admin/users?phone=900&password=adm", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Wrong password, non-admin account and unknown account all refuse.
	for _, q := range []string{
		"phone=900&password=wrong",
		"phone=111&password=pw",
		"phone=404&password=adm",
	} {
		w = doJSON(t, r, http.MethodGet, "/v1/admin/users?"+q, nil)
		assert.Equal(t, http.StatusForbidden, w.Code, q)
	}
}

func TestAdminDeleteUser(t *testing.T) {
	r, st, _ := newTestAPI(t)
	require.NoError(t, st.SaveUser(models.User{Phone: "900", Password: "adm", IsAdmin: true}))
	require.NoError(t, st.SaveUser(models.User{Phone: "111", Contacts: []string{"222"}}))
	require.NoError(t, st.SaveUser(models.User{Phone: "222"}))

	w := doJSON(t, r, http.MethodDelete, "/v1/admin/users/222?phone=900&password=adm", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, st.IdentityExists("222"))

	// The deleted identity is scrubbed from contact lists.
	u, err := st.GetUser("111")
	require.NoError(t, err)
	assert.Empty(t, u.Contacts)

	// Admin accounts cannot be deleted.
	w = doJSON(t, r, http.MethodDelete, "/v1/admin/users/900?phone=900&password=adm", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/v1/admin/users/404?phone=900&password=adm", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminChats(t *testing.T) {
	r, st, _ := newTestAPI(t)
	require.NoError(t, st.SaveUser(models.User{Phone: "900", Password: "adm", IsAdmin: true}))
	require.NoError(t, st.Append("111_222", models.Message{ID: "a", Payload: "pizza tonight"}))
	require.NoError(t, st.Append("111_333", models.Message{ID: "b", Payload: "meeting moved"}))

	w := doJSON(t, r, http.MethodGet, "/v1/admin/chats?phone=900&password=adm", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var convs map[string][]models.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &convs))
	assert.Len(t, convs, 2)

	w = doJSON(t, r, http.MethodGet, "/v1/admin/chats/search?phone=900&password=adm&q=pizza", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var hits []models.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hits))
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].ID)

	// Empty query returns an empty list rather than everything.
	w = doJSON(t, r, http.MethodGet, "/v1/admin/chats/search?phone=900&password=adm", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}
