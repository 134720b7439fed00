package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatterd/pkg/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUserRoundTrip(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetUser("111")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, s.IdentityExists("111"))

	u := models.User{Phone: "111", Username: "ana", Password: "pw", Contacts: []string{"222"}}
	require.NoError(t, s.SaveUser(u))

	got, err := s.GetUser("111")
	require.NoError(t, err)
	assert.Equal(t, u, got)
	assert.True(t, s.IdentityExists("111"))

	// Overwrite replaces the record.
	u.Username = "ana2"
	require.NoError(t, s.SaveUser(u))
	got, err = s.GetUser("111")
	require.NoError(t, err)
	assert.Equal(t, "ana2", got.Username)
}

func TestListAndDeleteUsers(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SaveUser(models.User{Phone: "111"}))
	require.NoError(t, s.SaveUser(models.User{Phone: "222"}))

	users, err := s.ListUsers()
	require.NoError(t, err)
	assert.Len(t, users, 2)

	require.NoError(t, s.DeleteUser("111"))
	users, err = s.ListUsers()
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "222", users[0].Phone)
}

func TestAppendPreservesInsertionOrder(t *testing.T) {
	s := openTestStore(t)
	conv := "111_222"
	for i, p := range []string{"first", "second", "third"} {
		msg := models.Message{
			ID:           string(rune('a' + i)),
			Conversation: conv,
			From:         "111",
			To:           "222",
			Payload:      p,
			Status:       models.StatusSent,
		}
		require.NoError(t, s.Append(conv, msg))
	}

	msgs, err := s.ListMessages(conv)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "first", msgs[0].Payload)
	assert.Equal(t, "second", msgs[1].Payload)
	assert.Equal(t, "third", msgs[2].Payload)

	// Other conversations stay isolated.
	other, err := s.ListMessages("111_333")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestUpdateStatusForwardOnly(t *testing.T) {
	s := openTestStore(t)
	conv := "111_222"
	msg := models.Message{ID: "m1", Conversation: conv, From: "111", To: "222", Payload: "hi", Status: models.StatusSent}
	require.NoError(t, s.Append(conv, msg))

	require.NoError(t, s.UpdateStatus(conv, "m1", models.StatusDelivered))
	msgs, err := s.ListMessages(conv)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, msgs[0].Status)

	require.NoError(t, s.UpdateStatus(conv, "m1", models.StatusSeen))

	// Backward and repeated updates are swallowed.
	require.NoError(t, s.UpdateStatus(conv, "m1", models.StatusDelivered))
	require.NoError(t, s.UpdateStatus(conv, "m1", models.StatusSeen))
	msgs, err = s.ListMessages(conv)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSeen, msgs[0].Status)

	assert.ErrorIs(t, s.UpdateStatus(conv, "nope", models.StatusSeen), ErrNotFound)
}

func TestListConversations(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Append("111_222", models.Message{ID: "a", Payload: "x"}))
	require.NoError(t, s.Append("111_222", models.Message{ID: "b", Payload: "y"}))
	require.NoError(t, s.Append("222_333", models.Message{ID: "c", Payload: "z"}))

	convs, err := s.ListConversations()
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Len(t, convs["111_222"], 2)
	assert.Len(t, convs["222_333"], 1)
}

func TestSearchMessages(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Append("111_222", models.Message{ID: "a", Payload: "Lunch tomorrow?"}))
	require.NoError(t, s.Append("111_222", models.Message{ID: "b", Payload: "sure"}))
	require.NoError(t, s.Append("222_333", models.Message{ID: "c", Payload: "lunch was great"}))

	hits, err := s.SearchMessages("LUNCH")
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = s.SearchMessages("dinner")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestCounts(t *testing.T) {
	s := openTestStore(t)
	users, msgs, err := s.Counts()
	require.NoError(t, err)
	assert.Zero(t, users)
	assert.Zero(t, msgs)

	require.NoError(t, s.SaveUser(models.User{Phone: "111"}))
	require.NoError(t, s.Append("111_222", models.Message{ID: "a"}))
	require.NoError(t, s.Append("111_222", models.Message{ID: "b"}))

	users, msgs, err = s.Counts()
	require.NoError(t, err)
	assert.Equal(t, 1, users)
	assert.Equal(t, 2, msgs)
}
