package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"

	"chatterd/pkg/logger"
	"chatterd/pkg/models"
)

// ErrNotFound is returned when a user or message key does not exist.
var ErrNotFound = errors.New("not found")

// Key layout:
//
//	user:<phone>                          account record
//	conv:<convID>:msg:<ts %020d>-<seq>    message, insertion-ordered by prefix scan
//	msgidx:<messageID>                    -> primary message key, for in-place status updates
const (
	userPrefix = "user:"
	convPrefix = "conv:"
	idxPrefix  = "msgidx:"
)

// Store is a pebble-backed account store and per-conversation message
// log. It is safe for concurrent use; pebble serializes writes and the
// status update path re-reads under a deterministic key.
type Store struct {
	db  *pebble.DB
	seq uint64
}

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	logger.Info("opening_db", "path", path)
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("db_open_failed", "path", path, "error", err)
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	logger.Info("db_closed")
	return err
}

// --- account records ---

// SaveUser writes (or overwrites) an account record.
func (s *Store) SaveUser(u models.User) error {
	b, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	if err := s.db.Set([]byte(userPrefix+u.Phone), b, pebble.Sync); err != nil {
		logger.Error("save_user_failed", "phone", u.Phone, "error", err)
		return err
	}
	return nil
}

// GetUser returns the account record for phone, or ErrNotFound.
func (s *Store) GetUser(phone string) (models.User, error) {
	v, closer, err := s.db.Get([]byte(userPrefix + phone))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	defer closer.Close()
	var u models.User
	if err := json.Unmarshal(v, &u); err != nil {
		return models.User{}, fmt.Errorf("invalid stored user %s: %w", phone, err)
	}
	return u, nil
}

// IdentityExists reports whether an account record exists for phone.
func (s *Store) IdentityExists(phone string) bool {
	_, err := s.GetUser(phone)
	return err == nil
}

// ListUsers returns every account record.
func (s *Store) ListUsers() ([]models.User, error) {
	var out []models.User
	err := s.scanPrefix(userPrefix, func(_, v []byte) error {
		var u models.User
		if err := json.Unmarshal(v, &u); err != nil {
			return fmt.Errorf("invalid stored user: %w", err)
		}
		out = append(out, u)
		return nil
	})
	return out, err
}

// DeleteUser removes an account record. Conversation history is left
// untouched; history removal is not a store concern here.
func (s *Store) DeleteUser(phone string) error {
	return s.db.Delete([]byte(userPrefix+phone), pebble.Sync)
}

// --- conversation log ---

// Append adds a message to a conversation under a sortable timestamp
// key and indexes it by message ID so the status can later be updated
// in place.
func (s *Store) Append(convID string, msg models.Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	ts := time.Now().UTC().UnixNano()
	n := atomic.AddUint64(&s.seq, 1)
	key := fmt.Sprintf("%s%s:msg:%020d-%06d", convPrefix, convID, ts, n)
	if err := s.db.Set([]byte(key), b, pebble.Sync); err != nil {
		logger.Error("append_message_failed", "conversation", convID, "key", key, "error", err)
		return err
	}
	if msg.ID != "" {
		if err := s.db.Set([]byte(idxPrefix+msg.ID), []byte(key), pebble.Sync); err != nil {
			logger.Error("append_index_failed", "id", msg.ID, "error", err)
			return err
		}
	}
	logger.Debug("message_saved", "conversation", convID, "id", msg.ID)
	return nil
}

// ListMessages returns all messages of a conversation in insertion order.
func (s *Store) ListMessages(convID string) ([]models.Message, error) {
	var out []models.Message
	err := s.scanPrefix(convPrefix+convID+":msg:", func(_, v []byte) error {
		var m models.Message
		if err := json.Unmarshal(v, &m); err != nil {
			return fmt.Errorf("invalid stored message: %w", err)
		}
		out = append(out, m)
		return nil
	})
	return out, err
}

// UpdateStatus advances the status of one message. Backward transitions
// are ignored so a racing late update can never regress a seen message.
func (s *Store) UpdateStatus(convID, msgID string, status models.Status) error {
	kv, closer, err := s.db.Get([]byte(idxPrefix + msgID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	key := append([]byte(nil), kv...)
	closer.Close()

	v, closer, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	var m models.Message
	uerr := json.Unmarshal(v, &m)
	closer.Close()
	if uerr != nil {
		return fmt.Errorf("invalid stored message %s: %w", msgID, uerr)
	}
	if !m.Status.CanAdvanceTo(status) {
		logger.Debug("status_update_ignored", "id", msgID, "from", m.Status, "to", status)
		return nil
	}
	m.Status = status
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := s.db.Set(key, b, pebble.Sync); err != nil {
		logger.Error("status_update_failed", "id", msgID, "error", err)
		return err
	}
	logger.Debug("status_updated", "id", msgID, "status", status)
	return nil
}

// ListConversations returns every conversation and its messages, keyed
// by conversation ID. Admin use only.
func (s *Store) ListConversations() (map[string][]models.Message, error) {
	out := make(map[string][]models.Message)
	err := s.scanPrefix(convPrefix, func(k, v []byte) error {
		rest := strings.TrimPrefix(string(k), convPrefix)
		i := strings.Index(rest, ":msg:")
		if i < 0 {
			return nil
		}
		var m models.Message
		if err := json.Unmarshal(v, &m); err != nil {
			return fmt.Errorf("invalid stored message: %w", err)
		}
		out[rest[:i]] = append(out[rest[:i]], m)
		return nil
	})
	return out, err
}

// SearchMessages returns messages whose payload contains q, case
// insensitive. Only useful for deployments with plaintext payloads;
// opaque blobs simply never match.
func (s *Store) SearchMessages(q string) ([]models.Message, error) {
	q = strings.ToLower(q)
	var out []models.Message
	err := s.scanPrefix(convPrefix, func(_, v []byte) error {
		var m models.Message
		if err := json.Unmarshal(v, &m); err != nil {
			return nil
		}
		if strings.Contains(strings.ToLower(m.Payload), q) {
			out = append(out, m)
		}
		return nil
	})
	return out, err
}

// Counts returns the number of account records and stored messages.
func (s *Store) Counts() (users, messages int, err error) {
	if err = s.scanPrefix(userPrefix, func(_, _ []byte) error { users++; return nil }); err != nil {
		return
	}
	err = s.scanPrefix(convPrefix, func(_, _ []byte) error { messages++; return nil })
	return
}

func (s *Store) scanPrefix(prefix string, fn func(k, v []byte) error) error {
	if s.db == nil {
		return fmt.Errorf("store not opened")
	}
	p := []byte(prefix)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: p})
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), p) {
			break
		}
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}
