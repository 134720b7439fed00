package chat

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"chatterd/pkg/logger"
	"chatterd/pkg/models"
	"chatterd/pkg/telemetry"
)

// AccountStore is the external account record store. The engine only
// ever asks whether an identity exists; profile data is not its concern.
type AccountStore interface {
	GetUser(phone string) (models.User, error)
	IdentityExists(phone string) bool
}

// HistoryStore is the external per-conversation message log. Append is
// linear, UpdateStatus mutates a single message in place, and
// ListMessages returns insertion order.
type HistoryStore interface {
	Append(convID string, msg models.Message) error
	ListMessages(convID string) ([]models.Message, error)
	UpdateStatus(convID, msgID string, status models.Status) error
}

// Engine owns presence, peek state and the delivery status machine for
// two-party conversations. All state mutation happens under one mutex
// so each operation (read presence/peek, decide status, touch the
// store, enqueue fan-out) is atomic with respect to every other.
// Fan-out through the Notifier must therefore never block.
type Engine struct {
	mu sync.Mutex

	// sessions counts live connections per identity. Presence is the
	// derived view: an identity is online iff its count is positive.
	sessions map[string]int

	// peeks maps a viewer to the single counterpart conversation it has
	// open. Entries exist only for identities with a live session.
	peeks map[string]string

	accounts AccountStore
	history  HistoryStore
	notify   Notifier

	now func() time.Time
}

// NewEngine builds an engine over the given collaborators.
func NewEngine(accounts AccountStore, history HistoryStore, notify Notifier) *Engine {
	return &Engine{
		sessions: make(map[string]int),
		peeks:    make(map[string]string),
		accounts: accounts,
		history:  history,
		notify:   notify,
		now:      time.Now,
	}
}

// Login registers one live connection for user and broadcasts the
// updated online set. Safe to call once per connection; repeated calls
// for the same identity collapse into a single presence entry.
func (e *Engine) Login(user string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessions[user]++
	logger.Info("session_opened", "user", user, "sessions", e.sessions[user])
	e.broadcastPresenceLocked()
}

// Disconnect unregisters one live connection for user. Only when the
// last session closes does the identity leave the presence set; that
// is also the point peek cleanup runs: the user's own peek entry goes
// away, and so does every peek pointed at the user, each removal
// emitting a peekers-changed event for the affected pair.
func (e *Engine) Disconnect(user string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, ok := e.sessions[user]
	if !ok {
		return
	}
	if n > 1 {
		e.sessions[user] = n - 1
		logger.Debug("session_closed", "user", user, "sessions", n-1)
		return
	}
	delete(e.sessions, user)
	logger.Info("session_closed", "user", user, "sessions", 0)

	if target, ok := e.peeks[user]; ok {
		delete(e.peeks, user)
		e.emitPeekersLocked(user, target)
	}
	// A disconnected user can no longer be peeked at. O(viewers) scan;
	// fine for a single-instance coordinator.
	for viewer, target := range e.peeks {
		if target == user {
			delete(e.peeks, viewer)
			e.emitPeekersLocked(viewer, user)
		}
	}
	e.broadcastPresenceLocked()
}

// IsOnline reports whether user has at least one live session.
func (e *Engine) IsOnline(user string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessions[user] > 0
}

// OnlineUsers returns the sorted presence set.
func (e *Engine) OnlineUsers() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.onlineUsersLocked()
}

// SetPeek records that viewer has the conversation with target open,
// replacing any previous peek. Requires a live session for viewer.
func (e *Engine) SetPeek(viewer, target string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sessions[viewer] == 0 {
		return ErrUnauthenticated
	}
	e.peeks[viewer] = target
	logger.Debug("peek_set", "viewer", viewer, "target", target)
	e.emitPeekersLocked(viewer, target)
	return nil
}

// ClearPeek removes viewer's peek entry only if it still points at
// target. A stale clear racing a newer SetPeek is a silent no-op.
func (e *Engine) ClearPeek(viewer, target string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.peeks[viewer] != target {
		logger.Debug("peek_clear_stale", "viewer", viewer, "target", target)
		return
	}
	delete(e.peeks, viewer)
	logger.Debug("peek_cleared", "viewer", viewer, "target", target)
	e.emitPeekersLocked(viewer, target)
}

// IsPeeking reports whether viewer currently has the conversation with
// target open.
func (e *Engine) IsPeeking(viewer, target string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.peeks[viewer] == target
}

// Send creates exactly one message from->to and appends it to the
// conversation log. The initial status depends on the recipient's
// presence and peek state at this instant:
//
//	recipient online and peeking at sender -> seen
//	recipient online                       -> delivered
//	otherwise                              -> sent
//
// The sender must have a live session. The recipient identity is
// accepted even if it never connected or registered; the message simply
// queues as sent. Both parties are notified with the same status value.
func (e *Engine) Send(from, to, payload string, hasAttachment bool) (models.Message, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sessions[from] == 0 {
		logger.Warn("send_unauthenticated", "from", from, "to", to)
		return models.Message{}, ErrUnauthenticated
	}
	if !e.accounts.IdentityExists(to) {
		// Messages to unregistered identities queue as sent and surface
		// when that identity signs up and fetches.
		logger.Info("send_unknown_recipient", "from", from, "to", to)
	}

	convID := ConversationID(from, to)
	status := models.StatusSent
	if e.sessions[to] > 0 {
		if e.peeks[to] == from {
			status = models.StatusSeen
		} else {
			status = models.StatusDelivered
		}
	}

	msg := models.Message{
		ID:            uuid.NewString(),
		Conversation:  convID,
		From:          from,
		To:            to,
		Payload:       payload,
		HasAttachment: hasAttachment,
		TS:            e.now().UTC().UnixNano(),
		Status:        status,
	}
	if err := e.history.Append(convID, msg); err != nil {
		logger.Error("send_append_failed", "conversation", convID, "error", err)
		return models.Message{}, err
	}
	telemetry.MessageSent(string(status))
	logger.Info("message_sent", "conversation", convID, "id", msg.ID, "status", status)

	e.notify.ToUser(from, EventReceiveMessage, msg)
	if e.sessions[to] > 0 {
		e.notify.ToUser(to, EventReceiveMessage, msg)
	}
	if status == models.StatusSeen {
		e.notify.ToUser(from, EventMessageSeen, msg)
	}
	return msg, nil
}

// History returns the full conversation between requester and
// counterpart and, as a side effect, advances every not-yet-seen
// message addressed to the requester to seen: opening the chat is a
// one-time seen signal. Each advanced message produces one seen
// notification to its original sender.
func (e *Engine) History(requester, counterpart string) ([]models.Message, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sessions[requester] == 0 {
		return nil, ErrUnauthenticated
	}
	convID := ConversationID(requester, counterpart)
	msgs, err := e.history.ListMessages(convID)
	if err != nil {
		logger.Error("history_list_failed", "conversation", convID, "error", err)
		return nil, err
	}
	for i := range msgs {
		m := &msgs[i]
		if m.To != requester || m.From != counterpart || m.Status == models.StatusSeen {
			continue
		}
		if err := e.history.UpdateStatus(convID, m.ID, models.StatusSeen); err != nil {
			logger.Error("history_mark_seen_failed", "conversation", convID, "id", m.ID, "error", err)
			continue
		}
		m.Status = models.StatusSeen
		telemetry.StatusAdvanced(string(models.StatusSeen))
		e.notify.ToUser(counterpart, EventMessageSeen, *m)
	}
	return msgs, nil
}

// PollStatus closes the gap between "delivered" and "recipient is now
// peeking": if to currently peeks at from, every delivered message
// from->to advances to seen, notifying the sender. Idempotent; polling
// with nothing delivered is a no-op.
func (e *Engine) PollStatus(from, to string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.peeks[to] != from {
		return
	}
	convID := ConversationID(from, to)
	msgs, err := e.history.ListMessages(convID)
	if err != nil {
		logger.Error("poll_list_failed", "conversation", convID, "error", err)
		return
	}
	for i := range msgs {
		m := &msgs[i]
		if m.From != from || m.To != to || m.Status != models.StatusDelivered {
			continue
		}
		if err := e.history.UpdateStatus(convID, m.ID, models.StatusSeen); err != nil {
			logger.Error("poll_mark_seen_failed", "conversation", convID, "id", m.ID, "error", err)
			continue
		}
		m.Status = models.StatusSeen
		telemetry.StatusAdvanced(string(models.StatusSeen))
		e.notify.ToUser(from, EventMessageSeen, *m)
	}
}

// emitPeekersLocked sends the symmetric peekers-changed event for the
// pair (a, b) to both parties. Callers hold e.mu.
func (e *Engine) emitPeekersLocked(a, b string) {
	peekers := make([]string, 0, 2)
	if e.peeks[a] == b {
		peekers = append(peekers, a)
	}
	if e.peeks[b] == a {
		peekers = append(peekers, b)
	}
	e.notify.ToUser(a, EventPeekers, PeekersUpdate{WithUser: b, Peekers: peekers})
	e.notify.ToUser(b, EventPeekers, PeekersUpdate{WithUser: a, Peekers: peekers})
}

func (e *Engine) broadcastPresenceLocked() {
	online := e.onlineUsersLocked()
	telemetry.SetOnlineUsers(len(online))
	e.notify.Broadcast(EventOnlineUsers, online)
}

func (e *Engine) onlineUsersLocked() []string {
	out := make([]string, 0, len(e.sessions))
	for u := range e.sessions {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}
