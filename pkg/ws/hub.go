package ws

import (
	"encoding/json"
	"strings"
	"sync"

	"chatterd/pkg/chat"
	"chatterd/pkg/logger"
	"chatterd/pkg/telemetry"
	"chatterd/pkg/validation"
)

// Hub tracks live connections and routes inbound events into the
// engine. It is the engine's Notifier: fan-out walks the registries
// under a read lock and enqueues onto buffered per-client channels, so
// it never blocks the engine.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	byUser  map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client

	engine *chat.Engine

	maxFrameBytes  int64
	allowedOrigins []string
}

// NewHub builds a hub. An empty origin list leaves upgrades
// unrestricted; otherwise only listed origins (or "*") may connect.
// Bind must be called with the engine before any connection is served.
func NewHub(maxFrameBytes int64, allowedOrigins []string) *Hub {
	if maxFrameBytes <= 0 {
		maxFrameBytes = 64 * 1024
	}
	return &Hub{
		clients:        make(map[*Client]struct{}),
		byUser:         make(map[string]map[*Client]struct{}),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		maxFrameBytes:  maxFrameBytes,
		allowedOrigins: allowedOrigins,
	}
}

// originAllowed checks a browser Origin header against the configured
// allow-list. Requests without an Origin header are always accepted.
func (h *Hub) originAllowed(origin string) bool {
	if origin == "" || len(h.allowedOrigins) == 0 {
		return true
	}
	for _, a := range h.allowedOrigins {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

// Bind attaches the engine the hub dispatches into.
func (h *Hub) Bind(e *chat.Engine) { h.engine = e }

// Run processes connection registration until the registration channel
// closes. Run it once, in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
		case c := <-h.unregister:
			user := c.User()
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				if user != "" {
					if set := h.byUser[user]; set != nil {
						delete(set, c)
						if len(set) == 0 {
							delete(h.byUser, user)
						}
					}
				}
			}
			h.mu.Unlock()
			if user != "" {
				h.engine.Disconnect(user)
			}
		}
	}
}

// handleEvent dispatches one inbound envelope. Errors are logged and
// swallowed here, at the boundary of the connection's handler.
func (h *Hub) handleEvent(c *Client, env Envelope) {
	telemetry.Event(env.Type)
	switch env.Type {
	case eventLogin:
		var d loginData
		if !decode(c, env, &d) {
			return
		}
		// Identity format is enforced at this boundary: an identity
		// carrying the conversation id separator would collide distinct
		// pairs onto one conversation.
		if err := validation.ValidatePhone(d.Phone); err != nil {
			logger.Warn("login_rejected", "phone", d.Phone, "error", err)
			return
		}
		if !c.bind(d.Phone) {
			logger.Warn("login_repeated", "user", c.User(), "phone", d.Phone)
			return
		}
		h.mu.Lock()
		set := h.byUser[d.Phone]
		if set == nil {
			set = make(map[*Client]struct{})
			h.byUser[d.Phone] = set
		}
		set[c] = struct{}{}
		h.mu.Unlock()
		h.engine.Login(d.Phone)

	case eventSend:
		from := c.User()
		if from == "" {
			logger.Warn("event_unauthenticated", "event", env.Type)
			return
		}
		var d sendData
		if !decode(c, env, &d) {
			return
		}
		if err := validation.ValidatePhone(d.To); err != nil {
			logger.Warn("send_recipient_rejected", "from", from, "to", d.To, "error", err)
			return
		}
		if err := validation.ValidatePayload(d.Payload); err != nil {
			logger.Warn("send_payload_rejected", "from", from, "error", err)
			return
		}
		if _, err := h.engine.Send(from, d.To, d.Payload, d.HasAttachment); err != nil {
			logger.Warn("send_rejected", "from", from, "to", d.To, "error", err)
		}

	case eventPeek:
		viewer := c.User()
		if viewer == "" {
			logger.Warn("event_unauthenticated", "event", env.Type)
			return
		}
		var d withUserData
		if !decode(c, env, &d) {
			return
		}
		if err := validation.ValidatePhone(d.WithUser); err != nil {
			logger.Warn("peek_target_rejected", "viewer", viewer, "target", d.WithUser, "error", err)
			return
		}
		if err := h.engine.SetPeek(viewer, d.WithUser); err != nil {
			logger.Warn("peek_rejected", "viewer", viewer, "error", err)
		}

	case eventUnpeek:
		viewer := c.User()
		if viewer == "" {
			return
		}
		var d withUserData
		if !decode(c, env, &d) || validation.ValidatePhone(d.WithUser) != nil {
			return
		}
		h.engine.ClearPeek(viewer, d.WithUser)

	case eventGetHistory:
		requester := c.User()
		if requester == "" {
			logger.Warn("event_unauthenticated", "event", env.Type)
			return
		}
		var d withUserData
		if !decode(c, env, &d) {
			return
		}
		if err := validation.ValidatePhone(d.WithUser); err != nil {
			logger.Warn("history_target_rejected", "requester", requester, "target", d.WithUser, "error", err)
			return
		}
		msgs, err := h.engine.History(requester, d.WithUser)
		if err != nil {
			logger.Warn("history_failed", "requester", requester, "error", err)
			return
		}
		// History is a reply to the asking connection, not a fan-out.
		c.sendEvent(chat.EventChatHistory, chat.HistoryPayload{WithUser: d.WithUser, Messages: msgs})

	case eventPollStatus:
		var d pollStatusData
		if !decode(c, env, &d) {
			return
		}
		if validation.ValidatePhone(d.From) != nil || validation.ValidatePhone(d.To) != nil {
			logger.Warn("poll_identity_rejected", "from", d.From, "to", d.To)
			return
		}
		h.engine.PollStatus(d.From, d.To)

	default:
		logger.Debug("event_unknown", "type", env.Type)
	}
}

func decode(c *Client, env Envelope, v any) bool {
	if err := json.Unmarshal(env.Data, v); err != nil {
		logger.Warn("event_bad_data", "type", env.Type, "user", c.User(), "error", err)
		return false
	}
	return true
}

// ToUser implements chat.Notifier for one identity's connections.
func (h *Hub) ToUser(user, event string, data any) {
	frame, ok := marshalEnvelope(event, data)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.byUser[user] {
		c.enqueue(frame)
	}
}

// Broadcast implements chat.Notifier for every connection, including
// ones that have not logged in yet.
func (h *Hub) Broadcast(event string, data any) {
	frame, ok := marshalEnvelope(event, data)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.enqueue(frame)
	}
}

func marshalEnvelope(event string, data any) ([]byte, bool) {
	b, err := json.Marshal(data)
	if err != nil {
		logger.Error("event_marshal_failed", "event", event, "error", err)
		return nil, false
	}
	frame, err := json.Marshal(Envelope{Type: event, Data: b})
	if err != nil {
		return nil, false
	}
	return frame, true
}
