package chat

import "chatterd/pkg/models"

// Outbound event types pushed to live connections. Names are part of
// the wire protocol and must not change.
const (
	EventOnlineUsers    = "onlineUsers"
	EventReceiveMessage = "receiveMessage"
	EventMessageSeen    = "messageSeen"
	EventPeekers        = "chat:peekers"
	EventChatHistory    = "chatHistory"
	EventProfilePic     = "profilePicUpdated"
)

// Notifier delivers events to live connections. Delivery is best-effort
// and must never block: the engine calls these while holding its lock.
type Notifier interface {
	// ToUser enqueues an event for every connection bound to user.
	ToUser(user string, event string, data any)
	// Broadcast enqueues an event for every connection, bound or not.
	Broadcast(event string, data any)
}

// PeekersUpdate tells one member of a pair who currently has the
// conversation between them open. Both members receive the same peeker
// set, each with WithUser naming the other party.
type PeekersUpdate struct {
	WithUser string   `json:"withUser"`
	Peekers  []string `json:"peekers"`
}

// HistoryPayload is the reply to a history fetch.
type HistoryPayload struct {
	WithUser string           `json:"withUser"`
	Messages []models.Message `json:"messages"`
}
