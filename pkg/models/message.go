package models

// Status is the delivery state of a message. Transitions only move
// forward: sent -> delivered -> seen. Seen is terminal.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusSeen      Status = "seen"
)

// Rank orders statuses for monotonicity checks. Unknown statuses rank
// below sent so they can always be repaired forward.
func (s Status) Rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusSeen:
		return 3
	}
	return 0
}

// CanAdvanceTo reports whether moving to next is a forward transition.
func (s Status) CanAdvanceTo(next Status) bool {
	return next.Rank() > s.Rank()
}

// Message is a single direct message between two identities. The payload
// is an opaque blob; the server never inspects it. Status is the only
// mutable field once a message has been appended.
type Message struct {
	ID            string `json:"id"`
	Conversation  string `json:"conversation"`
	From          string `json:"from"`
	To            string `json:"to"`
	Payload       string `json:"payload,omitempty"`
	HasAttachment bool   `json:"has_attachment,omitempty"`
	TS            int64  `json:"ts"`
	Status        Status `json:"status"`
}
