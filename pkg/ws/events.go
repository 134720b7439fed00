package ws

import "encoding/json"

// Inbound event types accepted over the socket. Names are part of the
// wire protocol and must not change.
const (
	eventLogin      = "login"
	eventSend       = "sendMessage"
	eventPeek       = "chat:peek"
	eventUnpeek     = "chat:unpeek"
	eventGetHistory = "getHistory"
	eventPollStatus = "chat:pollStatus"
)

// Envelope is the frame exchanged in both directions: a type tag and a
// type-specific JSON body.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type loginData struct {
	Phone    string `json:"phone"`
	Username string `json:"username,omitempty"`
}

type sendData struct {
	To            string `json:"to"`
	Payload       string `json:"payload"`
	HasAttachment bool   `json:"has_attachment,omitempty"`
}

type withUserData struct {
	WithUser string `json:"withUser"`
}

type pollStatusData struct {
	From string `json:"from"`
	To   string `json:"to"`
}
