package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chatterd/pkg/logger"
	"chatterd/pkg/telemetry"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// Ping period; must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Outbound buffer per connection. A full buffer drops frames rather
	// than blocking the engine; reconnecting clients re-derive truth
	// from stored state.
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// ServeWS checks the origin against the hub's allow-list before
		// upgrading; accept here.
		return true
	},
}

// Client is one websocket connection. A connection is anonymous until
// its login event binds it to an identity; the binding is permanent for
// the life of the connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu   sync.RWMutex
	user string
}

// User returns the identity bound to this connection, or "".
func (c *Client) User() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

func (c *Client) bind(user string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user != "" {
		return false
	}
	c.user = user
	return true
}

// enqueue offers a frame to this connection, dropping it if the buffer
// is full. Never blocks.
func (c *Client) enqueue(b []byte) {
	select {
	case c.send <- b:
	default:
		logger.Warn("client_send_buffer_full", "user", c.User())
	}
}

// sendEvent marshals and enqueues an envelope for this connection only.
func (c *Client) sendEvent(event string, data any) {
	b, err := json.Marshal(data)
	if err != nil {
		logger.Error("event_marshal_failed", "event", event, "error", err)
		return
	}
	frame, err := json.Marshal(Envelope{Type: event, Data: b})
	if err != nil {
		return
	}
	c.enqueue(frame)
}

// readPump reads frames until the connection dies, dispatching each
// event to the hub. A malformed frame is logged and skipped so one bad
// event never takes the connection down with it.
func (c *Client) readPump(maxFrameBytes int64) {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxFrameBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Debug("websocket_read_error", "user", c.User(), "error", err)
			}
			return
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			logger.Warn("event_invalid_json", "user", c.User(), "error", err)
			continue
		}
		c.hub.handleEvent(c, env)
	}
}

// writePump drains the send channel to the socket and keeps the
// connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWS upgrades an HTTP request and runs the connection's pumps.
// Upgrades from disallowed origins are refused before the handshake.
func ServeWS(hub *Hub, w http.ResponseWriter, r *http.Request) {
	if origin := r.Header.Get("Origin"); !hub.originAllowed(origin) {
		logger.Warn("websocket_origin_rejected", "origin", origin, "remote", r.RemoteAddr)
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket_upgrade_failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	telemetry.ConnectionOpened()
	client := &Client{hub: hub, conn: conn, send: make(chan []byte, sendBuffer)}
	hub.register <- client
	go client.writePump()
	go client.readPump(hub.maxFrameBytes)
}
