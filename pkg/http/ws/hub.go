package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	sendQueueLen = 256
)

// Hub manages WebSocket connections and broadcasts messages to lobby members.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]*Connection         // username -> connection
	groups      map[string]map[string]struct{} // lobby code -> usernames
	logger      zerolog.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		groups:      make(map[string]map[string]struct{}),
		logger:      logger.With().Str("component", "ws_hub").Logger(),
	}
}

// RegisterConnection adds a connection for a user, replacing any previous one.
func (h *Hub) RegisterConnection(username string, conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, exists := h.connections[username]; exists && old != conn {
		old.Close()
	}

	h.connections[username] = conn
	h.logger.Info().Str("username", username).Msg("connection registered")
}

// UnregisterConnection removes conn if it is still the user's current connection.
// It reports whether the user is now disconnected.
func (h *Hub) UnregisterConnection(username string, conn *Connection) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	current, exists := h.connections[username]
	if !exists || current != conn {
		conn.Close()
		return false
	}
	conn.Close()
	delete(h.connections, username)
	for code, members := range h.groups {
		delete(members, username)
		if len(members) == 0 {
			delete(h.groups, code)
		}
	}
	h.logger.Info().Str("username", username).Msg("connection unregistered")
	return true
}

// Join associates a user with a lobby for targeted broadcasts.
func (h *Hub) Join(code, username string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.groups[code]
	if !ok {
		members = make(map[string]struct{})
		h.groups[code] = members
	}
	members[username] = struct{}{}
}

// Leave removes a user from a lobby.
func (h *Hub) Leave(code, username string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.groups[code]; ok {
		delete(members, username)
		if len(members) == 0 {
			delete(h.groups, code)
		}
	}
}

// Members lists the users joined to a lobby.
func (h *Hub) Members(code string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]string, 0, len(h.groups[code]))
	for username := range h.groups[code] {
		out = append(out, username)
	}
	return out
}

// Broadcast sends a message to all members of a lobby.
func (h *Hub) Broadcast(code string, msg Message) error {
	var firstErr error
	for _, username := range h.Members(code) {
		if err := h.SendToUser(username, msg); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// BroadcastAll sends a message to every connected user.
func (h *Hub) BroadcastAll(msg Message) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var firstErr error
	for username, conn := range h.connections {
		if err := conn.Send(msg); err != nil && firstErr == nil {
			firstErr = err
			h.logger.Warn().Err(err).Str("username", username).Msg("broadcast_all_send_failed")
		}
	}
	return firstErr
}

// SendToUser delivers a message to a specific user.
func (h *Hub) SendToUser(username string, msg Message) error {
	h.mu.RLock()
	conn, exists := h.connections[username]
	h.mu.RUnlock()

	if !exists {
		return ErrConnectionNotFound
	}

	return conn.Send(msg)
}

// Connection represents a WebSocket connection with send queue.
type Connection struct {
	conn   *websocket.Conn
	sendCh chan Message
	mu     sync.Mutex
	closed bool
	logger zerolog.Logger
}

// NewConnection wraps a WebSocket connection.
func NewConnection(conn *websocket.Conn, logger zerolog.Logger) *Connection {
	return &Connection{
		conn:   conn,
		sendCh: make(chan Message, sendQueueLen),
		logger: logger,
	}
}

// Send queues a message for delivery.
func (c *Connection) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}

	select {
	case c.sendCh <- msg:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close shuts down the connection. The write pump flushes a close frame.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	close(c.sendCh)
}

// WritePump sends queued messages and keeps the connection alive with pings.
func (c *Connection) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Warn().Err(err).Msg("write error")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump receives messages and calls the handler until the peer goes away.
func (c *Connection) ReadPump(handler func(Message) error) {
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("read error")
			}
			return
		}

		if err := handler(msg); err != nil {
			c.logger.Warn().Err(err).Str("type", msg.Type).Msg("message handler error")
		}
	}
}

var (
	ErrConnectionNotFound = &Error{Code: "connection_not_found", Message: "User connection not found"}
	ErrConnectionClosed   = &Error{Code: "connection_closed", Message: "Connection is closed"}
	ErrSendQueueFull      = &Error{Code: "send_queue_full", Message: "Send queue is full"}
)

type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
