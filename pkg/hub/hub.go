// Package hub is the realtime broadcaster: it tracks live websocket
// connections, one per authenticated client, and fans a change notification
// out to all of them after each committed mutation.
//
// The websocket server side is implemented with the gws library. Credential
// validation happens in the HTTP layer before HandleUpgrade is called, so a
// connection that reaches the hub is already authenticated; the credential is
// not re-validated per message.
package hub

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/lxzan/gws"

	"github.com/tasksync/tasksync/pkg/logger"
	"github.com/tasksync/tasksync/pkg/models"
)

// connection is one live client channel. A connection is created by a
// successful handshake and removed exactly once, on transport close; a
// reconnect produces a new connection with a new ID.
type connection struct {
	id     string
	userID models.UserID
	sock   *gws.Conn
}

// Hub owns the live-connection set. The set is mutated only by
// connection-open and connection-close events; Broadcast iterates a snapshot
// so it can run concurrently with both.
type Hub struct {
	mu       sync.RWMutex
	conns    map[*gws.Conn]*connection
	upgrader *gws.Upgrader
	logger   logger.Logger
}

func New(log logger.Logger) *Hub {
	if log == nil {
		log = logger.Default()
	}
	h := &Hub{
		conns:  make(map[*gws.Conn]*connection),
		logger: log,
	}
	h.upgrader = gws.NewUpgrader(&handler{hub: h}, &gws.ServerOption{})
	return h
}

// HandleUpgrade upgrades an already-authenticated HTTP request to a websocket
// connection, registers it in the live set and starts its read loop. The
// caller must have validated the session credential and resolved userID
// before calling; an unauthenticated request must never reach this point.
func (h *Hub) HandleUpgrade(w http.ResponseWriter, r *http.Request, userID models.UserID) error {
	sock, err := h.upgrader.Upgrade(w, r)
	if err != nil {
		return err
	}

	c := &connection{
		id:     uuid.NewString(),
		userID: userID,
		sock:   sock,
	}

	h.mu.Lock()
	h.conns[sock] = c
	live := len(h.conns)
	h.mu.Unlock()

	h.logger.Debug("connection opened", "conn_id", c.id, "user_id", userID.String(), "live", live)

	go sock.ReadLoop()
	return nil
}

// Broadcast delivers the notification to every currently-open connection.
// Delivery is fire-and-forget: a write failure closes that one connection and
// never affects delivery to the others, and no error reaches the mutation
// that triggered the broadcast. Connections opened after the snapshot is
// taken may miss this notification; their initial re-fetch covers them.
func (h *Hub) Broadcast(n *models.ChangeNotification) {
	data, err := json.Marshal(n)
	if err != nil {
		h.logger.Error("failed to marshal notification", "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*connection, 0, len(h.conns))
	for _, c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.sock.WriteMessage(gws.OpcodeText, data); err != nil {
			h.logger.Warn("dropping connection after failed delivery", "conn_id", c.id, "error", err)
			// OnClose unregisters the connection.
			_ = c.sock.NetConn().Close()
		}
	}
}

// Len returns the number of live connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// CloseAll sends a going-away close frame to every live connection. Used on
// server shutdown; clients are expected to reconnect against the next
// instance.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	targets := make([]*connection, 0, len(h.conns))
	for _, c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.sock.WriteClose(1001, []byte("server shutting down"))
	}
}

// handler implements the gws event interface for hub connections.
type handler struct {
	hub *Hub
}

func (h *handler) OnOpen(sock *gws.Conn) {}

func (h *handler) OnClose(sock *gws.Conn, err error) {
	h.hub.mu.Lock()
	c := h.hub.conns[sock]
	delete(h.hub.conns, sock)
	live := len(h.hub.conns)
	h.hub.mu.Unlock()

	if c == nil {
		return
	}
	if err != nil && !errors.Is(err, net.ErrClosed) {
		h.hub.logger.Debug("connection closed", "conn_id", c.id, "live", live, "error", err)
		return
	}
	h.hub.logger.Debug("connection closed", "conn_id", c.id, "live", live)
}

func (h *handler) OnPing(sock *gws.Conn, payload []byte) {
	if err := sock.WritePong(payload); err != nil {
		h.hub.logger.Warn("failed to write pong", "error", err)
	}
}

func (h *handler) OnPong(sock *gws.Conn, payload []byte) {}

// OnMessage discards inbound frames; the channel is server-to-client push
// only.
func (h *handler) OnMessage(sock *gws.Conn, message *gws.Message) {
	message.Close()
}
