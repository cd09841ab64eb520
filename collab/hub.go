package collab

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/isdmx/coderoom/logger"
	"github.com/isdmx/coderoom/metrics"
)

// Inbound events
const (
	EventJoinRoom       = "join-room"
	EventLeaveRoom      = "leave-room"
	EventCodeChange     = "code-change"
	EventFileAdd        = "file-add"
	EventFileDelete     = "file-delete"
	EventFileRename     = "file-rename"
	EventTerminalOutput = "terminal-output"
	EventVoiceOffer     = "voice-offer"
	EventVoiceAnswer    = "voice-answer"
	EventVoiceCandidate = "voice-candidate"
	EventMicStatus      = "mic-status"
)

// Outbound events
const (
	EventConnected       = "connected"
	EventUserJoined      = "user-joined"
	EventPresenceUpdate  = "presence-update"
	EventCodeUpdate      = "code-update"
	EventFileAdded       = "file-added"
	EventFileDeleted     = "file-deleted"
	EventFileRenamed     = "file-renamed"
	EventTerminalUpdate  = "terminal-update"
	EventMicStatusUpdate = "mic-status-update"
	EventError           = "error"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	sendBuffer     = 256
)

// Envelope is the wire format of every message in both directions
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type client struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

func (c *client) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

// Hub relays collaboration events between websocket clients
type Hub struct {
	logger   *zap.Logger
	store    *Store
	metrics  *metrics.Collector
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client
}

// HubOption configures a Hub
type HubOption func(*Hub)

// WithHubMetrics records connection and event metrics on c
func WithHubMetrics(c *metrics.Collector) HubOption {
	return func(h *Hub) {
		h.metrics = c
	}
}

// WithAllowedOrigins restricts websocket upgrades to the listed origins.
// Without it only same-origin upgrades are accepted.
func WithAllowedOrigins(origins []string) HubOption {
	return func(h *Hub) {
		if len(origins) == 0 {
			return
		}
		allowed := make(map[string]bool, len(origins))
		for _, o := range origins {
			allowed[o] = true
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed["*"] || allowed[origin]
		}
	}
}

// NewHub creates a Hub backed by store
func NewHub(logger *zap.Logger, store *Store, opts ...HubOption) *Hub {
	h := &Hub{
		logger:  logger,
		store:   store,
		clients: make(map[string]*client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP upgrades the connection and serves the client until it disconnects
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade error", zap.Error(err))
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.metrics.ConnectionOpened()

	log := h.logger.With(zap.String(logger.KeySocketID, c.id))
	log.Info("socket connected")

	go h.writePump(c, log)

	h.emit(c.id, EventConnected, map[string]string{"socketId": c.id})
	h.readPump(c, log)
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for _, c := range h.clients {
		conns = append(conns, c.conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
	}
}

// ClientCount returns the number of connected sockets
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) readPump(c *client, log *zap.Logger) {
	defer h.disconnect(c, log)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("websocket read error", zap.Error(err))
			}
			return
		}
		h.metrics.ObserveEvent(env.Event)
		h.dispatch(c, env, log)
	}
}

// writePump is the only goroutine writing to c.conn
func (h *Hub) writePump(c *client, log *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Debug("websocket write error", zap.Error(err))
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

func (h *Hub) disconnect(c *client, log *zap.Logger) {
	h.mu.Lock()
	delete(h.clients, c.id)
	c.close()
	h.mu.Unlock()
	h.metrics.ConnectionClosed()

	for roomID, members := range h.store.DetachSocket(c.id) {
		h.broadcast(roomID, "", EventPresenceUpdate, members)
	}
	log.Info("socket disconnected")
}

// emit queues an event for one socket. A client whose queue is full is dropped.
func (h *Hub) emit(socketID, event string, data any) {
	msg, err := encode(event, data)
	if err != nil {
		h.logger.Error("failed to encode event", zap.String("event", event), zap.Error(err))
		return
	}
	h.deliver(socketID, msg)
}

// broadcast queues an event for every subscriber of roomID except skip
func (h *Hub) broadcast(roomID, skip, event string, data any) {
	msg, err := encode(event, data)
	if err != nil {
		h.logger.Error("failed to encode event", zap.String("event", event), zap.Error(err))
		return
	}
	for _, socketID := range h.store.Subscribers(roomID) {
		if socketID != skip {
			h.deliver(socketID, msg)
		}
	}
}

// deliver holds the read lock while sending so disconnect cannot close c.send underneath it
func (h *Hub) deliver(socketID string, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[socketID]
	if !ok {
		return
	}

	select {
	case c.send <- msg:
	default:
		h.logger.Warn("send queue full, dropping socket", zap.String(logger.KeySocketID, socketID))
		_ = c.conn.Close()
	}
}

func encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
