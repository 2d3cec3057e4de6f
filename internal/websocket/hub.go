package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/Rubber-Duck-Productions/Stormhacks-2025/internal/models"
	"github.com/Rubber-Duck-Productions/Stormhacks-2025/internal/orchestrator"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// maxFrameMessage bounds inbound messages; frames arrive base64 encoded.
const maxFrameMessage = 8 << 20

// Client message types.
const (
	TypeCameraReady = "camera_ready"
	TypeFrame       = "frame"
	TypeMessage     = "message"
	TypeReset       = "reset"
)

// Server message types.
const (
	TypeStatusUpdate = "status_update"
	TypeError        = "error"
)

type TokenParser interface {
	ParseSessionToken(token string) (uuid.UUID, error)
}

type SessionStore interface {
	Get(id uuid.UUID) (*orchestrator.Session, error)
	MarkCameraReady(id uuid.UUID) error
	PushFrame(id uuid.UUID, frame []byte) error
}

type FrameDecoder func(raw string) ([]byte, error)

type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

const (
	writeWait    = 10 * time.Second
	pingPeriod   = 54 * time.Second
	sendBufferSz = 32
)

// client owns one socket. All writes go through its writer goroutine so a
// slow peer only ever fills its own buffer.
type client struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		conn: conn,
		send: make(chan []byte, sendBufferSz),
		done: make(chan struct{}),
	}
}

// enqueue never blocks; messages for a peer that is not keeping up are dropped.
func (c *client) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// Hub fans session progress out to every socket attached to the session.
// With a Redis client, updates travel over pub/sub so any instance holding
// the socket can deliver them.
type Hub struct {
	mu          sync.RWMutex
	connections map[uuid.UUID][]*client
	cancelFuncs map[uuid.UUID]context.CancelFunc
	redisClient *redis.Client
	tokens      TokenParser
	sessions    SessionStore
	decodeFrame FrameDecoder
}

func NewHub(redisClient *redis.Client, tokens TokenParser, decodeFrame FrameDecoder) *Hub {
	return &Hub{
		connections: make(map[uuid.UUID][]*client),
		cancelFuncs: make(map[uuid.UUID]context.CancelFunc),
		redisClient: redisClient,
		tokens:      tokens,
		decodeFrame: decodeFrame,
	}
}

// SetSessions wires the session store. It must be called before serving.
func (h *Hub) SetSessions(sessions SessionStore) {
	h.sessions = sessions
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Authenticate via token query param
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	sessionID, err := h.tokens.ParseSessionToken(tokenStr)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if _, err := h.sessions.Get(sessionID); err != nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	conn.SetReadLimit(maxFrameMessage)

	c := newClient(conn)
	h.registerConnection(sessionID, c)
	go c.writeLoop()

	go func() {
		defer h.unregisterConnection(sessionID, c)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				break
			}
			h.handleMessage(sessionID, c, data)
		}
	}()
}

func (h *Hub) handleMessage(sessionID uuid.UUID, c *client, data []byte) {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		h.sendError(c, "Invalid message")
		return
	}

	switch msg.Type {
	case TypeCameraReady:
		if err := h.sessions.MarkCameraReady(sessionID); err != nil {
			h.sendError(c, "Session not found")
		}

	case TypeFrame:
		var p models.FrameRequest
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			h.sendError(c, "Invalid frame")
			return
		}
		frame, err := h.decodeFrame(p.Image)
		if err != nil {
			h.sendError(c, "Image must be base64 encoded")
			return
		}
		if err := h.sessions.PushFrame(sessionID, frame); err != nil {
			h.sendError(c, "Session not found")
		}

	case TypeMessage:
		var p models.SendMessageRequest
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			h.sendError(c, "Invalid message")
			return
		}
		s, err := h.sessions.Get(sessionID)
		if err != nil {
			h.sendError(c, "Session not found")
			return
		}
		// Frames keep flowing on this socket while the reply is produced.
		go func() {
			if _, err := s.SendMessage(context.Background(), p.Message); err != nil {
				h.sendError(c, sendErrorText(err))
			}
		}()

	case TypeReset:
		s, err := h.sessions.Get(sessionID)
		if err != nil {
			h.sendError(c, "Session not found")
			return
		}
		if err := s.Reset(); err != nil {
			h.sendError(c, "A message is still being processed")
		}

	default:
		h.sendError(c, "Unknown message type")
	}
}

func sendErrorText(err error) string {
	switch {
	case errors.Is(err, orchestrator.ErrEmptyMessage):
		return "Message is required"
	case errors.Is(err, orchestrator.ErrBusy):
		return "A message is already being processed"
	case errors.Is(err, orchestrator.ErrCaptureUnavailable):
		return "Camera is not available"
	default:
		return "Failed to get a response. Please try again."
	}
}

func (h *Hub) sendError(c *client, message string) {
	data, err := json.Marshal(models.WSMessage{Type: TypeError, Payload: models.ErrorResponse{Error: message}})
	if err != nil {
		return
	}
	if !c.enqueue(data) {
		log.Printf("WebSocket error message dropped: %s", message)
	}
}

func (h *Hub) registerConnection(sessionID uuid.UUID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[sessionID] = append(h.connections[sessionID], c)

	// Start pub/sub subscription if this is the first connection for this session
	if h.redisClient != nil && len(h.connections[sessionID]) == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[sessionID] = cancel
		go h.subscribeToPubSub(ctx, sessionID)
	}

	log.Printf("WebSocket connected: session %s (total: %d)", sessionID, len(h.connections[sessionID]))
}

func (h *Hub) unregisterConnection(sessionID uuid.UUID, c *client) {
	c.close()

	h.mu.Lock()
	defer h.mu.Unlock()

	conns := h.connections[sessionID]
	for i, existing := range conns {
		if existing == c {
			h.connections[sessionID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	// If no more connections, cancel pub/sub
	if len(h.connections[sessionID]) == 0 {
		delete(h.connections, sessionID)
		if cancel, ok := h.cancelFuncs[sessionID]; ok {
			cancel()
			delete(h.cancelFuncs, sessionID)
		}
	}

	log.Printf("WebSocket disconnected: session %s", sessionID)
}

func channelFor(sessionID uuid.UUID) string {
	return "session_updates:" + sessionID.String()
}

func (h *Hub) subscribeToPubSub(ctx context.Context, sessionID uuid.UUID) {
	pubsub := h.redisClient.Subscribe(ctx, channelFor(sessionID))
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(sessionID, []byte(msg.Payload))
		}
	}
}

func (h *Hub) broadcast(sessionID uuid.UUID, data []byte) {
	h.mu.RLock()
	clients := append([]*client(nil), h.connections[sessionID]...)
	h.mu.RUnlock()

	for _, c := range clients {
		if !c.enqueue(data) {
			log.Printf("WebSocket update dropped for slow client on session %s", sessionID)
		}
	}
}

// Publish delivers msg to the session's sockets.
func (h *Hub) Publish(sessionID uuid.UUID, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	if h.redisClient != nil {
		err := h.redisClient.Publish(context.Background(), channelFor(sessionID), data).Err()
		if err == nil {
			return
		}
		log.Printf("WebSocket publish for session %s fell back to local delivery: %v", sessionID, err)
	}
	h.broadcast(sessionID, data)
}

// ObserverFor returns an orchestrator observer that streams the session's
// progress to its sockets.
func (h *Hub) ObserverFor(sessionID uuid.UUID) orchestrator.Observer {
	return &sessionObserver{hub: h, sessionID: sessionID}
}

type sessionObserver struct {
	hub       *Hub
	sessionID uuid.UUID
}

func (o *sessionObserver) StateChanged(state orchestrator.State) {
	o.hub.Publish(o.sessionID, models.WSMessage{
		Type:    TypeStatusUpdate,
		Payload: models.StatusUpdate{SessionID: o.sessionID, State: string(state)},
	})
}

func (o *sessionObserver) MessageAppended(msg models.ChatMessage) {
	o.hub.Publish(o.sessionID, models.WSMessage{Type: TypeMessage, Payload: msg})
}
