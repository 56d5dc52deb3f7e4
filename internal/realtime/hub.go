// Package realtime pushes committed session state to WebSocket subscribers.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/ashureev/logoforge/internal/domain"
	"github.com/ashureev/logoforge/internal/identity"
)

// Message types sent to subscribers.
const (
	MessageState   = "state"
	MessageCleared = "cleared"
	MessageError   = "error"
)

// Message is one frame on the socket.
type Message struct {
	Type      string             `json:"type"`
	SessionID string             `json:"session_id"`
	State     *domain.AgentState `json:"state,omitempty"`
	Error     string             `json:"error,omitempty"`
}

const (
	subscriberBuffer = 16
	writeTimeout     = 5 * time.Second
)

type subscriber struct {
	userID string
	out    chan []byte
}

// Hub fans state changes out to the sockets watching each session.
type Hub struct {
	mu     sync.RWMutex
	active map[string]map[*subscriber]struct{}
	logger *slog.Logger

	allowedOrigin string
	isDev         bool
}

// NewHub creates an empty hub.
func NewHub(allowedOrigin string, isDev bool, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		active:        make(map[string]map[*subscriber]struct{}),
		logger:        logger,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

func (h *Hub) register(sessionID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.active[sessionID]; !ok {
		h.active[sessionID] = make(map[*subscriber]struct{})
	}
	h.active[sessionID][sub] = struct{}{}
	h.logger.Info("realtime subscriber registered", "session_id", sessionID, "user_id", sub.userID)
}

func (h *Hub) unregister(sessionID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.active[sessionID]
	if !ok {
		return
	}
	if _, exists := subs[sub]; exists {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.active, sessionID)
		}
		h.logger.Info("realtime subscriber unregistered", "session_id", sessionID, "user_id", sub.userID)
	}
}

// Subscribers returns how many sockets watch sessionID.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.active[sessionID])
}

// Publish sends msg to every subscriber of its session. A subscriber whose
// buffer is full loses its oldest frame.
func (h *Hub) Publish(msg Message) {
	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.active[msg.SessionID]))
	for sub := range h.active[msg.SessionID] {
		if msg.State == nil || msg.State.UserID == "" || msg.State.UserID == sub.userID {
			subs = append(subs, sub)
		}
	}
	h.mu.RUnlock()
	if len(subs) == 0 {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal realtime message", "session_id", msg.SessionID, "error", err)
		return
	}
	for _, sub := range subs {
		select {
		case sub.out <- data:
			continue
		default:
		}
		select {
		case <-sub.out:
		default:
		}
		select {
		case sub.out <- data:
		default:
			h.logger.Warn("realtime subscriber saturated", "session_id", msg.SessionID, "user_id", sub.userID)
		}
	}
}

// Observe publishes committed changes. Its signature matches
// session.CommitFunc.
func (h *Hub) Observe(prev, next *domain.AgentState) {
	switch {
	case next != nil:
		h.Publish(Message{Type: MessageState, SessionID: next.SessionID, State: next})
	case prev != nil:
		h.Publish(Message{Type: MessageCleared, SessionID: prev.SessionID})
	}
}

// ServeHTTP upgrades to a WebSocket and streams the caller's session.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if sessionID == "" {
		http.Error(w, `{"error":"session id is required"}`, http.StatusBadRequest)
		return
	}
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("failed to accept websocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			h.logger.Debug("failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	sub := &subscriber{userID: userID, out: make(chan []byte, subscriberBuffer)}
	h.register(sessionID, sub)
	defer h.unregister(sessionID, sub)

	// Clients only listen; CloseRead handles their close frames.
	ctx := ws.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-sub.out:
			if err := h.write(ctx, ws, data); err != nil {
				h.logger.Debug("realtime write failed", "session_id", sessionID, "error", err)
				return
			}
		}
	}
}

func (h *Hub) write(ctx context.Context, ws *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" || origin == h.allowedOrigin {
		return true
	}
	h.logger.Warn("websocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}
