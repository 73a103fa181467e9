package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coder/websocket"

	"github.com/cfpd-planning/intake-assistant/internal/assistant"
	"github.com/cfpd-planning/intake-assistant/internal/domain"
	"github.com/cfpd-planning/intake-assistant/internal/identity"
)

// wsMessage represents WebSocket message structure, shared by both
// directions. Inbound types: "chat", "reset", "ping". Outbound types:
// "reply", "pong", "error".
type wsMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// WebSocketHandler serves the streaming chat endpoint. Each message is
// one full turn; the reply semantics are identical to POST /api/chat.
type WebSocketHandler struct {
	api *Handler
}

// NewWebSocketHandler creates a new WebSocket chat handler.
func NewWebSocketHandler(api *Handler) *WebSocketHandler {
	return &WebSocketHandler{api: api}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	slog.Info("WebSocket connection request", "user_id", userID, "session_id", sessionID, "ip", identity.IPFromRequest(r))

	if userID == "" {
		http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
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
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h.messageLoop(ctx, ws, userID, sessionID)
	slog.Info("WebSocket chat session ended", "user_id", userID, "session_id", sessionID)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.api.isDevelopment() {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.api.cfg.FrontendURL == "*" {
		return true
	}
	if origin == h.api.cfg.FrontendURL {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.api.cfg.FrontendURL)
	return false
}

func (h *WebSocketHandler) messageLoop(ctx context.Context, ws *websocket.Conn, userID, sessionID string) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "user_id", userID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			// Fallback: treat raw text frames as chat input.
			msg = wsMessage{Type: "chat", Content: string(data)}
		}

		switch msg.Type {
		case "chat":
			h.handleChatMessage(ctx, ws, userID, sessionID, msg.Content)
		case "reset":
			if err := h.api.repo.DeleteSession(ctx, userID, sessionID); err != nil {
				slog.Error("Failed to reset session over websocket", "error", err, "user_id", userID)
				h.writeError(ws, "failed to reset session")
				continue
			}
			h.writeJSON(ws, wsMessage{Type: "reply", Content: assistant.ResetReply})
		case "ping":
			h.writeJSON(ws, wsMessage{Type: "pong"})
		default:
			h.writeError(ws, "unknown message type")
		}
	}
}

func (h *WebSocketHandler) handleChatMessage(ctx context.Context, ws *websocket.Conn, userID, sessionID, content string) {
	if !h.api.rateLimiter.Allow(userID) {
		h.writeError(ws, "too many requests, please slow down")
		return
	}

	message := strings.TrimSpace(content)
	if message == "" {
		h.writeJSON(ws, wsMessage{Type: "reply", Content: assistant.EmptyMessageReply})
		return
	}

	sess, err := h.api.repo.GetSession(ctx, userID, sessionID)
	if err != nil {
		slog.Error("Failed to load session", "error", err, "user_id", userID, "session_id", sessionID)
		h.writeError(ws, "failed to load session")
		return
	}
	if sess == nil {
		sess = domain.NewSession(userID, sessionID)
	}

	reply, err := h.api.ctrl.HandleTurn(ctx, sess, message)
	if err != nil {
		slog.Error("Chat turn failed", "error", err, "user_id", userID, "session_id", sessionID)
		h.writeError(ws, "assistant is unavailable, please try again")
		return
	}

	if err := h.api.repo.SaveSession(ctx, sess); err != nil {
		slog.Error("Failed to save session", "error", err, "user_id", userID, "session_id", sessionID)
		h.writeError(ws, "failed to save session")
		return
	}

	h.writeJSON(ws, wsMessage{Type: "reply", Content: reply})
}

func (h *WebSocketHandler) writeError(ws *websocket.Conn, message string) {
	h.writeJSON(ws, wsMessage{Type: "error", Content: message})
}

func (h *WebSocketHandler) writeJSON(ws *websocket.Conn, v wsMessage) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Debug("Failed to marshal websocket message", "error", err)
		return
	}
	if err := ws.Write(context.Background(), websocket.MessageText, data); err != nil {
		slog.Debug("WebSocket write error", "error", err)
	}
}
