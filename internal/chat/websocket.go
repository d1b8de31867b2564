package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/handoff-chat/internal/identity"
	"github.com/coder/websocket"
)

const wsWriteTimeout = 10 * time.Second

// FrameTranscript is sent once when a websocket connects.
const FrameTranscript = "transcript"

// WebSocketHandler serves /ws/chat. Each connection works on its tab
// session's registry entry for its lifetime.
type WebSocketHandler struct {
	chat          *Handler
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a websocket front end for h.
func NewWebSocketHandler(h *Handler, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{chat: h, allowedOrigin: allowedOrigin, isDev: isDev}
}

// ServeHTTP implements http.Handler for the WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	slog.Info("Chat websocket request", "user_id", userID, "session_id", sessionID, "ip", r.RemoteAddr)

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
	ws.SetReadLimit(h.chat.maxBodySize)

	ctx := r.Context()
	conv, model := h.chat.registry.Acquire(userID, sessionID).Snapshot()
	t := transcriptOf(conv, model)
	if err := writeFrame(ctx, ws, wsFrame{
		Type:      FrameTranscript,
		Messages:  t.Messages,
		Escalated: t.Escalated,
		Notice:    t.Notice,
		Model:     t.Model,
	}); err != nil {
		slog.Debug("Failed to send transcript", "error", err, "user_id", userID)
		return
	}

	h.readLoop(ctx, ws, userID, sessionID)
	slog.Info("Chat websocket closed", "user_id", userID, "session_id", sessionID)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

// readLoop handles frames one at a time, so a connection never has more
// than one turn outstanding.
func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, userID, sessionID string) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "user_id", userID)
			} else if ctx.Err() == nil {
				slog.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var in wsFrame
		if err := json.Unmarshal(data, &in); err != nil {
			if err := writeFrame(ctx, ws, wsFrame{Type: FrameError, Code: "invalid_frame", Error: "frame must be JSON"}); err != nil {
				return
			}
			continue
		}

		out := h.handleFrame(ctx, in, userID, sessionID)
		if err := writeFrame(ctx, ws, out); err != nil {
			slog.Debug("WebSocket write error", "error", err, "user_id", userID)
			return
		}
	}
}

func (h *WebSocketHandler) handleFrame(ctx context.Context, in wsFrame, userID, sessionID string) wsFrame {
	switch in.Type {
	case FramePing:
		return wsFrame{Type: FramePong}

	case FrameReset:
		entry := h.chat.registry.Acquire(userID, sessionID)
		conv, err := entry.Reset()
		if err != nil {
			return errorFrame(err)
		}
		_, model := entry.Snapshot()
		h.chat.log.Log(ConversationLogEvent{
			UserID:    userID,
			SessionID: sessionID,
			Channel:   "chat_ws",
			Direction: "internal",
			EventType: "chat_reset",
		})
		t := transcriptOf(conv, model)
		return wsFrame{Type: FrameReset, Messages: t.Messages, Model: model}

	case FrameMessage:
		if !h.chat.rateLimiter.Allow(userID) {
			return wsFrame{Type: FrameError, Code: "rate_limited", Error: "rate limit exceeded"}
		}
		req := ChatRequest{Message: in.Content, Model: in.Model}
		if err := h.chat.validator.Validate(&req); err != nil {
			return wsFrame{Type: FrameError, Code: "invalid_input", Error: err.Error()}
		}
		resp, err := h.chat.runTurn(ctx, turnInput{
			UserID:    userID,
			SessionID: sessionID,
			Text:      req.Message,
			Model:     req.Model,
			Channel:   "chat_ws",
		})
		if err != nil {
			return errorFrame(err)
		}
		reply := resp.Reply
		return wsFrame{
			Type:           FrameReply,
			Reply:          &reply,
			Model:          resp.Model,
			Escalated:      resp.Escalated,
			NewlyEscalated: resp.NewlyEscalated,
			Notice:         resp.Notice,
		}

	default:
		return wsFrame{Type: FrameError, Code: "unknown_frame", Error: "unknown frame type " + in.Type}
	}
}

func errorFrame(err error) wsFrame {
	_, code, message := turnErrorStatus(err)
	return wsFrame{Type: FrameError, Code: code, Error: message}
}

func writeFrame(ctx context.Context, ws *websocket.Conn, f wsFrame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}
