// Package chat exposes conversation sessions over HTTP and websocket.
package chat

import (
	"github.com/ashureev/handoff-chat/internal/domain"
)

// ChatRequest is the body of POST /api/chat/messages.
type ChatRequest struct {
	Message string `json:"message"`
	Model   string `json:"model" validate:"omitempty,max=64,model_id"`
}

// ChatResponse is returned after a successful turn.
type ChatResponse struct {
	Reply          domain.Message `json:"reply"`
	Escalated      bool           `json:"escalated"`
	NewlyEscalated bool           `json:"newly_escalated"`
	EscalationID   string         `json:"escalation_id,omitempty"`
	Notice         string         `json:"notice,omitempty"`
	Model          string         `json:"model"`
}

// TranscriptResponse is returned by GET /api/chat and after a reset.
type TranscriptResponse struct {
	Messages  []domain.Message `json:"messages"`
	Escalated bool             `json:"escalated"`
	Notice    string           `json:"notice,omitempty"`
	Model     string           `json:"model"`
}

// ModelsResponse lists the models offered by the UI.
type ModelsResponse struct {
	Models  []string `json:"models"`
	Default string   `json:"default"`
}

// Frame types exchanged on /ws/chat.
const (
	FrameMessage = "message"
	FrameReset   = "reset"
	FramePing    = "ping"
	FrameReply   = "reply"
	FrameError   = "error"
	FramePong    = "pong"
)

// wsFrame is a single websocket message in either direction.
type wsFrame struct {
	Type           string           `json:"type"`
	Content        string           `json:"content,omitempty"`
	Model          string           `json:"model,omitempty"`
	Reply          *domain.Message  `json:"reply,omitempty"`
	Messages       []domain.Message `json:"messages,omitempty"`
	Escalated      bool             `json:"escalated,omitempty"`
	NewlyEscalated bool             `json:"newly_escalated,omitempty"`
	Notice         string           `json:"notice,omitempty"`
	Code           string           `json:"code,omitempty"`
	Error          string           `json:"error,omitempty"`
}
