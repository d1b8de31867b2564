package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/handoff-chat/internal/api"
	"github.com/ashureev/handoff-chat/internal/config"
	"github.com/ashureev/handoff-chat/internal/domain"
	"github.com/ashureev/handoff-chat/internal/identity"
	"github.com/ashureev/handoff-chat/internal/provider"
	"github.com/ashureev/handoff-chat/internal/session"
	"github.com/ashureev/handoff-chat/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (1MB).
const defaultMaxRequestBodySize = 1 << 20

// Handler serves the chat API for browser tabs and websocket clients.
type Handler struct {
	sessions     *session.Manager
	registry     *Registry
	repo         store.Repository
	rateLimiter  *RateLimiter
	validator    *requestValidator
	log          ConversationLogger
	maxBodySize  int64
	defaultModel string
	now          func() time.Time
}

// NewHandler creates a chat handler. repo may be nil, in which case
// escalations are logged but not written to the ledger.
func NewHandler(sessions *session.Manager, registry *Registry, repo store.Repository, conversationLogger ConversationLogger, cfg *config.Config) *Handler {
	if conversationLogger == nil {
		conversationLogger = noopConversationLogger{}
	}

	rateLimitRequests := 20
	rateLimitWindow := time.Minute
	maxBodySize := int64(defaultMaxRequestBodySize)
	maxMessageLen := 4000
	defaultModel := provider.DefaultModel

	if cfg != nil {
		rateLimitRequests = cfg.RateLimit.RequestsPerWindow
		rateLimitWindow = cfg.RateLimit.WindowDuration
		maxBodySize = cfg.Chat.MaxRequestBodySize
		maxMessageLen = cfg.Chat.MaxMessageLength
		if cfg.OpenAI.DefaultModel != "" {
			defaultModel = cfg.OpenAI.DefaultModel
		}
	}

	return &Handler{
		sessions:     sessions,
		registry:     registry,
		repo:         repo,
		rateLimiter:  NewRateLimiter(rateLimitRequests, rateLimitWindow),
		validator:    newRequestValidator(maxMessageLen),
		log:          conversationLogger,
		maxBodySize:  maxBodySize,
		defaultModel: defaultModel,
		now:          time.Now,
	}
}

// RateLimiter exposes the handler's limiter so callers can start eviction.
func (h *Handler) RateLimiter() *RateLimiter {
	return h.rateLimiter
}

// RegisterRoutes registers chat routes (requires identity middleware).
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/chat", func(r chi.Router) {
		r.Get("/", h.HandleTranscript)
		r.Post("/messages", h.HandleMessage)
		r.Post("/reset", h.HandleReset)
	})
	r.Get("/api/models", h.HandleModels)
}

// HandleTranscript handles GET /api/chat.
func (h *Handler) HandleTranscript(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	conv, model := h.registry.Acquire(userID, sessionID).Snapshot()
	api.JSON(w, http.StatusOK, transcriptOf(conv, model))
}

// HandleMessage handles POST /api/chat/messages.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	// Rate-limit by userID only so clients cannot bypass throttling by
	// rotating session IDs.
	if !h.rateLimiter.Allow(userID) {
		api.ErrorWithCode(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			api.ErrorWithCode(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
			return
		}
		api.ErrorWithCode(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		api.ErrorWithCode(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	resp, err := h.runTurn(r.Context(), turnInput{
		UserID:    userID,
		SessionID: sessionID,
		Text:      req.Message,
		Model:     req.Model,
		Channel:   "chat_http",
		RequestID: chiMiddleware.GetReqID(r.Context()),
	})
	if err != nil {
		writeTurnError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, resp)
}

// HandleReset handles POST /api/chat/reset.
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	entry := h.registry.Acquire(userID, sessionID)
	conv, err := entry.Reset()
	if err != nil {
		writeTurnError(w, err)
		return
	}
	_, model := entry.Snapshot()

	slog.Info("Conversation reset", "user_id", userID, "session_id", sessionID)
	h.log.Log(ConversationLogEvent{
		UserID:    userID,
		SessionID: sessionID,
		Channel:   "chat_http",
		Direction: "internal",
		EventType: "chat_reset",
	})
	api.JSON(w, http.StatusOK, transcriptOf(conv, model))
}

// HandleModels handles GET /api/models.
func (h *Handler) HandleModels(w http.ResponseWriter, _ *http.Request) {
	api.JSON(w, http.StatusOK, ModelsResponse{Models: provider.Models, Default: h.defaultModel})
}

type turnInput struct {
	UserID    string
	SessionID string
	Text      string
	Model     string
	Channel   string
	RequestID string
}

// runTurn executes one user turn against the caller's registry entry. The
// entry is busy for the duration of the provider call.
func (h *Handler) runTurn(ctx context.Context, in turnInput) (ChatResponse, error) {
	entry := h.registry.Acquire(in.UserID, in.SessionID)
	conv, err := entry.Begin()
	if err != nil {
		return ChatResponse{}, err
	}

	model := in.Model
	if model == "" {
		_, model = entry.Snapshot()
	}
	if model == "" {
		model = h.defaultModel
	}

	if in.Text != "" {
		h.log.Log(ConversationLogEvent{
			UserID:     in.UserID,
			SessionID:  in.SessionID,
			Channel:    in.Channel,
			Direction:  "outbound",
			EventType:  "chat_user_message",
			Model:      model,
			ContentRaw: in.Text,
			Meta:       map[string]any{"request_id": in.RequestID},
		})
	}

	start := h.now()
	res, err := h.sessions.Turn(ctx, conv, in.Text, model)
	if err != nil {
		entry.Finish(domain.Conversation{}, "")
		h.log.Log(ConversationLogEvent{
			UserID:    in.UserID,
			SessionID: in.SessionID,
			Channel:   in.Channel,
			Direction: "internal",
			EventType: "chat_turn_error",
			Model:     model,
			Meta: map[string]any{
				"request_id": in.RequestID,
				"error":      err.Error(),
			},
		})
		return ChatResponse{}, err
	}
	entry.Finish(res.Conversation, model)

	slog.Info("Chat turn completed",
		"user_id", in.UserID,
		"session_id", in.SessionID,
		"model", model,
		"log_length", res.Conversation.Len(),
		"escalated", res.Escalated,
		"duration", h.now().Sub(start),
	)
	h.log.Log(ConversationLogEvent{
		UserID:     in.UserID,
		SessionID:  in.SessionID,
		Channel:    in.Channel,
		Direction:  "inbound",
		EventType:  "chat_assistant_message",
		Model:      model,
		ContentRaw: res.Reply.Content,
		Meta: map[string]any{
			"request_id": in.RequestID,
			"escalated":  res.Escalated,
		},
	})

	resp := ChatResponse{
		Reply:          res.Reply,
		Escalated:      res.Escalated,
		NewlyEscalated: res.NewlyEscalated,
		Model:          model,
	}
	if res.Escalated {
		resp.Notice = session.EscalationNotice
	}
	if res.NewlyEscalated {
		resp.EscalationID = h.recordEscalation(ctx, in, model, res)
	}
	return resp, nil
}

// recordEscalation writes a ledger entry for a newly flagged conversation.
// A ledger failure does not fail the turn.
func (h *Handler) recordEscalation(ctx context.Context, in turnInput, model string, res session.TurnResult) string {
	if h.repo == nil {
		return ""
	}
	e := &domain.Escalation{
		UserID:     in.UserID,
		SessionID:  in.SessionID,
		Model:      model,
		Reason:     domain.EscalationReason(res.Reply),
		Transcript: session.Visible(res.Conversation),
		CreatedAt:  h.now(),
	}
	// The ledger write must not be abandoned because the client went away.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := h.repo.CreateEscalation(ctx, e); err != nil {
		slog.Error("Failed to record escalation", "error", err, "user_id", in.UserID, "session_id", in.SessionID)
		return ""
	}
	slog.Info("Escalation recorded", "id", e.ID, "user_id", in.UserID, "session_id", in.SessionID)
	h.log.Log(ConversationLogEvent{
		UserID:    in.UserID,
		SessionID: in.SessionID,
		Channel:   in.Channel,
		Direction: "internal",
		EventType: "chat_escalated",
		Model:     model,
		Content:   e.Reason,
		Meta:      map[string]any{"escalation_id": e.ID},
	})
	return e.ID
}

func requireIdentity(w http.ResponseWriter, r *http.Request) (userID, sessionID string, ok bool) {
	userID = identity.UserIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return "", "", false
	}
	return userID, identity.SessionIDFromContext(r.Context()), true
}

func transcriptOf(conv domain.Conversation, model string) TranscriptResponse {
	resp := TranscriptResponse{
		Messages:  session.Visible(conv),
		Escalated: conv.Escalated(),
		Model:     model,
	}
	if resp.Escalated {
		resp.Notice = session.EscalationNotice
	}
	return resp
}

// turnErrorStatus maps a turn error to an HTTP status, a machine code and
// the message shown to the user.
func turnErrorStatus(err error) (status int, code, message string) {
	var (
		invalid *session.InvalidInputError
		missing *session.MissingCredentialError
		failed  *session.ProviderError
	)
	switch {
	case errors.Is(err, ErrTurnInProgress):
		return http.StatusConflict, "turn_in_progress", err.Error()
	case errors.As(err, &invalid):
		return http.StatusBadRequest, "invalid_input", invalid.Error()
	case errors.As(err, &missing):
		return http.StatusServiceUnavailable, "missing_credential", session.MissingCredentialNotice
	case errors.As(err, &failed):
		return http.StatusBadGateway, "provider_error", failed.Error()
	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}

func writeTurnError(w http.ResponseWriter, err error) {
	status, code, message := turnErrorStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Warn("Chat turn failed", "status", status, "error", err)
	}
	api.ErrorWithCode(w, status, code, message)
}
