package api

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/handoff-chat/internal/domain"
	"github.com/ashureev/handoff-chat/internal/identity"
	"github.com/ashureev/handoff-chat/internal/store"
	"github.com/go-chi/chi/v5"
)

const defaultEscalationListLimit = 50

// EscalationHandler serves the operator queue of conversations flagged for
// human handoff.
type EscalationHandler struct {
	repo          store.Repository
	operatorToken string
	now           func() time.Time
}

// NewEscalationHandler creates the operator handler. An empty token leaves
// the queue open, which is only intended for local development.
func NewEscalationHandler(repo store.Repository, operatorToken string) *EscalationHandler {
	return &EscalationHandler{repo: repo, operatorToken: operatorToken, now: time.Now}
}

// RegisterRoutes registers operator routes.
func (h *EscalationHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/escalations", func(r chi.Router) {
		r.Use(h.requireOperator)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Post("/{id}/ack", h.Acknowledge)
	})
	r.Get("/api/me", h.GetMe)
}

func (h *EscalationHandler) requireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.operatorToken != "" {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(token), []byte(h.operatorToken)) != 1 {
				Error(w, http.StatusUnauthorized, "operator token required")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// GetMe returns the current anonymous user's information.
func (h *EscalationHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.repo.GetUser(r.Context(), userID)
	if err != nil || user == nil {
		Error(w, http.StatusUnauthorized, "user not found")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"user_id":    user.UserID,
		"username":   user.Username,
		"session_id": identity.SessionIDFromContext(r.Context()),
	})
}

// List returns ledger entries. Query: pending=true, user_id, limit.
func (h *EscalationHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.EscalationFilter{
		PendingOnly: q.Get("pending") == "true",
		UserID:      q.Get("user_id"),
		Limit:       defaultEscalationListLimit,
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	entries, err := h.repo.ListEscalations(r.Context(), filter)
	if err != nil {
		slog.Error("Failed to list escalations", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list escalations")
		return
	}
	if entries == nil {
		entries = []*domain.Escalation{}
	}
	JSON(w, http.StatusOK, map[string]interface{}{"escalations": entries})
}

// Get returns a single ledger entry including its transcript.
func (h *EscalationHandler) Get(w http.ResponseWriter, r *http.Request) {
	e, err := h.repo.GetEscalation(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		Error(w, http.StatusNotFound, "escalation not found")
		return
	}
	if err != nil {
		slog.Error("Failed to get escalation", "error", err)
		Error(w, http.StatusInternalServerError, "failed to get escalation")
		return
	}
	JSON(w, http.StatusOK, e)
}

// Acknowledge marks an escalation as picked up by a human operator.
func (h *EscalationHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.repo.AcknowledgeEscalation(r.Context(), id, h.now())
	switch {
	case errors.Is(err, store.ErrNotFound):
		Error(w, http.StatusNotFound, "escalation not found")
		return
	case errors.Is(err, store.ErrAlreadyAcknowledged):
		Error(w, http.StatusConflict, "escalation already acknowledged")
		return
	case err != nil:
		slog.Error("Failed to acknowledge escalation", "id", id, "error", err)
		Error(w, http.StatusInternalServerError, "failed to acknowledge escalation")
		return
	}

	slog.Info("Escalation acknowledged", "id", id)
	JSON(w, http.StatusOK, map[string]string{"id": id, "status": "acknowledged"})
}
