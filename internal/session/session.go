// Package session implements the conversation session manager: the seeded,
// append-only message log and the escalation marker contract.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashureev/handoff-chat/internal/domain"
	"github.com/ashureev/handoff-chat/internal/provider"
)

// PrimingMode selects how the seed instructions are sent to the provider.
type PrimingMode string

const (
	// PrimingMerged folds the pseudo-user task instructions into a single
	// system message on the wire.
	PrimingMerged PrimingMode = "merged"
	// PrimingLegacy sends the stored log unchanged, including the injected
	// user-role instructions.
	PrimingLegacy PrimingMode = "legacy"
)

// ParsePrimingMode converts a configuration string into a PrimingMode.
func ParsePrimingMode(s string) (PrimingMode, error) {
	switch PrimingMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", PrimingMerged:
		return PrimingMerged, nil
	case PrimingLegacy:
		return PrimingLegacy, nil
	default:
		return "", fmt.Errorf("unknown priming mode %q", s)
	}
}

// Options configures a Manager.
type Options struct {
	Priming PrimingMode
	Logger  *slog.Logger
}

// Manager runs conversation operations against a completion provider.
// It holds no conversation state; callers own the Conversation values.
type Manager struct {
	provider provider.Provider
	priming  PrimingMode
	logger   *slog.Logger
}

// NewManager creates a session manager backed by p.
func NewManager(p provider.Provider, opts Options) *Manager {
	if opts.Priming == "" {
		opts.Priming = PrimingMerged
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Manager{
		provider: p,
		priming:  opts.Priming,
		logger:   opts.Logger,
	}
}

// Initialize returns the three-message seed: system instructions, injected
// task instructions, assistant greeting.
func Initialize() domain.Conversation {
	return domain.NewConversation(
		domain.Message{Role: domain.RoleSystem, Content: SystemInstructions},
		domain.Message{Role: domain.RoleUser, Content: TaskInstructions},
	).Append(domain.Message{Role: domain.RoleAssistant, Content: Greeting})
}

// Reset discards the current log and returns a fresh seed.
func Reset() domain.Conversation {
	return Initialize()
}

// AppendUserTurn appends a user message. An empty text is rejected and conv
// is returned unchanged.
func AppendUserTurn(conv domain.Conversation, text string) (domain.Conversation, error) {
	if text == "" {
		return conv, &InvalidInputError{Reason: "message must not be empty"}
	}
	return conv.Append(domain.Message{Role: domain.RoleUser, Content: text}), nil
}

// DetectEscalation reports whether the message starts with the exact
// "ESCALATE:" marker. Mentions of escalation elsewhere in the text are not
// flagged.
func DetectEscalation(m domain.Message) bool {
	return m.IsEscalation()
}

// Visible returns the messages a presentation layer renders: everything
// after the system and injected instruction messages.
func Visible(conv domain.Conversation) []domain.Message {
	msgs := conv.Messages()
	if len(msgs) <= 2 {
		return []domain.Message{}
	}
	return msgs[2:]
}

// WireMessages builds the provider payload for conv.
func WireMessages(conv domain.Conversation, mode PrimingMode) []domain.Message {
	msgs := conv.Messages()
	if mode == PrimingLegacy || len(msgs) < 2 {
		return msgs
	}
	if msgs[0].Role != domain.RoleSystem || msgs[1].Role != domain.RoleUser || conv.SeedLen() < 2 {
		return msgs
	}

	merged := domain.Message{
		Role:    domain.RoleSystem,
		Content: strings.TrimSpace(msgs[0].Content) + "\n\n" + strings.TrimSpace(msgs[1].Content),
	}
	return append([]domain.Message{merged}, msgs[2:]...)
}

// RequestCompletion sends the full log to the provider and returns its reply
// as an assistant message. The reply is not appended.
func (m *Manager) RequestCompletion(ctx context.Context, conv domain.Conversation, modelID string) (domain.Message, error) {
	if checker, ok := m.provider.(provider.CredentialChecker); ok {
		if missing := checker.MissingCredential(); missing != "" {
			return domain.Message{}, &MissingCredentialError{Variable: missing}
		}
	}

	content, err := m.provider.Complete(ctx, provider.Request{
		Model:    modelID,
		Messages: WireMessages(conv, m.priming),
	})
	if err != nil {
		return domain.Message{}, &ProviderError{Model: modelID, Err: err}
	}

	return domain.Message{Role: domain.RoleAssistant, Content: content}, nil
}

// TurnResult is the outcome of one successful user turn.
type TurnResult struct {
	Conversation domain.Conversation
	Reply        domain.Message
	// Escalated is the conversation's flag after the turn.
	Escalated bool
	// NewlyEscalated is true only for the turn that moved the conversation
	// from normal to flagged.
	NewlyEscalated bool
}

// Turn appends a user message, requests a completion and appends the reply.
// On error the returned result carries conv unchanged.
func (m *Manager) Turn(ctx context.Context, conv domain.Conversation, text, modelID string) (TurnResult, error) {
	next, err := AppendUserTurn(conv, text)
	if err != nil {
		return TurnResult{Conversation: conv, Escalated: conv.Escalated()}, err
	}

	reply, err := m.RequestCompletion(ctx, next, modelID)
	if err != nil {
		m.logger.Warn("completion request failed", "model", modelID, "error", err)
		return TurnResult{Conversation: conv, Escalated: conv.Escalated()}, err
	}

	next = next.Append(reply)
	flagged := DetectEscalation(reply)
	res := TurnResult{
		Conversation:   next,
		Reply:          reply,
		Escalated:      next.Escalated(),
		NewlyEscalated: flagged && !conv.Escalated(),
	}
	if flagged {
		m.logger.Info("assistant reply flagged for escalation",
			"model", modelID,
			"log_length", next.Len(),
			"newly_escalated", res.NewlyEscalated,
		)
	}
	return res, nil
}
