package provider

import (
	"context"
	"strings"
	"sync"

	"github.com/ashureev/handoff-chat/internal/domain"
)

// humanRequestPhrases trigger the scripted escalation reply.
var humanRequestPhrases = []string{"human", "real person", "representative", "agent"}

// Scripted is an offline provider that answers deterministically. Queued
// replies are returned first, in order; afterwards it escalates when the
// last user message asks for a person and echoes otherwise.
type Scripted struct {
	mu      sync.Mutex
	replies []string
	calls   []Request
}

// NewScripted creates a scripted provider with optional queued replies.
func NewScripted(replies ...string) *Scripted {
	return &Scripted{replies: replies}
}

// Complete implements Provider.
func (s *Scripted) Complete(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)

	if len(s.replies) > 0 {
		reply := s.replies[0]
		s.replies = s.replies[1:]
		return reply, nil
	}

	last := lastUserContent(req.Messages)
	lower := strings.ToLower(last)
	for _, phrase := range humanRequestPhrases {
		if strings.Contains(lower, phrase) {
			return domain.EscalationMarker + " user explicitly requested human agent", nil
		}
	}
	return "Thanks for reaching out. You said: " + last, nil
}

// Calls returns the requests received so far.
func (s *Scripted) Calls() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.calls))
	copy(out, s.calls)
	return out
}

func lastUserContent(msgs []domain.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == domain.RoleUser {
			return msgs[i].Content
		}
	}
	return ""
}
