package domain

import (
	"strings"
	"time"
)

// Escalation is a ledger entry recording that a conversation was flagged for
// human handoff.
type Escalation struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	SessionID      string     `json:"session_id"`
	Model          string     `json:"model"`
	Reason         string     `json:"reason"`
	Transcript     []Message  `json:"transcript"`
	CreatedAt      time.Time  `json:"created_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
}

// Pending reports whether no operator has acknowledged the escalation yet.
func (e *Escalation) Pending() bool {
	return e.AcknowledgedAt == nil
}

// EscalationReason returns the model's reasoning that follows the marker.
// Returns the empty string for messages without the marker.
func EscalationReason(m Message) string {
	if !m.IsEscalation() {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(m.Content, EscalationMarker))
}
