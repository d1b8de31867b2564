package domain

import "strings"

// Role tags the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// EscalationMarker is the literal reply prefix that flags a conversation for
// human handoff. Matching is exact and case-sensitive.
const EscalationMarker = "ESCALATE:"

// Message is a single role-tagged entry of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// IsEscalation reports whether the message content starts with EscalationMarker.
func (m Message) IsEscalation() bool {
	return strings.HasPrefix(m.Content, EscalationMarker)
}

// Conversation is an ordered, append-only message log.
//
// The zero value is an empty log. Conversation values are safe to copy:
// Append never writes into a backing array shared with another value.
type Conversation struct {
	messages []Message
	seedLen  int
}

// NewConversation builds a conversation whose first len(seed) messages are
// treated as the seed. Escalation state only considers messages after it.
func NewConversation(seed ...Message) Conversation {
	msgs := make([]Message, len(seed))
	copy(msgs, seed)
	return Conversation{messages: msgs, seedLen: len(seed)}
}

// Append returns a new conversation with m added at the end.
func (c Conversation) Append(m Message) Conversation {
	msgs := make([]Message, len(c.messages), len(c.messages)+1)
	copy(msgs, c.messages)
	return Conversation{messages: append(msgs, m), seedLen: c.seedLen}
}

// Len returns the number of messages in the log.
func (c Conversation) Len() int {
	return len(c.messages)
}

// Messages returns a copy of the log in insertion order.
func (c Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// At returns the message at index i.
func (c Conversation) At(i int) Message {
	return c.messages[i]
}

// SeedLen returns the number of seed messages.
func (c Conversation) SeedLen() int {
	return c.seedLen
}

// LastAssistant returns the most recent assistant message, if any.
func (c Conversation) LastAssistant() (Message, bool) {
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role == RoleAssistant {
			return c.messages[i], true
		}
	}
	return Message{}, false
}

// Escalated reports whether any assistant reply appended after the seed
// carries the escalation marker. Once true it stays true for this log.
func (c Conversation) Escalated() bool {
	for _, m := range c.messages[c.seedLen:] {
		if m.Role == RoleAssistant && m.IsEscalation() {
			return true
		}
	}
	return false
}
