package domain

import "testing"

func TestConversationAppendCopies(t *testing.T) {
	t.Parallel()

	base := NewConversation(Message{Role: RoleSystem, Content: "s"})
	a := base.Append(Message{Role: RoleUser, Content: "a"})
	b := base.Append(Message{Role: RoleUser, Content: "b"})

	if base.Len() != 1 {
		t.Fatalf("base mutated: len %d", base.Len())
	}
	if a.At(1).Content != "a" || b.At(1).Content != "b" {
		t.Fatalf("appends share a backing array: %q %q", a.At(1).Content, b.At(1).Content)
	}

	msgs := a.Messages()
	msgs[0].Content = "changed"
	if a.At(0).Content != "s" {
		t.Fatal("Messages must return a copy")
	}
}

func TestConversationEscalatedIgnoresSeed(t *testing.T) {
	t.Parallel()

	conv := NewConversation(
		Message{Role: RoleSystem, Content: "s"},
		Message{Role: RoleAssistant, Content: "ESCALATE: seeded"},
	)
	if conv.Escalated() {
		t.Fatal("seed messages must not flag the conversation")
	}

	conv = conv.Append(Message{Role: RoleUser, Content: "ESCALATE: typed by user"})
	if conv.Escalated() {
		t.Fatal("user messages must not flag the conversation")
	}

	conv = conv.Append(Message{Role: RoleAssistant, Content: "ESCALATE: needs a human"})
	if !conv.Escalated() {
		t.Fatal("expected flagged conversation")
	}
	last, ok := conv.LastAssistant()
	if !ok || !last.IsEscalation() {
		t.Fatal("expected last assistant message to carry the marker")
	}
}

func TestEscalationReason(t *testing.T) {
	t.Parallel()

	got := EscalationReason(Message{Role: RoleAssistant, Content: "ESCALATE:  user is frustrated "})
	if got != "user is frustrated" {
		t.Fatalf("unexpected reason %q", got)
	}
	if EscalationReason(Message{Content: "no marker"}) != "" {
		t.Fatal("expected empty reason without marker")
	}
}
