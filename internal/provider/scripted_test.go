package provider

import (
	"context"
	"strings"
	"testing"

	"github.com/ashureev/handoff-chat/internal/domain"
)

func TestScriptedQueuedRepliesFirst(t *testing.T) {
	t.Parallel()

	p := NewScripted("first", "second")
	ctx := context.Background()
	req := Request{Model: "gpt-4", Messages: []domain.Message{{Role: domain.RoleUser, Content: "hi"}}}

	for _, want := range []string{"first", "second"} {
		got, err := p.Complete(ctx, req)
		if err != nil {
			t.Fatalf("Complete failed: %v", err)
		}
		if got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	}
	if n := len(p.Calls()); n != 2 {
		t.Fatalf("expected 2 recorded calls, got %d", n)
	}
}

func TestScriptedEscalatesOnHumanRequest(t *testing.T) {
	t.Parallel()

	p := NewScripted()
	got, err := p.Complete(context.Background(), Request{Messages: []domain.Message{
		{Role: domain.RoleUser, Content: "I want to speak to a human"},
	}})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if !strings.HasPrefix(got, domain.EscalationMarker) {
		t.Fatalf("expected escalation reply, got %q", got)
	}

	got, err = p.Complete(context.Background(), Request{Messages: []domain.Message{
		{Role: domain.RoleUser, Content: "Where is my order?"},
	}})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if strings.HasPrefix(got, domain.EscalationMarker) {
		t.Fatalf("did not expect escalation reply, got %q", got)
	}
}

func TestScriptedHonoursCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewScripted("x").Complete(ctx, Request{}); err == nil {
		t.Fatal("expected context error")
	}
}

func TestIsRecognizedModel(t *testing.T) {
	t.Parallel()

	for _, m := range Models {
		if !IsRecognizedModel(m) {
			t.Errorf("expected %q to be recognized", m)
		}
	}
	if IsRecognizedModel("gpt-3.5-turbo") {
		t.Error("did not expect gpt-3.5-turbo to be recognized")
	}
}
