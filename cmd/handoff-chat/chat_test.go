package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/ashureev/handoff-chat/internal/provider"
	"github.com/ashureev/handoff-chat/internal/session"
)

func runScript(t *testing.T, p provider.Provider, input string) string {
	t.Helper()
	var out bytes.Buffer
	mgr := session.NewManager(p, session.Options{})
	if err := runLoop(context.Background(), mgr, "gpt-4o", strings.NewReader(input), newRenderer(&out, true)); err != nil {
		t.Fatalf("runLoop failed: %v", err)
	}
	return out.String()
}

func TestRunLoopShowsGreetingAndReplies(t *testing.T) {
	t.Parallel()

	out := runScript(t, provider.NewScripted("Your order ships tomorrow."), "where is my order?\n/quit\n")
	if !strings.Contains(out, "Assistant: "+session.Greeting) {
		t.Fatalf("expected greeting, got:\n%s", out)
	}
	if !strings.Contains(out, "Assistant: Your order ships tomorrow.") {
		t.Fatalf("expected reply, got:\n%s", out)
	}
	if strings.Contains(out, session.EscalationNotice) {
		t.Fatalf("did not expect escalation warning, got:\n%s", out)
	}
}

func TestRunLoopWarnsUntilReset(t *testing.T) {
	t.Parallel()

	p := provider.NewScripted("ESCALATE: wants a person", "Sure.", "Hello again.")
	out := runScript(t, p, "let me talk to someone\nok\n/reset\nhi\n")

	if n := strings.Count(out, session.EscalationNotice); n != 2 {
		t.Fatalf("expected warning after both flagged turns, got %d:\n%s", n, out)
	}
	after := out[strings.Index(out, "Conversation reset."):]
	if strings.Contains(after, session.EscalationNotice) {
		t.Fatalf("warning must clear after reset:\n%s", after)
	}
}

func TestRunLoopMissingCredential(t *testing.T) {
	t.Parallel()

	p := provider.NewOpenAI(provider.OpenAIConfig{}, nil)
	out := runScript(t, p, "hello\n")
	if !strings.Contains(out, session.MissingCredentialNotice) {
		t.Fatalf("expected missing credential notice, got:\n%s", out)
	}
}

func TestRunLoopIgnoresEmptyLines(t *testing.T) {
	t.Parallel()

	p := provider.NewScripted()
	runScript(t, p, "\n\n")
	if n := len(p.Calls()); n != 0 {
		t.Fatalf("empty lines must not reach the provider, got %d calls", n)
	}
}
