package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ashureev/handoff-chat/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

func newOpenAITestServer(t *testing.T, handler http.HandlerFunc) *OpenAI {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAI(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1"}, nil)
}

func TestOpenAICompleteSendsLogAndModel(t *testing.T) {
	t.Parallel()

	var got openai.ChatCompletionRequest
	p := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected Authorization header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "ESCALATE: user wants a human"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	})

	reply, err := p.Complete(context.Background(), Request{
		Model: "gpt-4o-mini",
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: "sys"},
			{Role: domain.RoleAssistant, Content: "hello"},
			{Role: domain.RoleUser, Content: "I want a human"},
		},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if reply != "ESCALATE: user wants a human" {
		t.Fatalf("unexpected reply %q", reply)
	}
	if got.Model != "gpt-4o-mini" {
		t.Fatalf("expected model gpt-4o-mini, got %q", got.Model)
	}
	if len(got.Messages) != 3 {
		t.Fatalf("expected 3 messages on the wire, got %d", len(got.Messages))
	}
	wantRoles := []string{"system", "assistant", "user"}
	for i, role := range wantRoles {
		if got.Messages[i].Role != role {
			t.Errorf("message %d: expected role %q, got %q", i, role, got.Messages[i].Role)
		}
	}
}

func TestOpenAICompleteSurfacesAPIError(t *testing.T) {
	t.Parallel()

	p := newOpenAITestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "Incorrect API key provided", "type": "invalid_request_error", "code": "invalid_api_key"}}`))
	})

	_, err := p.Complete(context.Background(), Request{Model: "gpt-4o"})
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected wrapped APIError, got %T: %v", err, err)
	}
	if apiErr.HTTPStatusCode != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", apiErr.HTTPStatusCode)
	}
}

func TestOpenAICompleteNoChoices(t *testing.T) {
	t.Parallel()

	p := newOpenAITestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "x", "object": "chat.completion", "model": "gpt-4", "choices": []}`))
	})

	_, err := p.Complete(context.Background(), Request{Model: "gpt-4"})
	if !errors.Is(err, errNoChoices) {
		t.Fatalf("expected errNoChoices, got %v", err)
	}
}

func TestOpenAIMissingCredential(t *testing.T) {
	t.Parallel()

	if got := NewOpenAI(OpenAIConfig{}, nil).MissingCredential(); got != APIKeyEnvVar {
		t.Fatalf("expected %q, got %q", APIKeyEnvVar, got)
	}
	if got := NewOpenAI(OpenAIConfig{APIKey: "k"}, nil).MissingCredential(); got != "" {
		t.Fatalf("expected no missing credential, got %q", got)
	}
}
