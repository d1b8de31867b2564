package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/handoff-chat/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

// APIKeyEnvVar names the environment variable holding the OpenAI key.
const APIKeyEnvVar = "OPENAI_API_KEY"

var errNoChoices = errors.New("openai: response contained no choices")

// OpenAIConfig holds configuration for the OpenAI provider.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	// Timeout bounds a single completion call. Zero disables it.
	Timeout time.Duration
}

// OpenAI implements Provider with the OpenAI chat completions API.
type OpenAI struct {
	client  *openai.Client
	apiKey  string
	timeout time.Duration
	logger  *slog.Logger
}

var (
	_ Provider          = (*OpenAI)(nil)
	_ CredentialChecker = (*OpenAI)(nil)
)

// NewOpenAI creates an OpenAI provider. A missing key is not an error here;
// it is reported per turn through MissingCredential.
func NewOpenAI(cfg OpenAIConfig, logger *slog.Logger) *OpenAI {
	if logger == nil {
		logger = slog.Default()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAI{
		client:  openai.NewClientWithConfig(clientCfg),
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

// MissingCredential implements CredentialChecker.
func (p *OpenAI) MissingCredential() string {
	if p.apiKey == "" {
		return APIKeyEnvVar
	}
	return ""
}

// Complete sends the message log to the chat completions endpoint.
func (p *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openAIRole(m.Role),
			Content: m.Content,
		})
	}

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: msgs,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			p.logger.Warn("OpenAI API error",
				"model", req.Model,
				"status", apiErr.HTTPStatusCode,
				"error", apiErr.Message,
			)
		}
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errNoChoices
	}

	p.logger.Debug("OpenAI completion received",
		"model", resp.Model,
		"duration", time.Since(start),
		"total_tokens", resp.Usage.TotalTokens,
	)
	return resp.Choices[0].Message.Content, nil
}

func openAIRole(r domain.Role) string {
	switch r {
	case domain.RoleSystem:
		return openai.ChatMessageRoleSystem
	case domain.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}
