// Package provider defines the completion provider boundary and its adapters.
package provider

import (
	"context"
	"slices"

	"github.com/ashureev/handoff-chat/internal/domain"
)

// Models is the recognized model set offered by presentation layers. It is
// a convenience list; providers receive whatever identifier the caller picks.
var Models = []string{"gpt-4o", "gpt-4o-mini", "gpt-4-turbo", "gpt-4"}

// DefaultModel is the first entry of Models.
const DefaultModel = "gpt-4o"

// IsRecognizedModel reports whether id belongs to Models.
func IsRecognizedModel(id string) bool {
	return slices.Contains(Models, id)
}

// Request is one completion call: the ordered message log and a model ID.
type Request struct {
	Model    string
	Messages []domain.Message
}

// Provider produces one assistant reply for a message log.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CredentialChecker is implemented by providers that need an out-of-band
// credential. MissingCredential returns the name of the unset credential,
// or "" when one is configured.
type CredentialChecker interface {
	MissingCredential() string
}
