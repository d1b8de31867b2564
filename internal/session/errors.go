package session

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput is matched by every InvalidInputError.
	ErrEmptyInput = errors.New("user turn is empty")
	// ErrMissingCredential is matched by every MissingCredentialError.
	ErrMissingCredential = errors.New("completion provider credential is not configured")
)

// InvalidInputError rejects a user turn before any provider call.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return "invalid input: " + e.Reason
}

// Is makes errors.Is(err, ErrEmptyInput) true.
func (e *InvalidInputError) Is(target error) bool {
	return target == ErrEmptyInput
}

// MissingCredentialError halts a turn because no API key is available.
type MissingCredentialError struct {
	Variable string
}

func (e *MissingCredentialError) Error() string {
	if e.Variable == "" {
		return ErrMissingCredential.Error()
	}
	return fmt.Sprintf("%s (set %s)", ErrMissingCredential, e.Variable)
}

// Is makes errors.Is(err, ErrMissingCredential) true.
func (e *MissingCredentialError) Is(target error) bool {
	return target == ErrMissingCredential
}

// ProviderError wraps any completion provider failure verbatim.
type ProviderError struct {
	Model string
	Err   error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("completion provider failed (model %q): %v", e.Model, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
