package chat

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var modelIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:/-]*$`)

// requestValidator validates chat payloads using go-playground/validator.
type requestValidator struct {
	validate      *validator.Validate
	maxMessageLen int
}

func newRequestValidator(maxMessageLen int) *requestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("model_id", validateModelID)
	return &requestValidator{validate: v, maxMessageLen: maxMessageLen}
}

// Validate checks a ChatRequest. An empty message is not rejected here;
// the session layer reports it as invalid input.
func (v *requestValidator) Validate(req *ChatRequest) error {
	if err := v.validate.Struct(req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			e := validationErrors[0]
			return fmt.Errorf("field %s failed on '%s'", e.Field(), e.Tag())
		}
		return err
	}
	if v.maxMessageLen > 0 {
		if err := v.validate.Var(req.Message, fmt.Sprintf("max=%d", v.maxMessageLen)); err != nil {
			return fmt.Errorf("message exceeds %d characters", v.maxMessageLen)
		}
	}
	return nil
}

// validateModelID accepts identifiers such as "gpt-4o" or
// "openai/gpt-4o-mini" and rejects whitespace and control characters.
func validateModelID(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return modelIDPattern.MatchString(value)
}
