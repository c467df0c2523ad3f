package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/tekkistudio/tekki-chat/internal/errors"
)

// ValidationResult collects input errors found before a write.
type ValidationResult struct {
	errors []error
}

// Validate returns a new ValidationResult for fluent validation.
func Validate() *ValidationResult {
	return &ValidationResult{}
}

// RequireUUID fails when id is the zero UUID.
func (v *ValidationResult) RequireUUID(id uuid.UUID, field string) *ValidationResult {
	if id == uuid.Nil {
		v.errors = append(v.errors, missingField(field))
	}
	return v
}

// RequireString fails when s is blank.
func (v *ValidationResult) RequireString(s string, field string) *ValidationResult {
	if strings.TrimSpace(s) == "" {
		v.errors = append(v.errors, missingField(field))
	}
	return v
}

// RequireMaxLength fails when s is longer than maxLen bytes.
func (v *ValidationResult) RequireMaxLength(s string, maxLen int, field string) *ValidationResult {
	if len(s) > maxLen {
		v.errors = append(v.errors, apperrors.ValidationFailed(fmt.Sprintf("%s must not exceed %d characters", field, maxLen)))
	}
	return v
}

// RequireValidEmail performs a basic shape check on email.
func (v *ValidationResult) RequireValidEmail(email, field string) *ValidationResult {
	email = strings.TrimSpace(email)
	if email == "" {
		v.errors = append(v.errors, missingField(field))
		return v
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" || !strings.Contains(parts[1], ".") {
		v.errors = append(v.errors, apperrors.ValidationFailed(field+" must be a valid email address"))
	}
	return v
}

// RequireStage fails when s is not a funnel stage.
func (v *ValidationResult) RequireStage(valid bool, field string) *ValidationResult {
	if !valid {
		v.errors = append(v.errors, apperrors.ValidationFailed(field+" must be a known funnel stage"))
	}
	return v
}

// HasErrors returns true if there are any validation errors.
func (v *ValidationResult) HasErrors() bool {
	return len(v.errors) > 0
}

// Error returns nil, the single error, or one validation error joining all messages.
func (v *ValidationResult) Error() error {
	switch len(v.errors) {
	case 0:
		return nil
	case 1:
		return v.errors[0]
	}
	messages := make([]string, len(v.errors))
	for i, err := range v.errors {
		var ae *apperrors.Error
		if errors.As(err, &ae) {
			messages[i] = ae.Message
		} else {
			messages[i] = err.Error()
		}
	}
	return apperrors.ValidationFailed(strings.Join(messages, "; "))
}

func missingField(field string) error {
	return apperrors.ValidationFailed(field + " is required")
}
