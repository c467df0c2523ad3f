// Package validation checks chat inputs and acquisition leads at the API
// boundary.
package validation

import (
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ValidationError represents a validation failure with field context.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// FieldErrors returns errors for a specific field.
func (e ValidationErrors) FieldErrors(field string) ValidationErrors {
	var result ValidationErrors
	for _, err := range e {
		if err.Field == field {
			result = append(result, err)
		}
	}
	return result
}

// Error codes for validation failures.
const (
	CodeRequired      = "required"
	CodeInvalidFormat = "invalid_format"
	CodeTooLong       = "too_long"
	CodeInvalidValue  = "invalid_value"
	CodeMalicious     = "malicious_content"
)

// Validator accumulates field errors.
type Validator struct {
	errors ValidationErrors
}

// New creates a new Validator.
func New() *Validator {
	return &Validator{}
}

// Errors returns all accumulated validation errors.
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

// IsValid returns true if no validation errors occurred.
func (v *Validator) IsValid() bool {
	return len(v.errors) == 0
}

// AddError adds a validation error.
func (v *Validator) AddError(field, message, code string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Message: message,
		Code:    code,
	})
}

// Required validates that a string field is not blank.
func (v *Validator) Required(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "is required", CodeRequired)
		return false
	}
	return true
}

// MaxLength validates the rune count does not exceed maxLen.
func (v *Validator) MaxLength(field, value string, maxLen int) bool {
	if utf8.RuneCountInString(value) > maxLen {
		v.AddError(field, fmt.Sprintf("must be at most %d characters", maxLen), CodeTooLong)
		return false
	}
	return true
}

var phoneRegex = regexp.MustCompile(`^\+?[1-9]\d{6,14}$`)

// PhoneNumber validates a phone number, tolerating spaces, dashes, dots and
// parentheses. Empty values pass; use Required separately.
func (v *Validator) PhoneNumber(field, value string) bool {
	if value == "" {
		return true
	}
	cleaned := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "").Replace(value)
	if !phoneRegex.MatchString(cleaned) {
		v.AddError(field, "must be a valid phone number", CodeInvalidFormat)
		return false
	}
	return true
}

// Email validates a bare email address. Empty values pass.
func (v *Validator) Email(field, value string) bool {
	if value == "" {
		return true
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		v.AddError(field, "must be a valid email address", CodeInvalidFormat)
		return false
	}
	return true
}

var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// UUID validates a UUID. Empty values pass.
func (v *Validator) UUID(field, value string) bool {
	if value == "" {
		return true
	}
	if !uuidRegex.MatchString(value) {
		v.AddError(field, "must be a valid UUID", CodeInvalidFormat)
		return false
	}
	return true
}

// Path validates a site-relative URL: it must start with a single "/".
// Empty values pass.
func (v *Validator) Path(field, value string) bool {
	if value == "" {
		return true
	}
	if !strings.HasPrefix(value, "/") || strings.HasPrefix(value, "//") {
		v.AddError(field, "must start with /", CodeInvalidFormat)
		return false
	}
	return true
}

// OneOf validates that value is one of the allowed values. Empty values pass.
func (v *Validator) OneOf(field, value string, allowed []string) bool {
	if value == "" {
		return true
	}
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	v.AddError(field, fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")), CodeInvalidValue)
	return false
}

// NoScriptTags rejects values containing script tags or javascript: URLs.
func (v *Validator) NoScriptTags(field, value string) bool {
	lower := strings.ToLower(value)
	if strings.Contains(lower, "<script") || strings.Contains(lower, "javascript:") {
		v.AddError(field, "contains potentially malicious content", CodeMalicious)
		return false
	}
	return true
}

// ChatInputValidator validates visitor input to a chat session.
type ChatInputValidator struct {
	*Validator
	maxLength int
}

// NewChatInputValidator creates a validator limiting messages to maxLength
// characters.
func NewChatInputValidator(maxLength int) *ChatInputValidator {
	if maxLength <= 0 {
		maxLength = 2000
	}
	return &ChatInputValidator{Validator: New(), maxLength: maxLength}
}

// ValidateContent validates a typed message.
func (v *ChatInputValidator) ValidateContent(content string) {
	if v.Required("content", content) {
		v.MaxLength("content", content, v.maxLength)
	}
}

// ValidatePage validates the page context sent with a message.
func (v *ChatInputValidator) ValidatePage(page, url string) {
	v.MaxLength("context.page", page, 200)
	v.MaxLength("context.url", url, 2048)
	v.Path("context.url", url)
}

// ValidateAction validates a chip click. label is the legacy label-only
// form and may stand in for action.
func (v *ChatInputValidator) ValidateAction(action, label string, known []string) {
	if action == "" && strings.TrimSpace(label) == "" {
		v.AddError("action", "action or label is required", CodeRequired)
		return
	}
	v.OneOf("action", action, known)
	v.MaxLength("label", label, v.maxLength)
}

// LeadValidator validates an acquisition request.
type LeadValidator struct {
	*Validator
}

// NewLeadValidator creates a LeadValidator.
func NewLeadValidator() *LeadValidator {
	return &LeadValidator{Validator: New()}
}

// ValidateAll validates every lead field and returns the accumulated errors.
func (v *LeadValidator) ValidateAll(businessID, name, email, phone, budget, message string) ValidationErrors {
	if v.Required("business_id", businessID) {
		v.UUID("business_id", businessID)
	}
	if v.Required("name", name) {
		v.MaxLength("name", name, 200)
		v.NoScriptTags("name", name)
	}
	if v.Required("email", email) {
		v.Email("email", email)
	}
	if v.Required("phone", phone) {
		v.PhoneNumber("phone", phone)
	}
	v.MaxLength("budget", budget, 100)
	v.MaxLength("message", message, 4000)
	v.NoScriptTags("message", message)
	return v.Errors()
}

// ParseCursor parses the ?after= message cursor. Empty means 0.
func ParseCursor(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, ValidationError{Field: "after", Message: "must be a non-negative integer", Code: CodeInvalidValue}
	}
	return n, nil
}

// SanitizeString removes null bytes and control characters other than
// newlines and tabs, then trims surrounding space.
func SanitizeString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	var builder strings.Builder
	for _, r := range s {
		if r < 32 && r != '\n' && r != '\r' && r != '\t' {
			builder.WriteRune(' ')
		} else {
			builder.WriteRune(r)
		}
	}
	return strings.TrimSpace(builder.String())
}

// SanitizePhoneNumber keeps the digits of phone and a leading +.
func SanitizePhoneNumber(phone string) string {
	hasPlus := strings.HasPrefix(strings.TrimSpace(phone), "+")
	digits := strings.Builder{}
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	result := digits.String()
	if hasPlus && result != "" {
		return "+" + result
	}
	return result
}
