// Package sanitize masks personal data in chat text and lead details
// before they reach the logs.
package sanitize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// Phone numbers, local or international, with optional separators.
	// Matches with fewer than minPhoneDigits digits are left alone so prices
	// like "1 500 000" survive.
	phonePattern = regexp.MustCompile(`\+?\d[\d .-]{5,16}\d`)

	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|secret|token|password|auth)[=:\s"']*([\w-]{16,})`)

	bearerPattern = regexp.MustCompile(`(?i)bearer\s+[\w.-]+`)

	creditCardPattern = regexp.MustCompile(`\b(?:\d{4}[-\s]?){3}\d{4}\b`)
)

const minPhoneDigits = 9

// Sanitizer masks sensitive data.
type Sanitizer struct {
	patterns []patternConfig
}

type patternConfig struct {
	pattern     *regexp.Regexp
	replacement func(string) string
	enabled     bool
}

// Config selects what a Sanitizer masks.
type Config struct {
	MaskPhones       bool
	MaskEmails       bool
	MaskAPIKeys      bool
	MaskCreditCards  bool
	MaskBearerTokens bool
}

// DefaultConfig returns a configuration with all masking enabled.
func DefaultConfig() Config {
	return Config{
		MaskPhones:       true,
		MaskEmails:       true,
		MaskAPIKeys:      true,
		MaskCreditCards:  true,
		MaskBearerTokens: true,
	}
}

// New creates a new Sanitizer with the given configuration.
func New(cfg Config) *Sanitizer {
	// Card numbers go before phones, which would otherwise swallow them.
	return &Sanitizer{
		patterns: []patternConfig{
			{pattern: emailPattern, replacement: maskEmail, enabled: cfg.MaskEmails},
			{pattern: apiKeyPattern, replacement: maskAPIKey, enabled: cfg.MaskAPIKeys},
			{pattern: bearerPattern, replacement: maskBearer, enabled: cfg.MaskBearerTokens},
			{pattern: creditCardPattern, replacement: maskCreditCard, enabled: cfg.MaskCreditCards},
			{pattern: phonePattern, replacement: maskPhoneMatch, enabled: cfg.MaskPhones},
		},
	}
}

// NewDefault creates a sanitizer with default configuration.
func NewDefault() *Sanitizer {
	return New(DefaultConfig())
}

var defaultSanitizer = NewDefault()

// String masks all sensitive data in input.
func (s *Sanitizer) String(input string) string {
	result := input
	for _, p := range s.patterns {
		if p.enabled {
			result = p.pattern.ReplaceAllStringFunc(result, p.replacement)
		}
	}
	return result
}

// ChatText masks visitor text and cuts it to at most maxRunes runes.
func ChatText(text string, maxRunes int) string {
	masked := defaultSanitizer.String(text)
	if maxRunes <= 0 || utf8.RuneCountInString(masked) <= maxRunes {
		return masked
	}
	runes := []rune(masked)
	return string(runes[:maxRunes]) + "…"
}

func maskPhoneMatch(match string) string {
	digits := 0
	for _, r := range match {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits < minPhoneDigits {
		return match
	}
	return maskPhone(match)
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return phone[:3] + strings.Repeat("*", len(phone)-5) + phone[len(phone)-2:]
}

func maskEmail(email string) string {
	at := strings.Index(email, "@")
	if at <= 0 {
		return "[email]"
	}
	if at <= 2 {
		return email[:1] + "***" + email[at:]
	}
	return email[:2] + "***" + email[at:]
}

func maskAPIKey(match string) string {
	parts := apiKeyPattern.FindStringSubmatch(match)
	if len(parts) >= 2 {
		prefix := strings.TrimSuffix(match, parts[len(parts)-1])
		return prefix + "[REDACTED]"
	}
	return "[REDACTED-KEY]"
}

func maskBearer(string) string {
	return "Bearer [REDACTED]"
}

func maskCreditCard(cc string) string {
	clean := strings.ReplaceAll(strings.ReplaceAll(cc, "-", ""), " ", "")
	if len(clean) < 4 {
		return "****"
	}
	return "****-****-****-" + clean[len(clean)-4:]
}

// Phone masks a phone number.
func Phone(phone string) string {
	return maskPhone(phone)
}

// Email masks an email address.
func Email(email string) string {
	return maskEmail(email)
}
