// Package ai talks to text completion providers. Every provider speaks the
// same chat completion contract: a visitor message with its page and funnel
// context in, an answer with quick replies and a hand-off flag out.
package ai

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/tekkistudio/tekki-chat/internal/domain"
)

// DefaultContent replaces an answer a provider returned without content.
const DefaultContent = "Désolé, je n'ai pas pu traiter votre demande. Pouvez-vous reformuler votre question ?"

// PageContext is the page the visitor was on.
type PageContext struct {
	Page string `json:"page"`
	URL  string `json:"url"`
}

// CompletionRequest is the body of a completion call.
type CompletionRequest struct {
	Message         string                   `json:"message"`
	Context         PageContext              `json:"context"`
	SessionID       string                   `json:"sessionId"`
	ConversionState *domain.ConversionFunnel `json:"conversionState,omitempty"`
}

// CompletionResponse is the answer of a completion call.
type CompletionResponse struct {
	Content     string   `json:"content"`
	Suggestions []string `json:"suggestions"`
	NeedsHuman  bool     `json:"needs_human"`
}

// Completer produces an answer for a visitor message.
type Completer interface {
	Name() string
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
}

// rawResponse distinguishes missing fields from zero values.
type rawResponse struct {
	Content     *string  `json:"content"`
	Suggestions []string `json:"suggestions"`
	NeedsHuman  *bool    `json:"needs_human"`
}

func (r rawResponse) normalize() *CompletionResponse {
	out := &CompletionResponse{Content: DefaultContent, Suggestions: []string{}}
	if r.Content != nil && strings.TrimSpace(*r.Content) != "" {
		out.Content = strings.TrimSpace(*r.Content)
	}
	for _, s := range r.Suggestions {
		if s = strings.TrimSpace(s); s != "" {
			out.Suggestions = append(out.Suggestions, s)
		}
	}
	if r.NeedsHuman != nil {
		out.NeedsHuman = *r.NeedsHuman
	}
	return out
}

// parseModelText reads a model reply that should hold a JSON object. Models
// sometimes wrap it in a code fence or prose; anything that still is not JSON
// becomes the answer content as is.
func parseModelText(text string) *CompletionResponse {
	text = strings.TrimSpace(text)
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		var raw rawResponse
		if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err == nil && raw.Content != nil {
			return raw.normalize()
		}
	}
	return rawResponse{Content: &text}.normalize()
}
