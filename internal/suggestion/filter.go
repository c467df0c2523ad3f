// Package suggestion post-processes quick-reply chips before they are shown.
package suggestion

import (
	"strings"

	"github.com/tekkistudio/tekki-chat/internal/domain"
	"github.com/tekkistudio/tekki-chat/internal/textnorm"
)

var ecommerceSitePhrases = []string{
	"site e-commerce",
	"site ecommerce",
	"site web",
	"creation de site",
	"creer mon site",
}

var trainingWords = []string{"formation", "formations", "former", "apprendre"}

// Filter drops chips that repeat the visitor's last message, chips about an
// e-commerce website on the services page or once the visitor asked about
// one, chips about training once the visitor asked about it, and duplicate
// labels. Order is preserved and Filter is idempotent.
func Filter(suggestions []domain.Suggestion, ctx domain.PageContext, lastUserMessage string) []domain.Suggestion {
	if len(suggestions) == 0 {
		return suggestions
	}

	last := textnorm.Fold(lastUserMessage)
	dropSite := onServicesPage(ctx) || textnorm.ContainsAny(last, ecommerceSitePhrases)
	dropTraining := containsWord(last, trainingWords)

	out := make([]domain.Suggestion, 0, len(suggestions))
	seen := make(map[string]struct{}, len(suggestions))
	for _, s := range suggestions {
		label := textnorm.Fold(s.Label)
		if label == "" {
			continue
		}
		if last != "" && label == last {
			continue
		}
		if dropSite && textnorm.ContainsAny(label, ecommerceSitePhrases) {
			continue
		}
		if dropTraining && containsWord(label, trainingWords) {
			continue
		}
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Labels filters plain-text chips, as returned by a completion provider.
func Labels(labels []string, ctx domain.PageContext, lastUserMessage string) []domain.Suggestion {
	chips := make([]domain.Suggestion, 0, len(labels))
	for _, l := range labels {
		if l = strings.TrimSpace(l); l != "" {
			chips = append(chips, domain.TextSuggestion(l))
		}
	}
	return Filter(chips, ctx, lastUserMessage)
}

func onServicesPage(ctx domain.PageContext) bool {
	if strings.HasPrefix(strings.ToLower(ctx.URL), "/services") {
		return true
	}
	return textnorm.Fold(ctx.Page) == "services"
}

func containsWord(folded string, words []string) bool {
	for _, w := range textnorm.Words(folded) {
		for _, target := range words {
			if w == target {
				return true
			}
		}
	}
	return false
}
