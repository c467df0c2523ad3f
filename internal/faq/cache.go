// Package faq answers visitor questions from curated FAQ entries before the
// completion provider is called.
package faq

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tekkistudio/tekki-chat/internal/domain"
	"github.com/tekkistudio/tekki-chat/internal/metrics"
	"github.com/tekkistudio/tekki-chat/internal/textnorm"
)

// MinOverlap is the share of a question's significant words that must appear
// in the visitor text for a keyword match.
const MinOverlap = 0.7

// minFragment is the shortest visitor text matched as part of a longer question.
const minFragment = 12

// DefaultSuggestions are offered with answers that carry none of their own.
var DefaultSuggestions = []string{"Voir les business disponibles", "Contacter un conseiller"}

var stopwords = map[string]struct{}{
	"avec": {}, "dans": {}, "pour": {}, "vous": {}, "nous": {}, "votre": {}, "vos": {},
	"quel": {}, "quelle": {}, "quels": {}, "quelles": {}, "comment": {}, "est-ce": {},
	"cette": {}, "sont": {}, "etre": {}, "avoir": {}, "faire": {}, "peut": {}, "peux": {},
	"mais": {}, "plus": {}, "tout": {}, "tous": {}, "leur": {}, "leurs": {}, "elle": {},
	"what": {}, "which": {}, "with": {}, "your": {}, "have": {}, "does": {}, "this": {},
}

// Answer is a matched FAQ.
type Answer struct {
	FAQ         *domain.FAQ
	Content     string
	Suggestions []string
}

type entry struct {
	faq      *domain.FAQ
	question string
	keywords []string
}

// Cache holds active FAQs in memory. It is safe for concurrent use.
type Cache struct {
	repo    domain.FAQRepository
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu      sync.RWMutex
	entries []entry
}

// NewCache creates an empty cache backed by repo.
func NewCache(repo domain.FAQRepository, logger *zap.Logger, m *metrics.Metrics) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{repo: repo, logger: logger, metrics: m}
}

// Refresh reloads active FAQs. On error the previous entries are kept.
func (c *Cache) Refresh(ctx context.Context) error {
	faqs, err := c.repo.ListActive(ctx)
	if err != nil {
		c.logger.Warn("faq refresh failed, keeping cached entries", zap.Error(err))
		return err
	}
	c.Set(faqs)
	c.logger.Debug("faq cache refreshed", zap.Int("entries", len(faqs)))
	return nil
}

// Set replaces the cached entries.
func (c *Cache) Set(faqs []*domain.FAQ) {
	entries := make([]entry, 0, len(faqs))
	for _, f := range faqs {
		if f == nil || !f.Active {
			continue
		}
		q := normalize(f.Question)
		if q == "" {
			continue
		}
		entries = append(entries, entry{faq: f, question: q, keywords: significantWords(q)})
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	c.metrics.SetFAQEntries(len(entries))
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Run refreshes the cache every interval until ctx is done.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.Refresh(ctx)
		}
	}
}

// Match finds the FAQ answering text: an exact question, a question contained
// in the text or containing it, or a question whose significant words are at
// least MinOverlap present in the text. Earlier rules win over later ones.
func (c *Cache) Match(text string) (*Answer, bool) {
	q := normalize(text)
	if q == "" {
		return nil, false
	}
	words := make(map[string]struct{})
	for _, w := range textnorm.Words(q) {
		words[w] = struct{}{}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var substring, overlap *entry
	for i := range c.entries {
		e := &c.entries[i]
		if e.question == q {
			return c.answer(e), true
		}
		if substring == nil && (strings.Contains(q, e.question) || (len(q) >= minFragment && strings.Contains(e.question, q))) {
			substring = e
		}
		if overlap == nil && overlapRatio(e.keywords, words) >= MinOverlap {
			overlap = e
		}
	}
	if substring != nil {
		return c.answer(substring), true
	}
	if overlap != nil {
		return c.answer(overlap), true
	}
	return nil, false
}

func (c *Cache) answer(e *entry) *Answer {
	c.metrics.RecordFAQHit()
	suggestions := e.faq.CustomSuggestions
	if len(suggestions) == 0 {
		suggestions = DefaultSuggestions
	}
	return &Answer{
		FAQ:         e.faq,
		Content:     e.faq.Answer,
		Suggestions: append([]string(nil), suggestions...),
	}
}

func normalize(s string) string {
	return strings.TrimRight(textnorm.Fold(s), " ?!.")
}

func significantWords(folded string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, w := range textnorm.Words(folded) {
		if len([]rune(w)) < 4 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

func overlapRatio(keywords []string, words map[string]struct{}) float64 {
	if len(keywords) == 0 {
		return 0
	}
	hits := 0
	for _, k := range keywords {
		if _, ok := words[k]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(keywords))
}
