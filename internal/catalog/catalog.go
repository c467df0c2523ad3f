// Package catalog keeps the in-memory set of available businesses and is the
// single place business names are resolved.
package catalog

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tekkistudio/tekki-chat/internal/domain"
	"github.com/tekkistudio/tekki-chat/internal/metrics"
	"github.com/tekkistudio/tekki-chat/internal/textnorm"
)

// Source lists available businesses.
type Source interface {
	ListAvailable(ctx context.Context) ([]*domain.Business, error)
}

// LoadResult is the outcome of Load. Err is set when the source failed, in
// which case Businesses is the previously loaded set.
type LoadResult struct {
	Businesses []*domain.Business
	Err        error
}

// OK reports whether the load succeeded.
func (r LoadResult) OK() bool {
	return r.Err == nil
}

// Catalog is safe for concurrent use. Readers get the set as of the last
// successful Load or SetAll.
type Catalog struct {
	source  Source
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu         sync.RWMutex
	businesses []*domain.Business
	loadedAt   time.Time
}

// New creates an empty Catalog reading from source.
func New(source Source, logger *zap.Logger, m *metrics.Metrics) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{source: source, logger: logger, metrics: m}
}

// Load fetches the available businesses and replaces the cached set. On
// failure the cached set is kept and the error is reported in the result.
func (c *Catalog) Load(ctx context.Context) LoadResult {
	if c.source == nil {
		return LoadResult{Businesses: c.Available()}
	}
	list, err := c.source.ListAvailable(ctx)
	if err != nil {
		c.logger.Warn("catalog load failed, keeping previous set",
			zap.Error(err),
			zap.Int("cached", c.Len()),
		)
		return LoadResult{Businesses: c.Available(), Err: err}
	}
	c.SetAll(list)
	return LoadResult{Businesses: c.Available()}
}

// SetAll replaces the cached set. Businesses that are not available are
// dropped.
func (c *Catalog) SetAll(list []*domain.Business) {
	kept := make([]*domain.Business, 0, len(list))
	for _, b := range list {
		if b.IsAvailable() {
			kept = append(kept, b)
		}
	}

	c.mu.Lock()
	c.businesses = kept
	c.loadedAt = time.Now()
	c.mu.Unlock()

	c.metrics.SetCatalogSize(len(kept))
}

// Run reloads the catalog every interval until ctx is done.
func (c *Catalog) Run(ctx context.Context, interval time.Duration) {
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
			if res := c.Load(ctx); res.OK() {
				c.logger.Debug("catalog refreshed", zap.Int("available", len(res.Businesses)))
			}
		}
	}
}

// Len returns the number of available businesses.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.businesses)
}

// Available returns a copy of the available set in catalog order (newest first).
func (c *Catalog) Available() []*domain.Business {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*domain.Business(nil), c.businesses...)
}

// Top returns at most n available businesses in catalog order.
func (c *Catalog) Top(n int) []*domain.Business {
	all := c.Available()
	if n >= 0 && len(all) > n {
		all = all[:n]
	}
	return all
}

// Cheapest returns at most n available businesses by ascending price.
func (c *Catalog) Cheapest(n int) []*domain.Business {
	all := c.Available()
	sort.SliceStable(all, func(i, j int) bool { return all[i].Price < all[j].Price })
	if n >= 0 && len(all) > n {
		all = all[:n]
	}
	return all
}

// FindExact returns the available business whose name equals name, ignoring
// case and accents.
func (c *Catalog) FindExact(name string) *domain.Business {
	want := textnorm.Fold(name)
	if want == "" {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, b := range c.businesses {
		if textnorm.Fold(b.Name) == want {
			return b
		}
	}
	return nil
}

// MatchName reports whether text is exactly an available business name.
func (c *Catalog) MatchName(text string) (string, bool) {
	if b := c.FindExact(strings.TrimRight(strings.TrimSpace(text), ".!?")); b != nil {
		return b.Name, true
	}
	return "", false
}

// FindByKeyword returns available businesses whose name or description
// contains keyword.
func (c *Catalog) FindByKeyword(keyword string) []*domain.Business {
	kw := textnorm.Fold(keyword)
	if kw == "" {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []*domain.Business
	for _, b := range c.businesses {
		if strings.Contains(textnorm.Fold(b.Name), kw) || strings.Contains(textnorm.Fold(b.Description), kw) {
			out = append(out, b)
		}
	}
	return out
}

var genericNouns = []string{"business ", "boutique ", "e-commerce ", "ecommerce ", "site "}

// Resolve maps a name extracted from visitor text to an available business:
// exact match, then the name without a leading generic noun ("business X"),
// then the only business whose name appears in the text.
func (c *Catalog) Resolve(name string) *domain.Business {
	if b := c.FindExact(name); b != nil {
		return b
	}
	folded := textnorm.Fold(name)
	for _, noun := range genericNouns {
		if strings.HasPrefix(folded, noun) {
			if b := c.FindExact(folded[len(noun):]); b != nil {
				return b
			}
		}
	}
	return c.FindMentioned(name)
}

// FindMentioned returns the available business whose name occurs in text.
// Longer names win so "Glow Shop Pro" beats "Glow Shop".
func (c *Catalog) FindMentioned(text string) *domain.Business {
	folded := textnorm.Fold(text)
	if folded == "" {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	var best *domain.Business
	bestLen := 0
	for _, b := range c.businesses {
		n := textnorm.Fold(b.Name)
		if n != "" && len(n) > bestLen && strings.Contains(folded, n) {
			best, bestLen = b, len(n)
		}
	}
	return best
}

// Recommend returns the first available business costing at most budget,
// whose category, name or description mentions sector (when given), and
// whose weekly time requirement fits timeAvailable (when both parse).
// A budget of zero or less means no budget limit.
func (c *Catalog) Recommend(budget int64, sector, timeAvailable string) *domain.Business {
	sec := textnorm.Fold(sector)
	avail, haveAvail := ParseWeeklyHours(timeAvailable)

	for _, b := range c.Available() {
		if budget > 0 && b.Price > budget {
			continue
		}
		if sec != "" && !mentions(b, sec) {
			continue
		}
		if haveAvail {
			if need, ok := ParseWeeklyHours(b.TimeRequiredWeekly); ok && need > avail {
				continue
			}
		}
		return b
	}
	return nil
}

func mentions(b *domain.Business, folded string) bool {
	return strings.Contains(textnorm.Fold(b.Category), folded) ||
		strings.Contains(textnorm.Fold(b.Name), folded) ||
		strings.Contains(textnorm.Fold(b.Description), folded)
}

var hoursPattern = regexp.MustCompile(`\d+`)

// ParseWeeklyHours returns the largest number in s, so "10-15h/semaine"
// yields 15 and "20h" yields 20.
func ParseWeeklyHours(s string) (int, bool) {
	nums := hoursPattern.FindAllString(s, -1)
	if len(nums) == 0 {
		return 0, false
	}
	highest := -1
	for _, n := range nums {
		if v, err := strconv.Atoi(n); err == nil && v > highest {
			highest = v
		}
	}
	return highest, highest >= 0
}
