// Package funnel tracks how far a chat session has progressed toward a
// purchase, from free-text turns and from authoritative patches.
package funnel

import (
	"regexp"
	"strings"

	"github.com/tekkistudio/tekki-chat/internal/clock"
	"github.com/tekkistudio/tekki-chat/internal/domain"
	"github.com/tekkistudio/tekki-chat/internal/textnorm"
)

// SnapshotSink receives a copy of the funnel after every material change.
// Implementations must not block; delivery is best-effort and at most once.
type SnapshotSink interface {
	RecordSnapshot(snap domain.FunnelSnapshot)
}

// Resolver maps a mentioned name to an available business.
type Resolver interface {
	Resolve(name string) *domain.Business
}

type rule struct {
	tag string
	re  *regexp.Regexp
}

func rx(pattern string) *regexp.Regexp {
	return regexp.MustCompile(`\b(?:` + pattern + `)\b`)
}

var topicRules = []rule{
	{domain.TopicPrice, rx(`prix|couts?|coute|tarifs?|budget|combien|fcfa|cher`)},
	{domain.TopicTime, rx(`temps|heures?|disponibilite|par semaine|par jour`)},
	{domain.TopicSupport, rx(`accompagnement|support|aide|formation|coaching|suivi`)},
	{domain.TopicProfitability, rx(`rentab\w*|benefices?|revenus?|chiffre d'affaires|gagner|roi|marges?`)},
	{domain.TopicExperience, rx(`experience|competences?|debutant|connaissances?|prerequis`)},
}

var objectionRules = []rule{
	{domain.ObjectionPrice, rx(`trop cher|c'est cher|pas les moyens|budget limite|couteux`)},
	{domain.ObjectionTime, rx(`pas le temps|pas assez de temps|trop de temps|tres occupee?|peu de temps`)},
	{domain.ObjectionComplexity, rx(`complique|complexe|difficile`)},
	{domain.ObjectionRisk, rx(`risques?|risquee?|arnaque|garantie|peur`)},
	{domain.ObjectionCompetence, rx(`pas d'experience|aucune experience|je suis debutante?|pas les competences|je ne sais pas vendre`)},
}

var mentionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bbusiness\s+([^.,;:!?\n]+)`),
	regexp.MustCompile(`\be-?commerce\s+(?:de|d')\s*([^.,;:!?\n]+)`),
	regexp.MustCompile(`\bboutique\s+(?:de|d')\s*([^.,;:!?\n]+)`),
}

var (
	decisionSignals      = rx(`acheter|acquerir|acquisition|pret|prete|je le prends|commander|payer|paiement`)
	considerationSignals = rx(`prix|combien|couts?|tarifs?|rentab\w*|delais?|garantie|comment ca marche`)
	interestSignals      = rx(`plus d'infos|plus d'informations|en savoir plus|avantages?|interessee?|interessant|details?`)
	purchaseIntent       = rx(`je veux (?:l')?acheter|je veux (?:l')?acquerir|je suis pret|je suis prete|je le prends|je veux ce business|procedons`)
)

// Tracker updates one session's funnel in place. It is not safe for
// concurrent use; the chat service serializes turns per session.
type Tracker struct {
	funnel    *domain.ConversionFunnel
	sessionID string
	url       string

	clock    clock.Clock
	resolver Resolver
	sink     SnapshotSink
	onStage  func(domain.Stage)
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock sets the clock used for LastActiveAt.
func WithClock(c clock.Clock) Option { return func(t *Tracker) { t.clock = c } }

// WithResolver enables business mention detection.
func WithResolver(r Resolver) Option { return func(t *Tracker) { t.resolver = r } }

// WithSink sends snapshots of material changes for sessionID to sink.
func WithSink(sessionID string, sink SnapshotSink) Option {
	return func(t *Tracker) {
		t.sessionID = sessionID
		t.sink = sink
	}
}

// WithStageHook is called with the new stage whenever the stage advances.
func WithStageHook(fn func(domain.Stage)) Option { return func(t *Tracker) { t.onStage = fn } }

// New wraps f. A zero funnel is initialized to awareness.
func New(f *domain.ConversionFunnel, opts ...Option) *Tracker {
	t := &Tracker{funnel: f, clock: clock.New()}
	for _, opt := range opts {
		opt(t)
	}
	if !f.Stage.Valid() {
		*f = domain.NewConversionFunnel(t.clock.Now())
	}
	return t
}

// SetURL records the page the next snapshots relate to.
func (t *Tracker) SetURL(url string) {
	t.url = url
}

// Funnel returns a copy of the current funnel.
func (t *Tracker) Funnel() domain.ConversionFunnel {
	return t.funnel.Clone()
}

// UpdateText derives topics, objections (visitor turns only), business
// mentions, stage (visitor turns only, never regressing) and purchase intent
// from text. It reports whether anything material changed.
func (t *Tracker) UpdateText(text string, isUserTurn bool) bool {
	folded := textnorm.Fold(text)
	f := t.funnel
	f.LastActiveAt = t.clock.Now()
	if folded == "" {
		return false
	}
	before := f.Stage
	changed := false

	for _, r := range topicRules {
		if r.re.MatchString(folded) {
			changed = addUnique(&f.TopicsDiscussed, r.tag) || changed
		}
	}

	if isUserTurn {
		for _, r := range objectionRules {
			if r.re.MatchString(folded) {
				changed = addUnique(&f.Objections, r.tag) || changed
			}
		}
	}

	if t.resolver != nil {
		for _, name := range t.mentions(text) {
			changed = addName(&f.BusinessesViewed, name) || changed
		}
	}

	if isUserTurn {
		f.Stage = domain.MaxStage(f.Stage, detectStage(folded))
		if purchaseIntent.MatchString(folded) && !f.ReadyToBuy {
			f.ReadyToBuy = true
			changed = true
		}
	}

	return t.finish(before, changed || f.Stage != before)
}

// Apply merges an authoritative patch. The stage is taken verbatim and may
// move backwards; ReadyToBuy can only be set, never cleared.
func (t *Tracker) Apply(p domain.FunnelPatch) bool {
	f := t.funnel
	f.LastActiveAt = t.clock.Now()
	before := f.Stage
	changed := false

	if p.Stage != nil && p.Stage.Valid() && *p.Stage != f.Stage {
		f.Stage = *p.Stage
		changed = true
	}
	for _, name := range p.BusinessesViewed {
		changed = addName(&f.BusinessesViewed, name) || changed
	}
	for _, tag := range p.TopicsDiscussed {
		changed = addUnique(&f.TopicsDiscussed, tag) || changed
	}
	for _, tag := range p.Objections {
		changed = addUnique(&f.Objections, tag) || changed
	}
	if p.ReadyToBuy != nil && *p.ReadyToBuy && !f.ReadyToBuy {
		f.ReadyToBuy = true
		changed = true
	}

	return t.finish(before, changed)
}

// mentions resolves business names named in text. Lines and bullet items
// are matched one at a time so a capture never runs into the next item of
// a list.
func (t *Tracker) mentions(text string) []string {
	var names []string
	for _, line := range splitItems(text) {
		folded := textnorm.Fold(line)
		if folded == "" {
			continue
		}
		for _, re := range mentionPatterns {
			m := re.FindStringSubmatch(folded)
			if m == nil {
				continue
			}
			if b := t.resolver.Resolve(strings.TrimSpace(m[1])); b != nil {
				names = append(names, b.Name)
			}
		}
	}
	return names
}

func splitItems(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == '\n' || r == '\r' || r == '•'
	})
}

func (t *Tracker) finish(before domain.Stage, changed bool) bool {
	if !changed {
		return false
	}
	if t.onStage != nil && t.funnel.Stage.Rank() > before.Rank() {
		t.onStage(t.funnel.Stage)
	}
	if t.sink != nil && !t.funnel.IsTrivial() {
		f := t.funnel.Clone()
		t.sink.RecordSnapshot(domain.FunnelSnapshot{
			SessionID:        t.sessionID,
			Stage:            f.Stage,
			BusinessesViewed: f.BusinessesViewed,
			TopicsDiscussed:  f.TopicsDiscussed,
			Objections:       f.Objections,
			ReadyToBuy:       f.ReadyToBuy,
			URL:              t.url,
			CreatedAt:        t.clock.Now(),
		})
	}
	return true
}

func detectStage(folded string) domain.Stage {
	switch {
	case decisionSignals.MatchString(folded):
		return domain.StageDecision
	case considerationSignals.MatchString(folded):
		return domain.StageConsideration
	case interestSignals.MatchString(folded):
		return domain.StageInterest
	default:
		return domain.StageAwareness
	}
}

func addUnique(list *[]string, tag string) bool {
	for _, existing := range *list {
		if existing == tag {
			return false
		}
	}
	*list = append(*list, tag)
	return true
}

func addName(list *[]string, name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	for _, existing := range *list {
		if textnorm.Equal(existing, name) {
			return false
		}
	}
	*list = append(*list, name)
	return true
}
