// Package intent classifies visitor text with fixed phrase lists and
// regular expressions. It has no side effects and no I/O.
package intent

import (
	"regexp"
	"strings"

	"github.com/tekkistudio/tekki-chat/internal/domain"
	"github.com/tekkistudio/tekki-chat/internal/textnorm"
)

// AspectQuery is a question about one facet of a named business.
type AspectQuery struct {
	BusinessName string
	Aspect       domain.Aspect
}

// Result is the fixed-shape outcome of Analyze.
type Result struct {
	IsContactRequest bool

	// IsExactBusinessName is only computed when the Analyzer has a NameMatcher.
	IsExactBusinessName bool
	ExactBusinessName   string

	IsGeneralBusinessInterest bool
	IsBusinessListRequest     bool

	IsSpecificBusinessInterest bool
	SpecificBusinessName       string

	IsBusinessAspectQuery bool
	BusinessAspect        *AspectQuery
}

// Matched reports whether any rule fired.
func (r Result) Matched() bool {
	return r.IsContactRequest || r.IsExactBusinessName || r.IsGeneralBusinessInterest ||
		r.IsBusinessListRequest || r.IsSpecificBusinessInterest || r.IsBusinessAspectQuery
}

// NameMatcher resolves text that is exactly the name of an available business.
type NameMatcher interface {
	MatchName(text string) (string, bool)
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithNameMatcher lets the analyzer compute IsExactBusinessName.
func WithNameMatcher(m NameMatcher) Option {
	return func(a *Analyzer) { a.names = m }
}

// Analyzer classifies visitor text.
type Analyzer struct {
	names NameMatcher
}

// New creates an Analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var contactPhrases = fold(
	"parler a un conseiller",
	"parler a un humain",
	"parler a quelqu'un",
	"parler a un agent",
	"contacter un conseiller",
	"joindre un conseiller",
	"service client",
	"numero whatsapp",
	"sur whatsapp",
	"etre rappele",
	"talk to a human",
	"speak to someone",
	"contact an advisor",
)

var generalInterestPhrases = fold(
	"je suis interesse par un business",
	"je suis interessee par un business",
	"je suis interesse par vos business",
	"je veux acheter un business",
	"je cherche un business",
	"je voudrais un business",
	"i'm interested in a business",
	"i am interested in a business",
)

var listPhrases = fold(
	"quels business",
	"quels sont les business",
	"quels sont vos business",
	"liste des business",
	"business disponibles",
	"business disponible",
	"voir les business",
	"montrez-moi les business",
	"quelles boutiques",
	"business a vendre",
	"which businesses",
	"list of businesses",
)

var specificInterestPattern = regexp.MustCompile(`(?i)^\s*(?:en savoir plus sur|learn more about)\s+(.+?)[\s.!?]*$`)

const namePart = `(?:\b(?:de|du|des|pour)\s+|\bd')(.+)$`

var aspectPatterns = []struct {
	aspect domain.Aspect
	re     *regexp.Regexp
}{
	{domain.AspectPrice, regexp.MustCompile(`\b(?:prix|cout|tarif|combien coute|combien ca coute|combien vaut)\b.*?` + namePart)},
	{domain.AspectTime, regexp.MustCompile(`\b(?:temps|combien d'heures|heures|disponibilite)\b.*?` + namePart)},
	{domain.AspectSkills, regexp.MustCompile(`\b(?:competences?|experience|prerequis|connaissances?|qualifications?)\b.*?` + namePart)},
	{domain.AspectSupport, regexp.MustCompile(`\b(?:accompagnement|support|coaching|suivi|formation)\b.*?` + namePart)},
	{domain.AspectAcquisition, regexp.MustCompile(`\b(?:acquisition|processus d'achat|acquerir|acheter)\b\s+(?:.*?` + `(?:\b(?:de|du|pour)\s+|\bd'))?(.+)$`)},
}

var articles = []string{"la ", "le ", "l'", "les ", "un ", "une ", "ce ", "cette "}

// Analyze classifies text.
func (a *Analyzer) Analyze(text string) Result {
	var r Result
	folded := textnorm.Fold(text)
	if folded == "" {
		return r
	}
	bare := strings.TrimRight(folded, " .!?")

	r.IsContactRequest = textnorm.ContainsAny(folded, contactPhrases)

	if a.names != nil {
		if name, ok := a.names.MatchName(text); ok {
			r.IsExactBusinessName = true
			r.ExactBusinessName = name
		}
	}

	for _, p := range generalInterestPhrases {
		if bare == p {
			r.IsGeneralBusinessInterest = true
			break
		}
	}

	r.IsBusinessListRequest = textnorm.ContainsAny(folded, listPhrases)

	if m := specificInterestPattern.FindStringSubmatch(text); m != nil {
		if name := cleanName(m[1]); name != "" {
			r.IsSpecificBusinessInterest = true
			r.SpecificBusinessName = name
		}
	}

	for _, p := range aspectPatterns {
		m := p.re.FindStringSubmatch(bare)
		if m == nil {
			continue
		}
		if name := cleanName(m[len(m)-1]); name != "" {
			r.IsBusinessAspectQuery = true
			r.BusinessAspect = &AspectQuery{BusinessName: name, Aspect: p.aspect}
			break
		}
	}

	return r
}

// cleanName strips articles in front of a business name. Generic nouns such
// as "business" are left for the catalog to resolve.
func cleanName(s string) string {
	s = strings.TrimSpace(strings.TrimRight(s, " .!?"))
	for changed := true; changed; {
		changed = false
		lower := strings.ToLower(s)
		for _, noise := range articles {
			if strings.HasPrefix(lower, noise) && len(s) > len(noise) {
				s = strings.TrimSpace(s[len(noise):])
				changed = true
				break
			}
		}
	}
	return s
}

func fold(phrases ...string) []string {
	out := make([]string, len(phrases))
	for i, p := range phrases {
		out[i] = textnorm.Fold(p)
	}
	return out
}
