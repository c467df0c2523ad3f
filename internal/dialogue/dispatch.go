package dialogue

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tekkistudio/tekki-chat/internal/domain"
	"github.com/tekkistudio/tekki-chat/internal/intent"
	"github.com/tekkistudio/tekki-chat/internal/textnorm"
)

// Routes, as reported in metrics and Turn.Route.
const (
	RouteContact          = "contact"
	RouteBusinessSelected = "business_selected"
	RouteGeneralInterest  = "general_interest"
	RouteBusinessList     = "business_list"
	RouteUnknownBusiness  = "unknown_business"
	RouteAspect           = "aspect"
	RoutePageViewed       = "page_viewed"
	RoutePageNotViewed    = "page_not_viewed"
	RouteOpenPage         = "open_page"
	RouteAcquire          = "acquire"
	RouteBudget           = "budget"
	RouteRecommendation   = "recommendation"
	RouteMoreQuestions    = "more_questions"
	RouteRetry            = "retry"
	RouteFAQ              = "faq"
)

// handleText dispatches free text in priority order: contact request, exact
// business name, general interest, list request, "learn more about X",
// aspect query, bare business reference, budget answer, FAQ, completion.
func (c *conv) handleText(text string) outcome {
	e := c.e
	res := e.analyzer.Analyze(text)

	switch {
	case res.IsContactRequest:
		return c.contact()
	case res.IsExactBusinessName:
		if b := e.catalog.FindExact(res.ExactBusinessName); b != nil {
			return c.selectBusiness(b)
		}
	case res.IsGeneralBusinessInterest:
		return c.generalInterest()
	case res.IsBusinessListRequest:
		return c.listBusinesses()
	case res.IsSpecificBusinessInterest:
		if b := e.catalog.Resolve(res.SpecificBusinessName); b != nil {
			return c.selectBusiness(b)
		}
		return c.unknownBusiness(res.SpecificBusinessName)
	}

	if res.IsBusinessAspectQuery {
		if out, ok := c.aspectQuery(res.BusinessAspect); ok {
			return out
		}
	}

	if name, ok := businessReference(text); ok {
		if b := e.catalog.Resolve(name); b != nil {
			return c.selectBusiness(b)
		}
		return c.unknownBusiness(name)
	}

	if c.sess.State.Kind == domain.StateAwaitingBudget {
		if budget, ok := parseBudget(text); ok {
			return c.recommend(budget)
		}
	}

	if e.faq != nil {
		if a, ok := e.faq.Match(text); ok {
			chips := make([]domain.Suggestion, 0, len(a.Suggestions))
			for _, l := range a.Suggestions {
				chips = append(chips, chipForLabel(l))
			}
			return answer(RouteFAQ, reply{content: a.Content, suggestions: chips})
		}
	}

	return outcome{route: RouteCompletion, complete: true}
}

// handleAction dispatches a chip click on its action tag.
func (c *conv) handleAction(action domain.Action, business, value string) outcome {
	switch action {
	case domain.ActionContact:
		return c.contact()
	case domain.ActionShowBusinesses:
		return c.listBusinesses()
	case domain.ActionUndecided:
		return c.askBudget()
	case domain.ActionRetry:
		return answer(RouteRetry, retryLaterReply())
	case domain.ActionChooseBudget:
		limit, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return c.askBudget()
		}
		return c.recommend(limit)
	case domain.ActionMoreQuestions:
		return c.moreQuestions(c.currentBusiness(business))
	}

	b, explicit := c.actionBusiness(business)
	if b == nil {
		if explicit {
			return c.unknownBusiness(business)
		}
		return c.generalInterest()
	}

	switch action {
	case domain.ActionSelectBusiness:
		return c.selectBusiness(b)
	case domain.ActionPageViewed:
		return c.pageViewed(b)
	case domain.ActionPageNotViewed:
		return c.pageNotViewed(b)
	case domain.ActionOpenPage:
		return c.openPage(b)
	case domain.ActionAskAspect:
		return c.aspectAnswer(b, domain.Aspect(value))
	case domain.ActionAcquire:
		return c.acquire(b)
	default:
		return c.generalInterest()
	}
}

// actionBusiness resolves the business a chip click is about. explicit is
// true when the chip named a business.
func (c *conv) actionBusiness(name string) (b *domain.Business, explicit bool) {
	if strings.TrimSpace(name) != "" {
		return c.e.catalog.Resolve(name), true
	}
	return c.e.FindCurrentBusiness(c.sess), false
}

func (c *conv) currentBusiness(name string) *domain.Business {
	b, _ := c.actionBusiness(name)
	return b
}

var currentReferences = map[string]struct{}{
	"business": {}, "boutique": {}, "celui-ci": {}, "celle-ci": {}, "celui-la": {}, "celle-la": {},
	"ce business": {}, "cette boutique": {}, "ce site": {},
}

// aspectQuery answers an aspect question when its business resolves. A
// question about "ce business" uses the current business; a named business
// that does not resolve gets the unknown-business answer when the name is
// clearly a business reference. Anything else falls through.
func (c *conv) aspectQuery(q *intent.AspectQuery) (outcome, bool) {
	if q == nil {
		return outcome{}, false
	}
	if b := c.e.catalog.Resolve(q.BusinessName); b != nil {
		return c.aspectAnswer(b, q.Aspect), true
	}
	name := textnorm.Fold(q.BusinessName)
	if _, ok := currentReferences[name]; ok {
		if b := c.e.FindCurrentBusiness(c.sess); b != nil {
			return c.aspectAnswer(b, q.Aspect), true
		}
		return outcome{}, false
	}
	for _, noun := range []string{"business ", "boutique "} {
		if strings.HasPrefix(name, noun) {
			return c.unknownBusiness(q.BusinessName), true
		}
	}
	return outcome{}, false
}

var referencePattern = regexp.MustCompile(`^\s*(?:[Ll]e |[Ll]a |[Dd]u |[Uu]n |[Ll]')?((?:[Bb]usiness|[Bb]outique)\s+(\p{Lu}[^.!?]*?))[\s.!?]*$`)

// businessReference extracts "Business X" from a message that is only
// "Business X" or "Boutique X", optionally with an article, X capitalized.
func businessReference(text string) (string, bool) {
	m := referencePattern.FindStringSubmatch(text)
	if m == nil || len(strings.Fields(m[2])) > 4 {
		return "", false
	}
	return m[1], true
}

var (
	amountPattern  = regexp.MustCompile(`(\d[\d\s.,]*)\s*(k|mille|m|millions?)?\b`)
	currencySuffix = regexp.MustCompile(`^\s*(?:fcfa|f cfa|cfa|xof|francs?)\b`)
	budgetLeadIn   = regexp.MustCompile(`\b(?:budget|moyens|dispose de)\b\D{0,20}$`)
)

// parseBudget reads an amount in FCFA from text such as "500 000",
// "500k", "1,5 million" or "300". When several numbers appear, amounts
// marked as money (followed by FCFA or introduced by "budget") win, then
// the largest.
func parseBudget(text string) (int64, bool) {
	folded := textnorm.Fold(text)
	var best int64
	bestMarked := false
	for _, loc := range amountPattern.FindAllStringSubmatchIndex(folded, -1) {
		suffix := ""
		if loc[4] >= 0 {
			suffix = folded[loc[4]:loc[5]]
		}
		value, ok := amountValue(folded[loc[2]:loc[3]], suffix)
		if !ok {
			continue
		}
		marked := currencySuffix.MatchString(folded[loc[1]:]) || budgetLeadIn.MatchString(folded[:loc[0]])
		switch {
		case marked && !bestMarked:
			best, bestMarked = value, true
		case marked == bestMarked && value > best:
			best = value
		}
	}
	return best, best > 0
}

func amountValue(number, suffix string) (int64, bool) {
	digits := strings.NewReplacer(" ", "", ".", "").Replace(strings.TrimRight(number, " .,"))
	value, err := strconv.ParseFloat(strings.Replace(digits, ",", ".", 1), 64)
	if err != nil || value <= 0 {
		return 0, false
	}
	switch suffix {
	case "k", "mille":
		value *= 1000
	case "m", "million", "millions":
		value *= 1000000
	default:
		if value < 10000 {
			value *= 1000
		}
	}
	return int64(value), true
}

func formatLimit(limit int64) string {
	return strconv.FormatInt(limit, 10)
}
