// Package dialogue is the chat state machine. It records each visitor input,
// classifies it, and answers from a canned handler, the FAQ cache or a
// completion provider, keeping the session's funnel and conversation state
// current.
//
// A turn runs in two phases so the slow completion call can happen outside
// the per-session lock: Begin appends the visitor message and either answers
// directly or returns a pending completion request; Finish applies the
// completion only if no newer input arrived in between.
package dialogue

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/tekkistudio/tekki-chat/internal/ai"
	"github.com/tekkistudio/tekki-chat/internal/clock"
	"github.com/tekkistudio/tekki-chat/internal/device"
	"github.com/tekkistudio/tekki-chat/internal/domain"
	apperrors "github.com/tekkistudio/tekki-chat/internal/errors"
	"github.com/tekkistudio/tekki-chat/internal/faq"
	"github.com/tekkistudio/tekki-chat/internal/funnel"
	"github.com/tekkistudio/tekki-chat/internal/intent"
	"github.com/tekkistudio/tekki-chat/internal/metrics"
	"github.com/tekkistudio/tekki-chat/internal/suggestion"
)

// RouteCompletion is the route of turns answered by a completion provider.
const RouteCompletion = "completion"

// Catalog is the read-only business catalog the engine resolves names with.
type Catalog interface {
	intent.NameMatcher
	Available() []*domain.Business
	Top(n int) []*domain.Business
	Cheapest(n int) []*domain.Business
	FindExact(name string) *domain.Business
	FindMentioned(text string) *domain.Business
	Resolve(name string) *domain.Business
	Recommend(budget int64, sector, timeAvailable string) *domain.Business
}

// FAQMatcher answers questions from curated entries.
type FAQMatcher interface {
	Match(text string) (*faq.Answer, bool)
}

// TurnSink receives every completed exchange. Implementations must not block.
type TurnSink interface {
	RecordTurn(rec domain.ConversationRecord)
}

// Config holds the engine dependencies. Catalog is required; FAQ, Completer,
// Snapshots and Turns may be nil.
type Config struct {
	Catalog   Catalog
	FAQ       FAQMatcher
	Completer ai.Completer
	Snapshots funnel.SnapshotSink
	Turns     TurnSink
	Clock     clock.Clock
	Metrics   *metrics.Metrics
	Logger    *zap.Logger

	WhatsAppNumber     string
	BusinessesPagePath string
}

// Engine runs chat turns. It holds no per-session state and is safe for
// concurrent use; callers serialize turns of the same session.
type Engine struct {
	catalog   Catalog
	analyzer  *intent.Analyzer
	faq       FAQMatcher
	completer ai.Completer
	snapshots funnel.SnapshotSink
	turns     TurnSink
	clock     clock.Clock
	ids       *clock.IDSource
	metrics   *metrics.Metrics
	logger    *zap.Logger

	whatsApp string
	pagePath string
}

// NewEngine creates an Engine.
func NewEngine(cfg Config) *Engine {
	c := cfg.Clock
	if c == nil {
		c = clock.New()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pagePath := strings.TrimRight(cfg.BusinessesPagePath, "/")
	if pagePath == "" {
		pagePath = "/business"
	}
	return &Engine{
		catalog:   cfg.Catalog,
		analyzer:  intent.New(intent.WithNameMatcher(cfg.Catalog)),
		faq:       cfg.FAQ,
		completer: cfg.Completer,
		snapshots: cfg.Snapshots,
		turns:     cfg.Turns,
		clock:     c,
		ids:       clock.NewIDSource(c),
		metrics:   cfg.Metrics,
		logger:    logger,
		whatsApp:  cfg.WhatsAppNumber,
		pagePath:  pagePath,
	}
}

// Input is one visitor input: free text, or a chip click carrying an action.
type Input struct {
	Text     string
	Action   domain.Action
	Business string
	Value    string
	Page     domain.PageContext
}

// Turn is the outcome of Begin.
type Turn struct {
	Seq     uint64
	Route   string
	User    domain.Message
	Replies []domain.Message
	// Pending is set when the answer must come from a completion provider.
	Pending *ai.CompletionRequest
}

// NeedsCompletion reports whether Finish must be called with a completion.
func (t *Turn) NeedsCompletion() bool {
	return t.Pending != nil
}

// NewSession creates a session holding the welcome message.
func (e *Engine) NewSession(id, userAgent string) *domain.Session {
	now := e.clock.Now()
	sess := &domain.Session{
		ID:        id,
		Messages:  []domain.Message{},
		Funnel:    domain.NewConversionFunnel(now),
		State:     domain.Idle(),
		UserAgent: userAgent,
		CreatedAt: now,
		UpdatedAt: now,
	}
	e.store(sess).Append(domain.Message{
		Role:    domain.RoleAssistant,
		Content: welcomeText,
		Suggestions: []domain.Suggestion{
			domain.TextSuggestion("Je suis intéressé par un business"),
			chip(LabelShowBusinesses, domain.ActionShowBusinesses, ""),
			chip(LabelContact, domain.ActionContact, ""),
		},
	})
	return sess
}

// Begin records the visitor input and dispatches it. The session is
// mutated in place and must be saved by the caller.
func (e *Engine) Begin(sess *domain.Session, in Input) *Turn {
	c := e.open(sess, in.Page)
	sess.Seq++
	turn := &Turn{Seq: sess.Seq}

	text := strings.TrimSpace(in.Text)
	action, business, value := in.Action, in.Business, in.Value
	if action == "" || action == domain.ActionMessage {
		action = domain.ActionMessage
		if la, ok := lookupLabel(text); ok {
			action, value = la.action, la.value
		}
	}
	if text == "" {
		text = e.actionText(action, business, value)
	}

	page := c.page
	turn.User = c.store.Append(domain.Message{Role: domain.RoleUser, Content: text, PageContext: &page})
	c.tracker.UpdateText(text, true)

	var out outcome
	if action == domain.ActionMessage {
		out = c.handleText(text)
	} else {
		out = c.handleAction(action, business, value)
	}
	turn.Route = out.route
	e.metrics.RecordTurn(out.route)

	if out.complete {
		turn.Pending = e.completionRequest(sess, text, c.page)
		e.logger.Debug("turn needs completion",
			zap.String("session_id", sess.ID),
			zap.Uint64("seq", turn.Seq),
		)
		return turn
	}

	turn.Replies = c.emit(out.replies...)
	e.record(sess, text, c.page, turn.Replies)
	return turn
}

// Complete asks the completion provider for the pending answer of a turn.
func (e *Engine) Complete(ctx context.Context, req *ai.CompletionRequest) (*ai.CompletionResponse, error) {
	if e.completer == nil {
		return nil, apperrors.ErrLLMUnavailable
	}
	return e.completer.Complete(ctx, req)
}

// Finish applies the completion of turn. When the session accepted a newer
// input since Begin, the completion is stale: nothing is appended and ok is
// false. A completion error yields the fallback message.
func (e *Engine) Finish(sess *domain.Session, turn *Turn, resp *ai.CompletionResponse, err error) (replies []domain.Message, ok bool) {
	if sess.Seq != turn.Seq {
		e.metrics.RecordStaleCompletion()
		e.logger.Info("discarding stale completion",
			zap.String("session_id", sess.ID),
			zap.Uint64("turn_seq", turn.Seq),
			zap.Uint64("session_seq", sess.Seq),
		)
		return nil, false
	}

	page := domain.PageContext{}
	if turn.User.PageContext != nil {
		page = *turn.User.PageContext
	}
	c := e.open(sess, page)

	var out []reply
	if err != nil || resp == nil {
		e.logger.Warn("completion failed, sending fallback",
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
		out = []reply{fallbackReply()}
	} else {
		out = c.completionReplies(resp)
	}

	replies = c.emit(out...)
	e.record(sess, turn.User.Content, page, replies)
	return replies, true
}

// Handle runs a whole turn, calling the completion provider inline.
func (e *Engine) Handle(ctx context.Context, sess *domain.Session, in Input) []domain.Message {
	turn := e.Begin(sess, in)
	if !turn.NeedsCompletion() {
		return turn.Replies
	}
	resp, err := e.Complete(ctx, turn.Pending)
	replies, _ := e.Finish(sess, turn, resp, err)
	return replies
}

// HandleUserInput runs a turn for free text typed by the visitor.
func (e *Engine) HandleUserInput(ctx context.Context, sess *domain.Session, text string, page domain.PageContext) []domain.Message {
	return e.Handle(ctx, sess, Input{Text: text, Page: page})
}

// HandleAction runs a turn for a clicked chip.
func (e *Engine) HandleAction(ctx context.Context, sess *domain.Session, action domain.Action, business, value string, page domain.PageContext) []domain.Message {
	return e.Handle(ctx, sess, Input{Action: action, Business: business, Value: value, Page: page})
}

// FindCurrentBusiness returns the business the conversation is about: the
// one named by the conversation state, else one named in the last eight
// messages (assistant questions first, then visitor messages), else the
// active business. Only available businesses are returned.
func (e *Engine) FindCurrentBusiness(sess *domain.Session) *domain.Business {
	if b := e.catalog.FindExact(sess.State.Business); b != nil {
		return b
	}

	recent := e.store(sess).Recent(8)
	for i := len(recent) - 1; i >= 0; i-- {
		m := recent[i]
		if m.Role == domain.RoleAssistant && strings.Contains(m.Content, "?") {
			if b := e.catalog.FindMentioned(m.Content); b != nil {
				return b
			}
		}
	}
	for i := len(recent) - 1; i >= 0; i-- {
		m := recent[i]
		if m.Role == domain.RoleUser {
			if b := e.catalog.FindMentioned(m.Content); b != nil {
				return b
			}
		}
	}
	return e.catalog.FindExact(sess.ActiveBusiness)
}

func (e *Engine) store(sess *domain.Session) *MessageStore {
	return NewMessageStore(&sess.Messages, e.ids, e.clock)
}

func (e *Engine) open(sess *domain.Session, page domain.PageContext) *conv {
	opts := []funnel.Option{
		funnel.WithClock(e.clock),
		funnel.WithResolver(e.catalog),
		funnel.WithStageHook(func(s domain.Stage) { e.metrics.RecordStageReached(string(s)) }),
	}
	if e.snapshots != nil {
		opts = append(opts, funnel.WithSink(sess.ID, e.snapshots))
	}
	tracker := funnel.New(&sess.Funnel, opts...)
	tracker.SetURL(page.URL)
	sess.UpdatedAt = e.clock.Now()

	return &conv{
		e:       e,
		sess:    sess,
		store:   e.store(sess),
		tracker: tracker,
		page:    page,
		device:  device.Detect(sess.UserAgent),
	}
}

func (e *Engine) completionRequest(sess *domain.Session, text string, page domain.PageContext) *ai.CompletionRequest {
	state := sess.Funnel.Clone()
	return &ai.CompletionRequest{
		Message:         text,
		Context:         ai.PageContext{Page: page.Page, URL: page.URL},
		SessionID:       sess.ID,
		ConversionState: &state,
	}
}

func (e *Engine) record(sess *domain.Session, userText string, page domain.PageContext, replies []domain.Message) {
	if e.turns == nil || len(replies) == 0 {
		return
	}
	contents := make([]string, len(replies))
	needsHuman := false
	for i, r := range replies {
		contents[i] = r.Content
		needsHuman = needsHuman || r.NeedsHuman
	}
	e.turns.RecordTurn(domain.ConversationRecord{
		SessionID:         sess.ID,
		UserMessage:       userText,
		AssistantResponse: strings.Join(contents, "\n\n"),
		Page:              page.Page,
		URL:               page.URL,
		NeedsHuman:        needsHuman,
		CreatedAt:         e.clock.Now(),
	})
}

// actionText is the visitor message shown for a chip click sent without label.
func (e *Engine) actionText(action domain.Action, business, value string) string {
	switch action {
	case domain.ActionSelectBusiness:
		return business
	case domain.ActionPageViewed:
		return LabelPageViewed
	case domain.ActionPageNotViewed:
		return LabelPageNotViewed
	case domain.ActionOpenPage:
		return LabelOpenPage
	case domain.ActionAskAspect:
		return aspectLabel(domain.Aspect(value))
	case domain.ActionAcquire:
		return LabelAcquire
	case domain.ActionContact:
		return LabelContact
	case domain.ActionRetry:
		return LabelRetryLater
	case domain.ActionUndecided:
		return LabelUndecided
	case domain.ActionChooseBudget:
		for _, b := range budgetChoices {
			if value == formatLimit(b.limit) {
				return b.label
			}
		}
		return value
	case domain.ActionShowBusinesses:
		return LabelShowBusinesses
	case domain.ActionMoreQuestions:
		return LabelMoreQuestions
	default:
		return string(action)
	}
}

// conv is one engine call on one session.
type conv struct {
	e       *Engine
	sess    *domain.Session
	store   *MessageStore
	tracker *funnel.Tracker
	page    domain.PageContext
	device  device.Info
}

type reply struct {
	content     string
	suggestions []domain.Suggestion
	needsHuman  bool
	// filtered replies skip the suggestion filter.
	filtered bool
}

type outcome struct {
	route    string
	replies  []reply
	complete bool
}

func answer(route string, r reply) outcome {
	return outcome{route: route, replies: []reply{r}}
}

// emit appends the assistant replies and feeds them to the funnel.
func (c *conv) emit(replies ...reply) []domain.Message {
	last := c.sess.LastUserMessage()
	out := make([]domain.Message, 0, len(replies))
	for _, r := range replies {
		chips := r.suggestions
		if !r.filtered {
			chips = suggestion.Filter(chips, c.page, last)
		}
		msg := c.store.Append(domain.Message{
			Role:        domain.RoleAssistant,
			Content:     r.content,
			Suggestions: chips,
			NeedsHuman:  r.needsHuman,
		})
		c.tracker.UpdateText(r.content, false)
		out = append(out, msg)
	}
	return out
}

// advance applies p, raising the stage to at least stage.
func (c *conv) advance(stage domain.Stage, p domain.FunnelPatch) {
	if stage.Rank() > c.sess.Funnel.Stage.Rank() {
		p.Stage = &stage
	}
	c.tracker.Apply(p)
}

// focus makes b the business the conversation is about.
func (c *conv) focus(b *domain.Business, state domain.StateKind) {
	c.sess.ActiveBusiness = b.Name
	c.sess.State = domain.About(state, b.Name)
}

func (c *conv) completionReplies(resp *ai.CompletionResponse) []reply {
	chips := make([]domain.Suggestion, 0, len(resp.Suggestions))
	for _, label := range resp.Suggestions {
		chips = append(chips, chipForLabel(label))
	}
	chips = suggestion.Filter(chips, c.page, c.sess.LastUserMessage())

	out := []reply{{content: resp.Content, suggestions: chips, needsHuman: resp.NeedsHuman, filtered: true}}
	if resp.NeedsHuman && !hasAction(chips, domain.ActionContact) {
		out = append(out, nudgeReply())
	}
	return out
}

func hasAction(chips []domain.Suggestion, a domain.Action) bool {
	for _, s := range chips {
		if s.Action == a {
			return true
		}
	}
	return false
}
