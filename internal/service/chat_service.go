// Package service contains the chat, acquisition and persistence use cases
// that sit between the HTTP handlers and the dialogue engine.
package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tekkistudio/tekki-chat/internal/ai"
	"github.com/tekkistudio/tekki-chat/internal/dialogue"
	"github.com/tekkistudio/tekki-chat/internal/domain"
	apperrors "github.com/tekkistudio/tekki-chat/internal/errors"
	"github.com/tekkistudio/tekki-chat/internal/logging"
	"github.com/tekkistudio/tekki-chat/internal/metrics"
	"github.com/tekkistudio/tekki-chat/internal/sanitize"
	"github.com/tekkistudio/tekki-chat/internal/validation"
)

// TurnEngine runs dialogue turns in two phases.
type TurnEngine interface {
	NewSession(id, userAgent string) *domain.Session
	Begin(sess *domain.Session, in dialogue.Input) *dialogue.Turn
	Complete(ctx context.Context, req *ai.CompletionRequest) (*ai.CompletionResponse, error)
	Finish(sess *domain.Session, turn *dialogue.Turn, resp *ai.CompletionResponse, err error) ([]domain.Message, bool)
}

// InputLimiter caps visitor inputs per session.
type InputLimiter interface {
	Allow(sessionID string) error
}

// MessageInput is a typed visitor message.
type MessageInput struct {
	Content   string
	Page      domain.PageContext
	UserAgent string
}

// ActionInput is a suggestion chip click. Label alone is accepted from
// clients that do not send action tags.
type ActionInput struct {
	Action    domain.Action
	Business  string
	Value     string
	Label     string
	Page      domain.PageContext
	UserAgent string
}

// TurnResult is what a visitor input produced.
type TurnResult struct {
	User    domain.Message   `json:"user"`
	Replies []domain.Message `json:"replies"`
	// Stale is set when a newer input superseded this one before its
	// completion arrived; Replies is then empty.
	Stale bool `json:"stale,omitempty"`
}

// ChatService runs chat turns against stored sessions. Turns of one session
// are serialized; the completion call runs outside the session lock so a
// newer input can supersede it.
type ChatService struct {
	engine    TurnEngine
	store     domain.SessionStore
	locks     *sessionLocks
	limiter   InputLimiter
	maxLength int
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewChatService creates a ChatService.
func NewChatService(
	engine TurnEngine,
	store domain.SessionStore,
	maxMessageLength int,
	logger *zap.Logger,
	m *metrics.Metrics,
) *ChatService {
	return &ChatService{
		engine:    engine,
		store:     store,
		locks:     newSessionLocks(),
		maxLength: maxMessageLength,
		logger:    logger.Named("chat"),
		metrics:   m,
	}
}

// SetLimiter enables per-session input limiting.
func (s *ChatService) SetLimiter(l InputLimiter) {
	s.limiter = l
}

// Create starts a session holding the welcome message.
func (s *ChatService) Create(ctx context.Context, userAgent string) (*domain.Session, error) {
	sess := s.engine.NewSession(uuid.NewString(), userAgent)
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, apperrors.WrapWithOp(err, "chat.Create")
	}
	s.metrics.RecordSessionCreated()
	s.sessionLogger(sess.ID).Info("session created")
	return sess, nil
}

// Get returns a session.
func (s *ChatService) Get(ctx context.Context, id string) (*domain.Session, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, apperrors.WrapWithOp(err, "chat.Get")
	}
	if sess == nil {
		return nil, apperrors.ErrSessionNotFound
	}
	return sess, nil
}

// MessagesAfter returns the messages of a session newer than the cursor.
func (s *ChatService) MessagesAfter(ctx context.Context, id string, after int64) ([]domain.Message, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return dialogue.MessagesAfter(sess.Messages, after), nil
}

// PendingTurn is a started turn. Its visitor message is already stored;
// the replies may still wait on a completion.
type PendingTurn struct {
	SessionID string
	User      domain.Message
	turn      *dialogue.Turn
}

// StartMessage validates and stores a typed message and dispatches it.
// Callers that need arrival order call it in order and Await concurrently.
func (s *ChatService) StartMessage(ctx context.Context, id string, in MessageInput) (*PendingTurn, error) {
	content := validation.SanitizeString(in.Content)

	v := validation.NewChatInputValidator(s.maxLength)
	v.ValidateContent(content)
	v.ValidatePage(in.Page.Page, in.Page.URL)
	if !v.IsValid() {
		return nil, apperrors.ValidationFailed(v.Errors().Error())
	}

	s.sessionLogger(id).Debug("message received",
		zap.String("content", sanitize.ChatText(content, 120)),
	)

	return s.start(ctx, id, in.UserAgent, dialogue.Input{Text: content, Page: normalizePage(in.Page)})
}

// StartAction validates and stores a suggestion chip click and dispatches it.
func (s *ChatService) StartAction(ctx context.Context, id string, in ActionInput) (*PendingTurn, error) {
	label := validation.SanitizeString(in.Label)

	v := validation.NewChatInputValidator(s.maxLength)
	v.ValidateAction(string(in.Action), label, domain.KnownActions())
	v.ValidatePage(in.Page.Page, in.Page.URL)
	if !v.IsValid() {
		return nil, apperrors.ValidationFailed(v.Errors().Error())
	}

	return s.start(ctx, id, in.UserAgent, dialogue.Input{
		Text:     label,
		Action:   in.Action,
		Business: strings.TrimSpace(in.Business),
		Value:    strings.TrimSpace(in.Value),
		Page:     normalizePage(in.Page),
	})
}

// Send handles a typed message.
func (s *ChatService) Send(ctx context.Context, id string, in MessageInput) (*TurnResult, error) {
	p, err := s.StartMessage(ctx, id, in)
	if err != nil {
		return nil, err
	}
	return s.Await(ctx, p)
}

// Action handles a suggestion chip click.
func (s *ChatService) Action(ctx context.Context, id string, in ActionInput) (*TurnResult, error) {
	p, err := s.StartAction(ctx, id, in)
	if err != nil {
		return nil, err
	}
	return s.Await(ctx, p)
}

// Await returns the result of p, calling the completion provider when the
// turn needs one. A completion that was cancelled with ctx is dropped
// without a reply and ctx's error is returned.
func (s *ChatService) Await(ctx context.Context, p *PendingTurn) (*TurnResult, error) {
	turn := p.turn
	result := &TurnResult{User: turn.User, Replies: turn.Replies}
	if !turn.NeedsCompletion() {
		return result, nil
	}

	resp, cerr := s.engine.Complete(ctx, turn.Pending)
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(cerr, context.Canceled) {
		s.sessionLogger(p.SessionID).Debug("completion cancelled",
			zap.Uint64("seq", turn.Seq),
		)
		return nil, context.Canceled
	}

	// The visitor message is stored; finish even if the caller goes away now.
	replies, ok, err := s.finish(context.WithoutCancel(ctx), p.SessionID, turn, resp, cerr)
	if err != nil {
		return nil, err
	}
	if replies == nil {
		replies = []domain.Message{}
	}
	result.Replies = replies
	result.Stale = !ok
	return result, nil
}

func (s *ChatService) start(ctx context.Context, id, userAgent string, in dialogue.Input) (*PendingTurn, error) {
	turn, err := s.begin(ctx, id, userAgent, in)
	if err != nil {
		return nil, err
	}
	return &PendingTurn{SessionID: id, User: turn.User, turn: turn}, nil
}

func (s *ChatService) sessionLogger(id string) *zap.Logger {
	return logging.ForSession(s.logger, id)
}

func (s *ChatService) begin(ctx context.Context, id, userAgent string, in dialogue.Input) (*dialogue.Turn, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.limiter != nil {
		if err := s.limiter.Allow(id); err != nil {
			return nil, apperrors.Wrap(err, "chat.Begin", apperrors.CodeRateLimited, apperrors.ErrRateLimited.Message)
		}
	}
	if userAgent != "" {
		sess.UserAgent = userAgent
	}

	turn := s.engine.Begin(sess, in)
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, apperrors.WrapWithOp(err, "chat.Begin")
	}
	return turn, nil
}

func (s *ChatService) finish(ctx context.Context, id string, turn *dialogue.Turn, resp *ai.CompletionResponse, cerr error) ([]domain.Message, bool, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}

	replies, ok := s.engine.Finish(sess, turn, resp, cerr)
	if !ok {
		return nil, false, nil
	}
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, false, apperrors.WrapWithOp(err, "chat.Finish")
	}
	return replies, true, nil
}

func normalizePage(p domain.PageContext) domain.PageContext {
	p.Page = strings.TrimSpace(p.Page)
	p.URL = strings.TrimSpace(p.URL)
	if p.URL == "" {
		p.URL = "/"
	}
	return p
}

// sessionLocks hands out one mutex per session id, released when the last
// holder unlocks.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sessionLock)}
}

func (l *sessionLocks) lock(id string) func() {
	l.mu.Lock()
	sl, ok := l.locks[id]
	if !ok {
		sl = &sessionLock{}
		l.locks[id] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()
	return func() {
		sl.mu.Unlock()
		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *sessionLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
