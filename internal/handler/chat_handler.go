package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tekkistudio/tekki-chat/internal/domain"
	apperrors "github.com/tekkistudio/tekki-chat/internal/errors"
	"github.com/tekkistudio/tekki-chat/internal/service"
	"github.com/tekkistudio/tekki-chat/internal/validation"
)

// ChatService is the chat use case the handlers drive.
type ChatService interface {
	Create(ctx context.Context, userAgent string) (*domain.Session, error)
	Get(ctx context.Context, id string) (*domain.Session, error)
	MessagesAfter(ctx context.Context, id string, after int64) ([]domain.Message, error)
	Send(ctx context.Context, id string, in service.MessageInput) (*service.TurnResult, error)
	Action(ctx context.Context, id string, in service.ActionInput) (*service.TurnResult, error)
}

// ChatHandler serves the session API.
type ChatHandler struct {
	chat   ChatService
	logger *zap.Logger
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(chat ChatService, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		panic("logger is required")
	}
	return &ChatHandler{chat: chat, logger: logger.Named("chat_handler")}
}

// RegisterRoutes registers the session routes on r.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/chat/sessions", func(r chi.Router) {
		r.Post("/", h.HandleCreateSession)
		r.Get("/{id}", h.HandleGetSession)
		r.Post("/{id}/messages", h.HandleSendMessage)
		r.Get("/{id}/messages", h.HandleListMessages)
		r.Post("/{id}/actions", h.HandleAction)
	})
}

// HandleCreateSession starts a session and returns it with the welcome
// message.
func (h *ChatHandler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.chat.Create(r.Context(), r.UserAgent())
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	JSONWithRequest(w, r, http.StatusCreated, newSessionResponse(sess))
}

// HandleGetSession returns the session with its funnel and state.
func (h *ChatHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.chat.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	JSONWithRequest(w, r, http.StatusOK, newSessionResponse(sess))
}

// HandleSendMessage runs a turn for a typed message.
func (h *ChatHandler) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	result, err := h.chat.Send(r.Context(), chi.URLParam(r, "id"), service.MessageInput{
		Content:   req.Content,
		Page:      req.Context.toDomain(),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	JSONWithRequest(w, r, http.StatusOK, result)
}

// HandleAction runs a turn for a suggestion chip click.
func (h *ChatHandler) HandleAction(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	result, err := h.chat.Action(r.Context(), chi.URLParam(r, "id"), req.toInput(r.UserAgent()))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	JSONWithRequest(w, r, http.StatusOK, result)
}

// HandleListMessages returns the messages after the ?after= cursor.
func (h *ChatHandler) HandleListMessages(w http.ResponseWriter, r *http.Request) {
	after, err := validation.ParseCursor(r.URL.Query().Get("after"))
	if err != nil {
		respondError(w, r, h.logger, apperrors.InvalidInput(err.Error()))
		return
	}

	messages, err := h.chat.MessagesAfter(r.Context(), chi.URLParam(r, "id"), after)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	JSONWithRequest(w, r, http.StatusOK, newMessagesResponse(messages, after))
}
