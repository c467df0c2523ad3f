package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tekkistudio/tekki-chat/internal/ai"
	apperrors "github.com/tekkistudio/tekki-chat/internal/errors"
)

// CompletionHandler serves the completion contract to other deployments.
// Its completer must never include the remote provider, or a misconfigured
// pair of services would call each other forever.
type CompletionHandler struct {
	completer ai.Completer
	maxLength int
	logger    *zap.Logger
}

// NewCompletionHandler creates a CompletionHandler.
func NewCompletionHandler(completer ai.Completer, maxMessageLength int, logger *zap.Logger) *CompletionHandler {
	if logger == nil {
		panic("logger is required")
	}
	return &CompletionHandler{
		completer: completer,
		maxLength: maxMessageLength,
		logger:    logger.Named("completion_handler"),
	}
}

// RegisterRoutes registers the completion route on r.
func (h *CompletionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/chat/complete", h.HandleComplete)
}

// HandleComplete answers one message with the configured providers.
func (h *CompletionHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	var req ai.CompletionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	req.Message = strings.TrimSpace(req.Message)
	switch {
	case req.Message == "":
		respondError(w, r, h.logger, apperrors.InvalidInput("message is required"))
		return
	case h.maxLength > 0 && len([]rune(req.Message)) > h.maxLength:
		respondError(w, r, h.logger, apperrors.InvalidInput("message is too long"))
		return
	}

	if h.completer == nil {
		respondError(w, r, h.logger, apperrors.ErrLLMUnavailable)
		return
	}
	resp, err := h.completer.Complete(r.Context(), &req)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if resp.Suggestions == nil {
		resp.Suggestions = []string{}
	}
	JSONWithRequest(w, r, http.StatusOK, resp)
}
