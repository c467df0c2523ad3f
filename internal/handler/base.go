// Package handler provides the HTTP and websocket handlers of the chat API.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/tekkistudio/tekki-chat/internal/audit"
	apperrors "github.com/tekkistudio/tekki-chat/internal/errors"
	"github.com/tekkistudio/tekki-chat/internal/middleware"
)

// JSON writes a JSON response with the appropriate headers.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// JSONWithRequest writes a JSON response, including the request ID header.
func JSONWithRequest(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if reqID := middleware.GetRequestID(r.Context()); reqID != "" {
		w.Header().Set(middleware.RequestIDHeader, reqID)
	}
	JSON(w, status, data)
}

// respondError maps err to its HTTP status and the API error body. Server
// side failures are logged; their cause never reaches the client.
func respondError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		appErr = apperrors.InternalError("internal server error", err)
	}

	status := appErr.HTTPStatus()
	log := middleware.LoggerWithCorrelation(r.Context(), logger)
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("code", string(appErr.Code)),
			zap.Error(err),
		)
	} else {
		log.Debug("request rejected",
			zap.String("path", r.URL.Path),
			zap.String("code", string(appErr.Code)),
			zap.String("message", appErr.Message),
		)
	}

	JSONWithRequest(w, r, status, appErr.ToResponse())
}

// decodeJSON reads a JSON body into dst. Unknown fields are ignored so older
// widgets keep working.
func decodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return apperrors.InvalidInput("request body is required")
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		return apperrors.InvalidInput("request body is required")
	default:
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperrors.InvalidInput("request body too large")
		}
		return apperrors.InvalidInput("invalid JSON body")
	}
}

// auditSource describes the caller of r for the audit trail. RemoteAddr has
// already been rewritten by the real IP middleware.
func auditSource(r *http.Request) audit.Source {
	return audit.Source{
		IP:        r.RemoteAddr,
		UserAgent: r.UserAgent(),
		RequestID: middleware.GetRequestID(r.Context()),
	}
}
