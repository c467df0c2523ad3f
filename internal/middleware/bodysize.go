package middleware

import (
	"net/http"

	apperrors "github.com/tekkistudio/tekki-chat/internal/errors"
)

// DefaultMaxBodySize fits any chat message or lead with room to spare.
const DefaultMaxBodySize = 64 << 10

// BodySizeLimiter limits the size of request bodies.
func BodySizeLimiter(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodySize
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.ContentLength == 0 {
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength > maxBytes {
				writeErrorStatus(w, http.StatusRequestEntityTooLarge, apperrors.InvalidInput("request body too large"))
				return
			}
			// Also bounds chunked bodies with no Content-Length.
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
