package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	apperrors "github.com/tekkistudio/tekki-chat/internal/errors"
)

// HTTPCompleter posts the completion contract to a remote endpoint.
type HTTPCompleter struct {
	provider
	url string
}

// NewHTTPCompleter creates a completer for the endpoint at url.
func NewHTTPCompleter(url string, timeout time.Duration, opts Options) *HTTPCompleter {
	return &HTTPCompleter{provider: newProvider("remote", timeout, opts), url: url}
}

// Complete posts req. A non-2xx status or a body that is not JSON fails the
// call; a JSON body without content gets DefaultContent.
func (c *HTTPCompleter) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	return c.call(ctx, func(ctx context.Context) (*CompletionResponse, error) {
		body, err := json.Marshal(req)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "application/json")

		respBody, status, err := c.do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("send request: %w", err)
		}
		if !isSuccess(status) {
			return nil, fmt.Errorf("completion endpoint returned status %d", status)
		}

		var raw rawResponse
		if err := json.Unmarshal(respBody, &raw); err != nil {
			return nil, apperrors.BadResponse(c.name, err)
		}
		return raw.normalize(), nil
	})
}
