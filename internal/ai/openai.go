package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/tekkistudio/tekki-chat/internal/config"
	apperrors "github.com/tekkistudio/tekki-chat/internal/errors"
)

// OpenAIClient calls the OpenAI Chat Completions API.
type OpenAIClient struct {
	provider
	apiKey  string
	model   string
	baseURL string
}

// NewOpenAIClient creates a new OpenAI client.
func NewOpenAIClient(cfg *config.OpenAIConfig, opts Options) *OpenAIClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIClient{
		provider: newProvider("openai", 0, opts),
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		baseURL:  baseURL,
	}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model          string          `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type openAIResponse struct {
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete asks the chat model for a JSON answer to the visitor message.
func (c *OpenAIClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	return c.call(ctx, func(ctx context.Context) (*CompletionResponse, error) {
		body := openAIRequest{
			Model: c.model,
			Messages: []openAIMessage{
				{Role: "system", Content: c.prompts.System(req)},
				{Role: "user", Content: req.Message},
			},
			Temperature: 0.4,
		}
		body.ResponseFormat.Type = "json_object"

		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

		respBody, status, err := c.do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("send request: %w", err)
		}

		var resp openAIResponse
		decodeErr := json.Unmarshal(respBody, &resp)
		if !isSuccess(status) {
			if decodeErr == nil && resp.Error != nil {
				return nil, fmt.Errorf("openai API error: %s - %s", resp.Error.Type, resp.Error.Message)
			}
			return nil, fmt.Errorf("openai API error: status %d", status)
		}
		if decodeErr != nil {
			return nil, apperrors.BadResponse(c.name, decodeErr)
		}
		if len(resp.Choices) == 0 {
			return rawResponse{}.normalize(), nil
		}

		c.logger.Debug("openai completion",
			zap.Int("prompt_tokens", resp.Usage.PromptTokens),
			zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		)
		return parseModelText(resp.Choices[0].Message.Content), nil
	})
}
