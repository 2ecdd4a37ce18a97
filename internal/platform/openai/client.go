// Package openai implements the generation.Client for the OpenAI chat
// completions API.
package openai

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/easybewerbung/bewerbung-api/internal/domain"
	"github.com/easybewerbung/bewerbung-api/internal/generation"
	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

// ErrMissingAPIKey is returned by NewClient when no key is configured.
var ErrMissingAPIKey = errors.New("openai api key is required")

// Config holds the connection settings for the OpenAI API.
type Config struct {
	APIKey  string
	BaseURL string
}

// Client calls POST {BaseURL}/chat/completions.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

// NewClient creates a Client.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:   httpClient,
		logger: logger.With("component", "openai_client"),
	}, nil
}

// Complete sends prompt as a single user message.
func (c *Client) Complete(ctx context.Context, model, prompt string) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model:    model,
			Messages: []chatMessage{{Role: "user", Content: prompt}},
		}).
		Post("/chat/completions")
	if err != nil {
		c.logger.WarnContext(ctx, "openai transport error", "model", model, "error", err)
		msg := "transport error"
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "request timed out"
		}
		return "", generation.NewProviderError(domain.ProviderOpenAI, model, generation.ErrProviderUnavailable, 0, msg)
	}

	body := resp.String()
	if resp.IsError() {
		return "", classify(model, resp.StatusCode(), body)
	}

	if gjson.Get(body, "choices.0.finish_reason").String() == "content_filter" {
		return "", generation.NewProviderError(domain.ProviderOpenAI, model, generation.ErrContentRejected,
			resp.StatusCode(), "completion stopped by content filter")
	}

	content := gjson.Get(body, "choices.0.message.content")
	if !content.Exists() {
		if refusal := gjson.Get(body, "choices.0.message.refusal"); refusal.Exists() && refusal.String() != "" {
			return "", generation.NewProviderError(domain.ProviderOpenAI, model, generation.ErrContentRejected,
				resp.StatusCode(), refusal.String())
		}
		return "", generation.NewProviderError(domain.ProviderOpenAI, model, generation.ErrProviderFatal,
			resp.StatusCode(), "response has no message content")
	}
	return content.String(), nil
}

// classify maps an OpenAI error response onto the shared taxonomy.
func classify(model string, status int, body string) error {
	code := gjson.Get(body, "error.code").String()
	errType := gjson.Get(body, "error.type").String()
	message := gjson.Get(body, "error.message").String()

	kind := generation.KindFromStatus(status)
	switch {
	case code == "insufficient_quota" || errType == "insufficient_quota":
		kind = generation.ErrProviderFatal
	case code == "rate_limit_exceeded":
		kind = generation.ErrRateLimited
	case code == "model_not_found":
		kind = generation.ErrInvalidModel
	case code == "content_policy_violation" || code == "content_filter":
		kind = generation.ErrContentRejected
	case status == 404:
		// A 404 without a model code is a bad URL, not a bad model.
		kind = generation.ErrProviderFatal
	}

	return generation.NewProviderError(domain.ProviderOpenAI, model, kind, status, message)
}
