// Package anthropic implements the generation.Client for the Anthropic
// Messages API.
package anthropic

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

const (
	apiVersion       = "2023-06-01"
	defaultMaxTokens = 4096
	statusOverloaded = 529
)

// ErrMissingAPIKey is returned by NewClient when no key is configured.
var ErrMissingAPIKey = errors.New("anthropic api key is required")

// Config holds the connection settings for the Anthropic API.
type Config struct {
	APIKey    string
	BaseURL   string
	MaxTokens int
}

// Client calls POST {BaseURL}/messages.
type Client struct {
	http      *resty.Client
	maxTokens int
	logger    *slog.Logger
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

// NewClient creates a Client.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com/v1"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("x-api-key", cfg.APIKey).
		SetHeader("anthropic-version", apiVersion).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:      httpClient,
		maxTokens: cfg.MaxTokens,
		logger:    logger.With("component", "anthropic_client"),
	}, nil
}

// Complete sends prompt as a single user turn and joins the text blocks of
// the reply.
func (c *Client) Complete(ctx context.Context, model, prompt string) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(messagesRequest{
			Model:     model,
			MaxTokens: c.maxTokens,
			Messages:  []message{{Role: "user", Content: prompt}},
		}).
		Post("/messages")
	if err != nil {
		c.logger.WarnContext(ctx, "anthropic transport error", "model", model, "error", err)
		msg := "transport error"
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "request timed out"
		}
		return "", generation.NewProviderError(domain.ProviderAnthropic, model, generation.ErrProviderUnavailable, 0, msg)
	}

	body := resp.String()
	if resp.IsError() {
		return "", classify(model, resp.StatusCode(), body)
	}

	if gjson.Get(body, "stop_reason").String() == "refusal" {
		return "", generation.NewProviderError(domain.ProviderAnthropic, model, generation.ErrContentRejected,
			resp.StatusCode(), "model refused the request")
	}

	var parts []string
	gjson.Get(body, "content").ForEach(func(_, block gjson.Result) bool {
		if block.Get("type").String() == "text" {
			parts = append(parts, block.Get("text").String())
		}
		return true
	})
	if len(parts) == 0 {
		return "", generation.NewProviderError(domain.ProviderAnthropic, model, generation.ErrProviderFatal,
			resp.StatusCode(), "response has no text content")
	}
	return strings.Join(parts, ""), nil
}

// classify maps an Anthropic error response onto the shared taxonomy.
func classify(model string, status int, body string) error {
	errType := gjson.Get(body, "error.type").String()
	message := gjson.Get(body, "error.message").String()

	kind := generation.KindFromStatus(status)
	switch errType {
	case "rate_limit_error":
		kind = generation.ErrRateLimited
	case "overloaded_error", "api_error":
		kind = generation.ErrProviderUnavailable
	case "not_found_error":
		kind = generation.ErrInvalidModel
	case "invalid_request_error", "authentication_error", "permission_error", "request_too_large":
		kind = generation.ErrProviderFatal
	}
	if status == statusOverloaded {
		kind = generation.ErrProviderUnavailable
	}

	return generation.NewProviderError(domain.ProviderAnthropic, model, kind, status, message)
}
