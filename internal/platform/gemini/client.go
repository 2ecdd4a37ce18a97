// Package gemini implements the generation.Client for Google's Gemini API
// using the google.golang.org/genai SDK.
package gemini

import (
	"context"
	"errors"
	"log/slog"

	"github.com/easybewerbung/bewerbung-api/internal/domain"
	"github.com/easybewerbung/bewerbung-api/internal/generation"
	"google.golang.org/genai"
)

// ErrMissingAPIKey is returned by NewClient when no key is configured.
var ErrMissingAPIKey = errors.New("google api key is required")

// contentGenerator is the subset of *genai.Models used by Client.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Config holds the connection settings for the Gemini API.
type Config struct {
	APIKey string
	// BaseURL overrides the API endpoint; empty uses the SDK default.
	BaseURL string
}

// Client adapts the genai SDK to generation.Client.
type Client struct {
	models contentGenerator
	logger *slog.Logger
}

// NewClient creates a Client backed by the Gemini API.
func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	sdk, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, err
	}

	return newClient(sdk.Models, logger), nil
}

func newClient(models contentGenerator, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		models: models,
		logger: logger.With("component", "gemini_client"),
	}
}

// Complete sends prompt as a single user turn.
func (c *Client) Complete(ctx context.Context, model, prompt string) (string, error) {
	resp, err := c.models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		c.logger.WarnContext(ctx, "gemini call failed", "model", model, "error", err)
		return "", classify(model, err)
	}
	if resp == nil {
		return "", generation.NewProviderError(domain.ProviderGoogle, model, generation.ErrProviderFatal, 0, "nil response")
	}

	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		return "", generation.NewProviderError(domain.ProviderGoogle, model, generation.ErrContentRejected, 0,
			"prompt blocked: "+string(fb.BlockReason))
	}
	if len(resp.Candidates) == 0 {
		return "", generation.NewProviderError(domain.ProviderGoogle, model, generation.ErrProviderFatal, 0, "no candidates returned")
	}

	switch reason := resp.Candidates[0].FinishReason; reason {
	case genai.FinishReasonSafety,
		genai.FinishReasonProhibitedContent,
		genai.FinishReasonBlocklist,
		genai.FinishReasonSPII,
		genai.FinishReasonRecitation:
		return "", generation.NewProviderError(domain.ProviderGoogle, model, generation.ErrContentRejected, 0,
			"generation stopped: "+string(reason))
	}

	text := resp.Text()
	if text == "" {
		return "", generation.NewProviderError(domain.ProviderGoogle, model, generation.ErrProviderFatal, 0, "empty content in response")
	}
	return text, nil
}

// classify maps SDK errors onto the shared taxonomy. The SDK returns
// genai.APIError by value for non-2xx responses.
func classify(model string, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		kind := generation.KindFromStatus(apiErr.Code)
		switch apiErr.Status {
		case "RESOURCE_EXHAUSTED":
			kind = generation.ErrRateLimited
		case "UNAVAILABLE", "DEADLINE_EXCEEDED", "INTERNAL":
			kind = generation.ErrProviderUnavailable
		case "NOT_FOUND":
			kind = generation.ErrInvalidModel
		}
		return generation.NewProviderError(domain.ProviderGoogle, model, kind, apiErr.Code, apiErr.Message)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return generation.NewProviderError(domain.ProviderGoogle, model, generation.ErrProviderUnavailable, 0, "request timed out")
	}
	if errors.Is(err, context.Canceled) {
		return generation.NewProviderError(domain.ProviderGoogle, model, generation.ErrProviderUnavailable, 0, "request cancelled")
	}
	return generation.NewProviderError(domain.ProviderGoogle, model, generation.ErrProviderUnavailable, 0, "transport error")
}
