package gemini

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/easybewerbung/bewerbung-api/internal/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeModels struct {
	resp      *genai.GenerateContentResponse
	err       error
	gotModel  string
	gotPrompt string
}

func (f *fakeModels) GenerateContent(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	f.gotModel = model
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.gotPrompt = contents[0].Parts[0].Text
	}
	return f.resp, f.err
}

func textResponse(text string, reason genai.FinishReason) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			FinishReason: reason,
			Content: &genai.Content{
				Role:  "model",
				Parts: []*genai.Part{{Text: text}},
			},
		}},
	}
}

func newFakeClient(f *fakeModels) *Client {
	return newClient(f, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCompleteSuccess(t *testing.T) {
	t.Parallel()

	f := &fakeModels{resp: textResponse("Sehr geehrte Damen und Herren", genai.FinishReasonStop)}

	got, err := newFakeClient(f).Complete(context.Background(), "gemini-2.0-flash", "Schreibe")

	require.NoError(t, err)
	assert.Equal(t, "Sehr geehrte Damen und Herren", got)
	assert.Equal(t, "gemini-2.0-flash", f.gotModel)
	assert.Equal(t, "Schreibe", f.gotPrompt)
}

func TestCompleteSafetyStop(t *testing.T) {
	t.Parallel()

	f := &fakeModels{resp: textResponse("", genai.FinishReasonSafety)}

	_, err := newFakeClient(f).Complete(context.Background(), "gemini-2.0-flash", "prompt")

	assert.ErrorIs(t, err, generation.ErrContentRejected)
}

func TestCompletePromptBlocked(t *testing.T) {
	t.Parallel()

	f := &fakeModels{resp: &genai.GenerateContentResponse{
		PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: genai.BlockedReasonProhibitedContent},
	}}

	_, err := newFakeClient(f).Complete(context.Background(), "gemini-2.0-flash", "prompt")

	assert.ErrorIs(t, err, generation.ErrContentRejected)
}

func TestCompleteNoCandidates(t *testing.T) {
	t.Parallel()

	f := &fakeModels{resp: &genai.GenerateContentResponse{}}

	_, err := newFakeClient(f).Complete(context.Background(), "gemini-2.0-flash", "prompt")

	assert.ErrorIs(t, err, generation.ErrProviderFatal)
}

func TestCompleteAPIErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"quota", genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED"}, generation.ErrRateLimited},
		{"unavailable", genai.APIError{Code: 503, Status: "UNAVAILABLE"}, generation.ErrProviderUnavailable},
		{"internal", genai.APIError{Code: 500, Status: "INTERNAL"}, generation.ErrProviderUnavailable},
		{"not found", genai.APIError{Code: 404, Status: "NOT_FOUND"}, generation.ErrInvalidModel},
		{"invalid argument", genai.APIError{Code: 400, Status: "INVALID_ARGUMENT"}, generation.ErrProviderFatal},
		{"permission", genai.APIError{Code: 403, Status: "PERMISSION_DENIED"}, generation.ErrProviderFatal},
		{"deadline", context.DeadlineExceeded, generation.ErrProviderUnavailable},
		{"network", errors.New("dial tcp: connection refused"), generation.ErrProviderUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := &fakeModels{err: tt.err}

			_, err := newFakeClient(f).Complete(context.Background(), "gemini-2.0-flash", "prompt")

			assert.ErrorIs(t, err, tt.want)
			assert.False(t, errors.Is(err, tt.err), "sdk error must not leak through the adapter")
		})
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	t.Parallel()

	_, err := NewClient(context.Background(), Config{}, nil)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}
