package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/easybewerbung/bewerbung-api/internal/domain"
)

// Client is implemented by each provider adapter. Implementations return
// the generated text, or a *ProviderError classified into the shared taxonomy.
type Client interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
}

// Invoker is the operation consumed by the task layer.
type Invoker interface {
	Invoke(ctx context.Context, provider domain.Provider, model, prompt string) (string, error)
}

// RetryPolicy bounds retries of transient failures.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// Timeout applies to each attempt separately.
	Timeout time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     3,
		InitialBackoff: time.Second,
		MaxBackoff:     20 * time.Second,
		Timeout:        90 * time.Second,
	}
}

// Dispatcher routes prompts to the configured provider clients.
type Dispatcher struct {
	clients map[domain.Provider]Client
	policy  RetryPolicy
	logger  *slog.Logger

	mu    sync.Mutex
	rng   *rand.Rand
	sleep func(ctx context.Context, d time.Duration) error
}

// NewDispatcher creates a Dispatcher. Providers absent from clients are
// rejected at Invoke.
func NewDispatcher(clients map[domain.Provider]Client, policy RetryPolicy, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.InitialBackoff <= 0 {
		policy.InitialBackoff = time.Second
	}
	if policy.MaxBackoff < policy.InitialBackoff {
		policy.MaxBackoff = policy.InitialBackoff
	}
	if policy.Timeout <= 0 {
		policy.Timeout = DefaultRetryPolicy().Timeout
	}

	registered := make(map[domain.Provider]Client, len(clients))
	for p, c := range clients {
		if c != nil {
			registered[p] = c
		}
	}

	return &Dispatcher{
		clients: registered,
		policy:  policy,
		logger:  logger.With("component", "llm_dispatcher"),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:   sleepContext,
	}
}

// Invoke runs prompt on provider/model. The pair is validated against the
// allow-list before any network call. Rate limits and unavailability are
// retried with exponential backoff and jitter; every other kind is returned
// immediately.
func (d *Dispatcher) Invoke(ctx context.Context, provider domain.Provider, model, prompt string) (string, error) {
	if err := ValidateModel(provider, model); err != nil {
		return "", NewProviderError(provider, model, ErrInvalidModel, 0, err.Error())
	}
	client, ok := d.clients[provider]
	if !ok {
		return "", NewProviderError(provider, model, ErrProviderFatal, 0, "provider is not configured")
	}
	if strings.TrimSpace(prompt) == "" {
		return "", NewProviderError(provider, model, ErrProviderFatal, 0, "empty prompt")
	}

	log := d.logger.With("provider", provider, "model", model)
	maxAttempts := d.policy.MaxRetries + 1

	for attempt := 0; ; attempt++ {
		log.DebugContext(ctx, "invoking provider", "attempt", attempt+1, "max_attempts", maxAttempts)

		content, err := d.call(ctx, client, provider, model, prompt)
		if err == nil {
			if attempt > 0 {
				log.InfoContext(ctx, "provider call succeeded after retry", "attempt", attempt+1)
			}
			return content, nil
		}

		if !IsRetryable(err) {
			log.WarnContext(ctx, "provider call failed permanently", "attempt", attempt+1, "error", err)
			return "", err
		}
		if attempt+1 >= maxAttempts {
			log.WarnContext(ctx, "maximum retry attempts reached", "attempts", maxAttempts, "error", err)
			return "", err
		}

		delay := d.backoff(attempt)
		log.InfoContext(ctx, "retrying provider call after delay",
			"attempt", attempt+1,
			"delay", delay.String(),
			"error", err)

		if sleepErr := d.sleep(ctx, delay); sleepErr != nil {
			return "", NewProviderError(provider, model, ErrProviderUnavailable, 0,
				"cancelled while waiting to retry")
		}
	}
}

// call performs one attempt under its own timeout and guarantees the
// returned error is a *ProviderError.
func (d *Dispatcher) call(ctx context.Context, client Client, provider domain.Provider, model, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.policy.Timeout)
	defer cancel()

	content, err := client.Complete(callCtx, model, prompt)
	if err != nil {
		var pe *ProviderError
		if errors.As(err, &pe) {
			return "", pe
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", NewProviderError(provider, model, ErrProviderUnavailable, 0, "request timed out")
		}
		d.logger.ErrorContext(ctx, "provider client returned an unclassified error",
			"provider", provider, "error", err)
		return "", NewProviderError(provider, model, ErrProviderFatal, 0, "unexpected provider error")
	}
	if strings.TrimSpace(content) == "" {
		return "", NewProviderError(provider, model, ErrProviderFatal, 0, "empty response")
	}
	return content, nil
}

// backoff computes initial * 2^attempt scaled by a jitter factor in
// [0.5, 1.0), capped at MaxBackoff.
func (d *Dispatcher) backoff(attempt int) time.Duration {
	d.mu.Lock()
	jitter := 0.5 + d.rng.Float64()*0.5
	d.mu.Unlock()

	base := float64(d.policy.InitialBackoff) * math.Pow(2, float64(attempt))
	delay := time.Duration(base * jitter)
	if delay > d.policy.MaxBackoff {
		delay = d.policy.MaxBackoff
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sleep interrupted: %w", ctx.Err())
	}
}
