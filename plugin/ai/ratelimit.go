package ai

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// retryWithBackoff runs fn until it succeeds, returns a non-retryable error,
// or MaxRetries attempts are spent. The delay grows by Multiplier up to MaxDelay.
func retryWithBackoff[T any](ctx context.Context, cfg RateLimitConfig, op string, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := cfg.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}
	backoff := cfg.BaseDelay

	for attempt := 0; attempt < attempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if !isRetryable(err) {
			return zero, err
		}

		if attempt < attempts-1 {
			slog.Debug("AI request failed, retrying",
				"op", op,
				"attempt", attempt+1,
				"wait_time", backoff,
				"error", err)
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff):
			}
			if cfg.Multiplier > 1 {
				backoff = time.Duration(float64(backoff) * cfg.Multiplier)
			}
			if cfg.MaxDelay > 0 && backoff > cfg.MaxDelay {
				backoff = cfg.MaxDelay
			}
		}
	}

	return zero, lastErr
}

// isRetryable reports whether an error may succeed on a later attempt.
// Client errors other than 408 and 429 are permanent.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	if status >= 400 && status < 500 {
		return status == http.StatusRequestTimeout || status == http.StatusTooManyRequests
	}
	return true
}

func newLimiter(cfg RateLimitConfig) *rate.Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
}

type rateLimitedLLMService struct {
	inner   LLMService
	limiter *rate.Limiter
	cfg     RateLimitConfig
}

// NewRateLimitedLLMService wraps an LLMService with a token bucket and
// exponential-backoff retries.
func NewRateLimitedLLMService(inner LLMService, cfg RateLimitConfig) LLMService {
	return &rateLimitedLLMService{
		inner:   inner,
		limiter: newLimiter(cfg),
		cfg:     cfg,
	}
}

func (s *rateLimitedLLMService) Chat(ctx context.Context, messages []Message) (string, error) {
	return retryWithBackoff(ctx, s.cfg, "chat", func() (string, error) {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", err
		}
		return s.inner.Chat(ctx, messages)
	})
}

type rateLimitedEmbeddingService struct {
	inner   EmbeddingService
	limiter *rate.Limiter
	cfg     RateLimitConfig
}

// NewRateLimitedEmbeddingService wraps an EmbeddingService with a token
// bucket and exponential-backoff retries.
func NewRateLimitedEmbeddingService(inner EmbeddingService, cfg RateLimitConfig) EmbeddingService {
	return &rateLimitedEmbeddingService{
		inner:   inner,
		limiter: newLimiter(cfg),
		cfg:     cfg,
	}
}

func (s *rateLimitedEmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	return retryWithBackoff(ctx, s.cfg, "embed", func() ([]float32, error) {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return s.inner.Embed(ctx, text)
	})
}

func (s *rateLimitedEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return retryWithBackoff(ctx, s.cfg, "embed_batch", func() ([][]float32, error) {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return s.inner.EmbedBatch(ctx, texts)
	})
}

func (s *rateLimitedEmbeddingService) Dimensions() int {
	return s.inner.Dimensions()
}
