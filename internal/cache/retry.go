package cache

import (
	"context"
	"fmt"
	"math"
	"time"
)

const (
	maxRetries     = 3
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// RetryConfig holds retry configuration for connecting to a cache backend.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     maxRetries,
		InitialBackoff: initialBackoff,
		MaxBackoff:     maxBackoff,
	}
}

// calculateBackoff calculates exponential backoff duration
func calculateBackoff(attempt int, cfg RetryConfig) time.Duration {
	backoff := float64(cfg.InitialBackoff) * math.Pow(2, float64(attempt))
	if backoff > float64(cfg.MaxBackoff) {
		backoff = float64(cfg.MaxBackoff)
	}
	return time.Duration(backoff)
}

// retryWithBackoff calls fn until it succeeds, the attempts run out or ctx is done.
func retryWithBackoff(ctx context.Context, cfg RetryConfig, fn func(context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%w (last error: %v)", err, lastErr)
			}
			return err
		}

		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}

		// Don't wait after last attempt
		if attempt == cfg.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
		case <-time.After(calculateBackoff(attempt, cfg)):
		}
	}

	return fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, lastErr)
}
