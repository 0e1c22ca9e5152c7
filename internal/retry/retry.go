package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"fieldjudge/internal/utils"

	"go.uber.org/zap"
)

// Config bounds the retry loop around judge calls.
type Config struct {
	// MaxAttempts is the total attempt ceiling, first call included.
	MaxAttempts int
	// BaseBackoff is the delay before the second attempt; it doubles per attempt.
	BaseBackoff time.Duration
	// MaxBackoff caps the exponential growth.
	MaxBackoff time.Duration
	// MaxJitter is the random slack added to every backoff.
	MaxJitter time.Duration
}

// Validate checks that the configuration has usable values.
func (c Config) Validate() error {
	if c.MaxAttempts < 1 {
		return errors.New("max attempts must be at least 1")
	}
	if c.BaseBackoff < 0 {
		return errors.New("base backoff cannot be negative")
	}
	if c.MaxBackoff < 0 {
		return errors.New("max backoff cannot be negative")
	}
	if c.MaxJitter < 0 {
		return errors.New("max jitter cannot be negative")
	}
	return nil
}

// DefaultConfig uses backoffs sized for quota-style rate limits, which need
// more recovery time than ordinary transient errors.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseBackoff: 1 * time.Second,
		MaxBackoff:  30 * time.Second,
		MaxJitter:   500 * time.Millisecond,
	}
}

// ExhaustedError wraps the last failure after the attempt ceiling was reached.
type ExhaustedError struct {
	Operation string
	Attempts  int
	Err       error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Operation, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Do executes fn with exponential backoff and jitter, retrying errors accepted
// by retryable until the attempt ceiling. It returns the result, the number of
// attempts actually made, and the terminal error if any.
func Do[T any](ctx context.Context, cfg Config, logger *zap.Logger, operation string, retryable func(error) bool, fn func(ctx context.Context) (T, error)) (T, int, error) {
	var result T
	var lastErr error

	attempts := 0
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		attempts++
		result, lastErr = fn(ctx)
		if lastErr == nil {
			return result, attempts, nil
		}

		if !retryable(lastErr) {
			return result, attempts, lastErr
		}

		if attempt == cfg.MaxAttempts-1 {
			break
		}

		backoff := min(cfg.BaseBackoff<<attempt, cfg.MaxBackoff)
		backoff += jitter(cfg.MaxJitter)

		logger.Warn("retrying after failure",
			zap.String("operation", operation),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", cfg.MaxAttempts),
			zap.Duration("backoff", backoff),
			zap.Error(lastErr),
		)

		if err := utils.WaitFor(ctx, backoff); err != nil {
			return result, attempts, err
		}
	}

	return result, attempts, &ExhaustedError{Operation: operation, Attempts: attempts, Err: lastErr}
}

func jitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0
	}
	return time.Duration(n.Int64())
}
