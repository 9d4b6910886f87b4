package retry

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/scttfrdmn/productcache/pkg/errors"
)

func fastConfig() Config {
	config := DefaultConfig()
	config.MaxAttempts = 3
	config.InitialDelay = time.Millisecond
	config.Jitter = false
	return config
}

func TestRetryer_Success(t *testing.T) {
	retryer := New(fastConfig())

	attempts := 0
	err := retryer.Do(context.Background(), func(context.Context) error {
		attempts++
		return nil
	})

	if err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

func TestRetryer_RetryableError(t *testing.T) {
	retryer := New(fastConfig())

	attempts := 0
	err := retryer.Do(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.NewError(errors.ErrCodeStoreRead, "connection reset")
		}
		return nil
	})

	if err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetryer_NonRetryableError(t *testing.T) {
	retryer := New(fastConfig())

	attempts := 0
	err := retryer.Do(context.Background(), func(context.Context) error {
		attempts++
		return errors.NewError(errors.ErrCodeValidationFailed, "bad product")
	})

	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
	if errors.CodeOf(err) != errors.ErrCodeValidationFailed {
		t.Errorf("Expected validation error returned unchanged, got %v", err)
	}
}

func TestRetryer_PlainErrorNotRetried(t *testing.T) {
	retryer := New(fastConfig())

	attempts := 0
	_ = retryer.Do(context.Background(), func(context.Context) error {
		attempts++
		return fmt.Errorf("boom")
	})

	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

func TestRetryer_Exhausted(t *testing.T) {
	retryer := New(fastConfig())

	attempts := 0
	err := retryer.Do(context.Background(), func(context.Context) error {
		attempts++
		return errors.NewError(errors.ErrCodeStoreWrite, "write failed")
	})

	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	if !errors.HasCode(err, errors.ErrCodeStoreWrite) {
		t.Errorf("Expected last error to stay in the chain, got %v", err)
	}
}

func TestRetryer_CancelledCauseNotRetried(t *testing.T) {
	retryer := New(fastConfig())

	attempts := 0
	err := retryer.Do(context.Background(), func(context.Context) error {
		attempts++
		return errors.Wrap(context.Canceled, errors.ErrCodeStoreRead, "store read cancelled")
	})

	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled in chain, got %v", err)
	}
}

func TestRetryer_ContextCancelledDuringBackoff(t *testing.T) {
	config := fastConfig()
	config.InitialDelay = time.Hour
	config.MaxDelay = time.Hour
	retryer := New(config)

	ctx, cancel := context.WithCancel(context.Background())
	err := retryer.Do(ctx, func(context.Context) error {
		cancel()
		return errors.NewError(errors.ErrCodeStoreRead, "connection reset")
	})

	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestRetryer_OnRetry(t *testing.T) {
	var delays []time.Duration
	retryer := New(fastConfig()).WithOnRetry(func(attempt int, err error, delay time.Duration) {
		delays = append(delays, delay)
	})

	_ = retryer.Do(context.Background(), func(context.Context) error {
		return errors.NewError(errors.ErrCodeStoreRead, "connection reset")
	})

	if len(delays) != 2 {
		t.Fatalf("Expected 2 retries, got %d", len(delays))
	}
	if delays[0] != time.Millisecond || delays[1] != 2*time.Millisecond {
		t.Errorf("Expected exponential delays, got %v", delays)
	}
}

func TestCalculateDelay_Capped(t *testing.T) {
	config := fastConfig()
	config.InitialDelay = 100 * time.Millisecond
	config.MaxDelay = 300 * time.Millisecond
	retryer := New(config)

	if d := retryer.calculateDelay(5); d != 300*time.Millisecond {
		t.Errorf("Expected delay capped at 300ms, got %v", d)
	}
}

func TestNew_Defaults(t *testing.T) {
	retryer := New(Config{})
	defaults := DefaultConfig()

	if retryer.config.MaxAttempts != defaults.MaxAttempts {
		t.Errorf("Expected MaxAttempts %d, got %d", defaults.MaxAttempts, retryer.config.MaxAttempts)
	}
	if len(retryer.config.RetryableErrors) != 2 {
		t.Errorf("Expected store error codes to be retryable by default, got %v", retryer.config.RetryableErrors)
	}
}
