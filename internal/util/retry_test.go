package util

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"
)

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "ETIMEDOUT",
			err:      syscall.ETIMEDOUT,
			expected: true,
		},
		{
			name:     "ECONNRESET",
			err:      syscall.ECONNRESET,
			expected: true,
		},
		{
			name:     "ENOENT (not retryable)",
			err:      syscall.ENOENT,
			expected: false,
		},
		{
			name:     "transient wrapper",
			err:      &TransientError{Err: errors.New("status 503")},
			expected: true,
		},
		{
			name:     "wrapped transient wrapper",
			err:      fmt.Errorf("playlist page: %w", &TransientError{Err: errors.New("status 429")}),
			expected: true,
		},
		{
			name:     "timeout in error message",
			err:      errors.New("connection timeout"),
			expected: true,
		},
		{
			name:     "connection reset in message",
			err:      errors.New("read tcp: connection reset by peer"),
			expected: true,
		},
		{
			name:     "context canceled",
			err:      fmt.Errorf("request: %w", context.Canceled),
			expected: false,
		},
		{
			name:     "generic error (not retryable)",
			err:      errors.New("unexpected status code 404"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsRetryableError(tt.err)
			if result != tt.expected {
				t.Errorf("IsRetryableError(%v) = %v, expected %v",
					tt.err, result, tt.expected)
			}
		})
	}
}

func testRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 3,
		InitialWait: 10 * time.Millisecond,
		MaxWait:     100 * time.Millisecond,
	}
}

func TestRetryWithBackoff_ImmediateSuccess(t *testing.T) {
	attempts := 0

	result, err := RetryWithBackoff(context.Background(), testRetryConfig(), func() (int, error) {
		attempts++
		return 42, nil
	}, "test operation")

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if result != 42 {
		t.Errorf("Expected result 42, got: %d", result)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got: %d", attempts)
	}
}

func TestRetryWithBackoff_SuccessAfterRetries(t *testing.T) {
	attempts := 0

	result, err := RetryWithBackoff(context.Background(), testRetryConfig(), func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", syscall.ETIMEDOUT
		}
		return "success", nil
	}, "test operation")

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if result != "success" {
		t.Errorf("Expected result 'success', got: %s", result)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got: %d", attempts)
	}
}

func TestRetryWithBackoff_FailureAfterMaxRetries(t *testing.T) {
	attempts := 0
	cause := &TransientError{Err: errors.New("status 503")}

	_, err := RetryWithBackoff(context.Background(), testRetryConfig(), func() (int, error) {
		attempts++
		return 0, cause
	}, "test operation")

	if err == nil {
		t.Fatal("Expected error after max retries, got nil")
	}
	if !errors.Is(err, cause) {
		t.Errorf("Expected final error to wrap the cause, got: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts (max), got: %d", attempts)
	}
}

func TestRetryWithBackoff_NonRetryableError(t *testing.T) {
	attempts := 0
	cause := errors.New("unexpected status code 404")

	_, err := RetryWithBackoff(context.Background(), testRetryConfig(), func() (int, error) {
		attempts++
		return 0, cause
	}, "test operation")

	if err != cause {
		t.Errorf("Expected the original error unchanged, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt (no retry for non-retryable), got: %d", attempts)
	}
}

func TestRetryWithBackoff_ContextCanceledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	cfg := &RetryConfig{
		MaxAttempts: 5,
		InitialWait: time.Hour,
		MaxWait:     time.Hour,
	}

	_, err := RetryWithBackoff(ctx, cfg, func() (int, error) {
		attempts++
		cancel()
		return 0, syscall.ETIMEDOUT
	}, "test operation")

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt before cancellation, got: %d", attempts)
	}
}

func TestRetry_NoValue(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), testRetryConfig(), func() error {
		attempts++
		if attempts == 1 {
			return syscall.ECONNRESET
		}
		return nil
	}, "test operation")

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got: %d", attempts)
	}
}

func TestRetryWithBackoff_HonorsRetryAfter(t *testing.T) {
	cfg := &RetryConfig{
		MaxAttempts: 2,
		InitialWait: time.Hour,
		MaxWait:     time.Hour,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	attempts := 0
	start := time.Now()
	result, err := RetryWithBackoff(ctx, cfg, func() (int, error) {
		attempts++
		if attempts == 1 {
			return 0, &TransientError{Err: errors.New("429"), RetryAfter: 10 * time.Millisecond}
		}
		return 7, nil
	}, "test")

	if err != nil || result != 7 {
		t.Fatalf("expected 7, nil after the hinted wait, got %d, %v", result, err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("expected the RetryAfter hint to replace the backoff, waited %v", elapsed)
	}
}
