package client

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    5 * time.Millisecond,
		MaxBackoff:        20 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func serverErr() error {
	return &NetworkError{URL: "https://swapi.dev/api/people/1/", StatusCode: 500, ErrorClass: ErrorClassServer, Message: "Internal Server Error"}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxAttempts != 1 {
		t.Errorf("MaxAttempts = %d, want 1", config.MaxAttempts)
	}
	if config.InitialBackoff != 1*time.Second {
		t.Errorf("InitialBackoff = %v, want 1s", config.InitialBackoff)
	}
	if config.MaxBackoff != 30*time.Second {
		t.Errorf("MaxBackoff = %v, want 30s", config.MaxBackoff)
	}
	if config.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", config.BackoffMultiplier)
	}
}

func TestRetryConfig_WithDefaults(t *testing.T) {
	got := RetryConfig{MaxAttempts: 4}.withDefaults()
	if got.MaxAttempts != 4 {
		t.Errorf("MaxAttempts = %d, want 4", got.MaxAttempts)
	}
	if got.InitialBackoff != time.Second || got.MaxBackoff != 30*time.Second || got.BackoffMultiplier != 2 {
		t.Errorf("defaults not applied: %+v", got)
	}
}

func TestRetryWithBackoff_Success(t *testing.T) {
	callCount := 0
	err := retryWithBackoff(context.Background(), fastRetry(3), func() error {
		callCount++
		return nil
	})

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}
}

func TestRetryWithBackoff_SuccessAfterRetry(t *testing.T) {
	callCount := 0
	err := retryWithBackoff(context.Background(), fastRetry(3), func() error {
		callCount++
		if callCount < 3 {
			return serverErr()
		}
		return nil
	})

	if err != nil {
		t.Errorf("Expected success after retry, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("Expected 3 calls, got %d", callCount)
	}
}

func TestRetryWithBackoff_Exhausted(t *testing.T) {
	callCount := 0
	err := retryWithBackoff(context.Background(), fastRetry(3), func() error {
		callCount++
		return serverErr()
	})

	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Expected ErrRetryExhausted, got %v", err)
	}
	if !IsNetworkError(err) {
		t.Error("exhaustion error must still wrap the NetworkError")
	}
	if callCount != 3 {
		t.Errorf("Expected 3 calls, got %d", callCount)
	}
}

func TestRetryWithBackoff_ClientErrorNotRetried(t *testing.T) {
	callCount := 0
	err := retryWithBackoff(context.Background(), fastRetry(5), func() error {
		callCount++
		return &NetworkError{StatusCode: 400, ErrorClass: ErrorClassClient, Message: "Bad Request"}
	})

	if err == nil {
		t.Fatal("Expected error")
	}
	if errors.Is(err, ErrRetryExhausted) {
		t.Error("client errors should not be reported as exhausted")
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}
}

func TestRetryWithBackoff_PlainErrorNotRetried(t *testing.T) {
	callCount := 0
	err := retryWithBackoff(context.Background(), fastRetry(5), func() error {
		callCount++
		return errors.New("unclassified")
	})
	if err == nil || callCount != 1 {
		t.Errorf("err = %v, calls = %d; want error after 1 call", err, callCount)
	}
}

func TestRetryWithBackoff_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	config := fastRetry(5)
	config.InitialBackoff = time.Second
	config.MaxBackoff = time.Second

	callCount := 0
	done := make(chan error, 1)
	go func() {
		done <- retryWithBackoff(ctx, config, func() error {
			callCount++
			return serverErr()
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, ErrContextCancelled) {
			t.Errorf("Expected ErrContextCancelled, got %v", err)
		}
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled in chain, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("retryWithBackoff did not stop after cancellation")
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call before cancellation, got %d", callCount)
	}
}
