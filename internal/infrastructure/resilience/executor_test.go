package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

func TestExecuteRetriesRetryableFailure(t *testing.T) {
	exec := NewExecutor(Config{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        2 * time.Millisecond,
		BackoffMultiplier: 2,
		BreakerEnabled:    false,
	})

	attempts := 0
	errFlaky := errors.New("flaky")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errFlaky
		}
		return nil
	}, func(err error) ErrorClassification {
		return ErrorClassification{Retryable: errors.Is(err, errFlaky), RecordFailure: true}
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteStopsOnNonRetryableFailure(t *testing.T) {
	exec := NewExecutor(Config{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        2 * time.Millisecond,
		BackoffMultiplier: 2,
		BreakerEnabled:    false,
	})

	attempts := 0
	errFatal := errors.New("fatal")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return errFatal
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: false}
	})
	if !errors.Is(err, errFatal) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteOpensCircuitAfterRepeatedFailures(t *testing.T) {
	exec := NewExecutor(Config{
		MaxAttempts:         1,
		InitialBackoff:      time.Millisecond,
		MaxBackoff:          time.Millisecond,
		BackoffMultiplier:   2,
		BreakerEnabled:      true,
		BreakerMinRequests:  2,
		BreakerFailureRatio: 0.5,
		BreakerCooldown:     50 * time.Millisecond,
		BreakerProbeCalls:   1,
	})

	errDown := errors.New("collaborator down")
	classifier := func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: true}
	}

	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "op", func(context.Context) error {
			return errDown
		}, classifier)
		if !errors.Is(err, errDown) {
			t.Fatalf("expected collaborator error on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, classifier)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state error, got %v", err)
	}
}
