package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/court-assistant-go/internal/infra/resilience"
)

// recordSleep returns a Sleep func that records requested delays without waiting.
func recordSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestRetryWithBackoff_Success(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:  3,
		Backoff:     2,
		BackoffUnit: 10 * time.Millisecond,
	}

	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func(int) error {
		callCount++
		return nil
	})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}

func TestRetryWithBackoff_RetriesOnFailure(t *testing.T) {
	var delays []time.Duration
	cfg := resilience.Config{
		MaxRetries: 3,
		Backoff:    2,
		Sleep:      recordSleep(&delays),
	}

	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func(attempt int) error {
		if attempt != callCount {
			t.Errorf("expected attempt %d, got %d", callCount, attempt)
		}
		callCount++
		if callCount < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
	if len(delays) != 2 || delays[0] != time.Second || delays[1] != 2*time.Second {
		t.Errorf("unexpected delays %v", delays)
	}
}

func TestRetryWithBackoff_ExhaustsRetries(t *testing.T) {
	var delays []time.Duration
	cfg := resilience.Config{
		MaxRetries: 2,
		Backoff:    1.5,
		Sleep:      recordSleep(&delays),
	}

	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func(int) error {
		callCount++
		return errors.New("persistent error")
	})

	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
	want := []time.Duration{time.Second, 1500 * time.Millisecond}
	if len(delays) != len(want) {
		t.Fatalf("expected %d sleeps, got %v", len(want), delays)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("sleep %d: expected %s, got %s", i, want[i], delays[i])
		}
	}
}

func TestRetryWithBackoff_PermanentStopsImmediately(t *testing.T) {
	var delays []time.Duration
	cfg := resilience.Config{MaxRetries: 5, Backoff: 2, Sleep: recordSleep(&delays)}

	sentinel := errors.New("rejected")
	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func(int) error {
		callCount++
		return resilience.Permanent(sentinel)
	})

	if err != sentinel {
		t.Fatalf("expected the bare sentinel error with the permanent marker stripped, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
	if len(delays) != 0 {
		t.Errorf("expected no sleeps, got %v", delays)
	}
}

func TestRetryWithBackoff_RespectsContext(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries: 5,
		Backoff:    1,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := resilience.RetryWithBackoff(ctx, cfg, func(int) error {
		return errors.New("error")
	})

	if err == nil {
		t.Fatal("expected context error")
	}
}

func TestConfig_Delay(t *testing.T) {
	cfg := resilience.Config{Backoff: 1.5}

	if d := cfg.Delay(0); d != time.Second {
		t.Errorf("expected 1s, got %s", d)
	}
	if d := cfg.Delay(1); d != 1500*time.Millisecond {
		t.Errorf("expected 1.5s, got %s", d)
	}
	if d := cfg.Delay(2); d != 2250*time.Millisecond {
		t.Errorf("expected 2.25s, got %s", d)
	}
}

func TestCircuitBreaker_IgnoresUnsuccessfulFilter(t *testing.T) {
	ignored := errors.New("config")
	cb := resilience.NewCircuitBreaker("test", func(err error) bool {
		return err == nil || errors.Is(err, ignored)
	})

	for i := 0; i < 10; i++ {
		_, _ = cb.Execute(func() (any, error) { return nil, ignored })
	}
	if _, err := cb.Execute(func() (any, error) { return "ok", nil }); err != nil {
		t.Fatalf("expected breaker to stay closed, got %v", err)
	}

	for i := 0; i < 30; i++ {
		_, _ = cb.Execute(func() (any, error) { return nil, errors.New("boom") })
	}
	_, err := cb.Execute(func() (any, error) { return "ok", nil })
	if !resilience.IsCircuitOpen(err) {
		t.Fatalf("expected open circuit, got %v", err)
	}
}

func TestBulkhead_AcquireRelease(t *testing.T) {
	bh := resilience.NewBulkhead(2)

	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire, got %v", err)
	}
	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire, got %v", err)
	}

	// Third acquire should block; test with timeout context
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := bh.Acquire(ctx)
	if err == nil {
		t.Fatal("expected timeout on third acquire")
	}

	// Release one slot
	bh.Release()

	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire after release, got %v", err)
	}
}
