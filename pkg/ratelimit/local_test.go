package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lingyun-ai/lingyun-go/pkg/api"
)

func TestNopWhenUnconfigured(t *testing.T) {
	l := NewLocal(Config{})
	if _, ok := l.(nop); !ok {
		t.Fatalf("NewLocal(zero Config) = %T, want pass-through", l)
	}
	if err := l.Acquire(context.Background(), 1e9); err != nil {
		t.Errorf("nop Acquire: %v", err)
	}
}

func TestLocalPacesRequestsPerSecond(t *testing.T) {
	l := NewLocal(Config{RequestsPerSecond: 2})

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := l.Acquire(context.Background(), 1); err != nil {
			t.Fatalf("Acquire %d: %v", i, err)
		}
	}
	elapsed := time.Since(start)

	// One free permit, four more at 0.5s apiece.
	if elapsed < 2*time.Second {
		t.Errorf("5 acquires at 2 rps took %v, want >= 2s", elapsed)
	}
}

func TestLocalTokenCostExceedingCapacityFailsFast(t *testing.T) {
	l := NewLocal(Config{TokensPerMinute: 100})

	start := time.Now()
	err := l.Acquire(context.Background(), 101)
	if time.Since(start) > 100*time.Millisecond {
		t.Error("oversized cost blocked instead of failing fast")
	}
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != api.CodeInvalidArgument {
		t.Errorf("error = %v, want invalid argument", err)
	}
}

func TestLocalContextDeadlineIsTimeout(t *testing.T) {
	l := NewLocal(Config{RequestsPerSecond: 1})
	// Drain the free permit.
	if err := l.Acquire(context.Background(), 1); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := l.Acquire(ctx, 1)
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.Type != api.ErrorTypeTimeout {
		t.Errorf("error = %v, want timeout_error", err)
	}
}

func TestLocalWaitExceedingDeadlineIsTimeout(t *testing.T) {
	l := NewLocal(Config{RequestsPerSecond: 1})
	// Drain the free permit; the next one is a full second away.
	if err := l.Acquire(context.Background(), 1); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	// The 50ms deadline can never fit the 1s wait. The limiter reports
	// that immediately, while the context itself is still live; it must
	// still classify as a timeout, not a bad request.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := l.Acquire(ctx, 1)
	if time.Since(start) > 40*time.Millisecond {
		t.Error("unsatisfiable wait blocked instead of failing fast")
	}
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.Type != api.ErrorTypeTimeout {
		t.Errorf("error = %v, want timeout_error", err)
	}
}

func TestLocalTokenDimensionCharged(t *testing.T) {
	l := NewLocal(Config{TokensPerMinute: 60})

	// Burst is 60; two acquires of 30 drain it, the third must wait.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := l.Acquire(ctx, 30); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	if err := l.Acquire(ctx, 30); err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if err := l.Acquire(ctx, 30); err == nil {
		t.Error("third Acquire granted from an empty bucket")
	}
}

func TestUpdateCapacityIsOneShot(t *testing.T) {
	l := NewLocal(Config{RequestsPerMinute: 60}).(*Local)

	if !l.UpdateCapacity(120, 0) {
		t.Fatal("first UpdateCapacity rejected")
	}
	if l.UpdateCapacity(30, 0) {
		t.Error("second UpdateCapacity applied, want ignored")
	}
	if got := l.rpm.Burst(); got != 120 {
		t.Errorf("rpm burst = %d, want 120 from the first update", got)
	}
}

func TestUpdateCapacityLatchesWithoutPerMinuteBuckets(t *testing.T) {
	l := NewLocal(Config{RequestsPerSecond: 1}).(*Local)

	if l.UpdateCapacity(120, 0) {
		t.Error("update reported applied with no per-minute bucket")
	}
	// The first call engaged the one-shot latch even though nothing
	// could receive it; a later discovery must not land either.
	if l.UpdateCapacity(60, 60) {
		t.Error("second UpdateCapacity applied after latch")
	}
}

func TestUpdateCapacityConcurrentSingleWinner(t *testing.T) {
	l := NewLocal(Config{RequestsPerMinute: 60}).(*Local)

	applied := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func() { applied <- l.UpdateCapacity(90, 0) }()
	}
	wins := 0
	for i := 0; i < 10; i++ {
		if <-applied {
			wins++
		}
	}
	if wins != 1 {
		t.Errorf("%d updates applied, want exactly 1", wins)
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{"empty", "", 0},
		{"three words", "hello brave world", 3},
		{"cjk only", "你好世界", 2.5},
		{"mixed", "hello 世界", 1 + 2*0.625},
		{"extra whitespace", "  a   b  ", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateTokens(tt.text); got != tt.want {
				t.Errorf("EstimateTokens(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}
