package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRemaining(t *testing.T) {
	tests := []struct {
		interval, elapsed, want time.Duration
	}{
		{6 * time.Second, 2 * time.Second, 4 * time.Second},
		{6 * time.Second, 6 * time.Second, 0},
		{6 * time.Second, 9 * time.Second, 0},
		{6 * time.Second, 0, 6 * time.Second},
	}
	for _, tt := range tests {
		if got := Remaining(tt.interval, tt.elapsed); got != tt.want {
			t.Fatalf("Remaining(%s, %s) = %s, want %s", tt.interval, tt.elapsed, got, tt.want)
		}
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New(Options{Interval: time.Millisecond, Backoff: time.Millisecond}, zerolog.Nop())

	calls := 0
	err := s.Run(ctx, func(context.Context) error {
		calls++
		if calls == 3 {
			cancel()
		}
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 ticks, got %d", calls)
	}
}

func TestRunKeepsGoingAfterTickError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New(Options{Interval: time.Hour, Backoff: time.Millisecond}, zerolog.Nop())

	calls := 0
	start := time.Now()
	_ = s.Run(ctx, func(context.Context) error {
		calls++
		if calls == 2 {
			cancel()
		}
		return errors.New("feed down")
	})
	if calls != 2 {
		t.Fatalf("failing tick should be retried after backoff, got %d calls", calls)
	}
	if time.Since(start) > time.Minute {
		t.Fatal("backoff should replace the cadence sleep")
	}
}

func TestTickIsNotCancelledMidCycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New(Options{Interval: time.Millisecond}, zerolog.Nop())

	var tickErr error
	_ = s.Run(ctx, func(tickCtx context.Context) error {
		cancel()
		tickErr = tickCtx.Err()
		return nil
	})
	if tickErr != nil {
		t.Fatalf("tick context should survive shutdown, got %v", tickErr)
	}
}

func TestStartupDelayHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := New(Options{Interval: time.Second, StartupDelay: time.Hour}, zerolog.Nop())
	if err := s.Run(ctx, func(context.Context) error {
		t.Fatal("tick should not run")
		return nil
	}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
