package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc runs one poll cycle. A non-nil error triggers the backoff sleep.
type TickFunc func(ctx context.Context) error

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	Backoff      time.Duration
	StartupDelay time.Duration
}

// Scheduler drives the sequential fetch, process, sleep loop.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
	now    func() time.Time
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	if opts.Backoff < 0 {
		opts.Backoff = 0
	}
	return &Scheduler{
		opts:   opts,
		logger: logger.With().Str("component", "scheduler").Logger(),
		now:    time.Now,
	}
}

// Run blocks, invoking tick back to back until ctx is cancelled. Cancellation
// is observed between cycles only; a running tick always completes.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if err := sleep(ctx, s.opts.StartupDelay); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		started := s.now()
		err := tick(context.WithoutCancel(ctx))
		elapsed := s.now().Sub(started)

		delay := Remaining(s.opts.Interval, elapsed)
		if err != nil {
			s.logger.Error().Err(err).Dur("elapsed", elapsed).Dur("backoff", s.opts.Backoff).Msg("tick execution failed")
			delay = s.opts.Backoff
		} else {
			s.logger.Debug().Dur("elapsed", elapsed).Dur("sleep", delay).Msg("tick completed")
		}

		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// Remaining is the rest of the cadence after elapsed, floored at zero.
func Remaining(interval, elapsed time.Duration) time.Duration {
	if elapsed >= interval {
		return 0
	}
	return interval - elapsed
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
