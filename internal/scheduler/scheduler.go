package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked on every aligned interval.
type TickFunc func(ctx context.Context, cycle time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	AlignToStart bool
	StartupDelay time.Duration
	// ErrorBackoff is slept after a failed tick instead of waiting for the
	// next aligned interval. Zero disables the backoff.
	ErrorBackoff time.Duration
}

// Scheduler drives aligned execution of polling cycles.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, invoking the tick function at each aligned interval until ctx is
// cancelled. Cancellation is observed between cycles and during every sleep;
// an in-flight tick always completes.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		if err := Sleep(ctx, s.opts.StartupDelay); err != nil {
			return err
		}
	}

	next := s.nextTick(time.Now().UTC())
	for {
		delay := time.Until(next)
		if delay < 0 {
			next = s.nextTick(time.Now().UTC())
			delay = time.Until(next)
		}

		s.logger.Debug().Time("next_cycle", next).Msg("waiting for next cycle")
		if err := Sleep(ctx, delay); err != nil {
			return err
		}

		cycle := s.cycleStart(next)
		s.logger.Info().Time("cycle", cycle).Msg("executing scheduled cycle")

		if err := s.runTick(ctx, tick, cycle); err != nil {
			s.logger.Error().Err(err).Time("cycle", cycle).Msg("cycle execution failed")
			if s.opts.ErrorBackoff > 0 {
				if sleepErr := Sleep(ctx, s.opts.ErrorBackoff); sleepErr != nil {
					return sleepErr
				}
			}
		}

		next = next.Add(s.opts.Interval)
	}
}

// runTick shields the loop from a panicking cycle.
func (s *Scheduler) runTick(ctx context.Context, tick TickFunc, cycle time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panicked: %v", r)
		}
	}()
	return tick(ctx, cycle)
}

// Sleep blocks for d or until ctx is cancelled, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		return nil
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

func (s *Scheduler) nextTick(now time.Time) time.Time {
	if !s.opts.AlignToStart {
		return now.Add(s.opts.Interval)
	}
	cycle := now.Truncate(s.opts.Interval)
	if !cycle.After(now) {
		cycle = cycle.Add(s.opts.Interval)
	}
	return cycle
}

func (s *Scheduler) cycleStart(t time.Time) time.Time {
	if !s.opts.AlignToStart {
		return t
	}
	return t.Truncate(s.opts.Interval)
}
