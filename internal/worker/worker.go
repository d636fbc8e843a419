// Package worker runs periodic background jobs with exponential backoff
// after consecutive failures.
package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type Options struct {
	Interval time.Duration
	// MaxBackoff caps the delay after repeated failures.
	MaxBackoff time.Duration
	// Immediate runs the job once right away instead of after Interval.
	Immediate bool
}

// Run calls job every Interval until ctx is done.
func Run(ctx context.Context, log zerolog.Logger, opts Options, job func(ctx context.Context) error) {
	if job == nil {
		return
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	first := interval
	if opts.Immediate {
		first = 0
	}

	timer := time.NewTimer(first)
	defer timer.Stop()

	var consecutiveFailures int
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if err := job(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			consecutiveFailures++
			log.Warn().Err(err).Int("failures", consecutiveFailures).Msg("background job failed")
		} else {
			consecutiveFailures = 0
		}

		timer.Reset(BackoffDuration(interval, opts.MaxBackoff, consecutiveFailures))
	}
}

// BackoffDuration is base * 2^failures, capped at the larger of base and
// max (default 5m).
func BackoffDuration(base, max time.Duration, failures int) time.Duration {
	if base <= 0 {
		base = 15 * time.Second
	}
	if max <= 0 {
		max = 5 * time.Minute
	}
	if failures <= 0 {
		return base
	}
	// A failure never shortens the normal interval.
	if max < base {
		max = base
	}

	if failures > 6 {
		failures = 6
	}
	d := base * time.Duration(1<<failures)
	if d > max {
		return max
	}
	return d
}
