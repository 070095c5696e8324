// Package batch bounds and retries calls to external capabilities.
//
// A single Limiter is shared by every run of a process; it is the only
// cross-run state and caps the number of simultaneous upstream calls.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/cognicore/kwresearch/internal/metrics"
)

// Limiter caps concurrent calls and bounds each one with a timeout.
type Limiter struct {
	sem     *semaphore.Weighted
	timeout time.Duration
	metrics *metrics.Metrics
}

// NewLimiter allows up to n calls in flight, each limited to timeout.
// A non-positive timeout disables the per-call deadline.
func NewLimiter(n int, timeout time.Duration, m *metrics.Metrics) *Limiter {
	if n < 1 {
		n = 1
	}
	return &Limiter{sem: semaphore.NewWeighted(int64(n)), timeout: timeout, metrics: m}
}

// Do runs fn while holding a permit. The permit is released when fn
// returns, whatever it returns.
func (l *Limiter) Do(ctx context.Context, fn func(context.Context) error) error {
	if l == nil {
		return fn(ctx)
	}
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer l.sem.Release(1)
	l.metrics.InflightAdd(1)
	defer l.metrics.InflightAdd(-1)

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	return fn(ctx)
}

// Retry retries a failing call with exponential backoff.
type Retry struct {
	Attempts   int
	Backoff    time.Duration
	MaxBackoff time.Duration
	Metrics    *metrics.Metrics
}

// DefaultRetry is three attempts starting at 500ms, capped at 5s.
func DefaultRetry() Retry {
	return Retry{Attempts: 3, Backoff: 500 * time.Millisecond, MaxBackoff: 5 * time.Second}
}

// Run calls fn through lim until it succeeds or the attempts are used up.
// The permit is not held while backing off. The last error is returned
// when every attempt fails.
func (r Retry) Run(ctx context.Context, lim *Limiter, capability string, fn func(context.Context) error) error {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	wait := r.Backoff
	var last error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			r.Metrics.ObserveRetry(capability)
			if err := sleep(ctx, wait); err != nil {
				return errors.Join(last, err)
			}
			wait *= 2
			if r.MaxBackoff > 0 && wait > r.MaxBackoff {
				wait = r.MaxBackoff
			}
		}
		err := lim.Do(ctx, fn)
		if err == nil {
			r.Metrics.ObserveCall(capability, metrics.OutcomeOK)
			return nil
		}
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			r.Metrics.ObserveCall(capability, metrics.OutcomeTimeout)
		} else {
			r.Metrics.ObserveCall(capability, metrics.OutcomeError)
		}
		last = err
		if ctx.Err() != nil {
			return errors.Join(last, ctx.Err())
		}
	}
	return fmt.Errorf("%s: %d attempts: %w", capability, attempts, last)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Split cuts items into consecutive batches of at most size elements.
func Split[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size < 1 {
		size = len(items)
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}

// Each runs fn for every batch concurrently. A failing batch does not stop
// the others; all failures are returned joined. Concurrency is bounded by
// the Limiter the callback goes through, not here.
func Each[T any](ctx context.Context, batches [][]T, fn func(ctx context.Context, i int, b []T) error) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for i, b := range batches {
		g.Go(func() error {
			if err := fn(ctx, i, b); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("batch %d: %w", i, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
