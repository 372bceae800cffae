// Package retry provides the bounded backoff policy used at every external call site.
package retry

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const (
	defaultBaseBackoffWhenZero = 500 * time.Millisecond
	backoffMultiplier          = 2
)

// ErrPermanent wraps errors that must not be retried. Do() stops immediately
// and returns the wrapped error.
var ErrPermanent = errors.New("permanent error")

// Permanent marks err as non-retryable.
func Permanent(err error) error {
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// Policy is an explicit bounded retry policy: max attempts, exponential
// backoff with jitter, capped by MaxBackoff. The zero value is unusable;
// construct with New.
type Policy struct {
	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

// New creates a Policy. maxAttempts is the total number of attempts (not
// retries); values below 1 are treated as 1. A zero baseBackoff gets a
// default; maxBackoff is raised to baseBackoff when smaller.
func New(maxAttempts int, baseBackoff, maxBackoff time.Duration) Policy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	if baseBackoff <= 0 {
		baseBackoff = defaultBaseBackoffWhenZero
	}

	if maxBackoff < baseBackoff {
		maxBackoff = baseBackoff
	}

	return Policy{
		maxAttempts: maxAttempts,
		baseBackoff: baseBackoff,
		maxBackoff:  maxBackoff,
	}
}

// MaxAttempts returns the attempt budget.
func (p Policy) MaxAttempts() int {
	return p.maxAttempts
}

// Do runs op until it succeeds, returns a permanent error, exhausts the
// attempt budget, or ctx is cancelled during backoff. The error from the
// last attempt is returned on exhaustion.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error

	backoff := p.baseBackoff

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if errors.Is(lastErr, ErrPermanent) {
			return lastErr
		}

		if attempt == p.maxAttempts {
			break
		}

		if err := sleep(ctx, jitter(backoff)); err != nil {
			return err
		}

		backoff = min(backoff*backoffMultiplier, p.maxBackoff)
	}

	return lastErr
}

// jitter returns a duration between 50% and 100% of duration to avoid thundering herd.
func jitter(duration time.Duration) time.Duration {
	half := duration / 2
	if half <= 0 {
		return duration
	}

	var buf [8]byte

	if _, err := rand.Read(buf[:]); err != nil {
		return half
	}

	randVal := binary.BigEndian.Uint64(buf[:])
	halfNanos := half.Nanoseconds()

	if halfNanos <= 0 {
		return half
	}

	return half + time.Duration(int64(randVal%uint64(halfNanos)))
}

// sleep blocks for the given duration or until ctx is cancelled; returns ctx.Err() if cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("backoff interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
