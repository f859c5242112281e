// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package reembed

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/poiesic/servicefinder/core"
)

// Backoff is a retry policy with exponential delays.
type Backoff struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BaseDelay is the delay after the first failure; it doubles on each retry.
	BaseDelay time.Duration
	// MaxDelay caps a single delay. Zero means uncapped.
	MaxDelay time.Duration
	// Jitter spreads each delay uniformly by ± this fraction, in [0, 1].
	Jitter float64
	// Retryable reports whether an error is worth retrying. Nil retries every error.
	Retryable func(error) bool
}

// IsTransient reports whether err is a provider failure that may succeed on
// retry. Rejected credentials and malformed vectors are provider failures
// that repeat on every attempt.
func IsTransient(err error) bool {
	switch {
	case errors.Is(err, core.ErrUnauthorized), errors.Is(err, core.ErrDimensionMismatch):
		return false
	}
	return errors.Is(err, core.ErrProvider)
}

// Delay returns the wait after the given failed attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	delay := b.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if b.MaxDelay > 0 && delay >= b.MaxDelay {
			break
		}
	}
	if b.MaxDelay > 0 && delay > b.MaxDelay {
		delay = b.MaxDelay
	}
	if b.Jitter > 0 && delay > 0 {
		spread := (rand.Float64()*2 - 1) * b.Jitter
		delay = time.Duration(float64(delay) * (1 + spread))
	}
	return delay
}

// Retry runs operation until it succeeds, returns a non-retryable error,
// runs out of attempts or ctx is done.
// Returns the error from the last attempt if all attempts fail.
func (b Backoff) Retry(ctx context.Context, operation func() error) error {
	if b.MaxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= b.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil {
			if attempt > 1 {
				slog.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if b.Retryable != nil && !b.Retryable(lastErr) {
			return lastErr
		}

		// Don't sleep after the last attempt
		if attempt == b.MaxAttempts {
			break
		}

		delay := b.Delay(attempt)
		slog.Debug("operation failed, will retry", "attempt", attempt, "maxAttempts", b.MaxAttempts, "delay", delay, "err", lastErr)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}

// RetryWithBackoff retries an operation with exponential backoff and no jitter.
// maxAttempts: maximum number of attempts (must be > 0)
// baseDelay: base delay between retries (doubles on each retry)
func RetryWithBackoff(ctx context.Context, operation func() error, maxAttempts int, baseDelay time.Duration) error {
	return Backoff{MaxAttempts: maxAttempts, BaseDelay: baseDelay}.Retry(ctx, operation)
}
