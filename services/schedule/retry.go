package schedule

import (
	"context"
	"time"

	"bulkprice/services/catalog"

	"github.com/cenkalti/backoff/v4"
)

// hintBackOff is an exponential backoff that waits at least as long as the
// last Retry-After hint, capped at maxDelay.
type hintBackOff struct {
	*backoff.ExponentialBackOff
	maxDelay time.Duration
	hint     time.Duration
}

func newHintBackOff(base, maxDelay time.Duration) *hintBackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = base
	exp.MaxInterval = maxDelay
	exp.MaxElapsedTime = 0
	exp.Reset()
	return &hintBackOff{ExponentialBackOff: exp, maxDelay: maxDelay}
}

func (b *hintBackOff) NextBackOff() time.Duration {
	next := b.ExponentialBackOff.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	if b.hint > next {
		next = b.hint
	}
	b.hint = 0
	if b.maxDelay > 0 && next > b.maxDelay {
		next = b.maxDelay
	}
	return next
}

// retry runs op until it succeeds, returns a non-retryable error, or
// maxRetries retries are used up. attemptTimeout bounds each call.
func retry(ctx context.Context, opts ExecutorOptions, op func(ctx context.Context) error, notify func(err error, wait time.Duration)) error {
	b := newHintBackOff(opts.RetryBaseDelay, opts.RetryMaxDelay)

	attempt := func() error {
		attemptCtx := ctx
		if opts.AttemptTimeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, opts.AttemptTimeout)
			defer cancel()
		}

		err := op(attemptCtx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !catalog.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		b.hint = catalog.RetryAfter(err)
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(opts.MaxRetries, 0))), ctx)
	return backoff.RetryNotify(attempt, policy, notify)
}
