package engine

import (
	"context"

	"github.com/cenkalti/backoff/v4"

	"github.com/mmr-tortoise/flotilla/internal/runtime"
)

// withRetry runs op, retrying transient gateway failures with exponential
// backoff up to the configured cap. Permanent failures and unknown errors
// return immediately; the error returned after an exhausted cap is the
// last attempt's error, untouched.
func (e *Engine) withRetry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.opts.RetryInitialInterval
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, e.opts.RetryCap), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if !runtime.IsTransient(err) {
			return backoff.Permanent(err)
		}
		e.log.Debug("transient failure, will retry", "attempt", attempt, "err", err)
		return err
	}, policy)
}
