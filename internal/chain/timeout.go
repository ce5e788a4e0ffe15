package chain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultConfirmationTimeout is how long a send waits for finality.
const DefaultConfirmationTimeout = 60 * time.Second

// WithTimeout runs fn under a derived deadline of d. A deadline hit inside fn
// is reported as ErrRequestTimeout. A non-positive d runs fn without a
// deadline.
func WithTimeout(ctx context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	if d <= 0 {
		return fn(ctx)
	}
	tctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	err := fn(tctx)
	if err != nil && errors.Is(tctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%w after %s: %v", ErrRequestTimeout, d, err)
	}
	return err
}

// ConfirmWithin waits up to timeout for the adapter to confirm txHash.
// When the deadline passes first the result is ErrConfirmationTimeout even if
// the adapter answers later; the adapter call is cancelled.
func ConfirmWithin(ctx context.Context, a Adapter, txHash string, timeout time.Duration) (bool, error) {
	if timeout <= 0 {
		timeout = DefaultConfirmationTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		ok  bool
		err error
	}
	done := make(chan result, 1)
	go func() {
		ok, err := a.Confirm(cctx, txHash)
		done <- result{ok: ok, err: err}
	}()

	select {
	case <-cctx.Done():
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, fmt.Errorf("%w: %s after %s", ErrConfirmationTimeout, txHash, timeout)
	case r := <-done:
		if errors.Is(cctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return false, fmt.Errorf("%w: %s after %s", ErrConfirmationTimeout, txHash, timeout)
		}
		return r.ok, r.err
	}
}
