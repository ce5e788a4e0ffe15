package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-wallet/internal/chain"
	"github.com/Klingon-tech/klingnet-wallet/internal/store"
	"golang.org/x/sync/errgroup"
)

// RefreshBalance fetches the balance of address (the active account when
// empty). On failure the account is flagged and its last balance kept.
func (e *Engine) RefreshBalance(ctx context.Context, kind chain.Kind, address string) error {
	a, err := e.adapter(kind)
	if err != nil {
		return err
	}
	acct, err := e.resolve(kind, address)
	if err != nil {
		return err
	}

	gen := e.store.NextGeneration(kind, acct.Address, store.FieldBalance)
	if err := e.store.MarkLoading(kind, acct.Address); err != nil {
		return err
	}
	balance, err := a.Balance(ctx, acct.Address)
	if err != nil {
		e.fail(kind, acct.Address, store.FieldBalance, gen, err)
		return fmt.Errorf("refresh %s balance: %w", kind, err)
	}
	return e.ignoreStale(e.store.UpdateBalance(kind, acct.Address, balance, gen))
}

// RefreshTransactions replaces the loaded history with the newest page.
func (e *Engine) RefreshTransactions(ctx context.Context, kind chain.Kind, address string) error {
	a, err := e.adapter(kind)
	if err != nil {
		return err
	}
	acct, err := e.resolve(kind, address)
	if err != nil {
		return err
	}

	gen := e.store.NextGeneration(kind, acct.Address, store.FieldHistory)
	if err := e.store.MarkLoading(kind, acct.Address); err != nil {
		return err
	}
	page, err := a.History(ctx, acct.Address, nil)
	if err != nil {
		e.fail(kind, acct.Address, store.FieldHistory, gen, err)
		return fmt.Errorf("refresh %s history: %w", kind, err)
	}
	return e.ignoreStale(e.store.SetTransactions(kind, acct.Address, page, gen))
}

// LoadMoreTransactions appends the page after the stored cursor. It returns
// ErrNothingToLoad once the history is complete.
func (e *Engine) LoadMoreTransactions(ctx context.Context, kind chain.Kind, address string) error {
	a, err := e.adapter(kind)
	if err != nil {
		return err
	}
	acct, err := e.resolve(kind, address)
	if err != nil {
		return err
	}
	if len(acct.History.Cursor) == 0 {
		return ErrNothingToLoad
	}

	gen := e.store.NextGeneration(kind, acct.Address, store.FieldHistory)
	page, err := a.History(ctx, acct.Address, acct.History.Cursor)
	if err != nil {
		e.fail(kind, acct.Address, store.FieldHistory, gen, err)
		return fmt.Errorf("load more %s history: %w", kind, err)
	}
	return e.ignoreStale(e.store.AppendTransactions(kind, acct.Address, page, gen))
}

// RefreshAccount refreshes balance and history concurrently. Both requests
// run to completion; the first error is returned.
func (e *Engine) RefreshAccount(ctx context.Context, kind chain.Kind, address string) error {
	if address == "" {
		acct, err := e.resolve(kind, "")
		if err != nil {
			return err
		}
		address = acct.Address
	}
	var g errgroup.Group
	g.Go(func() error { return e.RefreshBalance(ctx, kind, address) })
	g.Go(func() error { return e.RefreshTransactions(ctx, kind, address) })
	return g.Wait()
}

func (e *Engine) fail(kind chain.Kind, address string, f store.Field, gen uint64, cause error) {
	ev := e.logger.Warn().Err(cause).
		Str("chain", kind.String()).
		Str("address", address).
		Str("field", f.String())
	if chain.IsTransport(cause) {
		ev = ev.Bool("transport", true)
	}
	ev.Msg("Network request failed")

	if err := e.store.MarkFailed(kind, address, f, gen); err != nil && !errors.Is(err, store.ErrStale) {
		e.logger.Error().Err(err).Str("chain", kind.String()).Msg("Failed to record failure")
	}
}

func (e *Engine) ignoreStale(err error) error {
	if errors.Is(err, store.ErrStale) {
		e.logger.Debug().Err(err).Msg("Discarded stale response")
		return nil
	}
	return err
}
