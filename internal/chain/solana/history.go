package solana

import (
	"context"
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-wallet/internal/chain"
)

type signatureInfo struct {
	Signature string `json:"signature"`
	Slot      uint64 `json:"slot"`
	BlockTime *int64 `json:"blockTime"`
}

func (a *Adapter) signatures(ctx context.Context, address, before string, limit int) ([]signatureInfo, error) {
	opts := map[string]interface{}{"limit": limit}
	if before != "" {
		opts["before"] = before
	}
	var res []signatureInfo
	if err := a.call(ctx, "getSignaturesForAddress", []interface{}{address, opts}, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// History lists up to SignatureLimit signatures before the cursor and
// fetches each transaction in order. The cursor is [lastSignature].
func (a *Adapter) History(ctx context.Context, address string, cursor chain.Cursor) (chain.HistoryPage, error) {
	if !a.ValidateAddress(address) {
		return chain.HistoryPage{}, fmt.Errorf("%w: %q", chain.ErrInvalidAddress, address)
	}
	var before string
	if cursor != nil {
		if len(cursor) != 1 || cursor[0] == "" {
			return chain.HistoryPage{}, fmt.Errorf("solana history: cursor must hold one signature")
		}
		before = cursor[0]
	}

	sigs, err := a.signatures(ctx, address, before, a.cfg.SignatureLimit)
	if err != nil {
		return chain.HistoryPage{}, err
	}

	txs, err := a.fetchSequentially(ctx, address, sigs)
	if err != nil {
		return chain.HistoryPage{}, err
	}
	chain.SortByBlockTimeDesc(txs)

	page := chain.HistoryPage{Transactions: txs}
	if len(sigs) == a.cfg.SignatureLimit {
		page.Next = chain.Cursor{sigs[len(sigs)-1].Signature}
	}
	a.logger.Debug().
		Str("address", address).
		Int("signatures", len(sigs)).
		Int("count", len(txs)).
		Msg("Fetched history")
	return page, nil
}

// fetchSequentially fetches one transaction at a time, paced by the limiter.
// A rate-limited item is retried once after RateLimitDelay; an item that
// still fails is dropped.
func (a *Adapter) fetchSequentially(ctx context.Context, owner string, sigs []signatureInfo) ([]chain.Transaction, error) {
	out := make([]chain.Transaction, 0, len(sigs))
	for _, s := range sigs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tx, err := a.fetchTransaction(ctx, s.Signature)
		if err != nil && chain.IsRateLimited(err) {
			a.metrics.Retry(string(chain.KindSolana), "rate_limit")
			a.logger.Warn().
				Str("signature", s.Signature).
				Dur("delay", a.cfg.Net.RateLimitDelay).
				Msg("Rate limit hit, retrying after delay")
			if serr := chain.SleepContext(ctx, a.cfg.Net.RateLimitDelay); serr != nil {
				return nil, serr
			}
			tx, err = a.fetchTransaction(ctx, s.Signature)
		}
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return nil, err
			}
			a.metrics.DroppedItem(string(chain.KindSolana))
			a.logger.Error().Err(err).Str("signature", s.Signature).Msg("Failed to fetch transaction")
			continue
		}

		var fallback int64
		if s.BlockTime != nil {
			fallback = *s.BlockTime
		}
		if t, ok := normalize(s.Signature, tx, owner, fallback); ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (a *Adapter) fetchTransaction(ctx context.Context, signature string) (*parsedTransaction, error) {
	a.limiter.Take()
	opts := map[string]interface{}{
		"encoding":                       "jsonParsed",
		"commitment":                     commitmentConfirmed,
		"maxSupportedTransactionVersion": 0,
	}
	var tx *parsedTransaction
	if err := a.call(ctx, "getTransaction", []interface{}{signature, opts}, &tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// HasHistory asks for a single signature.
func (a *Adapter) HasHistory(ctx context.Context, address string) (bool, error) {
	if !a.ValidateAddress(address) {
		return false, fmt.Errorf("%w: %q", chain.ErrInvalidAddress, address)
	}
	sigs, err := a.signatures(ctx, address, "", 1)
	if err != nil {
		return false, err
	}
	return len(sigs) > 0, nil
}
