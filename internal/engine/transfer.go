package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Klingon-tech/klingnet-wallet/internal/chain"
	"github.com/Klingon-tech/klingnet-wallet/internal/store"
	"github.com/shopspring/decimal"
)

// SendRequest is a native transfer from one of the wallet's accounts.
type SendRequest struct {
	Chain  chain.Kind
	From   string // empty selects the active account
	To     string
	Amount decimal.Decimal
}

// SendTransfer signs and submits a transfer. The request is checked against
// the stored balance before anything touches the network; the returned hash
// is tracked as a pending confirmation.
func (e *Engine) SendTransfer(ctx context.Context, req SendRequest) (string, error) {
	a, err := e.adapter(req.Chain)
	if err != nil {
		return "", err
	}
	acct, err := e.resolve(req.Chain, req.From)
	if err != nil {
		return "", err
	}

	tr := chain.TransferRequest{
		From:    acct.Address,
		To:      req.To,
		Amount:  req.Amount,
		Balance: acct.Balance,
	}
	// A bad request never unlocks the seed.
	if err := tr.CheckFunds(a.ValidateAddress); err != nil {
		return "", err
	}

	seed, err := e.secrets.Seed()
	if err != nil {
		return "", fmt.Errorf("load seed: %w", err)
	}
	key, err := a.PrivateKey(seed, acct.Index)
	if err != nil {
		return "", fmt.Errorf("derive %s key: %w", req.Chain, err)
	}
	tr.PrivateKey = key
	defer zero(key)

	hash, err := a.SendTransfer(ctx, tr)
	if err != nil {
		e.logger.Warn().Err(err).
			Str("chain", req.Chain.String()).
			Str("from", acct.Address).
			Str("to", req.To).
			Msg("Transfer rejected")
		return "", err
	}

	if err := e.store.AppendConfirmation(req.Chain, acct.Address, hash); err != nil {
		return hash, err
	}
	sent := chain.Transaction{
		UniqueID:  chain.NewUniqueID(),
		From:      acct.Address,
		To:        req.To,
		Hash:      hash,
		Value:     req.Amount,
		BlockTime: time.Now().Unix(),
		Asset:     nativeAsset(req.Chain),
		Direction: chain.DirectionSent,
	}
	if err := e.store.AddTransaction(req.Chain, acct.Address, sent); err != nil {
		return hash, err
	}
	e.logger.Info().
		Str("chain", req.Chain.String()).
		Str("from", acct.Address).
		Str("to", req.To).
		Str("amount", req.Amount.String()).
		Str("hash", hash).
		Msg("Transfer submitted")
	return hash, nil
}

// ConfirmTransaction waits for txHash to become final and resolves its
// confirmation record. A confirmation timeout is returned as
// chain.ErrConfirmationTimeout, distinct from an on-chain failure (false, nil).
func (e *Engine) ConfirmTransaction(ctx context.Context, kind chain.Kind, address, txHash string) (bool, error) {
	a, err := e.adapter(kind)
	if err != nil {
		return false, err
	}
	acct, err := e.resolve(kind, address)
	if err != nil {
		return false, err
	}
	if err := e.store.AppendConfirmation(kind, acct.Address, txHash); err != nil {
		return false, err
	}

	ok, err := chain.ConfirmWithin(ctx, a, txHash, e.cfg.ConfirmationTimeout)
	if errors.Is(err, context.Canceled) {
		// Caller went away; the record stays pending.
		return false, err
	}
	status, reason := store.ConfirmationConfirmed, ""
	switch {
	case err != nil:
		status, reason = store.ConfirmationFailed, err.Error()
	case !ok:
		status, reason = store.ConfirmationFailed, "transaction failed on chain"
	}
	if rerr := e.store.ResolveConfirmation(kind, acct.Address, txHash, status, reason); rerr != nil {
		return false, errors.Join(err, rerr)
	}

	ev := e.logger.Info()
	if err != nil || !ok {
		ev = e.logger.Warn().Err(err)
	}
	ev.Str("chain", kind.String()).Str("hash", txHash).Str("status", string(status)).Msg("Confirmation resolved")
	return ok && err == nil, err
}

// EstimateFee quotes the network fee of a transfer in the native unit.
func (e *Engine) EstimateFee(ctx context.Context, kind chain.Kind, from, to string, amount decimal.Decimal) (decimal.Decimal, error) {
	a, err := e.adapter(kind)
	if err != nil {
		return decimal.Zero, err
	}
	acct, err := e.resolve(kind, from)
	if err != nil {
		return decimal.Zero, err
	}
	if !a.ValidateAddress(to) {
		return decimal.Zero, fmt.Errorf("%w: %q", chain.ErrInvalidAddress, to)
	}
	return a.EstimateFee(ctx, acct.Address, to, amount)
}

func nativeAsset(kind chain.Kind) string {
	switch kind {
	case chain.KindEVM:
		return "ETH"
	case chain.KindSolana:
		return "SOL"
	default:
		return ""
	}
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
