package solana

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Klingon-tech/klingnet-wallet/internal/chain"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/shopspring/decimal"
)

type balanceResult struct {
	Value uint64 `json:"value"`
}

func (a *Adapter) lamports(ctx context.Context, address string) (uint64, error) {
	var res balanceResult
	if err := a.call(ctx, "getBalance", []interface{}{address, commitment()}, &res); err != nil {
		return 0, err
	}
	return res.Value, nil
}

// Balance implements chain.Adapter.
func (a *Adapter) Balance(ctx context.Context, address string) (decimal.Decimal, error) {
	if !a.ValidateAddress(address) {
		return decimal.Zero, fmt.Errorf("%w: %q", chain.ErrInvalidAddress, address)
	}
	lamports, err := a.lamports(ctx, address)
	if err != nil {
		return decimal.Zero, err
	}
	return LamportsToSOL(lamports), nil
}

func (a *Adapter) buildTransfer(from, to solana.PublicKey, lamports uint64, blockhash string) (*solana.Transaction, error) {
	hash, err := solana.HashFromBase58(blockhash)
	if err != nil {
		return nil, fmt.Errorf("parse blockhash: %w", err)
	}
	return solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(lamports, from, to).Build(),
		},
		hash,
		solana.TransactionPayer(from),
	)
}

type feeResult struct {
	Value *uint64 `json:"value"`
}

// EstimateFee prices a transfer message with getFeeForMessage.
func (a *Adapter) EstimateFee(ctx context.Context, from, to string, amount decimal.Decimal) (decimal.Decimal, error) {
	fromKey, err := solana.PublicKeyFromBase58(from)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", chain.ErrInvalidAddress, from)
	}
	if !a.ValidateAddress(to) {
		return decimal.Zero, fmt.Errorf("%w: %q", chain.ErrInvalidAddress, to)
	}
	toKey := solana.MustPublicKeyFromBase58(to)

	bh, err := a.latestBlockhash(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	tx, err := a.buildTransfer(fromKey, toKey, SOLToLamports(amount), bh.Value.Blockhash)
	if err != nil {
		return decimal.Zero, err
	}
	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return decimal.Zero, fmt.Errorf("encode message: %w", err)
	}

	var res feeResult
	err = a.call(ctx, "getFeeForMessage", []interface{}{base64.StdEncoding.EncodeToString(msg), commitment()}, &res)
	if err != nil {
		return decimal.Zero, err
	}
	if res.Value == nil {
		return decimal.Zero, nil
	}
	return LamportsToSOL(*res.Value), nil
}

// SendTransfer checks the local balance, then the on-chain balance, then
// signs and submits a system transfer. It returns the signature.
func (a *Adapter) SendTransfer(ctx context.Context, req chain.TransferRequest) (string, error) {
	if err := req.Check(a.ValidateAddress); err != nil {
		return "", err
	}
	if len(req.PrivateKey) != 64 {
		return "", fmt.Errorf("solana secret key must be 64 bytes, got %d", len(req.PrivateKey))
	}
	priv := solana.PrivateKey(req.PrivateKey)
	from := priv.PublicKey()
	if req.From != "" && req.From != from.String() {
		return "", fmt.Errorf("signing key does not match sender %s", req.From)
	}
	to := solana.MustPublicKeyFromBase58(req.To)
	lamports := SOLToLamports(req.Amount)

	onChain, err := a.lamports(ctx, from.String())
	if err != nil {
		return "", err
	}
	if onChain < lamports {
		return "", fmt.Errorf("%w: amount %s, on-chain balance %s",
			chain.ErrInsufficientBalance, req.Amount, LamportsToSOL(onChain))
	}

	bh, err := a.latestBlockhash(ctx)
	if err != nil {
		return "", err
	}
	tx, err := a.buildTransfer(from, to, lamports, bh.Value.Blockhash)
	if err != nil {
		return "", err
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(from) {
			return &priv
		}
		return nil
	}); err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("encode transaction: %w", err)
	}

	opts := map[string]interface{}{
		"encoding":            "base64",
		"preflightCommitment": commitmentConfirmed,
	}
	var sig string
	if err := a.call(ctx, "sendTransaction", []interface{}{base64.StdEncoding.EncodeToString(raw), opts}, &sig); err != nil {
		return "", err
	}

	a.mu.Lock()
	a.lastValid[sig] = bh.Value.LastValidBlockHeight
	a.mu.Unlock()

	a.logger.Info().
		Str("from", from.String()).
		Str("to", req.To).
		Str("amount", req.Amount.String()).
		Str("signature", sig).
		Msg("Transfer broadcast")
	return sig, nil
}

type signatureStatus struct {
	Slot               uint64          `json:"slot"`
	Err                json.RawMessage `json:"err"`
	ConfirmationStatus string          `json:"confirmationStatus"`
}

type statusesResult struct {
	Value []*signatureStatus `json:"value"`
}

func (s *signatureStatus) failed() bool {
	return len(s.Err) > 0 && string(s.Err) != "null"
}

// Confirm polls the signature status until it reaches confirmed commitment,
// fails on chain, or its blockhash expires.
func (a *Adapter) Confirm(ctx context.Context, txHash string) (bool, error) {
	ticker := time.NewTicker(a.cfg.ConfirmPollInterval)
	defer ticker.Stop()

	a.mu.Lock()
	lastValid, tracked := a.lastValid[txHash]
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		delete(a.lastValid, txHash)
		a.mu.Unlock()
	}()

	for {
		var res statusesResult
		opts := map[string]interface{}{"searchTransactionHistory": true}
		err := a.call(ctx, "getSignatureStatuses", []interface{}{[]string{txHash}, opts}, &res)
		if err == nil && len(res.Value) == 1 && res.Value[0] != nil {
			st := res.Value[0]
			if st.failed() {
				a.logger.Warn().Str("signature", txHash).RawJSON("err", st.Err).Msg("Transaction failed")
				return false, nil
			}
			if st.ConfirmationStatus == "confirmed" || st.ConfirmationStatus == "finalized" {
				return true, nil
			}
		} else if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			a.logger.Warn().Err(err).Str("signature", txHash).Msg("Status lookup failed")
		} else if tracked {
			var height uint64
			if herr := a.call(ctx, "getBlockHeight", []interface{}{commitment()}, &height); herr == nil && height > lastValid {
				a.logger.Warn().Str("signature", txHash).Uint64("height", height).Msg("Blockhash expired")
				return false, fmt.Errorf("%w: %w: %s at block height %d (last valid %d)",
					chain.ErrConfirmationTimeout, chain.ErrTransactionExpired, txHash, height, lastValid)
			}
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}
	}
}
