package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/Klingon-tech/klingnet-wallet/internal/chain"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

const weiExp = 18

// baseFeeMultiplier matches the node's usual max-fee suggestion of
// 2*baseFee + tip.
const baseFeeMultiplier = 2

// WeiToEther converts wei to ether.
func WeiToEther(wei *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(wei, -weiExp)
}

// EtherToWei converts ether to wei, truncating below one wei.
func EtherToWei(eth decimal.Decimal) *big.Int {
	return eth.Shift(weiExp).BigInt()
}

// Balance implements chain.Adapter.
func (a *Adapter) Balance(ctx context.Context, address string) (decimal.Decimal, error) {
	if !a.ValidateAddress(address) {
		return decimal.Zero, fmt.Errorf("%w: %q", chain.ErrInvalidAddress, address)
	}
	var wei *big.Int
	err := a.call(ctx, "eth_getBalance", func(ctx context.Context, c *ethclient.Client) error {
		var err error
		wei, err = c.BalanceAt(ctx, common.HexToAddress(address), nil)
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	if wei.Sign() < 0 {
		return decimal.Zero, fmt.Errorf("eth_getBalance: negative balance %s", wei)
	}
	return WeiToEther(wei), nil
}

type feeQuote struct {
	gas    uint64
	tipCap *big.Int
	feeCap *big.Int
}

func (a *Adapter) quote(ctx context.Context, msg ethereum.CallMsg) (feeQuote, error) {
	var q feeQuote
	err := a.call(ctx, "eth_maxPriorityFeePerGas", func(ctx context.Context, c *ethclient.Client) error {
		var err error
		q.tipCap, err = c.SuggestGasTipCap(ctx)
		return err
	})
	if err != nil {
		return q, err
	}

	var header *types.Header
	err = a.call(ctx, "eth_getBlockByNumber", func(ctx context.Context, c *ethclient.Client) error {
		var err error
		header, err = c.HeaderByNumber(ctx, nil)
		return err
	})
	if err != nil {
		return q, err
	}
	baseFee := header.BaseFee
	if baseFee == nil {
		baseFee = big.NewInt(0)
	}
	q.feeCap = new(big.Int).Add(new(big.Int).Mul(baseFee, big.NewInt(baseFeeMultiplier)), q.tipCap)

	err = a.call(ctx, "eth_estimateGas", func(ctx context.Context, c *ethclient.Client) error {
		var err error
		q.gas, err = c.EstimateGas(ctx, msg)
		return err
	})
	return q, err
}

// EstimateFee returns gas * maxFeePerGas in ether.
func (a *Adapter) EstimateFee(ctx context.Context, from, to string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !a.ValidateAddress(to) {
		return decimal.Zero, fmt.Errorf("%w: %q", chain.ErrInvalidAddress, to)
	}
	msg := ethereum.CallMsg{To: addrPtr(to), Value: EtherToWei(amount)}
	if from != "" {
		msg.From = common.HexToAddress(from)
	}
	q, err := a.quote(ctx, msg)
	if err != nil {
		return decimal.Zero, err
	}
	fee := new(big.Int).Mul(new(big.Int).SetUint64(q.gas), q.feeCap)
	return WeiToEther(fee), nil
}

// SendTransfer signs and broadcasts an EIP-1559 native transfer. Validation
// and the local balance check run before any network call.
func (a *Adapter) SendTransfer(ctx context.Context, req chain.TransferRequest) (string, error) {
	if err := req.Check(a.ValidateAddress); err != nil {
		return "", err
	}
	key, err := crypto.ToECDSA(req.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("load signing key: %w", err)
	}
	from := crypto.PubkeyToAddress(key.PublicKey)
	if req.From != "" && common.HexToAddress(req.From) != from {
		return "", fmt.Errorf("signing key does not match sender %s", req.From)
	}
	to := common.HexToAddress(req.To)
	value := EtherToWei(req.Amount)

	var nonce uint64
	err = a.call(ctx, "eth_getTransactionCount", func(ctx context.Context, c *ethclient.Client) error {
		var err error
		nonce, err = c.PendingNonceAt(ctx, from)
		return err
	})
	if err != nil {
		return "", err
	}

	q, err := a.quote(ctx, ethereum.CallMsg{From: from, To: &to, Value: value})
	if err != nil {
		return "", err
	}

	var chainID *big.Int
	err = a.call(ctx, "eth_chainId", func(ctx context.Context, c *ethclient.Client) error {
		var err error
		chainID, err = a.signingChainID(ctx, c)
		return err
	})
	if err != nil {
		return "", err
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: q.tipCap,
		GasFeeCap: q.feeCap,
		Gas:       q.gas,
		To:        &to,
		Value:     value,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
	if err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}

	err = a.call(ctx, "eth_sendRawTransaction", func(ctx context.Context, c *ethclient.Client) error {
		return c.SendTransaction(ctx, signed)
	})
	if err != nil {
		return "", err
	}

	hash := signed.Hash().Hex()
	a.logger.Info().
		Str("from", from.Hex()).
		Str("to", to.Hex()).
		Str("amount", req.Amount.String()).
		Str("tx_hash", hash).
		Msg("Transfer broadcast")
	return hash, nil
}

// Confirm polls for the receipt until it exists or ctx is done.
func (a *Adapter) Confirm(ctx context.Context, txHash string) (bool, error) {
	hash := common.HexToHash(txHash)
	ticker := time.NewTicker(a.cfg.ReceiptPollInterval)
	defer ticker.Stop()

	for {
		var receipt *types.Receipt
		err := a.call(ctx, "eth_getTransactionReceipt", func(ctx context.Context, c *ethclient.Client) error {
			var err error
			receipt, err = c.TransactionReceipt(ctx, hash)
			return err
		})
		if err == nil {
			return receipt.Status == types.ReceiptStatusSuccessful, nil
		}
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if !errors.Is(err, ethereum.NotFound) {
			a.logger.Warn().Err(err).Str("tx_hash", txHash).Msg("Receipt lookup failed")
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}
	}
}

func addrPtr(s string) *common.Address {
	a := common.HexToAddress(s)
	return &a
}
