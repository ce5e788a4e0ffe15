package evm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Klingon-tech/klingnet-wallet/internal/chain"
	"github.com/shopspring/decimal"
)

const methodAssetTransfers = "alchemy_getAssetTransfers"

var transferCategories = []string{"external", "internal", "erc20", "erc721", "erc1155", "specialnft"}

type transferParams struct {
	FromBlock        string   `json:"fromBlock"`
	FromAddress      string   `json:"fromAddress,omitempty"`
	ToAddress        string   `json:"toAddress,omitempty"`
	Category         []string `json:"category"`
	ExcludeZeroValue bool     `json:"excludeZeroValue"`
	WithMetadata     bool     `json:"withMetadata"`
	MaxCount         string   `json:"maxCount,omitempty"`
	PageKey          string   `json:"pageKey,omitempty"`
}

type transferMetadata struct {
	BlockTimestamp string `json:"blockTimestamp"`
}

type assetTransfer struct {
	Hash     string           `json:"hash"`
	From     string           `json:"from"`
	To       string           `json:"to"`
	Value    *json.Number     `json:"value"`
	Asset    string           `json:"asset"`
	Metadata transferMetadata `json:"metadata"`
}

type transfersResult struct {
	Transfers []assetTransfer `json:"transfers"`
	PageKey   string          `json:"pageKey"`
}

func newTransferParams(maxCount int, pageKey string) transferParams {
	return transferParams{
		FromBlock:        "0x0",
		Category:         transferCategories,
		ExcludeZeroValue: true,
		WithMetadata:     true,
		MaxCount:         fmt.Sprintf("0x%x", maxCount),
		PageKey:          pageKey,
	}
}

func (a *Adapter) assetTransfers(ctx context.Context, p transferParams) (transfersResult, error) {
	var res transfersResult
	if err := a.callRaw(ctx, methodAssetTransfers, []interface{}{p}, &res); err != nil {
		return transfersResult{}, fmt.Errorf("%s: %w", methodAssetTransfers, err)
	}
	return res, nil
}

// History fetches sent and received transfers and merges them newest first.
// The cursor is the pair [sentPageKey, receivedPageKey]; a side whose key is
// empty on a non-nil cursor has no more pages and is skipped.
func (a *Adapter) History(ctx context.Context, address string, cursor chain.Cursor) (chain.HistoryPage, error) {
	if !a.ValidateAddress(address) {
		return chain.HistoryPage{}, fmt.Errorf("%w: %q", chain.ErrInvalidAddress, address)
	}

	querySent, queryReceived := true, true
	var sentKey, receivedKey string
	if cursor != nil {
		if len(cursor) != 2 {
			return chain.HistoryPage{}, fmt.Errorf("evm history: cursor must hold 2 page keys, got %d", len(cursor))
		}
		sentKey, receivedKey = cursor[0], cursor[1]
		querySent, queryReceived = sentKey != "", receivedKey != ""
	}

	var sent, received []chain.Transaction
	var nextSent, nextReceived string

	if querySent {
		p := newTransferParams(a.cfg.PageSize, sentKey)
		p.FromAddress = address
		res, err := a.assetTransfers(ctx, p)
		if err != nil {
			return chain.HistoryPage{}, err
		}
		sent = normalizeTransfers(res.Transfers, chain.DirectionSent)
		nextSent = res.PageKey
	}
	if queryReceived {
		p := newTransferParams(a.cfg.PageSize, receivedKey)
		p.ToAddress = address
		res, err := a.assetTransfers(ctx, p)
		if err != nil {
			return chain.HistoryPage{}, err
		}
		received = normalizeTransfers(res.Transfers, chain.DirectionReceived)
		nextReceived = res.PageKey
	}

	page := chain.HistoryPage{Transactions: chain.Merge(sent, received)}
	if nextSent != "" || nextReceived != "" {
		page.Next = chain.Cursor{nextSent, nextReceived}
	}
	a.logger.Debug().
		Str("address", address).
		Int("count", len(page.Transactions)).
		Bool("more", page.Next != nil).
		Msg("Fetched history")
	return page, nil
}

// HasHistory asks for a single transfer in each direction.
func (a *Adapter) HasHistory(ctx context.Context, address string) (bool, error) {
	p := newTransferParams(1, "")
	p.FromAddress = address
	res, err := a.assetTransfers(ctx, p)
	if err != nil {
		return false, err
	}
	if len(res.Transfers) > 0 {
		return true, nil
	}

	p = newTransferParams(1, "")
	p.ToAddress = address
	res, err = a.assetTransfers(ctx, p)
	if err != nil {
		return false, err
	}
	return len(res.Transfers) > 0, nil
}

func normalizeTransfers(in []assetTransfer, dir chain.Direction) []chain.Transaction {
	out := make([]chain.Transaction, 0, len(in))
	for _, t := range in {
		out = append(out, normalizeTransfer(t, dir))
	}
	return out
}

func normalizeTransfer(t assetTransfer, dir chain.Direction) chain.Transaction {
	value := decimal.Zero
	if t.Value != nil {
		if v, err := decimal.NewFromString(t.Value.String()); err == nil {
			value = v
		}
	}
	var blockTime int64
	if ts, err := time.Parse(time.RFC3339, t.Metadata.BlockTimestamp); err == nil {
		blockTime = ts.Unix()
	}
	asset := t.Asset
	if asset == "" {
		asset = "ETH"
	}
	return chain.Transaction{
		UniqueID:  chain.NewUniqueID(),
		From:      t.From,
		To:        t.To,
		Hash:      strings.ToLower(t.Hash),
		Value:     value,
		BlockTime: blockTime,
		Asset:     asset,
		Direction: dir,
	}
}
