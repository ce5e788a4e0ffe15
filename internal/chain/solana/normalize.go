package solana

import (
	"encoding/json"
	"math/big"

	"github.com/Klingon-tech/klingnet-wallet/internal/chain"
	"github.com/shopspring/decimal"
)

const lamportsExp = 9

type transferInfo struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Lamports    uint64 `json:"lamports"`
}

type parsedInstruction struct {
	Type string          `json:"type"`
	Info json.RawMessage `json:"info"`
}

type instruction struct {
	Program   string          `json:"program"`
	ProgramID string          `json:"programId"`
	Parsed    json.RawMessage `json:"parsed"`
}

// parsedTransaction is the jsonParsed getTransaction result.
type parsedTransaction struct {
	Slot      uint64 `json:"slot"`
	BlockTime *int64 `json:"blockTime"`
	Meta      *struct {
		Err json.RawMessage `json:"err"`
	} `json:"meta"`
	Transaction struct {
		Signatures []string `json:"signatures"`
		Message    struct {
			RecentBlockhash string        `json:"recentBlockhash"`
			Instructions    []instruction `json:"instructions"`
		} `json:"message"`
	} `json:"transaction"`
}

// LamportsToSOL converts lamports to SOL.
func LamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -lamportsExp)
}

// SOLToLamports converts SOL to lamports, truncating below one lamport.
func SOLToLamports(sol decimal.Decimal) uint64 {
	return uint64(sol.Shift(lamportsExp).IntPart())
}

// firstTransfer returns the first instruction parsed as a transfer.
func firstTransfer(tx *parsedTransaction) (transferInfo, bool) {
	for _, ix := range tx.Transaction.Message.Instructions {
		if len(ix.Parsed) == 0 || ix.Parsed[0] != '{' {
			continue
		}
		var p parsedInstruction
		if err := json.Unmarshal(ix.Parsed, &p); err != nil || p.Type != "transfer" {
			continue
		}
		var info transferInfo
		if err := json.Unmarshal(p.Info, &info); err != nil {
			continue
		}
		return info, true
	}
	return transferInfo{}, false
}

// normalize turns a parsed transaction into a chain.Transaction seen from
// owner. It reports false for transactions without a transfer instruction
// and for transfers where owner is neither source nor destination.
func normalize(signature string, tx *parsedTransaction, owner string, fallbackTime int64) (chain.Transaction, bool) {
	if tx == nil {
		return chain.Transaction{}, false
	}
	info, ok := firstTransfer(tx)
	if !ok {
		return chain.Transaction{}, false
	}

	var dir chain.Direction
	switch owner {
	case info.Source:
		dir = chain.DirectionSent
	case info.Destination:
		dir = chain.DirectionReceived
	default:
		return chain.Transaction{}, false
	}

	if signature == "" && len(tx.Transaction.Signatures) > 0 {
		signature = tx.Transaction.Signatures[0]
	}
	blockTime := fallbackTime
	if tx.BlockTime != nil {
		blockTime = *tx.BlockTime
	}

	return chain.Transaction{
		UniqueID:  chain.NewUniqueID(),
		From:      info.Source,
		To:        info.Destination,
		Hash:      signature,
		Value:     LamportsToSOL(info.Lamports),
		BlockTime: blockTime,
		Asset:     "SOL",
		Direction: dir,
	}, true
}
