// Package chain defines the chain adapter contract shared by every supported
// network, plus account discovery, history normalisation and the network
// resilience helpers the adapters are built on.
package chain

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind identifies a supported chain family.
type Kind string

const (
	KindEVM    Kind = "evm"
	KindSolana Kind = "solana"
)

// Kinds lists every supported kind in display order.
var Kinds = []Kind{KindEVM, KindSolana}

// ParseKind parses a kind name.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindEVM, KindSolana:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown chain kind %q", s)
	}
}

func (k Kind) String() string { return string(k) }

// DerivedAccount is the key material and address at one derivation index.
type DerivedAccount struct {
	Index          uint32 `json:"index"`
	Address        string `json:"address"`
	PublicKey      string `json:"public_key"`
	DerivationPath string `json:"derivation_path"`
	Chain          Kind   `json:"chain"`
}

// Direction of a transfer relative to the account that fetched it.
type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
)

// Transaction is the normalised record of one transfer.
type Transaction struct {
	UniqueID  string          `json:"unique_id"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Hash      string          `json:"hash"`
	Value     decimal.Decimal `json:"value"`
	BlockTime int64           `json:"block_time"`
	Asset     string          `json:"asset"`
	Direction Direction       `json:"direction"`
}

// Cursor is an opaque pagination position. A nil cursor requests the first
// page. Its content is adapter specific.
type Cursor []string

// HistoryPage is one page of history, newest first.
type HistoryPage struct {
	Transactions []Transaction
	Next         Cursor // nil when there are no further pages
}

// TransferRequest describes a native-asset transfer.
type TransferRequest struct {
	PrivateKey []byte
	From       string
	To         string
	Amount     decimal.Decimal
	// Balance is the locally known balance of From; a request whose Amount
	// exceeds it is rejected before any network call.
	Balance decimal.Decimal
}

// Check validates the request without touching the network.
func (r TransferRequest) Check(validAddress func(string) bool) error {
	if err := r.CheckFunds(validAddress); err != nil {
		return err
	}
	if len(r.PrivateKey) == 0 {
		return fmt.Errorf("transfer: missing private key")
	}
	return nil
}

// CheckFunds validates amount, recipient and balance. The key is not needed.
func (r TransferRequest) CheckFunds(validAddress func(string) bool) error {
	if !r.Amount.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, r.Amount)
	}
	if !validAddress(r.To) {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, r.To)
	}
	if r.Amount.GreaterThan(r.Balance) {
		return fmt.Errorf("%w: amount %s, balance %s", ErrInsufficientBalance, r.Amount, r.Balance)
	}
	return nil
}

// Adapter is the per-chain implementation used by the engine.
type Adapter interface {
	Kind() Kind

	// DeriveAccount derives the account at index. Pure.
	DeriveAccount(seed []byte, index uint32) (DerivedAccount, error)
	// PrivateKey returns the signing key at index in the form SendTransfer expects.
	PrivateKey(seed []byte, index uint32) ([]byte, error)
	ValidateAddress(addr string) bool

	// Balance returns the native balance in the human unit. A transport
	// failure is returned as an error, never as zero.
	Balance(ctx context.Context, address string) (decimal.Decimal, error)
	History(ctx context.Context, address string, cursor Cursor) (HistoryPage, error)
	// HasHistory reports whether any transaction exists for address.
	HasHistory(ctx context.Context, address string) (bool, error)

	EstimateFee(ctx context.Context, from, to string, amount decimal.Decimal) (decimal.Decimal, error)
	SendTransfer(ctx context.Context, req TransferRequest) (string, error)
	// Confirm blocks until txHash is final or ctx is done. It returns true
	// on success and false on an on-chain failure.
	Confirm(ctx context.Context, txHash string) (bool, error)

	Close() error
}

// Notifier is implemented by adapters that push a signal when the chain
// advances. The engine refreshes active accounts on each signal.
type Notifier interface {
	Notify() <-chan struct{}
}
