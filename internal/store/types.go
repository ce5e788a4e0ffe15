package store

import (
	"github.com/Klingon-tech/klingnet-wallet/internal/chain"
	"github.com/shopspring/decimal"
)

// Status is the fetch state of an account.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// ConfirmationStatus is the state of a submitted transaction.
// Pending moves to Confirmed or Failed once; both are terminal.
type ConfirmationStatus string

const (
	ConfirmationPending   ConfirmationStatus = "pending"
	ConfirmationConfirmed ConfirmationStatus = "confirmed"
	ConfirmationFailed    ConfirmationStatus = "failed"
)

func (s ConfirmationStatus) terminal() bool {
	return s == ConfirmationConfirmed || s == ConfirmationFailed
}

// Confirmation tracks one submitted transaction.
type Confirmation struct {
	TxHash string             `json:"tx_hash"`
	Status ConfirmationStatus `json:"status"`
	Error  string             `json:"error,omitempty"`
}

// History is the loaded part of an account's transaction history.
type History struct {
	Cursor       chain.Cursor        `json:"cursor,omitempty"`
	Transactions []chain.Transaction `json:"transactions"`
}

// Field selects which part of an account a generation counter guards.
type Field int

const (
	FieldBalance Field = iota
	FieldHistory
)

func (f Field) String() string {
	switch f {
	case FieldBalance:
		return "balance"
	case FieldHistory:
		return "history"
	default:
		return "unknown"
	}
}

// Account is one derived account and everything fetched for it.
type Account struct {
	Name                 string          `json:"name"`
	DerivationPath       string          `json:"derivation_path"`
	Index                uint32          `json:"index"`
	Address              string          `json:"address"`
	PublicKey            string          `json:"public_key"`
	Balance              decimal.Decimal `json:"balance"`
	History              History         `json:"history"`
	FailedNetworkRequest bool            `json:"failed_network_request"`
	BalanceFailed        bool            `json:"balance_failed"`
	HistoryFailed        bool            `json:"history_failed"`
	Status               Status          `json:"status"`
	Confirmations        []Confirmation  `json:"confirmations"`
	Chain                chain.Kind      `json:"chain"`

	// Newest applied generation per field. Zero means never versioned.
	BalanceGen uint64 `json:"balance_gen"`
	HistoryGen uint64 `json:"history_gen"`
}

// NewAccount builds a fresh idle account from derived key material.
func NewAccount(d chain.DerivedAccount, name string) Account {
	return Account{
		Name:           name,
		DerivationPath: d.DerivationPath,
		Index:          d.Index,
		Address:        d.Address,
		PublicKey:      d.PublicKey,
		Balance:        decimal.Zero,
		History:        History{Transactions: []chain.Transaction{}},
		Status:         StatusIdle,
		Confirmations:  []Confirmation{},
		Chain:          d.Chain,
	}
}

// setFailed records the outcome of the latest request for field f. The
// account stays failed while either field's last request failed.
func (a *Account) setFailed(f Field, failed bool) {
	if f == FieldHistory {
		a.HistoryFailed = failed
	} else {
		a.BalanceFailed = failed
	}
	a.FailedNetworkRequest = a.BalanceFailed || a.HistoryFailed
	if a.FailedNetworkRequest {
		a.Status = StatusFailed
	} else {
		a.Status = StatusSuccess
	}
}

func (a *Account) gen(f Field) *uint64 {
	if f == FieldHistory {
		return &a.HistoryGen
	}
	return &a.BalanceGen
}

// Confirmation returns the record for txHash.
func (a *Account) Confirmation(txHash string) (Confirmation, bool) {
	for _, c := range a.Confirmations {
		if c.TxHash == txHash {
			return c, true
		}
	}
	return Confirmation{}, false
}

func (a Account) clone() Account {
	out := a
	out.History.Cursor = append(chain.Cursor(nil), a.History.Cursor...)
	out.History.Transactions = append([]chain.Transaction{}, a.History.Transactions...)
	out.Confirmations = append([]Confirmation{}, a.Confirmations...)
	return out
}

// WalletState is the account list of one chain plus the active index.
// When Accounts is non-empty, 0 <= ActiveIndex < len(Accounts).
type WalletState struct {
	Chain       chain.Kind `json:"chain"`
	Accounts    []Account  `json:"accounts"`
	ActiveIndex int        `json:"active_index"`
}

func (w WalletState) clone() WalletState {
	out := WalletState{Chain: w.Chain, ActiveIndex: w.ActiveIndex}
	out.Accounts = make([]Account, len(w.Accounts))
	for i, a := range w.Accounts {
		out.Accounts[i] = a.clone()
	}
	return out
}

// Active returns the active account, if any.
func (w WalletState) Active() (Account, bool) {
	if len(w.Accounts) == 0 {
		return Account{}, false
	}
	return w.Accounts[w.ActiveIndex], true
}

func (w *WalletState) find(address string) int {
	for i := range w.Accounts {
		if w.Accounts[i].Address == address {
			return i
		}
	}
	return -1
}
