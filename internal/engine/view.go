package engine

import (
	"github.com/Klingon-tech/klingnet-wallet/internal/chain"
	"github.com/Klingon-tech/klingnet-wallet/internal/store"
)

// TransactionView is a transaction as shown to the UI.
type TransactionView struct {
	ID        string          `json:"id"`
	Hash      string          `json:"hash"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Value     string          `json:"value"`
	Asset     string          `json:"asset"`
	Direction chain.Direction `json:"direction"`
	BlockTime int64           `json:"block_time"`
}

// ConfirmationView is a tracked submission.
type ConfirmationView struct {
	TxHash string `json:"tx_hash"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// AccountView is a read-only snapshot of one account.
type AccountView struct {
	Chain                chain.Kind         `json:"chain"`
	Name                 string             `json:"name"`
	Index                uint32             `json:"index"`
	DerivationPath       string             `json:"derivation_path"`
	Address              string             `json:"address"`
	PublicKey            string             `json:"public_key"`
	Balance              string             `json:"balance"`
	Status               string             `json:"status"`
	FailedNetworkRequest bool               `json:"failed_network_request"`
	BalanceFailed        bool               `json:"balance_failed"`
	HistoryFailed        bool               `json:"history_failed"`
	HasMore              bool               `json:"has_more"`
	Transactions         []TransactionView  `json:"transactions"`
	Confirmations        []ConfirmationView `json:"confirmations"`
}

// WalletView is a read-only snapshot of one chain's accounts.
type WalletView struct {
	Chain       chain.Kind    `json:"chain"`
	ActiveIndex int           `json:"active_index"`
	Accounts    []AccountView `json:"accounts"`
}

// Active returns the active account view.
func (w WalletView) Active() (AccountView, bool) {
	if len(w.Accounts) == 0 {
		return AccountView{}, false
	}
	return w.Accounts[w.ActiveIndex], true
}

func newAccountView(a store.Account) AccountView {
	v := AccountView{
		Chain:                a.Chain,
		Name:                 a.Name,
		Index:                a.Index,
		DerivationPath:       a.DerivationPath,
		Address:              a.Address,
		PublicKey:            a.PublicKey,
		Balance:              a.Balance.String(),
		Status:               string(a.Status),
		FailedNetworkRequest: a.FailedNetworkRequest,
		BalanceFailed:        a.BalanceFailed,
		HistoryFailed:        a.HistoryFailed,
		HasMore:              len(a.History.Cursor) > 0,
		Transactions:         make([]TransactionView, len(a.History.Transactions)),
		Confirmations:        make([]ConfirmationView, len(a.Confirmations)),
	}
	for i, tx := range a.History.Transactions {
		v.Transactions[i] = TransactionView{
			ID:        tx.UniqueID,
			Hash:      tx.Hash,
			From:      tx.From,
			To:        tx.To,
			Value:     tx.Value.String(),
			Asset:     tx.Asset,
			Direction: tx.Direction,
			BlockTime: tx.BlockTime,
		}
	}
	for i, c := range a.Confirmations {
		v.Confirmations[i] = ConfirmationView{TxHash: c.TxHash, Status: string(c.Status), Error: c.Error}
	}
	return v
}

// Wallet returns the view of kind's accounts.
func (e *Engine) Wallet(kind chain.Kind) WalletView {
	st := e.store.State(kind)
	w := WalletView{
		Chain:       kind,
		ActiveIndex: st.ActiveIndex,
		Accounts:    make([]AccountView, len(st.Accounts)),
	}
	for i, a := range st.Accounts {
		w.Accounts[i] = newAccountView(a)
	}
	return w
}

// Wallets returns a view per served chain.
func (e *Engine) Wallets() []WalletView {
	out := make([]WalletView, 0, len(e.kinds))
	for _, kind := range e.kinds {
		out = append(out, e.Wallet(kind))
	}
	return out
}

// Account returns the view of one account.
func (e *Engine) Account(kind chain.Kind, address string) (AccountView, error) {
	a, err := e.resolve(kind, address)
	if err != nil {
		return AccountView{}, err
	}
	return newAccountView(a), nil
}
