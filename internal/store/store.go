// Package store holds the per-chain account lists of the wallet.
//
// Every mutation works on a copy of the chain's state, persists the copy and
// only then makes it visible, so readers never observe a partial update and a
// failed write leaves the previous state in place.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/Klingon-tech/klingnet-wallet/internal/chain"
	klog "github.com/Klingon-tech/klingnet-wallet/internal/log"
	"github.com/Klingon-tech/klingnet-wallet/internal/storage"
	"github.com/shopspring/decimal"
)

// Store errors.
var (
	ErrUnknownAccount      = errors.New("unknown account")
	ErrUnknownConfirmation = errors.New("unknown confirmation")
	ErrIndexOutOfRange     = errors.New("account index out of range")
	ErrNegativeBalance     = errors.New("negative balance")
	// ErrStale is returned when a response carries an older generation than
	// one already applied. Nothing is changed.
	ErrStale = errors.New("stale response")
)

var statePrefix = []byte("wallet/state/") // wallet/state/<kind> -> WalletState JSON

type genKey struct {
	kind    chain.Kind
	address string
	field   Field
}

// Store is the account state service. It is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	db     *storage.PrefixDB
	states map[chain.Kind]WalletState
	issued map[genKey]uint64
}

// New loads any persisted state from db.
func New(db storage.DB) (*Store, error) {
	s := &Store{
		db:     storage.NewPrefixDB(db, statePrefix),
		states: make(map[chain.Kind]WalletState, len(chain.Kinds)),
		issued: make(map[genKey]uint64),
	}
	for _, kind := range chain.Kinds {
		st, err := s.load(kind)
		if err != nil {
			return nil, err
		}
		s.states[kind] = st
	}
	return s, nil
}

func (s *Store) load(kind chain.Kind) (WalletState, error) {
	raw, err := s.db.Get([]byte(kind))
	if errors.Is(err, storage.ErrNotFound) {
		return WalletState{Chain: kind, Accounts: []Account{}}, nil
	}
	if err != nil {
		return WalletState{}, fmt.Errorf("load %s state: %w", kind, err)
	}
	var st WalletState
	if err := json.Unmarshal(raw, &st); err != nil {
		return WalletState{}, fmt.Errorf("decode %s state: %w", kind, err)
	}
	if st.Accounts == nil {
		st.Accounts = []Account{}
	}
	if st.ActiveIndex < 0 || (len(st.Accounts) > 0 && st.ActiveIndex >= len(st.Accounts)) {
		st.ActiveIndex = 0
	}
	st.Chain = kind
	klog.Store.Debug().Str("chain", kind.String()).Int("accounts", len(st.Accounts)).Msg("State loaded")
	return st, nil
}

// mutate applies fn to a copy of kind's state, persists it and swaps it in.
func (s *Store) mutate(kind chain.Kind, fn func(*WalletState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.states[kind]
	if !ok {
		return fmt.Errorf("unsupported chain %q", kind)
	}
	next := cur.clone()
	if err := fn(&next); err != nil {
		return err
	}
	raw, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode %s state: %w", kind, err)
	}
	if err := s.db.Put([]byte(kind), raw); err != nil {
		return fmt.Errorf("persist %s state: %w", kind, err)
	}
	s.states[kind] = next
	return nil
}

// mutateAccount runs fn on the account with address.
func (s *Store) mutateAccount(kind chain.Kind, address string, fn func(*Account) error) error {
	return s.mutate(kind, func(st *WalletState) error {
		i := st.find(address)
		if i < 0 {
			return fmt.Errorf("%w: %s %s", ErrUnknownAccount, kind, address)
		}
		return fn(&st.Accounts[i])
	})
}

// checkGen rejects gen when a newer one was applied to f, and records it
// otherwise. A zero gen is unversioned and always applies.
func checkGen(a *Account, f Field, gen uint64) error {
	if gen == 0 {
		return nil
	}
	applied := a.gen(f)
	if gen < *applied {
		return fmt.Errorf("%w: %s generation %d < %d", ErrStale, f, gen, *applied)
	}
	*applied = gen
	return nil
}

// NextGeneration issues a generation for a request that will update field f
// of the account. Generations increase monotonically per account and field.
func (s *Store) NextGeneration(kind chain.Kind, address string, f Field) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := genKey{kind: kind, address: address, field: f}
	next := s.issued[k]
	if st, ok := s.states[kind]; ok {
		if i := st.find(address); i >= 0 {
			if applied := *st.Accounts[i].gen(f); applied > next {
				next = applied
			}
		}
	}
	next++
	s.issued[k] = next
	return next
}

// SetAccounts replaces the account list of kind and activates the first one.
func (s *Store) SetAccounts(kind chain.Kind, accounts []Account) error {
	return s.mutate(kind, func(st *WalletState) error {
		st.Accounts = make([]Account, len(accounts))
		for i, a := range accounts {
			a.Chain = kind
			st.Accounts[i] = normalizeAccount(a.clone())
		}
		st.ActiveIndex = 0
		return nil
	})
}

// AppendAccount adds a to the end of kind's list. An account whose address
// is already present is rejected.
func (s *Store) AppendAccount(kind chain.Kind, a Account) error {
	return s.mutate(kind, func(st *WalletState) error {
		if st.find(a.Address) >= 0 {
			return fmt.Errorf("account %s already exists", a.Address)
		}
		a.Chain = kind
		st.Accounts = append(st.Accounts, normalizeAccount(a.clone()))
		return nil
	})
}

// SetActive selects the active account by position.
func (s *Store) SetActive(kind chain.Kind, index int) error {
	return s.mutate(kind, func(st *WalletState) error {
		if index < 0 || index >= len(st.Accounts) {
			return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(st.Accounts))
		}
		st.ActiveIndex = index
		return nil
	})
}

// Rename sets an account's display name.
func (s *Store) Rename(kind chain.Kind, address, name string) error {
	return s.mutateAccount(kind, address, func(a *Account) error {
		a.Name = name
		return nil
	})
}

// MarkLoading flags an account as having a request in flight.
func (s *Store) MarkLoading(kind chain.Kind, address string) error {
	return s.mutateAccount(kind, address, func(a *Account) error {
		a.Status = StatusLoading
		return nil
	})
}

// MarkFailed records a failed request for field f. Balance, history and
// confirmations are kept.
func (s *Store) MarkFailed(kind chain.Kind, address string, f Field, gen uint64) error {
	return s.mutateAccount(kind, address, func(a *Account) error {
		if err := checkGen(a, f, gen); err != nil {
			return err
		}
		a.setFailed(f, true)
		return nil
	})
}

// UpdateBalance stores a fetched balance.
func (s *Store) UpdateBalance(kind chain.Kind, address string, balance decimal.Decimal, gen uint64) error {
	if balance.IsNegative() {
		return fmt.Errorf("%w: %s", ErrNegativeBalance, balance)
	}
	return s.mutateAccount(kind, address, func(a *Account) error {
		if err := checkGen(a, FieldBalance, gen); err != nil {
			return err
		}
		a.Balance = balance
		a.setFailed(FieldBalance, false)
		return nil
	})
}

// SetTransactions replaces the loaded history with its first page.
func (s *Store) SetTransactions(kind chain.Kind, address string, page chain.HistoryPage, gen uint64) error {
	return s.mutateAccount(kind, address, func(a *Account) error {
		if err := checkGen(a, FieldHistory, gen); err != nil {
			return err
		}
		a.History = History{
			Cursor:       page.Next,
			Transactions: append([]chain.Transaction{}, page.Transactions...),
		}
		a.setFailed(FieldHistory, false)
		return nil
	})
}

// AppendTransactions adds a further page and moves the cursor. Transactions
// already present with the same hash and direction are skipped.
func (s *Store) AppendTransactions(kind chain.Kind, address string, page chain.HistoryPage, gen uint64) error {
	return s.mutateAccount(kind, address, func(a *Account) error {
		if err := checkGen(a, FieldHistory, gen); err != nil {
			return err
		}
		seen := make(map[string]bool, len(a.History.Transactions))
		for _, tx := range a.History.Transactions {
			seen[txKey(tx)] = true
		}
		for _, tx := range page.Transactions {
			if seen[txKey(tx)] {
				continue
			}
			seen[txKey(tx)] = true
			a.History.Transactions = append(a.History.Transactions, tx)
		}
		a.History.Cursor = page.Next
		a.setFailed(FieldHistory, false)
		return nil
	})
}

// AddTransaction records a single locally known transaction, such as one
// just sent, keeping the list newest first.
func (s *Store) AddTransaction(kind chain.Kind, address string, tx chain.Transaction) error {
	return s.mutateAccount(kind, address, func(a *Account) error {
		if tx.UniqueID == "" {
			tx.UniqueID = chain.NewUniqueID()
		}
		a.History.Transactions = append(a.History.Transactions, tx)
		chain.SortByBlockTimeDesc(a.History.Transactions)
		return nil
	})
}

// AppendConfirmation starts tracking txHash as pending. Tracking a hash
// twice is a no-op.
func (s *Store) AppendConfirmation(kind chain.Kind, address, txHash string) error {
	return s.mutateAccount(kind, address, func(a *Account) error {
		if _, ok := a.Confirmation(txHash); ok {
			return nil
		}
		a.Confirmations = append(a.Confirmations, Confirmation{
			TxHash: txHash,
			Status: ConfirmationPending,
		})
		return nil
	})
}

// ResolveConfirmation moves a pending record to confirmed or failed.
// A record that is already terminal is left unchanged.
func (s *Store) ResolveConfirmation(kind chain.Kind, address, txHash string, status ConfirmationStatus, reason string) error {
	if !status.terminal() {
		return fmt.Errorf("cannot resolve confirmation to %q", status)
	}
	return s.mutateAccount(kind, address, func(a *Account) error {
		for i := range a.Confirmations {
			c := &a.Confirmations[i]
			if c.TxHash != txHash {
				continue
			}
			if c.Status.terminal() {
				return nil
			}
			c.Status = status
			c.Error = reason
			return nil
		}
		return fmt.Errorf("%w: %s", ErrUnknownConfirmation, txHash)
	})
}

// Reset wipes every chain's accounts and confirmations.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.db.NewBatch()
	for _, kind := range chain.Kinds {
		if err := batch.Delete([]byte(kind)); err != nil {
			return fmt.Errorf("reset %s: %w", kind, err)
		}
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("reset state: %w", err)
	}
	for _, kind := range chain.Kinds {
		s.states[kind] = WalletState{Chain: kind, Accounts: []Account{}}
	}
	s.issued = make(map[genKey]uint64)
	klog.Store.Info().Msg("Wallet state reset")
	return nil
}

// State returns a copy of kind's state.
func (s *Store) State(kind chain.Kind) WalletState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[kind]
	if !ok {
		return WalletState{Chain: kind, Accounts: []Account{}}
	}
	return st.clone()
}

// Active returns a copy of kind's active account.
func (s *Store) Active(kind chain.Kind) (Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.states[kind].Active()
	if !ok {
		return Account{}, false
	}
	return a.clone(), true
}

// Account returns a copy of the account with address.
func (s *Store) Account(kind chain.Kind, address string) (Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.states[kind]
	i := st.find(address)
	if i < 0 {
		return Account{}, false
	}
	return st.Accounts[i].clone(), true
}

// Empty reports whether no chain has any account.
func (s *Store) Empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.states {
		if len(st.Accounts) > 0 {
			return false
		}
	}
	return true
}

func normalizeAccount(a Account) Account {
	if a.Status == "" {
		a.Status = StatusIdle
	}
	if a.FailedNetworkRequest && !a.BalanceFailed && !a.HistoryFailed {
		a.BalanceFailed, a.HistoryFailed = true, true
	}
	if a.History.Transactions == nil {
		a.History.Transactions = []chain.Transaction{}
	}
	if a.Confirmations == nil {
		a.Confirmations = []Confirmation{}
	}
	return a
}

func txKey(tx chain.Transaction) string {
	return tx.Hash + "/" + string(tx.Direction)
}
