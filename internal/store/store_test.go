package store

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/Klingon-tech/klingnet-wallet/internal/chain"
	klog "github.com/Klingon-tech/klingnet-wallet/internal/log"
	"github.com/Klingon-tech/klingnet-wallet/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { klog.Disable() }

func testAccount(kind chain.Kind, i uint32) Account {
	return NewAccount(chain.DerivedAccount{
		Index:          i,
		Address:        fmt.Sprintf("%s-addr-%d", kind, i),
		PublicKey:      fmt.Sprintf("%s-pub-%d", kind, i),
		DerivationPath: fmt.Sprintf("m/%d", i),
		Chain:          kind,
	}, fmt.Sprintf("Account %d", i+1))
}

func newStore(t *testing.T) (*Store, storage.DB) {
	t.Helper()
	db := storage.NewMemory()
	s, err := New(db)
	require.NoError(t, err)
	return s, db
}

// failingDB refuses writes.
type failingDB struct{ storage.DB }

func (failingDB) Put([]byte, []byte) error { return errors.New("disk full") }

func TestStore_EmptyOnFirstStart(t *testing.T) {
	s, _ := newStore(t)
	assert.True(t, s.Empty())
	for _, kind := range chain.Kinds {
		st := s.State(kind)
		assert.Equal(t, kind, st.Chain)
		assert.Empty(t, st.Accounts)
		_, ok := s.Active(kind)
		assert.False(t, ok)
	}
}

func TestStore_SetAccountsResetsActive(t *testing.T) {
	s, _ := newStore(t)
	require.NoError(t, s.SetAccounts(chain.KindEVM, []Account{testAccount(chain.KindEVM, 0), testAccount(chain.KindEVM, 1)}))
	require.NoError(t, s.SetActive(chain.KindEVM, 1))

	active, ok := s.Active(chain.KindEVM)
	require.True(t, ok)
	assert.Equal(t, uint32(1), active.Index)

	require.NoError(t, s.SetAccounts(chain.KindEVM, []Account{testAccount(chain.KindEVM, 0)}))
	assert.Equal(t, 0, s.State(chain.KindEVM).ActiveIndex)
}

func TestStore_SetActiveBounds(t *testing.T) {
	s, _ := newStore(t)
	require.NoError(t, s.SetAccounts(chain.KindSolana, []Account{testAccount(chain.KindSolana, 0)}))

	assert.ErrorIs(t, s.SetActive(chain.KindSolana, 1), ErrIndexOutOfRange)
	assert.ErrorIs(t, s.SetActive(chain.KindSolana, -1), ErrIndexOutOfRange)
	assert.Equal(t, 0, s.State(chain.KindSolana).ActiveIndex)
}

func TestStore_AppendAccount(t *testing.T) {
	s, _ := newStore(t)
	require.NoError(t, s.AppendAccount(chain.KindEVM, testAccount(chain.KindEVM, 0)))
	require.NoError(t, s.AppendAccount(chain.KindEVM, testAccount(chain.KindEVM, 1)))
	assert.Error(t, s.AppendAccount(chain.KindEVM, testAccount(chain.KindEVM, 1)))

	st := s.State(chain.KindEVM)
	require.Len(t, st.Accounts, 2)
	assert.Equal(t, uint32(1), st.Accounts[1].Index)
	assert.Equal(t, StatusIdle, st.Accounts[1].Status)
}

func TestStore_PersistsAcrossRestart(t *testing.T) {
	s, db := newStore(t)
	a := testAccount(chain.KindEVM, 0)
	require.NoError(t, s.SetAccounts(chain.KindEVM, []Account{a, testAccount(chain.KindEVM, 1)}))
	require.NoError(t, s.SetActive(chain.KindEVM, 1))
	require.NoError(t, s.UpdateBalance(chain.KindEVM, a.Address, decimal.RequireFromString("1.25"), 0))
	require.NoError(t, s.Rename(chain.KindEVM, a.Address, "Savings"))

	reopened, err := New(db)
	require.NoError(t, err)
	st := reopened.State(chain.KindEVM)
	require.Len(t, st.Accounts, 2)
	assert.Equal(t, 1, st.ActiveIndex)
	assert.Equal(t, "Savings", st.Accounts[0].Name)
	assert.True(t, st.Accounts[0].Balance.Equal(decimal.RequireFromString("1.25")))
}

func TestStore_FailedWriteKeepsPreviousState(t *testing.T) {
	mem := storage.NewMemory()
	s, err := New(mem)
	require.NoError(t, err)
	a := testAccount(chain.KindEVM, 0)
	require.NoError(t, s.SetAccounts(chain.KindEVM, []Account{a}))

	s.db = storage.NewPrefixDB(failingDB{mem}, statePrefix)
	err = s.UpdateBalance(chain.KindEVM, a.Address, decimal.NewFromInt(5), 0)
	require.Error(t, err)

	got, ok := s.Account(chain.KindEVM, a.Address)
	require.True(t, ok)
	assert.True(t, got.Balance.IsZero())
}

func TestStore_MarkFailedKeepsData(t *testing.T) {
	s, _ := newStore(t)
	a := testAccount(chain.KindSolana, 0)
	require.NoError(t, s.SetAccounts(chain.KindSolana, []Account{a}))
	require.NoError(t, s.UpdateBalance(chain.KindSolana, a.Address, decimal.NewFromInt(3), 0))
	require.NoError(t, s.SetTransactions(chain.KindSolana, a.Address, chain.HistoryPage{
		Transactions: []chain.Transaction{{Hash: "h1", BlockTime: 10}},
	}, 0))

	require.NoError(t, s.MarkLoading(chain.KindSolana, a.Address))
	got, _ := s.Account(chain.KindSolana, a.Address)
	assert.Equal(t, StatusLoading, got.Status)

	require.NoError(t, s.MarkFailed(chain.KindSolana, a.Address, FieldBalance, 0))
	got, _ = s.Account(chain.KindSolana, a.Address)
	assert.Equal(t, StatusFailed, got.Status)
	assert.True(t, got.FailedNetworkRequest)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(3)))
	assert.Len(t, got.History.Transactions, 1)

	require.NoError(t, s.UpdateBalance(chain.KindSolana, a.Address, decimal.NewFromInt(4), 0))
	got, _ = s.Account(chain.KindSolana, a.Address)
	assert.False(t, got.FailedNetworkRequest)
	assert.Equal(t, StatusSuccess, got.Status)
}

func TestStore_FailureTrackedPerField(t *testing.T) {
	s, _ := newStore(t)
	a := testAccount(chain.KindEVM, 0)
	require.NoError(t, s.SetAccounts(chain.KindEVM, []Account{a}))

	require.NoError(t, s.MarkFailed(chain.KindEVM, a.Address, FieldHistory, 0))
	require.NoError(t, s.UpdateBalance(chain.KindEVM, a.Address, decimal.NewFromInt(1), 0))
	got, _ := s.Account(chain.KindEVM, a.Address)
	assert.True(t, got.FailedNetworkRequest)
	assert.True(t, got.HistoryFailed)
	assert.False(t, got.BalanceFailed)
	assert.Equal(t, StatusFailed, got.Status)

	require.NoError(t, s.MarkFailed(chain.KindEVM, a.Address, FieldBalance, 0))
	require.NoError(t, s.SetTransactions(chain.KindEVM, a.Address, chain.HistoryPage{}, 0))
	got, _ = s.Account(chain.KindEVM, a.Address)
	assert.True(t, got.FailedNetworkRequest)
	assert.True(t, got.BalanceFailed)
	assert.False(t, got.HistoryFailed)

	require.NoError(t, s.AppendTransactions(chain.KindEVM, a.Address, chain.HistoryPage{}, 0))
	require.NoError(t, s.UpdateBalance(chain.KindEVM, a.Address, decimal.NewFromInt(2), 0))
	got, _ = s.Account(chain.KindEVM, a.Address)
	assert.False(t, got.FailedNetworkRequest)
	assert.Equal(t, StatusSuccess, got.Status)
}

func TestStore_RejectsNegativeBalance(t *testing.T) {
	s, _ := newStore(t)
	a := testAccount(chain.KindEVM, 0)
	require.NoError(t, s.SetAccounts(chain.KindEVM, []Account{a}))
	assert.ErrorIs(t, s.UpdateBalance(chain.KindEVM, a.Address, decimal.NewFromInt(-1), 0), ErrNegativeBalance)
}

func TestStore_UnknownAccount(t *testing.T) {
	s, _ := newStore(t)
	err := s.UpdateBalance(chain.KindEVM, "nobody", decimal.Zero, 0)
	assert.ErrorIs(t, err, ErrUnknownAccount)
	_, ok := s.Account(chain.KindEVM, "nobody")
	assert.False(t, ok)
}

func TestStore_GenerationsDiscardStaleResponses(t *testing.T) {
	s, _ := newStore(t)
	a := testAccount(chain.KindEVM, 0)
	require.NoError(t, s.SetAccounts(chain.KindEVM, []Account{a}))

	older := s.NextGeneration(chain.KindEVM, a.Address, FieldBalance)
	newer := s.NextGeneration(chain.KindEVM, a.Address, FieldBalance)
	require.Greater(t, newer, older)

	require.NoError(t, s.UpdateBalance(chain.KindEVM, a.Address, decimal.NewFromInt(2), newer))
	err := s.UpdateBalance(chain.KindEVM, a.Address, decimal.NewFromInt(1), older)
	assert.ErrorIs(t, err, ErrStale)

	got, _ := s.Account(chain.KindEVM, a.Address)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(2)))

	// A late failure of the older request must not flag the account.
	assert.ErrorIs(t, s.MarkFailed(chain.KindEVM, a.Address, FieldBalance, older), ErrStale)
	got, _ = s.Account(chain.KindEVM, a.Address)
	assert.False(t, got.FailedNetworkRequest)

	// History generations are independent of balance generations.
	h := s.NextGeneration(chain.KindEVM, a.Address, FieldHistory)
	assert.Equal(t, uint64(1), h)
	require.NoError(t, s.SetTransactions(chain.KindEVM, a.Address, chain.HistoryPage{}, h))

	// Unversioned writes always apply.
	require.NoError(t, s.UpdateBalance(chain.KindEVM, a.Address, decimal.NewFromInt(7), 0))
}

func TestStore_GenerationsSurviveRestart(t *testing.T) {
	s, db := newStore(t)
	a := testAccount(chain.KindEVM, 0)
	require.NoError(t, s.SetAccounts(chain.KindEVM, []Account{a}))
	for i := 0; i < 3; i++ {
		g := s.NextGeneration(chain.KindEVM, a.Address, FieldBalance)
		require.NoError(t, s.UpdateBalance(chain.KindEVM, a.Address, decimal.NewFromInt(int64(i)), g))
	}

	reopened, err := New(db)
	require.NoError(t, err)
	g := reopened.NextGeneration(chain.KindEVM, a.Address, FieldBalance)
	assert.Equal(t, uint64(4), g)
	require.NoError(t, reopened.UpdateBalance(chain.KindEVM, a.Address, decimal.NewFromInt(9), g))
}

func TestStore_Transactions(t *testing.T) {
	s, _ := newStore(t)
	a := testAccount(chain.KindEVM, 0)
	require.NoError(t, s.SetAccounts(chain.KindEVM, []Account{a}))

	first := chain.HistoryPage{
		Transactions: []chain.Transaction{
			{Hash: "h3", BlockTime: 30, Direction: chain.DirectionSent},
			{Hash: "h2", BlockTime: 20, Direction: chain.DirectionReceived},
		},
		Next: chain.Cursor{"k1", ""},
	}
	require.NoError(t, s.SetTransactions(chain.KindEVM, a.Address, first, 0))

	more := chain.HistoryPage{
		Transactions: []chain.Transaction{
			{Hash: "h2", BlockTime: 20, Direction: chain.DirectionReceived},
			{Hash: "h1", BlockTime: 10, Direction: chain.DirectionSent},
		},
	}
	require.NoError(t, s.AppendTransactions(chain.KindEVM, a.Address, more, 0))

	got, _ := s.Account(chain.KindEVM, a.Address)
	require.Len(t, got.History.Transactions, 3)
	assert.Nil(t, got.History.Cursor)
	assert.True(t, chain.IsSortedDesc(got.History.Transactions))

	require.NoError(t, s.AddTransaction(chain.KindEVM, a.Address, chain.Transaction{Hash: "h4", BlockTime: 40}))
	got, _ = s.Account(chain.KindEVM, a.Address)
	require.Len(t, got.History.Transactions, 4)
	assert.Equal(t, "h4", got.History.Transactions[0].Hash)
	assert.NotEmpty(t, got.History.Transactions[0].UniqueID)

	require.NoError(t, s.SetTransactions(chain.KindEVM, a.Address, chain.HistoryPage{}, 0))
	got, _ = s.Account(chain.KindEVM, a.Address)
	assert.Empty(t, got.History.Transactions)
}

func TestStore_ConfirmationLifecycle(t *testing.T) {
	s, _ := newStore(t)
	a := testAccount(chain.KindSolana, 0)
	require.NoError(t, s.SetAccounts(chain.KindSolana, []Account{a}))

	require.NoError(t, s.AppendConfirmation(chain.KindSolana, a.Address, "sig"))
	require.NoError(t, s.AppendConfirmation(chain.KindSolana, a.Address, "sig"))
	got, _ := s.Account(chain.KindSolana, a.Address)
	require.Len(t, got.Confirmations, 1)
	assert.Equal(t, ConfirmationPending, got.Confirmations[0].Status)

	assert.Error(t, s.ResolveConfirmation(chain.KindSolana, a.Address, "sig", ConfirmationPending, ""))

	require.NoError(t, s.ResolveConfirmation(chain.KindSolana, a.Address, "sig", ConfirmationFailed, "timeout"))
	// Terminal records never change.
	require.NoError(t, s.ResolveConfirmation(chain.KindSolana, a.Address, "sig", ConfirmationConfirmed, ""))

	c, ok := func() (Confirmation, bool) {
		acct, _ := s.Account(chain.KindSolana, a.Address)
		return acct.Confirmation("sig")
	}()
	require.True(t, ok)
	assert.Equal(t, ConfirmationFailed, c.Status)
	assert.Equal(t, "timeout", c.Error)

	err := s.ResolveConfirmation(chain.KindSolana, a.Address, "other", ConfirmationConfirmed, "")
	assert.ErrorIs(t, err, ErrUnknownConfirmation)
}

func TestStore_ResetWipesEverything(t *testing.T) {
	s, db := newStore(t)
	require.NoError(t, s.SetAccounts(chain.KindEVM, []Account{testAccount(chain.KindEVM, 0)}))
	require.NoError(t, s.SetAccounts(chain.KindSolana, []Account{testAccount(chain.KindSolana, 0)}))
	require.False(t, s.Empty())

	require.NoError(t, s.Reset())
	assert.True(t, s.Empty())

	reopened, err := New(db)
	require.NoError(t, err)
	assert.True(t, reopened.Empty())
}

func TestStore_SelectorsReturnCopies(t *testing.T) {
	s, _ := newStore(t)
	a := testAccount(chain.KindEVM, 0)
	require.NoError(t, s.SetAccounts(chain.KindEVM, []Account{a}))
	require.NoError(t, s.SetTransactions(chain.KindEVM, a.Address, chain.HistoryPage{
		Transactions: []chain.Transaction{{Hash: "h1"}},
	}, 0))

	st := s.State(chain.KindEVM)
	st.Accounts[0].Name = "changed"
	st.Accounts[0].History.Transactions[0].Hash = "changed"

	got, _ := s.Account(chain.KindEVM, a.Address)
	assert.Equal(t, "Account 1", got.Name)
	assert.Equal(t, "h1", got.History.Transactions[0].Hash)
}

func TestStore_ConcurrentMutations(t *testing.T) {
	s, _ := newStore(t)
	a := testAccount(chain.KindEVM, 0)
	require.NoError(t, s.SetAccounts(chain.KindEVM, []Account{a}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			g := s.NextGeneration(chain.KindEVM, a.Address, FieldBalance)
			_ = s.UpdateBalance(chain.KindEVM, a.Address, decimal.NewFromInt(int64(i)), g)
			_ = s.State(chain.KindEVM)
		}(i)
	}
	wg.Wait()

	got, _ := s.Account(chain.KindEVM, a.Address)
	assert.Equal(t, uint64(20), got.BalanceGen)
}
