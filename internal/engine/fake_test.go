package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Klingon-tech/klingnet-wallet/internal/chain"
	"github.com/Klingon-tech/klingnet-wallet/internal/favorites"
	klog "github.com/Klingon-tech/klingnet-wallet/internal/log"
	"github.com/Klingon-tech/klingnet-wallet/internal/storage"
	"github.com/Klingon-tech/klingnet-wallet/internal/store"
	"github.com/Klingon-tech/klingnet-wallet/internal/wallet"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func init() { klog.Disable() }

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

// fakeAdapter derives "<kind>-<index>" addresses and counts every call that
// would hit the network.
type fakeAdapter struct {
	kind chain.Kind

	mu         sync.Mutex
	used       map[uint32]bool
	balances   map[string]decimal.Decimal
	pages      map[string]chain.HistoryPage // keyed by address + "|" + first cursor entry
	failWith   error
	sent       []chain.TransferRequest
	confirmOK  bool
	confirmErr error
	confirm    time.Duration
	notify     chan struct{}

	network atomic.Int64
}

func newFake(kind chain.Kind) *fakeAdapter {
	return &fakeAdapter{
		kind:      kind,
		used:      map[uint32]bool{},
		balances:  map[string]decimal.Decimal{},
		pages:     map[string]chain.HistoryPage{},
		confirmOK: true,
	}
}

func (f *fakeAdapter) addr(i uint32) string { return fmt.Sprintf("%s-%d", f.kind, i) }

func (f *fakeAdapter) setFail(err error) {
	f.mu.Lock()
	f.failWith = err
	f.mu.Unlock()
}

func (f *fakeAdapter) failure() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failWith
}

func (f *fakeAdapter) Kind() chain.Kind { return f.kind }

func (f *fakeAdapter) DeriveAccount(seed []byte, index uint32) (chain.DerivedAccount, error) {
	if len(seed) != wallet.SeedSize {
		return chain.DerivedAccount{}, fmt.Errorf("bad seed")
	}
	return chain.DerivedAccount{
		Index:          index,
		Address:        f.addr(index),
		PublicKey:      "pub-" + f.addr(index),
		DerivationPath: fmt.Sprintf("m/%d", index),
		Chain:          f.kind,
	}, nil
}

func (f *fakeAdapter) PrivateKey(seed []byte, index uint32) ([]byte, error) {
	return []byte{1, byte(index)}, nil
}

func (f *fakeAdapter) ValidateAddress(addr string) bool { return len(addr) > 3 }

func (f *fakeAdapter) Balance(ctx context.Context, address string) (decimal.Decimal, error) {
	f.network.Add(1)
	if err := f.failure(); err != nil {
		return decimal.Zero, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[address], nil
}

func (f *fakeAdapter) History(ctx context.Context, address string, cursor chain.Cursor) (chain.HistoryPage, error) {
	f.network.Add(1)
	if err := f.failure(); err != nil {
		return chain.HistoryPage{}, err
	}
	key := address + "|"
	if len(cursor) > 0 {
		key += cursor[0]
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pages[key], nil
}

func (f *fakeAdapter) HasHistory(ctx context.Context, address string) (bool, error) {
	f.network.Add(1)
	if err := f.failure(); err != nil {
		return false, err
	}
	var idx uint32
	if _, err := fmt.Sscanf(address, string(f.kind)+"-%d", &idx); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.used[idx], nil
}

func (f *fakeAdapter) EstimateFee(ctx context.Context, from, to string, amount decimal.Decimal) (decimal.Decimal, error) {
	f.network.Add(1)
	return decimal.RequireFromString("0.001"), nil
}

func (f *fakeAdapter) SendTransfer(ctx context.Context, req chain.TransferRequest) (string, error) {
	f.network.Add(1)
	if err := req.Check(f.ValidateAddress); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, req)
	return fmt.Sprintf("tx-%d", len(f.sent)), nil
}

func (f *fakeAdapter) Confirm(ctx context.Context, txHash string) (bool, error) {
	f.network.Add(1)
	select {
	case <-time.After(f.confirm):
		return f.confirmOK, f.confirmErr
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (f *fakeAdapter) Close() error { return nil }

// notifyingAdapter also signals new blocks.
type notifyingAdapter struct {
	*fakeAdapter
	ch chan struct{}
}

func (n *notifyingAdapter) Notify() <-chan struct{} { return n.ch }

type harness struct {
	engine  *Engine
	evm     *fakeAdapter
	sol     *fakeAdapter
	store   *store.Store
	secrets *wallet.SecretStore
	cache   *chain.DeriveCache
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := storage.NewMemory()
	st, err := store.New(db)
	require.NoError(t, err)
	secrets := wallet.NewSecretStore(db, []byte("device-key"), wallet.EncryptionParams{Memory: 64, Iterations: 1, Parallelism: 1})
	cache := chain.NewDeriveCache(16)

	evm, sol := newFake(chain.KindEVM), newFake(chain.KindSolana)
	e, err := New(DefaultConfig(), st, secrets, []chain.Adapter{evm, sol},
		WithCache(cache),
		WithFavorites(favorites.New(secrets)),
	)
	require.NoError(t, err)
	return &harness{engine: e, evm: evm, sol: sol, store: st, secrets: secrets, cache: cache}
}

func usedSet(indices ...uint32) map[uint32]bool {
	m := make(map[uint32]bool, len(indices))
	for _, i := range indices {
		m[i] = true
	}
	return m
}
