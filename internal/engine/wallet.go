package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/Klingon-tech/klingnet-wallet/internal/chain"
	klog "github.com/Klingon-tech/klingnet-wallet/internal/log"
	"github.com/Klingon-tech/klingnet-wallet/internal/store"
	"github.com/Klingon-tech/klingnet-wallet/internal/wallet"
	"golang.org/x/sync/errgroup"
)

// BoundaryPolicy decides how per-chain discovery results combine on import.
type BoundaryPolicy int

const (
	// BoundaryIndependent keeps each chain's own discovery boundary.
	BoundaryIndependent BoundaryPolicy = iota
	// BoundarySharedMax gives every chain the largest boundary found.
	BoundarySharedMax
)

func (p BoundaryPolicy) String() string {
	switch p {
	case BoundaryIndependent:
		return "independent"
	case BoundarySharedMax:
		return "shared-max"
	default:
		return "unknown"
	}
}

// ParseBoundaryPolicy parses "independent" or "shared-max".
func ParseBoundaryPolicy(s string) (BoundaryPolicy, error) {
	switch s {
	case "independent", "":
		return BoundaryIndependent, nil
	case "shared-max":
		return BoundarySharedMax, nil
	default:
		return 0, fmt.Errorf("unknown boundary policy %q", s)
	}
}

// ImportResult reports what an import discovered.
type ImportResult struct {
	Boundaries map[chain.Kind]uint32
	Accounts   map[chain.Kind]int
}

// CreateWallet generates a mnemonic, stores it and creates account 1 on
// every chain. The phrase is returned so it can be shown for backup.
func (e *Engine) CreateWallet(ctx context.Context) (string, error) {
	if !e.store.Empty() {
		return "", ErrWalletExists
	}
	mnemonic, err := wallet.GenerateMnemonicWords(e.cfg.MnemonicWords)
	if err != nil {
		return "", fmt.Errorf("generate mnemonic: %w", err)
	}
	seed, err := wallet.ToSeed(mnemonic)
	if err != nil {
		return "", err
	}

	accounts := make(map[chain.Kind][]store.Account, len(e.kinds))
	for _, kind := range e.kinds {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		d, err := e.adapters[kind].DeriveAccount(seed, 0)
		if err != nil {
			return "", fmt.Errorf("derive %s account: %w", kind, err)
		}
		accounts[kind] = []store.Account{store.NewAccount(d, accountName(0))}
	}

	if err := e.secrets.SaveMnemonic(mnemonic); err != nil {
		return "", err
	}
	for _, kind := range e.kinds {
		if err := e.store.SetAccounts(kind, accounts[kind]); err != nil {
			return "", err
		}
	}
	e.logger.Info().Int("chains", len(e.kinds)).Msg("Wallet created")
	return mnemonic, nil
}

// ImportWallet restores a wallet from mnemonic. Each chain is scanned for the
// first index without history, then every account up to that boundary is
// stored. The chains are discovered concurrently.
func (e *Engine) ImportWallet(ctx context.Context, mnemonic string, policy BoundaryPolicy) (ImportResult, error) {
	if !e.store.Empty() {
		return ImportResult{}, ErrWalletExists
	}
	mnemonic = wallet.NormalizeMnemonic(mnemonic)
	seed, err := wallet.ToSeed(mnemonic)
	if err != nil {
		return ImportResult{}, err
	}

	var mu sync.Mutex
	boundaries := make(map[chain.Kind]uint32, len(e.kinds))
	g, gctx := errgroup.WithContext(ctx)
	for _, kind := range e.kinds {
		kind := kind
		a := e.adapters[kind]
		g.Go(func() error {
			defer klog.Benchmark(e.logger, "discover "+kind.String())()
			b, err := chain.NextUnusedIndex(gctx, a, seed, 0,
				chain.WithMaxScan(e.cfg.MaxDiscoveryScan),
				chain.WithProbeObserver(func(uint32) { e.metrics.DiscoveryProbe(kind.String()) }),
			)
			if err != nil {
				return fmt.Errorf("discover %s: %w", kind, err)
			}
			e.logger.Debug().Str("chain", kind.String()).Uint32("boundary", b).Msg("Discovery finished")
			mu.Lock()
			boundaries[kind] = b
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ImportResult{}, err
	}

	if policy == BoundarySharedMax {
		var highest uint32
		for _, b := range boundaries {
			if b > highest {
				highest = b
			}
		}
		for kind := range boundaries {
			boundaries[kind] = highest
		}
	}

	res := ImportResult{Boundaries: boundaries, Accounts: make(map[chain.Kind]int, len(e.kinds))}
	lists := make(map[chain.Kind][]store.Account, len(e.kinds))
	for _, kind := range e.kinds {
		derived, err := chain.UsedAccounts(e.adapters[kind], seed, boundaries[kind])
		if err != nil {
			return ImportResult{}, fmt.Errorf("collect %s accounts: %w", kind, err)
		}
		accts := make([]store.Account, len(derived))
		for i, d := range derived {
			accts[i] = store.NewAccount(d, accountName(d.Index))
		}
		lists[kind] = accts
		res.Accounts[kind] = len(accts)
	}

	if err := e.secrets.SaveMnemonic(mnemonic); err != nil {
		return ImportResult{}, err
	}
	for _, kind := range e.kinds {
		if err := e.store.SetAccounts(kind, lists[kind]); err != nil {
			return ImportResult{}, err
		}
	}

	ev := e.logger.Info().Str("policy", policy.String())
	for kind, n := range res.Accounts {
		ev = ev.Int(kind.String(), n)
	}
	ev.Msg("Wallet imported")
	return res, nil
}

// AddAccount derives the account after the highest stored index of kind.
func (e *Engine) AddAccount(ctx context.Context, kind chain.Kind) (AccountView, error) {
	a, err := e.adapter(kind)
	if err != nil {
		return AccountView{}, err
	}
	st := e.store.State(kind)
	if len(st.Accounts) == 0 {
		return AccountView{}, fmt.Errorf("%w on %s", ErrNoWallet, kind)
	}
	var next uint32
	for _, acct := range st.Accounts {
		if acct.Index >= next {
			next = acct.Index + 1
		}
	}
	if err := ctx.Err(); err != nil {
		return AccountView{}, err
	}

	seed, err := e.secrets.Seed()
	if err != nil {
		return AccountView{}, fmt.Errorf("load seed: %w", err)
	}
	d, err := a.DeriveAccount(seed, next)
	if err != nil {
		return AccountView{}, fmt.Errorf("derive %s account %d: %w", kind, next, err)
	}
	acct := store.NewAccount(d, accountName(next))
	if err := e.store.AppendAccount(kind, acct); err != nil {
		return AccountView{}, err
	}
	e.logger.Info().Str("chain", kind.String()).Uint32("index", next).Str("address", d.Address).Msg("Account added")
	return newAccountView(acct), nil
}

// SelectAccount makes the account at position index active.
func (e *Engine) SelectAccount(kind chain.Kind, index int) error {
	return e.store.SetActive(kind, index)
}

// RenameAccount changes an account's display name.
func (e *Engine) RenameAccount(kind chain.Kind, address, name string) error {
	return e.store.Rename(kind, address, name)
}

// RecoveryPhrase returns the stored mnemonic.
func (e *Engine) RecoveryPhrase() (string, error) {
	return e.secrets.Mnemonic()
}

// Logout wipes all accounts, cached derivations and secrets.
func (e *Engine) Logout(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.cache.Purge()
	if err := e.store.Reset(); err != nil {
		return err
	}
	if err := e.secrets.Clear(); err != nil {
		return fmt.Errorf("clear secrets: %w", err)
	}
	e.logger.Info().Msg("Logged out")
	return nil
}
