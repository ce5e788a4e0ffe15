package chain

import (
	"context"
	"fmt"
)

// DefaultMaxDiscoveryScan bounds how many indices a discovery scan probes.
const DefaultMaxDiscoveryScan = 1000

// DeriveFunc derives the account at a derivation index.
type DeriveFunc func(index uint32) (DerivedAccount, error)

// HistoryProbe reports whether an address has any recorded activity.
type HistoryProbe func(ctx context.Context, address string) (bool, error)

type discoveryOptions struct {
	maxScan  int
	observer func(index uint32)
}

// DiscoveryOption tunes a discovery scan.
type DiscoveryOption func(*discoveryOptions)

// WithMaxScan overrides DefaultMaxDiscoveryScan. Values <= 0 are ignored.
func WithMaxScan(n int) DiscoveryOption {
	return func(o *discoveryOptions) {
		if n > 0 {
			o.maxScan = n
		}
	}
}

// WithProbeObserver is called once for every probed index.
func WithProbeObserver(fn func(index uint32)) DiscoveryOption {
	return func(o *discoveryOptions) { o.observer = fn }
}

// FindNextUnusedIndex walks indices from start until it finds one without
// history (firstEmpty). It returns firstEmpty+1 when firstEmpty > 0 and 0
// otherwise. Paired with CollectUsedAddresses this always yields at least
// one account.
func FindNextUnusedIndex(ctx context.Context, derive DeriveFunc, probe HistoryProbe, start uint32, opts ...DiscoveryOption) (uint32, error) {
	o := discoveryOptions{maxScan: DefaultMaxDiscoveryScan}
	for _, opt := range opts {
		opt(&o)
	}

	i := start
	for scanned := 0; ; scanned++ {
		if scanned >= o.maxScan {
			return 0, fmt.Errorf("%w: %d indices from %d", ErrDiscoveryLimit, o.maxScan, start)
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		acct, err := derive(i)
		if err != nil {
			return 0, fmt.Errorf("derive index %d: %w", i, err)
		}
		if o.observer != nil {
			o.observer(i)
		}
		used, err := probe(ctx, acct.Address)
		if err != nil {
			return 0, fmt.Errorf("probe index %d: %w", i, err)
		}
		if !used {
			break
		}
		i++
	}

	if i > 0 {
		return i + 1, nil
	}
	return 0, nil
}

// CollectUsedAddresses derives accounts 0..=start where start is boundary-1
// for a positive boundary and 0 otherwise.
func CollectUsedAddresses(derive DeriveFunc, boundary uint32) ([]DerivedAccount, error) {
	start := boundary
	if boundary > 0 {
		start = boundary - 1
	}

	accounts := make([]DerivedAccount, 0, int(start)+1)
	for i := uint32(0); i <= start; i++ {
		acct, err := derive(i)
		if err != nil {
			return nil, fmt.Errorf("derive index %d: %w", i, err)
		}
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

// NextUnusedIndex runs FindNextUnusedIndex with the adapter's derivation and
// history probe.
func NextUnusedIndex(ctx context.Context, a Adapter, seed []byte, start uint32, opts ...DiscoveryOption) (uint32, error) {
	return FindNextUnusedIndex(ctx, deriverFor(a, seed), a.HasHistory, start, opts...)
}

// UsedAccounts runs CollectUsedAddresses with the adapter's derivation.
func UsedAccounts(a Adapter, seed []byte, boundary uint32) ([]DerivedAccount, error) {
	return CollectUsedAddresses(deriverFor(a, seed), boundary)
}

func deriverFor(a Adapter, seed []byte) DeriveFunc {
	return func(index uint32) (DerivedAccount, error) {
		return a.DeriveAccount(seed, index)
	}
}
