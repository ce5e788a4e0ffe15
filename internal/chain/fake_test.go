package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// fakeAdapter derives "<kind>-<index>" addresses and reports history for the
// indices in used.
type fakeAdapter struct {
	kind         Kind
	used         map[uint32]bool
	confirmDelay time.Duration
	confirmOK    bool
}

func (f *fakeAdapter) Kind() Kind { return f.kind }

func (f *fakeAdapter) DeriveAccount(seed []byte, index uint32) (DerivedAccount, error) {
	return DerivedAccount{
		Index:          index,
		Address:        fmt.Sprintf("%s-%d", f.kind, index),
		DerivationPath: fmt.Sprintf("m/%d", index),
		Chain:          f.kind,
	}, nil
}

func (f *fakeAdapter) PrivateKey(seed []byte, index uint32) ([]byte, error) {
	return []byte{byte(index)}, nil
}

func (f *fakeAdapter) ValidateAddress(addr string) bool { return addr != "" }

func (f *fakeAdapter) Balance(ctx context.Context, address string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (f *fakeAdapter) History(ctx context.Context, address string, cursor Cursor) (HistoryPage, error) {
	return HistoryPage{}, nil
}

func (f *fakeAdapter) HasHistory(ctx context.Context, address string) (bool, error) {
	var idx uint32
	if _, err := fmt.Sscanf(address, string(f.kind)+"-%d", &idx); err != nil {
		return false, err
	}
	return f.used[idx], nil
}

func (f *fakeAdapter) EstimateFee(ctx context.Context, from, to string, amount decimal.Decimal) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (f *fakeAdapter) SendTransfer(ctx context.Context, req TransferRequest) (string, error) {
	return "", nil
}

// Confirm ignores ctx to model a confirmation that resolves late.
func (f *fakeAdapter) Confirm(ctx context.Context, txHash string) (bool, error) {
	time.Sleep(f.confirmDelay)
	return f.confirmOK, nil
}

func (f *fakeAdapter) Close() error { return nil }

func usedSet(indices ...uint32) map[uint32]bool {
	m := make(map[uint32]bool, len(indices))
	for _, i := range indices {
		m[i] = true
	}
	return m
}
