package chain

import (
	"sort"

	"github.com/google/uuid"
)

// NewUniqueID returns a fresh identifier for a normalised transaction.
func NewUniqueID() string {
	return uuid.NewString()
}

// SortByBlockTimeDesc orders txs newest first. Ties keep their input order.
func SortByBlockTimeDesc(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].BlockTime > txs[j].BlockTime
	})
}

// Merge concatenates lists and returns them sorted newest first.
func Merge(lists ...[]Transaction) []Transaction {
	n := 0
	for _, l := range lists {
		n += len(l)
	}
	out := make([]Transaction, 0, n)
	for _, l := range lists {
		out = append(out, l...)
	}
	SortByBlockTimeDesc(out)
	return out
}

// IsSortedDesc reports whether txs is ordered newest first.
func IsSortedDesc(txs []Transaction) bool {
	for i := 1; i < len(txs); i++ {
		if txs[i].BlockTime > txs[i-1].BlockTime {
			return false
		}
	}
	return true
}
