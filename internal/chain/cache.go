package chain

import (
	"crypto/sha256"

	lru "github.com/hashicorp/golang-lru/v2"
)

type deriveKey struct {
	seed  [32]byte
	kind  Kind
	index uint32
}

// DeriveCache memoises derived accounts. Seeds are keyed by hash and never
// stored.
type DeriveCache struct {
	cache *lru.Cache[deriveKey, DerivedAccount]
}

// NewDeriveCache creates a cache holding up to size accounts.
func NewDeriveCache(size int) *DeriveCache {
	if size <= 0 {
		size = 256
	}
	c, _ := lru.New[deriveKey, DerivedAccount](size)
	return &DeriveCache{cache: c}
}

// Get returns the cached account or derives and stores it.
func (c *DeriveCache) Get(seed []byte, kind Kind, index uint32, derive func() (DerivedAccount, error)) (DerivedAccount, error) {
	if c == nil {
		return derive()
	}
	k := deriveKey{seed: sha256.Sum256(seed), kind: kind, index: index}
	if acct, ok := c.cache.Get(k); ok {
		return acct, nil
	}
	acct, err := derive()
	if err != nil {
		return DerivedAccount{}, err
	}
	c.cache.Add(k, acct)
	return acct, nil
}

// Len returns the number of cached accounts.
func (c *DeriveCache) Len() int {
	if c == nil {
		return 0
	}
	return c.cache.Len()
}

// Purge drops every entry. Called on logout.
func (c *DeriveCache) Purge() {
	if c != nil {
		c.cache.Purge()
	}
}
