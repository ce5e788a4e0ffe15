// Package favorites keeps the user's bookmarked tokens in the secret store.
package favorites

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Klingon-tech/klingnet-wallet/internal/wallet"
)

// Favorite identifies a token on a chain. Two favorites are the same when
// both fields match.
type Favorite struct {
	TokenAddress string `json:"token_address"`
	ChainID      string `json:"chain_id"`
	Name         string `json:"name,omitempty"`
	Symbol       string `json:"symbol,omitempty"`
}

func (f Favorite) same(o Favorite) bool {
	return strings.EqualFold(f.TokenAddress, o.TokenAddress) && f.ChainID == o.ChainID
}

// Secrets is the part of the secret store the service needs.
type Secrets interface {
	Get(name string) ([]byte, error)
	Set(name string, value []byte) error
	Delete(name string) error
}

// Service reads and writes the favorites set.
type Service struct {
	mu      sync.Mutex
	secrets Secrets
}

// New returns a favorites service backed by secrets.
func New(secrets Secrets) *Service {
	return &Service{secrets: secrets}
}

// List returns the stored favorites in insertion order.
func (s *Service) List() ([]Favorite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Add stores f unless an entry with the same token and chain exists.
// It reports whether the set changed.
func (s *Service) Add(f Favorite) (bool, error) {
	if f.TokenAddress == "" || f.ChainID == "" {
		return false, fmt.Errorf("favorite needs token address and chain id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load()
	if err != nil {
		return false, err
	}
	for _, existing := range list {
		if existing.same(f) {
			return false, nil
		}
	}
	return true, s.save(append(list, f))
}

// Remove deletes the entry matching token and chain. It reports whether
// anything was removed.
func (s *Service) Remove(tokenAddress, chainID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load()
	if err != nil {
		return false, err
	}
	target := Favorite{TokenAddress: tokenAddress, ChainID: chainID}
	kept := list[:0]
	for _, f := range list {
		if !f.same(target) {
			kept = append(kept, f)
		}
	}
	if len(kept) == len(list) {
		return false, nil
	}
	return true, s.save(kept)
}

// Reset removes every favorite.
func (s *Service) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.secrets.Delete(wallet.SecretFavorites)
}

func (s *Service) load() ([]Favorite, error) {
	raw, err := s.secrets.Get(wallet.SecretFavorites)
	if errors.Is(err, wallet.ErrSecretNotFound) {
		return []Favorite{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get favorites: %w", err)
	}
	var list []Favorite
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decode favorites: %w", err)
	}
	return list, nil
}

func (s *Service) save(list []Favorite) error {
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode favorites: %w", err)
	}
	if err := s.secrets.Set(wallet.SecretFavorites, raw); err != nil {
		return fmt.Errorf("save favorites: %w", err)
	}
	return nil
}
