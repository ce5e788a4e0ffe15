package solana

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-wallet/internal/chain"
	"github.com/Klingon-tech/klingnet-wallet/internal/wallet"
	"github.com/gagliardetto/solana-go"
)

// DerivationPath returns m/44'/501'/{index}'/0'.
func DerivationPath(index uint32) string {
	return fmt.Sprintf("m/44'/501'/%d'/0'", index)
}

func deriveKey(seed []byte, index uint32) (solana.PrivateKey, error) {
	key, err := wallet.DeriveEd25519(seed, DerivationPath(index))
	if err != nil {
		return nil, err
	}
	return solana.PrivateKey(key.PrivateKey()), nil
}

// DeriveAccount implements chain.Adapter.
func (a *Adapter) DeriveAccount(seed []byte, index uint32) (chain.DerivedAccount, error) {
	return a.cache.Get(seed, chain.KindSolana, index, func() (chain.DerivedAccount, error) {
		priv, err := deriveKey(seed, index)
		if err != nil {
			return chain.DerivedAccount{}, fmt.Errorf("derive solana account %d: %w", index, err)
		}
		pub := priv.PublicKey().String()
		return chain.DerivedAccount{
			Index:          index,
			Address:        pub,
			PublicKey:      pub,
			DerivationPath: DerivationPath(index),
			Chain:          chain.KindSolana,
		}, nil
	})
}

// PrivateKey returns the 64-byte ed25519 secret key at index.
func (a *Adapter) PrivateKey(seed []byte, index uint32) ([]byte, error) {
	priv, err := deriveKey(seed, index)
	if err != nil {
		return nil, fmt.Errorf("derive solana key %d: %w", index, err)
	}
	return priv, nil
}

// ValidateAddress accepts base58 keys that lie on the ed25519 curve.
func (a *Adapter) ValidateAddress(addr string) bool {
	return ValidAddress(addr)
}

// ValidAddress is the package-level form of Adapter.ValidateAddress.
func ValidAddress(addr string) bool {
	pk, err := solana.PublicKeyFromBase58(addr)
	if err != nil {
		return false
	}
	return solana.IsOnCurve(pk.Bytes())
}
