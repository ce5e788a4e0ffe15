package evm

import (
	"fmt"
	"strings"

	"github.com/Klingon-tech/klingnet-wallet/internal/chain"
	"github.com/Klingon-tech/klingnet-wallet/internal/wallet"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// DerivationPath returns m/44'/60'/0'/0/{index}.
func DerivationPath(index uint32) string {
	return fmt.Sprintf("m/44'/60'/0'/0/%d", index)
}

func deriveKey(seed []byte, index uint32) (*wallet.HDKey, error) {
	master, err := wallet.NewMasterKey(seed)
	if err != nil {
		return nil, err
	}
	return master.DerivePath(
		wallet.PurposeBIP44,
		wallet.CoinTypeEthereum,
		wallet.HardenedOffset,
		0,
		index,
	)
}

// AddressFromPublicKey returns the checksummed address of a compressed
// secp256k1 public key.
func AddressFromPublicKey(compressed []byte) (string, error) {
	pub, err := secp256k1.ParsePubKey(compressed)
	if err != nil {
		return "", fmt.Errorf("parse public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub.ToECDSA()).Hex(), nil
}

// DeriveAccount implements chain.Adapter.
func (a *Adapter) DeriveAccount(seed []byte, index uint32) (chain.DerivedAccount, error) {
	return a.cache.Get(seed, chain.KindEVM, index, func() (chain.DerivedAccount, error) {
		key, err := deriveKey(seed, index)
		if err != nil {
			return chain.DerivedAccount{}, fmt.Errorf("derive evm account %d: %w", index, err)
		}
		pub := key.PublicKeyBytes()
		addr, err := AddressFromPublicKey(pub)
		if err != nil {
			return chain.DerivedAccount{}, err
		}
		return chain.DerivedAccount{
			Index:          index,
			Address:        addr,
			PublicKey:      hexutil.Encode(pub),
			DerivationPath: DerivationPath(index),
			Chain:          chain.KindEVM,
		}, nil
	})
}

// PrivateKey returns the 32-byte secp256k1 key at index.
func (a *Adapter) PrivateKey(seed []byte, index uint32) ([]byte, error) {
	key, err := deriveKey(seed, index)
	if err != nil {
		return nil, fmt.Errorf("derive evm key %d: %w", index, err)
	}
	return key.PrivateKeyBytes(), nil
}

// ValidateAddress accepts 0x-prefixed addresses in all-lower, all-upper or
// valid EIP-55 checksum form.
func (a *Adapter) ValidateAddress(addr string) bool {
	return ValidAddress(addr)
}

// ValidAddress is the package-level form of Adapter.ValidateAddress.
func ValidAddress(addr string) bool {
	if !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		return false
	}
	if !common.IsHexAddress(addr) {
		return false
	}
	body := addr[2:]
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return true
	}
	return common.HexToAddress(addr).Hex() == addr
}
