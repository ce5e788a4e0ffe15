package wallet

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tyler-smith/go-bip32"
)

// BIP-44 derivation constants.
const (
	// PurposeBIP44 is the BIP-44 purpose field (hardened).
	PurposeBIP44 = bip32.FirstHardenedChild + 44

	// CoinTypeEthereum is the SLIP-44 coin type for Ether (hardened).
	CoinTypeEthereum = bip32.FirstHardenedChild + 60

	// CoinTypeSolana is the SLIP-44 coin type for SOL (hardened).
	CoinTypeSolana = bip32.FirstHardenedChild + 501

	// HardenedOffset marks a hardened path element.
	HardenedOffset = bip32.FirstHardenedChild
)

// HDKey represents a hierarchical deterministic secp256k1 key (BIP-32).
type HDKey struct {
	key *bip32.Key
}

// NewMasterKey creates a master HD key from a 64-byte seed.
func NewMasterKey(seed []byte) (*HDKey, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("create master key: %w", err)
	}
	return &HDKey{key: master}, nil
}

// DeriveChild derives a child key at the given index.
// For hardened derivation, add HardenedOffset to the index.
func (k *HDKey) DeriveChild(index uint32) (*HDKey, error) {
	child, err := k.key.NewChildKey(index)
	if err != nil {
		return nil, fmt.Errorf("derive child %d: %w", index, err)
	}
	return &HDKey{key: child}, nil
}

// DerivePath derives a key along a sequence of indices.
func (k *HDKey) DerivePath(indices ...uint32) (*HDKey, error) {
	current := k
	for _, idx := range indices {
		child, err := current.DeriveChild(idx)
		if err != nil {
			return nil, err
		}
		current = child
	}
	return current, nil
}

// PrivateKeyBytes returns the raw 32-byte private key.
// Returns nil if this is a public-only key.
func (k *HDKey) PrivateKeyBytes() []byte {
	if !k.key.IsPrivate {
		return nil
	}
	// bip32 stores private keys as 33 bytes with a leading 0x00.
	raw := k.key.Key
	if len(raw) == 33 && raw[0] == 0 {
		return raw[1:]
	}
	return raw
}

// PublicKeyBytes returns the compressed 33-byte public key.
func (k *HDKey) PublicKeyBytes() []byte {
	return k.key.PublicKey().Key
}

// IsPrivate returns true if this key contains a private key.
func (k *HDKey) IsPrivate() bool {
	return k.key.IsPrivate
}

// Depth returns the derivation depth (0 for master).
func (k *HDKey) Depth() uint8 {
	return k.key.Depth
}

// ParsePath parses a path such as m/44'/60'/0'/0/3 into child indices.
// Both ' and h mark hardened elements.
func ParsePath(path string) ([]uint32, error) {
	parts := strings.Split(strings.TrimSpace(path), "/")
	if len(parts) == 0 || parts[0] != "m" {
		return nil, fmt.Errorf("derivation path %q must start with m", path)
	}
	indices := make([]uint32, 0, len(parts)-1)
	for _, p := range parts[1:] {
		hardened := strings.HasSuffix(p, "'") || strings.HasSuffix(p, "h")
		p = strings.TrimRight(p, "'h")
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("derivation path %q: bad element %q", path, p)
		}
		if n >= uint64(HardenedOffset) {
			return nil, fmt.Errorf("derivation path %q: element %d out of range", path, n)
		}
		idx := uint32(n)
		if hardened {
			idx += HardenedOffset
		}
		indices = append(indices, idx)
	}
	return indices, nil
}

// FormatPath renders child indices back into m/… notation.
func FormatPath(indices []uint32) string {
	var b strings.Builder
	b.WriteString("m")
	for _, idx := range indices {
		b.WriteByte('/')
		if idx >= HardenedOffset {
			b.WriteString(strconv.FormatUint(uint64(idx-HardenedOffset), 10))
			b.WriteByte('\'')
		} else {
			b.WriteString(strconv.FormatUint(uint64(idx), 10))
		}
	}
	return b.String()
}
