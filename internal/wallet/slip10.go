package wallet

import (
	"crypto/ed25519"
	"fmt"

	"github.com/anyproto/go-slip10"
)

// Ed25519Key is a SLIP-0010 ed25519 node. Only hardened children exist on
// this curve.
type Ed25519Key struct {
	key   [32]byte
	depth uint8
}

// DeriveEd25519 walks path (e.g. m/44'/501'/0'/0') from seed. Every path
// element must be hardened.
func DeriveEd25519(seed []byte, path string) (*Ed25519Key, error) {
	if len(seed) < 16 || len(seed) > SeedSize {
		return nil, fmt.Errorf("seed must be 16..%d bytes, got %d", SeedSize, len(seed))
	}
	indices, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	if len(indices) == 0 {
		return nil, fmt.Errorf("derivation path %q has no elements", path)
	}
	for _, idx := range indices {
		if idx < HardenedOffset {
			return nil, fmt.Errorf("ed25519 derivation requires hardened index, got %d in %q", idx, path)
		}
	}

	node, err := slip10.DeriveForPath(FormatPath(indices), seed)
	if err != nil {
		return nil, fmt.Errorf("derive %s: %w", path, err)
	}
	raw := node.RawSeed()
	k := &Ed25519Key{depth: uint8(len(indices))}
	copy(k.key[:], raw[:])
	return k, nil
}

// Seed returns the 32-byte private seed of this node.
func (k *Ed25519Key) Seed() []byte {
	out := make([]byte, 32)
	copy(out, k.key[:])
	return out
}

// Depth returns the derivation depth.
func (k *Ed25519Key) Depth() uint8 {
	return k.depth
}

// PrivateKey returns the 64-byte ed25519 private key (seed || public key).
func (k *Ed25519Key) PrivateKey() ed25519.PrivateKey {
	return ed25519.NewKeyFromSeed(k.key[:])
}

// PublicKey returns the 32-byte ed25519 public key.
func (k *Ed25519Key) PublicKey() ed25519.PublicKey {
	return k.PrivateKey().Public().(ed25519.PublicKey)
}
