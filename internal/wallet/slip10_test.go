package wallet

import (
	"bytes"
	"encoding/hex"
	"testing"
)

// SLIP-0010 test vector 1 for ed25519.
func TestEd25519_SLIP10Vector(t *testing.T) {
	seed, _ := hex.DecodeString("000102030405060708090a0b0c0d0e0f")

	tests := []struct {
		path string
		key  string
		pub  string
	}{
		{"m/0'", "68e0fe46dfb67e368c75379acec591dad19df3cde26e63b93a8e704f1dade7a3", "8c8a13df77a28f3445213a0f432fde644acaa215fc72dcdf300d5efaa85d350c"},
		{"m/0h/1h", "b1d0bad404bf35da785a64ca1ac54b2617211d2777696fbffaf208f746ae84f2", "1932a5270f335bed617d5b935c80aedb1a35bd9fc1e31acafd5d53c0b34fd1d4"},
	}
	for _, tt := range tests {
		k, err := DeriveEd25519(seed, tt.path)
		if err != nil {
			t.Fatalf("DeriveEd25519(%s) error: %v", tt.path, err)
		}
		if got := hex.EncodeToString(k.Seed()); got != tt.key {
			t.Errorf("%s key = %s", tt.path, got)
		}
		if got := hex.EncodeToString(k.PublicKey()); got != tt.pub {
			t.Errorf("%s public key = %s", tt.path, got)
		}
	}
}

func TestEd25519_RejectsBadPaths(t *testing.T) {
	for _, path := range []string{"m/44'/501'/0'/0", "m", "44'/501'", "m/x'"} {
		if _, err := DeriveEd25519(testSeed(t), path); err == nil {
			t.Errorf("DeriveEd25519(%q) should fail", path)
		}
	}
	if _, err := DeriveEd25519([]byte{1, 2, 3}, "m/0'"); err == nil {
		t.Error("short seed should fail")
	}
}

func TestDeriveEd25519_Deterministic(t *testing.T) {
	seed := testSeed(t)
	a, err := DeriveEd25519(seed, "m/44'/501'/0'/0'")
	if err != nil {
		t.Fatalf("DeriveEd25519() error: %v", err)
	}
	b, _ := DeriveEd25519(seed, "m/44'/501'/0'/0'")
	c, _ := DeriveEd25519(seed, "m/44'/501'/1'/0'")

	if !bytes.Equal(a.PublicKey(), b.PublicKey()) {
		t.Error("same path should give same key")
	}
	if bytes.Equal(a.PublicKey(), c.PublicKey()) {
		t.Error("different account index should give different key")
	}
	if a.Depth() != 4 {
		t.Errorf("depth = %d, want 4", a.Depth())
	}
	if len(a.PrivateKey()) != 64 {
		t.Errorf("private key length = %d, want 64", len(a.PrivateKey()))
	}
}
