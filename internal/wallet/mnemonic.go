// Package wallet implements mnemonic handling, HD key derivation for both
// supported curves, and the encrypted secret store.
package wallet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// MnemonicEntropyBits is the entropy size for 24-word mnemonics.
const MnemonicEntropyBits = 256

var (
	// ErrEmptyMnemonic is returned when a blank phrase is supplied.
	ErrEmptyMnemonic = errors.New("empty mnemonic phrase")
	// ErrInvalidMnemonic is returned when a phrase fails BIP-39 validation.
	ErrInvalidMnemonic = errors.New("invalid mnemonic phrase")
)

// GenerateMnemonic creates a new 24-word BIP-39 mnemonic.
func GenerateMnemonic() (string, error) {
	return GenerateMnemonicWords(24)
}

// GenerateMnemonicWords creates a BIP-39 mnemonic with 12 or 24 words.
func GenerateMnemonicWords(words int) (string, error) {
	var bits int
	switch words {
	case 12:
		bits = 128
	case 24:
		bits = MnemonicEntropyBits
	default:
		return "", fmt.Errorf("unsupported mnemonic length %d (want 12 or 24)", words)
	}
	entropy, err := bip39.NewEntropy(bits)
	if err != nil {
		return "", fmt.Errorf("generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("generate mnemonic: %w", err)
	}
	return mnemonic, nil
}

// NormalizeMnemonic lowercases the phrase and collapses whitespace.
func NormalizeMnemonic(mnemonic string) string {
	return strings.Join(strings.Fields(strings.ToLower(mnemonic)), " ")
}

// ValidateMnemonic checks if a mnemonic is valid per BIP-39
// (correct word count, valid words, valid checksum).
func ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(NormalizeMnemonic(mnemonic))
}

// CheckMnemonic reports why a phrase is unusable, or nil if it is valid.
func CheckMnemonic(mnemonic string) error {
	if strings.TrimSpace(mnemonic) == "" {
		return ErrEmptyMnemonic
	}
	if !ValidateMnemonic(mnemonic) {
		return ErrInvalidMnemonic
	}
	return nil
}
