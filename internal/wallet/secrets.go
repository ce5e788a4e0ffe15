package wallet

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"

	"github.com/Klingon-tech/klingnet-wallet/internal/storage"
)

// Secret store entry names.
const (
	SecretMnemonic   = "mnemonic"
	SecretPasscode   = "passcode"
	SecretBiometrics = "biometrics"
	SecretFavorites  = "favorites"
)

// ErrSecretNotFound is returned when an entry has never been written.
var ErrSecretNotFound = errors.New("secret not found")

// SecretStore keeps small opaque values sealed with a device passphrase.
// Each entry is bound to its name as associated data, so sealed values
// cannot be swapped between entries.
type SecretStore struct {
	mu         sync.Mutex
	db         *storage.PrefixDB
	passphrase []byte
	params     EncryptionParams
}

// NewSecretStore returns a store writing under the "secret/" namespace of db.
func NewSecretStore(db storage.DB, passphrase []byte, params EncryptionParams) *SecretStore {
	p := make([]byte, len(passphrase))
	copy(p, passphrase)
	return &SecretStore{
		db:         storage.NewPrefixDB(db, []byte("secret/")),
		passphrase: p,
		params:     params,
	}
}

// Get opens the named entry.
func (s *SecretStore) Get(name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sealed, err := s.db.Get([]byte(name))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrSecretNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read secret %s: %w", name, err)
	}
	plain, err := Decrypt(sealed, s.passphrase, []byte(name))
	if err != nil {
		return nil, fmt.Errorf("open secret %s: %w", name, err)
	}
	return plain, nil
}

// Set seals and writes the named entry, replacing any previous value.
func (s *SecretStore) Set(name string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sealed, err := Encrypt(value, s.passphrase, []byte(name), s.params)
	if err != nil {
		return fmt.Errorf("seal secret %s: %w", name, err)
	}
	if err := s.db.Put([]byte(name), sealed); err != nil {
		return fmt.Errorf("write secret %s: %w", name, err)
	}
	return nil
}

// Delete removes the named entry. Missing entries are not an error.
func (s *SecretStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Delete([]byte(name))
}

// Clear removes every entry.
func (s *SecretStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.DeleteAll()
}

// SaveMnemonic validates and stores the recovery phrase.
func (s *SecretStore) SaveMnemonic(mnemonic string) error {
	if err := CheckMnemonic(mnemonic); err != nil {
		return err
	}
	return s.Set(SecretMnemonic, []byte(NormalizeMnemonic(mnemonic)))
}

// Mnemonic returns the stored recovery phrase.
func (s *SecretStore) Mnemonic() (string, error) {
	b, err := s.Get(SecretMnemonic)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Seed opens the stored phrase and converts it to a seed.
func (s *SecretStore) Seed() ([]byte, error) {
	m, err := s.Mnemonic()
	if err != nil {
		return nil, err
	}
	return ToSeed(m)
}

// SetPasscode stores the application unlock passcode.
func (s *SecretStore) SetPasscode(code string) error {
	if code == "" {
		return fmt.Errorf("passcode must not be empty")
	}
	return s.Set(SecretPasscode, []byte(code))
}

// VerifyPasscode compares code against the stored passcode in constant time.
func (s *SecretStore) VerifyPasscode(code string) (bool, error) {
	stored, err := s.Get(SecretPasscode)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(stored, []byte(code)) == 1, nil
}

// SetBiometrics records whether biometric unlock is enabled.
func (s *SecretStore) SetBiometrics(enabled bool) error {
	v := []byte("false")
	if enabled {
		v = []byte("true")
	}
	return s.Set(SecretBiometrics, v)
}

// Biometrics reports whether biometric unlock is enabled. An unset flag
// reads as false.
func (s *SecretStore) Biometrics() (bool, error) {
	v, err := s.Get(SecretBiometrics)
	if errors.Is(err, ErrSecretNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return string(v) == "true", nil
}
