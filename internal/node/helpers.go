package node

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Klingon-tech/klingnet-wallet/config"
)

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// Passphrase returns the secret store passphrase from the environment
// variable named in cfg, falling back to prompt when it is unset. prompt may
// be nil for non-interactive callers.
func Passphrase(cfg *config.Config, prompt func() ([]byte, error)) ([]byte, error) {
	if name := cfg.Secrets.PassphraseEnv; name != "" {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			return []byte(v), nil
		}
	}
	if prompt == nil {
		return nil, fmt.Errorf("%w: set %s", ErrEmptyPassphrase, cfg.Secrets.PassphraseEnv)
	}
	p, err := prompt()
	if err != nil {
		return nil, fmt.Errorf("read passphrase: %w", err)
	}
	if len(p) == 0 {
		return nil, ErrEmptyPassphrase
	}
	return p, nil
}
