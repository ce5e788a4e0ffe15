package config

import (
	"fmt"
	"net"
	"net/url"
	"time"
)

// Validate checks runtime config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}
	if !cfg.EVM.Enabled && !cfg.Solana.Enabled {
		return fmt.Errorf("at least one of evm.enabled and solana.enabled must be true")
	}

	if cfg.EVM.Enabled {
		if err := validateURL("evm.rpc", cfg.EVM.RPCURL, "http", "https"); err != nil {
			return err
		}
		if cfg.EVM.Stream {
			if err := validateURL("evm.ws", cfg.EVM.WSURL, "ws", "wss"); err != nil {
				return err
			}
		}
		if cfg.EVM.ChainID < 0 {
			return fmt.Errorf("evm.chainid must not be negative")
		}
	}
	if cfg.Solana.Enabled {
		if err := validateURL("solana.rpc", cfg.Solana.RPCURL, "http", "https"); err != nil {
			return err
		}
		if cfg.Solana.SignatureLimit < 1 || cfg.Solana.SignatureLimit > 1000 {
			return fmt.Errorf("solana.signature_limit must be in range [1, 1000]")
		}
		if cfg.Solana.FetchRate < 1 {
			return fmt.Errorf("solana.fetch_rate must be positive")
		}
	}

	if cfg.Net.MaxRetries < 0 {
		return fmt.Errorf("net.retries must not be negative")
	}
	if cfg.Net.RequestTimeout <= 0 {
		return fmt.Errorf("net.timeout must be positive")
	}
	if cfg.Net.ReconnectAttempts < 1 {
		return fmt.Errorf("net.reconnect_attempts must be at least 1")
	}
	if cfg.Net.ConfirmTimeout <= 0 {
		return fmt.Errorf("net.confirm_timeout must be positive")
	}

	switch cfg.Discovery.Policy {
	case "", "independent", "shared-max":
	default:
		return fmt.Errorf("discovery.policy must be independent or shared-max")
	}
	if cfg.Discovery.MaxScan < 1 {
		return fmt.Errorf("discovery.max_scan must be at least 1")
	}

	if w := cfg.Secrets.MnemonicWords; w != 12 && w != 24 {
		return fmt.Errorf("secrets.mnemonic_words must be 12 or 24")
	}
	if cfg.Secrets.KDFIterations == 0 || cfg.Secrets.KDFParallelism == 0 || cfg.Secrets.KDFMemory < 8 {
		return fmt.Errorf("secrets.kdf_* parameters are too weak")
	}

	if cfg.Poll.Enabled && cfg.Poll.Interval < time.Second {
		return fmt.Errorf("poll.interval must be at least 1s")
	}
	if cfg.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(cfg.Metrics.Addr); err != nil {
			return fmt.Errorf("metrics.addr: %w", err)
		}
	}
	return nil
}

func validateURL(field, raw string, schemes ...string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%s must use one of %v", field, schemes)
}
