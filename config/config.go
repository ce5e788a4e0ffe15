// Package config handles application configuration.
//
// Settings come from three layers, later ones winning:
//   - Defaults for the selected network (mainnet or testnet)
//   - The key = value config file in the data directory
//   - Command-line flags
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// Environment returns the environment tag the adapters understand.
func (n NetworkType) Environment() string {
	if n == Mainnet {
		return "production"
	}
	return "development"
}

// Config holds the wallet daemon's runtime configuration.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// Chains
	EVM    EVMConfig
	Solana SolanaConfig

	// Retry, timeout and reconnect policy shared by both adapters
	Net NetConfig

	// Import-time account discovery
	Discovery DiscoveryConfig

	// Secret store
	Secrets SecretsConfig

	// Background refresh
	Poll PollConfig

	// Prometheus endpoint
	Metrics MetricsConfig

	// Logging
	Log LogConfig
}

// EVMConfig holds the EVM endpoint settings. The API key is appended to
// both URLs.
type EVMConfig struct {
	Enabled      bool          `conf:"evm.enabled"`
	RPCURL       string        `conf:"evm.rpc"`
	WSURL        string        `conf:"evm.ws"`
	APIKey       string        `conf:"evm.apikey"`
	ChainID      int64         `conf:"evm.chainid"` // 0 asks the node
	Stream       bool          `conf:"evm.stream"`  // subscribe to new heads
	ReceiptPoll  time.Duration `conf:"evm.receipt_poll"`
	HistoryLimit int           `conf:"evm.history_limit"`
}

// SolanaConfig holds the Solana endpoint settings.
type SolanaConfig struct {
	Enabled        bool          `conf:"solana.enabled"`
	RPCURL         string        `conf:"solana.rpc"`
	APIKey         string        `conf:"solana.apikey"`
	SignatureLimit int           `conf:"solana.signature_limit"`
	FetchRate      int           `conf:"solana.fetch_rate"` // getTransaction calls per second
	ConfirmPoll    time.Duration `conf:"solana.confirm_poll"`
}

// NetConfig holds the network resilience policy.
type NetConfig struct {
	MaxRetries         int           `conf:"net.retries"`
	RetryDelay         time.Duration `conf:"net.retry_delay"`
	RequestTimeout     time.Duration `conf:"net.timeout"`
	RateLimitDelay     time.Duration `conf:"net.ratelimit_delay"`
	ReconnectBaseDelay time.Duration `conf:"net.reconnect_delay"`
	ReconnectAttempts  int           `conf:"net.reconnect_attempts"`
	BreakerTimeout     time.Duration `conf:"net.breaker_timeout"`
	ConfirmTimeout     time.Duration `conf:"net.confirm_timeout"`
}

// DiscoveryConfig holds import discovery settings.
type DiscoveryConfig struct {
	MaxScan int    `conf:"discovery.max_scan"`
	Policy  string `conf:"discovery.policy"` // independent or shared-max
}

// SecretsConfig holds secret store settings. The passphrase itself is never
// written to the config file; it is read from the named environment variable
// or prompted for.
type SecretsConfig struct {
	PassphraseEnv  string `conf:"secrets.passphrase_env"`
	KDFMemory      uint32 `conf:"secrets.kdf_memory"` // KiB
	KDFIterations  uint32 `conf:"secrets.kdf_iterations"`
	KDFParallelism uint8  `conf:"secrets.kdf_parallelism"`
	MnemonicWords  int    `conf:"secrets.mnemonic_words"`
}

// PollConfig holds background refresh settings.
type PollConfig struct {
	Enabled  bool          `conf:"poll.enabled"`
	Interval time.Duration `conf:"poll.interval"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `conf:"metrics.enabled"`
	Addr    string `conf:"metrics.addr"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// =============================================================================
// Directory helpers
// =============================================================================

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.klingnet-wallet
//	macOS:   ~/Library/Application Support/KlingnetWallet
//	Windows: %APPDATA%\KlingnetWallet
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".klingnet-wallet"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "KlingnetWallet")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "KlingnetWallet")
		}
		return filepath.Join(home, "AppData", "Roaming", "KlingnetWallet")
	default:
		return filepath.Join(home, ".klingnet-wallet")
	}
}

// NetworkDataDir returns the network-specific data directory.
func (c *Config) NetworkDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// StateDir returns the database directory holding account state and secrets.
func (c *Config) StateDir() string {
	return filepath.Join(c.NetworkDataDir(), "state")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "wallet.conf")
}
