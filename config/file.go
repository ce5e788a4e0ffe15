package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadFile loads configuration from a .conf file.
// Format: key = value (one per line, # for comments)
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets a config value by key.
func setConfigValue(cfg *Config, key, value string) error {
	var err error
	switch key {
	// Core
	case "network":
		cfg.Network = NetworkType(value)
	case "datadir":
		cfg.DataDir = value

	// EVM
	case "evm.enabled", "evm":
		cfg.EVM.Enabled = parseBool(value)
	case "evm.rpc":
		cfg.EVM.RPCURL = value
	case "evm.ws":
		cfg.EVM.WSURL = value
	case "evm.apikey":
		cfg.EVM.APIKey = value
	case "evm.chainid":
		cfg.EVM.ChainID, err = strconv.ParseInt(value, 10, 64)
	case "evm.stream":
		cfg.EVM.Stream = parseBool(value)
	case "evm.receipt_poll":
		cfg.EVM.ReceiptPoll, err = time.ParseDuration(value)
	case "evm.history_limit":
		cfg.EVM.HistoryLimit, err = strconv.Atoi(value)

	// Solana
	case "solana.enabled", "solana":
		cfg.Solana.Enabled = parseBool(value)
	case "solana.rpc":
		cfg.Solana.RPCURL = value
	case "solana.apikey":
		cfg.Solana.APIKey = value
	case "solana.signature_limit":
		cfg.Solana.SignatureLimit, err = strconv.Atoi(value)
	case "solana.fetch_rate":
		cfg.Solana.FetchRate, err = strconv.Atoi(value)
	case "solana.confirm_poll":
		cfg.Solana.ConfirmPoll, err = time.ParseDuration(value)

	// Network policy
	case "net.retries":
		cfg.Net.MaxRetries, err = strconv.Atoi(value)
	case "net.retry_delay":
		cfg.Net.RetryDelay, err = time.ParseDuration(value)
	case "net.timeout":
		cfg.Net.RequestTimeout, err = time.ParseDuration(value)
	case "net.ratelimit_delay":
		cfg.Net.RateLimitDelay, err = time.ParseDuration(value)
	case "net.reconnect_delay":
		cfg.Net.ReconnectBaseDelay, err = time.ParseDuration(value)
	case "net.reconnect_attempts":
		cfg.Net.ReconnectAttempts, err = strconv.Atoi(value)
	case "net.breaker_timeout":
		cfg.Net.BreakerTimeout, err = time.ParseDuration(value)
	case "net.confirm_timeout":
		cfg.Net.ConfirmTimeout, err = time.ParseDuration(value)

	// Discovery
	case "discovery.max_scan":
		cfg.Discovery.MaxScan, err = strconv.Atoi(value)
	case "discovery.policy":
		cfg.Discovery.Policy = strings.ToLower(value)

	// Secrets
	case "secrets.passphrase_env":
		cfg.Secrets.PassphraseEnv = value
	case "secrets.kdf_memory":
		var n uint64
		n, err = strconv.ParseUint(value, 10, 32)
		cfg.Secrets.KDFMemory = uint32(n)
	case "secrets.kdf_iterations":
		var n uint64
		n, err = strconv.ParseUint(value, 10, 32)
		cfg.Secrets.KDFIterations = uint32(n)
	case "secrets.kdf_parallelism":
		var n uint64
		n, err = strconv.ParseUint(value, 10, 8)
		cfg.Secrets.KDFParallelism = uint8(n)
	case "secrets.mnemonic_words":
		cfg.Secrets.MnemonicWords, err = strconv.Atoi(value)

	// Polling
	case "poll.enabled", "poll":
		cfg.Poll.Enabled = parseBool(value)
	case "poll.interval":
		cfg.Poll.Interval, err = time.ParseDuration(value)

	// Metrics
	case "metrics.enabled", "metrics":
		cfg.Metrics.Enabled = parseBool(value)
	case "metrics.addr":
		cfg.Metrics.Addr = value

	// Logging
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)

	default:
		// Unknown keys are ignored
	}
	return err
}

// parseBool parses a boolean value.
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// WriteDefaultConfig writes a default configuration file.
func WriteDefaultConfig(path string, network NetworkType) error {
	d := Default(network)
	content := `# Klingnet Wallet Configuration
#
# Secrets are never stored here. The secret store passphrase is read from
# the environment variable named by secrets.passphrase_env, or prompted for.

# Network: mainnet or testnet
network = ` + string(network) + `

# Data directory (default: ~/.klingnet-wallet)
# datadir = ~/.klingnet-wallet

# ============================================================================
# EVM
# ============================================================================

evm.enabled = true
evm.rpc = ` + d.EVM.RPCURL + `
evm.ws = ` + d.EVM.WSURL + `
# evm.apikey =
# Signing chain ID (0 = ask the node)
# evm.chainid = 0
# Subscribe to new heads and refresh on each block
# evm.stream = false
# evm.receipt_poll = 3s
# evm.history_limit = 100

# ============================================================================
# Solana
# ============================================================================

solana.enabled = true
solana.rpc = ` + d.Solana.RPCURL + `
# solana.apikey =
# solana.signature_limit = 50
# solana.fetch_rate = 10
# solana.confirm_poll = 2s

# ============================================================================
# Network policy
# ============================================================================

# net.retries = 3
# net.retry_delay = 2s
# net.timeout = 5s
# net.ratelimit_delay = 250ms
# net.reconnect_delay = 5s
# net.reconnect_attempts = 5
# net.breaker_timeout = 30s
# net.confirm_timeout = 1m

# ============================================================================
# Import discovery
# ============================================================================

# Boundary policy: independent or shared-max
discovery.policy = independent
# discovery.max_scan = 1000

# ============================================================================
# Secret store
# ============================================================================

secrets.passphrase_env = ` + DefaultPassphraseEnv + `
# secrets.mnemonic_words = 24

# ============================================================================
# Polling and metrics
# ============================================================================

poll.enabled = true
poll.interval = 15s
metrics.enabled = false
metrics.addr = ` + d.Metrics.Addr + `

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0644)
}
