package config

import (
	"time"

	"github.com/Klingon-tech/klingnet-wallet/internal/chain"
)

// DefaultPassphraseEnv is the environment variable read for the secret store
// passphrase.
const DefaultPassphraseEnv = "KLINGNET_WALLET_PASSPHRASE"

// DefaultMainnet returns the default configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network: Mainnet,
		DataDir: DefaultDataDir(),
		EVM: EVMConfig{
			Enabled:      true,
			RPCURL:       "https://eth-mainnet.g.alchemy.com/v2/",
			WSURL:        "wss://eth-mainnet.g.alchemy.com/v2/",
			Stream:       false,
			ReceiptPoll:  3 * time.Second,
			HistoryLimit: 100,
		},
		Solana: SolanaConfig{
			Enabled:        true,
			RPCURL:         "https://solana-mainnet.g.alchemy.com/v2/",
			SignatureLimit: 50,
			FetchRate:      10,
			ConfirmPoll:    2 * time.Second,
		},
		Net: NetConfig{
			MaxRetries:         chain.DefaultMaxRetries,
			RetryDelay:         chain.DefaultRetryDelay,
			RequestTimeout:     chain.DefaultRequestTimeout,
			RateLimitDelay:     chain.DefaultRateLimitDelay,
			ReconnectBaseDelay: chain.DefaultReconnectBaseDelay,
			ReconnectAttempts:  chain.DefaultMaxReconnectAttempts,
			BreakerTimeout:     30 * time.Second,
			ConfirmTimeout:     chain.DefaultConfirmationTimeout,
		},
		Discovery: DiscoveryConfig{
			MaxScan: chain.DefaultMaxDiscoveryScan,
			Policy:  "independent",
		},
		Secrets: SecretsConfig{
			PassphraseEnv:  DefaultPassphraseEnv,
			KDFMemory:      64 * 1024,
			KDFIterations:  3,
			KDFParallelism: 4,
			MnemonicWords:  24,
		},
		Poll: PollConfig{
			Enabled:  true,
			Interval: 15 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9464",
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// DefaultTestnet returns the default configuration for testnet: Sepolia and
// Solana devnet.
func DefaultTestnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Testnet
	cfg.EVM.RPCURL = "https://eth-sepolia.g.alchemy.com/v2/"
	cfg.EVM.WSURL = "wss://eth-sepolia.g.alchemy.com/v2/"
	cfg.Solana.RPCURL = "https://solana-devnet.g.alchemy.com/v2/"
	cfg.Metrics.Addr = "127.0.0.1:9465"
	return cfg
}

// Default returns the default configuration for the given network.
func Default(network NetworkType) *Config {
	switch network {
	case Testnet:
		return DefaultTestnet()
	default:
		return DefaultMainnet()
	}
}
