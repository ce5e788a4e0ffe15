package config

import (
	"github.com/Klingon-tech/klingnet-wallet/internal/chain"
	"github.com/Klingon-tech/klingnet-wallet/internal/chain/evm"
	"github.com/Klingon-tech/klingnet-wallet/internal/chain/solana"
	"github.com/Klingon-tech/klingnet-wallet/internal/engine"
	"github.com/Klingon-tech/klingnet-wallet/internal/wallet"
)

// NetPolicy returns the retry and timeout policy for the adapters.
func (c *Config) NetPolicy() chain.NetConfig {
	return chain.NetConfig{
		MaxRetries:     c.Net.MaxRetries,
		RetryDelay:     c.Net.RetryDelay,
		RequestTimeout: c.Net.RequestTimeout,
		RateLimitDelay: c.Net.RateLimitDelay,
	}
}

// EVMAdapter returns the EVM adapter configuration.
func (c *Config) EVMAdapter() evm.Config {
	ws := ""
	if c.EVM.Stream {
		ws = c.EVM.WSURL
	}
	return evm.Config{
		RPCURL:      c.EVM.RPCURL,
		WSURL:       ws,
		APIKey:      c.EVM.APIKey,
		Environment: c.Network.Environment(),
		ChainID:     c.EVM.ChainID,
		Net:         c.NetPolicy(),
		Reconnect: chain.ReconnectConfig{
			BaseDelay:   c.Net.ReconnectBaseDelay,
			MaxAttempts: c.Net.ReconnectAttempts,
		},
		ReceiptPollInterval: c.EVM.ReceiptPoll,
		PageSize:            c.EVM.HistoryLimit,
		BreakerTimeout:      c.Net.BreakerTimeout,
	}
}

// SolanaAdapter returns the Solana adapter configuration.
func (c *Config) SolanaAdapter() solana.Config {
	return solana.Config{
		RPCURL:              c.Solana.RPCURL + c.Solana.APIKey,
		Net:                 c.NetPolicy(),
		SignatureLimit:      c.Solana.SignatureLimit,
		FetchRate:           c.Solana.FetchRate,
		ConfirmPollInterval: c.Solana.ConfirmPoll,
		BreakerTimeout:      c.Net.BreakerTimeout,
	}
}

// Engine returns the engine configuration.
func (c *Config) Engine() engine.Config {
	return engine.Config{
		ConfirmationTimeout: c.Net.ConfirmTimeout,
		MaxDiscoveryScan:    c.Discovery.MaxScan,
		MnemonicWords:       c.Secrets.MnemonicWords,
	}
}

// BoundaryPolicy returns the parsed discovery policy.
func (c *Config) BoundaryPolicy() (engine.BoundaryPolicy, error) {
	return engine.ParseBoundaryPolicy(c.Discovery.Policy)
}

// EncryptionParams returns the secret store key-derivation parameters.
func (c *Config) EncryptionParams() wallet.EncryptionParams {
	return wallet.EncryptionParams{
		Memory:      c.Secrets.KDFMemory,
		Iterations:  c.Secrets.KDFIterations,
		Parallelism: c.Secrets.KDFParallelism,
	}
}
