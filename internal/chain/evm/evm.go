// Package evm implements the chain adapter for Ethereum-compatible networks.
//
// Balances, nonces, fees, sends and receipts go through go-ethereum's
// ethclient. History comes from the provider's alchemy_getAssetTransfers
// JSON-RPC extension. A websocket new-heads subscription is kept open by a
// chain.Reconnector and surfaced through Notify.
package evm

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/Klingon-tech/klingnet-wallet/internal/chain"
	klog "github.com/Klingon-tech/klingnet-wallet/internal/log"
	"github.com/Klingon-tech/klingnet-wallet/internal/metrics"
	"github.com/Klingon-tech/klingnet-wallet/internal/rpcclient"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

// Defaults.
const (
	DefaultReceiptPollInterval = 3 * time.Second
	DefaultPageSize            = 100
)

// Config holds the endpoint settings for one EVM network.
type Config struct {
	// RPCURL and WSURL are prefixes; the API key is appended to each.
	RPCURL string
	WSURL  string
	APIKey string
	// Environment selects mainnet ("production") or testnet.
	Environment string
	// ChainID pins the signing chain ID. Zero asks the node.
	ChainID int64

	Net                 chain.NetConfig
	Reconnect           chain.ReconnectConfig
	ReceiptPollInterval time.Duration
	PageSize            int
	BreakerTimeout      time.Duration
}

func (c Config) httpEndpoint() string { return c.RPCURL + c.APIKey }
func (c Config) wsEndpoint() string   { return c.WSURL + c.APIKey }

// Network returns the network name for the configured environment.
func (c Config) Network() string {
	if c.Environment == "production" {
		return "eth-mainnet"
	}
	return "eth-sepolia"
}

// Adapter is the EVM chain adapter.
type Adapter struct {
	cfg     Config
	rpc     *rpcclient.Client
	logger  zerolog.Logger
	metrics *metrics.Collectors
	cache   *chain.DeriveCache

	conn    *chain.Connector
	breaker *chain.Breaker

	mu      sync.Mutex
	eth     *ethclient.Client
	chainID *big.Int

	stream *chain.Reconnector
	notify chan struct{}
}

var _ chain.Adapter = (*Adapter)(nil)

// New creates an EVM adapter. Nothing is dialled until the first call.
func New(cfg Config, m *metrics.Collectors, cache *chain.DeriveCache) *Adapter {
	if cfg.Net.RequestTimeout == 0 {
		cfg.Net = chain.DefaultNetConfig()
	}
	if cfg.ReceiptPollInterval <= 0 {
		cfg.ReceiptPollInterval = DefaultReceiptPollInterval
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}

	logger := klog.WithChain(klog.EVM, string(chain.KindEVM))
	a := &Adapter{
		cfg:     cfg,
		rpc:     rpcclient.NewWithTimeout(cfg.httpEndpoint(), cfg.Net.RequestTimeout),
		logger:  logger,
		metrics: m,
		cache:   cache,
		breaker: chain.NewBreaker(string(chain.KindEVM), cfg.BreakerTimeout, logger),
		notify:  make(chan struct{}, 1),
	}
	if cfg.ChainID != 0 {
		a.chainID = big.NewInt(cfg.ChainID)
	}
	a.conn = chain.NewConnector(string(chain.KindEVM), a.probe, cfg.Net, logger, m)
	return a
}

// Kind implements chain.Adapter.
func (a *Adapter) Kind() chain.Kind { return chain.KindEVM }

func (a *Adapter) probe(ctx context.Context) error {
	a.mu.Lock()
	client := a.eth
	a.mu.Unlock()

	if client == nil {
		c, err := ethclient.DialContext(ctx, a.cfg.httpEndpoint())
		if err != nil {
			return fmt.Errorf("dial %s: %w", a.cfg.Network(), err)
		}
		client = c
	}
	if _, err := client.BlockNumber(ctx); err != nil {
		client.Close()
		return fmt.Errorf("eth_blockNumber: %w", err)
	}

	a.mu.Lock()
	a.eth = client
	a.mu.Unlock()
	return nil
}

func (a *Adapter) client(ctx context.Context) (*ethclient.Client, error) {
	if err := a.conn.Ensure(ctx); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.eth == nil {
		return nil, chain.ErrConnectionUnavailable
	}
	return a.eth, nil
}

// call runs fn against the node with the request timeout, the breaker and
// metrics applied.
func (a *Adapter) call(ctx context.Context, method string, fn func(ctx context.Context, c *ethclient.Client) error) error {
	c, err := a.client(ctx)
	if err != nil {
		return err
	}
	start := time.Now()
	err = a.breaker.Do(func() error {
		return chain.WithTimeout(ctx, a.cfg.Net.RequestTimeout, func(ctx context.Context) error {
			return fn(ctx, c)
		})
	})
	a.metrics.ObserveRPC(string(chain.KindEVM), method, start, err)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

// callRaw runs a provider JSON-RPC method through the shared HTTP client.
func (a *Adapter) callRaw(ctx context.Context, method string, params, result interface{}) error {
	if err := a.conn.Ensure(ctx); err != nil {
		return err
	}
	start := time.Now()
	err := a.breaker.Do(func() error {
		return chain.WithTimeout(ctx, a.cfg.Net.RequestTimeout, func(ctx context.Context) error {
			return a.rpc.CallContext(ctx, method, params, result)
		})
	})
	a.metrics.ObserveRPC(string(chain.KindEVM), method, start, err)
	return err
}

func (a *Adapter) signingChainID(ctx context.Context, c *ethclient.Client) (*big.Int, error) {
	a.mu.Lock()
	id := a.chainID
	a.mu.Unlock()
	if id != nil {
		return id, nil
	}
	id, err := c.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.chainID = id
	a.mu.Unlock()
	return id, nil
}

// Close stops the stream and drops the node connection.
func (a *Adapter) Close() error {
	a.mu.Lock()
	stream := a.stream
	a.stream = nil
	client := a.eth
	a.eth = nil
	a.mu.Unlock()

	if stream != nil {
		stream.Close()
	}
	if client != nil {
		client.Close()
	}
	a.conn.Reset()
	return nil
}
