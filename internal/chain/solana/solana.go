// Package solana implements the chain adapter for Solana.
//
// All node traffic is plain JSON-RPC over HTTP. Keys, addresses and
// transfer transactions are handled with solana-go.
package solana

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Klingon-tech/klingnet-wallet/internal/chain"
	klog "github.com/Klingon-tech/klingnet-wallet/internal/log"
	"github.com/Klingon-tech/klingnet-wallet/internal/metrics"
	"github.com/Klingon-tech/klingnet-wallet/internal/rpcclient"
	"github.com/rs/zerolog"
	"go.uber.org/ratelimit"
)

// Defaults.
const (
	DefaultSignatureLimit      = 50
	DefaultFetchRate           = 10 // getTransaction calls per second
	DefaultConfirmPollInterval = 2 * time.Second
)

const commitmentConfirmed = "confirmed"

// Config holds the endpoint settings for one Solana cluster.
type Config struct {
	RPCURL string

	Net                 chain.NetConfig
	SignatureLimit      int
	FetchRate           int
	ConfirmPollInterval time.Duration
	BreakerTimeout      time.Duration
}

// Adapter is the Solana chain adapter.
type Adapter struct {
	cfg     Config
	rpc     *rpcclient.Client
	logger  zerolog.Logger
	metrics *metrics.Collectors
	cache   *chain.DeriveCache

	conn    *chain.Connector
	breaker *chain.Breaker
	limiter ratelimit.Limiter

	// lastValid maps a sent signature to the block height after which its
	// blockhash expires.
	mu        sync.Mutex
	lastValid map[string]uint64
}

var _ chain.Adapter = (*Adapter)(nil)

// New creates a Solana adapter. Nothing is sent until the first call.
func New(cfg Config, m *metrics.Collectors, cache *chain.DeriveCache) *Adapter {
	if cfg.Net.RequestTimeout == 0 {
		cfg.Net = chain.DefaultNetConfig()
	}
	if cfg.SignatureLimit <= 0 {
		cfg.SignatureLimit = DefaultSignatureLimit
	}
	if cfg.FetchRate <= 0 {
		cfg.FetchRate = DefaultFetchRate
	}
	if cfg.ConfirmPollInterval <= 0 {
		cfg.ConfirmPollInterval = DefaultConfirmPollInterval
	}

	logger := klog.WithChain(klog.Solana, string(chain.KindSolana))
	a := &Adapter{
		cfg:       cfg,
		rpc:       rpcclient.NewWithTimeout(cfg.RPCURL, cfg.Net.RequestTimeout),
		logger:    logger,
		metrics:   m,
		cache:     cache,
		breaker:   chain.NewBreaker(string(chain.KindSolana), cfg.BreakerTimeout, logger),
		limiter:   ratelimit.New(cfg.FetchRate),
		lastValid: make(map[string]uint64),
	}
	a.conn = chain.NewConnector(string(chain.KindSolana), a.probe, cfg.Net, logger, m)
	return a
}

// Kind implements chain.Adapter.
func (a *Adapter) Kind() chain.Kind { return chain.KindSolana }

type blockhashResult struct {
	Value struct {
		Blockhash            string `json:"blockhash"`
		LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
	} `json:"value"`
}

func commitment() map[string]interface{} {
	return map[string]interface{}{"commitment": commitmentConfirmed}
}

func (a *Adapter) probe(ctx context.Context) error {
	var res blockhashResult
	if err := a.rpc.CallContext(ctx, "getLatestBlockhash", []interface{}{commitment()}, &res); err != nil {
		return err
	}
	if res.Value.Blockhash == "" {
		return fmt.Errorf("getLatestBlockhash: empty blockhash")
	}
	return nil
}

// call runs one JSON-RPC method with the connection check, request timeout,
// breaker and metrics applied.
func (a *Adapter) call(ctx context.Context, method string, params, result interface{}) error {
	if err := a.conn.Ensure(ctx); err != nil {
		return err
	}
	start := time.Now()
	err := a.breaker.Do(func() error {
		return chain.WithTimeout(ctx, a.cfg.Net.RequestTimeout, func(ctx context.Context) error {
			return a.rpc.CallContext(ctx, method, params, result)
		})
	})
	a.metrics.ObserveRPC(string(chain.KindSolana), method, start, err)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

func (a *Adapter) latestBlockhash(ctx context.Context) (blockhashResult, error) {
	var res blockhashResult
	err := a.call(ctx, "getLatestBlockhash", []interface{}{commitment()}, &res)
	return res, err
}

// Close drops the connection state.
func (a *Adapter) Close() error {
	a.conn.Reset()
	a.mu.Lock()
	a.lastValid = make(map[string]uint64)
	a.mu.Unlock()
	return nil
}
