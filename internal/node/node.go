// Package node wires the wallet engine together so it can be embedded in any
// binary (daemon, CLI).
package node

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Klingon-tech/klingnet-wallet/config"
	"github.com/Klingon-tech/klingnet-wallet/internal/chain"
	"github.com/Klingon-tech/klingnet-wallet/internal/chain/evm"
	"github.com/Klingon-tech/klingnet-wallet/internal/chain/solana"
	"github.com/Klingon-tech/klingnet-wallet/internal/engine"
	"github.com/Klingon-tech/klingnet-wallet/internal/favorites"
	klog "github.com/Klingon-tech/klingnet-wallet/internal/log"
	"github.com/Klingon-tech/klingnet-wallet/internal/metrics"
	"github.com/Klingon-tech/klingnet-wallet/internal/storage"
	"github.com/Klingon-tech/klingnet-wallet/internal/store"
	"github.com/Klingon-tech/klingnet-wallet/internal/wallet"
)

// deriveCacheSize bounds the derived-account cache.
const deriveCacheSize = 256

// ErrEmptyPassphrase is returned when no secret store passphrase was given.
var ErrEmptyPassphrase = errors.New("secret store passphrase is empty")

// Options tunes what New sets up beyond the engine itself.
type Options struct {
	// Quiet leaves the global logger untouched (the CLI silences it).
	Quiet bool
	// DB overrides the badger database; used by tests.
	DB storage.DB
}

// Node is a fully-initialized wallet engine with its background services.
type Node struct {
	cfg    *config.Config
	logger zerolog.Logger

	// Core
	db      storage.DB
	secrets *wallet.SecretStore
	store   *store.Store
	engine  *engine.Engine
	cache   *chain.DeriveCache

	// Adapters
	evm    *evm.Adapter
	solana *solana.Adapter

	// Metrics
	registry   *prometheus.Registry
	metricsSrv *http.Server

	// Background refresh
	poller *engine.Poller

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates and initializes a Node. It opens storage, unlocks the secret
// store and builds the adapters and engine, but does NOT start background
// goroutines (poller, stream, metrics). Call Start() for that.
func New(cfg *config.Config, passphrase []byte, opts Options) (*Node, error) {
	if len(passphrase) == 0 {
		return nil, ErrEmptyPassphrase
	}

	// ── 1. Init logger ──────────────────────────────────────────────
	if !opts.Quiet {
		logFile := expandHome(cfg.Log.File)
		if logFile == "" {
			logsDir := cfg.LogsDir()
			if err := os.MkdirAll(logsDir, 0700); err != nil {
				return nil, fmt.Errorf("creating logs dir: %w", err)
			}
			logFile = filepath.Join(logsDir, "wallet.log")
		}
		if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
			return nil, fmt.Errorf("initializing logger: %w", err)
		}
	}
	logger := klog.WithComponent("node")

	logger.Info().
		Str("network", string(cfg.Network)).
		Bool("evm", cfg.EVM.Enabled).
		Bool("solana", cfg.Solana.Enabled).
		Msg("Starting Klingnet Wallet")

	// ── 2. Open storage ─────────────────────────────────────────────
	db := opts.DB
	if db == nil {
		bdb, err := storage.NewBadger(cfg.StateDir())
		if err != nil {
			return nil, fmt.Errorf("open database at %s: %w", cfg.StateDir(), err)
		}
		db = bdb
		logger.Info().Str("path", cfg.StateDir()).Msg("Database opened")
	}

	n := &Node{cfg: cfg, logger: logger, db: db}
	fail := func(err error) (*Node, error) {
		n.closeAdapters()
		db.Close()
		return nil, err
	}

	// ── 3. Secret store ─────────────────────────────────────────────
	n.secrets = wallet.NewSecretStore(db, passphrase, cfg.EncryptionParams())
	if _, err := n.secrets.Mnemonic(); err != nil && !errors.Is(err, wallet.ErrSecretNotFound) {
		return fail(fmt.Errorf("unlock secret store: %w", err))
	}

	// ── 4. Account state ────────────────────────────────────────────
	st, err := store.New(db)
	if err != nil {
		return fail(fmt.Errorf("load account state: %w", err))
	}
	n.store = st

	// ── 5. Metrics ──────────────────────────────────────────────────
	var m *metrics.Collectors
	if cfg.Metrics.Enabled {
		n.registry = prometheus.NewRegistry()
		m, err = metrics.New(n.registry)
		if err != nil {
			return fail(fmt.Errorf("register metrics: %w", err))
		}
	}

	// ── 6. Adapters ─────────────────────────────────────────────────
	n.cache = chain.NewDeriveCache(deriveCacheSize)
	var adapters []chain.Adapter
	if cfg.EVM.Enabled {
		n.evm = evm.New(cfg.EVMAdapter(), m, n.cache)
		adapters = append(adapters, n.evm)
	}
	if cfg.Solana.Enabled {
		n.solana = solana.New(cfg.SolanaAdapter(), m, n.cache)
		adapters = append(adapters, n.solana)
	}

	// ── 7. Engine ───────────────────────────────────────────────────
	n.engine, err = engine.New(cfg.Engine(), st, n.secrets, adapters,
		engine.WithFavorites(favorites.New(n.secrets)),
		engine.WithCache(n.cache),
		engine.WithMetrics(m),
	)
	if err != nil {
		return fail(fmt.Errorf("create engine: %w", err))
	}

	for _, kind := range n.engine.Kinds() {
		w := st.State(kind)
		logger.Info().
			Str("chain", kind.String()).
			Int("accounts", len(w.Accounts)).
			Msg("Wallet state loaded")
	}
	return n, nil
}

// Start launches the metrics endpoint, the EVM head stream and the poller.
func (n *Node) Start() error {
	n.ctx, n.cancel = context.WithCancel(context.Background())

	// Metrics.
	if n.registry != nil {
		n.metricsSrv = &http.Server{
			Addr:              n.cfg.Metrics.Addr,
			Handler:           promhttp.HandlerFor(n.registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			if err := n.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				n.logger.Error().Err(err).Msg("Metrics server stopped")
			}
		}()
		n.logger.Info().Str("addr", n.cfg.Metrics.Addr).Msg("Metrics server listening")
	}

	// New-head stream. A dial failure is retried in the background, so it
	// does not stop the daemon.
	if n.evm != nil && n.cfg.EVM.Stream {
		if err := n.evm.StartStream(); err != nil {
			n.logger.Warn().Err(err).Msg("EVM stream not started")
		}
	}

	// Background refresh.
	if n.cfg.Poll.Enabled {
		n.poller = engine.NewPoller(n.engine, n.cfg.Poll.Interval)
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.poller.Run(n.ctx)
		}()
	}

	n.logger.Info().
		Bool("poll", n.cfg.Poll.Enabled).
		Bool("stream", n.cfg.EVM.Stream).
		Bool("metrics", n.registry != nil).
		Msg("Wallet daemon started")
	return nil
}

// Stop shuts down background services and closes storage.
func (n *Node) Stop() {
	if n.cancel != nil {
		n.cancel()
	}
	if n.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := n.metricsSrv.Shutdown(ctx); err != nil {
			n.logger.Warn().Err(err).Msg("Metrics server shutdown")
		}
		cancel()
	}
	n.wg.Wait()

	if n.engine != nil {
		if err := n.engine.Close(); err != nil {
			n.logger.Warn().Err(err).Msg("Closing adapters")
		}
	} else {
		n.closeAdapters()
	}
	if n.db != nil {
		n.db.Close()
	}

	n.logger.Info().Msg("Goodbye!")
}

func (n *Node) closeAdapters() {
	if n.evm != nil {
		n.evm.Close()
	}
	if n.solana != nil {
		n.solana.Close()
	}
}

// Engine returns the wallet engine.
func (n *Node) Engine() *engine.Engine { return n.engine }

// Config returns the node configuration.
func (n *Node) Config() *config.Config { return n.cfg }

// Poller returns the background refresher, or nil before Start or when
// polling is disabled.
func (n *Node) Poller() *engine.Poller { return n.poller }
