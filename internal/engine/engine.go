// Package engine ties the account state store, the chain adapters and the
// secret store together. Commands run the network part through an adapter and
// then apply the result to the store with one mutation.
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/Klingon-tech/klingnet-wallet/internal/chain"
	"github.com/Klingon-tech/klingnet-wallet/internal/favorites"
	klog "github.com/Klingon-tech/klingnet-wallet/internal/log"
	"github.com/Klingon-tech/klingnet-wallet/internal/metrics"
	"github.com/Klingon-tech/klingnet-wallet/internal/store"
	"github.com/rs/zerolog"
)

// Engine errors.
var (
	ErrWalletExists   = errors.New("wallet already exists")
	ErrNoWallet       = errors.New("no wallet")
	ErrUnknownChain   = errors.New("no adapter for chain")
	ErrNoActive       = errors.New("no active account")
	ErrNothingToLoad  = errors.New("no further history")
	ErrSecretsMissing = errors.New("secret store not configured")
)

// Secrets is the part of the secret store the engine uses.
type Secrets interface {
	SaveMnemonic(mnemonic string) error
	Mnemonic() (string, error)
	Seed() ([]byte, error)
	Clear() error
}

// Config tunes engine behaviour.
type Config struct {
	// ConfirmationTimeout bounds ConfirmTransaction.
	ConfirmationTimeout time.Duration
	// MaxDiscoveryScan bounds how many indices an import probes per chain.
	MaxDiscoveryScan int
	// MnemonicWords is the length of generated phrases (12 or 24).
	MnemonicWords int
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		ConfirmationTimeout: chain.DefaultConfirmationTimeout,
		MaxDiscoveryScan:    chain.DefaultMaxDiscoveryScan,
		MnemonicWords:       24,
	}
}

// Engine is built once by the composition root and shared by callers.
type Engine struct {
	cfg       Config
	store     *store.Store
	secrets   Secrets
	favorites *favorites.Service
	adapters  map[chain.Kind]chain.Adapter
	kinds     []chain.Kind
	cache     *chain.DeriveCache
	metrics   *metrics.Collectors
	logger    zerolog.Logger
}

// Option configures optional collaborators.
type Option func(*Engine)

// WithFavorites exposes a favorites service through the engine.
func WithFavorites(f *favorites.Service) Option {
	return func(e *Engine) { e.favorites = f }
}

// WithCache lets Logout purge the derived-account cache shared with the adapters.
func WithCache(c *chain.DeriveCache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithLogger replaces the engine's component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics records discovery probes.
func WithMetrics(m *metrics.Collectors) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an engine over st and one adapter per chain kind.
func New(cfg Config, st *store.Store, secrets Secrets, adapters []chain.Adapter, opts ...Option) (*Engine, error) {
	if st == nil {
		return nil, fmt.Errorf("engine: nil store")
	}
	if secrets == nil {
		return nil, ErrSecretsMissing
	}
	if len(adapters) == 0 {
		return nil, fmt.Errorf("engine: no adapters")
	}
	def := DefaultConfig()
	if cfg.ConfirmationTimeout <= 0 {
		cfg.ConfirmationTimeout = def.ConfirmationTimeout
	}
	if cfg.MaxDiscoveryScan <= 0 {
		cfg.MaxDiscoveryScan = def.MaxDiscoveryScan
	}
	if cfg.MnemonicWords == 0 {
		cfg.MnemonicWords = def.MnemonicWords
	}

	e := &Engine{
		cfg:      cfg,
		store:    st,
		secrets:  secrets,
		adapters: make(map[chain.Kind]chain.Adapter, len(adapters)),
		logger:   klog.Engine,
	}
	for _, a := range adapters {
		if _, dup := e.adapters[a.Kind()]; dup {
			return nil, fmt.Errorf("engine: duplicate adapter for %s", a.Kind())
		}
		e.adapters[a.Kind()] = a
		e.kinds = append(e.kinds, a.Kind())
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Kinds lists the chains the engine serves, in adapter order.
func (e *Engine) Kinds() []chain.Kind {
	return append([]chain.Kind(nil), e.kinds...)
}

// Store returns the underlying account state store.
func (e *Engine) Store() *store.Store { return e.store }

// Favorites returns the favorites service, or nil when none was configured.
func (e *Engine) Favorites() *favorites.Service { return e.favorites }

func (e *Engine) adapter(kind chain.Kind) (chain.Adapter, error) {
	a, ok := e.adapters[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChain, kind)
	}
	return a, nil
}

// resolve returns the account addressed by address, or the active account
// when address is empty.
func (e *Engine) resolve(kind chain.Kind, address string) (store.Account, error) {
	if address == "" {
		a, ok := e.store.Active(kind)
		if !ok {
			return store.Account{}, fmt.Errorf("%w on %s", ErrNoActive, kind)
		}
		return a, nil
	}
	a, ok := e.store.Account(kind, address)
	if !ok {
		return store.Account{}, fmt.Errorf("%w: %s %s", store.ErrUnknownAccount, kind, address)
	}
	return a, nil
}

// Close closes every adapter.
func (e *Engine) Close() error {
	var errs []error
	for _, kind := range e.kinds {
		if err := e.adapters[kind].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", kind, err))
		}
	}
	return errors.Join(errs...)
}

func accountName(index uint32) string {
	return fmt.Sprintf("Account %d", index+1)
}
