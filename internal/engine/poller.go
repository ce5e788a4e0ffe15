package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Klingon-tech/klingnet-wallet/internal/chain"
)

// DefaultPollInterval is how often active accounts are refreshed.
const DefaultPollInterval = 15 * time.Second

// Poller refreshes the active account of every chain on a fixed ticker, and
// additionally whenever an adapter that implements chain.Notifier signals.
// A tick does not wait for the previous round; refreshes may overlap.
type Poller struct {
	engine   *Engine
	interval time.Duration

	wg     sync.WaitGroup
	rounds atomic.Int64
}

// NewPoller returns a poller for e. A non-positive interval uses
// DefaultPollInterval.
func NewPoller(e *Engine, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{engine: e, interval: interval}
}

// Run polls until ctx is done, then waits for in-flight refreshes.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for _, kind := range p.engine.kinds {
		if n, ok := p.engine.adapters[kind].(chain.Notifier); ok {
			p.wg.Add(1)
			go p.watch(ctx, kind, n.Notify())
		}
	}

	p.engine.logger.Info().Dur("interval", p.interval).Msg("Polling started")
	p.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			p.wg.Wait()
			p.engine.logger.Info().Msg("Polling stopped")
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// Rounds returns how many poll rounds have been started.
func (p *Poller) Rounds() int64 {
	return p.rounds.Load()
}

func (p *Poller) tick(ctx context.Context) {
	p.rounds.Add(1)
	for _, kind := range p.engine.kinds {
		p.refresh(ctx, kind)
	}
}

func (p *Poller) refresh(ctx context.Context, kind chain.Kind) {
	if _, ok := p.engine.store.Active(kind); !ok {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		err := p.engine.RefreshAccount(ctx, kind, "")
		if err != nil && !errors.Is(err, context.Canceled) {
			p.engine.logger.Debug().Err(err).Str("chain", kind.String()).Msg("Poll refresh failed")
		}
	}()
}

func (p *Poller) watch(ctx context.Context, kind chain.Kind, signals <-chan struct{}) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-signals:
			if !ok {
				return
			}
			p.refresh(ctx, kind)
		}
	}
}
