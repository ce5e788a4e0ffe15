package chain

import (
	"context"
	"sync"
	"time"

	"github.com/Klingon-tech/klingnet-wallet/internal/metrics"
	"github.com/rs/zerolog"
)

// Streaming reconnect defaults.
const (
	DefaultReconnectBaseDelay   = 5 * time.Second
	DefaultMaxReconnectAttempts = 5
)

// Stream is a live streaming connection. Err delivers at most one value when
// the stream breaks.
type Stream interface {
	Err() <-chan error
	Close()
}

// Dialer opens a stream.
type Dialer func(ctx context.Context) (Stream, error)

// ReconnectConfig tunes a Reconnector.
type ReconnectConfig struct {
	BaseDelay   time.Duration
	MaxAttempts int
	// OnConnect is called with every newly established stream.
	OnConnect func(Stream)
}

// Reconnector keeps one stream open. After a dial failure or a stream error
// it schedules a reconnect after BaseDelay*2^attempt using a single timer.
// After MaxAttempts consecutive failed reconnects nothing more is scheduled
// until Reconnect is called.
type Reconnector struct {
	name    string
	dial    Dialer
	cfg     ReconnectConfig
	logger  zerolog.Logger
	metrics *metrics.Collectors

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	stream     Stream
	timer      *time.Timer
	attempts   int
	dials      int
	exhausted  bool
	connecting bool
	closed     bool
}

// NewReconnector creates a reconnector. Nothing is dialled until Start.
func NewReconnector(name string, dial Dialer, cfg ReconnectConfig, logger zerolog.Logger, m *metrics.Collectors) *Reconnector {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultReconnectBaseDelay
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxReconnectAttempts
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Reconnector{
		name:    name,
		dial:    dial,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start makes the initial connection attempt. A failure is handled by the
// backoff schedule and also returned.
func (r *Reconnector) Start() error {
	return r.connect()
}

// Reconnect clears the attempt counter and the exhausted state and dials
// immediately.
func (r *Reconnector) Reconnect() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrConnectionUnavailable
	}
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.attempts = 0
	r.exhausted = false
	r.mu.Unlock()
	return r.connect()
}

func (r *Reconnector) connect() error {
	r.mu.Lock()
	if r.closed || r.connecting {
		r.mu.Unlock()
		return nil
	}
	r.connecting = true
	r.dials++
	r.mu.Unlock()

	s, err := r.dial(r.ctx)
	r.metrics.Reconnect(r.name, err)

	r.mu.Lock()
	r.connecting = false
	if r.closed {
		r.mu.Unlock()
		if s != nil {
			s.Close()
		}
		return ErrConnectionUnavailable
	}
	if err != nil {
		r.logger.Warn().Err(err).Int("attempt", r.attempts).Msg("Stream dial failed")
		r.scheduleLocked()
		r.mu.Unlock()
		return err
	}
	if r.stream != nil {
		r.stream.Close()
	}
	r.stream = s
	r.attempts = 0
	r.exhausted = false
	onConnect := r.cfg.OnConnect
	r.mu.Unlock()

	r.logger.Info().Msg("Stream connected")
	if onConnect != nil {
		onConnect(s)
	}
	go r.watch(s)
	return nil
}

func (r *Reconnector) watch(s Stream) {
	select {
	case <-r.ctx.Done():
		return
	case err := <-s.Err():
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.stream != s {
			return
		}
		r.stream = nil
		s.Close()
		r.logger.Warn().Err(err).Msg("Stream disconnected")
		r.scheduleLocked()
	}
}

// scheduleLocked arms the single reconnect timer. r.mu must be held.
func (r *Reconnector) scheduleLocked() {
	if r.closed {
		return
	}
	if r.attempts >= r.cfg.MaxAttempts {
		r.exhausted = true
		r.logger.Error().
			Int("attempts", r.attempts).
			Err(ErrReconnectExhausted).
			Msg("Max reconnection attempts reached")
		return
	}
	if r.timer != nil {
		r.timer.Stop()
	}
	delay := r.cfg.BaseDelay << uint(r.attempts)
	r.logger.Info().Dur("delay", delay).Int("attempt", r.attempts+1).Msg("Scheduling reconnect")
	r.timer = time.AfterFunc(delay, func() {
		r.mu.Lock()
		r.timer = nil
		r.attempts++
		r.mu.Unlock()
		r.connect()
	})
}

// Current returns the live stream, or nil.
func (r *Reconnector) Current() Stream {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stream
}

// Attempts returns the number of consecutive reconnect attempts.
func (r *Reconnector) Attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

// Dials returns the total number of dials, including the first.
func (r *Reconnector) Dials() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dials
}

// Exhausted reports whether reconnecting has given up.
func (r *Reconnector) Exhausted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exhausted
}

// Close stops the timer and closes the live stream.
func (r *Reconnector) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.cancel()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if r.stream != nil {
		r.stream.Close()
		r.stream = nil
	}
}
