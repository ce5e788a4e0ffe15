package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Klingon-tech/klingnet-wallet/internal/metrics"
	"github.com/rs/zerolog"
)

// Network resilience defaults.
const (
	DefaultMaxRetries     = 3
	DefaultRetryDelay     = 2 * time.Second
	DefaultRequestTimeout = 5 * time.Second
	DefaultRateLimitDelay = 250 * time.Millisecond
)

// NetConfig holds the retry and timeout policy shared by the adapters.
type NetConfig struct {
	MaxRetries     int
	RetryDelay     time.Duration
	RequestTimeout time.Duration
	RateLimitDelay time.Duration
}

// DefaultNetConfig returns the default policy.
func DefaultNetConfig() NetConfig {
	return NetConfig{
		MaxRetries:     DefaultMaxRetries,
		RetryDelay:     DefaultRetryDelay,
		RequestTimeout: DefaultRequestTimeout,
		RateLimitDelay: DefaultRateLimitDelay,
	}
}

// ProbeFunc checks that an endpoint answers.
type ProbeFunc func(ctx context.Context) error

// Connector lazily establishes a connection by running a health probe.
// A failed probe is retried MaxRetries times with a fixed delay. Once the
// retries are exhausted the connector stays disconnected and Ensure makes
// a single fresh probe per call until one succeeds or Reset is called.
type Connector struct {
	name    string
	probe   ProbeFunc
	cfg     NetConfig
	logger  zerolog.Logger
	metrics *metrics.Collectors

	mu        sync.Mutex
	ready     bool
	exhausted bool
	probes    int
}

// NewConnector creates a connector for the named chain.
func NewConnector(name string, probe ProbeFunc, cfg NetConfig, logger zerolog.Logger, m *metrics.Collectors) *Connector {
	return &Connector{
		name:    name,
		probe:   probe,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
	}
}

// Ensure returns nil once the endpoint has answered a probe.
func (c *Connector) Ensure(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ready {
		return nil
	}

	attempts := c.cfg.MaxRetries + 1
	if c.exhausted {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			c.metrics.Retry(c.name, "connect")
			c.logger.Warn().
				Err(lastErr).
				Int("attempt", attempt).
				Dur("delay", c.cfg.RetryDelay).
				Msg("Connection probe failed, retrying")
			if err := SleepContext(ctx, c.cfg.RetryDelay); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrConnectionUnavailable, c.name, err)
			}
		}

		c.probes++
		start := time.Now()
		lastErr = WithTimeout(ctx, c.cfg.RequestTimeout, func(ctx context.Context) error {
			return c.probe(ctx)
		})
		c.metrics.ObserveRPC(c.name, "probe", start, lastErr)
		if lastErr == nil {
			c.ready = true
			c.exhausted = false
			c.logger.Info().Msg("Connection established")
			return nil
		}
		if errors.Is(lastErr, context.Canceled) && ctx.Err() != nil {
			break
		}
	}

	c.exhausted = true
	c.logger.Error().Err(lastErr).Msg("Connection unavailable after retries")
	return fmt.Errorf("%w: %s: %v", ErrConnectionUnavailable, c.name, lastErr)
}

// Ready reports whether a probe has succeeded since the last Reset.
func (c *Connector) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Probes returns how many probes have been sent.
func (c *Connector) Probes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.probes
}

// Reset drops the connection state. The next Ensure runs the full retry loop.
func (c *Connector) Reset() {
	c.mu.Lock()
	c.ready = false
	c.exhausted = false
	c.mu.Unlock()
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
