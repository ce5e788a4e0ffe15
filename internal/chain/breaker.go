package chain

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// Breaker trips after sustained transport failures so callers fail fast
// instead of queueing on a dead endpoint.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewBreaker creates a breaker that opens when more than 10 requests in the
// current window failed at a ratio of at least 0.6, and half-opens after
// openTimeout.
func NewBreaker(name string, openTimeout time.Duration, logger zerolog.Logger) *Breaker {
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}
	st := gobreaker.Settings{
		Name:    name,
		Timeout: openTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			if c.Requests <= 10 {
				return false
			}
			return float64(c.TotalFailures)/float64(c.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state change")
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(st)}
}

// Do runs fn through the breaker. Only transport errors count as failures.
// While open it returns ErrConnectionUnavailable without calling fn.
func (b *Breaker) Do(fn func() error) error {
	var callErr error
	_, err := b.cb.Execute(func() (interface{}, error) {
		callErr = fn()
		if IsTransport(callErr) {
			return nil, callErr
		}
		return nil, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrConnectionUnavailable, err)
	}
	return callErr
}

// State returns the breaker state name.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
