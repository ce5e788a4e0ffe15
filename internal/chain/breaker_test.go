package chain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_TripsOnTransportErrors(t *testing.T) {
	b := NewBreaker("test", time.Minute, zerolog.Nop())
	transport := fmt.Errorf("dial: %w", ErrRequestTimeout)

	calls := 0
	for i := 0; i < 11; i++ {
		err := b.Do(func() error { calls++; return transport })
		require.ErrorIs(t, err, ErrRequestTimeout)
	}
	assert.Equal(t, "open", b.State())

	err := b.Do(func() error { calls++; return nil })
	require.ErrorIs(t, err, ErrConnectionUnavailable)
	assert.Equal(t, 11, calls, "open breaker must not call through")
}

func TestBreaker_IgnoresValidationErrors(t *testing.T) {
	b := NewBreaker("test", time.Minute, zerolog.Nop())
	for i := 0; i < 20; i++ {
		err := b.Do(func() error { return ErrInvalidAddress })
		require.ErrorIs(t, err, ErrInvalidAddress)
	}
	assert.Equal(t, "closed", b.State())
}

func TestBreaker_StaysClosedBelowThreshold(t *testing.T) {
	b := NewBreaker("test", time.Minute, zerolog.Nop())
	boom := fmt.Errorf("x: %w", ErrConnectionUnavailable)
	for i := 0; i < 20; i++ {
		var err error
		if i%2 == 0 {
			err = b.Do(func() error { return boom })
		} else {
			err = b.Do(func() error { return nil })
		}
		_ = err
	}
	assert.Equal(t, "closed", b.State())
	assert.False(t, errors.Is(b.Do(func() error { return nil }), ErrConnectionUnavailable))
}
