package chain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Klingon-tech/klingnet-wallet/internal/rpcclient"
	"github.com/stretchr/testify/assert"
)

func TestErrorTaxonomy(t *testing.T) {
	assert.True(t, IsValidation(fmt.Errorf("send: %w", ErrInsufficientBalance)))
	assert.False(t, IsTransport(ErrInsufficientBalance))

	assert.True(t, IsTransport(fmt.Errorf("balance: %w", ErrConnectionUnavailable)))
	assert.True(t, IsTransport(&rpcclient.RPCError{Code: -32000, Message: "node behind"}))
	assert.True(t, IsTransport(&rpcclient.HTTPError{StatusCode: 502}))
	assert.False(t, IsTransport(nil))
	assert.False(t, IsTransport(errors.New("plain")))
}

func TestIsRateLimited(t *testing.T) {
	assert.True(t, IsRateLimited(&rpcclient.HTTPError{Method: "getTransaction", StatusCode: 429}))
	assert.True(t, IsRateLimited(fmt.Errorf("wrapped: %w", &rpcclient.RPCError{Code: 429, Message: "Too many requests"})))
	assert.True(t, IsRateLimited(ErrRateLimited))
	assert.False(t, IsRateLimited(&rpcclient.HTTPError{StatusCode: 500}))
	assert.False(t, IsRateLimited(nil))
	// Only typed responses count; "429" inside a signature or slot is not a status.
	assert.False(t, IsRateLimited(errors.New("getTransaction 5x429Kq: not found")))
	assert.False(t, IsRateLimited(&rpcclient.RPCError{Code: -32004, Message: "block 4290001 not available"}))
	assert.False(t, IsRateLimited(&rpcclient.HTTPError{StatusCode: 503, Body: "retry slot 429"}))
}
