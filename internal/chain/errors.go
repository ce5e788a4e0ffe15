package chain

import (
	"context"
	"errors"
	"net/http"

	"github.com/Klingon-tech/klingnet-wallet/internal/rpcclient"
)

// Validation errors. Never retried.
var (
	ErrInvalidAddress      = errors.New("invalid address")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Transport errors.
var (
	ErrConnectionUnavailable = errors.New("connection unavailable")
	ErrRequestTimeout        = errors.New("request timed out")
	ErrRateLimited           = errors.New("rate limited")
	ErrConfirmationTimeout   = errors.New("confirmation timed out")
	ErrReconnectExhausted    = errors.New("reconnect attempts exhausted")
)

// ErrTransactionExpired means a transaction can no longer land, e.g. its
// recent blockhash aged out. Adapters wrap it with ErrConfirmationTimeout.
var ErrTransactionExpired = errors.New("transaction expired")

// ErrDiscoveryLimit is returned when discovery probes more indices than allowed.
var ErrDiscoveryLimit = errors.New("discovery scan limit reached")

// IsValidation reports whether err is an input validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidAddress) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInsufficientBalance)
}

// IsTransport reports whether err came from the network layer.
func IsTransport(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConnectionUnavailable) ||
		errors.Is(err, ErrRequestTimeout) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrConfirmationTimeout) ||
		errors.Is(err, ErrReconnectExhausted) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var httpErr *rpcclient.HTTPError
	if errors.As(err, &httpErr) {
		return true
	}
	var rpcErr *rpcclient.RPCError
	return errors.As(err, &rpcErr)
}

// IsRateLimited reports whether err is a 429-class response.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var httpErr *rpcclient.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	var rpcErr *rpcclient.RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == http.StatusTooManyRequests
}
