package evm

import (
	"context"
	"fmt"
	"sync"

	"github.com/Klingon-tech/klingnet-wallet/internal/chain"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// headStream is a new-heads subscription over its own websocket client.
type headStream struct {
	client *ethclient.Client
	sub    ethereum.Subscription
	heads  chan *types.Header
	done   chan struct{}
	once   sync.Once
}

func (s *headStream) Err() <-chan error { return s.sub.Err() }

func (s *headStream) Close() {
	s.once.Do(func() {
		s.sub.Unsubscribe()
		s.client.Close()
		close(s.done)
	})
}

func (a *Adapter) dialHeads(ctx context.Context) (chain.Stream, error) {
	rc, err := rpc.DialWebsocket(ctx, a.cfg.wsEndpoint(), "")
	if err != nil {
		return nil, fmt.Errorf("dial websocket: %w", err)
	}
	client := ethclient.NewClient(rc)

	heads := make(chan *types.Header, 16)
	sub, err := client.SubscribeNewHead(ctx, heads)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("subscribe newHeads: %w", err)
	}
	return &headStream{client: client, sub: sub, heads: heads, done: make(chan struct{})}, nil
}

func (a *Adapter) forwardHeads(s chain.Stream) {
	hs, ok := s.(*headStream)
	if !ok {
		return
	}
	go func() {
		for {
			select {
			case <-hs.done:
				return
			case h := <-hs.heads:
				if h == nil {
					continue
				}
				a.logger.Debug().Uint64("block", h.Number.Uint64()).Msg("New head")
				select {
				case a.notify <- struct{}{}:
				default:
				}
			}
		}
	}()
}

// StartStream opens the new-heads subscription. Later failures are retried
// with exponential backoff up to the configured attempt limit.
func (a *Adapter) StartStream() error {
	if a.cfg.WSURL == "" {
		return fmt.Errorf("evm stream: no websocket url configured")
	}
	a.mu.Lock()
	if a.stream != nil {
		a.mu.Unlock()
		return nil
	}
	cfg := a.cfg.Reconnect
	cfg.OnConnect = a.forwardHeads
	a.stream = chain.NewReconnector(string(chain.KindEVM), a.dialHeads, cfg, a.logger, a.metrics)
	stream := a.stream
	a.mu.Unlock()
	return stream.Start()
}

// Reconnect retries a stream that gave up.
func (a *Adapter) Reconnect() error {
	a.mu.Lock()
	stream := a.stream
	a.mu.Unlock()
	if stream == nil {
		return a.StartStream()
	}
	return stream.Reconnect()
}

// StreamExhausted reports whether the stream stopped reconnecting.
func (a *Adapter) StreamExhausted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stream != nil && a.stream.Exhausted()
}

// Notify fires after each new block head. Signals coalesce.
func (a *Adapter) Notify() <-chan struct{} {
	return a.notify
}
