// Package metrics exposes prometheus collectors for the chain adapters.
// All methods are safe on a nil *Collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wallet"

// Collectors groups the engine's metrics.
type Collectors struct {
	rpcRequests   *prometheus.CounterVec
	rpcDuration   *prometheus.HistogramVec
	retries       *prometheus.CounterVec
	reconnects    *prometheus.CounterVec
	discoveryScan *prometheus.CounterVec
	droppedItems  *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		rpcRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_requests_total",
			Help:      "RPC requests by chain, method and outcome.",
		}, []string{"chain", "method", "outcome"}),
		rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_duration_seconds",
			Help:      "RPC latency by chain and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"chain", "method"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Connection and rate-limit retries by chain and reason.",
		}, []string{"chain", "reason"}),
		reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_reconnects_total",
			Help:      "Streaming reconnect attempts by chain and outcome.",
		}, []string{"chain", "outcome"}),
		discoveryScan: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_indices_scanned_total",
			Help:      "Derivation indices probed during account discovery.",
		}, []string{"chain"}),
		droppedItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_items_dropped_total",
			Help:      "History items given up on after retry.",
		}, []string{"chain"}),
	}

	for _, col := range []prometheus.Collector{
		c.rpcRequests, c.rpcDuration, c.retries, c.reconnects, c.discoveryScan, c.droppedItems,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ObserveRPC records one request.
func (c *Collectors) ObserveRPC(chain, method string, start time.Time, err error) {
	if c == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.rpcRequests.WithLabelValues(chain, method, outcome).Inc()
	c.rpcDuration.WithLabelValues(chain, method).Observe(time.Since(start).Seconds())
}

// Retry records one retry.
func (c *Collectors) Retry(chain, reason string) {
	if c == nil {
		return
	}
	c.retries.WithLabelValues(chain, reason).Inc()
}

// Reconnect records one reconnect attempt.
func (c *Collectors) Reconnect(chain string, err error) {
	if c == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.reconnects.WithLabelValues(chain, outcome).Inc()
}

// DiscoveryProbe records one probed index.
func (c *Collectors) DiscoveryProbe(chain string) {
	if c == nil {
		return
	}
	c.discoveryScan.WithLabelValues(chain).Inc()
}

// DroppedItem records a history item abandoned after retry.
func (c *Collectors) DroppedItem(chain string) {
	if c == nil {
		return
	}
	c.droppedItems.WithLabelValues(chain).Inc()
}
