package evm

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Klingon-tech/klingnet-wallet/internal/chain"
	klog "github.com/Klingon-tech/klingnet-wallet/internal/log"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type handlerFunc func(params []json.RawMessage) (interface{}, error)

// mockNode is a JSON-RPC server with per-method handlers and call counts.
type mockNode struct {
	t        *testing.T
	srv      *httptest.Server
	mu       sync.Mutex
	handlers map[string]handlerFunc
	calls    map[string]int
	failAll  bool
}

func newMockNode(t *testing.T) *mockNode {
	t.Helper()
	m := &mockNode{
		t:        t,
		handlers: make(map[string]handlerFunc),
		calls:    make(map[string]int),
	}
	m.handle("eth_blockNumber", func([]json.RawMessage) (interface{}, error) { return "0x10", nil })
	m.srv = httptest.NewServer(http.HandlerFunc(m.serve))
	t.Cleanup(m.srv.Close)
	return m
}

func (m *mockNode) handle(method string, h handlerFunc) {
	m.mu.Lock()
	m.handlers[method] = h
	m.mu.Unlock()
}

func (m *mockNode) setFailAll(v bool) {
	m.mu.Lock()
	m.failAll = v
	m.mu.Unlock()
}

func (m *mockNode) count(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *mockNode) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

func (m *mockNode) serve(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	m.mu.Lock()
	m.calls[req.Method]++
	h, ok := m.handlers[req.Method]
	failAll := m.failAll
	m.mu.Unlock()

	if failAll {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
		return
	}

	resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
	if !ok {
		resp["error"] = map[string]interface{}{"code": -32601, "message": "method not found: " + req.Method}
	} else if result, err := h(req.Params); err != nil {
		resp["error"] = map[string]interface{}{"code": -32000, "message": err.Error()}
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func testConfig(url string) Config {
	return Config{
		RPCURL:      url + "/v2/",
		APIKey:      "test-key",
		Environment: "development",
		Net: chain.NetConfig{
			MaxRetries:     1,
			RetryDelay:     time.Millisecond,
			RequestTimeout: 2 * time.Second,
			RateLimitDelay: time.Millisecond,
		},
		ReceiptPollInterval: 10 * time.Millisecond,
		PageSize:            50,
	}
}

func init() {
	klog.Disable()
}
