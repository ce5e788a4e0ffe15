package solana

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Klingon-tech/klingnet-wallet/internal/chain"
	klog "github.com/Klingon-tech/klingnet-wallet/internal/log"
	"github.com/gagliardetto/solana-go"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// reply is a handler result. A non-zero status is sent as a bare HTTP error.
type reply struct {
	result interface{}
	code   int
	msg    string
	status int
}

type handlerFunc func(params []json.RawMessage) reply

type mockCluster struct {
	srv       *httptest.Server
	mu        sync.Mutex
	handlers  map[string]handlerFunc
	calls     map[string]int
	blockhash string
}

func newMockCluster(t *testing.T) *mockCluster {
	t.Helper()
	m := &mockCluster{
		handlers:  make(map[string]handlerFunc),
		calls:     make(map[string]int),
		blockhash: solana.Hash{7, 7, 7}.String(),
	}
	m.handle("getLatestBlockhash", func([]json.RawMessage) reply {
		return reply{result: map[string]interface{}{
			"context": map[string]interface{}{"slot": 100},
			"value":   map[string]interface{}{"blockhash": m.blockhash, "lastValidBlockHeight": 150},
		}}
	})
	m.srv = httptest.NewServer(http.HandlerFunc(m.serve))
	t.Cleanup(m.srv.Close)
	return m
}

func (m *mockCluster) handle(method string, h handlerFunc) {
	m.mu.Lock()
	m.handlers[method] = h
	m.mu.Unlock()
}

func (m *mockCluster) count(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *mockCluster) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

func (m *mockCluster) serve(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	m.mu.Lock()
	m.calls[req.Method]++
	h, ok := m.handlers[req.Method]
	m.mu.Unlock()

	resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
	if !ok {
		resp["error"] = map[string]interface{}{"code": -32601, "message": "Method not found"}
	} else {
		rep := h(req.Params)
		if rep.status != 0 {
			http.Error(w, rep.msg, rep.status)
			return
		}
		if rep.code != 0 {
			resp["error"] = map[string]interface{}{"code": rep.code, "message": rep.msg}
		} else {
			resp["result"] = rep.result
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func testConfig(url string) Config {
	return Config{
		RPCURL: url,
		Net: chain.NetConfig{
			MaxRetries:     1,
			RetryDelay:     time.Millisecond,
			RequestTimeout: 2 * time.Second,
			RateLimitDelay: 5 * time.Millisecond,
		},
		SignatureLimit:      3,
		FetchRate:           1000,
		ConfirmPollInterval: 10 * time.Millisecond,
	}
}

func init() {
	klog.Disable()
}
