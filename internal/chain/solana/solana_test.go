package solana

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/Klingon-tech/klingnet-wallet/internal/chain"
	"github.com/Klingon-tech/klingnet-wallet/internal/wallet"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func testSeed(t *testing.T) []byte {
	t.Helper()
	seed, err := wallet.ToSeed(testMnemonic)
	require.NoError(t, err)
	return seed
}

func derived(t *testing.T, a *Adapter, index uint32) chain.DerivedAccount {
	t.Helper()
	acct, err := a.DeriveAccount(testSeed(t), index)
	require.NoError(t, err)
	return acct
}

func TestDeriveAccount_KnownVector(t *testing.T) {
	a := New(testConfig("http://unused"), nil, chain.NewDeriveCache(8))

	acct := derived(t, a, 0)
	assert.Equal(t, "HAgk14JpMQLgt6rVgv7cBQFJWFto5Dqxi472uT3DKpqk", acct.Address)
	assert.Equal(t, acct.Address, acct.PublicKey)
	assert.Equal(t, "m/44'/501'/0'/0'", acct.DerivationPath)
	assert.Equal(t, chain.KindSolana, acct.Chain)

	assert.Equal(t, acct, derived(t, a, 0))
	next := derived(t, a, 1)
	assert.NotEqual(t, acct.Address, next.Address)
	assert.Equal(t, "m/44'/501'/1'/0'", next.DerivationPath)
}

func TestPrivateKeyMatchesAddress(t *testing.T) {
	a := New(testConfig("http://unused"), nil, nil)
	priv, err := a.PrivateKey(testSeed(t), 2)
	require.NoError(t, err)
	require.Len(t, priv, 64)
	assert.Equal(t, derived(t, a, 2).Address, solana.PrivateKey(priv).PublicKey().String())
}

func TestValidAddress(t *testing.T) {
	a := New(testConfig("http://unused"), nil, nil)
	assert.True(t, ValidAddress(derived(t, a, 0).Address))
	assert.False(t, ValidAddress(""))
	assert.False(t, ValidAddress("0x9858EfFD232B4033E47d90003D41EC34EcaEda94"))
	assert.False(t, ValidAddress("not-base58-0OIl"))

	// Program derived addresses are off the curve.
	pda, _, err := solana.FindProgramAddress([][]byte{[]byte("seed")}, solana.SystemProgramID)
	require.NoError(t, err)
	assert.False(t, ValidAddress(pda.String()))
}

func TestBalance(t *testing.T) {
	node := newMockCluster(t)
	node.handle("getBalance", func([]json.RawMessage) reply {
		return reply{result: map[string]interface{}{"context": map[string]int{"slot": 1}, "value": 2_500_000_000}}
	})
	a := New(testConfig(node.srv.URL), nil, nil)

	bal, err := a.Balance(context.Background(), derived(t, a, 0).Address)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("2.5").Equal(bal))
	assert.Equal(t, 1, node.count("getLatestBlockhash"), "health probe")
}

func TestBalance_ConnectionUnavailable(t *testing.T) {
	node := newMockCluster(t)
	node.handle("getLatestBlockhash", func([]json.RawMessage) reply {
		return reply{status: 503, msg: "unavailable"}
	})
	a := New(testConfig(node.srv.URL), nil, nil)

	_, err := a.Balance(context.Background(), derived(t, a, 0).Address)
	require.ErrorIs(t, err, chain.ErrConnectionUnavailable)
	assert.Equal(t, 0, node.count("getBalance"))
	assert.Equal(t, 2, node.count("getLatestBlockhash"))
}

func TestHistory_SequentialWithRateLimitRetry(t *testing.T) {
	node := newMockCluster(t)
	a := New(testConfig(node.srv.URL), nil, nil)
	owner := derived(t, a, 0).Address
	peer := derived(t, a, 1).Address

	node.handle("getSignaturesForAddress", func(params []json.RawMessage) reply {
		var opts map[string]interface{}
		_ = json.Unmarshal(params[1], &opts)
		if opts["before"] == "s3" {
			return reply{result: []interface{}{}}
		}
		return reply{result: []map[string]interface{}{
			{"signature": "s1", "slot": 3, "blockTime": 300},
			{"signature": "s2", "slot": 2, "blockTime": 200},
			{"signature": "s3", "slot": 1, "blockTime": 100},
		}}
	})

	var mu sync.Mutex
	attempts := map[string]int{}
	var order []string
	node.handle("getTransaction", func(params []json.RawMessage) reply {
		var sig string
		_ = json.Unmarshal(params[0], &sig)
		mu.Lock()
		attempts[sig]++
		n := attempts[sig]
		order = append(order, sig)
		mu.Unlock()

		switch sig {
		case "s1":
			return reply{result: transferTx(owner, peer, 1_000_000_000, 300)}
		case "s2":
			if n == 1 {
				return reply{status: 429, msg: "Too Many Requests"}
			}
			return reply{result: transferTx(peer, owner, 500_000_000, 200)}
		default:
			return reply{code: -32000, msg: "node is behind"}
		}
	})

	page, err := a.History(context.Background(), owner, nil)
	require.NoError(t, err)
	require.Len(t, page.Transactions, 2, "s3 is dropped, not the batch")
	assert.Equal(t, "s1", page.Transactions[0].Hash)
	assert.Equal(t, chain.DirectionSent, page.Transactions[0].Direction)
	assert.Equal(t, "s2", page.Transactions[1].Hash)
	assert.Equal(t, chain.DirectionReceived, page.Transactions[1].Direction)
	assert.Equal(t, chain.Cursor{"s3"}, page.Next)

	mu.Lock()
	assert.Equal(t, []string{"s1", "s2", "s2", "s3"}, order)
	assert.Equal(t, 2, attempts["s2"])
	assert.Equal(t, 1, attempts["s3"], "non rate-limit errors are not retried")
	mu.Unlock()

	page, err = a.History(context.Background(), owner, page.Next)
	require.NoError(t, err)
	assert.Empty(t, page.Transactions)
	assert.Nil(t, page.Next)
}

func TestHistory_RateLimitedTwiceDropsItem(t *testing.T) {
	node := newMockCluster(t)
	a := New(testConfig(node.srv.URL), nil, nil)
	owner := derived(t, a, 0).Address

	node.handle("getSignaturesForAddress", func([]json.RawMessage) reply {
		return reply{result: []map[string]interface{}{{"signature": "s1", "blockTime": 1}}}
	})
	node.handle("getTransaction", func([]json.RawMessage) reply {
		return reply{status: 429, msg: "Too Many Requests"}
	})

	page, err := a.History(context.Background(), owner, nil)
	require.NoError(t, err)
	assert.Empty(t, page.Transactions)
	assert.Nil(t, page.Next)
	assert.Equal(t, 2, node.count("getTransaction"))
}

func TestHasHistory(t *testing.T) {
	node := newMockCluster(t)
	a := New(testConfig(node.srv.URL), nil, nil)
	used := derived(t, a, 0).Address

	node.handle("getSignaturesForAddress", func(params []json.RawMessage) reply {
		var addr string
		var opts map[string]interface{}
		_ = json.Unmarshal(params[0], &addr)
		_ = json.Unmarshal(params[1], &opts)
		if opts["limit"] != float64(1) {
			return reply{code: -32602, msg: "probe must use limit 1"}
		}
		if addr == used {
			return reply{result: []map[string]interface{}{{"signature": "s1"}}}
		}
		return reply{result: []interface{}{}}
	})

	ok, err := a.HasHistory(context.Background(), used)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.HasHistory(context.Background(), derived(t, a, 1).Address)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSendTransfer_LocalBalanceCheckFirst(t *testing.T) {
	node := newMockCluster(t)
	a := New(testConfig(node.srv.URL), nil, nil)
	seed := testSeed(t)
	priv, err := a.PrivateKey(seed, 0)
	require.NoError(t, err)

	_, err = a.SendTransfer(context.Background(), chain.TransferRequest{
		PrivateKey: priv,
		From:       derived(t, a, 0).Address,
		To:         derived(t, a, 1).Address,
		Amount:     decimal.RequireFromString("3"),
		Balance:    decimal.RequireFromString("2.999999999"),
	})
	require.ErrorIs(t, err, chain.ErrInsufficientBalance)
	assert.Equal(t, 0, node.total(), "no network call")
}

func TestSendTransfer_OnChainBalanceCheck(t *testing.T) {
	node := newMockCluster(t)
	node.handle("getBalance", func([]json.RawMessage) reply {
		return reply{result: map[string]interface{}{"value": 100}}
	})
	a := New(testConfig(node.srv.URL), nil, nil)
	priv, err := a.PrivateKey(testSeed(t), 0)
	require.NoError(t, err)

	_, err = a.SendTransfer(context.Background(), chain.TransferRequest{
		PrivateKey: priv,
		To:         derived(t, a, 1).Address,
		Amount:     decimal.RequireFromString("1"),
		Balance:    decimal.RequireFromString("5"),
	})
	require.ErrorIs(t, err, chain.ErrInsufficientBalance)
	assert.Equal(t, 0, node.count("sendTransaction"))
}

func TestSendTransfer_SignsAndSubmits(t *testing.T) {
	node := newMockCluster(t)
	node.handle("getBalance", func([]json.RawMessage) reply {
		return reply{result: map[string]interface{}{"value": 10_000_000_000}}
	})
	var mu sync.Mutex
	var submitted *solana.Transaction
	node.handle("sendTransaction", func(params []json.RawMessage) reply {
		var b64 string
		var opts map[string]interface{}
		_ = json.Unmarshal(params[0], &b64)
		_ = json.Unmarshal(params[1], &opts)
		if opts["encoding"] != "base64" {
			return reply{code: -32602, msg: "expected base64"}
		}
		tx, err := solana.TransactionFromBase64(b64)
		if err != nil {
			return reply{code: -32602, msg: err.Error()}
		}
		mu.Lock()
		submitted = tx
		mu.Unlock()
		return reply{result: tx.Signatures[0].String()}
	})

	a := New(testConfig(node.srv.URL), nil, nil)
	priv, err := a.PrivateKey(testSeed(t), 0)
	require.NoError(t, err)
	from := derived(t, a, 0)
	to := derived(t, a, 1)

	sig, err := a.SendTransfer(context.Background(), chain.TransferRequest{
		PrivateKey: priv,
		From:       from.Address,
		To:         to.Address,
		Amount:     decimal.RequireFromString("1.25"),
		Balance:    decimal.RequireFromString("10"),
	})
	require.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, submitted)
	assert.Equal(t, submitted.Signatures[0].String(), sig)
	require.NoError(t, submitted.VerifySignatures())
	assert.Equal(t, node.blockhash, submitted.Message.RecentBlockhash.String())

	keys := submitted.Message.AccountKeys
	require.GreaterOrEqual(t, len(keys), 3)
	assert.Equal(t, from.Address, keys[0].String(), "fee payer first")
	assert.Contains(t, []string{keys[1].String(), keys[2].String()}, to.Address)
}

func TestEstimateFee(t *testing.T) {
	node := newMockCluster(t)
	node.handle("getFeeForMessage", func(params []json.RawMessage) reply {
		return reply{result: map[string]interface{}{"value": 5000}}
	})
	a := New(testConfig(node.srv.URL), nil, nil)

	fee, err := a.EstimateFee(context.Background(), derived(t, a, 0).Address, derived(t, a, 1).Address, decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.000005").Equal(fee), "got %s", fee)
}

func statusReply(v interface{}) reply {
	return reply{result: map[string]interface{}{"context": map[string]int{"slot": 1}, "value": []interface{}{v}}}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		name  string
		final interface{}
		want  bool
	}{
		{"confirmed", map[string]interface{}{"slot": 5, "err": nil, "confirmationStatus": "confirmed"}, true},
		{"finalized", map[string]interface{}{"slot": 5, "err": nil, "confirmationStatus": "finalized"}, true},
		{"failed", map[string]interface{}{"slot": 5, "err": map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}}, "confirmationStatus": "confirmed"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := newMockCluster(t)
			var mu sync.Mutex
			polls := 0
			node.handle("getSignatureStatuses", func([]json.RawMessage) reply {
				mu.Lock()
				defer mu.Unlock()
				polls++
				if polls == 1 {
					return statusReply(nil)
				}
				if polls == 2 {
					return statusReply(map[string]interface{}{"slot": 4, "err": nil, "confirmationStatus": "processed"})
				}
				return statusReply(tt.final)
			})
			a := New(testConfig(node.srv.URL), nil, nil)

			ok, err := a.Confirm(context.Background(), "sig")
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.Equal(t, 3, node.count("getSignatureStatuses"))
		})
	}
}

func TestConfirm_BlockhashExpired(t *testing.T) {
	node := newMockCluster(t)
	node.handle("getSignatureStatuses", func([]json.RawMessage) reply { return statusReply(nil) })
	node.handle("getBlockHeight", func([]json.RawMessage) reply { return reply{result: 200} })
	a := New(testConfig(node.srv.URL), nil, nil)
	a.lastValid["sig"] = 150

	ok, err := a.Confirm(context.Background(), "sig")
	assert.False(t, ok)
	require.ErrorIs(t, err, chain.ErrTransactionExpired)
	assert.ErrorIs(t, err, chain.ErrConfirmationTimeout)
	assert.Equal(t, 1, node.count("getSignatureStatuses"))
	assert.NotContains(t, a.lastValid, "sig")
}

func TestConfirm_UntrackedNeverExpires(t *testing.T) {
	node := newMockCluster(t)
	node.handle("getSignatureStatuses", func([]json.RawMessage) reply { return statusReply(nil) })
	node.handle("getBlockHeight", func([]json.RawMessage) reply { return reply{result: 200} })
	a := New(testConfig(node.srv.URL), nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	_, err := a.Confirm(ctx, "sig")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, node.count("getBlockHeight"))
}

func TestConfirmWithin_Timeout(t *testing.T) {
	node := newMockCluster(t)
	node.handle("getSignatureStatuses", func([]json.RawMessage) reply { return statusReply(nil) })
	a := New(testConfig(node.srv.URL), nil, nil)

	_, err := chain.ConfirmWithin(context.Background(), a, "sig", 40*time.Millisecond)
	require.ErrorIs(t, err, chain.ErrConfirmationTimeout)
}
