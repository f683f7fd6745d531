package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const systemProgram = "11111111111111111111111111111111"

// rpcServer serves JSON-RPC requests with the result returned by handle.
func rpcServer(t *testing.T, handle func(req rpcRequest) interface{}) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  handle(req),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server
}

func wireAccount(data string) map[string]interface{} {
	return map[string]interface{}{
		"lamports":   uint64(2039280),
		"owner":      systemProgram,
		"data":       []string{data, "base64"},
		"executable": false,
		"rentEpoch":  uint64(361),
	}
}

func TestHTTPClient_GetAccountInfo(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) interface{} {
		if req.Method != "getAccountInfo" {
			t.Errorf("expected method getAccountInfo, got %s", req.Method)
		}
		cfg, _ := req.Params[1].(map[string]interface{})
		if cfg["encoding"] != "base64" {
			t.Errorf("expected base64 encoding, got %v", cfg["encoding"])
		}
		if cfg["commitment"] != "processed" {
			t.Errorf("expected processed commitment, got %v", cfg["commitment"])
		}
		return map[string]interface{}{
			"context": map[string]interface{}{"slot": uint64(250000000)},
			"value":   wireAccount("SGVsbG8gV29ybGQ="),
		}
	})

	client := NewHTTPClient(server.URL, WithCommitment("processed"))

	info, err := client.GetAccountInfo(context.Background(), "testpubkey")
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}
	if info == nil {
		t.Fatal("expected account info, got nil")
	}

	if info.Lamports != 2039280 {
		t.Errorf("expected lamports 2039280, got %d", info.Lamports)
	}
	if info.Owner != systemProgram {
		t.Errorf("unexpected owner: %s", info.Owner)
	}
	if !bytes.Equal(info.Data, []byte("Hello World")) {
		t.Errorf("unexpected data: %q", info.Data)
	}
	if info.Slot != 250000000 {
		t.Errorf("expected slot 250000000, got %d", info.Slot)
	}
}

func TestHTTPClient_GetAccountInfo_NotFound(t *testing.T) {
	server := rpcServer(t, func(rpcRequest) interface{} {
		return map[string]interface{}{"value": nil}
	})

	client := NewHTTPClient(server.URL)

	info, err := client.GetAccountInfo(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}
	if info != nil {
		t.Errorf("expected nil for not found, got %+v", info)
	}
}

func TestHTTPClient_GetAccountInfo_BadEncoding(t *testing.T) {
	server := rpcServer(t, func(rpcRequest) interface{} {
		acct := wireAccount("abc")
		acct["data"] = []string{"abc", "jsonParsed"}
		return map[string]interface{}{"value": acct}
	})

	client := NewHTTPClient(server.URL)

	if _, err := client.GetAccountInfo(context.Background(), "pubkey"); err == nil {
		t.Fatal("expected error for non-base64 encoding")
	}
}

func TestHTTPClient_GetMultipleAccounts(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) interface{} {
		if req.Method != "getMultipleAccounts" {
			t.Errorf("expected method getMultipleAccounts, got %s", req.Method)
		}
		keys, _ := req.Params[0].([]interface{})
		if len(keys) != 3 {
			t.Errorf("expected 3 keys, got %d", len(keys))
		}
		return map[string]interface{}{
			"context": map[string]interface{}{"slot": uint64(77)},
			"value":   []interface{}{wireAccount("AQID"), nil, wireAccount("")},
		}
	})

	client := NewHTTPClient(server.URL)

	infos, err := client.GetMultipleAccounts(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("GetMultipleAccounts: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("expected 3 results, got %d", len(infos))
	}
	if !bytes.Equal(infos[0].Data, []byte{1, 2, 3}) {
		t.Errorf("unexpected data: %v", infos[0].Data)
	}
	if infos[0].Slot != 77 {
		t.Errorf("expected slot 77, got %d", infos[0].Slot)
	}
	if infos[1] != nil {
		t.Errorf("expected nil for missing account, got %+v", infos[1])
	}
	if infos[2] == nil || len(infos[2].Data) != 0 {
		t.Errorf("expected empty data account, got %+v", infos[2])
	}
}

func TestHTTPClient_GetMultipleAccounts_Limits(t *testing.T) {
	var calls atomic.Int32
	server := rpcServer(t, func(rpcRequest) interface{} {
		calls.Add(1)
		return map[string]interface{}{"value": []interface{}{wireAccount("")}}
	})

	client := NewHTTPClient(server.URL)
	ctx := context.Background()

	infos, err := client.GetMultipleAccounts(ctx, nil)
	if err != nil || infos != nil {
		t.Errorf("empty keys: got %v, %v", infos, err)
	}

	if _, err := client.GetMultipleAccounts(ctx, make([]string, MaxMultipleAccounts+1)); err == nil {
		t.Error("expected error above key limit")
	}

	// one result for two keys
	if _, err := client.GetMultipleAccounts(ctx, []string{"a", "b"}); err == nil {
		t.Error("expected error on result length mismatch")
	}

	if calls.Load() != 1 {
		t.Errorf("expected 1 RPC call, got %d", calls.Load())
	}
}

func TestHTTPClient_GetProgramAccounts(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) interface{} {
		if req.Method != "getProgramAccounts" {
			t.Errorf("expected method getProgramAccounts, got %s", req.Method)
		}
		cfg, _ := req.Params[1].(map[string]interface{})
		filters, _ := cfg["filters"].([]interface{})
		if len(filters) != 1 {
			t.Errorf("expected 1 filter, got %v", cfg["filters"])
			return nil
		}
		size := filters[0].(map[string]interface{})["dataSize"]
		if size != float64(752) {
			t.Errorf("expected dataSize 752, got %v", size)
		}

		value := make([]interface{}, 0, 3)
		for _, key := range []string{"p1", "p2", "p3"} {
			value = append(value, map[string]interface{}{
				"pubkey":  key,
				"account": wireAccount("AAAA"),
			})
		}
		return map[string]interface{}{
			"context": map[string]interface{}{"slot": uint64(5)},
			"value":   value,
		}
	})

	client := NewHTTPClient(server.URL)

	accounts, err := client.GetProgramAccounts(context.Background(), "program",
		&ProgramAccountsOpts{DataSize: 752, Limit: 2})
	if err != nil {
		t.Fatalf("GetProgramAccounts: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts after limit, got %d", len(accounts))
	}
	if accounts[0].Pubkey != "p1" || accounts[1].Pubkey != "p2" {
		t.Errorf("unexpected order: %s, %s", accounts[0].Pubkey, accounts[1].Pubkey)
	}
	if accounts[0].Account.Slot != 5 {
		t.Errorf("expected slot 5, got %d", accounts[0].Account.Slot)
	}
}

func TestHTTPClient_Retry(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := attempts.Add(1)
		if count < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  int64(999),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(3),
		WithRetryDelay(10*time.Millisecond),
	)

	slot, err := client.GetSlot(context.Background())
	if err != nil {
		t.Fatalf("GetSlot: %v", err)
	}
	if slot != 999 {
		t.Errorf("expected slot 999, got %d", slot)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestHTTPClient_RetryExhausted(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(2),
		WithRetryDelay(time.Millisecond),
	)

	if _, err := client.GetSlot(context.Background()); err == nil {
		t.Fatal("expected error after retries")
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestHTTPClient_RPCError(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)

		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error": map[string]interface{}{
				"code":    -32600,
				"message": "Invalid Request",
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)

	_, err := client.GetSlot(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var rpcErr *rpcError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected rpcError, got %T", err)
	}
	if rpcErr.Code != -32600 {
		t.Errorf("expected code -32600, got %d", rpcErr.Code)
	}
	if attempts.Load() != 1 {
		t.Errorf("RPC errors must not be retried, got %d attempts", attempts.Load())
	}
}

func TestHTTPClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	_, err := client.GetSlot(ctx)
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
