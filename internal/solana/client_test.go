package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func rpcServer(t *testing.T, handler func(method string, params []interface{}) (interface{}, *RPCError)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string        `json:"method"`
			Params []interface{} `json:"params"`
			ID     int           `json:"id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode rpc request: %v", err)
			return
		}
		result, rpcErr := handler(req.Method, req.Params)
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestGetTransaction_DecodesConfirmedTransaction(t *testing.T) {
	server := rpcServer(t, func(method string, params []interface{}) (interface{}, *RPCError) {
		if method != "getTransaction" {
			t.Errorf("unexpected method %s", method)
		}
		if len(params) != 2 {
			t.Errorf("expected 2 params, got %d", len(params))
		}
		opts, ok := params[1].(map[string]interface{})
		if !ok || opts["commitment"] != "confirmed" || opts["encoding"] != "json" {
			t.Errorf("unexpected call options: %v", params[1])
		}
		return map[string]interface{}{
			"slot": 1234,
			"meta": map[string]interface{}{
				"err":          nil,
				"fee":          5000,
				"preBalances":  []int64{1_000_000_000, 0},
				"postBalances": []int64{899_995_000, 100_000_000},
			},
			"transaction": map[string]interface{}{
				"signatures": []string{"sig"},
				"message": map[string]interface{}{
					"accountKeys": []string{"A", "B", SystemProgramID},
					"instructions": []map[string]interface{}{
						{"programIdIndex": 2, "accounts": []int{0, 1}, "data": "x"},
					},
				},
			},
		}, nil
	})
	defer server.Close()

	client, err := NewClient(Config{RPCURL: server.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	tx, err := client.GetTransaction(context.Background(), "sig")
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if tx == nil {
		t.Fatal("expected a transaction")
	}
	if tx.Meta.Failed() {
		t.Fatal("null err flagged as failure")
	}
	if got := tx.Meta.PostBalances[1] - tx.Meta.PreBalances[1]; got != 100_000_000 {
		t.Fatalf("unexpected balance delta: %d", got)
	}
	if tx.Transaction.Message.Instructions[0].ProgramIDIndex != 2 {
		t.Fatalf("instruction not decoded: %+v", tx.Transaction.Message.Instructions[0])
	}
}

func TestGetTransaction_NullResultMeansAbsent(t *testing.T) {
	server := rpcServer(t, func(string, []interface{}) (interface{}, *RPCError) {
		return nil, nil
	})
	defer server.Close()

	client, _ := NewClient(Config{RPCURL: server.URL})
	tx, err := client.GetTransaction(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if tx != nil {
		t.Fatalf("expected nil for absent transaction, got %+v", tx)
	}
}

func TestGetTransaction_RPCErrorSurfaces(t *testing.T) {
	server := rpcServer(t, func(string, []interface{}) (interface{}, *RPCError) {
		return nil, &RPCError{Code: -32005, Message: "node is behind"}
	})
	defer server.Close()

	client, _ := NewClient(Config{RPCURL: server.URL})
	if _, err := client.GetTransaction(context.Background(), "sig"); err == nil {
		t.Fatal("rpc error swallowed")
	}
}

func TestGetTransaction_TransportFailure(t *testing.T) {
	server := rpcServer(t, func(string, []interface{}) (interface{}, *RPCError) { return nil, nil })
	server.Close()

	client, _ := NewClient(Config{RPCURL: server.URL})
	if _, err := client.GetTransaction(context.Background(), "sig"); err == nil {
		t.Fatal("transport failure swallowed")
	}
}

func TestNewClient_RequiresURL(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("empty RPC URL accepted")
	}
}
