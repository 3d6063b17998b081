package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rl1809/vending-ledger/internal/adapter/storage"
	"github.com/rl1809/vending-ledger/internal/core/domain"
	"github.com/rl1809/vending-ledger/internal/core/service"
)

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	d := service.NewDispatcher(service.NewLedger(storage.NewMemoryStore()), 100)
	t.Cleanup(d.Close)
	go func() {
		for range d.Records() {
		}
	}()

	mux := http.NewServeMux()
	NewHTTPHandler(d, nil).Register(mux)
	return mux
}

func do(t *testing.T, mux *http.ServeMux, method, path, body string) (int, LedgerHTTPResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var resp LedgerHTTPResponse
	if rec.Code != http.StatusMethodNotAllowed {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec.Code, resp
}

func TestHTTP_Flow(t *testing.T) {
	mux := newTestMux(t)

	code, resp := do(t, mux, http.MethodPost, "/api/instantiate",
		`{"sender":"owner","owner":"owner","initial_amount":[{"item":"chocolate","amount":1}]}`)
	if code != http.StatusOK || !resp.Success {
		t.Fatalf("instantiate: %d %+v", code, resp)
	}

	code, resp = do(t, mux, http.MethodPost, "/api/items/withdraw", `{"sender":"user","item":"chocolate"}`)
	if code != http.StatusOK {
		t.Fatalf("withdraw: %d %+v", code, resp)
	}
	if len(resp.Events) != 1 || resp.Events[0].Total != 0 {
		t.Errorf("unexpected events %+v", resp.Events)
	}

	code, resp = do(t, mux, http.MethodPost, "/api/items/withdraw", `{"sender":"user","item":"chocolate"}`)
	if code != http.StatusGone || resp.Code != codeOutOfStock {
		t.Errorf("expected 410 out_of_stock, got %d %+v", code, resp)
	}

	code, resp = do(t, mux, http.MethodPost, "/api/items/restock", `{"sender":"user","item":"chocolate","amount":1}`)
	if code != http.StatusForbidden || resp.Code != codeUnauthorized {
		t.Errorf("expected 403 unauthorized, got %d %+v", code, resp)
	}

	code, resp = do(t, mux, http.MethodPost, "/api/items/restock",
		`{"sender":"owner","item":"chocolate","amount":18446744073709551615}`)
	if code != http.StatusOK {
		t.Fatalf("restock to max: %d %+v", code, resp)
	}

	code, resp = do(t, mux, http.MethodPost, "/api/execute",
		`{"sender":"owner","msg":{"refill":{"item":"chocolate","amount":1}}}`)
	if code != http.StatusUnprocessableEntity || resp.Code != codeOverflow {
		t.Errorf("expected 422 overflow, got %d %+v", code, resp)
	}

	code, resp = do(t, mux, http.MethodGet, "/api/items", "")
	if code != http.StatusOK {
		t.Fatalf("items: %d %+v", code, resp)
	}
	want := []domain.ItemAmount{
		{Item: domain.Chocolate, Amount: 18446744073709551615},
		{Item: domain.Water, Amount: 0},
		{Item: domain.Chips, Amount: 0},
	}
	if len(resp.Items) != len(want) {
		t.Fatalf("expected %d items, got %+v", len(want), resp.Items)
	}
	for i := range want {
		if resp.Items[i] != want[i] {
			t.Errorf("item %d: expected %+v, got %+v", i, want[i], resp.Items[i])
		}
	}
}

func TestHTTP_BadRequests(t *testing.T) {
	mux := newTestMux(t)

	code, resp := do(t, mux, http.MethodPost, "/api/items/withdraw", `{"sender":"user","item":"soda"}`)
	if code != http.StatusBadRequest || resp.Code != codeInvalidRequest {
		t.Errorf("expected 400 for unknown item, got %d %+v", code, resp)
	}

	code, resp = do(t, mux, http.MethodPost, "/api/instantiate", `{"sender":"x","owner":"BAD OWNER"}`)
	if code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid owner, got %d %+v", code, resp)
	}

	code, resp = do(t, mux, http.MethodPost, "/api/execute", `{"sender":"user","msg":{}}`)
	if code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty message, got %d %+v", code, resp)
	}

	code, resp = do(t, mux, http.MethodPost, "/api/items/restock", `{"sender":"owner","item":"water","amount":1}`)
	if code != http.StatusConflict || resp.Code != codeNotInitialized {
		t.Errorf("expected 409 not_initialized, got %d %+v", code, resp)
	}

	code, _ = do(t, mux, http.MethodGet, "/api/items/withdraw", "")
	if code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", code)
	}
}

func TestHTTP_Schema(t *testing.T) {
	mux := newTestMux(t)

	req := httptest.NewRequest(http.MethodGet, "/api/schema", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var schema SchemaHTTPResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &schema); err != nil {
		t.Fatalf("decode schema: %v", err)
	}
	want := []domain.Item{domain.Chocolate, domain.Water, domain.Chips}
	if len(schema.Items) != len(want) {
		t.Fatalf("expected %d items, got %v", len(want), schema.Items)
	}
	for i, it := range want {
		if schema.Items[i] != it {
			t.Errorf("items[%d] = %s, want %s", i, schema.Items[i], it)
		}
	}
	if len(schema.Execute) != 2 || schema.Execute[0] != "get_item" || schema.Execute[1] != "refill" {
		t.Errorf("unexpected execute variants %v", schema.Execute)
	}
}
