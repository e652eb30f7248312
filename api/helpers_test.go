package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/GoCodeAlone/phishvars/personalize"
	"github.com/GoCodeAlone/phishvars/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestAPI returns a router over a fresh in-memory store and a raw API
// key for user 1.
func newTestAPI(t *testing.T, cfg Config) (*Router, *store.MemoryStore, string) {
	t.Helper()
	s := store.NewMemoryStore()
	raw, err := s.CreateAPIKey(context.Background(), &store.APIKey{UserID: 1, Name: "test"})
	if err != nil {
		t.Fatalf("create api key: %v", err)
	}
	resolver, err := personalize.NewResolver(s, personalize.WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = discardLogger()
	}
	rt := NewRouter(s, resolver, cfg)
	t.Cleanup(rt.Stop)
	return rt, s, raw
}

func doJSON(t *testing.T, h http.Handler, method, path, key string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("expected %d, got %d: %s", status, w.Code, w.Body.String())
	}
	resp := decode[Response](t, w)
	if resp.Success {
		t.Fatal("expected success=false")
	}
	if resp.Message != message {
		t.Fatalf("expected message %q, got %q", message, resp.Message)
	}
}

func sampleField(name string) store.Field {
	return store.Field{
		Name:   name,
		Values: []store.FieldValue{{Email: "alice@example.com", Value: "Sales"}},
	}
}
