package api

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"

	"github.com/GoCodeAlone/phishvars/store"
)

func uploadRequest(t *testing.T, path, key, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("files[]", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+key)
	return req
}

func TestImportHandler_Fields(t *testing.T) {
	rt, _, key := newTestAPI(t, Config{ImportRate: 100, ImportBurst: 100})

	req := uploadRequest(t, "/api/import/field", key, "values.csv",
		"Email,Value\nAlice@Example.com,Sales\nnot-an-email,IT\n\"Bob <bob@example.com>\",HR\n")
	w := httptest.NewRecorder()
	rt.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	got := decode[importResult[store.FieldValue]](t, w)
	want := []store.FieldValue{
		{Email: "alice@example.com", Value: "Sales"},
		{Email: "bob@example.com", Value: "HR"},
	}
	if len(got.Result) != len(want) {
		t.Fatalf("expected %d records, got %v", len(want), got.Result)
	}
	for i := range want {
		if got.Result[i] != want[i] {
			t.Errorf("record %d: expected %v, got %v", i, want[i], got.Result[i])
		}
	}
}

func TestImportHandler_Variables(t *testing.T) {
	rt, _, key := newTestAPI(t, Config{ImportRate: 100, ImportBurst: 100})

	req := uploadRequest(t, "/api/import/variable", key, "conditions.txt",
		"Condition,Value\nSales,Hello sales\nIT,Hello IT\n")
	w := httptest.NewRecorder()
	rt.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	got := decode[importResult[store.Condition]](t, w)
	if len(got.Result) != 2 || got.Result[1] != (store.Condition{Condition: "IT", Value: "Hello IT"}) {
		t.Errorf("unexpected result %v", got.Result)
	}
}

func TestImportHandler_EmptyResultIsArray(t *testing.T) {
	rt, _, key := newTestAPI(t, Config{ImportRate: 100, ImportBurst: 100})

	req := uploadRequest(t, "/api/import/field", key, "values.csv", "Name,Other\nx,y\n")
	w := httptest.NewRecorder()
	rt.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if body := strings.TrimSpace(w.Body.String()); body != `{"result":[]}` {
		t.Errorf("unexpected body %s", body)
	}
}

func TestImportHandler_NotMultipart(t *testing.T) {
	rt, _, key := newTestAPI(t, Config{ImportRate: 100, ImportBurst: 100})

	w := doJSON(t, rt, http.MethodPost, "/api/import/field", key, map[string]string{"a": "b"})
	expectError(t, w, http.StatusBadRequest, "Expected a multipart file upload")
}

func TestImportHandler_TooLarge(t *testing.T) {
	rt, _, key := newTestAPI(t, Config{ImportRate: 100, ImportBurst: 100, MaxUploadBytes: 64})

	req := uploadRequest(t, "/api/import/field", key, "values.csv",
		"Email,Value\n"+strings.Repeat("someone@example.com,Value\n", 20))
	w := httptest.NewRecorder()
	rt.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge && w.Code != http.StatusBadRequest {
		t.Fatalf("expected 413 or 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestImportHandler_RateLimited(t *testing.T) {
	rt, _, key := newTestAPI(t, Config{ImportRate: 0.001, ImportBurst: 1})

	send := func() *httptest.ResponseRecorder {
		req := uploadRequest(t, "/api/import/variable", key, "c.csv", "Condition,Value\na,b\n")
		w := httptest.NewRecorder()
		rt.ServeHTTP(w, req)
		return w
	}
	if w := send(); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	w := send()
	expectError(t, w, http.StatusTooManyRequests, "rate limit exceeded")
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestImportHandler_RateLimitIgnoresSpoofedForwarding(t *testing.T) {
	send := func(rt *Router, key, forwardedFor string) *httptest.ResponseRecorder {
		req := uploadRequest(t, "/api/import/variable", key, "c.csv", "Condition,Value\na,b\n")
		req.RemoteAddr = "10.0.0.5:4000"
		req.Header.Set("X-Forwarded-For", forwardedFor)
		w := httptest.NewRecorder()
		rt.ServeHTTP(w, req)
		return w
	}

	rt, _, key := newTestAPI(t, Config{ImportRate: 0.001, ImportBurst: 1})
	if w := send(rt, key, "198.51.100.1"); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w := send(rt, key, "198.51.100.2"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for an untrusted peer with a new X-Forwarded-For, got %d", w.Code)
	}

	rt, _, key = newTestAPI(t, Config{
		ImportRate:     0.001,
		ImportBurst:    1,
		TrustedProxies: []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")},
	})
	if w := send(rt, key, "198.51.100.1"); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w := send(rt, key, "198.51.100.2"); w.Code != http.StatusOK {
		t.Fatalf("expected 200 for a second client behind a trusted proxy, got %d: %s", w.Code, w.Body.String())
	}
	if w := send(rt, key, "198.51.100.2"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for the repeated client, got %d", w.Code)
	}
}
