package client_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/GoCodeAlone/phishvars/api"
	"github.com/GoCodeAlone/phishvars/client"
	"github.com/GoCodeAlone/phishvars/personalize"
	"github.com/GoCodeAlone/phishvars/store"
)

func newServer(t *testing.T) (*client.Client, *client.Client) {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryStore()
	key, err := s.CreateAPIKey(ctx, &store.APIKey{UserID: 1, Name: "test"})
	if err != nil {
		t.Fatalf("create key: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolver, err := personalize.NewResolver(s, personalize.WithLogger(logger))
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	router := api.NewRouter(s, resolver, api.Config{Logger: logger, ImportRate: 100, ImportBurst: 100})
	t.Cleanup(router.Stop)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return client.New(server.URL, client.WithAPIKey(key)), client.New(server.URL)
}

func TestClientAgainstServer(t *testing.T) {
	c, anonymous := newServer(t)
	ctx := context.Background()

	var apiErr *client.APIError
	if _, err := anonymous.FieldSummaries(ctx); !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}

	values, err := c.ImportFieldValues(ctx, "dept.csv", strings.NewReader("email,value\nalice@example.com,Sales\n"))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	f, err := c.CreateField(ctx, &client.Field{Name: "Dept", Values: values})
	if err != nil {
		t.Fatalf("create field: %v", err)
	}
	if f.Name != "dept" {
		t.Errorf("expected normalized name, got %q", f.Name)
	}

	v, err := c.CreateVariable(ctx, &client.Variable{
		Name:       "greeting",
		Type:       client.TypeSimple,
		Field:      "dept",
		Conditions: []client.Condition{{Condition: "Sales", Value: "Hello sales"}},
	})
	if err != nil {
		t.Fatalf("create variable: %v", err)
	}

	text, err := c.Render(ctx, "alice@example.com", "{%greeting%}!")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if text != "Hello sales!" {
		t.Errorf("unexpected render %q", text)
	}

	err = c.DeleteField(ctx, f.ID)
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 while referenced, got %v", err)
	}
	if err := c.DeleteVariable(ctx, v.ID); err != nil {
		t.Fatalf("delete variable: %v", err)
	}
	if err := c.DeleteField(ctx, f.ID); err != nil {
		t.Fatalf("delete field: %v", err)
	}
	sums, err := c.FieldSummaries(ctx)
	if err != nil {
		t.Fatalf("summaries: %v", err)
	}
	if sums.Total != 0 {
		t.Errorf("expected no fields, got %d", sums.Total)
	}
}
