package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// mockAPI sets up an httptest server that simulates the phishvars API.
func mockAPI(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/fields/summary", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"total":1,"fields":[{"id":3,"name":"dept","modified_date":"2026-01-02T15:04:05Z","num_values":2}]}`)
	})

	mux.HandleFunc("GET /api/fields/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "404" {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"success":false,"message":"Field not found"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":%s,"name":"dept","values":[{"email":"a@example.com","value":"Sales"}]}`, r.PathValue("id"))
	})

	mux.HandleFunc("POST /api/variables", func(w http.ResponseWriter, r *http.Request) {
		var v Variable
		json.NewDecoder(r.Body).Decode(&v)
		v.ID = 9
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(v)
	})

	mux.HandleFunc("PUT /api/variables/{id}", func(w http.ResponseWriter, r *http.Request) {
		var v Variable
		json.NewDecoder(r.Body).Decode(&v)
		if fmt.Sprint(v.ID) != r.PathValue("id") {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"success":false,"message":"Error: /:id and variable_id mismatch"}`)
			return
		}
		json.NewEncoder(w).Encode(v)
	})

	mux.HandleFunc("DELETE /api/fields/{id}", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"success":true,"message":"Field deleted successfully!"}`)
	})

	mux.HandleFunc("POST /api/import/field", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("files[]")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		b, _ := io.ReadAll(file)
		json.NewEncoder(w).Encode(map[string]any{
			"result": []FieldValue{{Email: header.Filename, Value: strings.TrimSpace(string(b))}},
		})
	})

	mux.HandleFunc("GET /api/personalize/{name}", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"name":  r.PathValue("name"),
			"email": r.URL.Query().Get("email"),
			"value": r.PathValue("name") + ":" + r.URL.Query().Get("email"),
		})
	})

	mux.HandleFunc("POST /api/personalize/render", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		json.NewEncoder(w).Encode(map[string]string{"text": strings.ToUpper(body["text"])})
	})

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"status":"ok"}`)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestFieldSummaries(t *testing.T) {
	server := mockAPI(t)
	c := New(server.URL)

	sums, err := c.FieldSummaries(context.Background())
	if err != nil {
		t.Fatalf("FieldSummaries: %v", err)
	}
	if sums.Total != 1 || sums.Fields[0].Name != "dept" || sums.Fields[0].NumValues != 2 {
		t.Errorf("unexpected summaries %+v", sums)
	}
	if sums.Fields[0].ModifiedDate.Year() != 2026 {
		t.Errorf("expected modified date parsed, got %v", sums.Fields[0].ModifiedDate)
	}
}

func TestGetField(t *testing.T) {
	server := mockAPI(t)
	c := New(server.URL)

	f, err := c.GetField(context.Background(), 3)
	if err != nil {
		t.Fatalf("GetField: %v", err)
	}
	if f.ID != 3 || len(f.Values) != 1 {
		t.Errorf("unexpected field %+v", f)
	}
}

func TestGetFieldNotFound(t *testing.T) {
	server := mockAPI(t)
	c := New(server.URL)

	_, err := c.GetField(context.Background(), 404)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", apiErr.StatusCode)
	}
	if apiErr.Message != "Field not found" || ErrorMessage(err) != "Field not found" {
		t.Errorf("expected server message, got %q", apiErr.Message)
	}
}

func TestCreateAndUpdateVariable(t *testing.T) {
	server := mockAPI(t)
	c := New(server.URL)
	ctx := context.Background()

	v, err := c.CreateVariable(ctx, &Variable{
		Name:       "greeting",
		Type:       TypeSimple,
		Field:      "dept",
		Conditions: []Condition{{Condition: "Sales", Value: "Hi"}},
	})
	if err != nil {
		t.Fatalf("CreateVariable: %v", err)
	}
	if v.ID != 9 || v.Conditions[0].Value != "Hi" {
		t.Errorf("unexpected variable %+v", v)
	}

	if _, err := c.UpdateVariable(ctx, v); err != nil {
		t.Fatalf("UpdateVariable: %v", err)
	}
}

func TestDeleteField(t *testing.T) {
	server := mockAPI(t)
	c := New(server.URL)
	if err := c.DeleteField(context.Background(), 3); err != nil {
		t.Fatalf("DeleteField: %v", err)
	}
}

func TestImportFieldValues(t *testing.T) {
	server := mockAPI(t)
	c := New(server.URL)

	values, err := c.ImportFieldValues(context.Background(), "values.csv", strings.NewReader("Email,Value\n"))
	if err != nil {
		t.Fatalf("ImportFieldValues: %v", err)
	}
	if len(values) != 1 || values[0].Email != "values.csv" || values[0].Value != "Email,Value" {
		t.Errorf("unexpected values %+v", values)
	}
}

func TestPersonalize(t *testing.T) {
	server := mockAPI(t)
	c := New(server.URL)
	ctx := context.Background()

	value, err := c.Value(ctx, "greeting", "a+b@example.com")
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if value != "greeting:a+b@example.com" {
		t.Errorf("unexpected value %q", value)
	}

	text, err := c.Render(ctx, "a@example.com", "hi")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if text != "HI" {
		t.Errorf("unexpected text %q", text)
	}
}

func TestWithAPIKey(t *testing.T) {
	var receivedAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"status":"ok"}`)
	}))
	defer server.Close()

	c := New(server.URL, WithAPIKey("pv_test"))
	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}
	if receivedAuth != "Bearer pv_test" {
		t.Errorf("expected Authorization 'Bearer pv_test', got %q", receivedAuth)
	}
}

func TestConcurrentRequests(t *testing.T) {
	server := mockAPI(t)
	c := New(server.URL)
	ctx := context.Background()

	var wg sync.WaitGroup
	errCh := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.FieldSummaries(ctx); err != nil {
				errCh <- err
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Errorf("concurrent request failed: %v", err)
	}
}

func TestAPIErrorWithoutMessage(t *testing.T) {
	err := &APIError{StatusCode: http.StatusBadGateway}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("error message should contain status code: %q", err.Error())
	}
}
