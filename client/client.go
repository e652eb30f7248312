// Package client is a typed client for the phishvars REST API.
//
// Example usage:
//
//	c := client.New("http://localhost:3333", client.WithAPIKey(key))
//
//	summary, err := c.FieldSummaries(ctx)
//
//	values, err := c.ImportFieldValues(ctx, "values.csv", file)
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client communicates with the phishvars REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures the Client.
type Option func(*Client)

// WithAPIKey sets the API key sent as a bearer token.
func WithAPIKey(apiKey string) Option {
	return func(c *Client) {
		c.apiKey = apiKey
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the default request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// New creates a new API client.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ---- Internal helpers ----

func (c *Client) buildRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, target any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var body Response
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
			apiErr.Message = body.Message
		}
		return apiErr
	}

	if resp.StatusCode == http.StatusNoContent || target == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, target any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := c.buildRequest(ctx, method, path, reader)
	if err != nil {
		return err
	}
	return c.do(req, target)
}

func idPath(prefix string, id int64) string {
	return prefix + "/" + strconv.FormatInt(id, 10)
}

// ErrorMessage returns the server's message carried by err, or err's text.
func ErrorMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

// ---- Fields ----

// ListFields returns every field with its values.
func (c *Client) ListFields(ctx context.Context) ([]Field, error) {
	var result []Field
	err := c.doJSON(ctx, http.MethodGet, "/api/fields", nil, &result)
	return result, err
}

// FieldSummaries returns the field overview.
func (c *Client) FieldSummaries(ctx context.Context) (*FieldSummaries, error) {
	var result FieldSummaries
	if err := c.doJSON(ctx, http.MethodGet, "/api/fields/summary", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetField returns one field.
func (c *Client) GetField(ctx context.Context, id int64) (*Field, error) {
	var result Field
	if err := c.doJSON(ctx, http.MethodGet, idPath("/api/fields", id), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// FieldSummary returns one field's summary.
func (c *Client) FieldSummary(ctx context.Context, id int64) (*FieldSummary, error) {
	var result FieldSummary
	if err := c.doJSON(ctx, http.MethodGet, idPath("/api/fields", id)+"/summary", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateField creates f and returns the stored field.
func (c *Client) CreateField(ctx context.Context, f *Field) (*Field, error) {
	var result Field
	if err := c.doJSON(ctx, http.MethodPost, "/api/fields", f, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateField replaces the field with id f.ID.
func (c *Client) UpdateField(ctx context.Context, f *Field) (*Field, error) {
	var result Field
	if err := c.doJSON(ctx, http.MethodPut, idPath("/api/fields", f.ID), f, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteField deletes one field.
func (c *Client) DeleteField(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, idPath("/api/fields", id), nil, nil)
}

// ---- Variables ----

// ListVariables returns every variable with its conditions.
func (c *Client) ListVariables(ctx context.Context) ([]Variable, error) {
	var result []Variable
	err := c.doJSON(ctx, http.MethodGet, "/api/variables", nil, &result)
	return result, err
}

// VariableSummaries returns the variable overview.
func (c *Client) VariableSummaries(ctx context.Context) (*VariableSummaries, error) {
	var result VariableSummaries
	if err := c.doJSON(ctx, http.MethodGet, "/api/variables/summary", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetVariable returns one variable.
func (c *Client) GetVariable(ctx context.Context, id int64) (*Variable, error) {
	var result Variable
	if err := c.doJSON(ctx, http.MethodGet, idPath("/api/variables", id), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// VariableSummary returns one variable's summary.
func (c *Client) VariableSummary(ctx context.Context, id int64) (*VariableSummary, error) {
	var result VariableSummary
	if err := c.doJSON(ctx, http.MethodGet, idPath("/api/variables", id)+"/summary", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateVariable creates v and returns the stored variable.
func (c *Client) CreateVariable(ctx context.Context, v *Variable) (*Variable, error) {
	var result Variable
	if err := c.doJSON(ctx, http.MethodPost, "/api/variables", v, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateVariable replaces the variable with id v.ID.
func (c *Client) UpdateVariable(ctx context.Context, v *Variable) (*Variable, error) {
	var result Variable
	if err := c.doJSON(ctx, http.MethodPut, idPath("/api/variables", v.ID), v, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteVariable deletes one variable.
func (c *Client) DeleteVariable(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, idPath("/api/variables", id), nil, nil)
}

// ---- Import ----

type importResult[T any] struct {
	Result []T `json:"result"`
}

// ImportFieldValues uploads an Email,Value CSV and returns the parsed rows.
// Nothing is stored server side.
func (c *Client) ImportFieldValues(ctx context.Context, filename string, r io.Reader) ([]FieldValue, error) {
	var result importResult[FieldValue]
	if err := c.upload(ctx, "/api/import/field", filename, r, &result); err != nil {
		return nil, err
	}
	return result.Result, nil
}

// ImportConditions uploads a Condition,Value CSV and returns the parsed rows.
func (c *Client) ImportConditions(ctx context.Context, filename string, r io.Reader) ([]Condition, error) {
	var result importResult[Condition]
	if err := c.upload(ctx, "/api/import/variable", filename, r, &result); err != nil {
		return nil, err
	}
	return result.Result, nil
}

func (c *Client) upload(ctx context.Context, path, filename string, r io.Reader, target any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("files[]", filename)
	if err != nil {
		return fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("reading %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("closing multipart body: %w", err)
	}
	req, err := c.buildRequest(ctx, http.MethodPost, path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req, target)
}

// ---- Personalization ----

// Value resolves the field or variable name for the target email.
func (c *Client) Value(ctx context.Context, name, email string) (string, error) {
	var result struct {
		Value string `json:"value"`
	}
	path := "/api/personalize/" + url.PathEscape(name) + "?" + url.Values{"email": {email}}.Encode()
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &result); err != nil {
		return "", err
	}
	return result.Value, nil
}

// Render substitutes every reference in text for the target email.
func (c *Client) Render(ctx context.Context, email, text string) (string, error) {
	var result struct {
		Text string `json:"text"`
	}
	body := map[string]string{"email": email, "text": text}
	if err := c.doJSON(ctx, http.MethodPost, "/api/personalize/render", body, &result); err != nil {
		return "", err
	}
	return result.Text, nil
}

// ---- Health ----

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/healthz", nil, nil)
}
