// Package supabase implements the relational data-store contract against a
// hosted PostgREST endpoint: table reads and inserts under /rest/v1 and
// server-side functions under /rest/v1/rpc.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/adstudio/studio/internal/domain"
	"github.com/adstudio/studio/internal/infra/logging"
)

// Config configures the client.
type Config struct {
	ProjectURL string
	APIKey     string
	// Optional additional headers to send on every request.
	DefaultHeaders map[string]string
	HTTPClient     *http.Client
	Logger         *logrus.Entry
}

// Client performs PostgREST calls.
type Client struct {
	prefix     string
	apiKey     string
	headers    map[string]string
	httpClient *http.Client
	log        *logrus.Entry
}

// New creates a client.
func New(cfg Config) (*Client, error) {
	if cfg.ProjectURL == "" {
		return nil, fmt.Errorf("project URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	headers := map[string]string{
		"Accept":       "application/json",
		"Content-Type": "application/json",
	}
	for k, v := range cfg.DefaultHeaders {
		if v != "" {
			headers[k] = v
		}
	}
	return &Client{
		prefix:     strings.TrimRight(cfg.ProjectURL, "/") + "/rest/v1",
		apiKey:     cfg.APIKey,
		headers:    headers,
		httpClient: httpClient,
		log:        logging.OrDiscard(cfg.Logger),
	}, nil
}

// response is a raw PostgREST reply.
type response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// APIError is a non-2xx PostgREST reply.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("data store: %s (status %d)", e.Message, e.StatusCode)
}

// Unwrap lets callers match with errors.Is(err, domain.ErrBackend).
func (e *APIError) Unwrap() error { return domain.ErrBackend }

// selectRows performs a GET on a table.
func (c *Client) selectRows(ctx context.Context, table string, query url.Values, extra map[string]string) (*response, error) {
	path := c.prefix + "/" + url.PathEscape(table)
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, path, nil, extra)
}

// insert performs a POST insert into a table.
func (c *Client) insert(ctx context.Context, table string, row any) (*response, error) {
	return c.do(ctx, http.MethodPost, c.prefix+"/"+url.PathEscape(table), row, map[string]string{
		"Prefer": "return=minimal",
	})
}

// rpc invokes a server-side function.
func (c *Client) rpc(ctx context.Context, fn string, params any) (*response, error) {
	return c.do(ctx, http.MethodPost, c.prefix+"/rpc/"+url.PathEscape(fn), params, nil)
}

func (c *Client) do(ctx context.Context, method, rawURL string, body any, extra map[string]string) (*response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	c.setHeaders(req, extra)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBackend, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	out := &response{StatusCode: resp.StatusCode, Body: data, Headers: resp.Header}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
		c.log.WithFields(logrus.Fields{"method": method, "status": resp.StatusCode}).Warn(apiErr.Message)
		return out, apiErr
	}
	return out, nil
}

func (c *Client) setHeaders(req *http.Request, extra map[string]string) {
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range extra {
		if v != "" {
			req.Header.Set(k, v)
		}
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}

// errorMessage extracts the PostgREST message or error field.
func errorMessage(body []byte) string {
	v := gjson.ParseBytes(body)
	for _, k := range []string{"message", "error_description", "error", "hint"} {
		if s := v.Get(k).String(); s != "" {
			return s
		}
	}
	if s := strings.TrimSpace(string(body)); s != "" && len(s) < 200 {
		return s
	}
	return "request failed"
}
