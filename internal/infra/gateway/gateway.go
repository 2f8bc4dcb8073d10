// Package gateway is the uniform wrapper around the generation backend's
// HTTP endpoints.
//
// Call never returns a Go error: every outcome, including network failure,
// is folded into a Response whose Error field carries a normalized message.
// There are no retries and no client-side timeout; callers decide whether
// to re-issue, and cancel through the context.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/adstudio/studio/internal/domain"
	"github.com/adstudio/studio/internal/infra/logging"
	"github.com/adstudio/studio/internal/infra/observability"
)

// Backend endpoints.
const (
	EndpointTools         = "/tools"
	EndpointSaveResult    = "/save-result"
	EndpointSavedResults  = "/saved-results"
	EndpointCalendar      = "/calendar"
	EndpointDeductCredits = "/deduct-credits"
	EndpointGenerateAd    = "/generate-ad"
)

// Generic messages used when the backend does not supply one.
const (
	msgNetwork     = "network error: unable to reach the server"
	msgBadRequest  = "invalid request body"
	msgStatusFmt   = "request failed with status %d"
	msgUnreadable  = "unreadable response from server"
	maxErrorLength = 500
)

// Response is the normalized outcome of a backend call.
type Response struct {
	OK     bool            `json:"ok"`
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Err converts a failed response into an error wrapping domain.ErrBackend.
func (r Response) Err(endpoint string) error {
	if r.OK {
		return nil
	}
	return &Error{Endpoint: endpoint, Status: r.Status, Message: r.Error}
}

// Error is a backend failure with its normalized message.
type Error struct {
	Endpoint string
	Status   int
	Message  string
}

func (e *Error) Error() string { return e.Message }

// Unwrap lets callers match with errors.Is(err, domain.ErrBackend).
func (e *Error) Unwrap() error { return domain.ErrBackend }

// Config holds client configuration.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *logrus.Entry
}

// Client calls the generation backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *logrus.Entry
}

// New creates a backend client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("backend base URL is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: httpClient,
		log:        logging.OrDiscard(cfg.Logger),
	}, nil
}

// Call issues method against endpoint with body encoded as JSON (nil for
// no body). endpoint may carry a query string.
func (c *Client) Call(ctx context.Context, endpoint, method string, body any) Response {
	started := time.Now()
	path := endpoint
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	log := c.log.WithFields(logrus.Fields{"endpoint": path, "method": method})

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			log.WithError(err).Warn("encode request body")
			observability.ObserveGateway(path, "encode_error", started)
			return Response{Error: msgBadRequest}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		log.WithError(err).Warn("build request")
		observability.ObserveGateway(path, "encode_error", started)
		return Response{Error: msgBadRequest}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.WithError(err).Warn("backend unreachable")
		observability.ObserveGateway(path, "network_error", started)
		return Response{Error: msgNetwork}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		log.WithError(err).Warn("read response")
		observability.ObserveGateway(path, "network_error", started)
		return Response{Status: resp.StatusCode, Error: msgUnreadable}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := extractError(data)
		if msg == "" {
			msg = fmt.Sprintf(msgStatusFmt, resp.StatusCode)
		}
		log.WithField("status", resp.StatusCode).Warn(msg)
		observability.ObserveGateway(path, "http_error", started)
		return Response{Status: resp.StatusCode, Data: validJSON(data), Error: msg}
	}

	log.WithField("status", resp.StatusCode).Debug("backend call ok")
	observability.ObserveGateway(path, "ok", started)
	return Response{OK: true, Status: resp.StatusCode, Data: validJSON(data)}
}

// extractError pulls a human message out of an error body, trying the
// shapes the backend and its proxies produce.
func extractError(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if !gjson.ValidBytes(body) {
		s := strings.TrimSpace(string(body))
		if strings.HasPrefix(s, "<") || len(s) > maxErrorLength {
			return ""
		}
		return s
	}
	v := gjson.ParseBytes(body)
	for _, path := range []string{"error.message", "error", "message", "msg", "detail"} {
		r := v.Get(path)
		if r.Type == gjson.String && strings.TrimSpace(r.Str) != "" {
			return strings.TrimSpace(r.Str)
		}
	}
	return ""
}

func validJSON(data []byte) json.RawMessage {
	if len(data) == 0 || !json.Valid(data) {
		return nil
	}
	return json.RawMessage(data)
}
