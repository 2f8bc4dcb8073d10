package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"

	"github.com/adstudio/studio/internal/domain"
)

// ─── Typed Endpoint Wrappers ────────────────────────────────────────────────
// Each wrapper builds the fixed request body, calls Call, and decodes the
// success envelope. Backend failures come back as *Error, which matches
// domain.ErrBackend under errors.Is.

// Generation is the outcome of POST /tools or POST /generate-ad.
type Generation struct {
	Data         json.RawMessage
	GenerationID string
}

// Generate runs a tool through POST /tools.
func (c *Client) Generate(ctx context.Context, toolID domain.ToolID, inputs domain.Inputs, userID string) (*Generation, error) {
	body := map[string]any{
		"toolId":  toolID,
		"inputs":  inputs,
		"user_id": userID,
	}
	resp := c.Call(ctx, EndpointTools, http.MethodPost, body)
	v, err := generationEnvelope(resp, EndpointTools)
	if err != nil {
		return nil, err
	}
	return &Generation{
		Data:         rawOf(v.Get("data")),
		GenerationID: firstString(v, "generation_id", "generationId"),
	}, nil
}

// AdRequest is the body of POST /generate-ad minus the user id.
type AdRequest struct {
	Prompt           string         `json:"prompt"`
	Image            string         `json:"image,omitempty"`
	GenerateOnlyText bool           `json:"generateOnlyText"`
	Options          map[string]any `json:"options,omitempty"`
}

// GenerateAd runs POST /generate-ad.
func (c *Client) GenerateAd(ctx context.Context, req AdRequest, userID string) (*Generation, error) {
	body := struct {
		AdRequest
		UserID string `json:"user_id"`
	}{req, userID}
	resp := c.Call(ctx, EndpointGenerateAd, http.MethodPost, body)
	v, err := generationEnvelope(resp, EndpointGenerateAd)
	if err != nil {
		return nil, err
	}
	return &Generation{
		Data:         rawOf(v.Get("data")),
		GenerationID: firstString(v, "generation_id", "generationId"),
	}, nil
}

// SaveResult creates a new generation record via POST /save-result and
// returns its id. Every call creates a record.
func (c *Client) SaveResult(ctx context.Context, toolID domain.ToolID, result json.RawMessage, inputs any, userID string) (string, error) {
	body := map[string]any{
		"toolId":  toolID,
		"result":  result,
		"inputs":  inputs,
		"user_id": userID,
	}
	resp := c.Call(ctx, EndpointSaveResult, http.MethodPost, body)
	if err := envelopeErr(resp, EndpointSaveResult); err != nil {
		return "", err
	}
	id := firstString(gjson.ParseBytes(resp.Data), "generation_id", "generationId", "id")
	if id == "" {
		return "", &Error{Endpoint: EndpointSaveResult, Status: resp.Status, Message: "save succeeded without a generation id"}
	}
	return id, nil
}

// SavedResults lists generation records via GET /saved-results. Items that
// cannot be decoded are skipped rather than failing the whole list.
func (c *Client) SavedResults(ctx context.Context, toolID domain.ToolID, userID string) ([]domain.GenerationRecord, error) {
	q := url.Values{}
	q.Set("user_id", userID)
	q.Set("tool_id", string(toolID))
	resp := c.Call(ctx, EndpointSavedResults+"?"+q.Encode(), http.MethodGet, nil)
	if err := envelopeErr(resp, EndpointSavedResults); err != nil {
		return nil, err
	}

	var out []domain.GenerationRecord
	gjson.GetBytes(resp.Data, "data").ForEach(func(_, item gjson.Result) bool {
		var rec domain.GenerationRecord
		if err := json.Unmarshal([]byte(item.Raw), &rec); err != nil {
			c.log.WithError(err).Debug("skip undecodable generation record")
			return true
		}
		if rec.ToolID == "" {
			rec.ToolID = toolID
		}
		out = append(out, rec)
		return true
	})
	return out, nil
}

// Calendar fetches the stored calendar via GET /calendar. A null calendar
// yields nil days.
func (c *Client) Calendar(ctx context.Context, userID string) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("user_id", userID)
	resp := c.Call(ctx, EndpointCalendar+"?"+q.Encode(), http.MethodGet, nil)
	if err := envelopeErr(resp, EndpointCalendar); err != nil {
		return nil, err
	}
	return rawOf(gjson.GetBytes(resp.Data, "calendar")), nil
}

// SaveCalendar replaces the stored calendar wholesale via POST /calendar.
func (c *Client) SaveCalendar(ctx context.Context, userID string, days []domain.CalendarDay) error {
	body := map[string]any{
		"user_id":  userID,
		"calendar": days,
	}
	return envelopeErr(c.Call(ctx, EndpointCalendar, http.MethodPost, body), EndpointCalendar)
}

// DeductCredits records a paid usage via POST /deduct-credits.
func (c *Client) DeductCredits(ctx context.Context, userID string, amount int64, description string) error {
	body := map[string]any{
		"user_id":        userID,
		"credits_amount": amount,
		"description":    description,
	}
	resp := c.Call(ctx, EndpointDeductCredits, http.MethodPost, body)
	if !resp.OK {
		return resp.Err(EndpointDeductCredits)
	}
	v := gjson.ParseBytes(resp.Data)
	if ok := v.Get("ok"); ok.Exists() && !ok.Bool() {
		return &Error{Endpoint: EndpointDeductCredits, Status: resp.Status, Message: messageOr(v, "credit deduction rejected")}
	}
	return nil
}

// envelopeErr treats a 2xx body with success=false or an error field as a
// failure.
func envelopeErr(resp Response, endpoint string) error {
	if !resp.OK {
		return resp.Err(endpoint)
	}
	v := gjson.ParseBytes(resp.Data)
	if s := v.Get("success"); s.Exists() && !s.Bool() {
		return &Error{Endpoint: endpoint, Status: resp.Status, Message: messageOr(v, fmt.Sprintf("%s reported failure", endpoint))}
	}
	if e := v.Get("error"); e.Exists() && e.Type != gjson.Null && e.String() != "" {
		return &Error{Endpoint: endpoint, Status: resp.Status, Message: messageOr(v, e.String())}
	}
	return nil
}

// generationEnvelope is envelopeErr for generation endpoints, which must
// answer with a JSON object. A 2xx with an empty or non-JSON body, such as a
// proxy error page, is a failure rather than an empty generation.
func generationEnvelope(resp Response, endpoint string) (gjson.Result, error) {
	if err := envelopeErr(resp, endpoint); err != nil {
		return gjson.Result{}, err
	}
	v := gjson.ParseBytes(resp.Data)
	if resp.Data == nil || !v.IsObject() {
		return gjson.Result{}, &Error{Endpoint: endpoint, Status: resp.Status, Message: msgUnreadable}
	}
	return v, nil
}

func messageOr(v gjson.Result, fallback string) string {
	if msg := extractError([]byte(v.Raw)); msg != "" {
		return msg
	}
	return fallback
}

func firstString(v gjson.Result, keys ...string) string {
	for _, k := range keys {
		if r := v.Get(k); r.Exists() && r.Type != gjson.Null && r.String() != "" {
			return r.String()
		}
	}
	return ""
}

func rawOf(v gjson.Result) json.RawMessage {
	if !v.Exists() || v.Type == gjson.Null {
		return nil
	}
	return json.RawMessage(v.Raw)
}
