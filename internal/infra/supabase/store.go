package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/adstudio/studio/internal/domain"
)

// Collections and server-side functions.
const (
	TableTransactions = "credit_transactions"
	TableProfiles     = "profiles"
	TableActivity     = "activity_log"
	TableGenerations  = "generations"

	FnUserCredits    = "get_user_credits"
	FnAddTestCredits = "add_test_credits"
)

var _ domain.DataStore = (*Client)(nil)

// RecentTransactions returns up to limit transactions, newest first.
func (c *Client) RecentTransactions(ctx context.Context, userID string, limit int) ([]domain.CreditTransaction, error) {
	if limit <= 0 {
		limit = domain.DefaultTransactionWindow
	}
	q := url.Values{}
	q.Set("select", "*")
	q.Set("user_id", "eq."+userID)
	q.Set("order", "created_at.desc")
	q.Set("limit", strconv.Itoa(limit))
	resp, err := c.selectRows(ctx, TableTransactions, q, nil)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	var out []domain.CreditTransaction
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("%w: transactions: %v", domain.ErrMalformedData, err)
	}
	return out, nil
}

// AggregateBalance calls get_user_credits and returns its value as decoded,
// with numbers kept as json.Number. The function may answer with a scalar,
// a single-row array, or an object; the first value is taken in each case.
func (c *Client) AggregateBalance(ctx context.Context, userID string) (any, error) {
	resp, err := c.rpc(ctx, FnUserCredits, map[string]string{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("aggregate balance: %w", err)
	}
	v := gjson.ParseBytes(resp.Body)
	if v.IsArray() {
		v = v.Get("0")
	}
	if v.IsObject() {
		inner := gjson.Result{}
		for _, k := range []string{FnUserCredits, "balance", "credits"} {
			if r := v.Get(k); r.Exists() {
				inner = r
				break
			}
		}
		if !inner.Exists() {
			v.ForEach(func(_, val gjson.Result) bool {
				inner = val
				return false
			})
		}
		v = inner
	}
	if !v.Exists() {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(v.Raw)))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, nil
	}
	return out, nil
}

// GrantCredits calls add_test_credits, which appends a completed purchase.
func (c *Client) GrantCredits(ctx context.Context, userID string, amount int64, description string) error {
	_, err := c.rpc(ctx, FnAddTestCredits, map[string]any{
		"user_id":     userID,
		"amount":      amount,
		"description": description,
	})
	if err != nil {
		return fmt.Errorf("grant credits: %w", err)
	}
	return nil
}

// GetProfile returns the profile, or nil if none exists.
func (c *Client) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("id", "eq."+userID)
	q.Set("limit", "1")
	resp, err := c.selectRows(ctx, TableProfiles, q, nil)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	var rows []domain.Profile
	if err := json.Unmarshal(resp.Body, &rows); err != nil {
		return nil, fmt.Errorf("%w: profile: %v", domain.ErrMalformedData, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// LogActivity appends an activity row. The store assigns id and timestamp.
func (c *Client) LogActivity(ctx context.Context, a domain.Activity) error {
	row := map[string]any{
		"user_id":     a.UserID,
		"action":      a.Action,
		"description": a.Description,
	}
	if a.ToolID != "" {
		row["tool_id"] = a.ToolID
	}
	if _, err := c.insert(ctx, TableActivity, row); err != nil {
		return fmt.Errorf("log activity: %w", err)
	}
	return nil
}

// RecentActivity returns up to limit activity rows, newest first.
func (c *Client) RecentActivity(ctx context.Context, userID string, limit int) ([]domain.Activity, error) {
	if limit <= 0 {
		limit = 20
	}
	q := url.Values{}
	q.Set("select", "*")
	q.Set("user_id", "eq."+userID)
	q.Set("order", "created_at.desc")
	q.Set("limit", strconv.Itoa(limit))
	resp, err := c.selectRows(ctx, TableActivity, q, nil)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	var out []domain.Activity
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("%w: activity: %v", domain.ErrMalformedData, err)
	}
	return out, nil
}

// CountGenerations reads the exact count from the Content-Range header.
func (c *Client) CountGenerations(ctx context.Context, userID string) (int, error) {
	q := url.Values{}
	q.Set("select", "id")
	q.Set("user_id", "eq."+userID)
	q.Set("limit", "1")
	resp, err := c.selectRows(ctx, TableGenerations, q, map[string]string{"Prefer": "count=exact"})
	if err != nil {
		return 0, fmt.Errorf("count generations: %w", err)
	}
	cr := resp.Headers.Get("Content-Range")
	i := strings.LastIndexByte(cr, '/')
	if i < 0 {
		return 0, fmt.Errorf("%w: content-range %q", domain.ErrMalformedData, cr)
	}
	n, err := strconv.Atoi(cr[i+1:])
	if err != nil {
		return 0, fmt.Errorf("%w: content-range %q", domain.ErrMalformedData, cr)
	}
	return n, nil
}
