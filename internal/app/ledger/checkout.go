package ledger

import (
	"context"
	"fmt"
	"net/url"
)

// LinkCheckout builds a hosted payment-link URL. The payment provider
// echoes client_reference_id back to the backend, which writes the
// purchase transaction.
type LinkCheckout struct {
	BaseURL string
}

// CheckoutURL implements Checkout.
func (c LinkCheckout) CheckoutURL(_ context.Context, userID, pack string) (string, error) {
	if c.BaseURL == "" {
		return "", fmt.Errorf("checkout base URL is not configured")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse checkout URL: %w", err)
	}
	q := u.Query()
	q.Set("client_reference_id", userID)
	if pack != "" {
		q.Set("pack", pack)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
