package client

import (
	"context"
	"fmt"
	"net/url"
)

// PaymentMethod is a stored payment instrument belonging to a session owner.
type PaymentMethod struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Label string `json:"label"`
}

// PaymentClient talks to the payment service for method lookup, saga
// authorization, and the void compensation.
type PaymentClient struct {
	base
}

// NewPaymentClient creates a payment service adapter.
func NewPaymentClient(http HTTPDoer, baseURL string) *PaymentClient {
	return &PaymentClient{base{http: http, baseURL: baseURL, name: "payment"}}
}

// ListMethods returns the owner's usable payment methods.
func (c *PaymentClient) ListMethods(ctx context.Context, ownerID string) ([]PaymentMethod, error) {
	var resp struct {
		Data []PaymentMethod `json:"data"`
	}
	if err := c.getJSON(ctx, "/api/v1/payment-methods?owner="+url.QueryEscape(ownerID), &resp); err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	return resp.Data, nil
}

// Authorize places a hold for the given amount on the payment method. The
// idempotency key (the session id) makes a retried authorization return the
// original auth id instead of a second hold.
func (c *PaymentClient) Authorize(ctx context.Context, methodID string, amountMinor int64, currency, idempotencyKey string) (string, error) {
	req := struct {
		PaymentMethodID string `json:"payment_method_id"`
		AmountMinor     int64  `json:"amount_minor"`
		Currency        string `json:"currency"`
	}{
		PaymentMethodID: methodID,
		AmountMinor:     amountMinor,
		Currency:        currency,
	}

	var resp struct {
		Data struct {
			AuthorizationID string `json:"authorization_id"`
		} `json:"data"`
	}
	if err := c.postJSON(ctx, "/api/v1/authorizations", idempotencyKey, req, &resp); err != nil {
		return "", fmt.Errorf("authorize payment: %w", err)
	}
	return resp.Data.AuthorizationID, nil
}

// Void releases a previously placed authorization hold.
func (c *PaymentClient) Void(ctx context.Context, authorizationID string) error {
	path := "/api/v1/authorizations/" + url.PathEscape(authorizationID) + "/void"
	if err := c.postJSON(ctx, path, "", nil, nil); err != nil {
		return fmt.Errorf("void authorization: %w", err)
	}
	return nil
}
