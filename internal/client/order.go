package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/utafrali/checkout-service/internal/domain"
)

// CreateOrderInput carries everything the order service needs to persist
// an order from a completed checkout.
type CreateOrderInput struct {
	SessionID      string
	OwnerID        string
	Items          []domain.SnapshotItem
	Address        *domain.Address
	Pricing        *domain.Pricing
	Currency       string
	PaymentAuthID  string
	ReservationID  string
	ShippingMethod string
}

// OrderClient creates and cancels orders on the order service.
type OrderClient struct {
	base
}

// NewOrderClient creates an order service adapter.
func NewOrderClient(http HTTPDoer, baseURL string) *OrderClient {
	return &OrderClient{base{http: http, baseURL: baseURL, name: "order"}}
}

// CreateOrder persists the order. The idempotency key (the session id) makes
// a retried create return the original order id.
func (c *OrderClient) CreateOrder(ctx context.Context, in CreateOrderInput) (string, error) {
	type orderItem struct {
		ProductID string `json:"product_id"`
		VariantID string `json:"variant_id,omitempty"`
		Name      string `json:"name,omitempty"`
		SKU       string `json:"sku,omitempty"`
		Quantity  int    `json:"quantity"`
		UnitPrice int64  `json:"unit_price"`
	}

	req := struct {
		CheckoutSessionID string          `json:"checkout_session_id"`
		OwnerID           string          `json:"owner_id"`
		Items             []orderItem     `json:"items"`
		ShippingAddress   *domain.Address `json:"shipping_address"`
		ShippingMethod    string          `json:"shipping_method"`
		SubtotalMinor     int64           `json:"subtotal_minor"`
		TaxMinor          int64           `json:"tax_minor"`
		ShippingMinor     int64           `json:"shipping_minor"`
		DiscountMinor     int64           `json:"discount_minor"`
		TotalMinor        int64           `json:"total_minor"`
		Currency          string          `json:"currency"`
		AuthorizationID   string          `json:"authorization_id"`
		ReservationID     string          `json:"reservation_id"`
	}{
		CheckoutSessionID: in.SessionID,
		OwnerID:           in.OwnerID,
		Items:             make([]orderItem, len(in.Items)),
		ShippingAddress:   in.Address,
		ShippingMethod:    in.ShippingMethod,
		Currency:          in.Currency,
		AuthorizationID:   in.PaymentAuthID,
		ReservationID:     in.ReservationID,
	}
	for i, item := range in.Items {
		req.Items[i] = orderItem{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Name:      item.Name,
			SKU:       item.SKU,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPriceMinor,
		}
	}
	if in.Pricing != nil {
		req.SubtotalMinor = in.Pricing.SubtotalMinor
		req.TaxMinor = in.Pricing.TaxMinor
		req.ShippingMinor = in.Pricing.ShippingMinor
		req.DiscountMinor = in.Pricing.DiscountMinor
		req.TotalMinor = in.Pricing.TotalMinor
	}

	var resp struct {
		Data struct {
			OrderID string `json:"order_id"`
		} `json:"data"`
	}
	if err := c.postJSON(ctx, "/api/v1/orders", in.SessionID, req, &resp); err != nil {
		return "", fmt.Errorf("create order: %w", err)
	}
	return resp.Data.OrderID, nil
}

// CancelOrder cancels an order created by a failed saga.
func (c *OrderClient) CancelOrder(ctx context.Context, orderID string) error {
	path := "/api/v1/orders/" + url.PathEscape(orderID) + "/cancel"
	if err := c.postJSON(ctx, path, "", nil, nil); err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	return nil
}
