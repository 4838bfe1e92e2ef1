package client

import (
	"context"
	"fmt"
	"net/url"

	apperrors "github.com/utafrali/checkout-service/pkg/errors"

	"github.com/utafrali/checkout-service/internal/domain"
)

// Cart holds the items and currency returned by the cart service.
type Cart struct {
	Items    []domain.SnapshotItem
	Currency string
}

// CartClient reads carts from the cart service. The checkout session freezes
// the returned items at creation; later cart edits do not affect it.
type CartClient struct {
	base
}

// NewCartClient creates a cart service adapter.
func NewCartClient(http HTTPDoer, baseURL string) *CartClient {
	return &CartClient{base{http: http, baseURL: baseURL, name: "cart"}}
}

type cartResponse struct {
	Data struct {
		Currency string `json:"currency"`
		Items    []struct {
			ProductID string `json:"product_id"`
			VariantID string `json:"variant_id"`
			Name      string `json:"name"`
			SKU       string `json:"sku"`
			Quantity  int    `json:"quantity"`
			UnitPrice int64  `json:"unit_price"`
		} `json:"items"`
	} `json:"data"`
}

// GetCart fetches an authenticated user's cart by id.
func (c *CartClient) GetCart(ctx context.Context, cartID string) (*Cart, error) {
	return c.fetch(ctx, "/api/v1/carts/"+url.PathEscape(cartID))
}

// GetDeviceCart fetches a guest cart by device cart id.
func (c *CartClient) GetDeviceCart(ctx context.Context, deviceCartID string) (*Cart, error) {
	return c.fetch(ctx, "/api/v1/carts/device/"+url.PathEscape(deviceCartID))
}

func (c *CartClient) fetch(ctx context.Context, path string) (*Cart, error) {
	var resp cartResponse
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}

	if len(resp.Data.Items) == 0 {
		return nil, apperrors.InvalidInput("cart is empty")
	}

	cart := &Cart{
		Currency: resp.Data.Currency,
		Items:    make([]domain.SnapshotItem, len(resp.Data.Items)),
	}
	for i, item := range resp.Data.Items {
		cart.Items[i] = domain.SnapshotItem{
			ProductID:      item.ProductID,
			VariantID:      item.VariantID,
			Name:           item.Name,
			SKU:            item.SKU,
			Quantity:       item.Quantity,
			UnitPriceMinor: item.UnitPrice,
		}
	}
	return cart, nil
}
