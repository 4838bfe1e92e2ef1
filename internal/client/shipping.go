package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/utafrali/checkout-service/internal/domain"
)

// ShippingClient validates addresses and looks up shipping rates on the
// shipping service. ETA computation stays local; only the rate table lives
// remotely.
type ShippingClient struct {
	base
}

// NewShippingClient creates a shipping service adapter.
func NewShippingClient(http HTTPDoer, baseURL string) *ShippingClient {
	return &ShippingClient{base{http: http, baseURL: baseURL, name: "shipping"}}
}

// ValidateAddress submits the address for validation and returns the
// normalized form the shipping service settled on.
func (c *ShippingClient) ValidateAddress(ctx context.Context, addr *domain.Address) (*domain.Address, error) {
	var resp struct {
		Data domain.Address `json:"data"`
	}
	if err := c.postJSON(ctx, "/api/v1/addresses/validate", "", addr, &resp); err != nil {
		return nil, fmt.Errorf("validate address: %w", err)
	}
	return &resp.Data, nil
}

// GetRate returns the shipping rate in minor units for a zone and method.
func (c *ShippingClient) GetRate(ctx context.Context, zone, method string) (int64, error) {
	var resp struct {
		Data struct {
			RateMinor int64 `json:"rate_minor"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/api/v1/rates?zone=%s&method=%s", url.QueryEscape(zone), url.QueryEscape(method))
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return 0, fmt.Errorf("get shipping rate: %w", err)
	}
	return resp.Data.RateMinor, nil
}
