package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/utafrali/checkout-service/internal/domain"
)

// TaxClient resolves destination tax rates from the tax service. It
// implements pricing.TaxRateProvider; the aggregator treats its errors as a
// degradation and falls back to the flat configured rate.
type TaxClient struct {
	base
}

// NewTaxClient creates a tax service adapter.
func NewTaxClient(http HTTPDoer, baseURL string) *TaxClient {
	return &TaxClient{base{http: http, baseURL: baseURL, name: "tax"}}
}

// RateFor returns the tax rate for the destination as a fraction (0.08 for
// 8%).
func (c *TaxClient) RateFor(ctx context.Context, addr *domain.Address) (float64, error) {
	var resp struct {
		Data struct {
			Rate float64 `json:"rate"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/api/v1/rates?country=%s&state=%s&postal_code=%s",
		url.QueryEscape(addr.Country), url.QueryEscape(addr.State), url.QueryEscape(addr.PostalCode))
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return 0, fmt.Errorf("get tax rate: %w", err)
	}
	return resp.Data.Rate, nil
}
