package client

import (
	"context"
	"fmt"

	"github.com/utafrali/checkout-service/internal/pricing"
)

// CouponClient validates discount codes against the campaign service. It
// implements pricing.CouponValidator; the aggregator zeroes the discount and
// sets a warning when validation fails or errors.
type CouponClient struct {
	base
}

// NewCouponClient creates a campaign service adapter for coupon validation.
func NewCouponClient(http HTTPDoer, baseURL string) *CouponClient {
	return &CouponClient{base{http: http, baseURL: baseURL, name: "campaign"}}
}

// Validate checks redemption window, usage limit, and minimum purchase for
// the code and returns the discount amount it would grant on the subtotal.
func (c *CouponClient) Validate(ctx context.Context, code, owner string, subtotalMinor int64) (pricing.CouponResult, error) {
	req := struct {
		Code          string `json:"code"`
		OwnerID       string `json:"owner_id"`
		SubtotalMinor int64  `json:"subtotal_minor"`
	}{
		Code:          code,
		OwnerID:       owner,
		SubtotalMinor: subtotalMinor,
	}

	var resp struct {
		Data struct {
			Valid          bool   `json:"valid"`
			DiscountAmount int64  `json:"discount_amount"`
			Reason         string `json:"reason"`
		} `json:"data"`
	}
	if err := c.postJSON(ctx, "/api/v1/coupons/validate", "", req, &resp); err != nil {
		return pricing.CouponResult{}, fmt.Errorf("validate coupon: %w", err)
	}

	return pricing.CouponResult{
		Valid:       resp.Data.Valid,
		AmountMinor: resp.Data.DiscountAmount,
		Reason:      resp.Data.Reason,
	}, nil
}
