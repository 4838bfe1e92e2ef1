// Package pricing aggregates a session's frozen cart snapshot, shipping
// quote, and discount into the breakdown returned by preview and charged at
// completion. Amounts are int64 minor units throughout.
package pricing

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/utafrali/checkout-service/internal/domain"
)

// TaxRateProvider resolves the tax rate for a destination address. An error
// is a recoverable degradation: the aggregator falls back to its flat
// configured rate.
type TaxRateProvider interface {
	RateFor(ctx context.Context, addr *domain.Address) (float64, error)
}

// CouponResult is the outcome of validating a discount code.
type CouponResult struct {
	Valid       bool
	AmountMinor int64
	Reason      string
}

// CouponValidator checks that a discount code is still redeemable (not
// expired, usage limit not exceeded, minimum purchase met) and returns the
// discount amount.
type CouponValidator interface {
	Validate(ctx context.Context, code, owner string, subtotalMinor int64) (CouponResult, error)
}

// Aggregator computes pricing breakdowns. The zero discount path never
// blocks checkout: coupon failures zero the discount and set a warning on
// the breakdown instead of returning an error.
type Aggregator struct {
	taxRates        TaxRateProvider
	coupons         CouponValidator
	fallbackTaxRate float64
	logger          *slog.Logger
}

// NewAggregator creates a pricing aggregator. fallbackTaxRate is the flat
// rate applied when the tax provider is unavailable.
func NewAggregator(taxRates TaxRateProvider, coupons CouponValidator, fallbackTaxRate float64, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		taxRates:        taxRates,
		coupons:         coupons,
		fallbackTaxRate: fallbackTaxRate,
		logger:          logger,
	}
}

// Preview computes the full breakdown for the given snapshot, quote, and
// optional discount code. The total is clamped at zero: a discount larger
// than the rest of the order is capped, never refunded.
func (a *Aggregator) Preview(
	ctx context.Context,
	snapshot []domain.SnapshotItem,
	quote *domain.ShippingQuote,
	addr *domain.Address,
	discountCode, owner string,
) (*domain.Pricing, error) {
	if quote == nil {
		return nil, fmt.Errorf("pricing requires a shipping quote")
	}

	var subtotal int64
	for _, item := range snapshot {
		subtotal += item.UnitPriceMinor * int64(item.Quantity)
	}

	tax := a.taxFor(ctx, addr, subtotal)
	shipping := quote.RateMinor

	p := &domain.Pricing{
		SubtotalMinor: subtotal,
		TaxMinor:      tax,
		ShippingMinor: shipping,
	}

	if discountCode != "" {
		p.DiscountMinor, p.DiscountWarning = a.discountFor(ctx, discountCode, owner, subtotal)
	}

	// Cap the discount so the total never goes negative.
	if max := subtotal + tax + shipping; p.DiscountMinor > max {
		p.DiscountMinor = max
	}
	p.TotalMinor = subtotal + tax + shipping - p.DiscountMinor

	return p, nil
}

// taxFor resolves the destination tax amount, degrading to the flat
// configured rate when the provider is unavailable.
func (a *Aggregator) taxFor(ctx context.Context, addr *domain.Address, subtotal int64) int64 {
	rate := a.fallbackTaxRate
	if a.taxRates != nil && addr != nil {
		r, err := a.taxRates.RateFor(ctx, addr)
		if err != nil {
			a.logger.WarnContext(ctx, "tax rate provider unavailable, using flat rate",
				slog.Float64("flat_rate", a.fallbackTaxRate),
				slog.String("error", err.Error()),
			)
		} else {
			rate = r
		}
	}
	return int64(math.Round(float64(subtotal) * rate))
}

// discountFor validates the code and returns the discount amount, or zero
// plus a warning when the code is no longer redeemable. Validation failure is
// not an error: checkout must not block on an expired coupon.
func (a *Aggregator) discountFor(ctx context.Context, code, owner string, subtotal int64) (int64, string) {
	if a.coupons == nil {
		return 0, fmt.Sprintf("discount code %q could not be validated", code)
	}

	result, err := a.coupons.Validate(ctx, code, owner, subtotal)
	if err != nil {
		a.logger.WarnContext(ctx, "coupon validation failed, zeroing discount",
			slog.String("code", code),
			slog.String("error", err.Error()),
		)
		return 0, fmt.Sprintf("discount code %q could not be validated", code)
	}
	if !result.Valid {
		return 0, fmt.Sprintf("discount code %q is not valid: %s", code, result.Reason)
	}
	return result.AmountMinor, ""
}
