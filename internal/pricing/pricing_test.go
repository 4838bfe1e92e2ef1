package pricing

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/checkout-service/internal/domain"
)

type stubTaxRates struct {
	rate float64
	err  error
}

func (s *stubTaxRates) RateFor(_ context.Context, _ *domain.Address) (float64, error) {
	return s.rate, s.err
}

type stubCoupons struct {
	result CouponResult
	err    error

	gotCode     string
	gotOwner    string
	gotSubtotal int64
}

func (s *stubCoupons) Validate(_ context.Context, code, owner string, subtotalMinor int64) (CouponResult, error) {
	s.gotCode = code
	s.gotOwner = owner
	s.gotSubtotal = subtotalMinor
	return s.result, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testSnapshot() []domain.SnapshotItem {
	return []domain.SnapshotItem{
		{ProductID: "prod-1", Quantity: 2, UnitPriceMinor: 2999},
		{ProductID: "prod-2", Quantity: 1, UnitPriceMinor: 1500},
	}
}

func testQuote() *domain.ShippingQuote {
	return &domain.ShippingQuote{Method: "standard", Zone: "A", RateMinor: 1000}
}

func testAddress() *domain.Address {
	return &domain.Address{City: "New York", State: "NY", PostalCode: "10001", Country: "US"}
}

func TestPreview_Breakdown(t *testing.T) {
	agg := NewAggregator(&stubTaxRates{rate: 0.08}, nil, 0.05, testLogger())

	p, err := agg.Preview(context.Background(), testSnapshot(), testQuote(), testAddress(), "", "user-1")
	require.NoError(t, err)

	// 2*2999 + 1500 = 7498 subtotal, 8% tax rounded.
	assert.Equal(t, int64(7498), p.SubtotalMinor)
	assert.Equal(t, int64(600), p.TaxMinor)
	assert.Equal(t, int64(1000), p.ShippingMinor)
	assert.Equal(t, int64(0), p.DiscountMinor)
	assert.Equal(t, int64(9098), p.TotalMinor)
	assert.Empty(t, p.DiscountWarning)
}

func TestPreview_NilQuote(t *testing.T) {
	agg := NewAggregator(&stubTaxRates{rate: 0.08}, nil, 0.05, testLogger())

	_, err := agg.Preview(context.Background(), testSnapshot(), nil, testAddress(), "", "user-1")
	assert.Error(t, err)
}

func TestPreview_ValidDiscount(t *testing.T) {
	coupons := &stubCoupons{result: CouponResult{Valid: true, AmountMinor: 1000}}
	agg := NewAggregator(&stubTaxRates{rate: 0.08}, coupons, 0.05, testLogger())

	p, err := agg.Preview(context.Background(), testSnapshot(), testQuote(), testAddress(), "SAVE10", "user-1")
	require.NoError(t, err)

	assert.Equal(t, int64(1000), p.DiscountMinor)
	assert.Equal(t, int64(8098), p.TotalMinor)
	assert.Empty(t, p.DiscountWarning)

	// The validator sees the frozen subtotal, not the grand total.
	assert.Equal(t, "SAVE10", coupons.gotCode)
	assert.Equal(t, "user-1", coupons.gotOwner)
	assert.Equal(t, int64(7498), coupons.gotSubtotal)
}

func TestPreview_OversizedDiscountClampsToZero(t *testing.T) {
	// A discount larger than the whole order is capped, never refunded.
	coupons := &stubCoupons{result: CouponResult{Valid: true, AmountMinor: 1_000_000}}
	agg := NewAggregator(&stubTaxRates{rate: 0.08}, coupons, 0.05, testLogger())

	p, err := agg.Preview(context.Background(), testSnapshot(), testQuote(), testAddress(), "MEGA", "user-1")
	require.NoError(t, err)

	assert.Equal(t, int64(0), p.TotalMinor)
	assert.Equal(t, p.SubtotalMinor+p.TaxMinor+p.ShippingMinor, p.DiscountMinor)
}

func TestPreview_InvalidCouponZeroesDiscountWithWarning(t *testing.T) {
	coupons := &stubCoupons{result: CouponResult{Valid: false, Reason: "expired"}}
	agg := NewAggregator(&stubTaxRates{rate: 0.08}, coupons, 0.05, testLogger())

	p, err := agg.Preview(context.Background(), testSnapshot(), testQuote(), testAddress(), "OLD10", "user-1")
	require.NoError(t, err)

	assert.Equal(t, int64(0), p.DiscountMinor)
	assert.Contains(t, p.DiscountWarning, "OLD10")
	assert.Contains(t, p.DiscountWarning, "expired")
	assert.Equal(t, int64(9098), p.TotalMinor)
}

func TestPreview_CouponServiceDownZeroesDiscount(t *testing.T) {
	coupons := &stubCoupons{err: errors.New("campaign service down")}
	agg := NewAggregator(&stubTaxRates{rate: 0.08}, coupons, 0.05, testLogger())

	p, err := agg.Preview(context.Background(), testSnapshot(), testQuote(), testAddress(), "SAVE10", "user-1")
	require.NoError(t, err)

	assert.Equal(t, int64(0), p.DiscountMinor)
	assert.NotEmpty(t, p.DiscountWarning)
}

func TestPreview_TaxProviderDownUsesFlatRate(t *testing.T) {
	agg := NewAggregator(&stubTaxRates{err: errors.New("tax service down")}, nil, 0.05, testLogger())

	p, err := agg.Preview(context.Background(), testSnapshot(), testQuote(), testAddress(), "", "user-1")
	require.NoError(t, err)

	// 5% of 7498, rounded.
	assert.Equal(t, int64(375), p.TaxMinor)
}

func TestPreview_NoTaxProviderUsesFlatRate(t *testing.T) {
	agg := NewAggregator(nil, nil, 0.05, testLogger())

	p, err := agg.Preview(context.Background(), testSnapshot(), testQuote(), nil, "", "user-1")
	require.NoError(t, err)

	assert.Equal(t, int64(375), p.TaxMinor)
}

func TestPreview_EmptySnapshot(t *testing.T) {
	agg := NewAggregator(&stubTaxRates{rate: 0.08}, nil, 0.05, testLogger())

	p, err := agg.Preview(context.Background(), nil, testQuote(), testAddress(), "", "user-1")
	require.NoError(t, err)

	assert.Equal(t, int64(0), p.SubtotalMinor)
	assert.Equal(t, int64(1000), p.TotalMinor)
}
