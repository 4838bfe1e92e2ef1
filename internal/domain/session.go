package domain

import (
	"fmt"
	"time"

	apperrors "github.com/utafrali/checkout-service/pkg/errors"
)

// Checkout session status constants. The forward path is
// created -> address_set -> shipping_selected -> payment_selected ->
// previewed -> completed; expired, cancelled, and failed are reachable from
// any non-terminal status.
const (
	StatusCreated          = "created"
	StatusAddressSet       = "address_set"
	StatusShippingSelected = "shipping_selected"
	StatusPaymentSelected  = "payment_selected"
	StatusPreviewed        = "previewed"
	StatusCompleted        = "completed"
	StatusExpired          = "expired"
	StatusCancelled        = "cancelled"
	StatusFailed           = "failed"
)

// SnapshotItem is a single cart line frozen at session creation. Unit prices
// are captured once so the amount previewed is the amount charged.
type SnapshotItem struct {
	ProductID      string `json:"product_id"`
	VariantID      string `json:"variant_id,omitempty"`
	Name           string `json:"name,omitempty"`
	SKU            string `json:"sku,omitempty"`
	Quantity       int    `json:"quantity"`
	UnitPriceMinor int64  `json:"unit_price_minor"`
}

// Address represents a shipping address.
type Address struct {
	FullName    string `json:"full_name"`
	AddressLine string `json:"address_line"`
	City        string `json:"city"`
	State       string `json:"state,omitempty"`
	PostalCode  string `json:"postal_code"`
	Country     string `json:"country"`
	Phone       string `json:"phone,omitempty"`
}

// ShippingQuote is the stored result of rate and ETA computation for the
// session's address and selected method.
type ShippingQuote struct {
	Method        string    `json:"method"`
	Zone          string    `json:"zone"`
	RateMinor     int64     `json:"rate_minor"`
	BusinessDays  int       `json:"business_days"`
	CalendarDays  int       `json:"calendar_days"`
	EstimatedDate time.Time `json:"estimated_date"`
}

// Pricing is the server-computed breakdown returned by preview and used at
// completion. Total = Subtotal + Tax + ShippingCost - Discount, never negative.
type Pricing struct {
	SubtotalMinor   int64  `json:"subtotal_minor"`
	TaxMinor        int64  `json:"tax_minor"`
	ShippingMinor   int64  `json:"shipping_minor"`
	DiscountMinor   int64  `json:"discount_minor"`
	TotalMinor      int64  `json:"total_minor"`
	DiscountWarning string `json:"discount_warning,omitempty"`
}

// CheckoutSession represents an ongoing checkout. All writes are conditioned
// on Version (optimistic concurrency); Version grows by one per successful
// mutation.
type CheckoutSession struct {
	ID                  string              `json:"id"`
	UserID              string              `json:"user_id,omitempty"`
	DeviceID            string              `json:"device_id,omitempty"`
	Status              string              `json:"status"`
	CartSnapshot        []SnapshotItem      `json:"cart_snapshot"`
	Currency            string              `json:"currency"`
	Address             *Address            `json:"address,omitempty"`
	ShippingQuote       *ShippingQuote      `json:"shipping_quote,omitempty"`
	PaymentMethodID     string              `json:"payment_method_id,omitempty"`
	DiscountCode        string              `json:"discount_code,omitempty"`
	Pricing             *Pricing            `json:"pricing,omitempty"`
	Version             int64               `json:"version"`
	CompensationLog     []CompensationEntry `json:"compensation_log,omitempty"`
	OrderID             string              `json:"order_id,omitempty"`
	NeedsReconciliation bool                `json:"needs_reconciliation,omitempty"`
	FailureReason       string              `json:"failure_reason,omitempty"`
	ExpiresAt           time.Time           `json:"expires_at"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// Owner returns the session owner identifier: the user id for authenticated
// sessions, the device id for guest sessions.
func (s *CheckoutSession) Owner() string {
	if s.UserID != "" {
		return s.UserID
	}
	return s.DeviceID
}

// Clone returns a copy whose compensation log can be mutated without
// touching the receiver. Pointer fields are shared; callers that clone do
// not modify them.
func (s *CheckoutSession) Clone() *CheckoutSession {
	cp := *s
	cp.CompensationLog = append([]CompensationEntry(nil), s.CompensationLog...)
	return &cp
}

// Subtotal computes the frozen-snapshot subtotal (quantity x unit price per line).
func (s *CheckoutSession) Subtotal() int64 {
	var subtotal int64
	for _, item := range s.CartSnapshot {
		subtotal += item.UnitPriceMinor * int64(item.Quantity)
	}
	return subtotal
}

// IsExpired checks whether the session has passed its expiry time.
func (s *CheckoutSession) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// IsTerminal returns true if the session is in a final state.
func (s *CheckoutSession) IsTerminal() bool {
	switch s.Status {
	case StatusCompleted, StatusExpired, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// statusConflict builds the error returned for any transition attempted out
// of guard order. No session field is mutated before guards pass.
func (s *CheckoutSession) statusConflict(op string) error {
	return apperrors.Conflict(fmt.Sprintf("cannot %s while session is %s", op, s.Status))
}

// SetAddress stores a validated address. Allowed from created or address_set;
// re-setting the address invalidates any shipping quote and pricing computed
// for the previous destination.
func (s *CheckoutSession) SetAddress(addr *Address) error {
	if s.Status != StatusCreated && s.Status != StatusAddressSet {
		return s.statusConflict("set address")
	}
	s.Address = addr
	s.ShippingQuote = nil
	s.Pricing = nil
	s.Status = StatusAddressSet
	return nil
}

// SelectShipping stores the quote for the chosen method. Requires an address;
// allowed from address_set, or shipping_selected to change method.
func (s *CheckoutSession) SelectShipping(quote *ShippingQuote) error {
	if s.Status != StatusAddressSet && s.Status != StatusShippingSelected {
		return s.statusConflict("select shipping")
	}
	if s.Address == nil {
		return apperrors.Conflict("shipping requires an address")
	}
	s.ShippingQuote = quote
	s.Pricing = nil
	s.Status = StatusShippingSelected
	return nil
}

// SelectPayment stores the payment method id. Requires a shipping quote;
// allowed from shipping_selected, or payment_selected to change method.
func (s *CheckoutSession) SelectPayment(methodID string) error {
	if s.Status != StatusShippingSelected && s.Status != StatusPaymentSelected {
		return s.statusConflict("select payment")
	}
	if s.ShippingQuote == nil {
		return apperrors.Conflict("payment selection requires a shipping quote")
	}
	s.PaymentMethodID = methodID
	s.Pricing = nil
	s.Status = StatusPaymentSelected
	return nil
}

// ApplyPricing stores a freshly computed pricing breakdown. Requires a
// payment method; re-running preview recomputes and overwrites.
func (s *CheckoutSession) ApplyPricing(p *Pricing) error {
	if s.Status != StatusPaymentSelected && s.Status != StatusPreviewed {
		return s.statusConflict("preview")
	}
	if s.PaymentMethodID == "" {
		return apperrors.Conflict("preview requires a payment method")
	}
	s.Pricing = p
	s.Status = StatusPreviewed
	return nil
}

// MarkCompleted commits the session with the created order id. Only valid
// from previewed; the order id is set at most once.
func (s *CheckoutSession) MarkCompleted(orderID string) error {
	if s.Status != StatusPreviewed {
		return s.statusConflict("complete")
	}
	if s.OrderID != "" && s.OrderID != orderID {
		return apperrors.Conflict("session already has an order")
	}
	s.OrderID = orderID
	s.Status = StatusCompleted
	return nil
}

// MarkFailed moves a non-terminal session to failed with a reason.
func (s *CheckoutSession) MarkFailed(reason string) error {
	if s.IsTerminal() {
		return s.statusConflict("fail")
	}
	s.Status = StatusFailed
	s.FailureReason = reason
	return nil
}

// MarkExpired moves a non-terminal session to expired.
func (s *CheckoutSession) MarkExpired() error {
	if s.IsTerminal() {
		return s.statusConflict("expire")
	}
	s.Status = StatusExpired
	return nil
}

// MarkCancelled moves a non-terminal session to cancelled.
func (s *CheckoutSession) MarkCancelled() error {
	if s.IsTerminal() {
		return s.statusConflict("cancel")
	}
	s.Status = StatusCancelled
	return nil
}

// ValidStatuses returns the set of valid checkout session statuses.
func ValidStatuses() []string {
	return []string{
		StatusCreated,
		StatusAddressSet,
		StatusShippingSelected,
		StatusPaymentSelected,
		StatusPreviewed,
		StatusCompleted,
		StatusExpired,
		StatusCancelled,
		StatusFailed,
	}
}
