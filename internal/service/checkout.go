package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/utafrali/checkout-service/internal/client"
	"github.com/utafrali/checkout-service/internal/domain"
	"github.com/utafrali/checkout-service/internal/event"
	"github.com/utafrali/checkout-service/internal/lease"
	"github.com/utafrali/checkout-service/internal/repository"
	"github.com/utafrali/checkout-service/internal/shipping"
	apperrors "github.com/utafrali/checkout-service/pkg/errors"
)

const (
	// defaultSessionTTL is how long a checkout session remains valid.
	defaultSessionTTL = 30 * time.Minute

	// defaultCompensationAttempts bounds retries of a single compensating
	// action before the session is flagged for reconciliation.
	defaultCompensationAttempts = 4
)

var sagaSteps = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "checkout_saga_steps_total",
		Help: "Completion saga step outcomes",
	},
	[]string{"step", "outcome"},
)

func init() {
	prometheus.MustRegister(sagaSteps)
}

// CircuitOpenFallback is a fallback function for the downstream circuit
// breakers. When a circuit is open, it returns a structured error with a
// retry hint instead of letting the raw ErrCircuitOpen propagate.
func CircuitOpenFallback(_ context.Context, _ error) (*http.Response, error) {
	return nil, apperrors.ServiceUnavailable("downstream service is temporarily unavailable, please retry after 30 seconds")
}

// CartFetcher reads carts from the cart service.
type CartFetcher interface {
	GetCart(ctx context.Context, cartID string) (*client.Cart, error)
	GetDeviceCart(ctx context.Context, deviceCartID string) (*client.Cart, error)
}

// ShippingGateway validates addresses and resolves shipping rates.
type ShippingGateway interface {
	ValidateAddress(ctx context.Context, addr *domain.Address) (*domain.Address, error)
	GetRate(ctx context.Context, zone, method string) (int64, error)
}

// PaymentGateway lists payment methods and manages authorization holds.
type PaymentGateway interface {
	ListMethods(ctx context.Context, ownerID string) ([]client.PaymentMethod, error)
	Authorize(ctx context.Context, methodID string, amountMinor int64, currency, idempotencyKey string) (string, error)
	Void(ctx context.Context, authorizationID string) error
}

// InventoryGateway places and releases stock reservations.
type InventoryGateway interface {
	Reserve(ctx context.Context, lines []domain.SnapshotItem, idempotencyKey string) (string, error)
	Release(ctx context.Context, reservationID string) error
}

// OrderGateway creates and cancels orders.
type OrderGateway interface {
	CreateOrder(ctx context.Context, in client.CreateOrderInput) (string, error)
	CancelOrder(ctx context.Context, orderID string) error
}

// Pricer computes pricing breakdowns for preview and completion.
type Pricer interface {
	Preview(ctx context.Context, snapshot []domain.SnapshotItem, quote *domain.ShippingQuote,
		addr *domain.Address, discountCode, owner string) (*domain.Pricing, error)
}

// LeaseManager guards the completion saga with a single-writer lease.
type LeaseManager interface {
	Acquire(ctx context.Context, sessionID string) (*lease.Lease, bool, error)
	Release(ctx context.Context, l *lease.Lease) error
}

// Adapters bundles the downstream service clients the saga orchestrates.
type Adapters struct {
	Cart      CartFetcher
	Shipping  ShippingGateway
	Payment   PaymentGateway
	Inventory InventoryGateway
	Order     OrderGateway
}

// SagaTimeouts holds per-step timeout configuration for the completion saga.
// A zero value means no per-step timeout (inherits the parent context timeout).
type SagaTimeouts struct {
	InventoryTimeout time.Duration
	PaymentTimeout   time.Duration
	OrderTimeout     time.Duration
}

// Options holds tunables for the checkout service.
type Options struct {
	SessionTTL           time.Duration
	SagaTimeouts         SagaTimeouts
	CompensationAttempts int
}

// Owner identifies the caller: an authenticated user or a guest device.
// Exactly one of the two fields is set.
type Owner struct {
	UserID   string
	DeviceID string
}

// ID returns the owning identifier regardless of kind.
func (o Owner) ID() string {
	if o.UserID != "" {
		return o.UserID
	}
	return o.DeviceID
}

func (o Owner) validate() error {
	if o.UserID == "" && o.DeviceID == "" {
		return apperrors.Unauthorized("a user or device identity is required")
	}
	if o.UserID != "" && o.DeviceID != "" {
		return apperrors.InvalidInput("provide either a user or a device identity, not both")
	}
	return nil
}

// CheckoutService implements the business logic for checkout orchestration.
type CheckoutService struct {
	repo     repository.SessionRepository
	producer *event.Producer
	pricer   Pricer
	leases   LeaseManager
	adapters Adapters
	logger   *slog.Logger
	opts     Options
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(
	repo repository.SessionRepository,
	producer *event.Producer,
	pricer Pricer,
	leases LeaseManager,
	adapters Adapters,
	logger *slog.Logger,
	opts Options,
) *CheckoutService {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = defaultSessionTTL
	}
	if opts.CompensationAttempts <= 0 {
		opts.CompensationAttempts = defaultCompensationAttempts
	}
	return &CheckoutService{
		repo:     repo,
		producer: producer,
		pricer:   pricer,
		leases:   leases,
		adapters: adapters,
		logger:   logger,
		opts:     opts,
	}
}

// CreateSessionInput holds the parameters for creating a checkout session.
type CreateSessionInput struct {
	CartID       string `json:"cart_id,omitempty" validate:"omitempty,uuid"`
	DeviceCartID string `json:"device_cart_id,omitempty" validate:"omitempty,uuid"`
}

// CreateSession freezes the caller's cart into a new checkout session.
func (s *CheckoutService) CreateSession(ctx context.Context, owner Owner, input *CreateSessionInput) (*domain.CheckoutSession, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}
	if input == nil || (input.CartID == "" && input.DeviceCartID == "") {
		return nil, apperrors.InvalidInput("cart_id or device_cart_id is required")
	}
	if input.CartID != "" && input.DeviceCartID != "" {
		return nil, apperrors.InvalidInput("provide either cart_id or device_cart_id, not both")
	}

	var (
		cart *client.Cart
		err  error
	)
	if input.CartID != "" {
		cart, err = s.adapters.Cart.GetCart(ctx, input.CartID)
	} else {
		cart, err = s.adapters.Cart.GetDeviceCart(ctx, input.DeviceCartID)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch cart: %w", err)
	}

	now := time.Now().UTC()
	session := &domain.CheckoutSession{
		ID:           uuid.New().String(),
		UserID:       owner.UserID,
		DeviceID:     owner.DeviceID,
		Status:       domain.StatusCreated,
		CartSnapshot: cart.Items,
		Currency:     cart.Currency,
		Version:      1,
		ExpiresAt:    now.Add(s.opts.SessionTTL),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	s.publish(ctx, event.TopicCheckoutCreated, session, s.producer.PublishCheckoutCreated)

	s.logger.InfoContext(ctx, "checkout session created",
		slog.String("session_id", session.ID),
		slog.String("owner", session.Owner()),
		slog.Int("items", len(session.CartSnapshot)),
		slog.Int64("subtotal_minor", session.Subtotal()),
	)

	return session, nil
}

// GetSession retrieves a checkout session. Reading a session past its expiry
// transitions it to expired first (lazy expiry), so the caller never sees a
// stale active status.
func (s *CheckoutService) GetSession(ctx context.Context, owner Owner, sessionID string) (*domain.CheckoutSession, error) {
	session, err := s.loadOwned(ctx, owner, sessionID)
	if err != nil {
		return nil, err
	}

	if session.IsExpired(time.Now().UTC()) && !session.IsTerminal() {
		if err := s.ExpireSession(ctx, session); err != nil {
			return nil, fmt.Errorf("expire session on read: %w", err)
		}
	}

	return session, nil
}

// SetAddress validates and stores the shipping address. Re-setting the
// address clears any shipping quote and pricing computed for the previous
// destination.
func (s *CheckoutService) SetAddress(ctx context.Context, owner Owner, sessionID string, addr *domain.Address) (*domain.CheckoutSession, error) {
	if addr == nil {
		return nil, apperrors.InvalidInput("address is required")
	}

	session, err := s.loadActive(ctx, owner, sessionID)
	if err != nil {
		return nil, err
	}

	normalized, err := s.adapters.Shipping.ValidateAddress(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("validate address: %w", err)
	}

	if err := session.SetAddress(normalized); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("update session address: %w", err)
	}

	s.logger.InfoContext(ctx, "address set",
		slog.String("session_id", session.ID),
		slog.String("postal_code", normalized.PostalCode),
	)

	return session, nil
}

// SelectShipping computes the zone, rate, and delivery estimate for the
// chosen method and stores the quote.
func (s *CheckoutService) SelectShipping(ctx context.Context, owner Owner, sessionID, method string) (*domain.CheckoutSession, error) {
	if !shipping.ValidMethod(method) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown shipping method %q", method))
	}

	session, err := s.loadActive(ctx, owner, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Address == nil {
		return nil, apperrors.Conflict("shipping requires an address")
	}

	eta := shipping.CalculateETA(session.Address.PostalCode, method)

	rate, err := s.adapters.Shipping.GetRate(ctx, eta.Zone, method)
	if err != nil {
		return nil, fmt.Errorf("get shipping rate: %w", err)
	}

	quote := &domain.ShippingQuote{
		Method:        method,
		Zone:          eta.Zone,
		RateMinor:     rate,
		BusinessDays:  eta.BusinessDays,
		CalendarDays:  eta.CalendarDays,
		EstimatedDate: eta.EstimatedDate,
	}

	if err := session.SelectShipping(quote); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("update session shipping: %w", err)
	}

	s.logger.InfoContext(ctx, "shipping selected",
		slog.String("session_id", session.ID),
		slog.String("method", method),
		slog.String("zone", eta.Zone),
		slog.Int64("rate_minor", rate),
	)

	return session, nil
}

// SelectPayment stores the chosen payment method after confirming it belongs
// to the session owner.
func (s *CheckoutService) SelectPayment(ctx context.Context, owner Owner, sessionID, methodID string) (*domain.CheckoutSession, error) {
	if methodID == "" {
		return nil, apperrors.InvalidInput("payment_method_id is required")
	}

	session, err := s.loadActive(ctx, owner, sessionID)
	if err != nil {
		return nil, err
	}

	methods, err := s.adapters.Payment.ListMethods(ctx, owner.ID())
	if err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	known := false
	for _, m := range methods {
		if m.ID == methodID {
			known = true
			break
		}
	}
	if !known {
		return nil, apperrors.InvalidInput(fmt.Sprintf("payment method %s is not available for this owner", methodID))
	}

	if err := session.SelectPayment(methodID); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("update session payment: %w", err)
	}

	s.logger.InfoContext(ctx, "payment method selected",
		slog.String("session_id", session.ID),
		slog.String("payment_method_id", methodID),
	)

	return session, nil
}

// Preview recomputes the full pricing breakdown server-side and moves the
// session to previewed. An invalid discount code zeroes the discount with a
// warning instead of failing.
func (s *CheckoutService) Preview(ctx context.Context, owner Owner, sessionID, discountCode string) (*domain.CheckoutSession, error) {
	session, err := s.loadActive(ctx, owner, sessionID)
	if err != nil {
		return nil, err
	}

	if discountCode != "" {
		session.DiscountCode = discountCode
	}

	breakdown, err := s.pricer.Preview(ctx, session.CartSnapshot, session.ShippingQuote,
		session.Address, session.DiscountCode, session.Owner())
	if err != nil {
		if session.ShippingQuote == nil {
			return nil, apperrors.Conflict("preview requires a shipping quote")
		}
		return nil, fmt.Errorf("compute pricing: %w", err)
	}

	if err := session.ApplyPricing(breakdown); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("update session pricing: %w", err)
	}

	s.logger.InfoContext(ctx, "pricing previewed",
		slog.String("session_id", session.ID),
		slog.Int64("total_minor", breakdown.TotalMinor),
	)

	return session, nil
}

// Complete runs the completion saga: reserve inventory, authorize payment,
// create the order, then commit the session. Completion is idempotent by
// session id; a second call after success returns the same order id without
// repeating any side effect.
func (s *CheckoutService) Complete(ctx context.Context, owner Owner, sessionID string) (*domain.CheckoutSession, error) {
	session, err := s.loadOwned(ctx, owner, sessionID)
	if err != nil {
		return nil, err
	}

	// Idempotent short-circuit: the order already exists.
	if session.Status == domain.StatusCompleted && session.OrderID != "" {
		return session, nil
	}

	if expired, err := s.expireIfPast(ctx, session); err != nil {
		return session, err
	} else if expired {
		return session, apperrors.Gone("checkout session has expired")
	}

	if session.Status != domain.StatusPreviewed {
		return session, apperrors.Conflict(fmt.Sprintf("cannot complete while session is %s", session.Status))
	}

	// Single writer per session: everyone else conflicts and retries
	// against the idempotent short-circuit.
	held, ok, err := s.leases.Acquire(ctx, session.ID)
	if err != nil {
		return session, fmt.Errorf("acquire completion lease: %w", err)
	}
	if !ok {
		return session, apperrors.Conflict("completion is already in progress for this session")
	}
	defer func() {
		if err := s.leases.Release(ctx, held); err != nil {
			s.logger.ErrorContext(ctx, "failed to release completion lease",
				slog.String("session_id", session.ID),
				slog.String("error", err.Error()),
			)
		}
	}()

	// Re-read under the lease: a previous holder may have finished between
	// our first read and the acquire.
	session, err = s.repo.GetByID(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("reload session under lease: %w", err)
	}
	if session.Status == domain.StatusCompleted && session.OrderID != "" {
		return session, nil
	}
	if session.Status != domain.StatusPreviewed {
		return session, apperrors.Conflict(fmt.Sprintf("cannot complete while session is %s", session.Status))
	}

	return s.runSaga(ctx, session)
}

// runSaga executes the completion steps, recording each hold durably before
// moving on so a crash leaves enough state behind to reconcile.
func (s *CheckoutService) runSaga(ctx context.Context, session *domain.CheckoutSession) (*domain.CheckoutSession, error) {
	// Step 1: reserve inventory.
	reservationID, err := s.reserveInventory(ctx, session)
	if err != nil {
		sagaSteps.WithLabelValues(domain.StepReserveInventory, "failure").Inc()
		return s.failSaga(ctx, session, fmt.Errorf("reserve inventory: %w", err))
	}
	sagaSteps.WithLabelValues(domain.StepReserveInventory, "success").Inc()
	session.RecordHold(domain.StepReserveInventory, domain.ActionReleaseReservation, reservationID)
	if err := s.repo.Update(ctx, session); err != nil {
		return s.failSaga(ctx, session, fmt.Errorf("persist reservation hold: %w", err))
	}

	// Step 2: authorize payment.
	authID, err := s.authorizePayment(ctx, session)
	if err != nil {
		sagaSteps.WithLabelValues(domain.StepAuthorizePayment, "failure").Inc()
		return s.failSaga(ctx, session, fmt.Errorf("authorize payment: %w", err))
	}
	sagaSteps.WithLabelValues(domain.StepAuthorizePayment, "success").Inc()
	session.RecordHold(domain.StepAuthorizePayment, domain.ActionVoidAuthorization, authID)
	if err := s.repo.Update(ctx, session); err != nil {
		return s.failSaga(ctx, session, fmt.Errorf("persist authorization hold: %w", err))
	}

	// Step 3: create the order.
	orderID, err := s.createOrder(ctx, session, reservationID, authID)
	if err != nil {
		sagaSteps.WithLabelValues(domain.StepCreateOrder, "failure").Inc()
		return s.failSaga(ctx, session, fmt.Errorf("create order: %w", err))
	}
	sagaSteps.WithLabelValues(domain.StepCreateOrder, "success").Inc()
	session.RecordHold(domain.StepCreateOrder, domain.ActionCancelOrder, orderID)
	if err := s.repo.Update(ctx, session); err != nil {
		return s.failSaga(ctx, session, fmt.Errorf("persist order hold: %w", err))
	}

	// Step 4: commit. The order consumes the holds, so the commit write
	// resolves them and sets the terminal status in one CAS. The write runs
	// against a copy: until it succeeds, the session still carries all
	// three holds pending so a commit failure compensates every step.
	commit := session.Clone()
	for _, hold := range commit.PendingHolds() {
		commit.ResolveHold(hold.Step, domain.CompensationCompleted, 0, "")
	}
	if err := commit.MarkCompleted(orderID); err != nil {
		return s.failSaga(ctx, session, fmt.Errorf("mark completed: %w", err))
	}

	if err := s.repo.Update(ctx, commit); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			// Another writer got here first; with idempotency keys its
			// saga produced the same order.
			current, readErr := s.repo.GetByID(ctx, session.ID)
			if readErr == nil && current.Status == domain.StatusCompleted && current.OrderID != "" {
				return current, nil
			}
		}
		return s.failSaga(ctx, session, fmt.Errorf("commit completed session: %w", err))
	}
	session = commit

	s.publish(ctx, event.TopicCheckoutCompleted, session, s.producer.PublishCheckoutCompleted)

	s.logger.InfoContext(ctx, "checkout completed",
		slog.String("session_id", session.ID),
		slog.String("order_id", session.OrderID),
	)

	return session, nil
}

// failSaga compensates every live hold in reverse order, marks the session
// failed, and surfaces the step error. An unrecoverable compensation flags
// the session for reconciliation instead of being dropped.
func (s *CheckoutService) failSaga(ctx context.Context, session *domain.CheckoutSession, stepErr error) (*domain.CheckoutSession, error) {
	s.logger.ErrorContext(ctx, "completion saga failed, compensating",
		slog.String("session_id", session.ID),
		slog.String("error", stepErr.Error()),
	)

	compensationFailed := s.releaseHolds(ctx, session)
	if compensationFailed {
		session.NeedsReconciliation = true
	}

	if err := session.MarkFailed(stepErr.Error()); err != nil {
		s.logger.ErrorContext(ctx, "could not mark session failed",
			slog.String("session_id", session.ID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.repo.Update(ctx, session); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist failed session",
			slog.String("session_id", session.ID),
			slog.String("error", err.Error()),
		)
	}

	s.publish(ctx, event.TopicCheckoutFailed, session, s.producer.PublishCheckoutFailed)

	if compensationFailed {
		return session, apperrors.CompensationFailed(fmt.Sprintf("checkout failed and compensation did not fully complete: %v", stepErr))
	}
	return session, stepErr
}

// releaseHolds undoes every pending hold in reverse step order, retrying each
// compensating action with bounded exponential backoff. Returns true when at
// least one hold could not be released.
func (s *CheckoutService) releaseHolds(ctx context.Context, session *domain.CheckoutSession) bool {
	anyFailed := false
	for _, hold := range session.PendingHolds() {
		attempts, err := s.compensate(ctx, hold)
		if err != nil {
			anyFailed = true
			session.ResolveHold(hold.Step, domain.CompensationFailed, attempts, err.Error())
			s.logger.ErrorContext(ctx, "compensating action failed",
				slog.String("session_id", session.ID),
				slog.String("action", hold.Action),
				slog.String("ref", hold.Ref),
				slog.Int("attempts", attempts),
				slog.String("error", err.Error()),
			)
			continue
		}
		session.ResolveHold(hold.Step, domain.CompensationCompleted, attempts, "")
		s.logger.InfoContext(ctx, "compensating action completed",
			slog.String("session_id", session.ID),
			slog.String("action", hold.Action),
			slog.String("ref", hold.Ref),
		)
	}
	return anyFailed
}

// compensate runs one compensating action with bounded backoff.
func (s *CheckoutService) compensate(ctx context.Context, hold domain.CompensationEntry) (int, error) {
	var action func(context.Context, string) error
	switch hold.Action {
	case domain.ActionReleaseReservation:
		action = s.adapters.Inventory.Release
	case domain.ActionVoidAuthorization:
		action = s.adapters.Payment.Void
	case domain.ActionCancelOrder:
		action = s.adapters.Order.CancelOrder
	default:
		return 0, fmt.Errorf("unknown compensating action %q", hold.Action)
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 200 * time.Millisecond
	exp.MaxInterval = 2 * time.Second

	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		return struct{}{}, action(ctx, hold.Ref)
	},
		backoff.WithBackOff(exp),
		backoff.WithMaxTries(uint(s.opts.CompensationAttempts)),
	)
	return attempts, err
}

// Cancel cancels a non-terminal session, releasing any holds left behind by
// an interrupted saga. A session past its expiry is expired instead, with
// the same hold release either way.
func (s *CheckoutService) Cancel(ctx context.Context, owner Owner, sessionID string) (*domain.CheckoutSession, error) {
	session, err := s.loadOwned(ctx, owner, sessionID)
	if err != nil {
		return nil, err
	}

	if expired, err := s.expireIfPast(ctx, session); err != nil {
		return session, err
	} else if expired {
		return session, apperrors.Gone("checkout session has expired")
	}

	if compensationFailed := s.releaseHolds(ctx, session); compensationFailed {
		session.NeedsReconciliation = true
	}

	if err := session.MarkCancelled(); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("update cancelled session: %w", err)
	}

	s.publish(ctx, event.TopicCheckoutCancelled, session, s.producer.PublishCheckoutCancelled)

	s.logger.InfoContext(ctx, "checkout cancelled",
		slog.String("session_id", session.ID),
		slog.String("owner", session.Owner()),
	)

	return session, nil
}

// ExpireSession transitions a session past its expiry to expired, releasing
// outstanding holds first. Used by both lazy expiry on read and the
// background sweep.
func (s *CheckoutService) ExpireSession(ctx context.Context, session *domain.CheckoutSession) error {
	if compensationFailed := s.releaseHolds(ctx, session); compensationFailed {
		session.NeedsReconciliation = true
	}

	if err := session.MarkExpired(); err != nil {
		return err
	}

	if err := s.repo.Update(ctx, session); err != nil {
		return fmt.Errorf("update expired session: %w", err)
	}

	s.publish(ctx, event.TopicCheckoutExpired, session, s.producer.PublishCheckoutExpired)

	s.logger.InfoContext(ctx, "checkout session expired",
		slog.String("session_id", session.ID),
	)

	return nil
}

// --- saga steps ---

func (s *CheckoutService) reserveInventory(ctx context.Context, session *domain.CheckoutSession) (string, error) {
	ctx, cancel := withTimeout(ctx, s.opts.SagaTimeouts.InventoryTimeout)
	defer cancel()
	return s.adapters.Inventory.Reserve(ctx, session.CartSnapshot, session.ID)
}

func (s *CheckoutService) authorizePayment(ctx context.Context, session *domain.CheckoutSession) (string, error) {
	ctx, cancel := withTimeout(ctx, s.opts.SagaTimeouts.PaymentTimeout)
	defer cancel()

	if session.Pricing == nil {
		return "", apperrors.Conflict("completion requires a pricing preview")
	}
	return s.adapters.Payment.Authorize(ctx, session.PaymentMethodID, session.Pricing.TotalMinor, session.Currency, session.ID)
}

func (s *CheckoutService) createOrder(ctx context.Context, session *domain.CheckoutSession, reservationID, authID string) (string, error) {
	ctx, cancel := withTimeout(ctx, s.opts.SagaTimeouts.OrderTimeout)
	defer cancel()

	in := client.CreateOrderInput{
		SessionID:     session.ID,
		OwnerID:       session.Owner(),
		Items:         session.CartSnapshot,
		Address:       session.Address,
		Pricing:       session.Pricing,
		Currency:      session.Currency,
		PaymentAuthID: authID,
		ReservationID: reservationID,
	}
	if session.ShippingQuote != nil {
		in.ShippingMethod = session.ShippingQuote.Method
	}
	return s.adapters.Order.CreateOrder(ctx, in)
}

// --- helpers ---

// loadOwned loads the session and enforces ownership.
func (s *CheckoutService) loadOwned(ctx context.Context, owner Owner, sessionID string) (*domain.CheckoutSession, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}
	if sessionID == "" {
		return nil, apperrors.InvalidInput("session id is required")
	}

	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get checkout session: %w", err)
	}

	if session.UserID != owner.UserID || session.DeviceID != owner.DeviceID {
		return nil, apperrors.Forbidden("session does not belong to the caller")
	}

	return session, nil
}

// loadActive is loadOwned plus lazy expiry and a terminal-state guard, for
// the mutating pre-completion operations.
func (s *CheckoutService) loadActive(ctx context.Context, owner Owner, sessionID string) (*domain.CheckoutSession, error) {
	session, err := s.loadOwned(ctx, owner, sessionID)
	if err != nil {
		return nil, err
	}

	if expired, err := s.expireIfPast(ctx, session); err != nil {
		return nil, err
	} else if expired {
		return nil, apperrors.Gone("checkout session has expired")
	}

	if session.IsTerminal() {
		return nil, apperrors.Conflict(fmt.Sprintf("session is %s", session.Status))
	}

	return session, nil
}

// expireIfPast applies lazy expiry, returning whether the session is (now)
// expired.
func (s *CheckoutService) expireIfPast(ctx context.Context, session *domain.CheckoutSession) (bool, error) {
	if session.Status == domain.StatusExpired {
		return true, nil
	}
	if session.IsTerminal() || !session.IsExpired(time.Now().UTC()) {
		return false, nil
	}
	if err := s.ExpireSession(ctx, session); err != nil {
		return true, fmt.Errorf("expire session: %w", err)
	}
	return true, nil
}

// publish sends a domain event; publish errors are logged, never surfaced.
func (s *CheckoutService) publish(ctx context.Context, topic string, session *domain.CheckoutSession, fn func(context.Context, *domain.CheckoutSession) error) {
	if err := fn(ctx, session); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish event",
			slog.String("topic", topic),
			slog.String("session_id", session.ID),
			slog.String("error", err.Error()),
		)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return ctx, func() {}
}
