package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/checkout-service/internal/domain"
	pkgkafka "github.com/utafrali/checkout-service/pkg/kafka"
	"github.com/utafrali/checkout-service/pkg/logger"
)

// Kafka topic constants for checkout domain events.
const (
	TopicCheckoutCreated   = "ecommerce.checkout.created"
	TopicCheckoutCompleted = "ecommerce.checkout.completed"
	TopicCheckoutFailed    = "ecommerce.checkout.failed"
	TopicCheckoutExpired   = "ecommerce.checkout.expired"
	TopicCheckoutCancelled = "ecommerce.checkout.cancelled"
)

// Aggregate type constant.
const AggregateTypeCheckout = "checkout"

// Source identifier for events originating from the checkout service.
const SourceCheckoutService = "checkout-service"

// CheckoutCreatedData is the payload for a checkout.created event.
type CheckoutCreatedData struct {
	ID            string                `json:"id"`
	Owner         string                `json:"owner"`
	Items         []domain.SnapshotItem `json:"items"`
	SubtotalMinor int64                 `json:"subtotal_minor"`
	Currency      string                `json:"currency"`
	ExpiresAt     string                `json:"expires_at"`
}

// CheckoutCompletedData is the payload for a checkout.completed event.
type CheckoutCompletedData struct {
	ID         string `json:"id"`
	Owner      string `json:"owner"`
	OrderID    string `json:"order_id"`
	TotalMinor int64  `json:"total_minor"`
	Currency   string `json:"currency"`
}

// CheckoutFailedData is the payload for a checkout.failed event.
type CheckoutFailedData struct {
	ID                  string `json:"id"`
	Owner               string `json:"owner"`
	FailureReason       string `json:"failure_reason"`
	NeedsReconciliation bool   `json:"needs_reconciliation"`
}

// CheckoutExpiredData is the payload for a checkout.expired event.
type CheckoutExpiredData struct {
	ID        string `json:"id"`
	Owner     string `json:"owner"`
	ExpiredAt string `json:"expired_at"`
}

// CheckoutCancelledData is the payload for a checkout.cancelled event.
type CheckoutCancelledData struct {
	ID    string `json:"id"`
	Owner string `json:"owner"`
}

// Producer publishes checkout domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the checkout service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishCheckoutCreated publishes a checkout.created event.
func (p *Producer) PublishCheckoutCreated(ctx context.Context, session *domain.CheckoutSession) error {
	data := CheckoutCreatedData{
		ID:            session.ID,
		Owner:         session.Owner(),
		Items:         session.CartSnapshot,
		SubtotalMinor: session.Subtotal(),
		Currency:      session.Currency,
		ExpiresAt:     session.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	return p.publish(ctx, TopicCheckoutCreated, session.ID, data)
}

// PublishCheckoutCompleted publishes a checkout.completed event.
func (p *Producer) PublishCheckoutCompleted(ctx context.Context, session *domain.CheckoutSession) error {
	data := CheckoutCompletedData{
		ID:       session.ID,
		Owner:    session.Owner(),
		OrderID:  session.OrderID,
		Currency: session.Currency,
	}
	if session.Pricing != nil {
		data.TotalMinor = session.Pricing.TotalMinor
	}
	return p.publish(ctx, TopicCheckoutCompleted, session.ID, data)
}

// PublishCheckoutFailed publishes a checkout.failed event.
func (p *Producer) PublishCheckoutFailed(ctx context.Context, session *domain.CheckoutSession) error {
	data := CheckoutFailedData{
		ID:                  session.ID,
		Owner:               session.Owner(),
		FailureReason:       session.FailureReason,
		NeedsReconciliation: session.NeedsReconciliation,
	}
	return p.publish(ctx, TopicCheckoutFailed, session.ID, data)
}

// PublishCheckoutExpired publishes a checkout.expired event.
func (p *Producer) PublishCheckoutExpired(ctx context.Context, session *domain.CheckoutSession) error {
	data := CheckoutExpiredData{
		ID:        session.ID,
		Owner:     session.Owner(),
		ExpiredAt: session.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	return p.publish(ctx, TopicCheckoutExpired, session.ID, data)
}

// PublishCheckoutCancelled publishes a checkout.cancelled event.
func (p *Producer) PublishCheckoutCancelled(ctx context.Context, session *domain.CheckoutSession) error {
	data := CheckoutCancelledData{
		ID:    session.ID,
		Owner: session.Owner(),
	}
	return p.publish(ctx, TopicCheckoutCancelled, session.ID, data)
}

func (p *Producer) publish(ctx context.Context, topic, sessionID string, data any) error {
	event, err := pkgkafka.NewEvent(topic, sessionID, AggregateTypeCheckout, SourceCheckoutService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if cid := logger.CorrelationIDFromContext(ctx); cid != "" {
		event.WithCorrelationID(cid)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published checkout event",
		slog.String("topic", topic),
		slog.String("checkout_id", sessionID),
	)

	return nil
}
