package repository

import (
	"context"
	"time"

	"github.com/utafrali/checkout-service/internal/domain"
)

// SessionRepository defines the interface for checkout session persistence.
// All mutations go through Update's compare-and-swap contract: concurrent
// writers racing on the same session see one winner, the rest get a conflict
// and must re-read.
type SessionRepository interface {
	// Create inserts a new checkout session into the store.
	Create(ctx context.Context, session *domain.CheckoutSession) error

	// GetByID retrieves a checkout session by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.CheckoutSession, error)

	// Update writes the session conditioned on session.Version matching the
	// stored version. On success the stored and in-memory versions are
	// incremented; on a mismatch a conflict error is returned and nothing is
	// written.
	Update(ctx context.Context, session *domain.CheckoutSession) error

	// ListExpired returns non-terminal sessions whose expiry has passed.
	ListExpired(ctx context.Context, before time.Time) ([]domain.CheckoutSession, error)

	// DeleteTerminalBefore removes terminal sessions last updated before the
	// cutoff, returning the number deleted. Used by the retention sweep.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
