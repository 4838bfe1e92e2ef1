package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/checkout-service/internal/domain"
	"github.com/utafrali/checkout-service/pkg/database"
	apperrors "github.com/utafrali/checkout-service/pkg/errors"
)

// terminalStatuses is the SQL fragment listing terminal session states.
const terminalStatuses = "('completed', 'expired', 'cancelled', 'failed')"

// SessionRepository implements repository.SessionRepository using PostgreSQL.
// The version column carries the optimistic-concurrency contract: every
// update is conditioned on the caller's last-seen version.
type SessionRepository struct {
	db database.DBTX
}

// NewSessionRepository creates a new PostgreSQL-backed session repository.
func NewSessionRepository(db database.DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new checkout session. The session starts at version 1.
func (r *SessionRepository) Create(ctx context.Context, session *domain.CheckoutSession) (err error) {
	ctx, end := database.TraceQuery(ctx, "CreateSession", "INSERT INTO checkout_sessions")
	defer func() { end(err) }()

	snapshotJSON, addressJSON, quoteJSON, pricingJSON, logJSON, err := marshalFields(session)
	if err != nil {
		return err
	}

	if session.Version == 0 {
		session.Version = 1
	}

	query := `
		INSERT INTO checkout_sessions (
			id, user_id, device_id, status, currency,
			cart_snapshot, address, shipping_quote,
			payment_method_id, discount_code, pricing,
			version, compensation_log, order_id,
			needs_reconciliation, failure_reason,
			expires_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10, $11,
			$12, $13, $14,
			$15, $16,
			$17, $18, $19
		)`

	_, err = r.db.Exec(ctx, query,
		session.ID,
		nullableString(session.UserID),
		nullableString(session.DeviceID),
		session.Status,
		session.Currency,
		snapshotJSON,
		addressJSON,
		quoteJSON,
		nullableString(session.PaymentMethodID),
		nullableString(session.DiscountCode),
		pricingJSON,
		session.Version,
		logJSON,
		nullableString(session.OrderID),
		session.NeedsReconciliation,
		nullableString(session.FailureReason),
		session.ExpiresAt,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert checkout session: %w", err)
	}

	return nil
}

// GetByID retrieves a checkout session by its ID.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (session *domain.CheckoutSession, err error) {
	ctx, end := database.TraceQuery(ctx, "GetSession", "SELECT FROM checkout_sessions WHERE id")
	defer func() { end(err) }()

	query := selectColumns + ` FROM checkout_sessions WHERE id = $1`

	row := r.db.QueryRow(ctx, query, id)
	session, err = scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("checkout_session", id)
		}
		return nil, fmt.Errorf("get checkout session: %w", err)
	}
	return session, nil
}

// Update writes the session with a compare-and-swap on the version column.
// On a version mismatch nothing is written and a conflict error is returned;
// the caller must re-read and retry. On success both the stored and the
// in-memory version are incremented.
func (r *SessionRepository) Update(ctx context.Context, session *domain.CheckoutSession) (err error) {
	ctx, end := database.TraceQuery(ctx, "UpdateSession", "UPDATE checkout_sessions SET version = version + 1 WHERE id AND version")
	defer func() { end(err) }()

	snapshotJSON, addressJSON, quoteJSON, pricingJSON, logJSON, err := marshalFields(session)
	if err != nil {
		return err
	}

	session.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE checkout_sessions
		SET status = $1, cart_snapshot = $2, address = $3, shipping_quote = $4,
			payment_method_id = $5, discount_code = $6, pricing = $7,
			compensation_log = $8, order_id = $9,
			needs_reconciliation = $10, failure_reason = $11,
			expires_at = $12, updated_at = $13,
			version = version + 1
		WHERE id = $14 AND version = $15`

	ct, err := r.db.Exec(ctx, query,
		session.Status,
		snapshotJSON,
		addressJSON,
		quoteJSON,
		nullableString(session.PaymentMethodID),
		nullableString(session.DiscountCode),
		pricingJSON,
		logJSON,
		nullableString(session.OrderID),
		session.NeedsReconciliation,
		nullableString(session.FailureReason),
		session.ExpiresAt,
		session.UpdatedAt,
		session.ID,
		session.Version,
	)
	if err != nil {
		return fmt.Errorf("update checkout session: %w", err)
	}

	if ct.RowsAffected() == 0 {
		// Distinguish a stale version from a missing row.
		var stored int64
		err := r.db.QueryRow(ctx, `SELECT version FROM checkout_sessions WHERE id = $1`, session.ID).Scan(&stored)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("checkout_session", session.ID)
		}
		if err != nil {
			return fmt.Errorf("check session version: %w", err)
		}
		return apperrors.Conflict(fmt.Sprintf(
			"session %s was modified concurrently (expected version %d, stored %d)",
			session.ID, session.Version, stored,
		))
	}

	session.Version++
	return nil
}

// ListExpired returns non-terminal sessions whose expiry passed before the
// given time, oldest first.
func (r *SessionRepository) ListExpired(ctx context.Context, before time.Time) (sessions []domain.CheckoutSession, err error) {
	ctx, end := database.TraceQuery(ctx, "ListExpiredSessions", "SELECT FROM checkout_sessions WHERE expires_at < now AND status NOT IN terminal")
	defer func() { end(err) }()

	query := selectColumns + `
		FROM checkout_sessions
		WHERE expires_at < $1 AND status NOT IN ` + terminalStatuses + `
		ORDER BY expires_at ASC`

	rows, err := r.db.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("list expired sessions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expired session row: %w", err)
		}
		sessions = append(sessions, *session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired session rows: %w", err)
	}

	if sessions == nil {
		sessions = []domain.CheckoutSession{}
	}

	return sessions, nil
}

// DeleteTerminalBefore removes terminal sessions last touched before the
// cutoff. This is the retention garbage collection, not a business operation.
func (r *SessionRepository) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (deleted int64, err error) {
	ctx, end := database.TraceQuery(ctx, "DeleteTerminalSessions", "DELETE FROM checkout_sessions WHERE updated_at < cutoff AND status IN terminal")
	defer func() { end(err) }()

	query := `
		DELETE FROM checkout_sessions
		WHERE updated_at < $1 AND status IN ` + terminalStatuses

	ct, err := r.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete terminal sessions: %w", err)
	}
	return ct.RowsAffected(), nil
}

// selectColumns is the shared column list for session reads.
const selectColumns = `
	SELECT id, user_id, device_id, status, currency,
		cart_snapshot, address, shipping_quote,
		payment_method_id, discount_code, pricing,
		version, compensation_log, order_id,
		needs_reconciliation, failure_reason,
		expires_at, created_at, updated_at`

// scanSession scans a single session from a row. pgx.Row and pgx.Rows share
// the Scan signature.
func scanSession(row interface{ Scan(dest ...any) error }) (*domain.CheckoutSession, error) {
	var (
		session         domain.CheckoutSession
		userID          *string
		deviceID        *string
		snapshotJSON    []byte
		addressJSON     []byte
		quoteJSON       []byte
		paymentMethodID *string
		discountCode    *string
		pricingJSON     []byte
		logJSON         []byte
		orderID         *string
		failureReason   *string
	)

	if err := row.Scan(
		&session.ID,
		&userID,
		&deviceID,
		&session.Status,
		&session.Currency,
		&snapshotJSON,
		&addressJSON,
		&quoteJSON,
		&paymentMethodID,
		&discountCode,
		&pricingJSON,
		&session.Version,
		&logJSON,
		&orderID,
		&session.NeedsReconciliation,
		&failureReason,
		&session.ExpiresAt,
		&session.CreatedAt,
		&session.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if err := unmarshalFields(&session, snapshotJSON, addressJSON, quoteJSON, pricingJSON, logJSON); err != nil {
		return nil, err
	}

	session.UserID = deref(userID)
	session.DeviceID = deref(deviceID)
	session.PaymentMethodID = deref(paymentMethodID)
	session.DiscountCode = deref(discountCode)
	session.OrderID = deref(orderID)
	session.FailureReason = deref(failureReason)

	return &session, nil
}

// marshalFields serializes the session's JSONB columns.
func marshalFields(session *domain.CheckoutSession) (snapshot, address, quote, pricing, compLog []byte, err error) {
	if snapshot, err = json.Marshal(session.CartSnapshot); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("marshal cart snapshot: %w", err)
	}
	if address, err = json.Marshal(session.Address); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("marshal address: %w", err)
	}
	if quote, err = json.Marshal(session.ShippingQuote); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("marshal shipping quote: %w", err)
	}
	if pricing, err = json.Marshal(session.Pricing); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("marshal pricing: %w", err)
	}
	if compLog, err = json.Marshal(session.CompensationLog); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("marshal compensation log: %w", err)
	}
	return snapshot, address, quote, pricing, compLog, nil
}

// unmarshalFields deserializes the session's JSONB columns.
func unmarshalFields(session *domain.CheckoutSession, snapshotJSON, addressJSON, quoteJSON, pricingJSON, logJSON []byte) error {
	if snapshotJSON != nil {
		if err := json.Unmarshal(snapshotJSON, &session.CartSnapshot); err != nil {
			return fmt.Errorf("unmarshal cart snapshot: %w", err)
		}
	}
	if session.CartSnapshot == nil {
		session.CartSnapshot = []domain.SnapshotItem{}
	}

	if notNull(addressJSON) {
		var addr domain.Address
		if err := json.Unmarshal(addressJSON, &addr); err != nil {
			return fmt.Errorf("unmarshal address: %w", err)
		}
		session.Address = &addr
	}

	if notNull(quoteJSON) {
		var quote domain.ShippingQuote
		if err := json.Unmarshal(quoteJSON, &quote); err != nil {
			return fmt.Errorf("unmarshal shipping quote: %w", err)
		}
		session.ShippingQuote = &quote
	}

	if notNull(pricingJSON) {
		var pricing domain.Pricing
		if err := json.Unmarshal(pricingJSON, &pricing); err != nil {
			return fmt.Errorf("unmarshal pricing: %w", err)
		}
		session.Pricing = &pricing
	}

	if notNull(logJSON) {
		if err := json.Unmarshal(logJSON, &session.CompensationLog); err != nil {
			return fmt.Errorf("unmarshal compensation log: %w", err)
		}
	}

	return nil
}

func notNull(b []byte) bool {
	return b != nil && string(b) != "null"
}

// nullableString returns nil if the string is empty, otherwise a pointer to the string.
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
