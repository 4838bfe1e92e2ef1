// Package lease provides a redis-backed single-writer lease for the
// completion saga. Only one Complete call per session may run the saga at a
// time; everyone else gets a conflict and retries against the idempotent
// short-circuit.
package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lease key only if the caller still owns it.
// Without the ownership check, a holder whose lease timed out could delete
// the next holder's lease.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// Lease is a handle on an acquired completion lease.
type Lease struct {
	key   string
	token string
}

// Manager acquires and releases completion leases.
type Manager struct {
	client *redis.Client
	ttl    time.Duration
}

// NewManager creates a lease manager. ttl bounds how long a dead holder can
// block a session; it should cover the full saga budget.
func NewManager(client *redis.Client, ttl time.Duration) *Manager {
	return &Manager{client: client, ttl: ttl}
}

// Acquire takes the completion lease for the session. It returns (nil, false)
// without error when another holder currently owns the lease.
func (m *Manager) Acquire(ctx context.Context, sessionID string) (*Lease, bool, error) {
	key := leaseKey(sessionID)
	token := uuid.New().String()

	ok, err := m.client.SetNX(ctx, key, token, m.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire completion lease: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return &Lease{key: key, token: token}, true, nil
}

// Release gives the lease back. Releasing a lease that already expired is a
// no-op, not an error.
func (m *Manager) Release(ctx context.Context, l *Lease) error {
	if l == nil {
		return nil
	}
	if err := m.client.Eval(ctx, releaseScript, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("release completion lease: %w", err)
	}
	return nil
}

// IsHeld reports whether any holder currently has the session's lease. The
// sweeper uses this to skip sessions mid-saga.
func (m *Manager) IsHeld(ctx context.Context, sessionID string) (bool, error) {
	n, err := m.client.Exists(ctx, leaseKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("check completion lease: %w", err)
	}
	return n > 0, nil
}

func leaseKey(sessionID string) string {
	return "checkout:lease:" + sessionID
}
