// Package sweeper drives the background expiry and retention passes over
// checkout sessions. Expiry on read handles sessions someone still looks at;
// the sweeper catches the ones nobody reads again.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/utafrali/checkout-service/internal/domain"
	"github.com/utafrali/checkout-service/internal/repository"
)

var (
	sweptSessions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_sweeper_expired_total",
		Help: "Sessions transitioned to expired by the background sweep",
	})
	purgedSessions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_sweeper_purged_total",
		Help: "Terminal sessions deleted by the retention sweep",
	})
)

func init() {
	prometheus.MustRegister(sweptSessions, purgedSessions)
}

// Expirer transitions a session past its deadline to expired, releasing any
// outstanding holds.
type Expirer interface {
	ExpireSession(ctx context.Context, session *domain.CheckoutSession) error
}

// HoldChecker reports whether a completion lease is currently held for a
// session. The sweep skips held sessions; the holder is mid-saga and its
// commit or failure path settles the session itself.
type HoldChecker interface {
	IsHeld(ctx context.Context, sessionID string) (bool, error)
}

// Options holds the sweep cadence and retention window.
type Options struct {
	Interval  time.Duration
	Retention time.Duration
}

// Sweeper periodically expires overdue sessions and purges terminal ones
// past the retention window.
type Sweeper struct {
	repo    repository.SessionRepository
	expirer Expirer
	leases  HoldChecker
	logger  *slog.Logger
	opts    Options
}

// New creates a sweeper.
func New(repo repository.SessionRepository, expirer Expirer, leases HoldChecker, logger *slog.Logger, opts Options) *Sweeper {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	return &Sweeper{
		repo:    repo,
		expirer: expirer,
		leases:  leases,
		logger:  logger,
		opts:    opts,
	}
}

// Run loops until the context is cancelled, sweeping once per interval.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one expiry pass and, when a retention window is configured,
// one retention pass. Failures on individual sessions are logged and skipped
// so one bad row cannot stall the sweep.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := time.Now().UTC()

	sessions, err := s.repo.ListExpired(ctx, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "sweep: list expired sessions failed",
			slog.String("error", err.Error()),
		)
	} else {
		expired := 0
		for i := range sessions {
			if s.expireOne(ctx, &sessions[i]) {
				expired++
			}
		}
		if expired > 0 {
			s.logger.InfoContext(ctx, "sweep: sessions expired", slog.Int("count", expired))
		}
	}

	if s.opts.Retention > 0 {
		deleted, err := s.repo.DeleteTerminalBefore(ctx, now.Add(-s.opts.Retention))
		if err != nil {
			s.logger.ErrorContext(ctx, "sweep: retention purge failed",
				slog.String("error", err.Error()),
			)
			return
		}
		if deleted > 0 {
			purgedSessions.Add(float64(deleted))
			s.logger.InfoContext(ctx, "sweep: terminal sessions purged", slog.Int64("count", deleted))
		}
	}
}

func (s *Sweeper) expireOne(ctx context.Context, session *domain.CheckoutSession) bool {
	held, err := s.leases.IsHeld(ctx, session.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "sweep: lease check failed",
			slog.String("session_id", session.ID),
			slog.String("error", err.Error()),
		)
		return false
	}
	if held {
		// A completion is in flight; leave the session to its holder.
		return false
	}

	if err := s.expirer.ExpireSession(ctx, session); err != nil {
		s.logger.ErrorContext(ctx, "sweep: expire session failed",
			slog.String("session_id", session.ID),
			slog.String("error", err.Error()),
		)
		return false
	}
	sweptSessions.Inc()
	return true
}
