package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/checkout-service/internal/service"
	"github.com/utafrali/checkout-service/pkg/health"
	"github.com/utafrali/checkout-service/pkg/middleware"
)

// NewRouter creates a chi router with all checkout service routes registered.
func NewRouter(
	checkoutService *service.CheckoutService,
	healthHandler *health.Handler,
	logger *slog.Logger,
	pprofAllowedCIDRs []string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing("checkout-service"))
	r.Use(middleware.PrometheusMetrics("checkout-service"))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))

	// Health and metrics endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	// Debug profiling endpoints, restricted to internal networks.
	middleware.RegisterPprof(r, pprofAllowedCIDRs, logger)

	// Checkout session API endpoints
	sessionHandler := NewSessionHandler(checkoutService, logger)

	r.Route("/api/v1/sessions", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/", sessionHandler.CreateSession)
		r.Get("/{id}", sessionHandler.GetSession)
		r.Put("/{id}/address", sessionHandler.SetAddress)
		r.Put("/{id}/shipping", sessionHandler.SelectShipping)
		r.Put("/{id}/payment", sessionHandler.SelectPayment)
		r.Post("/{id}/preview", sessionHandler.Preview)
		r.Post("/{id}/complete", sessionHandler.Complete)
		r.Post("/{id}/cancel", sessionHandler.Cancel)
	})

	return r
}
