package http

import (
	"net/http"
	"strings"

	"github.com/utafrali/checkout-service/internal/service"
)

// ownerFromRequest builds the caller identity from the gateway-injected
// headers: X-User-ID for authenticated users, X-Device-ID for guests. The
// service rejects requests carrying neither or both.
func ownerFromRequest(r *http.Request) service.Owner {
	return service.Owner{
		UserID:   r.Header.Get("X-User-ID"),
		DeviceID: r.Header.Get("X-Device-ID"),
	}
}

// ContentTypeJSON enforces that requests with a body have Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnsupportedMediaType)
				_, _ = w.Write([]byte(`{"error":{"code":"UNSUPPORTED_MEDIA_TYPE","message":"Content-Type must be application/json"}}`))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
