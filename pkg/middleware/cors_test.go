package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func corsHandler(cfg CORSConfig) http.Handler {
	return CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestCORS_DevMode_AllowsWildcard(t *testing.T) {
	handler := corsHandler(CORSConfig{
		AllowedOrigins: []string{"*"},
		Environment:    "development",
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.com")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestCORS_ProdMode_OriginAllowlist(t *testing.T) {
	tests := []struct {
		name      string
		origin    string
		wantAllow string
	}{
		{"allowed origin echoed", "https://shop.example.com", "https://shop.example.com"},
		{"second allowed origin echoed", "https://admin.example.com", "https://admin.example.com"},
		{"unknown origin rejected", "https://evil.com", ""},
		{"no origin header", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := corsHandler(CORSConfig{
				AllowedOrigins: []string{"https://shop.example.com", "https://admin.example.com"},
				Environment:    "production",
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantAllow, rr.Header().Get("Access-Control-Allow-Origin"))
			if tt.wantAllow != "" {
				assert.Equal(t, "Origin", rr.Header().Get("Vary"))
			}
			assert.Equal(t, http.StatusOK, rr.Code)
		})
	}
}

func TestCORS_ProdMode_WildcardInList_AllowsAll(t *testing.T) {
	handler := corsHandler(CORSConfig{
		AllowedOrigins: []string{"https://shop.example.com", "*"},
		Environment:    "production",
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://anything.com")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_PreflightOptions_Returns204(t *testing.T) {
	reached := false
	handler := CORS(CORSConfig{
		AllowedOrigins: []string{"*"},
		Environment:    "development",
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())
	assert.False(t, reached, "preflight must not reach the wrapped handler")
}

func TestCORS_DefaultHeaders_IncludeIdentityHeaders(t *testing.T) {
	handler := corsHandler(CORSConfig{
		AllowedOrigins: []string{"*"},
		Environment:    "development",
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	allowed := rr.Header().Get("Access-Control-Allow-Headers")
	assert.Contains(t, allowed, "X-User-ID")
	assert.Contains(t, allowed, "X-Device-ID")
	assert.Contains(t, allowed, "X-Correlation-ID")
}

func TestCORS_CustomHeadersOverrideDefaults(t *testing.T) {
	handler := corsHandler(CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"Accept", "Authorization", "X-Custom"},
		Environment:    "development",
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, "Accept, Authorization, X-Custom", rr.Header().Get("Access-Control-Allow-Headers"))
}

func TestCORS_ExposedHeaders(t *testing.T) {
	handler := corsHandler(CORSConfig{
		AllowedOrigins: []string{"*"},
		ExposedHeaders: []string{"X-Correlation-ID"},
		Environment:    "development",
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, "X-Correlation-ID", rr.Header().Get("Access-Control-Expose-Headers"))
}

func TestCORS_MaxAge(t *testing.T) {
	handler := corsHandler(CORSConfig{
		AllowedOrigins: []string{"*"},
		MaxAge:         7200,
		Environment:    "development",
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, "7200", rr.Header().Get("Access-Control-Max-Age"))
}

func TestCORS_AllowCredentials(t *testing.T) {
	handler := corsHandler(CORSConfig{
		AllowedOrigins:   []string{"https://shop.example.com"},
		AllowCredentials: true,
		Environment:      "production",
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORS_DefaultConfig(t *testing.T) {
	cfg := DefaultCORSConfig()
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Contains(t, cfg.AllowedMethods, "GET")
	assert.Contains(t, cfg.AllowedMethods, "POST")
	assert.Contains(t, cfg.AllowedHeaders, "X-Device-ID")
	assert.Equal(t, 3600, cfg.MaxAge)
	assert.Equal(t, "development", cfg.Environment)
}
