// Package client provides typed HTTP adapters for the services the checkout
// saga orchestrates. Side-effecting calls carry an Idempotency-Key header so
// a retried saga step is deduplicated downstream.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/utafrali/checkout-service/pkg/httpclient"
)

// idempotencyKeyHeader is recognized by all downstream write endpoints.
const idempotencyKeyHeader = "Idempotency-Key"

// HTTPDoer is the interface for executing HTTP requests.
// Both httpclient.Client and httpclient.CircuitBreakerClient satisfy this.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// base carries the shared request plumbing for the typed adapters.
type base struct {
	http    HTTPDoer
	baseURL string
	name    string
}

// postJSON issues a POST with a JSON body and decodes the JSON response into
// out (skipped when out is nil). A non-empty idempotencyKey is attached as a
// header. Non-2xx responses are translated through ParseResponseError so the
// downstream error taxonomy survives the hop.
func (b *base) postJSON(ctx context.Context, path, idempotencyKey string, in, out any) error {
	var body *bytes.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", b.name, err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", b.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set(idempotencyKeyHeader, idempotencyKey)
	}

	return b.do(req, out)
}

// getJSON issues a GET and decodes the JSON response into out.
func (b *base) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("create %s request: %w", b.name, err)
	}
	return b.do(req, out)
}

func (b *base) do(req *http.Request, out any) error {
	resp, err := b.http.Do(req.Context(), req)
	if err != nil {
		return fmt.Errorf("call %s service: %w", b.name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return httpclient.ParseResponseError(resp, b.name)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", b.name, err)
	}
	return nil
}
