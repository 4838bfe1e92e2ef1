package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/utafrali/checkout-service/internal/domain"
)

// InventoryClient places and releases stock reservations on the inventory
// service.
type InventoryClient struct {
	base
}

// NewInventoryClient creates an inventory service adapter.
func NewInventoryClient(http HTTPDoer, baseURL string) *InventoryClient {
	return &InventoryClient{base{http: http, baseURL: baseURL, name: "inventory"}}
}

// Reserve places a single reservation covering every line of the snapshot.
// The idempotency key (the session id) makes a retried reserve return the
// original reservation id.
func (c *InventoryClient) Reserve(ctx context.Context, lines []domain.SnapshotItem, idempotencyKey string) (string, error) {
	type reserveLine struct {
		ProductID string `json:"product_id"`
		VariantID string `json:"variant_id,omitempty"`
		Quantity  int    `json:"quantity"`
	}

	req := struct {
		Lines []reserveLine `json:"lines"`
	}{
		Lines: make([]reserveLine, len(lines)),
	}
	for i, line := range lines {
		req.Lines[i] = reserveLine{
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			Quantity:  line.Quantity,
		}
	}

	var resp struct {
		Data struct {
			ReservationID string `json:"reservation_id"`
		} `json:"data"`
	}
	if err := c.postJSON(ctx, "/api/v1/reservations", idempotencyKey, req, &resp); err != nil {
		return "", fmt.Errorf("reserve inventory: %w", err)
	}
	return resp.Data.ReservationID, nil
}

// Release frees a reservation. Releasing an already-released reservation is
// a no-op downstream, which keeps compensation retries safe.
func (c *InventoryClient) Release(ctx context.Context, reservationID string) error {
	path := "/api/v1/reservations/" + url.PathEscape(reservationID) + "/release"
	if err := c.postJSON(ctx, path, "", nil, nil); err != nil {
		return fmt.Errorf("release reservation: %w", err)
	}
	return nil
}
