package transport

import (
	"context"

	"github.com/fableforge/directorq/internal/domain"
)

// Director abstracts the channel a connected Director receives pending
// approvals on. Mocking this interface in tests gives full control over
// delivery behaviour without making real HTTP calls.
type Director interface {
	DeliverPending(ctx context.Context, worldID string, delivery domain.PendingDelivery) error
}
