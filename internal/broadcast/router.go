// Package broadcast is the boundary to the session layer that fans resolved
// outcomes out to players. The queue engine only hands results over; routing
// them to live connections is the collaborator's concern.
package broadcast

import (
	"context"

	"go.uber.org/zap"

	"github.com/fableforge/directorq/internal/domain"
)

// Router publishes an approved resolution to everyone in the world. The
// player view is the reduced projection; the full outcome is available for
// collaborators that apply state changes.
type Router interface {
	PublishResolved(ctx context.Context, worldID string, view domain.PlayerResolution, outcome domain.ResolvedOutcome) error
}

// LogRouter is the default Router when no session layer is wired in: it
// records the broadcast and drops it. Useful in development and tests.
type LogRouter struct {
	logger *zap.Logger
}

func NewLogRouter(logger *zap.Logger) *LogRouter {
	return &LogRouter{logger: logger}
}

func (r *LogRouter) PublishResolved(_ context.Context, worldID string, view domain.PlayerResolution, outcome domain.ResolvedOutcome) error {
	r.logger.Info("resolution broadcast",
		zap.String("world_id", worldID),
		zap.String("item_id", outcome.ItemID),
		zap.String("challenge", view.ChallengeName),
		zap.String("outcome_type", string(view.OutcomeType)),
		zap.String("decision", string(outcome.Decision)),
		zap.Int("state_changes", len(outcome.StateChanges)),
	)
	return nil
}

var _ Router = (*LogRouter)(nil)
