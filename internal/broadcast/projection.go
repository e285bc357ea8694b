package broadcast

import (
	"github.com/fableforge/directorq/internal/domain"
)

// PlayerView reduces a resolved challenge to what players are allowed to see:
// the dice, the tier, and the final status. Director feedback, internal
// reasoning, and rejected-trigger detail never cross this boundary.
func PlayerView(item *domain.QueueItem, payload *domain.ChallengeApproval) domain.PlayerResolution {
	return domain.PlayerResolution{
		ChallengeName: payload.ChallengeName,
		Roll:          payload.Roll,
		Modifier:      payload.Modifier,
		Total:         payload.Total,
		OutcomeType:   payload.OutcomeType,
		Status:        item.Status,
	}
}
