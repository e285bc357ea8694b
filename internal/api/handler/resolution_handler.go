package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	apimw "github.com/fableforge/directorq/internal/api/middleware"
	"github.com/fableforge/directorq/internal/domain"
	"github.com/fableforge/directorq/internal/resolution"
	"github.com/fableforge/directorq/internal/service"
)

// ResolutionHandler turns player rolls into queued candidate outcomes.
type ResolutionHandler struct {
	svc    *service.ApprovalService
	logger *zap.Logger
}

func NewResolutionHandler(svc *service.ApprovalService, logger *zap.Logger) *ResolutionHandler {
	return &ResolutionHandler{svc: svc, logger: logger}
}

// ResolveChallengeRequest carries the made roll plus the challenge's
// difficulty and authored outcome tiers.
type ResolveChallengeRequest struct {
	WorldID       string                `json:"world_id"`
	ChallengeID   string                `json:"challenge_id"`
	ChallengeName string                `json:"challenge_name"`
	CharacterID   string                `json:"character_id"`
	CharacterName string                `json:"character_name"`
	Roll          int                   `json:"roll"`
	Modifier      int                   `json:"modifier"`
	Difficulty    resolution.Difficulty `json:"difficulty"`
	Outcomes      resolution.Outcomes   `json:"outcomes"`
}

// Resolve handles POST /api/v1/challenges/resolve
//
// The outcome is computed immediately but only queued: the response is 202
// with the ids the caller needs to follow the approval, never the outcome's
// narrative effect.
func (h *ResolutionHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !req.Difficulty.Kind.IsValid() {
		respondError(w, http.StatusUnprocessableEntity, "unknown difficulty kind")
		return
	}

	pending := resolution.Resolve(req.Roll, req.Modifier, req.Difficulty, req.Outcomes)

	triggers := make([]domain.OutcomeTrigger, len(pending.Triggers))
	for i, tr := range pending.Triggers {
		triggers[i] = domain.OutcomeTrigger{Kind: tr.Kind, Description: tr.Description}
	}

	payload := &domain.ChallengeApproval{
		WorldID:            req.WorldID,
		ChallengeID:        req.ChallengeID,
		ChallengeName:      req.ChallengeName,
		CharacterID:        req.CharacterID,
		CharacterName:      req.CharacterName,
		Roll:               req.Roll,
		Modifier:           req.Modifier,
		Total:              pending.Total,
		OutcomeType:        pending.Type,
		OutcomeDescription: pending.Description,
		OutcomeTriggers:    triggers,
		RollBreakdown:      pending.RollBreakdown,
	}

	resolutionID, itemID, err := h.svc.QueueChallengeOutcome(r.Context(), payload)
	if err != nil {
		h.logger.Warn("queue challenge outcome failed",
			apimw.CorrelationField(r.Context()),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]any{
		"resolution_id":  resolutionID,
		"item_id":        itemID,
		"outcome_type":   pending.Type,
		"roll_breakdown": pending.RollBreakdown,
		"status":         domain.StatusPending,
	})
}

// Suggest handles POST /api/v1/suggestions
func (h *ResolutionHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	var payload domain.DialogueApproval
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	itemID, err := h.svc.QueueDialogueSuggestion(r.Context(), &payload)
	if err != nil {
		h.logger.Warn("queue dialogue suggestion failed",
			apimw.CorrelationField(r.Context()),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]any{
		"item_id": itemID,
		"status":  domain.StatusPending,
	})
}
