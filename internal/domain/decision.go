package domain

// DecisionKind discriminates the closed set of Director decisions.
// No new kinds arrive by external extension, so ApplyDecision switches
// exhaustively over these values.
type DecisionKind string

const (
	DecisionAccept   DecisionKind = "accept"
	DecisionModify   DecisionKind = "accept_with_modification"
	DecisionReject   DecisionKind = "reject"
	DecisionTakeOver DecisionKind = "take_over"
)

// Decision is the Director's verdict on a pending item. It is transient:
// owned by the request that carries it, consumed exactly once by the
// approval service.
type Decision struct {
	Kind DecisionKind `json:"type"`

	// accept_with_modification
	ModifiedText       string   `json:"modified_text,omitempty"`
	ApprovedTriggerIDs []string `json:"approved_trigger_ids,omitempty"`
	RejectedTriggerIDs []string `json:"rejected_trigger_ids,omitempty"`

	// reject
	Feedback string `json:"feedback,omitempty"`

	// take_over
	ReplacementText string `json:"replacement_text,omitempty"`
}

func (d *Decision) Validate() error {
	switch d.Kind {
	case DecisionAccept:
		return nil
	case DecisionModify:
		if d.ModifiedText == "" {
			return ErrInvalidDecision
		}
		return nil
	case DecisionReject:
		if d.Feedback == "" {
			return ErrInvalidDecision
		}
		return nil
	case DecisionTakeOver:
		if d.ReplacementText == "" {
			return ErrInvalidDecision
		}
		return nil
	}
	return ErrInvalidDecision
}

// StateChange describes one approved side effect to apply downstream.
// The queue engine records it; applying it is the collaborators' concern.
type StateChange struct {
	Kind        string `json:"kind"`
	Description string `json:"description"`
}

// ResolvedOutcome is produced by applying a decision to a pending item.
// It is constructed once, serialized into the terminal item row, handed to
// the broadcast router, and cached for duplicate-decision replay.
type ResolvedOutcome struct {
	ItemID             string        `json:"item_id"`
	ChallengeID        string        `json:"challenge_id,omitempty"`
	OutcomeDescription string        `json:"outcome_description"`
	StateChanges       []StateChange `json:"state_changes"`
	Decision           DecisionKind  `json:"decision"`
	Feedback           string        `json:"feedback,omitempty"`
}

// PlayerResolution is the reduced projection broadcast to players after a
// challenge resolves. Director feedback and rejected-trigger detail never
// appear here.
type PlayerResolution struct {
	ChallengeName string      `json:"challenge_name"`
	Roll          int         `json:"roll"`
	Modifier      int         `json:"modifier"`
	Total         int         `json:"total"`
	OutcomeType   OutcomeType `json:"outcome_type"`
	Status        Status      `json:"status"`
}
