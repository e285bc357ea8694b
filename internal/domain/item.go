package domain

import (
	"encoding/json"
	"time"
)

// QueueName is the logical partition an item belongs to.
// Each queue name maps to its own table in the durable backend.
type QueueName string

const (
	// QueueChallengeOutcomes holds challenge resolutions awaiting Director approval.
	QueueChallengeOutcomes QueueName = "challenge_outcomes"
	// QueueDirectorApprovals holds NPC dialogue / tool suggestions awaiting approval.
	QueueDirectorApprovals QueueName = "dm_approvals"
)

// ApprovalQueues lists every queue whose backlog is delivered to a Director.
// Reconnect redelivery walks all of them, not just one.
var ApprovalQueues = []QueueName{QueueChallengeOutcomes, QueueDirectorApprovals}

func (q QueueName) IsValid() bool {
	switch q {
	case QueueChallengeOutcomes, QueueDirectorApprovals:
		return true
	}
	return false
}

// Status tracks the lifecycle of a queue item.
// Completed, Failed, and Expired are terminal: no operation may move an item
// out of a terminal state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusExpired    Status = "expired"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusExpired:
		return true
	}
	return false
}

// IsTerminal reports whether the status permits no further transitions.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusExpired:
		return true
	}
	return false
}

// Priority orders delivery within a world: higher dequeues first,
// ties broken by creation time (oldest first).
type Priority int

const (
	PriorityLow    Priority = 1
	PriorityNormal Priority = 5
	PriorityHigh   Priority = 10
)

// QueueItem is a durably stored unit of pending work scoped to one world.
// The payload is opaque to the queue engine; world_id is extracted from it at
// enqueue time and stored alongside so listing can filter without decoding.
type QueueItem struct {
	ID           string          `json:"id"`
	QueueName    QueueName       `json:"queue_name"`
	WorldID      string          `json:"world_id"`
	Payload      json.RawMessage `json:"payload"`
	Status       Status          `json:"status"`
	Priority     Priority        `json:"priority"`
	Attempts     int             `json:"attempts"`
	MaxAttempts  int             `json:"max_attempts"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	// Result holds the serialized ResolvedOutcome, written in the same
	// operation as the terminal status so the item row is the full
	// historical record of the approval.
	Result    json.RawMessage `json:"result,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// OutcomeTrigger is a proposed side effect attached to a resolution,
// applied only if the Director approves it. The ID is assigned at enqueue
// time so decisions can approve or reject individual triggers.
type OutcomeTrigger struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
}

// ChallengeApproval is the payload of a challenge_outcomes item: a computed
// candidate outcome awaiting the Director's verdict.
type ChallengeApproval struct {
	ResolutionID       string           `json:"resolution_id"`
	WorldID            string           `json:"world_id"`
	ChallengeID        string           `json:"challenge_id"`
	ChallengeName      string           `json:"challenge_name"`
	CharacterID        string           `json:"character_id"`
	CharacterName      string           `json:"character_name"`
	Roll               int              `json:"roll"`
	Modifier           int              `json:"modifier"`
	Total              int              `json:"total"`
	OutcomeType        OutcomeType      `json:"outcome_type"`
	OutcomeDescription string           `json:"outcome_description"`
	OutcomeTriggers    []OutcomeTrigger `json:"outcome_triggers"`
	RollBreakdown      string           `json:"roll_breakdown,omitempty"`
}

func (c *ChallengeApproval) Validate() error {
	if c.WorldID == "" {
		return ErrMissingWorld
	}
	if c.ChallengeID == "" || c.ChallengeName == "" {
		return ErrInvalidChallenge
	}
	if c.Total != c.Roll+c.Modifier {
		return ErrInvalidTotal
	}
	if !c.OutcomeType.IsValid() {
		return ErrInvalidOutcomeType
	}
	return nil
}

// DialogueApproval is the payload of a dm_approvals item: LLM-proposed NPC
// dialogue plus any tool suggestions riding along with it.
type DialogueApproval struct {
	WorldID           string           `json:"world_id"`
	SpeakerID         string           `json:"speaker_id"`
	SpeakerName       string           `json:"speaker_name"`
	ProposedDialogue  string           `json:"proposed_dialogue"`
	InternalReasoning string           `json:"internal_reasoning,omitempty"`
	ProposedTriggers  []OutcomeTrigger `json:"proposed_triggers"`
}

func (d *DialogueApproval) Validate() error {
	if d.WorldID == "" {
		return ErrMissingWorld
	}
	if d.SpeakerName == "" || d.ProposedDialogue == "" {
		return ErrInvalidSuggestion
	}
	return nil
}

// OutcomeType is the tier a resolution landed in.
type OutcomeType string

const (
	OutcomeSuccess         OutcomeType = "success"
	OutcomeFailure         OutcomeType = "failure"
	OutcomeCriticalSuccess OutcomeType = "critical_success"
	OutcomeCriticalFailure OutcomeType = "critical_failure"
)

func (o OutcomeType) IsValid() bool {
	switch o {
	case OutcomeSuccess, OutcomeFailure, OutcomeCriticalSuccess, OutcomeCriticalFailure:
		return true
	}
	return false
}

// PendingDelivery is what the notification worker pushes to a connected
// Director: the full payload plus enough identifiers to render an approval UI.
type PendingDelivery struct {
	ItemID    string          `json:"item_id"`
	QueueName QueueName       `json:"queue_name"`
	WorldID   string          `json:"world_id"`
	Priority  Priority        `json:"priority"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}
