package domain

import "errors"

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	// ErrNotFound: the referenced queue item does not exist.
	ErrNotFound = errors.New("queue item not found")
	// ErrAlreadyTerminal: a decision targeted an item that already reached a
	// terminal state by another path. Surfaced distinctly so the Director UI
	// can show "already handled" instead of a generic failure.
	ErrAlreadyTerminal = errors.New("queue item already resolved")
	// ErrDuplicateDecision: the idempotency tracker rejected a re-claim.
	// Callers holding a cached outcome treat this as a successful no-op.
	ErrDuplicateDecision = errors.New("decision already applied for this item")
	// ErrStorageUnavailable: the backing store cannot be reached. Never
	// interpreted as an empty queue.
	ErrStorageUnavailable = errors.New("queue storage unavailable")
	// ErrQueueCleanupFailure: the terminal-status write failed after the
	// outcome was computed. The operation as a whole fails; reporting false
	// success would hide an item stuck in processing forever.
	ErrQueueCleanupFailure = errors.New("failed to finalize queue item")

	ErrMissingWorld       = errors.New("world_id must not be empty")
	ErrInvalidChallenge   = errors.New("challenge id and name must not be empty")
	ErrInvalidTotal       = errors.New("total must equal roll + modifier")
	ErrInvalidOutcomeType = errors.New("outcome_type must be success, failure, critical_success, or critical_failure")
	ErrInvalidSuggestion  = errors.New("speaker name and proposed dialogue must not be empty")
	ErrInvalidDecision    = errors.New("invalid decision: unknown type or missing required field")
	ErrInvalidQueue       = errors.New("unknown queue name")
)
