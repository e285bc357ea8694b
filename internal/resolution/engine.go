// Package resolution computes candidate challenge outcomes. It is pure: no
// storage, no clocks, no randomness — the roll arrives already made, and the
// computed outcome goes to the approval queue, never straight to players.
package resolution

import (
	"fmt"

	"github.com/fableforge/directorq/internal/domain"
)

// DifficultyKind selects the resolution mechanic a challenge uses.
type DifficultyKind string

const (
	// DifficultyDC: d20 plus modifier against a difficulty class.
	DifficultyDC DifficultyKind = "dc"
	// DifficultyPercentile: d100 at-or-under a target percentage.
	DifficultyPercentile DifficultyKind = "percentile"
	// DifficultyDescriptor: 2d6 against a fixed threshold, no critical tiers.
	DifficultyDescriptor DifficultyKind = "descriptor"
)

func (k DifficultyKind) IsValid() bool {
	switch k {
	case DifficultyDC, DifficultyPercentile, DifficultyDescriptor:
		return true
	}
	return false
}

// descriptorThreshold is the fixed 2d6 success bar for descriptor challenges.
const descriptorThreshold = 11

// Difficulty describes what the roll is measured against. Target is the DC
// for dc challenges and the success percentage for percentile ones;
// descriptor challenges ignore it.
type Difficulty struct {
	Kind   DifficultyKind `json:"kind"`
	Target int            `json:"target,omitempty"`
}

// TriggerSpec is a side effect the challenge author attached to one outcome
// tier. It becomes an OutcomeTrigger (with an assigned ID) when queued.
type TriggerSpec struct {
	Kind        string `json:"kind"`
	Description string `json:"description"`
}

// OutcomeSpec is one authored outcome tier.
type OutcomeSpec struct {
	Description string        `json:"description"`
	Triggers    []TriggerSpec `json:"triggers,omitempty"`
}

// Outcomes holds the authored tiers for a challenge. Success and Failure are
// required; the critical tiers are optional, and a natural extreme on a
// challenge without them resolves to the plain tier instead.
type Outcomes struct {
	Success         OutcomeSpec  `json:"success"`
	Failure         OutcomeSpec  `json:"failure"`
	CriticalSuccess *OutcomeSpec `json:"critical_success,omitempty"`
	CriticalFailure *OutcomeSpec `json:"critical_failure,omitempty"`
}

// PendingOutcome is the computed candidate awaiting Director approval.
type PendingOutcome struct {
	Type          domain.OutcomeType
	Description   string
	Triggers      []TriggerSpec
	Total         int
	RollBreakdown string
}

// Resolve determines which outcome tier a roll lands in.
//
// dc: total = roll + modifier, success iff total >= DC. A natural 20 or
// natural 1 takes the critical tier when the challenge defines one,
// regardless of modifier.
// percentile: success iff roll <= target; a roll of 1 or 100 takes the
// critical tier when defined.
// descriptor: success iff the 2d6 roll meets the fixed threshold; critical
// tiers never apply.
func Resolve(roll, modifier int, difficulty Difficulty, outcomes Outcomes) PendingOutcome {
	total := roll + modifier

	switch difficulty.Kind {
	case DifficultyDC:
		breakdown := fmt.Sprintf("d20(%d) %+d = %d vs DC %d", roll, modifier, total, difficulty.Target)
		if roll == 20 && outcomes.CriticalSuccess != nil {
			return tier(domain.OutcomeCriticalSuccess, *outcomes.CriticalSuccess, total, breakdown)
		}
		if roll == 1 && outcomes.CriticalFailure != nil {
			return tier(domain.OutcomeCriticalFailure, *outcomes.CriticalFailure, total, breakdown)
		}
		if total >= difficulty.Target {
			return tier(domain.OutcomeSuccess, outcomes.Success, total, breakdown)
		}
		return tier(domain.OutcomeFailure, outcomes.Failure, total, breakdown)

	case DifficultyPercentile:
		breakdown := fmt.Sprintf("d100(%d) vs %d%%", roll, difficulty.Target)
		if roll == 1 && outcomes.CriticalSuccess != nil {
			return tier(domain.OutcomeCriticalSuccess, *outcomes.CriticalSuccess, total, breakdown)
		}
		if roll == 100 && outcomes.CriticalFailure != nil {
			return tier(domain.OutcomeCriticalFailure, *outcomes.CriticalFailure, total, breakdown)
		}
		if roll <= difficulty.Target {
			return tier(domain.OutcomeSuccess, outcomes.Success, total, breakdown)
		}
		return tier(domain.OutcomeFailure, outcomes.Failure, total, breakdown)

	default: // descriptor
		breakdown := fmt.Sprintf("2d6(%d) vs %d", roll, descriptorThreshold)
		if roll >= descriptorThreshold {
			return tier(domain.OutcomeSuccess, outcomes.Success, total, breakdown)
		}
		return tier(domain.OutcomeFailure, outcomes.Failure, total, breakdown)
	}
}

func tier(t domain.OutcomeType, spec OutcomeSpec, total int, breakdown string) PendingOutcome {
	return PendingOutcome{
		Type:          t,
		Description:   spec.Description,
		Triggers:      spec.Triggers,
		Total:         total,
		RollBreakdown: breakdown,
	}
}
