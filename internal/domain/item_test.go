package domain_test

import (
	"testing"

	"github.com/fableforge/directorq/internal/domain"
)

func TestChallengeApproval_Validate(t *testing.T) {
	valid := domain.ChallengeApproval{
		WorldID:            "world-1",
		ChallengeID:        "ch-1",
		ChallengeName:      "Pick the Vault Lock",
		Roll:               15,
		Modifier:           3,
		Total:              18,
		OutcomeType:        domain.OutcomeSuccess,
		OutcomeDescription: "the lock clicks open",
	}

	t.Run("valid payload passes", func(t *testing.T) {
		p := valid
		if err := p.Validate(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("missing world", func(t *testing.T) {
		p := valid
		p.WorldID = ""
		if err := p.Validate(); err != domain.ErrMissingWorld {
			t.Fatalf("expected ErrMissingWorld, got %v", err)
		}
	})

	t.Run("missing challenge id", func(t *testing.T) {
		p := valid
		p.ChallengeID = ""
		if err := p.Validate(); err != domain.ErrInvalidChallenge {
			t.Fatalf("expected ErrInvalidChallenge, got %v", err)
		}
	})

	t.Run("inconsistent total", func(t *testing.T) {
		p := valid
		p.Total = 99
		if err := p.Validate(); err != domain.ErrInvalidTotal {
			t.Fatalf("expected ErrInvalidTotal, got %v", err)
		}
	})

	t.Run("unknown outcome type", func(t *testing.T) {
		p := valid
		p.OutcomeType = "heroic"
		if err := p.Validate(); err != domain.ErrInvalidOutcomeType {
			t.Fatalf("expected ErrInvalidOutcomeType, got %v", err)
		}
	})

	t.Run("all outcome types accepted", func(t *testing.T) {
		for _, o := range []domain.OutcomeType{
			domain.OutcomeSuccess, domain.OutcomeFailure,
			domain.OutcomeCriticalSuccess, domain.OutcomeCriticalFailure,
		} {
			p := valid
			p.OutcomeType = o
			if err := p.Validate(); err != nil {
				t.Fatalf("outcome %q: expected no error, got %v", o, err)
			}
		}
	})
}

func TestDialogueApproval_Validate(t *testing.T) {
	valid := domain.DialogueApproval{
		WorldID:          "world-1",
		SpeakerID:        "npc-1",
		SpeakerName:      "Innkeeper",
		ProposedDialogue: "Rooms are two silver a night.",
	}

	t.Run("valid payload passes", func(t *testing.T) {
		p := valid
		if err := p.Validate(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("missing world", func(t *testing.T) {
		p := valid
		p.WorldID = ""
		if err := p.Validate(); err != domain.ErrMissingWorld {
			t.Fatalf("expected ErrMissingWorld, got %v", err)
		}
	})

	t.Run("empty dialogue", func(t *testing.T) {
		p := valid
		p.ProposedDialogue = ""
		if err := p.Validate(); err != domain.ErrInvalidSuggestion {
			t.Fatalf("expected ErrInvalidSuggestion, got %v", err)
		}
	})
}

func TestStatus_IsTerminal(t *testing.T) {
	terminal := []domain.Status{domain.StatusCompleted, domain.StatusFailed, domain.StatusExpired}
	open := []domain.Status{domain.StatusPending, domain.StatusProcessing}

	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Fatalf("expected %q to be terminal", s)
		}
	}
	for _, s := range open {
		if s.IsTerminal() {
			t.Fatalf("expected %q to be open", s)
		}
	}
}

func TestPriority_Ordering(t *testing.T) {
	if !(domain.PriorityHigh > domain.PriorityNormal && domain.PriorityNormal > domain.PriorityLow) {
		t.Fatalf("expected high > normal > low, got %d, %d, %d",
			domain.PriorityHigh, domain.PriorityNormal, domain.PriorityLow)
	}
}

func TestDecision_Validate(t *testing.T) {
	tests := []struct {
		name     string
		decision domain.Decision
		wantErr  bool
	}{
		{"accept", domain.Decision{Kind: domain.DecisionAccept}, false},
		{"modify with text", domain.Decision{Kind: domain.DecisionModify, ModifiedText: "softer landing"}, false},
		{"modify without text", domain.Decision{Kind: domain.DecisionModify}, true},
		{"reject with feedback", domain.Decision{Kind: domain.DecisionReject, Feedback: "try again"}, false},
		{"reject without feedback", domain.Decision{Kind: domain.DecisionReject}, true},
		{"take over with replacement", domain.Decision{Kind: domain.DecisionTakeOver, ReplacementText: "the door opens"}, false},
		{"take over without replacement", domain.Decision{Kind: domain.DecisionTakeOver}, true},
		{"unknown kind", domain.Decision{Kind: "escalate"}, true},
		{"empty kind", domain.Decision{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.decision.Validate()
			if tt.wantErr && err != domain.ErrInvalidDecision {
				t.Fatalf("expected ErrInvalidDecision, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})
	}
}
