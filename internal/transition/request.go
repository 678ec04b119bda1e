package transition

import (
	"strings"
	"time"

	"caseflow/internal/stage"
)

// Form is the user's in-progress stage change input.
type Form struct {
	TargetStageID string
	EffectiveNow  bool
	Date          *Date
	Clock         *Clock
	Reason        string
}

// EffectiveAt is nil when the change applies now or no date has been picked yet.
func (f Form) EffectiveAt() *EffectiveAt {
	if f.EffectiveNow || f.Date == nil {
		return nil
	}
	at := &EffectiveAt{Date: *f.Date}
	if f.Clock != nil {
		c := *f.Clock
		at.Clock = &c
	}
	return at
}

type Evaluation struct {
	Classification Classification
	Policy         Policy
	// Known is false when the current or target stage is missing from the catalog;
	// Classification and Policy are then zero.
	Known    bool
	Problems ValidationErrors
}

func (e Evaluation) CanSubmit() bool { return len(e.Problems) == 0 }

// Evaluate classifies the form against the catalog and lists every submission rule it fails.
func Evaluate(cat stage.Catalog, currentStageID string, f Form, now time.Time) Evaluation {
	var ev Evaluation
	targetID := strings.TrimSpace(f.TargetStageID)
	if targetID != "" {
		ev.Classification, ev.Known = ClassifyInCatalog(cat, currentStageID, targetID, f.EffectiveAt(), now)
	}
	ev.Policy = Gate(ev.Classification)

	switch target, ok := cat.Lookup(targetID); {
	case targetID == "":
		ev.Problems = append(ev.Problems, ValidationError{Code: CodeTargetRequired, Message: "select a target stage"})
	case targetID == currentStageID:
		ev.Problems = append(ev.Problems, ValidationError{Code: CodeTargetUnchanged, Message: "target stage is the current stage"})
	case !ok:
		ev.Problems = append(ev.Problems, ValidationError{Code: CodeTargetUnknown, Message: "target stage is not in this pipeline"})
	case !target.IsActive:
		ev.Problems = append(ev.Problems, ValidationError{Code: CodeTargetInactive, Message: "target stage is inactive"})
	}

	if !f.EffectiveNow && f.Date == nil {
		ev.Problems = append(ev.Problems, ValidationError{Code: CodeEffectiveDateRequired, Message: "select an effective date"})
	}
	if ev.Policy.ReasonRequired && strings.TrimSpace(f.Reason) == "" {
		ev.Problems = append(ev.Problems, ValidationError{Code: CodeReasonRequired, Message: "a reason is required for regressions and backdated changes"})
	}
	return ev
}

// Payload is the body of a stage change submission.
type Payload struct {
	StageID     string `json:"stage_id"`
	Reason      string `json:"reason,omitempty"`
	EffectiveAt string `json:"effective_at,omitempty"`
}

// Build assumes the form passed Evaluate.
func Build(f Form) Payload {
	p := Payload{StageID: strings.TrimSpace(f.TargetStageID)}
	if reason := strings.TrimSpace(f.Reason); reason != "" {
		p.Reason = reason
	}
	if at := f.EffectiveAt(); at != nil {
		p.EffectiveAt = at.Format()
	}
	return p
}

type OutcomeStatus string

const (
	StatusApplied         OutcomeStatus = "applied"
	StatusPendingApproval OutcomeStatus = "pending_approval"
)

type Outcome struct {
	Status    OutcomeStatus `json:"status"`
	RequestID string        `json:"request_id,omitempty"`
}
