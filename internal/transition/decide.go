package transition

import (
	"strings"
	"time"

	"caseflow/internal/stage"
)

// Decision is a validated inbound stage change, ready to apply or queue for approval.
type Decision struct {
	Target         stage.Stage
	Reason         string
	EffectiveAt    *EffectiveAt
	EffectiveTime  time.Time
	Classification Classification
	Policy         Policy
	// CatalogStale means the current stage was not found, so regression and
	// backdating could not be detected.
	CatalogStale bool
}

// Decide evaluates a submitted payload the same way the dialog evaluates a form.
// now carries the agency location used for date-only effective values.
func Decide(cat stage.Catalog, currentStageID string, p Payload, now time.Time) (Decision, error) {
	at, err := ParseEffectiveAt(p.EffectiveAt)
	if err != nil {
		return Decision{}, ValidationErrors{{Code: CodeEffectiveAtInvalid, Message: "effective_at must be YYYY-MM-DD or YYYY-MM-DDTHH:MM:SS"}}
	}

	f := Form{TargetStageID: p.StageID, EffectiveNow: at == nil, Reason: p.Reason}
	if at != nil {
		d := at.Date
		f.Date = &d
		f.Clock = at.Clock
	}

	ev := Evaluate(cat, currentStageID, f, now)
	if !ev.CanSubmit() {
		return Decision{}, ev.Problems
	}

	target, _ := cat.Lookup(strings.TrimSpace(p.StageID))
	d := Decision{
		Target:         target,
		Reason:         strings.TrimSpace(p.Reason),
		EffectiveAt:    at,
		EffectiveTime:  now,
		Classification: ev.Classification,
		Policy:         ev.Policy,
		CatalogStale:   !ev.Known,
	}
	if at != nil {
		d.EffectiveTime = at.Instant(now.Location())
	}
	return d, nil
}
