// Package transition decides how a case may move between pipeline stages: whether a move
// is a regression, whether it is backdated, what that demands of the request, and how the
// change dialog progresses from input to outcome.
package transition

import (
	"time"

	"caseflow/internal/stage"
)

type Classification struct {
	IsRegression bool `json:"is_regression"`
	IsBackdated  bool `json:"is_backdated"`
}

// Classify compares stages by order only. now is the reference clock; its location
// defines "today" for date-only effective values.
func Classify(current, target stage.Stage, at *EffectiveAt, now time.Time) Classification {
	return Classification{
		IsRegression: IsRegression(current, target),
		IsBackdated:  IsBackdated(at, now),
	}
}

func IsRegression(current, target stage.Stage) bool {
	return target.Order < current.Order
}

// IsBackdated reports whether at lies before now. Date-only values compare by calendar
// day, so any time on today's date counts as not backdated.
func IsBackdated(at *EffectiveAt, now time.Time) bool {
	if at == nil {
		return false
	}
	if at.Clock == nil {
		return at.Date.Before(DateOf(now))
	}
	return at.Instant(now.Location()).Before(now)
}

// ClassifyInCatalog resolves both stages first. If either is missing (the catalog changed
// under the caller) it returns the zero Classification and false rather than guessing.
func ClassifyInCatalog(cat stage.Catalog, currentID, targetID string, at *EffectiveAt, now time.Time) (Classification, bool) {
	current, ok := cat.Lookup(currentID)
	if !ok {
		return Classification{}, false
	}
	target, ok := cat.Lookup(targetID)
	if !ok {
		return Classification{}, false
	}
	return Classify(current, target, at, now), true
}
