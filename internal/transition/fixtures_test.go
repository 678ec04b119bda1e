package transition

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"caseflow/internal/stage"
)

// 2026-10-15 14:30 UTC
var refNow = time.Date(2026, time.October, 15, 14, 30, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func intakeCatalog(t *testing.T) stage.Catalog {
	t.Helper()
	cat, err := stage.NewCatalog("intake", []stage.Stage{
		{ID: "new", Label: "New", Order: 1, IsActive: true},
		{ID: "contacted", Label: "Contacted", Order: 2, IsActive: true},
		{ID: "qualified", Label: "Qualified", Order: 3, IsActive: true},
		{ID: "screening", Label: "Screening", Order: 4, IsActive: true},
		{ID: "matched", Label: "Matched", Order: 5, IsActive: true},
		{ID: "retired", Label: "Retired", Order: 6, IsActive: false},
	})
	require.NoError(t, err)
	return cat
}

func datePtr(y int, m time.Month, d int) *Date {
	return &Date{Year: y, Month: m, Day: d}
}

func clockPtr(h, m, s int) *Clock {
	return &Clock{Hour: h, Minute: m, Second: s}
}
