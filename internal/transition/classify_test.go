package transition

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"caseflow/internal/stage"
)

func TestIsRegression_MatchesOrderForAllPairs(t *testing.T) {
	stages := intakeCatalog(t).Stages()
	for _, a := range stages {
		for _, b := range stages {
			got := IsRegression(a, b)
			assert.Equal(t, b.Order < a.Order, got, "%s -> %s", a.ID, b.ID)
			if a.Order != b.Order {
				assert.False(t, got && IsRegression(b, a), "antisymmetry %s/%s", a.ID, b.ID)
			}
		}
	}
}

func TestIsBackdated_NilNeverBackdated(t *testing.T) {
	for _, now := range []time.Time{
		refNow,
		time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2100, 12, 31, 23, 59, 59, 0, time.UTC),
	} {
		assert.False(t, IsBackdated(nil, now))
	}
}

func TestIsBackdated(t *testing.T) {
	cases := []struct {
		name string
		at   EffectiveAt
		want bool
	}{
		{"date-only today", EffectiveAt{Date: DateOf(refNow)}, false},
		{"date-only yesterday", EffectiveAt{Date: *datePtr(2026, time.October, 14)}, true},
		{"date-only last year", EffectiveAt{Date: *datePtr(2025, time.December, 31)}, true},
		{"date-only tomorrow", EffectiveAt{Date: *datePtr(2026, time.October, 16)}, false},
		{"today earlier time", EffectiveAt{Date: DateOf(refNow), Clock: clockPtr(9, 0, 0)}, true},
		{"today later time", EffectiveAt{Date: DateOf(refNow), Clock: clockPtr(18, 0, 0)}, false},
		{"exactly now", EffectiveAt{Date: DateOf(refNow), Clock: clockPtr(14, 30, 0)}, false},
		{"one second ago", EffectiveAt{Date: DateOf(refNow), Clock: clockPtr(14, 29, 59)}, true},
		{"future date with time", EffectiveAt{Date: *datePtr(2027, time.January, 1), Clock: clockPtr(0, 0, 1)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			at := tc.at
			assert.Equal(t, tc.want, IsBackdated(&at, refNow))
		})
	}
}

func TestIsBackdated_DateOnlyUsesReferenceLocation(t *testing.T) {
	edt := time.FixedZone("EDT", -4*3600)
	// 01:00 UTC on the 15th is still the evening of the 14th in EDT.
	now := time.Date(2026, time.October, 15, 1, 0, 0, 0, time.UTC).In(edt)

	assert.False(t, IsBackdated(&EffectiveAt{Date: *datePtr(2026, time.October, 14)}, now))
	assert.True(t, IsBackdated(&EffectiveAt{Date: *datePtr(2026, time.October, 13)}, now))
}

func TestClassify_IsPure(t *testing.T) {
	cat := intakeCatalog(t)
	cur, _ := cat.Lookup("matched")
	tgt, _ := cat.Lookup("contacted")
	at := &EffectiveAt{Date: *datePtr(2026, time.October, 1)}

	first := Classify(cur, tgt, at, refNow)
	second := Classify(cur, tgt, at, refNow)
	assert.Equal(t, first, second)
	assert.Equal(t, Classification{IsRegression: true, IsBackdated: true}, first)
}

func TestClassifyInCatalog_StaleCurrentStage(t *testing.T) {
	cat := intakeCatalog(t)

	c, ok := ClassifyInCatalog(cat, "deleted-stage", "new", &EffectiveAt{Date: *datePtr(2020, 1, 1)}, refNow)
	assert.False(t, ok)
	assert.Equal(t, Classification{}, c)

	c, ok = ClassifyInCatalog(cat, "qualified", "new", nil, refNow)
	assert.True(t, ok)
	assert.True(t, c.IsRegression)
}

func TestClassifyInCatalog_InactiveCurrentStageStillResolves(t *testing.T) {
	cat := intakeCatalog(t)
	c, ok := ClassifyInCatalog(cat, "retired", "matched", nil, refNow)
	assert.True(t, ok)
	assert.True(t, c.IsRegression)
}

func TestGate(t *testing.T) {
	for _, reg := range []bool{false, true} {
		for _, back := range []bool{false, true} {
			p := Gate(Classification{IsRegression: reg, IsBackdated: back})
			assert.Equal(t, reg, p.RequiresApproval)
			assert.Equal(t, reg || back, p.ReasonRequired)
		}
	}
}

func TestClassify_OrderNotIDOrLabel(t *testing.T) {
	a := stage.Stage{ID: "zzz", Label: "Alpha", Order: 2}
	b := stage.Stage{ID: "aaa", Label: "Zulu", Order: 1}
	assert.True(t, Classify(a, b, nil, refNow).IsRegression)
	assert.False(t, Classify(b, a, nil, refNow).IsRegression)
}
