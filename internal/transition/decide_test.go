package transition

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecide_RegressionQueuesForApproval(t *testing.T) {
	d, err := Decide(intakeCatalog(t), "qualified", Payload{StageID: "new", Reason: " duplicate "}, refNow)
	require.NoError(t, err)
	assert.Equal(t, "new", d.Target.ID)
	assert.Equal(t, "duplicate", d.Reason)
	assert.True(t, d.Policy.RequiresApproval)
	assert.Nil(t, d.EffectiveAt)
	assert.Equal(t, refNow, d.EffectiveTime)
	assert.False(t, d.CatalogStale)
}

func TestDecide_MissingReason(t *testing.T) {
	_, err := Decide(intakeCatalog(t), "qualified", Payload{StageID: "new"}, refNow)
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, CodeReasonRequired, verrs[0].Code)
}

func TestDecide_SameDayDateOnlyIsNotBackdated(t *testing.T) {
	p := Build(Form{TargetStageID: "matched", Date: datePtr(2026, time.October, 15)})
	d, err := Decide(intakeCatalog(t), "contacted", p, refNow)
	require.NoError(t, err)
	assert.False(t, d.Classification.IsBackdated)
	assert.Equal(t, time.Date(2026, time.October, 15, 0, 0, 0, 0, time.UTC), d.EffectiveTime)
}

func TestDecide_BackdatedWithTime(t *testing.T) {
	p := Payload{StageID: "matched", EffectiveAt: "2026-10-15T09:00:00", Reason: "signed this morning"}
	d, err := Decide(intakeCatalog(t), "contacted", p, refNow)
	require.NoError(t, err)
	assert.Equal(t, Classification{IsBackdated: true}, d.Classification)
	assert.False(t, d.Policy.RequiresApproval)
}

func TestDecide_InvalidEffectiveAt(t *testing.T) {
	_, err := Decide(intakeCatalog(t), "contacted", Payload{StageID: "matched", EffectiveAt: "last tuesday"}, refNow)
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, CodeEffectiveAtInvalid, verrs[0].Code)
}

func TestDecide_StaleCurrentStage(t *testing.T) {
	d, err := Decide(intakeCatalog(t), "", Payload{StageID: "new"}, refNow)
	require.NoError(t, err)
	assert.True(t, d.CatalogStale)
	assert.Equal(t, Policy{}, d.Policy)
}

func TestDecide_AgreesWithDialogEvaluation(t *testing.T) {
	cat := intakeCatalog(t)
	forms := []Form{
		{TargetStageID: "new", EffectiveNow: true, Reason: "r"},
		{TargetStageID: "matched", Date: datePtr(2026, time.October, 14), Reason: "r"},
		{TargetStageID: "matched", Date: datePtr(2026, time.October, 15), Clock: clockPtr(8, 0, 0), Reason: "r"},
		{TargetStageID: "screening", Date: datePtr(2026, time.November, 1)},
	}
	for _, f := range forms {
		want := Evaluate(cat, "qualified", f, refNow)
		require.True(t, want.CanSubmit())

		got, err := Decide(cat, "qualified", Build(f), refNow)
		require.NoError(t, err)
		assert.Equal(t, want.Classification, got.Classification)
		assert.Equal(t, want.Policy, got.Policy)
	}
}
