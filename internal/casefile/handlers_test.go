package casefile

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseflow/internal/api"
	"caseflow/internal/approval"
	"caseflow/internal/stage"
	"caseflow/internal/transition"
	"caseflow/pkg/authtoken"
)

const caseUUID = "7d9f2b1e-3c4a-4f5e-9a8b-1c2d3e4f5a6b"

var refNow = time.Date(2026, time.October, 15, 14, 30, 0, 0, time.UTC)

func testCatalog(t *testing.T) stage.Catalog {
	t.Helper()
	cat, err := stage.NewCatalog("surrogate-intake", []stage.Stage{
		{ID: "new", Label: "New", Order: 1, IsActive: true},
		{ID: "contacted", Label: "Contacted", Order: 2, IsActive: true},
		{ID: "qualified", Label: "Qualified", Order: 3, IsActive: true},
		{ID: "matched", Label: "Matched", Order: 5, IsActive: true},
	})
	require.NoError(t, err)
	return cat
}

func withStaff(role authtoken.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := &authtoken.Staff{ID: "staff-1", Name: "Dana", Role: role}
			next.ServeHTTP(w, r.WithContext(api.WithStaff(r.Context(), s)))
		})
	}
}

func newTestRouter(authed bool) http.Handler {
	h := Handlers{Now: func() time.Time { return refNow }}
	ah := ApprovalHandlers{Now: func() time.Time { return refNow }}

	r := chi.NewRouter()
	if authed {
		r.Use(withStaff(authtoken.RoleAdmin))
	}
	r.Get("/v1/cases", h.List)
	r.Get("/v1/cases/{id}", h.Get)
	r.Get("/v1/cases/{id}/stage-history", h.History)
	r.Post("/v1/cases/{id}/stage", h.ChangeStage)
	r.Get("/v1/approvals", ah.List)
	r.Post("/v1/approvals/{id}/approve", ah.Approve)
	r.Post("/v1/approvals/{id}/reject", ah.Reject)
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string) (int, api.APIError) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env api.ErrorEnvelope
	if rec.Code >= 400 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec.Code, env.Error
}

func TestChangeStage_RequestValidation(t *testing.T) {
	cases := []struct {
		name   string
		authed bool
		target string
		body   string
		status int
		code   string
	}{
		{"no staff", false, "/v1/cases/" + caseUUID + "/stage", `{"stage_id":"new"}`, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"bad id", true, "/v1/cases/not-a-uuid/stage", `{"stage_id":"new"}`, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"bad json", true, "/v1/cases/" + caseUUID + "/stage", `{"stage_id":`, http.StatusBadRequest, "VALIDATION_FAILED"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, apiErr := do(t, newTestRouter(tc.authed), http.MethodPost, tc.target, tc.body)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, apiErr.Code)
		})
	}
}

func TestReadEndpoints_RejectBadInput(t *testing.T) {
	r := newTestRouter(true)

	status, apiErr := do(t, r, http.MethodGet, "/v1/cases?kind=donor", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid kind", apiErr.Message)

	status, _ = do(t, r, http.MethodGet, "/v1/cases/123", "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, r, http.MethodGet, "/v1/cases/123/stage-history", "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, apiErr = do(t, r, http.MethodGet, "/v1/approvals?status=open", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid status", apiErr.Message)
}

func TestReject_RequiresNote(t *testing.T) {
	r := newTestRouter(true)
	for _, body := range []string{"", `{}`, `{"note":"   "}`} {
		status, apiErr := do(t, r, http.MethodPost, "/v1/approvals/"+caseUUID+"/reject", body)
		assert.Equal(t, http.StatusUnprocessableEntity, status, body)
		assert.Equal(t, "NOTE_REQUIRED", apiErr.Code)
	}
}

func TestResolve_RequestValidation(t *testing.T) {
	status, _ := do(t, newTestRouter(false), http.MethodPost, "/v1/approvals/"+caseUUID+"/approve", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = do(t, newTestRouter(true), http.MethodPost, "/v1/approvals/nope/approve", "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, apiErr := do(t, newTestRouter(true), http.MethodPost, "/v1/approvals/"+caseUUID+"/approve", `{"note":`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid json", apiErr.Message)
}

func TestListQuery(t *testing.T) {
	q, args := listQuery(ListFilter{})
	assert.NotContains(t, q, "WHERE")
	assert.Empty(t, args)

	q, args = listQuery(ListFilter{PipelineID: "surrogate-intake", Kind: KindSurrogate})
	assert.Contains(t, q, "WHERE pipeline_id = $1 AND kind = $2")
	assert.Equal(t, []any{"surrogate-intake", "surrogate"}, args)

	q, args = listQuery(ListFilter{Kind: KindIntendedParent})
	assert.Contains(t, q, "WHERE kind = $1")
	assert.Equal(t, []any{"intended_parent"}, args)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("intended_parent")
	require.NoError(t, err)
	assert.Equal(t, KindIntendedParent, k)

	_, err = ParseKind("IP")
	assert.Error(t, err)
}

func TestRequestFor_RegressionKeepsBackdatedEffectiveTime(t *testing.T) {
	cur := "qualified"
	c := &Case{ID: caseUUID, StageID: &cur}
	p := transition.Payload{StageID: "new", Reason: "duplicate lead", EffectiveAt: "2026-10-14"}
	d, err := transition.Decide(testCatalog(t), cur, p, refNow)
	require.NoError(t, err)
	require.True(t, d.Policy.RequiresApproval)

	n := requestFor(c, d, "staff-1")
	assert.Equal(t, &cur, n.FromStageID)
	assert.Equal(t, "new", n.ToStageID)
	assert.True(t, n.IsBackdated)
	require.NotNil(t, n.EffectiveAt)
	assert.Equal(t, time.Date(2026, time.October, 14, 0, 0, 0, 0, time.UTC), *n.EffectiveAt)

	d, err = transition.Decide(testCatalog(t), cur, transition.Payload{StageID: "new", Reason: "r"}, refNow)
	require.NoError(t, err)
	assert.Nil(t, requestFor(c, d, "staff-1").EffectiveAt, "effective now is resolved at approval")
}

func TestChangeFor_StaleCatalogIsFlagged(t *testing.T) {
	d, err := transition.Decide(testCatalog(t), "deleted-stage", transition.Payload{StageID: "new"}, refNow)
	require.NoError(t, err)

	ch := changeFor(nil, d, "staff-1")
	assert.True(t, ch.CatalogStale)
	assert.False(t, ch.IsRegression)
	assert.Equal(t, refNow, ch.EffectiveAt)
	assert.Equal(t, true, ch.metadata(nil)["stale_catalog"])
	assert.Equal(t, "Stage set to New", ch.summary())
}

func TestStageEvent(t *testing.T) {
	cat := testCatalog(t)
	from, _ := cat.Lookup("contacted")
	d, err := transition.Decide(cat, "contacted", transition.Payload{StageID: "matched"}, refNow)
	require.NoError(t, err)

	ev := stageEvent(caseUUID, &from, d, "staff-1", refNow)
	assert.Equal(t, "contacted", ev.FromStageID)
	assert.Equal(t, "matched", ev.ToStageID)
	assert.Nil(t, ev.EffectiveAt)
	assert.False(t, ev.Regression)
}

func TestApprovedChange(t *testing.T) {
	cat := testCatalog(t)
	target, _ := cat.Lookup("new")
	from := "qualified"
	backdated := time.Date(2026, time.October, 1, 9, 0, 0, 0, time.UTC)

	sr := &approval.Request{ID: "req-1", FromStageID: &from, ToStageID: "new", Reason: "merge", EffectiveAt: &backdated, IsBackdated: true}
	ch := approvedChange(cat, sr, target, "admin-1", refNow)
	assert.Equal(t, backdated, ch.EffectiveAt)
	assert.True(t, ch.IsRegression)
	assert.True(t, ch.IsBackdated)
	assert.Equal(t, "req-1", *ch.RequestID)
	assert.Equal(t, "Stage changed from Qualified to New", ch.summary())

	sr.EffectiveAt = nil
	assert.Equal(t, refNow, approvedChange(cat, sr, target, "admin-1", refNow).EffectiveAt)

	gone := "deleted-stage"
	sr.FromStageID = &gone
	assert.True(t, approvedChange(cat, sr, target, "admin-1", refNow).CatalogStale)
}

func TestSameStage(t *testing.T) {
	a, b := "x", "x"
	c := "y"
	assert.True(t, sameStage(nil, nil))
	assert.True(t, sameStage(&a, &b))
	assert.False(t, sameStage(&a, &c))
	assert.False(t, sameStage(&a, nil))
	assert.False(t, sameStage(nil, &a))
}

func TestMarkResolved(t *testing.T) {
	sr := &approval.Request{ID: "req-1", Status: approval.StatusPending}
	out := markResolved(sr, approval.StatusRejected, "admin-1", "not a regression", refNow)
	assert.Equal(t, approval.StatusRejected, out.Status)
	assert.Equal(t, "not a regression", *out.ResolutionNote)
	assert.Equal(t, approval.StatusPending, sr.Status, "input is not mutated")

	out = markResolved(sr, approval.StatusApproved, "admin-1", "", refNow)
	assert.Nil(t, out.ResolutionNote)
}
