package casefile

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"caseflow/internal/adminaction"
	"caseflow/internal/api"
	"caseflow/internal/approval"
	"caseflow/internal/audit"
	"caseflow/internal/eventbus"
	"caseflow/internal/events"
	"caseflow/internal/stage"
	"caseflow/pkg/authtoken"
	"caseflow/pkg/db"
)

// ApprovalHandlers serve the admin queue of regression requests.
type ApprovalHandlers struct {
	DB        *pgxpool.Pool
	Approvals *approval.Repository
	Publisher eventbus.Publisher
	Logger    *zap.Logger
	Now       func() time.Time
}

type ResolveRequest struct {
	Note string `json:"note"`
}

var errStaleRequest = errors.New("stage change request no longer matches the case")

func (h ApprovalHandlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h ApprovalHandlers) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func (h ApprovalHandlers) List(w http.ResponseWriter, r *http.Request) {
	status := approval.StatusPending
	if raw := r.URL.Query().Get("status"); raw != "" {
		s, err := approval.ParseStatus(raw)
		if err != nil {
			api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid status")
			return
		}
		status = s
	}

	items, err := h.Approvals.ListByStatus(r.Context(), status)
	if err != nil {
		h.logger().Error("list approvals", zap.String("status", string(status)), zap.Error(err))
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h ApprovalHandlers) Approve(w http.ResponseWriter, r *http.Request) {
	staff, id, req, ok := h.parseResolve(w, r)
	if !ok {
		return
	}

	now := h.now()
	var ev eventbus.StageEvent
	var resolved *approval.Request

	err := db.WithTx(r.Context(), h.DB, func(tx pgx.Tx) error {
		sr, err := h.lockPending(w, r, tx, id)
		if err != nil {
			return err
		}

		c, err := GetForUpdate(r.Context(), tx, sr.CaseID)
		if err != nil {
			return err
		}
		if !sameStage(c.StageID, sr.FromStageID) {
			api.WriteError(w, http.StatusConflict, "APPROVAL_STALE", "case has moved since the request was made")
			return pgx.ErrTxCommitRollback
		}

		cat, err := stage.LoadCatalog(r.Context(), tx, c.PipelineID)
		if err != nil {
			return err
		}
		target, ok := cat.Lookup(sr.ToStageID)
		if !ok || !target.IsActive {
			api.WriteError(w, http.StatusConflict, "APPROVAL_STALE", "requested stage is no longer available")
			return pgx.ErrTxCommitRollback
		}

		if done, err := approval.Resolve(r.Context(), tx, sr.ID, approval.StatusApproved, staff.ID, req.Note, now); err != nil {
			return err
		} else if !done {
			return errStaleRequest
		}

		ch := approvedChange(cat, sr, target, staff.ID, now)
		if err := Apply(r.Context(), tx, c, ch); err != nil {
			return err
		}

		meta := map[string]any{"request_id": sr.ID, "requested_by": sr.RequestedBy, "note": req.Note}
		if err := adminaction.Insert(r.Context(), tx, c.ID, adminaction.ActionApproveStageChange, req.Note, staff.ID, meta); err != nil {
			return err
		}
		caseID := c.ID
		if err := audit.Insert(r.Context(), tx, &caseID, audit.ActionStageChangeApproved, staff.ID, meta); err != nil {
			return err
		}
		summary := "Stage change to " + target.Label + " approved"
		if err := events.Insert(r.Context(), tx, c.ID, events.TypeStageChangeApproved, summary, staff.ID, now, meta); err != nil {
			return err
		}

		ev = resolvedEvent(sr, approval.StatusApproved, staff.ID, now)
		ev.Regression = ch.IsRegression
		ev.EffectiveAt = &ch.EffectiveAt
		resolved = markResolved(sr, approval.StatusApproved, staff.ID, req.Note, now)
		return nil
	})

	if !h.finish(w, err, id) {
		return
	}
	eventbus.Emit(r.Context(), h.Publisher, h.logger(), eventbus.RoutingStageApprovalResolved, ev)
	api.WriteJSON(w, http.StatusOK, resolved)
}

func (h ApprovalHandlers) Reject(w http.ResponseWriter, r *http.Request) {
	staff, id, req, ok := h.parseResolve(w, r)
	if !ok {
		return
	}
	if req.Note == "" {
		api.WriteError(w, http.StatusUnprocessableEntity, "NOTE_REQUIRED", "a note is required to reject a stage change")
		return
	}

	now := h.now()
	var ev eventbus.StageEvent
	var resolved *approval.Request

	err := db.WithTx(r.Context(), h.DB, func(tx pgx.Tx) error {
		sr, err := h.lockPending(w, r, tx, id)
		if err != nil {
			return err
		}

		if done, err := approval.Resolve(r.Context(), tx, sr.ID, approval.StatusRejected, staff.ID, req.Note, now); err != nil {
			return err
		} else if !done {
			return errStaleRequest
		}

		meta := map[string]any{"request_id": sr.ID, "requested_by": sr.RequestedBy, "note": req.Note}
		if err := adminaction.Insert(r.Context(), tx, sr.CaseID, adminaction.ActionRejectStageChange, req.Note, staff.ID, meta); err != nil {
			return err
		}
		caseID := sr.CaseID
		if err := audit.Insert(r.Context(), tx, &caseID, audit.ActionStageChangeRejected, staff.ID, meta); err != nil {
			return err
		}
		if err := events.Insert(r.Context(), tx, sr.CaseID, events.TypeStageChangeRejected, "Stage change request rejected", staff.ID, now, meta); err != nil {
			return err
		}

		ev = resolvedEvent(sr, approval.StatusRejected, staff.ID, now)
		resolved = markResolved(sr, approval.StatusRejected, staff.ID, req.Note, now)
		return nil
	})

	if !h.finish(w, err, id) {
		return
	}
	eventbus.Emit(r.Context(), h.Publisher, h.logger(), eventbus.RoutingStageApprovalResolved, ev)
	api.WriteJSON(w, http.StatusOK, resolved)
}

func (h ApprovalHandlers) parseResolve(w http.ResponseWriter, r *http.Request) (*authtoken.Staff, string, ResolveRequest, bool) {
	var req ResolveRequest
	staff := api.StaffFromContext(r.Context())
	if staff == nil {
		api.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing staff identity")
		return nil, "", req, false
	}

	id, ok := api.ParseID(chi.URLParam(r, "id"))
	if !ok {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid request id")
		return nil, "", req, false
	}

	// An empty body is an approval without a note.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid json")
		return nil, "", req, false
	}
	req.Note = strings.TrimSpace(req.Note)
	return staff, id, req, true
}

// lockPending writes 404/409 itself and returns pgx.ErrTxCommitRollback in that case.
func (h ApprovalHandlers) lockPending(w http.ResponseWriter, r *http.Request, tx pgx.Tx, id string) (*approval.Request, error) {
	sr, err := approval.GetForUpdate(r.Context(), tx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		api.WriteError(w, http.StatusNotFound, "NOT_FOUND", "stage change request not found")
		return nil, pgx.ErrTxCommitRollback
	}
	if err != nil {
		return nil, err
	}
	if sr.Status != approval.StatusPending {
		api.WriteError(w, http.StatusConflict, "APPROVAL_ALREADY_RESOLVED", "stage change request already "+string(sr.Status))
		return nil, pgx.ErrTxCommitRollback
	}
	return sr, nil
}

// finish reports whether the transaction committed. Otherwise a response has been written.
func (h ApprovalHandlers) finish(w http.ResponseWriter, err error, id string) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, pgx.ErrTxCommitRollback):
	case errors.Is(err, errStaleRequest):
		api.WriteError(w, http.StatusConflict, "APPROVAL_ALREADY_RESOLVED", "stage change request already resolved")
	case errors.Is(err, pgx.ErrNoRows):
		api.WriteError(w, http.StatusNotFound, "NOT_FOUND", "case not found")
	default:
		h.logger().Error("resolve stage change request", zap.String("request_id", id), zap.Error(err))
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
	return false
}

func sameStage(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// approvedChange replays a request with its original reason and effective time. A
// request made with "effective now" takes effect when it is approved.
func approvedChange(cat stage.Catalog, sr *approval.Request, target stage.Stage, actor string, now time.Time) Change {
	ch := Change{
		To:          target,
		Reason:      sr.Reason,
		EffectiveAt: now,
		IsBackdated: sr.IsBackdated,
		RequestID:   &sr.ID,
		Actor:       actor,
	}
	if sr.EffectiveAt != nil {
		ch.EffectiveAt = *sr.EffectiveAt
	}
	if sr.FromStageID != nil {
		if from, ok := cat.Lookup(*sr.FromStageID); ok {
			ch.From = &from
			ch.IsRegression = target.Order < from.Order
		} else {
			ch.CatalogStale = true
		}
	}
	return ch
}

func resolvedEvent(sr *approval.Request, status approval.Status, actor string, now time.Time) eventbus.StageEvent {
	ev := eventbus.StageEvent{
		CaseID:     sr.CaseID,
		ToStageID:  sr.ToStageID,
		RequestID:  sr.ID,
		Resolution: string(status),
		Reason:     sr.Reason,
		Backdated:  sr.IsBackdated,
		Actor:      actor,
		OccurredAt: now,
	}
	if sr.FromStageID != nil {
		ev.FromStageID = *sr.FromStageID
	}
	return ev
}

func markResolved(sr *approval.Request, status approval.Status, actor, note string, now time.Time) *approval.Request {
	out := *sr
	out.Status = status
	out.ResolvedBy = &actor
	if note != "" {
		out.ResolutionNote = &note
	}
	out.ResolvedAt = &now
	return &out
}
