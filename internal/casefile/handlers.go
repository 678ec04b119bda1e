package casefile

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"caseflow/internal/api"
	"caseflow/internal/approval"
	"caseflow/internal/audit"
	"caseflow/internal/eventbus"
	"caseflow/internal/events"
	"caseflow/internal/stage"
	"caseflow/internal/transition"
	"caseflow/pkg/db"
)

type Handlers struct {
	DB        *pgxpool.Pool
	Cases     *Repository
	Publisher eventbus.Publisher
	Logger    *zap.Logger
	// Location is the agency time zone used for date-only effective values.
	Location *time.Location
	Now      func() time.Time
}

func (h Handlers) now() time.Time {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	loc := h.Location
	if loc == nil {
		loc = time.UTC
	}
	return now().In(loc)
}

func (h Handlers) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func (h Handlers) List(w http.ResponseWriter, r *http.Request) {
	f := ListFilter{PipelineID: r.URL.Query().Get("pipeline")}
	if raw := r.URL.Query().Get("kind"); raw != "" {
		k, err := ParseKind(raw)
		if err != nil {
			api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid kind")
			return
		}
		f.Kind = k
	}

	items, err := h.Cases.List(r.Context(), f)
	if err != nil {
		h.logger().Error("list cases", zap.Error(err))
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h Handlers) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := api.ParseID(chi.URLParam(r, "id"))
	if !ok {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid case id")
		return
	}

	c, err := h.Cases.GetByID(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, err, id)
		return
	}

	pending, hasPending, err := approval.PendingForCase(r.Context(), h.DB, id)
	if err != nil {
		h.logger().Error("pending approval lookup", zap.String("case_id", id), zap.Error(err))
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	var pendingID *string
	if hasPending {
		pendingID = &pending
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{
		"case":               c,
		"pending_request_id": pendingID,
	})
}

func (h Handlers) History(w http.ResponseWriter, r *http.Request) {
	id, ok := api.ParseID(chi.URLParam(r, "id"))
	if !ok {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid case id")
		return
	}
	if _, err := h.Cases.GetByID(r.Context(), id); err != nil {
		h.writeLookupError(w, err, id)
		return
	}

	items, err := ListHistory(r.Context(), h.DB, id)
	if err != nil {
		h.logger().Error("list stage history", zap.String("case_id", id), zap.Error(err))
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h Handlers) Events(w http.ResponseWriter, r *http.Request) {
	id, ok := api.ParseID(chi.URLParam(r, "id"))
	if !ok {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid case id")
		return
	}
	if _, err := h.Cases.GetByID(r.Context(), id); err != nil {
		h.writeLookupError(w, err, id)
		return
	}

	evs, err := events.ListByCase(r.Context(), h.DB, id)
	if err != nil {
		h.logger().Error("list case events", zap.String("case_id", id), zap.Error(err))
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	if evs == nil {
		evs = []events.Event{}
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": evs})
}

// ChangeStage applies a forward (or stale-catalog) change immediately and queues a
// regression for admin approval.
func (h Handlers) ChangeStage(w http.ResponseWriter, r *http.Request) {
	staff := api.StaffFromContext(r.Context())
	if staff == nil {
		api.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing staff identity")
		return
	}

	id, ok := api.ParseID(chi.URLParam(r, "id"))
	if !ok {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid case id")
		return
	}

	var p transition.Payload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid json")
		return
	}

	now := h.now()
	var (
		out     transition.Outcome
		routing string
		ev      eventbus.StageEvent
	)

	err := db.WithTx(r.Context(), h.DB, func(tx pgx.Tx) error {
		c, err := GetForUpdate(r.Context(), tx, id)
		if err != nil {
			return err
		}

		cat, err := stage.LoadCatalog(r.Context(), tx, c.PipelineID)
		if err != nil {
			return err
		}

		d, err := transition.Decide(cat, c.CurrentStageID(), p, now)
		if err != nil {
			var verrs transition.ValidationErrors
			if errors.As(err, &verrs) && len(verrs) > 0 {
				api.WriteError(w, http.StatusUnprocessableEntity, verrs[0].Code, verrs[0].Message)
				return pgx.ErrTxCommitRollback
			}
			return err
		}

		var from *stage.Stage
		if cur, ok := cat.Lookup(c.CurrentStageID()); ok {
			from = &cur
		}

		if d.Policy.RequiresApproval {
			if pendingID, exists, err := approval.PendingForCase(r.Context(), tx, c.ID); err != nil {
				return err
			} else if exists {
				api.WriteError(w, http.StatusConflict, "APPROVAL_ALREADY_PENDING", "case already has a pending stage change request "+pendingID)
				return pgx.ErrTxCommitRollback
			}

			n := requestFor(c, d, staff.ID)
			reqID, err := approval.Insert(r.Context(), tx, n)
			if errors.Is(err, approval.ErrAlreadyPending) {
				api.WriteError(w, http.StatusConflict, "APPROVAL_ALREADY_PENDING", "case already has a pending stage change request")
				return pgx.ErrTxCommitRollback
			}
			if err != nil {
				return err
			}

			meta := map[string]any{
				"request_id":    reqID,
				"from_stage_id": n.FromStageID,
				"to_stage_id":   n.ToStageID,
				"reason":        n.Reason,
				"is_backdated":  n.IsBackdated,
			}
			caseID := c.ID
			if err := audit.Insert(r.Context(), tx, &caseID, audit.ActionStageChangeRequested, staff.ID, meta); err != nil {
				return err
			}
			summary := "Stage change to " + d.Target.Label + " requested; awaiting approval"
			if err := events.Insert(r.Context(), tx, c.ID, events.TypeStageChangeRequested, summary, staff.ID, now, meta); err != nil {
				return err
			}

			out = transition.Outcome{Status: transition.StatusPendingApproval, RequestID: reqID}
			routing = eventbus.RoutingStageApprovalRequested
			ev = stageEvent(c.ID, from, d, staff.ID, now)
			ev.RequestID = reqID
			return nil
		}

		ch := changeFor(from, d, staff.ID)
		if err := Apply(r.Context(), tx, c, ch); err != nil {
			return err
		}
		out = transition.Outcome{Status: transition.StatusApplied}
		routing = eventbus.RoutingStageApplied
		ev = stageEvent(c.ID, from, d, staff.ID, now)
		return nil
	})

	if err != nil {
		if errors.Is(err, pgx.ErrTxCommitRollback) {
			return
		}
		h.writeLookupError(w, err, id)
		return
	}

	eventbus.Emit(r.Context(), h.Publisher, h.logger(), routing, ev)

	status := http.StatusOK
	if out.Status == transition.StatusPendingApproval {
		status = http.StatusAccepted
	}
	api.WriteJSON(w, status, out)
}

func (h Handlers) writeLookupError(w http.ResponseWriter, err error, caseID string) {
	if errors.Is(err, pgx.ErrNoRows) {
		api.WriteError(w, http.StatusNotFound, "NOT_FOUND", "case not found")
		return
	}
	h.logger().Error("case request failed", zap.String("case_id", caseID), zap.Error(err))
	api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
}

func requestFor(c *Case, d transition.Decision, actor string) approval.NewRequest {
	n := approval.NewRequest{
		CaseID:      c.ID,
		FromStageID: c.StageID,
		ToStageID:   d.Target.ID,
		Reason:      d.Reason,
		IsBackdated: d.Classification.IsBackdated,
		RequestedBy: actor,
	}
	if d.EffectiveAt != nil {
		at := d.EffectiveTime
		n.EffectiveAt = &at
	}
	return n
}

func changeFor(from *stage.Stage, d transition.Decision, actor string) Change {
	return Change{
		From:         from,
		To:           d.Target,
		Reason:       d.Reason,
		EffectiveAt:  d.EffectiveTime,
		IsBackdated:  d.Classification.IsBackdated,
		IsRegression: d.Classification.IsRegression,
		CatalogStale: d.CatalogStale,
		Actor:        actor,
	}
}

func stageEvent(caseID string, from *stage.Stage, d transition.Decision, actor string, now time.Time) eventbus.StageEvent {
	ev := eventbus.StageEvent{
		CaseID:     caseID,
		ToStageID:  d.Target.ID,
		Reason:     d.Reason,
		Backdated:  d.Classification.IsBackdated,
		Regression: d.Classification.IsRegression,
		Actor:      actor,
		OccurredAt: now,
	}
	if from != nil {
		ev.FromStageID = from.ID
	}
	if d.EffectiveAt != nil {
		at := d.EffectiveTime
		ev.EffectiveAt = &at
	}
	return ev
}
