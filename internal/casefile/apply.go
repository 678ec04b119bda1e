package casefile

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"caseflow/internal/audit"
	"caseflow/internal/events"
	"caseflow/internal/stage"
)

// Change is a stage change that has passed validation and, for regressions, approval.
type Change struct {
	From         *stage.Stage
	To           stage.Stage
	Reason       string
	EffectiveAt  time.Time
	IsBackdated  bool
	IsRegression bool
	CatalogStale bool
	RequestID    *string
	Actor        string
}

func (c Change) summary() string {
	if c.From == nil {
		return fmt.Sprintf("Stage set to %s", c.To.Label)
	}
	return fmt.Sprintf("Stage changed from %s to %s", c.From.Label, c.To.Label)
}

func (c Change) metadata(fromStageID *string) map[string]any {
	m := map[string]any{
		"from_stage_id": fromStageID,
		"to_stage_id":   c.To.ID,
		"effective_at":  c.EffectiveAt,
		"is_backdated":  c.IsBackdated,
		"is_regression": c.IsRegression,
	}
	if c.Reason != "" {
		m["reason"] = c.Reason
	}
	if c.RequestID != nil {
		m["request_id"] = *c.RequestID
	}
	if c.CatalogStale {
		m["stale_catalog"] = true
	}
	return m
}

func (c Change) history(caseID string, fromStageID *string) HistoryEntry {
	return HistoryEntry{
		CaseID:            caseID,
		FromStageID:       fromStageID,
		ToStageID:         c.To.ID,
		Reason:            c.Reason,
		EffectiveAt:       c.EffectiveAt,
		IsBackdated:       c.IsBackdated,
		IsRegression:      c.IsRegression,
		ApprovalRequestID: c.RequestID,
		Actor:             c.Actor,
	}
}

// Apply moves the locked case to ch.To and records history, audit and timeline rows.
// The previous stage is taken from the case row, so a stage missing from the catalog
// is still recorded.
func Apply(ctx context.Context, tx pgx.Tx, c *Case, ch Change) error {
	fromStageID := c.StageID
	if err := UpdateStage(ctx, tx, c.ID, ch.To.ID, ch.EffectiveAt); err != nil {
		return fmt.Errorf("update case stage: %w", err)
	}
	if err := InsertHistory(ctx, tx, ch.history(c.ID, fromStageID)); err != nil {
		return fmt.Errorf("insert stage history: %w", err)
	}

	caseID := c.ID
	meta := ch.metadata(fromStageID)
	if err := audit.Insert(ctx, tx, &caseID, audit.ActionStageChanged, ch.Actor, meta); err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	if err := events.Insert(ctx, tx, c.ID, events.TypeStageChanged, ch.summary(), ch.Actor, ch.EffectiveAt, meta); err != nil {
		return fmt.Errorf("insert case event: %w", err)
	}

	c.StageID = &ch.To.ID
	c.StageEnteredAt = &ch.EffectiveAt
	return nil
}
