package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
)

const (
	TypeStageChanged         = "STAGE_CHANGED"
	TypeStageChangeRequested = "STAGE_CHANGE_REQUESTED"
	TypeStageChangeApproved  = "STAGE_CHANGE_APPROVED"
	TypeStageChangeRejected  = "STAGE_CHANGE_REJECTED"
)

// Insert appends to a case's timeline inside tx. occurredAt is the business time
// (the effective time for stage changes), not the write time.
func Insert(ctx context.Context, tx pgx.Tx, caseID, eventType, summary, actor string, occurredAt time.Time, data any) error {
	var s *string
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return err
		}
		str := string(b)
		s = &str
	}
	const q = `
INSERT INTO case_events (case_id, event_type, summary, actor, occurred_at, data)
VALUES ($1, $2, $3, $4, $5, CAST($6 AS jsonb))
`
	_, err := tx.Exec(ctx, q, caseID, eventType, summary, actor, occurredAt, s)
	return err
}
