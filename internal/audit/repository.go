package audit

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
)

const (
	ActionStageChanged         = "STAGE_CHANGED"
	ActionStageChangeRequested = "STAGE_CHANGE_REQUESTED"
	ActionStageChangeApproved  = "STAGE_CHANGE_APPROVED"
	ActionStageChangeRejected  = "STAGE_CHANGE_REJECTED"
)

// Insert appends an audit row inside tx. caseID may be nil for actions not tied to a case.
func Insert(ctx context.Context, tx pgx.Tx, caseID *string, action, actor string, metadata any) error {
	var s *string
	if metadata != nil {
		b, err := json.Marshal(metadata)
		if err != nil {
			return err
		}
		str := string(b)
		s = &str
	}
	const q = `
INSERT INTO audit_logs (case_id, action, actor, metadata)
VALUES ($1, $2, $3, CAST($4 AS jsonb))
`
	_, err := tx.Exec(ctx, q, caseID, action, actor, s)
	return err
}
