package adminaction

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
)

// Insert records an admin decision. reason is mandatory at the call site for rejections;
// approvals carry the reviewer's note, which may be empty.
func Insert(ctx context.Context, tx pgx.Tx, caseID string, actionType ActionType, reason, actor string, metadata any) error {
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
INSERT INTO admin_actions (case_id, action_type, reason, actor, metadata)
VALUES ($1, $2, $3, $4, CAST($5 AS jsonb))
`
	_, err := tx.Exec(ctx, q, caseID, string(actionType), reason, actor, s)
	return err
}
