package events

import (
	"context"
	"encoding/json"

	"caseflow/pkg/db"
)

type Event struct {
	ID         string          `json:"id"`
	CaseID     string          `json:"case_id"`
	EventType  string          `json:"event_type"`
	Summary    string          `json:"summary"`
	Actor      string          `json:"actor"`
	OccurredAt string          `json:"occurred_at"`
	Data       json.RawMessage `json:"data,omitempty"`
}

func ListByCase(ctx context.Context, q db.Querier, caseID string) ([]Event, error) {
	const sql = `
SELECT id::text, case_id::text, event_type, summary, actor, occurred_at::text, COALESCE(data, '{}'::jsonb)
FROM case_events
WHERE case_id = $1
ORDER BY occurred_at ASC, created_at ASC
`
	rows, err := q.Query(ctx, sql, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.CaseID, &e.EventType, &e.Summary, &e.Actor, &e.OccurredAt, &e.Data); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
