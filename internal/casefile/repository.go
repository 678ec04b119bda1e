package casefile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"caseflow/pkg/db"
)

type Case struct {
	ID             string     `json:"id"`
	DisplayID      string     `json:"display_id"`
	Kind           Kind       `json:"kind"`
	FullName       string     `json:"full_name"`
	Email          string     `json:"email,omitempty"`
	PipelineID     string     `json:"pipeline_id"`
	StageID        *string    `json:"stage_id"`
	StageEnteredAt *time.Time `json:"stage_entered_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// CurrentStageID is empty when the case has no stage or its stage was deleted.
func (c Case) CurrentStageID() string {
	if c.StageID == nil {
		return ""
	}
	return *c.StageID
}

type ListFilter struct {
	PipelineID string
	Kind       Kind
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const selectCase = `
SELECT id::text, display_id, kind, full_name, COALESCE(email, ''), pipeline_id, stage_id::text, stage_entered_at,
       created_at, updated_at
FROM cases
`

func scanCase(row pgx.Row) (*Case, error) {
	var c Case
	if err := row.Scan(
		&c.ID, &c.DisplayID, &c.Kind, &c.FullName, &c.Email, &c.PipelineID, &c.StageID, &c.StageEnteredAt,
		&c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

func listQuery(f ListFilter) (string, []any) {
	var where []string
	var args []any
	if f.PipelineID != "" {
		args = append(args, f.PipelineID)
		where = append(where, fmt.Sprintf("pipeline_id = $%d", len(args)))
	}
	if f.Kind != "" {
		args = append(args, string(f.Kind))
		where = append(where, fmt.Sprintf("kind = $%d", len(args)))
	}
	q := selectCase
	if len(where) > 0 {
		q += "WHERE " + strings.Join(where, " AND ") + "\n"
	}
	return q + "ORDER BY created_at DESC", args
}

func (r *Repository) List(ctx context.Context, f ListFilter) ([]Case, error) {
	q, args := listQuery(f)
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Case{}
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *Repository) GetByID(ctx context.Context, id string) (*Case, error) {
	return scanCase(r.db.QueryRow(ctx, selectCase+`WHERE id = $1`, id))
}

func GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (*Case, error) {
	return scanCase(tx.QueryRow(ctx, selectCase+`WHERE id = $1 FOR UPDATE`, id))
}

func UpdateStage(ctx context.Context, tx pgx.Tx, caseID, stageID string, enteredAt time.Time) error {
	const q = `
UPDATE cases
SET stage_id = $2, stage_entered_at = $3, updated_at = NOW()
WHERE id = $1
`
	_, err := tx.Exec(ctx, q, caseID, stageID, enteredAt)
	return err
}

// HistoryEntry is one applied stage change. EffectiveAt is when the case entered the
// stage in business terms; RecordedAt is when the row was written.
type HistoryEntry struct {
	ID                string    `json:"id"`
	CaseID            string    `json:"case_id"`
	FromStageID       *string   `json:"from_stage_id"`
	ToStageID         string    `json:"to_stage_id"`
	Reason            string    `json:"reason,omitempty"`
	EffectiveAt       time.Time `json:"effective_at"`
	IsBackdated       bool      `json:"is_backdated"`
	IsRegression      bool      `json:"is_regression"`
	ApprovalRequestID *string   `json:"approval_request_id,omitempty"`
	Actor             string    `json:"actor"`
	RecordedAt        time.Time `json:"recorded_at"`
}

func InsertHistory(ctx context.Context, tx pgx.Tx, e HistoryEntry) error {
	const q = `
INSERT INTO stage_history (case_id, from_stage_id, to_stage_id, reason, effective_at, is_backdated, is_regression,
                           approval_request_id, actor)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9)
`
	_, err := tx.Exec(ctx, q,
		e.CaseID, e.FromStageID, e.ToStageID, e.Reason, e.EffectiveAt, e.IsBackdated, e.IsRegression,
		e.ApprovalRequestID, e.Actor,
	)
	return err
}

func ListHistory(ctx context.Context, q db.Querier, caseID string) ([]HistoryEntry, error) {
	const sql = `
SELECT id::text, case_id::text, from_stage_id::text, to_stage_id::text, COALESCE(reason, ''), effective_at,
       is_backdated, is_regression, approval_request_id::text, actor, recorded_at
FROM stage_history
WHERE case_id = $1
ORDER BY effective_at DESC, recorded_at DESC
`
	rows, err := q.Query(ctx, sql, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []HistoryEntry{}
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(
			&e.ID, &e.CaseID, &e.FromStageID, &e.ToStageID, &e.Reason, &e.EffectiveAt,
			&e.IsBackdated, &e.IsRegression, &e.ApprovalRequestID, &e.Actor, &e.RecordedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type NewCase struct {
	DisplayID  string
	Kind       Kind
	FullName   string
	Email      string
	PipelineID string
	StageID    string
	EnteredAt  time.Time
}

// Insert creates a case unless its display id already exists. It reports whether a row
// was written.
func Insert(ctx context.Context, q db.Querier, n NewCase) (bool, error) {
	const sql = `
INSERT INTO cases (display_id, kind, full_name, email, pipeline_id, stage_id, stage_entered_at)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7)
ON CONFLICT (display_id) DO NOTHING
`
	tag, err := q.Exec(ctx, sql, n.DisplayID, string(n.Kind), n.FullName, n.Email, n.PipelineID, n.StageID, n.EnteredAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
