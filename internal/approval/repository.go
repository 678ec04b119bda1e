package approval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"caseflow/pkg/db"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusApproved, StatusRejected:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown approval status: %s", s)
	}
}

// ErrAlreadyPending is returned by Insert when the case already has a pending request.
var ErrAlreadyPending = errors.New("stage change request already pending")

// Request is a regression waiting on (or resolved by) an admin.
type Request struct {
	ID             string     `json:"id"`
	CaseID         string     `json:"case_id"`
	FromStageID    *string    `json:"from_stage_id"`
	ToStageID      string     `json:"to_stage_id"`
	Reason         string     `json:"reason"`
	EffectiveAt    *time.Time `json:"effective_at,omitempty"`
	IsBackdated    bool       `json:"is_backdated"`
	RequestedBy    string     `json:"requested_by"`
	Status         Status     `json:"status"`
	ResolvedBy     *string    `json:"resolved_by,omitempty"`
	ResolutionNote *string    `json:"resolution_note,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

type NewRequest struct {
	CaseID      string
	FromStageID *string
	ToStageID   string
	Reason      string
	EffectiveAt *time.Time
	IsBackdated bool
	RequestedBy string
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const selectRequest = `
SELECT id::text, case_id::text, from_stage_id::text, to_stage_id::text, reason, effective_at, is_backdated,
       requested_by, status, resolved_by, resolution_note, resolved_at, created_at
FROM stage_change_requests
`

func scanRequest(row pgx.Row) (*Request, error) {
	var r Request
	if err := row.Scan(
		&r.ID, &r.CaseID, &r.FromStageID, &r.ToStageID, &r.Reason, &r.EffectiveAt, &r.IsBackdated,
		&r.RequestedBy, &r.Status, &r.ResolvedBy, &r.ResolutionNote, &r.ResolvedAt, &r.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *Repository) ListByStatus(ctx context.Context, status Status) ([]Request, error) {
	rows, err := r.db.Query(ctx, selectRequest+`WHERE status = $1 ORDER BY created_at ASC`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Request{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	return out, rows.Err()
}

func (r *Repository) GetByID(ctx context.Context, id string) (*Request, error) {
	return scanRequest(r.db.QueryRow(ctx, selectRequest+`WHERE id = $1`, id))
}

func GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (*Request, error) {
	return scanRequest(tx.QueryRow(ctx, selectRequest+`WHERE id = $1 FOR UPDATE`, id))
}

// PendingForCase returns the id of the case's pending request, if any.
func PendingForCase(ctx context.Context, q db.Querier, caseID string) (string, bool, error) {
	const sql = `SELECT id::text FROM stage_change_requests WHERE case_id = $1 AND status = 'pending'`
	var id string
	err := q.QueryRow(ctx, sql, caseID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func Insert(ctx context.Context, tx pgx.Tx, n NewRequest) (string, error) {
	const q = `
INSERT INTO stage_change_requests (case_id, from_stage_id, to_stage_id, reason, effective_at, is_backdated, requested_by)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id::text
`
	var id string
	err := tx.QueryRow(ctx, q, n.CaseID, n.FromStageID, n.ToStageID, n.Reason, n.EffectiveAt, n.IsBackdated, n.RequestedBy).Scan(&id)
	if isUniqueViolation(err) {
		return "", ErrAlreadyPending
	}
	return id, err
}

// Resolve moves a pending request to approved or rejected. It reports false when the
// request was no longer pending.
func Resolve(ctx context.Context, tx pgx.Tx, id string, status Status, actor, note string, at time.Time) (bool, error) {
	if status == StatusPending {
		return false, fmt.Errorf("resolve %s: status must be approved or rejected", id)
	}
	const q = `
UPDATE stage_change_requests
SET status = $2,
    resolved_by = $3,
    resolution_note = NULLIF($4, ''),
    resolved_at = $5,
    updated_at = NOW()
WHERE id = $1 AND status = 'pending'
`
	tag, err := tx.Exec(ctx, q, id, string(status), actor, note, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
