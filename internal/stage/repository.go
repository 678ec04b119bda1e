package stage

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"caseflow/pkg/db"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ListByPipeline(ctx context.Context, pipelineID string) ([]Stage, error) {
	return ListByPipeline(ctx, r.db, pipelineID)
}

func (r *Repository) Catalog(ctx context.Context, pipelineID string) (Catalog, error) {
	return LoadCatalog(ctx, r.db, pipelineID)
}

// ListByPipeline returns every stage of a pipeline, inactive included, ascending by order.
func ListByPipeline(ctx context.Context, q db.Querier, pipelineID string) ([]Stage, error) {
	const sql = `
SELECT id::text, pipeline_id, label, stage_order, is_active, COALESCE(color,'')
FROM pipeline_stages
WHERE pipeline_id = $1
ORDER BY stage_order ASC
`
	rows, err := q.Query(ctx, sql, pipelineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Stage
	for rows.Next() {
		var s Stage
		if err := rows.Scan(&s.ID, &s.PipelineID, &s.Label, &s.Order, &s.IsActive, &s.Color); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// LoadCatalog reads a pipeline's stages through q, which may be a transaction.
func LoadCatalog(ctx context.Context, q db.Querier, pipelineID string) (Catalog, error) {
	stages, err := ListByPipeline(ctx, q, pipelineID)
	if err != nil {
		return Catalog{}, err
	}
	return NewCatalog(pipelineID, stages)
}

// Upsert inserts a stage or updates the one already holding its order in the pipeline.
func Upsert(ctx context.Context, q db.Querier, s Stage) (string, error) {
	const sql = `
INSERT INTO pipeline_stages (pipeline_id, label, stage_order, is_active, color)
VALUES ($1, $2, $3, $4, NULLIF($5, ''))
ON CONFLICT (pipeline_id, stage_order) DO UPDATE SET
  label = EXCLUDED.label,
  is_active = EXCLUDED.is_active,
  color = EXCLUDED.color
RETURNING id::text
`
	var id string
	err := q.QueryRow(ctx, sql, s.PipelineID, s.Label, s.Order, s.IsActive, s.Color).Scan(&id)
	return id, err
}
