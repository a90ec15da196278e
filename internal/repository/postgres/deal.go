// Package postgres implements the repository interfaces the services
// define, against PostgreSQL via database/sql and lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/zahid-mohammadi/pivotalb2b-corp-sub000/internal/domain"
)

// DealRepo implements deal access for the audience resolver and the
// automation engine.
type DealRepo struct{ db *sql.DB }

// NewDealRepo creates a Postgres-backed deal repository.
func NewDealRepo(db *sql.DB) *DealRepo { return &DealRepo{db: db} }

const dealColumns = `id, title, full_name, COALESCE(company,''), email, COALESCE(phone,''),
	       stage_id, value, COALESCE(source,''), owner_id, created_at, updated_at`

func scanDeal(row interface{ Scan(...interface{}) error }, d *domain.PipelineDeal) error {
	return row.Scan(
		&d.ID, &d.Title, &d.FullName, &d.Company, &d.Email, &d.Phone,
		&d.StageID, &d.Value, &d.Source, &d.OwnerID, &d.CreatedAt, &d.UpdatedAt,
	)
}

// Get returns a deal by ID, or nil when it doesn't exist.
func (r *DealRepo) Get(ctx context.Context, id int64) (*domain.PipelineDeal, error) {
	d := &domain.PipelineDeal{}
	err := scanDeal(r.db.QueryRowContext(ctx, `
		SELECT `+dealColumns+`
		FROM crm_deals
		WHERE id = $1
	`, id), d)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get deal: %w", err)
	}
	return d, nil
}

// ListDeals returns every deal, ordered by ID for a stable snapshot.
func (r *DealRepo) ListDeals(ctx context.Context) ([]domain.PipelineDeal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+dealColumns+`
		FROM crm_deals
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list deals: %w", err)
	}
	defer rows.Close()

	var deals []domain.PipelineDeal
	for rows.Next() {
		var d domain.PipelineDeal
		if err := scanDeal(rows, &d); err != nil {
			return nil, fmt.Errorf("scan deal: %w", err)
		}
		deals = append(deals, d)
	}
	return deals, rows.Err()
}

// UpdateStage moves a deal to a new pipeline stage.
func (r *DealRepo) UpdateStage(ctx context.Context, id, stageID int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE crm_deals SET stage_id = $2, updated_at = NOW() WHERE id = $1
	`, id, stageID)
	if err != nil {
		return fmt.Errorf("update deal stage: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("deal %d not found", id)
	}
	return nil
}
