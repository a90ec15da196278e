package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/zahid-mohammadi/pivotalb2b-corp-sub000/internal/domain"
)

// ActivityRepo appends timeline entries. Activities are append-only;
// there is deliberately no update or delete here.
type ActivityRepo struct{ db *sql.DB }

// NewActivityRepo creates a Postgres-backed activity repository.
func NewActivityRepo(db *sql.DB) *ActivityRepo { return &ActivityRepo{db: db} }

// Create inserts an activity and fills in its generated ID.
func (r *ActivityRepo) Create(ctx context.Context, a *domain.LeadActivity) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO crm_activities (deal_id, type, content, user_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, a.DealID, a.Type, a.Content, a.UserID).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return fmt.Errorf("create activity: %w", err)
	}
	return nil
}

// ListByDeal returns a deal's timeline, newest first.
func (r *ActivityRepo) ListByDeal(ctx context.Context, dealID int64) ([]domain.LeadActivity, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, deal_id, type, content, user_id, created_at
		FROM crm_activities
		WHERE deal_id = $1
		ORDER BY created_at DESC
	`, dealID)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var out []domain.LeadActivity
	for rows.Next() {
		var a domain.LeadActivity
		if err := rows.Scan(&a.ID, &a.DealID, &a.Type, &a.Content, &a.UserID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
