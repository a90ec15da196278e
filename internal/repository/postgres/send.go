package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/zahid-mohammadi/pivotalb2b-corp-sub000/internal/domain"
)

// SendRepo implements campaign.SendRepository against PostgreSQL. The
// same crm_campaign_sends table is mutated by the tracking consumer
// when open and click events arrive.
type SendRepo struct{ db *sql.DB }

// NewSendRepo creates a Postgres-backed send repository.
func NewSendRepo(db *sql.DB) *SendRepo { return &SendRepo{db: db} }

// Create inserts a send row under the caller-assigned ID.
func (r *SendRepo) Create(ctx context.Context, s *domain.CampaignSend) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO crm_campaign_sends (id, campaign_id, deal_id, email, variant_type)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, s.ID, s.CampaignID, s.DealID, s.Email, s.VariantType).Scan(&s.CreatedAt)
	if err != nil {
		return fmt.Errorf("create campaign send: %w", err)
	}
	return nil
}

// MarkSent records the delivery timestamp.
func (r *SendRepo) MarkSent(ctx context.Context, id string, at time.Time) error {
	return r.stamp(ctx, id, "sent_at", at)
}

// MarkBounced records a delivery failure.
func (r *SendRepo) MarkBounced(ctx context.Context, id string, at time.Time) error {
	return r.stamp(ctx, id, "bounced_at", at)
}

func (r *SendRepo) stamp(ctx context.Context, id, column string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE crm_campaign_sends SET %s = $2 WHERE id = $1`, column),
		id, at)
	if err != nil {
		return fmt.Errorf("mark send %s: %w", column, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("campaign send %s not found", id)
	}
	return nil
}

// Get returns a send row, or nil when it doesn't exist.
func (r *SendRepo) Get(ctx context.Context, id string) (*domain.CampaignSend, error) {
	s := &domain.CampaignSend{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, campaign_id, deal_id, email, variant_type,
		       sent_at, bounced_at, opened_at, clicked_at, created_at
		FROM crm_campaign_sends
		WHERE id = $1
	`, id).Scan(
		&s.ID, &s.CampaignID, &s.DealID, &s.Email, &s.VariantType,
		&s.SentAt, &s.BouncedAt, &s.OpenedAt, &s.ClickedAt, &s.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign send: %w", err)
	}
	return s, nil
}
