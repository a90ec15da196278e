package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zahid-mohammadi/pivotalb2b-corp-sub000/internal/campaign"
	"github.com/zahid-mohammadi/pivotalb2b-corp-sub000/internal/domain"
)

// CampaignRepo implements campaign.CampaignRepository against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

// Get returns a single campaign. Returns campaign.ErrNotFound if it
// doesn't exist.
func (r *CampaignRepo) Get(ctx context.Context, id string) (*domain.EmailCampaign, error) {
	c := &domain.EmailCampaign{}
	var filtersJSON []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, subject, content, subject_b, content_b, segment_filters,
		       COALESCE(from_name,''), COALESCE(from_email,''),
		       status, sent_at, created_by, created_at, updated_at
		FROM crm_campaigns
		WHERE id = $1
	`, id).Scan(
		&c.ID, &c.Name, &c.Subject, &c.Content, &c.SubjectB, &c.ContentB, &filtersJSON,
		&c.FromName, &c.FromEmail,
		&c.Status, &c.SentAt, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	if len(filtersJSON) > 0 && string(filtersJSON) != "null" {
		c.SegmentFilters = &domain.SegmentFilters{}
		if err := json.Unmarshal(filtersJSON, c.SegmentFilters); err != nil {
			return nil, fmt.Errorf("decode campaign %s filters: %w", id, err)
		}
	}
	return c, nil
}

// UpdateStatus transitions a campaign's status, stamping sent_at when
// provided.
func (r *CampaignRepo) UpdateStatus(ctx context.Context, id string, status domain.CampaignStatus, sentAt *time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE crm_campaigns
		SET status = $2, sent_at = COALESCE($3, sent_at), updated_at = NOW()
		WHERE id = $1
	`, id, status, sentAt)
	if err != nil {
		return fmt.Errorf("update campaign status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}
