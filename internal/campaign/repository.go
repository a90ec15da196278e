package campaign

import (
	"context"
	"time"

	"github.com/zahid-mohammadi/pivotalb2b-corp-sub000/internal/domain"
)

// CampaignRepository defines the data access contract for campaigns.
// Implementations must be safe for concurrent use.
type CampaignRepository interface {
	// Get returns a single campaign. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.EmailCampaign, error)

	// UpdateStatus transitions a campaign's status. sentAt is recorded
	// when non-nil.
	UpdateStatus(ctx context.Context, id string, status domain.CampaignStatus, sentAt *time.Time) error
}

// SendRepository persists per-recipient send rows.
type SendRepository interface {
	// Create inserts a new send row. The caller assigns the ID, since
	// tracking URLs embed it before the message leaves the process.
	Create(ctx context.Context, s *domain.CampaignSend) error

	// MarkSent records the delivery timestamp.
	MarkSent(ctx context.Context, id string, at time.Time) error

	// MarkBounced records a delivery failure.
	MarkBounced(ctx context.Context, id string, at time.Time) error
}

// ActivityRepository appends timeline entries to deals.
type ActivityRepository interface {
	Create(ctx context.Context, a *domain.LeadActivity) error
}

// AudienceResolver turns segment filters into a concrete recipient set.
type AudienceResolver interface {
	Resolve(ctx context.Context, filters *domain.SegmentFilters) ([]domain.PipelineDeal, error)
}
