package domain

import "time"

// CampaignStatus enumerates the lifecycle states of a campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignSending   CampaignStatus = "sending"
	CampaignSent      CampaignStatus = "sent"
	CampaignFailed    CampaignStatus = "failed"
)

// SegmentFilters selects a campaign's target audience from all pipeline
// deals. Dimensions combine with AND; values within a list filter
// combine with OR. A nil filter set matches every deal.
type SegmentFilters struct {
	StageIDs     []int64  `json:"stage_ids,omitempty"`
	MinDealValue *float64 `json:"min_deal_value,omitempty"`
	MaxDealValue *float64 `json:"max_deal_value,omitempty"`
	Sources      []string `json:"sources,omitempty"`
}

// EmailCampaign holds campaign content plus an optional B variant for
// A/B splits and the segment filters that define its audience.
type EmailCampaign struct {
	ID             string          `json:"id" db:"id"`
	Name           string          `json:"name" db:"name"`
	Subject        string          `json:"subject" db:"subject"`
	Content        string          `json:"content" db:"content"`
	SubjectB       *string         `json:"subject_b,omitempty" db:"subject_b"`
	ContentB       *string         `json:"content_b,omitempty" db:"content_b"`
	SegmentFilters *SegmentFilters `json:"segment_filters,omitempty" db:"segment_filters"`
	FromName       string          `json:"from_name" db:"from_name"`
	FromEmail      string          `json:"from_email" db:"from_email"`
	Status         CampaignStatus  `json:"status" db:"status"`
	SentAt         *time.Time      `json:"sent_at,omitempty" db:"sent_at"`
	CreatedBy      string          `json:"created_by" db:"created_by"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// HasVariantB reports whether the campaign defines a B variant.
func (c *EmailCampaign) HasVariantB() bool {
	return c.SubjectB != nil || c.ContentB != nil
}

// Variant names recorded on send rows.
const (
	VariantA = "A"
	VariantB = "B"
)

// CampaignSend is the per-recipient row tracking one campaign email's
// delivery and engagement state. Its ID is embedded permanently in the
// tracking URLs, so it must be unique and stable for the lifetime of
// the sent message. The row is created before the message content is
// rewritten with tracking links.
type CampaignSend struct {
	ID          string     `json:"id" db:"id"`
	CampaignID  string     `json:"campaign_id" db:"campaign_id"`
	DealID      int64      `json:"deal_id" db:"deal_id"`
	Email       string     `json:"email" db:"email"`
	VariantType string     `json:"variant_type" db:"variant_type"`
	SentAt      *time.Time `json:"sent_at,omitempty" db:"sent_at"`
	BouncedAt   *time.Time `json:"bounced_at,omitempty" db:"bounced_at"`
	OpenedAt    *time.Time `json:"opened_at,omitempty" db:"opened_at"`
	ClickedAt   *time.Time `json:"clicked_at,omitempty" db:"clicked_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}
