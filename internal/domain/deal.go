package domain

import "time"

// PipelineDeal represents a lead/opportunity record moving through the
// sales pipeline. Deals are mutated by normal CRUD and by automation
// rule actions (stage moves); the audience resolver and the template
// engine read them.
type PipelineDeal struct {
	ID        int64     `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	FullName  string    `json:"full_name" db:"full_name"`
	Company   string    `json:"company" db:"company"`
	Email     string    `json:"email" db:"email"`
	Phone     string    `json:"phone" db:"phone"`
	StageID   int64     `json:"stage_id" db:"stage_id"`
	Value     float64   `json:"value" db:"value"`
	Source    string    `json:"source" db:"source"`
	OwnerID   string    `json:"owner_id" db:"owner_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ActivityType enumerates the kinds of timeline entries on a deal.
type ActivityType string

const (
	ActivityStageChange ActivityType = "stage_change"
	ActivityEmailSent   ActivityType = "email_sent"
	ActivityNote        ActivityType = "note"
)

// LeadActivity is an append-only audit/timeline entry on a deal,
// created by both manual UI actions and automated actions. Immutable
// once created.
type LeadActivity struct {
	ID        int64        `json:"id" db:"id"`
	DealID    int64        `json:"deal_id" db:"deal_id"`
	Type      ActivityType `json:"type" db:"type"`
	Content   string       `json:"content" db:"content"`
	UserID    string       `json:"user_id" db:"user_id"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}
