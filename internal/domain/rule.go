package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// TriggerType enumerates the domain events automation rules subscribe to.
type TriggerType string

const (
	TriggerDealCreated      TriggerType = "deal_created"
	TriggerDealStageChanged TriggerType = "deal_stage_changed"
	TriggerDealValueChanged TriggerType = "deal_value_changed"
	TriggerActivityAdded    TriggerType = "activity_added"
	TriggerTimeBased        TriggerType = "time_based"
)

// RuleConditions is an optional conjunction of predicates evaluated
// against the trigger context. A nil condition block means the rule
// always matches its trigger.
type RuleConditions struct {
	MinDealValue *float64 `json:"min_deal_value,omitempty"`
	MaxDealValue *float64 `json:"max_deal_value,omitempty"`
	StageID      *int64   `json:"stage_id,omitempty"`
}

// ActionType enumerates the kinds of rule actions.
type ActionType string

const (
	ActionMoveDeal       ActionType = "move_deal"
	ActionSendEmail      ActionType = "send_email"
	ActionSendCampaign   ActionType = "send_campaign"
	ActionCreateActivity ActionType = "create_activity"
)

// MoveDealConfig moves the triggering deal to a target stage.
type MoveDealConfig struct {
	StageID int64 `json:"stage_id"`
}

// SendEmailConfig sends a single ad hoc email to the deal's contact
// through the invoking user's mailbox connection.
type SendEmailConfig struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// SendCampaignConfig queues a campaign send for the triggering deal.
type SendCampaignConfig struct {
	CampaignID string `json:"campaign_id"`
}

// CreateActivityConfig appends a note activity with the given text.
type CreateActivityConfig struct {
	Content string `json:"content"`
}

// Action is a tagged union over the action kinds. Exactly one of the
// config fields matching Type is non-nil; Decode enforces this after
// unmarshaling. Unknown types survive decoding (Type is preserved) so
// the engine can log and skip them.
type Action struct {
	Type           ActionType            `json:"type"`
	MoveDeal       *MoveDealConfig       `json:"-"`
	SendEmail      *SendEmailConfig      `json:"-"`
	SendCampaign   *SendCampaignConfig   `json:"-"`
	CreateActivity *CreateActivityConfig `json:"-"`
}

// actionEnvelope is the persisted wire form: {"type": ..., "config": {...}}.
type actionEnvelope struct {
	Type   ActionType      `json:"type"`
	Config json.RawMessage `json:"config,omitempty"`
}

// MarshalJSON encodes the action in {type, config} envelope form.
func (a Action) MarshalJSON() ([]byte, error) {
	env := actionEnvelope{Type: a.Type}

	var cfg interface{}
	switch a.Type {
	case ActionMoveDeal:
		cfg = a.MoveDeal
	case ActionSendEmail:
		cfg = a.SendEmail
	case ActionSendCampaign:
		cfg = a.SendCampaign
	case ActionCreateActivity:
		cfg = a.CreateActivity
	}
	if cfg != nil {
		raw, err := json.Marshal(cfg)
		if err != nil {
			return nil, err
		}
		env.Config = raw
	}
	return json.Marshal(env)
}

// UnmarshalJSON decodes the {type, config} envelope into the typed
// config matching the discriminator. Unknown types decode without a
// config so callers can skip them explicitly.
func (a *Action) UnmarshalJSON(data []byte) error {
	var env actionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	*a = Action{Type: env.Type}
	if len(env.Config) == 0 {
		return nil
	}

	switch env.Type {
	case ActionMoveDeal:
		a.MoveDeal = &MoveDealConfig{}
		return json.Unmarshal(env.Config, a.MoveDeal)
	case ActionSendEmail:
		a.SendEmail = &SendEmailConfig{}
		return json.Unmarshal(env.Config, a.SendEmail)
	case ActionSendCampaign:
		a.SendCampaign = &SendCampaignConfig{}
		return json.Unmarshal(env.Config, a.SendCampaign)
	case ActionCreateActivity:
		a.CreateActivity = &CreateActivityConfig{}
		return json.Unmarshal(env.Config, a.CreateActivity)
	}
	return nil
}

// Validate checks that the action carries the config its type requires.
func (a Action) Validate() error {
	switch a.Type {
	case ActionMoveDeal:
		if a.MoveDeal == nil {
			return fmt.Errorf("move_deal action missing config")
		}
	case ActionSendEmail:
		if a.SendEmail == nil {
			return fmt.Errorf("send_email action missing config")
		}
	case ActionSendCampaign:
		if a.SendCampaign == nil || a.SendCampaign.CampaignID == "" {
			return fmt.Errorf("send_campaign action missing campaign_id")
		}
	case ActionCreateActivity:
		if a.CreateActivity == nil {
			return fmt.Errorf("create_activity action missing config")
		}
	default:
		return fmt.Errorf("unknown action type %q", a.Type)
	}
	return nil
}

// AutomationRule binds a trigger to an ordered list of actions, gated
// by optional conditions. Rules are created and edited through the UI
// and evaluated read-only by the engine; the engine never mutates them.
type AutomationRule struct {
	ID         int64           `json:"id" db:"id"`
	Name       string          `json:"name" db:"name"`
	Trigger    TriggerType     `json:"trigger" db:"trigger"`
	Conditions *RuleConditions `json:"conditions,omitempty" db:"conditions"`
	Actions    []Action        `json:"actions" db:"actions"`
	IsActive   bool            `json:"is_active" db:"is_active"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}

// TriggerContext carries the event payload rules evaluate against.
// Previous/new pairs are populated only for the transitions that have
// them (stage change, value change).
type TriggerContext struct {
	DealID          int64    `json:"deal_id"`
	UserID          string   `json:"user_id"`
	ActivityID      *int64   `json:"activity_id,omitempty"`
	PreviousStageID *int64   `json:"previous_stage_id,omitempty"`
	NewStageID      *int64   `json:"new_stage_id,omitempty"`
	PreviousValue   *float64 `json:"previous_value,omitempty"`
	NewValue        *float64 `json:"new_value,omitempty"`
}
