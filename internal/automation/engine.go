// Package automation evaluates declarative rules against domain
// trigger events and dispatches their actions. Producers publish
// events on the trigger bus; the consumer drains the bus and feeds
// the engine, so a slow or failing rule never blocks the operation
// that raised the event.
package automation

import (
	"context"
	"fmt"
	"log"

	"github.com/zahid-mohammadi/pivotalb2b-corp-sub000/internal/domain"
	"github.com/zahid-mohammadi/pivotalb2b-corp-sub000/internal/mail"
	"github.com/zahid-mohammadi/pivotalb2b-corp-sub000/internal/template"
)

// RuleRepository loads the automation rule set.
type RuleRepository interface {
	List(ctx context.Context) ([]domain.AutomationRule, error)
}

// DealRepository is the deal access the engine's actions need.
type DealRepository interface {
	// Get returns the deal, or nil when it doesn't exist.
	Get(ctx context.Context, id int64) (*domain.PipelineDeal, error)
	UpdateStage(ctx context.Context, id, stageID int64) error
}

// ActivityRepository appends timeline entries to deals.
type ActivityRepository interface {
	Create(ctx context.Context, a *domain.LeadActivity) error
}

// CampaignQueuer creates a queued campaign send for a single deal.
// Satisfied by campaign.Executor.
type CampaignQueuer interface {
	QueueSend(ctx context.Context, campaignID string, deal *domain.PipelineDeal) (*domain.CampaignSend, error)
}

// MailboxSender sends strictly through a user's mailbox connection.
// Satisfied by mail.Adapter.
type MailboxSender interface {
	SendViaMailbox(ctx context.Context, userID string, msg *mail.Message) (*mail.SendResult, error)
}

// Engine executes automation rules. One instance is created at process
// start with its collaborators injected.
type Engine struct {
	rules      RuleRepository
	deals      DealRepository
	activities ActivityRepository
	campaigns  CampaignQueuer
	sender     MailboxSender
	templates  *template.Engine
}

func NewEngine(
	rules RuleRepository,
	deals DealRepository,
	activities ActivityRepository,
	campaigns CampaignQueuer,
	sender MailboxSender,
	templates *template.Engine,
) *Engine {
	return &Engine{
		rules:      rules,
		deals:      deals,
		activities: activities,
		campaigns:  campaigns,
		sender:     sender,
		templates:  templates,
	}
}

// ExecuteRulesForTrigger evaluates every active rule subscribed to the
// trigger. Rules run independently: a failure inside one rule is logged
// and never aborts its siblings. The returned error covers only setup
// failures (rule or deal load), not rule outcomes.
func (e *Engine) ExecuteRulesForTrigger(ctx context.Context, trigger domain.TriggerType, tc *domain.TriggerContext) error {
	rules, err := e.rules.List(ctx)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}

	deal, err := e.deals.Get(ctx, tc.DealID)
	if err != nil {
		return fmt.Errorf("load deal %d: %w", tc.DealID, err)
	}
	if deal == nil {
		return fmt.Errorf("deal %d not found for trigger %s", tc.DealID, trigger)
	}

	for i := range rules {
		rule := &rules[i]
		if !rule.IsActive || rule.Trigger != trigger {
			continue
		}
		if !conditionsMatch(rule.Conditions, deal, tc) {
			continue
		}
		if err := e.runRule(ctx, rule, deal, tc); err != nil {
			log.Printf("[automation] rule %d (%s) failed: %v", rule.ID, rule.Name, err)
		}
	}
	return nil
}

// conditionsMatch evaluates a rule's condition conjunction. A nil
// block always matches. Value and stage come from the trigger context
// when the event carried them, otherwise from the deal's current state.
func conditionsMatch(c *domain.RuleConditions, deal *domain.PipelineDeal, tc *domain.TriggerContext) bool {
	if c == nil {
		return true
	}

	value := deal.Value
	if tc.NewValue != nil {
		value = *tc.NewValue
	}
	stage := deal.StageID
	if tc.NewStageID != nil {
		stage = *tc.NewStageID
	}

	if c.MinDealValue != nil && value < *c.MinDealValue {
		return false
	}
	if c.MaxDealValue != nil && value > *c.MaxDealValue {
		return false
	}
	if c.StageID != nil && stage != *c.StageID {
		return false
	}
	return true
}

// runRule dispatches the rule's actions in order. An action failure
// stops the remainder of this rule; unknown action types are skipped.
func (e *Engine) runRule(ctx context.Context, rule *domain.AutomationRule, deal *domain.PipelineDeal, tc *domain.TriggerContext) error {
	for i := range rule.Actions {
		action := &rule.Actions[i]

		switch action.Type {
		case domain.ActionMoveDeal, domain.ActionSendEmail, domain.ActionSendCampaign, domain.ActionCreateActivity:
		default:
			log.Printf("[automation] rule %d: skipping unknown action type %q", rule.ID, action.Type)
			continue
		}
		if err := action.Validate(); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}

		var err error
		switch action.Type {
		case domain.ActionMoveDeal:
			err = e.moveDeal(ctx, action.MoveDeal, deal, tc)
		case domain.ActionSendEmail:
			err = e.sendEmail(ctx, action.SendEmail, deal, tc)
		case domain.ActionSendCampaign:
			err = e.sendCampaign(ctx, action.SendCampaign, deal, tc)
		case domain.ActionCreateActivity:
			err = e.createActivity(ctx, action.CreateActivity, deal, tc)
		}
		if err != nil {
			return fmt.Errorf("action %d (%s): %w", i, action.Type, err)
		}
	}
	return nil
}

func (e *Engine) moveDeal(ctx context.Context, cfg *domain.MoveDealConfig, deal *domain.PipelineDeal, tc *domain.TriggerContext) error {
	if err := e.deals.UpdateStage(ctx, deal.ID, cfg.StageID); err != nil {
		return fmt.Errorf("move deal %d to stage %d: %w", deal.ID, cfg.StageID, err)
	}
	deal.StageID = cfg.StageID
	return e.activities.Create(ctx, &domain.LeadActivity{
		DealID:  deal.ID,
		Type:    domain.ActivityStageChange,
		Content: fmt.Sprintf("Moved to stage %d by automation", cfg.StageID),
		UserID:  tc.UserID,
	})
}

// sendEmail delivers one ad hoc message through the triggering user's
// mailbox. There is no provider fallback here: an ad hoc email claims
// to come from the user personally, so a missing connection fails the
// action instead of rerouting through bulk infrastructure.
func (e *Engine) sendEmail(ctx context.Context, cfg *domain.SendEmailConfig, deal *domain.PipelineDeal, tc *domain.TriggerContext) error {
	binding := template.DealBinding(deal)
	subject := e.templates.Render(cfg.Subject, binding)
	body := e.templates.Render(cfg.Body, binding)

	res, err := e.sender.SendViaMailbox(ctx, tc.UserID, &mail.Message{
		To:          deal.Email,
		ToName:      deal.FullName,
		Subject:     subject,
		HTMLContent: body,
	})
	if err != nil {
		return fmt.Errorf("mailbox send to deal %d: %w", deal.ID, err)
	}
	if !res.Success {
		return fmt.Errorf("mailbox send to deal %d rejected: %s", deal.ID, res.Reason)
	}

	return e.activities.Create(ctx, &domain.LeadActivity{
		DealID:  deal.ID,
		Type:    domain.ActivityEmailSent,
		Content: fmt.Sprintf("Automated email sent: %s", subject),
		UserID:  tc.UserID,
	})
}

func (e *Engine) sendCampaign(ctx context.Context, cfg *domain.SendCampaignConfig, deal *domain.PipelineDeal, tc *domain.TriggerContext) error {
	send, err := e.campaigns.QueueSend(ctx, cfg.CampaignID, deal)
	if err != nil {
		return fmt.Errorf("queue campaign %s for deal %d: %w", cfg.CampaignID, deal.ID, err)
	}
	return e.activities.Create(ctx, &domain.LeadActivity{
		DealID:  deal.ID,
		Type:    domain.ActivityNote,
		Content: fmt.Sprintf("Campaign send queued (send %s)", send.ID),
		UserID:  tc.UserID,
	})
}

func (e *Engine) createActivity(ctx context.Context, cfg *domain.CreateActivityConfig, deal *domain.PipelineDeal, tc *domain.TriggerContext) error {
	return e.activities.Create(ctx, &domain.LeadActivity{
		DealID:  deal.ID,
		Type:    domain.ActivityNote,
		Content: cfg.Content,
		UserID:  tc.UserID,
	})
}
