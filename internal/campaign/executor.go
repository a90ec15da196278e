package campaign

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/zahid-mohammadi/pivotalb2b-corp-sub000/internal/domain"
	"github.com/zahid-mohammadi/pivotalb2b-corp-sub000/internal/mail"
	"github.com/zahid-mohammadi/pivotalb2b-corp-sub000/internal/template"
	"github.com/zahid-mohammadi/pivotalb2b-corp-sub000/internal/tracking"
)

// Sender dispatches one message as the given user. Satisfied by
// mail.Adapter.
type Sender interface {
	Send(ctx context.Context, userID string, msg *mail.Message) (*mail.SendResult, error)
}

// RunResult summarizes one campaign run.
type RunResult struct {
	CampaignID string `json:"campaign_id"`
	Total      int    `json:"total"`
	Sent       int    `json:"sent"`
	Bounced    int    `json:"bounced"`
}

// Executor runs campaigns. One instance is created at process start
// with its collaborators injected; it holds no per-run state and is
// safe for concurrent use if its collaborators are.
type Executor struct {
	campaigns  CampaignRepository
	sends      SendRepository
	activities ActivityRepository
	audience   AudienceResolver
	sender     Sender
	templates  *template.Engine
	baseURL    string

	// variantDraw returns a uniform float in [0,1). Overridable for
	// deterministic tests.
	variantDraw func() float64
}

// NewExecutor creates a campaign executor. baseURL is the public root
// of the tracking endpoints, without a trailing slash.
func NewExecutor(
	campaigns CampaignRepository,
	sends SendRepository,
	activities ActivityRepository,
	audience AudienceResolver,
	sender Sender,
	templates *template.Engine,
	baseURL string,
) *Executor {
	return &Executor{
		campaigns:   campaigns,
		sends:       sends,
		activities:  activities,
		audience:    audience,
		sender:      sender,
		templates:   templates,
		baseURL:     baseURL,
		variantDraw: rand.Float64,
	}
}

// SetVariantDraw overrides the variant coin flip. Used in tests.
func (e *Executor) SetVariantDraw(draw func() float64) {
	e.variantDraw = draw
}

// Execute runs one campaign to completion. Per-recipient failures are
// recorded as bounces and never abort the run; an empty audience fails
// the whole run with ErrNoRecipients.
func (e *Executor) Execute(ctx context.Context, campaignID string) (*RunResult, error) {
	c, err := e.campaigns.Get(ctx, campaignID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("campaign %s: %w", campaignID, ErrNotFound)
		}
		return nil, fmt.Errorf("load campaign %s: %w", campaignID, err)
	}
	if c.Status == domain.CampaignSending || c.Status == domain.CampaignSent {
		return nil, fmt.Errorf("campaign %s: %w", campaignID, ErrAlreadySent)
	}

	if err := e.campaigns.UpdateStatus(ctx, c.ID, domain.CampaignSending, nil); err != nil {
		return nil, fmt.Errorf("mark campaign sending: %w", err)
	}

	recipients, err := e.audience.Resolve(ctx, c.SegmentFilters)
	if err != nil {
		e.fail(ctx, c.ID)
		return nil, fmt.Errorf("resolve audience: %w", err)
	}
	if len(recipients) == 0 {
		e.fail(ctx, c.ID)
		return nil, fmt.Errorf("campaign %s: %w", campaignID, ErrNoRecipients)
	}

	log.Printf("[campaign] executing %s (%s): %d recipients", c.ID, c.Name, len(recipients))

	result := &RunResult{CampaignID: c.ID, Total: len(recipients)}
	for i := range recipients {
		if e.sendToRecipient(ctx, c, &recipients[i]) {
			result.Sent++
		} else {
			result.Bounced++
		}
	}

	// The campaign is marked sent once every recipient has been
	// attempted, whatever the bounce count ended up as.
	now := time.Now()
	if err := e.campaigns.UpdateStatus(ctx, c.ID, domain.CampaignSent, &now); err != nil {
		return result, fmt.Errorf("mark campaign sent: %w", err)
	}

	log.Printf("[campaign] finished %s: sent=%d bounced=%d", c.ID, result.Sent, result.Bounced)
	return result, nil
}

// sendToRecipient handles one recipient end to end and reports whether
// the message was delivered. Every failure path is local to the
// recipient.
func (e *Executor) sendToRecipient(ctx context.Context, c *domain.EmailCampaign, deal *domain.PipelineDeal) bool {
	variant := e.pickVariant(c)
	send := &domain.CampaignSend{
		ID:          uuid.New().String(),
		CampaignID:  c.ID,
		DealID:      deal.ID,
		Email:       deal.Email,
		VariantType: variant,
	}
	// The send row goes in before any content is rewritten: the
	// tracking URLs embed its ID, so a hit on a URL whose row was
	// never persisted would be unattributable.
	if err := e.sends.Create(ctx, send); err != nil {
		log.Printf("[campaign] create send for deal %d failed: %v", deal.ID, err)
		return false
	}

	subject, content := e.variantContent(c, variant)
	binding := template.DealBinding(deal)
	subject = e.templates.Render(subject, binding)
	content = e.templates.Render(content, binding)

	// Links first, pixel second. The pixel URL contains the tracking
	// path and must not itself get click-wrapped.
	content = tracking.WrapLinksWithTracking(content, send.ID, e.baseURL)
	content = tracking.AddTrackingPixel(content, send.ID, e.baseURL)

	res, err := e.sender.Send(ctx, c.CreatedBy, &mail.Message{
		To:          deal.Email,
		ToName:      deal.FullName,
		FromEmail:   c.FromEmail,
		FromName:    c.FromName,
		Subject:     subject,
		HTMLContent: content,
		CampaignID:  c.ID,
		SendID:      send.ID,
	})

	now := time.Now()
	if err != nil || !res.Success {
		if err != nil {
			log.Printf("[campaign] send %s failed: %v", send.ID, err)
		} else {
			log.Printf("[campaign] send %s rejected: %s", send.ID, res.Reason)
		}
		if mbErr := e.sends.MarkBounced(ctx, send.ID, now); mbErr != nil {
			log.Printf("[campaign] mark send %s bounced failed: %v", send.ID, mbErr)
		}
		return false
	}

	if err := e.sends.MarkSent(ctx, send.ID, now); err != nil {
		log.Printf("[campaign] mark send %s sent failed: %v", send.ID, err)
	}
	if err := e.activities.Create(ctx, &domain.LeadActivity{
		DealID:  deal.ID,
		Type:    domain.ActivityEmailSent,
		Content: fmt.Sprintf("Campaign %q sent: %s", c.Name, subject),
		UserID:  c.CreatedBy,
	}); err != nil {
		log.Printf("[campaign] log activity for deal %d failed: %v", deal.ID, err)
	}
	return true
}

// pickVariant flips an independent fair coin per recipient when a B
// variant exists. Recipients of the same campaign get independent
// draws, not a shared campaign-level outcome.
func (e *Executor) pickVariant(c *domain.EmailCampaign) string {
	if !c.HasVariantB() {
		return domain.VariantA
	}
	if e.variantDraw() < 0.5 {
		return domain.VariantB
	}
	return domain.VariantA
}

// variantContent returns the subject/content pair for the chosen
// variant, falling back to the A fields where the B ones are unset.
func (e *Executor) variantContent(c *domain.EmailCampaign, variant string) (string, string) {
	subject, content := c.Subject, c.Content
	if variant == domain.VariantB {
		if c.SubjectB != nil {
			subject = *c.SubjectB
		}
		if c.ContentB != nil {
			content = *c.ContentB
		}
	}
	return subject, content
}

// QueueSend creates a send row linking a campaign to a deal without
// dispatching mail. Used by automation rules that enqueue a campaign
// for a single deal.
func (e *Executor) QueueSend(ctx context.Context, campaignID string, deal *domain.PipelineDeal) (*domain.CampaignSend, error) {
	c, err := e.campaigns.Get(ctx, campaignID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("campaign %s: %w", campaignID, ErrNotFound)
		}
		return nil, fmt.Errorf("load campaign %s: %w", campaignID, err)
	}

	send := &domain.CampaignSend{
		ID:          uuid.New().String(),
		CampaignID:  c.ID,
		DealID:      deal.ID,
		Email:       deal.Email,
		VariantType: domain.VariantA,
	}
	if err := e.sends.Create(ctx, send); err != nil {
		return nil, fmt.Errorf("queue send: %w", err)
	}
	return send, nil
}

func (e *Executor) fail(ctx context.Context, campaignID string) {
	if err := e.campaigns.UpdateStatus(ctx, campaignID, domain.CampaignFailed, nil); err != nil {
		log.Printf("[campaign] mark campaign %s failed errored: %v", campaignID, err)
	}
}
