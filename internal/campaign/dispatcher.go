package campaign

import (
	"context"
	"fmt"
	"log"
	"time"

	"whatsapp-crm/internal/gateway"
	"whatsapp-crm/internal/models"
	"whatsapp-crm/internal/store"
	"whatsapp-crm/internal/template"
	"whatsapp-crm/internal/ws"

	"github.com/google/uuid"
)

// Dispatcher drives bounded batch execution of a campaign: claim a slice of
// pending leads, send one templated message per lead, track per-lead status
// and aggregate counters.
type Dispatcher struct {
	Campaigns *store.CampaignStore
	Instances *store.InstanceStore
	Templates *store.TemplateStore
	Messages  *store.MessageStore
	Gateway   gateway.Sender
	Hub       ws.Publisher

	BatchSize int
	SendDelay time.Duration
}

func NewDispatcher(campaigns *store.CampaignStore, instances *store.InstanceStore, templates *store.TemplateStore, messages *store.MessageStore, gw gateway.Sender, hub ws.Publisher, batchSize int, sendDelay time.Duration) *Dispatcher {
	if hub == nil {
		hub = ws.NopPublisher{}
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Dispatcher{
		Campaigns: campaigns,
		Instances: instances,
		Templates: templates,
		Messages:  messages,
		Gateway:   gw,
		Hub:       hub,
		BatchSize: batchSize,
		SendDelay: sendDelay,
	}
}

// DispatchBatch processes one claimed slice of pending leads. Per-lead
// failures are recorded on the lead and never abort the loop; only missing
// campaign/template/instance state fails the whole call, before any lead is
// claimed. When pending leads remain after the slice the campaign stays
// processing and a re-trigger picks up the next slice.
func (d *Dispatcher) DispatchBatch(ctx context.Context, teamID string, campaignID uint) (int, int, error) {
	campaign, err := d.Campaigns.GetByID(ctx, teamID, campaignID)
	if err != nil {
		return 0, 0, fmt.Errorf("campaign %d: %w", campaignID, err)
	}

	tmpl, err := d.Templates.GetByID(ctx, teamID, campaign.TemplateID)
	if err != nil {
		return 0, 0, fmt.Errorf("campaign %d template %q: %w", campaignID, campaign.TemplateID, err)
	}

	inst, err := d.Instances.GetByID(ctx, teamID, campaign.InstanceID)
	if err != nil {
		return 0, 0, fmt.Errorf("campaign %d instance %d: %w", campaignID, campaign.InstanceID, err)
	}
	if err := checkCredentials(inst); err != nil {
		return 0, 0, fmt.Errorf("campaign %d: %w", campaignID, err)
	}

	body := template.BodyText(tmpl.Components)

	claimID, leads, err := d.Campaigns.ClaimPendingLeads(ctx, campaignID, d.BatchSize)
	if err != nil {
		return 0, 0, err
	}

	if len(leads) == 0 {
		return 0, 0, d.finish(ctx, teamID, campaignID, 0, 0)
	}

	if err := d.Campaigns.SetStatus(ctx, campaignID, models.CampaignStatusProcessing); err != nil {
		return 0, 0, err
	}

	sent, failed := 0, 0
	for i, lead := range leads {
		if i > 0 && d.SendDelay > 0 {
			// Fixed inter-message delay to respect provider throughput limits
			select {
			case <-time.After(d.SendDelay):
			case <-ctx.Done():
			}
		}

		if ctx.Err() != nil {
			// Abort between leads: processed leads keep their terminal
			// status, the rest of the claim goes back to pending.
			if relErr := d.Campaigns.ReleaseClaim(context.WithoutCancel(ctx), claimID); relErr != nil {
				log.Printf("[Campaign %d] Failed to release claim %s: %v", campaignID, claimID, relErr)
			}
			if cntErr := d.Campaigns.AddCounters(context.WithoutCancel(ctx), campaignID, sent, failed); cntErr != nil {
				log.Printf("[Campaign %d] Failed to flush counters: %v", campaignID, cntErr)
			}
			return sent, failed, ctx.Err()
		}

		// Lead bookkeeping must land even when cancellation arrives while the
		// provider call is in flight; a sent lead that is not marked sent
		// would be released and delivered twice.
		bookCtx := context.WithoutCancel(ctx)
		if err := d.sendLead(ctx, bookCtx, teamID, inst, tmpl, body, lead); err != nil {
			failed++
			if markErr := d.Campaigns.MarkLeadFailed(bookCtx, lead.ID, err.Error()); markErr != nil {
				log.Printf("[Campaign %d] Failed to mark lead %d failed: %v", campaignID, lead.ID, markErr)
			}
			log.Printf("[Campaign %d] Lead %d (%s) failed: %v", campaignID, lead.ID, lead.Phone, err)
		} else {
			sent++
			if markErr := d.Campaigns.MarkLeadSent(bookCtx, lead.ID); markErr != nil {
				log.Printf("[Campaign %d] Failed to mark lead %d sent: %v", campaignID, lead.ID, markErr)
			}
		}

		d.Hub.Publish(teamID, ws.EventCampaignProgress, map[string]interface{}{
			"campaign_id": campaignID,
			"lead_id":     lead.ID,
			"sent":        sent,
			"failed":      failed,
		})
	}

	return sent, failed, d.finish(context.WithoutCancel(ctx), teamID, campaignID, sent, failed)
}

func (d *Dispatcher) sendLead(ctx, bookCtx context.Context, teamID string, inst *models.Instance, tmpl *models.Template, body string, lead models.CampaignLead) error {
	vars, err := template.ParseVariables([]byte(lead.Variables))
	if err != nil {
		return err
	}
	params := template.Render(body, vars)

	providerID, _, err := d.Gateway.Send(ctx, *inst, gateway.SendRequest{
		To: lead.Phone,
		Template: &gateway.TemplatePayload{
			Name:       tmpl.Name,
			Language:   tmpl.Language,
			BodyParams: params,
		},
	})
	if err != nil {
		return err
	}

	if providerID == "" {
		providerID = uuid.NewString()
	}

	preview := template.Preview(body, params)
	now := time.Now()
	_, err = d.Messages.UpsertChatAndRecordMessage(bookCtx, teamID, inst.ID, lead.Phone,
		store.Summary{Text: preview, Timestamp: now, Status: models.MessageStatusSent},
		models.Message{
			MessageID: providerID,
			FromMe:    true,
			Type:      "template",
			Text:      preview,
			Status:    models.MessageStatusSent,
			Timestamp: now,
		})
	if err != nil {
		// The provider accepted the message; a bookkeeping failure must not
		// flip the lead to failed.
		log.Printf("[Campaign] Failed to record message for lead %d: %v", lead.ID, err)
	}

	return nil
}

// finish adds the batch counters and completes the campaign only when no
// pending leads remain.
func (d *Dispatcher) finish(ctx context.Context, teamID string, campaignID uint, sent, failed int) error {
	if err := d.Campaigns.AddCounters(ctx, campaignID, sent, failed); err != nil {
		return err
	}

	pending, err := d.Campaigns.PendingCount(ctx, campaignID)
	if err != nil {
		return err
	}
	if pending == 0 {
		if err := d.Campaigns.SetStatus(ctx, campaignID, models.CampaignStatusCompleted); err != nil {
			return err
		}
	}

	d.Hub.Publish(teamID, ws.EventCampaignProgress, map[string]interface{}{
		"campaign_id": campaignID,
		"sent":        sent,
		"failed":      failed,
		"pending":     pending,
	})

	return nil
}

func checkCredentials(inst *models.Instance) error {
	switch inst.Provider {
	case models.ProviderCloudAPI:
		if inst.Token == "" || inst.PhoneNumberID == "" {
			return fmt.Errorf("instance %q is missing cloud-api credentials", inst.Name)
		}
	case models.ProviderBridge:
		if inst.APIURL == "" || inst.APIKey == "" {
			return fmt.Errorf("instance %q is missing bridge credentials", inst.Name)
		}
	default:
		return fmt.Errorf("instance %q has unknown provider %q", inst.Name, inst.Provider)
	}
	return nil
}
