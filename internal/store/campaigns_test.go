package store

import (
	"context"
	"testing"

	"whatsapp-crm/internal/models"
)

func seedCampaign(t *testing.T, s *CampaignStore, leadCount int) *models.Campaign {
	t.Helper()
	campaign := &models.Campaign{
		TeamID:     "team-1",
		Name:       "launch",
		InstanceID: 1,
		TemplateID: "tpl-1",
	}
	leads := make([]models.CampaignLead, leadCount)
	for i := range leads {
		leads[i] = models.CampaignLead{Phone: "55110000000" + string(rune('0'+i))}
	}
	if err := s.Create(context.Background(), campaign, leads); err != nil {
		t.Fatalf("failed to seed campaign: %v", err)
	}
	return campaign
}

func TestCreateSetsCounters(t *testing.T) {
	db := testDB(t)
	s := NewCampaignStore(db)

	campaign := seedCampaign(t, s, 3)
	if campaign.Status != models.CampaignStatusDraft {
		t.Errorf("expected draft status, got %s", campaign.Status)
	}
	if campaign.TotalLeads != 3 {
		t.Errorf("expected total_leads=3, got %d", campaign.TotalLeads)
	}

	leads, err := s.Leads(context.Background(), campaign.ID)
	if err != nil {
		t.Fatal(err)
	}
	for _, l := range leads {
		if l.Status != models.LeadStatusPending {
			t.Errorf("lead %d: expected pending, got %s", l.ID, l.Status)
		}
	}
}

func TestClaimPendingLeadsBounded(t *testing.T) {
	db := testDB(t)
	s := NewCampaignStore(db)
	ctx := context.Background()
	campaign := seedCampaign(t, s, 5)

	claimID, claimed, err := s.ClaimPendingLeads(ctx, campaign.ID, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(claimed) != 3 {
		t.Fatalf("expected 3 claimed leads, got %d", len(claimed))
	}
	for _, l := range claimed {
		if l.Status != models.LeadStatusSending {
			t.Errorf("claimed lead %d not marked sending: %s", l.ID, l.Status)
		}
		if l.ClaimID != claimID {
			t.Errorf("claimed lead %d missing claim id", l.ID)
		}
	}

	pending, err := s.PendingCount(ctx, campaign.ID)
	if err != nil {
		t.Fatal(err)
	}
	if pending != 2 {
		t.Errorf("expected 2 leads still pending, got %d", pending)
	}
}

func TestConcurrentClaimsNeverOverlap(t *testing.T) {
	db := testDB(t)
	s := NewCampaignStore(db)
	ctx := context.Background()
	campaign := seedCampaign(t, s, 4)

	_, first, err := s.ClaimPendingLeads(ctx, campaign.ID, 3)
	if err != nil {
		t.Fatal(err)
	}
	_, second, err := s.ClaimPendingLeads(ctx, campaign.ID, 3)
	if err != nil {
		t.Fatal(err)
	}

	if len(first)+len(second) != 4 {
		t.Fatalf("expected all 4 leads across both claims, got %d + %d", len(first), len(second))
	}

	seen := map[uint]bool{}
	for _, l := range append(first, second...) {
		if seen[l.ID] {
			t.Fatalf("lead %d claimed by both batches", l.ID)
		}
		seen[l.ID] = true
	}

	// Nothing left to claim
	_, third, err := s.ClaimPendingLeads(ctx, campaign.ID, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(third) != 0 {
		t.Errorf("expected empty third claim, got %d leads", len(third))
	}
}

func TestReleaseClaimKeepsTerminalStatuses(t *testing.T) {
	db := testDB(t)
	s := NewCampaignStore(db)
	ctx := context.Background()
	campaign := seedCampaign(t, s, 3)

	claimID, claimed, err := s.ClaimPendingLeads(ctx, campaign.ID, 3)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.MarkLeadSent(ctx, claimed[0].ID); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkLeadFailed(ctx, claimed[1].ID, "number not on whatsapp"); err != nil {
		t.Fatal(err)
	}

	if err := s.ReleaseClaim(ctx, claimID); err != nil {
		t.Fatal(err)
	}

	leads, _ := s.Leads(ctx, campaign.ID)
	byID := map[uint]models.CampaignLead{}
	for _, l := range leads {
		byID[l.ID] = l
	}

	if got := byID[claimed[0].ID].Status; got != models.LeadStatusSent {
		t.Errorf("sent lead must keep its status, got %s", got)
	}
	if got := byID[claimed[1].ID]; got.Status != models.LeadStatusFailed || got.Error == "" {
		t.Errorf("failed lead must keep status and error, got %+v", got)
	}
	if got := byID[claimed[2].ID].Status; got != models.LeadStatusPending {
		t.Errorf("unprocessed lead must be released to pending, got %s", got)
	}
}

func TestAddCountersAccumulates(t *testing.T) {
	db := testDB(t)
	s := NewCampaignStore(db)
	ctx := context.Background()
	campaign := seedCampaign(t, s, 2)

	if err := s.AddCounters(ctx, campaign.ID, 2, 1); err != nil {
		t.Fatal(err)
	}
	if err := s.AddCounters(ctx, campaign.ID, 1, 0); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetByID(ctx, "team-1", campaign.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.SentCount != 3 || got.FailedCount != 1 {
		t.Errorf("expected counters 3/1, got %d/%d", got.SentCount, got.FailedCount)
	}
}

func TestGetByIDScopesTeam(t *testing.T) {
	db := testDB(t)
	s := NewCampaignStore(db)
	campaign := seedCampaign(t, s, 1)

	if _, err := s.GetByID(context.Background(), "team-2", campaign.ID); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for foreign team, got %v", err)
	}
}
