package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"whatsapp-crm/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CampaignStore persists campaigns and their leads
type CampaignStore struct {
	DB *gorm.DB
}

func NewCampaignStore(db *gorm.DB) *CampaignStore {
	return &CampaignStore{DB: db}
}

func (s *CampaignStore) Create(ctx context.Context, campaign *models.Campaign, leads []models.CampaignLead) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		campaign.Status = models.CampaignStatusDraft
		campaign.TotalLeads = len(leads)
		if err := tx.Create(campaign).Error; err != nil {
			return err
		}
		for i := range leads {
			leads[i].CampaignID = campaign.ID
			leads[i].Status = models.LeadStatusPending
		}
		if len(leads) > 0 {
			if err := tx.Create(&leads).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *CampaignStore) GetByID(ctx context.Context, teamID string, id uint) (*models.Campaign, error) {
	var campaign models.Campaign
	err := s.DB.WithContext(ctx).Where("id = ? AND team_id = ?", id, teamID).First(&campaign).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &campaign, nil
}

func (s *CampaignStore) Leads(ctx context.Context, campaignID uint) ([]models.CampaignLead, error) {
	var leads []models.CampaignLead
	err := s.DB.WithContext(ctx).Where("campaign_id = ?", campaignID).Order("id").Find(&leads).Error
	return leads, err
}

// ClaimPendingLeads atomically flips up to limit pending leads to sending,
// tagging them with a fresh claim id, and returns exactly the flipped rows.
// The single conditional UPDATE is the guard against two concurrent batch
// invocations processing the same lead: a row leaves pending in the same
// statement that selects it.
func (s *CampaignStore) ClaimPendingLeads(ctx context.Context, campaignID uint, limit int) (string, []models.CampaignLead, error) {
	claimID := uuid.NewString()

	err := s.DB.WithContext(ctx).Exec(`
		UPDATE campaign_leads
		SET status = ?, claim_id = ?, updated_at = ?
		WHERE status = ? AND id IN (
			SELECT id FROM campaign_leads
			WHERE campaign_id = ? AND status = ?
			ORDER BY id
			LIMIT ?
		)`,
		models.LeadStatusSending, claimID, time.Now(),
		models.LeadStatusPending,
		campaignID, models.LeadStatusPending, limit,
	).Error
	if err != nil {
		return "", nil, fmt.Errorf("failed to claim leads: %w", err)
	}

	var leads []models.CampaignLead
	if err := s.DB.WithContext(ctx).Where("claim_id = ?", claimID).Order("id").Find(&leads).Error; err != nil {
		return "", nil, err
	}

	return claimID, leads, nil
}

// ReleaseClaim returns still-unprocessed leads of a claim to pending.
// Leads that already reached a terminal status keep it.
func (s *CampaignStore) ReleaseClaim(ctx context.Context, claimID string) error {
	return s.DB.WithContext(ctx).Model(&models.CampaignLead{}).
		Where("claim_id = ? AND status = ?", claimID, models.LeadStatusSending).
		Updates(map[string]interface{}{"status": models.LeadStatusPending, "claim_id": ""}).Error
}

func (s *CampaignStore) MarkLeadSent(ctx context.Context, leadID uint) error {
	now := time.Now()
	return s.DB.WithContext(ctx).Model(&models.CampaignLead{}).
		Where("id = ?", leadID).
		Updates(map[string]interface{}{
			"status":  models.LeadStatusSent,
			"sent_at": &now,
			"error":   "",
		}).Error
}

func (s *CampaignStore) MarkLeadFailed(ctx context.Context, leadID uint, errText string) error {
	return s.DB.WithContext(ctx).Model(&models.CampaignLead{}).
		Where("id = ?", leadID).
		Updates(map[string]interface{}{
			"status": models.LeadStatusFailed,
			"error":  errText,
		}).Error
}

func (s *CampaignStore) SetStatus(ctx context.Context, campaignID uint, status string) error {
	return s.DB.WithContext(ctx).Model(&models.Campaign{}).
		Where("id = ?", campaignID).
		Update("status", status).Error
}

// AddCounters adds a batch's results to the campaign aggregates atomically
func (s *CampaignStore) AddCounters(ctx context.Context, campaignID uint, sent, failed int) error {
	if sent == 0 && failed == 0 {
		return nil
	}
	return s.DB.WithContext(ctx).Model(&models.Campaign{}).
		Where("id = ?", campaignID).
		Updates(map[string]interface{}{
			"sent_count":   gorm.Expr("sent_count + ?", sent),
			"failed_count": gorm.Expr("failed_count + ?", failed),
		}).Error
}

func (s *CampaignStore) PendingCount(ctx context.Context, campaignID uint) (int64, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&models.CampaignLead{}).
		Where("campaign_id = ? AND status = ?", campaignID, models.LeadStatusPending).
		Count(&count).Error
	return count, err
}

// InstanceStore looks up gateway instances scoped to a team
type InstanceStore struct {
	DB *gorm.DB
}

func NewInstanceStore(db *gorm.DB) *InstanceStore {
	return &InstanceStore{DB: db}
}

func (s *InstanceStore) Create(ctx context.Context, inst *models.Instance) error {
	return s.DB.WithContext(ctx).Create(inst).Error
}

func (s *InstanceStore) GetByID(ctx context.Context, teamID string, id uint) (*models.Instance, error) {
	var inst models.Instance
	err := s.DB.WithContext(ctx).Where("id = ? AND team_id = ?", id, teamID).First(&inst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

func (s *InstanceStore) ListByTeam(ctx context.Context, teamID string) ([]models.Instance, error) {
	var instances []models.Instance
	err := s.DB.WithContext(ctx).Where("team_id = ?", teamID).Order("id").Find(&instances).Error
	return instances, err
}

// TemplateStore looks up approved templates scoped to a team
type TemplateStore struct {
	DB *gorm.DB
}

func NewTemplateStore(db *gorm.DB) *TemplateStore {
	return &TemplateStore{DB: db}
}

func (s *TemplateStore) Save(ctx context.Context, tmpl *models.Template) error {
	return s.DB.WithContext(ctx).Save(tmpl).Error
}

func (s *TemplateStore) GetByID(ctx context.Context, teamID, id string) (*models.Template, error) {
	var tmpl models.Template
	err := s.DB.WithContext(ctx).Where("id = ? AND team_id = ?", id, teamID).First(&tmpl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tmpl, nil
}

func (s *TemplateStore) ListByTeam(ctx context.Context, teamID string) ([]models.Template, error) {
	var templates []models.Template
	err := s.DB.WithContext(ctx).Where("team_id = ?", teamID).Order("name").Find(&templates).Error
	return templates, err
}
