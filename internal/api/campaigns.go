package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"whatsapp-crm/internal/campaign"
	"whatsapp-crm/internal/models"
	"whatsapp-crm/internal/store"

	"github.com/gin-gonic/gin"
)

type CampaignHandler struct {
	Campaigns  *store.CampaignStore
	Dispatcher *campaign.Dispatcher
}

func NewCampaignHandler(campaigns *store.CampaignStore, dispatcher *campaign.Dispatcher) *CampaignHandler {
	return &CampaignHandler{Campaigns: campaigns, Dispatcher: dispatcher}
}

type campaignLeadRequest struct {
	Phone     string          `json:"phone"`
	Variables json.RawMessage `json:"variables"`
}

type createCampaignRequest struct {
	Name       string                `json:"name" binding:"required"`
	InstanceID uint                  `json:"instance_id" binding:"required"`
	TemplateID string                `json:"template_id" binding:"required"`
	Leads      []campaignLeadRequest `json:"leads" binding:"required"`
}

// CreateCampaign stores a draft campaign with its recipient list
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	var req createCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Leads) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a campaign needs at least one lead"})
		return
	}

	leads := make([]models.CampaignLead, 0, len(req.Leads))
	for i, l := range req.Leads {
		if l.Phone == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "lead " + strconv.Itoa(i) + " is missing a phone number"})
			return
		}
		leads = append(leads, models.CampaignLead{
			Phone:     l.Phone,
			Variables: string(l.Variables),
		})
	}

	cmp := &models.Campaign{
		TeamID:     teamID(c),
		Name:       req.Name,
		InstanceID: req.InstanceID,
		TemplateID: req.TemplateID,
	}
	if err := h.Campaigns.Create(c.Request.Context(), cmp, leads); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, cmp)
}

// GetCampaign returns the campaign with its aggregate counters and per-lead
// statuses, including recorded error text on failed leads
func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}

	cmp, err := h.Campaigns.GetByID(c.Request.Context(), teamID(c), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	leads, err := h.Campaigns.Leads(c.Request.Context(), cmp.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"campaign": cmp, "leads": leads})
}

// DispatchCampaign runs one bounded batch of the campaign synchronously and
// reports the batch result. Pending leads beyond the batch need a re-trigger.
func (h *CampaignHandler) DispatchCampaign(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}

	sent, failed, err := h.Dispatcher.DispatchBatch(c.Request.Context(), teamID(c), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		log.Printf("[Campaign %d] Dispatch failed: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	cmp, err := h.Campaigns.GetByID(c.Request.Context(), teamID(c), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sent":   sent,
		"failed": failed,
		"status": cmp.Status,
	})
}

func campaignID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid campaign id"})
		return 0, false
	}
	return uint(id), true
}
