package api

import (
	"net/http"

	"whatsapp-crm/internal/models"
	"whatsapp-crm/internal/store"

	"github.com/gin-gonic/gin"
)

type InstanceHandler struct {
	Instances *store.InstanceStore
}

func NewInstanceHandler(instances *store.InstanceStore) *InstanceHandler {
	return &InstanceHandler{Instances: instances}
}

type createInstanceRequest struct {
	Name          string `json:"name" binding:"required"`
	Provider      string `json:"provider" binding:"required"`
	APIURL        string `json:"api_url"`
	APIKey        string `json:"api_key"`
	Token         string `json:"token"`
	PhoneNumberID string `json:"phone_number_id"`
	BusinessID    string `json:"business_id"`
}

// CreateInstance registers a gateway connection for the team
func (h *InstanceHandler) CreateInstance(c *gin.Context) {
	var req createInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch req.Provider {
	case models.ProviderBridge:
		if req.APIURL == "" || req.APIKey == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bridge instances need api_url and api_key"})
			return
		}
	case models.ProviderCloudAPI:
		if req.Token == "" || req.PhoneNumberID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cloud-api instances need token and phone_number_id"})
			return
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "provider must be bridge or cloud-api"})
		return
	}

	inst := &models.Instance{
		TeamID:        teamID(c),
		Name:          req.Name,
		Provider:      req.Provider,
		APIURL:        req.APIURL,
		APIKey:        req.APIKey,
		Token:         req.Token,
		PhoneNumberID: req.PhoneNumberID,
		BusinessID:    req.BusinessID,
	}
	if err := h.Instances.Create(c.Request.Context(), inst); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, inst)
}

// GetInstances lists the team's registered instances
func (h *InstanceHandler) GetInstances(c *gin.Context) {
	instances, err := h.Instances.ListByTeam(c.Request.Context(), teamID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, instances)
}
