package api

import (
	"errors"
	"log"
	"net/http"

	"whatsapp-crm/internal/gateway"
	"whatsapp-crm/internal/models"
	"whatsapp-crm/internal/store"

	"github.com/gin-gonic/gin"
)

type TemplateHandler struct {
	Templates *store.TemplateStore
	Instances *store.InstanceStore
	Cloud     *gateway.CloudAPIClient
}

func NewTemplateHandler(templates *store.TemplateStore, instances *store.InstanceStore, cloud *gateway.CloudAPIClient) *TemplateHandler {
	return &TemplateHandler{Templates: templates, Instances: instances, Cloud: cloud}
}

// GetTemplates returns the team's locally cached templates
func (h *TemplateHandler) GetTemplates(c *gin.Context) {
	templates, err := h.Templates.ListByTeam(c.Request.Context(), teamID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, templates)
}

type syncTemplatesRequest struct {
	InstanceID uint `json:"instance_id" binding:"required"`
}

// SyncTemplates fetches the registered templates from the provider and
// stores them locally
func (h *TemplateHandler) SyncTemplates(c *gin.Context) {
	var req syncTemplatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inst, err := h.Instances.GetByID(c.Request.Context(), teamID(c), req.InstanceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "instance not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if inst.Provider != models.ProviderCloudAPI {
		c.JSON(http.StatusBadRequest, gin.H{"error": "template sync requires a cloud-api instance"})
		return
	}

	remote, err := h.Cloud.FetchTemplates(c.Request.Context(), *inst)
	if err != nil {
		respondGatewayError(c, err)
		return
	}

	syncedCount := 0
	for _, rt := range remote {
		components := "[]"
		if len(rt.Components) > 0 {
			components = string(rt.Components)
		}
		tmpl := models.Template{
			ID:         rt.ID,
			TeamID:     teamID(c),
			Name:       rt.Name,
			Language:   rt.Language,
			Category:   rt.Category,
			Status:     rt.Status,
			Components: components,
		}
		if err := h.Templates.Save(c.Request.Context(), &tmpl); err != nil {
			log.Printf("Error saving template %s: %v", rt.Name, err)
			continue
		}
		syncedCount++
	}

	c.JSON(http.StatusOK, gin.H{"status": "Templates synced", "count": syncedCount})
}
