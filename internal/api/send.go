package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"whatsapp-crm/internal/gateway"
	"whatsapp-crm/internal/media"
	"whatsapp-crm/internal/models"
	"whatsapp-crm/internal/store"
	"whatsapp-crm/internal/template"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type SendHandler struct {
	Instances *store.InstanceStore
	Templates *store.TemplateStore
	Messages  *store.MessageStore
	Preparer  *media.Preparer
	Gateway   gateway.Sender
}

func NewSendHandler(instances *store.InstanceStore, templates *store.TemplateStore, messages *store.MessageStore, preparer *media.Preparer, gw gateway.Sender) *SendHandler {
	return &SendHandler{
		Instances: instances,
		Templates: templates,
		Messages:  messages,
		Preparer:  preparer,
		Gateway:   gw,
	}
}

type sendTextRequest struct {
	InstanceID uint   `json:"instance_id" binding:"required"`
	To         string `json:"to" binding:"required"`
	Text       string `json:"text" binding:"required"`
	QuotedID   string `json:"quoted_id"`
}

// SendText sends a plain text message through the instance's provider
func (h *SendHandler) SendText(c *gin.Context) {
	var req sendTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inst, ok := h.loadInstance(c, req.InstanceID)
	if !ok {
		return
	}

	h.deliver(c, inst, gateway.SendRequest{
		To:       req.To,
		QuotedID: req.QuotedID,
		Text:     &gateway.TextPayload{Body: req.Text},
	}, models.Message{
		Type:     "text",
		Text:     req.Text,
		QuotedID: req.QuotedID,
	}, req.Text)
}

// SendMedia sends an uploaded attachment (image, video or document)
func (h *SendHandler) SendMedia(c *gin.Context) {
	inst, raw, mime, filename, ok := h.bindUpload(c)
	if !ok {
		return
	}
	caption := c.PostForm("caption")

	publicURL, kind, err := h.Preparer.PrepareFile(raw, mime, filename)
	if err != nil && !errors.Is(err, media.ErrPersist) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		// The send can still go out inline over the bridge protocol
		log.Printf("[Send] Media persist warning: %v", err)
	}
	if publicURL == "" && inst.Provider == models.ProviderCloudAPI {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store media for link delivery"})
		return
	}

	summaryText := caption
	if summaryText == "" {
		summaryText = "[" + string(kind) + "]"
	}

	h.deliver(c, inst, gateway.SendRequest{
		To:       c.PostForm("to"),
		QuotedID: c.PostForm("quoted_id"),
		Media: &gateway.MediaPayload{
			Kind:     kind,
			Base64:   base64.StdEncoding.EncodeToString(raw),
			URL:      publicURL,
			Mime:     mime,
			Filename: filename,
			Caption:  caption,
		},
	}, models.Message{
		Type:     string(kind),
		MediaURL: publicURL,
		MimeType: mime,
		Caption:  caption,
		QuotedID: c.PostForm("quoted_id"),
	}, summaryText)
}

// SendAudio transcodes an uploaded recording to mp3 and sends it as a
// push-to-talk voice note
func (h *SendHandler) SendAudio(c *gin.Context) {
	inst, raw, mime, _, ok := h.bindUpload(c)
	if !ok {
		return
	}

	mp3Base64, publicURL, err := h.Preparer.PrepareAudio(c.Request.Context(), raw, mime)
	if err != nil && !errors.Is(err, media.ErrPersist) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		log.Printf("[Send] Audio persist warning: %v", err)
	}
	if publicURL == "" && inst.Provider == models.ProviderCloudAPI {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store audio for link delivery"})
		return
	}

	h.deliver(c, inst, gateway.SendRequest{
		To:       c.PostForm("to"),
		QuotedID: c.PostForm("quoted_id"),
		Audio: &gateway.AudioPayload{
			MP3Base64: mp3Base64,
			URL:       publicURL,
		},
	}, models.Message{
		Type:     "audio",
		MediaURL: publicURL,
		MimeType: "audio/mpeg",
		PTT:      true,
		QuotedID: c.PostForm("quoted_id"),
	}, "[audio]")
}

type sendTemplateRequest struct {
	InstanceID uint            `json:"instance_id" binding:"required"`
	To         string          `json:"to" binding:"required"`
	TemplateID string          `json:"template_id" binding:"required"`
	Variables  json.RawMessage `json:"variables"`
}

// SendTemplate sends a single pre-approved template message
func (h *SendHandler) SendTemplate(c *gin.Context) {
	var req sendTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inst, ok := h.loadInstance(c, req.InstanceID)
	if !ok {
		return
	}

	tmpl, err := h.Templates.GetByID(c.Request.Context(), teamID(c), req.TemplateID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "template not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	vars, err := template.ParseVariables(req.Variables)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	body := template.BodyText(tmpl.Components)
	params := template.Render(body, vars)
	preview := template.Preview(body, params)
	if preview == "" {
		preview = "[template " + tmpl.Name + "]"
	}

	h.deliver(c, inst, gateway.SendRequest{
		To: req.To,
		Template: &gateway.TemplatePayload{
			Name:       tmpl.Name,
			Language:   tmpl.Language,
			BodyParams: params,
		},
	}, models.Message{
		Type: "template",
		Text: preview,
	}, preview)
}

// deliver sends the request through the gateway and records the chat and
// message rows. The stored message row is the response body.
func (h *SendHandler) deliver(c *gin.Context, inst *models.Instance, req gateway.SendRequest, msg models.Message, summaryText string) {
	if req.To == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recipient is required"})
		return
	}

	providerID, _, err := h.Gateway.Send(c.Request.Context(), *inst, req)
	if err != nil {
		respondGatewayError(c, err)
		return
	}
	if providerID == "" {
		providerID = uuid.NewString()
	}

	now := time.Now()
	msg.MessageID = providerID
	msg.FromMe = true
	msg.Status = models.MessageStatusSent
	msg.Timestamp = now

	stored, err := h.Messages.UpsertChatAndRecordMessage(c.Request.Context(), teamID(c), inst.ID, req.To,
		store.Summary{Text: summaryText, Timestamp: now, Status: models.MessageStatusSent}, msg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "message sent but failed to record: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, stored)
}

func (h *SendHandler) loadInstance(c *gin.Context, id uint) (*models.Instance, bool) {
	inst, err := h.Instances.GetByID(c.Request.Context(), teamID(c), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "instance not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	return inst, true
}

// bindUpload extracts the common multipart fields of the media endpoints
func (h *SendHandler) bindUpload(c *gin.Context) (*models.Instance, []byte, string, string, bool) {
	instanceID, err := strconv.ParseUint(c.PostForm("instance_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid instance_id"})
		return nil, nil, "", "", false
	}

	inst, ok := h.loadInstance(c, uint(instanceID))
	if !ok {
		return nil, nil, "", "", false
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return nil, nil, "", "", false
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, nil, "", "", false
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, nil, "", "", false
	}
	if len(raw) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty file"})
		return nil, nil, "", "", false
	}

	mime := fileHeader.Header.Get("Content-Type")
	if mime == "" {
		mime = http.DetectContentType(raw)
	}

	return inst, raw, mime, fileHeader.Filename, true
}

// respondGatewayError maps a normalized provider failure to an HTTP status:
// protocol rejections surface as 422, transport failures as 502.
func respondGatewayError(c *gin.Context, err error) {
	var pe *gateway.ProviderError
	if errors.As(err, &pe) {
		status := http.StatusBadGateway
		if pe.Kind == gateway.KindRejected {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{"error": pe.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
