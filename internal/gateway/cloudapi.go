package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"whatsapp-crm/internal/models"
)

// CloudAPIClient speaks the Cloud API protocol: a single messages endpoint
// addressed by phone-number id, bearer-token authenticated.
type CloudAPIClient struct {
	HTTP      *http.Client
	GraphHost string
}

// --- Payload structures ---

type cloudMessage struct {
	MessagingProduct string         `json:"messaging_product"`
	To               string         `json:"to"`
	Type             string         `json:"type"`
	Text             *cloudText     `json:"text,omitempty"`
	Image            *cloudMedia    `json:"image,omitempty"`
	Video            *cloudMedia    `json:"video,omitempty"`
	Audio            *cloudMedia    `json:"audio,omitempty"`
	Document         *cloudMedia    `json:"document,omitempty"`
	Template         *cloudTemplate `json:"template,omitempty"`
	Context          *cloudContext  `json:"context,omitempty"`
}

type cloudText struct {
	Body string `json:"body"`
}

type cloudMedia struct {
	Link     string `json:"link,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type cloudTemplate struct {
	Name       string           `json:"name"`
	Language   cloudLanguage    `json:"language"`
	Components []cloudComponent `json:"components,omitempty"`
}

type cloudLanguage struct {
	Code string `json:"code"`
}

type cloudComponent struct {
	Type       string           `json:"type"`
	Parameters []cloudParameter `json:"parameters"`
}

type cloudParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type cloudContext struct {
	MessageID string `json:"message_id"`
}

type cloudResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type cloudErrorResponse struct {
	Error struct {
		Message   string `json:"message"`
		Type      string `json:"type"`
		Code      int    `json:"code"`
		ErrorData struct {
			Details string `json:"details"`
		} `json:"error_data"`
	} `json:"error"`
}

func (c *CloudAPIClient) Send(ctx context.Context, inst models.Instance, req SendRequest) (string, json.RawMessage, error) {
	msg := cloudMessage{
		MessagingProduct: "whatsapp",
		To:               req.To,
	}
	if req.QuotedID != "" {
		msg.Context = &cloudContext{MessageID: req.QuotedID}
	}

	switch {
	case req.Text != nil:
		msg.Type = "text"
		msg.Text = &cloudText{Body: req.Text.Body}
	case req.Media != nil:
		obj := &cloudMedia{Link: req.Media.URL, Caption: req.Media.Caption}
		switch req.Media.Kind {
		case "image":
			msg.Type = "image"
			msg.Image = obj
		case "video":
			msg.Type = "video"
			msg.Video = obj
		default:
			msg.Type = "document"
			obj.Filename = req.Media.Filename
			msg.Document = obj
		}
	case req.Audio != nil:
		msg.Type = "audio"
		msg.Audio = &cloudMedia{Link: req.Audio.URL}
	case req.Template != nil:
		msg.Type = "template"
		tmpl := &cloudTemplate{
			Name:     req.Template.Name,
			Language: cloudLanguage{Code: req.Template.Language},
		}
		// Empty parameter arrays are rejected, omit components entirely
		if len(req.Template.BodyParams) > 0 {
			params := make([]cloudParameter, 0, len(req.Template.BodyParams))
			for _, p := range req.Template.BodyParams {
				params = append(params, cloudParameter{Type: "text", Text: p})
			}
			tmpl.Components = []cloudComponent{{Type: "body", Parameters: params}}
		}
		msg.Template = tmpl
	default:
		return "", nil, fmt.Errorf("send request has no payload")
	}

	url := fmt.Sprintf("%s/v21.0/%s/messages", c.baseURL(), inst.PhoneNumberID)

	jsonData, err := json.Marshal(msg)
	if err != nil {
		return "", nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+inst.Token)

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return "", nil, transportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, transportError(err)
	}

	if resp.StatusCode >= 400 {
		return "", nil, parseCloudError(resp.StatusCode, respBody)
	}

	var parsed cloudResponse
	_ = json.Unmarshal(respBody, &parsed)

	providerID := ""
	if len(parsed.Messages) > 0 {
		providerID = parsed.Messages[0].ID
	}

	return providerID, respBody, nil
}

func (c *CloudAPIClient) baseURL() string {
	base := c.GraphHost
	if !strings.HasPrefix(base, "http") {
		base = "https://" + base
	}
	return strings.TrimRight(base, "/")
}

func parseCloudError(status int, body []byte) *ProviderError {
	pe := &ProviderError{
		Kind:  KindRejected,
		Title: fmt.Sprintf("Cloud API error (HTTP %d)", status),
	}

	var parsed cloudErrorResponse
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Error.Message == "" {
		pe.Message = strings.TrimSpace(string(body))
		return pe
	}

	if parsed.Error.Type != "" {
		pe.Title = fmt.Sprintf("%s (code %d)", parsed.Error.Type, parsed.Error.Code)
	}
	pe.Message = parsed.Error.Message
	pe.Detail = parsed.Error.ErrorData.Details

	return pe
}
