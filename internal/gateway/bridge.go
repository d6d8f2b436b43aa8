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

// BridgeClient speaks the self-hosted bridge protocol: one endpoint per
// message kind, addressed by instance name, authenticated with an apikey
// header.
type BridgeClient struct {
	HTTP *http.Client
}

type bridgeTextBody struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

type bridgeMediaBody struct {
	Number    string `json:"number"`
	MediaType string `json:"mediatype"`
	Media     string `json:"media"`
	MimeType  string `json:"mimetype"`
	FileName  string `json:"fileName,omitempty"`
	Caption   string `json:"caption,omitempty"`
}

type bridgeAudioBody struct {
	Number   string `json:"number"`
	Audio    string `json:"audio"`
	MimeType string `json:"mimetype"`
	PTT      bool   `json:"ptt"`
}

// bridgeResponse covers the fields we read back from the bridge
type bridgeResponse struct {
	Key struct {
		ID string `json:"id"`
	} `json:"key"`
}

func (c *BridgeClient) Send(ctx context.Context, inst models.Instance, req SendRequest) (string, json.RawMessage, error) {
	var endpoint string
	var body interface{}

	switch {
	case req.Text != nil:
		endpoint = "sendText"
		body = bridgeTextBody{Number: req.To, Text: req.Text.Body}
	case req.Media != nil:
		endpoint = "sendMedia"
		body = bridgeMediaBody{
			Number:    req.To,
			MediaType: string(req.Media.Kind),
			Media:     req.Media.Base64,
			MimeType:  req.Media.Mime,
			FileName:  req.Media.Filename,
			Caption:   req.Media.Caption,
		}
	case req.Audio != nil:
		endpoint = "sendWhatsAppAudio"
		body = bridgeAudioBody{
			Number:   req.To,
			Audio:    req.Audio.MP3Base64,
			MimeType: "audio/mpeg",
			PTT:      true,
		}
	case req.Template != nil:
		return "", nil, &ProviderError{
			Kind:    KindRejected,
			Title:   "Unsupported message kind",
			Message: "template sends require a cloud-api instance",
		}
	default:
		return "", nil, fmt.Errorf("send request has no payload")
	}

	url := fmt.Sprintf("%s/message/%s/%s", strings.TrimRight(inst.APIURL, "/"), endpoint, inst.Name)

	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("apikey", inst.APIKey)

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
		return "", nil, parseBridgeError(resp.StatusCode, respBody)
	}

	var parsed bridgeResponse
	_ = json.Unmarshal(respBody, &parsed)

	return parsed.Key.ID, respBody, nil
}

// parseBridgeError extracts the bridge's structured error. The bridge
// reports either {"error": "...", "message": [...]} or a plain message.
func parseBridgeError(status int, body []byte) *ProviderError {
	pe := &ProviderError{
		Kind:  KindRejected,
		Title: fmt.Sprintf("Bridge error (HTTP %d)", status),
	}

	var parsed struct {
		Error    string          `json:"error"`
		Message  json.RawMessage `json:"message"`
		Response struct {
			Message json.RawMessage `json:"message"`
		} `json:"response"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		pe.Message = strings.TrimSpace(string(body))
		return pe
	}

	if parsed.Error != "" {
		pe.Title = parsed.Error
	}

	raw := parsed.Message
	if len(raw) == 0 {
		raw = parsed.Response.Message
	}
	pe.Message = flattenMessage(raw)
	if pe.Message == "" {
		pe.Message = strings.TrimSpace(string(body))
	}

	return pe
}

// flattenMessage renders a message field that may be a string or an array
func flattenMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, "; ")
	}
	return strings.TrimSpace(string(raw))
}
