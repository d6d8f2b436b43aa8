package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"whatsapp-crm/internal/models"
)

// RemoteTemplate is one registered template as the provider returns it
type RemoteTemplate struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Language   string          `json:"language"`
	Category   string          `json:"category"`
	Status     string          `json:"status"`
	Components json.RawMessage `json:"components"`
}

type remoteTemplateList struct {
	Data []RemoteTemplate `json:"data"`
}

// FetchTemplates lists the templates registered on the instance's business
// account. Only cloud-api instances carry a business account id.
func (c *CloudAPIClient) FetchTemplates(ctx context.Context, inst models.Instance) ([]RemoteTemplate, error) {
	if inst.BusinessID == "" {
		return nil, &ProviderError{
			Kind:    KindRejected,
			Title:   "Missing business account id",
			Message: fmt.Sprintf("instance %q has no business account configured", inst.Name),
		}
	}

	url := fmt.Sprintf("%s/v21.0/%s/message_templates?limit=200", c.baseURL(), inst.BusinessID)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+inst.Token)

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(err)
	}

	if resp.StatusCode >= 400 {
		return nil, parseCloudError(resp.StatusCode, body)
	}

	var parsed remoteTemplateList
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse template list: %w", err)
	}

	return parsed.Data, nil
}
