package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"whatsapp-crm/internal/media"
	"whatsapp-crm/internal/models"
)

// SendRequest is the unified outbound message. Exactly one of the payload
// pointers is set; the adapters dispatch on it.
type SendRequest struct {
	To       string
	QuotedID string

	Text     *TextPayload
	Media    *MediaPayload
	Audio    *AudioPayload
	Template *TemplatePayload
}

type TextPayload struct {
	Body string
}

type MediaPayload struct {
	Kind     media.Kind
	Base64   string // bridge sends inline base64
	URL      string // cloud-api sends a public link
	Mime     string
	Filename string
	Caption  string
}

type AudioPayload struct {
	MP3Base64 string
	URL       string
}

type TemplatePayload struct {
	Name       string
	Language   string
	BodyParams []string
}

// ErrorKind separates protocol-level rejections from transport failures so
// callers can decide whether a retry makes sense.
type ErrorKind int

const (
	KindRejected ErrorKind = iota
	KindTransport
)

// ProviderError is the normalized gateway failure
type ProviderError struct {
	Kind    ErrorKind
	Title   string
	Message string
	Detail  string
}

func (e *ProviderError) Error() string {
	msg := e.Title
	if e.Message != "" {
		if msg != "" {
			msg += ": "
		}
		msg += e.Message
	}
	if e.Detail != "" && e.Detail != e.Message {
		msg += " (" + e.Detail + ")"
	}
	if msg == "" {
		msg = "gateway request failed"
	}
	return msg
}

func transportError(err error) *ProviderError {
	return &ProviderError{
		Kind:    KindTransport,
		Title:   "Gateway unreachable",
		Message: err.Error(),
	}
}

// Sender sends a unified request through one provider protocol
type Sender interface {
	Send(ctx context.Context, inst models.Instance, req SendRequest) (string, json.RawMessage, error)
}

// Dispatcher routes a SendRequest to the adapter for the instance's provider
type Dispatcher struct {
	Bridge *BridgeClient
	Cloud  *CloudAPIClient
}

func NewDispatcher(graphHost string, timeout time.Duration) *Dispatcher {
	httpClient := &http.Client{Timeout: timeout}
	return &Dispatcher{
		Bridge: &BridgeClient{HTTP: httpClient},
		Cloud:  &CloudAPIClient{HTTP: httpClient, GraphHost: graphHost},
	}
}

func (d *Dispatcher) Send(ctx context.Context, inst models.Instance, req SendRequest) (string, json.RawMessage, error) {
	switch inst.Provider {
	case models.ProviderBridge:
		return d.Bridge.Send(ctx, inst, req)
	case models.ProviderCloudAPI:
		return d.Cloud.Send(ctx, inst, req)
	default:
		return "", nil, fmt.Errorf("unknown provider kind: %q", inst.Provider)
	}
}

var _ Sender = (*Dispatcher)(nil)
