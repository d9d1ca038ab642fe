package webhook

import (
	"context"
	"encoding/json"

	"github.com/mattjoyce/crispbridge/internal/events"
)

// Request headers sent by Crisp on every webhook.
const (
	TimestampHeader = "X-Crisp-Request-Timestamp"
	SignatureHeader = "X-Crisp-Signature"
)

// EventReceived is published for every accepted webhook.
const EventReceived = "crisp.webhook.received"

// DefaultMaxBodySize caps inbound bodies at 1 MB.
const DefaultMaxBodySize = 1048576

// Publisher receives accepted webhooks as internal events.
type Publisher interface {
	Publish(ctx context.Context, eventType string, data any) events.Event
}

// Config holds webhook endpoint configuration.
type Config struct {
	// Path is the route the endpoint is mounted on (e.g. "/crisp/webhook").
	Path string

	// Secret is the Crisp signing secret. Empty disables verification.
	Secret string

	// MaxBodySize is the maximum request body size in bytes (default: 1MB).
	MaxBodySize int64
}

// Received is the data of an EventReceived event.
type Received struct {
	Event     string `json:"event,omitempty"`
	WebsiteID string `json:"website_id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	// Payload is the decoded JSON body, or the raw text when the body is
	// not JSON.
	Payload any `json:"payload"`
}

// ErrorResponse is the JSON body of a rejected webhook.
type ErrorResponse struct {
	Message string `json:"message"`
}

func payloadOf(body []byte) any {
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	return string(body)
}
