package api

import "github.com/mattjoyce/crispbridge/internal/storage"

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string            `json:"status"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks,omitempty"`
}

// JournalResponse is returned by GET /ops/webhooks.
type JournalResponse struct {
	Entries []storage.Entry `json:"entries"`
}
