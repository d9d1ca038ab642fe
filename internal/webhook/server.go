package webhook

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tidwall/gjson"

	"github.com/mattjoyce/crispbridge/internal/metrics"
)

// Handler accepts Crisp webhooks and republishes them as internal events.
type Handler struct {
	config    Config
	publisher Publisher
	logger    *slog.Logger
}

// New creates a webhook handler. A WARN is logged when no signing secret is
// configured, since the endpoint then accepts unsigned requests.
func New(config Config, publisher Publisher, logger *slog.Logger) *Handler {
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = DefaultMaxBodySize
	}
	if config.Path == "" {
		config.Path = RoutePath("")
	}
	if config.Secret == "" {
		logger.Warn("webhook signing secret not configured; signature verification is disabled",
			"path", config.Path,
		)
	}

	return &Handler{
		config:    config,
		publisher: publisher,
		logger:    logger,
	}
}

// Path returns the mounted route.
func (h *Handler) Path() string { return h.config.Path }

// Mount registers the endpoint on r.
func (h *Handler) Mount(r chi.Router) {
	r.Post(h.config.Path, h.ServeHTTP)
}

// ServeHTTP handles an incoming webhook POST.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Enforce body size limit
	limitedReader := io.LimitReader(r.Body, h.config.MaxBodySize+1)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if int64(len(body)) > h.config.MaxBodySize {
		metrics.Webhooks.WithLabelValues("too_large").Inc()
		respondError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	timestamp := r.Header.Get(TimestampHeader)
	if h.config.Secret != "" {
		signature := r.Header.Get(SignatureHeader)
		if timestamp == "" || signature == "" {
			metrics.Webhooks.WithLabelValues("missing_signature").Inc()
			h.logger.Warn("webhook signature headers missing",
				"path", r.URL.Path,
				"request_id", middleware.GetReqID(ctx),
			)
			respondError(w, http.StatusUnauthorized, "Missing signature headers")
			return
		}
		if !Verify(timestamp, body, signature, h.config.Secret) {
			metrics.Webhooks.WithLabelValues("invalid_signature").Inc()
			h.logger.Warn("webhook signature verification failed",
				"path", r.URL.Path,
				"request_id", middleware.GetReqID(ctx),
			)
			respondError(w, http.StatusUnauthorized, "Invalid signature")
			return
		}
	}

	data := Received{
		Event:     gjson.GetBytes(body, "event").String(),
		WebsiteID: gjson.GetBytes(body, "website_id").String(),
		Timestamp: timestamp,
		Payload:   payloadOf(body),
	}
	evt := h.publisher.Publish(ctx, EventReceived, data)
	metrics.Webhooks.WithLabelValues("accepted").Inc()

	h.logger.Info("webhook received",
		"event", data.Event,
		"website_id", data.WebsiteID,
		"event_id", evt.UUID,
	)

	w.WriteHeader(http.StatusNoContent)
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Message: message})
}
