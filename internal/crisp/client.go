// Package crisp is the HTTP client for the Crisp plugin settings API.
package crisp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/mattjoyce/crispbridge/internal/metrics"
)

const (
	DefaultBaseURL = "https://api.crisp.chat/v1"
	DefaultTimeout = 10 * time.Second

	tierHeader = "X-Crisp-Tier"
)

// ErrEmptySchema is returned when the remote schema is missing or blank.
var ErrEmptySchema = errors.New("crisp: settings schema is empty")

// APIError is a non-success or malformed response from the Crisp API.
type APIError struct {
	Op     string
	Status int
	Reason string
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("crisp: %s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("crisp: %s: %s (status %d)", e.Op, e.Reason, e.Status)
}

// Config holds the plugin credentials and endpoint.
type Config struct {
	BaseURL  string
	PluginID string
	Tier     string
	TokenID  string
	TokenKey string
	Timeout  time.Duration
}

// Client talks to the plugin subscription endpoints. It is safe for
// concurrent use.
type Client struct {
	http     *resty.Client
	pluginID string
	tier     string
	tokenID  string
	tokenKey string
}

// New constructs a Client from cfg, applying defaults for empty values.
func New(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	tier := cfg.Tier
	if tier == "" {
		tier = "plugin"
	}

	h := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetDisableWarn(true)

	return &Client{
		http:     h,
		pluginID: cfg.PluginID,
		tier:     tier,
		tokenID:  cfg.TokenID,
		tokenKey: cfg.TokenKey,
	}
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetBasicAuth(c.tokenID, c.tokenKey).
		SetHeader(tierHeader, c.tier).
		SetPathParam("plugin", c.pluginID)
}

// FetchSchema returns the raw JSON Schema describing the plugin settings.
// A {"data": {...}} envelope is unwrapped.
func (c *Client) FetchSchema(ctx context.Context) ([]byte, error) {
	const op = "fetch schema"
	resp, err := c.do(op, func() (*resty.Response, error) {
		return c.request(ctx).Get("/plugin/{plugin}/settings/schema")
	})
	if err != nil {
		return nil, err
	}

	body := resp.Body()
	if len(body) == 0 {
		return nil, ErrEmptySchema
	}
	if !gjson.ValidBytes(body) {
		return nil, &APIError{Op: op, Status: resp.StatusCode(), Reason: "malformed schema response"}
	}
	if !gjson.GetBytes(body, "properties").Exists() {
		if data := gjson.GetBytes(body, "data"); data.IsObject() {
			body = []byte(data.Raw)
		}
	}

	doc := gjson.ParseBytes(body)
	if !doc.IsObject() || len(doc.Map()) == 0 {
		return nil, ErrEmptySchema
	}
	return body, nil
}

// FetchSettings returns the subscription's current settings document.
func (c *Client) FetchSettings(ctx context.Context, websiteID string) (map[string]any, error) {
	var out struct {
		Data map[string]any `json:"data"`
	}
	_, err := c.do("fetch settings", func() (*resty.Response, error) {
		return c.request(ctx).
			SetPathParam("website", websiteID).
			SetResult(&out).
			Get("/plugin/{plugin}/subscription/{website}/settings")
	})
	if err != nil {
		return nil, err
	}
	if out.Data == nil {
		out.Data = map[string]any{}
	}
	return out.Data, nil
}

// SaveSettings replaces the subscription's settings with doc.
func (c *Client) SaveSettings(ctx context.Context, websiteID string, doc map[string]any) error {
	const op = "save settings"
	resp, err := c.do(op, func() (*resty.Response, error) {
		return c.request(ctx).
			SetPathParam("website", websiteID).
			SetBody(doc).
			Post("/plugin/{plugin}/subscription/{website}/settings")
	})
	if err != nil {
		return err
	}

	body := resp.Body()
	if len(body) == 0 {
		return nil
	}
	if ok := gjson.GetBytes(body, "success"); ok.Exists() && !ok.Bool() {
		return &APIError{Op: op, Status: resp.StatusCode(), Reason: reason(resp)}
	}
	return nil
}

// VerifyToken asks the API whether token is a live editor token for
// websiteID. A 401 answer is a normal "no".
func (c *Client) VerifyToken(ctx context.Context, token, websiteID string) (bool, error) {
	const op = "verify token"
	var out struct {
		Valid bool `json:"valid"`
	}

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader(tierHeader, c.tier).
		SetPathParam("plugin", c.pluginID).
		SetPathParam("website", websiteID).
		SetResult(&out).
		Get("/plugin/{plugin}/subscription/{website}/verify")
	observe(op, resp, err, start)
	if err != nil {
		return false, fmt.Errorf("crisp: %s: %w", op, err)
	}

	if resp.StatusCode() == http.StatusUnauthorized {
		return false, nil
	}
	if resp.IsError() {
		return false, &APIError{Op: op, Status: resp.StatusCode(), Reason: reason(resp)}
	}
	return out.Valid, nil
}

// do runs call, records its latency and maps transport failures and error
// statuses to errors.
func (c *Client) do(op string, call func() (*resty.Response, error)) (*resty.Response, error) {
	start := time.Now()
	resp, err := call()
	observe(op, resp, err, start)
	if err != nil {
		return nil, fmt.Errorf("crisp: %s: %w", op, err)
	}
	if resp.IsError() {
		return nil, &APIError{Op: op, Status: resp.StatusCode(), Reason: reason(resp)}
	}
	return resp, nil
}

func observe(op string, resp *resty.Response, err error, start time.Time) {
	status := "error"
	if err == nil && resp != nil {
		status = strconv.Itoa(resp.StatusCode())
	}
	metrics.RemoteLatency.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
}

// reason picks the most specific message out of an error body.
func reason(resp *resty.Response) string {
	body := resp.Body()
	if gjson.ValidBytes(body) {
		for _, path := range []string{"error", "reason", "message", "error.message"} {
			if v := gjson.GetBytes(body, path); v.Type == gjson.String && v.String() != "" {
				return v.String()
			}
		}
	}
	if text := http.StatusText(resp.StatusCode()); text != "" {
		return text
	}
	return "unexpected response"
}
