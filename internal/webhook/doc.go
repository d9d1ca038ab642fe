// Package webhook receives signed Crisp plugin webhooks.
//
// # Security Model
//
// - HMAC-SHA256 over "[" + timestamp + ";" + raw body + "]", compared with
//   crypto/subtle (constant-time)
// - Body size limits enforced (413 when exceeded)
// - Rejections carry generic messages only
// - Request logging excludes payloads
//
// An empty signing secret turns verification off and the endpoint accepts
// unsigned requests. This is an explicit operator choice; New logs a WARN
// when it is in effect.
//
// # Request Flow
//
//  1. HTTP POST arrives at "/<webhook_path>/webhook"
//  2. Body size checked (413 if too large)
//  3. X-Crisp-Request-Timestamp and X-Crisp-Signature extracted (401 if missing)
//  4. Signature verified (401 if mismatch)
//  5. Event "crisp.webhook.received" published
//  6. 204 No Content returned
//
// # Example Usage
//
//	h := webhook.New(webhook.Config{
//		Path:   "/crisp/webhook",
//		Secret: os.Getenv("CRISP_SIGNING_SECRET"),
//	}, bus, logger)
//	h.Mount(router)
package webhook
