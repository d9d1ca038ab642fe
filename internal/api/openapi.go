package api

import (
	"github.com/mattjoyce/crispbridge/internal/webhook"
)

// buildOpenAPIDoc returns an OpenAPI 3.1 document for the mounted routes.
func buildOpenAPIDoc(hook *webhook.Handler, settingsPath string, opsEvents, opsJournal bool) map[string]any {
	paths := map[string]any{
		"/healthz": map[string]any{
			"get": map[string]any{
				"operationId": "healthz",
				"summary":     "Liveness and dependency checks",
				"responses": map[string]any{
					"200": map[string]any{"description": "Healthy"},
					"503": map[string]any{"description": "A dependency check failed"},
				},
			},
		},
		settingsPath: settingsPathItem(),
	}

	if hook != nil {
		paths[hook.Path()] = map[string]any{
			"post": map[string]any{
				"operationId": "crispWebhook",
				"summary":     "Signed Crisp plugin webhook",
				"parameters": []any{
					headerParam(webhook.TimestampHeader, "Request timestamp, part of the signed payload"),
					headerParam(webhook.SignatureHeader, "Hex HMAC-SHA256 of \"[timestamp;body]\""),
				},
				"responses": map[string]any{
					"204": map[string]any{"description": "Accepted"},
					"401": map[string]any{"description": "Missing or invalid signature"},
					"413": map[string]any{"description": "Body too large"},
				},
			},
		}
	}

	security := []any{map[string]any{"BearerAuth": []string{}}}
	if opsEvents {
		paths["/ops/events"] = map[string]any{
			"get": map[string]any{
				"operationId": "opsEvents",
				"summary":     "Server-sent stream of internal events",
				"security":    security,
				"responses": map[string]any{
					"200": map[string]any{"description": "Event stream", "content": map[string]any{"text/event-stream": map[string]any{}}},
				},
			},
		}
	}
	if opsJournal {
		paths["/ops/webhooks"] = map[string]any{
			"get": map[string]any{
				"operationId": "opsWebhooks",
				"summary":     "Recently received webhooks, newest first",
				"security":    security,
				"parameters":  []any{queryParam("limit", "Maximum entries (default 50, max 500)")},
				"responses": map[string]any{
					"200": map[string]any{"description": "Journal entries"},
				},
			},
		}
	}

	return map[string]any{
		"openapi": "3.1.0",
		"info": map[string]any{
			"title":   "crispbridge",
			"version": "1.0",
		},
		"paths": paths,
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"BearerAuth": map[string]any{
					"type":   "http",
					"scheme": "bearer",
				},
			},
		},
	}
}

func settingsPathItem() map[string]any {
	params := []any{
		queryParam("token", "Crisp session token"),
		queryParam("website_id", "Crisp website id"),
	}
	responses := map[string]any{
		"200": map[string]any{"description": "Settings page", "content": map[string]any{"text/html": map[string]any{}}},
		"401": map[string]any{"description": "Missing authentication or invalid token"},
	}
	return map[string]any{
		"get": map[string]any{
			"operationId": "settingsPage",
			"summary":     "Render the settings form",
			"parameters":  params,
			"responses":   responses,
		},
		"post": map[string]any{
			"operationId": "settingsAction",
			"summary":     "Save, reload, or add/remove array items",
			"parameters":  params,
			"requestBody": map[string]any{
				"content": map[string]any{
					"application/x-www-form-urlencoded": map[string]any{
						"schema": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"action": map[string]any{
									"type":        "string",
									"description": "save | reload | add:<key> | remove:<key>:<index>",
								},
							},
						},
					},
				},
			},
			"responses": responses,
		},
	}
}

func queryParam(name, description string) map[string]any {
	return map[string]any{"name": name, "in": "query", "description": description, "schema": map[string]any{"type": "string"}}
}

func headerParam(name, description string) map[string]any {
	return map[string]any{"name": name, "in": "header", "required": true, "description": description, "schema": map[string]any{"type": "string"}}
}
