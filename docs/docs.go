// Package docs registers the nova OpenAPI document with swag so the HTTP
// transport can serve it at /swagger/doc.json.
//
// Regenerate with: swag init -g cmd/nova/main.go --parseInternal
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/query": {
            "post": {
                "description": "Runs the utterance through the offline rules; on a miss it is forwarded to the configured backend. A reply is always returned. When the backend was tried and failed, the degraded reply is returned with status 502.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["assistant"],
                "summary": "Ask the assistant",
                "parameters": [
                    {"description": "Utterance", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.promptRequest"}}
                ],
                "responses": {
                    "200": {"description": "Answer", "schema": {"$ref": "#/definitions/message.Reply"}},
                    "400": {"description": "Empty prompt or invalid body", "schema": {"$ref": "#/definitions/http.errorResponse"}},
                    "502": {"description": "Backend failed; offline fallback reply", "schema": {"$ref": "#/definitions/message.Reply"}}
                }
            }
        },
        "/api/command": {
            "post": {
                "description": "Evaluates the utterance against the offline rules only. handled=false means no rule matched and reply holds the capability description.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["assistant"],
                "summary": "Run an offline command",
                "parameters": [
                    {"description": "Utterance", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.promptRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.commandResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/http.errorResponse"}}
                }
            }
        },
        "/api/backend": {
            "get": {
                "produces": ["application/json"],
                "tags": ["backend"],
                "summary": "Show the active backend",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/message.BackendStatus"}}
                }
            },
            "put": {
                "description": "Probes the new URL and, if it answers, persists and activates it. An empty url switches to offline-only mode without changing the persisted value.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["backend"],
                "summary": "Switch the backend",
                "parameters": [
                    {"description": "New backend", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.backendUpdate"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.backendUpdateResponse"}},
                    "400": {"description": "Invalid or unreachable URL", "schema": {"$ref": "#/definitions/http.errorResponse"}},
                    "500": {"description": "Could not persist the backend", "schema": {"$ref": "#/definitions/http.errorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "bootstrap.Outcome": {
            "type": "object",
            "properties": {
                "backend": {"type": "string"},
                "mode": {"type": "string", "enum": ["configured", "alternate", "offline"]},
                "persisted": {"type": "boolean"}
            }
        },
        "http.backendUpdate": {
            "type": "object",
            "properties": {"url": {"type": "string"}}
        },
        "http.backendUpdateResponse": {
            "type": "object",
            "properties": {
                "outcome": {"$ref": "#/definitions/bootstrap.Outcome"},
                "status": {"$ref": "#/definitions/message.BackendStatus"}
            }
        },
        "http.commandResponse": {
            "type": "object",
            "properties": {
                "handled": {"type": "boolean"},
                "reply": {"type": "string"},
                "rule": {"type": "string"}
            }
        },
        "http.errorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}}
        },
        "http.promptRequest": {
            "type": "object",
            "properties": {
                "prompt": {"type": "string"},
                "source": {"type": "string"}
            }
        },
        "message.BackendStatus": {
            "type": "object",
            "properties": {
                "checked_at": {"type": "string"},
                "online": {"type": "boolean"},
                "url": {"type": "string"}
            }
        },
        "message.Reply": {
            "type": "object",
            "properties": {
                "degraded": {"type": "boolean"},
                "error": {"type": "string"},
                "origin": {"type": "string", "enum": ["local", "remote", "fallback"]},
                "reply": {"type": "string"},
                "request_id": {"type": "string"},
                "rule": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "nova API",
	Description:      "Offline-first assistant: local commands, remote backend on a miss.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
