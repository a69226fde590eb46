// Package openapi holds the generated Swagger specification.
// Regenerate with: swag init -g internal/idp/http/router.go -o api/openapi
package openapi

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "Tanukisoft",
            "url": "https://github.com/tanukisoft/torii"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/authorize": {
            "get": {
                "produces": ["text/html"],
                "tags": ["OAuth2"],
                "summary": "OAuth2 Authorization Endpoint",
                "parameters": [
                    {"type": "string", "name": "response_type", "in": "query", "required": true},
                    {"type": "string", "name": "client_id", "in": "query", "required": true},
                    {"type": "string", "name": "redirect_uri", "in": "query"},
                    {"type": "string", "name": "scope", "in": "query"},
                    {"type": "string", "name": "state", "in": "query"},
                    {"type": "string", "name": "nonce", "in": "query"},
                    {"type": "string", "name": "response_mode", "in": "query"},
                    {"type": "string", "name": "code_challenge", "in": "query"},
                    {"type": "string", "name": "code_challenge_method", "in": "query"},
                    {"type": "string", "name": "prompt", "in": "query"},
                    {"type": "integer", "name": "max_age", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Login form, consent form or form_post document"},
                    "302": {"description": "Redirect to redirect_uri"},
                    "400": {"description": "Invalid request"}
                }
            }
        },
        "/token": {
            "post": {
                "consumes": ["application/x-www-form-urlencoded"],
                "produces": ["application/json"],
                "tags": ["OAuth2"],
                "summary": "OAuth2 Token Endpoint",
                "parameters": [
                    {"type": "string", "name": "grant_type", "in": "formData", "required": true},
                    {"type": "string", "name": "code", "in": "formData"},
                    {"type": "string", "name": "redirect_uri", "in": "formData"},
                    {"type": "string", "name": "code_verifier", "in": "formData"},
                    {"type": "string", "name": "refresh_token", "in": "formData"},
                    {"type": "string", "name": "username", "in": "formData"},
                    {"type": "string", "name": "password", "in": "formData"},
                    {"type": "string", "name": "assertion", "in": "formData"},
                    {"type": "string", "name": "client_id", "in": "formData"},
                    {"type": "string", "name": "client_secret", "in": "formData"},
                    {"type": "string", "name": "client_assertion", "in": "formData"},
                    {"type": "string", "name": "client_assertion_type", "in": "formData"},
                    {"type": "string", "name": "scope", "in": "formData"}
                ],
                "responses": {
                    "200": {"description": "access_token, token_type, expires_in, refresh_token, id_token, scope"},
                    "400": {"description": "error, error_description"},
                    "401": {"description": "error, error_description"}
                }
            }
        },
        "/token/introspection": {
            "post": {
                "consumes": ["application/x-www-form-urlencoded"],
                "produces": ["application/json"],
                "tags": ["OAuth2"],
                "summary": "OAuth2 Token Introspection Endpoint",
                "parameters": [
                    {"type": "string", "name": "token", "in": "formData", "required": true},
                    {"type": "string", "name": "token_type_hint", "in": "formData"}
                ],
                "responses": {
                    "200": {"description": "active plus token metadata when active"},
                    "401": {"description": "error, error_description"}
                }
            }
        },
        "/token/revocation": {
            "post": {
                "consumes": ["application/x-www-form-urlencoded"],
                "produces": ["application/json"],
                "tags": ["OAuth2"],
                "summary": "OAuth2 Token Revocation Endpoint",
                "parameters": [
                    {"type": "string", "name": "token", "in": "formData", "required": true},
                    {"type": "string", "name": "token_type_hint", "in": "formData"},
                    {"type": "string", "name": "callback", "in": "formData"}
                ],
                "responses": {
                    "200": {"description": "empty object"},
                    "400": {"description": "error, error_description"},
                    "401": {"description": "error, error_description"}
                }
            }
        },
        "/register": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Registration"],
                "summary": "Dynamic Client Registration Endpoint",
                "responses": {
                    "201": {"description": "client information"},
                    "400": {"description": "error, error_description"},
                    "401": {"description": "error, error_description"}
                }
            }
        },
        "/configure/{client_id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Registration"],
                "summary": "Read Client Configuration",
                "parameters": [
                    {"type": "string", "name": "client_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "client information"},
                    "401": {"description": "error, error_description"}
                }
            },
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Registration"],
                "summary": "Update Client Configuration",
                "parameters": [
                    {"type": "string", "name": "client_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "client information"},
                    "401": {"description": "error, error_description"}
                }
            },
            "delete": {
                "tags": ["Registration"],
                "summary": "Delete Client Registration",
                "parameters": [
                    {"type": "string", "name": "client_id", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "client deleted"},
                    "401": {"description": "error, error_description"}
                }
            }
        },
        "/.well-known/openid-configuration": {
            "get": {
                "produces": ["application/json"],
                "tags": ["well-known"],
                "summary": "OpenID Provider Configuration",
                "responses": {
                    "200": {"description": "provider metadata"}
                }
            }
        },
        "/.well-known/jwks.json": {
            "get": {
                "produces": ["application/json"],
                "tags": ["well-known"],
                "summary": "Get JWKS",
                "responses": {
                    "200": {"description": "The JSON Web Key Set"}
                }
            }
        },
        "/livez": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Liveness Probe",
                "responses": {
                    "200": {"description": "status, uptime, version"}
                }
            }
        },
        "/readyz": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Readiness Probe",
                "responses": {
                    "200": {"description": "status, uptime, version, checks"},
                    "503": {"description": "service not ready"}
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "Torii Authorization Server API",
	Description:      "OAuth 2.0 and OpenID Connect authorization server.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
