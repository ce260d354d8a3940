// Package api embeds the OpenAPI document and the Swagger UI page that renders it.
package api

import _ "embed"

// OpenAPISpec holds the raw OpenAPI 3.0 specification YAML.
//
//go:embed openapi.yaml
var OpenAPISpec []byte

// DocsHTML is the Swagger UI page served at /api/docs.
//
//go:embed docs.html
var DocsHTML []byte
