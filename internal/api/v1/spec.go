// Package apiv1 carries the published OpenAPI description of the HTTP API.
package apiv1

import _ "embed"

//go:embed openapi.yml
var OpenAPISpec []byte
