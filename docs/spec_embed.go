package docs

import _ "embed"

// OpenAPISpec is the REST API description served at /openapi.yaml.
//
//go:embed openapi.yaml
var OpenAPISpec []byte
