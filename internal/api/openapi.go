package api

import (
	_ "embed"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var openapiSpec []byte

// GetSwagger parses the embedded OpenAPI document describing this API.
func GetSwagger() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	return loader.LoadFromData(openapiSpec)
}

// SpecYAML returns the raw embedded OpenAPI document. The lint-api command
// checks this copy so the linted spec is always the served spec.
func SpecYAML() []byte {
	return append([]byte(nil), openapiSpec...)
}
