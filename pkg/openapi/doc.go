// Package openapi turns OpenAPI 3 request bodies into form definitions. The
// public types here stay independent of kin-openapi; the parser that reads
// documents with it lives under internal/openapi.
package openapi
