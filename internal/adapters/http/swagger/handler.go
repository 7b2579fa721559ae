// Package swagger serves the API description.
package swagger

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Register attaches the OpenAPI document route to r.
//
//	GET /openapi.yaml -> embedded OpenAPI spec
func Register(r chi.Router) {
	if r == nil {
		panic("router is nil")
	}

	r.Get("/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
		_, _ = w.Write(OpenAPI)
	})
}
