package swagger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/smartystreets/goconvey/convey"
)

func TestSwaggerHandler(t *testing.T) {
	convey.Convey("Given a router with the swagger routes", t, func() {
		r := chi.NewRouter()
		Register(r)

		convey.Convey("When requesting /openapi.yaml", func() {
			req := httptest.NewRequest(http.MethodGet, "/openapi.yaml", http.NoBody)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			convey.Convey("Then the embedded document is served", func() {
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(w.Header().Get("Content-Type"), convey.ShouldEqual, "application/yaml; charset=utf-8")
				convey.So(w.Body.Len(), convey.ShouldEqual, len(OpenAPI))
			})
		})

		convey.Convey("When registering on a nil router", func() {
			convey.Convey("Then it panics", func() {
				convey.So(func() { Register(nil) }, convey.ShouldPanic)
			})
		})
	})
}

func TestOpenAPIDocument(t *testing.T) {
	convey.Convey("Given the embedded OpenAPI document", t, func() {
		doc, err := yaml.Parser().Unmarshal(OpenAPI)

		convey.Convey("Then it parses as YAML", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(doc["openapi"], convey.ShouldEqual, "3.0.3")
		})

		convey.Convey("Then every served route is described", func() {
			paths, ok := doc["paths"].(map[string]interface{})
			convey.So(ok, convey.ShouldBeTrue)
			for _, p := range []string{
				"/healthz",
				"/stats",
				"/v1/profiles",
				"/v1/profiles/{identity}",
				"/v1/realms",
				"/v1/realms/{name}",
				"/v1/realms/{name}/algorithm",
				"/v1/realms/{name}/votes",
				"/v1/realms/{name}/decay/{identity}",
				"/v1/interactions",
				"/v1/delegations",
				"/v1/badges",
				"/v1/leaderboard",
				"/v1/rank/{identity}",
			} {
				convey.So(paths, convey.ShouldContainKey, p)
			}
		})
	})
}
