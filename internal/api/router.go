package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"quarry/internal/middleware"
)

// Routes builds the authenticated /v1 surface. Reads need any principal;
// mutations that change shared state require admin.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/datasets", func(r chi.Router) {
		r.Get("/", h.DatasetsList)
		r.With(middleware.RequireAdmin).Post("/", h.DatasetsRegister)
		r.Route("/{datasetName}", func(r chi.Router) {
			r.Get("/", h.DatasetsGet)
			r.With(middleware.RequireAdmin).Patch("/", h.DatasetsUpdate)
			r.With(middleware.RequireAdmin).Delete("/", h.DatasetsDrop)
			r.With(middleware.RequireAdmin).Post("/refresh", h.DatasetsRefresh)
			r.Get("/files", h.DatasetsFiles)
			r.Get("/manifest", h.DatasetsManifest)
		})
	})

	r.Post("/query", h.QueryRun)
	r.Post("/query/explain", h.QueryExplain)
	r.Get("/queries", h.QueryHistory)

	r.Route("/macros", func(r chi.Router) {
		r.Get("/", h.MacrosList)
		r.With(middleware.RequireAdmin).Post("/", h.MacrosCreate)
		r.Route("/{macroName}", func(r chi.Router) {
			r.Get("/", h.MacrosGet)
			r.With(middleware.RequireAdmin).Patch("/", h.MacrosUpdate)
			r.With(middleware.RequireAdmin).Delete("/", h.MacrosDelete)
			r.Post("/expand", h.MacrosExpand)
		})
	})

	r.Route("/apikeys", func(r chi.Router) {
		r.Use(middleware.RequireAdmin)
		r.Get("/", h.APIKeysList)
		r.Post("/", h.APIKeysCreate)
		r.Delete("/{keyID}", h.APIKeysDelete)
	})

	return r
}

// HealthHandler reports liveness. Mounted outside the authenticated tree.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
	}
}
