package ui

import (
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"

	"quarry/internal/ui/assets"
)

// MountRoutes wires the UI under its mount point (normally /ui). Login and
// static assets are public; everything else goes through the cookie bridge
// and the supplied auth middleware.
func MountRoutes(r chi.Router, h *Handler, authMiddleware func(http.Handler) http.Handler) {
	r.Get("/login", h.LoginPage)
	r.Post("/login", h.LoginSubmit)
	r.Post("/logout", h.Logout)

	staticFS, err := fs.Sub(assets.StaticFS(), "static")
	if err == nil {
		r.Handle("/static/*", http.StripPrefix("/ui/static/", http.FileServer(http.FS(staticFS))))
	}

	r.Group(func(r chi.Router) {
		r.Use(h.CookieHeaderBridge)
		r.Use(authMiddleware)
		r.Get("/", h.DatasetsList)
		r.Get("/datasets/{datasetName}", h.DatasetsDetail)
		r.Get("/queries", h.QueriesList)
	})
}
