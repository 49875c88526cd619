package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"quarry/internal/domain"
)

func (h *Handler) DatasetsList(w http.ResponseWriter, r *http.Request) {
	page := pageFromRequest(r)
	items, total, err := h.datasets.List(r.Context(), page)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	data := make([]Dataset, 0, len(items))
	for i := range items {
		data = append(data, datasetToAPI(&items[i]))
	}
	h.writeJSON(w, http.StatusOK, PaginatedDatasets{
		Data:          data,
		NextPageToken: domain.NextPageToken(page.Offset(), page.Limit(), total),
	})
}

func (h *Handler) DatasetsRegister(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterDatasetRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	ds, err := h.datasets.Register(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.reloadScheduler(r.Context())
	h.writeJSON(w, http.StatusCreated, datasetToAPI(ds))
}

func (h *Handler) DatasetsGet(w http.ResponseWriter, r *http.Request) {
	ds, err := h.datasets.Get(r.Context(), chi.URLParam(r, "datasetName"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, datasetToAPI(ds))
}

func (h *Handler) DatasetsUpdate(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateDatasetRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	ds, err := h.datasets.Update(r.Context(), chi.URLParam(r, "datasetName"), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.reloadScheduler(r.Context())
	h.writeJSON(w, http.StatusOK, datasetToAPI(ds))
}

func (h *Handler) DatasetsDrop(w http.ResponseWriter, r *http.Request) {
	if err := h.datasets.Drop(r.Context(), chi.URLParam(r, "datasetName")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.reloadScheduler(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DatasetsRefresh(w http.ResponseWriter, r *http.Request) {
	ds, err := h.datasets.Refresh(r.Context(), chi.URLParam(r, "datasetName"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, datasetToAPI(ds))
}

func (h *Handler) DatasetsFiles(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "datasetName")
	files, err := h.datasets.Files(r.Context(), name)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	out := make([]DatasetFile, 0, len(files))
	for _, f := range files {
		out = append(out, datasetFileToAPI(f))
	}
	h.writeJSON(w, http.StatusOK, DatasetFiles{Dataset: name, Files: out})
}

// DatasetsManifest returns the dataset's files as presigned URLs so external
// readers can scan without storage credentials. An optional ?filter= prunes
// partitions the same way materialization would.
func (h *Handler) DatasetsManifest(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "datasetName")
	filter := r.URL.Query().Get("filter")
	manifest, err := h.queries.Manifest(r.Context(), name, filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, manifest)
}
