package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"quarry/internal/domain"
)

func (h *Handler) APIKeysList(w http.ResponseWriter, r *http.Request) {
	page := pageFromRequest(r)
	items, total, err := h.apiKeys.List(r.Context(), page)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	data := make([]APIKeyInfo, 0, len(items))
	for i := range items {
		data = append(data, apiKeyToAPI(&items[i]))
	}
	h.writeJSON(w, http.StatusOK, PaginatedAPIKeys{
		Data:          data,
		NextPageToken: domain.NextPageToken(page.Offset(), page.Limit(), total),
	})
}

func (h *Handler) APIKeysCreate(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateAPIKeyRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	raw, key, err := h.apiKeys.Create(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, CreateAPIKeyResponse{
		APIKeyInfo: apiKeyToAPI(key),
		Key:        raw,
	})
}

func (h *Handler) APIKeysDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.apiKeys.Delete(r.Context(), chi.URLParam(r, "keyID")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
