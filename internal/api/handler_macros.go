package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"quarry/internal/domain"
)

func (h *Handler) MacrosList(w http.ResponseWriter, r *http.Request) {
	page := pageFromRequest(r)
	items, total, err := h.macros.List(r.Context(), page)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	data := make([]Macro, 0, len(items))
	for i := range items {
		data = append(data, macroToAPI(&items[i]))
	}
	h.writeJSON(w, http.StatusOK, PaginatedMacros{
		Data:          data,
		NextPageToken: domain.NextPageToken(page.Offset(), page.Limit(), total),
	})
}

func (h *Handler) MacrosCreate(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateMacroRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	m, err := h.macros.Create(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, macroToAPI(m))
}

func (h *Handler) MacrosGet(w http.ResponseWriter, r *http.Request) {
	m, err := h.macros.Get(r.Context(), chi.URLParam(r, "macroName"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, macroToAPI(m))
}

func (h *Handler) MacrosUpdate(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateMacroRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	m, err := h.macros.Update(r.Context(), chi.URLParam(r, "macroName"), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, macroToAPI(m))
}

func (h *Handler) MacrosDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.macros.Delete(r.Context(), chi.URLParam(r, "macroName")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MacrosExpand runs a macro against the given args and returns the filter
// expression it produces. The macro name comes from the URL, not the body.
func (h *Handler) MacrosExpand(w http.ResponseWriter, r *http.Request) {
	var req domain.ExpandMacroRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	req.Name = chi.URLParam(r, "macroName")
	filter, err := h.macros.Expand(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, MacroExpansion{Name: req.Name, Args: req.Args, Filter: filter})
}
