package api

import (
	"net/http"
	"time"

	"quarry/internal/domain"
)

func (h *Handler) QueryRun(w http.ResponseWriter, r *http.Request) {
	var spec domain.PlanSpec
	if !h.decodeJSON(w, r, &spec) {
		return
	}
	res, err := h.queries.Run(r.Context(), spec)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) QueryExplain(w http.ResponseWriter, r *http.Request) {
	var spec domain.PlanSpec
	if !h.decodeJSON(w, r, &spec) {
		return
	}
	exp, err := h.queries.Explain(r.Context(), spec)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, exp)
}

// QueryHistory lists recorded materializations, newest first. Optional
// filters: principal, dataset, status, from, to (RFC 3339).
func (h *Handler) QueryHistory(w http.ResponseWriter, r *http.Request) {
	filter := domain.QueryLogFilter{Page: pageFromRequest(r)}
	q := r.URL.Query()
	if v := q.Get("principal"); v != "" {
		filter.PrincipalName = &v
	}
	if v := q.Get("dataset"); v != "" {
		filter.DatasetName = &v
	}
	if v := q.Get("status"); v != "" {
		filter.Status = &v
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid 'from' timestamp: must be RFC 3339")
			return
		}
		filter.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid 'to' timestamp: must be RFC 3339")
			return
		}
		filter.To = &t
	}

	entries, total, err := h.queries.History(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	data := make([]QueryLogEntry, 0, len(entries))
	for _, e := range entries {
		data = append(data, queryLogEntryToAPI(e))
	}
	h.writeJSON(w, http.StatusOK, PaginatedQueryLog{
		Data:          data,
		NextPageToken: domain.NextPageToken(filter.Page.Offset(), filter.Page.Limit(), total),
	})
}
