package ui

import (
	"fmt"
	"net/http"

	"quarry/internal/domain"
)

func (h *Handler) QueriesList(w http.ResponseWriter, r *http.Request) {
	pageReq := pageFromRequest(r, 50)
	entries, total, err := h.Queries.History(r.Context(), domain.QueryLogFilter{Page: pageReq})
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	rows := make([]queryLogRowData, 0, len(entries))
	for i := range entries {
		e := entries[i]
		rows = append(rows, queryLogRowData{
			Filter:    e.PrincipalName + " " + e.DatasetName + " " + e.Status,
			When:      formatTime(e.CreatedAt),
			Principal: e.PrincipalName,
			Dataset:   e.DatasetName,
			Status:    e.Status,
			Duration:  int64PtrLabel(e.DurationMs, "ms"),
			Rows:      int64PtrLabel(e.RowsReturned, ""),
			Scanned:   int64PtrLabel(e.FilesScanned, ""),
			Pruned:    int64PtrLabel(e.FilesPruned, ""),
			Error:     strOrEmpty(e.ErrorMessage),
		})
	}
	renderHTML(w, http.StatusOK, queriesListPage(principalFromContext(r.Context()), rows, pageReq, total))
}

func int64PtrLabel(v *int64, suffix string) string {
	if v == nil {
		return "-"
	}
	if suffix == "" {
		return fmt.Sprintf("%d", *v)
	}
	return fmt.Sprintf("%d %s", *v, suffix)
}

func strOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
