package ui

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) DatasetsList(w http.ResponseWriter, r *http.Request) {
	pageReq := pageFromRequest(r, 50)
	items, total, err := h.Datasets.List(r.Context(), pageReq)
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	rows := make([]datasetListRowData, 0, len(items))
	for i := range items {
		ds := items[i]
		rows = append(rows, datasetListRowData{
			Filter:    ds.Name + " " + ds.Format + " " + ds.Location,
			Name:      ds.Name,
			URL:       "/ui/datasets/" + ds.Name,
			Format:    ds.Format,
			Location:  ds.Location,
			Partition: stringsJoin(ds.PartitionKeys),
			FileCount: fmt.Sprintf("%d", ds.FileCount),
			Size:      formatBytes(ds.TotalBytes),
			Updated:   formatTime(ds.UpdatedAt),
		})
	}
	renderHTML(w, http.StatusOK, datasetsListPage(principalFromContext(r.Context()), rows, pageReq, total))
}

func (h *Handler) DatasetsDetail(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "datasetName")
	ds, err := h.Datasets.Get(r.Context(), name)
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}
	files, err := h.Datasets.Files(r.Context(), name)
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	renderHTML(w, http.StatusOK, datasetDetailPage(datasetDetailPageData{
		Principal: principalFromContext(r.Context()),
		Dataset:   ds,
		Files:     files,
	}))
}
