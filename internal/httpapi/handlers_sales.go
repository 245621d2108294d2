package httpapi

import (
	"net/http"

	"cafecogs/backend/internal/domain"
)

func (a *API) handleSalesLines(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		query := r.URL.Query()
		from, err := parseTimeParam(query, "from")
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		to, err := parseTimeParam(query, "to")
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		lines, err := a.service.ListSalesLines(r.Context(), from, to, parsePositiveLimit(query.Get("limit"), 500, 1000))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"lines": lines})
	case http.MethodPost:
		var req domain.SalesLinesCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		lines, err := a.service.CreateSalesLines(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"lines": lines})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleImportOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req domain.ImportOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.service.ImportOrder(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
