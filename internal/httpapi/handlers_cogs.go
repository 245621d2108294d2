package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"cafecogs/backend/internal/domain"
	"cafecogs/backend/internal/service"
)

func (a *API) handlePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	query := r.URL.Query()
	start, err := parseTimeParam(query, "start_at")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	end, err := parseTimeParam(query, "end_at")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	includeTheoretical, err := parseBoolParam(query.Get("include_theoretical"), true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	preview, err := a.service.Preview(r.Context(), start, end, includeTheoretical)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (a *API) handlePeriods(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		query := r.URL.Query()
		resp, err := a.service.ListPeriods(r.Context(), query.Get("status"), parsePositiveLimit(query.Get("limit"), 50, 200))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	case http.MethodPost:
		var req domain.PeriodCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		period, err := a.service.CreatePeriod(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"period": period})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handlePeriodActions(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r, "/api/v1/cogs/periods/")
	switch {
	case len(parts) == 1:
		a.handlePeriod(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "close":
		a.handlePeriodClose(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "export":
		a.handlePeriodExport(w, r, parts[0])
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown period action"))
	}
}

func (a *API) handlePeriod(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		resp, err := a.service.GetPeriod(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	case http.MethodPatch:
		var req domain.PeriodUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		period, err := a.service.UpdatePeriodNotes(r.Context(), id, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"period": period})
	default:
		writeMethodNotAllowed(w)
	}
}

// handlePeriodClose requires the manager PIN on top of the admin token.
// PIN attempts are rate limited per user.
func (a *API) handlePeriodClose(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req domain.PeriodCloseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	key := clientKey(r)
	if actor, ok := service.ActorFromContext(r.Context()); ok {
		key = actor.Username
	}
	if !a.pinLimiter.Allow(key) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many manager pin attempts"))
		return
	}
	if !a.auth.ValidateManagerPIN(req.ManagerPIN) {
		writeError(w, http.StatusForbidden, errors.New("invalid manager pin"))
		return
	}

	includeTheoretical := true
	if req.IncludeTheoretical != nil {
		includeTheoretical = *req.IncludeTheoretical
	}
	resp, err := a.service.ClosePeriod(r.Context(), id, includeTheoretical)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handlePeriodExport(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	file, err := a.service.ExportPeriod(r.Context(), id, r.URL.Query().Get("format"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Body)
}

func parseBoolParam(raw string, fallback bool) (bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback, fmt.Errorf("invalid boolean %q", raw)
	}
	return val, nil
}
