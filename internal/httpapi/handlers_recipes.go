package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"cafecogs/backend/internal/domain"
)

func (a *API) handleRecipes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		recipes, err := a.service.ListRecipes(r.Context(), r.URL.Query().Get("product_id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"recipes": recipes})
	case http.MethodPost:
		var req domain.RecipeCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		rec, err := a.service.CreateRecipe(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"recipe": rec})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleRecipeActions(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r, "/api/v1/recipes/")
	if len(parts) != 1 {
		writeError(w, http.StatusNotFound, errors.New("unknown recipe path"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		rec, err := a.service.GetRecipe(r.Context(), parts[0])
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"recipe": rec})
	case http.MethodPut:
		var req domain.RecipeUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		rec, err := a.service.UpdateRecipe(r.Context(), parts[0], req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"recipe": rec})
	default:
		writeMethodNotAllowed(w)
	}
}

// handleResolve evaluates the effective recipe of a sellable, at the given
// instant or now.
func (a *API) handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	query := r.URL.Query()
	sellableID := strings.TrimSpace(query.Get("sellable_id"))
	if sellableID == "" {
		writeError(w, http.StatusBadRequest, errors.New("sellable_id is required"))
		return
	}
	at, err := parseTimeParam(query, "at")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	resp, err := a.service.Resolve(r.Context(), sellableID, at)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleOverrides(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		overrides, err := a.service.ListOverrides(r.Context(), r.URL.Query().Get("sellable_id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"overrides": overrides})
	case http.MethodPost:
		var req domain.OverrideCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		ov, err := a.service.CreateOverride(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"override": ov})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleOverrideActions(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r, "/api/v1/overrides/")
	if len(parts) != 1 {
		writeError(w, http.StatusNotFound, errors.New("unknown override path"))
		return
	}
	if r.Method != http.MethodPut {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.OverrideUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ov, err := a.service.UpdateOverride(r.Context(), parts[0], req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"override": ov})
}

func (a *API) handleModifierRecipes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		recipes, err := a.service.ListModifierRecipes(r.Context(), r.URL.Query().Get("modifier_option_id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"modifier_recipes": recipes})
	case http.MethodPost:
		var req domain.ModifierRecipeCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		rec, err := a.service.CreateModifierRecipe(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"modifier_recipe": rec})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleModifierRecipeActions(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r, "/api/v1/modifier-recipes/")
	if len(parts) != 1 {
		writeError(w, http.StatusNotFound, errors.New("unknown modifier recipe path"))
		return
	}
	if r.Method != http.MethodPut {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.ModifierRecipeUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rec, err := a.service.UpdateModifierRecipe(r.Context(), parts[0], req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"modifier_recipe": rec})
}
