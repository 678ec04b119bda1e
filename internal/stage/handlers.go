package stage

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"caseflow/internal/api"
)

type CatalogSource interface {
	Catalog(ctx context.Context, pipelineID string) (Catalog, error)
}

type Handlers struct {
	Catalogs CatalogSource
	Logger   *zap.Logger
}

// List serves a pipeline's stages. ?selectable=true narrows to valid transition targets.
func (h Handlers) List(w http.ResponseWriter, r *http.Request) {
	pipelineID := strings.TrimSpace(chi.URLParam(r, "pipeline"))
	if pipelineID == "" {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "missing pipeline")
		return
	}

	cat, err := h.Catalogs.Catalog(r.Context(), pipelineID)
	if err != nil {
		h.Logger.Error("load stage catalog", zap.String("pipeline_id", pipelineID), zap.Error(err))
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}

	items := cat.Stages()
	if r.URL.Query().Get("selectable") == "true" {
		items = cat.Selectable()
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}
