package handler

import (
	"context"
	"net/http"

	"github.com/bookbeam/bookbeam/internal/api/response"
	"github.com/bookbeam/bookbeam/internal/catalog"
	"github.com/bookbeam/bookbeam/internal/fallback"
)

// CatalogHandler serves the bookable-services catalog through the
// read-through cache combinator: cache down means straight to the
// database, database down means the static fallback catalog.
type CatalogHandler struct {
	db       catalog.Querier
	executor *fallback.Executor
	static   []catalog.ServiceOffering
}

// NewCatalogHandler creates a new CatalogHandler. static is the catalog
// served when both cache and database are unavailable; nil disables the
// static fallback.
func NewCatalogHandler(db catalog.Querier, executor *fallback.Executor, static []catalog.ServiceOffering) *CatalogHandler {
	return &CatalogHandler{db: db, executor: executor, static: static}
}

// ListServices handles GET /v1/services.
func (h *CatalogHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	fetch := func(ctx context.Context) ([]catalog.ServiceOffering, error) {
		return catalog.Fetch(ctx, h.db)
	}

	var static *[]catalog.ServiceOffering
	if h.static != nil {
		static = &h.static
	}

	offerings, err := fallback.FetchWithCache(r.Context(), h.executor, catalog.CacheKey, fetch, static, catalog.CacheTTL)
	if err != nil {
		response.ServiceUnavailable(w, r, "Database service is currently unavailable")
		return
	}
	response.JSON(w, r, http.StatusOK, offerings)
}
