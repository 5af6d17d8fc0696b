package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sahaj-pos/core/internal/domain"
)

// TableStore defines the store methods needed by the floor-plan read
// endpoints. Satisfied by any store.Store; narrow interface for testability.
type TableStore interface {
	ListTables(ctx context.Context) ([]domain.Table, error)
}

// TableHandler serves the floor plan.
type TableHandler struct {
	store TableStore
}

// NewTableHandler creates a new TableHandler.
func NewTableHandler(store TableStore) *TableHandler {
	return &TableHandler{store: store}
}

// RegisterRoutes registers table endpoints on the given Chi router.
func (h *TableHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
}

type tableListResponse struct {
	Tables []domain.Table `json:"tables"`
}

// List handles GET /tables.
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	tables, err := h.store.ListTables(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tableListResponse{Tables: tables})
}
