package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sahaj-pos/core/internal/auth"
	"github.com/sahaj-pos/core/internal/domain"
	"github.com/sahaj-pos/core/internal/middleware"
	"github.com/sahaj-pos/core/internal/service"
)

// SplitServicer defines the service methods needed by split-bill handlers.
// Satisfied by *service.SplitService; narrow interface for testability.
type SplitServicer interface {
	CreateSplit(ctx context.Context, orderID uuid.UUID, req service.CreateSplitRequest, actor auth.Actor) (*domain.SplitBill, error)
	PayOneSplit(ctx context.Context, splitBillID uuid.UUID, splitNumber int, payment service.PaymentInput, actor auth.Actor) (*domain.SplitBill, error)
	PayFull(ctx context.Context, orderID uuid.UUID, payment service.PaymentInput, actor auth.Actor) (*domain.SplitBill, error)
	Get(ctx context.Context, splitBillID uuid.UUID) (*domain.SplitBill, error)
	GetActiveForOrder(ctx context.Context, orderID uuid.UUID) (*domain.SplitBill, error)
}

// SplitHandler handles split-bill and payment endpoints.
type SplitHandler struct {
	svc SplitServicer
}

// NewSplitHandler creates a new SplitHandler.
func NewSplitHandler(svc SplitServicer) *SplitHandler {
	return &SplitHandler{svc: svc}
}

// RegisterOrderRoutes registers the order-scoped split endpoints. Expected to
// be mounted inside the /orders subrouter.
func (h *SplitHandler) RegisterOrderRoutes(r chi.Router) {
	r.Post("/{id}/splits", h.Create)
	r.Get("/{id}/splits/active", h.GetActive)
	r.Post("/{id}/pay", h.PayFull)
}

// RegisterRoutes registers the split-bill endpoints addressed by bill id.
// Expected to be mounted at /splits.
func (h *SplitHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{id}", h.Get)
	r.Post("/{id}/{num}/pay", h.PaySplit)
}

// --- Request types ---

type createSplitRequest struct {
	Strategy        string     `json:"strategy"`
	Parts           int        `json:"parts"`
	ItemAssignments [][]string `json:"item_assignments"`
}

type paymentRequest struct {
	Method    string `json:"method"`
	Reference string `json:"reference"`
}

// --- Handlers ---

// Create handles POST /orders/{id}/splits.
func (h *SplitHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	var req createSplitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	svcReq := service.CreateSplitRequest{
		Strategy: req.Strategy,
		Parts:    req.Parts,
	}
	for _, group := range req.ItemAssignments {
		ids := make([]uuid.UUID, len(group))
		for i, raw := range group {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item id in assignment"})
				return
			}
			ids[i] = id
		}
		svcReq.ItemAssignments = append(svcReq.ItemAssignments, ids)
	}

	bill, err := h.svc.CreateSplit(r.Context(), orderID, svcReq, claims.Actor())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bill)
}

// GetActive handles GET /orders/{id}/splits/active.
func (h *SplitHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}
	bill, err := h.svc.GetActiveForOrder(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

// PayFull handles POST /orders/{id}/pay — settle the whole bill in one step.
func (h *SplitHandler) PayFull(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	bill, err := h.svc.PayFull(r.Context(), orderID, service.PaymentInput{
		Method:    req.Method,
		Reference: req.Reference,
	}, claims.Actor())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

// Get handles GET /splits/{id}.
func (h *SplitHandler) Get(w http.ResponseWriter, r *http.Request) {
	billID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid split bill ID"})
		return
	}
	bill, err := h.svc.Get(r.Context(), billID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

// PaySplit handles POST /splits/{id}/{num}/pay.
func (h *SplitHandler) PaySplit(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	billID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid split bill ID"})
		return
	}
	num, err := strconv.Atoi(chi.URLParam(r, "num"))
	if err != nil || num < 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid split number"})
		return
	}

	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	bill, err := h.svc.PayOneSplit(r.Context(), billID, num, service.PaymentInput{
		Method:    req.Method,
		Reference: req.Reference,
	}, claims.Actor())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}
