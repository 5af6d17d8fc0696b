package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sahaj-pos/core/internal/auth"
	"github.com/sahaj-pos/core/internal/domain"
	"github.com/sahaj-pos/core/internal/middleware"
	"github.com/sahaj-pos/core/internal/service"
)

// LifecycleServicer defines the service methods needed by order handlers.
// Satisfied by *service.LifecycleService; narrow interface for testability.
type LifecycleServicer interface {
	Create(ctx context.Context, req service.CreateOrderRequest, actor auth.Actor) (*domain.Order, error)
	Transition(ctx context.Context, orderID uuid.UUID, targetStatus string, actor auth.Actor) (*domain.Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
	List(ctx context.Context) ([]domain.Order, error)
}

// TicketServicer defines the service methods needed by ticket handlers.
// Satisfied by *service.TicketService; narrow interface for testability.
type TicketServicer interface {
	AddItems(ctx context.Context, orderID uuid.UUID, items []service.NewItem, actor auth.Actor) (*domain.KitchenTicket, *domain.Order, error)
	ListTickets(ctx context.Context, orderID uuid.UUID) ([]domain.KitchenTicket, error)
	MarkTicketStatus(ctx context.Context, orderID uuid.UUID, ticketNumber int, status string, actor auth.Actor) (*domain.KitchenTicket, error)
}

// TableTransferrer defines the transfer method needed by order handlers.
// Satisfied by *service.TableService; narrow interface for testability.
type TableTransferrer interface {
	Transfer(ctx context.Context, orderID, newTableID uuid.UUID, reason, oldTableTargetStatus string, actor auth.Actor) (*domain.Order, error)
}

// OrderHandler handles order, transition, ticket and transfer endpoints.
type OrderHandler struct {
	lifecycle LifecycleServicer
	tickets   TicketServicer
	tables    TableTransferrer
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(lifecycle LifecycleServicer, tickets TicketServicer, tables TableTransferrer) *OrderHandler {
	return &OrderHandler{lifecycle: lifecycle, tickets: tickets, tables: tables}
}

// RegisterRoutes registers order endpoints on the given Chi router.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}/status", h.Transition)
	r.Post("/{id}/items", h.AddItems)
	r.Get("/{id}/tickets", h.ListTickets)
	r.Patch("/{id}/tickets/{num}/status", h.MarkTicketStatus)
	r.Post("/{id}/transfer", h.Transfer)
}

// --- Request / Response types ---

type newItemRequest struct {
	MenuItemID   string `json:"menu_item_id"`
	Name         string `json:"name"`
	Quantity     int32  `json:"quantity"`
	UnitPrice    string `json:"unit_price"`
	FreeOfCharge bool   `json:"free_of_charge"`
	AuthorizedBy string `json:"authorized_by"`
}

type createOrderRequest struct {
	GuestCount            int              `json:"guest_count"`
	TableID               string           `json:"table_id"`
	CandidateTableIDs     []string         `json:"candidate_table_ids"`
	Items                 []newItemRequest `json:"items"`
	DiscountPercentage    string           `json:"discount_percentage"`
	LoyaltyPointsRedeemed string           `json:"loyalty_points_redeemed"`
}

type transitionRequest struct {
	Status string `json:"status"`
}

type addItemsRequest struct {
	Items []newItemRequest `json:"items"`
}

type ticketStatusRequest struct {
	Status string `json:"status"`
}

type transferRequest struct {
	NewTableID     string `json:"new_table_id"`
	Reason         string `json:"reason"`
	OldTableStatus string `json:"old_table_status"`
}

type orderListResponse struct {
	Orders []domain.Order `json:"orders"`
}

type addItemsResponse struct {
	Ticket *domain.KitchenTicket `json:"ticket"`
	Order  *domain.Order         `json:"order"`
}

type ticketListResponse struct {
	Tickets []domain.KitchenTicket `json:"tickets"`
}

// --- Handlers ---

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.TableID == "" && len(req.CandidateTableIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "table_id or candidate_table_ids is required"})
		return
	}
	if req.TableID != "" && len(req.CandidateTableIDs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "table_id and candidate_table_ids are mutually exclusive"})
		return
	}

	svcReq := service.CreateOrderRequest{GuestCount: req.GuestCount}

	if req.TableID != "" {
		id, err := uuid.Parse(req.TableID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table_id"})
			return
		}
		svcReq.TableID = &id
	}
	for _, raw := range req.CandidateTableIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid candidate table id"})
			return
		}
		svcReq.CandidateTableIDs = append(svcReq.CandidateTableIDs, id)
	}

	items, err := parseItems(req.Items)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	svcReq.Items = items

	if svcReq.DiscountPercentage, err = parseAmount(req.DiscountPercentage, "discount_percentage"); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if svcReq.LoyaltyPointsRedeemed, err = parseAmount(req.LoyaltyPointsRedeemed, "loyalty_points_redeemed"); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	order, err := h.lifecycle.Create(r.Context(), svcReq, claims.Actor())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// List handles GET /orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	orders, err := h.lifecycle.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderListResponse{Orders: orders})
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}
	order, err := h.lifecycle.Get(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// Transition handles PATCH /orders/{id}/status.
func (h *OrderHandler) Transition(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	order, err := h.lifecycle.Transition(r.Context(), orderID, req.Status, claims.Actor())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// AddItems handles POST /orders/{id}/items — a new kitchen ticket round.
func (h *OrderHandler) AddItems(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	var req addItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	items, err := parseItems(req.Items)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ticket, order, err := h.tickets.AddItems(r.Context(), orderID, items, claims.Actor())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, addItemsResponse{Ticket: ticket, Order: order})
}

// ListTickets handles GET /orders/{id}/tickets.
func (h *OrderHandler) ListTickets(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}
	tickets, err := h.tickets.ListTickets(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ticketListResponse{Tickets: tickets})
}

// MarkTicketStatus handles PATCH /orders/{id}/tickets/{num}/status.
func (h *OrderHandler) MarkTicketStatus(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}
	num, err := strconv.Atoi(chi.URLParam(r, "num"))
	if err != nil || num < 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ticket number"})
		return
	}

	var req ticketStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	ticket, err := h.tickets.MarkTicketStatus(r.Context(), orderID, num, req.Status, claims.Actor())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

// Transfer handles POST /orders/{id}/transfer.
func (h *OrderHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	newTableID, err := uuid.Parse(req.NewTableID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid new_table_id"})
		return
	}

	order, err := h.tables.Transfer(r.Context(), orderID, newTableID, req.Reason, req.OldTableStatus, claims.Actor())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// --- Helpers ---

func parseOrderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return uuid.Nil, false
	}
	return id, true
}

func parseItems(input []newItemRequest) ([]service.NewItem, error) {
	items := make([]service.NewItem, len(input))
	for i, in := range input {
		menuItemID, err := uuid.Parse(in.MenuItemID)
		if err != nil {
			return nil, &fieldError{field: formatItemField(i, "menu_item_id")}
		}
		price, err := decimal.NewFromString(in.UnitPrice)
		if err != nil {
			return nil, &fieldError{field: formatItemField(i, "unit_price")}
		}
		items[i] = service.NewItem{
			MenuItemID:   menuItemID,
			Name:         in.Name,
			Quantity:     in.Quantity,
			UnitPrice:    price,
			FreeOfCharge: in.FreeOfCharge,
			AuthorizedBy: in.AuthorizedBy,
		}
	}
	return items, nil
}

// parseAmount parses an optional decimal field; empty means zero.
func parseAmount(raw, field string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, &fieldError{field: field}
	}
	return d, nil
}

type fieldError struct {
	field string
}

func (e *fieldError) Error() string {
	return "invalid " + e.field
}

func formatItemField(idx int, name string) string {
	return "items[" + strconv.Itoa(idx) + "]." + name
}
