package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sahaj-pos/core/internal/auth"
	"github.com/sahaj-pos/core/internal/domain"
	"github.com/sahaj-pos/core/internal/enum"
	"github.com/sahaj-pos/core/internal/handler"
	"github.com/sahaj-pos/core/internal/middleware"
	"github.com/sahaj-pos/core/internal/service"
)

const testJWTSecret = "test-secret"

// --- Function-field mocks for the narrow handler interfaces ---

type mockLifecycle struct {
	createFn     func(ctx context.Context, req service.CreateOrderRequest, actor auth.Actor) (*domain.Order, error)
	transitionFn func(ctx context.Context, orderID uuid.UUID, targetStatus string, actor auth.Actor) (*domain.Order, error)
	getFn        func(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
	listFn       func(ctx context.Context) ([]domain.Order, error)
}

func (m *mockLifecycle) Create(ctx context.Context, req service.CreateOrderRequest, actor auth.Actor) (*domain.Order, error) {
	return m.createFn(ctx, req, actor)
}

func (m *mockLifecycle) Transition(ctx context.Context, orderID uuid.UUID, targetStatus string, actor auth.Actor) (*domain.Order, error) {
	return m.transitionFn(ctx, orderID, targetStatus, actor)
}

func (m *mockLifecycle) Get(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	return m.getFn(ctx, orderID)
}

func (m *mockLifecycle) List(ctx context.Context) ([]domain.Order, error) {
	return m.listFn(ctx)
}

type mockTickets struct {
	addItemsFn func(ctx context.Context, orderID uuid.UUID, items []service.NewItem, actor auth.Actor) (*domain.KitchenTicket, *domain.Order, error)
	listFn     func(ctx context.Context, orderID uuid.UUID) ([]domain.KitchenTicket, error)
	markFn     func(ctx context.Context, orderID uuid.UUID, ticketNumber int, status string, actor auth.Actor) (*domain.KitchenTicket, error)
}

func (m *mockTickets) AddItems(ctx context.Context, orderID uuid.UUID, items []service.NewItem, actor auth.Actor) (*domain.KitchenTicket, *domain.Order, error) {
	return m.addItemsFn(ctx, orderID, items, actor)
}

func (m *mockTickets) ListTickets(ctx context.Context, orderID uuid.UUID) ([]domain.KitchenTicket, error) {
	return m.listFn(ctx, orderID)
}

func (m *mockTickets) MarkTicketStatus(ctx context.Context, orderID uuid.UUID, ticketNumber int, status string, actor auth.Actor) (*domain.KitchenTicket, error) {
	return m.markFn(ctx, orderID, ticketNumber, status, actor)
}

type mockTransferrer struct {
	transferFn func(ctx context.Context, orderID, newTableID uuid.UUID, reason, oldTableTargetStatus string, actor auth.Actor) (*domain.Order, error)
}

func (m *mockTransferrer) Transfer(ctx context.Context, orderID, newTableID uuid.UUID, reason, oldTableTargetStatus string, actor auth.Actor) (*domain.Order, error) {
	return m.transferFn(ctx, orderID, newTableID, reason, oldTableTargetStatus, actor)
}

type mockSplits struct {
	createFn  func(ctx context.Context, orderID uuid.UUID, req service.CreateSplitRequest, actor auth.Actor) (*domain.SplitBill, error)
	payOneFn  func(ctx context.Context, splitBillID uuid.UUID, splitNumber int, payment service.PaymentInput, actor auth.Actor) (*domain.SplitBill, error)
	payFullFn func(ctx context.Context, orderID uuid.UUID, payment service.PaymentInput, actor auth.Actor) (*domain.SplitBill, error)
	getFn     func(ctx context.Context, splitBillID uuid.UUID) (*domain.SplitBill, error)
	activeFn  func(ctx context.Context, orderID uuid.UUID) (*domain.SplitBill, error)
}

func (m *mockSplits) CreateSplit(ctx context.Context, orderID uuid.UUID, req service.CreateSplitRequest, actor auth.Actor) (*domain.SplitBill, error) {
	return m.createFn(ctx, orderID, req, actor)
}

func (m *mockSplits) PayOneSplit(ctx context.Context, splitBillID uuid.UUID, splitNumber int, payment service.PaymentInput, actor auth.Actor) (*domain.SplitBill, error) {
	return m.payOneFn(ctx, splitBillID, splitNumber, payment, actor)
}

func (m *mockSplits) PayFull(ctx context.Context, orderID uuid.UUID, payment service.PaymentInput, actor auth.Actor) (*domain.SplitBill, error) {
	return m.payFullFn(ctx, orderID, payment, actor)
}

func (m *mockSplits) Get(ctx context.Context, splitBillID uuid.UUID) (*domain.SplitBill, error) {
	return m.getFn(ctx, splitBillID)
}

func (m *mockSplits) GetActiveForOrder(ctx context.Context, orderID uuid.UUID) (*domain.SplitBill, error) {
	return m.activeFn(ctx, orderID)
}

// --- Shared helpers ---

func testToken(t *testing.T, role string) string {
	t.Helper()
	token, err := auth.GenerateToken(testJWTSecret, uuid.New(), "tester", role, "till-1")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

func doAuthRequest(t *testing.T, r chi.Router, method, path string, body interface{}, role string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testToken(t, role))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func doRawRequest(r chi.Router, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func newOrderRouter(life handler.LifecycleServicer, tickets handler.TicketServicer, tables handler.TableTransferrer) chi.Router {
	h := handler.NewOrderHandler(life, tickets, tables)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Route("/orders", h.RegisterRoutes)
	return r
}

func newSplitRouter(svc handler.SplitServicer) chi.Router {
	h := handler.NewSplitHandler(svc)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Route("/orders", h.RegisterOrderRoutes)
	r.Route("/splits", h.RegisterRoutes)
	return r
}

func sampleOrder() *domain.Order {
	return &domain.Order{
		ID:      uuid.New(),
		Status:  enum.OrderStatusPending,
		Version: 1,
	}
}
