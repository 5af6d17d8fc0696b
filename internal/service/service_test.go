package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sahaj-pos/core/internal/auth"
	"github.com/sahaj-pos/core/internal/domain"
	"github.com/sahaj-pos/core/internal/enum"
	"github.com/sahaj-pos/core/internal/store/memory"
)

// --- Shared test fixtures ---

type env struct {
	store  *memory.Store
	tables *TableService
	life   *LifecycleService
	kot    *TicketService
	splits *SplitService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := memory.New()
	tables := NewTableService(st, NopPublisher{})
	life := NewLifecycleService(st, tables, NopPublisher{}, 0)
	return &env{
		store:  st,
		tables: tables,
		life:   life,
		kot:    NewTicketService(st, NopPublisher{}),
		splits: NewSplitService(st, life, NopPublisher{}),
	}
}

// setClock pins every service to the same fixed instant.
func (e *env) setClock(at time.Time) {
	clock := func() time.Time { return at }
	e.tables.now = clock
	e.life.now = clock
	e.kot.now = clock
	e.splits.now = clock
}

func (e *env) seedTable(t *testing.T, number, capacity int) uuid.UUID {
	t.Helper()
	tbl := domain.Table{
		ID:       uuid.New(),
		Number:   number,
		Capacity: capacity,
		Status:   enum.TableStatusAvailable,
	}
	if _, err := e.store.PutTables(context.Background(), []domain.Table{tbl}, []int64{0}); err != nil {
		t.Fatalf("seed table: %v", err)
	}
	return tbl.ID
}

func waiter() auth.Actor {
	return auth.Actor{ID: uuid.New(), Username: "waiter1", Role: enum.UserRoleWaiter}
}

func cashier() auth.Actor {
	return auth.Actor{ID: uuid.New(), Username: "cashier1", Role: enum.UserRoleCashier}
}

func kitchen() auth.Actor {
	return auth.Actor{ID: uuid.New(), Username: "kitchen1", Role: enum.UserRoleKitchen}
}

func item(name string, qty int32, price string) NewItem {
	return NewItem{
		MenuItemID: uuid.New(),
		Name:       name,
		Quantity:   qty,
		UnitPrice:  decimal.RequireFromString(price),
	}
}

// createOrder seeds a table and creates an order on it.
func (e *env) createOrder(t *testing.T, req CreateOrderRequest) *domain.Order {
	t.Helper()
	if req.TableID == nil && len(req.CandidateTableIDs) == 0 {
		id := e.seedTable(t, 1, 8)
		req.TableID = &id
	}
	if req.GuestCount == 0 {
		req.GuestCount = 2
	}
	if len(req.Items) == 0 {
		req.Items = []NewItem{item("Dal Makhani", 1, "250")}
	}
	order, err := e.life.Create(context.Background(), req, waiter())
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}

// advance walks the order along the main path up to target.
func (e *env) advance(t *testing.T, orderID uuid.UUID, target string) *domain.Order {
	t.Helper()
	path := []string{
		enum.OrderStatusPreparing,
		enum.OrderStatusReady,
		enum.OrderStatusServed,
		enum.OrderStatusCompleted,
		enum.OrderStatusPaid,
	}
	var order *domain.Order
	for _, status := range path {
		actor := waiter()
		if status == enum.OrderStatusCompleted || status == enum.OrderStatusPaid {
			actor = cashier()
		}
		var err error
		order, err = e.life.Transition(context.Background(), orderID, status, actor)
		if err != nil {
			t.Fatalf("transition to %s: %v", status, err)
		}
		if status == target {
			return order
		}
	}
	t.Fatalf("target status %s not on the main path", target)
	return nil
}
