package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sahaj-pos/core/internal/auth"
	"github.com/sahaj-pos/core/internal/domain"
	"github.com/sahaj-pos/core/internal/enum"
	"github.com/sahaj-pos/core/internal/store"
)

// DefaultCancelGrace is the window after creation during which a PENDING
// order may still be cancelled.
const DefaultCancelGrace = 120 * time.Second

// successor maps each order status to its unique allowed next status.
// CANCELLED is handled separately: reachable only from PENDING, only inside
// the grace window.
var successor = map[string]string{
	enum.OrderStatusPending:   enum.OrderStatusPreparing,
	enum.OrderStatusPreparing: enum.OrderStatusReady,
	enum.OrderStatusReady:     enum.OrderStatusServed,
	enum.OrderStatusServed:    enum.OrderStatusCompleted,
	enum.OrderStatusCompleted: enum.OrderStatusPaid,
}

// LifecycleService is the order state machine and the hub the other services
// report into. All writes are compare-and-swap against the store; a lost race
// surfaces as ErrConflict and the caller re-reads and retries.
type LifecycleService struct {
	store  store.Store
	tables *TableService
	pub    Publisher
	grace  time.Duration
	now    func() time.Time
}

// NewLifecycleService creates a LifecycleService. A zero grace falls back to
// DefaultCancelGrace.
func NewLifecycleService(st store.Store, tables *TableService, pub Publisher, grace time.Duration) *LifecycleService {
	if grace <= 0 {
		grace = DefaultCancelGrace
	}
	return &LifecycleService{store: st, tables: tables, pub: pub, grace: grace, now: time.Now}
}

// NewItem is the input for one item line, at creation or on a later round.
type NewItem struct {
	MenuItemID   uuid.UUID
	Name         string
	Quantity     int32
	UnitPrice    decimal.Decimal
	FreeOfCharge bool
	AuthorizedBy string
}

// CreateOrderRequest is the validated input for creating an order. Exactly
// one of TableID and CandidateTableIDs seats the party.
type CreateOrderRequest struct {
	GuestCount            int
	TableID               *uuid.UUID
	CandidateTableIDs     []uuid.UUID
	Items                 []NewItem
	DiscountPercentage    decimal.Decimal
	LoyaltyPointsRedeemed decimal.Decimal
}

// Create allocates the table, builds kitchen ticket #1 from the initial
// items, derives the total and commits the order at version 1. The order's
// authoritative CreatedAt is taken here, from the server clock.
func (s *LifecycleService) Create(ctx context.Context, req CreateOrderRequest, actor auth.Actor) (*domain.Order, error) {
	if !actor.Can(auth.CapStaff) {
		return nil, ErrUnauthorized
	}
	if req.DiscountPercentage.IsNegative() || req.DiscountPercentage.GreaterThan(decimal.NewFromInt(100)) {
		return nil, ErrInvalidDiscount
	}
	if req.LoyaltyPointsRedeemed.IsNegative() {
		return nil, ErrInvalidLoyalty
	}
	items, err := buildItems(req.Items)
	if err != nil {
		return nil, err
	}

	orderID := uuid.New()
	ref, err := s.tables.Allocate(ctx, orderID, req.GuestCount, req.TableID, req.CandidateTableIDs)
	if err != nil {
		return nil, err
	}

	now := s.now()
	ticket := domain.KitchenTicket{
		ID:           uuid.New(),
		OrderID:      orderID,
		TicketNumber: 1,
		Items:        items,
		Status:       enum.TicketStatusPending,
		CreatedAt:    now,
	}
	order := domain.Order{
		ID:                    orderID,
		Status:                enum.OrderStatusPending,
		TableRef:              ref,
		GuestCount:            req.GuestCount,
		Items:                 items,
		DiscountPercentage:    req.DiscountPercentage,
		LoyaltyPointsRedeemed: req.LoyaltyPointsRedeemed,
		Tickets:               []domain.KitchenTicket{ticket},
		StatusHistory: []domain.StatusChange{
			{From: "", To: enum.OrderStatusPending, Actor: actor.Username, At: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	order.RecalculateTotal()

	saved, err := s.store.PutOrder(ctx, order, 0)
	if err != nil {
		// Don't leak an occupied table when the order itself failed.
		if relErr := s.tables.Release(ctx, ref, enum.TableStatusAvailable); relErr != nil {
			log.Printf("ERROR: release allocation after failed create: %v", relErr)
		}
		return nil, fmt.Errorf("put order: %w", err)
	}

	s.pub.Publish(domain.Event{
		Type:      enum.EventNewOrder,
		OrderID:   saved.ID,
		Version:   saved.Version,
		Payload:   saved,
		Timestamp: now,
	})
	s.pub.Publish(domain.Event{
		Type:      enum.EventNewKOT,
		OrderID:   saved.ID,
		Version:   saved.Version,
		Payload:   ticket,
		Timestamp: now,
	})
	return &saved, nil
}

// Transition moves the order to targetStatus. The target must be the unique
// allowed successor of the current status — no skipping, no going back —
// except CANCELLED, which is reachable only from PENDING within the grace
// window measured from the stored CreatedAt. Entering COMPLETED or PAID
// requires the cashier capability; every earlier edge requires staff.
func (s *LifecycleService) Transition(ctx context.Context, orderID uuid.UUID, targetStatus string, actor auth.Actor) (*domain.Order, error) {
	if !isOrderStatus(targetStatus) {
		return nil, ErrInvalidStatus
	}

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if targetStatus == enum.OrderStatusCancelled {
		if order.Status != enum.OrderStatusPending {
			return nil, fmt.Errorf("%w: cannot cancel from %s", ErrInvalidTransition, order.Status)
		}
		// The grace window is fixed to the original creation time; later
		// ticket rounds do not reset it. Always the store's clock, never the
		// terminal's.
		if s.now().Sub(order.CreatedAt) > s.grace {
			return nil, ErrExpired
		}
		if !actor.Can(auth.CapStaff) {
			return nil, ErrUnauthorized
		}
	} else {
		if successor[order.Status] != targetStatus {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, targetStatus)
		}
		need := auth.CapStaff
		if targetStatus == enum.OrderStatusCompleted || targetStatus == enum.OrderStatusPaid {
			need = auth.CapCashier
		}
		if !actor.Can(need) {
			return nil, ErrUnauthorized
		}
	}

	now := s.now()
	prev := order.Status
	order.Status = targetStatus
	order.StatusHistory = append(order.StatusHistory, domain.StatusChange{
		From:  prev,
		To:    targetStatus,
		Actor: actor.Username,
		At:    now,
	})
	order.UpdatedAt = now

	saved, err := s.store.PutOrder(ctx, order, order.Version)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("put order: %w", err)
	}

	s.pub.Publish(domain.Event{
		Type:      enum.EventOrderStatus,
		OrderID:   saved.ID,
		Version:   saved.Version,
		Payload:   saved,
		Timestamp: now,
	})

	// Terminal states free the table. The order mutation is already
	// committed; a release failure is logged, never unwound.
	if saved.IsTerminal() {
		if err := s.tables.Release(ctx, saved.TableRef, enum.TableStatusAvailable); err != nil {
			log.Printf("ERROR: release table for order %s: %v", saved.ID, err)
		}
	}
	return &saved, nil
}

// Get returns the current committed order snapshot.
func (s *LifecycleService) Get(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &order, nil
}

// List returns all orders.
func (s *LifecycleService) List(ctx context.Context) ([]domain.Order, error) {
	return s.store.ListOrders(ctx)
}

// buildItems validates raw item input and computes line totals.
// Free-of-charge items carry a zero line total and must name an authorizer.
func buildItems(input []NewItem) ([]domain.OrderItem, error) {
	if len(input) == 0 {
		return nil, ErrEmptyItems
	}
	items := make([]domain.OrderItem, len(input))
	for i, in := range input {
		if in.Quantity <= 0 {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		if in.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidUnitPrice)
		}
		if in.FreeOfCharge && in.AuthorizedBy == "" {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrMissingFOCAuthorizer)
		}
		lineTotal := decimal.Zero
		if !in.FreeOfCharge {
			lineTotal = in.UnitPrice.Mul(decimal.NewFromInt32(in.Quantity)).Round(2)
		}
		items[i] = domain.OrderItem{
			ID:           uuid.New(),
			MenuItemID:   in.MenuItemID,
			Name:         in.Name,
			Quantity:     in.Quantity,
			UnitPrice:    in.UnitPrice,
			LineTotal:    lineTotal,
			FreeOfCharge: in.FreeOfCharge,
			AuthorizedBy: in.AuthorizedBy,
		}
	}
	return items, nil
}

func isOrderStatus(s string) bool {
	switch s {
	case enum.OrderStatusPending, enum.OrderStatusPreparing, enum.OrderStatusReady,
		enum.OrderStatusServed, enum.OrderStatusCompleted, enum.OrderStatusPaid,
		enum.OrderStatusCancelled:
		return true
	}
	return false
}
