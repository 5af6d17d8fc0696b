package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sahaj-pos/core/internal/auth"
	"github.com/sahaj-pos/core/internal/domain"
	"github.com/sahaj-pos/core/internal/enum"
	"github.com/sahaj-pos/core/internal/store"
)

// TicketService appends kitchen-ticket rounds to open orders. Numbering is
// gap-free per order: each attempt derives max+1 inside the order's
// compare-and-swap, and a lost race re-reads and re-derives. Nothing blocks
// across unrelated orders.
type TicketService struct {
	store store.Store
	pub   Publisher
	now   func() time.Time
}

// NewTicketService creates a TicketService.
func NewTicketService(st store.Store, pub Publisher) *TicketService {
	return &TicketService{store: st, pub: pub, now: time.Now}
}

// AddItems creates a new ticket containing only the newly added items — never
// a re-snapshot of earlier rounds — appends the items to the order's extras
// and rederives the total. Rejected once the order is PAID or CANCELLED.
func (s *TicketService) AddItems(ctx context.Context, orderID uuid.UUID, newItems []NewItem, actor auth.Actor) (*domain.KitchenTicket, *domain.Order, error) {
	if !actor.Can(auth.CapStaff) {
		return nil, nil, ErrUnauthorized
	}

	for {
		order, err := s.store.GetOrder(ctx, orderID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, nil, ErrOrderNotFound
			}
			return nil, nil, fmt.Errorf("get order: %w", err)
		}
		if order.IsTerminal() {
			return nil, nil, ErrTerminalState
		}

		items, err := buildItems(newItems)
		if err != nil {
			return nil, nil, err
		}

		now := s.now()
		ticket := domain.KitchenTicket{
			ID:           uuid.New(),
			OrderID:      orderID,
			TicketNumber: order.NextTicketNumber(),
			Items:        items,
			Status:       enum.TicketStatusPending,
			CreatedAt:    now,
		}
		order.Tickets = append(order.Tickets, ticket)
		order.ExtraItems = append(order.ExtraItems, items...)
		order.RecalculateTotal()
		order.UpdatedAt = now

		saved, err := s.store.PutOrder(ctx, order, order.Version)
		if err != nil {
			if errors.Is(err, store.ErrConflict) {
				// Someone else got this ticket number; take the next one.
				if ctx.Err() != nil {
					return nil, nil, fmt.Errorf("%w: %v", ErrRetryable, ctx.Err())
				}
				continue
			}
			return nil, nil, fmt.Errorf("put order: %w", err)
		}

		s.pub.Publish(domain.Event{
			Type:      enum.EventNewKOT,
			OrderID:   saved.ID,
			Version:   saved.Version,
			Payload:   ticket,
			Timestamp: now,
		})
		return &ticket, &saved, nil
	}
}

// ListTickets returns the order's tickets from one committed snapshot, so a
// kitchen display or print collaborator never sees a half-applied round.
func (s *TicketService) ListTickets(ctx context.Context, orderID uuid.UUID) ([]domain.KitchenTicket, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order.Tickets, nil
}

// MarkTicketStatus moves one ticket's kitchen status. Items on a ticket are
// immutable; only the status field moves.
func (s *TicketService) MarkTicketStatus(ctx context.Context, orderID uuid.UUID, ticketNumber int, status string, actor auth.Actor) (*domain.KitchenTicket, error) {
	if !actor.Can(auth.CapStaff) {
		return nil, ErrUnauthorized
	}
	if !isTicketStatus(status) {
		return nil, ErrInvalidStatus
	}

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	idx := -1
	for i, t := range order.Tickets {
		if t.TicketNumber == ticketNumber {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("ticket %d: %w", ticketNumber, ErrTicketNotFound)
	}

	now := s.now()
	order.Tickets[idx].Status = status
	order.UpdatedAt = now

	saved, err := s.store.PutOrder(ctx, order, order.Version)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("put order: %w", err)
	}

	ticket := saved.Tickets[idx]
	s.pub.Publish(domain.Event{
		Type:      enum.EventKOTStatus,
		OrderID:   saved.ID,
		Version:   saved.Version,
		Payload:   ticket,
		Timestamp: now,
	})
	return &ticket, nil
}

func isTicketStatus(s string) bool {
	switch s {
	case enum.TicketStatusPending, enum.TicketStatusPreparing, enum.TicketStatusReady:
		return true
	}
	return false
}
