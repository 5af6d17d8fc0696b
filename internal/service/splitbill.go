package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sahaj-pos/core/internal/auth"
	"github.com/sahaj-pos/core/internal/domain"
	"github.com/sahaj-pos/core/internal/enum"
	"github.com/sahaj-pos/core/internal/store"
)

// paidTransitionRetries bounds the COMPLETED -> PAID follow-up after the last
// split is paid; it races only with table transfers on the same order.
const paidTransitionRetries = 3

// SplitService divides a completed order's due amount into independently
// payable splits and reconciles them. The sum of split amounts always equals
// the order's due amount exactly — checked before anything is persisted.
// Discounts and loyalty redemption are already folded into the order total;
// splitting never re-applies them.
type SplitService struct {
	store     store.Store
	lifecycle *LifecycleService
	pub       Publisher
	now       func() time.Time
}

// NewSplitService creates a SplitService.
func NewSplitService(st store.Store, lifecycle *LifecycleService, pub Publisher) *SplitService {
	return &SplitService{store: st, lifecycle: lifecycle, pub: pub, now: time.Now}
}

// CreateSplitRequest selects the strategy: Parts for EQUAL, ItemAssignments
// (item IDs per split, in split order) for BY_ITEMS.
type CreateSplitRequest struct {
	Strategy        string
	Parts           int
	ItemAssignments [][]uuid.UUID
}

// PaymentInput is the declared payment for one split.
type PaymentInput struct {
	Method    string
	Reference string
}

// CreateSplit creates the single ACTIVE split bill for a COMPLETED order.
func (s *SplitService) CreateSplit(ctx context.Context, orderID uuid.UUID, req CreateSplitRequest, actor auth.Actor) (*domain.SplitBill, error) {
	if !actor.Can(auth.CapStaff) {
		return nil, ErrUnauthorized
	}

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order.Status != enum.OrderStatusCompleted {
		return nil, ErrOrderNotCompleted
	}
	if _, err := s.store.GetActiveSplitBill(ctx, orderID); err == nil {
		return nil, ErrAlreadyProcessed
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check active split bill: %w", err)
	}

	var splits []domain.Split
	switch req.Strategy {
	case enum.SplitStrategyEqual:
		splits, err = equalSplits(order.TotalAmount, req.Parts)
	case enum.SplitStrategyByItems:
		splits, err = itemSplits(&order, req.ItemAssignments)
	default:
		return nil, ErrInvalidStrategy
	}
	if err != nil {
		return nil, err
	}

	// Invariant: split amounts reconcile to the due amount exactly, not
	// merely close. Anything else must never be persisted.
	sum := decimal.Zero
	for _, sp := range splits {
		sum = sum.Add(sp.TotalAmount)
	}
	if !sum.Equal(order.TotalAmount) {
		return nil, fmt.Errorf("%w: splits sum to %s, due %s", ErrAmountMismatch, sum, order.TotalAmount)
	}

	now := s.now()
	bill := domain.SplitBill{
		ID:        uuid.New(),
		OrderID:   orderID,
		Strategy:  req.Strategy,
		Splits:    splits,
		Status:    enum.SplitBillStatusActive,
		CreatedAt: now,
	}
	saved, err := s.store.PutSplitBill(ctx, bill, 0)
	if err != nil {
		// A concurrent create slipped in between our check and this write.
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrAlreadyProcessed
		}
		return nil, fmt.Errorf("put split bill: %w", err)
	}

	s.pub.Publish(domain.Event{
		Type:      enum.EventSplitUpdate,
		OrderID:   orderID,
		Version:   saved.Version,
		Payload:   saved,
		Timestamp: now,
	})
	return &saved, nil
}

// PayOneSplit records a payment on exactly the addressed split. Re-paying a
// PAID split returns ErrAlreadyProcessed and credits nothing. When the last
// split is paid the bill completes and the order is moved to PAID as a
// single follow-up.
func (s *SplitService) PayOneSplit(ctx context.Context, splitBillID uuid.UUID, splitNumber int, payment PaymentInput, actor auth.Actor) (*domain.SplitBill, error) {
	if !actor.Can(auth.CapCashier) {
		return nil, ErrUnauthorized
	}
	if !isPaymentMethod(payment.Method) {
		return nil, ErrInvalidPaymentMethod
	}

	bill, err := s.store.GetSplitBill(ctx, splitBillID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSplitBillNotFound
		}
		return nil, fmt.Errorf("get split bill: %w", err)
	}
	if bill.Status == enum.SplitBillStatusCompleted {
		return nil, ErrAlreadyProcessed
	}

	idx := -1
	for i, sp := range bill.Splits {
		if sp.SplitNumber == splitNumber {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("split %d: %w", splitNumber, ErrSplitBillNotFound)
	}
	if bill.Splits[idx].Status == enum.SplitStatusPaid {
		return nil, ErrAlreadyProcessed
	}

	now := s.now()
	bill.Splits[idx].Payment = &domain.PaymentDetails{
		Method:    payment.Method,
		Reference: payment.Reference,
		PaidBy:    actor.Username,
		PaidAt:    now,
	}
	bill.Splits[idx].Status = enum.SplitStatusPaid
	if bill.AllPaid() {
		bill.Status = enum.SplitBillStatusCompleted
	}

	saved, err := s.store.PutSplitBill(ctx, bill, bill.Version)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("put split bill: %w", err)
	}

	s.pub.Publish(domain.Event{
		Type:      enum.EventSplitUpdate,
		OrderID:   saved.OrderID,
		Version:   saved.Version,
		Payload:   saved,
		Timestamp: now,
	})

	if saved.Status == enum.SplitBillStatusCompleted {
		if err := s.markOrderPaid(ctx, saved.OrderID, actor); err != nil {
			return nil, fmt.Errorf("order paid follow-up: %w", err)
		}
	}
	return &saved, nil
}

// PayFull settles the whole bill in one step: a one-split EQUAL bill created
// and paid together, through the same reconciliation path as any other split.
func (s *SplitService) PayFull(ctx context.Context, orderID uuid.UUID, payment PaymentInput, actor auth.Actor) (*domain.SplitBill, error) {
	if !actor.Can(auth.CapCashier) {
		return nil, ErrUnauthorized
	}
	bill, err := s.CreateSplit(ctx, orderID, CreateSplitRequest{
		Strategy: enum.SplitStrategyEqual,
		Parts:    1,
	}, actor)
	if err != nil {
		return nil, err
	}
	return s.PayOneSplit(ctx, bill.ID, 1, payment, actor)
}

// Get returns a split bill by id.
func (s *SplitService) Get(ctx context.Context, splitBillID uuid.UUID) (*domain.SplitBill, error) {
	bill, err := s.store.GetSplitBill(ctx, splitBillID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSplitBillNotFound
		}
		return nil, fmt.Errorf("get split bill: %w", err)
	}
	return &bill, nil
}

// GetActiveForOrder returns the order's ACTIVE split bill.
func (s *SplitService) GetActiveForOrder(ctx context.Context, orderID uuid.UUID) (*domain.SplitBill, error) {
	bill, err := s.store.GetActiveSplitBill(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSplitBillNotFound
		}
		return nil, fmt.Errorf("get active split bill: %w", err)
	}
	return &bill, nil
}

func (s *SplitService) markOrderPaid(ctx context.Context, orderID uuid.UUID, actor auth.Actor) error {
	var lastErr error
	for attempt := 0; attempt < paidTransitionRetries; attempt++ {
		_, err := s.lifecycle.Transition(ctx, orderID, enum.OrderStatusPaid, actor)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrConflict) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

// equalSplits divides the due amount into n portions floored to whole
// currency units, with the full remainder on split #1 so the sum is exact:
// 225 into 2 gives 113 + 112.
func equalSplits(due decimal.Decimal, n int) ([]domain.Split, error) {
	if n < 1 {
		return nil, ErrInvalidSplitCount
	}
	parts := decimal.NewFromInt(int64(n))
	base := due.Div(parts).Floor()
	remainder := due.Sub(base.Mul(parts))

	splits := make([]domain.Split, n)
	for i := range splits {
		amount := base
		if i == 0 {
			amount = amount.Add(remainder)
		}
		splits[i] = domain.Split{
			SplitNumber: i + 1,
			TotalAmount: amount,
			Status:      enum.SplitStatusPending,
		}
	}
	return splits, nil
}

// itemSplits builds one split per assignment group. Every item and extra item
// must appear in exactly one group: union equals the full item set, pairwise
// disjoint. When an order-level discount or loyalty redemption makes the due
// amount differ from the raw item sum, each split is scaled proportionally
// (floored to whole units, remainder to split #1) so the sum stays exact.
func itemSplits(order *domain.Order, assignments [][]uuid.UUID) ([]domain.Split, error) {
	if len(assignments) == 0 {
		return nil, ErrBadItemAssignment
	}

	itemsByID := make(map[uuid.UUID]domain.OrderItem)
	for _, it := range order.AllItems() {
		itemsByID[it.ID] = it
	}

	seen := make(map[uuid.UUID]bool, len(itemsByID))
	rawTotals := make([]decimal.Decimal, len(assignments))
	for i, group := range assignments {
		total := decimal.Zero
		for _, id := range group {
			it, ok := itemsByID[id]
			if !ok {
				return nil, fmt.Errorf("%w: unknown item %s", ErrBadItemAssignment, id)
			}
			if seen[id] {
				return nil, fmt.Errorf("%w: item %s assigned twice", ErrBadItemAssignment, id)
			}
			seen[id] = true
			total = total.Add(it.LineTotal)
		}
		rawTotals[i] = total
	}
	if len(seen) != len(itemsByID) {
		return nil, fmt.Errorf("%w: %d of %d items assigned", ErrBadItemAssignment, len(seen), len(itemsByID))
	}

	rawSum := decimal.Zero
	for _, t := range rawTotals {
		rawSum = rawSum.Add(t)
	}

	amounts := make([]decimal.Decimal, len(assignments))
	if rawSum.Equal(order.TotalAmount) || rawSum.IsZero() {
		copy(amounts, rawTotals)
		if rawSum.IsZero() && !order.TotalAmount.IsZero() {
			return nil, fmt.Errorf("%w: items sum to zero, due %s", ErrAmountMismatch, order.TotalAmount)
		}
	} else {
		// Scale each portion by due/rawSum and push the rounding remainder
		// onto split #1.
		distributed := decimal.Zero
		for i, t := range rawTotals {
			amounts[i] = t.Mul(order.TotalAmount).Div(rawSum).Floor()
			distributed = distributed.Add(amounts[i])
		}
		amounts[0] = amounts[0].Add(order.TotalAmount.Sub(distributed))
	}

	splits := make([]domain.Split, len(assignments))
	for i, group := range assignments {
		splits[i] = domain.Split{
			SplitNumber: i + 1,
			ItemIDs:     append([]uuid.UUID(nil), group...),
			TotalAmount: amounts[i],
			Status:      enum.SplitStatusPending,
		}
	}
	return splits, nil
}

func isPaymentMethod(m string) bool {
	switch m {
	case enum.PaymentMethodCash, enum.PaymentMethodCard, enum.PaymentMethodUPI:
		return true
	}
	return false
}
