package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/sahaj-pos/core/internal/domain"
	"github.com/sahaj-pos/core/internal/enum"
	"github.com/sahaj-pos/core/internal/store"
)

func TestPutOrder_CreateAndUpdate(t *testing.T) {
	s := New()
	ctx := context.Background()
	o := domain.Order{ID: uuid.New(), Status: enum.OrderStatusPending}

	created, err := s.PutOrder(ctx, o, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Version != 1 {
		t.Fatalf("version: got %d, want 1", created.Version)
	}

	// Creating again fails.
	if _, err := s.PutOrder(ctx, o, 0); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("double create: expected ErrConflict, got %v", err)
	}

	created.Status = enum.OrderStatusPreparing
	updated, err := s.PutOrder(ctx, created, 1)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Version != 2 {
		t.Fatalf("version: got %d, want 2", updated.Version)
	}

	// Stale version loses.
	if _, err := s.PutOrder(ctx, created, 1); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("stale update: expected ErrConflict, got %v", err)
	}
	// Updating a missing order reports not found.
	if _, err := s.PutOrder(ctx, domain.Order{ID: uuid.New()}, 3); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("missing update: expected ErrNotFound, got %v", err)
	}
}

func TestPutOrder_SnapshotIsolation(t *testing.T) {
	s := New()
	ctx := context.Background()
	o := domain.Order{ID: uuid.New(), Items: []domain.OrderItem{{ID: uuid.New(), Name: "Dosa"}}}
	if _, err := s.PutOrder(ctx, o, 0); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, _ := s.GetOrder(ctx, o.ID)
	got.Items[0].Name = "mutated"

	again, _ := s.GetOrder(ctx, o.ID)
	if again.Items[0].Name != "Dosa" {
		t.Error("store handed out shared memory")
	}
}

func TestPutTables_AllOrNothing(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := domain.Table{ID: uuid.New(), Number: 1, Status: enum.TableStatusAvailable}
	b := domain.Table{ID: uuid.New(), Number: 2, Status: enum.TableStatusAvailable}
	if _, err := s.PutTables(ctx, []domain.Table{a, b}, []int64{0, 0}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Second table's version is stale; neither write may land.
	a.Status = enum.TableStatusOccupied
	b.Status = enum.TableStatusOccupied
	if _, err := s.PutTables(ctx, []domain.Table{a, b}, []int64{1, 9}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	gotA, _ := s.GetTable(ctx, a.ID)
	if gotA.Status != enum.TableStatusAvailable {
		t.Errorf("partial write applied: %s", gotA.Status)
	}
}

func TestPutSplitBill_OneActivePerOrder(t *testing.T) {
	s := New()
	ctx := context.Background()
	orderID := uuid.New()

	first := domain.SplitBill{ID: uuid.New(), OrderID: orderID, Status: enum.SplitBillStatusActive}
	if _, err := s.PutSplitBill(ctx, first, 0); err != nil {
		t.Fatalf("first: %v", err)
	}

	second := domain.SplitBill{ID: uuid.New(), OrderID: orderID, Status: enum.SplitBillStatusActive}
	if _, err := s.PutSplitBill(ctx, second, 0); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("second active: expected ErrConflict, got %v", err)
	}

	// Completing the first frees the slot.
	saved, _ := s.GetSplitBill(ctx, first.ID)
	saved.Status = enum.SplitBillStatusCompleted
	if _, err := s.PutSplitBill(ctx, saved, saved.Version); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := s.PutSplitBill(ctx, second, 0); err != nil {
		t.Fatalf("new active after completion: %v", err)
	}
}

func TestGetActiveSplitBill(t *testing.T) {
	s := New()
	ctx := context.Background()
	orderID := uuid.New()

	if _, err := s.GetActiveSplitBill(ctx, orderID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	bill := domain.SplitBill{ID: uuid.New(), OrderID: orderID, Status: enum.SplitBillStatusActive}
	s.PutSplitBill(ctx, bill, 0)

	got, err := s.GetActiveSplitBill(ctx, orderID)
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if got.ID != bill.ID {
		t.Errorf("got %s, want %s", got.ID, bill.ID)
	}
}

func TestMergeGroup_Lifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()
	g := domain.MergeGroup{ID: uuid.New(), TableIDs: []uuid.UUID{uuid.New(), uuid.New()}, CombinedCapacity: 8}

	if _, err := s.PutMergeGroup(ctx, g, 0); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.DeleteMergeGroup(ctx, g.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteMergeGroup(ctx, g.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("double delete: expected ErrNotFound, got %v", err)
	}
}
