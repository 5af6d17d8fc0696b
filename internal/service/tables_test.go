package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/sahaj-pos/core/internal/enum"
)

func TestAllocate_SingleTable(t *testing.T) {
	e := newEnv(t)
	tableID := e.seedTable(t, 1, 4)

	ref, err := e.tables.Allocate(context.Background(), uuid.New(), 3, &tableID, nil)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if ref.TableID != tableID || ref.MergeGroupID != nil {
		t.Errorf("ref: got %+v", ref)
	}

	// A second party cannot take the same table.
	_, err = e.tables.Allocate(context.Background(), uuid.New(), 2, &tableID, nil)
	if !errors.Is(err, ErrTableUnavailable) {
		t.Fatalf("expected ErrTableUnavailable, got %v", err)
	}
}

func TestAllocate_CapacityGate(t *testing.T) {
	e := newEnv(t)
	tableID := e.seedTable(t, 1, 4)

	_, err := e.tables.Allocate(context.Background(), uuid.New(), 6, &tableID, nil)
	if !errors.Is(err, ErrCapacityInsufficient) {
		t.Fatalf("expected ErrCapacityInsufficient, got %v", err)
	}
}

func TestAllocate_MergeGate(t *testing.T) {
	e := newEnv(t)
	a := e.seedTable(t, 1, 4)
	b := e.seedTable(t, 2, 4)
	c := e.seedTable(t, 3, 4)

	// Two tables: 8 seats for 10 guests, rejected, nothing is held.
	_, err := e.tables.Allocate(context.Background(), uuid.New(), 10, nil, []uuid.UUID{a, b})
	if !errors.Is(err, ErrCapacityInsufficient) {
		t.Fatalf("expected ErrCapacityInsufficient, got %v", err)
	}
	for _, id := range []uuid.UUID{a, b} {
		tbl, _ := e.store.GetTable(context.Background(), id)
		if tbl.Status != enum.TableStatusAvailable {
			t.Errorf("table %s held after rejected merge: %s", id, tbl.Status)
		}
	}

	// Three tables: 12 seats cover 10 guests.
	ref, err := e.tables.Allocate(context.Background(), uuid.New(), 10, nil, []uuid.UUID{a, b, c})
	if err != nil {
		t.Fatalf("allocate merged: %v", err)
	}
	if ref.MergeGroupID == nil {
		t.Fatal("expected a merge group")
	}
	for _, id := range []uuid.UUID{a, b, c} {
		tbl, _ := e.store.GetTable(context.Background(), id)
		if tbl.Status != enum.TableStatusMerged {
			t.Errorf("table status: got %s, want MERGED", tbl.Status)
		}
		if tbl.MergeGroupID == nil || *tbl.MergeGroupID != *ref.MergeGroupID {
			t.Errorf("table %s not pointing at the group", id)
		}
	}

	group, err := e.store.GetMergeGroup(context.Background(), *ref.MergeGroupID)
	if err != nil {
		t.Fatalf("get merge group: %v", err)
	}
	if group.CombinedCapacity != 12 {
		t.Errorf("combined capacity: got %d, want 12", group.CombinedCapacity)
	}
}

func TestAllocate_ConcurrentOneWinner(t *testing.T) {
	e := newEnv(t)
	tableID := e.seedTable(t, 1, 4)

	const parties = 8
	var wg sync.WaitGroup
	results := make([]error, parties)
	for i := 0; i < parties; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = e.tables.Allocate(context.Background(), uuid.New(), 2, &tableID, nil)
		}(i)
	}
	wg.Wait()

	var won int
	for _, err := range results {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrTableUnavailable):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 {
		t.Fatalf("winners: got %d, want 1", won)
	}
}

func TestRelease_DissolvesMergeGroup(t *testing.T) {
	e := newEnv(t)
	a := e.seedTable(t, 1, 4)
	b := e.seedTable(t, 2, 4)

	ref, err := e.tables.Allocate(context.Background(), uuid.New(), 7, nil, []uuid.UUID{a, b})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	if err := e.tables.Release(context.Background(), ref, enum.TableStatusAvailable); err != nil {
		t.Fatalf("release: %v", err)
	}

	for _, id := range []uuid.UUID{a, b} {
		tbl, _ := e.store.GetTable(context.Background(), id)
		if tbl.Status != enum.TableStatusAvailable || tbl.MergeGroupID != nil {
			t.Errorf("table %s after release: %+v", id, tbl)
		}
	}
	if _, err := e.store.GetMergeGroup(context.Background(), *ref.MergeGroupID); err == nil {
		t.Error("merge group should be dissolved")
	}
}

func TestTransfer_SingleToSingle(t *testing.T) {
	e := newEnv(t)
	from := e.seedTable(t, 1, 4)
	to := e.seedTable(t, 2, 4)
	order := e.createOrder(t, CreateOrderRequest{TableID: &from})

	moved, err := e.tables.Transfer(context.Background(), order.ID, to, "draft near AC", "", waiter())
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if moved.TableRef.TableID != to {
		t.Errorf("table ref: got %s, want %s", moved.TableRef.TableID, to)
	}
	if len(moved.TransferLog) != 1 || moved.TransferLog[0].OldTableID != from {
		t.Errorf("transfer log: got %+v", moved.TransferLog)
	}

	oldTbl, _ := e.store.GetTable(context.Background(), from)
	newTbl, _ := e.store.GetTable(context.Background(), to)
	if oldTbl.Status != enum.TableStatusAvailable {
		t.Errorf("old table: got %s, want AVAILABLE", oldTbl.Status)
	}
	if newTbl.Status != enum.TableStatusOccupied {
		t.Errorf("new table: got %s, want OCCUPIED", newTbl.Status)
	}
}

func TestTransfer_OldTableToMaintenance(t *testing.T) {
	e := newEnv(t)
	from := e.seedTable(t, 1, 4)
	to := e.seedTable(t, 2, 4)
	order := e.createOrder(t, CreateOrderRequest{TableID: &from})

	if _, err := e.tables.Transfer(context.Background(), order.ID, to, "wobbly leg", enum.TableStatusMaintenance, waiter()); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	oldTbl, _ := e.store.GetTable(context.Background(), from)
	if oldTbl.Status != enum.TableStatusMaintenance {
		t.Errorf("old table: got %s, want MAINTENANCE", oldTbl.Status)
	}
}

func TestTransfer_FromMergeGroup(t *testing.T) {
	e := newEnv(t)
	a := e.seedTable(t, 1, 4)
	b := e.seedTable(t, 2, 4)
	big := e.seedTable(t, 3, 10)

	order := e.createOrder(t, CreateOrderRequest{
		GuestCount:        7,
		CandidateTableIDs: []uuid.UUID{a, b},
	})
	groupID := order.TableRef.MergeGroupID
	if groupID == nil {
		t.Fatal("expected merged allocation")
	}

	moved, err := e.tables.Transfer(context.Background(), order.ID, big, "party shrank", "", waiter())
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if moved.TableRef.MergeGroupID != nil {
		t.Error("merge group ref should be cleared after transfer")
	}

	for _, id := range []uuid.UUID{a, b} {
		tbl, _ := e.store.GetTable(context.Background(), id)
		if tbl.Status != enum.TableStatusAvailable || tbl.MergeGroupID != nil {
			t.Errorf("member table %s after transfer: %+v", id, tbl)
		}
	}
	if _, err := e.store.GetMergeGroup(context.Background(), *groupID); err == nil {
		t.Error("merge group should be dissolved")
	}
}

func TestTransfer_TargetUnavailable(t *testing.T) {
	e := newEnv(t)
	from := e.seedTable(t, 1, 4)
	to := e.seedTable(t, 2, 4)
	order := e.createOrder(t, CreateOrderRequest{TableID: &from})
	e.createOrder(t, CreateOrderRequest{TableID: &to})

	_, err := e.tables.Transfer(context.Background(), order.ID, to, "", "", waiter())
	if !errors.Is(err, ErrTableUnavailable) {
		t.Fatalf("expected ErrTableUnavailable, got %v", err)
	}
}

func TestTransfer_TerminalOrderRejected(t *testing.T) {
	e := newEnv(t)
	from := e.seedTable(t, 1, 4)
	to := e.seedTable(t, 2, 4)
	order := e.createOrder(t, CreateOrderRequest{TableID: &from})
	e.advance(t, order.ID, enum.OrderStatusPaid)

	_, err := e.tables.Transfer(context.Background(), order.ID, to, "", "", waiter())
	if !errors.Is(err, ErrTerminalState) {
		t.Fatalf("expected ErrTerminalState, got %v", err)
	}
}
