package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/sahaj-pos/core/internal/auth"
	"github.com/sahaj-pos/core/internal/domain"
	"github.com/sahaj-pos/core/internal/enum"
	"github.com/sahaj-pos/core/internal/store"
)

// releaseRetries bounds the CAS retry loop on release. Releases race only
// with explicit table edits, so a couple of re-reads is plenty.
const releaseRetries = 3

// TableService reserves, merges, releases and transfers tables. Every
// multi-table mutation goes through the store's batch CAS, so two concurrent
// allocations fighting over a table can never both win.
type TableService struct {
	store store.Store
	pub   Publisher
	now   func() time.Time
}

// NewTableService creates a TableService.
func NewTableService(st store.Store, pub Publisher) *TableService {
	return &TableService{store: st, pub: pub, now: time.Now}
}

// Allocate seats a party. With an explicit table the table must be AVAILABLE
// with enough capacity. Otherwise the caller supplies candidate tables; the
// subset is accepted once its combined capacity covers the guest count —
// over-selection is allowed, the gate applies only at submission.
func (s *TableService) Allocate(ctx context.Context, orderID uuid.UUID, guestCount int, explicitTableID *uuid.UUID, candidateIDs []uuid.UUID) (domain.TableRef, error) {
	if guestCount <= 0 {
		return domain.TableRef{}, ErrInvalidGuestCount
	}

	if explicitTableID != nil {
		return s.allocateSingle(ctx, *explicitTableID, guestCount)
	}

	switch len(candidateIDs) {
	case 0:
		return domain.TableRef{}, ErrTableNotFound
	case 1:
		return s.allocateSingle(ctx, candidateIDs[0], guestCount)
	}
	return s.allocateMerged(ctx, orderID, guestCount, candidateIDs)
}

func (s *TableService) allocateSingle(ctx context.Context, tableID uuid.UUID, guestCount int) (domain.TableRef, error) {
	t, err := s.store.GetTable(ctx, tableID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TableRef{}, ErrTableNotFound
		}
		return domain.TableRef{}, fmt.Errorf("get table: %w", err)
	}
	if t.Status != enum.TableStatusAvailable {
		return domain.TableRef{}, ErrTableUnavailable
	}
	if t.Capacity < guestCount {
		return domain.TableRef{}, ErrCapacityInsufficient
	}

	t.Status = enum.TableStatusOccupied
	updated, err := s.store.PutTables(ctx, []domain.Table{t}, []int64{t.Version})
	if err != nil {
		// The loser of two concurrent allocations lands here.
		if errors.Is(err, store.ErrConflict) {
			return domain.TableRef{}, ErrTableUnavailable
		}
		return domain.TableRef{}, fmt.Errorf("put table: %w", err)
	}

	s.publishTables(updated)
	return domain.TableRef{TableID: tableID}, nil
}

func (s *TableService) allocateMerged(ctx context.Context, orderID uuid.UUID, guestCount int, candidateIDs []uuid.UUID) (domain.TableRef, error) {
	tables := make([]domain.Table, 0, len(candidateIDs))
	versions := make([]int64, 0, len(candidateIDs))
	combined := 0
	for _, id := range candidateIDs {
		t, err := s.store.GetTable(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.TableRef{}, ErrTableNotFound
			}
			return domain.TableRef{}, fmt.Errorf("get table: %w", err)
		}
		if t.Status != enum.TableStatusAvailable {
			return domain.TableRef{}, ErrTableUnavailable
		}
		combined += t.Capacity
		tables = append(tables, t)
		versions = append(versions, t.Version)
	}
	if combined < guestCount {
		return domain.TableRef{}, ErrCapacityInsufficient
	}

	groupID := uuid.New()
	for i := range tables {
		gid := groupID
		tables[i].Status = enum.TableStatusMerged
		tables[i].MergeGroupID = &gid
	}

	updated, err := s.store.PutTables(ctx, tables, versions)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.TableRef{}, ErrTableUnavailable
		}
		return domain.TableRef{}, fmt.Errorf("put tables: %w", err)
	}

	group := domain.MergeGroup{
		ID:               groupID,
		TableIDs:         candidateIDs,
		CombinedCapacity: combined,
		OrderID:          orderID,
	}
	if _, err := s.store.PutMergeGroup(ctx, group, 0); err != nil {
		return domain.TableRef{}, fmt.Errorf("put merge group: %w", err)
	}

	s.publishTables(updated)
	return domain.TableRef{TableID: candidateIDs[0], MergeGroupID: &groupID}, nil
}

// Release returns the allocation's tables to targetStatus and dissolves the
// merge group, if any, atomically.
func (s *TableService) Release(ctx context.Context, ref domain.TableRef, targetStatus string) error {
	if targetStatus == "" {
		targetStatus = enum.TableStatusAvailable
	}
	if !isReleaseTarget(targetStatus) {
		return ErrInvalidTableTarget
	}

	var lastErr error
	for attempt := 0; attempt < releaseRetries; attempt++ {
		var err error
		if ref.MergeGroupID != nil {
			err = s.releaseGroup(ctx, *ref.MergeGroupID, targetStatus)
		} else {
			err = s.releaseSingle(ctx, ref.TableID, targetStatus)
		}
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return err
		}
		lastErr = ErrConflict
	}
	return lastErr
}

func (s *TableService) releaseSingle(ctx context.Context, tableID uuid.UUID, target string) error {
	t, err := s.store.GetTable(ctx, tableID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrTableNotFound
		}
		return fmt.Errorf("get table: %w", err)
	}
	t.Status = target
	t.MergeGroupID = nil
	updated, err := s.store.PutTables(ctx, []domain.Table{t}, []int64{t.Version})
	if err != nil {
		return err
	}
	s.publishTables(updated)
	return nil
}

func (s *TableService) releaseGroup(ctx context.Context, groupID uuid.UUID, target string) error {
	group, err := s.store.GetMergeGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Group already dissolved; nothing to do.
			return nil
		}
		return fmt.Errorf("get merge group: %w", err)
	}

	tables := make([]domain.Table, 0, len(group.TableIDs))
	versions := make([]int64, 0, len(group.TableIDs))
	for _, id := range group.TableIDs {
		t, err := s.store.GetTable(ctx, id)
		if err != nil {
			return fmt.Errorf("get member table: %w", err)
		}
		t.Status = target
		t.MergeGroupID = nil
		tables = append(tables, t)
		versions = append(versions, t.Version)
	}

	updated, err := s.store.PutTables(ctx, tables, versions)
	if err != nil {
		return err
	}
	if err := s.store.DeleteMergeGroup(ctx, groupID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("delete merge group: %w", err)
	}
	s.publishTables(updated)
	return nil
}

// Transfer moves an order to a new table: the new table must be AVAILABLE,
// the old allocation goes to oldTableTargetStatus, and the move is recorded
// on the order's transfer log. The loser of two concurrent claims on the new
// table gets ErrTableUnavailable.
func (s *TableService) Transfer(ctx context.Context, orderID, newTableID uuid.UUID, reason, oldTableTargetStatus string, actor auth.Actor) (*domain.Order, error) {
	if !actor.Can(auth.CapStaff) {
		return nil, ErrUnauthorized
	}
	if oldTableTargetStatus == "" {
		oldTableTargetStatus = enum.TableStatusAvailable
	}
	if !isReleaseTarget(oldTableTargetStatus) {
		return nil, ErrInvalidTableTarget
	}

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order.IsTerminal() {
		return nil, ErrTerminalState
	}

	newTable, err := s.store.GetTable(ctx, newTableID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("get new table: %w", err)
	}
	if newTable.Status != enum.TableStatusAvailable {
		return nil, ErrTableUnavailable
	}

	// Gather the current allocation's tables.
	var oldTables []domain.Table
	if order.TableRef.MergeGroupID != nil {
		group, err := s.store.GetMergeGroup(ctx, *order.TableRef.MergeGroupID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("get merge group: %w", err)
		}
		if err == nil {
			for _, id := range group.TableIDs {
				t, err := s.store.GetTable(ctx, id)
				if err != nil {
					return nil, fmt.Errorf("get member table: %w", err)
				}
				oldTables = append(oldTables, t)
			}
		}
	} else {
		t, err := s.store.GetTable(ctx, order.TableRef.TableID)
		if err != nil {
			return nil, fmt.Errorf("get old table: %w", err)
		}
		oldTables = append(oldTables, t)
	}

	// One batch: every old table to its target, new table to OCCUPIED.
	batch := make([]domain.Table, 0, len(oldTables)+1)
	versions := make([]int64, 0, len(oldTables)+1)
	priorStatuses := make([]string, 0, len(oldTables)+1)
	for _, t := range oldTables {
		priorStatuses = append(priorStatuses, t.Status)
		t.Status = oldTableTargetStatus
		t.MergeGroupID = nil
		batch = append(batch, t)
		versions = append(versions, t.Version)
	}
	priorStatuses = append(priorStatuses, newTable.Status)
	newTable.Status = enum.TableStatusOccupied
	batch = append(batch, newTable)
	versions = append(versions, newTable.Version)

	updatedTables, err := s.store.PutTables(ctx, batch, versions)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrTableUnavailable
		}
		return nil, fmt.Errorf("put tables: %w", err)
	}

	oldTableID := order.TableRef.TableID
	oldGroupID := order.TableRef.MergeGroupID
	order.TableRef = domain.TableRef{TableID: newTableID}
	order.TransferLog = append(order.TransferLog, domain.TableTransfer{
		OldTableID: oldTableID,
		NewTableID: newTableID,
		Reason:     reason,
		Actor:      actor.Username,
		At:         s.now(),
	})
	order.UpdatedAt = s.now()

	saved, err := s.store.PutOrder(ctx, order, order.Version)
	if err != nil {
		// Losing the order CAS after the tables moved: put the tables back so
		// the floor plan stays honest, then report the conflict.
		s.revertTables(ctx, updatedTables, priorStatuses, oldGroupID)
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("put order: %w", err)
	}

	if oldGroupID != nil {
		if err := s.store.DeleteMergeGroup(ctx, *oldGroupID); err != nil && !errors.Is(err, store.ErrNotFound) {
			log.Printf("ERROR: dissolve merge group after transfer: %v", err)
		}
	}

	s.publishTables(updatedTables)
	return &saved, nil
}

func (s *TableService) revertTables(ctx context.Context, tables []domain.Table, priorStatuses []string, groupID *uuid.UUID) {
	versions := make([]int64, len(tables))
	for i := range tables {
		tables[i].Status = priorStatuses[i]
		if groupID != nil && i < len(tables)-1 {
			gid := *groupID
			tables[i].MergeGroupID = &gid
		}
		versions[i] = tables[i].Version
	}
	if _, err := s.store.PutTables(ctx, tables, versions); err != nil {
		log.Printf("ERROR: revert table transfer: %v", err)
	}
}

func (s *TableService) publishTables(tables []domain.Table) {
	var maxVersion int64
	for _, t := range tables {
		if t.Version > maxVersion {
			maxVersion = t.Version
		}
	}
	s.pub.Publish(domain.Event{
		Type:      enum.EventTableStatus,
		Version:   maxVersion,
		Payload:   tables,
		Timestamp: s.now(),
	})
}

func isReleaseTarget(status string) bool {
	switch status {
	case enum.TableStatusAvailable, enum.TableStatusReserved, enum.TableStatusMaintenance:
		return true
	}
	return false
}
