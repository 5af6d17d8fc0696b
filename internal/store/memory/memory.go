// Package memory is the in-process Store backend. It is the unit-test
// substrate and the dev-mode default when DATABASE_URL is unset; the postgres
// backend is its production pair.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/sahaj-pos/core/internal/domain"
	"github.com/sahaj-pos/core/internal/enum"
	"github.com/sahaj-pos/core/internal/store"
)

// Store keeps every entity in maps behind one mutex. Entities are cloned on
// the way in and out so callers never share memory with the store.
type Store struct {
	mu          sync.Mutex
	orders      map[uuid.UUID]domain.Order
	tables      map[uuid.UUID]domain.Table
	mergeGroups map[uuid.UUID]domain.MergeGroup
	splitBills  map[uuid.UUID]domain.SplitBill
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		orders:      make(map[uuid.UUID]domain.Order),
		tables:      make(map[uuid.UUID]domain.Table),
		mergeGroups: make(map[uuid.UUID]domain.MergeGroup),
		splitBills:  make(map[uuid.UUID]domain.SplitBill),
	}
}

// --- Orders ---

func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, store.ErrNotFound
	}
	return o.Clone(), nil
}

func (s *Store) PutOrder(ctx context.Context, o domain.Order, expectedVersion int64) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.orders[o.ID]
	if err := checkVersion(exists, current.Version, expectedVersion); err != nil {
		return domain.Order{}, err
	}
	o.Version = expectedVersion + 1
	s.orders[o.ID] = o.Clone()
	return o, nil
}

func (s *Store) ListOrders(ctx context.Context) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o.Clone())
	}
	return out, nil
}

// --- Tables ---

func (s *Store) GetTable(ctx context.Context, id uuid.UUID) (domain.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[id]
	if !ok {
		return domain.Table{}, store.ErrNotFound
	}
	return t.Clone(), nil
}

func (s *Store) ListTables(ctx context.Context) ([]domain.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Table, 0, len(s.tables))
	for _, t := range s.tables {
		out = append(out, t.Clone())
	}
	return out, nil
}

func (s *Store) PutTables(ctx context.Context, tables []domain.Table, expectedVersions []int64) ([]domain.Table, error) {
	if len(tables) != len(expectedVersions) {
		return nil, store.ErrConflict
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// Check every version before touching anything: all-or-nothing.
	for i, t := range tables {
		current, exists := s.tables[t.ID]
		if err := checkVersion(exists, current.Version, expectedVersions[i]); err != nil {
			return nil, err
		}
	}
	out := make([]domain.Table, len(tables))
	for i, t := range tables {
		t.Version = expectedVersions[i] + 1
		s.tables[t.ID] = t.Clone()
		out[i] = t
	}
	return out, nil
}

// --- Merge groups ---

func (s *Store) GetMergeGroup(ctx context.Context, id uuid.UUID) (domain.MergeGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.mergeGroups[id]
	if !ok {
		return domain.MergeGroup{}, store.ErrNotFound
	}
	return g.Clone(), nil
}

func (s *Store) PutMergeGroup(ctx context.Context, g domain.MergeGroup, expectedVersion int64) (domain.MergeGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.mergeGroups[g.ID]
	if err := checkVersion(exists, current.Version, expectedVersion); err != nil {
		return domain.MergeGroup{}, err
	}
	g.Version = expectedVersion + 1
	s.mergeGroups[g.ID] = g.Clone()
	return g, nil
}

func (s *Store) DeleteMergeGroup(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.mergeGroups[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.mergeGroups, id)
	return nil
}

// --- Split bills ---

func (s *Store) GetSplitBill(ctx context.Context, id uuid.UUID) (domain.SplitBill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.splitBills[id]
	if !ok {
		return domain.SplitBill{}, store.ErrNotFound
	}
	return b.Clone(), nil
}

func (s *Store) GetActiveSplitBill(ctx context.Context, orderID uuid.UUID) (domain.SplitBill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.splitBills {
		if b.OrderID == orderID && b.Status == enum.SplitBillStatusActive {
			return b.Clone(), nil
		}
	}
	return domain.SplitBill{}, store.ErrNotFound
}

func (s *Store) PutSplitBill(ctx context.Context, b domain.SplitBill, expectedVersion int64) (domain.SplitBill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.splitBills[b.ID]
	if err := checkVersion(exists, current.Version, expectedVersion); err != nil {
		return domain.SplitBill{}, err
	}
	// One ACTIVE bill per order, enforced at creation under the same lock
	// that applies the write.
	if expectedVersion == 0 && b.Status == enum.SplitBillStatusActive {
		for _, other := range s.splitBills {
			if other.OrderID == b.OrderID && other.Status == enum.SplitBillStatusActive {
				return domain.SplitBill{}, store.ErrConflict
			}
		}
	}
	b.Version = expectedVersion + 1
	s.splitBills[b.ID] = b.Clone()
	return b, nil
}

func checkVersion(exists bool, current, expected int64) error {
	if expected == 0 {
		if exists {
			return store.ErrConflict
		}
		return nil
	}
	if !exists {
		return store.ErrNotFound
	}
	if current != expected {
		return store.ErrConflict
	}
	return nil
}
