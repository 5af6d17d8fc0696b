package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/sahaj-pos/core/internal/domain"
)

// Errors returned by every Store implementation.
var (
	ErrNotFound = errors.New("entity not found")
	ErrConflict = errors.New("version conflict")
)

// Store is the versioned entity store consumed by the services. Every Put is
// a compare-and-swap: expectedVersion 0 creates the entity (fails with
// ErrConflict if it already exists), any other value must match the stored
// version exactly. The returned entity carries the incremented version.
//
// PutTables is the one multi-entity operation: all listed tables are checked
// and written atomically, so a merge or transfer can never half-apply.
type Store interface {
	GetOrder(ctx context.Context, id uuid.UUID) (domain.Order, error)
	PutOrder(ctx context.Context, o domain.Order, expectedVersion int64) (domain.Order, error)
	ListOrders(ctx context.Context) ([]domain.Order, error)

	GetTable(ctx context.Context, id uuid.UUID) (domain.Table, error)
	ListTables(ctx context.Context) ([]domain.Table, error)
	PutTables(ctx context.Context, tables []domain.Table, expectedVersions []int64) ([]domain.Table, error)

	GetMergeGroup(ctx context.Context, id uuid.UUID) (domain.MergeGroup, error)
	PutMergeGroup(ctx context.Context, g domain.MergeGroup, expectedVersion int64) (domain.MergeGroup, error)
	DeleteMergeGroup(ctx context.Context, id uuid.UUID) error

	GetSplitBill(ctx context.Context, id uuid.UUID) (domain.SplitBill, error)
	// GetActiveSplitBill returns the single ACTIVE split bill for an order,
	// or ErrNotFound when none exists.
	GetActiveSplitBill(ctx context.Context, orderID uuid.UUID) (domain.SplitBill, error)
	// PutSplitBill rejects creation (expectedVersion 0) with ErrConflict when
	// another ACTIVE bill already exists for the same order.
	PutSplitBill(ctx context.Context, b domain.SplitBill, expectedVersion int64) (domain.SplitBill, error)
}
