package domain

import (
	"github.com/google/uuid"
)

// Table is one physical table on the floor plan.
type Table struct {
	ID           uuid.UUID  `json:"id"`
	Number       int        `json:"number"`
	Capacity     int        `json:"capacity"`
	Status       string     `json:"status"`
	MergeGroupID *uuid.UUID `json:"merge_group_id,omitempty"`
	Version      int64      `json:"version"`
}

// MergeGroup is a virtual table combining several physical tables' capacity
// for one party. Dissolving the group returns every member atomically.
type MergeGroup struct {
	ID               uuid.UUID   `json:"id"`
	TableIDs         []uuid.UUID `json:"table_ids"`
	CombinedCapacity int         `json:"combined_capacity"`
	OrderID          uuid.UUID   `json:"order_id"`
	Version          int64       `json:"version"`
}

// Clone returns a deep copy of the table.
func (t Table) Clone() Table {
	c := t
	if t.MergeGroupID != nil {
		gid := *t.MergeGroupID
		c.MergeGroupID = &gid
	}
	return c
}

// Clone returns a deep copy of the merge group.
func (g MergeGroup) Clone() MergeGroup {
	c := g
	c.TableIDs = append([]uuid.UUID(nil), g.TableIDs...)
	return c
}
