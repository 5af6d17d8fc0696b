package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sahaj-pos/core/internal/enum"
)

// SplitBill divides a completed order's due amount into independently payable
// portions. At most one ACTIVE split bill exists per order; the store
// enforces that at creation.
type SplitBill struct {
	ID        uuid.UUID `json:"id"`
	OrderID   uuid.UUID `json:"order_id"`
	Strategy  string    `json:"strategy"`
	Splits    []Split   `json:"splits"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	Version   int64     `json:"version"`
}

// Split is one payable portion. ItemIDs is populated for BY_ITEMS splits;
// Payment stays nil until the portion is paid.
type Split struct {
	SplitNumber int             `json:"split_number"`
	ItemIDs     []uuid.UUID     `json:"item_ids,omitempty"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Payment     *PaymentDetails `json:"payment,omitempty"`
	Status      string          `json:"status"`
}

// PaymentDetails records the declared payment for a split. The core never
// talks to a gateway; method and reference are taken at face value.
type PaymentDetails struct {
	Method    string    `json:"method"`
	Reference string    `json:"reference,omitempty"`
	PaidBy    string    `json:"paid_by"`
	PaidAt    time.Time `json:"paid_at"`
}

// AllPaid reports whether every split has been paid.
func (b *SplitBill) AllPaid() bool {
	for _, s := range b.Splits {
		if s.Status != enum.SplitStatusPaid {
			return false
		}
	}
	return len(b.Splits) > 0
}

// Clone returns a deep copy of the split bill.
func (b SplitBill) Clone() SplitBill {
	c := b
	c.Splits = make([]Split, len(b.Splits))
	for i, s := range b.Splits {
		s.ItemIDs = append([]uuid.UUID(nil), s.ItemIDs...)
		if s.Payment != nil {
			p := *s.Payment
			s.Payment = &p
		}
		c.Splits[i] = s
	}
	return c
}
