package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sahaj-pos/core/internal/enum"
)

// Order is the aggregate root of the order-management core. Kitchen tickets
// live inside the aggregate so that ticket numbering is covered by the
// order's own compare-and-swap version.
type Order struct {
	ID                    uuid.UUID       `json:"id"`
	Status                string          `json:"status"`
	TableRef              TableRef        `json:"table_ref"`
	GuestCount            int             `json:"guest_count"`
	Items                 []OrderItem     `json:"items"`
	ExtraItems            []OrderItem     `json:"extra_items"`
	DiscountPercentage    decimal.Decimal `json:"discount_percentage"`
	LoyaltyPointsRedeemed decimal.Decimal `json:"loyalty_points_redeemed"`
	TotalAmount           decimal.Decimal `json:"total_amount"`
	Tickets               []KitchenTicket `json:"tickets"`
	StatusHistory         []StatusChange  `json:"status_history"`
	TransferLog           []TableTransfer `json:"transfer_log"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
	Version               int64           `json:"version"`
}

// OrderItem is one line on the order. LineTotal is computed when the item is
// added; free-of-charge items carry a zero line total and the reference of
// whoever authorized the comp.
type OrderItem struct {
	ID           uuid.UUID       `json:"id"`
	MenuItemID   uuid.UUID       `json:"menu_item_id"`
	Name         string          `json:"name"`
	Quantity     int32           `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	LineTotal    decimal.Decimal `json:"line_total"`
	FreeOfCharge bool            `json:"free_of_charge"`
	AuthorizedBy string          `json:"authorized_by,omitempty"`
}

// KitchenTicket (KOT) is one append-only round of items sent to the kitchen.
// A ticket is never rewritten when later rounds are added; only its Status
// moves as the kitchen works it.
type KitchenTicket struct {
	ID           uuid.UUID   `json:"id"`
	OrderID      uuid.UUID   `json:"order_id"`
	TicketNumber int         `json:"ticket_number"`
	Items        []OrderItem `json:"items"`
	Status       string      `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
}

// StatusChange is one entry of the order's status audit trail.
type StatusChange struct {
	From  string    `json:"from"`
	To    string    `json:"to"`
	Actor string    `json:"actor"`
	At    time.Time `json:"at"`
}

// TableTransfer records a table move for the order.
type TableTransfer struct {
	OldTableID uuid.UUID `json:"old_table_id"`
	NewTableID uuid.UUID `json:"new_table_id"`
	Reason     string    `json:"reason"`
	Actor      string    `json:"actor"`
	At         time.Time `json:"at"`
}

// TableRef points an order at its seating: a single table, or the primary
// table of a merge group when several tables were combined.
type TableRef struct {
	TableID      uuid.UUID  `json:"table_id"`
	MergeGroupID *uuid.UUID `json:"merge_group_id,omitempty"`
}

// AllItems returns the original items followed by every extra round.
func (o *Order) AllItems() []OrderItem {
	out := make([]OrderItem, 0, len(o.Items)+len(o.ExtraItems))
	out = append(out, o.Items...)
	out = append(out, o.ExtraItems...)
	return out
}

// RecalculateTotal derives TotalAmount from items and extra items, then the
// percentage discount, then loyalty redemption, in that order. TotalAmount is
// never set any other way.
func (o *Order) RecalculateTotal() {
	subtotal := decimal.Zero
	for _, it := range o.AllItems() {
		subtotal = subtotal.Add(it.LineTotal)
	}

	total := subtotal
	if o.DiscountPercentage.IsPositive() {
		discount := subtotal.Mul(o.DiscountPercentage).Div(decimal.NewFromInt(100))
		total = total.Sub(discount)
	}
	if o.LoyaltyPointsRedeemed.IsPositive() {
		total = total.Sub(o.LoyaltyPointsRedeemed)
	}
	if total.IsNegative() {
		total = decimal.Zero
	}
	o.TotalAmount = total.Round(2)
}

// NextTicketNumber returns max(ticket numbers)+1, starting at 1.
func (o *Order) NextTicketNumber() int {
	max := 0
	for _, t := range o.Tickets {
		if t.TicketNumber > max {
			max = t.TicketNumber
		}
	}
	return max + 1
}

// IsTerminal reports whether the order has reached PAID or CANCELLED.
func (o *Order) IsTerminal() bool {
	return o.Status == enum.OrderStatusPaid || o.Status == enum.OrderStatusCancelled
}

// Clone returns a deep copy, so store implementations can hand out snapshots
// that callers may mutate freely.
func (o Order) Clone() Order {
	c := o
	c.Items = append([]OrderItem(nil), o.Items...)
	c.ExtraItems = append([]OrderItem(nil), o.ExtraItems...)
	c.StatusHistory = append([]StatusChange(nil), o.StatusHistory...)
	c.TransferLog = append([]TableTransfer(nil), o.TransferLog...)
	c.Tickets = make([]KitchenTicket, len(o.Tickets))
	for i, t := range o.Tickets {
		t.Items = append([]OrderItem(nil), t.Items...)
		c.Tickets[i] = t
	}
	if o.TableRef.MergeGroupID != nil {
		gid := *o.TableRef.MergeGroupID
		c.TableRef.MergeGroupID = &gid
	}
	return c
}
