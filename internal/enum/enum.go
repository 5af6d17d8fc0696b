package enum

// ── State machines ──

const (
	OrderStatusPending   = "PENDING"
	OrderStatusPreparing = "PREPARING"
	OrderStatusReady     = "READY"
	OrderStatusServed    = "SERVED"
	OrderStatusCompleted = "COMPLETED"
	OrderStatusPaid      = "PAID"
	OrderStatusCancelled = "CANCELLED"
)

const (
	TicketStatusPending   = "PENDING"
	TicketStatusPreparing = "PREPARING"
	TicketStatusReady     = "READY"
)

const (
	TableStatusAvailable   = "AVAILABLE"
	TableStatusOccupied    = "OCCUPIED"
	TableStatusReserved    = "RESERVED"
	TableStatusMaintenance = "MAINTENANCE"
	TableStatusMerged      = "MERGED"
)

const (
	SplitBillStatusActive    = "ACTIVE"
	SplitBillStatusCompleted = "COMPLETED"
)

const (
	SplitStatusPending = "PENDING"
	SplitStatusPaid    = "PAID"
)

const (
	SplitStrategyEqual   = "EQUAL"
	SplitStrategyByItems = "BY_ITEMS"
)

// ── Roles ──

const (
	UserRoleOwner   = "OWNER"
	UserRoleManager = "MANAGER"
	UserRoleCashier = "CASHIER"
	UserRoleWaiter  = "WAITER"
	UserRoleKitchen = "KITCHEN"
)

// ── Configurable labels ──

const (
	PaymentMethodCash = "CASH"
	PaymentMethodCard = "CARD"
	PaymentMethodUPI  = "UPI"
)

const (
	EventNewOrder    = "NEW_ORDER"
	EventOrderStatus = "ORDER_STATUS"
	EventNewKOT      = "NEW_KOT"
	EventKOTStatus   = "KOT_STATUS"
	EventTableStatus = "TABLE_STATUS"
	EventSplitUpdate = "SPLIT_UPDATE"
)
