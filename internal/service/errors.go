package service

import "errors"

// Error taxonomy shared by all services. Validation and authorization errors
// are terminal for the caller; ErrConflict and ErrRetryable are safe to retry
// after a fresh read.
var (
	// Not-found family.
	ErrOrderNotFound     = errors.New("order not found")
	ErrTableNotFound     = errors.New("table not found")
	ErrTicketNotFound    = errors.New("kitchen ticket not found")
	ErrSplitBillNotFound = errors.New("split bill not found")

	// Validation family.
	ErrEmptyItems           = errors.New("items are required")
	ErrInvalidQuantity      = errors.New("quantity must be > 0")
	ErrInvalidUnitPrice     = errors.New("unit_price must be >= 0")
	ErrInvalidGuestCount    = errors.New("guest_count must be > 0")
	ErrInvalidDiscount      = errors.New("discount_percentage must be between 0 and 100")
	ErrInvalidLoyalty       = errors.New("loyalty_points_redeemed must be >= 0")
	ErrMissingFOCAuthorizer = errors.New("free-of-charge items require an authorizing reference")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrInvalidStrategy      = errors.New("invalid split strategy")
	ErrInvalidSplitCount    = errors.New("split count must be >= 1")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrBadItemAssignment    = errors.New("item assignment must cover every order item exactly once")
	ErrOrderNotCompleted    = errors.New("order must be COMPLETED before splitting")
	ErrAmountMismatch       = errors.New("split amounts do not reconcile to the due amount")
	ErrTerminalState        = errors.New("order is in a terminal state")
	ErrInvalidTableTarget   = errors.New("invalid target table status")

	// State machine / authorization.
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrUnauthorized      = errors.New("actor lacks required capability")
	ErrExpired           = errors.New("cancellation grace window has passed")

	// Table allocation.
	ErrCapacityInsufficient = errors.New("combined capacity is below guest count")
	ErrTableUnavailable     = errors.New("table is not available")

	// Retryable family.
	ErrConflict         = errors.New("concurrent modification, re-read and retry")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrRetryable        = errors.New("transient failure, safe to retry")
)
