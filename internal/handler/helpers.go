package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/sahaj-pos/core/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

// writeServiceError maps the service error taxonomy onto HTTP status codes.
// Anything unrecognized is logged and reported as a 500 without leaking the
// underlying message.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case isNotFound(err):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case isValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrUnauthorized):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrExpired),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrTerminalState),
		errors.Is(err, service.ErrOrderNotCompleted),
		errors.Is(err, service.ErrTableUnavailable),
		errors.Is(err, service.ErrCapacityInsufficient),
		errors.Is(err, service.ErrAlreadyProcessed),
		errors.Is(err, service.ErrConflict),
		errors.Is(err, service.ErrRetryable):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, service.ErrOrderNotFound) ||
		errors.Is(err, service.ErrTableNotFound) ||
		errors.Is(err, service.ErrTicketNotFound) ||
		errors.Is(err, service.ErrSplitBillNotFound)
}

// isValidationError checks if the error is a known validation error
// from the service layer that should result in 400 Bad Request.
func isValidationError(err error) bool {
	return errors.Is(err, service.ErrEmptyItems) ||
		errors.Is(err, service.ErrInvalidQuantity) ||
		errors.Is(err, service.ErrInvalidUnitPrice) ||
		errors.Is(err, service.ErrInvalidGuestCount) ||
		errors.Is(err, service.ErrInvalidDiscount) ||
		errors.Is(err, service.ErrInvalidLoyalty) ||
		errors.Is(err, service.ErrMissingFOCAuthorizer) ||
		errors.Is(err, service.ErrInvalidStatus) ||
		errors.Is(err, service.ErrInvalidStrategy) ||
		errors.Is(err, service.ErrInvalidSplitCount) ||
		errors.Is(err, service.ErrInvalidPaymentMethod) ||
		errors.Is(err, service.ErrBadItemAssignment) ||
		errors.Is(err, service.ErrInvalidTableTarget) ||
		errors.Is(err, service.ErrAmountMismatch)
}
