package middleware

import (
	"log"
	"net/http"
	"strings"

	"github.com/sahaj-pos/core/internal/guard"
)

// Request headers driving the duplicate-submission guard. Terminals tag every
// mutating request with a stable action id; a duplicate inside the dedupe
// window is rejected until the terminal confirms it on purpose.
const (
	HeaderTerminalID       = "X-Terminal-ID"
	HeaderActionID         = "X-Action-ID"
	HeaderConfirmDuplicate = "X-Confirm-Duplicate"
)

// Dedupe guards mutating routes against accidental double submission
// (double-tapped order creation, repeated payment clicks). Requests without
// the headers pass through untouched; the guard is a terminal-side opt-in on
// top of the services' own idempotency.
func Dedupe(g guard.Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			terminalID := r.Header.Get(HeaderTerminalID)
			actionID := r.Header.Get(HeaderActionID)
			if terminalID == "" || actionID == "" {
				next.ServeHTTP(w, r)
				return
			}

			ok, err := g.Begin(r.Context(), terminalID, actionID)
			if err != nil {
				// Guard backend trouble must not block the terminal; the
				// services still reject true duplicates.
				log.Printf("ERROR: dedupe guard: %v", err)
				next.ServeHTTP(w, r)
				return
			}
			if !ok && !strings.EqualFold(r.Header.Get(HeaderConfirmDuplicate), "true") {
				writeJSON(w, http.StatusConflict, map[string]any{
					"error":                 "duplicate action",
					"confirmation_required": true,
				})
				return
			}
			defer g.Finish(r.Context(), terminalID, actionID)
			next.ServeHTTP(w, r)
		})
	}
}
