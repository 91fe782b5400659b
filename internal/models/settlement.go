package models

import "time"

// SettlementResult is the outcome of one settlement batch. Results are cached
// by idempotency key so a replayed request returns the original outcome.
type SettlementResult struct {
	BatchID          string    `json:"batch_id"`          // Unique identifier of the batch
	AuthorizedBy     string    `json:"authorized_by"`     // Operator named on the audit trail
	Forced           bool      `json:"forced"`            // Whether the force policy was applied
	SettledRefs      []string  `json:"settled_refs"`      // References completed by this batch
	TotalAmount      float64   `json:"total_amount"`      // Sum debited from the reserve
	Shortfall        float64   `json:"shortfall"`         // Amount by which the batch exceeded the reserve, when rejected
	ReserveAvailable float64   `json:"reserve_available"` // Available reserve after the batch
	SettledAt        time.Time `json:"settled_at"`        // Batch timestamp
	Replayed         bool      `json:"replayed"`          // True when served from the idempotency cache
}
