package models

import "time"

// AuditEntry is an append-only trail record. Entries are never mutated or
// deleted by normal operation.
type AuditEntry struct {
	AuditID   string    `json:"audit_id"`  // Unique identifier of the entry
	Action    string    `json:"action"`    // What happened, e.g. "settlement.batch"
	Actor     string    `json:"actor"`     // Who triggered it
	Details   string    `json:"details"`   // Free-form description
	Timestamp time.Time `json:"timestamp"` // When it happened
}
