package models

import "time"

// Transaction statuses. Transitions are one-directional: a pending transaction
// moves to exactly one of the terminal statuses and never back.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Transaction types accepted at the webhook boundary.
const (
	TypeTransfer   = "transfer"
	TypeDeposit    = "deposit"
	TypeWithdrawal = "withdrawal"
)

// Transaction represents a single ledger entry.
type Transaction struct {
	TxnRef         string            `json:"txn_ref"`                   // Globally unique transaction reference
	SenderID       string            `json:"sender_id"`                 // Identifier of the sending account
	ReceiverID     string            `json:"receiver_id"`               // Identifier of the receiving account
	SenderBank     string            `json:"sender_bank"`               // Bank code of the sender
	ReceiverBank   string            `json:"receiver_bank"`             // Bank code of the receiver
	Amount         float64           `json:"amount"`                    // Monetary value of the transaction
	Currency       string            `json:"currency"`                  // Currency code, e.g. ZAR
	Type           string            `json:"type"`                      // Transaction type (transfer, deposit, withdrawal)
	Status         string            `json:"status"`                    // Lifecycle status
	CreatedAt      time.Time         `json:"created_at"`                // When the transaction entered the ledger
	UpdatedAt      time.Time         `json:"updated_at"`                // Last status change
	SettledAt      *time.Time        `json:"settled_at,omitempty"`      // Stamped by the settlement batch that completed it
	IdempotencyKey string            `json:"idempotency_key,omitempty"` // Caller-supplied replay token
	Metadata       map[string]string `json:"metadata,omitempty"`        // Free-form annotations
}

// IsTerminal reports whether the transaction can no longer change status.
func (t Transaction) IsTerminal() bool {
	switch t.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}
