package models

// LedgerEvent is the envelope published to Kafka when the ledger changes.
type LedgerEvent struct {
	EventID   string   `json:"event_id"`           // Unique identifier of the event
	Kind      string   `json:"kind"`               // "transaction.appended" or "settlement.batch"
	Timestamp int64    `json:"timestamp"`          // Unix timestamp (seconds) of the event
	TxnRef    string   `json:"txn_ref,omitempty"`  // Set for single-transaction events
	BatchID   string   `json:"batch_id,omitempty"` // Set for settlement events
	Refs      []string `json:"refs,omitempty"`     // References affected by a batch
	Amount    float64  `json:"amount"`             // Amount moved by the event
	Actor     string   `json:"actor,omitempty"`    // Operator behind the event, when any
}
