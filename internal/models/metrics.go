package models

import "time"

// Clearing readiness labels assigned to per-bank pending exposure.
const (
	ClearingReady     = "ready"
	ClearingAttention = "attention"
	ClearingAtRisk    = "at-risk"
)

// RevenuePeriod is one bucket of the time-bucketed revenue overview.
type RevenuePeriod struct {
	Period  string  `json:"period"`  // Bucket label, e.g. 2026-08-24
	Volume  float64 `json:"volume"`  // Completed transaction volume in the bucket
	Revenue float64 `json:"revenue"` // Fee revenue accrued in the bucket
}

// BankStats is the per-bank slice of the transaction distribution.
type BankStats struct {
	Bank      string  `json:"bank"`      // Bank code
	Count     int     `json:"count"`     // Number of transactions touching the bank
	Volume    float64 `json:"volume"`    // Total amount across those transactions
	Connected bool    `json:"connected"` // Registry connection flag
}

// DayStats summarizes activity for a single UTC calendar day.
type DayStats struct {
	Date           string  `json:"date"`            // Day in YYYY-MM-DD
	Count          int     `json:"count"`           // Transactions created that day
	Completed      int     `json:"completed"`       // Of those, completed
	CompletionRate float64 `json:"completion_rate"` // Completed / count, 0 when empty
}

// WeekendPerformance compares completion over the most recent weekend window
// against the prior one. Windows run Saturday 00:00 UTC to Monday 00:00 UTC.
type WeekendPerformance struct {
	CurrentStart time.Time `json:"current_start"` // Start of the most recent window
	CurrentRate  float64   `json:"current_rate"`  // Completion rate in the most recent window
	PreviousRate float64   `json:"previous_rate"` // Completion rate in the prior window
	Ratio        float64   `json:"ratio"`         // CurrentRate / PreviousRate, 0 when undefined
}

// ClearingBank is one bank's Monday clearing preparation line.
type ClearingBank struct {
	Bank          string  `json:"bank"`           // Bank code
	PendingCount  int     `json:"pending_count"`  // Pending plus delayed entries
	PendingAmount float64 `json:"pending_amount"` // Total amount awaiting clearing
	DelayedCount  int     `json:"delayed_count"`  // Pending entries older than the delay cutoff
	Readiness     string  `json:"readiness"`      // ready, attention or at-risk
}

// Dashboard aggregates every metrics-engine output into one payload.
type Dashboard struct {
	CompletionRate     float64            `json:"completion_rate"`
	Revenue            float64            `json:"revenue"`
	RevenueOverview    []RevenuePeriod    `json:"revenue_overview"`
	BankDistribution   []BankStats        `json:"bank_distribution"`
	Today              DayStats           `json:"today"`
	Weekend            WeekendPerformance `json:"weekend"`
	WeekendFees        float64            `json:"weekend_fees"`
	ReserveUtilization float64            `json:"reserve_utilization"`
	Clearing           []ClearingBank     `json:"clearing"`
	GeneratedAt        time.Time          `json:"generated_at"`
}
