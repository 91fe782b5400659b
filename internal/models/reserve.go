package models

import "time"

// ReservePool is the shared fund constraint that settlements draw against.
// Invariant: 0 <= Available <= Total.
type ReservePool struct {
	Total     float64   `json:"total"`      // Size of the pool
	Available float64   `json:"available"`  // Remaining settleable amount
	UpdatedAt time.Time `json:"updated_at"` // Last debit or initialization
}

// Utilization returns the fraction of the pool currently consumed.
// A zero-sized pool reports zero rather than dividing by zero.
func (p ReservePool) Utilization() float64 {
	if p.Total <= 0 {
		return 0
	}
	return (p.Total - p.Available) / p.Total
}
