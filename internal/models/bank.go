package models

// Bank is an entry in the bank registry.
type Bank struct {
	Name      string `json:"name"`      // Human-readable bank name
	Code      string `json:"code"`      // Short code used on transactions, e.g. FNB
	Connected bool   `json:"connected"` // Whether the bank link is currently up
}
