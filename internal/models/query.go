package models

// TransactionSummary aggregates the full filtered set of a query, not just
// the returned page.
type TransactionSummary struct {
	TotalTransactions int     `json:"totalTransactions"` // Count over the filtered set
	TotalVolume       float64 `json:"totalVolume"`       // Sum of amounts over the filtered set
	TotalFees         float64 `json:"totalFees"`         // Fee revenue over completed entries in the set
	SuccessRate       float64 `json:"successRate"`       // Completed / total, 0 when empty
}

// TransactionPage is one page of a filtered transaction query.
type TransactionPage struct {
	Transactions []Transaction      `json:"transactions"`
	Page         int                `json:"page"`
	PageSize     int                `json:"pageSize"`
	TotalPages   int                `json:"totalPages"`
	Summary      TransactionSummary `json:"summary"`
}
