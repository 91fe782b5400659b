package services

import (
	"context"
	"sort"
	"time"

	"github.com/sbilibin2017/gw-settlement-ledger/internal/models"
	"github.com/sbilibin2017/gw-settlement-ledger/internal/repositories"
)

// Monday clearing readiness thresholds on per-bank pending exposure.
const (
	clearingAttentionThreshold = 100000.0
	clearingAtRiskThreshold    = 500000.0
)

// delayedAfter is how long a transaction may stay pending before it counts
// as delayed for Monday clearing.
const delayedAfter = 48 * time.Hour

// ReserveReader reads the reserve pool.
type ReserveReader interface {
	Get(ctx context.Context) (models.ReservePool, error)
}

// BankLister reads the bank registry.
type BankLister interface {
	List(ctx context.Context) ([]models.Bank, error)
}

// MetricsService computes dashboard analytics from ledger snapshots. It is
// purely read-only: no call mutates ledger state, so it is safe to run
// concurrently with in-flight settlement. Results are eventually consistent.
//
// All time bucketing is fixed to UTC. A weekend window runs Saturday
// 00:00:00 UTC inclusive to Monday 00:00:00 UTC exclusive; a transaction
// stamped exactly on a boundary belongs to the window containing that
// calendar date.
type MetricsService struct {
	txns       TransactionLister
	reserve    ReserveReader
	banks      BankLister
	feePercent float64
	now        func() time.Time
}

// NewMetricsService creates a MetricsService with an injectable clock.
func NewMetricsService(txns TransactionLister, reserve ReserveReader, banks BankLister, feePercent float64, now func() time.Time) *MetricsService {
	if now == nil {
		now = time.Now
	}
	return &MetricsService{
		txns:       txns,
		reserve:    reserve,
		banks:      banks,
		feePercent: feePercent,
		now:        now,
	}
}

// CompletionRate returns completed / total over the whole ledger.
func (s *MetricsService) CompletionRate(ctx context.Context) (float64, error) {
	txns, err := s.txns.List(ctx, repositories.TransactionFilter{})
	if err != nil {
		return 0, err
	}
	return completionRate(txns), nil
}

// Revenue returns the fee revenue over all completed volume.
func (s *MetricsService) Revenue(ctx context.Context) (float64, error) {
	txns, err := s.txns.List(ctx, repositories.TransactionFilter{})
	if err != nil {
		return 0, err
	}
	var volume float64
	for _, txn := range txns {
		if txn.Status == models.StatusCompleted {
			volume += txn.Amount
		}
	}
	return volume * s.feePercent, nil
}

// RevenueOverview buckets completed volume and revenue into the last periods
// UTC days, oldest first.
func (s *MetricsService) RevenueOverview(ctx context.Context, periods int) ([]models.RevenuePeriod, error) {
	if periods < 1 {
		periods = 7
	}
	txns, err := s.txns.List(ctx, repositories.TransactionFilter{})
	if err != nil {
		return nil, err
	}

	today := midnightUTC(s.now())
	out := make([]models.RevenuePeriod, periods)
	index := make(map[string]int, periods)
	for i := 0; i < periods; i++ {
		day := today.AddDate(0, 0, i-periods+1)
		label := day.Format("2006-01-02")
		out[i] = models.RevenuePeriod{Period: label}
		index[label] = i
	}

	for _, txn := range txns {
		if txn.Status != models.StatusCompleted {
			continue
		}
		label := midnightUTC(txn.CreatedAt).Format("2006-01-02")
		if i, ok := index[label]; ok {
			out[i].Volume += txn.Amount
			out[i].Revenue += txn.Amount * s.feePercent
		}
	}
	return out, nil
}

// BankDistribution returns per-bank transaction counts and volumes. A
// transaction counts toward both its sender and receiver bank.
func (s *MetricsService) BankDistribution(ctx context.Context) ([]models.BankStats, error) {
	txns, err := s.txns.List(ctx, repositories.TransactionFilter{})
	if err != nil {
		return nil, err
	}
	banks, err := s.banks.List(ctx)
	if err != nil {
		return nil, err
	}

	connected := make(map[string]bool, len(banks))
	for _, b := range banks {
		connected[b.Code] = b.Connected
	}

	stats := make(map[string]*models.BankStats)
	touch := func(code string, amount float64) {
		if code == "" {
			return
		}
		st, ok := stats[code]
		if !ok {
			st = &models.BankStats{Bank: code, Connected: connected[code]}
			stats[code] = st
		}
		st.Count++
		st.Volume += amount
	}
	for _, txn := range txns {
		touch(txn.SenderBank, txn.Amount)
		if txn.ReceiverBank != txn.SenderBank {
			touch(txn.ReceiverBank, txn.Amount)
		}
	}

	out := make([]models.BankStats, 0, len(stats))
	for _, st := range stats {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Bank < out[j].Bank })
	return out, nil
}

// RecentBankTransactions returns the n most recent transactions touching the
// bank, newest first.
func (s *MetricsService) RecentBankTransactions(ctx context.Context, bank string, n int) ([]models.Transaction, error) {
	if n < 1 {
		n = 10
	}
	txns, err := s.txns.List(ctx, repositories.TransactionFilter{Bank: bank})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(txns, func(i, j int) bool {
		return txns[i].CreatedAt.After(txns[j].CreatedAt)
	})
	if len(txns) > n {
		txns = txns[:n]
	}
	return txns, nil
}

// TodayStats summarizes transactions created on the current UTC day.
func (s *MetricsService) TodayStats(ctx context.Context) (models.DayStats, error) {
	txns, err := s.txns.List(ctx, repositories.TransactionFilter{})
	if err != nil {
		return models.DayStats{}, err
	}

	dayStart := midnightUTC(s.now())
	dayEnd := dayStart.AddDate(0, 0, 1)
	stats := models.DayStats{Date: dayStart.Format("2006-01-02")}
	for _, txn := range txns {
		created := txn.CreatedAt.UTC()
		if created.Before(dayStart) || !created.Before(dayEnd) {
			continue
		}
		stats.Count++
		if txn.Status == models.StatusCompleted {
			stats.Completed++
		}
	}
	if stats.Count > 0 {
		stats.CompletionRate = float64(stats.Completed) / float64(stats.Count)
	}
	return stats, nil
}

// WeekendPerformance compares the completion rate of the most recent weekend
// window against the prior one. Empty windows report 0, never NaN.
func (s *MetricsService) WeekendPerformance(ctx context.Context) (models.WeekendPerformance, error) {
	txns, err := s.txns.List(ctx, repositories.TransactionFilter{})
	if err != nil {
		return models.WeekendPerformance{}, err
	}

	currentStart := weekendStart(s.now())
	previousStart := currentStart.AddDate(0, 0, -7)

	current := inWindow(txns, currentStart, currentStart.Add(48*time.Hour))
	previous := inWindow(txns, previousStart, previousStart.Add(48*time.Hour))

	perf := models.WeekendPerformance{
		CurrentStart: currentStart,
		CurrentRate:  completionRate(current),
		PreviousRate: completionRate(previous),
	}
	if perf.PreviousRate > 0 {
		perf.Ratio = perf.CurrentRate / perf.PreviousRate
	}
	return perf, nil
}

// WeekendFees returns the processing fees accrued on completed transactions
// during the current weekend window.
func (s *MetricsService) WeekendFees(ctx context.Context) (float64, error) {
	txns, err := s.txns.List(ctx, repositories.TransactionFilter{})
	if err != nil {
		return 0, err
	}

	start := weekendStart(s.now())
	var fees float64
	for _, txn := range inWindow(txns, start, start.Add(48*time.Hour)) {
		if txn.Status == models.StatusCompleted {
			fees += txn.Amount * s.feePercent
		}
	}
	return fees, nil
}

// ReserveUtilization returns (total - available) / total.
func (s *MetricsService) ReserveUtilization(ctx context.Context) (float64, error) {
	pool, err := s.reserve.Get(ctx)
	if err != nil {
		return 0, err
	}
	return pool.Utilization(), nil
}

// ClearingPreparation sums each bank's pending and delayed exposure ahead of
// Monday clearing and labels its readiness: ready below 100k, attention
// below 500k, at-risk from 500k up.
func (s *MetricsService) ClearingPreparation(ctx context.Context) ([]models.ClearingBank, error) {
	txns, err := s.txns.List(ctx, repositories.TransactionFilter{Status: models.StatusPending})
	if err != nil {
		return nil, err
	}

	delayedCutoff := s.now().UTC().Add(-delayedAfter)
	perBank := make(map[string]*models.ClearingBank)
	for _, txn := range txns {
		bank := txn.SenderBank
		if bank == "" {
			bank = txn.ReceiverBank
		}
		line, ok := perBank[bank]
		if !ok {
			line = &models.ClearingBank{Bank: bank}
			perBank[bank] = line
		}
		line.PendingCount++
		line.PendingAmount += txn.Amount
		if txn.CreatedAt.UTC().Before(delayedCutoff) {
			line.DelayedCount++
		}
	}

	out := make([]models.ClearingBank, 0, len(perBank))
	for _, line := range perBank {
		switch {
		case line.PendingAmount < clearingAttentionThreshold:
			line.Readiness = models.ClearingReady
		case line.PendingAmount < clearingAtRiskThreshold:
			line.Readiness = models.ClearingAttention
		default:
			line.Readiness = models.ClearingAtRisk
		}
		out = append(out, *line)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Bank < out[j].Bank })
	return out, nil
}

// Dashboard aggregates every metrics output into one payload.
func (s *MetricsService) Dashboard(ctx context.Context) (*models.Dashboard, error) {
	completion, err := s.CompletionRate(ctx)
	if err != nil {
		return nil, err
	}
	revenue, err := s.Revenue(ctx)
	if err != nil {
		return nil, err
	}
	overview, err := s.RevenueOverview(ctx, 7)
	if err != nil {
		return nil, err
	}
	distribution, err := s.BankDistribution(ctx)
	if err != nil {
		return nil, err
	}
	today, err := s.TodayStats(ctx)
	if err != nil {
		return nil, err
	}
	weekend, err := s.WeekendPerformance(ctx)
	if err != nil {
		return nil, err
	}
	weekendFees, err := s.WeekendFees(ctx)
	if err != nil {
		return nil, err
	}
	utilization, err := s.ReserveUtilization(ctx)
	if err != nil {
		return nil, err
	}
	clearing, err := s.ClearingPreparation(ctx)
	if err != nil {
		return nil, err
	}

	return &models.Dashboard{
		CompletionRate:     completion,
		Revenue:            revenue,
		RevenueOverview:    overview,
		BankDistribution:   distribution,
		Today:              today,
		Weekend:            weekend,
		WeekendFees:        weekendFees,
		ReserveUtilization: utilization,
		Clearing:           clearing,
		GeneratedAt:        s.now().UTC(),
	}, nil
}

// weekendStart returns the start of the most recent weekend window: the
// latest Saturday 00:00 UTC at or before t.
func weekendStart(t time.Time) time.Time {
	day := midnightUTC(t)
	daysSinceSaturday := (int(day.Weekday()) - int(time.Saturday) + 7) % 7
	return day.AddDate(0, 0, -daysSinceSaturday)
}

func midnightUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func inWindow(txns []models.Transaction, start, end time.Time) []models.Transaction {
	var out []models.Transaction
	for _, txn := range txns {
		created := txn.CreatedAt.UTC()
		if !created.Before(start) && created.Before(end) {
			out = append(out, txn)
		}
	}
	return out
}

func completionRate(txns []models.Transaction) float64 {
	if len(txns) == 0 {
		return 0
	}
	completed := 0
	for _, txn := range txns {
		if txn.Status == models.StatusCompleted {
			completed++
		}
	}
	return float64(completed) / float64(len(txns))
}
