package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/sbilibin2017/gw-settlement-ledger/internal/logger"
	"github.com/sbilibin2017/gw-settlement-ledger/internal/models"
)

// ErrReserveExhausted is returned when the pending batch exceeds the
// available reserve and force is not set. No entry changes state.
var ErrReserveExhausted = errors.New("settlement exceeds available reserve")

// SettlementTransactions defines the ledger operations settlement needs.
type SettlementTransactions interface {
	CompleteWhere(ctx context.Context, selectRefs func(pending []models.Transaction) []string, settledAt time.Time) (completed, snapshot []models.Transaction, err error)
	Restore(ctx context.Context, snapshot []models.Transaction) error
}

// ReserveAccess defines the reserve operations settlement needs.
type ReserveAccess interface {
	Get(ctx context.Context) (models.ReservePool, error)
	Debit(ctx context.Context, amount float64) (models.ReservePool, error)
}

// SettlementAuditor records settlement activity on the audit trail.
type SettlementAuditor interface {
	Append(ctx context.Context, action, actor, details string) error
}

// IdempotencyCache maps idempotency keys to their original outcome.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) (*models.SettlementResult, error)
	Set(ctx context.Context, key string, result models.SettlementResult) error
}

// KafkaWriter defines a Kafka writer abstraction.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// SettlementService performs reserve-constrained batch settlement.
type SettlementService struct {
	txns        SettlementTransactions
	reserve     ReserveAccess
	audit       SettlementAuditor
	cache       IdempotencyCache
	kafkaWriter KafkaWriter
	now         func() time.Time
}

// NewSettlementService creates a SettlementService. kafkaWriter may be nil.
func NewSettlementService(
	txns SettlementTransactions,
	reserve ReserveAccess,
	audit SettlementAuditor,
	cache IdempotencyCache,
	kafkaWriter KafkaWriter,
	now func() time.Time,
) *SettlementService {
	if now == nil {
		now = time.Now
	}
	return &SettlementService{
		txns:        txns,
		reserve:     reserve,
		audit:       audit,
		cache:       cache,
		kafkaWriter: kafkaWriter,
		now:         now,
	}
}

// Settle transitions eligible pending transactions to completed and debits
// the reserve by their sum, all-or-nothing. Without force the whole pending
// set must fit the available reserve or the batch is rejected with the
// shortfall reported. With force a greedy oldest-first subset that fits is
// settled instead; the reserve never goes negative either way. A non-empty
// idempotencyKey makes the call replayable: the original outcome is returned
// without a second debit.
func (s *SettlementService) Settle(ctx context.Context, authorizedBy string, force bool, idempotencyKey string) (*models.SettlementResult, error) {
	if idempotencyKey != "" && s.cache != nil {
		cached, err := s.cache.Get(ctx, idempotencyKey)
		if err != nil {
			logger.Log.Errorw("idempotency lookup failed", "key", idempotencyKey, "error", err)
		} else if cached != nil {
			replay := *cached
			replay.Replayed = true
			logger.Log.Infow("settlement replayed from idempotency cache",
				"key", idempotencyKey, "batch_id", replay.BatchID)
			return &replay, nil
		}
	}

	pool, err := s.reserve.Get(ctx)
	if err != nil {
		return nil, err
	}

	settledAt := s.now().UTC()
	var total, shortfall float64

	// Selection runs under the ledger store lock, so two racing settlement
	// calls cannot both claim the same pending entries: the loser observes
	// an already-consumed pending set and settles nothing.
	completed, snapshot, err := s.txns.CompleteWhere(ctx, func(pending []models.Transaction) []string {
		sort.SliceStable(pending, func(i, j int) bool {
			return pending[i].CreatedAt.Before(pending[j].CreatedAt)
		})

		var sum float64
		for _, txn := range pending {
			sum += txn.Amount
		}

		if !force {
			if sum > pool.Available {
				shortfall = sum - pool.Available
				return nil
			}
			refs := make([]string, 0, len(pending))
			for _, txn := range pending {
				refs = append(refs, txn.TxnRef)
			}
			total = sum
			return refs
		}

		// Force policy: settle the oldest entries that fit the reserve.
		var refs []string
		for _, txn := range pending {
			if total+txn.Amount > pool.Available {
				continue
			}
			total += txn.Amount
			refs = append(refs, txn.TxnRef)
		}
		return refs
	}, settledAt)
	if err != nil {
		return nil, err
	}

	if shortfall > 0 {
		logger.Log.Warnw("settlement rejected, reserve exhausted",
			"authorized_by", authorizedBy,
			"shortfall", shortfall,
			"available", pool.Available,
		)
		return &models.SettlementResult{
			AuthorizedBy:     authorizedBy,
			Forced:           force,
			Shortfall:        shortfall,
			ReserveAvailable: pool.Available,
			SettledAt:        settledAt,
		}, ErrReserveExhausted
	}

	result := models.SettlementResult{
		BatchID:          uuid.NewString(),
		AuthorizedBy:     authorizedBy,
		Forced:           force,
		SettledRefs:      refsOf(completed),
		TotalAmount:      total,
		ReserveAvailable: pool.Available,
		SettledAt:        settledAt,
	}

	if len(completed) > 0 {
		debited, err := s.reserve.Debit(ctx, total)
		if err != nil {
			// The ledger was already mutated; restore the pre-batch snapshot
			// so no observer ever sees a half-settled batch.
			logger.Log.Errorw("reserve debit failed, rolling back batch",
				"batch_id", result.BatchID, "total", total, "error", err)
			if restoreErr := s.txns.Restore(ctx, snapshot); restoreErr != nil {
				logger.Log.Errorw("batch rollback failed",
					"batch_id", result.BatchID, "audit", "critical", "error", restoreErr)
			}
			return nil, err
		}
		result.ReserveAvailable = debited.Available

		if auditErr := s.audit.Append(ctx, "settlement.batch", authorizedBy,
			fmt.Sprintf("settled %d transactions totalling %.2f (batch %s, forced=%t)",
				len(completed), total, result.BatchID, force)); auditErr != nil {
			logger.Log.Errorw("failed to audit settlement", "batch_id", result.BatchID, "error", auditErr)
		}

		s.publishBatch(ctx, result)
	}

	if idempotencyKey != "" && s.cache != nil {
		if err := s.cache.Set(ctx, idempotencyKey, result); err != nil {
			logger.Log.Errorw("failed to cache settlement result", "key", idempotencyKey, "error", err)
		}
	}

	logger.Log.Infow("settlement batch finished",
		"batch_id", result.BatchID,
		"authorized_by", authorizedBy,
		"settled", len(result.SettledRefs),
		"total", total,
		"forced", force,
	)
	return &result, nil
}

// publishBatch publishes a settlement event to Kafka, best-effort.
func (s *SettlementService) publishBatch(ctx context.Context, result models.SettlementResult) {
	if s.kafkaWriter == nil {
		logger.Log.Warnw("Kafka writer not configured, skipping publishing", "batch_id", result.BatchID)
		return
	}

	event := models.LedgerEvent{
		EventID:   uuid.NewString(),
		Kind:      "settlement.batch",
		Timestamp: result.SettledAt.Unix(),
		BatchID:   result.BatchID,
		Refs:      result.SettledRefs,
		Amount:    result.TotalAmount,
		Actor:     result.AuthorizedBy,
	}

	data, err := json.Marshal(event)
	if err != nil {
		logger.Log.Errorw("failed to marshal settlement event", "batch_id", result.BatchID, "error", err)
		return
	}

	msg := kafka.Message{
		Key:   []byte(result.BatchID),
		Value: data,
	}

	if err := s.kafkaWriter.WriteMessages(ctx, msg); err != nil {
		logger.Log.Errorw("failed to publish settlement event", "batch_id", result.BatchID, "error", err)
	} else {
		logger.Log.Infow("settlement event published", "batch_id", result.BatchID, "refs", len(result.SettledRefs))
	}
}

func refsOf(txns []models.Transaction) []string {
	refs := make([]string, 0, len(txns))
	for _, txn := range txns {
		refs = append(refs, txn.TxnRef)
	}
	return refs
}
