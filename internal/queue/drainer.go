package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/sbilibin2017/gw-settlement-ledger/internal/logger"
	"github.com/sbilibin2017/gw-settlement-ledger/internal/models"
	"github.com/sbilibin2017/gw-settlement-ledger/internal/repositories"
)

// Appender appends intake transactions to the ledger.
type Appender interface {
	Append(ctx context.Context, txn models.Transaction) error
}

// Auditor records intake events on the audit trail.
type Auditor interface {
	Append(ctx context.Context, action, actor, details string) error
}

// KafkaWriter defines a Kafka writer abstraction.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Drainer is the single periodic consumer of the intake queue. Each tick it
// delivers queued items to the ledger in arrival order. A failing item is
// redelivered with increasing backoff up to MaxAttempts; exhaustion produces
// a permanently failed ledger record, an audit entry and a dead-letter item.
type Drainer struct {
	queue       *Queue
	txns        Appender
	audit       Auditor
	kafkaWriter KafkaWriter

	interval    time.Duration
	maxAttempts int
	retryBase   time.Duration
	now         func() time.Time

	mu   sync.Mutex
	dead []Item
}

// DrainerConfig configures a Drainer.
type DrainerConfig struct {
	Interval    time.Duration    // Tick interval of the drain loop
	MaxAttempts int              // Delivery attempts before dead-lettering
	RetryBase   time.Duration    // Initial redelivery delay, doubled per attempt
	Now         func() time.Time // Injectable clock
}

// NewDrainer creates a drainer over the queue. kafkaWriter may be nil; event
// publishing is best-effort.
func NewDrainer(q *Queue, txns Appender, audit Auditor, kafkaWriter KafkaWriter, cfg DrainerConfig) *Drainer {
	d := &Drainer{
		queue:       q,
		txns:        txns,
		audit:       audit,
		kafkaWriter: kafkaWriter,
		interval:    cfg.Interval,
		maxAttempts: cfg.MaxAttempts,
		retryBase:   cfg.RetryBase,
		now:         cfg.Now,
	}
	if d.interval == 0 {
		d.interval = time.Second
	}
	if d.maxAttempts == 0 {
		d.maxAttempts = 3
	}
	if d.retryBase == 0 {
		d.retryBase = 500 * time.Millisecond
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d
}

// Run drains the queue on every tick until the context is cancelled.
func (d *Drainer) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	logger.Log.Infow("intake drainer started", "interval", d.interval, "max_attempts", d.maxAttempts)
	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("intake drainer stopped")
			return
		case <-ticker.C:
			d.DrainOnce(ctx)
		}
	}
}

// DrainOnce processes queued items until the queue is empty or the head item
// is waiting out its redelivery backoff. Head-of-line waiting keeps arrival
// order intact across retries.
func (d *Drainer) DrainOnce(ctx context.Context) {
	for {
		head, ok := d.queue.Peek()
		if !ok {
			return
		}
		if head.NextAttemptAt.After(d.now()) {
			return
		}

		item, ok := d.queue.Pop()
		if !ok {
			return
		}

		err := d.txns.Append(ctx, item.Txn)
		if err == nil {
			d.publishAppended(ctx, item.Txn)
			continue
		}

		if errors.Is(err, repositories.ErrDuplicateRef) {
			// Idempotent replay: the reference is already on the ledger.
			logger.Log.Infow("duplicate intake dropped", "txn_ref", item.Txn.TxnRef)
			if auditErr := d.audit.Append(ctx, "intake.duplicate", "system",
				fmt.Sprintf("dropped replayed transaction %s", item.Txn.TxnRef)); auditErr != nil {
				logger.Log.Errorw("failed to audit duplicate intake", "txn_ref", item.Txn.TxnRef, "error", auditErr)
			}
			continue
		}

		item.Attempts++
		item.LastError = err.Error()

		if item.Attempts >= d.maxAttempts {
			d.deadLetter(ctx, item)
			continue
		}

		delay := d.retryBase << (item.Attempts - 1)
		item.NextAttemptAt = d.now().Add(delay)
		d.queue.PushFront(item)
		logger.Log.Warnw("intake delivery failed, redelivery scheduled",
			"txn_ref", item.Txn.TxnRef,
			"attempt", item.Attempts,
			"retry_in", delay,
			"error", err,
		)
		return
	}
}

// DeadLetters returns the items that exhausted redelivery.
func (d *Drainer) DeadLetters() []Item {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Item(nil), d.dead...)
}

// deadLetter surfaces a permanently failed item: a failed ledger record with
// the delivery error in metadata, an audit entry, and a dead-letter retain.
func (d *Drainer) deadLetter(ctx context.Context, item Item) {
	d.mu.Lock()
	d.dead = append(d.dead, item)
	d.mu.Unlock()

	logger.Log.Errorw("intake item permanently failed",
		"txn_ref", item.Txn.TxnRef,
		"attempts", item.Attempts,
		"error", item.LastError,
	)

	failed := item.Txn
	failed.Status = models.StatusFailed
	failed.UpdatedAt = d.now().UTC()
	if failed.Metadata == nil {
		failed.Metadata = map[string]string{}
	}
	failed.Metadata["intake_error"] = item.LastError
	failed.Metadata["intake_attempts"] = fmt.Sprintf("%d", item.Attempts)

	if err := d.txns.Append(ctx, failed); err != nil {
		logger.Log.Errorw("failed to record dead-lettered transaction",
			"txn_ref", item.Txn.TxnRef, "error", err)
	}

	if err := d.audit.Append(ctx, "intake.dead_letter", "system",
		fmt.Sprintf("transaction %s exhausted %d delivery attempts: %s",
			item.Txn.TxnRef, item.Attempts, item.LastError)); err != nil {
		logger.Log.Errorw("failed to audit dead letter", "txn_ref", item.Txn.TxnRef, "error", err)
	}
}

// publishAppended publishes a ledger-append event to Kafka.
func (d *Drainer) publishAppended(ctx context.Context, txn models.Transaction) {
	if d.kafkaWriter == nil {
		return
	}

	event := models.LedgerEvent{
		EventID:   uuid.NewString(),
		Kind:      "transaction.appended",
		Timestamp: d.now().Unix(),
		TxnRef:    txn.TxnRef,
		Amount:    txn.Amount,
	}

	data, err := json.Marshal(event)
	if err != nil {
		logger.Log.Errorw("failed to marshal ledger event", "txn_ref", txn.TxnRef, "error", err)
		return
	}

	msg := kafka.Message{
		Key:   []byte(txn.TxnRef),
		Value: data,
	}

	if err := d.kafkaWriter.WriteMessages(ctx, msg); err != nil {
		logger.Log.Errorw("failed to publish ledger event", "txn_ref", txn.TxnRef, "error", err)
	}
}
