package queue

import (
	"sync"
	"time"

	"github.com/sbilibin2017/gw-settlement-ledger/internal/models"
)

// Item is a queued transaction with its delivery state.
type Item struct {
	Txn           models.Transaction // The payload accepted at the webhook
	Attempts      int                // Completed delivery attempts
	EnqueuedAt    time.Time          // Arrival time
	NextAttemptAt time.Time          // Earliest time the drainer may try again
	LastError     string             // Error from the most recent attempt
}

// Queue is an arrival-ordered buffer between the webhook and the ledger.
// Enqueue acknowledges queuing only; durability happens in the drainer.
type Queue struct {
	mu    sync.Mutex
	items []Item
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{}
}

// Enqueue appends a transaction preserving arrival order.
func (q *Queue) Enqueue(txn models.Transaction, now time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, Item{Txn: txn, EnqueuedAt: now, NextAttemptAt: now})
}

// Peek returns the head item without removing it.
func (q *Queue) Peek() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Item{}, false
	}
	return q.items[0], true
}

// Pop removes and returns the head item.
func (q *Queue) Pop() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Item{}, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

// PushFront returns a retried item to the head of the queue so arrival order
// is preserved across redelivery.
func (q *Queue) PushFront(item Item) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append([]Item{item}, q.items...)
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
