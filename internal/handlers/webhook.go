package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-settlement-ledger/internal/logger"
	"github.com/sbilibin2017/gw-settlement-ledger/internal/models"
)

// TransactionEnqueuer defines the queue interface needed by this handler.
type TransactionEnqueuer interface {
	Enqueue(txn models.Transaction, now time.Time)
}

// WebhookRequest represents an inbound transaction payload
// swagger:model WebhookRequest
type WebhookRequest struct {
	// Transaction reference; generated when absent
	// default: TXN-20260829-001
	TxnRef string `json:"txn_ref"`

	// Sender account identifier
	// required: true
	SenderID string `json:"sender_id"`

	// Receiver account identifier
	// required: true
	ReceiverID string `json:"receiver_id"`

	// Sender bank code
	// required: true
	// default: FNB
	SenderBank string `json:"sender_bank"`

	// Receiver bank code
	// required: true
	// default: ABSA
	ReceiverBank string `json:"receiver_bank"`

	// Amount, must be positive
	// required: true
	// default: 10000
	Amount float64 `json:"amount"`

	// Currency code
	// required: true
	// default: ZAR
	Currency string `json:"currency"`

	// Transaction type; defaults to transfer
	// default: transfer
	Type string `json:"type"`

	// Lifecycle status; defaults to pending
	// default: pending
	Status string `json:"status"`

	// Caller-supplied replay token
	IdempotencyKey string `json:"idempotency_key"`

	// Free-form annotations
	Metadata map[string]string `json:"metadata"`
}

// WebhookResponse acknowledges queuing, not ledger durability
// swagger:model WebhookResponse
type WebhookResponse struct {
	// Acknowledgement message
	// default: Transaction queued
	Message string `json:"message"`

	// Reference assigned to the transaction
	TxnRef string `json:"txn_ref"`
}

// NewWebhookHandler returns an HTTP handler for inbound transaction webhooks.
// @Summary Accept an inbound transaction
// @Description Validates the payload, assigns a reference when absent and enqueues the transaction for the drain loop. The response acknowledges queuing only.
// @Tags webhook
// @Accept json
// @Produce json
// @Param request body handlers.WebhookRequest true "Transaction payload"
// @Success 200 {object} handlers.WebhookResponse "Transaction queued"
// @Failure 400 {object} handlers.ErrorResponse "Invalid payload"
// @Router /webhook/transactions [post]
func NewWebhookHandler(q TransactionEnqueuer) http.HandlerFunc {
	validStatuses := map[string]struct{}{
		models.StatusPending:   {},
		models.StatusCompleted: {},
		models.StatusFailed:    {},
		models.StatusCancelled: {},
	}
	validTypes := map[string]struct{}{
		models.TypeTransfer:   {},
		models.TypeDeposit:    {},
		models.TypeWithdrawal: {},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req WebhookRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Log.Errorw("failed to decode webhook payload", "error", err)
			writeError(w, r, http.StatusBadRequest, "Invalid request body")
			return
		}

		if req.Amount <= 0 {
			logger.Log.Warnw("invalid webhook amount", "amount", req.Amount)
			writeError(w, r, http.StatusBadRequest, "Amount must be positive")
			return
		}
		if req.SenderID == "" || req.ReceiverID == "" ||
			req.SenderBank == "" || req.ReceiverBank == "" || req.Currency == "" {
			logger.Log.Warnw("missing required webhook fields",
				"sender_id", req.SenderID, "receiver_id", req.ReceiverID,
				"sender_bank", req.SenderBank, "receiver_bank", req.ReceiverBank, "currency", req.Currency)
			writeError(w, r, http.StatusBadRequest, "Missing required fields")
			return
		}

		if req.Type == "" {
			req.Type = models.TypeTransfer
		}
		if _, ok := validTypes[req.Type]; !ok {
			writeError(w, r, http.StatusBadRequest, "Unknown transaction type")
			return
		}

		if req.Status == "" {
			req.Status = models.StatusPending
		}
		if _, ok := validStatuses[req.Status]; !ok {
			writeError(w, r, http.StatusBadRequest, "Unknown transaction status")
			return
		}

		if req.TxnRef == "" {
			req.TxnRef = "TXN-" + uuid.New().String()
		}

		now := time.Now().UTC()
		q.Enqueue(models.Transaction{
			TxnRef:         req.TxnRef,
			SenderID:       req.SenderID,
			ReceiverID:     req.ReceiverID,
			SenderBank:     req.SenderBank,
			ReceiverBank:   req.ReceiverBank,
			Amount:         req.Amount,
			Currency:       req.Currency,
			Type:           req.Type,
			Status:         req.Status,
			CreatedAt:      now,
			UpdatedAt:      now,
			IdempotencyKey: req.IdempotencyKey,
			Metadata:       req.Metadata,
		}, now)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(WebhookResponse{
			Message: "Transaction queued",
			TxnRef:  req.TxnRef,
		})
	}
}
