package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sbilibin2017/gw-settlement-ledger/internal/jwt"
	"github.com/sbilibin2017/gw-settlement-ledger/internal/logger"
	"github.com/sbilibin2017/gw-settlement-ledger/internal/middlewares"
	"github.com/sbilibin2017/gw-settlement-ledger/internal/models"
	"github.com/sbilibin2017/gw-settlement-ledger/internal/services"
)

// SettleTokener defines only the methods needed by this handler.
type SettleTokener interface {
	GetTokenFromRequest(ctx context.Context, r *http.Request) (string, error)
	GetClaims(ctx context.Context, tokenString string) (*jwt.Claims, error)
}

// Settler defines the interface that the service must implement.
type Settler interface {
	Settle(ctx context.Context, authorizedBy string, force bool, idempotencyKey string) (*models.SettlementResult, error)
}

// SettleRequest represents the JSON body for triggering a settlement batch
// swagger:model SettleRequest
type SettleRequest struct {
	// Operator authorizing the batch; must match the authenticated username
	// required: true
	// default: ops_admin
	AuthorizedBy string `json:"authorized_by"`

	// Settle the oldest subset fitting the available reserve instead of all-or-nothing
	// default: false
	Force bool `json:"force"`
}

// SettleResponse represents a successful settlement response
// swagger:model SettleResponse
type SettleResponse struct {
	// Success message
	// default: Settlement completed
	Message string `json:"message"`

	// Outcome of the batch
	Result models.SettlementResult `json:"result"`
}

// SettleConflictResponse reports a rejected batch and its shortfall
// swagger:model SettleConflictResponse
type SettleConflictResponse struct {
	// Error message
	// default: Insufficient reserve
	Error string `json:"error"`

	// Amount by which the batch exceeded the available reserve
	Shortfall float64 `json:"shortfall"`

	// Available reserve at the time of rejection
	ReserveAvailable float64 `json:"reserve_available"`

	// Correlation id for log cross-referencing
	CorrelationID string `json:"correlation_id"`

	// Time the error was produced
	Timestamp time.Time `json:"timestamp"`
}

// NewSettleHandler returns an HTTP handler for triggering settlement batches.
// @Summary Settle pending transactions
// @Description Runs a settlement batch over the pending set. Requires the admin role; authorized_by must match the authenticated username. An Idempotency-Key header makes the call replay-safe.
// @Tags settlement
// @Accept json
// @Produce json
// @Param request body handlers.SettleRequest true "Settlement request"
// @Param Idempotency-Key header string false "Replay token"
// @Success 200 {object} handlers.SettleResponse "Batch settled"
// @Failure 400 {object} handlers.ErrorResponse "Invalid request or authorizer mismatch"
// @Failure 401 {object} handlers.ErrorResponse "Unauthorized"
// @Failure 403 {object} handlers.ErrorResponse "Admin role required"
// @Failure 409 {object} handlers.SettleConflictResponse "Insufficient reserve"
// @Router /settlements [post]
// @Security BearerAuth
func NewSettleHandler(svc Settler, tokenGetter SettleTokener) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		tokenStr, err := tokenGetter.GetTokenFromRequest(ctx, r)
		if err != nil {
			logger.Log.Errorw("failed to get token from request", "error", err)
			writeError(w, r, http.StatusUnauthorized, "Unauthorized")
			return
		}

		claims, err := tokenGetter.GetClaims(ctx, tokenStr)
		if err != nil {
			logger.Log.Errorw("failed to get claims from token", "error", err)
			writeError(w, r, http.StatusUnauthorized, "Unauthorized")
			return
		}

		if claims.Role != models.RoleAdmin {
			logger.Log.Warnw("settlement denied", "username", claims.Username, "role", claims.Role)
			writeError(w, r, http.StatusForbidden, "Admin role required")
			return
		}

		var req SettleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Log.Errorw("failed to decode settle request", "error", err)
			writeError(w, r, http.StatusBadRequest, "Invalid request body")
			return
		}

		if req.AuthorizedBy != claims.Username {
			logger.Log.Warnw("authorizer mismatch", "claimed", req.AuthorizedBy, "authenticated", claims.Username)
			writeError(w, r, http.StatusBadRequest, "authorized_by must match the authenticated user")
			return
		}

		result, err := svc.Settle(ctx, req.AuthorizedBy, req.Force, r.Header.Get("Idempotency-Key"))
		if err != nil {
			if errors.Is(err, services.ErrReserveExhausted) && result != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusConflict)
				json.NewEncoder(w).Encode(SettleConflictResponse{
					Error:            "Insufficient reserve",
					Shortfall:        result.Shortfall,
					ReserveAvailable: result.ReserveAvailable,
					CorrelationID:    middlewares.RequestIDFromContext(ctx),
					Timestamp:        time.Now().UTC(),
				})
				return
			}
			logger.Log.Errorw("settlement failed", "authorized_by", req.AuthorizedBy, "force", req.Force, "error", err)
			writeError(w, r, http.StatusInternalServerError, "Internal server error")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(SettleResponse{
			Message: "Settlement completed",
			Result:  *result,
		})
	}
}
