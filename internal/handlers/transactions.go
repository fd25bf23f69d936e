package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sparksfinance/ledger-core/internal/jwt"
	"github.com/sparksfinance/ledger-core/internal/logger"
	"github.com/sparksfinance/ledger-core/internal/models"
	"github.com/sparksfinance/ledger-core/internal/services"
)

// TransactionsTokener defines only the methods needed by this handler.
type TransactionsTokener interface {
	GetTokenFromRequest(ctx context.Context, r *http.Request) (string, error)
	GetClaims(ctx context.Context, tokenString string) (*jwt.Claims, error)
}

// TransactionLister defines the interface that the service must implement.
type TransactionLister interface {
	List(ctx context.Context, accountID uuid.UUID, filter models.TransactionFilter) ([]models.TransactionDB, error)
}

// TransactionItem is one transaction in a listing
// swagger:model TransactionItem
type TransactionItem struct {
	Reference string    `json:"reference"`
	Sender    string    `json:"sender_account_id"`
	Receiver  string    `json:"receiver_account_id"`
	Amount    string    `json:"amount"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TransactionsResponse represents a transaction listing
// swagger:model TransactionsResponse
type TransactionsResponse struct {
	Transactions []TransactionItem `json:"transactions"`
}

// TransactionsErrorResponse represents an error response for listings
// swagger:model TransactionsErrorResponse
type TransactionsErrorResponse struct {
	// Error message
	// default: Unauthorized
	Error string `json:"error"`
}

// parseTimeParam parses an RFC 3339 query parameter, nil when absent.
func parseTimeParam(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// NewTransactionsHandler returns an HTTP handler that lists transactions
// touching the authenticated user's account.
// @Summary List transactions
// @Description Returns transactions where the caller's account is sender or receiver, newest first. Filterable by status and date range.
// @Tags transfer
// @Produce json
// @Param status query string false "completed or failed"
// @Param from query string false "RFC 3339 lower bound"
// @Param to query string false "RFC 3339 upper bound"
// @Param limit query int false "Maximum rows"
// @Success 200 {object} handlers.TransactionsResponse "Transactions"
// @Failure 400 {object} handlers.TransactionsErrorResponse "Bad filter"
// @Failure 401 {object} handlers.TransactionsErrorResponse "Unauthorized"
// @Router /transactions [get]
// @Security BearerAuth
func NewTransactionsHandler(svc TransactionLister, accounts AccountResolver, tokenGetter TransactionsTokener) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		tokenStr, err := tokenGetter.GetTokenFromRequest(ctx, r)
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(TransactionsErrorResponse{Error: "Unauthorized"})
			return
		}

		claims, err := tokenGetter.GetClaims(ctx, tokenStr)
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(TransactionsErrorResponse{Error: "Unauthorized"})
			return
		}

		status := r.URL.Query().Get("status")
		if status != "" && status != models.TransactionCompleted && status != models.TransactionFailed {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(TransactionsErrorResponse{Error: "Invalid status filter"})
			return
		}

		from, err := parseTimeParam(r.URL.Query().Get("from"))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(TransactionsErrorResponse{Error: "Invalid from filter"})
			return
		}
		to, err := parseTimeParam(r.URL.Query().Get("to"))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(TransactionsErrorResponse{Error: "Invalid to filter"})
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		acc, err := accounts.GetByUserID(ctx, claims.UserID)
		if err != nil {
			if err == services.ErrAccountNotFound {
				w.WriteHeader(http.StatusNotFound)
				json.NewEncoder(w).Encode(TransactionsErrorResponse{Error: "Account not found"})
				return
			}
			logger.Log.Errorw("failed to resolve account", "userID", claims.UserID, "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(TransactionsErrorResponse{Error: "Internal server error"})
			return
		}

		txns, err := svc.List(ctx, acc.AccountID, models.TransactionFilter{
			Status: status,
			From:   from,
			To:     to,
			Limit:  limit,
		})
		if err != nil {
			logger.Log.Errorw("failed to list transactions", "accountID", acc.AccountID, "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(TransactionsErrorResponse{Error: "Internal server error"})
			return
		}

		items := make([]TransactionItem, 0, len(txns))
		for _, txn := range txns {
			items = append(items, TransactionItem{
				Reference: txn.Reference,
				Sender:    txn.SenderID.String(),
				Receiver:  txn.ReceiverID.String(),
				Amount:    txn.Amount.StringFixed(2),
				Status:    txn.Status,
				Reason:    txn.Reason,
				CreatedAt: txn.CreatedAt,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(TransactionsResponse{Transactions: items})
	}
}
