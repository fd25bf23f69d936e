package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sparksfinance/ledger-core/internal/jwt"
	"github.com/sparksfinance/ledger-core/internal/logger"
	"github.com/sparksfinance/ledger-core/internal/models"
	"github.com/sparksfinance/ledger-core/internal/services"
)

// StatementTokener defines only the methods needed by this handler.
type StatementTokener interface {
	GetTokenFromRequest(ctx context.Context, r *http.Request) (string, error)
	GetClaims(ctx context.Context, tokenString string) (*jwt.Claims, error)
}

// StatementBuilder defines the interface that the service must implement.
type StatementBuilder interface {
	GetStatement(ctx context.Context, acc *models.AccountDB, from, to *time.Time) (*services.Statement, error)
}

// StatementResponse represents an account statement
// swagger:model StatementResponse
type StatementResponse struct {
	AccountNumber  string            `json:"account_number"`
	Transactions   []TransactionItem `json:"transactions"`
	SentTotal      string            `json:"sent_total"`
	ReceivedTotal  string            `json:"received_total"`
	NetChange      string            `json:"net_change"`
	OpeningBalance string            `json:"opening_balance"`
	ClosingBalance string            `json:"closing_balance"`
}

// StatementErrorResponse represents an error response for statements
// swagger:model StatementErrorResponse
type StatementErrorResponse struct {
	// Error message
	// default: Unauthorized
	Error string `json:"error"`
}

// NewStatementHandler returns an HTTP handler that builds an account
// statement for the authenticated user.
// @Summary Account statement
// @Description Completed transactions over a period with totals and opening/closing balance, oldest first.
// @Tags transfer
// @Produce json
// @Param from query string false "RFC 3339 lower bound"
// @Param to query string false "RFC 3339 upper bound"
// @Success 200 {object} handlers.StatementResponse "Statement"
// @Failure 401 {object} handlers.StatementErrorResponse "Unauthorized"
// @Router /statement [get]
// @Security BearerAuth
func NewStatementHandler(svc StatementBuilder, accounts AccountResolver, tokenGetter StatementTokener) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		tokenStr, err := tokenGetter.GetTokenFromRequest(ctx, r)
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(StatementErrorResponse{Error: "Unauthorized"})
			return
		}

		claims, err := tokenGetter.GetClaims(ctx, tokenStr)
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(StatementErrorResponse{Error: "Unauthorized"})
			return
		}

		from, err := parseTimeParam(r.URL.Query().Get("from"))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(StatementErrorResponse{Error: "Invalid from filter"})
			return
		}
		to, err := parseTimeParam(r.URL.Query().Get("to"))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(StatementErrorResponse{Error: "Invalid to filter"})
			return
		}

		acc, err := accounts.GetByUserID(ctx, claims.UserID)
		if err != nil {
			if err == services.ErrAccountNotFound {
				w.WriteHeader(http.StatusNotFound)
				json.NewEncoder(w).Encode(StatementErrorResponse{Error: "Account not found"})
				return
			}
			logger.Log.Errorw("failed to resolve account", "userID", claims.UserID, "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(StatementErrorResponse{Error: "Internal server error"})
			return
		}

		stmt, err := svc.GetStatement(ctx, acc, from, to)
		if err != nil {
			logger.Log.Errorw("failed to build statement", "accountID", acc.AccountID, "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(StatementErrorResponse{Error: "Internal server error"})
			return
		}

		items := make([]TransactionItem, 0, len(stmt.Transactions))
		for _, txn := range stmt.Transactions {
			items = append(items, TransactionItem{
				Reference: txn.Reference,
				Sender:    txn.SenderID.String(),
				Receiver:  txn.ReceiverID.String(),
				Amount:    txn.Amount.StringFixed(2),
				Status:    txn.Status,
				CreatedAt: txn.CreatedAt,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(StatementResponse{
			AccountNumber:  acc.AccountNumber,
			Transactions:   items,
			SentTotal:      stmt.SentTotal.StringFixed(2),
			ReceivedTotal:  stmt.ReceivedTotal.StringFixed(2),
			NetChange:      stmt.NetChange.StringFixed(2),
			OpeningBalance: stmt.OpeningBalance.StringFixed(2),
			ClosingBalance: stmt.ClosingBalance.StringFixed(2),
		})
	}
}
