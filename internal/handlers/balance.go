package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sparksfinance/ledger-core/internal/jwt"
	"github.com/sparksfinance/ledger-core/internal/logger"
	"github.com/sparksfinance/ledger-core/internal/models"
	"github.com/sparksfinance/ledger-core/internal/services"
)

// BalanceTokener defines only the methods needed by this handler.
type BalanceTokener interface {
	GetTokenFromRequest(ctx context.Context, r *http.Request) (string, error)
	GetClaims(ctx context.Context, tokenString string) (*jwt.Claims, error)
}

// BalanceReader defines the interface that the service must implement.
type BalanceReader interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.AccountDB, error)
	GetBalance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)
}

// BalanceResponse represents a successful response with the account balance
// swagger:model BalanceResponse
type BalanceResponse struct {
	// Account number
	AccountNumber string `json:"account_number"`

	// Current balance as a decimal string with 2 fraction digits
	// default: 100.00
	Balance string `json:"balance"`
}

// BalanceErrorResponse represents an error response when fetching balance
// swagger:model BalanceErrorResponse
type BalanceErrorResponse struct {
	// Error message
	// default: Unauthorized
	Error string `json:"error"`
}

// NewGetBalanceHandler returns an HTTP handler for fetching the balance of
// the authenticated user's account.
// @Summary Get account balance
// @Description Returns the committed balance of the caller's account.
// @Tags account
// @Produce json
// @Success 200 {object} handlers.BalanceResponse "Account balance"
// @Failure 401 {object} handlers.BalanceErrorResponse "Unauthorized"
// @Failure 404 {object} handlers.BalanceErrorResponse "Account not found"
// @Router /balance [get]
// @Security BearerAuth
func NewGetBalanceHandler(svc BalanceReader, tokenGetter BalanceTokener) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		tokenStr, err := tokenGetter.GetTokenFromRequest(ctx, r)
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(BalanceErrorResponse{Error: "Unauthorized"})
			return
		}

		claims, err := tokenGetter.GetClaims(ctx, tokenStr)
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(BalanceErrorResponse{Error: "Unauthorized"})
			return
		}

		acc, err := svc.GetByUserID(ctx, claims.UserID)
		if err != nil {
			if err == services.ErrAccountNotFound {
				w.WriteHeader(http.StatusNotFound)
				json.NewEncoder(w).Encode(BalanceErrorResponse{Error: "Account not found"})
				return
			}
			logger.Log.Errorw("failed to resolve account", "userID", claims.UserID, "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(BalanceErrorResponse{Error: "Internal server error"})
			return
		}

		balance, err := svc.GetBalance(ctx, acc.AccountID)
		if err != nil {
			logger.Log.Errorw("failed to get balance", "accountID", acc.AccountID, "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(BalanceErrorResponse{Error: "Internal server error"})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(BalanceResponse{
			AccountNumber: acc.AccountNumber,
			Balance:       balance.StringFixed(2),
		})
	}
}
