package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/sparksfinance/ledger-core/internal/jwt"
	"github.com/sparksfinance/ledger-core/internal/logger"
	"github.com/sparksfinance/ledger-core/internal/models"
	"github.com/sparksfinance/ledger-core/internal/services"
)

// CreateAccountTokener defines only the methods needed by this handler.
type CreateAccountTokener interface {
	GetTokenFromRequest(ctx context.Context, r *http.Request) (string, error)
	GetClaims(ctx context.Context, tokenString string) (*jwt.Claims, error)
}

// AccountCreator defines the interface that the service must implement.
type AccountCreator interface {
	Create(ctx context.Context, userID uuid.UUID, meta services.RequestMeta) (*models.AccountDB, error)
}

// CreateAccountResponse represents a successful account creation response
// swagger:model CreateAccountResponse
type CreateAccountResponse struct {
	// Success message
	// default: Account created successfully
	Message string `json:"message"`

	// Generated unique account number
	AccountNumber string `json:"account_number"`

	// Opening balance, always 0.00
	Balance string `json:"balance"`
}

// CreateAccountErrorResponse represents an error response for account creation
// swagger:model CreateAccountErrorResponse
type CreateAccountErrorResponse struct {
	// Error message
	// default: User already has an account
	Error string `json:"error"`
}

// NewCreateAccountHandler returns an HTTP handler that opens an account
// for the authenticated user.
// @Summary Create account
// @Description Opens a zero-balance account with a generated unique account number.
// @Tags account
// @Produce json
// @Success 201 {object} handlers.CreateAccountResponse "Account created"
// @Failure 400 {object} handlers.CreateAccountErrorResponse "User already has an account"
// @Failure 401 {object} handlers.CreateAccountErrorResponse "Unauthorized"
// @Router /account [post]
// @Security BearerAuth
func NewCreateAccountHandler(svc AccountCreator, tokenGetter CreateAccountTokener) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		tokenStr, err := tokenGetter.GetTokenFromRequest(ctx, r)
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(CreateAccountErrorResponse{Error: "Unauthorized"})
			return
		}

		claims, err := tokenGetter.GetClaims(ctx, tokenStr)
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(CreateAccountErrorResponse{Error: "Unauthorized"})
			return
		}

		acc, err := svc.Create(ctx, claims.UserID, requestMeta(r))
		if err != nil {
			switch err {
			case services.ErrAccountExists:
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(CreateAccountErrorResponse{Error: "User already has an account"})
			default:
				logger.Log.Errorw("failed to create account", "userID", claims.UserID, "error", err)
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(CreateAccountErrorResponse{Error: "Internal server error"})
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(CreateAccountResponse{
			Message:       "Account created successfully",
			AccountNumber: acc.AccountNumber,
			Balance:       acc.Balance.StringFixed(2),
		})
	}
}
