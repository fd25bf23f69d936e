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

// TransferTokener defines only the methods needed by this handler.
type TransferTokener interface {
	GetTokenFromRequest(ctx context.Context, r *http.Request) (string, error)
	GetClaims(ctx context.Context, tokenString string) (*jwt.Claims, error)
}

// AccountResolver resolves the caller's account and the receiver's account.
type AccountResolver interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.AccountDB, error)
	GetByNumber(ctx context.Context, accountNumber string) (*models.AccountDB, error)
}

// Transferrer defines the interface that the transfer service must implement.
type Transferrer interface {
	Transfer(ctx context.Context, actor uuid.UUID, senderID, receiverID uuid.UUID, amount decimal.Decimal, meta services.RequestMeta) (*models.TransactionDB, error)
}

// TransferRequest represents the JSON body for a transfer
// swagger:model TransferRequest
type TransferRequest struct {
	// Receiver account number
	// required: true
	// default: SPF25010112345678
	ReceiverAccountNumber string `json:"receiver_account_number"`

	// Amount as a decimal string, at most 2 fraction digits
	// required: true
	// default: 30.00
	Amount string `json:"amount"`
}

// TransferResponse represents the outcome of a transfer attempt. Business
// rejections return 200 with status "failed" and a reason.
// swagger:model TransferResponse
type TransferResponse struct {
	// Transaction reference
	Reference string `json:"reference"`

	// completed or failed
	Status string `json:"status"`

	// Failure reason when status is failed
	Reason string `json:"reason,omitempty"`

	// Transferred amount
	Amount string `json:"amount"`
}

// TransferErrorResponse represents an error response for a transfer
// swagger:model TransferErrorResponse
type TransferErrorResponse struct {
	// Error message
	// default: Invalid amount
	Error string `json:"error"`
}

// NewTransferHandler returns an HTTP handler that moves funds from the
// authenticated user's account to the given receiver account.
// @Summary Transfer funds
// @Description Performs an atomic transfer. Insufficient balance is a business rejection: the call succeeds with status "failed".
// @Tags transfer
// @Accept json
// @Produce json
// @Param request body handlers.TransferRequest true "Transfer Request"
// @Success 200 {object} handlers.TransferResponse "Transfer outcome"
// @Failure 400 {object} handlers.TransferErrorResponse "Invalid amount or same account"
// @Failure 401 {object} handlers.TransferErrorResponse "Unauthorized"
// @Failure 404 {object} handlers.TransferErrorResponse "Account not found"
// @Router /transfer [post]
// @Security BearerAuth
func NewTransferHandler(svc Transferrer, accounts AccountResolver, tokenGetter TransferTokener) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		tokenStr, err := tokenGetter.GetTokenFromRequest(ctx, r)
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(TransferErrorResponse{Error: "Unauthorized"})
			return
		}

		claims, err := tokenGetter.GetClaims(ctx, tokenStr)
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(TransferErrorResponse{Error: "Unauthorized"})
			return
		}

		var req TransferRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(TransferErrorResponse{Error: "Invalid request body"})
			return
		}

		amount, err := decimal.NewFromString(req.Amount)
		if err != nil || !amount.Equal(amount.Truncate(2)) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(TransferErrorResponse{Error: "Invalid amount"})
			return
		}

		sender, err := accounts.GetByUserID(ctx, claims.UserID)
		if err != nil {
			writeAccountError(w, claims.UserID, err)
			return
		}

		receiver, err := accounts.GetByNumber(ctx, req.ReceiverAccountNumber)
		if err != nil {
			writeAccountError(w, claims.UserID, err)
			return
		}

		txn, err := svc.Transfer(ctx, claims.UserID, sender.AccountID, receiver.AccountID, amount, requestMeta(r))
		if err != nil {
			switch err {
			case services.ErrInvalidAmount:
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(TransferErrorResponse{Error: "Invalid amount"})
			case services.ErrSameAccount:
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(TransferErrorResponse{Error: "Cannot transfer to the same account"})
			case services.ErrAccountNotFound:
				w.WriteHeader(http.StatusNotFound)
				json.NewEncoder(w).Encode(TransferErrorResponse{Error: "Account not found"})
			default:
				logger.Log.Errorw("transfer failed", "userID", claims.UserID, "error", err)
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(TransferErrorResponse{Error: "Internal server error"})
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(TransferResponse{
			Reference: txn.Reference,
			Status:    txn.Status,
			Reason:    txn.Reason,
			Amount:    txn.Amount.StringFixed(2),
		})
	}
}

func writeAccountError(w http.ResponseWriter, userID uuid.UUID, err error) {
	if err == services.ErrAccountNotFound {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(TransferErrorResponse{Error: "Account not found"})
		return
	}
	logger.Log.Errorw("failed to resolve account", "userID", userID, "error", err)
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(TransferErrorResponse{Error: "Internal server error"})
}
