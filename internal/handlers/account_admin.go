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

// AccountAdminTokener defines only the methods needed by these handlers.
type AccountAdminTokener interface {
	GetTokenFromRequest(ctx context.Context, r *http.Request) (string, error)
	GetClaims(ctx context.Context, tokenString string) (*jwt.Claims, error)
}

// AccountAdmin defines the account maintenance operations.
type AccountAdmin interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.AccountDB, error)
	Deactivate(ctx context.Context, actor uuid.UUID, accountID uuid.UUID, reason string, meta services.RequestMeta) error
	UpdateDailyLimit(ctx context.Context, actor uuid.UUID, accountID uuid.UUID, newLimit decimal.Decimal, meta services.RequestMeta) error
}

// DeactivateRequest represents the JSON body for account deactivation
// swagger:model DeactivateRequest
type DeactivateRequest struct {
	// Deactivation reason
	Reason string `json:"reason"`
}

// DailyLimitRequest represents the JSON body for a daily limit update
// swagger:model DailyLimitRequest
type DailyLimitRequest struct {
	// New daily limit as a decimal string
	// required: true
	// default: 50000.00
	DailyLimit string `json:"daily_limit"`
}

// AccountAdminResponse represents a successful maintenance response
// swagger:model AccountAdminResponse
type AccountAdminResponse struct {
	// Success message
	Message string `json:"message"`
}

// AccountAdminErrorResponse represents an error response for maintenance
// swagger:model AccountAdminErrorResponse
type AccountAdminErrorResponse struct {
	// Error message
	// default: Unauthorized
	Error string `json:"error"`
}

func resolveOwnAccount(w http.ResponseWriter, r *http.Request, svc AccountAdmin, tokenGetter AccountAdminTokener) (*jwt.Claims, *models.AccountDB, bool) {
	ctx := r.Context()

	tokenStr, err := tokenGetter.GetTokenFromRequest(ctx, r)
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(AccountAdminErrorResponse{Error: "Unauthorized"})
		return nil, nil, false
	}

	claims, err := tokenGetter.GetClaims(ctx, tokenStr)
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(AccountAdminErrorResponse{Error: "Unauthorized"})
		return nil, nil, false
	}

	acc, err := svc.GetByUserID(ctx, claims.UserID)
	if err != nil {
		if err == services.ErrAccountNotFound {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(AccountAdminErrorResponse{Error: "Account not found"})
			return nil, nil, false
		}
		logger.Log.Errorw("failed to resolve account", "userID", claims.UserID, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(AccountAdminErrorResponse{Error: "Internal server error"})
		return nil, nil, false
	}

	return claims, acc, true
}

// NewDeactivateAccountHandler returns an HTTP handler that soft-disables
// the authenticated user's account.
// @Summary Deactivate account
// @Description Soft-disables the caller's account. Inactive accounts reject transfers; they are never deleted.
// @Tags account
// @Accept json
// @Produce json
// @Param request body handlers.DeactivateRequest true "Deactivation request"
// @Success 200 {object} handlers.AccountAdminResponse "Account deactivated"
// @Failure 401 {object} handlers.AccountAdminErrorResponse "Unauthorized"
// @Router /account/deactivate [post]
// @Security BearerAuth
func NewDeactivateAccountHandler(svc AccountAdmin, tokenGetter AccountAdminTokener) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, acc, ok := resolveOwnAccount(w, r, svc, tokenGetter)
		if !ok {
			return
		}

		var req DeactivateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(AccountAdminErrorResponse{Error: "Invalid request body"})
			return
		}

		if err := svc.Deactivate(r.Context(), claims.UserID, acc.AccountID, req.Reason, requestMeta(r)); err != nil {
			logger.Log.Errorw("failed to deactivate account", "accountID", acc.AccountID, "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(AccountAdminErrorResponse{Error: "Internal server error"})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(AccountAdminResponse{Message: "Account deactivated successfully"})
	}
}

// NewUpdateDailyLimitHandler returns an HTTP handler that updates the
// daily transfer limit of the authenticated user's account.
// @Summary Update daily transfer limit
// @Description Changes the per-day transfer cap of the caller's account.
// @Tags account
// @Accept json
// @Produce json
// @Param request body handlers.DailyLimitRequest true "Daily limit request"
// @Success 200 {object} handlers.AccountAdminResponse "Limit updated"
// @Failure 400 {object} handlers.AccountAdminErrorResponse "Invalid limit"
// @Failure 401 {object} handlers.AccountAdminErrorResponse "Unauthorized"
// @Router /account/limit [post]
// @Security BearerAuth
func NewUpdateDailyLimitHandler(svc AccountAdmin, tokenGetter AccountAdminTokener) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, acc, ok := resolveOwnAccount(w, r, svc, tokenGetter)
		if !ok {
			return
		}

		var req DailyLimitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(AccountAdminErrorResponse{Error: "Invalid request body"})
			return
		}

		limit, err := decimal.NewFromString(req.DailyLimit)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(AccountAdminErrorResponse{Error: "Invalid limit"})
			return
		}

		if err := svc.UpdateDailyLimit(r.Context(), claims.UserID, acc.AccountID, limit, requestMeta(r)); err != nil {
			switch err {
			case services.ErrInvalidLimit:
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(AccountAdminErrorResponse{Error: "Invalid limit"})
			default:
				logger.Log.Errorw("failed to update daily limit", "accountID", acc.AccountID, "error", err)
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(AccountAdminErrorResponse{Error: "Internal server error"})
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(AccountAdminResponse{Message: "Daily limit updated successfully"})
	}
}
