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
)

// AuditTokener defines only the methods needed by this handler.
type AuditTokener interface {
	GetTokenFromRequest(ctx context.Context, r *http.Request) (string, error)
	GetClaims(ctx context.Context, tokenString string) (*jwt.Claims, error)
}

// ActivityReader defines the interface that the service must implement.
type ActivityReader interface {
	Activity(ctx context.Context, actor uuid.UUID, limit int) ([]models.AuditLogDB, error)
}

// AuditItem is one audit entry in a listing
// swagger:model AuditItem
type AuditItem struct {
	Action    string    `json:"action"`
	Target    string    `json:"target"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditResponse represents an audit activity listing
// swagger:model AuditResponse
type AuditResponse struct {
	Activity []AuditItem `json:"activity"`
}

// AuditErrorResponse represents an error response for audit listings
// swagger:model AuditErrorResponse
type AuditErrorResponse struct {
	// Error message
	// default: Unauthorized
	Error string `json:"error"`
}

// NewAuditHandler returns an HTTP handler that lists the authenticated
// user's recent audit activity.
// @Summary Recent activity
// @Description Returns the caller's most recent audit log entries, newest first.
// @Tags audit
// @Produce json
// @Param limit query int false "Maximum rows, default 50"
// @Success 200 {object} handlers.AuditResponse "Activity"
// @Failure 401 {object} handlers.AuditErrorResponse "Unauthorized"
// @Router /audit [get]
// @Security BearerAuth
func NewAuditHandler(svc ActivityReader, tokenGetter AuditTokener) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		tokenStr, err := tokenGetter.GetTokenFromRequest(ctx, r)
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(AuditErrorResponse{Error: "Unauthorized"})
			return
		}

		claims, err := tokenGetter.GetClaims(ctx, tokenStr)
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(AuditErrorResponse{Error: "Unauthorized"})
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		entries, err := svc.Activity(ctx, claims.UserID, limit)
		if err != nil {
			logger.Log.Errorw("failed to list activity", "userID", claims.UserID, "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(AuditErrorResponse{Error: "Internal server error"})
			return
		}

		items := make([]AuditItem, 0, len(entries))
		for _, e := range entries {
			items = append(items, AuditItem{
				Action:    e.Action,
				Target:    e.Target,
				Detail:    e.Detail,
				CreatedAt: e.CreatedAt,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(AuditResponse{Activity: items})
	}
}
