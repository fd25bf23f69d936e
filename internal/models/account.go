package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountDB represents a bank account row in the database.
// Balance is stored as NUMERIC(12,2); it is mutated only inside a locked
// unit of work and never goes negative.
type AccountDB struct {
	AccountID          uuid.UUID       `json:"account_id" db:"account_id"`                     // Primary key
	UserID             uuid.UUID       `json:"user_id" db:"user_id"`                           // Owner, assigned at creation, immutable
	AccountNumber      string          `json:"account_number" db:"account_number"`             // Unique external identifier, never reused
	Balance            decimal.Decimal `json:"balance" db:"balance"`                           // Current balance, scale 2
	IsActive           bool            `json:"is_active" db:"is_active"`                       // Soft-disabled accounts reject transfers
	DailyTransferLimit decimal.Decimal `json:"daily_transfer_limit" db:"daily_transfer_limit"` // Maximum amount sendable per calendar day (UTC)
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at" db:"updated_at"`
}
