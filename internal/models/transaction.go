package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction statuses. A row is written exactly once per transfer attempt
// that passed input validation and is never mutated afterwards.
const (
	TransactionCompleted = "completed"
	TransactionFailed    = "failed"
)

// TransactionDB represents a transaction row in the database.
type TransactionDB struct {
	TransactionID uuid.UUID `json:"transaction_id" db:"transaction_id"` // Primary key
	Reference     string    `json:"reference" db:"reference"`           // External reference, TXN + yyyymmdd + 8 hex chars
	SenderID      uuid.UUID `json:"sender_account_id" db:"sender_account_id"`
	ReceiverID    uuid.UUID `json:"receiver_account_id" db:"receiver_account_id"`

	Amount decimal.Decimal `json:"amount" db:"amount"` // Strictly positive, scale 2
	Status string          `json:"status" db:"status"`
	Reason string          `json:"reason,omitempty" db:"reason"` // Failure cause when status is failed

	// Balance snapshots taken under lock, null on failed transfers.
	SenderBalanceBefore   decimal.NullDecimal `json:"sender_balance_before,omitempty" db:"sender_balance_before"`
	SenderBalanceAfter    decimal.NullDecimal `json:"sender_balance_after,omitempty" db:"sender_balance_after"`
	ReceiverBalanceBefore decimal.NullDecimal `json:"receiver_balance_before,omitempty" db:"receiver_balance_before"`
	ReceiverBalanceAfter  decimal.NullDecimal `json:"receiver_balance_after,omitempty" db:"receiver_balance_after"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TransactionFilter narrows transaction listings.
type TransactionFilter struct {
	Status string     // completed or failed, empty for both
	From   *time.Time // created_at lower bound, inclusive
	To     *time.Time // created_at upper bound, inclusive
	Limit  int        // 0 means no limit
}
