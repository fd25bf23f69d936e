package models

import (
	"time"

	"github.com/google/uuid"
)

// Audit actions recorded for every significant state change.
const (
	AuditAccountCreated       = "account_created"
	AuditAccountUpdated       = "account_updated"
	AuditTransactionCompleted = "transaction_completed"
	AuditTransactionFailed    = "transaction_failed"
	AuditUserRegistered       = "user_registered"
	AuditUserLogin            = "user_login"
)

// AuditLogDB represents an append-only audit log row.
type AuditLogDB struct {
	AuditID   uuid.UUID     `json:"audit_id" db:"audit_id"` // Primary key
	Actor     uuid.NullUUID `json:"actor,omitempty" db:"actor"`
	Action    string        `json:"action" db:"action"`
	Target    string        `json:"target" db:"target"` // Account number or transaction reference the action applied to
	Detail    string        `json:"detail" db:"detail"`
	IPAddress string        `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent string        `json:"user_agent,omitempty" db:"user_agent"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}
