package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sparksfinance/ledger-core/internal/logger"
	"github.com/sparksfinance/ledger-core/internal/models"
)

// AuditWriteRepository appends audit log rows. The table is append-only;
// joining the caller's transaction makes the audit entry and the operation
// it describes commit atomically.
type AuditWriteRepository struct {
	db       *sqlx.DB
	txGetter func(ctx context.Context) *sqlx.Tx
}

func NewAuditWriteRepository(db *sqlx.DB, txGetter func(ctx context.Context) *sqlx.Tx) *AuditWriteRepository {
	return &AuditWriteRepository{db: db, txGetter: txGetter}
}

func (r *AuditWriteRepository) executor(ctx context.Context) sqlx.ExtContext {
	if r.txGetter != nil {
		if txx := r.txGetter(ctx); txx != nil {
			return txx
		}
	}
	return r.db
}

// Save appends one immutable audit entry.
func (r *AuditWriteRepository) Save(ctx context.Context, entry *models.AuditLogDB) error {
	query := `
		INSERT INTO audit_logs (audit_id, actor, action, target, detail, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`
	args := []any{entry.AuditID, entry.Actor, entry.Action, entry.Target, entry.Detail, entry.IPAddress, entry.UserAgent}

	_, err := r.executor(ctx).ExecContext(ctx, query, args...)

	logger.Log.Infow("query executed", "query", squish(query), "args", args, "error", err)

	return err
}

// AuditReadRepository lists audit entries.
type AuditReadRepository struct {
	db *sqlx.DB
}

func NewAuditReadRepository(db *sqlx.DB) *AuditReadRepository {
	return &AuditReadRepository{db: db}
}

// ListByActor returns the most recent entries for an actor, newest first.
func (r *AuditReadRepository) ListByActor(ctx context.Context, actor uuid.UUID, limit int) ([]models.AuditLogDB, error) {
	query := `
		SELECT audit_id, actor, action, target, detail, ip_address, user_agent, created_at
		FROM audit_logs
		WHERE actor = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	args := []any{actor, limit}

	var entries []models.AuditLogDB
	err := r.db.SelectContext(ctx, &entries, query, args...)

	logger.Log.Infow("query executed", "query", squish(query), "args", args, "result", len(entries), "error", err)

	if err != nil {
		return nil, err
	}
	return entries, nil
}
