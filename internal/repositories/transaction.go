package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/sparksfinance/ledger-core/internal/logger"
	"github.com/sparksfinance/ledger-core/internal/models"
)

// TransactionWriteRepository appends transaction records. Rows are written
// exactly once per transfer attempt and never updated or deleted.
type TransactionWriteRepository struct {
	db       *sqlx.DB
	txGetter func(ctx context.Context) *sqlx.Tx
}

func NewTransactionWriteRepository(db *sqlx.DB, txGetter func(ctx context.Context) *sqlx.Tx) *TransactionWriteRepository {
	return &TransactionWriteRepository{db: db, txGetter: txGetter}
}

func (r *TransactionWriteRepository) executor(ctx context.Context) sqlx.ExtContext {
	if r.txGetter != nil {
		if txx := r.txGetter(ctx); txx != nil {
			return txx
		}
	}
	return r.db
}

// Save inserts the permanent record of a transfer attempt.
func (r *TransactionWriteRepository) Save(ctx context.Context, txn *models.TransactionDB) error {
	query := `
		INSERT INTO transactions (
			transaction_id, reference, sender_account_id, receiver_account_id,
			amount, status, reason,
			sender_balance_before, sender_balance_after,
			receiver_balance_before, receiver_balance_after,
			created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
	`
	args := []any{
		txn.TransactionID, txn.Reference, txn.SenderID, txn.ReceiverID,
		txn.Amount, txn.Status, txn.Reason,
		txn.SenderBalanceBefore, txn.SenderBalanceAfter,
		txn.ReceiverBalanceBefore, txn.ReceiverBalanceAfter,
	}

	_, err := r.executor(ctx).ExecContext(ctx, query, args...)

	logger.Log.Infow("query executed", "query", squish(query), "args", args, "error", err)

	return err
}

// TransactionReadRepository handles transaction listings and aggregates.
// It joins an in-flight unit of work via the txGetter so the daily-limit
// aggregate reads the same snapshot the transfer commits into, on the
// transfer's own connection.
type TransactionReadRepository struct {
	db       *sqlx.DB
	txGetter func(ctx context.Context) *sqlx.Tx
}

func NewTransactionReadRepository(db *sqlx.DB, txGetter func(ctx context.Context) *sqlx.Tx) *TransactionReadRepository {
	return &TransactionReadRepository{db: db, txGetter: txGetter}
}

func (r *TransactionReadRepository) executor(ctx context.Context) sqlx.ExtContext {
	if r.txGetter != nil {
		if txx := r.txGetter(ctx); txx != nil {
			return txx
		}
	}
	return r.db
}

const transactionColumns = `
	transaction_id, reference, sender_account_id, receiver_account_id,
	amount, status, reason,
	sender_balance_before, sender_balance_after,
	receiver_balance_before, receiver_balance_after,
	created_at
`

// ListByAccount returns transactions where the account is sender or
// receiver, newest first, narrowed by the filter.
func (r *TransactionReadRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, filter models.TransactionFilter) ([]models.TransactionDB, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE (sender_account_id = $1 OR receiver_account_id = $1)
		  AND ($2::VARCHAR IS NULL OR status = $2)
		  AND ($3::TIMESTAMPTZ IS NULL OR created_at >= $3)
		  AND ($4::TIMESTAMPTZ IS NULL OR created_at <= $4)
		ORDER BY created_at DESC
		LIMIT CASE WHEN $5::INT > 0 THEN $5::INT ELSE NULL END
	`

	var status *string
	if filter.Status != "" {
		status = &filter.Status
	}
	args := []any{accountID, status, filter.From, filter.To, filter.Limit}

	var txns []models.TransactionDB
	err := sqlx.SelectContext(ctx, r.executor(ctx), &txns, query, args...)

	logger.Log.Infow("query executed", "query", squish(query), "args", args, "result", len(txns), "error", err)

	if err != nil {
		return nil, err
	}
	return txns, nil
}

// SentTotalSince sums the amounts of completed transfers sent by the
// account since the given instant. Used for the daily transfer limit.
func (r *TransactionReadRepository) SentTotalSince(ctx context.Context, accountID uuid.UUID, since time.Time) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE sender_account_id = $1
		  AND status = $2
		  AND created_at >= $3
	`
	args := []any{accountID, models.TransactionCompleted, since}

	var total decimal.Decimal
	err := sqlx.GetContext(ctx, r.executor(ctx), &total, query, args...)

	logger.Log.Infow("query executed", "query", squish(query), "args", args, "result", total, "error", err)

	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}
