package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/sparksfinance/ledger-core/internal/logger"
	"github.com/sparksfinance/ledger-core/internal/models"
)

// squish collapses a multi-line query into one line for logging.
func squish(query string) string {
	return strings.Join(strings.Fields(query), " ")
}

// Unique constraints the services branch on. Postgres derives these names
// from the table and column of each UNIQUE clause in the schema.
const (
	ConstraintAccountsUserID  = "accounts_user_id_key"
	ConstraintAccountsNumber  = "accounts_account_number_key"
	ConstraintTransactionsRef = "transactions_reference_key"
)

// IsUniqueViolation reports whether err is a Postgres unique constraint
// violation (used for account number collisions and duplicate users).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsUniqueViolationOn reports whether err is a unique violation of the
// named constraint. Lets callers tell an account number collision apart
// from two creates racing on the same user.
func IsUniqueViolationOn(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}

// AccountReadRepository handles unlocked account reads at the store's
// normal isolation level.
type AccountReadRepository struct {
	db *sqlx.DB
}

func NewAccountReadRepository(db *sqlx.DB) *AccountReadRepository {
	return &AccountReadRepository{db: db}
}

const accountColumns = `
	account_id, user_id, account_number, balance, is_active,
	daily_transfer_limit, created_at, updated_at
`

// GetByID returns the committed account row, or nil when it does not exist.
func (r *AccountReadRepository) GetByID(ctx context.Context, accountID uuid.UUID) (*models.AccountDB, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_id = $1`

	var acc models.AccountDB
	err := r.db.GetContext(ctx, &acc, query, accountID)

	logger.Log.Infow("query executed", "query", squish(query), "args", []any{accountID}, "error", err)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// GetByUserID returns the account owned by the given user, or nil.
func (r *AccountReadRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.AccountDB, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1`

	var acc models.AccountDB
	err := r.db.GetContext(ctx, &acc, query, userID)

	logger.Log.Infow("query executed", "query", squish(query), "args", []any{userID}, "error", err)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// GetByNumber returns the account with the given account number, or nil.
func (r *AccountReadRepository) GetByNumber(ctx context.Context, accountNumber string) (*models.AccountDB, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = $1`

	var acc models.AccountDB
	err := r.db.GetContext(ctx, &acc, query, accountNumber)

	logger.Log.Infow("query executed", "query", squish(query), "args", []any{accountNumber}, "error", err)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// AccountWriteRepository handles account writes and locked reads. When a
// transaction is carried by the context it is used as the executor, so all
// writes join the caller's unit of work.
type AccountWriteRepository struct {
	db       *sqlx.DB
	txGetter func(ctx context.Context) *sqlx.Tx
}

func NewAccountWriteRepository(db *sqlx.DB, txGetter func(ctx context.Context) *sqlx.Tx) *AccountWriteRepository {
	return &AccountWriteRepository{db: db, txGetter: txGetter}
}

func (r *AccountWriteRepository) executor(ctx context.Context) sqlx.ExtContext {
	if r.txGetter != nil {
		if txx := r.txGetter(ctx); txx != nil {
			return txx
		}
	}
	return r.db
}

// Save inserts a new account row. A unique violation on account_number is
// returned as-is for the caller to retry with a fresh number.
func (r *AccountWriteRepository) Save(ctx context.Context, acc *models.AccountDB) error {
	query := `
		INSERT INTO accounts (account_id, user_id, account_number, balance, is_active, daily_transfer_limit, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	`
	args := []any{acc.AccountID, acc.UserID, acc.AccountNumber, acc.Balance, acc.IsActive, acc.DailyTransferLimit}

	_, err := r.executor(ctx).ExecContext(ctx, query, args...)

	logger.Log.Infow("query executed", "query", squish(query), "args", args, "error", err)

	return err
}

// GetForUpdate re-reads the account row under an exclusive row lock.
// Must run inside a unit of work; the lock is held until commit or rollback.
// Returns nil when the account does not exist.
func (r *AccountWriteRepository) GetForUpdate(ctx context.Context, accountID uuid.UUID) (*models.AccountDB, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_id = $1 FOR UPDATE`

	var acc models.AccountDB
	err := sqlx.GetContext(ctx, r.executor(ctx), &acc, query, accountID)

	logger.Log.Infow("query executed", "query", squish(query), "args", []any{accountID}, "error", err)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// UpdateBalance writes the new balance for a locked account row.
func (r *AccountWriteRepository) UpdateBalance(ctx context.Context, accountID uuid.UUID, balance decimal.Decimal) error {
	query := `UPDATE accounts SET balance = $2, updated_at = NOW() WHERE account_id = $1`
	args := []any{accountID, balance}

	res, err := r.executor(ctx).ExecContext(ctx, query, args...)
	var rowsAffected int64
	if res != nil {
		rowsAffected, _ = res.RowsAffected()
	}

	logger.Log.Infow("query executed", "query", squish(query), "args", args, "result", rowsAffected, "error", err)

	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetActive flips the soft-disable flag.
func (r *AccountWriteRepository) SetActive(ctx context.Context, accountID uuid.UUID, active bool) error {
	query := `UPDATE accounts SET is_active = $2, updated_at = NOW() WHERE account_id = $1`
	args := []any{accountID, active}

	res, err := r.executor(ctx).ExecContext(ctx, query, args...)
	var rowsAffected int64
	if res != nil {
		rowsAffected, _ = res.RowsAffected()
	}

	logger.Log.Infow("query executed", "query", squish(query), "args", args, "result", rowsAffected, "error", err)

	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetDailyLimit updates the per-day transfer cap.
func (r *AccountWriteRepository) SetDailyLimit(ctx context.Context, accountID uuid.UUID, limit decimal.Decimal) error {
	query := `UPDATE accounts SET daily_transfer_limit = $2, updated_at = NOW() WHERE account_id = $1`
	args := []any{accountID, limit}

	res, err := r.executor(ctx).ExecContext(ctx, query, args...)
	var rowsAffected int64
	if res != nil {
		rowsAffected, _ = res.RowsAffected()
	}

	logger.Log.Infow("query executed", "query", squish(query), "args", args, "result", rowsAffected, "error", err)

	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
