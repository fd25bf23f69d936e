package tx

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/sparksfinance/ledger-core/internal/logger"
)

// contextKey is an unexported type for keys in context
type contextKey struct{}

var txKey = contextKey{}

// setTxToContext stores a transaction in the context
func setTxToContext(ctx context.Context, tx *sqlx.Tx) context.Context {
	return context.WithValue(ctx, txKey, tx)
}

// FromContext retrieves the transaction from the context. Returns nil if not present.
func FromContext(ctx context.Context) *sqlx.Tx {
	tx, _ := ctx.Value(txKey).(*sqlx.Tx)
	return tx
}

// Runner executes functions inside a database transaction. All repository
// reads and writes made through the context-carried transaction commit or
// roll back together.
type Runner struct {
	db *sqlx.DB
}

func NewRunner(db *sqlx.DB) *Runner {
	return &Runner{db: db}
}

// Do begins a transaction, stashes it in the context and invokes fn.
// A nil return from fn commits; an error or panic rolls back, so a failed
// unit of work leaves no partial effect.
func (r *Runner) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	txx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		logger.Log.Errorw("failed to begin transaction", "error", err)
		return err
	}

	defer func() {
		if rec := recover(); rec != nil {
			txx.Rollback()
			panic(rec)
		}
	}()

	if err := fn(setTxToContext(ctx, txx)); err != nil {
		if rbErr := txx.Rollback(); rbErr != nil {
			logger.Log.Errorw("failed to roll back transaction", "error", rbErr)
		}
		return err
	}

	if err := txx.Commit(); err != nil {
		logger.Log.Errorw("failed to commit transaction", "error", err)
		return err
	}
	return nil
}
