package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sparksfinance/ledger-core/internal/logger"
	"github.com/sparksfinance/ledger-core/internal/models"
	"github.com/sparksfinance/ledger-core/internal/repositories"
)

var (
	// ErrAccountNotFound is returned when the referenced account does not exist.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountExists is returned when the user already owns an account.
	ErrAccountExists = errors.New("user already has an account")
	// ErrDuplicateAccountNumber is returned when a unique account number
	// could not be allocated within the retry bound.
	ErrDuplicateAccountNumber = errors.New("could not allocate a unique account number")
	// ErrInvalidLimit is returned for a negative daily transfer limit.
	ErrInvalidLimit = errors.New("daily transfer limit cannot be negative")
)

// Generator collisions are pathological; the bound exists so a broken
// store surfaces as an error instead of a spin.
const maxAccountNumberAttempts = 5

// defaultDailyLimit is the per-day transfer cap assigned at creation.
var defaultDailyLimit = decimal.NewFromInt(100000)

// AccountReader defines unlocked account reads.
type AccountReader interface {
	GetByID(ctx context.Context, accountID uuid.UUID) (*models.AccountDB, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.AccountDB, error)
	GetByNumber(ctx context.Context, accountNumber string) (*models.AccountDB, error)
}

// AccountWriter defines account mutations.
type AccountWriter interface {
	Save(ctx context.Context, acc *models.AccountDB) error
	SetActive(ctx context.Context, accountID uuid.UUID, active bool) error
	SetDailyLimit(ctx context.Context, accountID uuid.UUID, limit decimal.Decimal) error
}

// BalanceCache caches committed balances.
type BalanceCache interface {
	Get(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)
	Set(ctx context.Context, accountID uuid.UUID, balance decimal.Decimal) error
	Invalidate(ctx context.Context, accountIDs ...uuid.UUID) error
}

// TxRunner executes a function inside one atomic unit of work.
type TxRunner interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// Auditor records audit entries.
type Auditor interface {
	Record(ctx context.Context, actor uuid.UUID, action, target, detail string, meta RequestMeta) error
}

// AccountService creates accounts and exposes balance reads.
type AccountService struct {
	runner TxRunner
	reader AccountReader
	writer AccountWriter
	cache  BalanceCache
	audit  Auditor
}

func NewAccountService(runner TxRunner, reader AccountReader, writer AccountWriter, cache BalanceCache, audit Auditor) *AccountService {
	return &AccountService{
		runner: runner,
		reader: reader,
		writer: writer,
		cache:  cache,
		audit:  audit,
	}
}

// generateAccountNumber builds a candidate number: SPF + yymmdd + 8 digits.
func generateAccountNumber() string {
	return fmt.Sprintf("SPF%s%08d", time.Now().UTC().Format("060102"), rand.Intn(100000000))
}

// Create opens a zero-balance account for the user. Account number
// collisions are retried internally and never surfaced below the bound.
func (s *AccountService) Create(ctx context.Context, userID uuid.UUID, meta RequestMeta) (*models.AccountDB, error) {
	existing, err := s.reader.GetByUserID(ctx, userID)
	if err != nil {
		logger.Log.Errorw("failed to check existing account", "userID", userID, "error", err)
		return nil, err
	}
	if existing != nil {
		return nil, ErrAccountExists
	}

	for attempt := 0; attempt < maxAccountNumberAttempts; attempt++ {
		acc := &models.AccountDB{
			AccountID:          uuid.New(),
			UserID:             userID,
			AccountNumber:      generateAccountNumber(),
			Balance:            decimal.Zero,
			IsActive:           true,
			DailyTransferLimit: defaultDailyLimit,
		}

		err := s.runner.Do(ctx, func(ctx context.Context) error {
			if err := s.writer.Save(ctx, acc); err != nil {
				return err
			}
			return s.audit.Record(ctx, userID, models.AuditAccountCreated, acc.AccountNumber,
				fmt.Sprintf("account %s created", acc.AccountNumber), meta)
		})
		if err == nil {
			return acc, nil
		}
		// Losing a race on the user's unique constraint is not a number
		// collision: another create for the same user already won.
		if repositories.IsUniqueViolationOn(err, repositories.ConstraintAccountsUserID) {
			return nil, ErrAccountExists
		}
		if repositories.IsUniqueViolation(err) {
			logger.Log.Warnw("account number collision, retrying", "account_number", acc.AccountNumber, "attempt", attempt+1)
			continue
		}
		logger.Log.Errorw("failed to create account", "userID", userID, "error", err)
		return nil, err
	}

	return nil, ErrDuplicateAccountNumber
}

// GetBalance returns the committed balance without locking, cache first.
func (s *AccountService) GetBalance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	if balance, err := s.cache.Get(ctx, accountID); err == nil {
		return balance, nil
	}

	acc, err := s.reader.GetByID(ctx, accountID)
	if err != nil {
		logger.Log.Errorw("failed to read account balance", "accountID", accountID, "error", err)
		return decimal.Zero, err
	}
	if acc == nil {
		return decimal.Zero, ErrAccountNotFound
	}

	if err := s.cache.Set(ctx, accountID, acc.Balance); err != nil {
		logger.Log.Warnw("failed to cache balance", "accountID", accountID, "error", err)
	}

	return acc.Balance, nil
}

// GetByUserID returns the account owned by the user, or ErrAccountNotFound.
func (s *AccountService) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.AccountDB, error) {
	acc, err := s.reader.GetByUserID(ctx, userID)
	if err != nil {
		logger.Log.Errorw("failed to read account by user", "userID", userID, "error", err)
		return nil, err
	}
	if acc == nil {
		return nil, ErrAccountNotFound
	}
	return acc, nil
}

// GetByNumber returns the account with the given number, or ErrAccountNotFound.
func (s *AccountService) GetByNumber(ctx context.Context, accountNumber string) (*models.AccountDB, error) {
	acc, err := s.reader.GetByNumber(ctx, accountNumber)
	if err != nil {
		logger.Log.Errorw("failed to read account by number", "account_number", accountNumber, "error", err)
		return nil, err
	}
	if acc == nil {
		return nil, ErrAccountNotFound
	}
	return acc, nil
}

// Deactivate soft-disables an account. Accounts are never deleted.
func (s *AccountService) Deactivate(ctx context.Context, actor uuid.UUID, accountID uuid.UUID, reason string, meta RequestMeta) error {
	acc, err := s.reader.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if acc == nil {
		return ErrAccountNotFound
	}

	err = s.runner.Do(ctx, func(ctx context.Context) error {
		if err := s.writer.SetActive(ctx, accountID, false); err != nil {
			return err
		}
		return s.audit.Record(ctx, actor, models.AuditAccountUpdated, acc.AccountNumber,
			fmt.Sprintf("account deactivated: %s", reason), meta)
	})
	if err != nil {
		logger.Log.Errorw("failed to deactivate account", "accountID", accountID, "error", err)
		return err
	}

	if err := s.cache.Invalidate(ctx, accountID); err != nil {
		logger.Log.Warnw("failed to invalidate balance cache", "accountID", accountID, "error", err)
	}
	return nil
}

// UpdateDailyLimit changes the per-day transfer cap.
func (s *AccountService) UpdateDailyLimit(ctx context.Context, actor uuid.UUID, accountID uuid.UUID, newLimit decimal.Decimal, meta RequestMeta) error {
	if newLimit.IsNegative() {
		return ErrInvalidLimit
	}

	acc, err := s.reader.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if acc == nil {
		return ErrAccountNotFound
	}

	err = s.runner.Do(ctx, func(ctx context.Context) error {
		if err := s.writer.SetDailyLimit(ctx, accountID, newLimit); err != nil {
			return err
		}
		return s.audit.Record(ctx, actor, models.AuditAccountUpdated, acc.AccountNumber,
			fmt.Sprintf("daily limit updated from %s to %s", acc.DailyTransferLimit.StringFixed(2), newLimit.StringFixed(2)), meta)
	})
	if err != nil {
		logger.Log.Errorw("failed to update daily limit", "accountID", accountID, "error", err)
		return err
	}
	return nil
}
